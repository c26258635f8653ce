// Package services implements the business logic layer of the CSV mapper.
// It sits between the HTTP handlers and the dataprocessing package and owns
// the per-user session state.
//
// # Sessions
//
// A Session holds two upload slots ("a" and "b"), the last merge with its
// summary and kept columns, and the last pivot. Sessions live in a
// SessionStore, which hands out UUID identifiers, caps the number of open
// sessions and evicts idle ones lazily on access. Every action on a session
// takes the session mutex, so concurrent requests against one session run
// one after another.
//
// # Workflow
//
// MappingService exposes the workflow as explicit operations:
//
//	UploadFile -> Merge -> SelectColumns -> GeneratePivot -> Export
//
// Each action recomputes its stage from the current selections. A failed
// action returns an *errors.AppError and leaves the previous state of the
// session untouched. Every operation runs inside a span and records count,
// duration, rows and failures through infrastructure.MappingMetrics.
//
// # Errors
//
// Workflow sentinels (ErrFilesMissing, ErrNothingMerged, ErrNoPivot, ...)
// are wrapped in AppErrors of type CONFLICT, VALIDATION or NOT_FOUND, so
// callers can test them with errors.Is while the HTTP layer maps the type to
// a status code.
package services
