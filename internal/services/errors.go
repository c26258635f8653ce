package services

import (
	"errors"
	"fmt"

	apperrors "csvmapper/internal/errors"
)

// Mapping service errors
var (
	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionLimit    = errors.New("session limit reached")

	// Workflow errors
	ErrFilesMissing  = errors.New("both files must be uploaded before merging")
	ErrSlotEmpty     = errors.New("no file uploaded in slot")
	ErrNothingMerged = errors.New("no merged table: run a merge first")
	ErrNoPivot       = errors.New("no pivot table: generate a pivot first")

	// Input errors
	ErrInvalidSlot    = errors.New("invalid slot")
	ErrInvalidStage   = errors.New("invalid export stage")
	ErrInvalidFormat  = errors.New("invalid export format")
	ErrUnknownColumns = errors.New("unknown columns")
)

// sessionNotFound wraps ErrSessionNotFound so the HTTP layer answers 404
func sessionNotFound(id string) error {
	return apperrors.NewAppError(apperrors.ErrTypeNotFound, fmt.Sprintf("session %s", id), ErrSessionNotFound).
		WithContext("session_id", id)
}

// conflict wraps a workflow sentinel so the HTTP layer answers 409
func conflict(action string, sentinel error) error {
	return apperrors.NewAppError(apperrors.ErrTypeConflict, "cannot "+action, sentinel)
}

// invalid wraps an input sentinel so the HTTP layer answers 400
func invalid(sentinel error, cause error) error {
	wrapped := sentinel
	if cause != nil {
		wrapped = fmt.Errorf("%w: %w", sentinel, cause)
	}
	return apperrors.NewAppError(apperrors.ErrTypeValidation, "invalid request", wrapped)
}
