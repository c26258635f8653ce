// Package http implements the HTTP handlers of the csvmapper web service.
// Handlers are a thin layer over the services package: they parse and validate
// requests, call one service method and format the response.
//
// # Routes
//
// MappingHandler is mounted at /api/sessions:
//
//	POST   /                       create a session
//	GET    /{id}                   session snapshot
//	DELETE /{id}                   drop a session
//	POST   /{id}/reset             clear uploads, merge and pivot
//	POST   /{id}/files/{slot}      multipart upload, field "file", slot a or b
//	GET    /{id}/columns/{slot}    headers of a, b or merged
//	POST   /{id}/merge             {"keys_a":[],"keys_b":[],"partial":false}
//	PUT    /{id}/columns           {"columns":[]}
//	POST   /{id}/pivot             {"index":[],"columns":[],"values":[],"aggfunc":"sum"}
//	GET    /{id}/export/{stage}    stage merged or pivot, ?format=csv|xlsx
//
// HealthHandler serves /api/health, /api/health/live and /api/version.
// MetricsHandler serves the Prometheus scrape at /metrics.
//
// # Responses
//
// Successful JSON responses use the envelope
//
//	{"status": "success", "data": ...}
//
// Exports are written as attachments with the encoder's content type.
// Every error goes through errors.ErrorHandler and is rendered as RFC 7807
// problem details:
//
//	{
//	    "type": "/errors/merge/invalid-configuration",
//	    "title": "Invalid Merge Configuration",
//	    "status": 400,
//	    "detail": "key lists differ in length: 2 vs 1",
//	    "instance": "/api/sessions/.../merge",
//	    "trace_id": "..."
//	}
//
// # Testing
//
// Handlers depend on MappingServiceInterface so tests can substitute a
// testify mock and drive the routes with httptest.
package http
