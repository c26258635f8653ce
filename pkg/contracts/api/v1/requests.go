// Package api contains the request and response contracts of the csvmapper HTTP API.
// Version v1 is served under /api.
package api

import "csvmapper/pkg/contracts/domain"

// Session API Requests

// SessionPathParams identifies a session in the URL
type SessionPathParams struct {
	ID string `json:"id" param:"id" validate:"required,uuid4"`
}

// UploadPathParams identifies the slot of an upload
type UploadPathParams struct {
	SessionPathParams
	Slot string `json:"slot" param:"slot" validate:"required,slot"`
}

// Mapping API Requests

// MergeRequest represents POST /api/sessions/{id}/merge
type MergeRequest = domain.MergeRequest

// PivotRequest represents POST /api/sessions/{id}/pivot
type PivotRequest = domain.PivotRequest

// SelectColumnsRequest represents PUT /api/sessions/{id}/columns. An empty list
// keeps every merged column.
type SelectColumnsRequest struct {
	Columns []string `json:"columns" validate:"omitempty,dive,required"`
}

// ExportRequest represents GET /api/sessions/{id}/export/{stage}
type ExportRequest struct {
	Stage  string `json:"stage" param:"stage" validate:"required,oneof=merged pivot"`
	Format string `json:"format" query:"format" validate:"omitempty,oneof=csv xlsx"`
}

// Responses

// SuccessResponse is the envelope of every successful JSON response
type SuccessResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
}

// ColumnsResponse lists the headers of one table of a session
type ColumnsResponse struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
}
