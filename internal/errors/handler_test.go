package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csvmapper/internal/shared/testutil"
)

func newTestErrorHandler(t *testing.T, includeStack bool) (*ErrorHandler, *testutil.BufferedSlogHandler) {
	logger, handler := testutil.NewTestLogger(t)
	return NewErrorHandler(logger, includeStack), handler
}

func requestWithID(method, target, id string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	return r.WithContext(context.WithValue(r.Context(), middleware.RequestIDKey, id))
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedType   string
		expectedCode   string
		expectedDetail string
	}{
		{
			name:           "file decode",
			err:            NewFileDecodeError("error reading a.csv", fmt.Errorf("bad bytes")),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedType:   TypeFileDecode,
			expectedCode:   "FILE_DECODE",
			expectedDetail: "error reading a.csv: bad bytes",
		},
		{
			name:           "merge configuration",
			err:            NewMergeConfigError("select at least one key column from each table"),
			expectedStatus: http.StatusBadRequest,
			expectedType:   TypeMergeConfig,
			expectedCode:   "MERGE_CONFIG",
			expectedDetail: "select at least one key column from each table",
		},
		{
			name:           "merge execution",
			err:            NewMergeExecutionError("error building keys for table A", fmt.Errorf("column missing")),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedType:   TypeMergeExecution,
			expectedCode:   "MERGE_EXECUTION",
		},
		{
			name:           "pivot configuration",
			err:            NewPivotConfigError("select at least one value field"),
			expectedStatus: http.StatusBadRequest,
			expectedType:   TypePivotConfig,
			expectedCode:   "PIVOT_CONFIG",
		},
		{
			name:           "pivot execution",
			err:            NewPivotExecutionError("value field is not numeric", nil),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedType:   TypePivotExecution,
			expectedCode:   "PIVOT_EXECUTION",
		},
		{
			name:           "export hides the cause",
			err:            NewExportError("failed to encode xlsx", fmt.Errorf("disk on fire")),
			expectedStatus: http.StatusInternalServerError,
			expectedType:   TypeExport,
			expectedCode:   "EXPORT",
			expectedDetail: "An unexpected error occurred while processing your request",
		},
		{
			name:           "wrapped not found",
			err:            fmt.Errorf("lookup: %w", NewNotFoundError("session 42")),
			expectedStatus: http.StatusNotFound,
			expectedType:   TypeNotFound,
			expectedCode:   "NOT_FOUND",
			expectedDetail: "session 42 not found",
		},
		{
			name:           "conflict",
			err:            NewConflictError("upload both files first"),
			expectedStatus: http.StatusConflict,
			expectedType:   TypeConflict,
			expectedCode:   "CONFLICT",
		},
		{
			name:           "api validation",
			err:            ErrValidation("file", "missing"),
			expectedStatus: http.StatusBadRequest,
			expectedType:   TypeValidation,
			expectedCode:   "VALIDATION_FAILED",
			expectedDetail: "Request validation failed",
		},
		{
			name:           "payload too large",
			err:            ErrPayloadTooLarge,
			expectedStatus: http.StatusRequestEntityTooLarge,
			expectedType:   TypePayloadTooLarge,
			expectedCode:   "PAYLOAD_TOO_LARGE",
		},
		{
			name:           "deadline",
			err:            fmt.Errorf("pivot: %w", context.DeadlineExceeded),
			expectedStatus: http.StatusGatewayTimeout,
			expectedType:   TypeTimeout,
		},
		{
			name:           "plain error",
			err:            fmt.Errorf("boom"),
			expectedStatus: http.StatusInternalServerError,
			expectedType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestErrorHandler(t, false)
			rec := httptest.NewRecorder()

			h.HandleError(rec, requestWithID(http.MethodPost, "/api/sessions/x/merge", "req-1"), tt.err)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			body := decodeProblem(t, rec)
			assert.Equal(t, tt.expectedType, body["type"])
			assert.Equal(t, float64(tt.expectedStatus), body["status"])
			assert.Equal(t, "/api/sessions/x/merge", body["instance"])
			assert.Equal(t, "req-1", body["trace_id"])
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, body["error_code"])
			}
			if tt.expectedDetail != "" {
				assert.Equal(t, tt.expectedDetail, body["detail"])
			}
			assert.NotContains(t, body, "stack")
		})
	}
}

func TestHandleError_Logging(t *testing.T) {
	h, logs := newTestErrorHandler(t, false)

	h.HandleError(httptest.NewRecorder(), requestWithID(http.MethodGet, "/a", "r1"), NewConflictError("nope"))
	h.HandleError(httptest.NewRecorder(), requestWithID(http.MethodGet, "/b", "r2"), fmt.Errorf("boom"))
	h.HandleError(httptest.NewRecorder(), requestWithID(http.MethodGet, "/c", "r3"), nil)

	records := logs.GetRecords()
	require.Len(t, records, 2)
	assert.Equal(t, "WARN", records[0].Level.String())
	assert.Equal(t, "ERROR", records[1].Level.String())
	assert.True(t, logs.ContainsAttr("request_id", "r2"))
}

func TestHandleError_ContextAndDetails(t *testing.T) {
	h, _ := newTestErrorHandler(t, true)

	rec := httptest.NewRecorder()
	err := NewFileDecodeError("error reading a.csv", nil).WithContext("attempted_encodings", []string{"utf-8"})
	h.HandleError(rec, requestWithID(http.MethodPost, "/u", "r"), err)
	body := decodeProblem(t, rec)
	assert.Equal(t, map[string]interface{}{"attempted_encodings": []interface{}{"utf-8"}}, body["context"])

	rec = httptest.NewRecorder()
	h.HandleError(rec, requestWithID(http.MethodPost, "/u", "r"), NewValidationErrors([]ValidationError{
		{Field: "keys_a", Message: "keys_a is required"},
	}))
	body = decodeProblem(t, rec)
	details := body["details"].(map[string]interface{})
	assert.Len(t, details["errors"], 1)

	rec = httptest.NewRecorder()
	h.HandleError(rec, requestWithID(http.MethodPost, "/u", "r"), fmt.Errorf("boom"))
	body = decodeProblem(t, rec)
	assert.Contains(t, body, "stack")
}

func TestRecoveryMiddleware(t *testing.T) {
	h, logs := newTestErrorHandler(t, false)
	handler := RecoveryMiddleware(h)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithID(http.MethodGet, "/api/panic", "p1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeProblem(t, rec)
	assert.Equal(t, TypeInternal, body["type"])
	assert.Equal(t, "p1", body["trace_id"])
	assert.NotContains(t, body, "panic")
	assert.True(t, logs.ContainsMessage("panic recovered"))
}

func TestRecoveryMiddleware_AbortHandler(t *testing.T) {
	h, _ := newTestErrorHandler(t, false)
	handler := RecoveryMiddleware(h)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	h, _ := newTestErrorHandler(t, false)

	rec := httptest.NewRecorder()
	h.NotFound(rec, requestWithID(http.MethodGet, "/nowhere", "n1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, TypeNotFound, decodeProblem(t, rec)["type"])

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, requestWithID(http.MethodPatch, "/api/sessions", "n2"))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method PATCH is not allowed for this endpoint", decodeProblem(t, rec)["detail"])
}

func TestAppError(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := NewMergeExecutionError("join failed", cause)

	assert.Equal(t, "[MERGE_EXECUTION] join failed: underlying", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, fmt.Errorf("wrap: %w", err), &AppError{Type: ErrTypeMergeExecution})
	assert.NotErrorIs(t, err, &AppError{Type: ErrTypeMergeConfig})
	assert.True(t, IsType(fmt.Errorf("wrap: %w", err), ErrTypeMergeExecution))
	assert.Equal(t, ErrorType(""), TypeOf(cause))
	assert.Equal(t, "[CONFLICT] busy", NewConflictError("busy").Error())
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	pd := NewProblemDetails(http.StatusBadRequest, TypeValidation, "Bad Request", "", "").
		WithExtension("error_code", "X")

	data, err := json.Marshal(pd)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"/errors/validation","title":"Bad Request","status":400,"error_code":"X"}`, string(data))
}
