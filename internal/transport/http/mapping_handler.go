package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"csvmapper/internal/config"
	apierrors "csvmapper/internal/errors"
	mw "csvmapper/internal/middleware"
	api "csvmapper/pkg/contracts/api/v1"
	"csvmapper/pkg/contracts/domain"
)

// multipartOverhead is the allowance for boundaries and part headers on top
// of the file itself
const multipartOverhead = 1 << 20

// MappingHandler serves the session workflow with RFC 7807 errors
type MappingHandler struct {
	service        MappingServiceInterface
	validate       *validator.Validate
	bodies         *mw.ValidationMiddleware
	query          *mw.QueryParamValidator
	maxUploadBytes int64
	logger         *slog.Logger
	errorHandler   *apierrors.ErrorHandler
}

// NewMappingHandler creates a new mapping handler
func NewMappingHandler(service MappingServiceInterface, maxUploadBytes int64, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *MappingHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = config.DefaultMaxUploadBytes
	}
	return &MappingHandler{
		service:        service,
		validate:       mw.NewValidator(),
		bodies:         mw.NewValidationMiddleware(logger, errorHandler),
		query:          mw.NewQueryParamValidator(logger, errorHandler),
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("component", "mapping_handler")),
		errorHandler:   errorHandler,
	}
}

// Routes returns the session routes, mounted at /api/sessions
func (h *MappingHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.CreateSession)

	r.Route("/{id}", func(r chi.Router) {
		r.Use(h.SessionCtx)

		r.Get("/", h.GetSession)
		r.Delete("/", h.DeleteSession)
		r.Post("/reset", h.ResetSession)

		r.Post("/files/{slot}", h.UploadFile)
		r.Get("/columns/{slot}", h.GetColumns)

		// JSON bodies
		r.Group(func(r chi.Router) {
			r.Use(mw.ContentTypeValidator(h.errorHandler, "application/json"))
			r.Use(h.bodies.ValidateRequest)

			r.Post("/merge", h.Merge)
			r.Put("/columns", h.SelectColumns)
			r.Post("/pivot", h.GeneratePivot)
		})

		r.Get("/export/{stage}", h.Export)
	})

	return r
}

// SessionCtx middleware validates the session ID parameter
func (h *MappingHandler) SessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params := api.SessionPathParams{ID: chi.URLParam(r, "id")}
		if err := mw.ValidateStruct(h.validate, &params); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateSession handles POST /api/sessions
func (h *MappingHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.CreateSession(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "session created",
		slog.String("session_id", view.ID),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, api.SuccessResponse{Status: "success", Data: view})
}

// GetSession handles GET /api/sessions/{id}
func (h *MappingHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.SuccessResponse{Status: "success", Data: view})
}

// ResetSession handles POST /api/sessions/{id}/reset
func (h *MappingHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ResetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.SuccessResponse{Status: "success", Data: view})
}

// DeleteSession handles DELETE /api/sessions/{id}
func (h *MappingHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

// UploadFile handles POST /api/sessions/{id}/files/{slot} with the file in
// the multipart field "file"
func (h *MappingHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	params := api.UploadPathParams{
		SessionPathParams: api.SessionPathParams{ID: chi.URLParam(r, "id")},
		Slot:              chi.URLParam(r, "slot"),
	}
	if err := mw.ValidateStruct(h.validate, &params); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.errorHandler.HandleError(w, r, apierrors.ErrPayloadTooLarge)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(config.UploadFormField)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation(config.UploadFormField,
			fmt.Sprintf("multipart field %q with the file is required", config.UploadFormField)))
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusRequestEntityTooLarge,
			"PAYLOAD_TOO_LARGE",
			"Uploaded file exceeds the maximum allowed size",
			map[string]interface{}{
				"max_size": h.maxUploadBytes,
				"size":     header.Size,
			},
		))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	fileName := filepath.Base(header.Filename)
	h.logger.InfoContext(ctx, "file received",
		slog.String("request_id", reqID),
		slog.String("session_id", params.ID),
		slog.String("slot", params.Slot),
		slog.String("file_name", fileName),
		slog.Int("bytes", len(data)),
	)

	info, err := h.service.UploadFile(ctx, params.ID, params.Slot, fileName, data)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, api.SuccessResponse{Status: "success", Data: info})
}

// GetColumns handles GET /api/sessions/{id}/columns/{slot}. The slot may be
// a, b or merged.
func (h *MappingHandler) GetColumns(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "slot")
	columns, err := h.service.Columns(r.Context(), chi.URLParam(r, "id"), table)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.SuccessResponse{
		Status: "success",
		Data:   api.ColumnsResponse{Table: table, Columns: columns},
	})
}

// Merge handles POST /api/sessions/{id}/merge
func (h *MappingHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var req api.MergeRequest
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.service.Merge(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "merge completed",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("mode", view.Summary.Mode),
		slog.Int("output_rows", view.Summary.OutputRows),
	)

	render.JSON(w, r, api.SuccessResponse{Status: "success", Data: view})
}

// SelectColumns handles PUT /api/sessions/{id}/columns
func (h *MappingHandler) SelectColumns(w http.ResponseWriter, r *http.Request) {
	var req api.SelectColumnsRequest
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.service.SelectColumns(r.Context(), chi.URLParam(r, "id"), req.Columns)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.SuccessResponse{Status: "success", Data: view})
}

// GeneratePivot handles POST /api/sessions/{id}/pivot
func (h *MappingHandler) GeneratePivot(w http.ResponseWriter, r *http.Request) {
	var req api.PivotRequest
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.service.GeneratePivot(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.SuccessResponse{Status: "success", Data: view})
}

// Export handles GET /api/sessions/{id}/export/{stage}?format=csv|xlsx
func (h *MappingHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	format, ok := h.query.ValidateEnum(w, r, "format",
		[]string{string(domain.FormatCSV), string(domain.FormatXLSX)}, string(domain.FormatCSV))
	if !ok {
		return
	}
	req := api.ExportRequest{Stage: chi.URLParam(r, "stage"), Format: format}
	if err := mw.ValidateStruct(h.validate, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	result, err := h.service.Export(ctx, chi.URLParam(r, "id"), req.Stage, req.Format)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "export served",
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.String("file_name", result.FileName),
		slog.Int("rows", result.Rows),
	)

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": result.FileName}))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Data); err != nil {
		h.logger.WarnContext(ctx, "export write interrupted", slog.String("error", err.Error()))
	}
}

// decode reads a JSON body into v and validates it. On failure the error
// response is already written.
func (h *MappingHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return false
	}
	if err := mw.ValidateStruct(h.validate, v); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return false
	}
	return true
}
