package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"csvmapper/internal/config"
	"csvmapper/internal/dataprocessing"
	apperrors "csvmapper/internal/errors"
	"csvmapper/internal/exporter"
	"csvmapper/internal/infrastructure"
	"csvmapper/internal/validation"
	"csvmapper/pkg/contracts/domain"
)

// ExportResult is an encoded download
type ExportResult struct {
	FileName    string
	ContentType string
	Rows        int
	Data        []byte
}

// MappingService runs the upload, merge, select, pivot and export workflow
// against sessions held in a SessionStore.
type MappingService struct {
	store      *SessionStore
	decoder    *dataprocessing.CSVDecoder
	files      *validation.FileValidator
	merger     *dataprocessing.Merger
	aggregator *dataprocessing.Aggregator
	exportOpts exporter.Options
	metrics    *infrastructure.MappingMetrics
	logger     *slog.Logger
}

// NewMappingService wires the workflow from configuration
func NewMappingService(cfg *config.Config, metrics *infrastructure.MappingMetrics, logger *slog.Logger) (*MappingService, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = infrastructure.NewNoopMetrics()
	}

	encodings, err := dataprocessing.LookupEncodings(cfg.Upload.Encodings)
	if err != nil {
		return nil, apperrors.NewConfigError("invalid upload encodings", err)
	}

	logger = logger.With(slog.String("component", "mapping_service"))
	logger.Info("MappingService initialized",
		slog.Int64("max_upload_bytes", cfg.Upload.MaxBytes),
		slog.Any("encodings", cfg.Upload.Encodings),
		slog.Duration("session_ttl", cfg.Session.TTL),
		slog.Int("max_sessions", cfg.Session.MaxSessions))

	return &MappingService{
		store:      NewSessionStore(cfg.Session.TTL, cfg.Session.MaxSessions, metrics, logger),
		decoder:    dataprocessing.NewCSVDecoder(encodings, logger),
		files:      validation.NewFileValidator(cfg.Upload.MaxBytes, cfg.Upload.AllowedExtensions, logger),
		merger:     dataprocessing.NewMerger(dataprocessing.DefaultMergeOptions(), logger),
		aggregator: dataprocessing.NewAggregator(logger),
		exportOpts: exporter.Options{CSVBOM: cfg.Export.CSVBOM},
		metrics:    metrics,
		logger:     logger,
	}, nil
}

// ActiveSessions returns the number of live sessions
func (s *MappingService) ActiveSessions() int {
	return s.store.Len()
}

// EvictExpired drops idle sessions and returns how many were removed
func (s *MappingService) EvictExpired(ctx context.Context) int {
	return s.store.EvictExpired(ctx)
}

// CreateSession opens a new empty session
func (s *MappingService) CreateSession(ctx context.Context) (SessionView, error) {
	var view SessionView
	err := s.run(ctx, "create_session", "", func(ctx context.Context) (int, error) {
		session, err := s.store.Create(ctx)
		if err != nil {
			return 0, err
		}
		view = session.View()
		return 0, nil
	})
	return view, err
}

// GetSession returns a snapshot of a session
func (s *MappingService) GetSession(ctx context.Context, id string) (SessionView, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return SessionView{}, err
	}
	return session.View(), nil
}

// ResetSession drops the uploads and every derived table of a session
func (s *MappingService) ResetSession(ctx context.Context, id string) (SessionView, error) {
	var view SessionView
	err := s.run(ctx, "reset_session", id, func(ctx context.Context) (int, error) {
		session, err := s.store.Get(ctx, id)
		if err != nil {
			return 0, err
		}
		session.mu.Lock()
		defer session.mu.Unlock()
		session.reset(s.store.now())
		view = session.viewLocked()
		return 0, nil
	})
	return view, err
}

// DeleteSession closes a session
func (s *MappingService) DeleteSession(ctx context.Context, id string) error {
	return s.run(ctx, "delete_session", id, func(ctx context.Context) (int, error) {
		return 0, s.store.Delete(ctx, id)
	})
}

// UploadFile decodes a file into a slot. Workbooks are read from their first
// non-empty sheet; anything else is decoded as CSV. A failed upload leaves
// the slot unchanged.
func (s *MappingService) UploadFile(ctx context.Context, id, slotName, fileName string, data []byte) (domain.UploadInfo, error) {
	var info domain.UploadInfo
	err := s.run(ctx, "upload", id, func(ctx context.Context) (int, error) {
		slot, err := domain.ParseSlot(slotName)
		if err != nil {
			return 0, invalid(ErrInvalidSlot, err)
		}
		if err := s.files.ValidateUpload(fileName, int64(len(data))); err != nil {
			return 0, err
		}
		session, err := s.store.Get(ctx, id)
		if err != nil {
			return 0, err
		}

		var (
			table    *domain.Table
			encoding string
		)
		if dataprocessing.IsWorkbook(fileName) {
			table, encoding, err = dataprocessing.ParseWorkbook(fileName, data)
		} else {
			table, encoding, err = s.decoder.Decode(fileName, data)
		}
		if err != nil {
			return 0, err
		}
		s.metrics.UploadBytes.Add(ctx, int64(len(data)))

		now := s.store.now()
		info = domain.UploadInfo{
			Slot:       slot,
			FileName:   fileName,
			Encoding:   encoding,
			Columns:    append([]string(nil), table.Header...),
			Rows:       table.Len(),
			UploadedAt: now,
		}

		session.mu.Lock()
		defer session.mu.Unlock()
		session.uploads[slot] = &upload{info: info, table: table}
		session.updatedAt = now
		return table.Len(), nil
	}, attribute.String("slot", slotName), attribute.String("file", fileName))
	return info, err
}

// Columns lists the column names of an upload slot ("a", "b") or of the
// merged table ("merged").
func (s *MappingService) Columns(ctx context.Context, id, name string) ([]string, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	source := name
	if name != string(domain.StageMerged) {
		slot, err := domain.ParseSlot(name)
		if err != nil {
			return nil, invalid(ErrInvalidSlot, err)
		}
		source = string(slot)
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	t := session.table(source)
	if t == nil {
		if source == string(domain.StageMerged) {
			return nil, conflict("list merged columns", ErrNothingMerged)
		}
		return nil, conflict("list columns of slot "+source, ErrSlotEmpty)
	}
	return append([]string(nil), t.Header...), nil
}

// Merge joins the two uploads. On success the merged table replaces the
// previous one, every merged column is kept and the pivot is cleared. On
// failure the previous merge stays in place.
func (s *MappingService) Merge(ctx context.Context, id string, req domain.MergeRequest) (*MergeView, error) {
	var view *MergeView
	err := s.run(ctx, "merge", id, func(ctx context.Context) (int, error) {
		session, err := s.store.Get(ctx, id)
		if err != nil {
			return 0, err
		}

		session.mu.Lock()
		defer session.mu.Unlock()

		a, b := session.uploads[domain.SlotA], session.uploads[domain.SlotB]
		if a == nil || b == nil {
			return 0, conflict("merge", ErrFilesMissing)
		}

		merged, summary, err := s.merger.Merge(a.table, b.table, req)
		if err != nil {
			return 0, err
		}

		session.clearMerge()
		reqCopy := domain.MergeRequest{
			KeysA:   append([]string(nil), req.KeysA...),
			KeysB:   append([]string(nil), req.KeysB...),
			Partial: req.Partial,
		}
		session.mergeReq = &reqCopy
		session.merged = merged
		session.summary = &summary
		session.kept = append([]string(nil), merged.Header...)
		session.filtered = merged
		session.updatedAt = s.store.now()

		s.logger.InfoContext(ctx, "tables merged",
			slog.String("session_id", id),
			slog.String("mode", summary.Mode),
			slog.Int("rows_a", summary.RowsA),
			slog.Int("rows_b", summary.RowsB),
			slog.Int("matched", summary.Matched),
			slog.Int("output_rows", summary.OutputRows))

		view = session.mergeViewLocked()
		return merged.Len(), nil
	}, attribute.Bool("partial", req.Partial))
	return view, err
}

// SelectColumns keeps the named merged columns, in the given order, as the
// pivot input and the merged download. An empty selection keeps every
// column. Changing the selection clears the pivot.
func (s *MappingService) SelectColumns(ctx context.Context, id string, columns []string) (*MergeView, error) {
	var view *MergeView
	err := s.run(ctx, "select_columns", id, func(ctx context.Context) (int, error) {
		session, err := s.store.Get(ctx, id)
		if err != nil {
			return 0, err
		}

		session.mu.Lock()
		defer session.mu.Unlock()

		if session.merged == nil {
			return 0, conflict("select columns", ErrNothingMerged)
		}

		kept := uniqueColumns(columns)
		if len(kept) == 0 {
			kept = append([]string(nil), session.merged.Header...)
		}
		filtered, err := session.merged.Select(kept)
		if err != nil {
			return 0, invalid(ErrUnknownColumns, err)
		}

		session.kept = filtered.Header
		session.filtered = filtered
		session.clearPivot()
		session.updatedAt = s.store.now()

		view = session.mergeViewLocked()
		return 0, nil
	})
	return view, err
}

// GeneratePivot aggregates the selected merged columns. On failure the
// previous pivot stays in place.
func (s *MappingService) GeneratePivot(ctx context.Context, id string, req domain.PivotRequest) (*PivotView, error) {
	var view *PivotView
	err := s.run(ctx, "pivot", id, func(ctx context.Context) (int, error) {
		fn, err := domain.ParseAggFunc(string(req.AggFunc))
		if err != nil {
			return 0, apperrors.NewPivotConfigError(err.Error())
		}
		req.AggFunc = fn

		session, err := s.store.Get(ctx, id)
		if err != nil {
			return 0, err
		}

		session.mu.Lock()
		defer session.mu.Unlock()

		if session.filtered == nil {
			return 0, conflict("generate pivot", ErrNothingMerged)
		}

		pivot, err := s.aggregator.Pivot(session.filtered, req)
		if err != nil {
			return 0, err
		}

		reqCopy := domain.PivotRequest{
			Index:   append([]string(nil), req.Index...),
			Columns: append([]string(nil), req.Columns...),
			Values:  append([]string(nil), req.Values...),
			AggFunc: req.AggFunc,
		}
		session.pivotReq = &reqCopy
		session.pivot = pivot
		session.updatedAt = s.store.now()

		view = session.pivotViewLocked()
		return pivot.Len(), nil
	}, attribute.String("aggfunc", string(req.AggFunc)))
	return view, err
}

// Export encodes the filtered merged table or the pivot table
func (s *MappingService) Export(ctx context.Context, id, stageName, formatName string) (*ExportResult, error) {
	var result *ExportResult
	err := s.run(ctx, "export", id, func(ctx context.Context) (int, error) {
		stage := domain.Stage(stageName)
		if stage != domain.StageMerged && stage != domain.StagePivot {
			return 0, invalid(ErrInvalidStage, fmt.Errorf("unknown stage %q: expected merged or pivot", stageName))
		}
		format, err := exporter.ParseFormat(formatName)
		if err != nil {
			return 0, invalid(ErrInvalidFormat, err)
		}
		enc, err := exporter.New(format, s.exportOpts)
		if err != nil {
			return 0, invalid(ErrInvalidFormat, err)
		}

		session, err := s.store.Get(ctx, id)
		if err != nil {
			return 0, err
		}

		session.mu.Lock()
		table := session.filtered
		if stage == domain.StagePivot {
			table = session.pivot
		}
		session.mu.Unlock()

		if table == nil {
			if stage == domain.StagePivot {
				return 0, conflict("export pivot", ErrNoPivot)
			}
			return 0, conflict("export merged data", ErrNothingMerged)
		}

		var buf bytes.Buffer
		if err := enc.Export(&buf, table); err != nil {
			return 0, apperrors.NewExportError(fmt.Sprintf("error encoding %s as %s", stage, format), err)
		}

		result = &ExportResult{
			FileName:    exporter.FileName(stage, format),
			ContentType: enc.ContentType(),
			Rows:        table.Len(),
			Data:        buf.Bytes(),
		}
		return table.Len(), nil
	}, attribute.String("stage", stageName), attribute.String("format", formatName))
	return result, err
}

// run wraps one operation in a span, records its metrics and logs the outcome
func (s *MappingService) run(ctx context.Context, operation, sessionID string, fn func(ctx context.Context) (int, error), attrs ...attribute.KeyValue) error {
	attrs = append(attrs, attribute.String("session.id", sessionID))
	ctx, span := infrastructure.StartSpan(ctx, "mapping."+operation, attrs...)
	defer span.End()

	start := time.Now()
	rows, err := fn(ctx)
	duration := time.Since(start)
	infrastructure.RecordOperation(ctx, s.metrics, operation, duration, rows, err)

	if err != nil {
		infrastructure.RecordError(ctx, err)
		level := slog.LevelWarn
		if isInternal(err) {
			level = slog.LevelError
		}
		s.logger.Log(ctx, level, "operation failed",
			slog.String("operation", operation),
			slog.String("session_id", sessionID),
			slog.String("error_type", string(apperrors.TypeOf(err))),
			slog.String("error", err.Error()),
			slog.Duration("duration", duration))
		return err
	}

	s.logger.DebugContext(ctx, "operation completed",
		slog.String("operation", operation),
		slog.String("session_id", sessionID),
		slog.Int("rows", rows),
		slog.Duration("duration", duration))
	return nil
}

func isInternal(err error) bool {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return true
	}
	return appErr.Type == apperrors.ErrTypeExport || appErr.Type == apperrors.ErrTypeConfig
}

// uniqueColumns drops repeated names, keeping first occurrences
func uniqueColumns(columns []string) []string {
	seen := make(map[string]struct{}, len(columns))
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
