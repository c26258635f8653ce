package http

import (
	"context"

	"csvmapper/internal/services"
	"csvmapper/pkg/contracts/domain"
)

// MappingServiceInterface defines the session workflow served by MappingHandler
type MappingServiceInterface interface {
	CreateSession(ctx context.Context) (services.SessionView, error)
	GetSession(ctx context.Context, id string) (services.SessionView, error)
	ResetSession(ctx context.Context, id string) (services.SessionView, error)
	DeleteSession(ctx context.Context, id string) error

	UploadFile(ctx context.Context, id, slot, fileName string, data []byte) (domain.UploadInfo, error)
	Columns(ctx context.Context, id, table string) ([]string, error)

	Merge(ctx context.Context, id string, req domain.MergeRequest) (*services.MergeView, error)
	SelectColumns(ctx context.Context, id string, columns []string) (*services.MergeView, error)
	GeneratePivot(ctx context.Context, id string, req domain.PivotRequest) (*services.PivotView, error)
	Export(ctx context.Context, id, stage, format string) (*services.ExportResult, error)
}
