package out

import (
	"context"

	"drive_import_server/core/domain"
)

// ImportReportRepository stores full run reports for later inspection.
type ImportReportRepository interface {
	SaveRun(ctx context.Context, report *domain.ImportRunReport) error
	GetRun(ctx context.Context, account, runID string) (*domain.ImportRunReport, error)
	ListRuns(ctx context.Context, account string, limit int) ([]*domain.ImportRunReport, error)
}
