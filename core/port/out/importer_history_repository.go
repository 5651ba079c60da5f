package out

import (
	"context"

	"drive_import_server/core/domain"
)

// ImportHistoryRepository keeps the per-file audit trail.
type ImportHistoryRepository interface {
	Record(ctx context.Context, entry *domain.ImportHistoryEntry) error
	ListByAccount(ctx context.Context, account string, limit int) ([]*domain.ImportHistoryEntry, error)
}
