package in

import (
	"context"

	"drive_import_server/core/domain"
)

// ImportService drives the image-import pipeline.
type ImportService interface {
	// Run imports every image currently in the tenant's New folder.
	// Overlapping runs for the same tenant are rejected.
	Run(ctx context.Context, tenant domain.TenantContext) (*domain.ImportRunReport, error)

	// EnsureWatch (re)registers the change-notification subscription on
	// the New folder unless the current one is still comfortably valid.
	EnsureWatch(ctx context.Context, tenant domain.TenantContext, address string) error

	// ListRuns returns recent run reports for the tenant.
	ListRuns(ctx context.Context, tenant domain.TenantContext, limit int) ([]*domain.ImportRunReport, error)

	// GetRun returns one run report, or nil when unknown.
	GetRun(ctx context.Context, tenant domain.TenantContext, runID string) (*domain.ImportRunReport, error)
}
