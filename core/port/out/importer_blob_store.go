// Package out defines the driven ports of the import service.
package out

import (
	"context"

	"drive_import_server/core/domain"
)

// BlobStore is the generic key/value blob backend reached over HTTP.
// Documents are JSON, addressed by (tenant, bucket, key). A missing
// document is not an error: GetJSON reports found=false with a nil
// error. Writes are last-writer-wins.
type BlobStore interface {
	GetJSON(ctx context.Context, tenant domain.TenantContext, bucket, key string, dest any) (found bool, err error)
	SaveJSON(ctx context.Context, tenant domain.TenantContext, bucket, key string, value any) error
}
