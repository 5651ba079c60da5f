package out

import (
	"context"

	"drive_import_server/core/domain"
)

// CatalogPort is the catalog API surface the import pipeline consumes.
type CatalogPort interface {
	// GetSkuIDByRefID resolves a SKU reference to its id. Empty result
	// with nil error means the reference is unknown.
	GetSkuIDByRefID(ctx context.Context, tenant domain.TenantContext, refID string) (string, error)

	// GetProductIDByRefID resolves a product reference to its id.
	GetProductIDByRefID(ctx context.Context, tenant domain.TenantContext, refID string) (string, error)

	// GetSkuIDsByProductID enumerates every SKU of a product.
	GetSkuIDsByProductID(ctx context.Context, tenant domain.TenantContext, productID string) ([]string, error)

	// UpdateSkuImage attaches an image to a SKU.
	UpdateSkuImage(ctx context.Context, tenant domain.TenantContext, skuID string, image domain.SkuImage) error
}
