package imports

import (
	"context"
	"sort"

	"drive_import_server/core/domain"
	"drive_import_server/core/port/out"
	"drive_import_server/pkg/apperr"
	"drive_import_server/pkg/logger"
)

// CatalogUpdater resolves a filename identifier to concrete SKU ids and
// pushes the image to each of them.
type CatalogUpdater struct {
	catalog out.CatalogPort
	workers int
}

// NewCatalogUpdater creates a CatalogUpdater. workers bounds the
// concurrency of the per-SKU fan-out.
func NewCatalogUpdater(catalog out.CatalogPort, workers int) *CatalogUpdater {
	if workers < 1 {
		workers = 1
	}
	return &CatalogUpdater{catalog: catalog, workers: workers}
}

// Resolve maps an identifier to one or more SKU ids.
func (u *CatalogUpdater) Resolve(ctx context.Context, tenant domain.TenantContext, idType domain.IdentifierType, id string) ([]string, error) {
	switch idType {
	case domain.IdentifierSkuID:
		return []string{id}, nil

	case domain.IdentifierSkuRefID:
		skuID, err := u.catalog.GetSkuIDByRefID(ctx, tenant, id)
		if err != nil {
			return nil, err
		}
		if skuID == "" {
			return nil, apperr.UnresolvedIdentifier(string(idType), id)
		}
		return []string{skuID}, nil

	case domain.IdentifierProductRefID:
		productID, err := u.catalog.GetProductIDByRefID(ctx, tenant, id)
		if err != nil {
			return nil, err
		}
		if productID == "" {
			return nil, apperr.UnresolvedIdentifier(string(idType), id)
		}
		return u.skusOfProduct(ctx, tenant, idType, id, productID)

	case domain.IdentifierProductID:
		return u.skusOfProduct(ctx, tenant, idType, id, id)
	}
	return nil, apperr.UnresolvedIdentifier(string(idType), id)
}

func (u *CatalogUpdater) skusOfProduct(ctx context.Context, tenant domain.TenantContext, idType domain.IdentifierType, id, productID string) ([]string, error) {
	skuIDs, err := u.catalog.GetSkuIDsByProductID(ctx, tenant, productID)
	if err != nil {
		return nil, err
	}
	if len(skuIDs) == 0 {
		return nil, apperr.UnresolvedIdentifier(string(idType), id)
	}
	return skuIDs, nil
}

// UpdateAll pushes the image to every resolved SKU. Updates run with
// bounded concurrency and one failure never cancels in-flight siblings.
// Overall success is the logical AND across all SKUs; partial successes
// are kept in the per-SKU results (no rollback is attempted).
func (u *CatalogUpdater) UpdateAll(ctx context.Context, tenant domain.TenantContext, skuIDs []string, image domain.SkuImage) (bool, []domain.SkuUpdateResult) {
	results := make([]domain.SkuUpdateResult, len(skuIDs))
	sem := make(chan struct{}, u.workers)
	done := make(chan int, len(skuIDs))

	for i, skuID := range skuIDs {
		go func(idx int, sku string) {
			sem <- struct{}{}
			defer func() { <-sem }()

			err := u.catalog.UpdateSkuImage(ctx, tenant, sku, image)
			res := domain.SkuUpdateResult{SkuID: sku, Updated: err == nil}
			if err != nil {
				res.Error = err.Error()
				logger.WithError(err).WithAccount(tenant.Account).Warn("sku image update failed for %s", sku)
			}
			results[idx] = res
			done <- idx
		}(i, skuID)
	}

	for range skuIDs {
		<-done
	}

	allOK := true
	for _, res := range results {
		if !res.Updated {
			allOK = false
		}
	}
	return allOK, results
}

// ImportFile resolves the parsed filename and fans the image out to
// every target SKU.
func (u *CatalogUpdater) ImportFile(ctx context.Context, tenant domain.TenantContext, parsed *domain.ParsedFilename, imageURL string) (bool, []string, []domain.SkuUpdateResult, error) {
	skuIDs, err := u.Resolve(ctx, tenant, parsed.IdentifierType, parsed.IdentifierValue)
	if err != nil {
		return false, nil, nil, err
	}
	sort.Strings(skuIDs)

	image := domain.SkuImage{
		IsMain: parsed.IsMain,
		Label:  parsed.ImageLabel,
		Name:   parsed.ImageName,
		Text:   parsed.ImageName,
		URL:    imageURL,
	}
	ok, results := u.UpdateAll(ctx, tenant, skuIDs, image)
	return ok, skuIDs, results, nil
}
