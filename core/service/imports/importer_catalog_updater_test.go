package imports

import (
	"context"
	"errors"
	"sync"
	"testing"

	"drive_import_server/core/domain"
	"drive_import_server/pkg/apperr"
)

// fakeCatalog is an in-memory out.CatalogPort.
type fakeCatalog struct {
	mu sync.Mutex

	skuByRef     map[string]string
	productByRef map[string]string
	skusByProd   map[string][]string
	failSkus     map[string]bool

	updated []string
}

func (c *fakeCatalog) GetSkuIDByRefID(ctx context.Context, t domain.TenantContext, refID string) (string, error) {
	return c.skuByRef[refID], nil
}

func (c *fakeCatalog) GetProductIDByRefID(ctx context.Context, t domain.TenantContext, refID string) (string, error) {
	return c.productByRef[refID], nil
}

func (c *fakeCatalog) GetSkuIDsByProductID(ctx context.Context, t domain.TenantContext, productID string) ([]string, error) {
	return c.skusByProd[productID], nil
}

func (c *fakeCatalog) UpdateSkuImage(ctx context.Context, t domain.TenantContext, skuID string, image domain.SkuImage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSkus[skuID] {
		return errors.New("upstream rejected image")
	}
	c.updated = append(c.updated, skuID)
	return nil
}

func (c *fakeCatalog) updatedSkus() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.updated...)
}

func TestResolve(t *testing.T) {
	catalog := &fakeCatalog{
		skuByRef:     map[string]string{"SREF": "77"},
		productByRef: map[string]string{"PREF": "900"},
		skusByProd:   map[string][]string{"900": {"A", "B"}, "901": {"C"}},
	}
	u := NewCatalogUpdater(catalog, 2)
	tenant := domain.NewTenantContext("acme")

	tests := []struct {
		name    string
		idType  domain.IdentifierType
		id      string
		want    []string
		wantErr bool
	}{
		{"sku id is direct", domain.IdentifierSkuID, "42", []string{"42"}, false},
		{"sku ref resolves once", domain.IdentifierSkuRefID, "SREF", []string{"77"}, false},
		{"product ref enumerates skus", domain.IdentifierProductRefID, "PREF", []string{"A", "B"}, false},
		{"product id enumerates skus", domain.IdentifierProductID, "901", []string{"C"}, false},
		{"unknown sku ref", domain.IdentifierSkuRefID, "NOPE", nil, true},
		{"unknown product ref", domain.IdentifierProductRefID, "NOPE", nil, true},
		{"product without skus", domain.IdentifierProductID, "999", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := u.Resolve(context.Background(), tenant, tt.idType, tt.id)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				if !apperr.IsCode(err, apperr.CodeUnresolvedIdentifier) {
					t.Errorf("expected UNRESOLVED_IDENTIFIER, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestUpdateAllAggregatesWithAnd(t *testing.T) {
	catalog := &fakeCatalog{
		productByRef: map[string]string{"REF1": "10"},
		skusByProd:   map[string][]string{"10": {"A", "B"}},
		failSkus:     map[string]bool{"B": true},
	}
	u := NewCatalogUpdater(catalog, 2)
	tenant := domain.NewTenantContext("acme")

	parsed := &domain.ParsedFilename{
		IdentifierType:  domain.IdentifierProductRefID,
		IdentifierValue: "REF1",
		ImageName:       "Front",
		ImageLabel:      "Main",
	}

	ok, skuIDs, results, err := u.ImportFile(context.Background(), tenant, parsed, "https://cdn.example.com/f1")
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if ok {
		t.Error("one failing SKU must fail the whole file")
	}
	if len(skuIDs) != 2 {
		t.Fatalf("resolved skus = %v", skuIDs)
	}

	// A's update still happened; there is no compensation.
	updated := catalog.updatedSkus()
	if len(updated) != 1 || updated[0] != "A" {
		t.Errorf("updated skus = %v, want [A]", updated)
	}

	byID := map[string]domain.SkuUpdateResult{}
	for _, r := range results {
		byID[r.SkuID] = r
	}
	if !byID["A"].Updated {
		t.Error("A should report updated")
	}
	if byID["B"].Updated || byID["B"].Error == "" {
		t.Errorf("B should report a failure, got %+v", byID["B"])
	}
}

func TestUpdateAllAllSucceed(t *testing.T) {
	catalog := &fakeCatalog{
		skusByProd: map[string][]string{"10": {"A", "B", "C"}},
	}
	u := NewCatalogUpdater(catalog, 2)
	tenant := domain.NewTenantContext("acme")

	ok, results := u.UpdateAll(context.Background(), tenant, []string{"A", "B", "C"}, domain.SkuImage{Name: "Front"})
	if !ok {
		t.Error("all updates succeeded but aggregate is false")
	}
	if len(results) != 3 {
		t.Fatalf("results = %v", results)
	}
	for _, r := range results {
		if !r.Updated {
			t.Errorf("sku %s not updated", r.SkuID)
		}
	}
}
