// Package catalog adapts the commerce platform's catalog REST API to
// the pipeline's catalog port.
package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"drive_import_server/core/domain"
	"drive_import_server/core/port/out"
	"drive_import_server/pkg/apperr"
	"drive_import_server/pkg/httputil"
	"drive_import_server/pkg/logger"

	json "github.com/goccy/go-json"
	"github.com/sony/gobreaker"
)

const tenantHeader = "X-Tenant-Account"

// Adapter implements out.CatalogPort over the catalog REST endpoints.
// All requests go through a shared circuit breaker so a failing catalog
// does not absorb an entire fan-out.
type Adapter struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
}

// NewAdapter creates a catalog adapter. baseURL may contain the
// {account} placeholder, substituted per tenant.
func NewAdapter(baseURL string, httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = httputil.CatalogClient()
	}

	cbSettings := gobreaker.Settings{
		Name:        "catalog-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker %s: %s -> %s", name, from.String(), to.String())
		},
	}

	return &Adapter{
		baseURL: baseURL,
		client:  httpClient,
		cb:      gobreaker.NewCircuitBreaker(cbSettings),
	}
}

func (a *Adapter) endpoint(tenant domain.TenantContext, path string) string {
	base := strings.ReplaceAll(a.baseURL, "{account}", tenant.Account)
	return base + path
}

// do runs a request through the circuit breaker. Only transport errors
// and 5xx responses count as breaker failures; 4xx answers pass through.
func (a *Adapter) do(ctx context.Context, tenant domain.TenantContext, method, path string, payload []byte) (int, []byte, error) {
	result, err := a.cb.Execute(func() (any, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, a.endpoint(tenant, path), body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set(tenantHeader, tenant.Account)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if tenant.BearerToken != "" {
			req.Header.Set("Authorization", "Bearer "+tenant.BearerToken)
		}

		resp, err := a.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return nil, apperr.UpstreamFailure("catalog", resp.StatusCode, string(data))
		}
		return &catalogResponse{status: resp.StatusCode, body: data}, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return 0, nil, apperr.UpstreamFailure("catalog", http.StatusServiceUnavailable, err.Error())
		}
		if apperr.IsAppError(err) {
			return 0, nil, err
		}
		return 0, nil, apperr.UpstreamFailure("catalog", 0, err.Error())
	}
	resp := result.(*catalogResponse)
	return resp.status, resp.body, nil
}

type catalogResponse struct {
	status int
	body   []byte
}

// GetSkuIDByRefID resolves a SKU reference. An unknown reference is an
// empty id with a nil error.
func (a *Adapter) GetSkuIDByRefID(ctx context.Context, tenant domain.TenantContext, refID string) (string, error) {
	path := "/api/catalog_system/pvt/sku/stockkeepingunitidbyrefid/" + url.PathEscape(refID)
	status, body, err := a.do(ctx, tenant, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", nil
	}
	if status != http.StatusOK {
		return "", apperr.UpstreamFailure("catalog", status, string(body))
	}

	// The endpoint answers with a bare number, a quoted string or null.
	id := strings.Trim(strings.TrimSpace(string(body)), `"`)
	if id == "null" {
		return "", nil
	}
	return id, nil
}

// GetProductIDByRefID resolves a product reference to its id.
func (a *Adapter) GetProductIDByRefID(ctx context.Context, tenant domain.TenantContext, refID string) (string, error) {
	path := "/api/catalog_system/pvt/products/productgetbyrefid/" + url.PathEscape(refID)
	status, body, err := a.do(ctx, tenant, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", nil
	}
	if status != http.StatusOK {
		return "", apperr.UpstreamFailure("catalog", status, string(body))
	}

	var product struct {
		ID int64 `json:"Id"`
	}
	if err := json.Unmarshal(body, &product); err != nil {
		return "", apperr.Internal(fmt.Errorf("decoding product by ref %s: %w", refID, err))
	}
	if product.ID == 0 {
		return "", nil
	}
	return strconv.FormatInt(product.ID, 10), nil
}

// GetSkuIDsByProductID enumerates every SKU of a product.
func (a *Adapter) GetSkuIDsByProductID(ctx context.Context, tenant domain.TenantContext, productID string) ([]string, error) {
	path := "/api/catalog_system/pvt/sku/stockkeepingunitbyproductid/" + url.PathEscape(productID)
	status, body, err := a.do(ctx, tenant, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, apperr.UpstreamFailure("catalog", status, string(body))
	}

	var skus []struct {
		ID int64 `json:"Id"`
	}
	if err := json.Unmarshal(body, &skus); err != nil {
		return nil, apperr.Internal(fmt.Errorf("decoding skus of product %s: %w", productID, err))
	}
	ids := make([]string, 0, len(skus))
	for _, sku := range skus {
		ids = append(ids, strconv.FormatInt(sku.ID, 10))
	}
	return ids, nil
}

// UpdateSkuImage attaches the image to the SKU's file list.
func (a *Adapter) UpdateSkuImage(ctx context.Context, tenant domain.TenantContext, skuID string, image domain.SkuImage) error {
	payload, err := json.Marshal(image)
	if err != nil {
		return apperr.Internal(err)
	}

	path := "/api/catalog/pvt/stockkeepingunit/" + url.PathEscape(skuID) + "/file"
	status, body, err := a.do(ctx, tenant, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return apperr.UpstreamFailure("catalog", status, string(body))
	}
	return nil
}

// Ensure Adapter implements out.CatalogPort
var _ out.CatalogPort = (*Adapter)(nil)
