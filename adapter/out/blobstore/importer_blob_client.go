// Package blobstore reaches the platform's key/value blob backend over
// HTTP. Documents are JSON addressed by (account, bucket, key).
package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"drive_import_server/core/domain"
	"drive_import_server/core/port/out"
	"drive_import_server/pkg/apperr"
	"drive_import_server/pkg/httputil"

	json "github.com/goccy/go-json"
)

const tenantHeader = "X-Tenant-Account"

// Client implements out.BlobStore against the REST surface
// {base}/buckets/{account}/{bucket}/files/{key}.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a blob store client. httpClient may be nil, in
// which case the shared pooled client is used.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = httputil.BlobStoreClient()
	}
	return &Client{baseURL: baseURL, client: httpClient}
}

func (c *Client) fileURL(tenant domain.TenantContext, bucket, key string) string {
	return fmt.Sprintf("%s/buckets/%s/%s/files/%s",
		c.baseURL,
		url.PathEscape(tenant.Account),
		url.PathEscape(bucket),
		url.PathEscape(key),
	)
}

func (c *Client) decorate(req *http.Request, tenant domain.TenantContext) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set(tenantHeader, tenant.Account)
	if tenant.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+tenant.BearerToken)
	}
}

// GetJSON fetches a document into dest. A 404 means the document does
// not exist and reports found=false with a nil error.
func (c *Client) GetJSON(ctx context.Context, tenant domain.TenantContext, bucket, key string, dest any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fileURL(tenant, bucket, key), nil)
	if err != nil {
		return false, apperr.Internal(err)
	}
	c.decorate(req, tenant)

	resp, err := c.client.Do(req)
	if err != nil {
		return false, apperr.UpstreamFailure("blobstore", 0, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return false, apperr.UpstreamFailure("blobstore", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return false, apperr.Internal(fmt.Errorf("decoding blob %s/%s: %w", bucket, key, err))
	}
	return true, nil
}

// SaveJSON writes a document, replacing any previous version.
func (c *Client) SaveJSON(ctx context.Context, tenant domain.TenantContext, bucket, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return apperr.Internal(fmt.Errorf("encoding blob %s/%s: %w", bucket, key, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.fileURL(tenant, bucket, key), bytes.NewReader(payload))
	if err != nil {
		return apperr.Internal(err)
	}
	c.decorate(req, tenant)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return apperr.UpstreamFailure("blobstore", 0, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return apperr.UpstreamFailure("blobstore", resp.StatusCode, string(body))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Ensure Client implements out.BlobStore
var _ out.BlobStore = (*Client)(nil)
