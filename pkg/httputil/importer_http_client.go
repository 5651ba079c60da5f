// Package httputil provides pooled HTTP clients tuned per upstream.
package httputil

import (
	"context"
	"net"
	"net/http"
	"time"
)

// ClientConfig holds HTTP client configuration.
type ClientConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration

	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
	ResponseTimeout     time.Duration

	DisableKeepAlives bool
	KeepAliveInterval time.Duration
}

// DefaultClientConfig returns the default configuration.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ResponseTimeout:     30 * time.Second,
		KeepAliveInterval:   30 * time.Second,
	}
}

// IdentityClientConfig returns configuration for the OAuth identity provider.
// Token exchanges are short round trips, so timeouts stay tight.
func IdentityClientConfig() *ClientConfig {
	return &ClientConfig{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     60 * time.Second,
		DialTimeout:         5 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
		ResponseTimeout:     15 * time.Second,
		KeepAliveInterval:   30 * time.Second,
	}
}

// BlobStoreClientConfig returns configuration for the key/value blob store.
func BlobStoreClientConfig() *ClientConfig {
	return &ClientConfig{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         5 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
		ResponseTimeout:     10 * time.Second,
		KeepAliveInterval:   30 * time.Second,
	}
}

// CatalogClientConfig returns configuration for the catalog API.
// SKU fan-out updates run concurrently, so allow more connections per host.
func CatalogClientConfig() *ClientConfig {
	return &ClientConfig{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 50,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     120 * time.Second,
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ResponseTimeout:     30 * time.Second,
		KeepAliveInterval:   30 * time.Second,
	}
}

// NewClient creates an HTTP client with connection pooling.
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.KeepAliveInterval,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		DisableKeepAlives:     cfg.DisableKeepAlives,
		ForceAttemptHTTP2:     true,
		ResponseHeaderTimeout: cfg.ResponseTimeout,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.ResponseTimeout,
	}
}

var (
	defaultClient   *http.Client
	identityClient  *http.Client
	blobStoreClient *http.Client
	catalogClient   *http.Client
)

func init() {
	defaultClient = NewClient(DefaultClientConfig())
	identityClient = NewClient(IdentityClientConfig())
	blobStoreClient = NewClient(BlobStoreClientConfig())
	catalogClient = NewClient(CatalogClientConfig())
}

// DefaultClient returns the shared default HTTP client.
func DefaultClient() *http.Client { return defaultClient }

// IdentityClient returns the shared client for the identity provider.
func IdentityClient() *http.Client { return identityClient }

// BlobStoreClient returns the shared client for the blob store.
func BlobStoreClient() *http.Client { return blobStoreClient }

// CatalogClient returns the shared client for the catalog API.
func CatalogClient() *http.Client { return catalogClient }

// DoWithContext executes an HTTP request with context.
func DoWithContext(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
	if client == nil {
		client = defaultClient
	}
	return client.Do(req.WithContext(ctx))
}
