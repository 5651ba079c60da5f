// Package in defines the driving ports of the import service.
package in

import (
	"context"

	"drive_import_server/core/domain"
)

// TokenService manages the OAuth credential lifecycle for a tenant.
type TokenService interface {
	// AuthorizeURL builds the provider consent URL for the tenant.
	AuthorizeURL(ctx context.Context, tenant domain.TenantContext, state string) (string, error)

	// ExchangeCode trades an authorization code for a token and
	// persists it.
	ExchangeCode(ctx context.Context, tenant domain.TenantContext, code string) (*domain.Token, error)

	// GetValidToken returns a usable token, refreshing when expired.
	// stale is true when the refresh failed and the expired token is
	// handed back as a degraded result.
	GetValidToken(ctx context.Context, tenant domain.TenantContext) (token *domain.Token, stale bool, err error)

	// Revoke invalidates the upstream grant. The stored token record is
	// kept; callers also invalidate the tenant's folder-id cache.
	Revoke(ctx context.Context, tenant domain.TenantContext) (bool, error)
}
