// Package drive adapts the Google Drive v3 API to the pipeline's
// storage port.
package drive

import (
	"context"

	"drive_import_server/core/domain"
	"drive_import_server/core/port/in"

	"golang.org/x/oauth2"
)

// tenantTokenSource bridges the token manager into an oauth2.TokenSource
// so the generated API client can authenticate per tenant. A stale token
// is still handed to the client; the upstream call decides its fate.
type tenantTokenSource struct {
	ctx    context.Context
	tokens in.TokenService
	tenant domain.TenantContext
}

func newTokenSource(ctx context.Context, tokens in.TokenService, tenant domain.TenantContext) oauth2.TokenSource {
	return &tenantTokenSource{ctx: ctx, tokens: tokens, tenant: tenant}
}

func (s *tenantTokenSource) Token() (*oauth2.Token, error) {
	token, _, err := s.tokens.GetValidToken(s.ctx, s.tenant)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.ExpiresAt,
	}, nil
}
