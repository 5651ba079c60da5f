// Package auth implements the OAuth token lifecycle for Drive access.
package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"drive_import_server/core/domain"
	"drive_import_server/core/port/in"
	"drive_import_server/core/port/out"
	"drive_import_server/pkg/apperr"
	"drive_import_server/pkg/logger"

	"golang.org/x/oauth2"
)

const (
	// Exchange retries only fire when the provider returned no parseable
	// token at all; well-formed error responses fail immediately.
	exchangeMaxRetries = 4
	exchangeBackoff    = 500 * time.Millisecond

	driveScope = "https://www.googleapis.com/auth/drive"
)

// TokenManager owns the authorization-code exchange, refresh and revoke
// flows against the identity provider. It guarantees a valid access
// token to callers, refreshing and persisting transparently.
type TokenManager struct {
	repo        out.TokenRepository
	client      *http.Client
	defaults    *domain.Credentials
	revokeURI   string
	redirectURL string
	now         func() time.Time
	sleep       func(time.Duration)
}

// Option configures a TokenManager.
type Option func(*TokenManager)

// WithHTTPClient overrides the HTTP client used against the provider.
func WithHTTPClient(c *http.Client) Option {
	return func(m *TokenManager) { m.client = c }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(m *TokenManager) { m.now = now }
}

// WithSleep overrides the backoff sleeper. Used in tests.
func WithSleep(sleep func(time.Duration)) Option {
	return func(m *TokenManager) { m.sleep = sleep }
}

// NewTokenManager creates a TokenManager. defaults supplies the client
// credentials used for tenants that have none stored.
func NewTokenManager(repo out.TokenRepository, defaults *domain.Credentials, revokeURI, redirectURL string, opts ...Option) *TokenManager {
	m := &TokenManager{
		repo:        repo,
		client:      http.DefaultClient,
		defaults:    defaults,
		revokeURI:   revokeURI,
		redirectURL: redirectURL,
		now:         time.Now,
		sleep:       time.Sleep,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// credentials loads the tenant's stored client credentials, falling
// back to the service-wide defaults.
func (m *TokenManager) credentials(ctx context.Context, tenant domain.TenantContext) (*domain.Credentials, error) {
	creds, err := m.repo.GetCredentials(ctx, tenant)
	if err != nil {
		return nil, err
	}
	if creds.Complete() {
		return creds, nil
	}
	if m.defaults.Complete() {
		return m.defaults, nil
	}
	return nil, apperr.TokenUnavailable(tenant.Account).WithDetail("reason", "no client credentials configured")
}

// AuthorizeURL builds the provider consent URL for the tenant.
func (m *TokenManager) AuthorizeURL(ctx context.Context, tenant domain.TenantContext, state string) (string, error) {
	creds, err := m.credentials(ctx, tenant)
	if err != nil {
		return "", err
	}
	cfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  m.redirectURL,
		Scopes:       []string{driveScope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  creds.AuthURI,
			TokenURL: creds.TokenURI,
		},
	}
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// tokenResponse is the provider's wire format for grant responses.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// postGrant posts a form-encoded grant request and parses the response.
// A nil response with a nil error means the provider returned nothing
// parseable (transport failure or empty body).
func (m *TokenManager) postGrant(ctx context.Context, endpoint string, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		logger.WithError(err).Warn("token endpoint unreachable")
		return nil, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil || len(body) == 0 {
		logger.Warn("token endpoint returned empty body (status %d)", resp.StatusCode)
		return nil, nil
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		logger.Warn("token endpoint returned unparseable body (status %d)", resp.StatusCode)
		return nil, nil
	}
	return &tr, nil
}

// ExchangeCode trades an authorization code for a token. Up to
// exchangeMaxRetries extra attempts with linear backoff are made, but
// only when the provider handed back no token object at all.
func (m *TokenManager) ExchangeCode(ctx context.Context, tenant domain.TenantContext, code string) (*domain.Token, error) {
	creds, err := m.credentials(ctx, tenant)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"code":          {code},
		"client_id":     {creds.ClientID},
		"client_secret": {creds.ClientSecret},
		"redirect_uri":  {m.redirectURL},
		"grant_type":    {"authorization_code"},
	}

	var tr *tokenResponse
	for attempt := 0; ; attempt++ {
		tr, err = m.postGrant(ctx, creds.TokenURI, form)
		if err != nil {
			return nil, apperr.ExchangeFailed(err)
		}
		if tr != nil {
			break
		}
		if attempt >= exchangeMaxRetries {
			return nil, apperr.ExchangeFailed(fmt.Errorf("no token after %d attempts", attempt+1))
		}
		m.sleep(exchangeBackoff * time.Duration(attempt+1))
	}

	if tr.Error != "" || tr.AccessToken == "" {
		return nil, apperr.ExchangeFailed(fmt.Errorf("provider rejected code: %s %s", tr.Error, tr.ErrorDescription))
	}

	token := &domain.Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		ExpiresIn:    tr.ExpiresIn,
		Scope:        tr.Scope,
	}
	token.StampExpiry(m.now())

	if err := m.repo.SaveToken(ctx, tenant, token); err != nil {
		// The caller still gets the token; the next run re-authorizes.
		logger.WithError(err).WithAccount(tenant.Account).Error("failed to persist exchanged token")
	}
	return token, nil
}

// Refresh performs a single refresh grant. No retry.
func (m *TokenManager) Refresh(ctx context.Context, tenant domain.TenantContext, refreshToken string) (*domain.Token, error) {
	if refreshToken == "" {
		return nil, apperr.RefreshFailed(fmt.Errorf("empty refresh token"))
	}

	creds, err := m.credentials(ctx, tenant)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"refresh_token": {refreshToken},
		"client_id":     {creds.ClientID},
		"client_secret": {creds.ClientSecret},
		"grant_type":    {"refresh_token"},
	}

	tr, err := m.postGrant(ctx, creds.TokenURI, form)
	if err != nil {
		return nil, apperr.RefreshFailed(err)
	}
	if tr == nil || tr.Error != "" || tr.AccessToken == "" {
		reason := "no response"
		if tr != nil {
			reason = fmt.Sprintf("%s %s", tr.Error, tr.ErrorDescription)
		}
		return nil, apperr.RefreshFailed(fmt.Errorf("provider rejected refresh: %s", reason))
	}

	return &domain.Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		ExpiresIn:    tr.ExpiresIn,
		Scope:        tr.Scope,
	}, nil
}

// GetValidToken returns a usable token for the tenant, refreshing when
// expired. When the refresh fails the expired token is handed back with
// stale=true rather than failing the call: call sites tolerate a
// possibly invalid token and surface provider 401s upward.
func (m *TokenManager) GetValidToken(ctx context.Context, tenant domain.TenantContext) (*domain.Token, bool, error) {
	stored, err := m.repo.GetToken(ctx, tenant)
	if err != nil {
		return nil, false, err
	}
	if stored == nil || stored.AccessToken == "" {
		return nil, false, apperr.TokenUnavailable(tenant.Account)
	}

	now := m.now()
	if stored.Valid(now) {
		return stored, false, nil
	}

	refreshed, err := m.Refresh(ctx, tenant, stored.RefreshToken)
	if err != nil {
		logger.WithError(err).WithAccount(tenant.Account).Warn("refresh failed, reusing stale token")
		return stored, true, nil
	}

	refreshed.InheritRefreshToken(stored)
	refreshed.StampExpiry(m.now())

	if err := m.repo.SaveToken(ctx, tenant, refreshed); err != nil {
		logger.WithError(err).WithAccount(tenant.Account).Error("failed to persist refreshed token")
	}
	return refreshed, false, nil
}

// Revoke invalidates the upstream grant. The stored token record is not
// deleted; callers also invalidate the tenant's folder-id cache.
func (m *TokenManager) Revoke(ctx context.Context, tenant domain.TenantContext) (bool, error) {
	stored, err := m.repo.GetToken(ctx, tenant)
	if err != nil {
		return false, err
	}
	if stored == nil || stored.AccessToken == "" {
		logger.WithAccount(tenant.Account).Info("revoke skipped, no access token stored")
		return true, nil
	}

	endpoint := m.revokeURI + "?token=" + url.QueryEscape(stored.AccessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return false, apperr.UpstreamFailure("identity provider", 0, err.Error())
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok {
		logger.WithAccount(tenant.Account).Warn("revoke rejected upstream (status %d)", resp.StatusCode)
	}
	return ok, nil
}

// Ensure TokenManager implements in.TokenService
var _ in.TokenService = (*TokenManager)(nil)
