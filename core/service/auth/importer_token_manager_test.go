package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"drive_import_server/core/domain"
	"drive_import_server/pkg/apperr"
)

// fakeTokenRepo is an in-memory out.TokenRepository.
type fakeTokenRepo struct {
	creds     *domain.Credentials
	token     *domain.Token
	watch     *domain.WatchExpiration
	folders   *domain.FolderIDs
	saveErr   error
	saveCalls int
}

func (r *fakeTokenRepo) GetCredentials(ctx context.Context, t domain.TenantContext) (*domain.Credentials, error) {
	return r.creds, nil
}

func (r *fakeTokenRepo) SaveCredentials(ctx context.Context, t domain.TenantContext, c *domain.Credentials) error {
	r.creds = c
	return nil
}

func (r *fakeTokenRepo) GetToken(ctx context.Context, t domain.TenantContext) (*domain.Token, error) {
	return r.token, nil
}

func (r *fakeTokenRepo) SaveToken(ctx context.Context, t domain.TenantContext, tok *domain.Token) error {
	r.saveCalls++
	if r.saveErr != nil {
		return r.saveErr
	}
	r.token = tok
	return nil
}

func (r *fakeTokenRepo) GetWatchExpiration(ctx context.Context, t domain.TenantContext, folderID string) (*domain.WatchExpiration, error) {
	return r.watch, nil
}

func (r *fakeTokenRepo) SaveWatchExpiration(ctx context.Context, t domain.TenantContext, w *domain.WatchExpiration) error {
	r.watch = w
	return nil
}

func (r *fakeTokenRepo) GetFolderIDs(ctx context.Context, t domain.TenantContext) (*domain.FolderIDs, error) {
	return r.folders, nil
}

func (r *fakeTokenRepo) SaveFolderIDs(ctx context.Context, t domain.TenantContext, ids *domain.FolderIDs) error {
	r.folders = ids
	return nil
}

func (r *fakeTokenRepo) ClearFolderIDs(ctx context.Context, t domain.TenantContext) error {
	r.folders = nil
	return nil
}

func testCreds(tokenURI string) *domain.Credentials {
	return &domain.Credentials{
		ClientID:     "client",
		ClientSecret: "secret",
		AuthURI:      "https://accounts.example.com/auth",
		TokenURI:     tokenURI,
	}
}

func newTestManager(repo *fakeTokenRepo, now time.Time) *TokenManager {
	return NewTokenManager(repo, nil, "https://accounts.example.com/revoke", "https://app.example.com/callback",
		WithClock(func() time.Time { return now }),
		WithSleep(func(time.Duration) {}),
	)
}

func TestGetValidTokenFreshNoNetwork(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"access_token":"new","expires_in":3600}`))
	}))
	defer srv.Close()

	repo := &fakeTokenRepo{
		creds: testCreds(srv.URL),
		token: &domain.Token{
			AccessToken:  "fresh",
			RefreshToken: "refresh",
			ExpiresAt:    now.Add(30 * time.Minute),
		},
	}
	m := newTestManager(repo, now)

	tok, stale, err := m.GetValidToken(context.Background(), domain.NewTenantContext("acme"))
	if err != nil {
		t.Fatalf("GetValidToken: %v", err)
	}
	if stale {
		t.Error("fresh token reported stale")
	}
	if tok.AccessToken != "fresh" {
		t.Errorf("token mutated: got %q", tok.AccessToken)
	}
	if calls.Load() != 0 {
		t.Errorf("expected zero network calls, got %d", calls.Load())
	}
}

func TestGetValidTokenMissing(t *testing.T) {
	repo := &fakeTokenRepo{creds: testCreds("http://unused")}
	m := newTestManager(repo, time.Now())

	_, _, err := m.GetValidToken(context.Background(), domain.NewTenantContext("acme"))
	if !apperr.IsCode(err, apperr.CodeTokenUnavailable) {
		t.Fatalf("expected TOKEN_UNAVAILABLE, got %v", err)
	}
}

func TestGetValidTokenRefreshesExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if got := r.FormValue("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		w.Write([]byte(`{"access_token":"refreshed","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	repo := &fakeTokenRepo{
		creds: testCreds(srv.URL),
		token: &domain.Token{
			AccessToken:  "old",
			RefreshToken: "keepme",
			ExpiresAt:    now.Add(-time.Minute),
		},
	}
	m := newTestManager(repo, now)

	tok, stale, err := m.GetValidToken(context.Background(), domain.NewTenantContext("acme"))
	if err != nil {
		t.Fatalf("GetValidToken: %v", err)
	}
	if stale {
		t.Error("refreshed token reported stale")
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly one refresh call, got %d", calls.Load())
	}
	if tok.AccessToken != "refreshed" {
		t.Errorf("access token = %q", tok.AccessToken)
	}
	// Provider omitted refresh_token: previous one must survive.
	if tok.RefreshToken != "keepme" {
		t.Errorf("refresh token = %q, want inherited %q", tok.RefreshToken, "keepme")
	}
	if want := now.Add(time.Hour); !tok.ExpiresAt.Equal(want) {
		t.Errorf("expires_at = %v, want %v", tok.ExpiresAt, want)
	}
	if repo.token.AccessToken != "refreshed" {
		t.Error("refreshed token not persisted")
	}
}

func TestGetValidTokenStaleOnRefreshFailure(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	repo := &fakeTokenRepo{
		creds: testCreds(srv.URL),
		token: &domain.Token{
			AccessToken:  "expired",
			RefreshToken: "dead",
			ExpiresAt:    now.Add(-time.Minute),
		},
	}
	m := newTestManager(repo, now)

	tok, stale, err := m.GetValidToken(context.Background(), domain.NewTenantContext("acme"))
	if err != nil {
		t.Fatalf("fail-open path returned error: %v", err)
	}
	if !stale {
		t.Error("expected stale=true when refresh fails")
	}
	if tok.AccessToken != "expired" {
		t.Errorf("expected stale token back, got %q", tok.AccessToken)
	}
}

func TestRefreshEmptyTokenNoCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	repo := &fakeTokenRepo{creds: testCreds(srv.URL)}
	m := newTestManager(repo, time.Now())

	_, err := m.Refresh(context.Background(), domain.NewTenantContext("acme"), "")
	if !apperr.IsCode(err, apperr.CodeRefreshFailed) {
		t.Fatalf("expected REFRESH_FAILED, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no network call for empty refresh token, got %d", calls.Load())
	}
}

func TestExchangeCodeRetriesOnEmptyBody(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n < 3 {
			// Nothing parseable: should trigger a retry.
			return
		}
		w.Write([]byte(`{"access_token":"granted","refresh_token":"r1","expires_in":3600}`))
	}))
	defer srv.Close()

	repo := &fakeTokenRepo{creds: testCreds(srv.URL)}
	m := newTestManager(repo, now)

	tok, err := m.ExchangeCode(context.Background(), domain.NewTenantContext("acme"), "code-123")
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
	if tok.AccessToken != "granted" {
		t.Errorf("access token = %q", tok.AccessToken)
	}
	if want := now.Add(time.Hour); !tok.ExpiresAt.Equal(want) {
		t.Errorf("expires_at = %v, want %v", tok.ExpiresAt, want)
	}
	if repo.token == nil || repo.token.AccessToken != "granted" {
		t.Error("exchanged token not persisted")
	}
}

func TestExchangeCodeGivesUpAfterFiveAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	repo := &fakeTokenRepo{creds: testCreds(srv.URL)}
	m := newTestManager(repo, time.Now())

	_, err := m.ExchangeCode(context.Background(), domain.NewTenantContext("acme"), "code-123")
	if !apperr.IsCode(err, apperr.CodeExchangeFailed) {
		t.Fatalf("expected EXCHANGE_FAILED, got %v", err)
	}
	if calls.Load() != 5 {
		t.Errorf("expected 5 attempts total, got %d", calls.Load())
	}
}

func TestExchangeCodeNoRetryOnErrorResponse(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"code expired"}`))
	}))
	defer srv.Close()

	repo := &fakeTokenRepo{creds: testCreds(srv.URL)}
	m := newTestManager(repo, time.Now())

	_, err := m.ExchangeCode(context.Background(), domain.NewTenantContext("acme"), "code-123")
	if !apperr.IsCode(err, apperr.CodeExchangeFailed) {
		t.Fatalf("expected EXCHANGE_FAILED, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("well-formed error response must not retry, got %d attempts", calls.Load())
	}
}

func TestExchangeCodePersistFailureNotEscalated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"granted","expires_in":3600}`))
	}))
	defer srv.Close()

	repo := &fakeTokenRepo{creds: testCreds(srv.URL), saveErr: context.DeadlineExceeded}
	m := newTestManager(repo, time.Now())

	tok, err := m.ExchangeCode(context.Background(), domain.NewTenantContext("acme"), "code-123")
	if err != nil {
		t.Fatalf("persistence failure must not escalate: %v", err)
	}
	if tok.AccessToken != "granted" {
		t.Errorf("access token = %q", tok.AccessToken)
	}
}

func TestRevokeSkipsWithoutAccessToken(t *testing.T) {
	repo := &fakeTokenRepo{
		creds: testCreds("http://unused"),
		token: &domain.Token{RefreshToken: "r"},
	}
	m := newTestManager(repo, time.Now())

	ok, err := m.Revoke(context.Background(), domain.NewTenantContext("acme"))
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if !ok {
		t.Error("empty-token revoke should be a no-op success")
	}
}

func TestRevokeReportsUpstreamFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "tok" {
			t.Errorf("token query = %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	repo := &fakeTokenRepo{
		creds: testCreds("http://unused"),
		token: &domain.Token{AccessToken: "tok"},
	}
	m := NewTokenManager(repo, nil, srv.URL, "https://app.example.com/callback",
		WithClock(time.Now), WithSleep(func(time.Duration) {}))

	ok, err := m.Revoke(context.Background(), domain.NewTenantContext("acme"))
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if !ok {
		t.Error("expected upstream success flag")
	}
	if repo.token == nil {
		t.Error("revoke must not delete the stored token record")
	}
}
