// Package persistence implements the repository ports: OAuth state in
// the blob store, the per-file audit trail in Postgres.
package persistence

import (
	"context"

	"drive_import_server/core/domain"
	"drive_import_server/core/port/out"
)

// Blob store layout for per-tenant OAuth state.
const (
	stateBucket    = "drive-import"
	credentialsKey = "credentials.json"
	tokenKey       = "token.json"
	foldersKey     = "folders.json"
	watchKeyPrefix = "watch-"
)

// TokenAdapter persists per-tenant OAuth state as blob store documents.
// Missing documents come back as nil with a nil error.
type TokenAdapter struct {
	store out.BlobStore
}

func NewTokenAdapter(store out.BlobStore) *TokenAdapter {
	return &TokenAdapter{store: store}
}

func (a *TokenAdapter) GetCredentials(ctx context.Context, tenant domain.TenantContext) (*domain.Credentials, error) {
	var creds domain.Credentials
	found, err := a.store.GetJSON(ctx, tenant, stateBucket, credentialsKey, &creds)
	if err != nil || !found {
		return nil, err
	}
	return &creds, nil
}

func (a *TokenAdapter) SaveCredentials(ctx context.Context, tenant domain.TenantContext, creds *domain.Credentials) error {
	return a.store.SaveJSON(ctx, tenant, stateBucket, credentialsKey, creds)
}

func (a *TokenAdapter) GetToken(ctx context.Context, tenant domain.TenantContext) (*domain.Token, error) {
	var token domain.Token
	found, err := a.store.GetJSON(ctx, tenant, stateBucket, tokenKey, &token)
	if err != nil || !found {
		return nil, err
	}
	return &token, nil
}

func (a *TokenAdapter) SaveToken(ctx context.Context, tenant domain.TenantContext, token *domain.Token) error {
	return a.store.SaveJSON(ctx, tenant, stateBucket, tokenKey, token)
}

func (a *TokenAdapter) GetWatchExpiration(ctx context.Context, tenant domain.TenantContext, folderID string) (*domain.WatchExpiration, error) {
	var watch domain.WatchExpiration
	found, err := a.store.GetJSON(ctx, tenant, stateBucket, watchKeyPrefix+folderID+".json", &watch)
	if err != nil || !found {
		return nil, err
	}
	return &watch, nil
}

func (a *TokenAdapter) SaveWatchExpiration(ctx context.Context, tenant domain.TenantContext, watch *domain.WatchExpiration) error {
	return a.store.SaveJSON(ctx, tenant, stateBucket, watchKeyPrefix+watch.FolderID+".json", watch)
}

func (a *TokenAdapter) GetFolderIDs(ctx context.Context, tenant domain.TenantContext) (*domain.FolderIDs, error) {
	var ids domain.FolderIDs
	found, err := a.store.GetJSON(ctx, tenant, stateBucket, foldersKey, &ids)
	if err != nil || !found {
		return nil, err
	}
	return &ids, nil
}

func (a *TokenAdapter) SaveFolderIDs(ctx context.Context, tenant domain.TenantContext, ids *domain.FolderIDs) error {
	return a.store.SaveJSON(ctx, tenant, stateBucket, foldersKey, ids)
}

// ClearFolderIDs drops the cached folder ids by overwriting the
// document with an empty record. The blob store has no delete verb on
// this surface, and an incomplete record triggers a re-bootstrap.
func (a *TokenAdapter) ClearFolderIDs(ctx context.Context, tenant domain.TenantContext) error {
	return a.store.SaveJSON(ctx, tenant, stateBucket, foldersKey, &domain.FolderIDs{})
}

// Ensure TokenAdapter implements out.TokenRepository
var _ out.TokenRepository = (*TokenAdapter)(nil)
