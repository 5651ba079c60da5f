package out

import (
	"context"

	"drive_import_server/core/domain"
)

// TokenRepository persists the per-tenant OAuth state: client
// credentials, the current token pair, the watch expiration and the
// folder-id cache. Missing records come back as nil with a nil error.
type TokenRepository interface {
	GetCredentials(ctx context.Context, tenant domain.TenantContext) (*domain.Credentials, error)
	SaveCredentials(ctx context.Context, tenant domain.TenantContext, creds *domain.Credentials) error

	GetToken(ctx context.Context, tenant domain.TenantContext) (*domain.Token, error)
	SaveToken(ctx context.Context, tenant domain.TenantContext, token *domain.Token) error

	GetWatchExpiration(ctx context.Context, tenant domain.TenantContext, folderID string) (*domain.WatchExpiration, error)
	SaveWatchExpiration(ctx context.Context, tenant domain.TenantContext, watch *domain.WatchExpiration) error

	GetFolderIDs(ctx context.Context, tenant domain.TenantContext) (*domain.FolderIDs, error)
	SaveFolderIDs(ctx context.Context, tenant domain.TenantContext, ids *domain.FolderIDs) error
	ClearFolderIDs(ctx context.Context, tenant domain.TenantContext) error
}
