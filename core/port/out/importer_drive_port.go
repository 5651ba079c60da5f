package out

import (
	"context"
	"time"

	"drive_import_server/core/domain"
)

// DrivePort wraps the remote file-storage API. Implementations obtain a
// token from the token manager before every call; when none is usable
// they fail with an AUTH_UNAVAILABLE error and perform no network call.
type DrivePort interface {
	// ListImagesInFolder returns the image files directly under folderID.
	ListImagesInFolder(ctx context.Context, tenant domain.TenantContext, folderID string) ([]domain.FileSummary, error)

	// ListFolders returns an id to name mapping of the non-trashed
	// folders, optionally restricted to the children of parentID.
	ListFolders(ctx context.Context, tenant domain.TenantContext, parentID string) (map[string]string, error)

	CreateFolder(ctx context.Context, tenant domain.TenantContext, name, parentID string) (string, error)

	// MoveFile reparents the file under newParentID, removing every
	// current parent (single-parent enforced).
	MoveFile(ctx context.Context, tenant domain.TenantContext, fileID, newParentID string) error

	RenameFile(ctx context.Context, tenant domain.TenantContext, fileID, newName string) error

	// SetPermission grants anyone:reader on the file.
	SetPermission(ctx context.Context, tenant domain.TenantContext, fileID string) error

	// GetFile downloads the raw file bytes.
	GetFile(ctx context.Context, tenant domain.TenantContext, fileID string) ([]byte, error)

	// Watch registers a change-notification channel on the resource and
	// returns the expiration the provider accepted.
	Watch(ctx context.Context, tenant domain.TenantContext, folderID, address string, expiration time.Time) (time.Time, error)
}
