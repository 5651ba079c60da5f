package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"drive_import_server/core/domain"
	"drive_import_server/core/port/in"
	"drive_import_server/core/port/out"
	"drive_import_server/pkg/apperr"
	"drive_import_server/pkg/logger"

	"github.com/google/uuid"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	mimeTypeFolder = "application/vnd.google-apps.folder"

	channelType = "web_hook"
)

// Adapter implements out.DrivePort on the Drive v3 API. Every call
// checks the tenant's token first; an unusable token fails fast with
// AUTH_UNAVAILABLE before any Drive request goes out.
type Adapter struct {
	tokens in.TokenService
}

func NewAdapter(tokens in.TokenService) *Adapter {
	return &Adapter{tokens: tokens}
}

// service builds a per-tenant Drive client. A stale token is accepted:
// the upstream call either works or surfaces the auth failure itself.
func (a *Adapter) service(ctx context.Context, tenant domain.TenantContext) (*drive.Service, error) {
	_, stale, err := a.tokens.GetValidToken(ctx, tenant)
	if err != nil {
		return nil, apperr.AuthUnavailable(err)
	}
	if stale {
		logger.WithAccount(tenant.Account).Warn("using stale access token for drive call")
	}

	svc, err := drive.NewService(ctx, option.WithTokenSource(newTokenSource(ctx, a.tokens, tenant)))
	if err != nil {
		return nil, apperr.AuthUnavailable(err)
	}
	return svc, nil
}

func wrapDriveError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return apperr.UpstreamFailure("drive", gerr.Code, gerr.Message)
	}
	return apperr.UpstreamFailure("drive", 0, err.Error())
}

// ListImagesInFolder returns the non-trashed image files directly under
// folderID.
func (a *Adapter) ListImagesInFolder(ctx context.Context, tenant domain.TenantContext, folderID string) ([]domain.FileSummary, error) {
	svc, err := a.service(ctx, tenant)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("'%s' in parents and mimeType contains 'image/' and trashed = false", folderID)
	var files []domain.FileSummary
	err = svc.Files.List().Q(query).Fields("*").Pages(ctx, func(page *drive.FileList) error {
		for _, f := range page.Files {
			files = append(files, domain.FileSummary{ID: f.Id, Name: f.Name, MimeType: f.MimeType})
		}
		return nil
	})
	if err != nil {
		return nil, wrapDriveError(err)
	}
	return files, nil
}

// ListFolders returns an id to name mapping of the tenant's non-trashed
// folders, restricted to the children of parentID when given.
func (a *Adapter) ListFolders(ctx context.Context, tenant domain.TenantContext, parentID string) (map[string]string, error) {
	svc, err := a.service(ctx, tenant)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("mimeType = '%s' and trashed = false", mimeTypeFolder)
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", parentID)
	}

	folders := make(map[string]string)
	err = svc.Files.List().Q(query).Fields("*").Pages(ctx, func(page *drive.FileList) error {
		for _, f := range page.Files {
			folders[f.Id] = f.Name
		}
		return nil
	})
	if err != nil {
		return nil, wrapDriveError(err)
	}
	return folders, nil
}

func (a *Adapter) CreateFolder(ctx context.Context, tenant domain.TenantContext, name, parentID string) (string, error) {
	svc, err := a.service(ctx, tenant)
	if err != nil {
		return "", err
	}

	folder := &drive.File{Name: name, MimeType: mimeTypeFolder}
	if parentID != "" {
		folder.Parents = []string{parentID}
	}
	created, err := svc.Files.Create(folder).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", wrapDriveError(err)
	}
	return created.Id, nil
}

// MoveFile reparents the file under newParentID. All current parents
// are removed so a file never ends up in two folders.
func (a *Adapter) MoveFile(ctx context.Context, tenant domain.TenantContext, fileID, newParentID string) error {
	svc, err := a.service(ctx, tenant)
	if err != nil {
		return err
	}

	current, err := svc.Files.Get(fileID).Fields("parents").Context(ctx).Do()
	if err != nil {
		return wrapDriveError(err)
	}

	call := svc.Files.Update(fileID, nil).AddParents(newParentID)
	if len(current.Parents) > 0 {
		call = call.RemoveParents(strings.Join(current.Parents, ","))
	}
	if _, err := call.Context(ctx).Do(); err != nil {
		return wrapDriveError(err)
	}
	return nil
}

func (a *Adapter) RenameFile(ctx context.Context, tenant domain.TenantContext, fileID, newName string) error {
	svc, err := a.service(ctx, tenant)
	if err != nil {
		return err
	}
	if _, err := svc.Files.Update(fileID, &drive.File{Name: newName}).Context(ctx).Do(); err != nil {
		return wrapDriveError(err)
	}
	return nil
}

// SetPermission grants anyone:reader so the catalog can fetch the image
// through the public download URL.
func (a *Adapter) SetPermission(ctx context.Context, tenant domain.TenantContext, fileID string) error {
	svc, err := a.service(ctx, tenant)
	if err != nil {
		return err
	}
	perm := &drive.Permission{Type: "anyone", Role: "reader"}
	if _, err := svc.Permissions.Create(fileID, perm).Context(ctx).Do(); err != nil {
		return wrapDriveError(err)
	}
	return nil
}

func (a *Adapter) GetFile(ctx context.Context, tenant domain.TenantContext, fileID string) ([]byte, error) {
	svc, err := a.service(ctx, tenant)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, wrapDriveError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.UpstreamFailure("drive", resp.StatusCode, err.Error())
	}
	return data, nil
}

// Watch registers a change-notification channel on the folder. The
// provider may shorten the requested expiration; the accepted one is
// returned.
func (a *Adapter) Watch(ctx context.Context, tenant domain.TenantContext, folderID, address string, expiration time.Time) (time.Time, error) {
	svc, err := a.service(ctx, tenant)
	if err != nil {
		return time.Time{}, err
	}

	channel := &drive.Channel{
		Id:         uuid.NewString(),
		Type:       channelType,
		Address:    address,
		Expiration: expiration.UnixMilli(),
	}
	accepted, err := svc.Files.Watch(folderID, channel).Context(ctx).Do()
	if err != nil {
		return time.Time{}, wrapDriveError(err)
	}

	expiresAt := expiration
	if accepted.Expiration > 0 {
		expiresAt = time.UnixMilli(accepted.Expiration)
	}
	logger.WithAccount(tenant.Account).Info("watch on folder %s renewed until %s", folderID, expiresAt.Format(time.RFC3339))
	return expiresAt, nil
}

// Ensure Adapter implements out.DrivePort
var _ out.DrivePort = (*Adapter)(nil)
