package domain

import "time"

// Well-known folder names under the account root.
const (
	FolderNew   = "New"
	FolderDone  = "Done"
	FolderError = "Error"
)

// FileSummary is the subset of Drive file metadata the pipeline reads.
type FileSummary struct {
	ID       string
	Name     string
	MimeType string
}

// FolderIDs caches the well-known folder ids for a tenant. Invalidated
// when the upstream folder structure changes, e.g. after a revoke.
type FolderIDs struct {
	NewFolderID   string `json:"newFolderId"`
	DoneFolderID  string `json:"doneFolderId"`
	ErrorFolderID string `json:"errorFolderId"`
}

func (f *FolderIDs) Complete() bool {
	return f != nil && f.NewFolderID != "" && f.DoneFolderID != "" && f.ErrorFolderID != ""
}

// WatchExpiration records when the change-notification subscription on
// a watched folder expires. Read before every subscription attempt to
// avoid redundant re-subscriptions.
type WatchExpiration struct {
	FolderID  string    `json:"folderId"`
	ExpiresAt time.Time `json:"expiresAt"`
}
