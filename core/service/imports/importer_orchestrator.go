package imports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"drive_import_server/core/domain"
	"drive_import_server/core/port/in"
	"drive_import_server/core/port/out"
	"drive_import_server/pkg/apperr"
	"drive_import_server/pkg/logger"

	"github.com/google/uuid"
)

// Public download URL for a Drive file once anyone:reader is granted.
const driveFileURLFormat = "https://drive.google.com/uc?export=download&id=%s"

// OrchestratorConfig tunes an import run.
type OrchestratorConfig struct {
	LockTTL            time.Duration
	WatchRenewalWindow time.Duration
	WatchLifetime      time.Duration
}

// DefaultOrchestratorConfig returns the standard run settings.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		LockTTL:            10 * time.Minute,
		WatchRenewalWindow: time.Hour,
		WatchLifetime:      365 * 24 * time.Hour,
	}
}

// Orchestrator coordinates an import run: folder bootstrap, per-file
// parse + fan-out update, and relocation to Done or Error.
type Orchestrator struct {
	drive   out.DrivePort
	updater *CatalogUpdater
	repo    out.TokenRepository
	lock    out.ImportLock
	history out.ImportHistoryRepository
	reports out.ImportReportRepository
	cfg     OrchestratorConfig
	now     func() time.Time
}

// NewOrchestrator wires an Orchestrator. history and reports may be nil
// when auditing is disabled.
func NewOrchestrator(
	drive out.DrivePort,
	updater *CatalogUpdater,
	repo out.TokenRepository,
	lock out.ImportLock,
	history out.ImportHistoryRepository,
	reports out.ImportReportRepository,
	cfg OrchestratorConfig,
) *Orchestrator {
	return &Orchestrator{
		drive:   drive,
		updater: updater,
		repo:    repo,
		lock:    lock,
		history: history,
		reports: reports,
		cfg:     cfg,
		now:     time.Now,
	}
}

// WithClock overrides the time source. Used in tests.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// bootstrapFolders returns the tenant's New/Done/Error folder ids,
// using the cached record when present and otherwise locating or
// creating the folders under the account root.
func (o *Orchestrator) bootstrapFolders(ctx context.Context, tenant domain.TenantContext) (*domain.FolderIDs, error) {
	cached, err := o.repo.GetFolderIDs(ctx, tenant)
	if err != nil {
		return nil, err
	}
	if cached.Complete() {
		return cached, nil
	}

	folders, err := o.drive.ListFolders(ctx, tenant, "")
	if err != nil {
		return nil, err
	}

	byName := make(map[string]string, len(folders))
	for id, name := range folders {
		byName[name] = id
	}

	ids := &domain.FolderIDs{}
	for _, f := range []struct {
		name string
		dest *string
	}{
		{domain.FolderNew, &ids.NewFolderID},
		{domain.FolderDone, &ids.DoneFolderID},
		{domain.FolderError, &ids.ErrorFolderID},
	} {
		if id, ok := byName[f.name]; ok {
			*f.dest = id
			continue
		}
		created, err := o.drive.CreateFolder(ctx, tenant, f.name, "")
		if err != nil {
			return nil, err
		}
		logger.WithAccount(tenant.Account).Info("created missing %s folder (%s)", f.name, created)
		*f.dest = created
	}

	if err := o.repo.SaveFolderIDs(ctx, tenant, ids); err != nil {
		logger.WithError(err).WithAccount(tenant.Account).Warn("failed to cache folder ids")
	}
	return ids, nil
}

// importFile processes one file from the New folder and reports where
// it ended up.
func (o *Orchestrator) importFile(ctx context.Context, tenant domain.TenantContext, file domain.FileSummary) domain.ImportOutcome {
	outcome := domain.ImportOutcome{FileID: file.ID, FileName: file.Name}

	parsed, err := ParseFilename(file.Name)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	if err := o.drive.SetPermission(ctx, tenant, file.ID); err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	url := fmt.Sprintf(driveFileURLFormat, file.ID)
	ok, skuIDs, results, err := o.updater.ImportFile(ctx, tenant, parsed, url)
	outcome.ResolvedSkuIDs = skuIDs
	outcome.SkuResults = results
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	if !ok {
		outcome.Error = "one or more SKU updates failed"
		return outcome
	}

	outcome.Success = true
	return outcome
}

func (o *Orchestrator) recordOutcome(ctx context.Context, tenant domain.TenantContext, runID string, outcome domain.ImportOutcome) {
	if o.history == nil {
		return
	}
	entry := &domain.ImportHistoryEntry{
		Account:      tenant.Account,
		RunID:        runID,
		FileID:       outcome.FileID,
		FileName:     outcome.FileName,
		SkuIDs:       strings.Join(outcome.ResolvedSkuIDs, ","),
		Success:      outcome.Success,
		ErrorMessage: outcome.Error,
		CreatedAt:    o.now(),
	}
	if parsed, err := ParseFilename(outcome.FileName); err == nil {
		entry.IdentifierType = string(parsed.IdentifierType)
		entry.IdentifierValue = parsed.IdentifierValue
	}
	if err := o.history.Record(ctx, entry); err != nil {
		logger.WithError(err).WithAccount(tenant.Account).Warn("failed to record import history")
	}
}

// Run imports every image currently in the New folder. Files are
// processed sequentially; each ends up in Done or Error.
func (o *Orchestrator) Run(ctx context.Context, tenant domain.TenantContext) (*domain.ImportRunReport, error) {
	startedAt := o.now()
	acquired, err := o.lock.Acquire(ctx, tenant.Account, startedAt, o.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, apperr.ImportLocked(tenant.Account)
	}
	defer func() {
		if err := o.lock.Release(context.WithoutCancel(ctx), tenant.Account); err != nil {
			logger.WithError(err).WithAccount(tenant.Account).Warn("failed to release import lock")
		}
	}()

	folders, err := o.bootstrapFolders(ctx, tenant)
	if err != nil {
		return nil, err
	}

	files, err := o.drive.ListImagesInFolder(ctx, tenant, folders.NewFolderID)
	if err != nil {
		return nil, err
	}

	report := &domain.ImportRunReport{
		ID:        uuid.NewString(),
		Account:   tenant.Account,
		StartedAt: startedAt,
	}

	for _, file := range files {
		outcome := o.importFile(ctx, tenant, file)

		dest := folders.ErrorFolderID
		if outcome.Success {
			dest = folders.DoneFolderID
		}
		if err := o.drive.MoveFile(ctx, tenant, file.ID, dest); err != nil {
			logger.WithError(err).WithAccount(tenant.Account).Error("failed to move file %s", file.ID)
			if outcome.Error == "" {
				outcome.Error = err.Error()
			}
		}

		report.Outcomes = append(report.Outcomes, outcome)
		report.Processed++
		if outcome.Success {
			report.Succeeded++
		} else {
			report.Failed++
			logger.WithAccount(tenant.Account).Warn("import failed for %s: %s", file.Name, outcome.Error)
		}
		o.recordOutcome(ctx, tenant, report.ID, outcome)
	}

	report.FinishedAt = o.now()
	if o.reports != nil {
		if err := o.reports.SaveRun(ctx, report); err != nil {
			logger.WithError(err).WithAccount(tenant.Account).Warn("failed to save run report")
		}
	}

	logger.WithAccount(tenant.Account).Info("import run %s done: %d processed, %d succeeded, %d failed",
		report.ID, report.Processed, report.Succeeded, report.Failed)
	return report, nil
}

// EnsureWatch (re)registers the change-notification subscription on the
// New folder. A subscription whose expiry is still more than the
// renewal window away is left alone, so repeated notifications do not
// re-subscribe on every request.
func (o *Orchestrator) EnsureWatch(ctx context.Context, tenant domain.TenantContext, address string) error {
	folders, err := o.bootstrapFolders(ctx, tenant)
	if err != nil {
		return err
	}

	current, err := o.repo.GetWatchExpiration(ctx, tenant, folders.NewFolderID)
	if err != nil {
		return err
	}
	now := o.now()
	if current != nil && current.ExpiresAt.After(now.Add(o.cfg.WatchRenewalWindow)) {
		return nil
	}

	expiresAt, err := o.drive.Watch(ctx, tenant, folders.NewFolderID, address, now.Add(o.cfg.WatchLifetime))
	if err != nil {
		return err
	}

	watch := &domain.WatchExpiration{FolderID: folders.NewFolderID, ExpiresAt: expiresAt}
	if err := o.repo.SaveWatchExpiration(ctx, tenant, watch); err != nil {
		logger.WithError(err).WithAccount(tenant.Account).Warn("failed to persist watch expiration")
	}
	return nil
}

// ListRuns returns recent run reports for the tenant.
func (o *Orchestrator) ListRuns(ctx context.Context, tenant domain.TenantContext, limit int) ([]*domain.ImportRunReport, error) {
	if o.reports == nil {
		return nil, nil
	}
	return o.reports.ListRuns(ctx, tenant.Account, limit)
}

// GetRun returns one run report, or nil when unknown.
func (o *Orchestrator) GetRun(ctx context.Context, tenant domain.TenantContext, runID string) (*domain.ImportRunReport, error) {
	if o.reports == nil {
		return nil, nil
	}
	return o.reports.GetRun(ctx, tenant.Account, runID)
}

// Ensure Orchestrator implements in.ImportService
var _ in.ImportService = (*Orchestrator)(nil)
