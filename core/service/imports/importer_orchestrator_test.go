package imports

import (
	"context"
	"sync"
	"testing"
	"time"

	"drive_import_server/core/domain"
	"drive_import_server/pkg/apperr"
)

// fakeDrive is an in-memory out.DrivePort tracking moves and watches.
type fakeDrive struct {
	mu sync.Mutex

	folders    map[string]string // id -> name
	files      []domain.FileSummary
	nextID     int
	moves      map[string]string // fileID -> destination folder id
	watchCalls int
	permitted  map[string]bool
}

func newFakeDrive(files ...domain.FileSummary) *fakeDrive {
	return &fakeDrive{
		folders:   map[string]string{},
		files:     files,
		moves:     map[string]string{},
		permitted: map[string]bool{},
	}
}

func (d *fakeDrive) ListImagesInFolder(ctx context.Context, t domain.TenantContext, folderID string) ([]domain.FileSummary, error) {
	return d.files, nil
}

func (d *fakeDrive) ListFolders(ctx context.Context, t domain.TenantContext, parentID string) (map[string]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string, len(d.folders))
	for id, name := range d.folders {
		out[id] = name
	}
	return out, nil
}

func (d *fakeDrive) CreateFolder(ctx context.Context, t domain.TenantContext, name, parentID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := "folder-" + name
	d.folders[id] = name
	return id, nil
}

func (d *fakeDrive) MoveFile(ctx context.Context, t domain.TenantContext, fileID, newParentID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.moves[fileID] = newParentID
	return nil
}

func (d *fakeDrive) RenameFile(ctx context.Context, t domain.TenantContext, fileID, newName string) error {
	return nil
}

func (d *fakeDrive) SetPermission(ctx context.Context, t domain.TenantContext, fileID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.permitted[fileID] = true
	return nil
}

func (d *fakeDrive) GetFile(ctx context.Context, t domain.TenantContext, fileID string) ([]byte, error) {
	return nil, nil
}

func (d *fakeDrive) Watch(ctx context.Context, t domain.TenantContext, folderID, address string, expiration time.Time) (time.Time, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.watchCalls++
	return expiration, nil
}

// fakeStateRepo implements out.TokenRepository for orchestrator tests.
type fakeStateRepo struct {
	folderIDs *domain.FolderIDs
	watches   map[string]*domain.WatchExpiration
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{watches: map[string]*domain.WatchExpiration{}}
}

func (r *fakeStateRepo) GetCredentials(ctx context.Context, t domain.TenantContext) (*domain.Credentials, error) {
	return nil, nil
}

func (r *fakeStateRepo) SaveCredentials(ctx context.Context, t domain.TenantContext, c *domain.Credentials) error {
	return nil
}

func (r *fakeStateRepo) GetToken(ctx context.Context, t domain.TenantContext) (*domain.Token, error) {
	return nil, nil
}

func (r *fakeStateRepo) SaveToken(ctx context.Context, t domain.TenantContext, tok *domain.Token) error {
	return nil
}

func (r *fakeStateRepo) GetWatchExpiration(ctx context.Context, t domain.TenantContext, folderID string) (*domain.WatchExpiration, error) {
	return r.watches[folderID], nil
}

func (r *fakeStateRepo) SaveWatchExpiration(ctx context.Context, t domain.TenantContext, w *domain.WatchExpiration) error {
	r.watches[w.FolderID] = w
	return nil
}

func (r *fakeStateRepo) GetFolderIDs(ctx context.Context, t domain.TenantContext) (*domain.FolderIDs, error) {
	return r.folderIDs, nil
}

func (r *fakeStateRepo) SaveFolderIDs(ctx context.Context, t domain.TenantContext, ids *domain.FolderIDs) error {
	r.folderIDs = ids
	return nil
}

func (r *fakeStateRepo) ClearFolderIDs(ctx context.Context, t domain.TenantContext) error {
	r.folderIDs = nil
	return nil
}

// fakeLock is an in-memory out.ImportLock.
type fakeLock struct {
	mu       sync.Mutex
	held     map[string]time.Time
	acquires int
	releases int
}

func newFakeLock() *fakeLock {
	return &fakeLock{held: map[string]time.Time{}}
}

func (l *fakeLock) Acquire(ctx context.Context, account string, startedAt time.Time, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquires++
	if _, ok := l.held[account]; ok {
		return false, nil
	}
	l.held[account] = startedAt
	return true, nil
}

func (l *fakeLock) Release(ctx context.Context, account string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releases++
	delete(l.held, account)
	return nil
}

func (l *fakeLock) Check(ctx context.Context, account string) (time.Time, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	at, ok := l.held[account]
	return at, ok, nil
}

// fakeHistory records audit entries in memory.
type fakeHistory struct {
	mu      sync.Mutex
	entries []*domain.ImportHistoryEntry
}

func (h *fakeHistory) Record(ctx context.Context, e *domain.ImportHistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	return nil
}

func (h *fakeHistory) ListByAccount(ctx context.Context, account string, limit int) ([]*domain.ImportHistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries, nil
}

// fakeReports stores run reports in memory.
type fakeReports struct {
	mu   sync.Mutex
	runs []*domain.ImportRunReport
}

func (r *fakeReports) SaveRun(ctx context.Context, report *domain.ImportRunReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, report)
	return nil
}

func (r *fakeReports) GetRun(ctx context.Context, account, runID string) (*domain.ImportRunReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.ID == runID {
			return run, nil
		}
	}
	return nil, nil
}

func (r *fakeReports) ListRuns(ctx context.Context, account string, limit int) ([]*domain.ImportRunReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs, nil
}

type orchestratorFixture struct {
	orch    *Orchestrator
	drive   *fakeDrive
	repo    *fakeStateRepo
	lock    *fakeLock
	history *fakeHistory
	reports *fakeReports
	catalog *fakeCatalog
}

func newOrchestratorFixture(files ...domain.FileSummary) *orchestratorFixture {
	f := &orchestratorFixture{
		drive:   newFakeDrive(files...),
		repo:    newFakeStateRepo(),
		lock:    newFakeLock(),
		history: &fakeHistory{},
		reports: &fakeReports{},
		catalog: &fakeCatalog{
			skuByRef:     map[string]string{},
			productByRef: map[string]string{},
			skusByProd:   map[string][]string{},
			failSkus:     map[string]bool{},
		},
	}
	f.orch = NewOrchestrator(
		f.drive,
		NewCatalogUpdater(f.catalog, 2),
		f.repo,
		f.lock,
		f.history,
		f.reports,
		DefaultOrchestratorConfig(),
	)
	return f
}

func TestRunBootstrapsMissingFolders(t *testing.T) {
	f := newOrchestratorFixture()
	tenant := domain.NewTenantContext("acme")

	report, err := f.orch.Run(context.Background(), tenant)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Processed != 0 {
		t.Errorf("processed = %d, want 0", report.Processed)
	}

	if !f.repo.folderIDs.Complete() {
		t.Fatalf("folder ids not cached: %+v", f.repo.folderIDs)
	}
	for _, name := range []string{domain.FolderNew, domain.FolderDone, domain.FolderError} {
		if f.drive.folders["folder-"+name] != name {
			t.Errorf("folder %s not created", name)
		}
	}
}

func TestRunReusesCachedFolders(t *testing.T) {
	f := newOrchestratorFixture()
	f.repo.folderIDs = &domain.FolderIDs{NewFolderID: "n", DoneFolderID: "d", ErrorFolderID: "e"}
	tenant := domain.NewTenantContext("acme")

	if _, err := f.orch.Run(context.Background(), tenant); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.drive.folders) != 0 {
		t.Errorf("folders created despite cache: %v", f.drive.folders)
	}
}

func TestRunRoutesFilesByOutcome(t *testing.T) {
	f := newOrchestratorFixture(
		domain.FileSummary{ID: "f-good", Name: "SkuId,42,Front,Main.jpg"},
		domain.FileSummary{ID: "f-bad", Name: "not-a-convention.jpg"},
		domain.FileSummary{ID: "f-unres", Name: "SkuRefId,NOPE,Front,Main.jpg"},
	)
	f.repo.folderIDs = &domain.FolderIDs{NewFolderID: "n", DoneFolderID: "d", ErrorFolderID: "e"}
	tenant := domain.NewTenantContext("acme")

	report, err := f.orch.Run(context.Background(), tenant)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Processed != 3 || report.Succeeded != 1 || report.Failed != 2 {
		t.Errorf("report counters = %d/%d/%d", report.Processed, report.Succeeded, report.Failed)
	}
	if f.drive.moves["f-good"] != "d" {
		t.Errorf("good file moved to %q, want Done", f.drive.moves["f-good"])
	}
	if f.drive.moves["f-bad"] != "e" {
		t.Errorf("malformed file moved to %q, want Error", f.drive.moves["f-bad"])
	}
	if f.drive.moves["f-unres"] != "e" {
		t.Errorf("unresolved file moved to %q, want Error", f.drive.moves["f-unres"])
	}

	// Malformed name fails before the file is shared publicly.
	if f.drive.permitted["f-bad"] {
		t.Error("malformed file should not get a public permission")
	}
	if !f.drive.permitted["f-good"] {
		t.Error("imported file should get a public permission")
	}

	updated := f.catalog.updatedSkus()
	if len(updated) != 1 || updated[0] != "42" {
		t.Errorf("updated skus = %v, want [42]", updated)
	}

	if len(f.history.entries) != 3 {
		t.Errorf("history entries = %d, want 3", len(f.history.entries))
	}
	if len(f.reports.runs) != 1 {
		t.Fatalf("saved runs = %d, want 1", len(f.reports.runs))
	}
}

func TestRunPartialFanoutRoutesToError(t *testing.T) {
	f := newOrchestratorFixture(
		domain.FileSummary{ID: "f1", Name: "ProductId,10,Front,Main.jpg"},
	)
	f.repo.folderIDs = &domain.FolderIDs{NewFolderID: "n", DoneFolderID: "d", ErrorFolderID: "e"}
	f.catalog.skusByProd["10"] = []string{"A", "B"}
	f.catalog.failSkus["B"] = true
	tenant := domain.NewTenantContext("acme")

	report, err := f.orch.Run(context.Background(), tenant)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed != 1 {
		t.Errorf("failed = %d, want 1", report.Failed)
	}
	if f.drive.moves["f1"] != "e" {
		t.Errorf("partially imported file moved to %q, want Error", f.drive.moves["f1"])
	}
	// The succeeding leg is not rolled back.
	updated := f.catalog.updatedSkus()
	if len(updated) != 1 || updated[0] != "A" {
		t.Errorf("updated skus = %v, want [A]", updated)
	}
}

func TestRunRejectsOverlappingRun(t *testing.T) {
	f := newOrchestratorFixture()
	f.repo.folderIDs = &domain.FolderIDs{NewFolderID: "n", DoneFolderID: "d", ErrorFolderID: "e"}
	tenant := domain.NewTenantContext("acme")

	f.lock.held["acme"] = time.Now()

	_, err := f.orch.Run(context.Background(), tenant)
	if err == nil {
		t.Fatal("expected overlapping run to be rejected")
	}
	if !apperr.IsCode(err, apperr.CodeImportLocked) {
		t.Errorf("expected IMPORT_LOCKED, got %v", err)
	}
}

func TestRunReleasesLock(t *testing.T) {
	f := newOrchestratorFixture()
	f.repo.folderIDs = &domain.FolderIDs{NewFolderID: "n", DoneFolderID: "d", ErrorFolderID: "e"}
	tenant := domain.NewTenantContext("acme")

	if _, err := f.orch.Run(context.Background(), tenant); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.lock.releases != 1 {
		t.Errorf("releases = %d, want 1", f.lock.releases)
	}
	if _, held, _ := f.lock.Check(context.Background(), "acme"); held {
		t.Error("lock still held after run")
	}
}

func TestEnsureWatchSkipsWhenStillValid(t *testing.T) {
	f := newOrchestratorFixture()
	f.repo.folderIDs = &domain.FolderIDs{NewFolderID: "n", DoneFolderID: "d", ErrorFolderID: "e"}
	tenant := domain.NewTenantContext("acme")

	if err := f.orch.EnsureWatch(context.Background(), tenant, "https://example.com/hook"); err != nil {
		t.Fatalf("EnsureWatch: %v", err)
	}
	if f.drive.watchCalls != 1 {
		t.Fatalf("watch calls = %d, want 1", f.drive.watchCalls)
	}

	// A second call inside the renewal window must not re-subscribe.
	if err := f.orch.EnsureWatch(context.Background(), tenant, "https://example.com/hook"); err != nil {
		t.Fatalf("EnsureWatch: %v", err)
	}
	if f.drive.watchCalls != 1 {
		t.Errorf("watch calls = %d, want 1 after revisit", f.drive.watchCalls)
	}
}

func TestEnsureWatchRenewsNearExpiry(t *testing.T) {
	f := newOrchestratorFixture()
	f.repo.folderIDs = &domain.FolderIDs{NewFolderID: "n", DoneFolderID: "d", ErrorFolderID: "e"}
	tenant := domain.NewTenantContext("acme")

	// Expires in 30 minutes, inside the one-hour renewal window.
	f.repo.watches["n"] = &domain.WatchExpiration{
		FolderID:  "n",
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}

	if err := f.orch.EnsureWatch(context.Background(), tenant, "https://example.com/hook"); err != nil {
		t.Fatalf("EnsureWatch: %v", err)
	}
	if f.drive.watchCalls != 1 {
		t.Errorf("watch calls = %d, want 1", f.drive.watchCalls)
	}
	if got := f.repo.watches["n"]; got == nil || !got.ExpiresAt.After(time.Now().Add(time.Hour)) {
		t.Errorf("renewed expiration not persisted: %+v", got)
	}
}
