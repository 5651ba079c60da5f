package http

import (
	"fmt"

	"drive_import_server/core/port/in"
	"drive_import_server/core/port/out"
	"drive_import_server/pkg/apperr"
	"drive_import_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// Drive push-notification headers.
const (
	headerChannelID     = "X-Goog-Channel-ID"
	headerResourceState = "X-Goog-Resource-State"
)

// ImportHandler exposes import runs, run reports, the audit trail and
// the Drive notification endpoint.
type ImportHandler struct {
	imports in.ImportService
	history out.ImportHistoryRepository
}

func NewImportHandler(imports in.ImportService, history out.ImportHistoryRepository) *ImportHandler {
	return &ImportHandler{imports: imports, history: history}
}

// Register registers the authenticated import routes. The notification
// endpoint is registered separately since the storage provider calls it
// unauthenticated.
func (h *ImportHandler) Register(router fiber.Router) {
	imports := router.Group("/import/:account")

	imports.Post("/run", h.Run)
	imports.Get("/runs", h.ListRuns)
	imports.Get("/runs/:runId", h.GetRun)
	imports.Get("/history", h.History)
	imports.Post("/watch", h.Watch)
}

// Run triggers a synchronous import over the New folder.
func (h *ImportHandler) Run(c *fiber.Ctx) error {
	tenant, err := Tenant(c)
	if err != nil {
		return Fail(c, err)
	}

	report, err := h.imports.Run(c.Context(), tenant)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, report)
}

// ListRuns returns recent run reports.
func (h *ImportHandler) ListRuns(c *fiber.Ctx) error {
	tenant, err := Tenant(c)
	if err != nil {
		return Fail(c, err)
	}

	runs, err := h.imports.ListRuns(c.Context(), tenant, c.QueryInt("limit", 20))
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, runs)
}

// GetRun returns one run report.
func (h *ImportHandler) GetRun(c *fiber.Ctx) error {
	tenant, err := Tenant(c)
	if err != nil {
		return Fail(c, err)
	}

	report, err := h.imports.GetRun(c.Context(), tenant, c.Params("runId"))
	if err != nil {
		return Fail(c, err)
	}
	if report == nil {
		return Fail(c, apperr.NotFound("run report"))
	}
	return OK(c, report)
}

// History returns the per-file audit trail.
func (h *ImportHandler) History(c *fiber.Ctx) error {
	tenant, err := Tenant(c)
	if err != nil {
		return Fail(c, err)
	}

	if h.history == nil {
		return OK(c, []interface{}{})
	}
	entries, err := h.history.ListByAccount(c.Context(), tenant.Account, c.QueryInt("limit", 50))
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, entries)
}

// notificationAddress rebuilds this service's public notification URL
// from the inbound request, honoring proxy forwarding headers.
func notificationAddress(c *fiber.Ctx) string {
	host := c.Get("X-Forwarded-Host")
	if host == "" {
		host = c.Hostname()
	}
	return fmt.Sprintf("https://%s/api/v1/import/%s/notifications", host, c.Params("account"))
}

// Watch subscribes the tenant's New folder to change notifications.
func (h *ImportHandler) Watch(c *fiber.Ctx) error {
	tenant, err := Tenant(c)
	if err != nil {
		return Fail(c, err)
	}

	if err := h.imports.EnsureWatch(c.Context(), tenant, notificationAddress(c)); err != nil {
		return Fail(c, err)
	}
	return OK(c, fiber.Map{"watching": true})
}

// Notification receives Drive push notifications. A change on the New
// folder triggers an import run and renews the subscription when it is
// close to expiry. The sync message sent on subscription is ignored.
func (h *ImportHandler) Notification(c *fiber.Ctx) error {
	tenant, err := Tenant(c)
	if err != nil {
		return Fail(c, err)
	}

	state := c.Get(headerResourceState)
	channelID := c.Get(headerChannelID)
	logger.WithAccount(tenant.Account).Debug("drive notification: state=%s channel=%s", state, channelID)

	if state == "" || state == "sync" {
		return c.SendStatus(fiber.StatusOK)
	}

	if err := h.imports.EnsureWatch(c.Context(), tenant, notificationAddress(c)); err != nil {
		logger.WithError(err).WithAccount(tenant.Account).Warn("watch renewal failed")
	}

	report, err := h.imports.Run(c.Context(), tenant)
	if err != nil {
		// A run already in flight picks the change up; acknowledge so
		// the provider does not retry the notification.
		logger.WithError(err).WithAccount(tenant.Account).Warn("notification-triggered run failed")
		return c.SendStatus(fiber.StatusOK)
	}

	logger.WithAccount(tenant.Account).Info("notification run %s: %d processed", report.ID, report.Processed)
	return c.SendStatus(fiber.StatusOK)
}
