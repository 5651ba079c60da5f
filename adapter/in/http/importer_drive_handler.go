package http

import (
	"drive_import_server/core/port/out"
	"drive_import_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// DriveHandler exposes direct folder and file operations for tooling
// and troubleshooting, bypassing the import pipeline.
type DriveHandler struct {
	drive out.DrivePort
}

func NewDriveHandler(drive out.DrivePort) *DriveHandler {
	return &DriveHandler{drive: drive}
}

// Register registers drive management routes.
func (h *DriveHandler) Register(router fiber.Router) {
	drive := router.Group("/drive/:account")

	drive.Get("/folders", h.ListFolders)
	drive.Post("/folders", h.CreateFolder)
	drive.Put("/folders/:folderId/name", h.RenameFolder)
	drive.Get("/files/:fileId/content", h.DownloadFile)
}

// ListFolders returns the tenant's folders, optionally under a parent.
func (h *DriveHandler) ListFolders(c *fiber.Ctx) error {
	tenant, err := Tenant(c)
	if err != nil {
		return Fail(c, err)
	}

	folders, err := h.drive.ListFolders(c.Context(), tenant, c.Query("parent"))
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, folders)
}

type createFolderRequest struct {
	Name     string `json:"name"`
	ParentID string `json:"parentId"`
}

// CreateFolder creates a folder and returns its id.
func (h *DriveHandler) CreateFolder(c *fiber.Ctx) error {
	tenant, err := Tenant(c)
	if err != nil {
		return Fail(c, err)
	}

	var req createFolderRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return Fail(c, apperr.BadRequest("folder name is required"))
	}

	id, err := h.drive.CreateFolder(c.Context(), tenant, req.Name, req.ParentID)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, fiber.Map{"id": id, "name": req.Name})
}

type renameFolderRequest struct {
	Name string `json:"name"`
}

// RenameFolder renames a folder.
func (h *DriveHandler) RenameFolder(c *fiber.Ctx) error {
	tenant, err := Tenant(c)
	if err != nil {
		return Fail(c, err)
	}

	var req renameFolderRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return Fail(c, apperr.BadRequest("folder name is required"))
	}

	if err := h.drive.RenameFile(c.Context(), tenant, c.Params("folderId"), req.Name); err != nil {
		return Fail(c, err)
	}
	return OK(c, fiber.Map{"renamed": true})
}

// DownloadFile streams the raw file bytes.
func (h *DriveHandler) DownloadFile(c *fiber.Ctx) error {
	tenant, err := Tenant(c)
	if err != nil {
		return Fail(c, err)
	}

	data, err := h.drive.GetFile(c.Context(), tenant, c.Params("fileId"))
	if err != nil {
		return Fail(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	return c.Send(data)
}
