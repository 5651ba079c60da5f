// Package http exposes the import service over REST.
package http

import (
	"strings"
	"time"

	"drive_import_server/core/domain"
	"drive_import_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// APIResponse is the standard response envelope.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// APIError is the standard error payload.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Tenant builds the tenant context from the :account path parameter,
// forwarding the inbound bearer credential when one was supplied.
func Tenant(c *fiber.Ctx) (domain.TenantContext, error) {
	account := c.Params("account")
	if account == "" {
		return domain.TenantContext{}, apperr.BadRequest("missing account")
	}

	tenant := domain.NewTenantContext(account)
	if auth := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		tenant = tenant.WithBearer(strings.TrimPrefix(auth, "Bearer "))
	}
	return tenant, nil
}

// OK sends a success envelope.
func OK(c *fiber.Ctx, data interface{}) error {
	requestID, _ := c.Locals("request_id").(string)
	return c.JSON(APIResponse{
		Success:   true,
		Data:      data,
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Fail sends an error envelope derived from err. AppErrors keep their
// code and status; anything else becomes a 500.
func Fail(c *fiber.Ctx, err error) error {
	requestID, _ := c.Locals("request_id").(string)

	status := apperr.GetHTTPStatus(err)
	ae := apperr.AsAppError(err)
	apiErr := &APIError{Code: ae.Code, Message: ae.Message, Details: ae.Details}

	return c.Status(status).JSON(APIResponse{
		Success:   false,
		Error:     apiErr,
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
