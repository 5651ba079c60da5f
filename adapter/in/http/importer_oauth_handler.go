package http

import (
	"drive_import_server/core/domain"
	"drive_import_server/core/port/in"
	"drive_import_server/core/port/out"
	"drive_import_server/pkg/apperr"
	"drive_import_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// OAuthHandler exposes the token lifecycle: authorization, callback,
// revocation and client credential management.
type OAuthHandler struct {
	tokens in.TokenService
	repo   out.TokenRepository
}

func NewOAuthHandler(tokens in.TokenService, repo out.TokenRepository) *OAuthHandler {
	return &OAuthHandler{tokens: tokens, repo: repo}
}

// Register registers the authenticated OAuth routes. The callback is
// registered separately since the provider calls it unauthenticated.
func (h *OAuthHandler) Register(router fiber.Router) {
	oauth := router.Group("/oauth/:account")

	oauth.Get("/authorize", h.Authorize)
	oauth.Post("/revoke", h.Revoke)
	oauth.Put("/credentials", h.SaveCredentials)
	oauth.Get("/status", h.Status)
}

// Authorize redirects the caller to the provider consent screen.
func (h *OAuthHandler) Authorize(c *fiber.Ctx) error {
	tenant, err := Tenant(c)
	if err != nil {
		return Fail(c, err)
	}

	state := c.Query("state", tenant.Account)
	url, err := h.tokens.AuthorizeURL(c.Context(), tenant, state)
	if err != nil {
		return Fail(c, err)
	}
	return c.Redirect(url, fiber.StatusTemporaryRedirect)
}

// Callback receives the provider redirect and exchanges the code.
func (h *OAuthHandler) Callback(c *fiber.Ctx) error {
	tenant, err := Tenant(c)
	if err != nil {
		return Fail(c, err)
	}

	if errParam := c.Query("error"); errParam != "" {
		return Fail(c, apperr.BadRequest("authorization denied: "+errParam))
	}
	code := c.Query("code")
	if code == "" {
		return Fail(c, apperr.BadRequest("missing authorization code"))
	}

	token, err := h.tokens.ExchangeCode(c.Context(), tenant, code)
	if err != nil {
		return Fail(c, err)
	}

	logger.WithAccount(tenant.Account).Info("authorization completed")
	return OK(c, fiber.Map{
		"authorized": true,
		"expires_at": token.ExpiresAt,
	})
}

// Revoke invalidates the upstream grant and drops the folder-id cache
// so the next run re-bootstraps against a fresh authorization.
func (h *OAuthHandler) Revoke(c *fiber.Ctx) error {
	tenant, err := Tenant(c)
	if err != nil {
		return Fail(c, err)
	}

	revoked, err := h.tokens.Revoke(c.Context(), tenant)
	if err != nil {
		return Fail(c, err)
	}
	if err := h.repo.ClearFolderIDs(c.Context(), tenant); err != nil {
		logger.WithError(err).WithAccount(tenant.Account).Warn("failed to clear folder cache after revoke")
	}
	return OK(c, fiber.Map{"revoked": revoked})
}

// SaveCredentials stores the tenant's OAuth client configuration.
func (h *OAuthHandler) SaveCredentials(c *fiber.Ctx) error {
	tenant, err := Tenant(c)
	if err != nil {
		return Fail(c, err)
	}

	var creds domain.Credentials
	if err := c.BodyParser(&creds); err != nil {
		return Fail(c, apperr.BadRequest("invalid credentials payload"))
	}
	if !creds.Complete() {
		return Fail(c, apperr.BadRequest("clientId, clientSecret and tokenUri are required"))
	}

	if err := h.repo.SaveCredentials(c.Context(), tenant, &creds); err != nil {
		return Fail(c, err)
	}
	return OK(c, fiber.Map{"saved": true})
}

// Status reports whether the tenant currently holds a usable token.
func (h *OAuthHandler) Status(c *fiber.Ctx) error {
	tenant, err := Tenant(c)
	if err != nil {
		return Fail(c, err)
	}

	token, stale, err := h.tokens.GetValidToken(c.Context(), tenant)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeTokenUnavailable) {
			return OK(c, fiber.Map{"authorized": false})
		}
		return Fail(c, err)
	}
	return OK(c, fiber.Map{
		"authorized": true,
		"stale":      stale,
		"expires_at": token.ExpiresAt,
	})
}
