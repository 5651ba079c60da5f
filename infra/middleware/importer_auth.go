package middleware

import (
	"strings"

	"drive_import_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// AdminAuth validates an HS256 bearer token on administrative routes.
// The token's sub claim is exposed as "admin_subject" on the context.
// An empty secret disables the check, which only makes sense in
// development.
func AdminAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}

		auth := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(auth, "Bearer ") {
			return apperr.Unauthorized("missing bearer token")
		}
		raw := strings.TrimPrefix(auth, "Bearer ")

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			return apperr.Unauthorized("invalid token")
		}

		if sub, _ := claims.GetSubject(); sub != "" {
			c.Locals("admin_subject", sub)
		}
		return c.Next()
	}
}
