package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/ticket-enrichment/pkg/util/errorutil"
)

// RequireUser ensures an authenticated end-user is present.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required").WithKey("auth.unauthenticated")
		}
		return c.Next()
	}
}
