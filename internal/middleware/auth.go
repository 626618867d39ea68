package middleware

import (
	"fmt"

	"github.com/fited/stocktrack/internal/services"
	"github.com/fited/stocktrack/internal/types"
	"github.com/gofiber/fiber/v2"
)

// Auth validates the provider session cookie and stores the attributed
// user email in request locals for the audit trail.
func Auth(provider services.IdentityProvider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cookie := c.Cookies("cookie_session")
		if cookie == "" {
			return &types.CustomError{
				Code:    fiber.StatusForbidden,
				Message: "Session cookie \"cookie_session\" not found",
				Type:    "auth.session",
			}
		}

		session, err := provider.GetSession(c.UserContext(), cookie)
		if err != nil {
			return &types.CustomError{
				Code:    fiber.StatusForbidden,
				Message: fmt.Sprintf("Invalid session: %v", err),
				Type:    "auth.session",
			}
		}

		c.Locals("userEmail", session.UserEmail)

		return c.Next()
	}
}
