package middleware

import (
	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/familyhub-auth/internal/domain"
	"github.com/arturoeanton/familyhub-auth/internal/session"
)

// RequireSession rejects requests while nobody is logged in and injects
// the current user into the request locals.
func RequireSession(store *session.Store) fiber.Handler {
	return func(c fiber.Ctx) error {
		st := store.State()
		if !st.IsAuthenticated || st.User == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "login required",
			})
		}
		c.Locals("user", st.User)
		return c.Next()
	}
}

// RequireFamilyAdmin must run after RequireSession.
func RequireFamilyAdmin() fiber.Handler {
	return func(c fiber.Ctx) error {
		u := GetUser(c)
		if u == nil || !u.IsFamilyAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "only family administrators can do this",
			})
		}
		return c.Next()
	}
}

// GetUser extracts the user injected by RequireSession.
func GetUser(c fiber.Ctx) *domain.User {
	u, ok := c.Locals("user").(*domain.User)
	if !ok {
		return nil
	}
	return u
}
