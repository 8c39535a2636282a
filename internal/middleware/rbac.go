package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/coursetrack-api/internal/utils"
)

// RequireRole admits only authenticated users holding one of the roles. A missing
// role answers 401 and a disallowed one 403; both point the client at the login page
// and neither reaches the next handler.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized := strings.ToLower(strings.TrimSpace(role))
		if normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		role := CurrentRole(c)
		if role == "" {
			return unauthorized(c, "authentication required")
		}
		if _, ok := allowed[role]; !ok {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", fiber.Map{"redirect": LoginPath})
		}
		return c.Next()
	}
}

// CurrentRole returns the authenticated role or "".
func CurrentRole(c *fiber.Ctx) string {
	role, _ := c.Locals(LocalUserRole).(string)
	return strings.ToLower(strings.TrimSpace(role))
}

// CurrentUserID returns the authenticated user id or 0.
func CurrentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals(LocalUserID).(uint)
	return id
}
