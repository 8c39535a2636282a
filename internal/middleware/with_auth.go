package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/coursetrack-api/internal/models"
	"github.com/noah-isme/coursetrack-api/internal/utils"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	// Roles that may call the handler for any subject. Empty admits every role.
	Roles []string
	// SelfParam names the route parameter holding the subject user id. Callers whose
	// id matches it are admitted even when their role is not listed in Roles.
	SelfParam string
}

// WithAuth wraps a single handler with an ownership-aware guard, for routes where a
// student may touch only their own data while staff may touch anyone's.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	allowed := make(map[string]struct{}, len(opts.Roles))
	for _, role := range opts.Roles {
		allowed[models.NormalizeRole(role)] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		userID := CurrentUserID(c)
		if userID == 0 {
			return unauthorized(c, "authentication required")
		}

		if len(allowed) == 0 {
			return handler(c)
		}
		if _, ok := allowed[CurrentRole(c)]; ok {
			return handler(c)
		}

		if opts.SelfParam != "" {
			subject, err := strconv.ParseUint(strings.TrimSpace(c.Params(opts.SelfParam)), 10, 64)
			if err == nil && uint(subject) == userID {
				return handler(c)
			}
		}

		return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", fiber.Map{"redirect": LoginPath})
	}
}
