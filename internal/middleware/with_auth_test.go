package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursetrack-api/internal/middleware"
)

func ownedRoute(userID uint, role string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if userID != 0 {
			c.Locals(middleware.LocalUserID, userID)
			c.Locals(middleware.LocalUserRole, role)
		}
		return c.Next()
	})
	app.Get("/progress/:studentId", middleware.WithAuth(func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	}, middleware.AuthOptions{Roles: []string{"admin", "instructor"}, SelfParam: "studentId"}))
	return app
}

func TestWithAuthAdmitsOwner(t *testing.T) {
	resp := perform(t, ownedRoute(10, "student"), "/progress/10")
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestWithAuthRejectsOtherStudents(t *testing.T) {
	resp := perform(t, ownedRoute(10, "student"), "/progress/11")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestWithAuthAdmitsStaffForAnySubject(t *testing.T) {
	resp := perform(t, ownedRoute(1, "instructor"), "/progress/11")
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestWithAuthRequiresUser(t *testing.T) {
	resp := perform(t, ownedRoute(0, ""), "/progress/11")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func perform(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}
