package service

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursetrack-api/internal/dto"
	"github.com/noah-isme/coursetrack-api/internal/models"
)

func newDirectoryServer(t *testing.T) *httptest.Server {
	t.Helper()
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if c.Get("X-API-Key") != "directory-key" {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		return c.Next()
	})
	app.Get("/courses", func(c *fiber.Ctx) error {
		return c.JSON([]dto.ExternalCourse{
			{ExternalID: "ext-1", CourseID: "CRS-9001", CourseName: "Databases", CourseDescription: "SQL", CourseDuration: "6 weeks"},
			{ExternalID: "ext-2", CourseID: "", CourseName: "Nameless"},
		})
	})
	app.Get("/students", func(c *fiber.Ctx) error {
		return c.JSON([]dto.ExternalUser{
			{ExternalID: "stu-1", Name: "Sam Student", Email: "SAM@example.com"},
			{ExternalID: "stu-2", Name: "Sue Student", Email: "sue@example.com"},
			{ExternalID: "", Name: "Nobody", Email: "nobody@example.com"},
		})
	})
	app.Get("/instructors", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusBadGateway).SendString("directory down")
	})

	server := httptest.NewServer(adaptor.FiberApp(app))
	t.Cleanup(server.Close)
	return server
}

func TestSyncRunUpsertsDirectoryRecords(t *testing.T) {
	f := newFixture(t)
	server := newDirectoryServer(t)
	svc := NewSyncService(SyncConfig{BaseURL: server.URL, APIKey: "directory-key"}, f.courses, f.users, testLogger())
	ctx := context.Background()

	_, err := svc.Run(ctx, SyncCourses)
	require.NoError(t, err)
	exists, err := f.courses.CodeExists(ctx, "CRS-9001")
	require.NoError(t, err)
	require.True(t, exists)

	_, err = svc.Run(ctx, SyncStudents)
	require.NoError(t, err)
	_, err = svc.Run(ctx, SyncStudents)
	require.NoError(t, err, "re-running a sync updates in place")

	count, err := f.users.CountByRole(ctx, models.RoleStudent)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	sam, err := f.users.GetByEmail(ctx, "sam@example.com")
	require.NoError(t, err)
	require.Equal(t, "stu-1", *sam.ExternalID)

	_, err = svc.Run(ctx, SyncInstructors)
	require.Error(t, err)
}

func TestSyncRejectsUnknownOrUnconfigured(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unconfigured := NewSyncService(SyncConfig{}, f.courses, f.users, testLogger())
	_, err := unconfigured.Run(ctx, SyncCourses)
	require.ErrorIs(t, err, ErrSyncNotConfigured)
	_, err = unconfigured.Trigger(SyncCourses)
	require.ErrorIs(t, err, ErrSyncNotConfigured)

	configured := NewSyncService(SyncConfig{BaseURL: "http://127.0.0.1:1"}, f.courses, f.users, testLogger())
	_, err = configured.Run(ctx, "grades")
	require.ErrorIs(t, err, ErrUnknownSyncResource)
	_, err = configured.Trigger("grades")
	require.ErrorIs(t, err, ErrUnknownSyncResource)
}

func TestSyncScheduleRequiresExpression(t *testing.T) {
	f := newFixture(t)
	svc := NewSyncService(SyncConfig{}, f.courses, f.users, testLogger())

	scheduler, err := NewSyncScheduler(context.Background(), svc, "", testLogger())
	require.NoError(t, err)
	require.Nil(t, scheduler)

	_, err = NewSyncScheduler(context.Background(), svc, "not a cron line", testLogger())
	require.Error(t, err)

	scheduler, err = NewSyncScheduler(context.Background(), svc, "@every 1h", testLogger())
	require.NoError(t, err)
	require.Len(t, scheduler.Entries(), 1)
}
