package handler_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursetrack-api/internal/dto"
	"github.com/noah-isme/coursetrack-api/internal/models"
)

func TestBatchChangesAppearInActivityTrail(t *testing.T) {
	app := newTestApp(t)
	admin := app.user(t, "Ada Admin", models.RoleAdmin)
	instructor := app.user(t, "Ina Structor", models.RoleInstructor)
	student := app.user(t, "Sam Student", models.RoleStudent)
	course := app.course(t, "CRS-6001", 1)
	batch := createBatch(t, app, instructor, course, instructor, student)

	status, body := app.call(t, http.MethodPut, fmt.Sprintf("/api/v1/progress/batch/%d/sections", batch.ID), instructor, dto.NewProgressUpdate(0, 0, true))
	require.Equal(t, fiber.StatusOK, status, body.Message)

	status, body = app.call(t, http.MethodGet, fmt.Sprintf("/api/v1/overview/activity?entity_type=batch&entity_id=%d", batch.ID), admin, nil)
	require.Equal(t, fiber.StatusOK, status, body.Message)

	var entries []dto.ActivityResponse
	decodeData(t, body, &entries)
	require.Len(t, entries, 2)
	require.EqualValues(t, 2, body.Meta["totalItems"])

	actions := []string{entries[0].Action, entries[1].Action}
	require.ElementsMatch(t, []string{models.ActivityBatchCreated, models.ActivityBatchSection}, actions)
	for _, entry := range entries {
		require.Equal(t, instructor.ID, entry.ActorID)
		require.Equal(t, models.RoleInstructor, entry.ActorRole)
		require.Equal(t, batch.ID, entry.EntityID)
	}

	status, body = app.call(t, http.MethodGet, "/api/v1/overview/activity?action="+models.ActivityBatchSection, admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	decodeData(t, body, &entries)
	require.Len(t, entries, 1)
	require.Equal(t, true, entries[0].Metadata["completed"])
}

func TestActivityTrailIsAdminOnly(t *testing.T) {
	app := newTestApp(t)
	instructor := app.user(t, "Ina Structor", models.RoleInstructor)
	admin := app.user(t, "Ada Admin", models.RoleAdmin)

	status, _ := app.call(t, http.MethodGet, "/api/v1/overview/activity", instructor, nil)
	require.Equal(t, fiber.StatusForbidden, status)

	status, _ = app.call(t, http.MethodGet, "/api/v1/overview/activity", models.User{}, nil)
	require.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = app.call(t, http.MethodGet, "/api/v1/overview/activity?page=abc", admin, nil)
	require.Equal(t, fiber.StatusBadRequest, status)

	status, _ = app.call(t, http.MethodGet, "/api/v1/overview", admin, nil)
	require.Equal(t, fiber.StatusOK, status, "the counters stay reachable beside the trail")
}
