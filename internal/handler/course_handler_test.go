package handler_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursetrack-api/internal/dto"
	"github.com/noah-isme/coursetrack-api/internal/models"
)

func sectionPayload(name string) dto.SectionRequest {
	return dto.SectionRequest{
		SectionName:               name,
		LearningMaterialNotes:     "<p>Read chapter one</p><script>alert(1)</script>",
		CodeChallengeInstructions: "Print hello world",
	}
}

func TestCourseCreateRequiresStaff(t *testing.T) {
	app := newTestApp(t)
	student := app.user(t, "Sam Student", models.RoleStudent)

	status, body := app.call(t, http.MethodPost, "/api/v1/courses", student, dto.CourseRequest{
		CourseName:        "Go Basics",
		CourseDescription: "Intro",
		CourseDuration:    "4 weeks",
	})
	require.Equal(t, fiber.StatusForbidden, status)
	require.False(t, body.Success)
	require.Equal(t, "/login", body.Details["redirect"])

	status, body = app.call(t, http.MethodGet, "/api/v1/courses", models.User{}, nil)
	require.Equal(t, fiber.StatusUnauthorized, status)
	require.Equal(t, "/login", body.Details["redirect"])
}

func TestCourseCreateAndEditTree(t *testing.T) {
	app := newTestApp(t)
	instructor := app.user(t, "Ina Structor", models.RoleInstructor)
	student := app.user(t, "Sam Student", models.RoleStudent)

	status, body := app.call(t, http.MethodPost, "/api/v1/courses", instructor, dto.CourseRequest{
		CourseName:        "Go Basics",
		CourseDescription: "Intro to Go",
		CourseDuration:    "4 weeks",
		Modules: []dto.ModuleRequest{
			{Title: "Basics", Sections: []dto.SectionRequest{sectionPayload("Hello")}},
		},
	})
	require.Equal(t, fiber.StatusCreated, status, body.Message)

	var course dto.CourseResponse
	decodeData(t, body, &course)
	require.True(t, strings.HasPrefix(course.CourseID, "CRS-"))
	require.Equal(t, 1, course.SectionCount)
	require.NotContains(t, course.Modules[0].Sections[0].LearningMaterialNotes, "<script>")

	base := fmt.Sprintf("/api/v1/courses/%d", course.ID)

	status, body = app.call(t, http.MethodPost, base+"/modules", instructor, dto.ModuleCreateRequest{Title: "Advanced"})
	require.Equal(t, fiber.StatusOK, status, body.Message)

	status, body = app.call(t, http.MethodPost, base+"/modules/1/sections", instructor, sectionPayload("Goroutines"))
	require.Equal(t, fiber.StatusOK, status, body.Message)
	status, body = app.call(t, http.MethodPost, base+"/modules/1/sections", instructor, sectionPayload("Channels"))
	require.Equal(t, fiber.StatusOK, status, body.Message)

	status, body = app.call(t, http.MethodPut, base+"/modules/1/sections/1/move", instructor, dto.SectionMoveRequest{Direction: "up"})
	require.Equal(t, fiber.StatusOK, status, body.Message)
	decodeData(t, body, &course)
	require.Equal(t, "Channels", course.Modules[1].Sections[0].SectionName)
	require.Equal(t, "Goroutines", course.Modules[1].Sections[1].SectionName)

	status, body = app.call(t, http.MethodPost, base+"/modules/0/sections/0/videos", instructor, dto.VideoReferenceRequest{URL: "https://youtu.be/dQw4w9WgXcQ"})
	require.Equal(t, fiber.StatusOK, status, body.Message)
	decodeData(t, body, &course)
	require.Equal(t, []string{"dQw4w9WgXcQ"}, course.Modules[0].Sections[0].VideoIDs)

	status, body = app.call(t, http.MethodPost, base+"/modules/7/sections", instructor, sectionPayload("Nowhere"))
	require.Equal(t, fiber.StatusBadRequest, status)
	require.False(t, body.Success)

	status, body = app.call(t, http.MethodGet, base, student, nil)
	require.Equal(t, fiber.StatusOK, status)
	decodeData(t, body, &course)
	require.Equal(t, 3, course.SectionCount)
}

func TestCourseCreateReportsMissingFields(t *testing.T) {
	app := newTestApp(t)
	admin := app.user(t, "Ada Admin", models.RoleAdmin)

	status, body := app.call(t, http.MethodPost, "/api/v1/courses", admin, dto.CourseRequest{
		CourseName:        "Go Basics",
		CourseDescription: "Intro",
		CourseDuration:    "4 weeks",
		Modules: []dto.ModuleRequest{
			{Title: "Basics", Sections: []dto.SectionRequest{{SectionName: "Hello", CodeChallengeInstructions: "x"}}},
		},
	})
	require.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, body.Details["fields"])
}

func TestCourseListPaginates(t *testing.T) {
	app := newTestApp(t)
	student := app.user(t, "Sam Student", models.RoleStudent)
	app.course(t, "CRS-1001", 1)
	app.course(t, "CRS-1002", 1)
	app.course(t, "CRS-1003", 2)

	status, body := app.call(t, http.MethodGet, "/api/v1/courses?page=1&page_size=2", student, nil)
	require.Equal(t, fiber.StatusOK, status)

	var items []dto.CourseResponse
	decodeData(t, body, &items)
	require.Len(t, items, 2)
	require.EqualValues(t, 3, body.Meta["totalItems"])
	require.EqualValues(t, 2, body.Meta["totalPages"])

	status, _ = app.call(t, http.MethodGet, "/api/v1/courses?page=abc", student, nil)
	require.Equal(t, fiber.StatusBadRequest, status)
}

func TestCourseCloneAndDelete(t *testing.T) {
	app := newTestApp(t)
	admin := app.user(t, "Ada Admin", models.RoleAdmin)
	instructor := app.user(t, "Ina Structor", models.RoleInstructor)
	course := app.course(t, "CRS-2001", 2, 1)

	status, body := app.call(t, http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/clone", course.ID), instructor, nil)
	require.Equal(t, fiber.StatusCreated, status, body.Message)

	var clone dto.CourseResponse
	decodeData(t, body, &clone)
	require.NotEqual(t, course.ID, clone.ID)
	require.NotEqual(t, "CRS-2001", clone.CourseID)
	require.Equal(t, 3, clone.SectionCount)
	require.Empty(t, clone.Instructors)

	status, _ = app.call(t, http.MethodDelete, fmt.Sprintf("/api/v1/courses/%d", clone.ID), instructor, nil)
	require.Equal(t, fiber.StatusForbidden, status)

	status, _ = app.call(t, http.MethodDelete, fmt.Sprintf("/api/v1/courses/%d", clone.ID), admin, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, body = app.call(t, http.MethodGet, fmt.Sprintf("/api/v1/courses/%d", clone.ID), admin, nil)
	require.Equal(t, fiber.StatusNotFound, status)
	require.False(t, body.Success)
}

func TestCourseAttachFile(t *testing.T) {
	app := newTestApp(t)
	instructor := app.user(t, "Ina Structor", models.RoleInstructor)
	course := app.course(t, "CRS-3001", 1)
	path := fmt.Sprintf("/api/v1/courses/%d/modules/0/sections/0/files", course.ID)

	status, body := app.upload(t, path+"?kind=material", instructor, "notes.txt", []byte("plain notes for the first section"))
	require.Equal(t, fiber.StatusOK, status, body.Message)

	var updated dto.CourseResponse
	decodeData(t, body, &updated)
	require.Len(t, updated.Modules[0].Sections[0].LearningMaterialURLs, 1)
	require.Equal(t, 1, app.storage.Calls())

	oversized := make([]byte, 2*1024*1024)
	for i := range oversized {
		oversized[i] = 'a'
	}
	status, body = app.upload(t, path+"?kind=challenge", instructor, "big.txt", oversized)
	require.Equal(t, fiber.StatusRequestEntityTooLarge, status)
	require.False(t, body.Success)
	require.Equal(t, 1, app.storage.Calls(), "oversized files never reach storage")

	status, body = app.call(t, http.MethodGet, fmt.Sprintf("/api/v1/courses/%d", course.ID), instructor, nil)
	require.Equal(t, fiber.StatusOK, status)
	decodeData(t, body, &updated)
	require.Empty(t, updated.Modules[0].Sections[0].CodeChallengeURLs)

	status, _ = app.upload(t, path+"?kind=poster", instructor, "notes.txt", []byte("notes"))
	require.Equal(t, fiber.StatusBadRequest, status)
}
