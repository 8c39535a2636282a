package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coursetrack-api/internal/dto"
	"github.com/noah-isme/coursetrack-api/internal/middleware"
	"github.com/noah-isme/coursetrack-api/internal/models"
	"github.com/noah-isme/coursetrack-api/internal/service"
	"github.com/noah-isme/coursetrack-api/internal/utils"
)

// ProgressHandler serves a single student's progress record.
type ProgressHandler struct {
	service service.ProgressService
	logger  zerolog.Logger
}

// NewProgressHandler constructs the handler.
func NewProgressHandler(service service.ProgressService, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		service: service,
		logger:  logger.With().Str("component", "progress_handler").Logger(),
	}
}

// Register attaches the record routes. Students may read their own record only.
func (h *ProgressHandler) Register(router fiber.Router) {
	router.Get("/:studentId/:courseId", middleware.WithAuth(h.get, middleware.AuthOptions{
		Roles:     []string{models.RoleAdmin, models.RoleInstructor},
		SelfParam: "studentId",
	}))
	router.Put("/:studentId/:courseId", staffOnly(), h.update)
}

func (h *ProgressHandler) get(c *fiber.Ctx) error {
	studentID, courseID, err := h.params(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	record, err := h.service.Get(requestContext(c), studentID, courseID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "progress retrieved", record)
}

// update answers with the whole refreshed record; clients replace their copy with it.
func (h *ProgressHandler) update(c *fiber.Ctx) error {
	studentID, courseID, err := h.params(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ProgressUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	record, err := h.service.Update(requestContext(c), studentID, courseID, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "progress updated", record)
}

func (h *ProgressHandler) params(c *fiber.Ctx) (uint, uint, error) {
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return 0, 0, err
	}
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return 0, 0, err
	}
	return studentID, courseID, nil
}

func (h *ProgressHandler) handleError(c *fiber.Ctx, err error) error {
	return respondError(c, h.logger, err)
}
