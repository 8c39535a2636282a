package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coursetrack-api/internal/service"
	"github.com/noah-isme/coursetrack-api/internal/utils"
)

// UploadHandler accepts section files outside the course editor, returning a URL that
// can be attached to a section later.
type UploadHandler struct {
	service service.UploadService
	logger  zerolog.Logger
}

// NewUploadHandler constructs an upload handler.
func NewUploadHandler(service service.UploadService, logger zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		service: service,
		logger:  logger.With().Str("component", "upload_handler").Logger(),
	}
}

// Register wires upload routes. Extra handlers, such as a rate limiter, run before the upload.
func (h *UploadHandler) Register(router fiber.Router, guards ...fiber.Handler) {
	handlers := append([]fiber.Handler{staffOnly()}, guards...)
	router.Post("/file", append(handlers, h.upload)...)
}

func (h *UploadHandler) upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "file is required", fiber.Map{"field": "file"})
	}

	result, err := h.service.Upload(requestContext(c), file, userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	if result.Deduplicated {
		return utils.SendSuccess(c, "file already stored", result)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "upload successful", result)
}
