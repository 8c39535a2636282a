package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coursetrack-api/internal/service"
	"github.com/noah-isme/coursetrack-api/internal/utils"
)

// SyncHandler triggers pulls from the external directory.
type SyncHandler struct {
	service service.SyncService
	logger  zerolog.Logger
}

// NewSyncHandler constructs the handler.
func NewSyncHandler(service service.SyncService, logger zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		service: service,
		logger:  logger.With().Str("component", "sync_handler").Logger(),
	}
}

// Register attaches the trigger route. The sync runs in the background.
func (h *SyncHandler) Register(router fiber.Router) {
	router.Get("/:resource", adminOnly(), h.trigger)
}

func (h *SyncHandler) trigger(c *fiber.Ctx) error {
	status, err := h.service.Trigger(c.Params("resource"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, status.Message, status)
}
