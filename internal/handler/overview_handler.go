package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coursetrack-api/internal/service"
	"github.com/noah-isme/coursetrack-api/internal/utils"
)

// OverviewHandler serves the admin dashboard counters.
type OverviewHandler struct {
	service service.OverviewService
	logger  zerolog.Logger
}

// NewOverviewHandler constructs the handler.
func NewOverviewHandler(service service.OverviewService, logger zerolog.Logger) *OverviewHandler {
	return &OverviewHandler{
		service: service,
		logger:  logger.With().Str("component", "overview_handler").Logger(),
	}
}

// Register attaches the overview route.
func (h *OverviewHandler) Register(router fiber.Router) {
	router.Get("", adminOnly(), h.get)
}

func (h *OverviewHandler) get(c *fiber.Ctx) error {
	overview, err := h.service.Get(requestContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "overview retrieved", overview)
}
