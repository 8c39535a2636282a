package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coursetrack-api/internal/dto"
	"github.com/noah-isme/coursetrack-api/internal/service"
	"github.com/noah-isme/coursetrack-api/internal/utils"
)

// BatchHandler exposes batch management, the aggregate view and the live stream.
type BatchHandler struct {
	service service.BatchService
	logger  zerolog.Logger
}

// NewBatchHandler constructs the handler.
func NewBatchHandler(service service.BatchService, logger zerolog.Logger) *BatchHandler {
	return &BatchHandler{
		service: service,
		logger:  logger.With().Str("component", "batch_handler").Logger(),
	}
}

// Register attaches batch routes to the progress group. Every route is staff only.
// The sections route is registered ahead of /:batchId/:courseId, which would
// otherwise swallow it.
func (h *BatchHandler) Register(router fiber.Router) {
	guard := staffOnly()

	router.Post("/batch", guard, h.create)
	router.Get("/batch/view/:batchId", guard, h.view)
	router.Put("/batch/:batchId/sections", guard, h.toggleSection)
	router.Put("/batch/:batchId/:courseId", guard, h.updateMembers)
	router.Get("/batches/by-course/:courseId", guard, h.listByCourse)
	router.Get("/batches/instructor/:instructorId", guard, h.listByInstructor)

	router.Get("/batch/:batchId/ws", guard, func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	}, websocket.New(h.stream))
}

func (h *BatchHandler) create(c *fiber.Ctx) error {
	var payload dto.BatchCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	batch, err := h.service.Create(requestContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "batch created", batch)
}

func (h *BatchHandler) view(c *fiber.Ctx) error {
	batchID, err := parseUintParam(c, "batchId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	view, err := h.service.View(requestContext(c), batchID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "batch retrieved", view)
}

func (h *BatchHandler) updateMembers(c *fiber.Ctx) error {
	batchID, err := parseUintParam(c, "batchId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.BatchMembersRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	batch, err := h.service.UpdateMembers(requestContext(c), batchID, courseID, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "batch members updated", batch)
}

func (h *BatchHandler) toggleSection(c *fiber.Ctx) error {
	batchID, err := parseUintParam(c, "batchId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ProgressUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.ToggleSection(requestContext(c), batchID, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "batch section updated", result)
}

func (h *BatchHandler) listByCourse(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	batches, err := h.service.ListByCourse(requestContext(c), courseID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "batches retrieved", batches)
}

func (h *BatchHandler) listByInstructor(c *fiber.Ctx) error {
	instructorID, err := parseUintParam(c, "instructorId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	batches, err := h.service.ListByInstructor(requestContext(c), instructorID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "batches retrieved", batches)
}

// stream pushes the batch view once on connect and again whenever a member's progress
// changes, until the client disconnects.
func (h *BatchHandler) stream(conn *websocket.Conn) {
	defer func() { _ = conn.Close() }()

	batchID, err := parseStreamBatchID(conn.Params("batchId"))
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseUnsupportedData, err.Error()))
		return
	}

	log := h.logger.With().Uint("batch_id", batchID).Logger()
	changes, stop := h.service.Watch(batchID)
	defer stop()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	push := func() bool {
		view, err := h.service.View(contextForStream(), batchID)
		if err != nil {
			log.Warn().Err(err).Msg("batch stream view failed")
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()))
			return false
		}
		if err := conn.WriteJSON(view); err != nil {
			log.Debug().Err(err).Msg("batch stream write failed")
			return false
		}
		return true
	}

	log.Info().Msg("batch stream connected")
	defer log.Info().Msg("batch stream disconnected")

	if !push() {
		return
	}
	for {
		select {
		case <-closed:
			return
		case <-changes:
			if !push() {
				return
			}
		}
	}
}

func (h *BatchHandler) handleError(c *fiber.Ctx, err error) error {
	return respondError(c, h.logger, err)
}
