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

// UserHandler exposes the user directory and account maintenance.
type UserHandler struct {
	service service.UserService
	logger  zerolog.Logger
}

// NewUserHandler constructs the handler.
func NewUserHandler(service service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register attaches routes that need an authenticated caller. /me is registered
// before /:id.
func (h *UserHandler) Register(router fiber.Router) {
	router.Get("/me", h.me)
	router.Get("/role", staffOnly(), h.list)
	router.Get("/role/:role", staffOnly(), h.listByRole)
	router.Put("/:id", adminOnly(), h.update)
	router.Delete("/:id", adminOnly(), h.delete)
}

// RegisterPublic attaches self-registration. An admin caller creates an active account.
func (h *UserHandler) RegisterPublic(router fiber.Router) {
	router.Post("/register", h.register)
}

// RegisterApprovals attaches the pending-user queue.
func (h *UserHandler) RegisterApprovals(router fiber.Router) {
	router.Get("/pending", adminOnly(), h.pending)
	router.Post("/approve/:id", adminOnly(), h.approve)
	router.Delete("/decline/:id", adminOnly(), h.decline)
}

func (h *UserHandler) me(c *fiber.Ctx) error {
	user, err := h.service.Get(requestContext(c), middleware.CurrentUserID(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "profile retrieved", user)
}

func (h *UserHandler) list(c *fiber.Ctx) error {
	return h.listWithRole(c, c.Query("role"))
}

func (h *UserHandler) listByRole(c *fiber.Ctx) error {
	return h.listWithRole(c, c.Params("role"))
}

func (h *UserHandler) listWithRole(c *fiber.Ctx, role string) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	result, err := h.service.List(requestContext(c), dto.UserListRequest{
		Role:     role,
		Status:   c.Query("status"),
		Search:   c.Query("search"),
		Sort:     c.Query("sort"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.OK(c, result.Items, "users retrieved", result.Pagination)
}

func (h *UserHandler) register(c *fiber.Ctx) error {
	var payload dto.UserRegisterRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	byAdmin := middleware.CurrentRole(c) == models.RoleAdmin
	user, err := h.service.Register(requestContext(c), payload, byAdmin)
	if err != nil {
		return h.handleError(c, err)
	}

	message := "registration received, awaiting approval"
	if byAdmin {
		message = "user created"
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, message, user)
}

func (h *UserHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.UserUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	user, err := h.service.Update(requestContext(c), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "user updated", user)
}

func (h *UserHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(requestContext(c), id); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "user deleted", fiber.Map{"id": id})
}

func (h *UserHandler) pending(c *fiber.Ctx) error {
	users, err := h.service.ListPending(requestContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "pending users retrieved", users)
}

func (h *UserHandler) approve(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	user, err := h.service.Approve(requestContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "user approved", user)
}

func (h *UserHandler) decline(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Decline(requestContext(c), id); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "user declined", fiber.Map{"id": id})
}

func (h *UserHandler) handleError(c *fiber.Ctx, err error) error {
	return respondError(c, h.logger, err)
}
