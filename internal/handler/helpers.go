package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coursetrack-api/internal/authoring"
	"github.com/noah-isme/coursetrack-api/internal/middleware"
	"github.com/noah-isme/coursetrack-api/internal/models"
	"github.com/noah-isme/coursetrack-api/internal/service"
	"github.com/noah-isme/coursetrack-api/internal/utils"
)

// staffOnly guards routes reserved for admins and instructors.
func staffOnly() fiber.Handler {
	return middleware.RequireRole(models.RoleAdmin, models.RoleInstructor)
}

func adminOnly() fiber.Handler {
	return middleware.RequireRole(models.RoleAdmin)
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(c.Params(name)), 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid identifier")
	}
	return uint(parsed), nil
}

func parseIndexParam(c *fiber.Ctx, name string) (int, error) {
	parsed, err := strconv.Atoi(strings.TrimSpace(c.Params(name)))
	if err != nil || parsed < 0 {
		return 0, errors.New("invalid " + name + " index")
	}
	return parsed, nil
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func userIDFromContext(c *fiber.Ctx) *uint {
	if id := middleware.CurrentUserID(c); id > 0 {
		return &id
	}
	return nil
}

// requestContext carries the caller identity so services can attribute audit entries.
func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	if id := middleware.CurrentUserID(c); id > 0 {
		ctx = service.WithActor(ctx, service.Actor{ID: id, Role: middleware.CurrentRole(c)})
	}
	return ctx
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if correlation := middleware.GetCorrelationID(c); correlation != "" {
		logger = base.With().Str("correlation_id", correlation).Logger()
	}
	return &logger
}

func validationDetails(errs validator.ValidationErrors) fiber.Map {
	fields := make(fiber.Map, len(errs))
	for _, fieldErr := range errs {
		fields[fieldErr.Namespace()] = fieldErr.Tag()
	}
	return fiber.Map{"fields": fields}
}

// respondError maps service errors onto the HTTP envelope. Anything unrecognised is
// logged and answered with 500.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var (
		validationErrs validator.ValidationErrors
		draftErr       *authoring.ValidationError
		batchErr       *service.BatchUpdateError
	)

	switch {
	case errors.As(err, &validationErrs):
		return utils.Fail(c, fiber.StatusBadRequest, "invalid payload", validationDetails(validationErrs))
	case errors.As(err, &draftErr):
		return utils.Fail(c, fiber.StatusBadRequest, "missing required fields", fiber.Map{"fields": draftErr.Fields})
	case errors.As(err, &batchErr):
		requestLogger(logger, c).Warn().Err(err).Uint("batch_id", batchErr.BatchID).Msg("batch update incomplete")
		return utils.Fail(c, fiber.StatusBadGateway, "batch update incomplete", fiber.Map{
			"applied": batchErr.Applied,
			"failed":  batchErr.Failed,
			"pending": batchErr.Pending,
			"reason":  batchErr.Err.Error(),
		})
	case errors.Is(err, service.ErrIndexOutOfRange),
		errors.Is(err, authoring.ErrModuleIndex),
		errors.Is(err, authoring.ErrSectionIndex),
		errors.Is(err, service.ErrRoleMismatch),
		errors.Is(err, service.ErrBatchCourseMismatch),
		errors.Is(err, service.ErrInvalidFileKind),
		errors.Is(err, service.ErrUnknownSyncResource),
		errors.Is(err, service.ErrUploadTypeNotAllowed),
		errors.Is(err, service.ErrUploadScanFailed):
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, service.ErrCourseNotFound),
		errors.Is(err, service.ErrProgressNotFound),
		errors.Is(err, service.ErrBatchNotFound),
		errors.Is(err, service.ErrUserNotFound):
		return utils.Fail(c, fiber.StatusNotFound, err.Error(), nil)
	case errors.Is(err, service.ErrCourseCodeTaken),
		errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrBatchBusy),
		errors.Is(err, service.ErrUserNotPending),
		errors.Is(err, service.ErrSyncInProgress):
		return utils.Fail(c, fiber.StatusConflict, err.Error(), nil)
	case errors.Is(err, service.ErrUploadTooLarge):
		return utils.Fail(c, fiber.StatusRequestEntityTooLarge, err.Error(), nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		return utils.Fail(c, fiber.StatusUnauthorized, err.Error(), nil)
	case errors.Is(err, service.ErrUserInactive):
		return utils.Fail(c, fiber.StatusForbidden, err.Error(), nil)
	case errors.Is(err, service.ErrStorageUnavailable),
		errors.Is(err, service.ErrSyncNotConfigured),
		errors.Is(err, service.ErrCourseCodeExhausted):
		return utils.Fail(c, fiber.StatusServiceUnavailable, err.Error(), nil)
	default:
		requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg("internal server error")
		return utils.Fail(c, fiber.StatusInternalServerError, "internal server error", nil)
	}
}

func parseStreamBatchID(raw string) (uint, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid batch identifier")
	}
	return uint(parsed), nil
}

// contextForStream is the context websocket pushes run under; the fasthttp request
// context is gone once the connection is upgraded.
func contextForStream() context.Context {
	return context.Background()
}
