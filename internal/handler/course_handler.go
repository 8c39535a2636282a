package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coursetrack-api/internal/dto"
	"github.com/noah-isme/coursetrack-api/internal/service"
	"github.com/noah-isme/coursetrack-api/internal/utils"
)

// CourseHandler exposes the course catalog and the course tree editor.
type CourseHandler struct {
	service service.CourseService
	logger  zerolog.Logger
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(service service.CourseService, logger zerolog.Logger) *CourseHandler {
	return &CourseHandler{
		service: service,
		logger:  logger.With().Str("component", "course_handler").Logger(),
	}
}

// Register attaches course endpoints. Reads are open to every authenticated user;
// edits need staff and deletion needs an admin.
func (h *CourseHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", staffOnly(), h.create)
	router.Post("/enroll", staffOnly(), h.enroll)
	router.Get("/:id", h.get)
	router.Put("/:id", staffOnly(), h.update)
	router.Delete("/:id", adminOnly(), h.delete)
	router.Post("/:id/clone", staffOnly(), h.clone)
	router.Put("/:id/add-instructor", staffOnly(), h.addInstructor)
	router.Put("/:id/remove-instructor", staffOnly(), h.removeInstructor)

	router.Post("/:id/modules", staffOnly(), h.addModule)
	router.Delete("/:id/modules/:m", staffOnly(), h.removeModule)
	router.Post("/:id/modules/:m/sections", staffOnly(), h.addSection)
	router.Delete("/:id/modules/:m/sections/:s", staffOnly(), h.removeSection)
	router.Put("/:id/modules/:m/sections/:s/move", staffOnly(), h.moveSection)
	router.Post("/:id/modules/:m/sections/:s/videos", staffOnly(), h.addVideo)
	router.Post("/:id/modules/:m/sections/:s/files", staffOnly(), h.attachFile)
}

func (h *CourseHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}
	instructorID, err := parseQueryInt(c, "instructor_id")
	if err != nil || instructorID < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid instructor_id")
	}

	result, err := h.service.List(requestContext(c), dto.CourseListRequest{
		Search:       c.Query("search"),
		Sort:         c.Query("sort"),
		Page:         page,
		PageSize:     pageSize,
		InstructorID: uint(instructorID),
	})
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.OK(c, result.Items, "courses retrieved", result.Pagination)
}

func (h *CourseHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	course, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "course retrieved", course)
}

func (h *CourseHandler) create(c *fiber.Ctx) error {
	var payload dto.CourseRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	course, err := h.service.Create(requestContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "course created", course)
}

func (h *CourseHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CourseRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	course, err := h.service.Update(requestContext(c), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "course updated", course)
}

func (h *CourseHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(requestContext(c), id); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "course deleted", fiber.Map{"id": id})
}

func (h *CourseHandler) clone(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	course, err := h.service.Clone(requestContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "course cloned", course)
}

func (h *CourseHandler) addInstructor(c *fiber.Ctx) error {
	return h.assignInstructor(c, h.service.AddInstructor, "instructor added")
}

func (h *CourseHandler) removeInstructor(c *fiber.Ctx) error {
	return h.assignInstructor(c, h.service.RemoveInstructor, "instructor removed")
}

func (h *CourseHandler) assignInstructor(c *fiber.Ctx, apply func(ctx context.Context, courseID, instructorID uint) (dto.CourseResponse, error), message string) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.InstructorAssignRequest
	if err := c.BodyParser(&payload); err != nil || payload.InstructorID == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "instructorId is required")
	}

	course, err := apply(requestContext(c), id, payload.InstructorID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, message, course)
}

func (h *CourseHandler) enroll(c *fiber.Ctx) error {
	var payload dto.EnrollRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	record, err := h.service.Enroll(requestContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "student enrolled", record)
}

func (h *CourseHandler) addModule(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ModuleCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	course, err := h.service.AddModule(requestContext(c), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "module added", course)
}

func (h *CourseHandler) removeModule(c *fiber.Ctx) error {
	id, m, err := h.moduleParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	course, err := h.service.RemoveModule(requestContext(c), id, m)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "module removed", course)
}

func (h *CourseHandler) addSection(c *fiber.Ctx) error {
	id, m, err := h.moduleParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SectionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	course, err := h.service.AddSection(requestContext(c), id, m, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "section added", course)
}

func (h *CourseHandler) removeSection(c *fiber.Ctx) error {
	id, m, s, err := h.sectionParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	course, err := h.service.RemoveSection(requestContext(c), id, m, s)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "section removed", course)
}

func (h *CourseHandler) moveSection(c *fiber.Ctx) error {
	id, m, s, err := h.sectionParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SectionMoveRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	course, err := h.service.MoveSection(requestContext(c), id, m, s, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "section moved", course)
}

func (h *CourseHandler) addVideo(c *fiber.Ctx) error {
	id, m, s, err := h.sectionParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.VideoReferenceRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	course, err := h.service.AddVideoReference(requestContext(c), id, m, s, payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "video reference added", course)
}

func (h *CourseHandler) attachFile(c *fiber.Ctx) error {
	id, m, s, err := h.sectionParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	course, err := h.service.AttachFile(requestContext(c), id, m, s, c.Query("kind"), file, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "file attached", course)
}

func (h *CourseHandler) moduleParams(c *fiber.Ctx) (uint, int, error) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return 0, 0, err
	}
	m, err := parseIndexParam(c, "m")
	if err != nil {
		return 0, 0, err
	}
	return id, m, nil
}

func (h *CourseHandler) sectionParams(c *fiber.Ctx) (uint, int, int, error) {
	id, m, err := h.moduleParams(c)
	if err != nil {
		return 0, 0, 0, err
	}
	s, err := parseIndexParam(c, "s")
	if err != nil {
		return 0, 0, 0, err
	}
	return id, m, s, nil
}

func (h *CourseHandler) handleError(c *fiber.Ctx, err error) error {
	return respondError(c, h.logger, err)
}
