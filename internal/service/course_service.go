package service

import (
	"context"
	"errors"
	"mime/multipart"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/coursetrack-api/internal/authoring"
	"github.com/noah-isme/coursetrack-api/internal/dto"
	"github.com/noah-isme/coursetrack-api/internal/models"
	"github.com/noah-isme/coursetrack-api/internal/repository"
)

const maxCodeAttempts = 10

const (
	// FileKindMaterial attaches to the learning material URL list.
	FileKindMaterial = "material"
	// FileKindChallenge attaches to the code challenge URL list.
	FileKindChallenge = "challenge"
)

// CourseService manages the course catalog and edits course trees.
type CourseService interface {
	List(ctx context.Context, req dto.CourseListRequest) (dto.CourseListResponse, error)
	Get(ctx context.Context, id uint) (dto.CourseResponse, error)
	Create(ctx context.Context, req dto.CourseRequest) (dto.CourseResponse, error)
	Update(ctx context.Context, id uint, req dto.CourseRequest) (dto.CourseResponse, error)
	Delete(ctx context.Context, id uint) error
	Clone(ctx context.Context, id uint) (dto.CourseResponse, error)
	AddInstructor(ctx context.Context, courseID, instructorID uint) (dto.CourseResponse, error)
	RemoveInstructor(ctx context.Context, courseID, instructorID uint) (dto.CourseResponse, error)
	Enroll(ctx context.Context, req dto.EnrollRequest) (dto.ProgressResponse, error)
	AddModule(ctx context.Context, id uint, req dto.ModuleCreateRequest) (dto.CourseResponse, error)
	RemoveModule(ctx context.Context, id uint, moduleIndex int) (dto.CourseResponse, error)
	AddSection(ctx context.Context, id uint, moduleIndex int, req dto.SectionRequest) (dto.CourseResponse, error)
	RemoveSection(ctx context.Context, id uint, moduleIndex, sectionIndex int) (dto.CourseResponse, error)
	MoveSection(ctx context.Context, id uint, moduleIndex, sectionIndex int, req dto.SectionMoveRequest) (dto.CourseResponse, error)
	AddVideoReference(ctx context.Context, id uint, moduleIndex, sectionIndex int, req dto.VideoReferenceRequest) (dto.CourseResponse, error)
	AttachFile(ctx context.Context, id uint, moduleIndex, sectionIndex int, kind string, file *multipart.FileHeader, userID *uint) (dto.CourseResponse, error)
}

type courseService struct {
	courses   repository.CourseRepository
	users     repository.UserRepository
	progress  ProgressService
	uploads   UploadService
	validator *validator.Validate
	policy    *bluemonday.Policy
	codes     authoring.CodeGenerator
	logger    zerolog.Logger
}

// NewCourseService constructs the course service. uploads may be nil when file storage is not configured.
func NewCourseService(courses repository.CourseRepository, users repository.UserRepository, progress ProgressService, uploads UploadService, validate *validator.Validate, codes authoring.CodeGenerator, logger zerolog.Logger) CourseService {
	if codes == nil {
		codes = authoring.RandomCourseCode
	}
	return &courseService{
		courses:   courses,
		users:     users,
		progress:  progress,
		uploads:   uploads,
		validator: validate,
		policy:    bluemonday.UGCPolicy(),
		codes:     codes,
		logger:    logger.With().Str("component", "course_service").Logger(),
	}
}

func (s *courseService) List(ctx context.Context, req dto.CourseListRequest) (dto.CourseListResponse, error) {
	page := maxInt(req.Page, 1)
	pageSize := clampPageSize(req.PageSize)

	courses, total, err := s.courses.List(ctx, repository.CourseFilter{
		Search:       strings.TrimSpace(req.Search),
		Sort:         req.Sort,
		Page:         page,
		PageSize:     pageSize,
		InstructorID: req.InstructorID,
	})
	if err != nil {
		return dto.CourseListResponse{}, err
	}

	items := make([]dto.CourseResponse, 0, len(courses))
	for _, course := range courses {
		items = append(items, dto.NewCourseResponse(course))
	}

	return dto.CourseListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *courseService) Get(ctx context.Context, id uint) (dto.CourseResponse, error) {
	course, err := s.load(ctx, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}
	return dto.NewCourseResponse(course), nil
}

func (s *courseService) Create(ctx context.Context, req dto.CourseRequest) (dto.CourseResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CourseResponse{}, err
	}

	course := req.ToModel()
	if course.CourseCode == "" {
		code, err := s.uniqueCode(ctx)
		if err != nil {
			return dto.CourseResponse{}, err
		}
		course.CourseCode = code
	} else if err := s.ensureCodeFree(ctx, course.CourseCode); err != nil {
		return dto.CourseResponse{}, err
	}

	instructors, err := s.loadInstructors(ctx, req.InstructorIDs)
	if err != nil {
		return dto.CourseResponse{}, err
	}
	course.Instructors = instructors

	s.sanitize(&course)
	if err := authoring.NewDraft(course).Validate(); err != nil {
		return dto.CourseResponse{}, err
	}

	if err := s.courses.Create(ctx, &course); err != nil {
		return dto.CourseResponse{}, err
	}

	s.logger.Info().Uint("course_id", course.ID).Str("course_code", course.CourseCode).Msg("course created")
	return s.Get(ctx, course.ID)
}

func (s *courseService) Update(ctx context.Context, id uint, req dto.CourseRequest) (dto.CourseResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CourseResponse{}, err
	}

	existing, err := s.load(ctx, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	course := req.ToModel()
	course.ID = existing.ID
	if course.CourseCode == "" {
		course.CourseCode = existing.CourseCode
	} else if course.CourseCode != existing.CourseCode {
		if err := s.ensureCodeFree(ctx, course.CourseCode); err != nil {
			return dto.CourseResponse{}, err
		}
	}

	if req.InstructorIDs != nil {
		instructors, err := s.loadInstructors(ctx, req.InstructorIDs)
		if err != nil {
			return dto.CourseResponse{}, err
		}
		course.Instructors = instructors
	}

	s.sanitize(&course)
	if err := authoring.NewDraft(course).Validate(); err != nil {
		return dto.CourseResponse{}, err
	}

	return s.save(ctx, course)
}

func (s *courseService) Delete(ctx context.Context, id uint) error {
	if err := s.courses.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCourseNotFound
		}
		return err
	}
	s.logger.Info().Uint("course_id", id).Msg("course deleted")
	return nil
}

// Clone implements "save as new course": same tree, fresh code, no instructors or students.
func (s *courseService) Clone(ctx context.Context, id uint) (dto.CourseResponse, error) {
	existing, err := s.load(ctx, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	code, err := s.uniqueCode(ctx)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	clone := authoring.NewDraft(existing).CloneAsNew(code)
	if err := s.courses.Create(ctx, &clone); err != nil {
		return dto.CourseResponse{}, err
	}

	s.logger.Info().Uint("source_id", id).Uint("course_id", clone.ID).Str("course_code", code).Msg("course cloned")
	return s.Get(ctx, clone.ID)
}

func (s *courseService) AddInstructor(ctx context.Context, courseID, instructorID uint) (dto.CourseResponse, error) {
	if _, err := s.load(ctx, courseID); err != nil {
		return dto.CourseResponse{}, err
	}
	instructors, err := s.loadInstructors(ctx, []uint{instructorID})
	if err != nil {
		return dto.CourseResponse{}, err
	}
	if err := s.courses.AddInstructor(ctx, courseID, instructors[0]); err != nil {
		return dto.CourseResponse{}, err
	}
	return s.Get(ctx, courseID)
}

func (s *courseService) RemoveInstructor(ctx context.Context, courseID, instructorID uint) (dto.CourseResponse, error) {
	course, err := s.load(ctx, courseID)
	if err != nil {
		return dto.CourseResponse{}, err
	}
	if !course.HasInstructor(instructorID) {
		return dto.CourseResponse{}, ErrUserNotFound
	}
	if err := s.courses.RemoveInstructor(ctx, courseID, models.User{ID: instructorID}); err != nil {
		return dto.CourseResponse{}, err
	}
	return s.Get(ctx, courseID)
}

// Enroll adds the student to the course and initialises their progress record.
func (s *courseService) Enroll(ctx context.Context, req dto.EnrollRequest) (dto.ProgressResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ProgressResponse{}, err
	}

	course, err := s.load(ctx, req.CourseID)
	if err != nil {
		return dto.ProgressResponse{}, err
	}

	student, err := s.users.GetByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProgressResponse{}, ErrUserNotFound
		}
		return dto.ProgressResponse{}, err
	}
	if student.Role != models.RoleStudent {
		return dto.ProgressResponse{}, ErrRoleMismatch
	}

	if err := s.courses.Enroll(ctx, course.ID, student); err != nil {
		return dto.ProgressResponse{}, err
	}
	return s.progress.Initialize(ctx, student.ID, course)
}

func (s *courseService) AddModule(ctx context.Context, id uint, req dto.ModuleCreateRequest) (dto.CourseResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CourseResponse{}, err
	}
	return s.edit(ctx, id, func(d *authoring.Draft) error {
		d.AddModule(req.Title)
		return nil
	})
}

func (s *courseService) RemoveModule(ctx context.Context, id uint, moduleIndex int) (dto.CourseResponse, error) {
	return s.edit(ctx, id, func(d *authoring.Draft) error {
		return d.RemoveModule(moduleIndex)
	})
}

func (s *courseService) AddSection(ctx context.Context, id uint, moduleIndex int, req dto.SectionRequest) (dto.CourseResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CourseResponse{}, err
	}
	section := req.ToModel(0)
	section.LearningMaterialNotes = s.policy.Sanitize(section.LearningMaterialNotes)
	section.CodeChallengeInstructions = s.policy.Sanitize(section.CodeChallengeInstructions)

	return s.edit(ctx, id, func(d *authoring.Draft) error {
		_, err := d.AddSection(moduleIndex, section)
		return err
	})
}

func (s *courseService) RemoveSection(ctx context.Context, id uint, moduleIndex, sectionIndex int) (dto.CourseResponse, error) {
	return s.edit(ctx, id, func(d *authoring.Draft) error {
		return d.RemoveSection(moduleIndex, sectionIndex)
	})
}

func (s *courseService) MoveSection(ctx context.Context, id uint, moduleIndex, sectionIndex int, req dto.SectionMoveRequest) (dto.CourseResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CourseResponse{}, err
	}
	return s.edit(ctx, id, func(d *authoring.Draft) error {
		if req.Direction == "up" {
			return d.MoveSectionUp(moduleIndex, sectionIndex)
		}
		return d.MoveSectionDown(moduleIndex, sectionIndex)
	})
}

func (s *courseService) AddVideoReference(ctx context.Context, id uint, moduleIndex, sectionIndex int, req dto.VideoReferenceRequest) (dto.CourseResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CourseResponse{}, err
	}
	return s.edit(ctx, id, func(d *authoring.Draft) error {
		return d.AddVideoReference(moduleIndex, sectionIndex, req.URL)
	})
}

// AttachFile stores the upload and appends its URL to the section. A rejected upload
// leaves the course untouched.
func (s *courseService) AttachFile(ctx context.Context, id uint, moduleIndex, sectionIndex int, kind string, file *multipart.FileHeader, userID *uint) (dto.CourseResponse, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		kind = FileKindMaterial
	}
	if kind != FileKindMaterial && kind != FileKindChallenge {
		return dto.CourseResponse{}, ErrInvalidFileKind
	}
	if s.uploads == nil {
		return dto.CourseResponse{}, ErrStorageUnavailable
	}

	course, err := s.load(ctx, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}
	if !course.HasSection(moduleIndex, sectionIndex) {
		return dto.CourseResponse{}, ErrIndexOutOfRange
	}

	stored, err := s.uploads.Upload(ctx, file, userID)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	return s.edit(ctx, id, func(d *authoring.Draft) error {
		if kind == FileKindChallenge {
			return d.AttachChallengeURL(moduleIndex, sectionIndex, stored.URL)
		}
		return d.AttachMaterialURL(moduleIndex, sectionIndex, stored.URL)
	})
}

func (s *courseService) edit(ctx context.Context, id uint, apply func(*authoring.Draft) error) (dto.CourseResponse, error) {
	course, err := s.load(ctx, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	draft := authoring.NewDraft(course)
	if err := apply(draft); err != nil {
		return dto.CourseResponse{}, err
	}

	edited := draft.Course()
	edited.Instructors = nil
	return s.save(ctx, edited)
}

// save rewrites the tree and brings existing progress records back in line with it.
func (s *courseService) save(ctx context.Context, course models.Course) (dto.CourseResponse, error) {
	if err := s.courses.ReplaceTree(ctx, &course); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CourseResponse{}, ErrCourseNotFound
		}
		return dto.CourseResponse{}, err
	}

	saved, err := s.load(ctx, course.ID)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	if s.progress != nil {
		if _, err := s.progress.Reconcile(ctx, saved); err != nil {
			s.logger.Error().Err(err).Uint("course_id", saved.ID).Msg("failed to reconcile progress records")
			return dto.CourseResponse{}, err
		}
	}

	return dto.NewCourseResponse(saved), nil
}

func (s *courseService) load(ctx context.Context, id uint) (models.Course, error) {
	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Course{}, ErrCourseNotFound
		}
		return models.Course{}, err
	}
	return course, nil
}

func (s *courseService) loadInstructors(ctx context.Context, ids []uint) ([]models.User, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(users) != len(ids) {
		return nil, ErrUserNotFound
	}
	for _, user := range users {
		if user.Role != models.RoleInstructor {
			return nil, ErrRoleMismatch
		}
	}
	return users, nil
}

// uniqueCode draws codes until one is free. Collisions are retried, not ignored.
func (s *courseService) uniqueCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := s.codes()
		exists, err := s.courses.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
		s.logger.Debug().Str("course_code", code).Int("attempt", attempt+1).Msg("course code collision")
	}
	return "", ErrCourseCodeExhausted
}

func (s *courseService) ensureCodeFree(ctx context.Context, code string) error {
	exists, err := s.courses.CodeExists(ctx, code)
	if err != nil {
		return err
	}
	if exists {
		return ErrCourseCodeTaken
	}
	return nil
}

func (s *courseService) sanitize(course *models.Course) {
	course.CourseDescription = strings.TrimSpace(s.policy.Sanitize(course.CourseDescription))
	for m := range course.Modules {
		for i := range course.Modules[m].Sections {
			section := &course.Modules[m].Sections[i]
			section.LearningMaterialNotes = strings.TrimSpace(s.policy.Sanitize(section.LearningMaterialNotes))
			section.CodeChallengeInstructions = strings.TrimSpace(s.policy.Sanitize(section.CodeChallengeInstructions))
		}
	}
}
