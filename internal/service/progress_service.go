package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/coursetrack-api/internal/dto"
	"github.com/noah-isme/coursetrack-api/internal/models"
	"github.com/noah-isme/coursetrack-api/internal/observability"
	"github.com/noah-isme/coursetrack-api/internal/repository"
)

const (
	// ProgressSourceDirect marks a toggle made on a single student's record.
	ProgressSourceDirect = "direct"
	// ProgressSourceBatch marks a toggle issued by a batch-wide fan-out.
	ProgressSourceBatch = "batch"
	// ProgressSourceCourse marks a course tree save.
	ProgressSourceCourse = "course"
	// ProgressSourceMembership marks a batch membership lost through account deletion.
	ProgressSourceMembership = "membership"
)

// ProgressChange is one section completion toggle.
type ProgressChange struct {
	StudentID    uint
	CourseID     uint
	ModuleIndex  int
	SectionIndex int
	Completed    bool
	Source       string
}

// ProgressService reads and mutates per-student progress records.
type ProgressService interface {
	Get(ctx context.Context, studentID, courseID uint) (dto.ProgressResponse, error)
	Update(ctx context.Context, studentID, courseID uint, req dto.ProgressUpdateRequest) (dto.ProgressResponse, error)
	Apply(ctx context.Context, change ProgressChange) (dto.ProgressResponse, error)
	Initialize(ctx context.Context, studentID uint, course models.Course) (dto.ProgressResponse, error)
	Reconcile(ctx context.Context, course models.Course) (int, error)
}

type progressService struct {
	repo      repository.ProgressRepository
	events    ProgressEventBus
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewProgressService constructs the progress service. events may be nil.
func NewProgressService(repo repository.ProgressRepository, events ProgressEventBus, validate *validator.Validate, logger zerolog.Logger) ProgressService {
	return &progressService{
		repo:      repo,
		events:    events,
		validator: validate,
		logger:    logger.With().Str("component", "progress_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/coursetrack-api/internal/service/progress"),
		now:       time.Now,
	}
}

func (s *progressService) Get(ctx context.Context, studentID, courseID uint) (dto.ProgressResponse, error) {
	record, err := s.repo.Get(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProgressResponse{}, ErrProgressNotFound
		}
		return dto.ProgressResponse{}, err
	}
	return dto.NewProgressResponse(record), nil
}

func (s *progressService) Update(ctx context.Context, studentID, courseID uint, req dto.ProgressUpdateRequest) (dto.ProgressResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ProgressResponse{}, err
	}

	moduleIndex, sectionIndex, completed := req.Values()
	return s.Apply(ctx, ProgressChange{
		StudentID:    studentID,
		CourseID:     courseID,
		ModuleIndex:  moduleIndex,
		SectionIndex: sectionIndex,
		Completed:    completed,
		Source:       ProgressSourceDirect,
	})
}

// Apply sets the section flag and completion time, then returns the refreshed record.
func (s *progressService) Apply(ctx context.Context, change ProgressChange) (dto.ProgressResponse, error) {
	if change.Source == "" {
		change.Source = ProgressSourceDirect
	}

	ctx, span := s.tracer.Start(ctx, "progress.update", trace.WithAttributes(
		attribute.Int("progress.student_id", int(change.StudentID)),
		attribute.Int("progress.course_id", int(change.CourseID)),
		attribute.Int("progress.module_index", change.ModuleIndex),
		attribute.Int("progress.section_index", change.SectionIndex),
		attribute.Bool("progress.completed", change.Completed),
		attribute.String("progress.source", change.Source),
	))
	defer span.End()

	record, err := s.repo.UpdateSection(ctx, change.StudentID, change.CourseID, change.ModuleIndex, change.SectionIndex, change.Completed, s.now())
	if err != nil {
		observability.ProgressUpdates().WithLabelValues(change.Source, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return dto.ProgressResponse{}, ErrProgressNotFound
		case errors.Is(err, models.ErrIndexOutOfRange):
			return dto.ProgressResponse{}, ErrIndexOutOfRange
		default:
			return dto.ProgressResponse{}, err
		}
	}

	observability.ProgressUpdates().WithLabelValues(change.Source, "ok").Inc()
	span.SetStatus(codes.Ok, "updated")

	if s.events != nil {
		s.events.Publish(ctx, ProgressEvent{
			StudentID:    change.StudentID,
			CourseID:     change.CourseID,
			ModuleIndex:  change.ModuleIndex,
			SectionIndex: change.SectionIndex,
			IsCompleted:  change.Completed,
			Source:       change.Source,
		})
	}

	return dto.NewProgressResponse(record), nil
}

// Initialize creates an all-incomplete record mirroring the course. Existing records are kept.
func (s *progressService) Initialize(ctx context.Context, studentID uint, course models.Course) (dto.ProgressResponse, error) {
	record := models.NewProgressRecord(studentID, course)
	created, err := s.repo.CreateIfMissing(ctx, &record)
	if err != nil {
		return dto.ProgressResponse{}, err
	}
	if created {
		s.logger.Info().Uint("student_id", studentID).Uint("course_id", course.ID).Msg("progress record initialised")
	}
	return s.Get(ctx, studentID, course.ID)
}

// Reconcile reshapes every record of the course after its tree was saved and returns
// how many records were rewritten. A course-level event is published either way.
func (s *progressService) Reconcile(ctx context.Context, course models.Course) (int, error) {
	records, err := s.repo.ListByCourse(ctx, course.ID)
	if err != nil {
		return 0, err
	}

	reshaped := 0
	for i := range records {
		record := &records[i]
		if record.MatchesShape(course) && record.CourseName == course.CourseName {
			continue
		}
		record.Reshape(course)
		if err := s.repo.Save(ctx, record); err != nil {
			return reshaped, err
		}
		reshaped++
	}

	if reshaped > 0 {
		s.logger.Info().Uint("course_id", course.ID).Int("records", reshaped).Msg("progress records reshaped to course tree")
	}
	// cached aggregates carry module titles and section names, so every save is announced
	if s.events != nil {
		s.events.Publish(ctx, ProgressEvent{CourseID: course.ID, Source: ProgressSourceCourse})
	}

	return reshaped, nil
}
