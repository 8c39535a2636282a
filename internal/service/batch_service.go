package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
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

// BatchUpdateError reports a batch toggle that stopped part way. Students in Applied
// keep their new state; Pending were never attempted.
type BatchUpdateError struct {
	BatchID uint
	Applied []uint
	Failed  uint
	Pending []uint
	Err     error
}

func (e *BatchUpdateError) Error() string {
	return fmt.Sprintf("batch %d update stopped at student %d after %d applied, %d pending: %v",
		e.BatchID, e.Failed, len(e.Applied), len(e.Pending), e.Err)
}

func (e *BatchUpdateError) Unwrap() error {
	return e.Err
}

// BatchService groups students and aggregates their progress per section.
type BatchService interface {
	Create(ctx context.Context, req dto.BatchCreateRequest) (dto.BatchResponse, error)
	View(ctx context.Context, batchID uint) (dto.BatchViewResponse, error)
	UpdateMembers(ctx context.Context, batchID, courseID uint, req dto.BatchMembersRequest) (dto.BatchResponse, error)
	ToggleSection(ctx context.Context, batchID uint, req dto.ProgressUpdateRequest) (dto.BatchToggleResponse, error)
	ListByCourse(ctx context.Context, courseID uint) ([]dto.BatchResponse, error)
	ListByInstructor(ctx context.Context, instructorID uint) ([]dto.BatchResponse, error)
	Watch(batchID uint) (<-chan struct{}, func())
}

type batchService struct {
	batches   repository.BatchRepository
	courses   repository.CourseRepository
	users     repository.UserRepository
	records   repository.ProgressRepository
	progress  ProgressService
	activity  ActivityRecorder
	cache     *redis.Client
	ttl       time.Duration
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	guard     *batchGuard
	watchers  *batchWatchers
	now       func() time.Time
}

// BatchServiceDeps bundles the collaborators of the batch service.
type BatchServiceDeps struct {
	Batches   repository.BatchRepository
	Courses   repository.CourseRepository
	Users     repository.UserRepository
	Records   repository.ProgressRepository
	Progress  ProgressService
	Events    ProgressEventBus
	Activity  ActivityRecorder
	Cache     *redis.Client
	CacheTTL  time.Duration
	Validator *validator.Validate
	Logger    zerolog.Logger
}

// NewBatchService constructs the batch service and subscribes it to progress events.
func NewBatchService(deps BatchServiceDeps) BatchService {
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}

	svc := &batchService{
		batches:   deps.Batches,
		courses:   deps.Courses,
		users:     deps.Users,
		records:   deps.Records,
		progress:  deps.Progress,
		activity:  deps.Activity,
		cache:     deps.Cache,
		ttl:       ttl,
		validator: deps.Validator,
		logger:    deps.Logger.With().Str("component", "batch_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/coursetrack-api/internal/service/batch"),
		guard:     &batchGuard{busy: make(map[uint]struct{})},
		watchers:  &batchWatchers{subscribers: make(map[uint]map[chan struct{}]struct{})},
		now:       time.Now,
	}

	if deps.Events != nil {
		deps.Events.Listen(svc.onProgress)
	}

	return svc
}

func (s *batchService) Create(ctx context.Context, req dto.BatchCreateRequest) (dto.BatchResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.BatchResponse{}, err
	}

	course, err := s.courses.GetByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.BatchResponse{}, ErrCourseNotFound
		}
		return dto.BatchResponse{}, err
	}

	instructor, err := s.users.GetByID(ctx, req.InstructorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.BatchResponse{}, ErrUserNotFound
		}
		return dto.BatchResponse{}, err
	}
	if instructor.Role != models.RoleInstructor && instructor.Role != models.RoleAdmin {
		return dto.BatchResponse{}, ErrRoleMismatch
	}

	students, err := s.loadStudents(ctx, req.StudentIDs)
	if err != nil {
		return dto.BatchResponse{}, err
	}

	startDate := s.now().UTC().Truncate(24 * time.Hour)
	if strings.TrimSpace(req.StartDate) != "" {
		parsed, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			return dto.BatchResponse{}, err
		}
		startDate = parsed
	}

	status := req.Status
	if status == "" {
		status = models.BatchStatusActive
	}

	batch := models.Batch{
		Name:         strings.TrimSpace(req.Name),
		CourseID:     course.ID,
		InstructorID: instructor.ID,
		ClassTiming:  strings.TrimSpace(req.ClassTiming),
		StartDate:    startDate,
		DaysOfWeek:   append([]string{}, req.DaysOfWeek...),
		Status:       status,
		Students:     students,
	}
	if err := s.batches.Create(ctx, &batch); err != nil {
		return dto.BatchResponse{}, err
	}

	if err := s.enroll(ctx, course, students); err != nil {
		return dto.BatchResponse{}, err
	}

	s.logger.Info().Uint("batch_id", batch.ID).Uint("course_id", course.ID).Int("students", len(students)).Msg("batch created")
	s.record(ctx, models.ActivityBatchCreated, batch.ID, map[string]interface{}{
		"courseId":     course.ID,
		"instructorId": instructor.ID,
		"students":     batch.StudentIDs(),
	})

	created, err := s.batches.GetByID(ctx, batch.ID)
	if err != nil {
		return dto.BatchResponse{}, err
	}
	return dto.NewBatchResponse(created), nil
}

func (s *batchService) View(ctx context.Context, batchID uint) (dto.BatchViewResponse, error) {
	batch, err := s.load(ctx, batchID)
	if err != nil {
		return dto.BatchViewResponse{}, err
	}

	sections, err := s.aggregate(ctx, batch)
	if err != nil {
		return dto.BatchViewResponse{}, err
	}

	return dto.BatchViewResponse{
		Batch:    dto.NewBatchResponse(batch),
		Course:   dto.NewCourseResponse(batch.Course),
		Sections: sections,
	}, nil
}

func (s *batchService) UpdateMembers(ctx context.Context, batchID, courseID uint, req dto.BatchMembersRequest) (dto.BatchResponse, error) {
	batch, err := s.load(ctx, batchID)
	if err != nil {
		return dto.BatchResponse{}, err
	}
	if batch.CourseID != courseID {
		return dto.BatchResponse{}, ErrBatchCourseMismatch
	}

	added, err := s.loadStudents(ctx, req.Add)
	if err != nil {
		return dto.BatchResponse{}, err
	}
	removed, err := s.users.GetByIDs(ctx, req.Remove)
	if err != nil {
		return dto.BatchResponse{}, err
	}

	if err := s.batches.AddStudents(ctx, batch.ID, added); err != nil {
		return dto.BatchResponse{}, err
	}
	if err := s.enroll(ctx, batch.Course, added); err != nil {
		return dto.BatchResponse{}, err
	}
	if err := s.batches.RemoveStudents(ctx, batch.ID, removed); err != nil {
		return dto.BatchResponse{}, err
	}

	s.invalidate(ctx, batch.ID)
	s.logger.Info().Uint("batch_id", batch.ID).Int("added", len(added)).Int("removed", len(removed)).Msg("batch membership updated")
	s.record(ctx, models.ActivityBatchMembers, batch.ID, map[string]interface{}{
		"added":   userIDs(added),
		"removed": userIDs(removed),
	})

	updated, err := s.load(ctx, batch.ID)
	if err != nil {
		return dto.BatchResponse{}, err
	}
	return dto.NewBatchResponse(updated), nil
}

// ToggleSection applies one completion change to every member, one student at a time
// in membership order. The first failure stops the loop; earlier updates stay applied.
func (s *batchService) ToggleSection(ctx context.Context, batchID uint, req dto.ProgressUpdateRequest) (dto.BatchToggleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.BatchToggleResponse{}, err
	}

	if !s.guard.acquire(batchID) {
		return dto.BatchToggleResponse{}, ErrBatchBusy
	}
	defer s.guard.release(batchID)

	batch, err := s.load(ctx, batchID)
	if err != nil {
		return dto.BatchToggleResponse{}, err
	}

	moduleIndex, sectionIndex, completed := req.Values()
	if !batch.Course.HasSection(moduleIndex, sectionIndex) {
		return dto.BatchToggleResponse{}, ErrIndexOutOfRange
	}

	ctx, span := s.tracer.Start(ctx, "batch.fanout", trace.WithAttributes(
		attribute.Int("batch.id", int(batch.ID)),
		attribute.Int("batch.students", len(batch.Students)),
		attribute.Int("progress.module_index", moduleIndex),
		attribute.Int("progress.section_index", sectionIndex),
		attribute.Bool("progress.completed", completed),
	))
	defer span.End()

	studentIDs := batch.StudentIDs()
	applied := make([]uint, 0, len(studentIDs))
	for i, studentID := range studentIDs {
		_, err := s.progress.Apply(ctx, ProgressChange{
			StudentID:    studentID,
			CourseID:     batch.CourseID,
			ModuleIndex:  moduleIndex,
			SectionIndex: sectionIndex,
			Completed:    completed,
			Source:       ProgressSourceBatch,
		})
		if err != nil {
			observability.BatchFanoutStudents().WithLabelValues("failed").Inc()
			s.logger.Warn().Err(err).
				Uint("batch_id", batch.ID).
				Uint("student_id", studentID).
				Int("module_index", moduleIndex).
				Int("section_index", sectionIndex).
				Int("applied", len(applied)).
				Msg("batch section update stopped")
			span.RecordError(err)
			span.SetStatus(codes.Error, "fan-out stopped")
			s.invalidate(ctx, batch.ID)
			updateErr := &BatchUpdateError{
				BatchID: batch.ID,
				Applied: applied,
				Failed:  studentID,
				Pending: append([]uint{}, studentIDs[i+1:]...),
				Err:     err,
			}
			s.record(ctx, models.ActivityBatchSectionFailed, batch.ID, map[string]interface{}{
				"moduleIndex":  moduleIndex,
				"sectionIndex": sectionIndex,
				"completed":    completed,
				"applied":      updateErr.Applied,
				"failed":       updateErr.Failed,
				"pending":      updateErr.Pending,
				"reason":       err.Error(),
			})
			return dto.BatchToggleResponse{}, updateErr
		}
		observability.BatchFanoutStudents().WithLabelValues("applied").Inc()
		applied = append(applied, studentID)
	}

	span.SetStatus(codes.Ok, "applied")
	s.invalidate(ctx, batch.ID)
	s.record(ctx, models.ActivityBatchSection, batch.ID, map[string]interface{}{
		"moduleIndex":  moduleIndex,
		"sectionIndex": sectionIndex,
		"completed":    completed,
		"applied":      applied,
	})

	sections, err := s.aggregate(ctx, batch)
	if err != nil {
		return dto.BatchToggleResponse{}, err
	}
	return dto.BatchToggleResponse{Applied: applied, Sections: sections}, nil
}

func (s *batchService) ListByCourse(ctx context.Context, courseID uint) ([]dto.BatchResponse, error) {
	batches, err := s.batches.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return dto.NewBatchResponseSlice(batches), nil
}

func (s *batchService) ListByInstructor(ctx context.Context, instructorID uint) ([]dto.BatchResponse, error) {
	batches, err := s.batches.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, err
	}
	return dto.NewBatchResponseSlice(batches), nil
}

// Watch signals whenever the aggregate of the batch may have changed. Signals coalesce.
func (s *batchService) Watch(batchID uint) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.watchers.subscribe(batchID, ch)
	observability.BatchStreamClients().Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.watchers.unsubscribe(batchID, ch)
			observability.BatchStreamClients().Dec()
		})
	}
}

func (s *batchService) load(ctx context.Context, batchID uint) (models.Batch, error) {
	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Batch{}, ErrBatchNotFound
		}
		return models.Batch{}, err
	}
	return batch, nil
}

func (s *batchService) loadStudents(ctx context.Context, ids []uint) ([]models.User, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	students, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(students) != len(ids) {
		return nil, ErrUserNotFound
	}
	for _, student := range students {
		if student.Role != models.RoleStudent {
			return nil, ErrRoleMismatch
		}
	}
	return students, nil
}

func (s *batchService) enroll(ctx context.Context, course models.Course, students []models.User) error {
	if len(students) == 0 {
		return nil
	}
	if err := s.courses.Enroll(ctx, course.ID, students...); err != nil {
		return err
	}
	for _, student := range students {
		if _, err := s.progress.Initialize(ctx, student.ID, course); err != nil {
			return err
		}
	}
	return nil
}

func (s *batchService) aggregate(ctx context.Context, batch models.Batch) ([]dto.SectionAggregateStatus, error) {
	key := aggregateCacheKey(batch.ID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key).Result(); err == nil && cached != "" {
			var sections []dto.SectionAggregateStatus
			if err := json.Unmarshal([]byte(cached), &sections); err == nil {
				observability.BatchAggregateCache().WithLabelValues("hit").Inc()
				return sections, nil
			}
		} else if err != nil && !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Uint("batch_id", batch.ID).Msg("failed to read aggregate cache")
		}
	}
	observability.BatchAggregateCache().WithLabelValues("miss").Inc()

	ctx, span := s.tracer.Start(ctx, "batch.aggregate", trace.WithAttributes(
		attribute.Int("batch.id", int(batch.ID)),
		attribute.Int("batch.students", len(batch.Students)),
	))
	defer span.End()

	records, err := s.records.ListForStudents(ctx, batch.CourseID, batch.StudentIDs())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	sections := AggregateSections(batch.Course, batch.StudentIDs(), records)

	if s.cache != nil {
		if payload, err := json.Marshal(sections); err == nil {
			if err := s.cache.Set(ctx, key, payload, s.ttl).Err(); err != nil {
				s.logger.Warn().Err(err).Uint("batch_id", batch.ID).Msg("failed to cache batch aggregate")
			}
		}
	}

	return sections, nil
}

// AggregateSections computes, for every (module, section) pair of the course, whether
// every listed student completed it. Students without a record, or whose record lacks
// the position, count as incomplete. With no students every pair is vacuously complete.
func AggregateSections(course models.Course, studentIDs []uint, records []models.ProgressRecord) []dto.SectionAggregateStatus {
	byStudent := make(map[uint]models.ProgressRecord, len(records))
	for _, record := range records {
		byStudent[record.StudentID] = record
	}

	sections := make([]dto.SectionAggregateStatus, 0, course.SectionCount())
	for m, module := range course.Modules {
		for sIdx, section := range module.Sections {
			completed := 0
			for _, studentID := range studentIDs {
				if record, ok := byStudent[studentID]; ok && record.IsSectionCompleted(m, sIdx) {
					completed++
				}
			}
			sections = append(sections, dto.SectionAggregateStatus{
				ModuleIndex:    m,
				SectionIndex:   sIdx,
				ModuleTitle:    module.Title,
				SectionName:    section.SectionName,
				AllCompleted:   completed == len(studentIDs),
				CompletedCount: completed,
				TotalStudents:  len(studentIDs),
			})
		}
	}
	return sections
}

func (s *batchService) onProgress(ctx context.Context, event ProgressEvent) {
	var ids []uint
	if event.StudentID == 0 {
		batches, err := s.batches.ListByCourse(ctx, event.CourseID)
		if err != nil {
			s.logger.Warn().Err(err).Uint("course_id", event.CourseID).Msg("failed to resolve batches for course")
			return
		}
		for _, batch := range batches {
			ids = append(ids, batch.ID)
		}
	} else {
		found, err := s.batches.IDsForStudent(ctx, event.StudentID, event.CourseID)
		if err != nil {
			s.logger.Warn().Err(err).Uint("student_id", event.StudentID).Msg("failed to resolve batches for student")
			return
		}
		ids = found
	}

	for _, id := range ids {
		s.invalidate(ctx, id)
	}
}

func (s *batchService) invalidate(ctx context.Context, batchID uint) {
	if s.cache != nil {
		if err := s.cache.Del(ctx, aggregateCacheKey(batchID)).Err(); err != nil {
			s.logger.Warn().Err(err).Uint("batch_id", batchID).Msg("failed to invalidate batch aggregate")
		}
	}
	s.watchers.notify(batchID)
}

// record writes an audit entry. Audit failures are logged and never fail the operation.
func (s *batchService) record(ctx context.Context, action string, batchID uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, ActivityEntry{
		Action:     action,
		EntityType: "batch",
		EntityID:   batchID,
		Metadata:   metadata,
	}); err != nil {
		s.logger.Warn().Err(err).Uint("batch_id", batchID).Str("action", action).Msg("failed to record batch activity")
	}
}

func userIDs(users []models.User) []uint {
	ids := make([]uint, 0, len(users))
	for _, user := range users {
		ids = append(ids, user.ID)
	}
	return ids
}

func aggregateCacheKey(batchID uint) string {
	return fmt.Sprintf("batch:aggregate:%d", batchID)
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	result := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

// batchGuard is the per-batch ready/updating state.
type batchGuard struct {
	mu   sync.Mutex
	busy map[uint]struct{}
}

func (g *batchGuard) acquire(batchID uint) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.busy[batchID]; ok {
		return false
	}
	g.busy[batchID] = struct{}{}
	return true
}

func (g *batchGuard) release(batchID uint) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.busy, batchID)
}

type batchWatchers struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan struct{}]struct{}
}

func (w *batchWatchers) subscribe(batchID uint, ch chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.subscribers[batchID]; !ok {
		w.subscribers[batchID] = make(map[chan struct{}]struct{})
	}
	w.subscribers[batchID][ch] = struct{}{}
}

func (w *batchWatchers) unsubscribe(batchID uint, ch chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if subscribers, ok := w.subscribers[batchID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(w.subscribers, batchID)
		}
	}
}

func (w *batchWatchers) notify(batchID uint) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for ch := range w.subscribers[batchID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
