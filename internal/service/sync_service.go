package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coursetrack-api/internal/dto"
	"github.com/noah-isme/coursetrack-api/internal/models"
	"github.com/noah-isme/coursetrack-api/internal/observability"
	"github.com/noah-isme/coursetrack-api/internal/repository"
)

const (
	// SyncCourses pulls the course catalog.
	SyncCourses = "courses"
	// SyncInstructors pulls instructor accounts.
	SyncInstructors = "instructors"
	// SyncStudents pulls student accounts.
	SyncStudents = "students"
)

var (
	// ErrSyncInProgress indicates a sync for the resource is already running.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrSyncNotConfigured indicates no external directory URL is configured.
	ErrSyncNotConfigured = errors.New("external directory sync not configured")
	// ErrUnknownSyncResource indicates a resource other than courses, instructors or students.
	ErrUnknownSyncResource = errors.New("unknown sync resource")
)

// SyncService pulls courses and accounts from the external directory.
type SyncService interface {
	Trigger(resource string) (dto.SyncStatusResponse, error)
	Run(ctx context.Context, resource string) (int64, error)
	RunAll(ctx context.Context)
}

// SyncConfig configures the external directory client.
type SyncConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type syncService struct {
	client  *resty.Client
	enabled bool
	timeout time.Duration
	courses repository.CourseRepository
	users   repository.UserRepository
	logger  zerolog.Logger
	now     func() time.Time

	mu      sync.Mutex
	running map[string]struct{}
}

// NewSyncService constructs the sync service.
func NewSyncService(cfg SyncConfig, courses repository.CourseRepository, users repository.UserRepository, logger zerolog.Logger) SyncService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("X-API-Key", cfg.APIKey)
	}

	return &syncService{
		client:  client,
		enabled: strings.TrimSpace(cfg.BaseURL) != "",
		timeout: timeout,
		courses: courses,
		users:   users,
		logger:  logger.With().Str("component", "sync_service").Logger(),
		now:     time.Now,
		running: make(map[string]struct{}),
	}
}

// Trigger starts the sync in the background and answers immediately.
func (s *syncService) Trigger(resource string) (dto.SyncStatusResponse, error) {
	resource = strings.ToLower(strings.TrimSpace(resource))
	if !isSyncResource(resource) {
		return dto.SyncStatusResponse{}, ErrUnknownSyncResource
	}
	if !s.enabled {
		return dto.SyncStatusResponse{}, ErrSyncNotConfigured
	}
	if !s.acquire(resource) {
		return dto.SyncStatusResponse{}, ErrSyncInProgress
	}

	startedAt := s.now().UTC()
	go func() {
		defer s.release(resource)
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := s.run(ctx, resource); err != nil {
			s.logger.Error().Err(err).Str("resource", resource).Msg("background sync failed")
		}
	}()

	return dto.SyncStatusResponse{
		Resource:  resource,
		Status:    "started",
		Message:   fmt.Sprintf("%s sync started", resource),
		StartedAt: startedAt,
	}, nil
}

// Run performs one sync synchronously.
func (s *syncService) Run(ctx context.Context, resource string) (int64, error) {
	resource = strings.ToLower(strings.TrimSpace(resource))
	if !isSyncResource(resource) {
		return 0, ErrUnknownSyncResource
	}
	if !s.enabled {
		return 0, ErrSyncNotConfigured
	}
	if !s.acquire(resource) {
		return 0, ErrSyncInProgress
	}
	defer s.release(resource)
	return s.run(ctx, resource)
}

// RunAll syncs every resource in turn; used by the schedule.
func (s *syncService) RunAll(ctx context.Context) {
	for _, resource := range []string{SyncCourses, SyncInstructors, SyncStudents} {
		if _, err := s.Run(ctx, resource); err != nil {
			s.logger.Warn().Err(err).Str("resource", resource).Msg("scheduled sync failed")
		}
	}
}

func (s *syncService) run(ctx context.Context, resource string) (int64, error) {
	start := s.now()
	var (
		affected int64
		err      error
	)

	switch resource {
	case SyncCourses:
		affected, err = s.syncCourses(ctx)
	case SyncInstructors:
		affected, err = s.syncUsers(ctx, resource, models.RoleInstructor)
	case SyncStudents:
		affected, err = s.syncUsers(ctx, resource, models.RoleStudent)
	}

	if err != nil {
		observability.SyncRuns().WithLabelValues(resource, "error").Inc()
		return 0, err
	}

	observability.SyncRuns().WithLabelValues(resource, "ok").Inc()
	observability.SyncRecords().WithLabelValues(resource).Add(float64(affected))
	s.logger.Info().Str("resource", resource).Int64("records", affected).Dur("took", time.Since(start)).Msg("sync completed")
	return affected, nil
}

func (s *syncService) syncCourses(ctx context.Context) (int64, error) {
	var payload []dto.ExternalCourse
	if err := s.fetch(ctx, "/courses", &payload); err != nil {
		return 0, err
	}

	courses := make([]models.Course, 0, len(payload))
	for _, item := range payload {
		code := strings.TrimSpace(item.CourseID)
		if code == "" || strings.TrimSpace(item.CourseName) == "" {
			s.logger.Debug().Str("external_id", item.ExternalID).Msg("skipping course without code or name")
			continue
		}
		course := models.Course{
			CourseCode:        code,
			CourseName:        strings.TrimSpace(item.CourseName),
			CourseDescription: item.CourseDescription,
			CourseDuration:    strings.TrimSpace(item.CourseDuration),
		}
		if id := strings.TrimSpace(item.ExternalID); id != "" {
			course.ExternalID = &id
		}
		courses = append(courses, course)
	}

	return s.courses.UpsertByCode(ctx, courses)
}

func (s *syncService) syncUsers(ctx context.Context, resource, role string) (int64, error) {
	var payload []dto.ExternalUser
	if err := s.fetch(ctx, "/"+resource, &payload); err != nil {
		return 0, err
	}

	users := make([]models.User, 0, len(payload))
	for _, item := range payload {
		externalID := strings.TrimSpace(item.ExternalID)
		email := strings.ToLower(strings.TrimSpace(item.Email))
		if externalID == "" || email == "" {
			s.logger.Debug().Str("resource", resource).Msg("skipping account without external id or email")
			continue
		}
		users = append(users, models.User{
			Name:       strings.TrimSpace(item.Name),
			Email:      email,
			Phone:      strings.TrimSpace(item.Phone),
			Role:       role,
			Status:     models.UserStatusActive,
			ExternalID: &externalID,
		})
	}

	return s.users.UpsertByExternalID(ctx, users)
}

func (s *syncService) fetch(ctx context.Context, path string, out interface{}) error {
	resp, err := s.client.R().SetContext(ctx).SetResult(out).Get(path)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("fetch %s: unexpected status %d", path, resp.StatusCode())
	}
	return nil
}

func (s *syncService) acquire(resource string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.running[resource]; ok {
		return false
	}
	s.running[resource] = struct{}{}
	return true
}

func (s *syncService) release(resource string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, resource)
}

func isSyncResource(resource string) bool {
	switch resource {
	case SyncCourses, SyncInstructors, SyncStudents:
		return true
	default:
		return false
	}
}
