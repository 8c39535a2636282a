package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/noah-isme/coursetrack-api/internal/dto"
	"github.com/noah-isme/coursetrack-api/internal/models"
	"github.com/noah-isme/coursetrack-api/internal/repository"
)

// UserService manages accounts and the pending-approval queue.
type UserService interface {
	List(ctx context.Context, req dto.UserListRequest) (dto.UserListResponse, error)
	Get(ctx context.Context, id uint) (dto.UserResponse, error)
	Register(ctx context.Context, req dto.UserRegisterRequest, byAdmin bool) (dto.UserResponse, error)
	Update(ctx context.Context, id uint, req dto.UserUpdateRequest) (dto.UserResponse, error)
	Delete(ctx context.Context, id uint) error
	ListPending(ctx context.Context) ([]dto.UserResponse, error)
	Approve(ctx context.Context, id uint) (dto.UserResponse, error)
	Decline(ctx context.Context, id uint) error
}

type userService struct {
	repo      repository.UserRepository
	events    ProgressEventBus
	validator *validator.Validate
	logger    zerolog.Logger
	cost      int
}

// NewUserService constructs the user service. events may be nil; when set, deleting a
// batch member announces the change for each affected course.
func NewUserService(repo repository.UserRepository, events ProgressEventBus, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		repo:      repo,
		events:    events,
		validator: validate,
		logger:    logger.With().Str("component", "user_service").Logger(),
		cost:      bcrypt.DefaultCost,
	}
}

func (s *userService) List(ctx context.Context, req dto.UserListRequest) (dto.UserListResponse, error) {
	page := maxInt(req.Page, 1)
	pageSize := clampPageSize(req.PageSize)

	role := models.NormalizeRole(req.Role)
	if role != "" && !models.IsValidRole(role) {
		return dto.UserListResponse{}, ErrRoleMismatch
	}

	users, total, err := s.repo.List(ctx, repository.UserFilter{
		Role:     role,
		Status:   strings.TrimSpace(req.Status),
		Search:   strings.TrimSpace(req.Search),
		Sort:     req.Sort,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return dto.UserListResponse{}, err
	}

	return dto.UserListResponse{
		Items:      dto.NewUserResponseSlice(users),
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *userService) Get(ctx context.Context, id uint) (dto.UserResponse, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

// Register creates an account. Self-registrations wait for approval and cannot claim
// the admin role; accounts created by an admin are active immediately.
func (s *userService) Register(ctx context.Context, req dto.UserRegisterRequest, byAdmin bool) (dto.UserResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, err
	}

	role := models.NormalizeRole(req.Role)
	if role == "" {
		role = models.RoleStudent
	}
	if role == models.RoleAdmin && !byAdmin {
		return dto.UserResponse{}, ErrRoleMismatch
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.ensureEmailFree(ctx, email, 0); err != nil {
		return dto.UserResponse{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return dto.UserResponse{}, err
	}

	status := models.UserStatusPending
	if byAdmin {
		status = models.UserStatusActive
	}

	user := models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: string(hash),
		Role:         role,
		Status:       status,
	}
	if err := s.repo.Create(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	s.logger.Info().Uint("user_id", user.ID).Str("role", role).Str("status", status).Msg("user registered")
	return dto.NewUserResponse(user), nil
}

func (s *userService) Update(ctx context.Context, id uint, req dto.UserUpdateRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return dto.UserResponse{}, err
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email != user.Email {
			if err := s.ensureEmailFree(ctx, email, user.ID); err != nil {
				return dto.UserResponse{}, err
			}
			user.Email = email
		}
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Role != nil {
		user.Role = models.NormalizeRole(*req.Role)
	}
	if req.Status != nil {
		user.Status = *req.Status
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), s.cost)
		if err != nil {
			return dto.UserResponse{}, err
		}
		user.PasswordHash = string(hash)
	}

	if err := s.repo.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

func (s *userService) Delete(ctx context.Context, id uint) error {
	if err := s.remove(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	s.logger.Info().Uint("user_id", id).Msg("user deleted")
	return nil
}

// remove deletes the account and publishes a course-level event for every course whose
// batches lost the user, so cached batch aggregates drop the old membership.
func (s *userService) remove(ctx context.Context, id uint) error {
	courseIDs, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if s.events == nil {
		return nil
	}
	for _, courseID := range courseIDs {
		s.events.Publish(ctx, ProgressEvent{CourseID: courseID, Source: ProgressSourceMembership})
	}
	return nil
}

func (s *userService) ListPending(ctx context.Context) ([]dto.UserResponse, error) {
	users, _, err := s.repo.List(ctx, repository.UserFilter{Status: models.UserStatusPending, Sort: "created_at"})
	if err != nil {
		return nil, err
	}
	return dto.NewUserResponseSlice(users), nil
}

func (s *userService) Approve(ctx context.Context, id uint) (dto.UserResponse, error) {
	user, err := s.loadPending(ctx, id)
	if err != nil {
		return dto.UserResponse{}, err
	}

	user.Status = models.UserStatusActive
	if err := s.repo.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	s.logger.Info().Uint("user_id", id).Msg("user approved")
	return dto.NewUserResponse(user), nil
}

func (s *userService) Decline(ctx context.Context, id uint) error {
	if _, err := s.loadPending(ctx, id); err != nil {
		return err
	}
	if err := s.remove(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Uint("user_id", id).Msg("user declined")
	return nil
}

func (s *userService) load(ctx context.Context, id uint) (models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *userService) loadPending(ctx context.Context, id uint) (models.User, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	if user.Status != models.UserStatusPending {
		return models.User{}, ErrUserNotPending
	}
	return user, nil
}

func (s *userService) ensureEmailFree(ctx context.Context, email string, ownerID uint) error {
	existing, err := s.repo.GetByEmail(ctx, email)
	if err == nil && existing.ID != ownerID {
		return ErrEmailTaken
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}
