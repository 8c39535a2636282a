package service

import (
	"context"

	"github.com/noah-isme/coursetrack-api/internal/dto"
	"github.com/noah-isme/coursetrack-api/internal/models"
	"github.com/noah-isme/coursetrack-api/internal/repository"
)

// OverviewService summarises the platform for the admin dashboard.
type OverviewService interface {
	Get(ctx context.Context) (dto.OverviewResponse, error)
}

type overviewService struct {
	courses repository.CourseRepository
	users   repository.UserRepository
	batches repository.BatchRepository
}

// NewOverviewService constructs the overview service.
func NewOverviewService(courses repository.CourseRepository, users repository.UserRepository, batches repository.BatchRepository) OverviewService {
	return &overviewService{courses: courses, users: users, batches: batches}
}

func (s *overviewService) Get(ctx context.Context) (dto.OverviewResponse, error) {
	var (
		response dto.OverviewResponse
		err      error
	)

	if response.Courses, err = s.courses.Count(ctx); err != nil {
		return dto.OverviewResponse{}, err
	}
	if response.Students, err = s.users.CountByRole(ctx, models.RoleStudent); err != nil {
		return dto.OverviewResponse{}, err
	}
	if response.Instructors, err = s.users.CountByRole(ctx, models.RoleInstructor); err != nil {
		return dto.OverviewResponse{}, err
	}
	if response.ActiveBatches, err = s.batches.CountActive(ctx); err != nil {
		return dto.OverviewResponse{}, err
	}
	if response.PendingUsers, err = s.users.CountByStatus(ctx, models.UserStatusPending); err != nil {
		return dto.OverviewResponse{}, err
	}

	return response, nil
}
