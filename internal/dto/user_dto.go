package dto

import (
	"time"

	"github.com/noah-isme/coursetrack-api/internal/models"
)

// UserRegisterRequest describes a registration or admin-created account.
type UserRegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	Role     string `json:"role" validate:"omitempty,oneof=admin instructor student"`
}

// UserUpdateRequest captures partial updates for an account.
type UserUpdateRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=2"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone" validate:"omitempty,max=32"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin instructor student"`
	Status   *string `json:"status" validate:"omitempty,oneof=pending active"`
	Password *string `json:"password" validate:"omitempty,min=8"`
}

// UserListRequest defines filters for the user directory.
type UserListRequest struct {
	Role     string
	Status   string
	Search   string
	Sort     string
	Page     int
	PageSize int
}

// UserSummary is the compact user reference embedded in other payloads.
type UserSummary struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// UserResponse serializes an account.
type UserResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserListResponse wraps a paginated directory listing.
type UserListResponse struct {
	Items      []UserResponse `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// NewUserSummary converts a user into its compact form.
func NewUserSummary(user models.User) UserSummary {
	return UserSummary{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}
}

// NewUserSummarySlice converts users into compact references.
func NewUserSummarySlice(users []models.User) []UserSummary {
	summaries := make([]UserSummary, 0, len(users))
	for _, user := range users {
		summaries = append(summaries, NewUserSummary(user))
	}
	return summaries
}

// NewUserResponse converts a model into a DTO.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Phone:     user.Phone,
		Role:      user.Role,
		Status:    user.Status,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

// NewUserResponseSlice converts a slice of models into DTOs.
func NewUserResponseSlice(users []models.User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, NewUserResponse(user))
	}
	return responses
}

// LoginRequest carries credentials for token issuance.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the bearer token the client stores.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// OverviewResponse summarises the platform for the admin dashboard.
type OverviewResponse struct {
	Courses       int64 `json:"courses"`
	Students      int64 `json:"students"`
	Instructors   int64 `json:"instructors"`
	ActiveBatches int64 `json:"activeBatches"`
	PendingUsers  int64 `json:"pendingUsers"`
}
