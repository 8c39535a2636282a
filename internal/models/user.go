package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	// RoleAdmin manages every course, batch and user.
	RoleAdmin = "admin"
	// RoleInstructor teaches batches and tracks their progress.
	RoleInstructor = "instructor"
	// RoleStudent is enrolled in courses and batches.
	RoleStudent = "student"
)

const (
	// UserStatusPending marks a self-registration awaiting admin approval.
	UserStatusPending = "pending"
	// UserStatusActive marks an approved account.
	UserStatusActive = "active"
)

// User represents any account of the platform: admins, instructors and students.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"size:255;not null" json:"name"`
	Email        string         `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Phone        string         `gorm:"size:32" json:"phone"`
	PasswordHash string         `gorm:"size:255" json:"-"`
	Role         string         `gorm:"size:32;index;not null" json:"role"`
	Status       string         `gorm:"size:32;index;not null;default:active" json:"status"`
	ExternalID   *string        `gorm:"size:128;uniqueIndex" json:"externalId,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsActive reports whether the account has been approved.
func (u User) IsActive() bool {
	return u.Status == UserStatusActive
}

// NormalizeRole lower-cases and trims a role value.
func NormalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// IsValidRole reports whether the role is one of the platform roles.
func IsValidRole(role string) bool {
	switch NormalizeRole(role) {
	case RoleAdmin, RoleInstructor, RoleStudent:
		return true
	default:
		return false
	}
}
