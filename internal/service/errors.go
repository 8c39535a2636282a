package service

import (
	"errors"

	"github.com/noah-isme/coursetrack-api/internal/models"
)

var (
	// ErrCourseNotFound indicates the course does not exist.
	ErrCourseNotFound = errors.New("course not found")
	// ErrCourseCodeTaken indicates another course already uses the code.
	ErrCourseCodeTaken = errors.New("course code already in use")
	// ErrCourseCodeExhausted indicates no free course code was found.
	ErrCourseCodeExhausted = errors.New("could not allocate a unique course code")
	// ErrInvalidFileKind indicates an attachment kind other than material or challenge.
	ErrInvalidFileKind = errors.New("file kind must be material or challenge")
	// ErrProgressNotFound indicates the student has no record for the course.
	ErrProgressNotFound = errors.New("progress record not found")
	// ErrIndexOutOfRange indicates a module/section pair outside the course tree.
	ErrIndexOutOfRange = models.ErrIndexOutOfRange
	// ErrBatchNotFound indicates the batch does not exist.
	ErrBatchNotFound = errors.New("batch not found")
	// ErrBatchBusy indicates a batch-wide update is already running for the batch.
	ErrBatchBusy = errors.New("batch update already in progress")
	// ErrBatchCourseMismatch indicates the batch belongs to another course.
	ErrBatchCourseMismatch = errors.New("batch does not belong to course")
	// ErrUserNotFound indicates the account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrRoleMismatch indicates the account does not have the role the operation needs.
	ErrRoleMismatch = errors.New("user does not have the required role")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUserNotPending indicates the account is not awaiting approval.
	ErrUserNotPending = errors.New("user is not pending approval")
	// ErrInvalidCredentials indicates a failed login.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserInactive indicates the account has not been approved yet.
	ErrUserInactive = errors.New("account awaiting approval")
)

func clampPageSize(size int) int {
	if size <= 0 {
		return 20
	}
	if size > 100 {
		return 100
	}
	return size
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ErrStorageUnavailable indicates file storage is not configured.
var ErrStorageUnavailable = errors.New("file storage not configured")
