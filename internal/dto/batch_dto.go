package dto

import (
	"fmt"
	"time"

	"github.com/noah-isme/coursetrack-api/internal/models"
)

// BatchCreateRequest describes a new batch.
type BatchCreateRequest struct {
	Name         string   `json:"name" validate:"required,min=2"`
	CourseID     uint     `json:"courseId" validate:"required"`
	InstructorID uint     `json:"instructorId" validate:"required"`
	ClassTiming  string   `json:"classTiming" validate:"omitempty,max=64"`
	StartDate    string   `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	DaysOfWeek   []string `json:"daysOfWeek" validate:"omitempty,dive,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
	Status       string   `json:"status" validate:"omitempty,oneof=active inactive"`
	StudentIDs   []uint   `json:"students"`
}

// BatchMembersRequest adds and removes students from a batch.
type BatchMembersRequest struct {
	Add    []uint `json:"add"`
	Remove []uint `json:"remove"`
}

// SectionAggregateStatus reports whether every batch student completed a section.
type SectionAggregateStatus struct {
	ModuleIndex    int    `json:"moduleIndex"`
	SectionIndex   int    `json:"sectionIndex"`
	ModuleTitle    string `json:"moduleTitle"`
	SectionName    string `json:"sectionName"`
	AllCompleted   bool   `json:"allCompleted"`
	CompletedCount int    `json:"completedCount"`
	TotalStudents  int    `json:"totalStudents"`
}

// BatchStudentResponse lists a member with the path to their progress view.
type BatchStudentResponse struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	ProgressPath string `json:"progressPath"`
}

// BatchResponse serializes a batch.
type BatchResponse struct {
	ID           uint                   `json:"id"`
	Name         string                 `json:"name"`
	Course       CourseSummary          `json:"course"`
	Instructor   UserSummary            `json:"instructor"`
	ClassTiming  string                 `json:"classTiming"`
	StartDate    time.Time              `json:"startDate"`
	DaysOfWeek   []string               `json:"daysOfWeek"`
	Status       string                 `json:"status"`
	Students     []BatchStudentResponse `json:"students"`
	StudentCount int                    `json:"studentCount"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}

// BatchViewResponse is the instructor's batch page: batch, course tree and per-section status.
type BatchViewResponse struct {
	Batch    BatchResponse            `json:"batch"`
	Course   CourseResponse           `json:"course"`
	Sections []SectionAggregateStatus `json:"sections"`
}

// BatchToggleResponse reports the outcome of a batch-wide section toggle.
type BatchToggleResponse struct {
	Applied  []uint                   `json:"applied"`
	Sections []SectionAggregateStatus `json:"sections"`
}

// NewBatchResponse converts a batch into a DTO.
func NewBatchResponse(batch models.Batch) BatchResponse {
	students := make([]BatchStudentResponse, 0, len(batch.Students))
	for _, student := range batch.Students {
		students = append(students, BatchStudentResponse{
			ID:           student.ID,
			Name:         student.Name,
			Email:        student.Email,
			ProgressPath: fmt.Sprintf("/progress/%d/%d", student.ID, batch.CourseID),
		})
	}

	course := NewCourseSummary(batch.Course)
	if course.ID == 0 {
		course.ID = batch.CourseID
	}
	instructor := NewUserSummary(batch.Instructor)
	if instructor.ID == 0 {
		instructor.ID = batch.InstructorID
	}

	days := []string(batch.DaysOfWeek)
	if days == nil {
		days = []string{}
	}

	return BatchResponse{
		ID:           batch.ID,
		Name:         batch.Name,
		Course:       course,
		Instructor:   instructor,
		ClassTiming:  batch.ClassTiming,
		StartDate:    batch.StartDate,
		DaysOfWeek:   days,
		Status:       batch.Status,
		Students:     students,
		StudentCount: len(students),
		CreatedAt:    batch.CreatedAt,
		UpdatedAt:    batch.UpdatedAt,
	}
}

// NewBatchResponseSlice converts batches into DTOs.
func NewBatchResponseSlice(batches []models.Batch) []BatchResponse {
	responses := make([]BatchResponse, 0, len(batches))
	for _, batch := range batches {
		responses = append(responses, NewBatchResponse(batch))
	}
	return responses
}
