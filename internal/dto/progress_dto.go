package dto

import (
	"time"

	"github.com/noah-isme/coursetrack-api/internal/models"
)

// ProgressUpdateRequest toggles completion of one section, addressed positionally.
// Pointers keep index 0 and false distinguishable from "missing".
type ProgressUpdateRequest struct {
	ModuleIndex  *int  `json:"moduleIndex" validate:"required,min=0"`
	SectionIndex *int  `json:"sectionIndex" validate:"required,min=0"`
	IsCompleted  *bool `json:"isCompleted" validate:"required"`
}

// NewProgressUpdate builds an update request from plain values.
func NewProgressUpdate(moduleIndex, sectionIndex int, completed bool) ProgressUpdateRequest {
	return ProgressUpdateRequest{
		ModuleIndex:  &moduleIndex,
		SectionIndex: &sectionIndex,
		IsCompleted:  &completed,
	}
}

// Values dereferences the request. Callers validate first.
func (r ProgressUpdateRequest) Values() (moduleIndex, sectionIndex int, completed bool) {
	if r.ModuleIndex != nil {
		moduleIndex = *r.ModuleIndex
	}
	if r.SectionIndex != nil {
		sectionIndex = *r.SectionIndex
	}
	if r.IsCompleted != nil {
		completed = *r.IsCompleted
	}
	return moduleIndex, sectionIndex, completed
}

// ProgressSectionResponse serializes one tracked section. ContentAvailable gates the
// view/download actions of the student view.
type ProgressSectionResponse struct {
	SectionName      string     `json:"sectionName"`
	IsCompleted      bool       `json:"isCompleted"`
	CompletionTime   *time.Time `json:"completionTime"`
	ContentAvailable bool       `json:"contentAvailable"`
}

// ProgressModuleResponse serializes one tracked module.
type ProgressModuleResponse struct {
	Title             string                    `json:"title"`
	CompletedSections int                       `json:"completedSections"`
	Sections          []ProgressSectionResponse `json:"sections"`
}

// ProgressResponse is the serialized progress record with derived percentages.
type ProgressResponse struct {
	ID                 uint                     `json:"id"`
	Student            UserSummary              `json:"student"`
	CourseID           uint                     `json:"courseId"`
	CourseName         string                   `json:"courseName"`
	Modules            []ProgressModuleResponse `json:"modules"`
	CompletedSections  int                      `json:"completedSections"`
	TotalSections      int                      `json:"totalSections"`
	ProgressPercentage int                      `json:"progressPercentage"`
	UpdatedAt          time.Time                `json:"updatedAt"`
}

// NewProgressResponse converts a record into a DTO.
func NewProgressResponse(record models.ProgressRecord) ProgressResponse {
	modules := make([]ProgressModuleResponse, 0, len(record.Modules))
	for _, module := range record.Modules {
		sections := make([]ProgressSectionResponse, 0, len(module.Sections))
		completed := 0
		for _, section := range module.Sections {
			if section.IsCompleted {
				completed++
			}
			sections = append(sections, ProgressSectionResponse{
				SectionName:      section.SectionName,
				IsCompleted:      section.IsCompleted,
				CompletionTime:   section.CompletionTime,
				ContentAvailable: section.IsCompleted,
			})
		}
		modules = append(modules, ProgressModuleResponse{
			Title:             module.Title,
			CompletedSections: completed,
			Sections:          sections,
		})
	}

	completed, total := record.Counts()
	student := NewUserSummary(record.Student)
	if student.ID == 0 {
		student.ID = record.StudentID
	}

	return ProgressResponse{
		ID:                 record.ID,
		Student:            student,
		CourseID:           record.CourseID,
		CourseName:         record.CourseName,
		Modules:            modules,
		CompletedSections:  completed,
		TotalSections:      total,
		ProgressPercentage: models.Percentage(completed, total),
		UpdatedAt:          record.UpdatedAt,
	}
}
