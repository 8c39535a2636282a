package dto

import (
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/coursetrack-api/internal/authoring"
	"github.com/noah-isme/coursetrack-api/internal/models"
)

// SectionRequest describes one section of the course form.
type SectionRequest struct {
	SectionName               string   `json:"sectionName" validate:"required"`
	LearningMaterialNotes     string   `json:"learningMaterialNotes" validate:"required"`
	LearningMaterialURLs      []string `json:"learningMaterialUrls" validate:"omitempty,dive,url"`
	CodeChallengeInstructions string   `json:"codeChallengeInstructions" validate:"required"`
	CodeChallengeURLs         []string `json:"codeChallengeUrls" validate:"omitempty,dive,url"`
	VideoReferences           []string `json:"videoReferences"`
}

// ModuleRequest describes one module of the course form.
type ModuleRequest struct {
	Title    string           `json:"title" validate:"required"`
	Sections []SectionRequest `json:"sections" validate:"dive"`
}

// CourseRequest is the whole course tree submitted by the authoring form.
type CourseRequest struct {
	CourseID          string          `json:"courseId" validate:"omitempty,max=32"`
	CourseName        string          `json:"courseName" validate:"required"`
	CourseDescription string          `json:"courseDescription" validate:"required"`
	CourseDuration    string          `json:"courseDuration" validate:"required"`
	InstructorIDs     []uint          `json:"instructorIds"`
	Modules           []ModuleRequest `json:"modules" validate:"dive"`
}

// ModuleCreateRequest appends a module to an existing course.
type ModuleCreateRequest struct {
	Title string `json:"title" validate:"required"`
}

// SectionMoveRequest reorders a section within its module.
type SectionMoveRequest struct {
	Direction string `json:"direction" validate:"required,oneof=up down"`
}

// VideoReferenceRequest appends a video URL to a section.
type VideoReferenceRequest struct {
	URL string `json:"url" validate:"required"`
}

// InstructorAssignRequest adds or removes a course instructor.
type InstructorAssignRequest struct {
	InstructorID uint `json:"instructorId" validate:"required"`
}

// EnrollRequest enrolls a student into a course.
type EnrollRequest struct {
	StudentID uint `json:"studentId" validate:"required"`
	CourseID  uint `json:"courseId" validate:"required"`
}

// CourseListRequest defines filters for the course catalog.
type CourseListRequest struct {
	Search       string
	Sort         string
	Page         int
	PageSize     int
	InstructorID uint
}

// SectionResponse serializes a section. VideoIDs holds the YouTube id for each
// video reference, empty when the reference is not a YouTube link.
type SectionResponse struct {
	SectionName               string   `json:"sectionName"`
	LearningMaterialNotes     string   `json:"learningMaterialNotes"`
	LearningMaterialURLs      []string `json:"learningMaterialUrls"`
	CodeChallengeInstructions string   `json:"codeChallengeInstructions"`
	CodeChallengeURLs         []string `json:"codeChallengeUrls"`
	VideoReferences           []string `json:"videoReferences"`
	VideoIDs                  []string `json:"videoIds"`
}

// ModuleResponse serializes a module.
type ModuleResponse struct {
	Title    string            `json:"title"`
	Sections []SectionResponse `json:"sections"`
}

// CourseResponse is the serialized course tree.
type CourseResponse struct {
	ID                uint             `json:"id"`
	CourseID          string           `json:"courseId"`
	CourseName        string           `json:"courseName"`
	CourseDescription string           `json:"courseDescription"`
	CourseDuration    string           `json:"courseDuration"`
	Instructors       []UserSummary    `json:"instructor"`
	EnrolledStudents  []UserSummary    `json:"enrolledStudents"`
	Modules           []ModuleResponse `json:"modules"`
	SectionCount      int              `json:"sectionCount"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// CourseSummary is the compact course reference embedded in batches.
type CourseSummary struct {
	ID         uint   `json:"id"`
	CourseID   string `json:"courseId"`
	CourseName string `json:"courseName"`
}

// CourseListResponse wraps a paginated course catalog.
type CourseListResponse struct {
	Items      []CourseResponse `json:"items"`
	Pagination PaginationMeta   `json:"pagination"`
}

// ToModel converts the form payload into an unsaved course tree.
func (r CourseRequest) ToModel() models.Course {
	course := models.Course{
		CourseCode:        strings.TrimSpace(r.CourseID),
		CourseName:        strings.TrimSpace(r.CourseName),
		CourseDescription: r.CourseDescription,
		CourseDuration:    strings.TrimSpace(r.CourseDuration),
		Modules:           make([]models.Module, 0, len(r.Modules)),
	}
	for m, module := range r.Modules {
		modelModule := models.Module{
			Position: m,
			Title:    strings.TrimSpace(module.Title),
			Sections: make([]models.Section, 0, len(module.Sections)),
		}
		for s, section := range module.Sections {
			modelModule.Sections = append(modelModule.Sections, section.ToModel(s))
		}
		course.Modules = append(course.Modules, modelModule)
	}
	return course
}

// ToModel converts a section payload into a model at the given position.
func (r SectionRequest) ToModel(position int) models.Section {
	return models.Section{
		Position:                  position,
		SectionName:               strings.TrimSpace(r.SectionName),
		LearningMaterialNotes:     r.LearningMaterialNotes,
		LearningMaterialURLs:      datatypes.JSONSlice[string](nonNil(r.LearningMaterialURLs)),
		CodeChallengeInstructions: r.CodeChallengeInstructions,
		CodeChallengeURLs:         datatypes.JSONSlice[string](nonNil(r.CodeChallengeURLs)),
		VideoReferences:           datatypes.JSONSlice[string](nonNil(r.VideoReferences)),
	}
}

// NewCourseResponse converts a course tree into a DTO.
func NewCourseResponse(course models.Course) CourseResponse {
	modules := make([]ModuleResponse, 0, len(course.Modules))
	for _, module := range course.Modules {
		sections := make([]SectionResponse, 0, len(module.Sections))
		for _, section := range module.Sections {
			sections = append(sections, NewSectionResponse(section))
		}
		modules = append(modules, ModuleResponse{Title: module.Title, Sections: sections})
	}

	return CourseResponse{
		ID:                course.ID,
		CourseID:          course.CourseCode,
		CourseName:        course.CourseName,
		CourseDescription: course.CourseDescription,
		CourseDuration:    course.CourseDuration,
		Instructors:       NewUserSummarySlice(course.Instructors),
		EnrolledStudents:  NewUserSummarySlice(course.EnrolledStudents),
		Modules:           modules,
		SectionCount:      course.SectionCount(),
		CreatedAt:         course.CreatedAt,
		UpdatedAt:         course.UpdatedAt,
	}
}

// NewSectionResponse converts a section, resolving video ids.
func NewSectionResponse(section models.Section) SectionResponse {
	videoIDs := make([]string, 0, len(section.VideoReferences))
	for _, ref := range section.VideoReferences {
		videoIDs = append(videoIDs, authoring.YouTubeID(ref))
	}
	return SectionResponse{
		SectionName:               section.SectionName,
		LearningMaterialNotes:     section.LearningMaterialNotes,
		LearningMaterialURLs:      nonNil(section.LearningMaterialURLs),
		CodeChallengeInstructions: section.CodeChallengeInstructions,
		CodeChallengeURLs:         nonNil(section.CodeChallengeURLs),
		VideoReferences:           nonNil(section.VideoReferences),
		VideoIDs:                  videoIDs,
	}
}

// NewCourseSummary converts a course into its compact form.
func NewCourseSummary(course models.Course) CourseSummary {
	return CourseSummary{ID: course.ID, CourseID: course.CourseCode, CourseName: course.CourseName}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
