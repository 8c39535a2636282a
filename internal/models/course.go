package models

import (
	"time"

	"gorm.io/datatypes"
)

// Course is the root of the content tree: course -> modules -> sections.
type Course struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	CourseCode        string    `gorm:"size:32;uniqueIndex;not null" json:"courseId"`
	CourseName        string    `gorm:"size:255;not null" json:"courseName"`
	CourseDescription string    `gorm:"type:text" json:"courseDescription"`
	CourseDuration    string    `gorm:"size:64" json:"courseDuration"`
	ExternalID        *string   `gorm:"size:128;uniqueIndex" json:"externalId,omitempty"`
	Instructors       []User    `gorm:"many2many:course_instructors;" json:"instructor"`
	EnrolledStudents  []User    `gorm:"many2many:course_students;" json:"enrolledStudents"`
	Modules           []Module  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"modules"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Module is an ordered group of sections. It has no identity outside its course.
type Module struct {
	ID       uint      `gorm:"primaryKey" json:"-"`
	CourseID uint      `gorm:"index;not null" json:"-"`
	Position int       `gorm:"not null;default:0" json:"-"`
	Title    string    `gorm:"size:255;not null" json:"title"`
	Sections []Section `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"sections"`
}

// Section is the leaf content unit and the unit of completion tracking.
type Section struct {
	ID                        uint                        `gorm:"primaryKey" json:"-"`
	ModuleID                  uint                        `gorm:"index;not null" json:"-"`
	Position                  int                         `gorm:"not null;default:0" json:"-"`
	SectionName               string                      `gorm:"size:255;not null" json:"sectionName"`
	LearningMaterialNotes     string                      `gorm:"type:text" json:"learningMaterialNotes"`
	LearningMaterialURLs      datatypes.JSONSlice[string] `gorm:"column:learning_material_urls" json:"learningMaterialUrls"`
	CodeChallengeInstructions string                      `gorm:"type:text" json:"codeChallengeInstructions"`
	CodeChallengeURLs         datatypes.JSONSlice[string] `gorm:"column:code_challenge_urls" json:"codeChallengeUrls"`
	VideoReferences           datatypes.JSONSlice[string] `gorm:"column:video_references" json:"videoReferences"`
}

// SectionCount returns the number of sections across every module.
func (c Course) SectionCount() int {
	total := 0
	for _, module := range c.Modules {
		total += len(module.Sections)
	}
	return total
}

// HasInstructor reports whether the user is assigned to teach the course.
func (c Course) HasInstructor(userID uint) bool {
	for _, instructor := range c.Instructors {
		if instructor.ID == userID {
			return true
		}
	}
	return false
}

// HasSection reports whether the positional pair exists in the course tree.
func (c Course) HasSection(moduleIndex, sectionIndex int) bool {
	if moduleIndex < 0 || moduleIndex >= len(c.Modules) {
		return false
	}
	return sectionIndex >= 0 && sectionIndex < len(c.Modules[moduleIndex].Sections)
}
