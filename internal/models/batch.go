package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// BatchStatusActive marks a running batch.
	BatchStatusActive = "active"
	// BatchStatusInactive marks a finished or paused batch.
	BatchStatusInactive = "inactive"
)

// Batch groups students under one course, instructor and schedule.
type Batch struct {
	ID           uint                        `gorm:"primaryKey" json:"id"`
	Name         string                      `gorm:"size:255;not null" json:"name"`
	CourseID     uint                        `gorm:"index;not null" json:"courseId"`
	InstructorID uint                        `gorm:"index;not null" json:"instructorId"`
	ClassTiming  string                      `gorm:"size:64" json:"classTiming"`
	StartDate    time.Time                   `json:"startDate"`
	DaysOfWeek   datatypes.JSONSlice[string] `json:"daysOfWeek"`
	Status       string                      `gorm:"size:16;not null;default:active" json:"status"`
	Course       Course                      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"course"`
	Instructor   User                        `gorm:"foreignKey:InstructorID" json:"instructor"`
	Students     []User                      `gorm:"many2many:batch_students;" json:"students"`
	CreatedAt    time.Time                   `json:"createdAt"`
	UpdatedAt    time.Time                   `json:"updatedAt"`
}

// StudentIDs returns member ids in membership order.
func (b Batch) StudentIDs() []uint {
	ids := make([]uint, 0, len(b.Students))
	for _, student := range b.Students {
		ids = append(ids, student.ID)
	}
	return ids
}

// HasStudent reports batch membership.
func (b Batch) HasStudent(studentID uint) bool {
	for _, student := range b.Students {
		if student.ID == studentID {
			return true
		}
	}
	return false
}
