package dto

import "time"

// SyncStatusResponse is returned immediately when a directory sync is triggered.
type SyncStatusResponse struct {
	Resource  string    `json:"resource"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	StartedAt time.Time `json:"startedAt"`
}

// ExternalCourse is a course as exposed by the external directory.
type ExternalCourse struct {
	ExternalID        string `json:"externalId"`
	CourseID          string `json:"courseId"`
	CourseName        string `json:"courseName"`
	CourseDescription string `json:"courseDescription"`
	CourseDuration    string `json:"courseDuration"`
}

// ExternalUser is an instructor or student as exposed by the external directory.
type ExternalUser struct {
	ExternalID string `json:"externalId"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
}
