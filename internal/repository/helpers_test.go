package repository

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/coursetrack-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name, role string) models.User {
	t.Helper()
	user := models.User{
		Name:   name,
		Email:  strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Role:   role,
		Status: models.UserStatusActive,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func sampleCourse(code string) models.Course {
	return models.Course{
		CourseCode:        code,
		CourseName:        "Go Fundamentals",
		CourseDescription: "Types, interfaces and concurrency",
		CourseDuration:    "6 weeks",
		Modules: []models.Module{
			{Title: "Basics", Sections: []models.Section{
				{SectionName: "Syntax", LearningMaterialNotes: "notes", CodeChallengeInstructions: "do it"},
				{SectionName: "Types", LearningMaterialNotes: "notes", CodeChallengeInstructions: "do it"},
			}},
			{Title: "Concurrency", Sections: []models.Section{
				{SectionName: "Goroutines", LearningMaterialNotes: "notes", CodeChallengeInstructions: "do it"},
			}},
		},
	}
}
