package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/coursetrack-api/internal/models"
	"github.com/noah-isme/coursetrack-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

type fixture struct {
	db       *gorm.DB
	courses  repository.CourseRepository
	users    repository.UserRepository
	records  repository.ProgressRepository
	batches  repository.BatchRepository
	events   ProgressEventBus
	progress ProgressService
}

func newFixture(t *testing.T) *fixture {
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

	f := &fixture{
		db:      db,
		courses: repository.NewCourseRepository(db),
		users:   repository.NewUserRepository(db),
		records: repository.NewProgressRepository(db),
		batches: repository.NewBatchRepository(db),
		events:  NewProgressEventBus(nil, nil, "", testLogger()),
	}
	f.progress = NewProgressService(f.records, f.events, testValidator(), testLogger())
	return f
}

func (f *fixture) user(t *testing.T, name, role string) models.User {
	t.Helper()
	user := models.User{
		Name:   name,
		Email:  strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Role:   role,
		Status: models.UserStatusActive,
	}
	require.NoError(t, f.db.Create(&user).Error)
	return user
}

// course creates one module per entry of sectionsPerModule.
func (f *fixture) course(t *testing.T, code string, sectionsPerModule ...int) models.Course {
	t.Helper()
	course := models.Course{
		CourseCode:        code,
		CourseName:        "Course " + code,
		CourseDescription: "description",
		CourseDuration:    "4 weeks",
	}
	for m, count := range sectionsPerModule {
		module := models.Module{Title: fmt.Sprintf("Module %d", m+1), Position: m}
		for s := 0; s < count; s++ {
			module.Sections = append(module.Sections, models.Section{
				Position:                  s,
				SectionName:               fmt.Sprintf("Section %d.%d", m+1, s+1),
				LearningMaterialNotes:     "notes",
				CodeChallengeInstructions: "instructions",
			})
		}
		course.Modules = append(course.Modules, module)
	}
	require.NoError(t, f.courses.Create(context.Background(), &course))

	loaded, err := f.courses.GetByID(context.Background(), course.ID)
	require.NoError(t, err)
	return loaded
}

func uintString(v uint) string {
	return fmt.Sprintf("%d", v)
}
