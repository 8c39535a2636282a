package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/coursetrack-api/internal/models"
)

func TestCourseRepositoryCreateAndLoadTreeInOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCourseRepository(db)
	ctx := context.Background()

	instructor := seedUser(t, db, "Ada Lovelace", models.RoleInstructor)
	course := sampleCourse("CRS-1001")
	course.Instructors = []models.User{instructor}
	course.Modules[0].Sections[0].Position = 0
	course.Modules[0].Sections[1].Position = 1
	course.Modules[1].Position = 1
	require.NoError(t, repo.Create(ctx, &course))

	loaded, err := repo.GetByID(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Modules, 2)
	require.Equal(t, "Basics", loaded.Modules[0].Title)
	require.Equal(t, []string{"Syntax", "Types"}, []string{loaded.Modules[0].Sections[0].SectionName, loaded.Modules[0].Sections[1].SectionName})
	require.True(t, loaded.HasInstructor(instructor.ID))

	exists, err := repo.CodeExists(ctx, "CRS-1001")
	require.NoError(t, err)
	require.True(t, exists)
	exists, err = repo.CodeExists(ctx, "CRS-9999")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestCourseRepositoryReplaceTreeRewritesModules(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCourseRepository(db)
	ctx := context.Background()

	course := sampleCourse("CRS-2002")
	require.NoError(t, repo.Create(ctx, &course))

	loaded, err := repo.GetByID(ctx, course.ID)
	require.NoError(t, err)
	loaded.CourseName = "Go Advanced"
	loaded.Modules = loaded.Modules[1:]
	loaded.Modules[0].Sections = append(loaded.Modules[0].Sections, models.Section{SectionName: "Channels"})
	loaded.Instructors = nil
	require.NoError(t, repo.ReplaceTree(ctx, &loaded))

	reloaded, err := repo.GetByID(ctx, course.ID)
	require.NoError(t, err)
	require.Equal(t, "Go Advanced", reloaded.CourseName)
	require.Len(t, reloaded.Modules, 1)
	require.Equal(t, "Concurrency", reloaded.Modules[0].Title)
	require.Len(t, reloaded.Modules[0].Sections, 2)
	require.Equal(t, "Channels", reloaded.Modules[0].Sections[1].SectionName)

	var sections int64
	require.NoError(t, db.Model(&models.Section{}).Count(&sections).Error)
	require.Equal(t, int64(2), sections, "old sections must be removed")

	missing := models.Course{ID: 999, CourseCode: "CRS-0000"}
	require.ErrorIs(t, repo.ReplaceTree(ctx, &missing), gorm.ErrRecordNotFound)
}

func TestCourseRepositoryListFiltersByInstructorAndSearch(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCourseRepository(db)
	ctx := context.Background()

	instructor := seedUser(t, db, "Grace Hopper", models.RoleInstructor)
	first := sampleCourse("CRS-3001")
	first.Instructors = []models.User{instructor}
	second := sampleCourse("CRS-3002")
	second.CourseName = "Rust Basics"
	require.NoError(t, repo.Create(ctx, &first))
	require.NoError(t, repo.Create(ctx, &second))

	courses, total, err := repo.List(ctx, CourseFilter{InstructorID: instructor.ID, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "CRS-3001", courses[0].CourseCode)

	courses, total, err = repo.List(ctx, CourseFilter{Search: "rust", PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "Rust Basics", courses[0].CourseName)
	require.Equal(t, 3, courses[0].SectionCount())
}

func TestCourseRepositoryEnrollAndDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCourseRepository(db)
	ctx := context.Background()

	student := seedUser(t, db, "Alan Turing", models.RoleStudent)
	course := sampleCourse("CRS-4004")
	require.NoError(t, repo.Create(ctx, &course))
	require.NoError(t, repo.Enroll(ctx, course.ID, student))
	require.NoError(t, repo.Enroll(ctx, course.ID, student))

	loaded, err := repo.GetByID(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, loaded.EnrolledStudents, 1)

	require.NoError(t, repo.Delete(ctx, course.ID))
	_, err = repo.GetByID(ctx, course.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var modules int64
	require.NoError(t, db.Model(&models.Module{}).Count(&modules).Error)
	require.Zero(t, modules)
}

func TestCourseRepositoryUpsertByCode(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCourseRepository(db)
	ctx := context.Background()

	_, err := repo.UpsertByCode(ctx, []models.Course{{CourseCode: "CRS-5005", CourseName: "Old"}})
	require.NoError(t, err)
	_, err = repo.UpsertByCode(ctx, []models.Course{{CourseCode: "CRS-5005", CourseName: "New"}})
	require.NoError(t, err)

	total, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)

	var course models.Course
	require.NoError(t, db.Where("course_code = ?", "CRS-5005").First(&course).Error)
	require.Equal(t, "New", course.CourseName)
}

func TestCourseRepositoryListOrdersTreeByPosition(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCourseRepository(db)
	ctx := context.Background()

	course := sampleCourse("CRS-1101")
	course.Modules[0].Sections[0].Position = 1
	course.Modules[0].Sections[1].Position = 0
	course.Modules[0].Position = 1
	course.Modules[1].Position = 0
	require.NoError(t, repo.Create(ctx, &course))

	listed, total, err := repo.List(ctx, CourseFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, listed, 1)
	require.Equal(t, []string{"Concurrency", "Basics"}, []string{listed[0].Modules[0].Title, listed[0].Modules[1].Title})
	require.Equal(t, "Types", listed[0].Modules[1].Sections[0].SectionName)
	require.Equal(t, "Syntax", listed[0].Modules[1].Sections[1].SectionName)
}
