package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/coursetrack-api/internal/models"
)

// CourseFilter filters the course catalog.
type CourseFilter struct {
	Search       string
	Sort         string
	Page         int
	PageSize     int
	InstructorID uint
}

// CourseRepository persists courses together with their module/section tree.
type CourseRepository interface {
	List(ctx context.Context, filter CourseFilter) ([]models.Course, int64, error)
	GetByID(ctx context.Context, id uint) (models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	ReplaceTree(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id uint) error
	CodeExists(ctx context.Context, code string) (bool, error)
	AddInstructor(ctx context.Context, courseID uint, instructor models.User) error
	RemoveInstructor(ctx context.Context, courseID uint, instructor models.User) error
	Enroll(ctx context.Context, courseID uint, students ...models.User) error
	Count(ctx context.Context) (int64, error)
	UpsertByCode(ctx context.Context, courses []models.Course) (int64, error)
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository constructs a course repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

// withTree preloads modules and sections in position order.
func withTree(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Modules", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Preload("Modules.Sections", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") })
}

func (r *courseRepository) List(ctx context.Context, filter CourseFilter) ([]models.Course, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Course{})

	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(course_name) LIKE ? OR LOWER(course_code) LIKE ?", like, like)
	}
	if filter.InstructorID != 0 {
		query = query.Where("id IN (?)", r.db.Table("course_instructors").Select("course_id").Where("user_id = ?", filter.InstructorID))
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(normalizeCourseSort(filter.Sort))
	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Limit(filter.PageSize).Offset((page - 1) * filter.PageSize)
	}

	var courses []models.Course
	if err := withTree(query).Preload("Instructors").Find(&courses).Error; err != nil {
		return nil, 0, err
	}

	return courses, total, nil
}

func (r *courseRepository) GetByID(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	query := withTree(r.db.WithContext(ctx)).Preload("Instructors").Preload("EnrolledStudents")
	if err := query.First(&course, id).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *courseRepository) Create(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		instructors := course.Instructors
		if err := tx.Omit("Instructors", "EnrolledStudents").Create(course).Error; err != nil {
			return err
		}
		if len(instructors) == 0 {
			return nil
		}
		return tx.Model(course).Association("Instructors").Replace(instructors)
	})
}

// ReplaceTree overwrites the course fields and rewrites every module and section.
// A nil Instructors slice leaves the assignment untouched.
func (r *courseRepository) ReplaceTree(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"course_code":        course.CourseCode,
			"course_name":        course.CourseName,
			"course_description": course.CourseDescription,
			"course_duration":    course.CourseDuration,
		}
		result := tx.Model(&models.Course{}).Where("id = ?", course.ID).Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := deleteTree(tx, course.ID); err != nil {
			return err
		}

		for i := range course.Modules {
			module := &course.Modules[i]
			module.ID = 0
			module.CourseID = course.ID
			module.Position = i
			for j := range module.Sections {
				module.Sections[j].ID = 0
				module.Sections[j].ModuleID = 0
				module.Sections[j].Position = j
			}
			if err := tx.Create(module).Error; err != nil {
				return err
			}
		}

		if course.Instructors != nil {
			return tx.Model(&models.Course{ID: course.ID}).Association("Instructors").Replace(course.Instructors)
		}
		return nil
	})
}

func (r *courseRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteTree(tx, id); err != nil {
			return err
		}

		if err := tx.Exec("DELETE FROM batch_students WHERE batch_id IN (SELECT id FROM batches WHERE course_id = ?)", id).Error; err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", id).Delete(&models.Batch{}).Error; err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", id).Delete(&models.ProgressRecord{}).Error; err != nil {
			return err
		}
		for _, table := range []string{"course_instructors", "course_students"} {
			if err := tx.Exec("DELETE FROM "+table+" WHERE course_id = ?", id).Error; err != nil {
				return err
			}
		}

		result := tx.Delete(&models.Course{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func deleteTree(tx *gorm.DB, courseID uint) error {
	moduleIDs := tx.Model(&models.Module{}).Select("id").Where("course_id = ?", courseID)
	if err := tx.Where("module_id IN (?)", moduleIDs).Delete(&models.Section{}).Error; err != nil {
		return err
	}
	return tx.Where("course_id = ?", courseID).Delete(&models.Module{}).Error
}

func (r *courseRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Course{}).Where("course_code = ?", code).Count(&total).Error; err != nil {
		return false, err
	}
	return total > 0, nil
}

func (r *courseRepository) AddInstructor(ctx context.Context, courseID uint, instructor models.User) error {
	return r.db.WithContext(ctx).Model(&models.Course{ID: courseID}).Association("Instructors").Append(&instructor)
}

func (r *courseRepository) RemoveInstructor(ctx context.Context, courseID uint, instructor models.User) error {
	return r.db.WithContext(ctx).Model(&models.Course{ID: courseID}).Association("Instructors").Delete(&instructor)
}

func (r *courseRepository) Enroll(ctx context.Context, courseID uint, students ...models.User) error {
	if len(students) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Course{ID: courseID}).Association("EnrolledStudents").Append(students)
}

func (r *courseRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Course{}).Count(&total).Error
	return total, err
}

func (r *courseRepository) UpsertByCode(ctx context.Context, courses []models.Course) (int64, error) {
	if len(courses) == 0 {
		return 0, nil
	}

	tx := r.db.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "course_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"course_name", "course_description", "course_duration", "external_id", "updated_at"}),
	})

	result := tx.Create(&courses)
	return result.RowsAffected, result.Error
}

func normalizeCourseSort(sort string) string {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "name":
		return "course_name ASC"
	case "-name":
		return "course_name DESC"
	case "code":
		return "course_code ASC"
	case "-code":
		return "course_code DESC"
	case "created_at":
		return "created_at ASC"
	default:
		return "created_at DESC"
	}
}
