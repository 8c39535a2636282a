package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/coursetrack-api/internal/models"
)

// BatchRepository persists batches and their membership.
type BatchRepository interface {
	Create(ctx context.Context, batch *models.Batch) error
	GetByID(ctx context.Context, id uint) (models.Batch, error)
	ListByCourse(ctx context.Context, courseID uint) ([]models.Batch, error)
	ListByInstructor(ctx context.Context, instructorID uint) ([]models.Batch, error)
	AddStudents(ctx context.Context, batchID uint, students []models.User) error
	RemoveStudents(ctx context.Context, batchID uint, students []models.User) error
	IDsForStudent(ctx context.Context, studentID, courseID uint) ([]uint, error)
	CountActive(ctx context.Context) (int64, error)
}

type batchRepository struct {
	db *gorm.DB
}

// NewBatchRepository constructs a batch repository.
func NewBatchRepository(db *gorm.DB) BatchRepository {
	return &batchRepository{db: db}
}

// Members are ordered by id; that order drives the batch fan-out.
func orderedStudents(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

func (r *batchRepository) Create(ctx context.Context, batch *models.Batch) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		students := batch.Students
		if err := tx.Omit(clause.Associations).Create(batch).Error; err != nil {
			return err
		}
		if len(students) == 0 {
			return nil
		}
		return tx.Model(batch).Association("Students").Append(students)
	})
}

func (r *batchRepository) GetByID(ctx context.Context, id uint) (models.Batch, error) {
	var batch models.Batch
	query := r.db.WithContext(ctx).
		Preload("Course.Modules", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Preload("Course.Modules.Sections", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Preload("Course.Instructors").
		Preload("Instructor").
		Preload("Students", orderedStudents)
	if err := query.First(&batch, id).Error; err != nil {
		return models.Batch{}, err
	}
	return batch, nil
}

func (r *batchRepository) ListByCourse(ctx context.Context, courseID uint) ([]models.Batch, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("course_id = ?", courseID))
}

func (r *batchRepository) ListByInstructor(ctx context.Context, instructorID uint) ([]models.Batch, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("instructor_id = ?", instructorID))
}

func (r *batchRepository) list(_ context.Context, query *gorm.DB) ([]models.Batch, error) {
	var batches []models.Batch
	err := query.
		Preload("Course").
		Preload("Instructor").
		Preload("Students", orderedStudents).
		Order("created_at DESC, id DESC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *batchRepository) AddStudents(ctx context.Context, batchID uint, students []models.User) error {
	if len(students) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Batch{ID: batchID}).Association("Students").Append(students)
}

func (r *batchRepository) RemoveStudents(ctx context.Context, batchID uint, students []models.User) error {
	if len(students) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Batch{ID: batchID}).Association("Students").Delete(students)
}

// IDsForStudent lists the batches of a course the student belongs to.
func (r *batchRepository) IDsForStudent(ctx context.Context, studentID, courseID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Batch{}).
		Joins("JOIN batch_students ON batch_students.batch_id = batches.id").
		Where("batch_students.user_id = ? AND batches.course_id = ?", studentID, courseID).
		Pluck("batches.id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *batchRepository) CountActive(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Batch{}).Where("status = ?", models.BatchStatusActive).Count(&total).Error
	return total, err
}
