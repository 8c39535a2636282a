package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/coursetrack-api/internal/models"
)

// ProgressRepository persists per-student progress records.
type ProgressRepository interface {
	Get(ctx context.Context, studentID, courseID uint) (models.ProgressRecord, error)
	CreateIfMissing(ctx context.Context, record *models.ProgressRecord) (bool, error)
	Save(ctx context.Context, record *models.ProgressRecord) error
	ListForStudents(ctx context.Context, courseID uint, studentIDs []uint) ([]models.ProgressRecord, error)
	ListByCourse(ctx context.Context, courseID uint) ([]models.ProgressRecord, error)
	UpdateSection(ctx context.Context, studentID, courseID uint, moduleIndex, sectionIndex int, completed bool, now time.Time) (models.ProgressRecord, error)
}

type progressRepository struct {
	db *gorm.DB
}

// NewProgressRepository constructs a progress repository.
func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) Get(ctx context.Context, studentID, courseID uint) (models.ProgressRecord, error) {
	var record models.ProgressRecord
	query := r.db.WithContext(ctx).Preload("Student").
		Where("student_id = ? AND course_id = ?", studentID, courseID)
	if err := query.First(&record).Error; err != nil {
		return models.ProgressRecord{}, err
	}
	return record, nil
}

// CreateIfMissing inserts the record unless one already exists for the pair.
func (r *progressRepository) CreateIfMissing(ctx context.Context, record *models.ProgressRecord) (bool, error) {
	result := r.db.WithContext(ctx).Omit("Student").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "course_id"}},
		DoNothing: true,
	}).Create(record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *progressRepository) Save(ctx context.Context, record *models.ProgressRecord) error {
	return r.db.WithContext(ctx).Omit("Student").Save(record).Error
}

func (r *progressRepository) ListForStudents(ctx context.Context, courseID uint, studentIDs []uint) ([]models.ProgressRecord, error) {
	if len(studentIDs) == 0 {
		return []models.ProgressRecord{}, nil
	}

	var records []models.ProgressRecord
	err := r.db.WithContext(ctx).
		Where("course_id = ? AND student_id IN ?", courseID, studentIDs).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *progressRepository) ListByCourse(ctx context.Context, courseID uint) ([]models.ProgressRecord, error) {
	var records []models.ProgressRecord
	if err := r.db.WithContext(ctx).Where("course_id = ?", courseID).Order("id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// UpdateSection toggles one section and returns the refreshed record.
func (r *progressRepository) UpdateSection(ctx context.Context, studentID, courseID uint, moduleIndex, sectionIndex int, completed bool, now time.Time) (models.ProgressRecord, error) {
	var record models.ProgressRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("student_id = ? AND course_id = ?", studentID, courseID).First(&record).Error; err != nil {
			return err
		}
		if err := record.SetCompletion(moduleIndex, sectionIndex, completed, now); err != nil {
			return err
		}
		return tx.Omit("Student").Save(&record).Error
	})
	if err != nil {
		return models.ProgressRecord{}, err
	}

	return r.Get(ctx, studentID, courseID)
}
