package repository

import (
	"cbseprep_backend/internal/model"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) Create(q *model.Question) error {
	return r.DB.Create(q).Error
}

func (r *QuestionRepository) FindByID(id uint) (*model.Question, error) {
	var q model.Question
	err := r.DB.First(&q, id).Error
	return &q, err
}

func (r *QuestionRepository) Update(q *model.Question) error {
	return r.DB.Save(q).Error
}

func (r *QuestionRepository) Delete(id uint) error {
	return r.DB.Delete(&model.Question{}, id).Error
}

// FindCandidates returns every active bank question matching a template
// section's draw criteria. Sampling happens in the service so the draw
// stays portable across databases.
func (r *QuestionRepository) FindCandidates(classLevel int, qtype model.QuestionType, marks float64) ([]model.Question, error) {
	var qs []model.Question
	err := r.DB.
		Where("class_level = ? AND question_type = ? AND marks = ? AND is_active = ?", classLevel, qtype, marks, true).
		Find(&qs).Error
	return qs, err
}

func (r *QuestionRepository) List(classLevel int, qtype string, page, limit int) ([]model.Question, int64, error) {
	var qs []model.Question
	var total int64
	query := r.DB.Model(&model.Question{})
	if classLevel > 0 {
		query = query.Where("class_level = ?", classLevel)
	}
	if qtype != "" {
		query = query.Where("question_type = ?", qtype)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&qs).Error
	return qs, total, err
}
