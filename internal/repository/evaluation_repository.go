package repository

import (
	"cbseprep_backend/internal/model"

	"gorm.io/gorm"
)

type EvaluationRepository struct {
	DB *gorm.DB
}

func NewEvaluationRepository(db *gorm.DB) *EvaluationRepository {
	return &EvaluationRepository{DB: db}
}

func (r *EvaluationRepository) FindByID(id uint) (*model.Evaluation, error) {
	var e model.Evaluation
	err := r.DB.First(&e, id).Error
	return &e, err
}

func (r *EvaluationRepository) FindBySession(sessionID uint) (*model.Evaluation, error) {
	var e model.Evaluation
	err := r.DB.Where("exam_session_id = ?", sessionID).First(&e).Error
	return &e, err
}

func (r *EvaluationRepository) Save(e *model.Evaluation) error {
	return r.DB.Save(e).Error
}

// ListOpen returns every evaluation not yet completed. The sweep reads
// this without locks; rows may complete concurrently and that is fine.
func (r *EvaluationRepository) ListOpen() ([]model.Evaluation, error) {
	var es []model.Evaluation
	err := r.DB.Where("status <> ?", model.EvaluationCompleted).Find(&es).Error
	return es, err
}

func (r *EvaluationRepository) ListByTeacher(teacherID uint, page, limit int) ([]model.Evaluation, int64, error) {
	var es []model.Evaluation
	var total int64
	query := r.DB.Model(&model.Evaluation{}).Where("teacher_id = ?", teacherID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("deadline asc").Offset(offset).Limit(limit).Find(&es).Error
	return es, total, err
}

func (r *EvaluationRepository) CountByTeacherAndStatus(teacherID uint, status model.EvaluationStatus) (int64, error) {
	var n int64
	err := r.DB.Model(&model.Evaluation{}).
		Where("teacher_id = ? AND status = ?", teacherID, status).
		Count(&n).Error
	return n, err
}

func (r *EvaluationRepository) FindMarks(evaluationID uint) ([]model.QuestionMark, error) {
	var ms []model.QuestionMark
	err := r.DB.Where("evaluation_id = ?", evaluationID).Order("question_number asc").Find(&ms).Error
	return ms, err
}
