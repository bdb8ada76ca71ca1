package repository

import (
	"cbseprep_backend/internal/model"
	"errors"

	"gorm.io/gorm"
)

type ExamRepository struct {
	DB *gorm.DB
}

func NewExamRepository(db *gorm.DB) *ExamRepository {
	return &ExamRepository{DB: db}
}

// Template access

func (r *ExamRepository) CreateTemplate(t *model.ExamTemplate) error {
	return r.DB.Create(t).Error
}

func (r *ExamRepository) FindTemplateByID(id uint) (*model.ExamTemplate, error) {
	var t model.ExamTemplate
	err := r.DB.First(&t, id).Error
	return &t, err
}

func (r *ExamRepository) UpdateTemplate(t *model.ExamTemplate) error {
	return r.DB.Save(t).Error
}

func (r *ExamRepository) ListTemplates(classLevel int, activeOnly bool, page, limit int) ([]model.ExamTemplate, int64, error) {
	var ts []model.ExamTemplate
	var total int64
	query := r.DB.Model(&model.ExamTemplate{})
	if classLevel > 0 {
		query = query.Where("class_level = ?", classLevel)
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&ts).Error
	return ts, total, err
}

// Session access

func (r *ExamRepository) FindSessionByID(id uint) (*model.ExamSession, error) {
	var s model.ExamSession
	err := r.DB.First(&s, id).Error
	return &s, err
}

// HasActiveSession reports whether the student already has a session in
// created or in_progress.
func (r *ExamRepository) HasActiveSession(studentID uint) (bool, error) {
	var s model.ExamSession
	err := r.DB.
		Where("student_id = ? AND status IN ?", studentID, []model.ExamStatus{model.ExamCreated, model.ExamInProgress}).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *ExamRepository) SaveSession(s *model.ExamSession) error {
	return r.DB.Save(s).Error
}

func (r *ExamRepository) ListSessionsByStudent(studentID uint, page, limit int) ([]model.ExamSession, int64, error) {
	var ss []model.ExamSession
	var total int64
	query := r.DB.Model(&model.ExamSession{}).Where("student_id = ?", studentID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&ss).Error
	return ss, total, err
}

// ListSessionsByStatus backs the assignment queue: sessions waiting for a
// teacher.
func (r *ExamRepository) ListSessionsByStatus(status model.ExamStatus, limit int) ([]model.ExamSession, error) {
	var ss []model.ExamSession
	err := r.DB.Where("status = ?", status).Order("created_at asc").Limit(limit).Find(&ss).Error
	return ss, err
}

func (r *ExamRepository) FindAnswers(sessionID uint) ([]model.StudentAnswer, error) {
	var as []model.StudentAnswer
	err := r.DB.Where("exam_session_id = ?", sessionID).Order("question_number asc").Find(&as).Error
	return as, err
}

func (r *ExamRepository) CreateUploads(uploads []model.AnswerSheetUpload) error {
	return r.DB.Create(&uploads).Error
}

func (r *ExamRepository) FindUploads(sessionID uint) ([]model.AnswerSheetUpload, error) {
	var us []model.AnswerSheetUpload
	err := r.DB.Where("exam_session_id = ?", sessionID).Order("page_number asc").Find(&us).Error
	return us, err
}
