package service

import (
	"cbseprep_backend/internal/model"
	"cbseprep_backend/internal/repository"
	"cbseprep_backend/internal/util"
	"encoding/json"
	"errors"

	"gorm.io/gorm"
)

// TemplateService is the admin surface for exam blueprints and the
// question bank. The exam workflow reads this content but never writes it.
type TemplateService struct {
	Exams     *repository.ExamRepository
	Questions *repository.QuestionRepository
}

func NewTemplateService(exams *repository.ExamRepository, questions *repository.QuestionRepository) *TemplateService {
	return &TemplateService{Exams: exams, Questions: questions}
}

type TemplateCreateRequest struct {
	Name            string                  `json:"name" binding:"required"`
	ClassLevel      int                     `json:"classLevel" binding:"required"`
	Subject         string                  `json:"subject"`
	ExamKind        model.ExamKind          `json:"examKind" binding:"required"`
	DurationMinutes int                     `json:"durationMinutes"`
	Sections        []model.TemplateSection `json:"sections" binding:"required"`
}

func (s *TemplateService) CreateTemplate(creatorID uint, req TemplateCreateRequest) (*model.ExamTemplate, error) {
	switch req.ExamKind {
	case model.ExamBoard, model.ExamSection, model.ExamUnitPractice:
	default:
		return nil, &util.AppError{Kind: util.KindValidation, Message: "unknown exam kind"}
	}
	if len(req.Sections) == 0 {
		return nil, &util.AppError{Kind: util.KindValidation, Message: "template needs at least one section"}
	}

	template := &model.ExamTemplate{
		Name:            req.Name,
		ClassLevel:      req.ClassLevel,
		Subject:         req.Subject,
		ExamKind:        req.ExamKind,
		DurationMinutes: req.DurationMinutes,
		IsActive:        true,
		CreatorID:       creatorID,
	}
	if template.DurationMinutes == 0 {
		template.DurationMinutes = 180
	}
	if err := template.SetSections(req.Sections); err != nil {
		return nil, &util.AppError{Kind: util.KindValidation, Message: err.Error()}
	}

	if err := s.Exams.CreateTemplate(template); err != nil {
		return nil, err
	}
	return template, nil
}

func (s *TemplateService) SetTemplateActive(id uint, active bool) (*model.ExamTemplate, error) {
	template, err := s.Exams.FindTemplateByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &util.AppError{Kind: util.KindNotFound, Message: "template not found"}
	}
	if err != nil {
		return nil, err
	}
	template.IsActive = active
	if err := s.Exams.UpdateTemplate(template); err != nil {
		return nil, err
	}
	return template, nil
}

func (s *TemplateService) ListTemplates(classLevel int, activeOnly bool, page, limit int) ([]model.ExamTemplate, int64, error) {
	return s.Exams.ListTemplates(classLevel, activeOnly, page, limit)
}

type QuestionRequest struct {
	ClassLevel    int                `json:"classLevel" binding:"required"`
	Subject       string             `json:"subject"`
	Unit          string             `json:"unit"`
	QuestionType  model.QuestionType `json:"questionType" binding:"required"`
	Content       string             `json:"content" binding:"required"`
	Options       json.RawMessage    `json:"options"`
	CorrectAnswer string             `json:"correctAnswer"`
	Marks         float64            `json:"marks" binding:"required"`
}

func (s *TemplateService) CreateQuestion(req QuestionRequest) (*model.Question, error) {
	if req.QuestionType.IsObjective() && req.CorrectAnswer == "" {
		return nil, &util.AppError{Kind: util.KindValidation, Message: "objective questions need a correct answer"}
	}

	q := &model.Question{
		ClassLevel:    req.ClassLevel,
		Subject:       req.Subject,
		Unit:          req.Unit,
		QuestionType:  req.QuestionType,
		Content:       req.Content,
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
		Marks:         req.Marks,
		IsActive:      true,
	}
	if err := s.Questions.Create(q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *TemplateService) UpdateQuestion(id uint, req QuestionRequest) (*model.Question, error) {
	q, err := s.Questions.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &util.AppError{Kind: util.KindNotFound, Message: "question not found"}
	}
	if err != nil {
		return nil, err
	}

	q.ClassLevel = req.ClassLevel
	q.Subject = req.Subject
	q.Unit = req.Unit
	q.QuestionType = req.QuestionType
	q.Content = req.Content
	q.Options = req.Options
	q.CorrectAnswer = req.CorrectAnswer
	q.Marks = req.Marks
	if err := s.Questions.Update(q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *TemplateService) DeleteQuestion(id uint) error {
	return s.Questions.Delete(id)
}

func (s *TemplateService) ListQuestions(classLevel int, qtype string, page, limit int) ([]model.Question, int64, error) {
	return s.Questions.List(classLevel, qtype, page, limit)
}
