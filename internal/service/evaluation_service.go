package service

import (
	"cbseprep_backend/internal/config"
	"cbseprep_backend/internal/model"
	"cbseprep_backend/internal/repository"
	"cbseprep_backend/internal/util"
	"cbseprep_backend/pkg/logger"
	"cbseprep_backend/pkg/monitoring"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EvaluationService owns the marking workflow: assignment with an SLA
// deadline, incremental question marks, and the completion step that
// writes scores back into the exam session.
type EvaluationService struct {
	Evaluations   *repository.EvaluationRepository
	Exams         *repository.ExamRepository
	Users         *repository.UserRepository
	Subscriptions *repository.SubscriptionRepository
	Holidays      *repository.HolidayRepository
	ExamSvc       *ExamService
	Config        *config.Config
	Events        EventSink
	DB            *gorm.DB

	Now func() time.Time
}

func NewEvaluationService(
	evaluations *repository.EvaluationRepository,
	exams *repository.ExamRepository,
	users *repository.UserRepository,
	subscriptions *repository.SubscriptionRepository,
	holidays *repository.HolidayRepository,
	examSvc *ExamService,
	cfg *config.Config,
	events EventSink,
	db *gorm.DB,
) *EvaluationService {
	return &EvaluationService{
		Evaluations:   evaluations,
		Exams:         exams,
		Users:         users,
		Subscriptions: subscriptions,
		Holidays:      holidays,
		ExamSvc:       examSvc,
		Config:        cfg,
		Events:        events,
		DB:            db,
		Now:           time.Now,
	}
}

// AssignEvaluation hands a submitted session to a teacher and computes the
// SLA deadline over the working calendar. The unique index on the session
// id makes double assignment impossible even when two admin calls race.
func (s *EvaluationService) AssignEvaluation(sessionID, teacherID uint, slaHours int) (*model.Evaluation, error) {
	session, err := s.Exams.FindSessionByID(sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if session.Status != model.ExamPendingEvaluation {
		return nil, util.NewInvalidTransition("exam session", string(session.Status), "assign evaluation")
	}

	teacher, err := s.Users.FindByID(teacherID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !teacher.CanEvaluate()) {
		return nil, util.ErrInvalidTeacher
	}
	if err != nil {
		return nil, err
	}

	if slaHours <= 0 {
		slaHours = s.slaHoursForStudent(session.StudentID)
	}

	cal, err := s.Holidays.LoadCalendar()
	if err != nil {
		return nil, err
	}
	now := s.Now()

	evaluation := &model.Evaluation{
		ExamSessionID: sessionID,
		TeacherID:     teacherID,
		Status:        model.EvaluationAssigned,
		AssignedAt:    now,
		SlaHours:      slaHours,
		Deadline:      cal.AddSlaHours(now, slaHours),
	}
	if err := s.DB.Create(evaluation).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.ErrAlreadyAssigned
		}
		return nil, err
	}

	monitoring.EvaluationsAssigned.Inc()
	logger.Log.Info("evaluation assigned",
		zap.Uint("evaluationId", evaluation.ID),
		zap.Uint("sessionId", sessionID),
		zap.Uint("teacherId", teacherID),
		zap.Int("slaHours", slaHours),
		zap.Time("deadline", evaluation.Deadline))

	s.Events.Publish(Event{
		Name: EventEvaluationAssigned,
		Payload: map[string]interface{}{
			"evaluationId": evaluation.ID,
			"sessionId":    sessionID,
			"teacherId":    teacherID,
			"deadline":     evaluation.Deadline.Format(time.RFC3339),
		},
	})

	return evaluation, nil
}

// slaHoursForStudent resolves the allocated budget from the student's plan
// tier: premium subscribers get the faster turnaround.
func (s *EvaluationService) slaHoursForStudent(studentID uint) int {
	sla := s.Config.SlaSettings()
	sub, err := s.Subscriptions.FindActiveByStudent(s.DB, studentID)
	if err != nil {
		return sla.DefaultHours
	}
	return sla.EvaluationHours(sub.PlanTier == model.PlanPremium)
}

func (s *EvaluationService) loadOwned(evaluationID, teacherID uint) (*model.Evaluation, error) {
	evaluation, err := s.Evaluations.FindByID(evaluationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrEvaluationNotFound
	}
	if err != nil {
		return nil, err
	}
	if evaluation.TeacherID != teacherID {
		return nil, util.ErrNotAssignedTeacher
	}
	return evaluation, nil
}

// StartEvaluation marks the teacher as actively grading. Calling it again
// while already in progress is a harmless no-op; a completed evaluation
// rejects it.
func (s *EvaluationService) StartEvaluation(evaluationID, teacherID uint) (*model.Evaluation, error) {
	evaluation, err := s.loadOwned(evaluationID, teacherID)
	if err != nil {
		return nil, err
	}

	switch evaluation.Status {
	case model.EvaluationInProgress:
		return evaluation, nil
	case model.EvaluationCompleted:
		return nil, util.NewInvalidTransition("evaluation", string(evaluation.Status), "start")
	}

	now := s.Now()
	evaluation.Status = model.EvaluationInProgress
	evaluation.StartedAt = &now
	if err := s.Evaluations.Save(evaluation); err != nil {
		return nil, err
	}
	return evaluation, nil
}

// QuestionMarkEntry is one mark in a SubmitQuestionMarks batch.
type QuestionMarkEntry struct {
	QuestionNumber int     `json:"questionNumber" binding:"required"`
	MarksAwarded   float64 `json:"marksAwarded"`
	Comment        string  `json:"comment"`
}

// SubmitQuestionMarks validates and applies a batch of marks atomically:
// if any entry is invalid the whole batch is rejected and nothing changes.
// Score totals are untouched until completion.
func (s *EvaluationService) SubmitQuestionMarks(evaluationID, teacherID uint, entries []QuestionMarkEntry, annotations json.RawMessage) error {
	if len(entries) == 0 && len(annotations) == 0 {
		return &util.AppError{Kind: util.KindValidation, Message: "empty marks batch"}
	}

	evaluation, err := s.loadOwned(evaluationID, teacherID)
	if err != nil {
		return err
	}
	if evaluation.Status == model.EvaluationCompleted {
		return util.NewInvalidTransition("evaluation", string(evaluation.Status), "submit marks")
	}

	session, err := s.Exams.FindSessionByID(evaluation.ExamSessionID)
	if err != nil {
		return err
	}
	snapshot, err := session.DecodeSnapshot()
	if err != nil {
		return err
	}

	// Validate the whole batch before touching storage.
	marks := make([]model.QuestionMark, 0, len(entries))
	for _, entry := range entries {
		question, ok := snapshot.QuestionByNumber(entry.QuestionNumber)
		if !ok {
			return &util.AppError{Kind: util.KindValidation, Message: "question " + strconv.Itoa(entry.QuestionNumber) + " not in this exam"}
		}
		if entry.MarksAwarded < 0 {
			return &util.AppError{Kind: util.KindValidation, Message: "marks awarded cannot be negative"}
		}
		if entry.MarksAwarded > question.MarksPossible {
			return &util.MarksExceedPossibleError{
				QuestionNumber: entry.QuestionNumber,
				Awarded:        entry.MarksAwarded,
				Possible:       question.MarksPossible,
			}
		}
		marks = append(marks, model.QuestionMark{
			EvaluationID:   evaluation.ID,
			QuestionNumber: entry.QuestionNumber,
			MarksAwarded:   entry.MarksAwarded,
			MarksPossible:  question.MarksPossible,
			Comment:        entry.Comment,
		})
	}

	mergedAnnotations, err := mergeAnnotations(evaluation.Annotations, annotations)
	if err != nil {
		return err
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		if len(marks) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "evaluation_id"}, {Name: "question_number"}},
				DoUpdates: clause.AssignmentColumns([]string{"marks_awarded", "marks_possible", "comment", "updated_at"}),
			}).Create(&marks).Error; err != nil {
				return err
			}
		}

		updates := map[string]interface{}{}
		if mergedAnnotations != nil {
			updates["annotations"] = mergedAnnotations
		}
		if evaluation.Status == model.EvaluationAssigned {
			// First marks promote the evaluation to in progress.
			now := s.Now()
			updates["status"] = model.EvaluationInProgress
			updates["started_at"] = &now
		}
		if len(updates) > 0 {
			if err := tx.Model(evaluation).Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// mergeAnnotations overlays the incoming payload onto the stored document,
// key by key. The document itself stays opaque to the workflow.
func mergeAnnotations(existing datatypes.JSON, incoming json.RawMessage) (datatypes.JSON, error) {
	if len(incoming) == 0 {
		return nil, nil
	}
	if len(existing) == 0 {
		return datatypes.JSON(incoming), nil
	}

	var current, update map[string]json.RawMessage
	if err := json.Unmarshal(existing, &current); err != nil {
		return nil, &util.AppError{Kind: util.KindValidation, Message: "stored annotations are not a JSON object"}
	}
	if err := json.Unmarshal(incoming, &update); err != nil {
		return nil, &util.AppError{Kind: util.KindValidation, Message: "annotations must be a JSON object"}
	}
	for k, v := range update {
		current[k] = v
	}
	merged, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(merged), nil
}

// CompleteEvaluation verifies every manual question has a mark, totals the
// manual score, captures the breach flag once, and finalizes the owning
// session in the same transaction.
func (s *EvaluationService) CompleteEvaluation(evaluationID, teacherID uint) (*model.Evaluation, error) {
	evaluation, err := s.loadOwned(evaluationID, teacherID)
	if err != nil {
		return nil, err
	}
	if evaluation.Status == model.EvaluationCompleted {
		return nil, util.NewInvalidTransition("evaluation", string(evaluation.Status), "complete")
	}

	session, err := s.Exams.FindSessionByID(evaluation.ExamSessionID)
	if err != nil {
		return nil, err
	}
	snapshot, err := session.DecodeSnapshot()
	if err != nil {
		return nil, err
	}

	marks, err := s.Evaluations.FindMarks(evaluation.ID)
	if err != nil {
		return nil, err
	}
	marked := make(map[int]bool, len(marks))
	var manualScore float64
	for _, m := range marks {
		marked[m.QuestionNumber] = true
		manualScore += m.MarksAwarded
	}

	var missing []int
	for _, n := range snapshot.ManualQuestionNumbers() {
		if !marked[n] {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return nil, &util.IncompleteGradingError{MissingQuestions: missing}
	}

	now := s.Now()
	breached := now.After(evaluation.Deadline)

	var finalized *model.ExamSession
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		evaluation.Status = model.EvaluationCompleted
		evaluation.CompletedAt = &now
		evaluation.Breached = breached
		evaluation.ManualScore = manualScore
		if err := tx.Save(evaluation).Error; err != nil {
			return err
		}

		finalized, err = s.ExamSvc.FinalizeScore(tx, evaluation.ExamSessionID, manualScore)
		return err
	})
	if err != nil {
		return nil, err
	}

	monitoring.EvaluationsCompleted.WithLabelValues(strconv.FormatBool(breached)).Inc()
	logger.Log.Info("evaluation completed",
		zap.Uint("evaluationId", evaluation.ID),
		zap.Uint("sessionId", evaluation.ExamSessionID),
		zap.Float64("manualScore", manualScore),
		zap.Bool("breached", breached))

	payload := map[string]interface{}{
		"evaluationId": evaluation.ID,
		"sessionId":    evaluation.ExamSessionID,
		"studentId":    finalized.StudentID,
		"totalScore":   finalized.TotalScore,
	}
	if finalized.Percentage != nil {
		payload["percentage"] = *finalized.Percentage
	}
	s.Events.Publish(Event{Name: EventEvaluationCompleted, Payload: payload})

	if breached {
		s.Events.Publish(Event{
			Name: EventSlaBreached,
			Payload: map[string]interface{}{
				"evaluationId": evaluation.ID,
				"teacherId":    evaluation.TeacherID,
				"hoursOverdue": int(now.Sub(evaluation.Deadline).Hours()),
			},
		})
	}

	return evaluation, nil
}

func (s *EvaluationService) GetEvaluation(evaluationID uint) (*model.Evaluation, error) {
	evaluation, err := s.Evaluations.FindByID(evaluationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrEvaluationNotFound
	}
	return evaluation, err
}

func (s *EvaluationService) ListByTeacher(teacherID uint, page, limit int) ([]model.Evaluation, int64, error) {
	return s.Evaluations.ListByTeacher(teacherID, page, limit)
}

func (s *EvaluationService) GetMarks(evaluationID uint) ([]model.QuestionMark, error) {
	return s.Evaluations.FindMarks(evaluationID)
}
