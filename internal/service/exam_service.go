package service

import (
	"cbseprep_backend/internal/model"
	"cbseprep_backend/internal/repository"
	"cbseprep_backend/internal/util"
	"cbseprep_backend/pkg/logger"
	"cbseprep_backend/pkg/monitoring"
	"errors"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ExamService owns the exam session state machine. Status fields are
// written here and nowhere else, except the terminal transition applied by
// the evaluation workflow through FinalizeScore.
type ExamService struct {
	Exams       *repository.ExamRepository
	Questions   *repository.QuestionRepository
	Entitlement *EntitlementService
	DB          *gorm.DB

	Now func() time.Time
}

func NewExamService(exams *repository.ExamRepository, questions *repository.QuestionRepository, entitlement *EntitlementService, db *gorm.DB) *ExamService {
	return &ExamService{Exams: exams, Questions: questions, Entitlement: entitlement, DB: db, Now: time.Now}
}

// StartSession consumes one entitlement and creates the session with its
// immutable question snapshot, all in one transaction: if anything after
// the reserve fails, the counter increment rolls back with it.
func (s *ExamService) StartSession(studentID, templateID uint) (*model.ExamSession, error) {
	template, err := s.Exams.FindTemplateByID(templateID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !template.IsActive) {
		return nil, util.ErrTemplateInactive
	}
	if err != nil {
		return nil, err
	}

	active, err := s.Exams.HasActiveSession(studentID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, util.ErrActiveSessionExists
	}

	sections, err := template.DecodeSections()
	if err != nil {
		return nil, err
	}

	var session *model.ExamSession
	var reserved *model.Subscription
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		sub, err := s.Entitlement.CheckAndReserve(tx, studentID)
		if err != nil {
			return err
		}
		reserved = sub

		snapshot, totalMarks, err := s.buildSnapshot(template, sections)
		if err != nil {
			return err
		}

		session = &model.ExamSession{
			StudentID:       studentID,
			TemplateID:      template.ID,
			Status:          model.ExamInProgress,
			TotalMarks:      totalMarks,
			DurationMinutes: template.DurationMinutes,
			StartedAt:       s.Now(),
			ActiveKey:       model.ActiveSessionKey(studentID),
		}
		if err := session.EncodeSnapshot(snapshot); err != nil {
			return err
		}
		return tx.Create(session).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.ErrActiveSessionExists
		}
		return nil, err
	}

	monitoring.ExamsStarted.Inc()
	// Dispatched only now that the reserve is committed.
	s.Entitlement.PublishLimitWarning(studentID, reserved)
	logger.Log.Info("exam session started",
		zap.Uint("sessionId", session.ID),
		zap.Uint("studentId", studentID),
		zap.Uint("templateId", templateID))

	return session, nil
}

// buildSnapshot draws questions per section config. A short bank is a
// data-quality condition, not a failure: the draw takes what is available
// and logs the shortfall.
func (s *ExamService) buildSnapshot(template *model.ExamTemplate, sections []model.TemplateSection) (*model.ExamSnapshot, float64, error) {
	snapshot := &model.ExamSnapshot{
		TemplateID: template.ID,
		ExamKind:   template.ExamKind,
		Answers:    make(map[string]model.RecordedAnswer),
	}

	number := 1
	var totalMarks float64
	for _, section := range sections {
		candidates, err := s.Questions.FindCandidates(template.ClassLevel, section.QuestionType, section.MarksPerQuestion)
		if err != nil {
			return nil, 0, err
		}

		picked := sampleSection(candidates, section)
		if len(picked) < section.QuestionCount {
			logger.Log.Warn("question bank short for section",
				zap.Uint("templateId", template.ID),
				zap.String("section", section.Name),
				zap.Int("wanted", section.QuestionCount),
				zap.Int("available", len(picked)))
		}

		for _, q := range picked {
			snapshot.Questions = append(snapshot.Questions, model.SnapshotQuestion{
				QuestionNumber: number,
				QuestionID:     q.ID,
				Section:        section.Name,
				QuestionType:   q.QuestionType,
				Unit:           q.Unit,
				Content:        q.Content,
				Options:        q.Options,
				CorrectAnswer:  q.CorrectAnswer,
				MarksPossible:  q.Marks,
			})
			totalMarks += q.Marks
			number++
		}
	}

	return snapshot, totalMarks, nil
}

// sampleSection picks up to QuestionCount questions, honoring per-unit
// weights when the section declares them.
func sampleSection(candidates []model.Question, section model.TemplateSection) []model.Question {
	if len(section.UnitWeights) == 0 {
		shuffled := append([]model.Question(nil), candidates...)
		rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		if len(shuffled) > section.QuestionCount {
			shuffled = shuffled[:section.QuestionCount]
		}
		return shuffled
	}

	byUnit := make(map[string][]model.Question)
	for _, q := range candidates {
		byUnit[q.Unit] = append(byUnit[q.Unit], q)
	}

	// Largest-remainder allocation of the section count across units.
	type unitAlloc struct {
		unit      string
		count     int
		remainder float64
	}
	units := make([]unitAlloc, 0, len(section.UnitWeights))
	allocated := 0
	for unit, weight := range section.UnitWeights {
		exact := weight * float64(section.QuestionCount)
		whole := int(exact)
		units = append(units, unitAlloc{unit: unit, count: whole, remainder: exact - float64(whole)})
		allocated += whole
	}
	sort.Slice(units, func(i, j int) bool {
		if units[i].remainder != units[j].remainder {
			return units[i].remainder > units[j].remainder
		}
		return units[i].unit < units[j].unit
	})
	for i := 0; allocated < section.QuestionCount && i < len(units); i++ {
		units[i].count++
		allocated++
	}

	var picked []model.Question
	for _, ua := range units {
		pool := append([]model.Question(nil), byUnit[ua.unit]...)
		rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		if len(pool) > ua.count {
			pool = pool[:ua.count]
		}
		picked = append(picked, pool...)
	}

	// Backfill from the whole pool if some unit came up short.
	if len(picked) < section.QuestionCount {
		used := make(map[uint]bool, len(picked))
		for _, q := range picked {
			used[q.ID] = true
		}
		rest := make([]model.Question, 0, len(candidates))
		for _, q := range candidates {
			if !used[q.ID] {
				rest = append(rest, q)
			}
		}
		rand.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
		need := section.QuestionCount - len(picked)
		if len(rest) > need {
			rest = rest[:need]
		}
		picked = append(picked, rest...)
	}

	return picked
}

// RecordObjectiveAnswer saves the student's current choice for a question;
// last write wins. Nothing is graded yet.
func (s *ExamService) RecordObjectiveAnswer(sessionID, studentID uint, questionNumber int, choice string) error {
	session, err := s.Exams.FindSessionByID(sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrSessionNotFound
	}
	if err != nil {
		return err
	}
	if session.StudentID != studentID {
		return util.ErrPermissionDenied
	}
	if session.Status != model.ExamInProgress {
		return util.NewInvalidTransition("exam session", string(session.Status), "record answer")
	}

	snapshot, err := session.DecodeSnapshot()
	if err != nil {
		return err
	}
	question, ok := snapshot.QuestionByNumber(questionNumber)
	if !ok {
		return &util.AppError{Kind: util.KindValidation, Message: "question number not in this exam"}
	}
	if !question.QuestionType.IsObjective() {
		return &util.AppError{Kind: util.KindValidation, Message: "question is not objective; submit it on the answer sheet"}
	}

	snapshot.Answers[strconv.Itoa(questionNumber)] = model.RecordedAnswer{
		Choice:     choice,
		RecordedAt: s.Now(),
	}
	if err := session.EncodeSnapshot(snapshot); err != nil {
		return err
	}
	return s.Exams.SaveSession(session)
}

// SubmitObjective grades every objective question against the snapshot's
// stored correct answer and freezes the result as StudentAnswer rows.
// Objective-only exams finish here; exams with a manual component move on
// to the upload flow.
func (s *ExamService) SubmitObjective(sessionID, studentID uint) (*model.ExamSession, error) {
	session, err := s.Exams.FindSessionByID(sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if session.StudentID != studentID {
		return nil, util.ErrPermissionDenied
	}
	if session.Status != model.ExamInProgress {
		return nil, util.NewInvalidTransition("exam session", string(session.Status), "submit objective")
	}

	snapshot, err := session.DecodeSnapshot()
	if err != nil {
		return nil, err
	}

	var answers []model.StudentAnswer
	var objectiveScore float64
	for _, q := range snapshot.Questions {
		if !q.QuestionType.IsObjective() {
			continue
		}
		recorded, answered := snapshot.Answers[strconv.Itoa(q.QuestionNumber)]
		correct := answered && answersMatch(recorded.Choice, q.CorrectAnswer)
		awarded := 0.0
		if correct {
			awarded = q.MarksPossible
			objectiveScore += awarded
		}
		answers = append(answers, model.StudentAnswer{
			ExamSessionID:  session.ID,
			QuestionNumber: q.QuestionNumber,
			Choice:         recorded.Choice,
			IsCorrect:      correct,
			MarksAwarded:   awarded,
			MarksPossible:  q.MarksPossible,
		})
	}

	now := s.Now()
	session.SubmittedAt = &now
	session.ObjectiveScore = objectiveScore
	session.ActiveKey = nil

	manual := snapshot.HasManualComponent()
	if manual {
		session.Status = model.ExamSubmittedObjective
	} else {
		// Objective-only practice: no teacher involved, score is final.
		applyFinalScore(session, 0)
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if len(answers) > 0 {
			if err := tx.Create(&answers).Error; err != nil {
				return err
			}
		}
		return tx.Save(session).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("objective section submitted",
		zap.Uint("sessionId", session.ID),
		zap.Float64("objectiveScore", objectiveScore),
		zap.Bool("manualComponent", manual))

	return session, nil
}

func answersMatch(choice, correct string) bool {
	return strings.EqualFold(strings.TrimSpace(choice), strings.TrimSpace(correct))
}

// BeginUpload moves the session into the upload phase. The storage layer
// hands out the presigned slots separately.
func (s *ExamService) BeginUpload(sessionID, studentID uint) (*model.ExamSession, error) {
	return s.advance(sessionID, studentID, model.ExamSubmittedObjective, model.ExamPendingUpload, "begin upload")
}

// MarkUploaded records the uploaded answer-sheet page keys. Keys are
// opaque object-store references.
func (s *ExamService) MarkUploaded(sessionID, studentID uint, objectKeys []string) (*model.ExamSession, error) {
	session, err := s.advance(sessionID, studentID, model.ExamPendingUpload, model.ExamUploaded, "mark uploaded")
	if err != nil {
		return nil, err
	}
	if len(objectKeys) > 0 {
		uploads := make([]model.AnswerSheetUpload, len(objectKeys))
		for i, key := range objectKeys {
			uploads[i] = model.AnswerSheetUpload{
				ExamSessionID: session.ID,
				PageNumber:    i + 1,
				ObjectKey:     key,
			}
		}
		if err := s.Exams.CreateUploads(uploads); err != nil {
			return nil, err
		}
	}
	return session, nil
}

// MarkPendingEvaluation makes the session visible to evaluation
// assignment.
func (s *ExamService) MarkPendingEvaluation(sessionID, studentID uint) (*model.ExamSession, error) {
	return s.advance(sessionID, studentID, model.ExamUploaded, model.ExamPendingEvaluation, "mark pending evaluation")
}

func (s *ExamService) advance(sessionID, studentID uint, from, to model.ExamStatus, operation string) (*model.ExamSession, error) {
	session, err := s.Exams.FindSessionByID(sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if session.StudentID != studentID {
		return nil, util.ErrPermissionDenied
	}
	if session.Status != from {
		return nil, util.NewInvalidTransition("exam session", string(session.Status), operation)
	}
	session.Status = to
	if err := s.Exams.SaveSession(session); err != nil {
		return nil, err
	}
	return session, nil
}

// FinalizeScore is called only by the evaluation workflow, inside its
// completion transaction. It applies the manual score and the terminal
// transition.
func (s *ExamService) FinalizeScore(tx *gorm.DB, sessionID uint, manualScore float64) (*model.ExamSession, error) {
	var session model.ExamSession
	if err := tx.First(&session, sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSessionNotFound
		}
		return nil, err
	}
	if session.Status != model.ExamPendingEvaluation {
		return nil, util.NewInvalidTransition("exam session", string(session.Status), "finalize score")
	}

	applyFinalScore(&session, manualScore)
	if err := tx.Save(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// applyFinalScore computes the combined total, clamped to the valid range,
// and moves the session to its terminal state.
func applyFinalScore(session *model.ExamSession, manualScore float64) {
	session.ManualScore = manualScore
	total := session.ObjectiveScore + manualScore
	if total < 0 {
		total = 0
	}
	if total > session.TotalMarks {
		total = session.TotalMarks
	}
	session.TotalScore = total

	if session.TotalMarks > 0 {
		pct := total / session.TotalMarks * 100
		session.Percentage = &pct
	} else {
		zero := 0.0
		session.Percentage = &zero
	}
	session.Status = model.ExamEvaluated
	session.ActiveKey = nil
}

func (s *ExamService) GetSession(sessionID uint) (*model.ExamSession, error) {
	session, err := s.Exams.FindSessionByID(sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSessionNotFound
	}
	return session, err
}

func (s *ExamService) ListSessions(studentID uint, page, limit int) ([]model.ExamSession, int64, error) {
	return s.Exams.ListSessionsByStudent(studentID, page, limit)
}

// PendingEvaluationQueue lists sessions waiting for teacher assignment,
// oldest first.
func (s *ExamService) PendingEvaluationQueue(limit int) ([]model.ExamSession, error) {
	return s.Exams.ListSessionsByStatus(model.ExamPendingEvaluation, limit)
}
