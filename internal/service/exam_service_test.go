package service

import (
	"cbseprep_backend/internal/model"
	"cbseprep_backend/internal/util"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSessionBuildsSnapshot(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedUser(t, model.Student)
	sub := env.seedSubscription(t, student.ID, model.PlanStandard, 20, 0)

	session := env.startSession(t, student.ID)

	assert.Equal(t, model.ExamInProgress, session.Status)
	assert.Equal(t, 13.0, session.TotalMarks)
	assert.Equal(t, 90, session.DurationMinutes)

	snapshot, err := session.DecodeSnapshot()
	require.NoError(t, err)
	assert.Len(t, snapshot.Questions, 7)
	assert.True(t, snapshot.HasManualComponent())

	// Numbers run sequentially across sections.
	for i, q := range snapshot.Questions {
		assert.Equal(t, i+1, q.QuestionNumber)
	}

	var stored model.Subscription
	require.NoError(t, env.db.First(&stored, sub.ID).Error)
	assert.Equal(t, 1, stored.ExamsUsed, "starting consumes one entitlement")
}

func TestStartSessionRejectsInactiveTemplate(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedUser(t, model.Student)
	env.seedSubscription(t, student.ID, model.PlanStandard, 20, 0)
	env.seedBank(t)
	template := env.seedTemplate(t)
	require.NoError(t, env.db.Model(template).Update("is_active", false).Error)

	_, err := env.exams.StartSession(student.ID, template.ID)
	assert.ErrorIs(t, err, util.ErrTemplateInactive)
}

func TestStartSessionOnePerStudent(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedUser(t, model.Student)
	env.seedSubscription(t, student.ID, model.PlanStandard, 20, 0)
	env.seedBank(t)
	template := env.seedTemplate(t)

	_, err := env.exams.StartSession(student.ID, template.ID)
	require.NoError(t, err)

	_, err = env.exams.StartSession(student.ID, template.ID)
	assert.ErrorIs(t, err, util.ErrActiveSessionExists)
}

func TestStartSessionDeniedKeepsCounter(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedUser(t, model.Student)
	sub := env.seedSubscription(t, student.ID, model.PlanFree, 2, 2)
	env.seedBank(t)
	template := env.seedTemplate(t)

	_, err := env.exams.StartSession(student.ID, template.ID)
	require.ErrorIs(t, err, util.ErrLimitReached)

	var stored model.Subscription
	require.NoError(t, env.db.First(&stored, sub.ID).Error)
	assert.Equal(t, 2, stored.ExamsUsed)

	var sessions int64
	require.NoError(t, env.db.Model(&model.ExamSession{}).Count(&sessions).Error)
	assert.Zero(t, sessions, "denied start must not leave a session behind")
}

func TestConcurrentStartsAtLastSlot(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedUser(t, model.Student)
	sub := env.seedSubscription(t, student.ID, model.PlanFree, 2, 1)
	env.seedBank(t)
	template := env.seedTemplate(t)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.exams.StartSession(student.ID, template.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	failures := 0
	for err := range errs {
		if err != nil {
			failures++
		}
	}
	assert.Equal(t, 1, failures, "exactly one start may take the last exam")

	var stored model.Subscription
	require.NoError(t, env.db.First(&stored, sub.ID).Error)
	assert.Equal(t, 2, stored.ExamsUsed, "counter stops exactly at the limit")

	var sessions int64
	require.NoError(t, env.db.Model(&model.ExamSession{}).
		Where("student_id = ?", student.ID).Count(&sessions).Error)
	assert.EqualValues(t, 1, sessions)
}

func TestFailedStartDoesNotWarnOrConsume(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedUser(t, model.Student)
	sub := env.seedSubscription(t, student.ID, model.PlanFree, 2, 0)
	env.seedBank(t)
	template := env.seedTemplate(t)

	// A submitted row still holding the active key slips past the status
	// precheck and trips the unique index inside the transaction.
	stale := &model.ExamSession{
		StudentID:  student.ID,
		TemplateID: template.ID,
		Status:     model.ExamSubmittedObjective,
		StartedAt:  env.now,
		ActiveKey:  model.ActiveSessionKey(student.ID),
	}
	require.NoError(t, env.db.Create(stale).Error)

	_, err := env.exams.StartSession(student.ID, template.ID)
	require.ErrorIs(t, err, util.ErrActiveSessionExists)

	var stored model.Subscription
	require.NoError(t, env.db.First(&stored, sub.ID).Error)
	assert.Equal(t, 0, stored.ExamsUsed, "rolled-back start must release the reserve")
	assert.Equal(t, 0, env.sink.count(EventSubscriptionLimitWarning),
		"no warning for a start that did not commit")
}

func TestRecordObjectiveAnswerLastWriteWins(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedUser(t, model.Student)
	env.seedSubscription(t, student.ID, model.PlanStandard, 20, 0)
	session := env.startSession(t, student.ID)

	require.NoError(t, env.exams.RecordObjectiveAnswer(session.ID, student.ID, 1, "C"))
	require.NoError(t, env.exams.RecordObjectiveAnswer(session.ID, student.ID, 1, "B"))

	reloaded, err := env.exams.GetSession(session.ID)
	require.NoError(t, err)
	snapshot, err := reloaded.DecodeSnapshot()
	require.NoError(t, err)
	assert.Equal(t, "B", snapshot.Answers["1"].Choice)
}

func TestRecordAnswerRejectsManualQuestion(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedUser(t, model.Student)
	env.seedSubscription(t, student.ID, model.PlanStandard, 20, 0)
	session := env.startSession(t, student.ID)

	// Question 6 is a short answer, graded on paper.
	err := env.exams.RecordObjectiveAnswer(session.ID, student.ID, 6, "A")
	require.Error(t, err)
	assert.Equal(t, util.KindValidation, util.KindOf(err))
}

func TestRecordAnswerOwnership(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedUser(t, model.Student)
	other := env.seedUser(t, model.Student)
	env.seedSubscription(t, student.ID, model.PlanStandard, 20, 0)
	session := env.startSession(t, student.ID)

	err := env.exams.RecordObjectiveAnswer(session.ID, other.ID, 1, "A")
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}

func TestSubmitObjectiveGradesAgainstSnapshot(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedUser(t, model.Student)
	env.seedSubscription(t, student.ID, model.PlanStandard, 20, 0)
	session := env.startSession(t, student.ID)

	// Correct answer for every bank question is "A". Four right (one via
	// case-insensitive match), one wrong, across questions 1-5.
	for n := 1; n <= 3; n++ {
		require.NoError(t, env.exams.RecordObjectiveAnswer(session.ID, student.ID, n, "A"))
	}
	require.NoError(t, env.exams.RecordObjectiveAnswer(session.ID, student.ID, 4, " a "))
	require.NoError(t, env.exams.RecordObjectiveAnswer(session.ID, student.ID, 5, "D"))

	submitted, err := env.exams.SubmitObjective(session.ID, student.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExamSubmittedObjective, submitted.Status)
	assert.Equal(t, 4.0, submitted.ObjectiveScore)
	assert.Nil(t, submitted.ActiveKey, "submission frees the active-session slot")
	require.NotNil(t, submitted.SubmittedAt)

	answers, err := env.examRepo.FindAnswers(session.ID)
	require.NoError(t, err)
	assert.Len(t, answers, 5)

	correct := 0
	for _, a := range answers {
		if a.IsCorrect {
			correct++
		}
	}
	assert.Equal(t, 4, correct)

	// Frozen: answering after submission is rejected.
	err = env.exams.RecordObjectiveAnswer(session.ID, student.ID, 1, "A")
	assert.Equal(t, util.KindInvalidState, util.KindOf(err))
}

func TestObjectiveOnlyExamFinishesAtSubmission(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedUser(t, model.Student)
	env.seedSubscription(t, student.ID, model.PlanStandard, 20, 0)
	env.seedQuestions(t, 10, model.QuestionMCQ, 1, "algebra", 8)
	template := env.seedTemplateSections(t, []model.TemplateSection{
		{Name: "A", QuestionType: model.QuestionMCQ, MarksPerQuestion: 1, QuestionCount: 4},
	})

	session, err := env.exams.StartSession(student.ID, template.ID)
	require.NoError(t, err)
	for n := 1; n <= 4; n++ {
		require.NoError(t, env.exams.RecordObjectiveAnswer(session.ID, student.ID, n, "A"))
	}

	submitted, err := env.exams.SubmitObjective(session.ID, student.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExamEvaluated, submitted.Status, "no manual component, no teacher loop")
	assert.Equal(t, 4.0, submitted.TotalScore)
	require.NotNil(t, submitted.Percentage)
	assert.InDelta(t, 100.0, *submitted.Percentage, 1e-9)
}

func TestUploadFlowTransitions(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedUser(t, model.Student)
	env.seedSubscription(t, student.ID, model.PlanStandard, 20, 0)
	session := env.startSession(t, student.ID)

	// Upload endpoints are gated on the preceding state.
	_, err := env.exams.BeginUpload(session.ID, student.ID)
	require.Equal(t, util.KindInvalidState, util.KindOf(err))

	_, err = env.exams.SubmitObjective(session.ID, student.ID)
	require.NoError(t, err)

	pending, err := env.exams.BeginUpload(session.ID, student.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExamPendingUpload, pending.Status)

	uploaded, err := env.exams.MarkUploaded(session.ID, student.ID, []string{"k1", "k2"})
	require.NoError(t, err)
	assert.Equal(t, model.ExamUploaded, uploaded.Status)

	uploads, err := env.examRepo.FindUploads(session.ID)
	require.NoError(t, err)
	require.Len(t, uploads, 2)
	assert.Equal(t, 1, uploads[0].PageNumber)
	assert.Equal(t, "k1", uploads[0].ObjectKey)

	ready, err := env.exams.MarkPendingEvaluation(session.ID, student.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExamPendingEvaluation, ready.Status)

	// Terminal transition belongs to the evaluation workflow.
	_, err = env.exams.MarkPendingEvaluation(session.ID, student.ID)
	assert.Equal(t, util.KindInvalidState, util.KindOf(err))
}

func TestStudentCanStartAgainAfterSubmission(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedUser(t, model.Student)
	env.seedSubscription(t, student.ID, model.PlanStandard, 20, 0)
	session := env.startSession(t, student.ID)

	_, err := env.exams.SubmitObjective(session.ID, student.ID)
	require.NoError(t, err)

	template := env.seedTemplateSections(t, []model.TemplateSection{
		{Name: "A", QuestionType: model.QuestionMCQ, MarksPerQuestion: 1, QuestionCount: 3},
	})
	next, err := env.exams.StartSession(student.ID, template.ID)
	require.NoError(t, err)
	assert.NotEqual(t, session.ID, next.ID)
}

func TestSampleSectionHonorsUnitWeights(t *testing.T) {
	var candidates []model.Question
	for i := 0; i < 10; i++ {
		candidates = append(candidates, model.Question{BaseModel: model.BaseModel{ID: uint(i + 1)}, Unit: "algebra"})
	}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, model.Question{BaseModel: model.BaseModel{ID: uint(i + 11)}, Unit: "geometry"})
	}

	section := model.TemplateSection{
		Name:          "A",
		QuestionCount: 5,
		UnitWeights:   map[string]float64{"algebra": 0.6, "geometry": 0.4},
	}

	picked := sampleSection(candidates, section)
	require.Len(t, picked, 5)

	units := map[string]int{}
	for _, q := range picked {
		units[q.Unit]++
	}
	assert.Equal(t, 3, units["algebra"])
	assert.Equal(t, 2, units["geometry"])
}

func TestSampleSectionBackfillsShortUnit(t *testing.T) {
	candidates := []model.Question{
		{BaseModel: model.BaseModel{ID: 1}, Unit: "algebra"},
	}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, model.Question{BaseModel: model.BaseModel{ID: uint(i + 2)}, Unit: "geometry"})
	}

	section := model.TemplateSection{
		Name:          "A",
		QuestionCount: 6,
		UnitWeights:   map[string]float64{"algebra": 0.5, "geometry": 0.5},
	}

	picked := sampleSection(candidates, section)
	assert.Len(t, picked, 6, "shortfall in one unit backfills from the rest")
}
