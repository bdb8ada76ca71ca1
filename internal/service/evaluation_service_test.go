package service

import (
	"cbseprep_backend/internal/model"
	"cbseprep_backend/internal/util"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pendingSession stands up a submitted, uploaded session ready for
// assignment, and returns it with its student.
func pendingSession(t *testing.T, env *testEnv) (*model.ExamSession, *model.User) {
	t.Helper()
	student := env.seedUser(t, model.Student)
	env.seedSubscription(t, student.ID, model.PlanStandard, 20, 0)
	session := env.startSession(t, student.ID)
	return env.advanceToPendingEvaluation(t, session, student.ID), student
}

func TestAssignComputesDeadlineOverWorkingCalendar(t *testing.T) {
	env := newTestEnv(t)
	// Friday morning; the 48-hour budget must not burn through Sunday.
	env.setNow(time.Date(2025, time.January, 3, 10, 0, 0, 0, time.Local))
	session, _ := pendingSession(t, env)
	teacher := env.seedUser(t, model.Teacher)

	evaluation, err := env.evaluations.AssignEvaluation(session.ID, teacher.ID, 0)
	require.NoError(t, err)

	assert.Equal(t, model.EvaluationAssigned, evaluation.Status)
	assert.Equal(t, 48, evaluation.SlaHours)
	assert.Equal(t, time.Date(2025, time.January, 6, 10, 0, 0, 0, time.Local), evaluation.Deadline)
	assert.Equal(t, 1, env.sink.count(EventEvaluationAssigned))
}

func TestAssignPremiumStudentGetsFasterTurnaround(t *testing.T) {
	env := newTestEnv(t)
	// Saturday morning submission on a premium plan: 24 working hours
	// land on Monday because Sunday never counts.
	env.setNow(time.Date(2025, time.January, 4, 10, 0, 0, 0, time.Local))
	student := env.seedUser(t, model.Student)
	env.seedSubscription(t, student.ID, model.PlanPremium, 50, 0)
	session := env.startSession(t, student.ID)
	session = env.advanceToPendingEvaluation(t, session, student.ID)
	teacher := env.seedUser(t, model.Teacher)

	evaluation, err := env.evaluations.AssignEvaluation(session.ID, teacher.ID, 0)
	require.NoError(t, err)

	assert.Equal(t, 24, evaluation.SlaHours)
	assert.Equal(t, time.Date(2025, time.January, 6, 10, 0, 0, 0, time.Local), evaluation.Deadline)
}

func TestAssignSkipsDeclaredHolidays(t *testing.T) {
	env := newTestEnv(t)
	env.setNow(time.Date(2025, time.January, 4, 10, 0, 0, 0, time.Local))
	require.NoError(t, env.db.Create(&model.Holiday{
		Date: time.Date(2025, time.January, 6, 0, 0, 0, 0, time.Local),
		Name: "Regional holiday",
	}).Error)

	student := env.seedUser(t, model.Student)
	env.seedSubscription(t, student.ID, model.PlanPremium, 50, 0)
	session := env.startSession(t, student.ID)
	session = env.advanceToPendingEvaluation(t, session, student.ID)
	teacher := env.seedUser(t, model.Teacher)

	evaluation, err := env.evaluations.AssignEvaluation(session.ID, teacher.ID, 0)
	require.NoError(t, err)

	// Sunday and the Monday holiday both excluded.
	assert.Equal(t, time.Date(2025, time.January, 7, 10, 0, 0, 0, time.Local), evaluation.Deadline)
}

func TestAssignTwiceRejected(t *testing.T) {
	env := newTestEnv(t)
	session, _ := pendingSession(t, env)
	teacher := env.seedUser(t, model.Teacher)
	other := env.seedUser(t, model.Teacher)

	_, err := env.evaluations.AssignEvaluation(session.ID, teacher.ID, 0)
	require.NoError(t, err)

	_, err = env.evaluations.AssignEvaluation(session.ID, other.ID, 0)
	assert.ErrorIs(t, err, util.ErrAlreadyAssigned)
}

func TestConcurrentAssignsCreateOneEvaluation(t *testing.T) {
	env := newTestEnv(t)
	session, _ := pendingSession(t, env)
	teacherA := env.seedUser(t, model.Teacher)
	teacherB := env.seedUser(t, model.Teacher)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, id := range []uint{teacherA.ID, teacherB.ID} {
		wg.Add(1)
		go func(teacherID uint) {
			defer wg.Done()
			_, err := env.evaluations.AssignEvaluation(session.ID, teacherID, 0)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)

	failures := 0
	for err := range errs {
		if err != nil {
			failures++
			assert.ErrorIs(t, err, util.ErrAlreadyAssigned)
		}
	}
	assert.Equal(t, 1, failures, "the session index admits exactly one assignment")

	var count int64
	require.NoError(t, env.db.Model(&model.Evaluation{}).
		Where("exam_session_id = ?", session.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAssignRequiresPendingEvaluation(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedUser(t, model.Student)
	env.seedSubscription(t, student.ID, model.PlanStandard, 20, 0)
	session := env.startSession(t, student.ID)
	teacher := env.seedUser(t, model.Teacher)

	_, err := env.evaluations.AssignEvaluation(session.ID, teacher.ID, 0)
	assert.Equal(t, util.KindInvalidState, util.KindOf(err))
}

func TestAssignRejectsNonTeacher(t *testing.T) {
	env := newTestEnv(t)
	session, _ := pendingSession(t, env)
	impostor := env.seedUser(t, model.Student)

	_, err := env.evaluations.AssignEvaluation(session.ID, impostor.ID, 0)
	assert.ErrorIs(t, err, util.ErrInvalidTeacher)
}

func TestStartEvaluationIdempotentWhileInProgress(t *testing.T) {
	env := newTestEnv(t)
	session, _ := pendingSession(t, env)
	teacher := env.seedUser(t, model.Teacher)
	assigned, err := env.evaluations.AssignEvaluation(session.ID, teacher.ID, 0)
	require.NoError(t, err)

	started, err := env.evaluations.StartEvaluation(assigned.ID, teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EvaluationInProgress, started.Status)
	require.NotNil(t, started.StartedAt)

	again, err := env.evaluations.StartEvaluation(assigned.ID, teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EvaluationInProgress, again.Status)
}

func TestStartEvaluationWrongTeacher(t *testing.T) {
	env := newTestEnv(t)
	session, _ := pendingSession(t, env)
	teacher := env.seedUser(t, model.Teacher)
	other := env.seedUser(t, model.Teacher)
	assigned, err := env.evaluations.AssignEvaluation(session.ID, teacher.ID, 0)
	require.NoError(t, err)

	_, err = env.evaluations.StartEvaluation(assigned.ID, other.ID)
	assert.ErrorIs(t, err, util.ErrNotAssignedTeacher)
}

func TestSubmitMarksRejectsWholeBatchOnExcess(t *testing.T) {
	env := newTestEnv(t)
	session, _ := pendingSession(t, env)
	teacher := env.seedUser(t, model.Teacher)
	assigned, err := env.evaluations.AssignEvaluation(session.ID, teacher.ID, 0)
	require.NoError(t, err)

	// Question 7 carries 4 marks; 4.5 is out of range, and the valid
	// entry for question 6 must not slip through either.
	err = env.evaluations.SubmitQuestionMarks(assigned.ID, teacher.ID, []QuestionMarkEntry{
		{QuestionNumber: 6, MarksAwarded: 3},
		{QuestionNumber: 7, MarksAwarded: 4.5},
	}, nil)

	var excess *util.MarksExceedPossibleError
	require.ErrorAs(t, err, &excess)
	assert.Equal(t, 7, excess.QuestionNumber)

	marks, err := env.evaluations.GetMarks(assigned.ID)
	require.NoError(t, err)
	assert.Empty(t, marks)
}

func TestSubmitMarksUpsertsAndPromotes(t *testing.T) {
	env := newTestEnv(t)
	session, _ := pendingSession(t, env)
	teacher := env.seedUser(t, model.Teacher)
	assigned, err := env.evaluations.AssignEvaluation(session.ID, teacher.ID, 0)
	require.NoError(t, err)

	require.NoError(t, env.evaluations.SubmitQuestionMarks(assigned.ID, teacher.ID, []QuestionMarkEntry{
		{QuestionNumber: 6, MarksAwarded: 2, Comment: "method error"},
	}, nil))

	promoted, err := env.evaluations.GetEvaluation(assigned.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EvaluationInProgress, promoted.Status, "first marks start the clock")

	// Re-marking the same question replaces the earlier entry.
	require.NoError(t, env.evaluations.SubmitQuestionMarks(assigned.ID, teacher.ID, []QuestionMarkEntry{
		{QuestionNumber: 6, MarksAwarded: 3.5, Comment: "partial credit on review"},
	}, nil))

	marks, err := env.evaluations.GetMarks(assigned.ID)
	require.NoError(t, err)
	require.Len(t, marks, 1)
	assert.Equal(t, 3.5, marks[0].MarksAwarded)
	assert.Equal(t, "partial credit on review", marks[0].Comment)
}

func TestAnnotationsMergeShallowly(t *testing.T) {
	env := newTestEnv(t)
	session, _ := pendingSession(t, env)
	teacher := env.seedUser(t, model.Teacher)
	assigned, err := env.evaluations.AssignEvaluation(session.ID, teacher.ID, 0)
	require.NoError(t, err)

	require.NoError(t, env.evaluations.SubmitQuestionMarks(assigned.ID, teacher.ID, nil,
		json.RawMessage(`{"page1":{"stamps":["tick"]}}`)))
	require.NoError(t, env.evaluations.SubmitQuestionMarks(assigned.ID, teacher.ID, nil,
		json.RawMessage(`{"page2":{"stamps":["cross"]}}`)))

	stored, err := env.evaluations.GetEvaluation(assigned.ID)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(stored.Annotations, &doc))
	assert.Contains(t, doc, "page1")
	assert.Contains(t, doc, "page2")
}

func TestCompleteRequiresEveryManualMark(t *testing.T) {
	env := newTestEnv(t)
	session, _ := pendingSession(t, env)
	teacher := env.seedUser(t, model.Teacher)
	assigned, err := env.evaluations.AssignEvaluation(session.ID, teacher.ID, 0)
	require.NoError(t, err)

	require.NoError(t, env.evaluations.SubmitQuestionMarks(assigned.ID, teacher.ID, []QuestionMarkEntry{
		{QuestionNumber: 6, MarksAwarded: 3},
	}, nil))

	_, err = env.evaluations.CompleteEvaluation(assigned.ID, teacher.ID)
	var incomplete *util.IncompleteGradingError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []int{7}, incomplete.MissingQuestions)

	// The evaluation stays open and the session untouched.
	current, err := env.exams.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExamPendingEvaluation, current.Status)
}

func TestCompleteFinalizesSessionScores(t *testing.T) {
	env := newTestEnv(t)
	student := env.seedUser(t, model.Student)
	env.seedSubscription(t, student.ID, model.PlanStandard, 20, 0)
	session := env.startSession(t, student.ID)

	// Objective: 4 of 5 single-mark questions right.
	for n := 1; n <= 4; n++ {
		require.NoError(t, env.exams.RecordObjectiveAnswer(session.ID, student.ID, n, "A"))
	}
	require.NoError(t, env.exams.RecordObjectiveAnswer(session.ID, student.ID, 5, "D"))
	env.advanceToPendingEvaluation(t, session, student.ID)

	teacher := env.seedUser(t, model.Teacher)
	assigned, err := env.evaluations.AssignEvaluation(session.ID, teacher.ID, 0)
	require.NoError(t, err)

	require.NoError(t, env.evaluations.SubmitQuestionMarks(assigned.ID, teacher.ID, []QuestionMarkEntry{
		{QuestionNumber: 6, MarksAwarded: 3},
		{QuestionNumber: 7, MarksAwarded: 4},
	}, nil))

	completed, err := env.evaluations.CompleteEvaluation(assigned.ID, teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EvaluationCompleted, completed.Status)
	assert.Equal(t, 7.0, completed.ManualScore)
	assert.False(t, completed.Breached)
	require.NotNil(t, completed.CompletedAt)

	finalized, err := env.exams.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExamEvaluated, finalized.Status)
	assert.Equal(t, 4.0, finalized.ObjectiveScore)
	assert.Equal(t, 11.0, finalized.TotalScore)
	require.NotNil(t, finalized.Percentage)
	assert.InDelta(t, 11.0/13.0*100, *finalized.Percentage, 1e-9)

	event, ok := env.sink.last(EventEvaluationCompleted)
	require.True(t, ok)
	assert.EqualValues(t, finalized.TotalScore, event.Payload["totalScore"])
	assert.Equal(t, 0, env.sink.count(EventSlaBreached))

	// Completion is terminal.
	_, err = env.evaluations.CompleteEvaluation(assigned.ID, teacher.ID)
	assert.Equal(t, util.KindInvalidState, util.KindOf(err))
	err = env.evaluations.SubmitQuestionMarks(assigned.ID, teacher.ID, []QuestionMarkEntry{
		{QuestionNumber: 6, MarksAwarded: 4},
	}, nil)
	assert.Equal(t, util.KindInvalidState, util.KindOf(err))
}

func TestCompletePastDeadlineRecordsBreach(t *testing.T) {
	env := newTestEnv(t)
	session, _ := pendingSession(t, env)
	teacher := env.seedUser(t, model.Teacher)
	assigned, err := env.evaluations.AssignEvaluation(session.ID, teacher.ID, 0)
	require.NoError(t, err)

	require.NoError(t, env.evaluations.SubmitQuestionMarks(assigned.ID, teacher.ID, []QuestionMarkEntry{
		{QuestionNumber: 6, MarksAwarded: 3},
		{QuestionNumber: 7, MarksAwarded: 3},
	}, nil))

	env.setNow(assigned.Deadline.Add(26 * time.Hour))

	completed, err := env.evaluations.CompleteEvaluation(assigned.ID, teacher.ID)
	require.NoError(t, err)
	assert.True(t, completed.Breached)

	event, ok := env.sink.last(EventSlaBreached)
	require.True(t, ok)
	assert.EqualValues(t, 26, event.Payload["hoursOverdue"])
}
