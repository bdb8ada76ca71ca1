package service

import (
	"cbseprep_backend/internal/config"
	"cbseprep_backend/internal/model"
	"cbseprep_backend/internal/repository"
	"cbseprep_backend/pkg/database"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory database with the full schema
// applied, mirroring the production gorm configuration.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// sqlite allows one writer; a single pooled connection keeps racing
	// transactions queued instead of erroring.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

// memorySink collects published events for assertions.
type memorySink struct {
	mu     sync.Mutex
	events []Event
}

func (s *memorySink) Publish(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *memorySink) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

func (s *memorySink) last(name string) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Name == name {
			return s.events[i], true
		}
	}
	return Event{}, false
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:     "test-secret-test-secret-test-secret",
			ExpireTime: time.Hour,
		},
		Sla: config.SlaConfig{
			PremiumHours:          24,
			DefaultHours:          48,
			SweepIntervalMinutes:  5,
			ReminderWindowHours:   6,
			LowEntitlementWarning: 3,
		},
		Plans: config.PlansConfig{
			FreeLimit:     2,
			StandardLimit: 20,
			PremiumLimit:  50,
		},
	}
}

// testEnv wires the workflow services against one test database, with a
// shared clock the tests can move.
type testEnv struct {
	db   *gorm.DB
	sink *memorySink
	cfg  *config.Config

	users         *repository.UserRepository
	questions     *repository.QuestionRepository
	examRepo      *repository.ExamRepository
	evalRepo      *repository.EvaluationRepository
	subscriptions *repository.SubscriptionRepository
	holidays      *repository.HolidayRepository

	entitlement *EntitlementService
	exams       *ExamService
	evaluations *EvaluationService
	templates   *TemplateService
	workload    *WorkloadService

	now time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		db:   newTestDB(t),
		sink: &memorySink{},
		cfg:  testConfig(),
		now:  time.Date(2025, time.March, 12, 10, 0, 0, 0, time.Local), // a Wednesday
	}

	env.users = repository.NewUserRepository(env.db)
	env.questions = repository.NewQuestionRepository(env.db)
	env.examRepo = repository.NewExamRepository(env.db)
	env.evalRepo = repository.NewEvaluationRepository(env.db)
	env.subscriptions = repository.NewSubscriptionRepository(env.db)
	env.holidays = repository.NewHolidayRepository(env.db)

	env.entitlement = NewEntitlementService(env.subscriptions, env.cfg, env.sink, env.db)
	env.exams = NewExamService(env.examRepo, env.questions, env.entitlement, env.db)
	env.evaluations = NewEvaluationService(
		env.evalRepo, env.examRepo, env.users, env.subscriptions, env.holidays,
		env.exams, env.cfg, env.sink, env.db,
	)
	env.templates = NewTemplateService(env.examRepo, env.questions)
	env.workload = NewWorkloadService(env.evalRepo, env.cfg, env.sink)

	clock := func() time.Time { return env.now }
	env.entitlement.Now = clock
	env.exams.Now = clock
	env.evaluations.Now = clock
	env.workload.Now = clock

	return env
}

func (env *testEnv) setNow(t time.Time) {
	env.now = t
}

func (env *testEnv) seedUser(t *testing.T, role model.UserRole) *model.User {
	t.Helper()
	u := &model.User{
		Name:       fmt.Sprintf("%s-%d", role, time.Now().UnixNano()),
		Email:      fmt.Sprintf("%s-%d@example.com", role, time.Now().UnixNano()),
		Password:   "irrelevant",
		Role:       role,
		ClassLevel: 10,
	}
	require.NoError(t, env.db.Create(u).Error)
	return u
}

func (env *testEnv) seedSubscription(t *testing.T, studentID uint, tier model.PlanTier, limit, used int) *model.Subscription {
	t.Helper()
	sub := &model.Subscription{
		StudentID: studentID,
		PlanTier:  tier,
		Status:    model.SubscriptionActive,
		StartDate: env.now.AddDate(0, 0, -5),
		EndDate:   env.now.AddDate(0, 1, 0),
		ExamLimit: limit,
		ExamsUsed: used,
		PeriodKey: model.PeriodKeyFor(env.now),
		ActiveKey: model.ActiveSubscriptionKey(studentID),
	}
	require.NoError(t, env.db.Create(sub).Error)
	return sub
}

// seedQuestions inserts n identical-shape bank questions and returns them.
func (env *testEnv) seedQuestions(t *testing.T, classLevel int, qtype model.QuestionType, marks float64, unit string, n int) []model.Question {
	t.Helper()
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{
			ClassLevel:    classLevel,
			Subject:       "Mathematics",
			Unit:          unit,
			QuestionType:  qtype,
			Content:       fmt.Sprintf("%s question %d on %s", qtype, i+1, unit),
			CorrectAnswer: "A",
			Marks:         marks,
			IsActive:      true,
		}
	}
	require.NoError(t, env.db.Create(&qs).Error)
	return qs
}

// seedTemplate creates an active blueprint: five 1-mark MCQs plus two
// 4-mark short answers, 13 marks total.
func (env *testEnv) seedTemplate(t *testing.T) *model.ExamTemplate {
	t.Helper()
	return env.seedTemplateSections(t, []model.TemplateSection{
		{Name: "A", QuestionType: model.QuestionMCQ, MarksPerQuestion: 1, QuestionCount: 5},
		{Name: "B", QuestionType: model.QuestionShort, MarksPerQuestion: 4, QuestionCount: 2},
	})
}

func (env *testEnv) seedTemplateSections(t *testing.T, sections []model.TemplateSection) *model.ExamTemplate {
	t.Helper()
	template := &model.ExamTemplate{
		Name:            "Term Test",
		ClassLevel:      10,
		Subject:         "Mathematics",
		ExamKind:        model.ExamSection,
		DurationMinutes: 90,
		IsActive:        true,
	}
	require.NoError(t, template.SetSections(sections))
	require.NoError(t, env.db.Create(template).Error)
	return template
}

// seedBank fills the question bank to cover seedTemplate's sections.
func (env *testEnv) seedBank(t *testing.T) {
	t.Helper()
	env.seedQuestions(t, 10, model.QuestionMCQ, 1, "algebra", 8)
	env.seedQuestions(t, 10, model.QuestionShort, 4, "algebra", 4)
}

// startSession is the common preamble: subscription, bank, template,
// session started.
func (env *testEnv) startSession(t *testing.T, studentID uint) *model.ExamSession {
	t.Helper()
	env.seedBank(t)
	template := env.seedTemplate(t)
	session, err := env.exams.StartSession(studentID, template.ID)
	require.NoError(t, err)
	return session
}

// advanceToPendingEvaluation walks a fresh session through submission and
// upload so it is ready for teacher assignment.
func (env *testEnv) advanceToPendingEvaluation(t *testing.T, session *model.ExamSession, studentID uint) *model.ExamSession {
	t.Helper()
	_, err := env.exams.SubmitObjective(session.ID, studentID)
	require.NoError(t, err)
	_, err = env.exams.BeginUpload(session.ID, studentID)
	require.NoError(t, err)
	_, err = env.exams.MarkUploaded(session.ID, studentID, []string{"answer-sheets/1/page-1.jpg"})
	require.NoError(t, err)
	advanced, err := env.exams.MarkPendingEvaluation(session.ID, studentID)
	require.NoError(t, err)
	return advanced
}
