package service

import (
	"cbseprep_backend/internal/config"
	"cbseprep_backend/internal/model"
	"cbseprep_backend/internal/repository"
	"cbseprep_backend/pkg/logger"
	"cbseprep_backend/pkg/monitoring"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// WorkloadService is the periodic SLA auditor. It only reads: the
// authoritative breached flag is written at completion time, the sweep
// reports breaches as telemetry the moment they happen and feeds the
// notification collaborator.
type WorkloadService struct {
	Evaluations *repository.EvaluationRepository
	Config      *config.Config
	Events      EventSink

	Now func() time.Time

	mu       sync.Mutex
	breached map[uint]bool // evaluation ids already reported overdue
	reminded map[uint]bool // evaluation ids already reminded
}

func NewWorkloadService(evaluations *repository.EvaluationRepository, cfg *config.Config, events EventSink) *WorkloadService {
	return &WorkloadService{
		Evaluations: evaluations,
		Config:      cfg,
		Events:      events,
		Now:         time.Now,
		breached:    make(map[uint]bool),
		reminded:    make(map[uint]bool),
	}
}

// Run drives Sweep on the configured interval until stop is closed.
func (s *WorkloadService) Run(stop <-chan struct{}) {
	interval := time.Duration(s.Config.SlaSettings().SweepIntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(s.Now())
		case <-stop:
			return
		}
	}
}

// Sweep scans open evaluations once. A malformed row is logged and
// skipped; it never aborts the rest of the scan.
func (s *WorkloadService) Sweep(now time.Time) {
	open, err := s.Evaluations.ListOpen()
	if err != nil {
		logger.Log.Error("workload sweep query failed", zap.Error(err))
		return
	}

	window := time.Duration(s.Config.SlaSettings().ReminderWindowHours) * time.Hour
	overdueCount := 0
	for i := range open {
		ev := &open[i]
		if ev.Deadline.IsZero() {
			logger.Log.Warn("skipping evaluation with no deadline", zap.Uint("evaluationId", ev.ID))
			continue
		}

		if ev.IsOverdue(now) {
			overdueCount++
			s.reportBreach(ev, now)
			continue
		}

		remaining := ev.Deadline.Sub(now)
		if remaining <= window {
			s.remind(ev, remaining)
		}
	}

	s.pruneSeen(open)
	monitoring.OverdueEvaluations.Set(float64(overdueCount))
}

// pruneSeen drops seen-set entries for evaluations that are no longer
// open, so completed work does not accumulate in memory.
func (s *WorkloadService) pruneSeen(open []model.Evaluation) {
	alive := make(map[uint]bool, len(open))
	for i := range open {
		alive[open[i].ID] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.breached {
		if !alive[id] {
			delete(s.breached, id)
		}
	}
	for id := range s.reminded {
		if !alive[id] {
			delete(s.reminded, id)
		}
	}
}

// reportBreach emits the newly-breached event exactly once per evaluation
// across sweeps.
func (s *WorkloadService) reportBreach(ev *model.Evaluation, now time.Time) {
	s.mu.Lock()
	seen := s.breached[ev.ID]
	s.breached[ev.ID] = true
	s.mu.Unlock()
	if seen {
		return
	}

	monitoring.SlaBreachesDetected.Inc()
	logger.Log.Warn("evaluation past SLA deadline",
		zap.Uint("evaluationId", ev.ID),
		zap.Uint("teacherId", ev.TeacherID),
		zap.Time("deadline", ev.Deadline))

	s.Events.Publish(Event{
		Name: EventSlaBreached,
		Payload: map[string]interface{}{
			"evaluationId": ev.ID,
			"teacherId":    ev.TeacherID,
			"hoursOverdue": int(now.Sub(ev.Deadline).Hours()),
		},
	})
}

func (s *WorkloadService) remind(ev *model.Evaluation, remaining time.Duration) {
	s.mu.Lock()
	seen := s.reminded[ev.ID]
	s.reminded[ev.ID] = true
	s.mu.Unlock()
	if seen {
		return
	}

	s.Events.Publish(Event{
		Name: EventSlaReminderDue,
		Payload: map[string]interface{}{
			"evaluationId":   ev.ID,
			"teacherId":      ev.TeacherID,
			"hoursRemaining": int(remaining.Hours()),
		},
	})
}

// TeacherWorkload is the read-only per-teacher dashboard aggregation.
type TeacherWorkload struct {
	TeacherID     uint        `json:"teacherId"`
	Assigned      int64       `json:"assigned"`
	InProgress    int64       `json:"inProgress"`
	Completed     int64       `json:"completed"`
	Overdue       int         `json:"overdue"`
	NextDeadlines []time.Time `json:"nextDeadlines"`
}

// Workload aggregates one teacher's queue. Deadlines are the soonest n
// among open evaluations.
func (s *WorkloadService) Workload(teacherID uint, n int) (*TeacherWorkload, error) {
	w := &TeacherWorkload{TeacherID: teacherID}

	var err error
	if w.Assigned, err = s.Evaluations.CountByTeacherAndStatus(teacherID, model.EvaluationAssigned); err != nil {
		return nil, err
	}
	if w.InProgress, err = s.Evaluations.CountByTeacherAndStatus(teacherID, model.EvaluationInProgress); err != nil {
		return nil, err
	}
	if w.Completed, err = s.Evaluations.CountByTeacherAndStatus(teacherID, model.EvaluationCompleted); err != nil {
		return nil, err
	}

	open, err := s.Evaluations.ListOpen()
	if err != nil {
		return nil, err
	}
	now := s.Now()
	var deadlines []time.Time
	for _, ev := range open {
		if ev.TeacherID != teacherID {
			continue
		}
		if ev.IsOverdue(now) {
			w.Overdue++
		}
		deadlines = append(deadlines, ev.Deadline)
	}
	sort.Slice(deadlines, func(i, j int) bool { return deadlines[i].Before(deadlines[j]) })
	if len(deadlines) > n {
		deadlines = deadlines[:n]
	}
	w.NextDeadlines = deadlines

	return w, nil
}

// OverdueList is the live overdue view for admin dashboards.
func (s *WorkloadService) OverdueList() ([]model.Evaluation, error) {
	open, err := s.Evaluations.ListOpen()
	if err != nil {
		return nil, err
	}
	now := s.Now()
	var overdue []model.Evaluation
	for _, ev := range open {
		if ev.IsOverdue(now) {
			overdue = append(overdue, ev)
		}
	}
	return overdue, nil
}
