package model

import (
	"time"

	"gorm.io/datatypes"
)

type EvaluationStatus string

const (
	EvaluationAssigned   EvaluationStatus = "assigned"
	EvaluationInProgress EvaluationStatus = "in_progress"
	EvaluationCompleted  EvaluationStatus = "completed"
)

func (s EvaluationStatus) IsTerminal() bool {
	return s == EvaluationCompleted
}

// Evaluation is one teacher's marking job for exactly one exam session.
// The unique index on ExamSessionID enforces the 1:1 invariant even under
// concurrent assignment calls. Rows are an audit trail and never deleted.
// swagger:model Evaluation
type Evaluation struct {
	BaseModel
	ExamSessionID uint             `gorm:"uniqueIndex;not null" json:"examSessionId"`
	TeacherID     uint             `gorm:"index;not null" json:"teacherId"`
	Status        EvaluationStatus `gorm:"size:20;not null;index" json:"status"`

	AssignedAt time.Time `json:"assignedAt"`
	SlaHours   int       `json:"slaHours"`
	Deadline   time.Time `gorm:"index" json:"deadline"`

	// Breached is written exactly once, at completion time, and records
	// whether completion happened past the deadline. Live overdue checks
	// compare against Deadline directly.
	Breached bool `gorm:"default:false" json:"breached"`

	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	ManualScore float64 `json:"manualScore"`

	// Annotations is the teacher's per-page stamp/marking payload, opaque
	// to the workflow. Submissions merge into it shallowly.
	Annotations datatypes.JSON `gorm:"type:json" json:"annotations,omitempty"`
}

func (Evaluation) TableName() string {
	return "evaluations"
}

// IsOverdue is the live view used by dashboards and the sweep; it is
// independent of the persisted Breached flag.
func (e *Evaluation) IsOverdue(now time.Time) bool {
	return e.Status != EvaluationCompleted && now.After(e.Deadline)
}
