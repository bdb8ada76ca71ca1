package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type ExamStatus string

const (
	ExamCreated            ExamStatus = "created"
	ExamInProgress         ExamStatus = "in_progress"
	ExamSubmittedObjective ExamStatus = "submitted_objective"
	ExamPendingUpload      ExamStatus = "pending_upload"
	ExamUploaded           ExamStatus = "uploaded"
	ExamPendingEvaluation  ExamStatus = "pending_evaluation"
	ExamEvaluated          ExamStatus = "evaluated"
)

// IsActive reports whether the session still blocks the student from
// starting another exam.
func (s ExamStatus) IsActive() bool {
	return s == ExamCreated || s == ExamInProgress
}

func (s ExamStatus) IsTerminal() bool {
	return s == ExamEvaluated
}

// SnapshotQuestion is one question frozen into a session at start time.
// QuestionNumber is the student-facing sequential number across sections.
type SnapshotQuestion struct {
	QuestionNumber int             `json:"questionNumber"`
	QuestionID     uint            `json:"questionId"`
	Section        string          `json:"section"`
	QuestionType   QuestionType    `json:"questionType"`
	Unit           string          `json:"unit"`
	Content        string          `json:"content"`
	Options        json.RawMessage `json:"options,omitempty"`
	CorrectAnswer  string          `json:"correctAnswer"`
	MarksPossible  float64         `json:"marksPossible"`
}

// RecordedAnswer is one objective choice the student has saved; last write
// wins per question number.
type RecordedAnswer struct {
	Choice     string    `json:"choice"`
	RecordedAt time.Time `json:"recordedAt"`
}

// ExamSnapshot is the immutable copy of exam content captured at session
// start. Only the Answers sub-map may grow, and only while the session is
// in progress; the question list is never touched again.
type ExamSnapshot struct {
	TemplateID uint                   `json:"templateId"`
	ExamKind   ExamKind               `json:"examKind"`
	Questions  []SnapshotQuestion     `json:"questions"`
	Answers    map[string]RecordedAnswer `json:"answers"`
}

func (s *ExamSnapshot) QuestionByNumber(n int) (*SnapshotQuestion, bool) {
	for i := range s.Questions {
		if s.Questions[i].QuestionNumber == n {
			return &s.Questions[i], true
		}
	}
	return nil, false
}

// HasManualComponent reports whether any question needs teacher grading.
func (s *ExamSnapshot) HasManualComponent() bool {
	for _, q := range s.Questions {
		if !q.QuestionType.IsObjective() {
			return true
		}
	}
	return false
}

// ManualQuestionNumbers lists the question numbers a teacher must mark.
func (s *ExamSnapshot) ManualQuestionNumbers() []int {
	var nums []int
	for _, q := range s.Questions {
		if !q.QuestionType.IsObjective() {
			nums = append(nums, q.QuestionNumber)
		}
	}
	return nums
}

// ExamSession is one student's attempt at one template. Rows are never
// physically deleted; the snapshot is retained for audit and appeal.
// swagger:model ExamSession
type ExamSession struct {
	BaseModel
	StudentID  uint       `gorm:"index;not null" json:"studentId"`
	TemplateID uint       `gorm:"index;not null" json:"templateId"`
	Status     ExamStatus `gorm:"size:30;not null;index" json:"status"`

	Snapshot datatypes.JSON `gorm:"type:json" json:"-"`

	TotalMarks      float64    `json:"totalMarks"`
	DurationMinutes int        `json:"durationMinutes"`
	StartedAt       time.Time  `json:"startedAt"`
	SubmittedAt     *time.Time `json:"submittedAt,omitempty"`

	ObjectiveScore float64  `json:"objectiveScore"`
	ManualScore    float64  `json:"manualScore"`
	TotalScore     float64  `json:"totalScore"`
	Percentage     *float64 `json:"percentage,omitempty"`

	// ActiveKey holds the student id while the session is created or in
	// progress and is NULL afterwards; the unique index makes "one active
	// session per student" a database invariant.
	ActiveKey *string `gorm:"size:40;uniqueIndex" json:"-"`
}

func (ExamSession) TableName() string {
	return "exam_sessions"
}

func (e *ExamSession) DecodeSnapshot() (*ExamSnapshot, error) {
	var snap ExamSnapshot
	if err := json.Unmarshal(e.Snapshot, &snap); err != nil {
		return nil, fmt.Errorf("session %d: malformed snapshot: %w", e.ID, err)
	}
	if snap.Answers == nil {
		snap.Answers = make(map[string]RecordedAnswer)
	}
	return &snap, nil
}

func (e *ExamSession) EncodeSnapshot(snap *ExamSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	e.Snapshot = datatypes.JSON(raw)
	return nil
}

// ActiveSessionKey is the value stored in ActiveKey for a live session.
func ActiveSessionKey(studentID uint) *string {
	k := fmt.Sprintf("s%d", studentID)
	return &k
}
