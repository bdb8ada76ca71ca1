package model

// StudentAnswer is one graded objective answer, computed once at submission
// and never mutated afterwards.
// swagger:model StudentAnswer
type StudentAnswer struct {
	BaseModel
	ExamSessionID  uint    `gorm:"index;not null;uniqueIndex:idx_session_question" json:"examSessionId"`
	QuestionNumber int     `gorm:"not null;uniqueIndex:idx_session_question" json:"questionNumber"`
	Choice         string  `gorm:"type:text" json:"choice"`
	IsCorrect      bool    `json:"isCorrect"`
	MarksAwarded   float64 `json:"marksAwarded"`
	MarksPossible  float64 `json:"marksPossible"`
}

func (StudentAnswer) TableName() string {
	return "student_answers"
}
