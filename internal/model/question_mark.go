package model

// QuestionMark is one teacher-entered mark for one question inside one
// evaluation. Upserted freely while the evaluation is open, frozen once it
// completes.
// swagger:model QuestionMark
type QuestionMark struct {
	BaseModel
	EvaluationID   uint    `gorm:"index;not null;uniqueIndex:idx_eval_question" json:"evaluationId"`
	QuestionNumber int     `gorm:"not null;uniqueIndex:idx_eval_question" json:"questionNumber"`
	MarksAwarded   float64 `gorm:"not null" json:"marksAwarded"`
	MarksPossible  float64 `gorm:"not null" json:"marksPossible"`
	Comment        string  `gorm:"type:text" json:"comment"`
}

func (QuestionMark) TableName() string {
	return "question_marks"
}
