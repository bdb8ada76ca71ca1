package model

import "encoding/json"

type QuestionType string

const (
	QuestionMCQ       QuestionType = "mcq"
	QuestionTrueFalse QuestionType = "true_false"
	QuestionShort     QuestionType = "short_answer"
	QuestionLong      QuestionType = "long_answer"
	QuestionCaseStudy QuestionType = "case_study"
	QuestionAssertion QuestionType = "assertion_reason"
)

// IsObjective reports whether answers of this type are auto-graded at
// submission; everything else waits for a teacher.
func (t QuestionType) IsObjective() bool {
	switch t {
	case QuestionMCQ, QuestionTrueFalse, QuestionAssertion:
		return true
	}
	return false
}

// Question is one bank entry. The core only reads these at session start
// and when validating marks; editing lives in the admin tooling.
// swagger:model Question
type Question struct {
	BaseModel
	ClassLevel    int             `gorm:"index;not null" json:"classLevel"`
	Subject       string          `gorm:"size:100;index" json:"subject"`
	Unit          string          `gorm:"size:100;index" json:"unit"`
	QuestionType  QuestionType    `gorm:"size:30;not null;index" json:"questionType"`
	Content       string          `gorm:"type:text;not null" json:"content"`
	Options       json.RawMessage `gorm:"type:json" json:"options,omitempty"`
	CorrectAnswer string          `gorm:"type:text" json:"correctAnswer"`
	Marks         float64         `gorm:"not null" json:"marks"`
	IsActive      bool            `gorm:"default:true" json:"isActive"`
}

func (Question) TableName() string {
	return "questions"
}
