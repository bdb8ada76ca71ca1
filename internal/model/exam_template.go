package model

import (
	"encoding/json"
	"fmt"
	"math"

	"gorm.io/datatypes"
)

type ExamKind string

const (
	ExamBoard        ExamKind = "board"
	ExamSection      ExamKind = "section"
	ExamUnitPractice ExamKind = "unit_practice"
)

// TemplateSection describes one block of an exam blueprint: how many
// questions of which type and marks to draw, and how the draw is weighted
// across units. Weights within a section must sum to 1.0.
type TemplateSection struct {
	Name             string             `json:"name"`
	QuestionType     QuestionType       `json:"questionType"`
	MarksPerQuestion float64            `json:"marksPerQuestion"`
	QuestionCount    int                `json:"questionCount"`
	UnitWeights      map[string]float64 `json:"unitWeights,omitempty"`
}

// Validate checks the section is internally consistent.
func (s TemplateSection) Validate() error {
	if s.QuestionCount <= 0 {
		return fmt.Errorf("section %q: question count must be positive", s.Name)
	}
	if s.MarksPerQuestion <= 0 {
		return fmt.Errorf("section %q: marks per question must be positive", s.Name)
	}
	if len(s.UnitWeights) > 0 {
		var sum float64
		for _, w := range s.UnitWeights {
			sum += w
		}
		if math.Abs(sum-1.0) > 1e-6 {
			return fmt.Errorf("section %q: unit weights sum to %.4f, expected 1.0", s.Name, sum)
		}
	}
	return nil
}

// ExamTemplate is the admin-authored blueprint an exam attempt is generated
// from. It is read-only at generation time; edits never affect sessions
// already started (they hold their own snapshot).
// swagger:model ExamTemplate
type ExamTemplate struct {
	BaseModel
	Name            string         `gorm:"size:255;not null" json:"name"`
	ClassLevel      int            `gorm:"index;not null" json:"classLevel"`
	Subject         string         `gorm:"size:100" json:"subject"`
	ExamKind        ExamKind       `gorm:"size:30;not null" json:"examKind"`
	DurationMinutes int            `gorm:"default:180" json:"durationMinutes"`
	Sections        datatypes.JSON `gorm:"type:json" json:"sections"`
	IsActive        bool           `gorm:"default:true" json:"isActive"`
	CreatorID       uint           `gorm:"index" json:"creatorId"`
}

func (ExamTemplate) TableName() string {
	return "exam_templates"
}

func (t *ExamTemplate) DecodeSections() ([]TemplateSection, error) {
	var sections []TemplateSection
	if err := json.Unmarshal(t.Sections, &sections); err != nil {
		return nil, fmt.Errorf("template %d: malformed sections: %w", t.ID, err)
	}
	return sections, nil
}

func (t *ExamTemplate) SetSections(sections []TemplateSection) error {
	for _, s := range sections {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	raw, err := json.Marshal(sections)
	if err != nil {
		return err
	}
	t.Sections = datatypes.JSON(raw)
	return nil
}

// TotalMarks is the marks ceiling implied by the blueprint.
func (t *ExamTemplate) TotalMarks() (float64, error) {
	sections, err := t.DecodeSections()
	if err != nil {
		return 0, err
	}
	var total float64
	for _, s := range sections {
		total += float64(s.QuestionCount) * s.MarksPerQuestion
	}
	return total, nil
}
