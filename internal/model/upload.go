package model

// AnswerSheetUpload records one uploaded answer-sheet page for a session.
// ObjectKey is an opaque object-store key; the workflow never parses the
// image behind it.
// swagger:model AnswerSheetUpload
type AnswerSheetUpload struct {
	BaseModel
	ExamSessionID uint   `gorm:"index;not null" json:"examSessionId"`
	PageNumber    int    `gorm:"not null" json:"pageNumber"`
	ObjectKey     string `gorm:"size:512;not null" json:"objectKey"`
}

func (AnswerSheetUpload) TableName() string {
	return "answer_sheet_uploads"
}
