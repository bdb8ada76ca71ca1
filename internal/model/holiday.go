package model

import "time"

// Holiday marks a whole calendar date as non-working for SLA arithmetic,
// or (with IsWorkingDay set) overrides the default Sunday exclusion. There
// is no sub-day granularity: a half-day holiday still blocks the date.
// swagger:model Holiday
type Holiday struct {
	BaseModel
	Date         time.Time `gorm:"uniqueIndex;not null" json:"date"`
	Name         string    `gorm:"size:255" json:"name"`
	IsWorkingDay bool      `gorm:"default:false" json:"isWorkingDay"`
}

func (Holiday) TableName() string {
	return "holidays"
}
