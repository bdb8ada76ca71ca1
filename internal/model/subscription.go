package model

import (
	"fmt"
	"time"
)

type PlanTier string

const (
	PlanFree     PlanTier = "free"
	PlanStandard PlanTier = "standard"
	PlanPremium  PlanTier = "premium"
)

type SubscriptionStatus string

const (
	SubscriptionActive     SubscriptionStatus = "active"
	SubscriptionExpired    SubscriptionStatus = "expired"
	SubscriptionSuperseded SubscriptionStatus = "superseded"
	SubscriptionCancelled  SubscriptionStatus = "cancelled"
)

// Subscription is one student's plan enrollment. The monthly usage counter
// resets lazily: PeriodKey records which year-month the counter belongs to
// and is compared on every access.
// swagger:model Subscription
type Subscription struct {
	BaseModel
	StudentID    uint               `gorm:"index;not null" json:"studentId"`
	PlanTier     PlanTier           `gorm:"size:20;not null" json:"planTier"`
	BillingCycle string             `gorm:"size:20;default:'monthly'" json:"billingCycle"`
	Status       SubscriptionStatus `gorm:"size:20;not null;index" json:"status"`
	StartDate    time.Time          `json:"startDate"`
	EndDate      time.Time          `json:"endDate"`

	ExamLimit int    `gorm:"not null" json:"examLimit"`
	ExamsUsed int    `gorm:"default:0" json:"examsUsed"`
	PeriodKey string `gorm:"size:7" json:"periodKey"` // "2006-01"

	// ActiveKey holds the student id on the single active row and is NULL
	// otherwise; the unique index rules out overlapping active windows.
	ActiveKey *string `gorm:"size:40;uniqueIndex" json:"-"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

func (s *Subscription) Remaining() int {
	r := s.ExamLimit - s.ExamsUsed
	if r < 0 {
		return 0
	}
	return r
}

// PeriodKeyFor is the usage-counter bucket an instant falls in.
func PeriodKeyFor(t time.Time) string {
	return t.Format("2006-01")
}

// ActiveSubscriptionKey is the value stored in ActiveKey for the live row.
func ActiveSubscriptionKey(studentID uint) *string {
	k := fmt.Sprintf("s%d", studentID)
	return &k
}
