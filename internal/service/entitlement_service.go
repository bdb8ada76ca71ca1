package service

import (
	"cbseprep_backend/internal/config"
	"cbseprep_backend/internal/model"
	"cbseprep_backend/internal/repository"
	"cbseprep_backend/internal/util"
	"cbseprep_backend/pkg/logger"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EntitlementService is the only writer of the subscription usage counter.
// Reserving an exam and creating the session happen inside one caller
// transaction, so a failed session start never leaves the counter bumped.
type EntitlementService struct {
	Repo   *repository.SubscriptionRepository
	Config *config.Config
	Events EventSink
	DB     *gorm.DB

	// Now is swappable for deterministic period-boundary tests.
	Now func() time.Time
}

func NewEntitlementService(repo *repository.SubscriptionRepository, cfg *config.Config, events EventSink, db *gorm.DB) *EntitlementService {
	return &EntitlementService{Repo: repo, Config: cfg, Events: events, DB: db, Now: time.Now}
}

// CheckAndReserve consumes one exam entitlement for the student, inside
// tx. Denials come back as entitlement-kind errors carrying the reason the
// student sees.
func (s *EntitlementService) CheckAndReserve(tx *gorm.DB, studentID uint) (*model.Subscription, error) {
	now := s.Now()

	sub, err := s.Repo.FindActiveByStudent(tx, studentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrNoActiveSubscription
	}
	if err != nil {
		return nil, err
	}

	if sub.EndDate.Before(truncateToDate(now)) {
		if err := s.Repo.Retire(tx, sub.ID, model.SubscriptionExpired); err != nil {
			return nil, err
		}
		return nil, util.ErrSubscriptionExpired
	}

	if err := s.lazyReset(tx, sub, now); err != nil {
		return nil, err
	}

	reserved, err := s.Repo.ReserveExam(tx, sub.ID, sub.PeriodKey)
	if err != nil {
		return nil, err
	}
	if !reserved {
		return nil, util.ErrLimitReached
	}
	sub.ExamsUsed++

	return sub, nil
}

// PublishLimitWarning emits the low-entitlement warning when a reserve
// left few exams in the period. Callers invoke it only after the
// reserving transaction committed, so a rolled-back start never warns.
func (s *EntitlementService) PublishLimitWarning(studentID uint, sub *model.Subscription) {
	remaining := sub.Remaining()
	if remaining > s.Config.SlaSettings().LowEntitlementWarning {
		return
	}
	s.Events.Publish(Event{
		Name: EventSubscriptionLimitWarning,
		Payload: map[string]interface{}{
			"studentId": studentID,
			"planTier":  string(sub.PlanTier),
			"remaining": remaining,
		},
	})
}

// lazyReset rolls the counter into the current billing period on first
// access after a boundary. The compare-and-swap on the stored period key
// means a racing accessor resets at most once.
func (s *EntitlementService) lazyReset(tx *gorm.DB, sub *model.Subscription, now time.Time) error {
	currentKey := model.PeriodKeyFor(now)
	if sub.PeriodKey == currentKey {
		return nil
	}
	swapped, err := s.Repo.ResetPeriod(tx, sub.ID, sub.PeriodKey, currentKey)
	if err != nil {
		return err
	}
	if swapped {
		logger.Log.Info("subscription counter reset",
			zap.Uint("subscriptionId", sub.ID),
			zap.String("period", currentKey))
	}
	// Either this call or a concurrent one applied the reset.
	sub.PeriodKey = currentKey
	sub.ExamsUsed = 0
	return nil
}

// UsageSummary is the dashboard projection of the entitlement state.
type UsageSummary struct {
	PlanTier      model.PlanTier `json:"planTier"`
	ExamLimit     int            `json:"examLimit"`
	ExamsUsed     int            `json:"examsUsed"`
	Remaining     int            `json:"remaining"`
	PeriodEndDate time.Time      `json:"periodEndDate"`
}

// GetUsageSummary applies the same lazy reset as CheckAndReserve but never
// increments.
func (s *EntitlementService) GetUsageSummary(studentID uint) (*UsageSummary, error) {
	now := s.Now()

	var summary *UsageSummary
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		sub, err := s.Repo.FindActiveByStudent(tx, studentID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrNoActiveSubscription
		}
		if err != nil {
			return err
		}

		if sub.EndDate.Before(truncateToDate(now)) {
			return util.ErrSubscriptionExpired
		}

		if err := s.lazyReset(tx, sub, now); err != nil {
			return err
		}

		summary = &UsageSummary{
			PlanTier:      sub.PlanTier,
			ExamLimit:     sub.ExamLimit,
			ExamsUsed:     sub.ExamsUsed,
			Remaining:     sub.Remaining(),
			PeriodEndDate: sub.EndDate,
		}
		return nil
	})
	return summary, err
}

// ActivateSubscription is the single externally-triggered write into the
// ledger, called by the billing collaborator after payment. Any prior
// active subscription is superseded in the same transaction; the unique
// active key keeps overlapping active windows out even under concurrent
// activation calls.
func (s *EntitlementService) ActivateSubscription(studentID uint, tier model.PlanTier, billingCycle string, startDate time.Time) (*model.Subscription, error) {
	switch tier {
	case model.PlanFree, model.PlanStandard, model.PlanPremium:
	default:
		return nil, &util.AppError{Kind: util.KindValidation, Message: "unknown plan tier"}
	}

	endDate := startDate.AddDate(0, 1, 0)
	if billingCycle == "yearly" {
		endDate = startDate.AddDate(1, 0, 0)
	}

	sub := &model.Subscription{
		StudentID:    studentID,
		PlanTier:     tier,
		BillingCycle: billingCycle,
		Status:       model.SubscriptionActive,
		StartDate:    startDate,
		EndDate:      endDate,
		ExamLimit:    s.Config.PlanSettings().ExamLimit(string(tier)),
		PeriodKey:    model.PeriodKeyFor(s.Now()),
		ActiveKey:    model.ActiveSubscriptionKey(studentID),
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		prior, err := s.Repo.FindActiveByStudent(tx, studentID)
		if err == nil {
			if err := s.Repo.Retire(tx, prior.ID, model.SubscriptionSuperseded); err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return s.Repo.Create(tx, sub)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &util.AppError{Kind: util.KindConflict, Message: "student already has an active subscription"}
		}
		return nil, err
	}

	logger.Log.Info("subscription activated",
		zap.Uint("studentId", studentID),
		zap.String("planTier", string(tier)),
		zap.Int("examLimit", sub.ExamLimit))

	return sub, nil
}

func (s *EntitlementService) History(studentID uint) ([]model.Subscription, error) {
	return s.Repo.ListByStudent(studentID)
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
