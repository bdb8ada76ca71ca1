package service

import (
	"cbseprep_backend/pkg/logger"
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Event names consumed by the notification delivery worker. Payloads carry
// ids and primitive values only.
const (
	EventEvaluationAssigned       = "evaluation_assigned"
	EventEvaluationCompleted      = "evaluation_completed"
	EventSlaReminderDue           = "sla_reminder_due"
	EventSlaBreached              = "sla_breached"
	EventSubscriptionLimitWarning = "subscription_limit_warning"
)

const notificationChannel = "cbseprep:notifications"

// Event is one fire-and-forget notification. The workflow never waits on
// delivery; publication happens after the state change that produced it
// has committed.
type Event struct {
	Name       string                 `json:"name"`
	OccurredAt time.Time              `json:"occurredAt"`
	Payload    map[string]interface{} `json:"payload"`
}

// EventSink receives workflow events. The production sink publishes to
// Redis; tests substitute an in-memory sink.
type EventSink interface {
	Publish(event Event)
}

// NotificationService pushes events onto a Redis channel for the delivery
// worker (email/SMS lives outside this service).
type NotificationService struct {
	Redis *redis.Client
}

func NewNotificationService(rdb *redis.Client) *NotificationService {
	return &NotificationService{Redis: rdb}
}

func (s *NotificationService) Publish(event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	raw, err := json.Marshal(event)
	if err != nil {
		logger.Log.Error("notification marshal failed", zap.String("event", event.Name), zap.Error(err))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Redis.Publish(ctx, notificationChannel, raw).Err(); err != nil {
			logger.Log.Error("notification publish failed", zap.String("event", event.Name), zap.Error(err))
			return
		}
		logger.Log.Info("notification published", zap.String("event", event.Name))
	}()
}

// NopSink drops events; used when Redis is not configured.
type NopSink struct{}

func (NopSink) Publish(Event) {}
