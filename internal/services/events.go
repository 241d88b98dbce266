package services

import (
	"context"
	"time"

	"github.com/mentorlink/apiserver/types"
)

// Account event types.
const (
	EventUserRegistered    = "user.registered"
	EventUserPromoted      = "user.promoted"
	EventUserStatusChanged = "user.status_changed"
	EventUserUpdated       = "user.updated"
)

// EventPublisher publishes JSON events. *mq.MQ satisfies it.
type EventPublisher interface {
	PublishJSON(ctx context.Context, channel, eventType string, v any) (string, error)
}

// AccountEvent is the payload of every account event.
type AccountEvent struct {
	Type       string            `json:"type"`
	UserID     int               `json:"userId"`
	Email      string            `json:"email"`
	Role       types.Role        `json:"role"`
	Status     types.Status      `json:"status"`
	Details    map[string]string `json:"details,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

type eventSink struct {
	publisher EventPublisher
	channel   string
}

const publishTimeout = 5 * time.Second

// publish sends an event without failing the caller. It runs detached from
// the request context so a client disconnect does not drop the event.
func (s *AccountService) publish(ctx context.Context, eventType string, user types.User, details map[string]string) {
	if s.events == nil {
		return
	}
	event := AccountEvent{
		Type:       eventType,
		UserID:     user.ID,
		Email:      user.Email,
		Role:       user.Role,
		Status:     user.Status,
		Details:    details,
		OccurredAt: s.now().UTC(),
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if _, err := s.events.publisher.PublishJSON(pubCtx, s.events.channel, eventType, event); err != nil {
		s.logger.Error(ctx, "failed to publish account event", "event", eventType, "user_id", user.ID, "error", err)
	}
}
