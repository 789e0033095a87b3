// Package notify delivers member notifications. The lifecycle engine hands
// events to a Dispatcher, which publishes them asynchronously so a slow or
// unavailable delivery channel never fails a payment or registration.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kind identifies the notification template.
type Kind string

const (
	KindCredentialsIssued Kind = "credentials_issued"
	KindMembershipRenewed Kind = "membership_renewed"
	KindRenewalReminder   Kind = "renewal_reminder"
	KindMembershipExpired Kind = "membership_expired"
)

// Event is the message published for the mail/SMS delivery service.
type Event struct {
	EventID    string    `json:"event_id"`
	Kind       Kind      `json:"kind"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	Mobile     string    `json:"mobile,omitempty"`
	Subject    string    `json:"subject"`
	TextBody   string    `json:"text_body"`
	HTMLBody   string    `json:"html_body,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent stamps an id and timestamp on a notification.
func NewEvent(kind Kind, userID, email, mobile string) Event {
	return Event{
		EventID:    uuid.NewString(),
		Kind:       kind,
		UserID:     userID,
		Email:      email,
		Mobile:     mobile,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher sends one event to a delivery channel.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// LogPublisher writes events to the structured log. It is used when no
// broker is configured, and in development.
type LogPublisher struct {
	Log *zap.Logger
}

func (p LogPublisher) Publish(_ context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	p.Log.Info("notification",
		zap.String("kind", string(ev.Kind)),
		zap.String("user_id", ev.UserID),
		zap.String("email", ev.Email),
		zap.String("subject", ev.Subject),
		zap.Int("bytes", len(body)))
	return nil
}

func (LogPublisher) Close() error { return nil }
