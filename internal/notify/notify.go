package notify

import (
	"context"

	"github.com/guardwatch/guardwatch/internal/domain"
)

// Event is the state transition being announced to the counterpart device.
type Event string

const (
	EventConfirmed Event = "confirmed"
	EventCancelled Event = "cancelled"
	EventExpired   Event = "expired"
)

// Payload is what rides inside the push. It is a hint to re-fetch state:
// receiving devices always read the confirmation back from the store and
// never act on the payload alone.
type Payload struct {
	AlertID       domain.AlertID `json:"alert_id"`
	GuardianEmail string         `json:"guardian_email"`
	Title         string         `json:"title"`
	Body          string         `json:"body"`
}

type Notifier interface {
	Send(ctx context.Context, userID string, ev Event, p Payload) error
}

type Multi []Notifier

func (m Multi) Send(ctx context.Context, userID string, ev Event, p Payload) error {
	var firstErr error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, userID, ev, p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Noop drops every event; stands in when no push backend is configured.
type Noop struct{}

func (Noop) Send(ctx context.Context, userID string, ev Event, p Payload) error { return nil }
