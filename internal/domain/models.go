package domain

import "time"

type AlertID string

type ConfirmationID string

// Trigger is what fired the alert on the user's device.
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerVoice  Trigger = "voice"
)

// Alert is one emergency event. It is written once when the trigger fires
// and never mutated afterwards; the confirmation lifecycle lives in
// Confirmation, not here.
type Alert struct {
	ID        AlertID   `json:"id"`
	UserID    string    `json:"user_id"`
	Trigger   Trigger   `json:"trigger"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// AlertStatusSent is the only status an Alert ever has.
const AlertStatusSent = "sent"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Terminal reports whether s is a final state. Terminal confirmations never
// transition again.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

// DefaultCancelWindow is the canonical cancellation window. Every caller
// derives its deadline from this one value (or the configured override);
// nothing else hard-codes a duration.
const DefaultCancelWindow = 60 * time.Second

// Confirmation records a guardian acknowledging an alert. CreatedAt is the
// server-assigned origin of the cancellation window; devices recompute
// remaining time from it rather than trusting ExpiresAt verbatim.
type Confirmation struct {
	ID             ConfirmationID `json:"id"`
	AlertID        AlertID        `json:"alert_id"`
	GuardianEmail  string         `json:"guardian_email"`
	GuardianUserID string         `json:"guardian_user_id,omitempty"`
	Status         Status         `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	ConfirmedAt    time.Time      `json:"confirmed_at"`
	CancelledAt    *time.Time     `json:"cancelled_at,omitempty"`
	ExpiresAt      time.Time      `json:"expires_at"`
}

// Deadline is the end of the cancellation window, recomputed from CreatedAt.
func (c *Confirmation) Deadline(window time.Duration) time.Time {
	return c.CreatedAt.Add(window)
}
