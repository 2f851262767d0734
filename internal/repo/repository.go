package repo

import (
	"context"
	"time"

	"github.com/guardwatch/guardwatch/internal/domain"
)

// Ports (interfaces) — swap in any DB adapter later.

type AlertStore interface {
	Add(ctx context.Context, a *domain.Alert) error
	// Get returns nil, nil if there's no alert with that id.
	Get(ctx context.Context, id domain.AlertID) (*domain.Alert, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Alert, error)
}

// ConfirmationStore persists the confirmation rows the state machine runs
// on. UpdateStatus is the only mutation after Create and must be executed by
// the store as one atomic conditional statement: "set status to next only if
// it is still expected". The false return is how a racing writer finds out
// it lost.
type ConfirmationStore interface {
	// GetConfirmation returns nil, nil if the guardian has not acted on the
	// alert yet.
	GetConfirmation(ctx context.Context, alertID domain.AlertID, guardianEmail string) (*domain.Confirmation, error)
	Create(ctx context.Context, alertID domain.AlertID, guardianEmail, guardianUserID string) (*domain.Confirmation, error)
	UpdateStatus(ctx context.Context, id domain.ConfirmationID, expected, next domain.Status, at time.Time) (bool, error)
}

// UserStore is the slice of the user profile the protocol needs: the cancel
// password hash, a push destination, and guardian resolution by email.
type UserStore interface {
	// CancelPasswordHash returns "" when the user has no password enrolled.
	CancelPasswordHash(ctx context.Context, userID string) (string, error)
	SetCancelPassword(ctx context.Context, userID, hash string) error
	// DeviceToken returns "" when no push destination is known.
	DeviceToken(ctx context.Context, userID string) (string, error)
	// GuardianIDByEmail returns "" when the email is not a registered
	// guardian of the user.
	GuardianIDByEmail(ctx context.Context, userID, email string) (string, error)
}
