package retry

import (
	"context"
	"errors"
	"time"

	"github.com/guardwatch/guardwatch/internal/domain"
	"github.com/guardwatch/guardwatch/internal/repo"
)

// Confirmations wraps a ConfirmationStore and retries transient store
// failures a bounded number of times. Only ErrStoreUnavailable is retried:
// protocol rejections are final answers, and the CAS makes a replayed
// UpdateStatus safe: a retry against a row that already transitioned simply
// returns false.
type Confirmations struct {
	Inner    repo.ConfirmationStore
	Attempts int
	Backoff  time.Duration
}

var _ repo.ConfirmationStore = (*Confirmations)(nil)

func do(ctx context.Context, attempts int, backoff time.Duration, op func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = op()
		if err == nil || !errors.Is(err, domain.ErrStoreUnavailable) {
			return err
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return err
}

func (r *Confirmations) retry(ctx context.Context, op func() error) error {
	return do(ctx, r.Attempts, r.Backoff, op)
}

func (r *Confirmations) GetConfirmation(ctx context.Context, alertID domain.AlertID, guardianEmail string) (*domain.Confirmation, error) {
	var out *domain.Confirmation
	err := r.retry(ctx, func() error {
		var e error
		out, e = r.Inner.GetConfirmation(ctx, alertID, guardianEmail)
		return e
	})
	return out, err
}

func (r *Confirmations) Create(ctx context.Context, alertID domain.AlertID, guardianEmail, guardianUserID string) (*domain.Confirmation, error) {
	var out *domain.Confirmation
	err := r.retry(ctx, func() error {
		var e error
		out, e = r.Inner.Create(ctx, alertID, guardianEmail, guardianUserID)
		return e
	})
	return out, err
}

func (r *Confirmations) UpdateStatus(ctx context.Context, id domain.ConfirmationID, expected, next domain.Status, at time.Time) (bool, error) {
	var out bool
	err := r.retry(ctx, func() error {
		var e error
		out, e = r.Inner.UpdateStatus(ctx, id, expected, next, at)
		return e
	})
	return out, err
}

// Alerts is the same decorator for the alert port.
type Alerts struct {
	Inner    repo.AlertStore
	Attempts int
	Backoff  time.Duration
}

var _ repo.AlertStore = (*Alerts)(nil)

func (r *Alerts) retry(ctx context.Context, op func() error) error {
	return do(ctx, r.Attempts, r.Backoff, op)
}

func (r *Alerts) Add(ctx context.Context, a *domain.Alert) error {
	return r.retry(ctx, func() error { return r.Inner.Add(ctx, a) })
}

func (r *Alerts) Get(ctx context.Context, id domain.AlertID) (*domain.Alert, error) {
	var out *domain.Alert
	err := r.retry(ctx, func() error {
		var e error
		out, e = r.Inner.Get(ctx, id)
		return e
	})
	return out, err
}

func (r *Alerts) ListByUser(ctx context.Context, userID string) ([]*domain.Alert, error) {
	var out []*domain.Alert
	err := r.retry(ctx, func() error {
		var e error
		out, e = r.Inner.ListByUser(ctx, userID)
		return e
	})
	return out, err
}
