package protocol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/guardwatch/guardwatch/internal/clock"
	"github.com/guardwatch/guardwatch/internal/domain"
	"github.com/guardwatch/guardwatch/internal/guard"
	"github.com/guardwatch/guardwatch/internal/notify"
	"github.com/guardwatch/guardwatch/internal/repo"
)

// Machine drives a confirmation through
// confirmed -> {cancelled | expired}. Cancel and Expire race on the same
// row from different devices; the winner is decided by server time and a
// single CAS on status, never by message arrival order. All collaborators
// are injected so the whole protocol runs deterministically against the
// in-memory store and a manual clock in tests.
type Machine struct {
	alerts   repo.AlertStore
	confs    repo.ConfirmationStore
	users    repo.UserStore
	guard    *guard.Guard
	clk      clock.Clock
	notifier notify.Notifier
	window   time.Duration
	log      *zap.Logger
}

func New(
	alerts repo.AlertStore,
	confs repo.ConfirmationStore,
	users repo.UserStore,
	g *guard.Guard,
	clk clock.Clock,
	notifier notify.Notifier,
	window time.Duration,
	log *zap.Logger,
) *Machine {
	if window <= 0 {
		window = domain.DefaultCancelWindow
	}
	return &Machine{
		alerts:   alerts,
		confs:    confs,
		users:    users,
		guard:    g,
		clk:      clk,
		notifier: notifier,
		window:   window,
		log:      log,
	}
}

// Window is the cancellation window the machine enforces.
func (m *Machine) Window() time.Duration { return m.window }

// Confirm records a guardian acting on an alert. The row is created with a
// server-assigned CreatedAt, which becomes the origin every device computes
// the cancellation window from. Confirming twice converges on the first row.
// The "confirmed" push to the alerting user is best effort: an unreachable
// user does not undo the transition.
func (m *Machine) Confirm(ctx context.Context, alertID domain.AlertID, guardianEmail string) (*domain.Confirmation, error) {
	a, err := m.alerts.Get(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, domain.ErrAlertNotFound
	}

	if existing, err := m.confs.GetConfirmation(ctx, alertID, guardianEmail); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	guardianID, err := m.users.GuardianIDByEmail(ctx, a.UserID, guardianEmail)
	if err != nil {
		m.log.Warn("guardian_lookup_failed",
			zap.String("alert_id", string(alertID)),
			zap.String("guardian_email", guardianEmail),
			zap.Error(err),
		)
		guardianID = ""
	}

	c, err := m.confs.Create(ctx, alertID, guardianEmail, guardianID)
	if err != nil {
		return nil, err
	}

	m.send(ctx, a.UserID, notify.EventConfirmed, notify.Payload{
		AlertID:       alertID,
		GuardianEmail: guardianEmail,
		Title:         "Guardian confirmed your alert",
		Body: fmt.Sprintf("%s confirmed your alert. You have %d seconds to cancel a false alarm.",
			guardianEmail, int(m.window.Seconds())),
	})

	m.log.Info("confirmation_created",
		zap.String("alert_id", string(alertID)),
		zap.String("confirmation_id", string(c.ID)),
		zap.String("guardian_email", guardianEmail),
		zap.Time("expires_at", c.ExpiresAt),
	)
	return c, nil
}

// Cancel is the alerting user's false-alarm path. The guard runs first and a
// guard failure mutates nothing. The window check uses server time against
// the persisted CreatedAt; a client-reported elapsed time is never trusted.
// A cancel arriving after the deadline is converted into the expire
// transition and reported as ErrWindowExpired.
func (m *Machine) Cancel(ctx context.Context, alertID domain.AlertID, guardianEmail, password string) (*domain.Confirmation, error) {
	a, err := m.alerts.Get(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, domain.ErrAlertNotFound
	}
	c, err := m.confs.GetConfirmation(ctx, alertID, guardianEmail)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrAlertNotFound
	}

	if err := m.guard.Verify(ctx, a.UserID, password); err != nil {
		return nil, err
	}

	if c.Status.Terminal() {
		return c, domain.ErrAlreadyTerminal
	}

	now := m.clk.Now()
	if !now.Before(c.Deadline(m.window)) {
		// authoritative evidence of expiry: flip the row on the way out
		ok, err := m.confs.UpdateStatus(ctx, c.ID, domain.StatusConfirmed, domain.StatusExpired, now)
		if err != nil {
			return nil, err
		}
		if ok {
			c.Status = domain.StatusExpired
			m.notifyGuardianExpired(ctx, c)
		} else if fresh, err := m.confs.GetConfirmation(ctx, alertID, guardianEmail); err == nil && fresh != nil {
			c = fresh
		}
		return c, domain.ErrWindowExpired
	}

	ok, err := m.confs.UpdateStatus(ctx, c.ID, domain.StatusConfirmed, domain.StatusCancelled, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// lost the race; report what actually happened
		fresh, err := m.confs.GetConfirmation(ctx, alertID, guardianEmail)
		if err != nil {
			return nil, err
		}
		if fresh != nil {
			if fresh.Status == domain.StatusExpired {
				return fresh, domain.ErrWindowExpired
			}
			return fresh, domain.ErrAlreadyTerminal
		}
		return nil, domain.ErrAlertNotFound
	}

	c.Status = domain.StatusCancelled
	t := now
	c.CancelledAt = &t

	m.send(ctx, c.GuardianUserID, notify.EventCancelled, notify.Payload{
		AlertID:       alertID,
		GuardianEmail: guardianEmail,
		Title:         "Alert cancelled",
		Body:          "The user cancelled the alert as a false alarm.",
	})

	m.log.Info("confirmation_cancelled",
		zap.String("alert_id", string(alertID)),
		zap.String("confirmation_id", string(c.ID)),
		zap.Time("cancelled_at", now),
	)
	return c, nil
}

// Expire is invoked by whichever device's countdown fires first, and by the
// read path when a reopened view finds the window already elapsed. It
// re-verifies elapsed time from CreatedAt before committing, so a device
// resuming with a stale countdown cannot expire a live window early.
// Re-invoking on a terminal row is a no-op, which is what makes duplicate
// countdown firings across devices harmless.
func (m *Machine) Expire(ctx context.Context, alertID domain.AlertID, guardianEmail string) (*domain.Confirmation, error) {
	c, err := m.confs.GetConfirmation(ctx, alertID, guardianEmail)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrAlertNotFound
	}
	if c.Status.Terminal() {
		return c, nil
	}

	now := m.clk.Now()
	if now.Before(c.Deadline(m.window)) {
		m.log.Warn("expire_premature",
			zap.String("confirmation_id", string(c.ID)),
			zap.Duration("remaining", c.Deadline(m.window).Sub(now)),
		)
		return c, nil
	}

	ok, err := m.confs.UpdateStatus(ctx, c.ID, domain.StatusConfirmed, domain.StatusExpired, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		if fresh, err := m.confs.GetConfirmation(ctx, alertID, guardianEmail); err == nil && fresh != nil {
			return fresh, nil
		}
		return c, nil
	}

	c.Status = domain.StatusExpired
	m.notifyGuardianExpired(ctx, c)

	m.log.Info("confirmation_expired",
		zap.String("alert_id", string(alertID)),
		zap.String("confirmation_id", string(c.ID)),
	)
	return c, nil
}

// Status returns the current confirmation view. An alert nobody has acted on
// reads as pending. Reopening a view past the deadline performs the expire
// transition, so a user who backgrounded the app sees the true outcome.
func (m *Machine) Status(ctx context.Context, alertID domain.AlertID, guardianEmail string) (*domain.Confirmation, error) {
	a, err := m.alerts.Get(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, domain.ErrAlertNotFound
	}
	c, err := m.confs.GetConfirmation(ctx, alertID, guardianEmail)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return &domain.Confirmation{
			AlertID:       alertID,
			GuardianEmail: guardianEmail,
			Status:        domain.StatusPending,
		}, nil
	}
	if c.Status == domain.StatusConfirmed && !m.clk.Now().Before(c.Deadline(m.window)) {
		return m.Expire(ctx, alertID, guardianEmail)
	}
	return c, nil
}

func (m *Machine) notifyGuardianExpired(ctx context.Context, c *domain.Confirmation) {
	m.send(ctx, c.GuardianUserID, notify.EventExpired, notify.Payload{
		AlertID:       c.AlertID,
		GuardianEmail: c.GuardianEmail,
		Title:         "Alert still active",
		Body:          "The user took no action. The alert remains active.",
	})
}

// send delivers a push and degrades to a log line on failure. Delivery is
// never part of the transition's outcome.
func (m *Machine) send(ctx context.Context, userID string, ev notify.Event, p notify.Payload) {
	if userID == "" {
		m.log.Warn("notify_unreachable",
			zap.String("event", string(ev)),
			zap.String("alert_id", string(p.AlertID)),
		)
		return
	}
	if err := m.notifier.Send(ctx, userID, ev, p); err != nil {
		if errors.Is(err, domain.ErrGuardianUnreachable) {
			m.log.Warn("notify_unreachable",
				zap.String("event", string(ev)),
				zap.String("user_id", userID),
				zap.String("alert_id", string(p.AlertID)),
			)
			return
		}
		m.log.Warn("notify_send_failed",
			zap.String("event", string(ev)),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}
