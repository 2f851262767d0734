package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/guardwatch/guardwatch/internal/domain"
)

func (s *Store) GetConfirmation(ctx context.Context, alertID domain.AlertID, guardianEmail string) (*domain.Confirmation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, alert_id, guardian_email, guardian_user_id, status,
		        created_at, confirmed_at, cancelled_at, expires_at
		   FROM confirmations
		  WHERE alert_id = $1 AND guardian_email = $2`,
		string(alertID), guardianEmail)

	var c domain.Confirmation
	err := row.Scan(&c.ID, &c.AlertID, &c.GuardianEmail, &c.GuardianUserID, &c.Status,
		&c.CreatedAt, &c.ConfirmedAt, &c.CancelledAt, &c.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, unavailable("get confirmation", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.ConfirmedAt = c.ConfirmedAt.UTC()
	c.ExpiresAt = c.ExpiresAt.UTC()
	if c.CancelledAt != nil {
		t := c.CancelledAt.UTC()
		c.CancelledAt = &t
	}
	return &c, nil
}

// Create inserts the row with a server-assigned created_at. The unique
// (alert_id, guardian_email) index plus ON CONFLICT DO NOTHING makes a
// duplicate confirm converge on the first row instead of erroring.
func (s *Store) Create(ctx context.Context, alertID domain.AlertID, guardianEmail, guardianUserID string) (*domain.Confirmation, error) {
	now := s.clk.Now()
	c := &domain.Confirmation{
		ID:             domain.ConfirmationID(uuid.NewString()),
		AlertID:        alertID,
		GuardianEmail:  guardianEmail,
		GuardianUserID: guardianUserID,
		Status:         domain.StatusConfirmed,
		CreatedAt:      now,
		ConfirmedAt:    now,
		ExpiresAt:      now.Add(s.window),
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO confirmations
		   (id, alert_id, guardian_email, guardian_user_id, status, created_at, confirmed_at, expires_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (alert_id, guardian_email) DO NOTHING`,
		string(c.ID), string(c.AlertID), c.GuardianEmail, c.GuardianUserID,
		string(c.Status), c.CreatedAt, c.ConfirmedAt, c.ExpiresAt,
	)
	if err != nil {
		return nil, unavailable("insert confirmation", err)
	}
	if tag.RowsAffected() == 0 {
		// someone else confirmed first; hand back their row
		return s.GetConfirmation(ctx, alertID, guardianEmail)
	}
	return c, nil
}

// UpdateStatus is the CAS the whole protocol rests on: one conditional
// UPDATE, no read-then-write from the caller. RowsAffected distinguishes
// winner from loser.
func (s *Store) UpdateStatus(ctx context.Context, id domain.ConfirmationID, expected, next domain.Status, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE confirmations
		    SET status = $3,
		        cancelled_at = CASE WHEN $3 = 'cancelled' THEN $4 ELSE cancelled_at END
		  WHERE id = $1 AND status = $2`,
		string(id), string(expected), string(next), at,
	)
	if err != nil {
		return false, unavailable("update confirmation status", err)
	}
	return tag.RowsAffected() == 1, nil
}
