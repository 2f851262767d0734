package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

func (s *Store) CancelPasswordHash(ctx context.Context, userID string) (string, error) {
	var hash *string
	err := s.pool.QueryRow(ctx,
		`SELECT cancel_password_hash FROM users WHERE id = $1`, userID).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", unavailable("get cancel password", err)
	}
	if hash == nil {
		return "", nil
	}
	return *hash, nil
}

func (s *Store) SetCancelPassword(ctx context.Context, userID, hash string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET cancel_password_hash = $2 WHERE id = $1`, userID, hash)
	if err != nil {
		return unavailable("set cancel password", err)
	}
	return nil
}

func (s *Store) DeviceToken(ctx context.Context, userID string) (string, error) {
	var token *string
	err := s.pool.QueryRow(ctx,
		`SELECT token FROM device_tokens WHERE user_id = $1 ORDER BY updated_at DESC LIMIT 1`,
		userID).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", unavailable("get device token", err)
	}
	if token == nil {
		return "", nil
	}
	return *token, nil
}

func (s *Store) GuardianIDByEmail(ctx context.Context, userID, email string) (string, error) {
	var guardianID *string
	err := s.pool.QueryRow(ctx,
		`SELECT guardian_user_id FROM guardians WHERE user_id = $1 AND email = $2`,
		userID, email).Scan(&guardianID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", unavailable("get guardian", err)
	}
	if guardianID == nil {
		return "", nil
	}
	return *guardianID, nil
}
