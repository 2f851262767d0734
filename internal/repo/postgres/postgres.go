package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/guardwatch/guardwatch/internal/clock"
	"github.com/guardwatch/guardwatch/internal/domain"
	"github.com/guardwatch/guardwatch/internal/repo"
)

var _ repo.AlertStore = (*Store)(nil)
var _ repo.ConfirmationStore = (*Store)(nil)
var _ repo.UserStore = (*Store)(nil)

type Store struct {
	pool   *pgxpool.Pool
	clk    clock.Clock
	window time.Duration
	log    *zap.Logger
}

func New(ctx context.Context, dsn string, clk clock.Clock, window time.Duration, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if window <= 0 {
		window = domain.DefaultCancelWindow
	}
	return &Store{pool: pool, clk: clk, window: window, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// unavailable tags a driver/network error so callers can retry it; protocol
// rejections never come out of this path.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
}

// ---- AlertStore ----

func (s *Store) Add(ctx context.Context, a *domain.Alert) error {
	if a.ID == "" {
		a.ID = domain.AlertID(uuid.NewString())
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.clk.Now()
	}
	if a.Status == "" {
		a.Status = domain.AlertStatusSent
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alerts (id, user_id, trigger, latitude, longitude, accuracy, status, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		string(a.ID), a.UserID, string(a.Trigger), a.Latitude, a.Longitude, a.Accuracy, a.Status, a.CreatedAt,
	)
	if err != nil {
		return unavailable("insert alert", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id domain.AlertID) (*domain.Alert, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, trigger, latitude, longitude, accuracy, status, created_at
		   FROM alerts WHERE id = $1`, string(id))
	var a domain.Alert
	err := row.Scan(&a.ID, &a.UserID, &a.Trigger, &a.Latitude, &a.Longitude, &a.Accuracy, &a.Status, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, unavailable("get alert", err)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]*domain.Alert, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, trigger, latitude, longitude, accuracy, status, created_at
		   FROM alerts
		  WHERE user_id = $1
		  ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, unavailable("list alerts", err)
	}
	defer rows.Close()

	var out []*domain.Alert
	for rows.Next() {
		var a domain.Alert
		if err := rows.Scan(&a.ID, &a.UserID, &a.Trigger, &a.Latitude, &a.Longitude, &a.Accuracy, &a.Status, &a.CreatedAt); err != nil {
			return nil, unavailable("scan alert", err)
		}
		a.CreatedAt = a.CreatedAt.UTC()
		out = append(out, &a)
	}
	if rows.Err() != nil {
		return nil, unavailable("list alerts", rows.Err())
	}
	return out, nil
}
