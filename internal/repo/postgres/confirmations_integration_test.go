//go:build integration

package postgres

// go test -tags=integration ./internal/repo/postgres -count=1

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/guardwatch/guardwatch/internal/clock"
	"github.com/guardwatch/guardwatch/internal/domain"
)

// Minimal schema so the test can run on a fresh DB/volume.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
  id                   TEXT PRIMARY KEY,
  cancel_password_hash TEXT NULL
);

CREATE TABLE IF NOT EXISTS guardians (
  user_id          TEXT NOT NULL,
  email            TEXT NOT NULL,
  guardian_user_id TEXT NULL,
  PRIMARY KEY (user_id, email)
);

CREATE TABLE IF NOT EXISTS device_tokens (
  user_id    TEXT NOT NULL,
  token      TEXT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS alerts (
  id         TEXT PRIMARY KEY,
  user_id    TEXT NOT NULL,
  trigger    TEXT NOT NULL,
  latitude   DOUBLE PRECISION NULL,
  longitude  DOUBLE PRECISION NULL,
  accuracy   DOUBLE PRECISION NULL,
  status     TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS confirmations (
  id               TEXT PRIMARY KEY,
  alert_id         TEXT NOT NULL REFERENCES alerts(id),
  guardian_email   TEXT NOT NULL,
  guardian_user_id TEXT NOT NULL DEFAULT '',
  status           TEXT NOT NULL,
  created_at       TIMESTAMPTZ NOT NULL,
  confirmed_at     TIMESTAMPTZ NOT NULL,
  cancelled_at     TIMESTAMPTZ NULL,
  expires_at       TIMESTAMPTZ NOT NULL,
  UNIQUE (alert_id, guardian_email)
);
`

func ensureSchema(t *testing.T, dsn string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	defer pool.Close()
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
}

func TestConfirmationLifecycle(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL empty")
	}
	ensureSchema(t, dsn)

	ctx := context.Background()
	store, err := New(ctx, dsn, clock.System(), domain.DefaultCancelWindow, zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	a := &domain.Alert{UserID: "it-user", Trigger: domain.TriggerManual}
	if err := store.Add(ctx, a); err != nil {
		t.Fatalf("add alert: %v", err)
	}

	// none yet
	c, err := store.GetConfirmation(ctx, a.ID, "g@example.com")
	if err != nil || c != nil {
		t.Fatalf("expected nil, got %+v err=%v", c, err)
	}

	c, err = store.Create(ctx, a.ID, "g@example.com", "g1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Status != domain.StatusConfirmed {
		t.Fatalf("status = %q", c.Status)
	}

	// duplicate confirm converges on the first row
	c2, err := store.Create(ctx, a.ID, "g@example.com", "g1")
	if err != nil || c2.ID != c.ID {
		t.Fatalf("duplicate create: %+v err=%v", c2, err)
	}

	// CAS winner then loser
	now := time.Now().UTC()
	ok, err := store.UpdateStatus(ctx, c.ID, domain.StatusConfirmed, domain.StatusCancelled, now)
	if err != nil || !ok {
		t.Fatalf("cas win: ok=%v err=%v", ok, err)
	}
	ok, err = store.UpdateStatus(ctx, c.ID, domain.StatusConfirmed, domain.StatusExpired, now)
	if err != nil || ok {
		t.Fatalf("cas lose: ok=%v err=%v", ok, err)
	}

	got, err := store.GetConfirmation(ctx, a.ID, "g@example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusCancelled || got.CancelledAt == nil {
		t.Fatalf("row after cas: %+v", got)
	}
}
