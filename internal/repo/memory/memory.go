package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guardwatch/guardwatch/internal/clock"
	"github.com/guardwatch/guardwatch/internal/domain"
	"github.com/guardwatch/guardwatch/internal/repo"
)

var _ repo.AlertStore = (*Store)(nil)
var _ repo.ConfirmationStore = (*Store)(nil)
var _ repo.UserStore = (*Store)(nil)

type userRecord struct {
	cancelHash  string
	deviceToken string
	guardians   map[string]string // email -> guardian user id
}

// Store is the in-memory adapter for all three ports. It backs tests and
// DB-less development. The mutex makes UpdateStatus a true CAS: the
// check and the write happen under one critical section, same guarantee the
// postgres adapter gets from a conditional UPDATE.
type Store struct {
	mu     sync.RWMutex
	clk    clock.Clock
	window time.Duration
	alerts map[domain.AlertID]*domain.Alert
	confs  map[domain.ConfirmationID]*domain.Confirmation
	byPair map[string]domain.ConfirmationID
	users  map[string]*userRecord
}

func New(clk clock.Clock, window time.Duration) *Store {
	if window <= 0 {
		window = domain.DefaultCancelWindow
	}
	return &Store{
		clk:    clk,
		window: window,
		alerts: make(map[domain.AlertID]*domain.Alert),
		confs:  make(map[domain.ConfirmationID]*domain.Confirmation),
		byPair: make(map[string]domain.ConfirmationID),
		users:  make(map[string]*userRecord),
	}
}

func pairKey(alertID domain.AlertID, email string) string {
	return string(alertID) + "|" + email
}

// ---- AlertStore ----

func (m *Store) Add(ctx context.Context, a *domain.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = domain.AlertID(uuid.NewString())
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = m.clk.Now()
	}
	if a.Status == "" {
		a.Status = domain.AlertStatusSent
	}
	cp := *a
	m.alerts[a.ID] = &cp
	return nil
}

func (m *Store) Get(ctx context.Context, id domain.AlertID) (*domain.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.alerts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *Store) ListByUser(ctx context.Context, userID string) ([]*domain.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Alert
	for _, a := range m.alerts {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- ConfirmationStore ----

func (m *Store) GetConfirmation(ctx context.Context, alertID domain.AlertID, guardianEmail string) (*domain.Confirmation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPair[pairKey(alertID, guardianEmail)]
	if !ok {
		return nil, nil
	}
	cp := *m.confs[id]
	return &cp, nil
}

func (m *Store) Create(ctx context.Context, alertID domain.AlertID, guardianEmail, guardianUserID string) (*domain.Confirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(alertID, guardianEmail)
	if id, ok := m.byPair[key]; ok {
		cp := *m.confs[id]
		return &cp, nil
	}
	now := m.clk.Now()
	c := &domain.Confirmation{
		ID:             domain.ConfirmationID(uuid.NewString()),
		AlertID:        alertID,
		GuardianEmail:  guardianEmail,
		GuardianUserID: guardianUserID,
		Status:         domain.StatusConfirmed,
		CreatedAt:      now,
		ConfirmedAt:    now,
		ExpiresAt:      now.Add(m.window),
	}
	m.confs[c.ID] = c
	m.byPair[key] = c.ID
	cp := *c
	return &cp, nil
}

func (m *Store) UpdateStatus(ctx context.Context, id domain.ConfirmationID, expected, next domain.Status, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.confs[id]
	if !ok || c.Status != expected {
		return false, nil
	}
	c.Status = next
	if next == domain.StatusCancelled {
		t := at
		c.CancelledAt = &t
	}
	return true, nil
}

// ---- UserStore ----

func (m *Store) user(userID string) *userRecord {
	u, ok := m.users[userID]
	if !ok {
		u = &userRecord{guardians: make(map[string]string)}
		m.users[userID] = u
	}
	return u
}

func (m *Store) CancelPasswordHash(ctx context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[userID]; ok {
		return u.cancelHash, nil
	}
	return "", nil
}

func (m *Store) SetCancelPassword(ctx context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user(userID).cancelHash = hash
	return nil
}

func (m *Store) DeviceToken(ctx context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[userID]; ok {
		return u.deviceToken, nil
	}
	return "", nil
}

func (m *Store) SetDeviceToken(userID, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user(userID).deviceToken = token
}

func (m *Store) GuardianIDByEmail(ctx context.Context, userID, email string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[userID]; ok {
		return u.guardians[email], nil
	}
	return "", nil
}

// AddGuardian registers a guardian relation; seeding helper for dev and tests.
func (m *Store) AddGuardian(userID, email, guardianUserID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user(userID).guardians[email] = guardianUserID
}
