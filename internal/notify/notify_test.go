package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/guardwatch/guardwatch/internal/domain"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Event
	err  error
}

func (r *recordingNotifier) Send(ctx context.Context, userID string, ev Event, p Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, ev)
	return r.err
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestMulti_FansOutAndKeepsFirstError(t *testing.T) {
	a := &recordingNotifier{}
	b := &recordingNotifier{err: errors.New("boom")}
	c := &recordingNotifier{}

	m := Multi{a, nil, b, c}
	err := m.Send(context.Background(), "u1", EventConfirmed, Payload{AlertID: "a1"})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("err = %v", err)
	}
	if a.count() != 1 || b.count() != 1 || c.count() != 1 {
		t.Fatalf("fan-out incomplete: %d %d %d", a.count(), b.count(), c.count())
	}
}

func TestAsync_DeliversAndSwallowsErrors(t *testing.T) {
	inner := &recordingNotifier{err: domain.ErrGuardianUnreachable}
	a := NewAsync(inner, 2, 8, zap.NewNop())

	for i := 0; i < 5; i++ {
		if err := a.Send(context.Background(), "u1", EventExpired, Payload{AlertID: "a1"}); err != nil {
			t.Fatalf("Send must not propagate: %v", err)
		}
	}
	a.Close()

	if inner.count() != 5 {
		t.Fatalf("delivered %d, want 5", inner.count())
	}
}

func TestAsync_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	block := make(chan struct{})
	inner := &blockingNotifier{release: block}
	a := NewAsync(inner, 1, 1, zap.NewNop())

	// first job occupies the worker, second fills the queue, the rest drop
	for i := 0; i < 10; i++ {
		_ = a.Send(context.Background(), "u1", EventCancelled, Payload{})
	}
	close(block)
	a.Close()

	if got := inner.count(); got > 2 {
		t.Fatalf("delivered %d, want at most 2", got)
	}
}

type blockingNotifier struct {
	mu      sync.Mutex
	n       int
	release chan struct{}
}

func (b *blockingNotifier) Send(ctx context.Context, userID string, ev Event, p Payload) error {
	<-b.release
	b.mu.Lock()
	b.n++
	b.mu.Unlock()
	return nil
}

func (b *blockingNotifier) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}
