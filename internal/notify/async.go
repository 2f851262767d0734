package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type job struct {
	userID string
	ev     Event
	p      Payload
}

// Async turns any Notifier into a fire-and-forget dispatcher backed by a
// bounded worker pool. Send never blocks the protocol path and never returns
// an error: delivery failures are logged, as is a full queue. Push loss is
// acceptable because pushes are hints, not state.
type Async struct {
	inner   Notifier
	log     *zap.Logger
	jobs    chan job
	timeout time.Duration
	wg      sync.WaitGroup
	once    sync.Once
}

func NewAsync(inner Notifier, workers, queue int, log *zap.Logger) *Async {
	if workers < 1 {
		workers = 1
	}
	if queue < 1 {
		queue = 16
	}
	a := &Async{
		inner:   inner,
		log:     log,
		jobs:    make(chan job, queue),
		timeout: 10 * time.Second,
	}
	for i := 0; i < workers; i++ {
		a.wg.Add(1)
		go a.worker()
	}
	return a
}

func (a *Async) worker() {
	defer a.wg.Done()
	for j := range a.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.inner.Send(ctx, j.userID, j.ev, j.p); err != nil {
			a.log.Warn("notify_send_failed",
				zap.String("user_id", j.userID),
				zap.String("event", string(j.ev)),
				zap.String("alert_id", string(j.p.AlertID)),
				zap.Error(err),
			)
		}
		cancel()
	}
}

func (a *Async) Send(ctx context.Context, userID string, ev Event, p Payload) error {
	select {
	case a.jobs <- job{userID: userID, ev: ev, p: p}:
	default:
		a.log.Warn("notify_queue_full",
			zap.String("user_id", userID),
			zap.String("event", string(ev)),
		)
	}
	return nil
}

// Close stops accepting work and waits for in-flight sends.
func (a *Async) Close() {
	a.once.Do(func() { close(a.jobs) })
	a.wg.Wait()
}
