package countdown

import (
	"context"
	"time"

	"github.com/guardwatch/guardwatch/internal/clock"
	"github.com/guardwatch/guardwatch/internal/domain"
)

// Tier is a display urgency band. It carries no state semantics; the state
// machine never looks at it.
type Tier string

const (
	TierCalm     Tier = "calm"
	TierWarn     Tier = "warn"
	TierCritical Tier = "critical"
)

const (
	warnThreshold     = 20 * time.Second
	criticalThreshold = 10 * time.Second
)

// Snapshot is one recomputed view of the window.
type Snapshot struct {
	Remaining time.Duration
	Tier      Tier
	Expired   bool
}

// Engine is the single countdown implementation shared by every caller.
// It never trusts a previously started countdown's origin: each computation
// reseeds from the persisted CreatedAt against the injected clock, so a
// device that was backgrounded mid-window resumes with corrected time, not
// restarted time. All arithmetic is UTC.
type Engine struct {
	clk    clock.Clock
	window time.Duration
}

func New(clk clock.Clock, window time.Duration) *Engine {
	if window <= 0 {
		window = domain.DefaultCancelWindow
	}
	return &Engine{clk: clk, window: window}
}

func (e *Engine) Window() time.Duration { return e.window }

// Remaining computes window - (now - createdAt), floored at zero.
func (e *Engine) Remaining(createdAt time.Time) time.Duration {
	rem := e.window - e.clk.Now().Sub(createdAt.UTC())
	if rem < 0 {
		return 0
	}
	return rem
}

func (e *Engine) TierFor(remaining time.Duration) Tier {
	switch {
	case remaining <= criticalThreshold:
		return TierCritical
	case remaining <= warnThreshold:
		return TierWarn
	default:
		return TierCalm
	}
}

func (e *Engine) Snapshot(createdAt time.Time) Snapshot {
	rem := e.Remaining(createdAt)
	return Snapshot{
		Remaining: rem,
		Tier:      e.TierFor(rem),
		Expired:   rem <= 0,
	}
}

// Run drives one countdown for the confirmation created at createdAt. If the
// window has already elapsed it reports expiry immediately without ticking.
// Otherwise it ticks once per second, recomputing from the clock each time,
// and invokes expire when remaining reaches zero. expire must be idempotent:
// another device's countdown may fire first, and duplicates are tolerated by
// the state machine. Returns ctx.Err() if cancelled, nil once expiry has
// been reported.
func (e *Engine) Run(ctx context.Context, createdAt time.Time, onTick func(Snapshot), expire func(context.Context)) error {
	snap := e.Snapshot(createdAt)
	if snap.Expired {
		expire(ctx)
		return nil
	}
	if onTick != nil {
		onTick(snap)
	}

	t := time.NewTicker(time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			snap = e.Snapshot(createdAt)
			if onTick != nil {
				onTick(snap)
			}
			if snap.Expired {
				expire(ctx)
				return nil
			}
		}
	}
}
