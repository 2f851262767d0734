package countdown

import (
	"context"
	"testing"
	"time"

	"github.com/guardwatch/guardwatch/internal/clock"
	"github.com/guardwatch/guardwatch/internal/domain"
)

func TestRemaining_ReseedsFromCreatedAt(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewManual(start)
	e := New(clk, domain.DefaultCancelWindow)

	created := clk.Now()
	if got := e.Remaining(created); got != domain.DefaultCancelWindow {
		t.Fatalf("remaining = %v", got)
	}

	clk.Advance(25 * time.Second)
	if got := e.Remaining(created); got != 35*time.Second {
		t.Fatalf("remaining = %v, want 35s", got)
	}

	// past the deadline it floors at zero
	clk.Advance(60 * time.Second)
	if got := e.Remaining(created); got != 0 {
		t.Fatalf("remaining = %v, want 0", got)
	}
}

func TestRemaining_IgnoresLocalTimezone(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewManual(start)
	e := New(clk, domain.DefaultCancelWindow)

	// createdAt expressed in a non-UTC zone must compute the same
	loc := time.FixedZone("UTC+5", 5*3600)
	created := start.In(loc)
	clk.Advance(10 * time.Second)
	if got := e.Remaining(created); got != 50*time.Second {
		t.Fatalf("remaining = %v, want 50s", got)
	}
}

func TestTierThresholds(t *testing.T) {
	e := New(clock.System(), domain.DefaultCancelWindow)
	cases := []struct {
		rem  time.Duration
		want Tier
	}{
		{45 * time.Second, TierCalm},
		{21 * time.Second, TierCalm},
		{20 * time.Second, TierWarn},
		{11 * time.Second, TierWarn},
		{10 * time.Second, TierCritical},
		{0, TierCritical},
	}
	for _, c := range cases {
		if got := e.TierFor(c.rem); got != c.want {
			t.Errorf("TierFor(%v) = %q, want %q", c.rem, got, c.want)
		}
	}
}

func TestRun_AlreadyExpiredReportsImmediately(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewManual(start.Add(2 * time.Minute))
	e := New(clk, domain.DefaultCancelWindow)

	expired := false
	ticks := 0
	err := e.Run(context.Background(), start,
		func(Snapshot) { ticks++ },
		func(context.Context) { expired = true },
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !expired {
		t.Fatal("expire not invoked")
	}
	if ticks != 0 {
		t.Fatalf("ticked %d times on an already-expired window", ticks)
	}
}

func TestRun_TicksThenExpires(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewManual(start)
	// tiny window so the test runs in a couple of real ticks
	e := New(clk, 3*time.Second)

	done := make(chan struct{})
	var snaps []Snapshot
	go func() {
		defer close(done)
		_ = e.Run(context.Background(), start,
			func(s Snapshot) {
				snaps = append(snaps, s)
				clk.Advance(2 * time.Second) // manual clock outruns the ticker
			},
			func(context.Context) {},
		)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not finish")
	}
	if len(snaps) < 2 {
		t.Fatalf("snapshots = %d, want at least initial + one tick", len(snaps))
	}
	if snaps[0].Remaining != 3*time.Second {
		t.Fatalf("first snapshot remaining = %v", snaps[0].Remaining)
	}
}

func TestRun_CancelStopsCountdown(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	e := New(clk, domain.DefaultCancelWindow)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- e.Run(ctx, clk.Now(), nil, func(context.Context) {
			t.Error("expire must not fire on cancel")
		})
	}()
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
