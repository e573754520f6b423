package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/elowen/skin-coach-bfa-go/internal/domain"
	"github.com/elowen/skin-coach-bfa-go/internal/infra/resilience"
	"github.com/sony/gobreaker"
)

func TestBulkhead_AcquireRelease(t *testing.T) {
	bh := resilience.NewBulkhead(2)

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}
	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}

	// third acquire blocks until the context gives up
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := bh.Acquire(ctx); err == nil {
		t.Fatal("expected timeout on third acquire")
	}
	if bh.TryAcquire() {
		t.Fatal("expected TryAcquire to fail while full")
	}

	bh.Release()

	if !bh.TryAcquire() {
		t.Fatal("expected TryAcquire after release")
	}
	if got := bh.InFlight(); got != 2 {
		t.Errorf("expected 2 in flight, got %d", got)
	}
}

func TestGuard_PassesThroughErrors(t *testing.T) {
	g := resilience.NewGuard("collaborator", resilience.Config{MaxConcurrency: 1})
	boom := errors.New("boom")

	calls := 0
	err := g.Execute(context.Background(), "generate_routine", func(context.Context) error {
		calls++
		return boom
	})

	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call (no retry), got %d", calls)
	}
}

func TestGuard_OpensAfterRepeatedFailures(t *testing.T) {
	g := resilience.NewGuard("collaborator", resilience.Config{MaxConcurrency: 1})
	fail := func(context.Context) error { return errors.New("down") }

	for range 5 {
		_ = g.Execute(context.Background(), "analyze_image", fail)
	}
	if g.State() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", g.State())
	}

	called := false
	err := g.Execute(context.Background(), "analyze_image", func(context.Context) error {
		called = true
		return nil
	})

	var open *domain.ErrCircuitOpen
	if !errors.As(err, &open) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("fn must not run while the breaker is open")
	}
}

func TestGuard_DeadlineBecomesTimeout(t *testing.T) {
	g := resilience.NewGuard("collaborator", resilience.Config{MaxConcurrency: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := g.Execute(ctx, "generate_routine", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	var timeout *domain.ErrTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if timeout.Operation != "generate_routine" {
		t.Errorf("unexpected operation %q", timeout.Operation)
	}
}
