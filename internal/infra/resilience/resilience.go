// Package resilience provides fault-tolerance patterns for collaborator
// calls: circuit breaker and bulkhead. Calls are never retried automatically;
// the user retries by repeating the action.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/elowen/skin-coach-bfa-go/internal/domain"
	"github.com/sony/gobreaker"
)

// Config holds resilience parameters.
type Config struct {
	MaxConcurrency int
}

// NewCircuitBreaker creates a circuit breaker with sensible defaults.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,                // half-open: allow 3 requests
		Interval:    30 * time.Second, // closed: reset counters every 30s
		Timeout:     10 * time.Second, // open -> half-open after 10s
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
	})
}

// Bulkhead limits concurrent access to a resource.
type Bulkhead struct {
	sem chan struct{}
}

// NewBulkhead creates a bulkhead with the given max concurrency.
func NewBulkhead(maxConcurrency int) *Bulkhead {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Bulkhead{sem: make(chan struct{}, maxConcurrency)}
}

// Acquire blocks until a slot is available or context is cancelled.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot only if one is free.
func (b *Bulkhead) TryAcquire() bool {
	select {
	case b.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot.
func (b *Bulkhead) Release() {
	<-b.sem
}

// InFlight reports the number of held slots.
func (b *Bulkhead) InFlight() int {
	return len(b.sem)
}

// Guard runs collaborator calls behind a shared breaker and bulkhead.
type Guard struct {
	service string
	cb      *gobreaker.CircuitBreaker
	bh      *Bulkhead
}

// NewGuard creates a guard for service.
func NewGuard(service string, cfg Config) *Guard {
	return &Guard{
		service: service,
		cb:      NewCircuitBreaker(service),
		bh:      NewBulkhead(cfg.MaxConcurrency),
	}
}

// Execute runs fn once. Breaker rejections become ErrCircuitOpen and an
// expired deadline becomes ErrTimeout; other errors pass through unchanged.
func (g *Guard) Execute(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if err := g.bh.Acquire(ctx); err != nil {
		return g.classify(ctx, operation, err)
	}
	defer g.bh.Release()

	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if err == nil {
		return nil
	}
	return g.classify(ctx, operation, err)
}

// Service returns the guarded service name.
func (g *Guard) Service() string { return g.service }

// State exposes the breaker state for health checks.
func (g *Guard) State() gobreaker.State {
	return g.cb.State()
}

func (g *Guard) classify(ctx context.Context, operation string, err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &domain.ErrCircuitOpen{Service: g.service}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &domain.ErrTimeout{Operation: operation}
	}
	return err
}
