// Package reqid allocates correlation ids for outbound requests. Plain
// request ids are a local monotonic sequence. Order ids come from the
// upstream gateway under one of three policies, because the gateway's
// next-id behavior differs by client and sometimes drops the id request
// outright.
package reqid

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Strategy selects how order ids are obtained from the gateway.
type Strategy string

const (
	// StrategyRetry requests a fresh id for every order and re-issues the
	// request when the gateway drops it, up to MaxAttempts.
	StrategyRetry Strategy = "retry"

	// StrategyBasic is a single attempt with no retry. Fails fast.
	StrategyBasic Strategy = "basic"

	// StrategyIncrement captures the connect-time seed and increments
	// locally. No round trips, but unsafe if another session shares the
	// same client identity.
	StrategyIncrement Strategy = "increment"
)

// ErrAllocationTimeout reports that the gateway did not supply an id
// within the allocation budget.
var ErrAllocationTimeout = errors.New("order id allocation timed out")

// Config holds allocation tuning. The retry bound and per-attempt deadline
// are policy knobs tuned against gateway flakiness, not constants.
type Config struct {
	Strategy       Strategy
	AttemptTimeout time.Duration
	MaxAttempts    int
}

// DefaultConfig returns the retry strategy with its default budget.
func DefaultConfig() Config {
	return Config{
		Strategy:       StrategyRetry,
		AttemptTimeout: 500 * time.Millisecond,
		MaxAttempts:    4,
	}
}

// Allocator hands out correlation ids. All allocations are serialized;
// concurrent callers are safe.
type Allocator struct {
	cfg        Config
	logger     *slog.Logger
	requestIDs func() error // issues the upstream next-id request

	mu      sync.Mutex // serializes id handout
	counter int64      // last id handed out

	waitMu  sync.Mutex
	waiters []chan int64
	seed    int64 // connect-time seed for StrategyIncrement
	seeded  bool
}

// NewAllocator creates an Allocator. requestIDs issues the upstream
// next-id command; Feed delivers the gateway's answers.
func NewAllocator(cfg Config, requestIDs func() error, logger *slog.Logger) *Allocator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 500 * time.Millisecond
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Allocator{
		cfg:        cfg,
		logger:     logger,
		requestIDs: requestIDs,
	}
}

// NextID returns the next plain request id.
func (a *Allocator) NextID() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counter++
	return a.counter
}

// Feed delivers an upstream next-valid-id value. The first value also
// becomes the increment seed. Called by the event router.
func (a *Allocator) Feed(value int64) {
	a.waitMu.Lock()
	defer a.waitMu.Unlock()

	if !a.seeded {
		a.seed = value
		a.seeded = true
	}

	if len(a.waiters) == 0 {
		return
	}
	ch := a.waiters[0]
	a.waiters = a.waiters[1:]
	ch <- value
}

// NextOrderID returns the next valid order id under the configured
// strategy. Order ids are reconciled against the plain request sequence so
// the two never collide.
func (a *Allocator) NextOrderID(ctx context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.cfg.Strategy {
	case StrategyIncrement:
		return a.nextIncrement(ctx)
	default:
		return a.nextUpstream(ctx)
	}
}

// nextIncrement hands out ids from the local seed. Caller holds mu.
func (a *Allocator) nextIncrement(ctx context.Context) (int64, error) {
	a.waitMu.Lock()
	seeded := a.seeded
	a.waitMu.Unlock()

	if !seeded {
		// The connect-time seed has not arrived yet. Ask once and wait.
		value, err := a.waitForValue(ctx, 1)
		if err != nil {
			return 0, err
		}
		a.waitMu.Lock()
		if !a.seeded {
			a.seed = value
			a.seeded = true
		}
		a.waitMu.Unlock()
	}

	a.waitMu.Lock()
	id := a.seed
	if id <= a.counter {
		id = a.counter + 1
	}
	a.seed = id + 1
	a.waitMu.Unlock()

	a.counter = id
	return id, nil
}

// nextUpstream asks the gateway for an id, retrying per the strategy.
// Caller holds mu.
func (a *Allocator) nextUpstream(ctx context.Context) (int64, error) {
	attempts := a.cfg.MaxAttempts
	if a.cfg.Strategy == StrategyBasic {
		attempts = 1
	}

	value, err := a.waitForValue(ctx, attempts)
	if err != nil {
		return 0, err
	}

	id := value
	if id <= a.counter {
		id = a.counter + 1
	}
	a.counter = id
	return id, nil
}

// waitForValue registers a waiter, issues the upstream request, and waits
// for a value with a per-attempt deadline, re-issuing up to attempts times.
func (a *Allocator) waitForValue(ctx context.Context, attempts int) (int64, error) {
	ch := make(chan int64, 1)

	a.waitMu.Lock()
	a.waiters = append(a.waiters, ch)
	a.waitMu.Unlock()

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := a.requestIDs(); err != nil {
			a.removeWaiter(ch)
			return 0, err
		}

		timer := time.NewTimer(a.cfg.AttemptTimeout)
		select {
		case value := <-ch:
			timer.Stop()
			return value, nil
		case <-ctx.Done():
			timer.Stop()
			a.removeWaiter(ch)
			return 0, ctx.Err()
		case <-timer.C:
			if attempt < attempts {
				a.logger.Warn("next-id request went unanswered, re-issuing",
					"attempt", attempt,
					"timeout", a.cfg.AttemptTimeout,
				)
			}
		}
	}

	a.removeWaiter(ch)

	// A value may have landed between the timeout and the removal.
	select {
	case value := <-ch:
		return value, nil
	default:
	}

	return 0, ErrAllocationTimeout
}

// removeWaiter drops a waiter that gave up.
func (a *Allocator) removeWaiter(ch chan int64) {
	a.waitMu.Lock()
	defer a.waitMu.Unlock()
	for i, w := range a.waiters {
		if w == ch {
			a.waiters = append(a.waiters[:i], a.waiters[i+1:]...)
			return
		}
	}
}
