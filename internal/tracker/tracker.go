// Package tracker maps in-flight correlation ids to the context needed to
// route their eventual responses. A correlation id is associated with at
// most one pending request at a time; ids are never reused while their
// request is open.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deephaven-examples/deephaven-ib/internal/gateway"
	"github.com/deephaven-examples/deephaven-ib/internal/reqid"
	"github.com/deephaven-examples/deephaven-ib/internal/sink"
)

// Errors
var (
	ErrTimeout   = errors.New("request timed out")
	ErrCancelled = errors.New("request cancelled")
)

// Kind classifies a pending request.
type Kind string

const (
	KindMarketData        Kind = "MarketData"
	KindBarsHistorical    Kind = "BarsHistorical"
	KindBarsRealtime      Kind = "BarsRealtime"
	KindTickData          Kind = "TickData"
	KindHistoricalTicks   Kind = "HistoricalTicks"
	KindContractDetails   Kind = "ContractDetails"
	KindNewsHistorical    Kind = "NewsHistorical"
	KindNewsArticle       Kind = "NewsArticle"
	KindAccountSummary    Kind = "AccountSummary"
	KindAccountOverview   Kind = "AccountOverview"
	KindAccountPositions  Kind = "AccountPositions"
	KindAccountPnL        Kind = "AccountPnL"
	KindExecutions        Kind = "Executions"
	KindContractsMatching Kind = "ContractsMatching"
)

// State is the lifecycle state of a pending request.
type State string

const (
	StateOpen      State = "open"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateErrored   State = "errored"
)

// Result resolves a blocked caller. Err is non-nil for failure results.
type Result struct {
	Err error
}

// PendingRequest is the tracked state of an outstanding request.
type PendingRequest struct {
	ID       int64
	Kind     Kind
	Created  time.Time
	Contract gateway.ContractFields
	OrderID  int64
	State    State

	// done resolves a caller-side Wait. Closed exactly once by the first
	// terminal transition.
	done   chan struct{}
	result Result

	// abandoned marks a waiter that gave up; the result is no longer
	// retained for consumption.
	abandoned bool

	// cancelCmd builds the upstream cancellation for this id. Nil for
	// one-shot requests.
	cancelCmd func(id int64) gateway.Command
}

// Option configures an opened request.
type Option func(*PendingRequest)

// WithContract associates the request with an instrument.
func WithContract(c gateway.ContractFields) Option {
	return func(p *PendingRequest) { p.Contract = c }
}

// WithOrderID associates the request with an order.
func WithOrderID(id int64) Option {
	return func(p *PendingRequest) { p.OrderID = id }
}

// WithCancelCommand registers a builder for the upstream command that
// cancels the subscription. The id is filled in at cancel time.
func WithCancelCommand(build func(id int64) gateway.Command) Option {
	return func(p *PendingRequest) { p.cancelCmd = build }
}

// WithWaiter attaches a completion signal so a caller can Wait on the id.
func WithWaiter() Option {
	return func(p *PendingRequest) { p.done = make(chan struct{}) }
}

// Tracker owns the pending-request map. The event router is the only
// mutator of request state besides explicit caller opens and cancels.
type Tracker struct {
	alloc     *reqid.Allocator
	out       sink.Sink
	send      func(gateway.Command) error
	logger    *slog.Logger
	sessionID uuid.UUID

	mu      sync.RWMutex
	pending map[int64]*PendingRequest
	// settled holds resolved requests whose waiter has not consumed the
	// result yet. The receipt path may win the race against Wait; keyed
	// results survive until the waiter picks them up or gives up.
	settled map[int64]*PendingRequest
}

// New creates a Tracker. send forwards cancel commands upstream.
func New(alloc *reqid.Allocator, out sink.Sink, send func(gateway.Command) error, sessionID uuid.UUID, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		alloc:     alloc,
		out:       out,
		send:      send,
		logger:    logger,
		sessionID: sessionID,
		pending:   make(map[int64]*PendingRequest),
		settled:   make(map[int64]*PendingRequest),
	}
}

// Open allocates a correlation id and registers a pending request under it.
func (t *Tracker) Open(kind Kind, opts ...Option) int64 {
	id := t.alloc.NextID()
	t.OpenWithID(id, kind, opts...)
	return id
}

// OpenWithID registers a pending request under a caller-supplied id, used
// when the id was allocated elsewhere (order placement).
func (t *Tracker) OpenWithID(id int64, kind Kind, opts ...Option) {
	p := &PendingRequest{
		ID:      id,
		Kind:    kind,
		Created: time.Now(),
		State:   StateOpen,
	}
	for _, opt := range opts {
		opt(p)
	}

	t.mu.Lock()
	t.pending[id] = p
	t.mu.Unlock()

	t.audit(p, "open", "")
}

// Lookup returns the pending request for an id.
func (t *Tracker) Lookup(id int64) (*PendingRequest, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.pending[id]
	return p, ok
}

// Complete resolves an open request. Completing an id that is not open is
// a warned no-op; the gateway is known to emit duplicate terminal events.
func (t *Tracker) Complete(id int64, result Result) {
	state := StateCompleted
	if result.Err != nil {
		state = StateErrored
	}
	t.resolve(id, state, result, "complete")
}

// Cancel sends the registered upstream cancellation and stops tracking the
// id. Late events for the id are dropped by the router. Idempotent and
// safe to race with a natural completion; the first terminal transition
// wins.
func (t *Tracker) Cancel(id int64) {
	p := t.resolve(id, StateCancelled, Result{Err: ErrCancelled}, "cancel")
	if p == nil || p.cancelCmd == nil {
		return
	}
	if err := t.send(p.cancelCmd(p.ID)); err != nil {
		t.logger.Warn("failed to send cancel upstream", "req_id", id, "error", err)
	}
}

// Wait blocks until the id resolves or the context expires. The deadline
// comes from the caller; the receipt path is never the one waiting. A
// result that landed before Wait started is consumed from the settled set,
// so an errored completion is never mistaken for success.
func (t *Tracker) Wait(ctx context.Context, id int64) error {
	t.mu.Lock()
	if p, ok := t.settled[id]; ok {
		delete(t.settled, id)
		t.mu.Unlock()
		return p.result.Err
	}
	p, ok := t.pending[id]
	t.mu.Unlock()

	if !ok || p.done == nil {
		return nil
	}

	select {
	case <-p.done:
		t.mu.Lock()
		delete(t.settled, id)
		t.mu.Unlock()
		return p.result.Err
	case <-ctx.Done():
		t.mu.Lock()
		p.abandoned = true
		delete(t.settled, id)
		t.mu.Unlock()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}

// HasWaiter reports whether a caller can block on the id's completion.
func (t *Tracker) HasWaiter(id int64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.pending[id]
	return ok && p.done != nil
}

// OpenCount returns the number of currently open requests.
func (t *Tracker) OpenCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.pending)
}

// resolve performs the single terminal transition for an id. Returns the
// request if this call won the transition, nil otherwise.
func (t *Tracker) resolve(id int64, state State, result Result, action string) *PendingRequest {
	t.mu.Lock()
	p, ok := t.pending[id]
	if !ok || p.State != StateOpen {
		t.mu.Unlock()
		t.logger.Warn("terminal event for request that is not open", "req_id", id, "action", action)
		return nil
	}
	p.State = state
	p.result = result
	delete(t.pending, id)
	if p.done != nil {
		if !p.abandoned {
			t.settled[id] = p
		}
		close(p.done)
	}
	t.mu.Unlock()

	note := ""
	if result.Err != nil && !errors.Is(result.Err, ErrCancelled) {
		note = result.Err.Error()
	}
	t.audit(p, action, note)
	return p
}

// audit appends a requests-table row for every open/complete/cancel.
func (t *Tracker) audit(p *PendingRequest, action, note string) {
	t.out.Append(sink.RequestRow{
		Received:  time.Now(),
		SessionID: t.sessionID,
		ReqID:     p.ID,
		Kind:      string(p.Kind),
		Action:    action,
		Contract:  p.Contract,
		Note:      note,
	})
}
