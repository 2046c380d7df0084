// Package contract deduplicates and caches instrument definitions. Each
// resolved instrument gets a stable internal id for the life of the
// session; registering an equivalent spec twice costs one gateway round
// trip total.
package contract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/deephaven-examples/deephaven-ib/internal/gateway"
	"github.com/deephaven-examples/deephaven-ib/internal/tracker"
)

// Errors
var (
	// ErrAmbiguousContract reports multiple matching instruments; supply
	// disambiguating fields (expiry, exchange, ...) and register again.
	ErrAmbiguousContract = errors.New("contract matches multiple instruments")

	// ErrUnresolvedContract reports zero matching instruments.
	ErrUnresolvedContract = errors.New("contract matches no instrument")
)

// Spec describes an instrument to resolve. Two Specs with equal identity
// fields are the same instrument.
type Spec struct {
	Symbol          string
	SecType         string
	Exchange        string
	PrimaryExchange string
	Currency        string
	LocalSymbol     string
	Expiry          string
	Strike          float64
	Right           string
	Multiplier      string
	ConID           int64
}

// Key returns the normalized identity key derived from all identity fields.
func (s Spec) Key() string {
	return strings.Join([]string{
		strings.ToUpper(s.Symbol),
		strings.ToUpper(s.SecType),
		strings.ToUpper(s.Exchange),
		strings.ToUpper(s.PrimaryExchange),
		strings.ToUpper(s.Currency),
		strings.ToUpper(s.LocalSymbol),
		s.Expiry,
		fmt.Sprintf("%g", s.Strike),
		strings.ToUpper(s.Right),
		s.Multiplier,
		fmt.Sprintf("%d", s.ConID),
	}, "|")
}

// Fields converts the spec to gateway contract fields.
func (s Spec) Fields() gateway.ContractFields {
	return gateway.ContractFields{
		ConID:           s.ConID,
		Symbol:          s.Symbol,
		SecType:         s.SecType,
		Exchange:        s.Exchange,
		PrimaryExchange: s.PrimaryExchange,
		Currency:        s.Currency,
		LocalSymbol:     s.LocalSymbol,
		Expiry:          s.Expiry,
		Strike:          s.Strike,
		Right:           s.Right,
		Multiplier:      s.Multiplier,
	}
}

func fieldsKey(c gateway.ContractFields) string {
	return Spec{
		Symbol:          c.Symbol,
		SecType:         c.SecType,
		Exchange:        c.Exchange,
		PrimaryExchange: c.PrimaryExchange,
		Currency:        c.Currency,
		LocalSymbol:     c.LocalSymbol,
		Expiry:          c.Expiry,
		Strike:          c.Strike,
		Right:           c.Right,
		Multiplier:      c.Multiplier,
		ConID:           c.ConID,
	}.Key()
}

// RegisteredContract is the caller-visible handle for a resolved
// instrument: a session-stable internal id plus the resolved details.
type RegisteredContract struct {
	ID      int64
	Details gateway.ContractDetails
}

// resolution collects the detail events for one in-flight query.
type resolution struct {
	spec    Spec
	details []gateway.ContractDetails
}

// Config holds registry tuning.
type Config struct {
	ResolveTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{ResolveTimeout: 10 * time.Second}
}

// Registry caches resolved instruments by identity key.
type Registry struct {
	cfg     Config
	tracker *tracker.Tracker
	send    func(gateway.Command) error
	logger  *slog.Logger

	mu       sync.Mutex
	nextID   int64
	byKey    map[string]RegisteredContract
	inFlight map[int64]*resolution // req id -> resolution in progress
}

// New creates a Registry.
func New(cfg Config, trk *tracker.Tracker, send func(gateway.Command) error, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = 10 * time.Second
	}
	return &Registry{
		cfg:      cfg,
		tracker:  trk,
		send:     send,
		logger:   logger,
		byKey:    make(map[string]RegisteredContract),
		inFlight: make(map[int64]*resolution),
	}
}

// Register resolves a spec against the gateway, or returns the cached
// result. Blocks the caller (never the receipt path) up to the resolve
// timeout. Failures do not poison the cache; a later Register retries.
func (r *Registry) Register(ctx context.Context, spec Spec) (RegisteredContract, error) {
	key := spec.Key()

	r.mu.Lock()
	if rc, ok := r.byKey[key]; ok {
		r.mu.Unlock()
		return rc, nil
	}
	r.mu.Unlock()

	reqID := r.tracker.Open(tracker.KindContractDetails,
		tracker.WithContract(spec.Fields()),
		tracker.WithWaiter(),
	)

	r.mu.Lock()
	r.inFlight[reqID] = &resolution{spec: spec}
	r.mu.Unlock()

	if err := r.send(gateway.ReqContractDetails{ReqID: reqID, Contract: spec.Fields()}); err != nil {
		r.abandon(reqID)
		r.tracker.Cancel(reqID)
		return RegisteredContract{}, fmt.Errorf("request contract details: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, r.cfg.ResolveTimeout)
	defer cancel()

	if err := r.tracker.Wait(waitCtx, reqID); err != nil {
		r.abandon(reqID)
		if errors.Is(err, tracker.ErrTimeout) {
			return RegisteredContract{}, fmt.Errorf("resolve %s: %w", spec.Symbol, err)
		}
		return RegisteredContract{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.inFlight[reqID]
	if !ok {
		// Completed via AddError; the failure already surfaced above.
		return RegisteredContract{}, ErrUnresolvedContract
	}
	delete(r.inFlight, reqID)

	switch len(res.details) {
	case 0:
		return RegisteredContract{}, ErrUnresolvedContract
	case 1:
		return r.cacheLocked(key, res.details[0]), nil
	default:
		return RegisteredContract{}, fmt.Errorf("%w: %s matched %d instruments", ErrAmbiguousContract, spec.Symbol, len(res.details))
	}
}

// ResolveNonblocking requests details for an instrument discovered in
// positions, orders, or executions without blocking the caller. Already
// cached instruments are skipped.
func (r *Registry) ResolveNonblocking(c gateway.ContractFields) {
	key := fieldsKey(c)

	r.mu.Lock()
	if _, ok := r.byKey[key]; ok {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	reqID := r.tracker.Open(tracker.KindContractDetails, tracker.WithContract(c))

	r.mu.Lock()
	r.inFlight[reqID] = &resolution{spec: specFromFields(c)}
	r.mu.Unlock()

	if err := r.send(gateway.ReqContractDetails{ReqID: reqID, Contract: c}); err != nil {
		r.abandon(reqID)
		r.logger.Warn("background contract resolution failed to send", "symbol", c.Symbol, "error", err)
	}
}

// Lookup returns the cached registration for a spec without resolving.
func (r *Registry) Lookup(spec Spec) (RegisteredContract, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rc, ok := r.byKey[spec.Key()]
	return rc, ok
}

// Size returns the number of cached instruments.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byKey)
}

// AddDetails records one detail event for an in-flight resolution. Called
// by the event router.
func (r *Registry) AddDetails(reqID int64, details gateway.ContractDetails) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.inFlight[reqID]
	if !ok {
		return
	}
	res.details = append(res.details, details)
}

// Complete finishes an in-flight resolution. Unambiguous results are
// cached here; blocking callers additionally consume the resolution in
// Register to distinguish zero matches from many. Called by the event
// router on the details-end event.
func (r *Registry) Complete(reqID int64) {
	r.mu.Lock()
	if res, ok := r.inFlight[reqID]; ok {
		if len(res.details) == 1 {
			r.cacheLocked(res.spec.Key(), res.details[0])
		}
		if !r.tracker.HasWaiter(reqID) {
			delete(r.inFlight, reqID)
		}
	}
	r.mu.Unlock()

	r.tracker.Complete(reqID, tracker.Result{})
}

// AddError fails an in-flight resolution. Called by the event router when
// an error event carries the resolution's correlation id.
func (r *Registry) AddError(reqID int64, err error) {
	r.abandon(reqID)
	r.tracker.Complete(reqID, tracker.Result{Err: err})
}

// InProgress reports whether a correlation id belongs to a resolution.
func (r *Registry) InProgress(reqID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inFlight[reqID]
	return ok
}

// cacheLocked stores a resolved instrument under both the query key and
// the resolved-contract key, so either form of the identity hits. Caller
// holds mu.
func (r *Registry) cacheLocked(queryKey string, details gateway.ContractDetails) RegisteredContract {
	resolvedKey := fieldsKey(details.Contract)
	if rc, ok := r.byKey[resolvedKey]; ok {
		r.byKey[queryKey] = rc
		return rc
	}

	r.nextID++
	rc := RegisteredContract{ID: r.nextID, Details: details}
	r.byKey[queryKey] = rc
	r.byKey[resolvedKey] = rc
	return rc
}

// abandon drops an in-flight resolution without caching.
func (r *Registry) abandon(reqID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, reqID)
}

func specFromFields(c gateway.ContractFields) Spec {
	return Spec{
		Symbol:          c.Symbol,
		SecType:         c.SecType,
		Exchange:        c.Exchange,
		PrimaryExchange: c.PrimaryExchange,
		Currency:        c.Currency,
		LocalSymbol:     c.LocalSymbol,
		Expiry:          c.Expiry,
		Strike:          c.Strike,
		Right:           c.Right,
		Multiplier:      c.Multiplier,
		ConID:           c.ConID,
	}
}
