// Package session owns the single connection to the broker gateway and
// exposes the public request API. Each Session is independently
// constructible and disposable; nothing here is process-wide.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deephaven-examples/deephaven-ib/internal/contract"
	"github.com/deephaven-examples/deephaven-ib/internal/gateway"
	"github.com/deephaven-examples/deephaven-ib/internal/orders"
	"github.com/deephaven-examples/deephaven-ib/internal/reqid"
	"github.com/deephaven-examples/deephaven-ib/internal/router"
	"github.com/deephaven-examples/deephaven-ib/internal/sink"
	"github.com/deephaven-examples/deephaven-ib/internal/tracker"
)

// Errors
var (
	ErrNotConnected     = errors.New("session is not connected")
	ErrAlreadyConnected = errors.New("session is already connected")
	ErrReadOnlySession  = errors.New("session is read-only")
	ErrNotCancellable   = errors.New("request is not cancellable")
)

// Config holds session construction parameters.
type Config struct {
	Host     string
	Port     int
	ClientID int64

	// ReadOnly disables order placement and cancellation.
	ReadOnly bool

	// IsFA requests financial-advisor account structures at connect time.
	IsFA bool

	OrderID reqid.Config
	Resolve contract.Config

	// EventBuffer is the transport event channel size.
	EventBuffer int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:        7497,
		OrderID:     reqid.DefaultConfig(),
		Resolve:     contract.DefaultConfig(),
		EventBuffer: 100000,
	}
}

// Session bridges the gateway protocol to live tables.
type Session struct {
	cfg    Config
	id     uuid.UUID
	logger *slog.Logger

	transport gateway.Transport
	alloc     *reqid.Allocator
	tracker   *tracker.Tracker
	registry  *contract.Registry
	orders    *orders.Manager
	router    *router.Router
	out       sink.Sink

	mu         sync.RWMutex
	connected  bool
	connecting bool
	cancel     context.CancelFunc
}

// New creates a Session speaking to the gateway over a websocket.
func New(cfg Config, out sink.Sink, logger *slog.Logger) *Session {
	tcfg := gateway.DefaultTransportConfig()
	tcfg.URL = fmt.Sprintf("ws://%s:%d", cfg.Host, cfg.Port)
	tcfg.ClientID = cfg.ClientID
	if cfg.EventBuffer > 0 {
		tcfg.BufferSize = cfg.EventBuffer
	}
	return NewWithTransport(cfg, gateway.NewWebsocketTransport(tcfg, logger), out, logger)
}

// NewWithTransport creates a Session over a caller-supplied transport.
func NewWithTransport(cfg Config, transport gateway.Transport, out sink.Sink, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New()
	logger = logger.With("session_id", id.String())

	s := &Session{
		cfg:       cfg,
		id:        id,
		logger:    logger,
		transport: transport,
		out:       out,
	}

	s.alloc = reqid.NewAllocator(cfg.OrderID, func() error {
		return s.transport.Send(gateway.ReqIDs{})
	}, logger)
	s.tracker = tracker.New(s.alloc, out, s.transport.Send, id, logger)
	s.registry = contract.New(cfg.Resolve, s.tracker, s.transport.Send, logger)
	s.orders = orders.NewManager(logger)
	s.router = router.New(s.transport.Events(), s.tracker, s.registry, s.orders, s.alloc, out, id, logger)
	s.router.OnManagedAccount = s.subscribeAccount
	s.router.OnAccountGroup = s.subscribeGroup

	return s
}

// ID returns the session's unique identity.
func (s *Session) ID() uuid.UUID { return s.id }

// IsConnected reports whether the session is connected.
func (s *Session) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Connect establishes the gateway connection, starts the event router,
// and issues the connect-time subscriptions.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.connected || s.connecting {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.connecting = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.connecting = false
		s.mu.Unlock()
	}()

	if err := s.transport.Connect(ctx); err != nil {
		return fmt.Errorf("connect to gateway: %w", err)
	}

	routerCtx, cancel := context.WithCancel(context.Background())
	if err := s.router.Start(routerCtx); err != nil {
		cancel()
		s.transport.Close()
		return err
	}

	s.mu.Lock()
	s.connected = true
	s.cancel = cancel
	s.mu.Unlock()

	go s.watchTransport()

	if err := s.subscribe(); err != nil {
		s.Disconnect()
		return err
	}

	s.logger.Info("session connected", "host", s.cfg.Host, "port", s.cfg.Port, "read_only", s.cfg.ReadOnly)
	return nil
}

// Disconnect tears the session down. Idempotent.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	s.connected = false
	cancel := s.cancel
	s.mu.Unlock()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	s.router.Stop(stopCtx)
	if cancel != nil {
		cancel()
	}
	s.transport.Close()
	s.logger.Info("session disconnected")
}

// Stats returns router counters for observability.
func (s *Session) Stats() router.Stats {
	return s.router.Stats()
}

// watchTransport surfaces transport failures. Connection errors are fatal
// to the session; no reconnect is attempted.
func (s *Session) watchTransport() {
	err, ok := <-s.transport.Errors()
	if !ok || err == nil {
		return
	}
	s.logger.Error("gateway connection failed", "error", err)

	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
}

// subscribe issues the connect-time requests: the order id seed, account
// structures, executions, and news sources.
func (s *Session) subscribe() error {
	// Prime the order id seed so INCREMENT allocation never round-trips.
	if err := s.transport.Send(gateway.ReqIDs{}); err != nil {
		return err
	}
	if err := s.transport.Send(gateway.ReqManagedAccts{}); err != nil {
		return err
	}

	if s.cfg.IsFA {
		// Groups and aliases; profile structures are not requested.
		if err := s.transport.Send(gateway.ReqFA{DataType: gateway.FAGroups}); err != nil {
			return err
		}
		if err := s.transport.Send(gateway.ReqFA{DataType: gateway.FAAliases}); err != nil {
			return err
		}
		if _, err := s.RequestAccountPnL("All", ""); err != nil {
			return err
		}
	}

	if _, err := s.requestAccountSummary("All"); err != nil {
		return err
	}
	if _, err := s.RequestAccountOverview("All", ""); err != nil {
		return err
	}
	if _, err := s.RequestAccountPositions("All", ""); err != nil {
		return err
	}
	if _, err := s.requestExecutions(); err != nil {
		return err
	}

	if err := s.transport.Send(gateway.ReqNewsProviders{}); err != nil {
		return err
	}
	if err := s.transport.Send(gateway.ReqNewsBulletins{AllMsgs: true}); err != nil {
		return err
	}

	if !s.cfg.ReadOnly {
		if err := s.transport.Send(gateway.ReqCompletedOrders{APIOnly: false}); err != nil {
			return err
		}
		// Only this client id; subscribing to all clients goes stale.
		if err := s.transport.Send(gateway.ReqOpenOrders{}); err != nil {
			return err
		}
	}

	return nil
}

// subscribeAccount requests per-account data when a managed account is
// discovered. Runs on the router goroutine; failures are logged, never
// fatal.
func (s *Session) subscribeAccount(account string) {
	if _, err := s.RequestAccountPnL(account, ""); err != nil {
		s.logger.Warn("account pnl subscription failed", "account", account, "error", err)
	}
	if _, err := s.RequestAccountOverview(account, ""); err != nil {
		s.logger.Warn("account overview subscription failed", "account", account, "error", err)
	}
	if _, err := s.RequestAccountPositions(account, ""); err != nil {
		s.logger.Warn("account positions subscription failed", "account", account, "error", err)
	}
}

// subscribeGroup requests the account summary for a financial-advisor
// group discovered in the FA structures.
func (s *Session) subscribeGroup(group string) {
	if _, err := s.requestAccountSummary(group); err != nil {
		s.logger.Warn("group summary subscription failed", "group", group, "error", err)
	}
}

// assertConnected fails fast when there is no gateway connection.
func (s *Session) assertConnected() error {
	if !s.IsConnected() {
		return ErrNotConnected
	}
	return nil
}
