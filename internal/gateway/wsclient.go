package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// envelope is the JSON frame exchanged with the gateway process: a type tag
// plus the encoded event or command payload.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// eventDecoders maps a frame type tag to a decoder for the matching event.
var eventDecoders = map[EventKind]func(json.RawMessage) (Event, error){
	KindTickPrice:          decodeInto[TickPrice],
	KindTickSize:           decodeInto[TickSize],
	KindTickString:         decodeInto[TickString],
	KindTickGeneric:        decodeInto[TickGeneric],
	KindTickByTick:         decodeInto[TickByTick],
	KindHistoricalBar:      decodeInto[HistoricalBar],
	KindRealtimeBar:        decodeInto[RealtimeBar],
	KindContractDetails:    decodeInto[ContractDetails],
	KindContractDetailsEnd: decodeInto[ContractDetailsEnd],
	KindOrderStatus:        decodeInto[OrderStatus],
	KindOpenOrder:          decodeInto[OpenOrder],
	KindCompletedOrder:     decodeInto[CompletedOrder],
	KindExecDetails:        decodeInto[ExecDetails],
	KindExecDetailsEnd:     decodeInto[ExecDetailsEnd],
	KindCommissionReport:   decodeInto[CommissionReport],
	KindAccountValue:       decodeInto[AccountValue],
	KindAccountSummary:     decodeInto[AccountSummary],
	KindPosition:           decodeInto[Position],
	KindPnL:                decodeInto[PnL],
	KindManagedAccounts:    decodeInto[ManagedAccounts],
	KindReceiveFA:          decodeInto[ReceiveFA],
	KindSymbolSamples:      decodeInto[SymbolSamples],
	KindNewsProviders:      decodeInto[NewsProviders],
	KindNewsBulletin:       decodeInto[NewsBulletin],
	KindNewsArticle:        decodeInto[NewsArticle],
	KindHistoricalNews:     decodeInto[HistoricalNews],
	KindNextValidID:        decodeInto[NextValidID],
	KindError:              decodeInto[ErrorEvent],
	KindConnectionClosed:   decodeInto[ConnectionClosed],
}

func decodeInto[T Event](raw json.RawMessage) (Event, error) {
	var ev T
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// wsTransport is a Transport speaking JSON envelopes over a websocket.
type wsTransport struct {
	cfg    TransportConfig
	logger *slog.Logger

	conn *websocket.Conn

	events chan Received
	errs   chan error
	done   chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// State
	mu         sync.RWMutex
	connected  bool
	closed     bool
	lastPingAt time.Time
}

// NewWebsocketTransport creates a websocket-backed Transport.
func NewWebsocketTransport(cfg TransportConfig, logger *slog.Logger) Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &wsTransport{
		cfg:    cfg,
		logger: logger,
		events: make(chan Received, cfg.BufferSize),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

// Connect dials the gateway and starts the read and heartbeat loops.
func (t *wsTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrAlreadyClosed
	}
	t.mu.Unlock()

	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set("X-Client-Id", strconv.FormatInt(t.cfg.ClientID, 10))

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, t.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.connected = true
	t.lastPingAt = time.Now()
	t.mu.Unlock()

	conn.SetPingHandler(func(data string) error {
		t.mu.Lock()
		t.lastPingAt = time.Now()
		t.mu.Unlock()

		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	conn.SetPongHandler(func(string) error {
		t.mu.Lock()
		t.lastPingAt = time.Now()
		t.mu.Unlock()
		return nil
	})

	go t.readLoop()
	go t.heartbeatLoop()

	t.logger.Debug("gateway transport connected", "url", t.cfg.URL, "client_id", t.cfg.ClientID)

	return nil
}

// Close tears down the connection.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.connected = false
	t.mu.Unlock()

	close(t.done)

	if t.conn != nil {
		t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return t.conn.Close()
	}

	return nil
}

// Send encodes and writes a single command frame.
func (t *wsTransport) Send(cmd Command) error {
	t.mu.RLock()
	if !t.connected {
		t.mu.RUnlock()
		return ErrNotConnected
	}
	t.mu.RUnlock()

	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode command %s: %w", cmd.Op(), err)
	}
	frame, err := json.Marshal(envelope{Type: string(cmd.Op()), Payload: payload})
	if err != nil {
		return fmt.Errorf("encode envelope %s: %w", cmd.Op(), err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, frame)
}

// Events returns the decoded event channel.
func (t *wsTransport) Events() <-chan Received {
	return t.events
}

// Errors returns the transport error channel.
func (t *wsTransport) Errors() <-chan error {
	return t.errs
}

// readLoop reads frames, decodes them, and delivers events without ever
// blocking on a slow consumer.
func (t *wsTransport) readLoop() {
	defer func() {
		t.mu.Lock()
		t.connected = false
		t.mu.Unlock()
	}()

	for {
		select {
		case <-t.done:
			return
		default:
		}

		_, data, err := t.conn.ReadMessage()
		receivedAt := time.Now() // capture before decoding

		if err != nil {
			select {
			case <-t.done:
				return
			default:
				select {
				case t.errs <- err:
				default:
				}
				return
			}
		}

		ev, err := decodeFrame(data)
		if err != nil {
			t.logger.Warn("failed to decode gateway frame", "error", err)
			continue
		}

		select {
		case t.events <- Received{Event: ev, ReceivedAt: receivedAt}:
		case <-t.done:
			return
		default:
			t.logger.Warn("event buffer full, dropping event", "kind", ev.Kind())
		}
	}
}

func decodeFrame(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	decode, ok := eventDecoders[EventKind(env.Type)]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
	return decode(env.Payload)
}

// heartbeatLoop sends keepalive pings and flags stale connections.
func (t *wsTransport) heartbeatLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.mu.RLock()
			conn := t.conn
			lastPing := t.lastPingAt
			t.mu.RUnlock()

			if conn != nil {
				deadline := time.Now().Add(t.cfg.WriteTimeout)
				if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
					t.logger.Debug("failed to send ping", "error", err)
				}
			}

			if time.Since(lastPing) > t.cfg.PingTimeout {
				t.logger.Warn("no ping received, connection stale",
					"last_ping", lastPing,
					"timeout", t.cfg.PingTimeout,
				)
				select {
				case t.errs <- ErrStaleConnection:
				default:
				}
				return
			}
		}
	}
}
