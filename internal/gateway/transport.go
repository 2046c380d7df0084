package gateway

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrStaleConnection = errors.New("connection stale (no ping)")
)

// Transport carries decoded commands to the gateway and decoded events back.
// A Session owns exactly one Transport; Transports are never shared.
type Transport interface {
	// Connect establishes the connection to the gateway.
	Connect(ctx context.Context) error

	// Send writes a single command. Must be safe for concurrent callers.
	Send(cmd Command) error

	// Events returns the channel of decoded inbound events. The receipt
	// path must never be blocked by slow consumers of this channel.
	Events() <-chan Received

	// Errors returns a channel of transport-level errors.
	Errors() <-chan error

	// Close tears the connection down.
	Close() error
}

// TransportConfig configures the websocket transport.
type TransportConfig struct {
	URL          string        // gateway websocket URL
	ClientID     int64         // client identity sent on connect
	WriteTimeout time.Duration // write deadline for sends
	PingTimeout  time.Duration // max time without ping before stale
	BufferSize   int           // event channel buffer size
}

// DefaultTransportConfig returns sensible defaults.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		WriteTimeout: 5 * time.Second,
		PingTimeout:  60 * time.Second,
		BufferSize:   100000,
	}
}
