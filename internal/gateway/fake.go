package gateway

import (
	"context"
	"sync"
	"time"
)

// FakeTransport is an in-memory Transport with scriptable responses. It
// backs tests and lets the adapter run without a live gateway.
type FakeTransport struct {
	mu        sync.Mutex
	connected bool
	closed    bool
	sent      []Command
	handlers  map[CommandOp]func(Command) []Event
	failures  map[CommandOp]error

	events chan Received
	errs   chan error
}

// NewFakeTransport creates a FakeTransport with the given event buffer size.
func NewFakeTransport(bufferSize int) *FakeTransport {
	if bufferSize < 1 {
		bufferSize = 1024
	}
	return &FakeTransport{
		handlers: make(map[CommandOp]func(Command) []Event),
		failures: make(map[CommandOp]error),
		events:   make(chan Received, bufferSize),
		errs:     make(chan error, 1),
	}
}

// Handle registers a scripted response: every command with the given op is
// answered by emitting the returned events.
func (f *FakeTransport) Handle(op CommandOp, fn func(Command) []Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[op] = fn
}

// FailOn makes every send of the given op fail with err. A nil err clears
// the injected failure.
func (f *FakeTransport) FailOn(op CommandOp, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

// Connect marks the transport connected.
func (f *FakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrAlreadyClosed
	}
	f.connected = true
	return nil
}

// Send records the command and emits any scripted response.
func (f *FakeTransport) Send(cmd Command) error {
	f.mu.Lock()
	if !f.connected {
		f.mu.Unlock()
		return ErrNotConnected
	}
	if err := f.failures[cmd.Op()]; err != nil {
		f.mu.Unlock()
		return err
	}
	f.sent = append(f.sent, cmd)
	fn := f.handlers[cmd.Op()]
	f.mu.Unlock()

	if fn != nil {
		for _, ev := range fn(cmd) {
			f.Emit(ev)
		}
	}
	return nil
}

// Emit delivers an event as if it arrived from the gateway.
func (f *FakeTransport) Emit(ev Event) {
	select {
	case f.events <- Received{Event: ev, ReceivedAt: time.Now()}:
	default:
	}
}

// EmitError delivers a transport-level error.
func (f *FakeTransport) EmitError(err error) {
	select {
	case f.errs <- err:
	default:
	}
}

// Sent returns a snapshot of all commands sent so far.
func (f *FakeTransport) Sent() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Command, len(f.sent))
	copy(out, f.sent)
	return out
}

// SentOps returns the ops of all commands sent so far.
func (f *FakeTransport) SentOps() []CommandOp {
	f.mu.Lock()
	defer f.mu.Unlock()
	ops := make([]CommandOp, 0, len(f.sent))
	for _, cmd := range f.sent {
		ops = append(ops, cmd.Op())
	}
	return ops
}

// Events returns the event channel.
func (f *FakeTransport) Events() <-chan Received {
	return f.events
}

// Errors returns the error channel.
func (f *FakeTransport) Errors() <-chan error {
	return f.errs
}

// Close marks the transport closed.
func (f *FakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.connected = false
	return nil
}
