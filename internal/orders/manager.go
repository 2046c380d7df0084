// Package orders tracks the lifecycle of every order known to a session,
// including orders placed outside it. Transitions are driven exclusively
// by inbound status and execution events matched on order id.
package orders

import (
	"log/slog"
	"sync"
	"time"

	"github.com/deephaven-examples/deephaven-ib/internal/gateway"
)

// State is an order lifecycle state.
type State string

const (
	StateCreated         State = "Created"
	StateSubmitted       State = "Submitted"
	StateAcknowledged    State = "Acknowledged"
	StatePartiallyFilled State = "PartiallyFilled"
	StateFilled          State = "Filled"
	StateCancelled       State = "Cancelled"
	StateRejected        State = "Rejected"
)

// Terminal reports whether a state admits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateFilled, StateCancelled, StateRejected:
		return true
	}
	return false
}

// Order is the manager's view of one order.
type Order struct {
	ID        int64
	Contract  gateway.ContractFields
	Action    string
	OrderType string
	TotalQty  float64
	Filled    float64
	Remaining float64
	State     State
	Updated   time.Time

	// External marks orders first seen via gateway events, e.g. placed
	// manually in the broker's terminal.
	External bool
}

// Manager is the per-session order state machine map.
type Manager struct {
	logger *slog.Logger

	mu     sync.RWMutex
	orders map[int64]*Order
}

// NewManager creates an empty Manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger: logger,
		orders: make(map[int64]*Order),
	}
}

// Track registers an order placed by this session, in Submitted state.
func (m *Manager) Track(id int64, contract gateway.ContractFields, action, orderType string, totalQty float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[id] = &Order{
		ID:        id,
		Contract:  contract,
		Action:    action,
		OrderType: orderType,
		TotalQty:  totalQty,
		Remaining: totalQty,
		State:     StateSubmitted,
		Updated:   time.Now(),
	}
}

// Lookup returns a snapshot of the order.
func (m *Manager) Lookup(id int64) (Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// NonTerminal returns snapshots of every order that can still transition.
func (m *Manager) NonTerminal() []Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Order, 0, len(m.orders))
	for _, o := range m.orders {
		if !o.State.Terminal() {
			out = append(out, *o)
		}
	}
	return out
}

// Len returns the number of tracked orders.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders)
}

// ApplyStatus transitions an order from a status event. Unknown order ids
// get a best-effort Created record rather than failing. Duplicate terminal
// events are swallowed with a warning and do not count toward anything.
func (m *Manager) ApplyStatus(ev gateway.OrderStatus) Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := m.ensureLocked(ev.OrderID)

	next, ok := statusState(ev.Status)
	if !ok {
		m.logger.Warn("unrecognized order status", "order_id", ev.OrderID, "status", ev.Status)
		return *o
	}

	if o.State.Terminal() {
		if next != o.State {
			m.logger.Warn("status event for terminal order dropped",
				"order_id", ev.OrderID, "state", o.State, "event_status", ev.Status)
		} else {
			m.logger.Warn("duplicate terminal order status dropped", "order_id", ev.OrderID, "status", ev.Status)
		}
		return *o
	}

	o.Filled = ev.Filled
	o.Remaining = ev.Remaining
	o.State = next
	o.Updated = time.Now()
	return *o
}

// ApplyOpenOrder records the gateway's view of an open order, filling in
// parameters for orders placed outside this session.
func (m *Manager) ApplyOpenOrder(ev gateway.OpenOrder) Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := m.ensureLocked(ev.OrderID)
	o.Contract = ev.Contract
	o.Action = ev.Action
	o.OrderType = ev.OrderType
	o.TotalQty = ev.TotalQty

	if next, ok := statusState(ev.Status); ok && !o.State.Terminal() {
		o.State = next
	}
	o.Updated = time.Now()
	return *o
}

// ApplyExecution transitions an order from a fill event.
func (m *Manager) ApplyExecution(ev gateway.ExecDetails) Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := m.ensureLocked(ev.OrderID)
	if o.Contract.Symbol == "" {
		o.Contract = ev.Contract
	}

	if o.State.Terminal() {
		m.logger.Warn("execution for terminal order dropped", "order_id", ev.OrderID, "exec_id", ev.ExecID)
		return *o
	}

	o.Filled = ev.CumQty
	if o.TotalQty > 0 {
		o.Remaining = o.TotalQty - ev.CumQty
	}
	if o.TotalQty > 0 && ev.CumQty >= o.TotalQty {
		o.State = StateFilled
	} else {
		o.State = StatePartiallyFilled
	}
	o.Updated = time.Now()
	return *o
}

// MarkCancelled transitions an order to Cancelled if it is not terminal.
// Returns false when the order was already terminal.
func (m *Manager) MarkCancelled(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok || o.State.Terminal() {
		return false
	}
	o.State = StateCancelled
	o.Updated = time.Now()
	return true
}

// ensureLocked returns the order, creating a best-effort Created record
// for ids this session has never seen. Caller holds mu.
func (m *Manager) ensureLocked(id int64) *Order {
	o, ok := m.orders[id]
	if !ok {
		o = &Order{
			ID:       id,
			State:    StateCreated,
			Updated:  time.Now(),
			External: true,
		}
		m.orders[id] = o
	}
	return o
}

// statusState maps a gateway status string onto the lifecycle graph.
func statusState(status string) (State, bool) {
	switch status {
	case "PendingSubmit", "ApiPending":
		return StateSubmitted, true
	case "PreSubmitted", "Submitted":
		return StateAcknowledged, true
	case "Filled":
		return StateFilled, true
	case "Cancelled", "ApiCancelled":
		return StateCancelled, true
	case "Inactive", "Rejected":
		return StateRejected, true
	case "PendingCancel":
		return StateAcknowledged, true
	}
	return "", false
}
