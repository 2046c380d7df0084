package session

import (
	"context"
	"fmt"
	"time"

	"github.com/deephaven-examples/deephaven-ib/internal/contract"
	"github.com/deephaven-examples/deephaven-ib/internal/gateway"
	"github.com/deephaven-examples/deephaven-ib/internal/sink"
)

// OrderSpec describes an order to place.
type OrderSpec struct {
	Action     string // BUY, SELL
	OrderType  string // MKT, LMT, STP, ...
	TotalQty   float64
	LimitPrice float64
	AuxPrice   float64
	TIF        string
	Account    string
}

// OrderHandle identifies a placed order and allows cancelling it.
type OrderHandle struct {
	id int64
	s  *Session
}

// ID returns the order id.
func (h *OrderHandle) ID() int64 { return h.id }

// Cancel requests cancellation of the order.
func (h *OrderHandle) Cancel() error {
	return h.s.OrderCancel(h.id)
}

// OrderPlace submits an order for a registered contract. Fails before any
// upstream traffic when the session is read-only.
func (s *Session) OrderPlace(ctx context.Context, rc contract.RegisteredContract, spec OrderSpec) (*OrderHandle, error) {
	if s.cfg.ReadOnly {
		return nil, ErrReadOnlySession
	}
	if err := s.assertConnected(); err != nil {
		return nil, err
	}

	id, err := s.alloc.NextOrderID(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate order id: %w", err)
	}

	c := rc.Details.Contract
	s.orders.Track(id, c, spec.Action, spec.OrderType, spec.TotalQty)

	cmd := gateway.PlaceOrder{
		OrderID:    id,
		Contract:   c,
		Action:     spec.Action,
		OrderType:  spec.OrderType,
		TotalQty:   spec.TotalQty,
		LimitPrice: spec.LimitPrice,
		AuxPrice:   spec.AuxPrice,
		TIF:        spec.TIF,
		Account:    spec.Account,
	}
	if err := s.transport.Send(cmd); err != nil {
		s.orders.MarkCancelled(id)
		return nil, err
	}

	s.out.Append(sink.OrderSubmittedRow{
		Received:   time.Now(),
		OrderID:    id,
		Contract:   c,
		Action:     spec.Action,
		OrderType:  spec.OrderType,
		TotalQty:   spec.TotalQty,
		LimitPrice: spec.LimitPrice,
		Status:     "Submitted",
	})

	s.logger.Info("order placed", "order_id", id, "action", spec.Action, "order_type", spec.OrderType, "qty", spec.TotalQty)
	return &OrderHandle{id: id, s: s}, nil
}

// OrderCancel requests cancellation of a single order.
func (s *Session) OrderCancel(orderID int64) error {
	if s.cfg.ReadOnly {
		return ErrReadOnlySession
	}
	if err := s.assertConnected(); err != nil {
		return err
	}
	return s.transport.Send(gateway.CancelOrder{OrderID: orderID})
}

// CancelResult reports the outcome of one cancellation attempt.
type CancelResult struct {
	OrderID int64
	Err     error
}

// OrderCancelAll issues an individual cancellation for every known
// non-terminal order. Terminal orders are left untouched.
func (s *Session) OrderCancelAll() ([]CancelResult, error) {
	if s.cfg.ReadOnly {
		return nil, ErrReadOnlySession
	}
	if err := s.assertConnected(); err != nil {
		return nil, err
	}

	open := s.orders.NonTerminal()
	results := make([]CancelResult, 0, len(open))
	for _, o := range open {
		err := s.transport.Send(gateway.CancelOrder{OrderID: o.ID})
		if err != nil {
			s.logger.Warn("failed to cancel order", "order_id", o.ID, "error", err)
		}
		results = append(results, CancelResult{OrderID: o.ID, Err: err})
	}
	return results, nil
}
