package orders

import (
	"testing"

	"github.com/deephaven-examples/deephaven-ib/internal/gateway"
)

func TestTrack_SessionOrderIsSubmitted(t *testing.T) {
	m := NewManager(nil)
	c := gateway.ContractFields{Symbol: "AAPL", SecType: "STK", Exchange: "SMART", Currency: "USD"}
	m.Track(10, c, "BUY", "LMT", 100)

	o, ok := m.Lookup(10)
	if !ok {
		t.Fatal("Lookup(10) = false after Track")
	}
	if o.State != StateSubmitted {
		t.Errorf("state = %s, want Submitted", o.State)
	}
	if o.External {
		t.Error("session-placed order marked External")
	}
	if o.Remaining != 100 {
		t.Errorf("remaining = %v, want 100", o.Remaining)
	}
}

func TestApplyStatus_Transitions(t *testing.T) {
	tests := []struct {
		status string
		want   State
	}{
		{"PendingSubmit", StateSubmitted},
		{"ApiPending", StateSubmitted},
		{"PreSubmitted", StateAcknowledged},
		{"Submitted", StateAcknowledged},
		{"PendingCancel", StateAcknowledged},
		{"Filled", StateFilled},
		{"Cancelled", StateCancelled},
		{"ApiCancelled", StateCancelled},
		{"Inactive", StateRejected},
		{"Rejected", StateRejected},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			m := NewManager(nil)
			m.Track(1, gateway.ContractFields{Symbol: "AAPL"}, "BUY", "MKT", 10)

			o := m.ApplyStatus(gateway.OrderStatus{OrderID: 1, Status: tt.status})
			if o.State != tt.want {
				t.Errorf("ApplyStatus(%s) state = %s, want %s", tt.status, o.State, tt.want)
			}
		})
	}
}

func TestApplyStatus_UnknownOrderBecomesExternal(t *testing.T) {
	m := NewManager(nil)

	o := m.ApplyStatus(gateway.OrderStatus{OrderID: 77, Status: "Submitted", Filled: 0, Remaining: 50})
	if !o.External {
		t.Error("order first seen via events must be External")
	}
	if o.State != StateAcknowledged {
		t.Errorf("state = %s, want Acknowledged", o.State)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestApplyStatus_TerminalIsSticky(t *testing.T) {
	m := NewManager(nil)
	m.Track(1, gateway.ContractFields{Symbol: "AAPL"}, "BUY", "MKT", 10)

	m.ApplyStatus(gateway.OrderStatus{OrderID: 1, Status: "Filled", Filled: 10})

	// A duplicate terminal report and a contradictory one both drop.
	o := m.ApplyStatus(gateway.OrderStatus{OrderID: 1, Status: "Filled", Filled: 10})
	if o.State != StateFilled {
		t.Errorf("state after duplicate = %s, want Filled", o.State)
	}
	o = m.ApplyStatus(gateway.OrderStatus{OrderID: 1, Status: "Cancelled"})
	if o.State != StateFilled {
		t.Errorf("state after contradictory terminal = %s, want Filled", o.State)
	}
}

func TestApplyExecution_PartialThenFull(t *testing.T) {
	m := NewManager(nil)
	c := gateway.ContractFields{Symbol: "AAPL", SecType: "STK"}
	m.Track(5, c, "BUY", "LMT", 100)

	o := m.ApplyExecution(gateway.ExecDetails{OrderID: 5, ExecID: "e1", Contract: c, Shares: 40, CumQty: 40})
	if o.State != StatePartiallyFilled {
		t.Errorf("state after partial fill = %s, want PartiallyFilled", o.State)
	}
	if o.Remaining != 60 {
		t.Errorf("remaining = %v, want 60", o.Remaining)
	}

	o = m.ApplyExecution(gateway.ExecDetails{OrderID: 5, ExecID: "e2", Contract: c, Shares: 60, CumQty: 100})
	if o.State != StateFilled {
		t.Errorf("state after full fill = %s, want Filled", o.State)
	}
	if o.Remaining != 0 {
		t.Errorf("remaining = %v, want 0", o.Remaining)
	}
}

func TestApplyOpenOrder_FillsExternalParameters(t *testing.T) {
	m := NewManager(nil)
	c := gateway.ContractFields{Symbol: "TSLA", SecType: "STK", Exchange: "SMART", Currency: "USD"}

	o := m.ApplyOpenOrder(gateway.OpenOrder{
		OrderID: 9, Contract: c, Action: "SELL", OrderType: "LMT", TotalQty: 25, Status: "Submitted",
	})
	if !o.External {
		t.Error("open order first seen via events must be External")
	}
	if o.Action != "SELL" || o.TotalQty != 25 {
		t.Errorf("order = %+v, want SELL 25", o)
	}
	if o.State != StateAcknowledged {
		t.Errorf("state = %s, want Acknowledged", o.State)
	}
}

func TestNonTerminal_ExcludesFinishedOrders(t *testing.T) {
	m := NewManager(nil)
	c := gateway.ContractFields{Symbol: "AAPL"}
	m.Track(1, c, "BUY", "MKT", 10)
	m.Track(2, c, "BUY", "MKT", 10)
	m.Track(3, c, "BUY", "MKT", 10)

	m.ApplyStatus(gateway.OrderStatus{OrderID: 2, Status: "Filled"})

	open := m.NonTerminal()
	if len(open) != 2 {
		t.Fatalf("NonTerminal() returned %d orders, want 2", len(open))
	}
	for _, o := range open {
		if o.ID == 2 {
			t.Error("filled order listed as non-terminal")
		}
	}
}

func TestMarkCancelled(t *testing.T) {
	m := NewManager(nil)
	m.Track(1, gateway.ContractFields{Symbol: "AAPL"}, "BUY", "MKT", 10)
	m.Track(2, gateway.ContractFields{Symbol: "AAPL"}, "BUY", "MKT", 10)
	m.ApplyStatus(gateway.OrderStatus{OrderID: 2, Status: "Filled"})

	if !m.MarkCancelled(1) {
		t.Error("MarkCancelled(1) = false for an open order")
	}
	if m.MarkCancelled(2) {
		t.Error("MarkCancelled(2) = true for a filled order")
	}
	if m.MarkCancelled(99) {
		t.Error("MarkCancelled(99) = true for an unknown order")
	}
}
