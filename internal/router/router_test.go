package router

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/deephaven-examples/deephaven-ib/internal/contract"
	"github.com/deephaven-examples/deephaven-ib/internal/gateway"
	"github.com/deephaven-examples/deephaven-ib/internal/orders"
	"github.com/deephaven-examples/deephaven-ib/internal/reqid"
	"github.com/deephaven-examples/deephaven-ib/internal/sink"
	"github.com/deephaven-examples/deephaven-ib/internal/tracker"
)

type routerHarness struct {
	router   *Router
	tracker  *tracker.Tracker
	registry *contract.Registry
	orders   *orders.Manager
	alloc    *reqid.Allocator
	out      *sink.MemorySink
	input    chan gateway.Received
}

func newHarness(t *testing.T) *routerHarness {
	t.Helper()

	out := sink.NewMemorySink(16)
	send := func(gateway.Command) error { return nil }
	alloc := reqid.NewAllocator(reqid.DefaultConfig(), func() error { return nil }, nil)
	trk := tracker.New(alloc, out, send, uuid.New(), nil)
	reg := contract.New(contract.DefaultConfig(), trk, send, nil)
	om := orders.NewManager(nil)
	input := make(chan gateway.Received, 64)

	h := &routerHarness{
		router:   New(input, trk, reg, om, alloc, out, uuid.New(), nil),
		tracker:  trk,
		registry: reg,
		orders:   om,
		alloc:    alloc,
		out:      out,
		input:    input,
	}

	if err := h.router.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		h.router.Stop(ctx)
	})
	return h
}

// deliver feeds events and waits for the router to drain them. Routed,
// dropped, and unknown are counted after an event's effects land, so once
// the sum catches up every append and callback is visible.
func (h *routerHarness) deliver(t *testing.T, events ...gateway.Event) {
	t.Helper()
	settled := func() int64 {
		s := h.router.Stats()
		return s.Routed + s.Dropped + s.Unknown
	}
	want := settled() + int64(len(events))
	for _, ev := range events {
		h.input <- gateway.Received{Event: ev, ReceivedAt: time.Now()}
	}
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if settled() >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("router did not drain %d events in time", len(events))
}

func TestRoute_TickForTrackedRequest(t *testing.T) {
	h := newHarness(t)
	id := h.tracker.Open(tracker.KindMarketData)

	h.deliver(t,
		gateway.TickPrice{ReqID: id, TickType: "Bid", Price: 10.25},
		gateway.TickSize{ReqID: id, TickType: "BidSize", Size: 500},
	)

	if got := h.out.Len(sink.TableTicksPrice); got != 1 {
		t.Errorf("ticks_price rows = %d, want 1", got)
	}
	if got := h.out.Len(sink.TableTicksSize); got != 1 {
		t.Errorf("ticks_size rows = %d, want 1", got)
	}
}

func TestRoute_LateTickDropped(t *testing.T) {
	h := newHarness(t)
	id := h.tracker.Open(tracker.KindMarketData)
	h.tracker.Cancel(id)

	h.deliver(t, gateway.TickPrice{ReqID: id, TickType: "Last", Price: 9.99})

	if got := h.out.Len(sink.TableTicksPrice); got != 0 {
		t.Errorf("ticks_price rows = %d, want 0 for a cancelled subscription", got)
	}
	if s := h.router.Stats(); s.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", s.Dropped)
	}
}

func TestRoute_HistoricalBarsCompleteOnFinalBar(t *testing.T) {
	h := newHarness(t)
	id := h.tracker.Open(tracker.KindBarsHistorical)

	h.deliver(t,
		gateway.HistoricalBar{ReqID: id, Time: "20260827 15:00:00", Close: 101},
		gateway.HistoricalBar{ReqID: id, Time: "20260827 16:00:00", Close: 102, Complete: true},
	)

	if got := h.out.Len(sink.TableBarsHistorical); got != 2 {
		t.Errorf("bars_historical rows = %d, want 2", got)
	}
	if _, ok := h.tracker.Lookup(id); ok {
		t.Error("request still open after the final bar")
	}
}

func TestRoute_TickByTickVariants(t *testing.T) {
	h := newHarness(t)
	id := h.tracker.Open(tracker.KindTickData)

	h.deliver(t,
		gateway.TickByTick{ReqID: id, DataType: "Last", Price: 50, Size: 10},
		gateway.TickByTick{ReqID: id, DataType: "BidAsk", BidPrice: 49.9, AskPrice: 50.1},
		gateway.TickByTick{ReqID: id, DataType: "MidPoint", MidPoint: 50.0},
	)

	for table, want := range map[string]int{
		sink.TableTicksTrade:    1,
		sink.TableTicksBidAsk:   1,
		sink.TableTicksMidPoint: 1,
	} {
		if got := h.out.Len(table); got != want {
			t.Errorf("%s rows = %d, want %d", table, got, want)
		}
	}
}

func TestRoute_ErrorAlwaysAppendsGlobalRow(t *testing.T) {
	h := newHarness(t)
	id := h.tracker.Open(tracker.KindHistoricalTicks, tracker.WithWaiter())

	h.deliver(t,
		gateway.ErrorEvent{ReqID: 0, Code: 1100, Message: "Connectivity lost"},
		gateway.ErrorEvent{ReqID: id, Code: 162, Message: "Historical data query failed"},
	)

	if got := h.out.Len(sink.TableErrors); got != 2 {
		t.Fatalf("errors rows = %d, want 2 (correlation never suppresses the global row)", got)
	}

	// The correlated error also resolved the pending request.
	err := h.tracker.Wait(context.Background(), id)
	ue, ok := err.(gateway.UpstreamError)
	if !ok || ue.Code != 162 {
		t.Errorf("Wait() error = %v, want upstream code 162", err)
	}
}

func TestRoute_NextValidIDFeedsAllocator(t *testing.T) {
	h := newHarness(t)

	// A caller blocked on order id allocation is answered by the routed
	// next-valid-id event.
	done := make(chan int64, 1)
	go func() {
		id, err := h.alloc.NextOrderID(context.Background())
		if err != nil {
			done <- -1
			return
		}
		done <- id
	}()

	time.Sleep(10 * time.Millisecond)
	h.deliver(t, gateway.NextValidID{OrderID: 2000})

	select {
	case id := <-done:
		if id != 2000 {
			t.Errorf("NextOrderID() = %d, want 2000", id)
		}
	case <-time.After(time.Second):
		t.Fatal("NextOrderID did not observe the routed id")
	}
}

func TestRoute_OrderEventsUpdateManagerAndTables(t *testing.T) {
	h := newHarness(t)
	c := gateway.ContractFields{Symbol: "AAPL", SecType: "STK", Exchange: "SMART", Currency: "USD"}
	h.orders.Track(7, c, "BUY", "LMT", 100)

	h.deliver(t,
		gateway.OrderStatus{OrderID: 7, Status: "Submitted", Remaining: 100},
		gateway.ExecDetails{OrderID: 7, ExecID: "x1", Contract: c, Shares: 100, CumQty: 100},
		gateway.CommissionReport{ExecID: "x1", Commission: 1.25, Currency: "USD"},
	)

	o, ok := h.orders.Lookup(7)
	if !ok || o.State != orders.StateFilled {
		t.Errorf("order state = %v %s, want Filled", ok, o.State)
	}
	if got := h.out.Len(sink.TableOrdersStatus); got != 1 {
		t.Errorf("orders_status rows = %d, want 1", got)
	}
	if got := h.out.Len(sink.TableOrdersExecDetails); got != 1 {
		t.Errorf("orders_exec_details rows = %d, want 1", got)
	}
	if got := h.out.Len(sink.TableOrdersExecCommission); got != 1 {
		t.Errorf("orders_exec_commission rows = %d, want 1", got)
	}
}

func TestRoute_PositionFixesStockExchange(t *testing.T) {
	h := newHarness(t)
	id := h.tracker.Open(tracker.KindAccountPositions)

	h.deliver(t, gateway.Position{
		ReqID:    id,
		Account:  "DU12345",
		Contract: gateway.ContractFields{Symbol: "AAPL", SecType: "STK", Exchange: "NASDAQ", Currency: "USD"},
		Position: 100,
	})

	rows := h.out.Rows(sink.TableAccountsPositions)
	if len(rows) != 1 {
		t.Fatalf("accounts_positions rows = %d, want 1", len(rows))
	}
	row := rows[0].(sink.AccountPositionRow)
	if row.Contract.Exchange != "SMART" {
		t.Errorf("position exchange = %q, want SMART", row.Contract.Exchange)
	}
}

func TestRoute_ManagedAccountsDeduplicatedAndCallback(t *testing.T) {
	h := newHarness(t)

	var discovered []string
	h.router.OnManagedAccount = func(account string) {
		discovered = append(discovered, account)
	}

	h.deliver(t,
		gateway.ManagedAccounts{Accounts: []string{"DU111", "DU222"}},
		gateway.ManagedAccounts{Accounts: []string{"DU111"}},
	)

	if got := h.out.Len(sink.TableAccountsManaged); got != 2 {
		t.Errorf("accounts_managed rows = %d, want 2", got)
	}
	if len(discovered) != 2 {
		t.Errorf("callback ran for %v, want two distinct accounts", discovered)
	}
}

func TestRoute_CancelledAccountSubscriptionDropped(t *testing.T) {
	h := newHarness(t)
	id := h.tracker.Open(tracker.KindAccountPnL)

	h.deliver(t, gateway.PnL{ReqID: id, DailyPnL: 12.5})
	if got := len(h.out.Rows(sink.TableAccountsPnL)); got != 1 {
		t.Fatalf("accounts_pnl rows = %d, want 1 before cancel", got)
	}

	h.tracker.Cancel(id)

	h.deliver(t, gateway.PnL{ReqID: id, DailyPnL: 13.0})
	if got := h.out.Len(sink.TableAccountsPnL); got != 0 {
		t.Errorf("accounts_pnl rows after cancel = %d, want 0", got)
	}
	if got := h.router.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

func TestRoute_FAGroupsLandAndSubscribeSummaries(t *testing.T) {
	h := newHarness(t)

	var groups []string
	h.router.OnAccountGroup = func(group string) {
		groups = append(groups, group)
	}

	h.deliver(t, gateway.ReceiveFA{
		DataType: gateway.FAGroups,
		XML: `<ListOfGroups>
			<Group>
				<name>Growth</name>
				<ListOfAccts varName="list">
					<Account><acct>DU111</acct></Account>
					<Account><acct>DU222</acct></Account>
				</ListOfAccts>
				<defaultMethod>EqualQuantity</defaultMethod>
			</Group>
		</ListOfGroups>`,
	})

	rows := h.out.Rows(sink.TableAccountsGroups)
	if len(rows) != 2 {
		t.Fatalf("accounts_groups rows = %d, want 2", len(rows))
	}
	first := rows[0].(sink.AccountGroupRow)
	if first.GroupName != "Growth" || first.DefaultMethod != "EqualQuantity" || first.Account != "DU111" {
		t.Errorf("first group row = %+v", first)
	}
	if len(groups) != 1 || groups[0] != "Growth" {
		t.Errorf("group callback ran for %v, want [Growth]", groups)
	}
}

func TestRoute_FAAliasesLand(t *testing.T) {
	h := newHarness(t)

	h.deliver(t, gateway.ReceiveFA{
		DataType: gateway.FAAliases,
		XML: `<ListOfAccountAliases>
			<AccountAlias><account>DU111</account><alias>Alpha</alias></AccountAlias>
		</ListOfAccountAliases>`,
	})

	rows := h.out.Rows(sink.TableAccountsAliases)
	if len(rows) != 1 {
		t.Fatalf("accounts_aliases rows = %d, want 1", len(rows))
	}
	row := rows[0].(sink.AccountAliasRow)
	if row.Account != "DU111" || row.Alias != "Alpha" {
		t.Errorf("alias row = %+v", row)
	}
}

func TestRoute_SymbolSamplesCompleteSearch(t *testing.T) {
	h := newHarness(t)
	id := h.tracker.Open(tracker.KindContractsMatching, tracker.WithWaiter())

	h.deliver(t, gateway.SymbolSamples{
		ReqID: id,
		Samples: []gateway.ContractDescription{
			{Contract: gateway.ContractFields{Symbol: "AAPL", SecType: "STK"}, DerivativeSecTypes: []string{"OPT", "WAR"}},
			{Contract: gateway.ContractFields{Symbol: "APLE", SecType: "STK"}},
		},
	})

	if err := h.tracker.Wait(context.Background(), id); err != nil {
		t.Errorf("Wait() = %v, want nil after samples", err)
	}
	rows := h.out.Rows(sink.TableContractsMatching)
	if len(rows) != 2 {
		t.Fatalf("contracts_matching rows = %d, want 2", len(rows))
	}
	first := rows[0].(sink.ContractMatchRow)
	if first.Contract.Symbol != "AAPL" || first.DerivativeSecTypes != "OPT,WAR" {
		t.Errorf("first match row = %+v", first)
	}
}

func TestRoute_ExecDetailsEndCompletesRequest(t *testing.T) {
	h := newHarness(t)
	id := h.tracker.Open(tracker.KindExecutions)

	h.deliver(t, gateway.ExecDetailsEnd{ReqID: id})

	if h.tracker.OpenCount() != 0 {
		t.Errorf("OpenCount() = %d, want 0 after exec details end", h.tracker.OpenCount())
	}
}

func TestRoute_NewsArticleCompletesRequest(t *testing.T) {
	h := newHarness(t)
	id := h.tracker.Open(tracker.KindNewsArticle, tracker.WithWaiter())

	h.deliver(t, gateway.NewsArticle{ReqID: id, ArticleType: "text", ArticleText: "body"})

	if err := h.tracker.Wait(context.Background(), id); err != nil {
		t.Errorf("Wait() = %v, want nil after article delivery", err)
	}
	if got := h.out.Len(sink.TableNewsArticles); got != 1 {
		t.Errorf("news_articles rows = %d, want 1", got)
	}
}
