// Package router is the dispatch core of the adapter. It consumes decoded
// gateway events, resolves them against the request tracker, contract
// registry, and order manager, and translates them into table rows. No
// event may block the router; every append is fire-and-forget and every
// caller-side wait is signaled, never performed, here.
package router

import (
	"context"
	"encoding/xml"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deephaven-examples/deephaven-ib/internal/contract"
	"github.com/deephaven-examples/deephaven-ib/internal/gateway"
	"github.com/deephaven-examples/deephaven-ib/internal/orders"
	"github.com/deephaven-examples/deephaven-ib/internal/reqid"
	"github.com/deephaven-examples/deephaven-ib/internal/sink"
	"github.com/deephaven-examples/deephaven-ib/internal/tracker"
)

// Stats contains router counters.
type Stats struct {
	Received int64
	Routed   int64
	Dropped  int64
	Unknown  int64
}

// Router consumes decoded inbound events and fans their effects out.
type Router struct {
	logger    *slog.Logger
	sessionID uuid.UUID

	input <-chan gateway.Received

	tracker  *tracker.Tracker
	registry *contract.Registry
	orders   *orders.Manager
	alloc    *reqid.Allocator
	out      sink.Sink

	// OnManagedAccount runs for each newly discovered managed account.
	// The session uses it to auto-subscribe account data.
	OnManagedAccount func(account string)

	// OnAccountGroup runs for each financial-advisor group received. The
	// session uses it to subscribe the group's account summary.
	OnAccountGroup func(group string)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	received int64
	routed   int64
	dropped  int64
	unknown  int64
	accounts map[string]struct{}
}

// New creates a Router.
func New(
	input <-chan gateway.Received,
	trk *tracker.Tracker,
	reg *contract.Registry,
	om *orders.Manager,
	alloc *reqid.Allocator,
	out sink.Sink,
	sessionID uuid.UUID,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger:    logger,
		sessionID: sessionID,
		input:     input,
		tracker:   trk,
		registry:  reg,
		orders:    om,
		alloc:     alloc,
		out:       out,
		accounts:  make(map[string]struct{}),
	}
}

// Start begins routing events.
func (r *Router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("event router started")
	return nil
}

// Stop gracefully shuts down the router.
func (r *Router) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("event router stopped")
	case <-ctx.Done():
		r.logger.Warn("event router stop timed out")
	}
	return nil
}

// Stats returns current counters.
func (r *Router) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Received: r.received, Routed: r.routed, Dropped: r.dropped, Unknown: r.unknown}
}

func (r *Router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case rcv, ok := <-r.input:
			if !ok {
				r.logger.Info("event channel closed")
				return
			}
			r.route(rcv)
		}
	}
}

func (r *Router) count(field *int64) {
	r.mu.Lock()
	*field++
	r.mu.Unlock()
}

// route dispatches one event. The receipt timestamp on every row is
// rcv.ReceivedAt, captured at read time, never the event's own clock.
func (r *Router) route(rcv gateway.Received) {
	r.count(&r.received)
	at := rcv.ReceivedAt

	switch ev := rcv.Event.(type) {
	case gateway.TickPrice:
		if !r.known(ev.ReqID, rcv) {
			return
		}
		r.out.Append(sink.TickPriceRow{Received: at, ReqID: ev.ReqID, TickType: ev.TickType, Price: ev.Price})

	case gateway.TickSize:
		if !r.known(ev.ReqID, rcv) {
			return
		}
		r.out.Append(sink.TickSizeRow{Received: at, ReqID: ev.ReqID, TickType: ev.TickType, Size: ev.Size})

	case gateway.TickString:
		if !r.known(ev.ReqID, rcv) {
			return
		}
		r.out.Append(sink.TickStringRow{Received: at, ReqID: ev.ReqID, TickType: ev.TickType, Value: ev.Value})

	case gateway.TickGeneric:
		if !r.known(ev.ReqID, rcv) {
			return
		}
		r.out.Append(sink.TickGenericRow{Received: at, ReqID: ev.ReqID, TickType: ev.TickType, Value: ev.Value})

	case gateway.TickByTick:
		if !r.known(ev.ReqID, rcv) {
			return
		}
		r.routeTickByTick(ev, at)

	case gateway.HistoricalBar:
		if !r.known(ev.ReqID, rcv) {
			return
		}
		r.out.Append(sink.BarHistoricalRow{
			Received: at, ReqID: ev.ReqID, Time: ev.Time,
			Open: ev.Open, High: ev.High, Low: ev.Low, Close: ev.Close,
			Volume: ev.Volume, WAP: ev.WAP, Count: ev.Count,
		})
		if ev.Complete {
			r.tracker.Complete(ev.ReqID, tracker.Result{})
		}

	case gateway.RealtimeBar:
		if !r.known(ev.ReqID, rcv) {
			return
		}
		r.out.Append(sink.BarRealtimeRow{
			Received: at, ReqID: ev.ReqID, Timestamp: ev.Timestamp, EndTime: ev.Timestamp,
			Open: ev.Open, High: ev.High, Low: ev.Low, Close: ev.Close,
			Volume: ev.Volume, WAP: ev.WAP, Count: ev.Count,
		})

	case gateway.ContractDetails:
		r.out.Append(sink.ContractDetailsRow{
			Received: at, ReqID: ev.ReqID, Contract: ev.Contract,
			LongName: ev.LongName, MarketName: ev.MarketName, MinTick: ev.MinTick,
		})
		r.registry.AddDetails(ev.ReqID, ev)

	case gateway.ContractDetailsEnd:
		r.registry.Complete(ev.ReqID)

	case gateway.OrderStatus:
		r.orders.ApplyStatus(ev)
		r.out.Append(sink.OrderStatusRow{
			Received: at, OrderID: ev.OrderID, Status: ev.Status,
			Filled: ev.Filled, Remaining: ev.Remaining, AvgFillPrice: ev.AvgFillPrice,
			PermID: ev.PermID, ParentID: ev.ParentID, LastFillPrice: ev.LastFillPrice,
			ClientID: ev.ClientID, WhyHeld: ev.WhyHeld,
		})

	case gateway.OpenOrder:
		r.orders.ApplyOpenOrder(ev)
		r.out.Append(sink.OrderSubmittedRow{
			Received: at, OrderID: ev.OrderID, Contract: ev.Contract,
			Action: ev.Action, OrderType: ev.OrderType, TotalQty: ev.TotalQty,
			LimitPrice: ev.LimitPrice, Status: ev.Status,
		})
		r.registry.ResolveNonblocking(ev.Contract)

	case gateway.CompletedOrder:
		r.out.Append(sink.OrderSubmittedRow{
			Received: at, OrderID: ev.OrderID, Contract: ev.Contract,
			Action: ev.Action, OrderType: ev.OrderType, TotalQty: ev.TotalQty,
			Status: ev.Status,
		})
		r.registry.ResolveNonblocking(ev.Contract)

	case gateway.ExecDetails:
		r.orders.ApplyExecution(ev)
		r.out.Append(sink.OrderExecDetailsRow{
			Received: at, ReqID: ev.ReqID, OrderID: ev.OrderID, ExecID: ev.ExecID,
			Contract: ev.Contract, Time: ev.Time, Account: ev.Account,
			Exchange: ev.Exchange, Side: ev.Side, Shares: ev.Shares,
			Price: ev.Price, CumQty: ev.CumQty, AvgPrice: ev.AvgPrice,
		})
		r.registry.ResolveNonblocking(ev.Contract)

	case gateway.ExecDetailsEnd:
		r.tracker.Complete(ev.ReqID, tracker.Result{})

	case gateway.CommissionReport:
		r.out.Append(sink.OrderExecCommissionRow{
			Received: at, ExecID: ev.ExecID, Commission: ev.Commission,
			Currency: ev.Currency, RealizedPnL: ev.RealizedPnL,
		})

	case gateway.AccountValue:
		if !r.known(ev.ReqID, rcv) {
			return
		}
		r.out.Append(sink.AccountValueRow{
			Received: at, ReqID: ev.ReqID, Account: ev.Account, ModelCode: ev.ModelCode,
			Currency: ev.Currency, Key: ev.Key, Value: ev.Value,
		})

	case gateway.AccountSummary:
		if !r.known(ev.ReqID, rcv) {
			return
		}
		r.out.Append(sink.AccountSummaryRow{
			Received: at, ReqID: ev.ReqID, Account: ev.Account,
			Tag: ev.Tag, Value: ev.Value, Currency: ev.Currency,
		})

	case gateway.Position:
		if !r.known(ev.ReqID, rcv) {
			return
		}
		c := ev.Contract
		// The gateway reports position contracts with an exchange its own
		// resolution endpoint rejects. Stocks resolve on SMART.
		if c.SecType == "STK" {
			c.Exchange = "SMART"
		}
		r.out.Append(sink.AccountPositionRow{
			Received: at, ReqID: ev.ReqID, Account: ev.Account, ModelCode: ev.ModelCode,
			Contract: c, Position: ev.Position, AvgCost: ev.AvgCost,
		})
		r.registry.ResolveNonblocking(c)

	case gateway.PnL:
		if !r.known(ev.ReqID, rcv) {
			return
		}
		r.out.Append(sink.AccountPnLRow{
			Received: at, ReqID: ev.ReqID, DailyPnL: ev.DailyPnL,
			UnrealizedPnL: ev.UnrealizedPnL, RealizedPnL: ev.RealizedPnL,
		})

	case gateway.ManagedAccounts:
		r.routeManagedAccounts(ev, at)

	case gateway.ReceiveFA:
		r.routeFA(ev, at)

	case gateway.SymbolSamples:
		if !r.known(ev.ReqID, rcv) {
			return
		}
		for _, cd := range ev.Samples {
			r.out.Append(sink.ContractMatchRow{
				Received: at, ReqID: ev.ReqID, Contract: cd.Contract,
				DerivativeSecTypes: strings.Join(cd.DerivativeSecTypes, ","),
			})
		}
		r.tracker.Complete(ev.ReqID, tracker.Result{})

	case gateway.NewsProviders:
		for _, p := range ev.Providers {
			r.out.Append(sink.NewsProviderRow{Received: at, Code: p.Code, Name: p.Name})
		}

	case gateway.NewsBulletin:
		r.out.Append(sink.NewsBulletinRow{
			Received: at, MsgID: ev.MsgID, MsgType: ev.MsgType,
			Message: ev.Message, OriginExch: ev.OriginExch,
		})

	case gateway.NewsArticle:
		r.out.Append(sink.NewsArticleRow{
			Received: at, ReqID: ev.ReqID, ArticleType: ev.ArticleType, ArticleText: ev.ArticleText,
		})
		r.tracker.Complete(ev.ReqID, tracker.Result{})

	case gateway.HistoricalNews:
		r.out.Append(sink.NewsHistoricalRow{
			Received: at, ReqID: ev.ReqID, Time: ev.Time,
			ProviderCode: ev.ProviderCode, ArticleID: ev.ArticleID, Headline: ev.Headline,
		})
		if ev.Done {
			r.tracker.Complete(ev.ReqID, tracker.Result{})
		}

	case gateway.NextValidID:
		r.alloc.Feed(ev.OrderID)

	case gateway.ErrorEvent:
		r.routeError(ev, at)

	case gateway.ConnectionClosed:
		r.logger.Warn("gateway closed the connection", "reason", ev.Reason)

	default:
		r.count(&r.unknown)
		r.logger.Debug("unhandled event kind", "kind", rcv.Event.Kind())
		return
	}

	r.count(&r.routed)
}

func (r *Router) routeTickByTick(ev gateway.TickByTick, at time.Time) {
	switch ev.DataType {
	case "Last", "AllLast", "Trades":
		r.out.Append(sink.TickTradeRow{
			Received: at, ReqID: ev.ReqID, Timestamp: ev.Timestamp,
			Price: ev.Price, Size: ev.Size, Exchange: ev.Exchange,
			SpecialConditions: ev.SpecialConditions,
		})
	case "BidAsk":
		r.out.Append(sink.TickBidAskRow{
			Received: at, ReqID: ev.ReqID, Timestamp: ev.Timestamp,
			BidPrice: ev.BidPrice, AskPrice: ev.AskPrice,
			BidSize: ev.BidSize, AskSize: ev.AskSize,
		})
	case "MidPoint":
		r.out.Append(sink.TickMidPointRow{
			Received: at, ReqID: ev.ReqID, Timestamp: ev.Timestamp, MidPoint: ev.MidPoint,
		})
	default:
		r.logger.Warn("unrecognized tick-by-tick data type", "data_type", ev.DataType, "req_id", ev.ReqID)
	}
}

func (r *Router) routeManagedAccounts(ev gateway.ManagedAccounts, at time.Time) {
	for _, account := range ev.Accounts {
		if account == "" {
			continue
		}
		r.mu.Lock()
		_, seen := r.accounts[account]
		if !seen {
			r.accounts[account] = struct{}{}
		}
		r.mu.Unlock()
		if seen {
			continue
		}
		r.out.Append(sink.AccountManagedRow{Received: at, Account: account})
		if r.OnManagedAccount != nil {
			r.OnManagedAccount(account)
		}
	}
}

// faGroupsDoc mirrors the gateway's ListOfGroups XML.
type faGroupsDoc struct {
	XMLName xml.Name `xml:"ListOfGroups"`
	Groups  []struct {
		Name          string   `xml:"name"`
		DefaultMethod string   `xml:"defaultMethod"`
		Accounts      []string `xml:"ListOfAccts>Account>acct"`
	} `xml:"Group"`
}

// faAliasesDoc mirrors the gateway's ListOfAccountAliases XML.
type faAliasesDoc struct {
	XMLName xml.Name `xml:"ListOfAccountAliases"`
	Aliases []struct {
		Account string `xml:"account"`
		Alias   string `xml:"alias"`
	} `xml:"AccountAlias"`
}

// routeFA lands financial-advisor structure documents in their tables.
// Profile structures are never requested, so only groups and aliases are
// expected here.
func (r *Router) routeFA(ev gateway.ReceiveFA, at time.Time) {
	switch ev.DataType {
	case gateway.FAGroups:
		var doc faGroupsDoc
		if err := xml.Unmarshal([]byte(ev.XML), &doc); err != nil {
			r.logger.Warn("malformed FA groups document", "error", err)
			return
		}
		for _, g := range doc.Groups {
			for _, account := range g.Accounts {
				r.out.Append(sink.AccountGroupRow{
					Received: at, GroupName: g.Name,
					DefaultMethod: g.DefaultMethod, Account: account,
				})
			}
			if r.OnAccountGroup != nil {
				r.OnAccountGroup(g.Name)
			}
		}

	case gateway.FAAliases:
		var doc faAliasesDoc
		if err := xml.Unmarshal([]byte(ev.XML), &doc); err != nil {
			r.logger.Warn("malformed FA aliases document", "error", err)
			return
		}
		for _, a := range doc.Aliases {
			r.out.Append(sink.AccountAliasRow{Received: at, Account: a.Account, Alias: a.Alias})
		}

	default:
		r.logger.Warn("unhandled FA structure type", "data_type", ev.DataType)
	}
}

// routeError appends a global error-log row and, when a correlation id is
// present, resolves the pending call with a failure. Both always happen;
// the correlation id never suppresses the global row.
func (r *Router) routeError(ev gateway.ErrorEvent, at time.Time) {
	r.out.Append(sink.ErrorRow{
		Received:  at,
		SessionID: r.sessionID,
		ReqID:     ev.ReqID,
		Code:      ev.Code,
		Message:   ev.Message,
	})

	if ev.ReqID == 0 {
		return
	}

	err := gateway.UpstreamError{ReqID: ev.ReqID, Code: ev.Code, Message: ev.Message}
	if r.registry.InProgress(ev.ReqID) {
		r.registry.AddError(ev.ReqID, err)
		return
	}
	if _, ok := r.tracker.Lookup(ev.ReqID); ok {
		r.tracker.Complete(ev.ReqID, tracker.Result{Err: err})
	}
}

// known reports whether a correlation id is still tracked. Late events
// for cancelled or completed one-shot requests are dropped and logged.
func (r *Router) known(reqID int64, rcv gateway.Received) bool {
	if _, ok := r.tracker.Lookup(reqID); ok {
		return true
	}
	r.drop(reqID, rcv.Event.Kind())
	return false
}

func (r *Router) drop(reqID int64, kind gateway.EventKind) {
	r.count(&r.dropped)
	r.logger.Warn("late event for untracked request dropped", "req_id", reqID, "kind", kind)
}
