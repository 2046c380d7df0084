package session

import (
	"context"
	"fmt"
	"time"

	"github.com/deephaven-examples/deephaven-ib/internal/contract"
	"github.com/deephaven-examples/deephaven-ib/internal/gateway"
	"github.com/deephaven-examples/deephaven-ib/internal/tracker"
)

// MarketDataType selects live or frozen market data.
type MarketDataType int

const (
	MarketDataRealTime MarketDataType = 1
	MarketDataFrozen   MarketDataType = 2
)

// TickDataType names a tick-by-tick stream variant.
type TickDataType string

const (
	TickDataLast     TickDataType = "Last"
	TickDataBidAsk   TickDataType = "BidAsk"
	TickDataMidPoint TickDataType = "MidPoint"
)

// BarType names the value a bar series aggregates.
type BarType string

const (
	BarTrades   BarType = "TRADES"
	BarMidpoint BarType = "MIDPOINT"
	BarBid      BarType = "BID"
	BarAsk      BarType = "ASK"
)

// Duration is a gateway-formatted lookback window.
type Duration struct {
	value string
}

func DurationSeconds(n int) Duration { return Duration{fmt.Sprintf("%d S", n)} }
func DurationDays(n int) Duration    { return Duration{fmt.Sprintf("%d D", n)} }
func DurationWeeks(n int) Duration   { return Duration{fmt.Sprintf("%d W", n)} }
func DurationMonths(n int) Duration  { return Duration{fmt.Sprintf("%d M", n)} }
func DurationYears(n int) Duration   { return Duration{fmt.Sprintf("%d Y", n)} }

func (d Duration) String() string { return d.value }

// timeLayout is the gateway's timestamp wire format.
const timeLayout = "20060102 15:04:05"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// Request is a handle over an in-flight or subscribed request.
type Request struct {
	id          int64
	cancellable bool
	trk         *tracker.Tracker
}

// ID returns the correlation id assigned to the request.
func (r *Request) ID() int64 { return r.id }

// Cancel stops a subscription. One-shot requests are not cancellable.
func (r *Request) Cancel() error {
	if !r.cancellable {
		return ErrNotCancellable
	}
	r.trk.Cancel(r.id)
	return nil
}

func (s *Session) newRequest(id int64, cancellable bool) *Request {
	return &Request{id: id, cancellable: cancellable, trk: s.tracker}
}

// open registers a pending request, sends its command, and returns the handle.
// The command builder receives the assigned correlation id.
func (s *Session) open(kind tracker.Kind, cancellable bool, build func(id int64) gateway.Command, opts ...tracker.Option) (*Request, error) {
	if err := s.assertConnected(); err != nil {
		return nil, err
	}
	id := s.tracker.Open(kind, opts...)
	if err := s.transport.Send(build(id)); err != nil {
		s.tracker.Cancel(id)
		return nil, err
	}
	return s.newRequest(id, cancellable), nil
}

// SetMarketDataType switches between real-time and frozen market data.
func (s *Session) SetMarketDataType(t MarketDataType) error {
	if err := s.assertConnected(); err != nil {
		return err
	}
	return s.transport.Send(gateway.ReqMarketDataType{Type: int(t)})
}

// RegisterContract resolves an instrument description to a tradable
// contract, blocking until the gateway answers or ctx expires.
func (s *Session) RegisterContract(ctx context.Context, spec contract.Spec) (contract.RegisteredContract, error) {
	if err := s.assertConnected(); err != nil {
		return contract.RegisteredContract{}, err
	}
	return s.registry.Register(ctx, spec)
}

// RequestMarketData subscribes to top-of-book ticks for a contract.
func (s *Session) RequestMarketData(rc contract.RegisteredContract, genericTickList string, snapshot bool) (*Request, error) {
	c := rc.Details.Contract
	return s.open(tracker.KindMarketData, !snapshot,
		func(id int64) gateway.Command {
			return gateway.ReqMktData{ReqID: id, Contract: c, GenericTickList: genericTickList, Snapshot: snapshot}
		},
		tracker.WithContract(c),
		tracker.WithCancelCommand(func(id int64) gateway.Command { return gateway.CancelMktData{ReqID: id} }),
	)
}

// RequestBarsHistorical requests historical bars. A zero end time means
// "now"; keepUpToDate turns the request into a subscription.
func (s *Session) RequestBarsHistorical(rc contract.RegisteredContract, end time.Time, duration Duration, barSize string, barType BarType, keepUpToDate bool) (*Request, error) {
	c := rc.Details.Contract
	opts := []tracker.Option{tracker.WithContract(c)}
	if keepUpToDate {
		opts = append(opts, tracker.WithCancelCommand(func(id int64) gateway.Command { return gateway.CancelHistoricalData{ReqID: id} }))
	}
	return s.open(tracker.KindBarsHistorical, keepUpToDate,
		func(id int64) gateway.Command {
			return gateway.ReqHistoricalData{
				ReqID:        id,
				Contract:     c,
				End:          formatTime(end),
				Duration:     duration.String(),
				BarSize:      barSize,
				BarType:      string(barType),
				KeepUpToDate: keepUpToDate,
			}
		},
		opts...,
	)
}

// RequestBarsRealtime subscribes to streaming bars. barSize is in seconds.
func (s *Session) RequestBarsRealtime(rc contract.RegisteredContract, barType BarType, barSize int) (*Request, error) {
	c := rc.Details.Contract
	return s.open(tracker.KindBarsRealtime, true,
		func(id int64) gateway.Command {
			return gateway.ReqRealtimeBars{ReqID: id, Contract: c, BarSize: barSize, BarType: string(barType)}
		},
		tracker.WithContract(c),
		tracker.WithCancelCommand(func(id int64) gateway.Command { return gateway.CancelRealtimeBars{ReqID: id} }),
	)
}

// RequestTickDataRealtime subscribes to tick-by-tick data.
func (s *Session) RequestTickDataRealtime(rc contract.RegisteredContract, tickType TickDataType, numTicks int, ignoreSize bool) (*Request, error) {
	c := rc.Details.Contract
	return s.open(tracker.KindTickData, true,
		func(id int64) gateway.Command {
			return gateway.ReqTickByTick{ReqID: id, Contract: c, TickType: string(tickType), NumTicks: numTicks, IgnoreSize: ignoreSize}
		},
		tracker.WithContract(c),
		tracker.WithCancelCommand(func(id int64) gateway.Command { return gateway.CancelTickByTick{ReqID: id} }),
	)
}

// RequestTickDataHistorical requests a bounded range of historical ticks.
func (s *Session) RequestTickDataHistorical(rc contract.RegisteredContract, start, end time.Time, tickType TickDataType, numTicks int, ignoreSize bool) (*Request, error) {
	c := rc.Details.Contract
	// The gateway names the trade variant differently on the historical path.
	wireType := string(tickType)
	if tickType == TickDataLast {
		wireType = "Trades"
	}
	return s.open(tracker.KindHistoricalTicks, false,
		func(id int64) gateway.Command {
			return gateway.ReqHistoricalTicks{
				ReqID:      id,
				Contract:   c,
				Start:      formatTime(start),
				End:        formatTime(end),
				TickType:   wireType,
				NumTicks:   numTicks,
				IgnoreSize: ignoreSize,
			}
		},
		tracker.WithContract(c),
	)
}

// RequestNewsHistorical requests historical headlines for a contract.
func (s *Session) RequestNewsHistorical(rc contract.RegisteredContract, providerCodes string, start, end time.Time, totalResults int) (*Request, error) {
	c := rc.Details.Contract
	return s.open(tracker.KindNewsHistorical, false,
		func(id int64) gateway.Command {
			return gateway.ReqHistoricalNews{
				ReqID:         id,
				ConID:         c.ConID,
				ProviderCodes: providerCodes,
				Start:         formatTime(start),
				End:           formatTime(end),
				TotalResults:  totalResults,
			}
		},
		tracker.WithContract(c),
	)
}

// RequestNewsArticle requests the body of one news article.
func (s *Session) RequestNewsArticle(providerCode, articleID string) (*Request, error) {
	return s.open(tracker.KindNewsArticle, false,
		func(id int64) gateway.Command {
			return gateway.ReqNewsArticle{ReqID: id, ProviderCode: providerCode, ArticleID: articleID}
		},
	)
}

// RequestAccountPnL subscribes to profit-and-loss updates for an account.
func (s *Session) RequestAccountPnL(account, modelCode string) (*Request, error) {
	return s.open(tracker.KindAccountPnL, true,
		func(id int64) gateway.Command {
			return gateway.ReqPnL{ReqID: id, Account: account, ModelCode: modelCode}
		},
		tracker.WithCancelCommand(func(id int64) gateway.Command { return gateway.CancelPnL{ReqID: id} }),
	)
}

// RequestAccountOverview subscribes to account value updates.
func (s *Session) RequestAccountOverview(account, modelCode string) (*Request, error) {
	return s.open(tracker.KindAccountOverview, true,
		func(id int64) gateway.Command {
			return gateway.ReqAccountUpdates{ReqID: id, Account: account, ModelCode: modelCode}
		},
		tracker.WithCancelCommand(func(id int64) gateway.Command { return gateway.CancelAccountUpdates{ReqID: id} }),
	)
}

// RequestAccountPositions subscribes to position updates.
func (s *Session) RequestAccountPositions(account, modelCode string) (*Request, error) {
	return s.open(tracker.KindAccountPositions, true,
		func(id int64) gateway.Command {
			return gateway.ReqPositions{ReqID: id, Account: account, ModelCode: modelCode}
		},
		tracker.WithCancelCommand(func(id int64) gateway.Command { return gateway.CancelPositions{ReqID: id} }),
	)
}

// RequestContractsMatching searches instruments whose symbol matches a
// pattern. Results land in the contracts_matching table.
func (s *Session) RequestContractsMatching(pattern string) (*Request, error) {
	return s.open(tracker.KindContractsMatching, false,
		func(id int64) gateway.Command {
			return gateway.ReqMatchingSymbols{ReqID: id, Pattern: pattern}
		},
	)
}

func (s *Session) requestAccountSummary(group string) (*Request, error) {
	return s.open(tracker.KindAccountSummary, true,
		func(id int64) gateway.Command {
			return gateway.ReqAccountSummary{ReqID: id, Group: group, Tags: accountSummaryTags}
		},
		tracker.WithCancelCommand(func(id int64) gateway.Command { return gateway.CancelAccountSummary{ReqID: id} }),
	)
}

func (s *Session) requestExecutions() (*Request, error) {
	return s.open(tracker.KindExecutions, false,
		func(id int64) gateway.Command {
			return gateway.ReqExecutions{ReqID: id}
		},
	)
}

// accountSummaryTags is every summary tag the gateway publishes, plus
// per-currency ledger values.
const accountSummaryTags = "AccountType,NetLiquidation,TotalCashValue,SettledCash," +
	"AccruedCash,BuyingPower,EquityWithLoanValue,PreviousEquityWithLoanValue," +
	"GrossPositionValue,RegTEquity,RegTMargin,SMA,InitMarginReq,MaintMarginReq," +
	"AvailableFunds,ExcessLiquidity,Cushion,FullInitMarginReq,FullMaintMarginReq," +
	"FullAvailableFunds,FullExcessLiquidity,LookAheadNextChange,LookAheadInitMarginReq," +
	"LookAheadMaintMarginReq,LookAheadAvailableFunds,LookAheadExcessLiquidity," +
	"HighestSeverity,DayTradesRemaining,Leverage,$LEDGER:ALL"
