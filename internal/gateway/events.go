package gateway

import "time"

// EventKind identifies the concrete type of an inbound event.
type EventKind string

const (
	KindTickPrice          EventKind = "tick_price"
	KindTickSize           EventKind = "tick_size"
	KindTickString         EventKind = "tick_string"
	KindTickGeneric        EventKind = "tick_generic"
	KindTickByTick         EventKind = "tick_by_tick"
	KindHistoricalBar      EventKind = "historical_bar"
	KindRealtimeBar        EventKind = "realtime_bar"
	KindContractDetails    EventKind = "contract_details"
	KindContractDetailsEnd EventKind = "contract_details_end"
	KindOrderStatus        EventKind = "order_status"
	KindOpenOrder          EventKind = "open_order"
	KindCompletedOrder     EventKind = "completed_order"
	KindExecDetails        EventKind = "exec_details"
	KindExecDetailsEnd     EventKind = "exec_details_end"
	KindCommissionReport   EventKind = "commission_report"
	KindAccountValue       EventKind = "account_value"
	KindAccountSummary     EventKind = "account_summary"
	KindPosition           EventKind = "position"
	KindPnL                EventKind = "pnl"
	KindManagedAccounts    EventKind = "managed_accounts"
	KindReceiveFA          EventKind = "receive_fa"
	KindSymbolSamples      EventKind = "symbol_samples"
	KindNewsProviders      EventKind = "news_providers"
	KindNewsBulletin       EventKind = "news_bulletin"
	KindNewsArticle        EventKind = "news_article"
	KindHistoricalNews     EventKind = "historical_news"
	KindNextValidID        EventKind = "next_valid_id"
	KindError              EventKind = "error"
	KindConnectionClosed   EventKind = "connection_closed"
)

// Event is the sealed union of decoded inbound gateway events.
type Event interface {
	Kind() EventKind
}

// ContractFields is the instrument description the gateway reports on
// events that reference an instrument.
type ContractFields struct {
	ConID           int64   `json:"con_id"`
	Symbol          string  `json:"symbol"`
	SecType         string  `json:"sec_type"`
	Exchange        string  `json:"exchange"`
	PrimaryExchange string  `json:"primary_exchange,omitempty"`
	Currency        string  `json:"currency"`
	LocalSymbol     string  `json:"local_symbol,omitempty"`
	Expiry          string  `json:"expiry,omitempty"`
	Strike          float64 `json:"strike,omitempty"`
	Right           string  `json:"right,omitempty"`
	Multiplier      string  `json:"multiplier,omitempty"`
	TradingClass    string  `json:"trading_class,omitempty"`
}

// TickPrice is a price tick for a market data subscription.
type TickPrice struct {
	ReqID          int64   `json:"req_id"`
	TickType       string  `json:"tick_type"`
	Price          float64 `json:"price"`
	CanAutoExecute bool    `json:"can_auto_execute,omitempty"`
	PastLimit      bool    `json:"past_limit,omitempty"`
	PreOpen        bool    `json:"pre_open,omitempty"`
}

func (TickPrice) Kind() EventKind { return KindTickPrice }

// TickSize is a size tick for a market data subscription.
type TickSize struct {
	ReqID    int64   `json:"req_id"`
	TickType string  `json:"tick_type"`
	Size     float64 `json:"size"`
}

func (TickSize) Kind() EventKind { return KindTickSize }

// TickString is a string-valued tick for a market data subscription.
type TickString struct {
	ReqID    int64  `json:"req_id"`
	TickType string `json:"tick_type"`
	Value    string `json:"value"`
}

func (TickString) Kind() EventKind { return KindTickString }

// TickGeneric is a generic numeric tick for a market data subscription.
type TickGeneric struct {
	ReqID    int64   `json:"req_id"`
	TickType string  `json:"tick_type"`
	Value    float64 `json:"value"`
}

func (TickGeneric) Kind() EventKind { return KindTickGeneric }

// TickByTick carries tick-by-tick data, both real-time and historical.
// DataType is one of "Last", "BidAsk", "MidPoint".
type TickByTick struct {
	ReqID             int64   `json:"req_id"`
	DataType          string  `json:"data_type"`
	Timestamp         int64   `json:"ts"` // unix seconds, gateway clock
	Price             float64 `json:"price,omitempty"`
	Size              float64 `json:"size,omitempty"`
	BidPrice          float64 `json:"bid_price,omitempty"`
	AskPrice          float64 `json:"ask_price,omitempty"`
	BidSize           float64 `json:"bid_size,omitempty"`
	AskSize           float64 `json:"ask_size,omitempty"`
	MidPoint          float64 `json:"mid_point,omitempty"`
	Exchange          string  `json:"exchange,omitempty"`
	SpecialConditions string  `json:"special_conditions,omitempty"`
	PastLimit         bool    `json:"past_limit,omitempty"`
	Unreported        bool    `json:"unreported,omitempty"`
}

func (TickByTick) Kind() EventKind { return KindTickByTick }

// HistoricalBar is one bar of a historical bar query (also delivered for
// keep-up-to-date updates on the trailing bar).
type HistoricalBar struct {
	ReqID    int64   `json:"req_id"`
	Time     string  `json:"time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
	WAP      float64 `json:"wap"`
	Count    int64   `json:"count"`
	Complete bool    `json:"complete"` // final event of a one-shot query
}

func (HistoricalBar) Kind() EventKind { return KindHistoricalBar }

// RealtimeBar is one bar of a streaming real-time bar subscription.
type RealtimeBar struct {
	ReqID     int64   `json:"req_id"`
	Timestamp int64   `json:"ts"` // bar start, unix seconds
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	WAP       float64 `json:"wap"`
	Count     int64   `json:"count"`
}

func (RealtimeBar) Kind() EventKind { return KindRealtimeBar }

// ContractDetails is one resolved instrument for a contract details query.
// A query may yield several of these before ContractDetailsEnd.
type ContractDetails struct {
	ReqID          int64          `json:"req_id"`
	Contract       ContractFields `json:"contract"`
	LongName       string         `json:"long_name,omitempty"`
	MarketName     string         `json:"market_name,omitempty"`
	MinTick        float64        `json:"min_tick,omitempty"`
	OrderTypes     string         `json:"order_types,omitempty"`
	ValidExchanges string         `json:"valid_exchanges,omitempty"`
	TimeZoneID     string         `json:"time_zone_id,omitempty"`
}

func (ContractDetails) Kind() EventKind { return KindContractDetails }

// ContractDetailsEnd marks the end of a contract details query.
type ContractDetailsEnd struct {
	ReqID int64 `json:"req_id"`
}

func (ContractDetailsEnd) Kind() EventKind { return KindContractDetailsEnd }

// ContractDescription is one match of a symbol search, with the derivative
// security types available on it.
type ContractDescription struct {
	Contract           ContractFields `json:"contract"`
	DerivativeSecTypes []string       `json:"derivative_sec_types,omitempty"`
}

// SymbolSamples carries every match of a symbol search in one event.
type SymbolSamples struct {
	ReqID   int64                 `json:"req_id"`
	Samples []ContractDescription `json:"samples"`
}

func (SymbolSamples) Kind() EventKind { return KindSymbolSamples }

// OrderStatus reports the current status of an order.
type OrderStatus struct {
	OrderID       int64   `json:"order_id"`
	Status        string  `json:"status"` // Submitted, PreSubmitted, Filled, Cancelled, ...
	Filled        float64 `json:"filled"`
	Remaining     float64 `json:"remaining"`
	AvgFillPrice  float64 `json:"avg_fill_price"`
	PermID        int64   `json:"perm_id"`
	ParentID      int64   `json:"parent_id"`
	LastFillPrice float64 `json:"last_fill_price"`
	ClientID      int64   `json:"client_id"`
	WhyHeld       string  `json:"why_held,omitempty"`
}

func (OrderStatus) Kind() EventKind { return KindOrderStatus }

// OpenOrder describes an order the gateway considers open.
type OpenOrder struct {
	OrderID    int64          `json:"order_id"`
	Contract   ContractFields `json:"contract"`
	Action     string         `json:"action"`
	OrderType  string         `json:"order_type"`
	TotalQty   float64        `json:"total_qty"`
	LimitPrice float64        `json:"limit_price,omitempty"`
	AuxPrice   float64        `json:"aux_price,omitempty"`
	TIF        string         `json:"tif,omitempty"`
	Account    string         `json:"account,omitempty"`
	Status     string         `json:"status"`
}

func (OpenOrder) Kind() EventKind { return KindOpenOrder }

// CompletedOrder describes an order that has reached a terminal state.
type CompletedOrder struct {
	OrderID   int64          `json:"order_id"`
	Contract  ContractFields `json:"contract"`
	Action    string         `json:"action"`
	OrderType string         `json:"order_type"`
	TotalQty  float64        `json:"total_qty"`
	Status    string         `json:"status"`
}

func (CompletedOrder) Kind() EventKind { return KindCompletedOrder }

// ExecDetails reports an execution (fill) against an order.
type ExecDetails struct {
	ReqID     int64          `json:"req_id"`
	OrderID   int64          `json:"order_id"`
	ExecID    string         `json:"exec_id"`
	Contract  ContractFields `json:"contract"`
	Time      string         `json:"time"`
	Account   string         `json:"account"`
	Exchange  string         `json:"exchange"`
	Side      string         `json:"side"`
	Shares    float64        `json:"shares"`
	Price     float64        `json:"price"`
	CumQty    float64        `json:"cum_qty"`
	AvgPrice  float64        `json:"avg_price"`
}

func (ExecDetails) Kind() EventKind { return KindExecDetails }

// ExecDetailsEnd marks the end of an executions query.
type ExecDetailsEnd struct {
	ReqID int64 `json:"req_id"`
}

func (ExecDetailsEnd) Kind() EventKind { return KindExecDetailsEnd }

// CommissionReport reports commission for an execution.
type CommissionReport struct {
	ExecID      string  `json:"exec_id"`
	Commission  float64 `json:"commission"`
	Currency    string  `json:"currency"`
	RealizedPnL float64 `json:"realized_pnl,omitempty"`
}

func (CommissionReport) Kind() EventKind { return KindCommissionReport }

// AccountValue is one key/value pair of an account overview subscription.
type AccountValue struct {
	ReqID     int64  `json:"req_id"`
	Account   string `json:"account"`
	ModelCode string `json:"model_code,omitempty"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Currency  string `json:"currency,omitempty"`
}

func (AccountValue) Kind() EventKind { return KindAccountValue }

// AccountSummary is one tag/value pair of an account summary subscription.
type AccountSummary struct {
	ReqID    int64  `json:"req_id"`
	Account  string `json:"account"`
	Tag      string `json:"tag"`
	Value    string `json:"value"`
	Currency string `json:"currency,omitempty"`
}

func (AccountSummary) Kind() EventKind { return KindAccountSummary }

// Position reports a holding of an account.
type Position struct {
	ReqID     int64          `json:"req_id"`
	Account   string         `json:"account"`
	ModelCode string         `json:"model_code,omitempty"`
	Contract  ContractFields `json:"contract"`
	Position  float64        `json:"position"`
	AvgCost   float64        `json:"avg_cost"`
}

func (Position) Kind() EventKind { return KindPosition }

// PnL reports profit-and-loss values for a PnL subscription.
type PnL struct {
	ReqID         int64   `json:"req_id"`
	DailyPnL      float64 `json:"daily_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	RealizedPnL   float64 `json:"realized_pnl"`
}

func (PnL) Kind() EventKind { return KindPnL }

// ManagedAccounts lists the accounts managed by this login.
type ManagedAccounts struct {
	Accounts []string `json:"accounts"`
}

func (ManagedAccounts) Kind() EventKind { return KindManagedAccounts }

// Financial-advisor structure types, as sent in ReqFA and echoed back in
// ReceiveFA.
const (
	FAGroups   = 1
	FAProfiles = 2
	FAAliases  = 3
)

// ReceiveFA carries one financial-advisor structure document. The payload
// is the gateway's XML, parsed downstream.
type ReceiveFA struct {
	DataType int    `json:"data_type"`
	XML      string `json:"xml"`
}

func (ReceiveFA) Kind() EventKind { return KindReceiveFA }

// NewsProvider is one subscribed news source.
type NewsProvider struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// NewsProviders lists the news sources the login is subscribed to.
type NewsProviders struct {
	Providers []NewsProvider `json:"providers"`
}

func (NewsProviders) Kind() EventKind { return KindNewsProviders }

// NewsBulletin is a broadcast news bulletin.
type NewsBulletin struct {
	MsgID      int64  `json:"msg_id"`
	MsgType    string `json:"msg_type"`
	Message    string `json:"message"`
	OriginExch string `json:"origin_exch"`
}

func (NewsBulletin) Kind() EventKind { return KindNewsBulletin }

// NewsArticle is the body of a requested news article.
type NewsArticle struct {
	ReqID       int64  `json:"req_id"`
	ArticleType string `json:"article_type"`
	ArticleText string `json:"article_text"`
}

func (NewsArticle) Kind() EventKind { return KindNewsArticle }

// HistoricalNews is one headline of a historical news query.
type HistoricalNews struct {
	ReqID        int64  `json:"req_id"`
	Time         string `json:"time"`
	ProviderCode string `json:"provider_code"`
	ArticleID    string `json:"article_id"`
	Headline     string `json:"headline"`
	Done         bool   `json:"done"` // final event of the query
}

func (HistoricalNews) Kind() EventKind { return KindHistoricalNews }

// NextValidID supplies the next usable order id. Sent once at connect time
// and in response to each explicit id request.
type NextValidID struct {
	OrderID int64 `json:"order_id"`
}

func (NextValidID) Kind() EventKind { return KindNextValidID }

// ErrorEvent is a broker-reported error or warning. ReqID is zero when the
// error is not tied to a request.
type ErrorEvent struct {
	ReqID   int64  `json:"req_id,omitempty"`
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

func (ErrorEvent) Kind() EventKind { return KindError }

// ConnectionClosed signals that the gateway dropped the connection.
type ConnectionClosed struct {
	Reason string `json:"reason,omitempty"`
}

func (ConnectionClosed) Kind() EventKind { return KindConnectionClosed }

// Received pairs a decoded event with the local receipt timestamp captured
// when the transport read it. Row timestamps come from here, never from the
// event's own clock.
type Received struct {
	Event      Event
	ReceivedAt time.Time
}
