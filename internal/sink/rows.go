package sink

import (
	"time"

	"github.com/google/uuid"

	"github.com/deephaven-examples/deephaven-ib/internal/gateway"
)

// Table names.
const (
	TableRequests             = "requests"
	TableErrors               = "errors"
	TableContractsDetails     = "contracts_details"
	TableContractsMatching    = "contracts_matching"
	TableAccountsManaged      = "accounts_managed"
	TableAccountsGroups       = "accounts_groups"
	TableAccountsAliases      = "accounts_aliases"
	TableAccountsValue        = "accounts_value"
	TableAccountsSummary      = "accounts_summary"
	TableAccountsPositions    = "accounts_positions"
	TableAccountsPnL          = "accounts_pnl"
	TableNewsProviders        = "news_providers"
	TableNewsBulletins        = "news_bulletins"
	TableNewsArticles         = "news_articles"
	TableNewsHistorical       = "news_historical"
	TableTicksPrice           = "ticks_price"
	TableTicksSize            = "ticks_size"
	TableTicksString          = "ticks_string"
	TableTicksGeneric         = "ticks_generic"
	TableTicksTrade           = "ticks_trade"
	TableTicksBidAsk          = "ticks_bid_ask"
	TableTicksMidPoint        = "ticks_mid_point"
	TableBarsHistorical       = "bars_historical"
	TableBarsRealtime         = "bars_realtime"
	TableOrdersSubmitted      = "orders_submitted"
	TableOrdersStatus         = "orders_status"
	TableOrdersExecDetails    = "orders_exec_details"
	TableOrdersExecCommission = "orders_exec_commission"
)

// Row is a fixed-schema record destined for a named table. Received is the
// local receipt timestamp captured when the originating event was
// translated, never the event's own reported time.
type Row interface {
	Table() string
	Columns() []string
	Values() []any
}

func contractColumns() []string {
	return []string{"con_id", "symbol", "sec_type", "exchange", "currency", "local_symbol", "expiry", "strike", "right"}
}

func contractValues(c gateway.ContractFields) []any {
	return []any{c.ConID, c.Symbol, c.SecType, c.Exchange, c.Currency, c.LocalSymbol, c.Expiry, c.Strike, c.Right}
}

// RequestRow is the audit record for every tracker open/complete/cancel.
type RequestRow struct {
	Received  time.Time
	SessionID uuid.UUID
	ReqID     int64
	Kind      string
	Action    string // open, complete, cancel
	Contract  gateway.ContractFields
	Note      string
}

func (RequestRow) Table() string { return TableRequests }

func (RequestRow) Columns() []string {
	return append([]string{"received", "session_id", "req_id", "kind", "action"}, append(contractColumns(), "note")...)
}

func (r RequestRow) Values() []any {
	return append([]any{r.Received, r.SessionID.String(), r.ReqID, r.Kind, r.Action}, append(contractValues(r.Contract), r.Note)...)
}

// ErrorRow is the global error log. Every broker-reported error appends
// exactly one of these, correlated or not.
type ErrorRow struct {
	Received  time.Time
	SessionID uuid.UUID
	ReqID     int64 // zero when uncorrelated
	Code      int64
	Message   string
}

func (ErrorRow) Table() string { return TableErrors }

func (ErrorRow) Columns() []string {
	return []string{"received", "session_id", "req_id", "code", "message"}
}

func (r ErrorRow) Values() []any {
	return []any{r.Received, r.SessionID.String(), r.ReqID, r.Code, r.Message}
}

// ContractDetailsRow records one resolved instrument.
type ContractDetailsRow struct {
	Received   time.Time
	ReqID      int64
	Contract   gateway.ContractFields
	LongName   string
	MarketName string
	MinTick    float64
}

func (ContractDetailsRow) Table() string { return TableContractsDetails }

func (ContractDetailsRow) Columns() []string {
	return append([]string{"received", "req_id"}, append(contractColumns(), "long_name", "market_name", "min_tick")...)
}

func (r ContractDetailsRow) Values() []any {
	return append([]any{r.Received, r.ReqID}, append(contractValues(r.Contract), r.LongName, r.MarketName, r.MinTick)...)
}

// ContractMatchRow is one result of a symbol search.
type ContractMatchRow struct {
	Received           time.Time
	ReqID              int64
	Contract           gateway.ContractFields
	DerivativeSecTypes string // comma-joined
}

func (ContractMatchRow) Table() string { return TableContractsMatching }

func (ContractMatchRow) Columns() []string {
	return append([]string{"received", "req_id"}, append(contractColumns(), "derivative_sec_types")...)
}

func (r ContractMatchRow) Values() []any {
	return append([]any{r.Received, r.ReqID}, append(contractValues(r.Contract), r.DerivativeSecTypes)...)
}

// AccountManagedRow records one account managed by the login.
type AccountManagedRow struct {
	Received time.Time
	Account  string
}

func (AccountManagedRow) Table() string     { return TableAccountsManaged }
func (AccountManagedRow) Columns() []string { return []string{"received", "account"} }
func (r AccountManagedRow) Values() []any   { return []any{r.Received, r.Account} }

// AccountGroupRow is one account's membership in a financial-advisor group.
type AccountGroupRow struct {
	Received      time.Time
	GroupName     string
	DefaultMethod string
	Account       string
}

func (AccountGroupRow) Table() string { return TableAccountsGroups }

func (AccountGroupRow) Columns() []string {
	return []string{"received", "group_name", "default_method", "account"}
}

func (r AccountGroupRow) Values() []any {
	return []any{r.Received, r.GroupName, r.DefaultMethod, r.Account}
}

// AccountAliasRow is one financial-advisor account alias.
type AccountAliasRow struct {
	Received time.Time
	Account  string
	Alias    string
}

func (AccountAliasRow) Table() string     { return TableAccountsAliases }
func (AccountAliasRow) Columns() []string { return []string{"received", "account", "alias"} }
func (r AccountAliasRow) Values() []any   { return []any{r.Received, r.Account, r.Alias} }

// AccountValueRow is one key/value of an account overview subscription.
type AccountValueRow struct {
	Received  time.Time
	ReqID     int64
	Account   string
	ModelCode string
	Currency  string
	Key       string
	Value     string
}

func (AccountValueRow) Table() string { return TableAccountsValue }

func (AccountValueRow) Columns() []string {
	return []string{"received", "req_id", "account", "model_code", "currency", "key", "value"}
}

func (r AccountValueRow) Values() []any {
	return []any{r.Received, r.ReqID, r.Account, r.ModelCode, r.Currency, r.Key, r.Value}
}

// AccountSummaryRow is one tag/value of an account summary subscription.
type AccountSummaryRow struct {
	Received time.Time
	ReqID    int64
	Account  string
	Tag      string
	Value    string
	Currency string
}

func (AccountSummaryRow) Table() string { return TableAccountsSummary }

func (AccountSummaryRow) Columns() []string {
	return []string{"received", "req_id", "account", "tag", "value", "currency"}
}

func (r AccountSummaryRow) Values() []any {
	return []any{r.Received, r.ReqID, r.Account, r.Tag, r.Value, r.Currency}
}

// AccountPositionRow is one holding of an account.
type AccountPositionRow struct {
	Received  time.Time
	ReqID     int64
	Account   string
	ModelCode string
	Contract  gateway.ContractFields
	Position  float64
	AvgCost   float64
}

func (AccountPositionRow) Table() string { return TableAccountsPositions }

func (AccountPositionRow) Columns() []string {
	return append([]string{"received", "req_id", "account", "model_code"}, append(contractColumns(), "position", "avg_cost")...)
}

func (r AccountPositionRow) Values() []any {
	return append([]any{r.Received, r.ReqID, r.Account, r.ModelCode}, append(contractValues(r.Contract), r.Position, r.AvgCost)...)
}

// AccountPnLRow is one PnL update.
type AccountPnLRow struct {
	Received      time.Time
	ReqID         int64
	DailyPnL      float64
	UnrealizedPnL float64
	RealizedPnL   float64
}

func (AccountPnLRow) Table() string { return TableAccountsPnL }

func (AccountPnLRow) Columns() []string {
	return []string{"received", "req_id", "daily_pnl", "unrealized_pnl", "realized_pnl"}
}

func (r AccountPnLRow) Values() []any {
	return []any{r.Received, r.ReqID, r.DailyPnL, r.UnrealizedPnL, r.RealizedPnL}
}

// NewsProviderRow is one subscribed news source.
type NewsProviderRow struct {
	Received time.Time
	Code     string
	Name     string
}

func (NewsProviderRow) Table() string     { return TableNewsProviders }
func (NewsProviderRow) Columns() []string { return []string{"received", "code", "name"} }
func (r NewsProviderRow) Values() []any   { return []any{r.Received, r.Code, r.Name} }

// NewsBulletinRow is one broadcast bulletin.
type NewsBulletinRow struct {
	Received   time.Time
	MsgID      int64
	MsgType    string
	Message    string
	OriginExch string
}

func (NewsBulletinRow) Table() string { return TableNewsBulletins }

func (NewsBulletinRow) Columns() []string {
	return []string{"received", "msg_id", "msg_type", "message", "origin_exch"}
}

func (r NewsBulletinRow) Values() []any {
	return []any{r.Received, r.MsgID, r.MsgType, r.Message, r.OriginExch}
}

// NewsArticleRow is the body of one requested article.
type NewsArticleRow struct {
	Received    time.Time
	ReqID       int64
	ArticleType string
	ArticleText string
}

func (NewsArticleRow) Table() string { return TableNewsArticles }

func (NewsArticleRow) Columns() []string {
	return []string{"received", "req_id", "article_type", "article_text"}
}

func (r NewsArticleRow) Values() []any {
	return []any{r.Received, r.ReqID, r.ArticleType, r.ArticleText}
}

// NewsHistoricalRow is one headline of a historical news query.
type NewsHistoricalRow struct {
	Received     time.Time
	ReqID        int64
	Time         string
	ProviderCode string
	ArticleID    string
	Headline     string
}

func (NewsHistoricalRow) Table() string { return TableNewsHistorical }

func (NewsHistoricalRow) Columns() []string {
	return []string{"received", "req_id", "time", "provider_code", "article_id", "headline"}
}

func (r NewsHistoricalRow) Values() []any {
	return []any{r.Received, r.ReqID, r.Time, r.ProviderCode, r.ArticleID, r.Headline}
}

// TickPriceRow is one price tick.
type TickPriceRow struct {
	Received time.Time
	ReqID    int64
	TickType string
	Price    float64
}

func (TickPriceRow) Table() string { return TableTicksPrice }

func (TickPriceRow) Columns() []string {
	return []string{"received", "req_id", "tick_type", "price"}
}

func (r TickPriceRow) Values() []any {
	return []any{r.Received, r.ReqID, r.TickType, r.Price}
}

// TickSizeRow is one size tick.
type TickSizeRow struct {
	Received time.Time
	ReqID    int64
	TickType string
	Size     float64
}

func (TickSizeRow) Table() string { return TableTicksSize }

func (TickSizeRow) Columns() []string {
	return []string{"received", "req_id", "tick_type", "size"}
}

func (r TickSizeRow) Values() []any {
	return []any{r.Received, r.ReqID, r.TickType, r.Size}
}

// TickStringRow is one string-valued tick.
type TickStringRow struct {
	Received time.Time
	ReqID    int64
	TickType string
	Value    string
}

func (TickStringRow) Table() string { return TableTicksString }

func (TickStringRow) Columns() []string {
	return []string{"received", "req_id", "tick_type", "value"}
}

func (r TickStringRow) Values() []any {
	return []any{r.Received, r.ReqID, r.TickType, r.Value}
}

// TickGenericRow is one generic numeric tick.
type TickGenericRow struct {
	Received time.Time
	ReqID    int64
	TickType string
	Value    float64
}

func (TickGenericRow) Table() string { return TableTicksGeneric }

func (TickGenericRow) Columns() []string {
	return []string{"received", "req_id", "tick_type", "value"}
}

func (r TickGenericRow) Values() []any {
	return []any{r.Received, r.ReqID, r.TickType, r.Value}
}

// TickTradeRow is one tick-by-tick trade.
type TickTradeRow struct {
	Received          time.Time
	ReqID             int64
	Timestamp         int64
	Price             float64
	Size              float64
	Exchange          string
	SpecialConditions string
}

func (TickTradeRow) Table() string { return TableTicksTrade }

func (TickTradeRow) Columns() []string {
	return []string{"received", "req_id", "ts", "price", "size", "exchange", "special_conditions"}
}

func (r TickTradeRow) Values() []any {
	return []any{r.Received, r.ReqID, r.Timestamp, r.Price, r.Size, r.Exchange, r.SpecialConditions}
}

// TickBidAskRow is one tick-by-tick bid/ask pair.
type TickBidAskRow struct {
	Received  time.Time
	ReqID     int64
	Timestamp int64
	BidPrice  float64
	AskPrice  float64
	BidSize   float64
	AskSize   float64
}

func (TickBidAskRow) Table() string { return TableTicksBidAsk }

func (TickBidAskRow) Columns() []string {
	return []string{"received", "req_id", "ts", "bid_price", "ask_price", "bid_size", "ask_size"}
}

func (r TickBidAskRow) Values() []any {
	return []any{r.Received, r.ReqID, r.Timestamp, r.BidPrice, r.AskPrice, r.BidSize, r.AskSize}
}

// TickMidPointRow is one tick-by-tick midpoint.
type TickMidPointRow struct {
	Received  time.Time
	ReqID     int64
	Timestamp int64
	MidPoint  float64
}

func (TickMidPointRow) Table() string { return TableTicksMidPoint }

func (TickMidPointRow) Columns() []string {
	return []string{"received", "req_id", "ts", "mid_point"}
}

func (r TickMidPointRow) Values() []any {
	return []any{r.Received, r.ReqID, r.Timestamp, r.MidPoint}
}

// BarHistoricalRow is one historical bar.
type BarHistoricalRow struct {
	Received time.Time
	ReqID    int64
	Time     string
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	WAP      float64
	Count    int64
}

func (BarHistoricalRow) Table() string { return TableBarsHistorical }

func (BarHistoricalRow) Columns() []string {
	return []string{"received", "req_id", "time", "open", "high", "low", "close", "volume", "wap", "count"}
}

func (r BarHistoricalRow) Values() []any {
	return []any{r.Received, r.ReqID, r.Time, r.Open, r.High, r.Low, r.Close, r.Volume, r.WAP, r.Count}
}

// BarRealtimeRow is one streaming bar.
type BarRealtimeRow struct {
	Received  time.Time
	ReqID     int64
	Timestamp int64
	EndTime   int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	WAP       float64
	Count     int64
}

func (BarRealtimeRow) Table() string { return TableBarsRealtime }

func (BarRealtimeRow) Columns() []string {
	return []string{"received", "req_id", "ts", "end_time", "open", "high", "low", "close", "volume", "wap", "count"}
}

func (r BarRealtimeRow) Values() []any {
	return []any{r.Received, r.ReqID, r.Timestamp, r.EndTime, r.Open, r.High, r.Low, r.Close, r.Volume, r.WAP, r.Count}
}

// OrderSubmittedRow records an open or completed order report.
type OrderSubmittedRow struct {
	Received   time.Time
	OrderID    int64
	Contract   gateway.ContractFields
	Action     string
	OrderType  string
	TotalQty   float64
	LimitPrice float64
	Status     string
}

func (OrderSubmittedRow) Table() string { return TableOrdersSubmitted }

func (OrderSubmittedRow) Columns() []string {
	return append([]string{"received", "order_id"}, append(contractColumns(), "action", "order_type", "total_qty", "limit_price", "status")...)
}

func (r OrderSubmittedRow) Values() []any {
	return append([]any{r.Received, r.OrderID}, append(contractValues(r.Contract), r.Action, r.OrderType, r.TotalQty, r.LimitPrice, r.Status)...)
}

// OrderStatusRow records an order status report.
type OrderStatusRow struct {
	Received      time.Time
	OrderID       int64
	Status        string
	Filled        float64
	Remaining     float64
	AvgFillPrice  float64
	PermID        int64
	ParentID      int64
	LastFillPrice float64
	ClientID      int64
	WhyHeld       string
}

func (OrderStatusRow) Table() string { return TableOrdersStatus }

func (OrderStatusRow) Columns() []string {
	return []string{"received", "order_id", "status", "filled", "remaining", "avg_fill_price", "perm_id", "parent_id", "last_fill_price", "client_id", "why_held"}
}

func (r OrderStatusRow) Values() []any {
	return []any{r.Received, r.OrderID, r.Status, r.Filled, r.Remaining, r.AvgFillPrice, r.PermID, r.ParentID, r.LastFillPrice, r.ClientID, r.WhyHeld}
}

// OrderExecDetailsRow records one execution.
type OrderExecDetailsRow struct {
	Received time.Time
	ReqID    int64
	OrderID  int64
	ExecID   string
	Contract gateway.ContractFields
	Time     string
	Account  string
	Exchange string
	Side     string
	Shares   float64
	Price    float64
	CumQty   float64
	AvgPrice float64
}

func (OrderExecDetailsRow) Table() string { return TableOrdersExecDetails }

func (OrderExecDetailsRow) Columns() []string {
	return append([]string{"received", "req_id", "order_id", "exec_id"}, append(contractColumns(), "time", "account", "execution_exchange", "side", "shares", "price", "cum_qty", "avg_price")...)
}

func (r OrderExecDetailsRow) Values() []any {
	return append([]any{r.Received, r.ReqID, r.OrderID, r.ExecID}, append(contractValues(r.Contract), r.Time, r.Account, r.Exchange, r.Side, r.Shares, r.Price, r.CumQty, r.AvgPrice)...)
}

// OrderExecCommissionRow records commission for one execution.
type OrderExecCommissionRow struct {
	Received    time.Time
	ExecID      string
	Commission  float64
	Currency    string
	RealizedPnL float64
}

func (OrderExecCommissionRow) Table() string { return TableOrdersExecCommission }

func (OrderExecCommissionRow) Columns() []string {
	return []string{"received", "exec_id", "commission", "currency", "realized_pnl"}
}

func (r OrderExecCommissionRow) Values() []any {
	return []any{r.Received, r.ExecID, r.Commission, r.Currency, r.RealizedPnL}
}
