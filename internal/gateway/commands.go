package gateway

// CommandOp identifies the concrete type of an outbound command.
type CommandOp string

const (
	OpReqIDs               CommandOp = "req_ids"
	OpReqMarketDataType    CommandOp = "req_market_data_type"
	OpReqMktData           CommandOp = "req_mkt_data"
	OpCancelMktData        CommandOp = "cancel_mkt_data"
	OpReqHistoricalData    CommandOp = "req_historical_data"
	OpCancelHistoricalData CommandOp = "cancel_historical_data"
	OpReqRealtimeBars      CommandOp = "req_realtime_bars"
	OpCancelRealtimeBars   CommandOp = "cancel_realtime_bars"
	OpReqTickByTick        CommandOp = "req_tick_by_tick"
	OpCancelTickByTick     CommandOp = "cancel_tick_by_tick"
	OpReqHistoricalTicks   CommandOp = "req_historical_ticks"
	OpReqContractDetails   CommandOp = "req_contract_details"
	OpReqHistoricalNews    CommandOp = "req_historical_news"
	OpReqNewsArticle       CommandOp = "req_news_article"
	OpReqNewsProviders     CommandOp = "req_news_providers"
	OpReqNewsBulletins     CommandOp = "req_news_bulletins"
	OpReqManagedAccts      CommandOp = "req_managed_accts"
	OpReqAccountSummary    CommandOp = "req_account_summary"
	OpCancelAccountSummary CommandOp = "cancel_account_summary"
	OpReqAccountUpdates    CommandOp = "req_account_updates"
	OpCancelAccountUpdates CommandOp = "cancel_account_updates"
	OpReqPositions         CommandOp = "req_positions"
	OpCancelPositions      CommandOp = "cancel_positions"
	OpReqPnL               CommandOp = "req_pnl"
	OpCancelPnL            CommandOp = "cancel_pnl"
	OpReqMatchingSymbols   CommandOp = "req_matching_symbols"
	OpReqFA                CommandOp = "req_fa"
	OpReqExecutions        CommandOp = "req_executions"
	OpReqOpenOrders        CommandOp = "req_open_orders"
	OpReqCompletedOrders   CommandOp = "req_completed_orders"
	OpPlaceOrder           CommandOp = "place_order"
	OpCancelOrder          CommandOp = "cancel_order"
	OpGlobalCancel         CommandOp = "global_cancel"
)

// Command is the sealed union of decoded outbound gateway commands.
type Command interface {
	Op() CommandOp
}

// ReqIDs asks the gateway for the next valid order id. The gateway answers
// with a NextValidID event, though it is known to drop this request
// occasionally.
type ReqIDs struct{}

func (ReqIDs) Op() CommandOp { return OpReqIDs }

// ReqMarketDataType selects real-time or frozen market data.
type ReqMarketDataType struct {
	Type int `json:"type"` // 1 real-time, 2 frozen
}

func (ReqMarketDataType) Op() CommandOp { return OpReqMarketDataType }

// ReqMktData subscribes to top-of-book market data ticks.
type ReqMktData struct {
	ReqID           int64          `json:"req_id"`
	Contract        ContractFields `json:"contract"`
	GenericTickList string         `json:"generic_tick_list,omitempty"`
	Snapshot        bool           `json:"snapshot,omitempty"`
}

func (ReqMktData) Op() CommandOp { return OpReqMktData }

// CancelMktData cancels a market data subscription.
type CancelMktData struct {
	ReqID int64 `json:"req_id"`
}

func (CancelMktData) Op() CommandOp { return OpCancelMktData }

// ReqHistoricalData requests historical bars, optionally kept up to date.
type ReqHistoricalData struct {
	ReqID        int64          `json:"req_id"`
	Contract     ContractFields `json:"contract"`
	End          string         `json:"end,omitempty"`
	Duration     string         `json:"duration"`
	BarSize      string         `json:"bar_size"`
	BarType      string         `json:"bar_type"`
	UseRTH       bool           `json:"use_rth"`
	KeepUpToDate bool           `json:"keep_up_to_date"`
}

func (ReqHistoricalData) Op() CommandOp { return OpReqHistoricalData }

// CancelHistoricalData cancels a keep-up-to-date historical bar request.
type CancelHistoricalData struct {
	ReqID int64 `json:"req_id"`
}

func (CancelHistoricalData) Op() CommandOp { return OpCancelHistoricalData }

// ReqRealtimeBars subscribes to streaming bars.
type ReqRealtimeBars struct {
	ReqID    int64          `json:"req_id"`
	Contract ContractFields `json:"contract"`
	BarSize  int            `json:"bar_size"` // seconds
	BarType  string         `json:"bar_type"`
	UseRTH   bool           `json:"use_rth"`
}

func (ReqRealtimeBars) Op() CommandOp { return OpReqRealtimeBars }

// CancelRealtimeBars cancels a streaming bar subscription.
type CancelRealtimeBars struct {
	ReqID int64 `json:"req_id"`
}

func (CancelRealtimeBars) Op() CommandOp { return OpCancelRealtimeBars }

// ReqTickByTick subscribes to tick-by-tick data.
type ReqTickByTick struct {
	ReqID      int64          `json:"req_id"`
	Contract   ContractFields `json:"contract"`
	TickType   string         `json:"tick_type"` // Last, BidAsk, MidPoint
	NumTicks   int            `json:"num_ticks,omitempty"`
	IgnoreSize bool           `json:"ignore_size,omitempty"`
}

func (ReqTickByTick) Op() CommandOp { return OpReqTickByTick }

// CancelTickByTick cancels a tick-by-tick subscription.
type CancelTickByTick struct {
	ReqID int64 `json:"req_id"`
}

func (CancelTickByTick) Op() CommandOp { return OpCancelTickByTick }

// ReqHistoricalTicks requests a bounded range of historical ticks.
type ReqHistoricalTicks struct {
	ReqID      int64          `json:"req_id"`
	Contract   ContractFields `json:"contract"`
	Start      string         `json:"start"`
	End        string         `json:"end"`
	TickType   string         `json:"tick_type"` // Trades, BidAsk, MidPoint
	NumTicks   int            `json:"num_ticks"`
	UseRTH     bool           `json:"use_rth"`
	IgnoreSize bool           `json:"ignore_size,omitempty"`
}

func (ReqHistoricalTicks) Op() CommandOp { return OpReqHistoricalTicks }

// ReqContractDetails asks the gateway to resolve an instrument description.
type ReqContractDetails struct {
	ReqID    int64          `json:"req_id"`
	Contract ContractFields `json:"contract"`
}

func (ReqContractDetails) Op() CommandOp { return OpReqContractDetails }

// ReqHistoricalNews requests historical headlines for an instrument.
type ReqHistoricalNews struct {
	ReqID         int64  `json:"req_id"`
	ConID         int64  `json:"con_id"`
	ProviderCodes string `json:"provider_codes"`
	Start         string `json:"start"`
	End           string `json:"end"`
	TotalResults  int    `json:"total_results"`
}

func (ReqHistoricalNews) Op() CommandOp { return OpReqHistoricalNews }

// ReqNewsArticle requests the body of one article.
type ReqNewsArticle struct {
	ReqID        int64  `json:"req_id"`
	ProviderCode string `json:"provider_code"`
	ArticleID    string `json:"article_id"`
}

func (ReqNewsArticle) Op() CommandOp { return OpReqNewsArticle }

// ReqNewsProviders requests the list of subscribed news sources.
type ReqNewsProviders struct{}

func (ReqNewsProviders) Op() CommandOp { return OpReqNewsProviders }

// ReqNewsBulletins subscribes to news bulletins.
type ReqNewsBulletins struct {
	AllMsgs bool `json:"all_msgs"`
}

func (ReqNewsBulletins) Op() CommandOp { return OpReqNewsBulletins }

// ReqManagedAccts requests the managed account list.
type ReqManagedAccts struct{}

func (ReqManagedAccts) Op() CommandOp { return OpReqManagedAccts }

// ReqAccountSummary subscribes to account summary tags for a group.
type ReqAccountSummary struct {
	ReqID int64  `json:"req_id"`
	Group string `json:"group"`
	Tags  string `json:"tags"`
}

func (ReqAccountSummary) Op() CommandOp { return OpReqAccountSummary }

// CancelAccountSummary stops an account summary subscription.
type CancelAccountSummary struct {
	ReqID int64 `json:"req_id"`
}

func (CancelAccountSummary) Op() CommandOp { return OpCancelAccountSummary }

// ReqAccountUpdates subscribes to account value updates.
type ReqAccountUpdates struct {
	ReqID     int64  `json:"req_id"`
	Account   string `json:"account"`
	ModelCode string `json:"model_code,omitempty"`
}

func (ReqAccountUpdates) Op() CommandOp { return OpReqAccountUpdates }

// CancelAccountUpdates stops an account value subscription.
type CancelAccountUpdates struct {
	ReqID int64 `json:"req_id"`
}

func (CancelAccountUpdates) Op() CommandOp { return OpCancelAccountUpdates }

// ReqPositions subscribes to position updates.
type ReqPositions struct {
	ReqID     int64  `json:"req_id"`
	Account   string `json:"account"`
	ModelCode string `json:"model_code,omitempty"`
}

func (ReqPositions) Op() CommandOp { return OpReqPositions }

// CancelPositions stops a position subscription.
type CancelPositions struct {
	ReqID int64 `json:"req_id"`
}

func (CancelPositions) Op() CommandOp { return OpCancelPositions }

// ReqPnL subscribes to profit-and-loss updates.
type ReqPnL struct {
	ReqID     int64  `json:"req_id"`
	Account   string `json:"account"`
	ModelCode string `json:"model_code,omitempty"`
}

func (ReqPnL) Op() CommandOp { return OpReqPnL }

// CancelPnL stops a profit-and-loss subscription.
type CancelPnL struct {
	ReqID int64 `json:"req_id"`
}

func (CancelPnL) Op() CommandOp { return OpCancelPnL }

// ReqMatchingSymbols searches instruments whose symbol matches a pattern.
type ReqMatchingSymbols struct {
	ReqID   int64  `json:"req_id"`
	Pattern string `json:"pattern"`
}

func (ReqMatchingSymbols) Op() CommandOp { return OpReqMatchingSymbols }

// ReqFA requests financial-advisor account structures.
type ReqFA struct {
	DataType int `json:"data_type"` // FAGroups, FAProfiles, or FAAliases
}

func (ReqFA) Op() CommandOp { return OpReqFA }

// ReqExecutions requests execution reports.
type ReqExecutions struct {
	ReqID int64 `json:"req_id"`
}

func (ReqExecutions) Op() CommandOp { return OpReqExecutions }

// ReqOpenOrders subscribes to open order updates for this client id.
type ReqOpenOrders struct{}

func (ReqOpenOrders) Op() CommandOp { return OpReqOpenOrders }

// ReqCompletedOrders requests completed orders.
type ReqCompletedOrders struct {
	APIOnly bool `json:"api_only"`
}

func (ReqCompletedOrders) Op() CommandOp { return OpReqCompletedOrders }

// PlaceOrder submits an order.
type PlaceOrder struct {
	OrderID    int64          `json:"order_id"`
	Contract   ContractFields `json:"contract"`
	Action     string         `json:"action"` // BUY, SELL
	OrderType  string         `json:"order_type"`
	TotalQty   float64        `json:"total_qty"`
	LimitPrice float64        `json:"limit_price,omitempty"`
	AuxPrice   float64        `json:"aux_price,omitempty"`
	TIF        string         `json:"tif,omitempty"`
	Account    string         `json:"account,omitempty"`
}

func (PlaceOrder) Op() CommandOp { return OpPlaceOrder }

// CancelOrder cancels a single order.
type CancelOrder struct {
	OrderID int64 `json:"order_id"`
}

func (CancelOrder) Op() CommandOp { return OpCancelOrder }

// GlobalCancel cancels every open order, including orders placed by other
// clients.
type GlobalCancel struct{}

func (GlobalCancel) Op() CommandOp { return OpGlobalCancel }
