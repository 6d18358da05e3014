package protocol

import "github.com/shopspring/decimal"

// PingResult from ping.
type PingResult struct {
	Pong      bool   `json:"pong"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ConnectResult from connect.
type ConnectResult struct {
	Connected bool `json:"connected"`
}

// DisconnectResult from disconnect.
type DisconnectResult struct {
	Disconnected bool `json:"disconnected"`
}

// BalanceResult from get_balance.
type BalanceResult struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency,omitempty"`
}

// PositionRecord is one element of the get_positions result.
type PositionRecord struct {
	Symbol        string          `json:"symbol"`
	Quantity      int64           `json:"quantity"`
	AvgPrice      decimal.Decimal `json:"avg_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// OrderParams for submit_order.
type OrderParams struct {
	Symbol    string           `json:"symbol"`
	Side      string           `json:"side"`
	OrderType string           `json:"order_type"`
	Quantity  int64            `json:"quantity"`
	Price     *decimal.Decimal `json:"price"` // null for market orders
}

// OrderResult from submit_order.
type OrderResult struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// CancelParams for cancel_order.
type CancelParams struct {
	OrderID string `json:"order_id"`
}

// CancelResult from cancel_order.
type CancelResult struct {
	OrderID   string `json:"order_id"`
	Cancelled bool   `json:"cancelled"`
}

// HistoryParams for get_historical_data.
type HistoryParams struct {
	Symbol    string `json:"symbol"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Interval  string `json:"interval"`
}

// CandleRecord is one element of the get_historical_data result.
type CandleRecord struct {
	Timestamp string          `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
}

// Order statuses reported in OrderResult.Status.
const (
	StatusSubmitted = "submitted"
	StatusFilled    = "filled"
)
