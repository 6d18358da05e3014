package broker

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// OrderType is the pricing mode of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// Valid reports whether t is a known order type.
func (t OrderType) Valid() bool {
	return t == OrderTypeMarket || t == OrderTypeLimit
}

// Interval is a candle width ("1m", "1d", ...).
type Interval string

// DefaultInterval is used when a caller passes an empty interval.
const DefaultInterval Interval = "1d"

var validIntervals = map[Interval]struct{}{
	"1m": {}, "3m": {}, "5m": {}, "10m": {}, "15m": {}, "30m": {}, "60m": {},
	"1d": {}, "1w": {}, "1M": {},
}

// Valid reports whether i is a supported interval.
func (i Interval) Valid() bool {
	_, ok := validIntervals[i]
	return ok
}

// OrDefault returns DefaultInterval for an empty interval.
func (i Interval) OrDefault() Interval {
	if i == "" {
		return DefaultInterval
	}
	return i
}

// Order is a request to buy or sell a symbol.
type Order struct {
	Symbol    string
	Side      Side
	Type      OrderType
	Quantity  int64
	Price     *decimal.Decimal // Required for limit orders
	ID        string           // Assigned by the broker
	CreatedAt time.Time
}

// Position is a holding reported by the broker.
type Position struct {
	Symbol        string
	Quantity      int64 // Signed: negative = short
	AvgPrice      decimal.Decimal
	CurrentPrice  decimal.Decimal
	UnrealizedPnL decimal.Decimal // As reported by the source, not recomputed
}

// Candle is one OHLCV bar.
type Candle struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    int64
}
