package protocol

import (
	"fmt"
	"time"

	"github.com/rickgao/broker-bridge/internal/broker"
)

// FormatTime renders t for the wire.
func FormatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// ParseTime parses a wire timestamp. Zone-less ISO values are read as UTC.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", ErrMalformed)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// Try without timezone
		t, err = time.Parse("2006-01-02T15:04:05.999999999", s)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrMalformed, s)
		}
	}
	return t, nil
}

// NewOrderParams converts an order for submit_order. The price is sent
// only for limit orders.
func NewOrderParams(o broker.Order) OrderParams {
	return OrderParams{
		Symbol:    o.Symbol,
		Side:      string(o.Side),
		OrderType: string(o.Type),
		Quantity:  o.Quantity,
		Price:     o.LimitPrice(),
	}
}

// ToOrder converts params back into a validated order.
func (p OrderParams) ToOrder() (broker.Order, error) {
	o := broker.Order{
		Symbol:   p.Symbol,
		Side:     broker.Side(p.Side),
		Type:     broker.OrderType(p.OrderType),
		Quantity: p.Quantity,
		Price:    p.Price,
	}
	if err := o.Validate(); err != nil {
		return broker.Order{}, err
	}
	return o, nil
}

// NewPositionRecord converts a position for the wire.
func NewPositionRecord(p broker.Position) PositionRecord {
	return PositionRecord{
		Symbol:        p.Symbol,
		Quantity:      p.Quantity,
		AvgPrice:      p.AvgPrice,
		CurrentPrice:  p.CurrentPrice,
		UnrealizedPnL: p.UnrealizedPnL,
	}
}

// ToPosition converts a record into a position.
func (r PositionRecord) ToPosition() broker.Position {
	return broker.Position{
		Symbol:        r.Symbol,
		Quantity:      r.Quantity,
		AvgPrice:      r.AvgPrice,
		CurrentPrice:  r.CurrentPrice,
		UnrealizedPnL: r.UnrealizedPnL,
	}
}

// NewHistoryParams converts a historical data query for the wire.
func NewHistoryParams(symbol string, start, end time.Time, interval broker.Interval) HistoryParams {
	return HistoryParams{
		Symbol:    symbol,
		StartDate: FormatTime(start),
		EndDate:   FormatTime(end),
		Interval:  string(interval.OrDefault()),
	}
}

// Range parses the query's bounds and interval.
func (p HistoryParams) Range() (start, end time.Time, interval broker.Interval, err error) {
	if p.Symbol == "" {
		return start, end, "", fmt.Errorf("%w: symbol is required", ErrMalformed)
	}
	if start, err = ParseTime(p.StartDate); err != nil {
		return start, end, "", fmt.Errorf("start_date: %w", err)
	}
	if end, err = ParseTime(p.EndDate); err != nil {
		return start, end, "", fmt.Errorf("end_date: %w", err)
	}
	interval = broker.Interval(p.Interval).OrDefault()
	if !interval.Valid() {
		return start, end, "", fmt.Errorf("%w: unsupported interval %q", ErrMalformed, p.Interval)
	}
	return start, end, interval, nil
}

// NewCandleRecord converts a candle for the wire.
func NewCandleRecord(c broker.Candle) CandleRecord {
	return CandleRecord{
		Timestamp: FormatTime(c.Timestamp),
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
	}
}

// ToCandle converts a record into a candle and checks its invariants.
func (r CandleRecord) ToCandle() (broker.Candle, error) {
	ts, err := ParseTime(r.Timestamp)
	if err != nil {
		return broker.Candle{}, err
	}
	c := broker.Candle{
		Timestamp: ts,
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    r.Volume,
	}
	if err := c.Validate(); err != nil {
		return broker.Candle{}, err
	}
	return c, nil
}
