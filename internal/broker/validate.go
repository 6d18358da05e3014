package broker

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Validate checks the order's shape. It does no I/O.
func (o Order) Validate() error {
	if o.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	}
	if !o.Side.Valid() {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, o.Side)
	}
	if !o.Type.Valid() {
		return fmt.Errorf("%w: unknown order type %q", ErrInvalidOrder, o.Type)
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be > 0, got %d", ErrInvalidOrder, o.Quantity)
	}
	if o.Type == OrderTypeLimit {
		if o.Price == nil {
			return fmt.Errorf("%w: limit order requires a price", ErrInvalidOrder)
		}
		if !o.Price.IsPositive() {
			return fmt.Errorf("%w: limit price must be > 0, got %s", ErrInvalidOrder, o.Price)
		}
	}
	return nil
}

// LimitPrice returns the price that should travel with the order:
// the limit price for limit orders, nil for market orders.
func (o Order) LimitPrice() *decimal.Decimal {
	if o.Type != OrderTypeLimit {
		return nil
	}
	return o.Price
}

// Validate checks low <= open, close <= high and a non-negative volume.
func (c Candle) Validate() error {
	if c.Low.GreaterThan(c.Open) || c.Low.GreaterThan(c.Close) {
		return fmt.Errorf("%w: low %s above open/close at %s", ErrInvalidCandle, c.Low, c.Timestamp.Format(time.RFC3339))
	}
	if c.High.LessThan(c.Open) || c.High.LessThan(c.Close) {
		return fmt.Errorf("%w: high %s below open/close at %s", ErrInvalidCandle, c.High, c.Timestamp.Format(time.RFC3339))
	}
	if c.Volume < 0 {
		return fmt.Errorf("%w: negative volume %d", ErrInvalidCandle, c.Volume)
	}
	return nil
}

// Price parses s into a decimal pointer for Order.Price. It panics on
// malformed input and is meant for literals.
func Price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
