package broker

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Broker is the capability set every broker implements.
type Broker interface {
	// Connect establishes readiness. It is idempotent and reports failure
	// by returning false rather than an error.
	Connect(ctx context.Context) bool

	// Disconnect releases resources. Safe to call when not connected.
	Disconnect(ctx context.Context)

	// GetBalance returns the account cash balance.
	GetBalance(ctx context.Context) (decimal.Decimal, error)

	// GetPositions returns current holdings in a stable order.
	GetPositions(ctx context.Context) ([]Position, error)

	// SubmitOrder places an order and returns the broker-assigned ID.
	SubmitOrder(ctx context.Context, order Order) (string, error)

	// CancelOrder returns true iff the broker confirmed the cancellation.
	// An unknown or already filled order yields false, not an error.
	CancelOrder(ctx context.Context, orderID string) (bool, error)

	// GetHistoricalData returns time-ordered candles in [start, end].
	// No data in range yields an empty slice, not an error.
	GetHistoricalData(ctx context.Context, symbol string, start, end time.Time, interval Interval) ([]Candle, error)
}
