// Package paper provides an in-memory broker.Broker.
//
// It serves as a direct-native broker for dry runs, as a test double, and
// as the bridge server's engine when the legacy component is absent.
// Market orders fill at the current quote; limit orders fill at their
// limit price once the quote crosses it.
package paper

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/scmhub/calendar"
	"github.com/shopspring/decimal"

	"github.com/rickgao/broker-bridge/internal/broker"
)

var _ broker.Broker = (*Broker)(nil)

// Order statuses.
const (
	StatusOpen      = "open"
	StatusFilled    = "filled"
	StatusCancelled = "cancelled"
	StatusRejected  = "rejected"
)

// Config seeds a paper account.
type Config struct {
	InitialCash decimal.Decimal
	Quotes      map[string]decimal.Decimal // symbol -> last price

	// Calendar, if set, backs daily history for symbols with no stored
	// candles with a synthetic series over its business days.
	Calendar *calendar.Calendar
}

type holding struct {
	quantity int64
	avgPrice decimal.Decimal
}

type order struct {
	broker.Order
	status string
}

type seriesKey struct {
	symbol   string
	interval broker.Interval
}

// Broker is an in-memory account.
type Broker struct {
	logger   *slog.Logger
	now      func() time.Time
	calendar *calendar.Calendar

	mu        sync.Mutex
	connected bool
	cash      decimal.Decimal
	quotes    map[string]decimal.Decimal
	holdings  map[string]*holding
	orders    map[string]*order
	history   map[seriesKey][]broker.Candle
}

// New creates a paper broker.
func New(cfg Config, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}

	quotes := make(map[string]decimal.Decimal, len(cfg.Quotes))
	for sym, px := range cfg.Quotes {
		quotes[sym] = px
	}

	return &Broker{
		logger:   logger.With("component", "paper_broker"),
		now:      time.Now,
		calendar: cfg.Calendar,
		cash:     cfg.InitialCash,
		quotes:   quotes,
		holdings: make(map[string]*holding),
		orders:   make(map[string]*order),
		history:  make(map[seriesKey][]broker.Candle),
	}
}

// Connect always succeeds.
func (b *Broker) Connect(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
	return true
}

// Disconnect marks the account offline. Account state is kept.
func (b *Broker) Disconnect(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
}

// GetBalance returns available cash.
func (b *Broker) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return decimal.Zero, broker.ErrNotConnected
	}
	return b.cash, nil
}

// GetPositions returns holdings sorted by symbol.
func (b *Broker) GetPositions(ctx context.Context) ([]broker.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return nil, broker.ErrNotConnected
	}

	positions := make([]broker.Position, 0, len(b.holdings))
	for sym, h := range b.holdings {
		current, ok := b.quotes[sym]
		if !ok {
			current = h.avgPrice
		}
		positions = append(positions, broker.Position{
			Symbol:        sym,
			Quantity:      h.quantity,
			AvgPrice:      h.avgPrice,
			CurrentPrice:  current,
			UnrealizedPnL: current.Sub(h.avgPrice).Mul(decimal.NewFromInt(h.quantity)),
		})
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})
	return positions, nil
}

// SubmitOrder fills or rests the order and returns its ID.
func (b *Broker) SubmitOrder(ctx context.Context, o broker.Order) (string, error) {
	if err := o.Validate(); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return "", broker.ErrNotConnected
	}

	quote, ok := b.quotes[o.Symbol]
	if !ok {
		return "", fmt.Errorf("%w: unknown symbol %s", broker.ErrRejected, o.Symbol)
	}

	o.ID = uuid.NewString()
	o.CreatedAt = b.now()
	rec := &order{Order: o, status: StatusOpen}

	switch o.Type {
	case broker.OrderTypeMarket:
		if err := b.fill(rec, quote); err != nil {
			return "", err
		}
	case broker.OrderTypeLimit:
		if o.Side == broker.SideBuy {
			cost := o.Price.Mul(decimal.NewFromInt(o.Quantity))
			if cost.GreaterThan(b.cash) {
				return "", fmt.Errorf("%w: insufficient funds: need %s, have %s", broker.ErrRejected, cost, b.cash)
			}
		}
		if marketable(rec, quote) {
			if err := b.fill(rec, *o.Price); err != nil {
				return "", err
			}
		}
	}

	b.orders[o.ID] = rec
	b.logger.Debug("order accepted", "order_id", o.ID, "symbol", o.Symbol, "status", rec.status)
	return o.ID, nil
}

// CancelOrder cancels an open order. Filled, cancelled and unknown orders
// return false.
func (b *Broker) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return false, broker.ErrNotConnected
	}

	rec, ok := b.orders[orderID]
	if !ok || rec.status != StatusOpen {
		return false, nil
	}
	rec.status = StatusCancelled
	return true, nil
}

// GetHistoricalData returns stored candles with timestamps in [start, end].
// Daily requests for a quoted symbol with no stored candles are synthesized
// when a calendar is configured.
func (b *Broker) GetHistoricalData(ctx context.Context, symbol string, start, end time.Time, interval broker.Interval) ([]broker.Candle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return nil, broker.ErrNotConnected
	}

	interval = interval.OrDefault()
	series, stored := b.history[seriesKey{symbol, interval}]
	if !stored && interval == broker.DefaultInterval && b.calendar != nil {
		if quote, ok := b.quotes[symbol]; ok {
			return synthesizeDaily(b.calendar, symbol, quote, start, end), nil
		}
	}

	out := []broker.Candle{}
	for _, c := range series {
		if c.Timestamp.Before(start) || c.Timestamp.After(end) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// SetQuote updates the last price of symbol and fills any resting limit
// orders the new price crosses.
func (b *Broker) SetQuote(symbol string, price decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.quotes[symbol] = price

	ids := make([]string, 0)
	for id, rec := range b.orders {
		if rec.status == StatusOpen && rec.Symbol == symbol && marketable(rec, price) {
			ids = append(ids, id)
		}
	}
	// Oldest first
	slices.SortFunc(ids, func(a, c string) int {
		return b.orders[a].CreatedAt.Compare(b.orders[c].CreatedAt)
	})

	for _, id := range ids {
		rec := b.orders[id]
		if err := b.fill(rec, *rec.Price); err != nil {
			rec.status = StatusRejected
			b.logger.Warn("resting order rejected", "order_id", id, "error", err)
		}
	}
}

// AddCandles stores candles for symbol at interval, keeping them sorted.
func (b *Broker) AddCandles(symbol string, interval broker.Interval, candles ...broker.Candle) error {
	for _, c := range candles {
		if err := c.Validate(); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := seriesKey{symbol, interval.OrDefault()}
	series := append(b.history[key], candles...)
	slices.SortStableFunc(series, func(a, c broker.Candle) int {
		return a.Timestamp.Compare(c.Timestamp)
	})
	b.history[key] = series
	return nil
}

// OrderStatus returns the status of an order, or "" if unknown.
func (b *Broker) OrderStatus(orderID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if rec, ok := b.orders[orderID]; ok {
		return rec.status
	}
	return ""
}

// marketable reports whether a limit order would trade at price.
func marketable(rec *order, price decimal.Decimal) bool {
	if rec.Type != broker.OrderTypeLimit {
		return true
	}
	if rec.Side == broker.SideBuy {
		return price.LessThanOrEqual(*rec.Price)
	}
	return price.GreaterThanOrEqual(*rec.Price)
}

// fill applies an execution of the whole order at price. Caller holds mu.
func (b *Broker) fill(rec *order, price decimal.Decimal) error {
	qty := rec.Quantity
	notional := price.Mul(decimal.NewFromInt(qty))

	signed := qty
	if rec.Side == broker.SideBuy {
		if notional.GreaterThan(b.cash) {
			return fmt.Errorf("%w: insufficient funds: need %s, have %s", broker.ErrRejected, notional, b.cash)
		}
		b.cash = b.cash.Sub(notional)
	} else {
		b.cash = b.cash.Add(notional)
		signed = -qty
	}

	h, ok := b.holdings[rec.Symbol]
	if !ok {
		h = &holding{}
		b.holdings[rec.Symbol] = h
	}

	next := h.quantity + signed
	switch {
	case next == 0:
		delete(b.holdings, rec.Symbol)
	case h.quantity == 0 || (h.quantity > 0) != (next > 0):
		// New position or flipped through zero
		h.avgPrice = price
	case (h.quantity > 0) == (signed > 0):
		// Adding in the same direction: weighted average
		oldAbs := decimal.NewFromInt(abs(h.quantity))
		addAbs := decimal.NewFromInt(qty)
		h.avgPrice = h.avgPrice.Mul(oldAbs).Add(price.Mul(addAbs)).Div(oldAbs.Add(addAbs))
	}
	h.quantity = next

	rec.status = StatusFilled
	return nil
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
