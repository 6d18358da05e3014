package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/broker-bridge/internal/broker"
)

// ErrAlreadyStarted is returned by Start on a running poller.
var ErrAlreadyStarted = errors.New("poller already started")

// AccountSource provides the account state to poll.
type AccountSource interface {
	GetBalance(ctx context.Context) (decimal.Decimal, error)
	GetPositions(ctx context.Context) ([]broker.Position, error)
}

// AccountSnapshot is one observation of an account.
type AccountSnapshot struct {
	Balance   decimal.Decimal
	Positions []broker.Position
	Taken     time.Time
}

// MarketValue returns the sum of current price times quantity over all
// positions. Shorts contribute negatively.
func (s AccountSnapshot) MarketValue() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Positions {
		total = total.Add(p.CurrentPrice.Mul(decimal.NewFromInt(p.Quantity)))
	}
	return total
}

// UnrealizedPnL returns the total unrealized P/L over all positions.
func (s AccountSnapshot) UnrealizedPnL() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Positions {
		total = total.Add(p.UnrealizedPnL)
	}
	return total
}

// SnapshotHandler receives polled snapshots.
type SnapshotHandler interface {
	HandleSnapshot(snapshot AccountSnapshot) error
}

// SnapshotHandlerFunc is a function adapter for SnapshotHandler.
type SnapshotHandlerFunc func(AccountSnapshot) error

func (f SnapshotHandlerFunc) HandleSnapshot(s AccountSnapshot) error {
	return f(s)
}

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Poll interval (default: 30s)
	Timeout  time.Duration // Per-poll timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// Stats counts poll outcomes.
type Stats struct {
	Polls  int64
	Errors int64
}

// Poller periodically snapshots an account.
type Poller struct {
	cfg     Config
	source  AccountSource
	handler SnapshotHandler
	logger  *slog.Logger

	pollMu sync.Mutex // one poll at a time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	polls  atomic.Int64
	errors atomic.Int64
}

// New creates a new Poller.
func New(cfg Config, source AccountSource, handler SnapshotHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	d := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = d.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	return &Poller{
		cfg:     cfg,
		source:  source,
		handler: handler,
		logger:  logger.With("component", "account_poller"),
	}
}

// Start begins the polling loop. The first poll runs immediately.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run(ctx)

	p.logger.Info("account poller started", "interval", p.cfg.Interval)
	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("account poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns poll counters.
func (p *Poller) Stats() Stats {
	return Stats{Polls: p.polls.Load(), Errors: p.errors.Load()}
}

// PollNow takes one snapshot and hands it to the handler.
func (p *Poller) PollNow(ctx context.Context) (AccountSnapshot, error) {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	p.polls.Add(1)
	snap, err := p.snapshot(ctx)
	if err != nil {
		p.errors.Add(1)
		return AccountSnapshot{}, err
	}

	if p.handler != nil {
		if err := p.handler.HandleSnapshot(snap); err != nil {
			p.errors.Add(1)
			return snap, fmt.Errorf("handle snapshot: %w", err)
		}
	}
	return snap, nil
}

// run is the main polling loop.
func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	start := time.Now()
	snap, err := p.PollNow(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Warn("account poll failed", "err", err)
		return
	}

	p.logger.Debug("poll cycle complete",
		"balance", snap.Balance,
		"positions", len(snap.Positions),
		"duration", time.Since(start),
	)
}

func (p *Poller) snapshot(ctx context.Context) (AccountSnapshot, error) {
	balance, err := p.source.GetBalance(ctx)
	if err != nil {
		return AccountSnapshot{}, fmt.Errorf("get balance: %w", err)
	}
	positions, err := p.source.GetPositions(ctx)
	if err != nil {
		return AccountSnapshot{}, fmt.Errorf("get positions: %w", err)
	}
	return AccountSnapshot{
		Balance:   balance,
		Positions: positions,
		Taken:     time.Now(),
	}, nil
}
