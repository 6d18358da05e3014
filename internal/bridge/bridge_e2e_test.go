package bridge_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/broker-bridge/internal/bridge"
	"github.com/rickgao/broker-bridge/internal/broker"
	"github.com/rickgao/broker-bridge/internal/broker/paper"
	"github.com/rickgao/broker-bridge/internal/server"
)

func startServer(t *testing.T, engine broker.Broker) *server.Server {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.Addr = "127.0.0.1:0"

	srv := server.New(cfg, engine, nil)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Stop(ctx)
	})
	return srv
}

func clientFor(t *testing.T, srv *server.Server) *bridge.Client {
	t.Helper()
	c := bridge.New(bridge.ClientConfig{
		Addr:    srv.Addr(),
		Path:    srv.Path(),
		Timeout: 2 * time.Second,
	}, nil)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestStubEngineRoundTrip(t *testing.T) {
	srv := startServer(t, nil)
	c := clientFor(t, srv)
	ctx := context.Background()

	if !c.Ping(ctx) {
		t.Fatal("Ping returned false against a live server")
	}
	if !c.Connect(ctx) {
		t.Fatal("Connect returned false")
	}

	id, err := c.SubmitOrder(ctx, broker.Order{
		Symbol:   "005930",
		Side:     broker.SideBuy,
		Type:     broker.OrderTypeLimit,
		Quantity: 10,
		Price:    broker.Price("70000"),
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if id != server.StubOrderID {
		t.Errorf("order id = %q, want %q", id, server.StubOrderID)
	}

	bal, err := c.GetBalance(ctx)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if !bal.Equal(decimal.Zero) {
		t.Errorf("balance = %s, want 0", bal)
	}

	positions, err := c.GetPositions(ctx)
	if err != nil || len(positions) != 0 {
		t.Errorf("GetPositions = %v, %v; want empty", positions, err)
	}

	cancelled, err := c.CancelOrder(ctx, id)
	if err != nil || !cancelled {
		t.Errorf("CancelOrder = %v, %v; want true", cancelled, err)
	}

	candles, err := c.GetHistoricalData(ctx, "005930", time.Now().AddDate(0, -1, 0), time.Now(), "1d")
	if err != nil || len(candles) != 0 {
		t.Errorf("GetHistoricalData = %v, %v; want empty", candles, err)
	}

	c.Disconnect(ctx)
	if c.Stats().Dials != 1 {
		t.Errorf("Dials = %d, want 1", c.Stats().Dials)
	}
}

func TestPaperEngineRoundTrip(t *testing.T) {
	engine := paper.New(paper.Config{
		InitialCash: decimal.NewFromInt(1_000_000),
		Quotes:      map[string]decimal.Decimal{"005930": decimal.NewFromInt(70000)},
	}, nil)
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	err := engine.AddCandles("005930", "1d",
		broker.Candle{Timestamp: day(2), Open: decimal.NewFromInt(70000), High: decimal.NewFromInt(71000), Low: decimal.NewFromInt(69000), Close: decimal.NewFromInt(70500), Volume: 10},
		broker.Candle{Timestamp: day(3), Open: decimal.NewFromInt(70500), High: decimal.NewFromInt(72000), Low: decimal.NewFromInt(70000), Close: decimal.NewFromInt(71500), Volume: 20},
	)
	if err != nil {
		t.Fatalf("AddCandles: %v", err)
	}

	srv := startServer(t, engine)
	c := clientFor(t, srv)
	ctx := context.Background()

	if _, err := c.GetBalance(ctx); !errors.Is(err, bridge.ErrRemote) {
		t.Errorf("GetBalance before connect: expected remote error, got %v", err)
	}

	if !c.Connect(ctx) {
		t.Fatal("Connect returned false")
	}

	if _, err := c.SubmitOrder(ctx, broker.Order{Symbol: "005930", Side: broker.SideBuy, Type: broker.OrderTypeMarket, Quantity: 3}); err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}

	bal, err := c.GetBalance(ctx)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if !bal.Equal(decimal.NewFromInt(790000)) {
		t.Errorf("balance = %s, want 790000", bal)
	}

	positions, err := c.GetPositions(ctx)
	if err != nil {
		t.Fatalf("GetPositions: %v", err)
	}
	if len(positions) != 1 || positions[0].Quantity != 3 || !positions[0].AvgPrice.Equal(decimal.NewFromInt(70000)) {
		t.Errorf("unexpected positions: %+v", positions)
	}

	_, err = c.SubmitOrder(ctx, broker.Order{Symbol: "005930", Side: broker.SideBuy, Type: broker.OrderTypeMarket, Quantity: 1000})
	if !errors.Is(err, broker.ErrRejected) {
		t.Errorf("expected rejection for insufficient funds, got %v", err)
	}
	if bridge.IsTransport(err) {
		t.Error("rejection should not be transport-level")
	}

	candles, err := c.GetHistoricalData(ctx, "005930", day(1), day(31), "1d")
	if err != nil {
		t.Fatalf("GetHistoricalData: %v", err)
	}
	if len(candles) != 2 || !candles[1].Close.Equal(decimal.NewFromInt(71500)) {
		t.Errorf("unexpected candles: %+v", candles)
	}
	if c.Stats().Dials != 1 {
		t.Errorf("Dials = %d, want 1", c.Stats().Dials)
	}
}

func TestConcurrentClients(t *testing.T) {
	srv := startServer(t, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		c := clientFor(t, srv)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if _, err := c.GetBalance(context.Background()); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("GetBalance: %v", err)
	}
}

func TestClientSurvivesServerRestart(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	first := server.New(cfg, nil, nil)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	addr := first.Addr()

	c := bridge.New(bridge.ClientConfig{Addr: addr, Timeout: time.Second}, nil)
	defer c.Close()
	if !c.Ping(context.Background()) {
		t.Fatal("Ping returned false")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	first.Stop(ctx)
	cancel()

	if c.Ping(context.Background()) {
		t.Error("Ping returned true with the server stopped")
	}

	cfg.Addr = addr
	second := server.New(cfg, nil, nil)
	if err := second.Start(context.Background()); err != nil {
		t.Skipf("could not rebind %s: %v", addr, err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		second.Stop(ctx)
	}()

	if !c.Ping(context.Background()) {
		t.Error("Ping after restart returned false")
	}
}
