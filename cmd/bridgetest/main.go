// bridgetest exercises a running bridge server and prints the results.
// Usage: go run ./cmd/bridgetest --config configs/bridge.example.yaml -history 005930 -watch
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/broker-bridge/internal/bridge"
	"github.com/rickgao/broker-bridge/internal/broker"
	"github.com/rickgao/broker-bridge/internal/config"
	"github.com/rickgao/broker-bridge/internal/poller"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults if empty)")
	history := flag.String("history", "", "symbol to fetch historical data for")
	interval := flag.String("interval", string(broker.DefaultInterval), "candle interval for -history")
	days := flag.Int("days", 30, "days of history for -history")
	watch := flag.Bool("watch", false, "poll balance and positions until interrupted")
	verbose := flag.Bool("verbose", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	var (
		cfg *config.BridgeConfig
		err error
	)
	if *configPath == "" {
		cfg, err = config.FromEnv()
	} else {
		cfg, err = config.LoadAndValidate(*configPath)
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	client := bridge.New(cfg.ClientConfig(), logger)
	defer client.Close()

	url := client.Config().URL()
	if !client.Ping(ctx) {
		logger.Error("bridge server not answering", "url", url)
		os.Exit(1)
	}
	fmt.Printf("ping %s: ok\n", url)

	if !client.Connect(ctx) {
		logger.Error("engine connect failed")
		os.Exit(1)
	}
	fmt.Println("engine connected")

	p := poller.New(poller.Config{Interval: cfg.Poller.Interval, Timeout: cfg.Bridge.Timeout}, client,
		poller.SnapshotHandlerFunc(printSnapshot), logger)

	if _, err := p.PollNow(ctx); err != nil {
		logger.Error("account query failed", "error", err)
		os.Exit(1)
	}

	if *history != "" {
		end := time.Now()
		start := end.AddDate(0, 0, -*days)
		candles, err := client.GetHistoricalData(ctx, *history, start, end, broker.Interval(*interval))
		if err != nil {
			logger.Error("historical data query failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("%s %s: %d candles\n", *history, *interval, len(candles))
		for _, c := range candles {
			fmt.Printf("  %s O=%s H=%s L=%s C=%s V=%d\n",
				c.Timestamp.Format(time.RFC3339), c.Open, c.High, c.Low, c.Close, c.Volume)
		}
	}

	if !*watch {
		return
	}

	if err := p.Start(ctx); err != nil {
		logger.Error("failed to start poller", "error", err)
		os.Exit(1)
	}
	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	p.Stop(stopCtx)

	stats := client.Stats()
	fmt.Printf("\n=== Summary ===\n")
	fmt.Printf("Requests:   %d\n", stats.Requests)
	fmt.Printf("Dials:      %d\n", stats.Dials)
	fmt.Printf("Timeouts:   %d\n", stats.Timeouts)
	fmt.Printf("Faults:     %d\n", stats.TransportFaults)
}

func printSnapshot(s poller.AccountSnapshot) error {
	fmt.Printf("[%s] balance=%s positions=%d market_value=%s unrealized_pnl=%s\n",
		s.Taken.Format("15:04:05"), s.Balance, len(s.Positions), s.MarketValue(), s.UnrealizedPnL())
	for _, pos := range s.Positions {
		fmt.Printf("  %-8s qty=%d avg=%s cur=%s pnl=%s\n",
			pos.Symbol, pos.Quantity, pos.AvgPrice, pos.CurrentPrice, pos.UnrealizedPnL)
	}
	return nil
}
