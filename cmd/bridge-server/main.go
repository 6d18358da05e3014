// bridge-server answers bridge requests on the loopback interface on
// behalf of a broker engine.
// Usage: go run ./cmd/bridge-server --config configs/bridge.example.yaml
//
// With no config file the defaults apply; BRIDGE_IPC_PORT overrides the port.
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

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/broker-bridge/internal/broker"
	"github.com/rickgao/broker-bridge/internal/broker/paper"
	"github.com/rickgao/broker-bridge/internal/config"
	"github.com/rickgao/broker-bridge/internal/health"
	"github.com/rickgao/broker-bridge/internal/server"
	"github.com/rickgao/broker-bridge/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults if empty)")
	engineName := flag.String("engine", "", "override server.engine (mock|paper)")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *engineName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})).With("instance_id", cfg.Instance.ID)
	slog.SetDefault(logger)

	logger.Info("starting bridge server",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"engine", cfg.Server.Engine,
	)

	engine, err := newEngine(cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	srv := server.New(cfg.ServerConfig(), engine, logger)
	if err := srv.Start(ctx); err != nil {
		logger.Error("failed to start bridge server", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Stop(shutdownCtx)
	})

	if !cfg.Health.Disabled {
		hs := health.New(health.Config{
			Addr:     cfg.HealthAddr(),
			Path:     cfg.Health.Path,
			Instance: cfg.Instance.ID,
			Debug:    cfg.Log.Level == "debug",
		}, srv, logger)
		g.Go(func() error {
			return hs.Run(gctx, nil)
		})
	}

	logger.Info("bridge server running",
		"addr", srv.Addr(),
		"path", srv.Path(),
		"health_url", fmt.Sprintf("http://%s%s", cfg.HealthAddr(), cfg.Health.Path),
	)

	if err := g.Wait(); err != nil {
		logger.Error("bridge server exited with error", "error", err)
		os.Exit(1)
	}

	if engine != nil {
		engine.Disconnect(context.Background())
	}
	logger.Info("bridge server stopped")
}

func loadConfig(path, engine string) (*config.BridgeConfig, error) {
	var (
		cfg *config.BridgeConfig
		err error
	)
	if path == "" {
		cfg, err = config.FromEnv()
	} else {
		cfg, err = config.LoadWithDefaults(path)
	}
	if err != nil {
		return nil, err
	}
	if engine != "" {
		cfg.Server.Engine = engine
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// newEngine returns the configured engine. The mock engine is nil: the
// server answers with fixed stub payloads.
func newEngine(cfg *config.BridgeConfig, logger *slog.Logger) (broker.Broker, error) {
	switch cfg.Server.Engine {
	case config.EnginePaper:
		pc, err := cfg.PaperConfig()
		if err != nil {
			return nil, err
		}
		logger.Info("paper engine configured",
			"initial_cash", pc.InitialCash,
			"symbols", len(pc.Quotes),
		)
		return paper.New(pc, logger), nil
	default:
		return nil, nil
	}
}
