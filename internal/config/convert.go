package config

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/rickgao/broker-bridge/internal/bridge"
	"github.com/rickgao/broker-bridge/internal/broker/paper"
	"github.com/rickgao/broker-bridge/internal/server"
)

// Addr returns the bridge host:port.
func (e EndpointConfig) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ClientConfig returns the bridge client settings.
func (c *BridgeConfig) ClientConfig() bridge.ClientConfig {
	return bridge.ClientConfig{
		Addr:             c.Bridge.Addr(),
		Path:             c.Bridge.Path,
		Timeout:          c.Bridge.Timeout,
		HandshakeTimeout: c.Bridge.HandshakeTimeout,
	}
}

// ServerConfig returns the bridge server settings.
func (c *BridgeConfig) ServerConfig() server.Config {
	return server.Config{
		Addr:         c.Bridge.Addr(),
		Path:         c.Bridge.Path,
		PollInterval: c.Server.PollInterval,
		WriteTimeout: c.Bridge.WriteTimeout,
		Currency:     c.Paper.Currency,
	}
}

// PaperConfig returns the paper engine seed.
func (c *BridgeConfig) PaperConfig() (paper.Config, error) {
	cash, err := decimal.NewFromString(c.Paper.InitialCash)
	if err != nil {
		return paper.Config{}, fmt.Errorf("paper.initial_cash: %w", err)
	}

	quotes := make(map[string]decimal.Decimal, len(c.Paper.Quotes))
	for sym, px := range c.Paper.Quotes {
		price, err := decimal.NewFromString(px)
		if err != nil {
			return paper.Config{}, fmt.Errorf("paper.quotes.%s: %w", sym, err)
		}
		quotes[sym] = price
	}
	pc := paper.Config{InitialCash: cash, Quotes: quotes}
	if c.Paper.SyntheticHistory {
		pc.Calendar = paper.Calendar(c.Paper.Market)
		if pc.Calendar == nil {
			return paper.Config{}, fmt.Errorf("paper.market %q has no exchange calendar", c.Paper.Market)
		}
	}
	return pc, nil
}

// HealthAddr returns the health endpoint listen address on the bridge host.
func (c *BridgeConfig) HealthAddr() string {
	return net.JoinHostPort(c.Bridge.Host, strconv.Itoa(c.Health.Port))
}

// SlogLevel maps log.level to a slog level. Unknown values map to info.
func (c *BridgeConfig) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
