package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rickgao/broker-bridge/internal/broker/paper"
)

// Validate checks that all required fields are set and values are valid.
func (c *BridgeConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Bridge.Host == "" {
		return errors.New("bridge.host is required")
	}
	if err := validatePort("bridge.port", c.Bridge.Port); err != nil {
		return err
	}
	if !strings.HasPrefix(c.Bridge.Path, "/") {
		return fmt.Errorf("bridge.path must start with /, got %q", c.Bridge.Path)
	}
	if c.Bridge.Timeout <= 0 {
		return errors.New("bridge.timeout must be > 0")
	}

	switch c.Server.Engine {
	case EngineMock, EnginePaper:
	default:
		return fmt.Errorf("server.engine must be %q or %q, got %q", EngineMock, EnginePaper, c.Server.Engine)
	}
	if c.Server.PollInterval <= 0 {
		return errors.New("server.poll_interval must be > 0")
	}

	if c.Server.Engine == EnginePaper {
		if err := c.Paper.validate("paper"); err != nil {
			return err
		}
	}

	if !c.Health.Disabled {
		if err := validatePort("health.port", c.Health.Port); err != nil {
			return err
		}
		if c.Health.Port == c.Bridge.Port {
			return fmt.Errorf("health.port (%d) cannot equal bridge.port", c.Health.Port)
		}
	}

	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be > 0")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}

	return nil
}

func (p *PaperConfig) validate(prefix string) error {
	cash, err := decimal.NewFromString(p.InitialCash)
	if err != nil {
		return fmt.Errorf("%s.initial_cash must be a decimal, got %q", prefix, p.InitialCash)
	}
	if cash.IsNegative() {
		return fmt.Errorf("%s.initial_cash must be >= 0", prefix)
	}
	for sym, px := range p.Quotes {
		price, err := decimal.NewFromString(px)
		if err != nil {
			return fmt.Errorf("%s.quotes.%s must be a decimal, got %q", prefix, sym, px)
		}
		if !price.IsPositive() {
			return fmt.Errorf("%s.quotes.%s must be > 0", prefix, sym)
		}
	}
	if p.SyntheticHistory && paper.Calendar(p.Market) == nil {
		return fmt.Errorf("%s.market %q has no exchange calendar", prefix, p.Market)
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}
