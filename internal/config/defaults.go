package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInstanceID       = "broker-bridge"
	DefaultHost             = "127.0.0.1"
	DefaultPort             = 5555
	DefaultPath             = "/bridge"
	DefaultTimeout          = 5000 * time.Millisecond
	DefaultWriteTimeout     = 5 * time.Second
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultEngine           = EngineMock
	DefaultServerPoll       = 1 * time.Second
	DefaultInitialCash      = "10000000"
	DefaultCurrency         = "KRW"
	DefaultMarket           = "xkrx"
	DefaultHealthPort       = 8080
	DefaultHealthPath       = "/health"
	DefaultPollInterval     = 30 * time.Second
	DefaultLogLevel         = "info"
)

// Engine names for server.engine.
const (
	EngineMock  = "mock"
	EnginePaper = "paper"
)

// Default returns a configuration with every default applied.
func Default() *BridgeConfig {
	cfg := &BridgeConfig{}
	cfg.applyDefaults()
	return cfg
}

func (c *BridgeConfig) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}

	// Bridge endpoint defaults
	if c.Bridge.Host == "" {
		c.Bridge.Host = DefaultHost
	}
	if c.Bridge.Port == 0 {
		c.Bridge.Port = DefaultPort
	}
	if c.Bridge.Path == "" {
		c.Bridge.Path = DefaultPath
	}
	if c.Bridge.Timeout == 0 {
		c.Bridge.Timeout = DefaultTimeout
	}
	if c.Bridge.WriteTimeout == 0 {
		c.Bridge.WriteTimeout = DefaultWriteTimeout
	}
	if c.Bridge.HandshakeTimeout == 0 {
		c.Bridge.HandshakeTimeout = DefaultHandshakeTimeout
	}

	// Server defaults
	if c.Server.Engine == "" {
		c.Server.Engine = DefaultEngine
	}
	if c.Server.PollInterval == 0 {
		c.Server.PollInterval = DefaultServerPoll
	}

	// Paper defaults
	if c.Paper.InitialCash == "" {
		c.Paper.InitialCash = DefaultInitialCash
	}
	if c.Paper.Currency == "" {
		c.Paper.Currency = DefaultCurrency
	}
	if c.Paper.Market == "" {
		c.Paper.Market = DefaultMarket
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
	if c.Health.Path == "" {
		c.Health.Path = DefaultHealthPath
	}

	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}
