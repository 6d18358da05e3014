package server

import "time"

// Defaults for the bridge endpoint.
const (
	DefaultAddr         = "127.0.0.1:5555"
	DefaultPath         = "/bridge"
	DefaultPollInterval = 1 * time.Second
	DefaultWriteTimeout = 5 * time.Second
	DefaultCurrency     = "KRW"

	// Stub payload values for a server without an engine.
	StubOrderID = "MOCK_ORDER_ID"
)

// Config configures a Server.
type Config struct {
	Addr         string        // host:port to bind (port 0 picks a free port)
	Path         string        // WebSocket path
	PollInterval time.Duration // Idle wake-up of the processing loop
	WriteTimeout time.Duration // Write deadline for responses
	Currency     string        // Reported with get_balance
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         DefaultAddr,
		Path:         DefaultPath,
		PollInterval: DefaultPollInterval,
		WriteTimeout: DefaultWriteTimeout,
		Currency:     DefaultCurrency,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.Path == "" {
		c.Path = d.Path
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.Currency == "" {
		c.Currency = d.Currency
	}
	return c
}

// Stats summarizes server activity.
type Stats struct {
	State       string `json:"state"`
	Requests    int64  `json:"requests"`
	Failures    int64  `json:"failures"`
	Connections int64  `json:"connections"`
}

// job is one request frame waiting for the processing loop.
type job struct {
	frame []byte
	reply chan []byte
}
