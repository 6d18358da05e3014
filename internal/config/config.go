package config

import "time"

// BridgeConfig is the root configuration shared by the bridge binaries.
type BridgeConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Bridge   EndpointConfig `yaml:"bridge"`
	Server   ServerConfig   `yaml:"server"`
	Paper    PaperConfig    `yaml:"paper"`
	Health   HealthConfig   `yaml:"health"`
	Poller   PollerConfig   `yaml:"poller"`
	Log      LogConfig      `yaml:"log"`
}

// InstanceConfig identifies this process in logs.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// EndpointConfig locates the bridge on the loopback interface.
type EndpointConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	Path             string        `yaml:"path"`
	Timeout          time.Duration `yaml:"timeout"`           // Client per-request bound
	WriteTimeout     time.Duration `yaml:"write_timeout"`     // Server response write bound
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"` // Client dial bound
}

// ServerConfig holds bridge server settings.
type ServerConfig struct {
	Engine       string        `yaml:"engine"` // mock | paper
	PollInterval time.Duration `yaml:"poll_interval"`
}

// PaperConfig seeds the paper engine. Amounts are decimal strings.
type PaperConfig struct {
	InitialCash      string            `yaml:"initial_cash"`
	Currency         string            `yaml:"currency"`
	Quotes           map[string]string `yaml:"quotes"`            // symbol -> last price
	SyntheticHistory bool              `yaml:"synthetic_history"` // generate daily candles
	Market           string            `yaml:"market"`            // exchange MIC for the calendar
}

// HealthConfig holds the HTTP health endpoint settings.
type HealthConfig struct {
	Disabled bool   `yaml:"disabled"`
	Port     int    `yaml:"port"`
	Path     string `yaml:"path"`
}

// PollerConfig holds account poller settings.
type PollerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}
