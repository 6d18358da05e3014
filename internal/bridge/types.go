package bridge

import (
	"net/url"
	"time"
)

// Defaults for a local bridge endpoint.
const (
	DefaultAddr    = "127.0.0.1:5555"
	DefaultPath    = "/bridge"
	DefaultTimeout = 5000 * time.Millisecond
)

// ClientConfig configures a bridge client.
type ClientConfig struct {
	Addr             string        // host:port of the bridge server
	Path             string        // WebSocket path (e.g., /bridge)
	Timeout          time.Duration // Per-request bound for write + response
	HandshakeTimeout time.Duration // Dial bound; 0 = Timeout
}

// DefaultClientConfig returns the defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Addr:    DefaultAddr,
		Path:    DefaultPath,
		Timeout: DefaultTimeout,
	}
}

// URL returns the WebSocket URL of the server.
func (c ClientConfig) URL() string {
	u := url.URL{Scheme: "ws", Host: c.Addr, Path: c.Path}
	return u.String()
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = c.Timeout
	}
	return c
}

// Stats counts client activity since construction.
type Stats struct {
	Dials           int64 // Successful dials
	Requests        int64 // Requests written to the wire
	Timeouts        int64
	TransportFaults int64 // Faults other than timeouts
}
