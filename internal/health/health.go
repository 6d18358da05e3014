// Package health serves the bridge server's status over HTTP.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/broker-bridge/internal/protocol"
	"github.com/rickgao/broker-bridge/internal/server"
	"github.com/rickgao/broker-bridge/internal/version"
)

// StatsSource reports bridge server activity.
type StatsSource interface {
	Stats() server.Stats
}

// Status is the body of a health response.
type Status struct {
	Status   string       `json:"status"` // ok | unavailable
	Instance string       `json:"instance,omitempty"`
	Version  version.Info `json:"version"`
	Uptime   string       `json:"uptime"`
	server.Stats
}

// Config holds health endpoint settings.
type Config struct {
	Addr     string // host:port to bind
	Path     string // default /health
	Instance string
	Debug    bool // gin debug mode
}

// Server is the health HTTP server.
type Server struct {
	cfg     Config
	source  StatsSource
	logger  *slog.Logger
	started time.Time
	engine  *gin.Engine
}

// New creates a health server.
func New(cfg Config, source StatsSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Path == "" {
		cfg.Path = "/health"
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:     cfg,
		source:  source,
		logger:  logger.With("component", "health"),
		started: time.Now(),
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.engine.GET(cfg.Path, s.handleHealth)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on ln until ctx is done. A nil ln binds cfg.Addr.
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", s.cfg.Addr)
		if err != nil {
			return fmt.Errorf("bind health %s: %w", s.cfg.Addr, err)
		}
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("health endpoint listening", "addr", ln.Addr().String(), "path", s.cfg.Path)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	stats := s.source.Stats()

	status := Status{
		Status:   "ok",
		Instance: s.cfg.Instance,
		Version:  version.Get(),
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Stats:    stats,
	}

	code := http.StatusOK
	if stats.State != protocol.StateReady.String() {
		status.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
