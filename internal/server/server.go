package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/broker-bridge/internal/broker"
	"github.com/rickgao/broker-bridge/internal/protocol"
)

// Errors
var (
	ErrAlreadyStarted = errors.New("server already started")
	ErrNotStarted     = errors.New("server not started")
)

// Server answers bridge requests on behalf of an engine.
type Server struct {
	cfg      Config
	engine   broker.Broker // nil = stub responses
	logger   *slog.Logger
	handlers map[string]handlerFunc
	upgrader websocket.Upgrader

	inbound chan job
	done    chan struct{}
	stop    sync.Once
	wg      sync.WaitGroup

	// State
	mu       sync.Mutex
	state    protocol.State
	listener net.Listener
	http     *http.Server
	conns    map[*websocket.Conn]struct{}

	requests    atomic.Int64
	failures    atomic.Int64
	connections atomic.Int64
}

// New creates a server. engine may be nil.
func New(cfg Config, engine broker.Broker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg.withDefaults(),
		engine:  engine,
		logger:  logger.With("component", "bridge_server"),
		inbound: make(chan job),
		done:    make(chan struct{}),
		conns:   make(map[*websocket.Conn]struct{}),
	}
	s.handlers = s.registry()
	return s
}

// Start binds the endpoint and begins serving. It returns once the
// listener is bound; a bind failure is returned as is.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != protocol.StateDisconnected || s.listener != nil {
		return ErrAlreadyStarted
	}
	s.state = protocol.StateConnecting

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.state = protocol.StateDisconnected
		return fmt.Errorf("bind %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleConn)
	s.http = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.wg.Add(2)
	go s.run(ctx)
	go func() {
		defer s.wg.Done()
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("bridge listener error", "error", err)
		}
	}()

	s.state = protocol.StateReady
	s.logger.Info("bridge server ready", "addr", ln.Addr().String(), "path", s.cfg.Path, "engine", s.engineName())
	return nil
}

// Serve starts the server and blocks until ctx is done, then stops it.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Stop(shutdownCtx)
}

// Stop closes the listener and every open connection, then waits for the
// processing loop to exit.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.listener == nil {
		s.mu.Unlock()
		return ErrNotStarted
	}
	httpServer := s.http
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.stop.Do(func() { close(s.done) })

	err := httpServer.Shutdown(ctx)
	// Hijacked connections are not closed by Shutdown
	for _, c := range conns {
		c.Close()
	}

	waitDone := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-ctx.Done():
		s.logger.Warn("shutdown timeout, processing loop still busy")
	}

	s.mu.Lock()
	s.state = protocol.StateDisconnected
	s.mu.Unlock()

	s.logger.Info("bridge server stopped")
	return err
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// Path returns the WebSocket path.
func (s *Server) Path() string {
	return s.cfg.Path
}

// Stats returns current counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	return Stats{
		State:       state.String(),
		Requests:    s.requests.Load(),
		Failures:    s.failures.Load(),
		Connections: s.connections.Load(),
	}
}

// run is the single request-processing path. Only this goroutine calls
// the engine.
func (s *Server) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	idleSince := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.stop.Do(func() { close(s.done) })
			return
		case <-s.done:
			return
		case j := <-s.inbound:
			j.reply <- s.handle(ctx, j.frame)
			idleSince = time.Now()
		case <-ticker.C:
			s.logger.Debug("waiting for requests", "idle", time.Since(idleSince).Round(time.Second))
		}
	}
}

// handleConn reads frames from one client connection. Each frame gets
// exactly one reply frame.
func (s *Server) handleConn(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	s.connections.Add(1)

	logger := s.logger.With("remote", r.RemoteAddr)
	logger.Debug("client connected")

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		s.connections.Add(-1)
		conn.Close()
		logger.Debug("client disconnected")
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				select {
				case <-s.done:
				default:
					logger.Debug("read failed", "error", err)
				}
			}
			return
		}

		j := job{frame: frame, reply: make(chan []byte, 1)}
		select {
		case s.inbound <- j:
		case <-s.done:
			return
		}

		var out []byte
		select {
		case out = <-j.reply:
		case <-s.done:
			return
		}

		conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			logger.Warn("write failed", "error", err)
			return
		}
	}
}

// handle decodes one frame, dispatches it and encodes the reply.
func (s *Server) handle(ctx context.Context, frame []byte) []byte {
	s.requests.Add(1)
	resp := s.dispatch(ctx, frame)
	if !resp.Success {
		s.failures.Add(1)
	}

	out, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("encode response failed", "request_id", resp.RequestID, "error", err)
		out, _ = json.Marshal(protocol.Fail(resp.RequestID, protocol.CodeEngineError, "encode response: "+err.Error()))
	}
	return out
}

func (s *Server) dispatch(ctx context.Context, frame []byte) protocol.Response {
	req, err := protocol.DecodeRequest(frame)
	if err != nil {
		s.logger.Warn("bad request frame", "error", err)
		return protocol.Fail(req.RequestID, protocol.CodeBadRequest, err.Error())
	}

	logger := s.logger.With("method", req.Method, "request_id", req.RequestID)
	logger.Debug("request received")

	h, ok := s.handlers[req.Method]
	if !ok {
		logger.Warn("unknown method")
		return protocol.Fail(req.RequestID, protocol.CodeUnknownMethod, "unknown method: "+req.Method)
	}

	result, err := s.invoke(ctx, h, req)
	if err != nil {
		code := protocol.CodeEngineError
		if errors.Is(err, protocol.ErrMalformed) {
			code = protocol.CodeBadRequest
		}
		logger.Error("request failed", "code", code, "error", err)
		return protocol.Fail(req.RequestID, code, err.Error())
	}

	resp, err := protocol.OK(req.RequestID, result)
	if err != nil {
		logger.Error("encode result failed", "error", err)
		return protocol.Fail(req.RequestID, protocol.CodeEngineError, err.Error())
	}
	return resp
}

// invoke runs a handler, converting a panic into an error so one bad
// request cannot take the process down.
func (s *Server) invoke(ctx context.Context, h handlerFunc, req protocol.Request) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()
	return h(ctx, req)
}

func (s *Server) engineName() string {
	if s.engine == nil {
		return "stub"
	}
	return fmt.Sprintf("%T", s.engine)
}
