package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/rickgao/broker-bridge/internal/broker"
	"github.com/rickgao/broker-bridge/internal/protocol"
)

var _ broker.Broker = (*Client)(nil)

// Client is a broker.Broker backed by a remote bridge server.
// A Client owns exactly one connection; use several Clients for concurrency.
type Client struct {
	cfg    ClientConfig
	logger *slog.Logger
	dialer websocket.Dialer

	// Round-trip serialization: one outstanding request per connection
	callMu sync.Mutex

	// State
	mu              sync.RWMutex
	conn            *websocket.Conn
	state           protocol.State
	engineConnected bool

	dials           atomic.Int64
	requests        atomic.Int64
	timeouts        atomic.Int64
	transportFaults atomic.Int64
}

// New creates a client. It does not dial; the first call does.
func New(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	return &Client{
		cfg:    cfg,
		logger: logger.With("component", "bridge_client", "addr", cfg.Addr),
		dialer: websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// Open creates a client and connects it to the engine.
func Open(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	c := New(cfg, logger)
	if !c.Connect(ctx) {
		c.Disconnect(ctx)
		return nil, ErrConnectFailed
	}
	return c, nil
}

// Close disconnects the client.
func (c *Client) Close() error {
	c.Disconnect(context.Background())
	return nil
}

// Config returns the effective configuration.
func (c *Client) Config() ClientConfig {
	return c.cfg
}

// State returns the transport state.
func (c *Client) State() protocol.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Stats returns activity counters.
func (c *Client) Stats() Stats {
	return Stats{
		Dials:           c.dials.Load(),
		Requests:        c.requests.Load(),
		Timeouts:        c.timeouts.Load(),
		TransportFaults: c.transportFaults.Load(),
	}
}

// Ping returns true iff the server answers. It never returns an error.
func (c *Client) Ping(ctx context.Context) bool {
	var res protocol.PingResult
	if err := c.call(ctx, protocol.MethodPing, nil, &res); err != nil {
		c.logger.Debug("ping failed", "error", err)
		return false
	}
	return res.Pong
}

// Connect asks the server to connect the engine. Calling it again while the
// transport is ready and the engine is connected makes no request.
func (c *Client) Connect(ctx context.Context) bool {
	c.mu.RLock()
	ready := c.state == protocol.StateReady && c.engineConnected
	c.mu.RUnlock()
	if ready {
		return true
	}

	var res protocol.ConnectResult
	if err := c.call(ctx, protocol.MethodConnect, nil, &res); err != nil {
		c.logger.Error("engine connect failed", "error", err)
		return false
	}

	c.mu.Lock()
	c.engineConnected = res.Connected
	c.mu.Unlock()

	if res.Connected {
		c.logger.Info("engine connected")
	} else {
		c.logger.Warn("engine refused connect")
	}
	return res.Connected
}

// Disconnect sends a best-effort disconnect and then always releases the
// local connection.
func (c *Client) Disconnect(ctx context.Context) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	c.mu.RLock()
	hasConn := c.conn != nil
	c.mu.RUnlock()

	if hasConn {
		if err := c.roundTrip(ctx, protocol.MethodDisconnect, nil, nil); err != nil {
			c.logger.Warn("disconnect request failed", "error", err)
		} else {
			c.logger.Info("engine disconnected")
		}
	}
	c.teardown()
}

// GetBalance returns the account balance.
func (c *Client) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	var res protocol.BalanceResult
	if err := c.call(ctx, protocol.MethodGetBalance, nil, &res); err != nil {
		return decimal.Zero, err
	}
	return res.Balance, nil
}

// GetPositions returns the positions reported by the engine.
func (c *Client) GetPositions(ctx context.Context) ([]broker.Position, error) {
	var records []protocol.PositionRecord
	if err := c.call(ctx, protocol.MethodGetPositions, nil, &records); err != nil {
		return nil, err
	}

	positions := make([]broker.Position, 0, len(records))
	for _, r := range records {
		positions = append(positions, r.ToPosition())
	}
	return positions, nil
}

// SubmitOrder validates the order locally, then submits it.
func (c *Client) SubmitOrder(ctx context.Context, order broker.Order) (string, error) {
	if err := order.Validate(); err != nil {
		return "", err
	}

	var res protocol.OrderResult
	if err := c.call(ctx, protocol.MethodSubmitOrder, protocol.NewOrderParams(order), &res); err != nil {
		return "", err
	}
	if res.OrderID == "" {
		return "", &BridgeError{
			Kind:    KindProtocol,
			Method:  protocol.MethodSubmitOrder,
			Message: "response has no order_id",
		}
	}

	c.logger.Info("order submitted",
		"order_id", res.OrderID,
		"symbol", order.Symbol,
		"side", order.Side,
		"status", res.Status,
	)
	return res.OrderID, nil
}

// CancelOrder returns whether the engine confirmed the cancellation.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	var res protocol.CancelResult
	if err := c.call(ctx, protocol.MethodCancelOrder, protocol.CancelParams{OrderID: orderID}, &res); err != nil {
		return false, err
	}
	return res.Cancelled, nil
}

// GetHistoricalData returns candles in [start, end] sorted by time.
func (c *Client) GetHistoricalData(ctx context.Context, symbol string, start, end time.Time, interval broker.Interval) ([]broker.Candle, error) {
	interval = interval.OrDefault()
	if !interval.Valid() {
		return nil, fmt.Errorf("unsupported interval %q", interval)
	}
	if end.Before(start) {
		return []broker.Candle{}, nil
	}

	var records []protocol.CandleRecord
	params := protocol.NewHistoryParams(symbol, start, end, interval)
	if err := c.call(ctx, protocol.MethodGetHistoricalData, params, &records); err != nil {
		return nil, err
	}

	candles := make([]broker.Candle, 0, len(records))
	for _, r := range records {
		candle, err := r.ToCandle()
		if err != nil {
			return nil, &BridgeError{Kind: KindProtocol, Method: protocol.MethodGetHistoricalData, Err: err}
		}
		candles = append(candles, candle)
	}
	slices.SortStableFunc(candles, func(a, b broker.Candle) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return candles, nil
}

// call performs one round trip under the call lock.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	c.callMu.Lock()
	defer c.callMu.Unlock()
	return c.roundTrip(ctx, method, params, out)
}

// roundTrip sends one request and reads exactly one response.
// Callers must hold callMu.
func (c *Client) roundTrip(ctx context.Context, method string, params, out any) error {
	conn, err := c.ensureConn(ctx, method)
	if err != nil {
		return err
	}

	req, err := protocol.NewRequest(method, uuid.NewString(), params)
	if err != nil {
		return &BridgeError{Kind: KindProtocol, Method: method, Err: err}
	}
	data, err := json.Marshal(req)
	if err != nil {
		return &BridgeError{Kind: KindProtocol, Method: method, Err: err}
	}

	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.logger.Debug("bridge request", "method", method, "request_id", req.RequestID)
	c.requests.Add(1)

	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return c.fault(method, err)
	}

	conn.SetReadDeadline(deadline)
	_, frame, err := conn.ReadMessage()
	if err != nil {
		return c.fault(method, err)
	}

	resp, err := protocol.DecodeResponse(frame)
	if err != nil {
		return &BridgeError{Kind: KindProtocol, Method: method, Err: err}
	}

	if !resp.Success {
		kind := KindRemote
		if resp.Code == protocol.CodeUnknownMethod || resp.Code == protocol.CodeBadRequest {
			kind = KindProtocol
		}
		return &BridgeError{Kind: kind, Method: method, Message: resp.ErrorMessage()}
	}

	if resp.RequestID != req.RequestID {
		// A stray response means the channel is out of step; it cannot be reused.
		c.teardown()
		return &BridgeError{
			Kind:    KindProtocol,
			Method:  method,
			Message: fmt.Sprintf("request_id mismatch: sent %s, got %s", req.RequestID, resp.RequestID),
		}
	}

	if out == nil {
		return nil
	}
	if err := resp.DecodeData(out); err != nil {
		return &BridgeError{Kind: KindProtocol, Method: method, Err: err}
	}
	return nil
}

// ensureConn returns the live connection, dialing if there is none.
func (c *Client) ensureConn(ctx context.Context, method string) (*websocket.Conn, error) {
	c.mu.Lock()
	if c.state == protocol.StateReady && c.conn != nil {
		conn := c.conn
		c.mu.Unlock()
		return conn, nil
	}
	c.state = protocol.StateConnecting
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL(), nil)
	if err != nil {
		c.mu.Lock()
		c.state = protocol.StateDisconnected
		c.mu.Unlock()
		c.transportFaults.Add(1)
		return nil, &BridgeError{Kind: KindConnection, Method: method, Err: err}
	}

	c.mu.Lock()
	c.conn = conn
	c.state = protocol.StateReady
	c.mu.Unlock()
	c.dials.Add(1)

	c.logger.Debug("bridge connected", "url", c.cfg.URL())
	return conn, nil
}

// fault discards the connection after a transport failure.
func (c *Client) fault(method string, err error) error {
	c.teardown()

	if isTimeout(err) {
		c.timeouts.Add(1)
		c.logger.Warn("bridge request timed out, connection reset",
			"method", method,
			"timeout", c.cfg.Timeout,
		)
		return &BridgeError{Kind: KindTimeout, Method: method, Err: err}
	}

	c.transportFaults.Add(1)
	c.logger.Warn("bridge transport error, connection reset",
		"method", method,
		"error", err,
	)
	return &BridgeError{Kind: KindConnection, Method: method, Err: err}
}

// teardown closes the connection and returns to Disconnected.
func (c *Client) teardown() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = protocol.StateDisconnected
	c.engineConnected = false
	c.mu.Unlock()

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(100*time.Millisecond),
		)
		conn.Close()
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
