package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/rickgao/broker-bridge/internal/broker"
	"github.com/rickgao/broker-bridge/internal/protocol"
)

// fakeEngine is a scripted broker.Broker.
type fakeEngine struct {
	mu       sync.Mutex
	calls    []string
	inFlight int
	maxSeen  int

	balance   decimal.Decimal
	submitErr error
	panicOn   string
	delay     time.Duration
}

func (f *fakeEngine) enter(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	panicOn := f.panicOn
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if panicOn == name {
		f.exit()
		panic("engine exploded")
	}
}

func (f *fakeEngine) exit() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeEngine) Connect(ctx context.Context) bool {
	f.enter("connect")
	defer f.exit()
	return true
}

func (f *fakeEngine) Disconnect(ctx context.Context) {
	f.enter("disconnect")
	defer f.exit()
}

func (f *fakeEngine) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	f.enter("get_balance")
	defer f.exit()
	return f.balance, nil
}

func (f *fakeEngine) GetPositions(ctx context.Context) ([]broker.Position, error) {
	f.enter("get_positions")
	defer f.exit()
	return []broker.Position{
		{Symbol: "005930", Quantity: 100, AvgPrice: decimal.NewFromInt(70000), CurrentPrice: decimal.NewFromInt(72000), UnrealizedPnL: decimal.NewFromInt(200000)},
	}, nil
}

func (f *fakeEngine) SubmitOrder(ctx context.Context, o broker.Order) (string, error) {
	f.enter("submit_order")
	defer f.exit()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "ENGINE-1", nil
}

func (f *fakeEngine) CancelOrder(ctx context.Context, id string) (bool, error) {
	f.enter("cancel_order")
	defer f.exit()
	return id == "ENGINE-1", nil
}

func (f *fakeEngine) GetHistoricalData(ctx context.Context, symbol string, start, end time.Time, interval broker.Interval) ([]broker.Candle, error) {
	f.enter("get_historical_data")
	defer f.exit()
	return []broker.Candle{
		{Timestamp: start, Open: decimal.NewFromInt(1), High: decimal.NewFromInt(2), Low: decimal.NewFromInt(1), Close: decimal.NewFromInt(2), Volume: 10},
	}, nil
}

func startServer(t *testing.T, engine broker.Broker) *Server {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.PollInterval = 20 * time.Millisecond

	srv := New(cfg, engine, nil)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Stop(ctx)
	})
	return srv
}

func dial(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+srv.Path(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, frame string) protocol.Response {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	resp, err := protocol.DecodeResponse(data)
	if err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return resp
}

func request(method, id, params string) string {
	if params == "" {
		params = "{}"
	}
	return fmt.Sprintf(`{"method":%q,"params":%s,"request_id":%q}`, method, params, id)
}

func TestPing(t *testing.T) {
	srv := startServer(t, nil)
	conn := dial(t, srv)

	resp := roundTrip(t, conn, request("ping", "r1", ""))
	if !resp.Success || resp.RequestID != "r1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	var res protocol.PingResult
	if err := resp.DecodeData(&res); err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if !res.Pong || res.Timestamp == "" {
		t.Errorf("unexpected ping result: %+v", res)
	}
}

func TestUnknownMethodThenPing(t *testing.T) {
	srv := startServer(t, nil)
	conn := dial(t, srv)

	resp := roundTrip(t, conn, request("frobnicate", "r1", ""))
	if resp.Success {
		t.Fatal("expected success=false")
	}
	if resp.ErrorMessage() == "" || !strings.Contains(resp.ErrorMessage(), "unknown method") {
		t.Errorf("error = %q, want unknown method message", resp.ErrorMessage())
	}
	if resp.Code != protocol.CodeUnknownMethod {
		t.Errorf("code = %q, want %q", resp.Code, protocol.CodeUnknownMethod)
	}
	if resp.RequestID != "r1" {
		t.Errorf("request_id = %q, want r1", resp.RequestID)
	}

	resp = roundTrip(t, conn, request("ping", "r2", ""))
	if !resp.Success || resp.RequestID != "r2" {
		t.Errorf("follow-up ping failed: %+v", resp)
	}
}

func TestMalformedFrame(t *testing.T) {
	srv := startServer(t, nil)
	conn := dial(t, srv)

	resp := roundTrip(t, conn, "not json at all")
	if resp.Success || resp.Code != protocol.CodeBadRequest {
		t.Errorf("unexpected response: %+v", resp)
	}

	resp = roundTrip(t, conn, request("submit_order", "r2", `{"symbol":"005930","quantity":"ten"}`))
	if resp.Success || resp.Code != protocol.CodeBadRequest || resp.RequestID != "r2" {
		t.Errorf("unexpected response: %+v", resp)
	}

	resp = roundTrip(t, conn, request("cancel_order", "r3", `{}`))
	if resp.Success || resp.Code != protocol.CodeBadRequest {
		t.Errorf("unexpected response: %+v", resp)
	}

	if got := srv.Stats().Failures; got != 3 {
		t.Errorf("Failures = %d, want 3", got)
	}
}

func TestStubResponses(t *testing.T) {
	srv := startServer(t, nil)
	conn := dial(t, srv)

	tests := []struct {
		method string
		params string
		want   string
	}{
		{method: "connect", want: `{"connected":true}`},
		{method: "get_balance", want: `{"balance":"0","currency":"KRW"}`},
		{method: "get_positions", want: `[]`},
		{
			method: "submit_order",
			params: `{"symbol":"005930","side":"buy","order_type":"limit","quantity":10,"price":"70000"}`,
			want:   `{"order_id":"MOCK_ORDER_ID","status":"submitted"}`,
		},
		{method: "cancel_order", params: `{"order_id":"42"}`, want: `{"order_id":"42","cancelled":true}`},
		{
			method: "get_historical_data",
			params: `{"symbol":"005930","start_date":"2024-01-01T00:00:00","end_date":"2024-01-31T00:00:00","interval":"1d"}`,
			want:   `[]`,
		},
		{method: "disconnect", want: `{"disconnected":true}`},
	}

	for i, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			id := fmt.Sprintf("r%d", i)
			resp := roundTrip(t, conn, request(tt.method, id, tt.params))
			if !resp.Success {
				t.Fatalf("failed: %s", resp.ErrorMessage())
			}
			if resp.RequestID != id {
				t.Errorf("request_id = %q, want %q", resp.RequestID, id)
			}
			if string(resp.Data) != tt.want {
				t.Errorf("data = %s, want %s", resp.Data, tt.want)
			}
		})
	}
}

func TestEngineErrorKeepsServing(t *testing.T) {
	engine := &fakeEngine{submitErr: fmt.Errorf("%w: insufficient funds", broker.ErrRejected)}
	srv := startServer(t, engine)
	conn := dial(t, srv)

	resp := roundTrip(t, conn, request("submit_order", "r1", `{"symbol":"005930","side":"buy","order_type":"market","quantity":1,"price":null}`))
	if resp.Success || resp.Code != protocol.CodeEngineError {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !strings.Contains(resp.ErrorMessage(), "insufficient funds") {
		t.Errorf("error = %q, want engine message", resp.ErrorMessage())
	}

	resp = roundTrip(t, conn, request("get_positions", "r2", ""))
	if !resp.Success {
		t.Fatalf("get_positions failed: %s", resp.ErrorMessage())
	}
	var records []protocol.PositionRecord
	if err := resp.DecodeData(&records); err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if len(records) != 1 || records[0].Symbol != "005930" || !records[0].UnrealizedPnL.Equal(decimal.NewFromInt(200000)) {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestEnginePanicRecovered(t *testing.T) {
	engine := &fakeEngine{panicOn: "get_balance"}
	srv := startServer(t, engine)
	conn := dial(t, srv)

	resp := roundTrip(t, conn, request("get_balance", "r1", ""))
	if resp.Success || !strings.Contains(resp.ErrorMessage(), "engine exploded") {
		t.Fatalf("unexpected response: %+v", resp)
	}

	resp = roundTrip(t, conn, request("ping", "r2", ""))
	if !resp.Success {
		t.Errorf("ping after panic failed: %+v", resp)
	}
}

func TestEngineAccessSerialized(t *testing.T) {
	engine := &fakeEngine{balance: decimal.NewFromInt(5), delay: 20 * time.Millisecond}
	srv := startServer(t, engine)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		conn := dial(t, srv)
		wg.Add(1)
		go func(i int, conn *websocket.Conn) {
			defer wg.Done()
			for j := 0; j < 3; j++ {
				id := fmt.Sprintf("c%d-%d", i, j)
				conn.SetReadDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, []byte(request("get_balance", id, ""))); err != nil {
					t.Errorf("write: %v", err)
					return
				}
				_, data, err := conn.ReadMessage()
				if err != nil {
					t.Errorf("read: %v", err)
					return
				}
				var resp protocol.Response
				json.Unmarshal(data, &resp)
				if resp.RequestID != id || !resp.Success {
					t.Errorf("unexpected response: %s", data)
				}
			}
		}(i, conn)
	}
	wg.Wait()

	engine.mu.Lock()
	defer engine.mu.Unlock()
	if engine.maxSeen != 1 {
		t.Errorf("max concurrent engine calls = %d, want 1", engine.maxSeen)
	}
	if len(engine.calls) != 12 {
		t.Errorf("engine calls = %d, want 12", len(engine.calls))
	}
}

func TestBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := DefaultConfig()
	cfg.Addr = ln.Addr().String()
	srv := New(cfg, nil, nil)

	if err := srv.Start(context.Background()); err == nil {
		t.Fatal("expected bind error")
	}
	if got := srv.Stats().State; got != "disconnected" {
		t.Errorf("State = %q, want disconnected", got)
	}
}

func TestStartTwice(t *testing.T) {
	srv := startServer(t, nil)
	if err := srv.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
	if got := srv.Stats().State; got != "ready" {
		t.Errorf("State = %q, want ready", got)
	}
}

func TestStopClosesConnections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	srv := New(cfg, nil, nil)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	conn := dial(t, srv)
	roundTrip(t, conn, request("ping", "r1", ""))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected read error after Stop")
	}
	if got := srv.Stats().State; got != "disconnected" {
		t.Errorf("State = %q, want disconnected", got)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	srv := New(cfg, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Stats().State != "ready" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
