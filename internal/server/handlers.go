package server

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/broker-bridge/internal/protocol"
)

type handlerFunc func(ctx context.Context, req protocol.Request) (any, error)

// registry maps every catalogue method to its handler.
func (s *Server) registry() map[string]handlerFunc {
	return map[string]handlerFunc{
		protocol.MethodPing:              s.handlePing,
		protocol.MethodConnect:           s.handleConnect,
		protocol.MethodDisconnect:        s.handleDisconnect,
		protocol.MethodGetBalance:        s.handleGetBalance,
		protocol.MethodGetPositions:      s.handleGetPositions,
		protocol.MethodSubmitOrder:       s.handleSubmitOrder,
		protocol.MethodCancelOrder:       s.handleCancelOrder,
		protocol.MethodGetHistoricalData: s.handleGetHistoricalData,
	}
}

func (s *Server) handlePing(ctx context.Context, req protocol.Request) (any, error) {
	return protocol.PingResult{Pong: true, Timestamp: protocol.FormatTime(time.Now())}, nil
}

func (s *Server) handleConnect(ctx context.Context, req protocol.Request) (any, error) {
	s.logger.Info("engine connect requested")
	if s.engine == nil {
		return protocol.ConnectResult{Connected: true}, nil
	}
	return protocol.ConnectResult{Connected: s.engine.Connect(ctx)}, nil
}

func (s *Server) handleDisconnect(ctx context.Context, req protocol.Request) (any, error) {
	s.logger.Info("engine disconnect requested")
	if s.engine != nil {
		s.engine.Disconnect(ctx)
	}
	return protocol.DisconnectResult{Disconnected: true}, nil
}

func (s *Server) handleGetBalance(ctx context.Context, req protocol.Request) (any, error) {
	if s.engine == nil {
		return protocol.BalanceResult{Balance: decimal.Zero, Currency: s.cfg.Currency}, nil
	}
	balance, err := s.engine.GetBalance(ctx)
	if err != nil {
		return nil, err
	}
	return protocol.BalanceResult{Balance: balance, Currency: s.cfg.Currency}, nil
}

func (s *Server) handleGetPositions(ctx context.Context, req protocol.Request) (any, error) {
	records := []protocol.PositionRecord{}
	if s.engine == nil {
		return records, nil
	}
	positions, err := s.engine.GetPositions(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range positions {
		records = append(records, protocol.NewPositionRecord(p))
	}
	return records, nil
}

func (s *Server) handleSubmitOrder(ctx context.Context, req protocol.Request) (any, error) {
	var params protocol.OrderParams
	if err := req.DecodeParams(&params); err != nil {
		return nil, err
	}
	order, err := params.ToOrder()
	if err != nil {
		return nil, err
	}

	s.logger.Info("order submit requested",
		"symbol", order.Symbol,
		"side", order.Side,
		"type", order.Type,
		"quantity", order.Quantity,
	)

	if s.engine == nil {
		return protocol.OrderResult{OrderID: StubOrderID, Status: protocol.StatusSubmitted}, nil
	}
	id, err := s.engine.SubmitOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	return protocol.OrderResult{OrderID: id, Status: protocol.StatusSubmitted}, nil
}

func (s *Server) handleCancelOrder(ctx context.Context, req protocol.Request) (any, error) {
	var params protocol.CancelParams
	if err := req.DecodeParams(&params); err != nil {
		return nil, err
	}
	if params.OrderID == "" {
		return nil, fmt.Errorf("%w: order_id is required", protocol.ErrMalformed)
	}

	s.logger.Info("order cancel requested", "order_id", params.OrderID)

	if s.engine == nil {
		return protocol.CancelResult{OrderID: params.OrderID, Cancelled: true}, nil
	}
	cancelled, err := s.engine.CancelOrder(ctx, params.OrderID)
	if err != nil {
		return nil, err
	}
	return protocol.CancelResult{OrderID: params.OrderID, Cancelled: cancelled}, nil
}

func (s *Server) handleGetHistoricalData(ctx context.Context, req protocol.Request) (any, error) {
	var params protocol.HistoryParams
	if err := req.DecodeParams(&params); err != nil {
		return nil, err
	}
	start, end, interval, err := params.Range()
	if err != nil {
		return nil, err
	}

	s.logger.Info("historical data requested",
		"symbol", params.Symbol,
		"start", params.StartDate,
		"end", params.EndDate,
		"interval", interval,
	)

	records := []protocol.CandleRecord{}
	if s.engine == nil {
		return records, nil
	}
	candles, err := s.engine.GetHistoricalData(ctx, params.Symbol, start, end, interval)
	if err != nil {
		return nil, err
	}
	for _, c := range candles {
		records = append(records, protocol.NewCandleRecord(c))
	}
	return records, nil
}
