package broker

import "errors"

// Errors
var (
	ErrInvalidOrder  = errors.New("invalid order")
	ErrInvalidCandle = errors.New("invalid candle")
	ErrRejected      = errors.New("rejected by broker")
	ErrNotConnected  = errors.New("broker not connected")
)
