package bridge

import (
	"errors"
	"fmt"

	"github.com/rickgao/broker-bridge/internal/broker"
)

// Errors
var (
	ErrConnection    = errors.New("bridge connection error")
	ErrTimeout       = errors.New("bridge request timeout")
	ErrRemote        = errors.New("bridge remote error")
	ErrProtocol      = errors.New("bridge protocol error")
	ErrConnectFailed = errors.New("bridge connect refused")
)

// Kind classifies a BridgeError.
type Kind int

const (
	// KindConnection: could not dial, or the connection broke mid-call.
	KindConnection Kind = iota + 1
	// KindTimeout: no response within the configured bound.
	KindTimeout
	// KindRemote: the engine rejected the request.
	KindRemote
	// KindProtocol: malformed envelope, unknown method or unusable payload.
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	case KindRemote:
		return "remote"
	case KindProtocol:
		return "protocol"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// BridgeError is the single error type returned by Client calls.
type BridgeError struct {
	Kind    Kind
	Method  string
	Message string // Server message, verbatim for KindRemote
	Err     error  // Underlying cause, if any
}

func (e *BridgeError) Error() string {
	switch e.Kind {
	case KindTimeout:
		return "request timeout: " + e.Method
	case KindConnection:
		return fmt.Sprintf("bridge connection error: %s: %v", e.Method, e.Err)
	default:
		msg := e.Message
		if msg == "" && e.Err != nil {
			msg = e.Err.Error()
		}
		return fmt.Sprintf("bridge %s error: %s: %s", e.Kind, e.Method, msg)
	}
}

func (e *BridgeError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels. Remote errors also match broker.ErrRejected.
func (e *BridgeError) Is(target error) bool {
	switch target {
	case ErrConnection:
		return e.Kind == KindConnection
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrRemote, broker.ErrRejected:
		return e.Kind == KindRemote
	case ErrProtocol:
		return e.Kind == KindProtocol
	}
	return false
}

// Transport returns true for failures that a retry after reconnecting may
// fix. Remote and protocol errors will repeat for the same request.
func (e *BridgeError) Transport() bool {
	return e.Kind == KindConnection || e.Kind == KindTimeout
}

// IsTransport reports whether err is a transport-level BridgeError.
func IsTransport(err error) bool {
	var be *BridgeError
	return errors.As(err, &be) && be.Transport()
}
