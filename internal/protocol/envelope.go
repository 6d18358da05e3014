package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Methods in the bridge catalogue.
const (
	MethodPing              = "ping"
	MethodConnect           = "connect"
	MethodDisconnect        = "disconnect"
	MethodGetBalance        = "get_balance"
	MethodGetPositions      = "get_positions"
	MethodSubmitOrder       = "submit_order"
	MethodCancelOrder       = "cancel_order"
	MethodGetHistoricalData = "get_historical_data"
)

// Methods returns the full method catalogue.
func Methods() []string {
	return []string{
		MethodPing,
		MethodConnect,
		MethodDisconnect,
		MethodGetBalance,
		MethodGetPositions,
		MethodSubmitOrder,
		MethodCancelOrder,
		MethodGetHistoricalData,
	}
}

// Error codes carried in Response.Code. The field is optional; peers that
// do not set it are treated as CodeEngineError on failure.
const (
	CodeUnknownMethod = "unknown_method"
	CodeBadRequest    = "bad_request"
	CodeEngineError   = "engine_error"
)

// ErrMalformed marks a frame or payload that could not be decoded.
var ErrMalformed = errors.New("malformed envelope")

// Request is a call from the bridge client to the server.
type Request struct {
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params"`
	RequestID string          `json:"request_id"`
}

// Response is the server's single reply to a Request.
type Response struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *string         `json:"error"`
	RequestID string          `json:"request_id"`
	Code      string          `json:"code,omitempty"`
}

// NewRequest builds a request. params may be nil, a map or a params struct.
func NewRequest(method, requestID string, params any) (Request, error) {
	raw := json.RawMessage(`{}`)
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return Request{}, fmt.Errorf("marshal params for %s: %w", method, err)
		}
		raw = b
	}
	return Request{Method: method, Params: raw, RequestID: requestID}, nil
}

// DecodeRequest parses a request frame.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if req.Method == "" {
		return req, fmt.Errorf("%w: method is required", ErrMalformed)
	}
	if len(req.Params) == 0 || string(req.Params) == "null" {
		req.Params = json.RawMessage(`{}`)
	}
	return req, nil
}

// DecodeParams unmarshals the request's params into v.
func (r Request) DecodeParams(v any) error {
	if err := json.Unmarshal(r.Params, v); err != nil {
		return fmt.Errorf("%w: params for %s: %v", ErrMalformed, r.Method, err)
	}
	return nil
}

// OK builds a success response carrying data.
func OK(requestID string, data any) (Response, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return Response{}, fmt.Errorf("marshal result: %w", err)
	}
	return Response{Success: true, Data: b, RequestID: requestID}, nil
}

// Fail builds a failure response.
func Fail(requestID, code, message string) Response {
	return Response{
		Success:   false,
		Data:      json.RawMessage(`null`),
		Error:     &message,
		RequestID: requestID,
		Code:      code,
	}
}

// ErrorMessage returns the failure message, or "" when none was sent.
func (r Response) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// DecodeResponse parses a response frame.
func DecodeResponse(data []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return resp, nil
}

// DecodeData unmarshals the response payload into v.
func (r Response) DecodeData(v any) error {
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return fmt.Errorf("%w: empty data", ErrMalformed)
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("%w: data: %v", ErrMalformed, err)
	}
	return nil
}
