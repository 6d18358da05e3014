// Package bridge implements the client half of the process bridge.
//
// The Client runs inside the trading process and satisfies broker.Broker by
// turning every call into one request/response round trip with the bridge
// server, which owns the legacy engine:
//   - one WebSocket connection per Client, dialed lazily on first use
//   - strictly one outstanding request per connection, no pipelining
//   - a timeout or transport fault discards the connection; the next call dials again
//   - server-reported failures surface as *BridgeError and keep the connection
package bridge
