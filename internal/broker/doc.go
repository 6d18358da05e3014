// Package broker defines the Broker contract shared by every broker variant.
//
// Variants:
//   - bridge.Client: forwards each call to the legacy engine process
//   - paper.Broker: in-memory account, used directly or as the server's engine
//
// Conventions:
//   - Prices and balances: decimal.Decimal, never float64
//   - Position quantity: signed (positive = long, negative = short)
//   - Timestamps: time.Time, serialized as RFC 3339 on the wire
package broker
