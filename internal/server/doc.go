// Package server implements the engine side of the process bridge.
//
// The Server:
//   - Binds the bridge endpoint; a bind failure is the only fatal error
//   - Reads request frames on per-connection goroutines
//   - Funnels every frame through one processing loop that owns the engine,
//     so the engine never sees two calls at once
//   - Replies exactly once per frame, turning unknown methods, bad params and
//     engine failures into success=false envelopes
//
// A nil engine answers with fixed stub payloads, which is how the bridge is
// exercised without the legacy component installed.
package server
