// Package protocol defines the bridge wire format shared by client and server.
//
// Every frame is a UTF-8 JSON text message:
//
//	request:  {"method": "...", "params": {...}, "request_id": "..."}
//	response: {"success": true, "data": ..., "error": null, "request_id": "..."}
//
// Conventions:
//   - Decimals travel as JSON strings; decoders also accept JSON numbers
//   - Enums travel as their lowercase canonical value ("buy", "limit")
//   - Timestamps travel as RFC 3339; decoders also accept a zone-less ISO form
package protocol
