// Package ws streams session notifications over WebSocket.
//
// A client connected to /sessions/:id/stream receives the session's
// connected and read-available notifications as JSON events. The bytes
// themselves still move through the HTTP dataspace endpoints.
//
// Message Types (Client → Server):
//   - subscribe: re-register for read-available events; fires at once if
//     input is already pending
//   - ping: keep-alive ping
//
// Message Types (Server → Client):
//   - connected: session is usable, carries the detected size
//   - read_avail: the UART has input pending
//   - pong: reply to ping
//   - closed: the session was closed
//   - error: unknown message type
//
// Example Usage:
//
//	handler := ws.NewHandler(resolver.Registry(), metrics, logger)
//	router.GET("/sessions/:id/stream", handler.Stream)
package ws
