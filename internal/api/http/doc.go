// Package http provides the gin handlers for the uartd session API.
//
// Sessions are created from the label the trusted front-end passes in the
// X-Session-Label header. Data moves through the session dataspace: clients
// PUT bytes into it and ask the session to write them to the UART, or ask the
// session to read from the UART into it and GET the bytes back.
//
// Status mapping:
//   - 503: the label has no usable policy or the device is held exclusively
//   - 502: the driver could not open the device
//   - 404: unknown session
//   - 400: malformed input
package http
