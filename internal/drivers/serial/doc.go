// Package serial implements uart.DriverFactory over real and virtual ports.
//
// Each configured device is one of:
//   - a device path such as /dev/ttyUSB0, opened with go.bug.st/serial (8N1)
//   - "pty": a pseudo-terminal pair; the slave path is logged so a terminal
//     emulator can attach
//   - "loopback": every written byte is echoed back as input
//
// A device is opened on the first Create for its index and closed when its
// last handle is closed. One reader goroutine per open device fills a bounded
// receive ring and fires every handle's availability callback.
package serial
