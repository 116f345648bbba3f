// Package main is the entry point for the uartd server.
//
// uartd hands out sessions on local UARTs to clients identified by a label.
// A policy file maps labels to a device index, baud rate, size detection and
// access mode.
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//
// Usage:
//
//	uartd --policy /etc/uartd/policy.yaml -d /dev/ttyS0 -d /dev/ttyUSB0
//
//	# Development mode (colored logs, debug level), pty device
//	uartd --dev -d pty
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
//   - SIGHUP: Reload the policy file
package main
