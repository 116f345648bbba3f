// Package logging provides structured logging using uber/zap.
//
// Two presets are available:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Logs go to stderr so that a console attached to a pty or loopback device
// never interleaves log lines with device traffic.
//
// Example Usage:
//
//	logger, err := logging.FromConfig("info", false)
//	logger.Info("session created", zap.String("label", label), zap.Uint("uart", idx))
//	sessions := logger.Component("session")
package logging
