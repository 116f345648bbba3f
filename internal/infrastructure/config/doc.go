// Package config provides 12-factor configuration management for uartd.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags in cmd/uartd override environment variables.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Logging: Log level and output format
//   - RateLimit: Per-client rate limiting configuration
//   - UART: Device table, policy file, buffer sizes, detection timeout
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("serving %d devices on %s\n", len(cfg.UART.Devices), cfg.Server.Addr())
//
// Environment Variables:
//   - PORT, HOST
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - UART_POLICY_FILE, UART_DEVICES, UART_DEFAULT_BAUD
//   - UART_IO_BUFFER_SIZE, UART_RX_BUFFER_SIZE, UART_DETECT_TIMEOUT
//   - UART_POLL_INTERVAL
package config
