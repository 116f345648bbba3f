package main

import (
	"github.com/spf13/pflag"

	"github.com/GriffinCanCode/uartd/internal/infrastructure/config"
)

// parseFlags applies command line overrides on top of the environment
// configuration in cfg.
func parseFlags(args []string, cfg *config.Config) error {
	fs := pflag.NewFlagSet("uartd", pflag.ContinueOnError)

	fs.StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "listen host")
	fs.StringVarP(&cfg.Server.Port, "port", "p", cfg.Server.Port, "listen port")
	fs.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.Logging.Development, "dev", cfg.Logging.Development, "development logging")
	fs.BoolVar(&cfg.RateLimit.Enabled, "rate-limit", cfg.RateLimit.Enabled, "per-client rate limiting")
	fs.StringVarP(&cfg.UART.PolicyFile, "policy", "c", cfg.UART.PolicyFile, "policy file (.yaml, .yml or .toml)")
	fs.StringSliceVarP(&cfg.UART.Devices, "device", "d", cfg.UART.Devices, "device by index: a path, pty or loopback (repeatable)")
	fs.UintVar(&cfg.UART.DefaultBaud, "baud", cfg.UART.DefaultBaud, "baud rate for devices opened without one")
	fs.IntVar(&cfg.UART.IOBufferSize, "buffer-size", cfg.UART.IOBufferSize, "per-session I/O buffer size")
	fs.DurationVar(&cfg.UART.DetectTimeout, "detect-timeout", cfg.UART.DetectTimeout, "terminal size detection timeout")

	if err := fs.Parse(args); err != nil {
		return err
	}
	return cfg.Validate()
}
