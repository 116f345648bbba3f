package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	UART      UARTConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// UARTConfig holds the device table and session tuning.
type UARTConfig struct {
	// PolicyFile is the label policy table (.yaml, .yml or .toml).
	PolicyFile string `envconfig:"UART_POLICY_FILE" default:"/etc/uartd/policy.yaml"`
	// Devices maps device index (position) to a path, "pty" or "loopback".
	Devices []string `envconfig:"UART_DEVICES" default:"/dev/ttyS0"`
	// DefaultBaud is used when a device is opened by a session without a
	// baudrate attribute.
	DefaultBaud uint `envconfig:"UART_DEFAULT_BAUD" default:"115200"`
	// IOBufferSize is the per-session shared buffer capacity.
	IOBufferSize int `envconfig:"UART_IO_BUFFER_SIZE" default:"4096"`
	// RxBufferSize bounds the per-device receive queue.
	RxBufferSize int `envconfig:"UART_RX_BUFFER_SIZE" default:"65536"`
	// DetectTimeout bounds the terminal size handshake.
	DetectTimeout time.Duration `envconfig:"UART_DETECT_TIMEOUT" default:"2s"`
	// PollInterval is the fallback tick while waiting for device input.
	PollInterval time.Duration `envconfig:"UART_POLL_INTERVAL" default:"50ms"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		UART: UARTConfig{
			PolicyFile:    "/etc/uartd/policy.yaml",
			Devices:       []string{"/dev/ttyS0"},
			DefaultBaud:   115200,
			IOBufferSize:  4096,
			RxBufferSize:  65536,
			DetectTimeout: 2 * time.Second,
			PollInterval:  50 * time.Millisecond,
		},
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if len(c.UART.Devices) == 0 {
		return fmt.Errorf("config: UART_DEVICES must name at least one device")
	}
	for i, dev := range c.UART.Devices {
		if dev == "" {
			return fmt.Errorf("config: UART_DEVICES entry %d is empty", i)
		}
	}
	if c.UART.IOBufferSize <= 0 {
		return fmt.Errorf("config: UART_IO_BUFFER_SIZE must be positive, got %d", c.UART.IOBufferSize)
	}
	if c.UART.RxBufferSize <= 0 {
		return fmt.Errorf("config: UART_RX_BUFFER_SIZE must be positive, got %d", c.UART.RxBufferSize)
	}
	if c.UART.DetectTimeout <= 0 {
		return fmt.Errorf("config: UART_DETECT_TIMEOUT must be positive, got %s", c.UART.DetectTimeout)
	}
	if c.UART.PollInterval <= 0 {
		return fmt.Errorf("config: UART_POLL_INTERVAL must be positive, got %s", c.UART.PollInterval)
	}
	return nil
}

// Addr returns the listen address of the HTTP server.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}
