package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "HOST", "LOG_LEVEL", "LOG_DEV",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "RATE_LIMIT_ENABLED",
	"UART_POLICY_FILE", "UART_DEVICES", "UART_DEFAULT_BAUD",
	"UART_IO_BUFFER_SIZE", "UART_RX_BUFFER_SIZE", "UART_DETECT_TIMEOUT",
	"UART_POLL_INTERVAL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		if old, ok := os.LookupEnv(key); ok {
			os.Unsetenv(key)
			t.Cleanup(func() { os.Setenv(key, old) })
		}
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	// UART config
	assert.Equal(t, "/etc/uartd/policy.yaml", cfg.UART.PolicyFile)
	assert.Equal(t, []string{"/dev/ttyS0"}, cfg.UART.Devices)
	assert.Equal(t, uint(115200), cfg.UART.DefaultBaud)
	assert.Equal(t, 4096, cfg.UART.IOBufferSize)
	assert.Equal(t, 65536, cfg.UART.RxBufferSize)
	assert.Equal(t, 2*time.Second, cfg.UART.DetectTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.UART.PollInterval)

	assert.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefaultWithoutEnvironment(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	clearEnv(t)

	envVars := map[string]string{
		"PORT":                "9000",
		"HOST":                "127.0.0.1",
		"LOG_LEVEL":           "debug",
		"LOG_DEV":             "true",
		"RATE_LIMIT_RPS":      "500",
		"RATE_LIMIT_BURST":    "1000",
		"RATE_LIMIT_ENABLED":  "false",
		"UART_POLICY_FILE":    "/tmp/policy.toml",
		"UART_DEVICES":        "/dev/ttyUSB0,pty,loopback",
		"UART_DEFAULT_BAUD":   "9600",
		"UART_IO_BUFFER_SIZE": "1024",
		"UART_RX_BUFFER_SIZE": "2048",
		"UART_DETECT_TIMEOUT": "750ms",
		"UART_POLL_INTERVAL":  "20ms",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "/tmp/policy.toml", cfg.UART.PolicyFile)
	assert.Equal(t, []string{"/dev/ttyUSB0", "pty", "loopback"}, cfg.UART.Devices)
	assert.Equal(t, uint(9600), cfg.UART.DefaultBaud)
	assert.Equal(t, 1024, cfg.UART.IOBufferSize)
	assert.Equal(t, 2048, cfg.UART.RxBufferSize)
	assert.Equal(t, 750*time.Millisecond, cfg.UART.DetectTimeout)
	assert.Equal(t, 20*time.Millisecond, cfg.UART.PollInterval)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "non-numeric baud", key: "UART_DEFAULT_BAUD", val: "fast"},
		{name: "zero buffer", key: "UART_IO_BUFFER_SIZE", val: "0"},
		{name: "negative rx buffer", key: "UART_RX_BUFFER_SIZE", val: "-1"},
		{name: "zero timeout", key: "UART_DETECT_TIMEOUT", val: "0s"},
		{name: "bad duration", key: "UART_DETECT_TIMEOUT", val: "soon"},
		{name: "zero poll interval", key: "UART_POLL_INTERVAL", val: "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			cfg, err := Load()
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestValidateDevices(t *testing.T) {
	cfg := Default()
	cfg.UART.Devices = nil
	assert.Error(t, cfg.Validate())

	cfg.UART.Devices = []string{"/dev/ttyS0", ""}
	assert.Error(t, cfg.Validate())
}
