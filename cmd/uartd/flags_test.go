package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/uartd/internal/infrastructure/config"
)

func TestParseFlagsKeepsDefaults(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, parseFlags(nil, cfg))
	assert.Equal(t, config.Default(), cfg)
}

func TestParseFlagsOverrides(t *testing.T) {
	cfg := config.Default()
	err := parseFlags([]string{
		"-p", "9090",
		"--dev",
		"--policy", "/tmp/p.toml",
		"-d", "pty", "-d", "/dev/ttyUSB0",
		"--baud", "9600",
		"--detect-timeout", "500ms",
		"--rate-limit=false",
	}, cfg)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, "/tmp/p.toml", cfg.UART.PolicyFile)
	assert.Equal(t, []string{"pty", "/dev/ttyUSB0"}, cfg.UART.Devices)
	assert.Equal(t, uint(9600), cfg.UART.DefaultBaud)
	assert.Equal(t, 500*time.Millisecond, cfg.UART.DetectTimeout)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestParseFlagsValidates(t *testing.T) {
	assert.Error(t, parseFlags([]string{"--buffer-size", "0"}, config.Default()))
	assert.Error(t, parseFlags([]string{"--bogus"}, config.Default()))
}
