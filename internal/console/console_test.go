package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/uartd/internal/drivers/serial"
	"github.com/GriffinCanCode/uartd/internal/infrastructure/config"
	"github.com/GriffinCanCode/uartd/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/uartd/internal/infrastructure/server"
)

const testPolicy = `
policy:
  - label: "console"
    uart: 0
  - label: "broken"
    uart: 9
`

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestClient(t *testing.T) *Client {
	t.Helper()

	cfg := config.Default()
	cfg.Logging.Level = "error"
	cfg.RateLimit.Enabled = false
	cfg.UART.Devices = []string{serial.SpecLoopback}
	cfg.UART.IOBufferSize = 8
	cfg.UART.PolicyFile = filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(cfg.UART.PolicyFile, []byte(testPolicy), 0o600))

	srv, err := server.NewServer(cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	ccfg := DefaultClientConfig()
	ccfg.BaseURL = ts.URL
	ccfg.MaxRetries = 0
	client, err := NewClient(ccfg)
	require.NoError(t, err)
	return client
}

func TestNewClientRejectsBadURL(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.BaseURL = "ftp://example.com"
	_, err := NewClient(cfg)
	assert.Error(t, err)
}

func TestCreateSessionRejected(t *testing.T) {
	client := newTestClient(t)

	_, err := client.CreateSession(context.Background(), "stranger", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, "no_policy", apiErr.Reason)

	// policy rejections are answers, not outages
	assert.Equal(t, resilience.StateClosed, client.BreakerState())
}

func TestCreateSessionDriverFailure(t *testing.T) {
	client := newTestClient(t)

	_, err := client.CreateSession(context.Background(), "broken", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, uint32(1), client.breaker.Counts().ConsecutiveFailures)
}

func TestSendAndDrainChunks(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	con, err := Open(ctx, client, "console", map[string]string{"mode": "test"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, con.Session().BufferSize)

	// longer than the 8 byte buffer
	msg := "the quick brown fox"
	require.NoError(t, con.Send(ctx, []byte(msg)))

	var out bytes.Buffer
	assert.Eventually(t, func() bool {
		_, err := con.Drain(ctx, &out)
		return err == nil && out.Len() >= len(msg)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, msg, out.String())

	require.NoError(t, con.Close(ctx))
	var apiErr *APIError
	require.ErrorAs(t, con.Close(ctx), &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestRunEchoesUntilEscape(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	con, err := Open(ctx, client, "console", nil, nil)
	require.NoError(t, err)

	in, feed := io.Pipe()
	out := &syncBuffer{}

	done := make(chan error, 1)
	go func() { done <- con.Run(ctx, in, out) }()

	_, err = feed.Write([]byte("hello\r"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return out.String() == "hello\r"
	}, 2*time.Second, 10*time.Millisecond)

	_, err = feed.Write([]byte{'!', EscapeByte, 'x'})
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("console did not exit on escape")
	}

	// bytes typed before the escape are still delivered
	assert.Eventually(t, func() bool {
		_, _ = con.Drain(ctx, out)
		return out.String() == "hello\r!"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunEndsWhenSessionCloses(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	con, err := Open(ctx, client, "console", nil, nil)
	require.NoError(t, err)

	in, _ := io.Pipe()
	done := make(chan error, 1)
	go func() { done <- con.Run(ctx, in, io.Discard) }()

	// give the stream a moment to attach
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, con.Close(ctx))

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, ErrSessionClosed), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("console did not notice the closed session")
	}
}
