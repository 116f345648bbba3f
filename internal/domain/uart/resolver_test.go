package uart

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/uartd/internal/domain/policy"
	"github.com/GriffinCanCode/uartd/internal/infrastructure/monitoring"
)

const testPolicy = `
policy:
  - label: "console"
    uart: 0
    baudrate: 115200
    detect_size: "yes"
  - label: "plain"
    uart: 2
  - label: "no-uart"
    baudrate: 9600
  - label: "bad-uart"
    uart: "second"
  - label: "bad-baud"
    uart: 1
    baudrate: fast
  - label: "bad-access"
    uart: 1
    access: mine
  - label_prefix: "logger ->"
    uart: 5
    access: exclusive
  - label_prefix: "shell ->"
    uart: 5
`

func newTestResolver(t *testing.T, src string) (*Resolver, *fakeFactory) {
	t.Helper()
	table, err := policy.Parse([]byte(src), policy.FormatYAML)
	require.NoError(t, err)

	f := &fakeFactory{prepare: func(d *fakeDriver) {
		d.respond[queryCursor] = []byte("\x1b[24;80R")
	}}
	r := NewResolver(f, table, nil)
	t.Cleanup(func() { _ = r.Shutdown() })
	return r, f
}

func TestResolveDefaults(t *testing.T) {
	r, _ := newTestResolver(t, testPolicy)

	params, access, err := r.Resolve("plain")
	require.NoError(t, err)
	assert.Equal(t, Params{Index: 2, BaudRate: 0, DetectSize: false}, params)
	assert.Equal(t, AccessShared, access)

	params, _, err = r.Resolve("console")
	require.NoError(t, err)
	assert.Equal(t, Params{Index: 0, BaudRate: 115200, DetectSize: true}, params)
}

func TestCreateSession(t *testing.T) {
	r, f := newTestResolver(t, testPolicy)

	s, err := r.Create(context.Background(), Request{Label: "console", Args: map[string]string{"ram_quota": "8K"}})
	require.NoError(t, err)

	assert.Equal(t, createCall{index: 0, baud: 115200}, f.calls[0])
	assert.Equal(t, Size{Width: 80, Height: 24}, s.Size())
	assert.Equal(t, "console", s.Label())
	assert.Equal(t, "8K", s.Args()["ram_quota"])

	got, ok := r.Registry().Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Claims().Holders(0))
}

func TestCreateRejections(t *testing.T) {
	tests := []struct {
		label  string
		cause  error
		reason string
	}{
		{label: "unknown", cause: ErrNoPolicy, reason: "no_policy"},
		{label: "no-uart", cause: ErrMissingAttribute, reason: "missing_attribute"},
		{label: "bad-uart", cause: ErrInvalidAttribute, reason: "invalid_attribute"},
		{label: "bad-baud", cause: ErrInvalidAttribute, reason: "invalid_attribute"},
		{label: "bad-access", cause: ErrInvalidAttribute, reason: "invalid_attribute"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			r, f := newTestResolver(t, testPolicy)
			m := monitoring.NewMetrics()
			r.WithMetrics(m)

			s, err := r.Create(context.Background(), Request{Label: tt.label})
			assert.Nil(t, s)
			assert.ErrorIs(t, err, ErrUnavailable)
			assert.ErrorIs(t, err, tt.cause)

			var uerr *UnavailableError
			require.True(t, errors.As(err, &uerr))
			assert.Equal(t, tt.label, uerr.Label)
			assert.Equal(t, tt.reason, uerr.Reason())

			assert.Zero(t, f.callCount())
			assert.Zero(t, r.Registry().Len())
			assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionRejections.WithLabelValues(tt.reason)))
		})
	}
}

func TestNoPolicyNeverFallsBack(t *testing.T) {
	r, f := newTestResolver(t, "policy:\n  - label: only\n    uart: 0\n")

	_, err := r.Create(context.Background(), Request{Label: ""})
	assert.ErrorIs(t, err, ErrNoPolicy)
	assert.Zero(t, f.callCount())
}

func TestExclusiveAccess(t *testing.T) {
	r, _ := newTestResolver(t, testPolicy)
	ctx := context.Background()

	logger, err := r.Create(ctx, Request{Label: "logger -> net"})
	require.NoError(t, err)

	_, err = r.Create(ctx, Request{Label: "shell -> sh"})
	assert.ErrorIs(t, err, ErrDeviceBusy)
	_, err = r.Create(ctx, Request{Label: "logger -> fs"})
	assert.ErrorIs(t, err, ErrDeviceBusy)

	require.NoError(t, r.Close(logger.ID()))
	assert.Zero(t, r.Claims().Holders(5))

	sh1, err := r.Create(ctx, Request{Label: "shell -> a"})
	require.NoError(t, err)
	sh2, err := r.Create(ctx, Request{Label: "shell -> b"})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Claims().Holders(5))

	_, err = r.Create(ctx, Request{Label: "logger -> net"})
	assert.ErrorIs(t, err, ErrDeviceBusy)

	require.NoError(t, sh1.Close())
	require.NoError(t, sh2.Close())
	assert.Zero(t, r.Registry().Len())
}

func TestFactoryFailureReleasesClaim(t *testing.T) {
	r, f := newTestResolver(t, testPolicy)
	f.err = errNoDevice

	_, err := r.Create(context.Background(), Request{Label: "logger -> net"})
	assert.ErrorIs(t, err, errNoDevice)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, r.Claims().Holders(5))
	assert.Zero(t, r.Registry().Len())
}

func TestRegistryCloseUnknown(t *testing.T) {
	r, _ := newTestResolver(t, testPolicy)

	err := r.Close("sess_missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistryListOrder(t *testing.T) {
	r, _ := newTestResolver(t, testPolicy)
	ctx := context.Background()

	a, err := r.Create(ctx, Request{Label: "plain"})
	require.NoError(t, err)
	b, err := r.Create(ctx, Request{Label: "plain"})
	require.NoError(t, err)

	list := r.Registry().List()
	require.Len(t, list, 2)
	assert.Equal(t, a.ID(), list[0].ID())
	assert.Equal(t, b.ID(), list[1].ID())

	require.NoError(t, r.Shutdown())
	assert.Zero(t, r.Registry().Len())
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
}

func TestReload(t *testing.T) {
	r, _ := newTestResolver(t, testPolicy)
	ctx := context.Background()

	kept, err := r.Create(ctx, Request{Label: "plain"})
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "policy.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[policy]]\nlabel = \"plain\"\nuart = 9\n"), 0o600))

	require.NoError(t, r.Reload(path))

	params, _, err := r.Resolve("plain")
	require.NoError(t, err)
	assert.Equal(t, uint(9), params.Index)
	assert.Equal(t, uint(2), kept.Params().Index)

	_, err = r.Create(ctx, Request{Label: "console"})
	assert.ErrorIs(t, err, ErrNoPolicy)

	assert.Error(t, r.Reload(filepath.Join(dir, "missing.toml")))
	assert.Equal(t, 1, r.Policies().Len())
}
