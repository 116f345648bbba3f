package uart

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/uartd/internal/infrastructure/monitoring"
)

func newTestSession(t *testing.T, opts ...Option) (*Session, *fakeDriver) {
	t.Helper()
	f := &fakeFactory{}
	s, err := NewSession(context.Background(), f, Params{Index: 1, BaudRate: 9600}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, f.last()
}

func TestNewSessionUsesFactory(t *testing.T) {
	f := &fakeFactory{}
	s, err := NewSession(context.Background(), f, Params{Index: 2, BaudRate: 38400})
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, 1, f.callCount())
	assert.Equal(t, createCall{index: 2, baud: 38400}, f.calls[0])
	assert.Equal(t, DefaultBufferSize, s.Dataspace().Cap())
	assert.Equal(t, Size{}, s.Size())
	assert.NotEmpty(t, s.ID())
}

func TestNewSessionFactoryError(t *testing.T) {
	f := &fakeFactory{err: errNoDevice}
	s, err := NewSession(context.Background(), f, Params{Index: 7})

	assert.Nil(t, s)
	assert.ErrorIs(t, err, errNoDevice)
}

func TestReadNothingAvailable(t *testing.T) {
	s, _ := newTestSession(t)

	assert.Zero(t, s.Read(100))
	assert.False(t, s.DataAvailable())
}

func TestReadStopsWhenInputTakenElsewhere(t *testing.T) {
	s, d := newTestSession(t)
	d.feed([]byte("ab"))
	d.mu.Lock()
	d.staleAvail = true
	d.mu.Unlock()

	assert.True(t, s.DataAvailable())
	assert.Equal(t, 2, s.Read(10))
	assert.Equal(t, []byte("ab"), s.Dataspace().Bytes(2))

	assert.Zero(t, s.Read(10))
}

func TestReadBounds(t *testing.T) {
	tests := []struct {
		name      string
		pending   int
		requested int
		want      int
	}{
		{name: "less pending than requested", pending: 5, requested: 10, want: 5},
		{name: "more pending than requested", pending: 10, requested: 3, want: 3},
		{name: "request beyond capacity", pending: 20, requested: 100, want: 16},
		{name: "negative request", pending: 5, requested: -4, want: 0},
		{name: "zero request", pending: 5, requested: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, d := newTestSession(t, WithBufferSize(16))
			in := make([]byte, tt.pending)
			for i := range in {
				in[i] = byte('a' + i)
			}
			d.feed(in)

			got := s.Read(tt.requested)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, in[:got], s.Dataspace().Bytes(got))
			assert.Equal(t, tt.pending > got, s.DataAvailable())
		})
	}
}

func TestWriteSendsBufferInOrder(t *testing.T) {
	s, d := newTestSession(t, WithBufferSize(8))
	s.Dataspace().Load([]byte("hello!!!"))

	s.Write(5)
	assert.Equal(t, []byte("hello"), d.written())

	s.Write(0)
	s.Write(-3)
	assert.Equal(t, []byte("hello"), d.written())
}

func TestWriteTruncatesToCapacity(t *testing.T) {
	m := monitoring.NewMetrics()
	s, d := newTestSession(t, WithBufferSize(8), WithMetrics(m))
	s.Dataspace().Load([]byte("abcdefgh"))

	s.Write(12)

	assert.Equal(t, []byte("abcdefgh"), d.written())
	assert.Equal(t, float64(4), testutil.ToFloat64(m.WriteTruncated))
	assert.Equal(t, float64(8), testutil.ToFloat64(m.BytesWritten))
}

func TestSetBaudRateForwards(t *testing.T) {
	s, d := newTestSession(t)

	s.SetBaudRate(115200)
	s.SetBaudRate(0)

	assert.Equal(t, []uint{115200, 0}, d.baud)
}

func TestOnConnectedFiresImmediately(t *testing.T) {
	s, _ := newTestSession(t)

	var fired atomic.Int32
	s.OnConnected(func() { fired.Add(1) })
	s.OnConnected(nil)

	assert.Equal(t, int32(1), fired.Load())
}

func TestOnReadAvailable(t *testing.T) {
	t.Run("fires synchronously when data is pending", func(t *testing.T) {
		s, d := newTestSession(t)
		d.feed([]byte("x"))

		var fired atomic.Int32
		s.OnReadAvailable(func() { fired.Add(1) })
		assert.Equal(t, int32(1), fired.Load())
	})

	t.Run("does not fire without data", func(t *testing.T) {
		s, _ := newTestSession(t)

		var fired atomic.Int32
		s.OnReadAvailable(func() { fired.Add(1) })
		assert.Zero(t, fired.Load())
	})

	t.Run("fires on new input", func(t *testing.T) {
		s, d := newTestSession(t)

		var fired atomic.Int32
		s.OnReadAvailable(func() { fired.Add(1) })
		d.feed([]byte("ab"))
		d.feed([]byte("c"))
		assert.Equal(t, int32(2), fired.Load())
	})

	t.Run("replacement drops the previous subscriber", func(t *testing.T) {
		s, d := newTestSession(t)

		var first, second atomic.Int32
		s.OnReadAvailable(func() { first.Add(1) })
		s.OnReadAvailable(func() { second.Add(1) })
		d.feed([]byte("x"))

		assert.Zero(t, first.Load())
		assert.Equal(t, int32(1), second.Load())
	})

	t.Run("nil unsubscribes", func(t *testing.T) {
		s, d := newTestSession(t)

		var fired atomic.Int32
		s.OnReadAvailable(func() { fired.Add(1) })
		s.OnReadAvailable(nil)
		d.feed([]byte("x"))

		assert.Zero(t, fired.Load())
	})

	t.Run("cancel drops its own subscriber", func(t *testing.T) {
		s, d := newTestSession(t)

		var fired atomic.Int32
		cancel := s.OnReadAvailable(func() { fired.Add(1) })
		cancel()
		d.feed([]byte("x"))

		assert.Zero(t, fired.Load())
	})

	t.Run("stale cancel keeps the newer subscriber", func(t *testing.T) {
		s, d := newTestSession(t)

		var first, second atomic.Int32
		cancelFirst := s.OnReadAvailable(func() { first.Add(1) })
		s.OnReadAvailable(func() { second.Add(1) })
		cancelFirst()
		d.feed([]byte("x"))

		assert.Zero(t, first.Load())
		assert.Equal(t, int32(1), second.Load())
	})
}

func TestAvailabilityWithoutSubscriberIsNoOp(t *testing.T) {
	s, d := newTestSession(t)

	assert.NotPanics(t, func() { d.feed([]byte("x")) })
	assert.True(t, s.DataAvailable())
}

func TestCloseReleasesResources(t *testing.T) {
	var hooks atomic.Int32
	s, d := newTestSession(t, WithCloseHook(func() { hooks.Add(1) }))

	var fired atomic.Int32
	s.OnReadAvailable(func() { fired.Add(1) })

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.True(t, s.Closed())
	assert.True(t, d.isClosed())
	assert.Equal(t, int32(1), hooks.Load())

	d.feed([]byte("late"))
	assert.Zero(t, fired.Load())
	assert.Zero(t, s.Read(4))
	assert.False(t, s.DataAvailable())
	assert.NotPanics(t, func() {
		s.Write(4)
		s.SetBaudRate(9600)
	})
}

func TestSessionMetrics(t *testing.T) {
	m := monitoring.NewMetrics()
	s, d := newTestSession(t, WithMetrics(m))

	d.feed([]byte("abc"))
	s.Read(10)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.BytesRead))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionsActive))

	require.NoError(t, s.Close())
	assert.Zero(t, testutil.ToFloat64(m.SessionsActive))
}
