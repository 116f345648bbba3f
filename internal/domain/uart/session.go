package uart

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/uartd/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/uartd/internal/shared/id"
)

// Params are the per-session settings derived from a policy.
type Params struct {
	Index      uint `json:"uart"`
	BaudRate   uint `json:"baudrate"`
	DetectSize bool `json:"detect_size"`
}

// Session is one client's view of a UART.
//
// Operations are serialized. The driver callback path only touches the wake
// signal and the subscriber, never the session mutex.
type Session struct {
	mu     sync.Mutex
	closed bool

	id        id.SessionID
	label     string
	args      map[string]string
	params    Params
	createdAt time.Time

	buf        *IOBuffer
	driver     Driver
	size       Size
	wake       *signal
	subscriber atomic.Pointer[Notify]
	onClose    []func()

	logger  *zap.Logger
	metrics *monitoring.Metrics
}

type sessionOptions struct {
	id            id.SessionID
	label         string
	args          map[string]string
	bufferSize    int
	detectTimeout time.Duration
	pollInterval  time.Duration
	logger        *zap.Logger
	metrics       *monitoring.Metrics
	onClose       []func()
}

// Option configures a Session.
type Option func(*sessionOptions)

// WithID sets the session ID. A fresh ID is generated otherwise.
func WithID(sid id.SessionID) Option {
	return func(o *sessionOptions) { o.id = sid }
}

// WithLabel records the label the session was created for.
func WithLabel(label string) Option {
	return func(o *sessionOptions) { o.label = label }
}

// WithArgs records client-supplied session arguments.
func WithArgs(args map[string]string) Option {
	return func(o *sessionOptions) { o.args = args }
}

// WithBufferSize sets the IOBuffer capacity.
func WithBufferSize(n int) Option {
	return func(o *sessionOptions) { o.bufferSize = n }
}

// WithDetectTimeout bounds the size handshake.
func WithDetectTimeout(d time.Duration) Option {
	return func(o *sessionOptions) { o.detectTimeout = d }
}

// WithPollInterval sets the fallback tick used while waiting for input.
func WithPollInterval(d time.Duration) Option {
	return func(o *sessionOptions) { o.pollInterval = d }
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *sessionOptions) { o.logger = l }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(o *sessionOptions) { o.metrics = m }
}

// WithCloseHook registers fn to run once when the session closes.
func WithCloseHook(fn func()) Option {
	return func(o *sessionOptions) { o.onClose = append(o.onClose, fn) }
}

// NewSession allocates the I/O buffer, obtains a driver handle and, if
// requested, detects the terminal size. Detection is bounded by ctx and the
// detect timeout; failure leaves the size unknown and is not an error.
func NewSession(ctx context.Context, factory DriverFactory, params Params, opts ...Option) (*Session, error) {
	o := sessionOptions{
		bufferSize:    DefaultBufferSize,
		detectTimeout: DefaultDetectTimeout,
		pollInterval:  DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = id.NewSessionID()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.pollInterval <= 0 {
		o.pollInterval = DefaultPollInterval
	}

	s := &Session{
		id:        o.id,
		label:     o.label,
		args:      o.args,
		params:    params,
		createdAt: time.Now(),
		buf:       NewIOBuffer(o.bufferSize),
		wake:      newSignal(),
		onClose:   o.onClose,
		metrics:   o.metrics,
		logger: o.logger.With(
			zap.String("session_id", o.id.String()),
			zap.String("label", o.label),
			zap.Uint("uart", params.Index),
		),
	}

	driver, err := factory.Create(params.Index, params.BaudRate, s.charAvail)
	if err != nil {
		s.buf.release()
		return nil, fmt.Errorf("open uart %d: %w", params.Index, err)
	}
	s.driver = driver

	if params.DetectSize {
		detectCtx, cancel := context.WithTimeout(ctx, o.detectTimeout)
		detector := &SizeDetector{
			driver: driver,
			wake:   s.wake,
			poll:   o.pollInterval,
			logger: s.logger,
		}
		timer := monitoring.NewTimer()
		size, result := detector.Detect(detectCtx)
		cancel()
		s.size = size
		s.metrics.RecordDetection(result, timer.Elapsed())
	}

	s.metrics.SessionOpened()
	s.logger.Info("session created",
		zap.Uint("baudrate", params.BaudRate),
		zap.Bool("detect_size", params.DetectSize),
		zap.Uint("width", s.size.Width),
		zap.Uint("height", s.size.Height))

	return s, nil
}

// charAvail is the driver callback.
func (s *Session) charAvail() {
	s.wake.Broadcast()
	if n := s.subscriber.Load(); n != nil && *n != nil {
		(*n)()
	}
}

// ID returns the session ID.
func (s *Session) ID() id.SessionID { return s.id }

// Label returns the label the session was created for.
func (s *Session) Label() string { return s.label }

// Args returns the client-supplied session arguments.
func (s *Session) Args() map[string]string { return s.args }

// Params returns the resolved session parameters.
func (s *Session) Params() Params { return s.params }

// CreatedAt returns the construction time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Size returns the terminal size detected at construction.
func (s *Session) Size() Size { return s.size }

// Dataspace returns the shared I/O buffer.
func (s *Session) Dataspace() *IOBuffer { return s.buf }

// SetBaudRate forwards to the driver. The device is shared, so the new rate
// applies to every session on the same UART.
func (s *Session) SetBaudRate(bps uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.driver.SetBaudRate(bps)
	s.logger.Debug("baud rate changed", zap.Uint("baudrate", bps))
}

// DataAvailable reports whether the driver has input pending.
func (s *Session) DataAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	return s.driver.CharAvail()
}

// Read moves up to min(requested, Cap()) immediately available bytes into the
// I/O buffer starting at offset 0 and returns how many were moved. It never
// blocks. Bytes taken by another session on the same device in the meantime
// end the transfer early.
func (s *Session) Read(requested int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || requested <= 0 {
		return 0
	}
	limit := min(requested, s.buf.Cap())

	n := 0
	s.buf.fill(func(buf []byte) {
		for n < limit {
			c, ok := s.driver.TryGetChar()
			if !ok {
				break
			}
			buf[n] = c
			n++
		}
	})

	s.metrics.RecordRead(n)
	return n
}

// Write sends the first n bytes of the I/O buffer to the driver. n is
// clamped to [0, Cap()]; bytes beyond the capacity are dropped.
func (s *Session) Write(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || n <= 0 {
		return
	}

	truncated := 0
	if n > s.buf.Cap() {
		truncated = n - s.buf.Cap()
		n = s.buf.Cap()
		s.logger.Warn("write exceeds I/O buffer, truncating",
			zap.Int("requested", n+truncated),
			zap.Int("capacity", s.buf.Cap()))
	}

	for _, c := range s.buf.Bytes(n) {
		s.driver.PutChar(c)
	}

	s.metrics.RecordWrite(n, truncated)
}

// OnConnected fires notify immediately: a session is usable as soon as it
// exists.
func (s *Session) OnConnected(notify Notify) {
	if notify != nil {
		notify()
	}
}

// OnReadAvailable replaces the read-available subscriber and fires it right
// away if input is already pending. A nil notify unsubscribes. The returned
// cancel drops notify unless a later call has replaced it already.
func (s *Session) OnReadAvailable(notify Notify) (cancel func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return func() {}
	}
	var sub *Notify
	if notify != nil {
		sub = &notify
	}
	s.subscriber.Store(sub)
	pending := s.driver.CharAvail()
	s.mu.Unlock()

	if notify != nil && pending {
		notify()
	}
	return func() {
		if sub != nil {
			s.subscriber.CompareAndSwap(sub, nil)
		}
	}
}

// Close drops the subscriber, releases the driver handle and the buffer and
// runs close hooks. Calling Close again is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.subscriber.Store(nil)
	err := s.driver.Close()
	s.buf.release()
	hooks := s.onClose
	s.onClose = nil
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}

	// Wake anything still waiting on this session.
	s.wake.Broadcast()
	s.metrics.SessionClosed()
	s.logger.Info("session closed")

	if err != nil {
		return fmt.Errorf("release uart %d: %w", s.params.Index, err)
	}
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
