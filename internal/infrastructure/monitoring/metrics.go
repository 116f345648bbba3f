package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
//
// All Record/Inc/Set methods accept a nil receiver so that domain code can be
// constructed without a collector in tests.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session metrics
	SessionsActive    prometheus.Gauge
	SessionsCreated   prometheus.Counter
	SessionRejections *prometheus.CounterVec
	SizeDetections    *prometheus.CounterVec
	DetectDuration    prometheus.Histogram

	// Transfer metrics
	BytesRead      prometheus.Counter
	BytesWritten   prometheus.Counter
	WriteTruncated prometheus.Counter

	// Device metrics
	RxOverruns   *prometheus.CounterVec
	DeviceErrors *prometheus.CounterVec
	DevicesOpen  prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSEvents      *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	snapshot MetricsSnapshot
	mu       sync.RWMutex
}

// MetricsSnapshot holds current metric values for the JSON health endpoint.
type MetricsSnapshot struct {
	TotalRequests   int64 `json:"total_requests"`
	TotalErrors     int64 `json:"total_errors"`
	ActiveSessions  int64 `json:"active_sessions"`
	Rejections      int64 `json:"rejections"`
	TruncatedWrites int64 `json:"truncated_writes"`
}

// NewMetrics creates a collector registered on its own registry. Go runtime
// and process collectors are added so /metrics is useful on its own.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := newMetrics(reg)
	go m.updateUptime()
	return m
}

func newMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uartd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "uartd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"method", "path"},
		),

		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "uartd_sessions_active",
			Help: "Number of open UART sessions",
		}),
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "uartd_sessions_created_total",
			Help: "Total number of UART sessions created",
		}),
		SessionRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uartd_session_rejections_total",
				Help: "Session creation requests rejected, by reason",
			},
			[]string{"reason"},
		),
		SizeDetections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uartd_size_detections_total",
				Help: "Terminal size detection attempts, by result",
			},
			[]string{"result"},
		),
		DetectDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "uartd_size_detection_duration_seconds",
			Help:    "Time spent in the terminal size handshake",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2, 5},
		}),

		BytesRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "uartd_bytes_read_total",
			Help: "Bytes transferred from devices into session buffers",
		}),
		BytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "uartd_bytes_written_total",
			Help: "Bytes transferred from session buffers to devices",
		}),
		WriteTruncated: factory.NewCounter(prometheus.CounterOpts{
			Name: "uartd_write_truncated_bytes_total",
			Help: "Bytes dropped because a write exceeded the session buffer",
		}),

		RxOverruns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uartd_rx_overruns_total",
				Help: "Received bytes dropped because the device queue was full",
			},
			[]string{"uart"},
		),
		DeviceErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uartd_device_errors_total",
				Help: "Device level I/O errors",
			},
			[]string{"uart", "op"},
		),
		DevicesOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "uartd_devices_open",
			Help: "Number of devices currently opened by the driver factory",
		}),

		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "uartd_ws_connections",
			Help: "Number of active WebSocket streams",
		}),
		WSEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uartd_ws_events_total",
				Help: "WebSocket events, by direction and type",
			},
			[]string{"direction", "type"},
		),

		Uptime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "uartd_uptime_seconds",
			Help: "Server uptime in seconds",
		}),
	}
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// SessionOpened records a successfully constructed session.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
	m.SessionsActive.Inc()
	m.mu.Lock()
	m.snapshot.ActiveSessions++
	m.mu.Unlock()
}

// SessionClosed records a session teardown.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.mu.Lock()
	m.snapshot.ActiveSessions--
	m.mu.Unlock()
}

// RecordRejection records a refused session creation request.
func (m *Metrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	m.SessionRejections.WithLabelValues(reason).Inc()
	m.mu.Lock()
	m.snapshot.Rejections++
	m.mu.Unlock()
}

// RecordDetection records the outcome of a size handshake.
func (m *Metrics) RecordDetection(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SizeDetections.WithLabelValues(result).Inc()
	m.DetectDuration.Observe(duration.Seconds())
}

// RecordRead records bytes moved into a session buffer.
func (m *Metrics) RecordRead(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesRead.Add(float64(n))
}

// RecordWrite records bytes written to a device and bytes dropped by clamping.
func (m *Metrics) RecordWrite(written, truncated int) {
	if m == nil {
		return
	}
	if written > 0 {
		m.BytesWritten.Add(float64(written))
	}
	if truncated > 0 {
		m.WriteTruncated.Add(float64(truncated))
		m.mu.Lock()
		m.snapshot.TruncatedWrites++
		m.mu.Unlock()
	}
}

// RecordOverrun records received bytes dropped by a full device queue.
func (m *Metrics) RecordOverrun(uart string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RxOverruns.WithLabelValues(uart).Add(float64(n))
}

// RecordDeviceError records a device I/O error.
func (m *Metrics) RecordDeviceError(uart, op string) {
	if m == nil {
		return
	}
	m.DeviceErrors.WithLabelValues(uart, op).Inc()
}

// DeviceOpened increments the open device gauge.
func (m *Metrics) DeviceOpened() {
	if m == nil {
		return
	}
	m.DevicesOpen.Inc()
}

// DeviceClosed decrements the open device gauge.
func (m *Metrics) DeviceClosed() {
	if m == nil {
		return
	}
	m.DevicesOpen.Dec()
}

// RecordWSEvent records a WebSocket event
func (m *Metrics) RecordWSEvent(direction, eventType string) {
	if m == nil {
		return
	}
	m.WSEvents.WithLabelValues(direction, eventType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// Snapshot returns a copy of the JSON-facing counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
