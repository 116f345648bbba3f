package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics() *Metrics {
	return newMetrics(prometheus.NewRegistry())
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordHTTPRequest("GET", "/health", "200", time.Millisecond)
		m.SessionOpened()
		m.SessionClosed()
		m.RecordRejection("no_policy")
		m.RecordDetection("detected", time.Millisecond)
		m.RecordRead(10)
		m.RecordWrite(10, 5)
		m.RecordOverrun("0", 3)
		m.RecordDeviceError("0", "write")
		m.DeviceOpened()
		m.DeviceClosed()
		m.RecordWSEvent("out", "read_avail")
		m.IncWSConnections()
		m.DecWSConnections()
	})
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())
}

func TestSessionLifecycle(t *testing.T) {
	m := newTestMetrics()

	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionsActive))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.SessionsCreated))
	assert.Equal(t, int64(1), m.Snapshot().ActiveSessions)
}

func TestRecordWriteCountsTruncation(t *testing.T) {
	m := newTestMetrics()

	m.RecordWrite(4096, 0)
	m.RecordWrite(4096, 904)

	assert.Equal(t, float64(8192), testutil.ToFloat64(m.BytesWritten))
	assert.Equal(t, float64(904), testutil.ToFloat64(m.WriteTruncated))
	assert.Equal(t, int64(1), m.Snapshot().TruncatedWrites)
}

func TestRecordRejectionByReason(t *testing.T) {
	m := newTestMetrics()

	m.RecordRejection("no_policy")
	m.RecordRejection("no_policy")
	m.RecordRejection("device_busy")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.SessionRejections.WithLabelValues("no_policy")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionRejections.WithLabelValues("device_busy")))
	assert.Equal(t, int64(3), m.Snapshot().Rejections)
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newTestMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/sessions/:id/size", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for _, id := range []string{"sess_a", "sess_b"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/size", nil)
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/sessions/:id/size", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, int64(1), m.Snapshot().TotalErrors)
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := newTestMetrics()
	m.RecordRead(42)

	w := httptest.NewRecorder()
	Handler(m).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "uartd_bytes_read_total 42")
}
