package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/uartd/internal/domain/uart"
	"github.com/GriffinCanCode/uartd/internal/drivers/serial"
	"github.com/GriffinCanCode/uartd/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/uartd/internal/infrastructure/tracing"
)

// Version is reported by the root and health endpoints.
const Version = "0.1.0"

// DeviceLister reports the state of the configured devices.
type DeviceLister interface {
	Devices() []serial.DeviceInfo
}

// DeviceStatus is a configured device together with its session claims.
type DeviceStatus struct {
	serial.DeviceInfo
	Claims    int  `json:"claims"`
	Exclusive bool `json:"exclusive"`
}

// Handlers contains all HTTP handlers
type Handlers struct {
	resolver *uart.Resolver
	devices  DeviceLister
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
	logger   *zap.Logger
	started  time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(
	resolver *uart.Resolver,
	devices DeviceLister,
	metrics *monitoring.Metrics,
	tracer *tracing.Tracer,
	logger *zap.Logger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		resolver: resolver,
		devices:  devices,
		metrics:  metrics,
		tracer:   tracer,
		logger:   logger,
		started:  time.Now(),
	}
}

// Register mounts the API routes on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(monitoring.Handler(h.metrics)))
	}

	sessions := r.Group("/sessions")
	{
		sessions.POST("", h.CreateSession)
		sessions.GET("", h.ListSessions)
		sessions.GET("/:id", h.GetSession)
		sessions.DELETE("/:id", h.CloseSession)
		sessions.GET("/:id/size", h.Size)
		sessions.GET("/:id/avail", h.DataAvailable)
		sessions.POST("/:id/baudrate", h.SetBaudRate)
		sessions.POST("/:id/read", h.Read)
		sessions.POST("/:id/write", h.Write)
		sessions.GET("/:id/dataspace", h.GetDataspace)
		sessions.PUT("/:id/dataspace", h.PutDataspace)
	}
}

// Root handles the liveness check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "uartd",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	var devices []DeviceStatus
	if h.devices != nil {
		claims := h.resolver.Claims()
		for _, info := range h.devices.Devices() {
			devices = append(devices, DeviceStatus{
				DeviceInfo: info,
				Claims:     claims.Holders(info.Index),
				Exclusive:  claims.Exclusive(info.Index),
			})
		}
	}

	policies := 0
	if table := h.resolver.Policies(); table != nil {
		policies = table.Len()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"version":        Version,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"sessions":       h.resolver.Registry().Len(),
		"policies":       policies,
		"devices":        devices,
		"metrics":        h.metrics.Snapshot(),
	})
}
