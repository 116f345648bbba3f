package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/uartd/internal/api/http"
	"github.com/GriffinCanCode/uartd/internal/api/middleware"
	"github.com/GriffinCanCode/uartd/internal/api/ws"
	"github.com/GriffinCanCode/uartd/internal/domain/policy"
	"github.com/GriffinCanCode/uartd/internal/domain/uart"
	"github.com/GriffinCanCode/uartd/internal/drivers/serial"
	"github.com/GriffinCanCode/uartd/internal/infrastructure/config"
	"github.com/GriffinCanCode/uartd/internal/infrastructure/logging"
	"github.com/GriffinCanCode/uartd/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/uartd/internal/infrastructure/tracing"
)

const readHeaderTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	resolver   *uart.Resolver
	factory    *serial.Factory
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
	tracer     *tracing.Tracer
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	// Initialize logger
	logger, err := logging.FromConfig(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Initializing uartd",
		zap.String("addr", cfg.Server.Addr()),
		zap.Strings("devices", cfg.UART.Devices),
		zap.String("policy_file", cfg.UART.PolicyFile),
	)

	table, err := policy.LoadFile(cfg.UART.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}
	logger.Info("Policies loaded",
		zap.Int("policies", table.Len()),
		zap.Bool("default", table.HasDefault()),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	tracer := tracing.New("uartd", logger.Component("tracing"))

	factory := serial.NewFactory(serial.Config{
		Devices:      cfg.UART.Devices,
		DefaultBaud:  cfg.UART.DefaultBaud,
		RxBufferSize: cfg.UART.RxBufferSize,
	}, logger.Component("serial")).WithMetrics(metrics)

	resolver := uart.NewResolver(factory, table, logger.Component("session")).
		WithMetrics(metrics).
		WithSessionOptions(
			uart.WithBufferSize(cfg.UART.IOBufferSize),
			uart.WithDetectTimeout(cfg.UART.DetectTimeout),
			uart.WithPollInterval(cfg.UART.PollInterval),
		)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	// Register routes
	handlers := apihttp.NewHandlers(resolver, factory, metrics, tracer, logger.Component("http"))
	handlers.Register(router)

	wsHandler := ws.NewHandler(resolver.Registry(), metrics, logger.Component("ws"))
	router.GET("/sessions/:id/stream", wsHandler.Stream)

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		resolver: resolver,
		factory:  factory,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		tracer:   tracer,
	}, nil
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server and blocks until it is shut down
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve accepts connections on l until the server is shut down.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", l.Addr().String()))
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ReloadPolicies re-reads the policy file. Live sessions keep the
// parameters they were created with.
func (s *Server) ReloadPolicies() error {
	return s.resolver.Reload(s.config.UART.PolicyFile)
}

// Shutdown stops accepting requests, closes every session and device and
// flushes telemetry.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP shutdown failed", zap.Error(err))
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := s.resolver.Shutdown(); err != nil {
		s.logger.Error("Failed to close sessions", zap.Error(err))
		errs = append(errs, fmt.Errorf("close sessions: %w", err))
	}
	if err := s.factory.Close(); err != nil {
		s.logger.Error("Failed to close devices", zap.Error(err))
		errs = append(errs, fmt.Errorf("close devices: %w", err))
	}
	s.tracer.Close()

	// Sync logger before exit
	_ = s.logger.Sync()

	return errors.Join(errs...)
}
