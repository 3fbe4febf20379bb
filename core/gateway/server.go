// Package gateway exposes the chat completion HTTP surface: request
// validation, vendor resolution, SSE streaming with stop support, and the
// supporting catalog, health, and stats endpoints.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"omnigate/core/breaker"
	"omnigate/core/registry"
	"omnigate/internal/config"
	"omnigate/providers/ai"
	"omnigate/providers/observability"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	idleTimeout         = 120 * time.Second
)

// Server is the gateway HTTP server. Construct with New, then Run.
type Server struct {
	cfg      config.Config
	registry *registry.Registry
	breakers map[string]*breaker.Breaker
	metrics  observability.Metrics
	inflight *inflightTable
	app      *echo.Echo
}

// New constructs the server and wires routing, middleware, and per-vendor
// circuit breakers around the registry's adapters.
func New(cfg config.Config, reg *registry.Registry, metrics observability.Metrics) (*Server, error) {
	if reg == nil {
		return nil, errors.New("registry must not be nil")
	}
	if metrics == nil {
		metrics = observability.NewNoop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))

	srv := &Server{
		cfg:      cfg,
		registry: reg,
		breakers: make(map[string]*breaker.Breaker),
		metrics:  metrics,
		inflight: newInflightTable(),
		app:      e,
	}

	settings := breaker.Settings{
		FailureThreshold: uint32(cfg.Breaker.FailureThreshold),
		Cooldown:         cfg.Cooldown(),
	}
	for _, provider := range reg.All() {
		vendor := provider.Vendor()
		srv.breakers[vendor] = breaker.New(provider, settings,
			breaker.WithFallback(breaker.ApologyFallback(vendor)),
			breaker.WithMetrics(metrics))
	}

	srv.registerRoutes()
	return srv, nil
}

func (s *Server) registerRoutes() {
	s.app.GET("/healthz", s.handleHealth)
	s.app.GET("/stats", s.handleStats)
	s.app.GET("/v1/models", s.handleModels)
	s.app.POST("/v1/chat/completions", s.handleChatCompletions)
	s.app.POST("/v1/chat/stop", s.handleStop)
}

// Handler exposes the routing tree, mainly for httptest servers.
func (s *Server) Handler() http.Handler { return s.app }

// Run starts the HTTP server and blocks until the context is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("starting gateway", "addr", s.cfg.Server.Addr, "default_vendor", s.registry.DefaultVendor())

	httpServer := &http.Server{
		Addr:        s.cfg.Server.Addr,
		Handler:     s.app,
		ReadTimeout: readTimeout,
		IdleTimeout: idleTimeout,
		// No WriteTimeout: streams are long-lived and guarded by the
		// inactivity watchdog instead.
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("gateway shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleStats serves a metrics snapshot when the configured sink supports it.
func (s *Server) handleStats(c echo.Context) error {
	type snapshotter interface {
		Snapshot() observability.MetricsSnapshot
	}
	sink, ok := s.metrics.(snapshotter)
	if !ok {
		return c.JSON(http.StatusOK, map[string]any{"inflight": s.inflight.size()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"inflight": s.inflight.size(),
		"metrics":  sink.Snapshot(),
	})
}

func (s *Server) handleModels(c echo.Context) error {
	models := s.registry.ListModels(c.Request().Context())
	if models == nil {
		models = []ai.ModelDescriptor{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"default_vendor": s.registry.DefaultVendor(),
		"data":           models,
	})
}

type stopRequest struct {
	RequestID string `json:"request_id"`
}

// handleStop cancels an in-flight stream. The ack is idempotent: stopping an
// unknown or already finished request succeeds with stopped=false.
func (s *Server) handleStop(c echo.Context) error {
	var req stopRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if req.RequestID == "" {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request_id is required",
			Type:    "invalid_request_error",
		}
	}

	stopped := s.inflight.stop(req.RequestID)
	if stopped {
		s.metrics.Counter(observability.MetricGatewayStops).Add(c.Request().Context(), 1)
		slog.Info("stream stopped", "request_id", req.RequestID)
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "stopped": stopped})
}
