package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mimir-go/internal/bootstrap"
	"github.com/mimir-go/internal/services/indexer/handlers"
	"github.com/mimir-go/pkg/config"
	"github.com/mimir-go/pkg/logger"
	"github.com/mimir-go/pkg/metrics"
	"github.com/mimir-go/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	httpServer *http.Server
	runtime    *bootstrap.Runtime
	telemetry  *telemetry.Telemetry
	cron       *cron.Cron
}

func New(cfg *config.Config, log logger.Logger) (*Server, error) {
	// Storage comes first: telemetry installs a global tracer provider that
	// must not outlive a failed start.
	rt, err := bootstrap.New(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.New(cfg.Telemetry.ToTelemetryConfig())
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	indexerHandlers := handlers.NewIndexerHandlers(rt.Storage, rt.Backend.Ping, log)
	router := setupRouter(indexerHandlers, tel, log)

	s := &Server{
		config:     cfg,
		logger:     log,
		httpServer: newHTTPServer(cfg.Server, router),
		runtime:    rt,
		telemetry:  tel,
	}

	if cfg.Cleanup.Enabled {
		if err := s.scheduleCleanup(); err != nil {
			_ = rt.Close()
			_ = tel.Close(context.Background())
			return nil, err
		}
	}

	return s, nil
}

// newHTTPServer times out slow headers but never a body: document streams
// are read at the pace the backend accepts them.
func newHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.WriteTimeout) * time.Second,
	}
}

func setupRouter(h *handlers.IndexerHandlers, tel *telemetry.Telemetry, log logger.Logger) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(tel.HTTPMiddleware())
	router.Use(loggingMiddleware(log))
	router.Use(metricsMiddleware())

	// Health checks
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	v1 := router.Group("/api/v1")
	{
		containers := v1.Group("/containers")
		containers.POST("", h.CreateContainer)
		containers.GET("/:name", h.GetContainer)
		containers.DELETE("/:name", h.DeleteContainer)
		containers.POST("/:name/documents", h.InsertDocuments)
		containers.POST("/:name/updates", h.UpdateDocuments)
		containers.POST("/:name/publish", h.PublishContainer)

		v1.POST("/templates", h.Configure)
	}

	return router
}

// scheduleCleanup prunes orphaned containers on the configured schedule.
// Schedules have a leading seconds field and run in UTC.
func (s *Server) scheduleCleanup() error {
	s.cron = cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC))
	minAge := s.config.Cleanup.MinAge

	_, err := s.cron.AddFunc(s.config.Cleanup.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		if _, err := s.runtime.Storage.PruneOrphans(ctx, minAge); err != nil {
			s.logger.Error("Orphan cleanup failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", s.config.Cleanup.Schedule, err)
	}
	return nil
}

func (s *Server) Start() error {
	if s.cron != nil {
		s.cron.Start()
		s.logger.Info("Orphan cleanup scheduled", "schedule", s.config.Cleanup.Schedule, "min_age", s.config.Cleanup.MinAge)
	}

	s.logger.Info("Starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	// Let a running cleanup finish
	if s.cron != nil {
		select {
		case <-s.cron.Stop().Done():
		case <-ctx.Done():
		}
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	if err := s.runtime.Close(); err != nil {
		s.logger.Error("Failed to close clients", "error", err)
	}

	if err := s.telemetry.Close(ctx); err != nil {
		s.logger.Error("Failed to flush traces", "error", err)
	}

	return nil
}

func loggingMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"ip", c.ClientIP(),
		)
	}
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Route templates keep label cardinality bounded.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
