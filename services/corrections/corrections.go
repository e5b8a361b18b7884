// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package corrections provides the corrections API service.
//
// This package wires the SQLite-backed store, the HTTP handlers and
// middleware, Prometheus metrics and OpenTelemetry tracing into a single
// Service with a context-driven lifecycle.
//
// # Usage
//
//	cfg := corrections.Config{Port: 5001, DBPath: "./data/corrections.db"}
//	svc, err := corrections.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close()
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := svc.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Reviewer identity and the audit trail are injected through
// extensions.ServiceOptions.
package corrections

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"github.com/demidovbig/Corrections-System/pkg/extensions"
	"github.com/demidovbig/Corrections-System/services/corrections/middleware"
	"github.com/demidovbig/Corrections-System/services/corrections/observability"
	"github.com/demidovbig/Corrections-System/services/corrections/routes"
	"github.com/demidovbig/Corrections-System/services/corrections/store"
)

// ServiceName identifies the service in traces, logs and the resource.
const ServiceName = "corrections-service"

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the lifecycle of the corrections API.
//
// # Thread Safety
//
// Router and Repository are safe to call concurrently. Run should be called
// at most once; Close must be called after Run returns.
type Service interface {
	// Run serves HTTP until ctx is cancelled or the listener fails.
	// Cancellation triggers a graceful shutdown bounded by
	// Config.ShutdownTimeout and returns nil.
	Run(ctx context.Context) error

	// Router returns the configured gin engine, mainly for tests.
	Router() *gin.Engine

	// Repository returns the store backing the service.
	Repository() store.Repository

	// Close flushes the audit logger, shuts the tracer down and closes the
	// store. Safe to call more than once.
	Close() error
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds corrections service configuration.
//
// All fields are optional; zero values are filled by applyConfigDefaults.
type Config struct {
	// Port is the HTTP listen port. Default: 5001
	Port int

	// Host is the listen address. Default: "" (all interfaces)
	Host string

	// DBPath is the SQLite database file. Default: "./data/corrections.db"
	DBPath string

	// MaxOpenConns bounds the connection pool. Default: 10
	MaxOpenConns int

	// MaxIdleConns bounds idle pooled connections. Default: MaxOpenConns
	MaxIdleConns int

	// BusyTimeout is how long SQLite waits on a locked database. Default: 5s
	BusyTimeout time.Duration

	// Scopes are seeded into the scope table at startup when missing.
	Scopes []string

	// TracingExporter selects "otlp", "stdout" or "none". Default: "none"
	TracingExporter string

	// OTelEndpoint is the OTLP gRPC collector. Default: "localhost:4317"
	OTelEndpoint string

	// GinMode sets the gin mode ("debug", "release", "test").
	// Empty leaves the process-wide mode untouched.
	GinMode string

	// RateLimitRPS caps requests per second across the process.
	// Zero or negative disables rate limiting.
	RateLimitRPS float64

	// RateLimitBurst is the token bucket size. Default: max(RPS, 1)
	RateLimitBurst int

	// CORSOrigins lists allowed origins. Default: all origins
	CORSOrigins []string

	// ReadTimeout bounds reading a request. Default: 15s
	ReadTimeout time.Duration

	// WriteTimeout bounds writing a response. Default: 30s
	WriteTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown. Default: 10s
	ShutdownTimeout time.Duration

	// Logger receives service and access logs. Default: slog.Default()
	Logger *slog.Logger
}

const (
	defaultPort            = 5001
	defaultDBPath          = "./data/corrections.db"
	defaultMaxOpenConns    = 10
	defaultBusyTimeout     = 5 * time.Second
	defaultOTelEndpoint    = "localhost:4317"
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// Tracing exporter names accepted by Config.TracingExporter.
const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
	ExporterNone   = "none"
)

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config        Config
	opts          extensions.ServiceOptions
	logger        *slog.Logger
	repo          *store.SqlStore
	metrics       *observability.Metrics
	router        *gin.Engine
	tracerCleanup func(context.Context)
	closed        bool
}

// New creates a ready-to-run corrections Service.
//
// # Description
//
// New applies configuration defaults, initialises tracing, opens and
// migrates the store, seeds the configured scopes, registers metrics on a
// private registry and builds the router. If opts is nil,
// extensions.DefaultOptions() is used.
//
// # Outputs
//
//   - Service: Ready to Run
//   - error: Non-nil if the tracer or the store cannot be initialised
func New(cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}
	s.logger = s.config.Logger.With("component", "corrections")

	if opts != nil {
		s.opts = opts.WithDefaults()
	} else {
		s.opts = extensions.DefaultOptions()
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if err := s.initStore(); err != nil {
		s.cleanup()
		return nil, err
	}

	s.metrics = observability.NewMetrics(observability.NewRegistry())
	s.initRouter()

	return s, nil
}

// Run serves HTTP until ctx is cancelled.
func (s *service) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Starting corrections server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down corrections server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func (s *service) Router() *gin.Engine {
	return s.router
}

func (s *service) Repository() store.Repository {
	return s.repo
}

func (s *service) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.cleanup()
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in zero-valued configuration fields.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = defaultMaxOpenConns
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = cfg.MaxOpenConns
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = defaultBusyTimeout
	}
	if cfg.TracingExporter == "" {
		cfg.TracingExporter = ExporterNone
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = defaultOTelEndpoint
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// initStore opens the database and seeds the configured scopes.
func (s *service) initStore() error {
	repo, err := store.Open(store.Config{
		Path:         s.config.DBPath,
		MaxOpenConns: s.config.MaxOpenConns,
		MaxIdleConns: s.config.MaxIdleConns,
		BusyTimeout:  s.config.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	s.repo = repo

	if len(s.config.Scopes) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := repo.EnsureScopes(ctx, s.config.Scopes); err != nil {
			return fmt.Errorf("failed to seed scopes: %w", err)
		}
	}

	s.logger.Info("Store ready", "path", s.config.DBPath, "max_open_conns", s.config.MaxOpenConns)
	return nil
}

// initRouter builds the gin engine with the middleware chain:
// recovery, tracing, request id, access log, metrics, CORS, rate limit.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	s.router = gin.New()
	s.router.Use(
		gin.Recovery(),
		otelgin.Middleware(ServiceName),
		middleware.RequestID(),
		middleware.AccessLog(s.config.Logger),
		middleware.HTTPMetrics(s.metrics),
		cors.New(corsConfig(s.config.CORSOrigins)),
		middleware.RateLimit(middleware.NewLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)),
	)

	routes.SetupRoutes(s.router, s.repo, s.metrics, s.opts)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", middleware.RequestIDHeader)
	cfg.ExposeHeaders = []string{middleware.RequestIDHeader}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// cleanup releases everything New acquired, in reverse order.
func (s *service) cleanup() error {
	var errs []error

	if s.opts.AuditLogger != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.opts.AuditLogger.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush audit log: %w", err))
		}
		cancel()
	}
	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}

	return errors.Join(errs...)
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
