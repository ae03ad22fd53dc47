// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package workspace provides the collaborative workspace service for DevGrid.
//
// This package contains the main Workspace type that coordinates all
// components of the service: HTTP routing, realtime rooms, project and
// file storage, the AI client, and observability infrastructure.
//
// # Usage
//
//	cfg := workspace.Config{Port: 12300, DataDir: "/var/lib/devgrid"}
//	svc, err := workspace.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/devgrid/devgrid/services/llm"
	"github.com/devgrid/devgrid/services/workspace/middleware"
	"github.com/devgrid/devgrid/services/workspace/observability"
	"github.com/devgrid/devgrid/services/workspace/realtime"
	"github.com/devgrid/devgrid/services/workspace/routes"
	"github.com/devgrid/devgrid/services/workspace/sandbox"
	"github.com/devgrid/devgrid/services/workspace/session"
	"github.com/devgrid/devgrid/services/workspace/store"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the workspace service.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing. Callers must
	// not modify the routes after construction.
	Router() *gin.Engine

	// Sessions returns the live session registry.
	Sessions() *session.Registry

	// Close releases the store, open sessions, and the tracer.
	Close()
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds workspace service configuration options. Zero values use
// defaults applied by New().
type Config struct {
	// Port is the HTTP server port. Default: 12300
	Port int

	// DataDir is the directory for the embedded Badger store.
	// Default: "./data/devgrid"
	DataDir string

	// InMemoryStore runs the store without disk persistence. Used by tests.
	InMemoryStore bool

	// JWTSecret is the HMAC key used to verify bearer tokens. Required.
	JWTSecret string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "devgrid-otel-collector:4317"
	OTelEndpoint string

	// EnableTracing controls OTLP trace export. Default: off, since the
	// collector is optional in local setups.
	EnableTracing bool

	// EnableMetrics enables the Prometheus /metrics endpoint.
	EnableMetrics bool

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	GinMode string

	// LLMClient overrides the model backend. If nil, an OpenAI client is
	// constructed from the environment.
	LLMClient llm.Client

	// Runtime overrides the execution sandbox. If nil, a local runtime
	// rooted under DataDir/sandbox is used.
	Runtime sandbox.Runtime
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// Thread-safe after construction; all fields are read-only once New returns.
type service struct {
	config        Config
	router        *gin.Engine
	db            *store.Store
	hub           *realtime.Hub
	sessions      *session.Registry
	runtime       sandbox.Runtime
	llmClient     llm.Client
	verifier      middleware.Verifier
	tracerCleanup func(context.Context)
}

// New creates a workspace Service with the given configuration.
//
// # Description
//
// New initializes all workspace components in order: configuration
// defaults, tracing, metrics, the embedded store, the realtime hub and
// session registry, the model client, and finally the HTTP router. Room
// events flow from the hub into the registry, so a chat message from any
// participant reaches the project's live session without extra wiring.
//
// # Outputs
//
//   - Service: ready-to-run workspace service
//   - error: non-nil if any component fails to initialize
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	if s.config.JWTSecret == "" {
		return nil, fmt.Errorf("workspace: JWTSecret is required")
	}
	s.verifier = middleware.NewJWTVerifier(s.config.JWTSecret)

	if s.config.EnableTracing {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	if s.config.EnableMetrics {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for workspace")
	}

	if err := s.initStore(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	s.sessions = session.NewRegistry()
	s.hub = realtime.NewHub(s.sessions.Dispatch)
	s.initRuntime()

	if err := s.initLLMClient(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.Close()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting workspace server", "port", s.config.Port)

	return s.router.Run(addr)
}

func (s *service) Router() *gin.Engine {
	return s.router
}

func (s *service) Sessions() *session.Registry {
	return s.sessions
}

// Close releases all resources held by the service. Safe to call more
// than once.
func (s *service) Close() {
	if s.sessions != nil {
		s.sessions.CloseAll()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Warn("store close error", "error", err)
		}
		s.db = nil
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
		s.tracerCleanup = nil
	}
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12300
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data/devgrid"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "devgrid-otel-collector:4317"
	}
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing over an
// insecure gRPC connection, appropriate for internal networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("workspace-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initStore opens the embedded Badger database.
func (s *service) initStore() error {
	var err error
	if s.config.InMemoryStore {
		s.db, err = store.OpenInMemory()
	} else {
		s.db, err = store.Open(store.DefaultConfig(s.config.DataDir))
	}
	return err
}

// initRuntime selects the execution sandbox. A runtime supplied in Config
// wins; otherwise commands run locally under the data directory.
func (s *service) initRuntime() {
	if s.config.Runtime != nil {
		s.runtime = s.config.Runtime
		return
	}
	root := filepath.Join(s.config.DataDir, "sandbox")
	s.runtime = sandbox.NewLocalRuntime(root)
	slog.Info("Using local execution runtime", "root", root)
}

// initLLMClient selects the model backend. A client supplied in Config
// wins; otherwise the OpenAI client is built from the environment.
func (s *service) initLLMClient() error {
	if s.config.LLMClient != nil {
		s.llmClient = s.config.LLMClient
		return nil
	}
	client, err := llm.NewOpenAIClient()
	if err != nil {
		return err
	}
	s.llmClient = client
	slog.Info("Using OpenAI LLM backend")
	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("workspace-service"))

	if s.config.EnableMetrics {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	routes.SetupRoutes(s.router, s.db, s.hub, s.sessions, s.llmClient, s.verifier, s.runtime)
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
