package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"evalpanel/internal/config"
	apperrors "evalpanel/internal/errors"
	"evalpanel/internal/exporter"
	"evalpanel/internal/files"
	"evalpanel/internal/infrastructure"
	custommw "evalpanel/internal/middleware"
	"evalpanel/internal/operations"
	handlers "evalpanel/internal/transport/http"
	ws "evalpanel/internal/websocket"
)

// Application owns one configured pipeline, the exporter of its outputs and
// the optional status server
type Application struct {
	Config    *config.Config
	Logger    *slog.Logger
	Providers *infrastructure.OTelProviders
	Pipeline  *operations.Pipeline
	Runner    *operations.Runner
	Exporter  *exporter.Exporter
	Hub       *ws.Hub
	Router    *chi.Mux
	Server    *http.Server

	mu       sync.RWMutex
	manifest *operations.RunManifest
	listener net.Listener
}

// Option customises an Application
type Option func(*appOptions)

type appOptions struct {
	runner []operations.RunnerOption
}

// WithRunnerOptions appends runner options after the defaults
func WithRunnerOptions(opts ...operations.RunnerOption) Option {
	return func(o *appOptions) { o.runner = append(o.runner, opts...) }
}

// NewApplication builds the pipeline from cfg and wires the runner to the
// event hub, telemetry and exporter
func NewApplication(cfg *config.Config, logger *slog.Logger, providers *infrastructure.OTelProviders, source operations.ShardSource, opts ...Option) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	if providers == nil {
		var err error
		providers, err = infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}

	pipeline, err := operations.NewBuilder(cfg, logger).Build(source)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	tracer, err := operations.NewPipelineTracer(providers)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline tracer: %w", err)
	}

	hub := ws.NewHub(logger)
	runnerOpts := append([]operations.RunnerOption{
		operations.WithWorkers(cfg.WorkerCount()),
		operations.WithTracer(tracer),
		operations.WithEventHub(hub),
		operations.WithLogger(logger),
	}, o.runner...)
	runner, err := operations.NewRunner(pipeline.Stages, runnerOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}

	a := &Application{
		Config:    cfg,
		Logger:    logger,
		Providers: providers,
		Pipeline:  pipeline,
		Runner:    runner,
		Exporter:  exporter.NewExporter(cfg.Paths.OutputDir, logger),
		Hub:       hub,
	}
	if err := a.setupRouter(); err != nil {
		return nil, err
	}
	a.createServer()
	return a, nil
}

// LatestState implements handlers.RunService
func (a *Application) LatestState() *operations.RunState {
	return a.Runner.LastState()
}

// LatestManifest implements handlers.RunService
func (a *Application) LatestManifest() *operations.RunManifest {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.manifest
}

// RunPipeline runs the shards, writes every output and records the manifest
func (a *Application) RunPipeline(ctx context.Context, shards []files.Shard) (*operations.RunManifest, error) {
	result, err := a.Runner.Run(ctx, shards)
	if err != nil {
		return nil, err
	}

	digest, err := a.Config.Digest()
	if err != nil {
		return nil, fmt.Errorf("failed to digest configuration: %w", err)
	}
	manifest := operations.NewRunManifest(result, digest)
	if err := a.Exporter.Export(result, manifest); err != nil {
		return nil, fmt.Errorf("failed to export run %s: %w", result.RunID, err)
	}

	a.mu.Lock()
	a.manifest = manifest
	a.mu.Unlock()

	a.Logger.InfoContext(ctx, "run exported",
		slog.String("run_id", result.RunID),
		slog.String("output_dir", a.Config.Paths.OutputDir),
		slog.Any("outputs", manifest.Outputs))
	return manifest, nil
}

// setupRouter configures the status server routes
func (a *Application) setupRouter() error {
	errorHandler := apperrors.NewErrorHandler(a.Logger, a.Config.Logging.Level == "debug")

	r := chi.NewRouter()
	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	r.Use(custommw.RequestID)
	r.Use(middleware.RealIP)

	otelMiddleware, err := custommw.NewOTelMiddleware(a.Providers)
	if err != nil {
		return fmt.Errorf("failed to create telemetry middleware: %w", err)
	}
	r.Use(otelMiddleware.Handler)
	r.Use(apperrors.NewErrorMiddleware(errorHandler, a.Logger).Handler)

	health := handlers.NewHealthHandler(a.Hub.ClientCount)
	r.Get("/healthz", health.HealthCheck)
	if a.Providers.PrometheusHTTP != nil {
		r.Handle("/metrics", a.Providers.PrometheusHTTP)
	}
	r.Handle("/ws", ws.NewHandler(a.Hub, a.Config.Server.WebSocket, func(w http.ResponseWriter, r *http.Request, err error) {
		errorHandler.HandleError(w, r, apperrors.ErrWebSocketUpgrade.WithDetails(err.Error()))
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		if rl := a.Config.Server.RateLimit; rl.Enabled {
			r.Use(custommw.NewRateLimiter(rl.RPS, rl.Burst, errorHandler, a.Logger).Handler)
		}
		r.Mount("/run", handlers.NewRunHandler(a, errorHandler, a.Logger).Routes())
	})

	a.Router = r
	return nil
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         a.Config.Server.Addr,
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
}

// Start starts the event hub and the status server
func (a *Application) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	a.listener = ln
	a.Hub.Start()

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
		}
	}()

	a.Logger.InfoContext(ctx, "status server started",
		slog.String("address", ln.Addr().String()),
		slog.String("version", config.AppVersion))
	return nil
}

// Addr returns the address the status server listens on
func (a *Application) Addr() string {
	if a.listener == nil {
		return a.Server.Addr
	}
	return a.listener.Addr().String()
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.listener != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}
	a.Hub.Stop()

	if err := a.Providers.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
