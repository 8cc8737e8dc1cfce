// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/paperasse/internal/api"
	"github.com/starford/paperasse/internal/docservice"
	"github.com/starford/paperasse/internal/docstore"
	"github.com/starford/paperasse/internal/inbox"
	"github.com/starford/paperasse/internal/jobs"
	"github.com/starford/paperasse/internal/mcpserver"
	"github.com/starford/paperasse/internal/metrics"
	"github.com/starford/paperasse/internal/sse"
	"github.com/starford/paperasse/internal/storage"
)

// Components are the collaborators shared by every command.
type Components struct {
	DB      *docstore.DB
	Objects *storage.FS
	Queue   *jobs.Queue
	Service *docservice.Service
}

// Close releases the database handle.
func (c *Components) Close() error {
	return c.DB.Close()
}

// Open wires the object store, the document store, the job queue and the
// document service described by cfg.
func Open(ctx context.Context, cfg *Config, logger *slog.Logger, opts ...docservice.Option) (*Components, error) {
	objects, err := storage.NewFS(cfg.Storage.Path, cfg.Storage.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := docstore.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init docstore: %w", err)
	}

	queue := jobs.New(db.Conn(), jobs.Options{
		Visibility:   cfg.Queue.Visibility,
		PollInterval: cfg.Queue.PollInterval,
		MaxAttempts:  cfg.Queue.MaxAttempts,
		Logger:       logger,
	})
	if err := queue.EnsureTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init queue: %w", err)
	}

	opts = append([]docservice.Option{docservice.WithLogger(logger)}, opts...)
	return &Components{
		DB:      db,
		Objects: objects,
		Queue:   queue,
		Service: docservice.NewService(db, objects, queue, opts...),
	}, nil
}

func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// Run starts the HTTP server, the OCR job consumer and, when enabled, the
// inbox watcher.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config
	logger := newLogger(cfg, os.Stdout)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_path", cfg.Storage.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("inbox_enabled", cfg.Inbox.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := Open(ctx, cfg, logger, docservice.WithPublisher(broker), docservice.WithMetrics(m))
	if err != nil {
		return err
	}
	defer c.Close()

	metrics.RegisterQueueDepth(reg, func() float64 {
		n, err := c.Queue.Len(context.Background())
		if err != nil {
			return 0
		}
		return float64(n)
	})

	apiRouter := api.NewRouter(c.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := c.DB.Conn().PingContext(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// OCR job consumer.
	g.Go(func() error {
		return c.Queue.Run(gCtx, c.Service.HandleJob)
	})

	if cfg.Inbox.Enabled {
		in, err := inbox.New(c.Service, inbox.Options{
			Root:     cfg.Inbox.Path,
			TenantID: cfg.Inbox.TenantID,
			Debounce: cfg.Inbox.Debounce,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			return in.Watch(gCtx)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// SSE clients hold their connections open; close them first.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group once the server is asked to stop, so the
// job consumer and the inbox watcher return too.
var errShutdown = errors.New("shutdown requested")

// RunMCP serves the MCP tools over stdio and consumes OCR jobs until the
// client disconnects. Logs go to stderr since stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	logger := newLogger(app.config, os.Stderr)

	c, err := Open(ctx, app.config, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Queue.Run(ctx, c.Service.HandleJob)
	}()

	err = mcpserver.New(c.Service).ServeStdio()
	cancel()
	<-done
	return err
}
