// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/notesync/internal/api"
	"github.com/starford/notesync/internal/mcpserver"
	"github.com/starford/notesync/internal/notefiles"
	"github.com/starford/notesync/internal/notes"
	"github.com/starford/notesync/internal/noteservice"
	"github.com/starford/notesync/internal/operation"
	"github.com/starford/notesync/internal/remote"
	"github.com/starford/notesync/internal/sse"
	"github.com/starford/notesync/internal/storage"
	"github.com/starford/notesync/internal/syncops"
)

type components struct {
	remote *remote.SQLite
	files  *notefiles.Files
	svc    *noteservice.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) logger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// build wires the remote store, the note store, the operation queue and the
// note service. pub and status may be nil.
func (a *application) build(ctx context.Context, logger *slog.Logger, pub noteservice.Publisher, status func(string)) (*components, error) {
	cfg := a.config

	if err := os.MkdirAll(cfg.Workspace.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}
	fs, err := storage.NewFS(cfg.Workspace.Path)
	if err != nil {
		return nil, fmt.Errorf("init workspace: %w", err)
	}

	rs, err := remote.OpenSQLite(cfg.Remote.Path)
	if err != nil {
		return nil, fmt.Errorf("init remote: %w", err)
	}

	schedOpts := []operation.SchedulerOption{
		operation.WithPollInterval(cfg.Sync.PollInterval()),
		operation.WithOperationTimeout(cfg.Sync.Timeout()),
		operation.WithLogger(logger),
	}
	if status != nil {
		schedOpts = append(schedOpts, operation.WithStatusFunc(status))
	}
	sched := operation.NewScheduler(ctx, schedOpts...)

	store := notes.NewStore()
	ops := syncops.New(rs, store, cfg.Sync.Concurrency, logger)
	files := notefiles.NewFiles(fs, store, cfg.Editor.Rules(), logger)

	return &components{
		remote: rs,
		files:  files,
		svc:    noteservice.New(ops, sched, files, pub, logger),
	}, nil
}

// initialSync pulls the remote state and removes workspace files that no
// longer belong to a note.
func initialSync(ctx context.Context, c *components, logger *slog.Logger) {
	res, err := c.svc.SyncNow(ctx)
	if err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
		return
	}
	logger.Info("initial sync done", slog.Int("notes", res.Live), slog.Int("fetched", len(res.Fetched)))

	pruned, err := c.svc.Prune()
	if err != nil {
		logger.Warn("prune failed", slog.String("error", err.Error()))
		return
	}
	if len(pruned) > 0 {
		logger.Info("pruned stale files", slog.Int("count", len(pruned)))
	}
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("workspace_path", cfg.Workspace.Path),
		slog.String("remote_path", cfg.Remote.Path),
		slog.Duration("sync_every", cfg.Sync.Interval()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	g, gCtx := errgroup.WithContext(ctx)

	c, err := app.build(gCtx, logger, broker, broker.PublishStatus)
	if err != nil {
		return err
	}
	defer c.remote.Close()

	initialSync(gCtx, c, logger)

	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	// Push saved edits of opened notes back to the remote.
	if debounce := cfg.Editor.Debounce(); debounce > 0 {
		g.Go(func() error {
			if err := notefiles.Watch(gCtx, c.files, debounce, logger, c.svc.SaveEdit); err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Periodic sync.
	g.Go(func() error {
		c.svc.SyncEvery(gCtx, cfg.Sync.Interval())
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle graceful shutdown.
	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

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

// errShutdown cancels the group so the sync loop and watcher stop with the
// HTTP server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr unless
// another output was configured.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.logger()

	c, err := app.build(ctx, logger, nil, nil)
	if err != nil {
		return err
	}
	defer c.remote.Close()

	initialSync(ctx, c, logger)

	logger.Info("MCP server starting on stdio")
	if err := mcpserver.New(c.svc).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
