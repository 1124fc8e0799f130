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
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/vaultexport/internal/api"
	"github.com/starford/vaultexport/internal/apperr"
	"github.com/starford/vaultexport/internal/exporter"
	"github.com/starford/vaultexport/internal/index"
	"github.com/starford/vaultexport/internal/mcpserver"
	"github.com/starford/vaultexport/internal/models"
	"github.com/starford/vaultexport/internal/sse"
	"github.com/starford/vaultexport/internal/storage"
)

// components are built once and shared by every mode.
type components struct {
	cfg    *Config
	logger *slog.Logger
	vault  *storage.FS
	out    *storage.FS
	db     *index.DB
	exp    *exporter.Exporter
	broker *sse.Broker
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{mode: ModeServe}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// MCP owns stdout, so logs go to stderr there.
	var logOut io.Writer = os.Stdout
	if app.mode == ModeMCP {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("mode", string(app.mode)),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("destination", cfg.Export.Destination),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	rt, err := newComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	switch app.mode {
	case ModeExport:
		return rt.export(ctx, app.notes)
	case ModeWatch:
		return rt.watch(ctx)
	case ModeServe:
		return rt.serve(ctx)
	case ModeMCP:
		return mcpserver.New(rt.exp, rt.db).ServeStdio()
	default:
		return fmt.Errorf("unknown mode %q", app.mode)
	}
}

func newComponents(cfg *Config, logger *slog.Logger) (*components, error) {
	vault, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init vault: %w", err)
	}
	out, err := storage.EnsureFS(cfg.Export.Destination)
	if err != nil {
		return nil, fmt.Errorf("init destination: %w", err)
	}
	if within(vault.Root(), out.Root()) {
		return nil, fmt.Errorf("%w: %s is inside the vault", apperr.ErrInvalidDestinationRoot, out.Root())
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	if _, err := index.Sync(db, vault, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initial sync: %w", err)
	}

	broker := sse.NewBroker(2 * time.Second)
	notify := func(ev exporter.Event) {
		broker.PublishExport(string(ev.Kind), ev)
	}

	return &components{
		cfg:    cfg,
		logger: logger,
		vault:  vault,
		out:    out,
		db:     db,
		exp:    exporter.New(vault, out, db, cfg.Export.Exporter(), logger, exporter.WithNotifier(notify)),
		broker: broker,
	}, nil
}

func (rt *components) close() {
	rt.broker.Close()
	if err := rt.db.Close(); err != nil {
		rt.logger.Warn("close index failed", slog.String("error", err.Error()))
	}
}

// export runs a one-shot export. Any failed note makes the run fail.
func (rt *components) export(ctx context.Context, notes []string) error {
	if len(notes) == 0 {
		_, err := rt.exp.ExportAll(ctx)
		return err
	}

	var errs []error
	for _, n := range notes {
		o, err := rt.exp.ExportNote(ctx, filepath.FromSlash(n))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if o.Status == models.StatusSkipped {
			rt.logger.Info("note not exported", slog.String("file", n))
		}
	}
	return errors.Join(errs...)
}

// watch exports the vault, then keeps the destination in step with it until
// ctx is cancelled or a shutdown signal arrives.
func (rt *components) watch(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := rt.exp.ExportAll(ctx); err != nil {
		rt.logger.Warn("initial export had failures", slog.String("error", err.Error()))
	}
	rt.logger.Info("Watching vault", slog.String("vault_path", rt.vault.Root()))
	return rt.runWatcher(ctx)
}

func (rt *components) runWatcher(ctx context.Context) error {
	err := index.Watch(ctx, rt.db, rt.vault, rt.vault.Root(), rt.logger, func(kind index.ChangeKind, path string) {
		rt.exp.HandleChange(ctx, kind, path)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch vault: %w", err)
	}
	return nil
}

// serve runs the HTTP API next to the watcher.
func (rt *components) serve(ctx context.Context) error {
	cfg := rt.cfg
	logger := rt.logger

	if _, err := rt.exp.ExportAll(ctx); err != nil {
		logger.Warn("initial export had failures", slog.String("error", err.Error()))
	}

	svc := api.NewService(rt.exp, rt.db, rt.out)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, rt.broker)

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
		if err := rt.db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return rt.runWatcher(gCtx)
	})

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

		// SSE streams only end when their clients go away or the broker closes.
		rt.broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// within reports whether path is root or lies below it.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
