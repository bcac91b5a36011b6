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
	"golang.org/x/sync/errgroup"

	"github.com/starford/dayplanner/internal/api"
	"github.com/starford/dayplanner/internal/dailynote"
	"github.com/starford/dayplanner/internal/index"
	"github.com/starford/dayplanner/internal/mcpserver"
	"github.com/starford/dayplanner/internal/schedule"
	"github.com/starford/dayplanner/internal/sse"
	"github.com/starford/dayplanner/internal/storage"
	"github.com/starford/dayplanner/internal/timeutil"
)

// stack is everything a command needs to derive and edit plans.
type stack struct {
	cfg    *Config
	logger *slog.Logger
	store  *storage.FS
	db     *index.DB
	svc    *schedule.Service
}

func (s *stack) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Warn("close index failed", slog.String("error", err.Error()))
	}
}

func (s *stack) newBoard(pub schedule.Publisher) *schedule.Board {
	return schedule.NewBoard(s.svc, s.cfg.Planner.Settings(), pub, s.logger)
}

// setup applies opts, opens the vault and the index and runs the initial
// sync.
func setup(opts ...Option) (*stack, error) {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		// Initialize structured JSON logger.
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("daily_notes_folder", cfg.DailyNotes.Folder),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	// Initialize storage.
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	// Initialize SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	// Run initial sync.
	stats, err := index.Sync(db, store, logger)
	if err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	} else {
		logger.Info("initial sync done",
			slog.Int("indexed", stats.Indexed),
			slog.Int("removed", stats.Removed),
			slog.Int("failed", stats.Failed))
	}

	daily := dailynote.NewResolver(cfg.DailyNotes.Folder, cfg.DailyNotes.Format)
	svc := schedule.NewService(store, db, daily, schedule.Options{
		CacheSize: cfg.Planner.CacheSize,
		CacheTTL:  cfg.Planner.CacheTTL,
		Logger:    logger,
	})

	return &stack{cfg: cfg, logger: logger, store: store, db: db, svc: svc}, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	st, err := setup(opts...)
	if err != nil {
		return err
	}
	defer st.Close()

	cfg, logger := st.cfg, st.logger

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	board := st.newBoard(broker)

	// Build API router.
	apiRouter := api.NewRouter(st.svc, board, api.RouterConfig{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		Events:      broker,
		VisibleDays: cfg.Planner.VisibleDays,
	})

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

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher. Every index change drops the derived days.
	g.Go(func() error {
		return index.Watch(gCtx, st.db, st.store, cfg.Vault.Path, logger, func(kind index.EventKind, path string) {
			st.svc.Invalidate()
			broker.PublishNoteEvent(string(kind), path)
		})
	})

	// Advance the board clock.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Planner.RefreshInterval)
		defer ticker.Stop()
		board.Tick(time.Now())
		for {
			select {
			case <-gCtx.Done():
				return nil
			case now := <-ticker.C:
				board.Tick(now)
			}
		}
	})

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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Stop the watcher and the ticker as well.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdin/stdout until the client disconnects.
func RunMCP(_ context.Context, opts ...Option) error {
	st, err := setup(opts...)
	if err != nil {
		return err
	}
	defer st.Close()

	board := st.newBoard(nil)
	board.Tick(time.Now())

	srv := mcpserver.New(st.svc, board)
	st.logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

// Plan derives the layout of days consecutive days starting at start.
func Plan(ctx context.Context, start time.Time, days int, opts ...Option) (*schedule.View, error) {
	st, err := setup(opts...)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	board := st.newBoard(nil)
	board.Tick(time.Now())
	return board.Layout(ctx, timeutil.Days(start, days))
}
