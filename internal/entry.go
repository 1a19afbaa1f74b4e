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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/maelstrom/internal/api"
	"github.com/starford/maelstrom/internal/insight"
	"github.com/starford/maelstrom/internal/mcpserver"
	"github.com/starford/maelstrom/internal/noteservice"
	"github.com/starford/maelstrom/internal/sse"
	"github.com/starford/maelstrom/internal/store"
)

// backend is the server-side object graph shared by the HTTP and MCP entry points.
type backend struct {
	db     *store.DB
	svc    *noteservice.Service
	broker *sse.Broker
}

func (b *backend) Close() {
	b.broker.Close()
	_ = b.db.Close()
}

func openBackend(ctx context.Context, app *application, logger *slog.Logger) (*backend, error) {
	cfg := app.config

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	llm := app.llm
	if llm == nil {
		gemini, err := insight.NewGeminiLLM(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			logger.Warn("undercurrent generation unavailable", slog.String("error", err.Error()))
			llm = insight.UnavailableLLM{}
		} else {
			llm = gemini
		}
	}

	gen := insight.NewGenerator(db, llm, insight.Config{
		MinNotes: cfg.LLM.MinNotes,
		MaxNotes: cfg.LLM.MaxNotes,
	}, logger)

	broker := sse.NewBroker(2*time.Second,
		sse.WithRequestUser(func(r *http.Request) string {
			id, _ := api.UserFrom(r.Context())
			return id
		}),
		sse.WithKeepAlive(30*time.Second))
	return &backend{
		db:     db,
		svc:    noteservice.NewService(db, gen, broker, logger),
		broker: broker,
	}, nil
}

func newServerLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewHTTPHandler builds the root router: health checks plus the API under /api.
func NewHTTPHandler(cfg *Config, svc *noteservice.Service, events http.Handler) http.Handler {
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, cfg.Auth.UserID, events)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated). HEAD is what clients probe with.
	health := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
	r.Get("/health/live", health)
	r.Head("/health/live", health)
	r.Get("/health/ready", health)

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)
	return r
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newServerLogger(app.out, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("llm_model", cfg.LLM.Model),
		slog.String("log_level", cfg.App.LogLevel.String()))

	b, err := openBackend(ctx, app, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           NewHTTPHandler(cfg, b.svc, b.broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

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
		waitForShutdown(gCtx, logger)

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout against the local store.
// Logs go to stderr since stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	logger := newServerLogger(app.out, app.config.App.LogLevel)
	slog.SetDefault(logger)

	b, err := openBackend(ctx, app, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	logger.Info("MCP server starting", slog.String("user_id", app.config.Auth.UserID))
	return mcpserver.New(b.svc, app.config.Auth.UserID).ServeStdio()
}

// waitForShutdown blocks until SIGINT/SIGTERM or ctx is done.
func waitForShutdown(ctx context.Context, logger *slog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, initiating shutdown")
	}
}
