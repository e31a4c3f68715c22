package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	clhttp "github.com/Strob0t/CrewLink/internal/adapter/http"
	"github.com/Strob0t/CrewLink/internal/adapter/mcp"
	clnats "github.com/Strob0t/CrewLink/internal/adapter/nats"
	clotel "github.com/Strob0t/CrewLink/internal/adapter/otel"
	"github.com/Strob0t/CrewLink/internal/adapter/postgres"
	"github.com/Strob0t/CrewLink/internal/adapter/ristretto"
	"github.com/Strob0t/CrewLink/internal/adapter/ws"
	"github.com/Strob0t/CrewLink/internal/config"
	"github.com/Strob0t/CrewLink/internal/logger"
	"github.com/Strob0t/CrewLink/internal/service"
)

const serviceName = "crewlink-core"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---
	shutdownOtel, err := clotel.Setup(ctx, cfg.Otel, serviceName)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(shutdownCtx); err != nil {
			slog.Error("otel shutdown failed", "error", err)
		}
	}()

	metrics, err := clotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := clnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	roleCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer roleCache.Close()

	// --- Services ---
	store := postgres.NewStore(pool)
	hub := ws.NewHub(store)
	router := service.NewRouter(store, queue, hub, metrics)
	coordinator := service.NewCoordinator(store, router, roleCache, cfg.Cache.RoleTTL)
	monitor := service.NewHeartbeatMonitor(hub, cfg.Heartbeat)

	if err := clotel.RegisterConnectionGauge(hub.ConnectionCount); err != nil {
		return fmt.Errorf("connection gauge: %w", err)
	}

	cancelPush, err := router.StartPushSubscriber(ctx)
	if err != nil {
		return fmt.Errorf("push subscriber: %w", err)
	}
	defer cancelPush()

	// --- HTTP ---
	mcpServer := mcp.NewServer(mcp.Deps{
		Gateway:  coordinator,
		Messages: router,
	})

	handlers := &clhttp.Handlers{
		Coordinator: coordinator,
		Registry:    hub,
	}

	r := chi.NewRouter()

	r.Use(clhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(clhttp.Logger)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(clotel.HTTPMiddleware(serviceName))

	if cfg.Server.RateLimitRPS > 0 {
		rl := clhttp.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
		defer rl.StartCleanup(time.Minute, 10*time.Minute)()
		r.Use(rl.Handler)
	}

	// Health endpoint with dependency status
	r.Get("/health", healthHandler(pool, queue, hub))

	// WebSocket endpoint
	r.Get("/ws", hub.HandleWS)

	// MCP tool gateway
	r.Handle("/mcp", mcp.AuthMiddleware(cfg.MCP.APIKey, mcpServer.Handler()))
	r.Handle("/mcp/*", mcp.AuthMiddleware(cfg.MCP.APIKey, mcpServer.Handler()))

	// API routes
	clhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return monitor.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := queue.Drain(); err != nil {
			slog.Error("nats drain failed", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// healthHandler returns an http.HandlerFunc that reports service health.
func healthHandler(pool *pgxpool.Pool, queue *clnats.Queue, hub *ws.Hub) http.HandlerFunc {
	type healthStatus struct {
		Status      string `json:"status"`
		Postgres    string `json:"postgres"`
		NATS        string `json:"nats"`
		Connections int    `json:"connections"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{
			Status:      "ok",
			Postgres:    "ok",
			NATS:        "ok",
			Connections: hub.ConnectionCount(),
		}

		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			status.Status = "degraded"
			status.Postgres = "unreachable"
		}
		if !queue.IsConnected() {
			status.Status = "degraded"
			status.NATS = "disconnected"
		}

		code := http.StatusOK
		if status.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}
