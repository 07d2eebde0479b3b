package main

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

	"golang.org/x/sync/errgroup"

	"github.com/sudo-init-do/mardikor/internal/config"
	"github.com/sudo-init-do/mardikor/internal/db"
	"github.com/sudo-init-do/mardikor/internal/events"
	"github.com/sudo-init-do/mardikor/internal/httpx"
	"github.com/sudo-init-do/mardikor/internal/server"
	"github.com/sudo-init-do/mardikor/internal/store"
	"github.com/sudo-init-do/mardikor/internal/store/memory"
	"github.com/sudo-init-do/mardikor/internal/store/postgres"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	httpx.InitLogger(cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, backend, degraded := openStore(ctx, cfg)
	defer st.Close()

	bus, transport, busDegraded := openBus(cfg)
	defer bus.Close()

	s, err := server.New(cfg, server.Deps{
		Store:          st,
		Bus:            bus,
		Backend:        backend,
		Degraded:       degraded,
		Transport:      transport,
		EventsDegraded: busDegraded,
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	if cfg.SeedAdminEmail != "" {
		if _, err := s.Auth.EnsureAdmin(ctx, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Echo,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "port", cfg.Port, "store", backend, "events", transport)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("server stopped gracefully")
	return nil
}

// openStore connects to Postgres when a DSN is configured. The API keeps
// serving from memory when the database is unreachable, and /ready reports
// that as degraded.
func openStore(ctx context.Context, cfg config.Config) (store.Store, string, bool) {
	if cfg.DatabaseURL == "" {
		slog.Info("no database configured, using in-memory store")
		return memory.New(), "memory", false
	}
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database unavailable, falling back to in-memory store", "error", err)
		return memory.New(), "memory", true
	}
	if err := db.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		slog.Error("schema setup failed, falling back to in-memory store", "error", err)
		return memory.New(), "memory", true
	}
	return postgres.New(pool), "postgres", false
}

// openBus builds the configured event transport. An unreachable Redis is
// replaced by the in-process bus, which only fans out within this instance,
// and /ready reports that as degraded.
func openBus(cfg config.Config) (events.Bus, string, bool) {
	switch cfg.EventsTransport {
	case config.TransportRedis:
		bus, err := events.NewRedisBus(cfg.RedisURL)
		if err != nil {
			slog.Error("redis unavailable, falling back to in-memory event bus", "error", err)
			return events.NewMemoryBus(), config.TransportMemory, true
		}
		return bus, config.TransportRedis, false
	case config.TransportMemory:
		return events.NewMemoryBus(), config.TransportMemory, false
	default:
		return events.NewPoller(cfg.PollInterval), config.TransportPoll, false
	}
}
