package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/app/migrate"
	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/cache"
	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/controlplane"
	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/domain"
	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/engine"
	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/httpx"
	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/notify"
	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/repository"
	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/repository/postgres"
	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/repository/redisstate"
	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/ws"
	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/pkg/config"
	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/pkg/logger"
)

func main() {
	cfg := config.LoadEngineConfig()
	log := logger.New("deploywatch", slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)

	var states repository.StateRepository = repo
	if addr := strings.TrimSpace(cfg.StateRedisAddr); addr != "" {
		redisStore, err := redisstate.New(addr, cfg.StateRedisPassword, cfg.StateRedisDB)
		if err != nil {
			log.Warn("redis state store unavailable, falling back to database", "error", err)
		} else {
			defer redisStore.Close()
			states = redisStore
		}
	}

	var hub *ws.Hub
	var sink engine.EventSink
	if cfg.EventFeedEnabled {
		hub = ws.NewHub()
		sink = hub
	}
	notifier := notify.NewDispatcher(cfg.NotifyTimeout, log)
	purger := cache.NewPurger(cfg.CachePurgeURL, cfg.CachePurgeToken, cfg.CachePurgeTimeout, log)
	clientFactory := func(server domain.Server) engine.ControlPlaneClient {
		return controlplane.NewClient(server, cfg.ControlPlaneTimeout, log)
	}

	eng := engine.New(repo, repo, states, clientFactory, notifier, purger, sink, log, cfg)
	go eng.Loop(ctx)

	router := httpx.NewRouter(log, eng, hub, cfg.EngineToken, pool.Ping)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("engine server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("engine server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
