// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Kinship HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect the document store backend (memory, PostgreSQL or Redis).
//  4. Run database migrations when PostgreSQL is used (idempotent).
//  5. Select the notification sink.
//  6. Wire the engines and their HTTP handlers.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
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

	goredis "github.com/redis/go-redis/v9"

	"github.com/taibuivan/kinship/internal/api"
	"github.com/taibuivan/kinship/internal/core/content"
	"github.com/taibuivan/kinship/internal/core/friend"
	"github.com/taibuivan/kinship/internal/core/group"
	"github.com/taibuivan/kinship/internal/core/moderation"
	"github.com/taibuivan/kinship/internal/platform/config"
	"github.com/taibuivan/kinship/internal/platform/constants"
	"github.com/taibuivan/kinship/internal/platform/docstore"
	"github.com/taibuivan/kinship/internal/platform/migration"
	"github.com/taibuivan/kinship/internal/platform/notify"
	pgstore "github.com/taibuivan/kinship/internal/platform/postgres"
	redisstore "github.com/taibuivan/kinship/internal/platform/redis"
	"github.com/taibuivan/kinship/internal/platform/sec"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("[Kinship] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("store_backend", cfg.StoreBackend),
		slog.String("notify_sink", cfg.NotifySink),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	var checks []api.Check

	// ── 3. Redis (store backend or notification transport) ───────────────
	var rdb *goredis.Client
	if cfg.NeedsRedis() {
		rdb, err = redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing redis client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()
	}

	// ── 4. Document Store ─────────────────────────────────────────────────
	var store docstore.Store
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
		must(log, err, "connect to postgres")
		defer func() {
			log.Info("closing postgres pool")
			pool.Close()
		}()

		must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")
		store = docstore.NewPostgresStore(pool)

	case config.BackendRedis:
		store = docstore.NewRedisStore(rdb, constants.RedisPrefixDocstore)

	default:
		log.Warn("memory_store_in_use", slog.String("hint", "state is lost on restart"))
		store = docstore.NewMemoryStore()
	}
	checks = append(checks, api.Check{Name: "store:" + cfg.StoreBackend, Ping: store.Ping})

	// ── 5. Notification Sink ──────────────────────────────────────────────
	var sink notify.Sink
	switch cfg.NotifySink {
	case config.SinkRedis:
		redisSink := notify.NewRedisSink(rdb, log)
		checks = append(checks, api.Check{Name: "notify:redis", Ping: redisSink.Ping})
		sink = redisSink
	default:
		sink = notify.NewLogSink(log)
	}

	// ── 6. Token Verification ─────────────────────────────────────────────
	jwtSvc, err := sec.NewTokenService(cfg.JWTPrivKeyPath, cfg.JWTPubKeyPath, constants.AuthIssuer)
	must(log, err, "initialize jwt service")

	// ── 7. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{Checks: checks}, log)

	// ── 8. Domain Wiring ──────────────────────────────────────────────────
	friendService := friend.NewService(friend.NewDocRepository(store), sink, log, friend.Options{
		MaxAttempts: cfg.CASMaxAttempts,
		RepairGrace: cfg.ReadRepairGrace,
	})
	groupService := group.NewService(group.NewDocRepository(store), sink, log, group.Options{
		MaxAttempts:    cfg.CASMaxAttempts,
		CountTolerance: cfg.MemberCountTolerance,
	})
	contentService := content.NewService(content.NewDocRepository(store), groupService, sink, log, content.Options{
		MaxAttempts: cfg.CASMaxAttempts,
	})
	moderationService := moderation.NewService(moderation.NewDocRepository(store), contentService, groupService, sink, log, moderation.Options{
		MaxAttempts: cfg.CASMaxAttempts,
	})

	// ── 9. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:   liveness,
		Readiness:  readiness,
		Friend:     friend.NewHandler(friendService),
		Group:      group.NewHandler(groupService),
		Content:    content.NewHandler(contentService),
		Moderation: moderation.NewHandler(moderationService),
	}

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	server := api.NewServer(serverCtx, cfg, log, jwtSvc, handlers)

	// ── 10. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is limited to startup wiring. After startup, all errors are returned and
// handled explicitly.
func must(log *slog.Logger, err error, step string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", step),
			slog.Any("error", fmt.Errorf("%s: %w", step, err)),
		)
		os.Exit(1)
	}
}
