package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fvnks/konecte-chatbridge/internal/api"
	"github.com/fvnks/konecte-chatbridge/internal/bridge"
	"github.com/fvnks/konecte-chatbridge/internal/config"
	"github.com/fvnks/konecte-chatbridge/internal/fanout"
	"github.com/fvnks/konecte-chatbridge/internal/handlers"
	"github.com/fvnks/konecte-chatbridge/internal/identity"
	"github.com/fvnks/konecte-chatbridge/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize store: postgres in production, sqlite otherwise
	var db store.DataStore
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		db = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		db = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened SQLite store")
	}
	defer db.Close()

	// Identity resolver: directory service, or a static map in development
	var ids identity.Resolver
	if cfg.DirectoryURL != "" {
		resolver, err := identity.NewDirectoryResolver(cfg.DirectoryURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("directory resolver setup failed")
		}
		ids = resolver
		logger.Info().Str("url", cfg.DirectoryURL).Msg("using directory resolver")
	} else {
		ids = identity.NewStaticResolver(identity.ParseStaticMap(cfg.IdentityMap))
		logger.Warn().Msg("no DIRECTORY_URL set, using static identity map")
	}

	// Fan-out: local hub, bridged over redis when configured
	hub := fanout.NewHub(logger)
	var notifier fanout.Notifier = fanout.NewLocalNotifier(hub)
	var bus *fanout.RedisBus
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		var err error
		bus, err = fanout.NewRedisBus(ctx, cfg.RedisURL, hub, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer bus.Close()
		go bus.Run(ctx)
		notifier = bus
		redisClient = bus.Client()
		logger.Info().Msg("connected to Redis, fan-out is cross-process")
	}

	svc := bridge.New(db, ids, notifier, cfg.NotifyTimeout, logger)
	h := handlers.NewHandler(svc, db, hub, bus, cfg.ClaimKeyHash, logger)
	router := api.NewRouter(logger, h, redisClient)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting chat bridge")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
