package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autolot-backend/internal/config"
	"autolot-backend/internal/interfaces/router"
	"autolot-backend/internal/pkg/logging"

	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("Config load failed")
	}
	logging.Setup(cfg.Env)

	srv, err := router.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("App create failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if srv.DB != nil {
		sqlDB, err := srv.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			log.Fatal().Err(err).Msg("Postgres connection failed")
		}
		log.Info().Msg("Postgres connected")
	} else {
		log.Warn().Msg("No database configured; only health and time routes are served")
	}
	if srv.Rdb != nil {
		if err := srv.Rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("Redis connection failed")
		}
		log.Info().Msg("Redis connected")
	}

	if srv.Sweeper != nil {
		if err := srv.Sweeper.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Status sweeper start failed")
		}
		defer srv.Sweeper.Stop()
	}
	if srv.Watcher != nil {
		if err := srv.Watcher.Start(ctx); err != nil {
			log.Error().Err(err).Msg("Change watcher unavailable; relying on the status sweep")
		} else {
			defer func() { _ = srv.Watcher.Close() }()
		}
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server running")
		errc <- srv.App.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errc:
		if err != nil {
			log.Error().Err(err).Msg("Server stopped")
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.App.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			log.Error().Err(err).Msg("Shutdown incomplete")
		}
	}
}
