// Package main is the entry point for the watchfolio live market data server.
//
// The server keeps owners' portfolio screens fresh by rotating through their
// holdings one quote at a time, under a single process-wide request ceiling
// shared by every open screen.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/watchfolio/internal/config"
	"github.com/aristath/watchfolio/internal/di"
	"github.com/aristath/watchfolio/internal/server"
	"github.com/aristath/watchfolio/pkg/logger"
)

// main orchestrates startup and shutdown:
// 1. Loads configuration from the environment (.env supported)
// 2. Initializes logging
// 3. Wires databases, providers, the shared limiter and services
// 4. Starts the HTTP server and the maintenance scheduler
// 5. Waits for SIGINT/SIGTERM, then stops sessions, jobs and the server
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Str("provider", cfg.QuoteProvider).
		Int("max_calls_per_minute", cfg.MaxCallsPerMinute).
		Msg("Starting watchfolio")

	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Container: container,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	container.Scheduler.Start()

	log.Info().Int("port", cfg.Port).Msg("Server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// Sessions first so no quote fetch outlives its screen
	container.RotationManager.StopAll()
	container.Scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := container.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close databases")
	}

	log.Info().Msg("Server stopped")
}
