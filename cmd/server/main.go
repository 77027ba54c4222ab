package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/visionbatch/internal/api"
	"github.com/andresuchdata/visionbatch/internal/config"
	"github.com/andresuchdata/visionbatch/internal/pipeline"
	"github.com/andresuchdata/visionbatch/internal/repository/postgres"
	"github.com/andresuchdata/visionbatch/internal/service"
	"github.com/andresuchdata/visionbatch/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	if cfg.Log.Format == "json" {
		logger.UseJSON(os.Stderr)
	}
	logger.SetLevel(cfg.Log.Level)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.Database.URL == "" {
		logger.Log.Fatal().Msg("DATABASE_URL is required to serve the run ledger")
	}
	if err := postgres.Migrate(cfg.Database.URL); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	// Initialize database
	db, err := postgres.NewDB(cfg.Database.URL)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Initialize services
	runService := service.NewRunService(pipeline.NewRepository(db))

	// Initialize HTTP server
	router := api.NewRouter(&api.Services{RunService: runService}, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
