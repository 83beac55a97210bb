package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-agent/internal/api"
	"github.com/dvloznov/finance-agent/internal/app"
	"github.com/dvloznov/finance-agent/internal/config"
	"github.com/dvloznov/finance-agent/internal/history"
	"github.com/dvloznov/finance-agent/internal/jobs"
	"github.com/dvloznov/finance-agent/internal/jobs/inmemory"
	"github.com/dvloznov/finance-agent/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New()
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	var (
		port    = flag.String("port", cfg.Port, "HTTP server port")
		dataDir = flag.String("data", cfg.DataDir, "Snapshot directory for the file source")
	)
	flag.Parse()
	cfg.Port = *port
	cfg.DataDir = *dataDir

	log, err := logger.NewWithLevel(cfg.LogLevel)
	if err != nil {
		fallback := logger.New()
		fallback.Fatal().Err(err).Msg("Invalid LOG_LEVEL")
	}

	ctx := logger.WithContext(context.Background(), log)

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build workflow engine")
	}
	defer a.Close()

	store, err := history.Open(ctx, cfg.HistoryDriver, cfg.HistoryDSN)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.HistoryDriver).Msg("Failed to open history store")
	}
	defer store.Close()

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.JobBuffer, cfg.JobWorkers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := jobQueue.Start(workerCtx, jobs.NewQueryHandler(a.Engine, store)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job worker")
	}
	log.Info().Int("workers", cfg.JobWorkers).Msg("Job worker started")

	if !cfg.AuthEnabled() {
		log.Warn().Msg("JWT_SECRET not set - API authentication is disabled")
	}

	handler := api.NewHandler(api.Deps{
		Engine:    a.Engine,
		Registry:  a.Registry,
		Source:    a.Cache,
		Routes:    a.Engine.Routes(),
		History:   store,
		Publisher: jobQueue,
		Jobs:      jobStore,
		JWTSecret: cfg.JWTSecret,
		Log:       log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LLMTimeout*2 + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
