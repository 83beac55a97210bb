package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-agent/internal/analysis"
	"github.com/dvloznov/finance-agent/internal/app"
	"github.com/dvloznov/finance-agent/internal/config"
	"github.com/dvloznov/finance-agent/internal/history"
	"github.com/dvloznov/finance-agent/internal/jobs"
	"github.com/dvloznov/finance-agent/internal/jobs/inmemory"
	"github.com/dvloznov/finance-agent/internal/logger"
)

const insightsQuery = "Give me my scheduled financial insights"

// pruneSchedule runs history retention once a day.
const pruneSchedule = "@daily"

// scheduleInsights enqueues one insights job per configured user.
func scheduleInsights(ctx context.Context, pub jobs.Publisher, users []string) error {
	log := logger.FromContext(ctx)
	var failed int
	for _, user := range users {
		job := &jobs.QueryJob{
			Type:      jobs.JobTypeScheduledInsights,
			SessionID: "scheduled-" + user,
			UserID:    user,
			Query:     insightsQuery,
			Module:    analysis.FinancialInsights,
		}
		if err := pub.Publish(ctx, job); err != nil {
			log.Error().Err(err).Str("user_id", user).Msg("Failed to enqueue scheduled insights")
			failed++
			continue
		}
		log.Info().Str("user_id", user).Str("job_id", job.JobID).Msg("Scheduled insights enqueued")
	}
	if failed > 0 {
		return fmt.Errorf("scheduleInsights: %d of %d users failed", failed, len(users))
	}
	return nil
}

// pruneHistory drops chat messages older than retention.
func pruneHistory(ctx context.Context, store history.Store, retention time.Duration, now time.Time) (int64, error) {
	n, err := store.Prune(ctx, now.Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("pruneHistory: %w", err)
	}
	return n, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New()
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log, err := logger.NewWithLevel(cfg.LogLevel)
	if err != nil {
		fallback := logger.New()
		fallback.Fatal().Err(err).Msg("Invalid LOG_LEVEL")
	}

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

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

	log.Info().Msg("Starting worker service")

	if err := jobQueue.Start(ctx, jobs.NewQueryHandler(a.Engine, store)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	scheduler := cron.New(cron.WithLogger(cronLogger{log}))

	if cfg.InsightsCron != "" && len(cfg.InsightsUsers) > 0 {
		_, err := scheduler.AddFunc(cfg.InsightsCron, func() {
			a.Cache.Invalidate()
			if err := scheduleInsights(ctx, jobQueue, cfg.InsightsUsers); err != nil {
				log.Error().Err(err).Msg("Scheduled insights run incomplete")
			}
		})
		if err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.InsightsCron).Msg("Invalid INSIGHTS_CRON")
		}
		log.Info().Str("schedule", cfg.InsightsCron).Strs("users", cfg.InsightsUsers).Msg("Insights schedule registered")
	} else {
		log.Warn().Msg("INSIGHTS_CRON or INSIGHTS_USERS not set - no scheduled insights")
	}

	if cfg.HistoryRetention > 0 {
		if _, err := scheduler.AddFunc(pruneSchedule, func() {
			n, err := pruneHistory(ctx, store, cfg.HistoryRetention, time.Now())
			if err != nil {
				log.Error().Err(err).Msg("History prune failed")
				return
			}
			log.Info().Int64("deleted", n).Dur("retention", cfg.HistoryRetention).Msg("History pruned")
		}); err != nil {
			log.Fatal().Err(err).Msg("Failed to register history prune")
		}
	}

	scheduler.Start()
	log.Info().Msg("Worker service started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	// Let running cron entries finish before the queue stops accepting jobs.
	<-scheduler.Stop().Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	cancel()

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
