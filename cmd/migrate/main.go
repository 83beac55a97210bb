package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	infraBQ "github.com/dvloznov/finance-agent/internal/infra/bigquery"
	"github.com/dvloznov/finance-agent/internal/logger"
)

var (
	projectID  = flag.String("project", os.Getenv("BQ_PROJECT"), "GCP project ID (or set BQ_PROJECT)")
	datasetID  = flag.String("dataset", infraBQ.DefaultDatasetID, "BigQuery dataset ID")
	appliedBy  = flag.String("applied-by", "migrate-cli", "Name recorded as the applier")
	statusOnly = flag.Bool("status", false, "Show migration status without applying")
)

// migrationState is one line of the status report.
type migrationState struct {
	Migration infraBQ.Migration
	Applied   bool
	Drifted   bool
}

// plan matches embedded migrations against the recorded ones. Drifted marks an
// applied migration whose file changed since it ran.
func plan(migrations []infraBQ.Migration, applied []infraBQ.AppliedMigration) []migrationState {
	recorded := make(map[int]infraBQ.AppliedMigration, len(applied))
	for _, a := range applied {
		recorded[a.Version] = a
	}
	out := make([]migrationState, 0, len(migrations))
	for _, m := range migrations {
		a, ok := recorded[m.Version]
		out = append(out, migrationState{
			Migration: m,
			Applied:   ok,
			Drifted:   ok && a.Checksum != "" && a.Checksum != m.Checksum,
		})
	}
	return out
}

func main() {
	flag.Parse()
	log := logger.New()

	if *projectID == "" {
		log.Fatal().Msg("Error: -project flag is required. Please specify your GCP project ID.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	migrations, err := infraBQ.Migrations(*projectID, *datasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Int("count", len(migrations)).Msg("Found embedded migrations")

	migrator, err := infraBQ.NewMigrator(ctx, *projectID, *datasetID, *appliedBy)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create migrator")
	}
	defer migrator.Close()

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	if *statusOnly {
		applied, err := migrator.Applied(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read applied migrations")
		}
		for _, s := range plan(migrations, applied) {
			mark := "PENDING"
			switch {
			case s.Drifted:
				mark = "CHANGED"
			case s.Applied:
				mark = "APPLIED"
			}
			fmt.Printf("  [%-7s] %04d_%s\n", mark, s.Migration.Version, s.Migration.Name)
		}
		return
	}

	count, err := migrator.Apply(ctx, migrations)
	if err != nil {
		log.Fatal().Err(err).Int("applied", count).Msg("Migration failed")
	}

	if count == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
		return
	}
	log.Info().Int("applied", count).Msg("Migrations applied")
}
