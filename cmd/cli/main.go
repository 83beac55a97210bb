package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-agent/internal/analysis"
	"github.com/dvloznov/finance-agent/internal/app"
	"github.com/dvloznov/finance-agent/internal/config"
	"github.com/dvloznov/finance-agent/internal/gcs"
	infraBQ "github.com/dvloznov/finance-agent/internal/infra/bigquery"
	"github.com/dvloznov/finance-agent/internal/logger"
	"github.com/dvloznov/finance-agent/internal/metrics"
	"github.com/dvloznov/finance-agent/internal/notionsync"
	"github.com/dvloznov/finance-agent/internal/scoring"
	"github.com/dvloznov/finance-agent/internal/snapshot"
	"github.com/dvloznov/finance-agent/internal/state"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if l, err := logger.NewWithLevel(cfg.LogLevel); err == nil {
		log = l
	}

	switch os.Args[1] {
	case "ask":
		runAsk(log, cfg)
	case "modules":
		runModules(log, cfg)
	case "score":
		runScore(log, cfg)
	case "market":
		runMarket(cfg)
	case "goals-sync":
		runGoalsSync(log, cfg)
	case "import":
		runImport(log, cfg)
	case "upload":
		runUpload(log, cfg)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Finance Agent CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  ask         Ask a question and print the response")
	fmt.Println("  modules     List the analysis modules")
	fmt.Println("  score       Print the financial health and risk scores")
	fmt.Println("  market      Print a market intelligence report")
	fmt.Println("  goals-sync  Publish goal progress to Notion")
	fmt.Println("  import      Import a snapshot directory into BigQuery")
	fmt.Println("  upload      Upload a snapshot directory to GCS")
	fmt.Println("  help        Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// build assembles the engine from cfg or exits.
func build(ctx context.Context, log zerolog.Logger, cfg *config.Config) *app.App {
	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build workflow engine")
	}
	return a
}

func runAsk(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	module := fs.String("module", "", "Run a single module instead of routing")
	dump := fs.Bool("dump", false, "Dump the full response envelope")
	dataDir := fs.String("data", cfg.DataDir, "Snapshot directory for the file source")
	fs.Parse(os.Args[2:])

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" && *module == "" {
		log.Fatal().Msg("Usage: cli ask [-module NAME] [-dump] QUESTION")
	}
	cfg.DataDir = *dataDir

	ctx, cancel := context.WithTimeout(context.Background(), cfg.LLMTimeout*3)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := build(ctx, log, cfg)
	defer a.Close()

	var env state.Envelope
	if *module != "" {
		var err error
		env, err = a.Engine.RunModule(ctx, *module, query)
		if err != nil {
			log.Fatal().Err(err).Str("module", *module).Msg("Module run failed")
		}
	} else {
		env = a.Engine.Process(ctx, query, nil)
	}

	renderEnvelope(os.Stdout, env, *dump)
}

// renderEnvelope prints the response and, with dump set, the whole envelope.
func renderEnvelope(w io.Writer, env state.Envelope, dump bool) {
	fmt.Fprintf(w, "Intent: %s\n", env.Intent)
	if len(env.ToolsUsed) > 0 {
		fmt.Fprintf(w, "Tools:  %s\n", strings.Join(env.ToolsUsed, ", "))
	}
	fmt.Fprintf(w, "\n%s\n", env.Response)

	if !dump {
		return
	}
	fmt.Fprintln(w, "\n=== Explanations ===")
	for i, e := range env.Explanations {
		fmt.Fprintf(w, "%d. [%s] %s\n", i+1, e.Step, e.What)
	}
	fmt.Fprintln(w, "\n=== Envelope ===")
	fmt.Fprint(w, spew.Sdump(env))
}

func runModules(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("modules", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	reg := analysis.DefaultRegistry(analysis.Options{})
	if _, err := app.Router(cfg.RoutesFile, reg); err != nil {
		log.Warn().Err(err).Str("routes_file", cfg.RoutesFile).Msg("Routing table does not match the registry")
	}

	fmt.Printf("\n=== Modules (%d) ===\n", len(reg.Names()))
	for _, info := range reg.Catalogue() {
		fmt.Printf("  %-22s %s\n", info.Name, info.Description)
	}
	fmt.Println()
}

func runScore(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("score", flag.ExitOnError)
	dataDir := fs.String("data", cfg.DataDir, "Snapshot directory for the file source")
	month := fs.String("month", time.Now().Format("2006-01"), "Budget month (YYYY-MM)")
	fs.Parse(os.Args[2:])
	cfg.DataDir = *dataDir

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := build(ctx, log, cfg)
	defer a.Close()

	snap, err := a.Cache.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load snapshot")
	}

	health := scoring.HealthFromSnapshot(snap, *month, metrics.PlannerLiquidFraction)
	risk := scoring.RiskFromSnapshot(snap, *month, metrics.RiskLiquidFraction)

	fmt.Println("\n=== Financial Health ===")
	fmt.Printf("Overall:          %.1f (%s)\n", health.Total, health.Rating)
	fmt.Printf("Emergency fund:   %.1f\n", health.EmergencyFund)
	fmt.Printf("Savings rate:     %.1f\n", health.Savings)
	fmt.Printf("Budget adherence: %.1f\n", health.BudgetAdherence)
	fmt.Printf("Diversification:  %.1f\n", health.Diversification)

	fmt.Println("\n=== Risk ===")
	fmt.Printf("Overall:           %.1f (%s)\n", risk.Total, risk.Level)
	fmt.Printf("Income volatility: %.1f\n", risk.IncomeVolatility)
	fmt.Printf("Liquidity:         %.1f\n", risk.Liquidity)
	fmt.Printf("Concentration:     %.1f\n", risk.Concentration)
	fmt.Printf("Budget overrun:    %.1f\n", risk.BudgetOverrun)
	fmt.Println()
}

func runMarket(cfg *config.Config) {
	fs := flag.NewFlagSet("market", flag.ExitOnError)
	seed := fs.Int64("seed", cfg.MarketSeed, "Seed for the synthetic market data (0 uses the clock)")
	fs.Parse(os.Args[2:])

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	report := analysis.BuildMarketReport(rand.New(rand.NewSource(*seed)))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
		os.Exit(1)
	}
}

func runGoalsSync(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("goals-sync", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", cfg.NotionDryRun, "Log changes without writing to Notion")
	dataDir := fs.String("data", cfg.DataDir, "Snapshot directory for the file source")
	fs.Parse(os.Args[2:])
	cfg.DataDir = *dataDir

	if !cfg.NotionEnabled() {
		log.Fatal().Msg("Error: NOTION_TOKEN and NOTION_GOALS_DB are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := build(ctx, log, cfg)
	defer a.Close()

	snap, err := a.Cache.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load goals")
	}
	if !snap.HasGoals() {
		fmt.Println("No goals to publish.")
		return
	}

	publisher := notionsync.NewProgressPublisher(notionsync.NewClient(cfg.NotionToken), cfg.NotionGoalsDB)
	stats, err := publisher.Publish(ctx, snap.Goals, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Goal sync failed")
	}

	fmt.Printf("Goal sync finished: %d created, %d updated, %d failed\n", stats.Created, stats.Updated, stats.Failed)
	if stats.Failed > 0 {
		os.Exit(1)
	}
}

func runImport(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	dir := fs.String("dir", cfg.DataDir, "Snapshot directory to import")
	project := fs.String("project", cfg.BQProject, "GCP project ID")
	dataset := fs.String("dataset", cfg.BQDataset, "BigQuery dataset ID")
	user := fs.String("user", cfg.UserID, "User the records belong to")
	fs.Parse(os.Args[2:])

	if *project == "" {
		log.Fatal().Msg("Error: -project (or BQ_PROJECT) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	snap, err := snapshot.NewFileSource(*dir).Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("dir", *dir).Msg("Failed to read snapshot")
	}

	repo, err := infraBQ.NewSnapshotRepository(ctx, *project, *dataset, *user)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	defer repo.Close()

	log.Info().
		Str("dir", *dir).
		Int("transactions", len(snap.Transactions)).
		Int("holdings", len(snap.Holdings)).
		Int("goals", len(snap.Goals)).
		Msg("Importing snapshot")

	if err := repo.Import(ctx, snap); err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	fmt.Println("Import completed successfully.")
}

func runUpload(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	dir := fs.String("dir", cfg.DataDir, "Local snapshot directory")
	bucket := fs.String("bucket", cfg.GCSBucket, "GCS bucket name")
	prefix := fs.String("prefix", cfg.GCSPrefix, "Object prefix inside the bucket")
	fs.Parse(os.Args[2:])

	if *bucket == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME [-prefix PREFIX] [-dir PATH]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	src, err := gcs.NewSnapshotSource(ctx, *bucket, *prefix)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create GCS client")
	}
	defer src.Close()

	uploaded, err := src.UploadDir(ctx, *dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	for _, object := range uploaded {
		fmt.Printf("Uploaded gs://%s/%s\n", *bucket, object)
	}
}
