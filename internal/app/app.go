// Package app assembles the workflow engine and its collaborators from
// configuration. The binaries under cmd/ share it.
package app

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/dvloznov/finance-agent/internal/analysis"
	"github.com/dvloznov/finance-agent/internal/config"
	"github.com/dvloznov/finance-agent/internal/gcs"
	infraBQ "github.com/dvloznov/finance-agent/internal/infra/bigquery"
	"github.com/dvloznov/finance-agent/internal/llm"
	"github.com/dvloznov/finance-agent/internal/logger"
	"github.com/dvloznov/finance-agent/internal/notionsync"
	"github.com/dvloznov/finance-agent/internal/router"
	"github.com/dvloznov/finance-agent/internal/snapshot"
	"github.com/dvloznov/finance-agent/internal/workflow"
)

// App holds the assembled engine and the resources it owns.
type App struct {
	Config   *config.Config
	Engine   *workflow.Engine
	Registry *analysis.Registry
	Cache    *snapshot.CachedSource

	closers []func()
}

// Build wires an engine from cfg.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	source, err := a.source(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	cache, err := snapshot.NewCachedSource(source, cfg.SnapshotCacheTTL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("Build: %w", err)
	}
	a.Cache = cache
	a.closers = append(a.closers, cache.Close)

	opts := analysis.Options{}
	if cfg.MarketSeed != 0 {
		opts.Rand = rand.New(rand.NewSource(cfg.MarketSeed))
	}
	a.Registry = analysis.DefaultRegistry(opts)

	rt, err := Router(cfg.RoutesFile, a.Registry)
	if err != nil {
		a.Close()
		return nil, err
	}

	classifier, synthesizer, err := a.languageModel(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Engine = workflow.New(workflow.Config{
		Classifier:  classifier,
		Synthesizer: synthesizer,
		Source:      cache,
		Router:      rt,
		Registry:    a.Registry,
	})
	return a, nil
}

// Close releases clients in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) onClose(f func() error) {
	a.closers = append(a.closers, func() { _ = f() })
}

// Router returns the default router, or one over the YAML table at path
// checked against the registry's module names.
func Router(path string, reg *analysis.Registry) (*router.Router, error) {
	if path == "" {
		return router.New(nil), nil
	}
	table, err := router.LoadTable(path)
	if err != nil {
		return nil, fmt.Errorf("Router: %w", err)
	}
	if err := table.Validate(reg.Names()); err != nil {
		return nil, fmt.Errorf("Router: %w", err)
	}
	return router.New(table), nil
}

// source builds the primary snapshot source for cfg.SnapshotSource. When
// Notion is configured its goals take precedence.
func (a *App) source(ctx context.Context) (snapshot.Source, error) {
	cfg := a.Config
	log := logger.FromContext(ctx)

	var primary snapshot.Source
	switch cfg.SnapshotSource {
	case config.SourceGCS:
		src, err := gcs.NewSnapshotSource(ctx, cfg.GCSBucket, cfg.GCSPrefix)
		if err != nil {
			return nil, fmt.Errorf("source: %w", err)
		}
		a.onClose(src.Close)
		primary = src
	case config.SourceBigQuery:
		repo, err := infraBQ.NewSnapshotRepository(ctx, cfg.BQProject, cfg.BQDataset, cfg.UserID)
		if err != nil {
			return nil, fmt.Errorf("source: %w", err)
		}
		a.onClose(repo.Close)
		primary = repo
	default:
		primary = snapshot.NewFileSource(cfg.DataDir)
	}
	log.Info().Str("source", cfg.SnapshotSource).Msg("Snapshot source configured")

	if !cfg.NotionEnabled() {
		return primary, nil
	}
	goals := notionsync.NewGoalSource(notionsync.NewClient(cfg.NotionToken), cfg.NotionGoalsDB)
	log.Info().Msg("Reading goals from Notion")
	return snapshot.MultiSource{goals, primary}, nil
}

// languageModel returns the classifier and synthesizer for cfg.LLMProvider.
// The "none" provider uses keyword classification and plain synthesis.
func (a *App) languageModel(ctx context.Context) (workflow.Classifier, workflow.Synthesizer, error) {
	cfg := a.Config
	policy := llm.Policy{Timeout: cfg.LLMTimeout, MaxRetries: cfg.LLMMaxRetries}

	var completer llm.Completer
	switch cfg.LLMProvider {
	case config.ProviderNone:
		return llm.KeywordClassifier{}, llm.PlainSynthesizer{}, nil
	case config.ProviderAnthropic:
		completer = llm.NewAnthropicCompleter(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	default:
		gc, err := llm.NewGeminiCompleter(ctx, cfg.GeminiModel)
		if err != nil {
			return nil, nil, fmt.Errorf("languageModel: %w", err)
		}
		completer = gc
	}
	return llm.NewClassifier(completer, policy), llm.NewSynthesizer(completer, policy), nil
}
