// Package workflow drives one query through classification, context loading,
// module dispatch and synthesis, and always returns a response envelope.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finance-agent/internal/analysis"
	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/llm"
	"github.com/dvloznov/finance-agent/internal/logger"
	"github.com/dvloznov/finance-agent/internal/router"
	"github.com/dvloznov/finance-agent/internal/snapshot"
	"github.com/dvloznov/finance-agent/internal/state"
)

// ErrUnknownModule is returned by RunModule for names not in the registry.
var ErrUnknownModule = errors.New("workflow: unknown module")

// Classifier labels a query with a raw intent label.
type Classifier interface {
	Classify(ctx context.Context, query string) (string, error)
}

// Synthesizer turns analysis results into prose.
type Synthesizer interface {
	Synthesize(ctx context.Context, req llm.SynthesisRequest) (string, error)
}

// Config holds the engine's collaborators. Nil fields get offline defaults:
// keyword classification, plain synthesis, the default routing table and
// module registry, and an empty snapshot.
type Config struct {
	Classifier  Classifier
	Synthesizer Synthesizer
	Source      snapshot.Source
	Router      *router.Router
	Registry    *analysis.Registry
	Clock       func() time.Time
}

// Engine owns the workflow. It is safe for concurrent use; each call builds
// its own state.
type Engine struct {
	registry *analysis.Registry
	router   *router.Router
	clock    func() time.Time

	full   *Pipeline
	direct *Pipeline
}

// New creates an engine from cfg.
func New(cfg Config) *Engine {
	if cfg.Classifier == nil {
		cfg.Classifier = llm.KeywordClassifier{}
	}
	if cfg.Synthesizer == nil {
		cfg.Synthesizer = llm.PlainSynthesizer{}
	}
	if cfg.Source == nil {
		cfg.Source = snapshot.StaticSource{}
	}
	if cfg.Router == nil {
		cfg.Router = router.New(nil)
	}
	if cfg.Registry == nil {
		cfg.Registry = analysis.DefaultRegistry(analysis.Options{Clock: cfg.Clock})
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	load := &LoadContextStep{Source: cfg.Source}
	dispatch := &DispatchStep{Registry: cfg.Registry}
	synth := &SynthesizeStep{Synthesizer: cfg.Synthesizer}

	return &Engine{
		registry: cfg.Registry,
		router:   cfg.Router,
		clock:    cfg.Clock,
		full: NewPipeline(
			&ClassifyIntentStep{Classifier: cfg.Classifier, Router: cfg.Router},
			load,
			dispatch,
			synth,
		),
		direct: NewPipeline(load, dispatch, synth),
	}
}

// Registry returns the engine's module registry.
func (e *Engine) Registry() *analysis.Registry {
	return e.registry
}

// Routes returns the engine's routing table.
func (e *Engine) Routes() router.Table {
	return e.router.Table()
}

// Process runs query through the full workflow. history is passed to the
// synthesizer as prior conversation.
func (e *Engine) Process(ctx context.Context, query string, history []state.Message) state.Envelope {
	st := state.New(query)
	st.History = history
	return e.execute(ctx, e.full, &Run{State: st})
}

// ProcessSync runs query with a background context and no history.
func (e *Engine) ProcessSync(query string) state.Envelope {
	return e.Process(context.Background(), query, nil)
}

// RunModule runs the single named module for query, skipping classification.
// The intent is the one the routing table maps to the module, or a general
// inquiry when none does.
func (e *Engine) RunModule(ctx context.Context, name, query string) (state.Envelope, error) {
	if _, ok := e.registry.Get(name); !ok {
		return state.Envelope{}, fmt.Errorf("RunModule: %q: %w", name, ErrUnknownModule)
	}
	st := state.New(query)
	st.Intent = e.intentFor(name)
	st.Explainf(string(state.StageClassifyIntent), query, "module %s requested directly", name)
	return e.execute(ctx, e.direct, &Run{State: st, Modules: []string{name}}), nil
}

func (e *Engine) intentFor(module string) domain.Intent {
	for _, intent := range domain.Intents {
		for _, m := range e.router.Modules(intent) {
			if m == module {
				return intent
			}
		}
	}
	return domain.IntentGeneralInquiry
}

func (e *Engine) execute(ctx context.Context, p *Pipeline, run *Run) state.Envelope {
	start := e.clock()
	st := run.State
	log := logger.FromContext(ctx)

	if err := p.Execute(ctx, run); err != nil {
		log.Warn().Err(err).Str("stage", string(st.CurrentStage)).Msg("workflow stopped early")
		if st.Intent != domain.IntentError {
			st.Fail(string(st.CurrentStage), err)
		}
	}
	st.Advance(state.StageDone)

	log.Info().
		Str("intent", string(st.Intent)).
		Strs("tools", st.ToolsUsed).
		Dur("duration", e.clock().Sub(start)).
		Msg("query processed")
	return st.Envelope()
}
