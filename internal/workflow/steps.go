package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-agent/internal/analysis"
	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/llm"
	"github.com/dvloznov/finance-agent/internal/logger"
	"github.com/dvloznov/finance-agent/internal/router"
	"github.com/dvloznov/finance-agent/internal/snapshot"
	"github.com/dvloznov/finance-agent/internal/state"
)

// Run is what the steps of one workflow run share: the state plus the routing
// decision made for it.
type Run struct {
	State   *state.State
	Modules []string
}

// Step is a single node of the query workflow.
type Step interface {
	Execute(ctx context.Context, run *Run) error
}

// Pipeline executes a sequence of steps in order, stopping at the first error.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a pipeline with the given steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially.
func (p *Pipeline) Execute(ctx context.Context, run *Run) error {
	log := logger.FromContext(ctx)
	for i, step := range p.steps {
		if err := step.Execute(ctx, run); err != nil {
			return fmt.Errorf("workflow step %d failed: %w", i+1, err)
		}
		log.Debug().
			Str("stage", string(run.State.CurrentStage)).
			Int("explanations", len(run.State.Explanations)).
			Msg("stage complete")
	}
	return nil
}

// ClassifyIntentStep labels the query and resolves the modules to run.
type ClassifyIntentStep struct {
	Classifier Classifier
	Router     *router.Router
}

func (s *ClassifyIntentStep) Execute(ctx context.Context, run *Run) error {
	st := run.State
	st.Advance(state.StageClassifyIntent)

	label, err := s.Classifier.Classify(ctx, st.UserQuery)
	if err != nil {
		st.Fail(string(state.StageClassifyIntent), err)
		return fmt.Errorf("classifying query: %w", err)
	}

	route := s.Router.Route(label, st.UserQuery)
	st.Intent = route.Intent
	run.Modules = route.Modules
	if route.ByKeyword {
		st.Explainf(string(state.StageClassifyIntent), st.UserQuery,
			"label %q not recognised, routed by keywords to %s", label, route.Intent)
	} else {
		st.Explainf(string(state.StageClassifyIntent), st.UserQuery, "classified as %s", route.Intent)
	}
	return nil
}

// LoadContextStep fills the state's snapshot. A source that fails leaves the
// snapshot empty so modules report missing data.
type LoadContextStep struct {
	Source snapshot.Source
}

func (s *LoadContextStep) Execute(ctx context.Context, run *Run) error {
	st := run.State
	st.Advance(state.StageLoadContext)
	step := string(state.StageLoadContext)

	if s.Source == nil {
		st.Context = &domain.Snapshot{}
		st.Explain(step, "no data source configured", "")
		return nil
	}

	snap, err := s.Source.Load(ctx)
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		st.Context = &domain.Snapshot{}
		st.Explain(step, "no data available", "")
		return nil
	case err != nil:
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("loading snapshot failed, continuing without data")
		st.Context = &domain.Snapshot{}
		st.Explain(step, "failed: "+err.Error(), "")
		return nil
	}

	st.Context = snap
	st.Explainf(step, "", "loaded %d transactions, %d holdings, %d goals, budget=%t",
		len(snap.Transactions), len(snap.Holdings), len(snap.Goals), snap.HasBudget())
	return nil
}

// DispatchStep runs the routed modules in order. A module that returns an
// error or panics is recorded as a failure and the remaining modules still run.
type DispatchStep struct {
	Registry *analysis.Registry
}

func (s *DispatchStep) Execute(ctx context.Context, run *Run) error {
	st := run.State
	st.Advance(state.StageDispatch)
	log := logger.FromContext(ctx)

	if len(run.Modules) == 0 {
		st.Explain(string(state.StageDispatch), "general inquiry, no modules run", st.UserQuery)
		st.NextAction = string(state.StageSynthesize)
		return nil
	}

	for _, name := range run.Modules {
		m, ok := s.Registry.Get(name)
		if !ok {
			st.Explain(name, "failed: unknown module", st.UserQuery)
			log.Error().Str("module", name).Msg("routed to unknown module")
			continue
		}
		if err := runModule(ctx, m, st); err != nil {
			st.Explain(name, "failed: "+err.Error(), st.UserQuery)
			log.Error().Err(err).Str("module", name).Msg("module failed")
			continue
		}
		st.Explain(name, "ran "+m.Description(), st.UserQuery)
	}
	st.NextAction = string(state.StageSynthesize)
	return nil
}

// runModule converts a panic inside m into an error.
func runModule(ctx context.Context, m analysis.Module, st *state.State) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return m.Run(ctx, st)
}

// SynthesizeStep turns the analysis results into the response. A synthesizer
// failure applies the fallback envelope while keeping the results.
type SynthesizeStep struct {
	Synthesizer Synthesizer
}

func (s *SynthesizeStep) Execute(ctx context.Context, run *Run) error {
	st := run.State
	st.Advance(state.StageSynthesize)

	resp, err := s.Synthesizer.Synthesize(ctx, llm.SynthesisRequest{
		Query:   st.UserQuery,
		Intent:  st.Intent,
		Results: st.AnalysisResults,
		History: st.History,
	})
	if err != nil {
		st.Fail(string(state.StageSynthesize), err)
		return nil
	}
	st.Response = resp
	st.NextAction = ""
	st.Explainf(string(state.StageSynthesize), "", "synthesized response from %d results", len(st.AnalysisResults))
	return nil
}
