// Package state holds the per-query record threaded through classification,
// routing, analysis and synthesis.
package state

import (
	"fmt"

	"github.com/dvloznov/finance-agent/internal/domain"
)

// Stage is a node of the query workflow.
type Stage string

const (
	StageAwaitQuery     Stage = "await_query"
	StageClassifyIntent Stage = "classify_intent"
	StageLoadContext    Stage = "load_context"
	StageDispatch       Stage = "dispatch"
	StageSynthesize     Stage = "synthesize"
	StageDone           Stage = "done"
)

// FallbackResponse is returned when an external collaborator fails.
const FallbackResponse = "I apologize, but I'm having trouble processing your request right now. Please try again in a moment."

// Explanation is one entry of the append-only trace.
type Explanation struct {
	Step  string `json:"step"`
	What  string `json:"what"`
	Input string `json:"input,omitempty"`
}

// Message is a prior conversational turn passed to the synthesizer.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// State is the mutable record for one query. It is owned by a single workflow
// run and never shared between runs.
type State struct {
	UserQuery       string           `json:"user_query"`
	Intent          domain.Intent    `json:"intent"`
	Context         *domain.Snapshot `json:"-"`
	History         []Message        `json:"-"`
	ToolsUsed       []string         `json:"tools_used"`
	AnalysisResults map[string]any   `json:"analysis_results"`
	Response        string           `json:"response"`
	Explanations    []Explanation    `json:"explanations"`
	CurrentStage    Stage            `json:"current_stage"`
	NextAction      string           `json:"next_action,omitempty"`
}

// New returns a default-valued state for query.
func New(query string) *State {
	return &State{
		UserQuery:       query,
		Context:         &domain.Snapshot{},
		ToolsUsed:       []string{},
		AnalysisResults: make(map[string]any),
		Explanations:    []Explanation{},
		CurrentStage:    StageAwaitQuery,
	}
}

// Snapshot returns the context, never nil.
func (s *State) Snapshot() *domain.Snapshot {
	if s.Context == nil {
		s.Context = &domain.Snapshot{}
	}
	return s.Context
}

// RecordTool appends name to ToolsUsed unless it is already present.
func (s *State) RecordTool(name string) {
	for _, t := range s.ToolsUsed {
		if t == name {
			return
		}
	}
	s.ToolsUsed = append(s.ToolsUsed, name)
}

// SetResult stores the result for module name, replacing an earlier one.
func (s *State) SetResult(name string, result any) {
	if s.AnalysisResults == nil {
		s.AnalysisResults = make(map[string]any)
	}
	s.AnalysisResults[name] = result
}

// Result returns the stored result for module name.
func (s *State) Result(name string) (any, bool) {
	r, ok := s.AnalysisResults[name]
	return r, ok
}

// Explain appends an entry to the trace.
func (s *State) Explain(step, what, input string) {
	s.Explanations = append(s.Explanations, Explanation{Step: step, What: what, Input: input})
}

// Explainf appends an entry with a formatted description.
func (s *State) Explainf(step, input, format string, args ...any) {
	s.Explain(step, fmt.Sprintf(format, args...), input)
}

// Advance moves the state to the next stage.
func (s *State) Advance(to Stage) {
	s.CurrentStage = to
}

// Fail applies the external-failure envelope: the intent becomes ERROR, the
// response the canned fallback, and the failure is recorded. Tools and results
// already gathered are kept.
func (s *State) Fail(step string, err error) {
	s.Intent = domain.IntentError
	s.Response = FallbackResponse
	s.Explain(step, "failed: "+err.Error(), s.UserQuery)
}

// Envelope is what a workflow run returns to its caller.
type Envelope struct {
	Response        string         `json:"response"`
	Intent          domain.Intent  `json:"intent"`
	ToolsUsed       []string       `json:"tools_used"`
	AnalysisResults map[string]any `json:"analysis_results"`
	Explanations    []Explanation  `json:"explanations"`
	NextStage       Stage          `json:"next_stage"`
}

// Envelope builds the response envelope from the current state.
func (s *State) Envelope() Envelope {
	return Envelope{
		Response:        s.Response,
		Intent:          s.Intent,
		ToolsUsed:       s.ToolsUsed,
		AnalysisResults: s.AnalysisResults,
		Explanations:    s.Explanations,
		NextStage:       s.CurrentStage,
	}
}
