package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-agent/internal/analysis"
)

// Synthesizer turns analysis results into a prose answer with a model.
type Synthesizer struct {
	completer Completer
	policy    Policy
}

// NewSynthesizer wraps completer with the call policy.
func NewSynthesizer(completer Completer, policy Policy) *Synthesizer {
	return &Synthesizer{completer: completer, policy: policy.withDefaults()}
}

// Synthesize returns the model's answer to req.
func (s *Synthesizer) Synthesize(ctx context.Context, req SynthesisRequest) (string, error) {
	prompt, err := synthesizerPrompt(req)
	if err != nil {
		return "", err
	}
	text, err := complete(ctx, s.completer, s.policy, "Synthesize", synthesizerSystem, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

const generalHelp = "I can help with spending, budgets, investments, goals, overall financial health, " +
	"risk, market conditions and long-term planning. Ask me about any of these."

// PlainSynthesizer writes a short answer without a model, listing which
// analyses ran and which lacked data.
type PlainSynthesizer struct{}

func (PlainSynthesizer) Synthesize(_ context.Context, req SynthesisRequest) (string, error) {
	if len(req.Results) == 0 {
		return generalHelp, nil
	}

	var ok, failed []string
	for _, name := range sortedResultNames(req.Results) {
		if e, isErr := req.Results[name].(analysis.ErrorResult); isErr {
			failed = append(failed, fmt.Sprintf("%s (%s)", name, e.Error))
			continue
		}
		ok = append(ok, name)
	}

	var b strings.Builder
	if len(ok) > 0 {
		fmt.Fprintf(&b, "Here is what I found using %s. See the analysis results for the details.", strings.Join(ok, ", "))
	}
	if len(failed) > 0 {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "Some analyses had no data: %s.", strings.Join(failed, "; "))
	}
	return b.String(), nil
}
