package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/router"
)

// Classifier asks a model for the intent label of a query.
type Classifier struct {
	completer Completer
	policy    Policy
}

// NewClassifier wraps completer with the call policy.
func NewClassifier(completer Completer, policy Policy) *Classifier {
	return &Classifier{completer: completer, policy: policy.withDefaults()}
}

type classification struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Classify returns the raw label the model chose. The label is not validated;
// the router resolves unknown labels.
func (c *Classifier) Classify(ctx context.Context, query string) (string, error) {
	text, err := complete(ctx, c.completer, c.policy, "Classify", classifierSystem, classifierPrompt(query))
	if err != nil {
		return "", err
	}

	var out classification
	if err := json.Unmarshal([]byte(cleanModelJSON(text)), &out); err == nil && out.Intent != "" {
		return out.Intent, nil
	}
	// Some models answer with the bare label.
	return strings.TrimSpace(text), nil
}

// KeywordClassifier classifies without a model, by keyword rules alone.
type KeywordClassifier struct{}

// Classify never fails.
func (KeywordClassifier) Classify(_ context.Context, query string) (string, error) {
	return string(router.KeywordIntent(query)), nil
}

// StaticClassifier always answers with the same intent. It is used when the
// caller already knows which module it wants.
type StaticClassifier domain.Intent

func (s StaticClassifier) Classify(context.Context, string) (string, error) {
	return string(s), nil
}
