package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-agent/internal/analysis"
	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/state"
)

// MockCompleter is a mock implementation of Completer for testing.
type MockCompleter struct {
	CompleteFunc func(ctx context.Context, system, prompt string) (string, error)
	Calls        int
	LastPrompt   string
}

func (m *MockCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	m.Calls++
	m.LastPrompt = prompt
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, system, prompt)
	}
	return "", nil
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare", `{"intent":"X"}`, `{"intent":"X"}`},
		{"fenced", "```json\n{\"intent\":\"X\"}\n```", `{"intent":"X"}`},
		{"chatter", "Sure! {\"intent\":\"X\"} hope this helps", `{"intent":"X"}`},
		{"no object", "BUDGET_ANALYSIS", "BUDGET_ANALYSIS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelJSON(tt.raw))
		})
	}
}

func TestClassifier_ParsesJSON(t *testing.T) {
	mock := &MockCompleter{CompleteFunc: func(context.Context, string, string) (string, error) {
		return "```json\n{\"intent\": \"BUDGET_ANALYSIS\", \"confidence\": 0.9}\n```", nil
	}}
	c := NewClassifier(mock, Policy{})

	label, err := c.Classify(context.Background(), "How is my budget?")
	require.NoError(t, err)
	assert.Equal(t, "BUDGET_ANALYSIS", label)
	assert.Contains(t, mock.LastPrompt, "How is my budget?")
	assert.Contains(t, mock.LastPrompt, "MARKET_INTELLIGENCE")
}

func TestClassifier_BareLabel(t *testing.T) {
	mock := &MockCompleter{CompleteFunc: func(context.Context, string, string) (string, error) {
		return " GOAL_TRACKING\n", nil
	}}
	label, err := NewClassifier(mock, Policy{}).Classify(context.Background(), "goals")
	require.NoError(t, err)
	assert.Equal(t, "GOAL_TRACKING", label)
}

func TestClassifier_RetriesOnce(t *testing.T) {
	mock := &MockCompleter{}
	mock.CompleteFunc = func(context.Context, string, string) (string, error) {
		if mock.Calls == 1 {
			return "", errors.New("unavailable")
		}
		return `{"intent":"RISK_ASSESSMENT"}`, nil
	}

	label, err := NewClassifier(mock, Policy{MaxRetries: 1}).Classify(context.Background(), "risk")
	require.NoError(t, err)
	assert.Equal(t, "RISK_ASSESSMENT", label)
	assert.Equal(t, 2, mock.Calls)
}

func TestClassifier_GivesUpAfterRetry(t *testing.T) {
	mock := &MockCompleter{CompleteFunc: func(context.Context, string, string) (string, error) {
		return "", errors.New("unavailable")
	}}

	_, err := NewClassifier(mock, Policy{MaxRetries: 1}).Classify(context.Background(), "risk")
	require.Error(t, err)
	assert.Equal(t, 2, mock.Calls)
	assert.Contains(t, err.Error(), "unavailable")
}

func TestComplete_EmptyResponse(t *testing.T) {
	mock := &MockCompleter{CompleteFunc: func(context.Context, string, string) (string, error) {
		return "   ", nil
	}}

	_, err := NewSynthesizer(mock, Policy{}).Synthesize(context.Background(), SynthesisRequest{Query: "q"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestComplete_Timeout(t *testing.T) {
	mock := &MockCompleter{CompleteFunc: func(ctx context.Context, _, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}

	_, err := NewSynthesizer(mock, Policy{Timeout: 10 * time.Millisecond, MaxRetries: 1}).
		Synthesize(context.Background(), SynthesisRequest{Query: "q"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, mock.Calls)
}

func TestComplete_CancelledParentNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mock := &MockCompleter{}

	_, err := NewSynthesizer(mock, Policy{}).Synthesize(ctx, SynthesisRequest{Query: "q"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, mock.Calls)
}

func TestSynthesizer_Prompt(t *testing.T) {
	mock := &MockCompleter{CompleteFunc: func(context.Context, string, string) (string, error) {
		return "  You spent $500 on food.  ", nil
	}}

	got, err := NewSynthesizer(mock, Policy{}).Synthesize(context.Background(), SynthesisRequest{
		Query:   "How much on food?",
		Intent:  domain.IntentExpenseTracking,
		Results: map[string]any{analysis.TransactionAnalyzer: map[string]float64{"total": 500}},
		History: []state.Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "You spent $500 on food.", got)
	assert.Contains(t, mock.LastPrompt, "EXPENSE_TRACKING")
	assert.Contains(t, mock.LastPrompt, `"total": 500`)
	assert.Contains(t, mock.LastPrompt, "assistant: hello")
}

func TestSynthesizerPrompt_TrimsHistory(t *testing.T) {
	var history []state.Message
	for i := 0; i < 15; i++ {
		history = append(history, state.Message{Role: "user", Content: strings.Repeat("x", i+1)})
	}
	prompt, err := synthesizerPrompt(SynthesisRequest{Query: "q", History: history})
	require.NoError(t, err)
	assert.NotContains(t, prompt, "user: x\n")
	assert.Contains(t, prompt, "user: "+strings.Repeat("x", 15))
	assert.Contains(t, prompt, "No analysis modules were run")
}

func TestKeywordClassifier(t *testing.T) {
	label, err := KeywordClassifier{}.Classify(context.Background(), "Show my portfolio")
	require.NoError(t, err)
	assert.Equal(t, string(domain.IntentInvestmentInquiry), label)
}

func TestPlainSynthesizer(t *testing.T) {
	s := PlainSynthesizer{}

	got, err := s.Synthesize(context.Background(), SynthesisRequest{})
	require.NoError(t, err)
	assert.Equal(t, generalHelp, got)

	got, err = s.Synthesize(context.Background(), SynthesisRequest{Results: map[string]any{
		analysis.BudgetManager:      analysis.ErrorResult{Error: "No budget data available"},
		analysis.InvestmentAnalyzer: analysis.PortfolioOverview{},
	}})
	require.NoError(t, err)
	assert.Contains(t, got, "investment_analyzer")
	assert.Contains(t, got, "budget_manager (No budget data available)")
}
