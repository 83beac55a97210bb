package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/history"
	"github.com/dvloznov/finance-agent/internal/state"
)

type MockEngine struct {
	ProcessFunc   func(ctx context.Context, query string, hist []state.Message) state.Envelope
	RunModuleFunc func(ctx context.Context, name, query string) (state.Envelope, error)
	LastHistory   []state.Message
}

func (m *MockEngine) Process(ctx context.Context, query string, hist []state.Message) state.Envelope {
	m.LastHistory = hist
	if m.ProcessFunc != nil {
		return m.ProcessFunc(ctx, query, hist)
	}
	return state.Envelope{Response: "answer to " + query, Intent: domain.IntentBudgetAnalysis}
}

func (m *MockEngine) RunModule(ctx context.Context, name, query string) (state.Envelope, error) {
	if m.RunModuleFunc != nil {
		return m.RunModuleFunc(ctx, name, query)
	}
	return state.Envelope{Response: "ran " + name, ToolsUsed: []string{name}}, nil
}

func TestQueryHandler_ProcessesWithHistory(t *testing.T) {
	ctx := context.Background()
	store := history.NewMemoryStore()
	_, err := store.Append(ctx, "s1", history.RoleUser, "earlier question")
	require.NoError(t, err)

	engine := &MockEngine{}
	job := &QueryJob{JobID: "j1", SessionID: "s1", Query: "how is my budget?"}

	require.NoError(t, NewQueryHandler(engine, store)(ctx, job))
	require.NotNil(t, job.Result)
	assert.Equal(t, "answer to how is my budget?", job.Result.Response)
	assert.Equal(t, []state.Message{{Role: history.RoleUser, Content: "earlier question"}}, engine.LastHistory)

	msgs, err := store.List(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, history.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "answer to how is my budget?", msgs[2].Content)
}

func TestQueryHandler_ModuleJob(t *testing.T) {
	job := &QueryJob{Type: JobTypeScheduledInsights, Module: "financial_insights"}

	require.NoError(t, NewQueryHandler(&MockEngine{}, nil)(context.Background(), job))
	assert.Equal(t, []string{"financial_insights"}, job.Result.ToolsUsed)
}

func TestQueryHandler_ModuleError(t *testing.T) {
	engine := &MockEngine{RunModuleFunc: func(ctx context.Context, name, query string) (state.Envelope, error) {
		return state.Envelope{}, errors.New("unknown module")
	}}
	err := NewQueryHandler(engine, nil)(context.Background(), &QueryJob{Module: "nope"})
	assert.ErrorContains(t, err, "unknown module")
}

func TestQueryHandler_ErrorIntentFailsWithoutHistory(t *testing.T) {
	ctx := context.Background()
	store := history.NewMemoryStore()
	engine := &MockEngine{ProcessFunc: func(ctx context.Context, query string, hist []state.Message) state.Envelope {
		return state.Envelope{
			Intent:       domain.IntentError,
			Response:     state.FallbackResponse,
			Explanations: []state.Explanation{{Step: "classify_intent", What: "failed: timeout"}},
		}
	}}
	job := &QueryJob{SessionID: "s1", Query: "q"}

	err := NewQueryHandler(engine, store)(ctx, job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classify_intent: failed: timeout")
	assert.Equal(t, domain.IntentError, job.Result.Intent)

	msgs, err := store.List(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

// flakyStore fails the first exchange write and passes later ones through.
type flakyStore struct {
	history.Store
	failures int
}

func (f *flakyStore) AppendExchange(ctx context.Context, sessionID, user, assistant string) ([]history.Message, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("transient")
	}
	return f.Store.AppendExchange(ctx, sessionID, user, assistant)
}

func TestQueryHandler_RetryAfterHistoryFailureStoresOneExchange(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: history.NewMemoryStore(), failures: 1}
	handler := NewQueryHandler(&MockEngine{}, store)
	job := &QueryJob{JobID: "j1", SessionID: "s1", Query: "q"}

	err := handler(ctx, job)
	assert.ErrorContains(t, err, "transient")

	msgs, err := store.List(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, handler(ctx, job))

	msgs, err = store.List(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, history.RoleUser, msgs[0].Role)
	assert.Equal(t, "q", msgs[0].Content)
	assert.Equal(t, history.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "answer to q", msgs[1].Content)
}

func TestQueryJob_GetType(t *testing.T) {
	assert.Equal(t, JobTypeQuery, (&QueryJob{}).GetType())
	assert.Equal(t, JobTypeScheduledInsights, (&QueryJob{Type: JobTypeScheduledInsights}).GetType())
}
