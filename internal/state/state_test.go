package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-agent/internal/domain"
)

func TestNew(t *testing.T) {
	s := New("how much did I spend?")

	assert.Equal(t, "how much did I spend?", s.UserQuery)
	assert.Equal(t, StageAwaitQuery, s.CurrentStage)
	assert.Empty(t, s.ToolsUsed)
	assert.NotNil(t, s.AnalysisResults)
	assert.NotNil(t, s.Snapshot())
}

func TestRecordTool_Idempotent(t *testing.T) {
	s := New("q")
	s.RecordTool("budget_manager")
	s.RecordTool("risk_assessment")
	s.RecordTool("budget_manager")

	assert.Equal(t, []string{"budget_manager", "risk_assessment"}, s.ToolsUsed)
}

func TestFail_KeepsPartialResults(t *testing.T) {
	s := New("q")
	s.RecordTool("budget_manager")
	s.SetResult("budget_manager", map[string]int{"a": 1})

	s.Fail("synthesize", errors.New("timeout"))

	assert.Equal(t, domain.IntentError, s.Intent)
	assert.Equal(t, FallbackResponse, s.Response)
	assert.Equal(t, []string{"budget_manager"}, s.ToolsUsed)
	_, ok := s.Result("budget_manager")
	assert.True(t, ok)
	require.Len(t, s.Explanations, 1)
	assert.Equal(t, "failed: timeout", s.Explanations[0].What)
}

func TestEnvelope(t *testing.T) {
	s := New("q")
	s.Intent = domain.IntentBudgetAnalysis
	s.Response = "ok"
	s.Advance(StageDone)
	s.Explainf("dispatch", "q", "ran %d modules", 1)

	env := s.Envelope()
	assert.Equal(t, "ok", env.Response)
	assert.Equal(t, StageDone, env.NextStage)
	assert.Equal(t, "ran 1 modules", env.Explanations[0].What)
}
