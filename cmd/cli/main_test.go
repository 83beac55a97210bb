package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/state"
)

func TestRenderEnvelope(t *testing.T) {
	env := state.Envelope{
		Response:  "You are 40% of the way to your emergency fund.",
		Intent:    domain.IntentGoalTracking,
		ToolsUsed: []string{"goal_tracker"},
		Explanations: []state.Explanation{
			{Step: "classify", What: "intent GOAL_TRACKING"},
		},
	}

	var plain bytes.Buffer
	renderEnvelope(&plain, env, false)
	assert.Contains(t, plain.String(), "Intent: GOAL_TRACKING")
	assert.Contains(t, plain.String(), "Tools:  goal_tracker")
	assert.Contains(t, plain.String(), env.Response)
	assert.NotContains(t, plain.String(), "=== Envelope ===")

	var dumped bytes.Buffer
	renderEnvelope(&dumped, env, true)
	assert.Contains(t, dumped.String(), "1. [classify] intent GOAL_TRACKING")
	assert.Contains(t, dumped.String(), "=== Envelope ===")
	assert.Contains(t, dumped.String(), "state.Envelope")
}

func TestRenderEnvelope_NoTools(t *testing.T) {
	var out bytes.Buffer
	renderEnvelope(&out, state.Envelope{Intent: domain.IntentGeneralInquiry, Response: "Hello"}, false)
	assert.NotContains(t, out.String(), "Tools:")
	assert.Contains(t, out.String(), "Hello")
}
