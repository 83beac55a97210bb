package llm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/state"
)

const classifierSystem = "You are an intent classifier for a personal finance assistant.\n" +
	"Output STRICT JSON only (no comments, no extra text).\n" +
	"Do NOT wrap the response in code fences."

var intentDescriptions = map[domain.Intent]string{
	domain.IntentExpenseTracking:    "spending patterns, transactions, merchants, categories",
	domain.IntentBudgetAnalysis:     "budget status, overspending, remaining budget",
	domain.IntentInvestmentInquiry:  "portfolio performance, gains and losses, allocation",
	domain.IntentGoalTracking:       "progress toward savings goals and timelines",
	domain.IntentFinancialInsights:  "overall financial health, reports, recommendations",
	domain.IntentRiskAssessment:     "financial risk, emergency fund, insurance, stress tests",
	domain.IntentMarketIntelligence: "market conditions, sectors, economic outlook",
	domain.IntentAdvancedPlanning:   "tax, debt, retirement and long-term planning",
	domain.IntentGeneralInquiry:     "greetings and general financial questions",
}

func classifierPrompt(query string) string {
	var b strings.Builder
	b.WriteString("Classify the user query into exactly one of these intents:\n\n")
	for _, in := range domain.Intents {
		fmt.Fprintf(&b, "- %s: %s\n", in, intentDescriptions[in])
	}
	fmt.Fprintf(&b, "\nUser query: %q\n\n", query)
	b.WriteString(`Response format: {"intent": "INTENT_NAME", "confidence": 0.8}`)
	return b.String()
}

const synthesizerSystem = "You are an expert personal finance assistant.\n" +
	"Answer the user's question using ONLY the analysis results provided.\n" +
	"Be specific: quote the figures that matter, then give short, practical recommendations.\n" +
	"If a result reports an error, say which data is missing instead of guessing."

const maxHistoryTurns = 10

func synthesizerPrompt(req SynthesisRequest) (string, error) {
	var b strings.Builder

	history := req.History
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "User question: %s\n", req.Query)
	fmt.Fprintf(&b, "Classified intent: %s\n\n", req.Intent)

	if len(req.Results) == 0 {
		b.WriteString("No analysis modules were run. Answer as a general financial question.\n")
		return b.String(), nil
	}

	raw, err := json.MarshalIndent(req.Results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("synthesizerPrompt: marshal results: %w", err)
	}
	b.WriteString("Analysis results (JSON):\n")
	b.Write(raw)
	b.WriteString("\n")
	return b.String(), nil
}

// SynthesisRequest is everything the synthesizer sees for one query.
type SynthesisRequest struct {
	Query   string
	Intent  domain.Intent
	Results map[string]any
	History []state.Message
}

func sortedResultNames(results map[string]any) []string {
	names := make([]string, 0, len(results))
	for k := range results {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
