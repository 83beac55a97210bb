package domain

import "strings"

// Intent is the classified category of a user's financial question.
type Intent string

const (
	IntentExpenseTracking    Intent = "EXPENSE_TRACKING"
	IntentBudgetAnalysis     Intent = "BUDGET_ANALYSIS"
	IntentInvestmentInquiry  Intent = "INVESTMENT_INQUIRY"
	IntentGoalTracking       Intent = "GOAL_TRACKING"
	IntentFinancialInsights  Intent = "FINANCIAL_INSIGHTS"
	IntentRiskAssessment     Intent = "RISK_ASSESSMENT"
	IntentMarketIntelligence Intent = "MARKET_INTELLIGENCE"
	IntentAdvancedPlanning   Intent = "ADVANCED_PLANNING"
	IntentGeneralInquiry     Intent = "GENERAL_INQUIRY"

	// IntentError marks a run whose external collaborator failed.
	IntentError Intent = "ERROR"
)

// Intents lists every label a classifier may return, in taxonomy order.
var Intents = []Intent{
	IntentExpenseTracking,
	IntentBudgetAnalysis,
	IntentInvestmentInquiry,
	IntentGoalTracking,
	IntentFinancialInsights,
	IntentRiskAssessment,
	IntentMarketIntelligence,
	IntentAdvancedPlanning,
	IntentGeneralInquiry,
}

// ParseIntent normalizes a raw label. ok is false when the label is not part of
// the taxonomy; the returned Intent then carries the normalized raw text.
func ParseIntent(raw string) (Intent, bool) {
	label := strings.ToUpper(strings.TrimSpace(raw))
	label = strings.Trim(label, "\"'`.")
	label = strings.ReplaceAll(label, " ", "_")
	label = strings.ReplaceAll(label, "-", "_")
	for _, in := range Intents {
		if string(in) == label {
			return in, true
		}
	}
	return Intent(label), false
}
