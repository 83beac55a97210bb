// Package analysis implements the eight analysis modules. Each module reads the
// state's query and snapshot, writes one result under its own name and records
// itself in the state's tool list.
package analysis

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/dvloznov/finance-agent/internal/state"
)

// Stable module names.
const (
	TransactionAnalyzer      = "transaction_analyzer"
	BudgetManager            = "budget_manager"
	InvestmentAnalyzer       = "investment_analyzer"
	GoalTracker              = "goal_tracker"
	FinancialInsights        = "financial_insights"
	AdvancedFinancialPlanner = "advanced_financial_planner"
	RiskAssessment           = "risk_assessment"
	MarketIntelligence       = "market_intelligence"
)

// Module is one analysis unit.
type Module interface {
	Name() string
	Description() string
	// Run writes the module's result into st. Missing data is reported as an
	// ErrorResult, not as an error.
	Run(ctx context.Context, st *state.State) error
}

// ErrorResult is stored when a module's required input is absent.
type ErrorResult struct {
	Error string `json:"error"`
}

// Options carries the collaborators shared by all modules.
type Options struct {
	// Clock supplies the reference time. Defaults to time.Now.
	Clock func() time.Time
	// Rand drives the synthetic market data. Defaults to a time-seeded source.
	Rand *rand.Rand
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return o
}

// store writes result for name and registers the tool.
func store(st *state.State, name string, result any) {
	st.SetResult(name, result)
	st.RecordTool(name)
}

// missing stores an ErrorResult for name and registers the tool.
func missing(st *state.State, name, reason string) {
	store(st, name, ErrorResult{Error: reason})
}

// branch is one keyword-selected sub-analysis.
type branch struct {
	name     string
	keywords []string
}

// selectBranch returns the first branch with a keyword contained in query, or
// fallback when none matches. Matching is case-insensitive.
func selectBranch(query string, branches []branch, fallback string) string {
	q := strings.ToLower(query)
	for _, b := range branches {
		if containsAny(q, b.keywords...) {
			return b.name
		}
	}
	return fallback
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// currentMonth and previousMonth are the budget month keys relative to now.
func currentMonth(now time.Time) string {
	return now.Format("2006-01")
}

func previousMonth(now time.Time) string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return first.AddDate(0, 0, -1).Format("2006-01")
}

func lower(s string) string {
	return strings.ToLower(s)
}
