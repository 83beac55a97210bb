// Package router maps a classified intent to the ordered list of analysis
// modules that answer it.
package router

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dvloznov/finance-agent/internal/analysis"
	"github.com/dvloznov/finance-agent/internal/domain"
)

// Table maps an intent to the modules it dispatches to, in order.
type Table map[domain.Intent][]string

// DefaultTable returns the built-in routing table. General inquiries dispatch
// to no module.
func DefaultTable() Table {
	return Table{
		domain.IntentExpenseTracking:    {analysis.TransactionAnalyzer},
		domain.IntentBudgetAnalysis:     {analysis.BudgetManager},
		domain.IntentInvestmentInquiry:  {analysis.InvestmentAnalyzer},
		domain.IntentGoalTracking:       {analysis.GoalTracker},
		domain.IntentFinancialInsights:  {analysis.FinancialInsights},
		domain.IntentRiskAssessment:     {analysis.RiskAssessment},
		domain.IntentMarketIntelligence: {analysis.MarketIntelligence},
		domain.IntentAdvancedPlanning:   {analysis.AdvancedFinancialPlanner},
		domain.IntentGeneralInquiry:     {},
	}
}

type keywordRule struct {
	intent   domain.Intent
	keywords []string
}

// keywordRules is checked in order; the first rule with a matching keyword wins.
var keywordRules = []keywordRule{
	{domain.IntentBudgetAnalysis, []string{"budget", "spending", "expense", "cost", "allocat"}},
	{domain.IntentInvestmentInquiry, []string{"invest", "portfolio", "stock", "bond", "fund", "asset", "diversif"}},
	{domain.IntentGoalTracking, []string{"goal", "save", "saving", "target", "plan", "objective"}},
	{domain.IntentExpenseTracking, []string{"transaction", "payment", "purchase", "bill", "receipt"}},
	{domain.IntentRiskAssessment, []string{"risk", "insurance", "emergency", "protect", "coverage"}},
	{domain.IntentMarketIntelligence, []string{"market", "economic", "trend", "forecast", "outlook"}},
	{domain.IntentAdvancedPlanning, []string{"tax", "deduction", "ira", "retirement", "401k"}},
	{domain.IntentAdvancedPlanning, []string{"debt", "loan", "credit", "mortgage", "refinanc"}},
}

// KeywordRule is one keyword fallback rule.
type KeywordRule struct {
	Intent   domain.Intent `json:"intent"`
	Keywords []string      `json:"keywords"`
}

// KeywordRules returns the keyword fallback rules in match order.
func KeywordRules() []KeywordRule {
	out := make([]KeywordRule, len(keywordRules))
	for i, r := range keywordRules {
		out[i] = KeywordRule{Intent: r.intent, Keywords: copyNames(r.keywords)}
	}
	return out
}

// KeywordIntent classifies query by keyword alone. Queries matching no rule
// are general inquiries.
func KeywordIntent(query string) domain.Intent {
	q := strings.ToLower(query)
	for _, r := range keywordRules {
		for _, k := range r.keywords {
			if strings.Contains(q, k) {
				return r.intent
			}
		}
	}
	return domain.IntentGeneralInquiry
}

// Route is a routing decision.
type Route struct {
	Intent  domain.Intent
	Modules []string
	// ByKeyword is set when the label was not recognised and the query
	// keywords chose the intent.
	ByKeyword bool
}

// Router resolves intent labels against a Table.
type Router struct {
	table Table
}

// New returns a router over table. A nil table means DefaultTable.
func New(table Table) *Router {
	if table == nil {
		table = DefaultTable()
	}
	return &Router{table: table}
}

// Route resolves a raw classifier label. Unrecognised labels, and labels the
// table has no entry for, fall back to keyword matching on query. The result
// always names an intent; a general inquiry carries no modules.
func (r *Router) Route(label, query string) Route {
	if intent, ok := domain.ParseIntent(label); ok {
		if mods, found := r.table[intent]; found {
			return Route{Intent: intent, Modules: copyNames(mods)}
		}
	}
	intent := KeywordIntent(query)
	return Route{Intent: intent, Modules: copyNames(r.table[intent]), ByKeyword: true}
}

// Modules returns the modules for intent.
func (r *Router) Modules(intent domain.Intent) []string {
	return copyNames(r.table[intent])
}

// Table returns a copy of the routing table.
func (r *Router) Table() Table {
	out := make(Table, len(r.table))
	for intent, mods := range r.table {
		out[intent] = copyNames(mods)
	}
	return out
}

// Validate checks that every routed module is known.
func (t Table) Validate(known []string) error {
	set := make(map[string]bool, len(known))
	for _, k := range known {
		set[k] = true
	}
	for intent, mods := range t {
		for _, m := range mods {
			if !set[m] {
				return fmt.Errorf("route %s: unknown module %q", intent, m)
			}
		}
	}
	return nil
}

type tableFile struct {
	Routes map[string][]string `yaml:"routes"`
}

// ParseTable reads a YAML routing override of the form
//
//	routes:
//	  BUDGET_ANALYSIS: [budget_manager, financial_insights]
//
// Entries are layered over DefaultTable.
func ParseTable(data []byte) (Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ParseTable: decoding yaml: %w", err)
	}
	table := DefaultTable()
	for label, mods := range f.Routes {
		intent, ok := domain.ParseIntent(label)
		if !ok {
			return nil, fmt.Errorf("ParseTable: unknown intent %q", label)
		}
		if mods == nil {
			mods = []string{}
		}
		table[intent] = mods
	}
	return table, nil
}

// LoadTable reads a YAML routing override from path.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadTable: reading %s: %w", path, err)
	}
	return ParseTable(data)
}

func copyNames(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
