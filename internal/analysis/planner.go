package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/metrics"
	"github.com/dvloznov/finance-agent/internal/money"
	"github.com/dvloznov/finance-agent/internal/scoring"
	"github.com/dvloznov/finance-agent/internal/state"
)

// Retirement projection assumptions.
const (
	AssumedCurrentAge    = 35
	AssumedRetirementAge = 65
	// SafeWithdrawalMultiple is the 4% rule: corpus = annual expenses x 25.
	SafeWithdrawalMultiple = 25
)

// BudgetOverrun is a category spent beyond its budget.
type BudgetOverrun struct {
	Category          string  `json:"category"`
	OverrunPercentage float64 `json:"overrun_percentage"`
}

// PlanningRisks are the risk flags raised by the planner.
type PlanningRisks struct {
	HighSpendingVolatility bool            `json:"high_spending_volatility"`
	SpendingVolatility     float64         `json:"spending_volatility"`
	BudgetOverruns         []BudgetOverrun `json:"budget_overruns"`
	ConcentrationRisk      bool            `json:"concentration_risk"`
}

// CashFlow summarises income against expenses.
type CashFlow struct {
	TotalIncome            float64 `json:"total_income"`
	TotalExpenses          float64 `json:"total_expenses"`
	NetCashFlow            float64 `json:"net_cash_flow"`
	MonthlyAverageIncome   float64 `json:"monthly_average_income"`
	MonthlyAverageExpenses float64 `json:"monthly_average_expenses"`
	Trend                  string  `json:"cash_flow_trend"`
}

// Recommendation is a prioritised planning action.
type Recommendation struct {
	Category    string `json:"category"`
	Priority    string `json:"priority"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// RetirementReadiness is the simplified retirement projection.
type RetirementReadiness struct {
	CurrentSavings       float64 `json:"current_savings"`
	RequiredCorpus       float64 `json:"required_corpus"`
	YearsToRetirement    int     `json:"years_to_retirement"`
	MonthlySavingsNeeded float64 `json:"monthly_savings_needed"`
	OnTrack              bool    `json:"on_track"`
}

// PlanningReport is the advanced planner result.
type PlanningReport struct {
	HealthScore         scoring.HealthScore `json:"financial_health_score"`
	Risks               PlanningRisks       `json:"risk_assessment"`
	CashFlow            *CashFlow           `json:"cash_flow_analysis,omitempty"`
	SavingsRate         float64             `json:"savings_rate"`
	EmergencyFundMonths float64             `json:"emergency_fund_months"`
	Recommendations     []Recommendation    `json:"optimization_recommendations"`
	Retirement          RetirementReadiness `json:"retirement_readiness"`
}

// PlannerModule produces a strategic plan from all available data.
type PlannerModule struct {
	clock func() time.Time
}

// NewPlannerModule creates the advanced_financial_planner module.
func NewPlannerModule(opts Options) *PlannerModule {
	return &PlannerModule{clock: opts.withDefaults().Clock}
}

func (m *PlannerModule) Name() string { return AdvancedFinancialPlanner }

func (m *PlannerModule) Description() string {
	return "Health score, cash flow, prioritised recommendations and retirement readiness"
}

func (m *PlannerModule) Run(_ context.Context, st *state.State) error {
	store(st, m.Name(), BuildPlan(st.Snapshot(), m.clock()))
	return nil
}

// BuildPlan produces the planning report for snap as of now. A nil snap is
// treated as empty.
func BuildPlan(snap *domain.Snapshot, now time.Time) PlanningReport {
	if snap == nil {
		snap = &domain.Snapshot{}
	}
	month := currentMonth(now)
	savings := metrics.SavingsRate(snap.Transactions)
	emergency := metrics.EmergencyFundMonths(snap.Transactions, snap.Holdings, metrics.PlannerLiquidFraction)

	r := PlanningReport{
		HealthScore:         scoring.HealthFromSnapshot(snap, month, metrics.PlannerLiquidFraction),
		Risks:               planningRisks(snap, month),
		SavingsRate:         money.Round(savings, 4),
		EmergencyFundMonths: money.Round1(emergency),
		Recommendations:     planningRecommendations(snap, savings, emergency),
		Retirement:          retirementReadiness(snap),
	}
	if snap.HasTransactions() {
		cf := cashFlow(snap.Transactions)
		r.CashFlow = &cf
	}
	return r
}

// SpendingVolatility is the coefficient of variation of absolute monthly net flow.
func SpendingVolatility(txs []domain.Transaction) float64 {
	net := make(map[string]float64)
	for _, t := range txs {
		net[t.Month()] += t.Amount
	}
	if len(net) < 2 {
		return 0
	}
	values := metrics.Values(net)
	for i, v := range values {
		values[i] = math.Abs(v)
	}
	return metrics.CoefficientOfVariation(values)
}

func planningRisks(snap *domain.Snapshot, month string) PlanningRisks {
	vol := SpendingVolatility(snap.Transactions)
	r := PlanningRisks{
		HighSpendingVolatility: vol > 0.3,
		SpendingVolatility:     money.Round(vol, 3),
		BudgetOverruns:         []BudgetOverrun{},
		ConcentrationRisk:      metrics.ConcentrationRisk(snap.Holdings) > 0.4,
	}
	if mb, ok := snap.Budget.Month(month); ok {
		for _, c := range mb.Sorted() {
			if c.OverBudget() {
				r.BudgetOverruns = append(r.BudgetOverruns, BudgetOverrun{
					Category:          c.Category,
					OverrunPercentage: money.Round1(c.PercentageUsed - 100),
				})
			}
		}
	}
	return r
}

func cashFlow(txs []domain.Transaction) CashFlow {
	income := metrics.Income(txs)
	expenses := metrics.Expenses(txs)
	net := income - expenses
	trend := "negative"
	if net > 0 {
		trend = "positive"
	}
	return CashFlow{
		TotalIncome:            money.Round2(income),
		TotalExpenses:          money.Round2(expenses),
		NetCashFlow:            money.Round2(net),
		MonthlyAverageIncome:   money.Round2(metrics.AverageMonthlyIncome(txs)),
		MonthlyAverageExpenses: money.Round2(metrics.AverageMonthlyExpenses(txs)),
		Trend:                  trend,
	}
}

// HighSpendingCategories lists categories above a quarter of total spend,
// largest first.
func HighSpendingCategories(txs []domain.Transaction) []string {
	totals := metrics.ExpensesBy(txs, metrics.ByCategory)
	var sum float64
	for _, v := range totals {
		sum += v
	}
	if sum <= 0 {
		return nil
	}
	var out []string
	for _, a := range metrics.Ranked(totals, 0) {
		if a.Amount/sum > 0.25 {
			out = append(out, a.Name)
		}
	}
	return out
}

func planningRecommendations(snap *domain.Snapshot, savings, emergency float64) []Recommendation {
	recs := []Recommendation{}
	if savings < 0.10 {
		recs = append(recs, Recommendation{
			Category:    "savings",
			Priority:    "high",
			Title:       "Increase Savings Rate",
			Description: fmt.Sprintf("Your current savings rate is %.1f%%. Consider targeting at least 10-15%% of income for savings.", savings*100),
		})
	}
	if emergency < 3 {
		recs = append(recs, Recommendation{
			Category:    "emergency_fund",
			Priority:    "high",
			Title:       "Build Emergency Fund",
			Description: fmt.Sprintf("You have %.1f months of expenses saved. Target 3-6 months for financial security.", emergency),
		})
	}
	if snap.HasBudget() && snap.HasTransactions() {
		if high := HighSpendingCategories(snap.Transactions); len(high) > 0 {
			if len(high) > 3 {
				high = high[:3]
			}
			recs = append(recs, Recommendation{
				Category:    "budgeting",
				Priority:    "medium",
				Title:       "Optimize Spending",
				Description: "Consider reviewing spending in: " + strings.Join(high, ", "),
			})
		}
	}
	if snap.HasHoldings() && len(snap.Holdings) < 3 {
		recs = append(recs, Recommendation{
			Category:    "investment",
			Priority:    "medium",
			Title:       "Diversify Investments",
			Description: "Consider diversifying across more asset classes to reduce risk.",
		})
	}
	return recs
}

func retirementReadiness(snap *domain.Snapshot) RetirementReadiness {
	years := AssumedRetirementAge - AssumedCurrentAge
	savings := domain.TotalMarketValue(snap.Holdings)

	var annualExpenses float64
	if snap.HasTransactions() {
		annualExpenses = metrics.Expenses(snap.Transactions) * 12 / float64(metrics.MonthCount(snap.Transactions))
	}
	corpus := annualExpenses * SafeWithdrawalMultiple

	// On track means holding at least the linear share (65-30)/65 of the corpus.
	elapsed := float64(AssumedRetirementAge-years) / float64(AssumedRetirementAge)
	return RetirementReadiness{
		CurrentSavings:       money.Round2(savings),
		RequiredCorpus:       money.Round2(corpus),
		YearsToRetirement:    years,
		MonthlySavingsNeeded: money.Round2(max(0, (corpus-savings)/float64(years*12))),
		OnTrack:              savings >= corpus*elapsed,
	}
}
