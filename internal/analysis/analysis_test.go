package analysis

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/state"
)

var fixedNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func testOptions() Options {
	return Options{
		Clock: func() time.Time { return fixedNow },
		Rand:  rand.New(rand.NewSource(42)),
	}
}

func tx(date string, amount float64, category, merchant string) domain.Transaction {
	d, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		panic(err)
	}
	return domain.Transaction{Date: d, Amount: amount, Category: category, Merchant: merchant}
}

func overspentFoodMonth() *domain.Snapshot {
	return &domain.Snapshot{
		Transactions: []domain.Transaction{
			tx("2025-06-02", -50, "Food", "Cafe"),
			tx("2025-06-05", -450, "Food", "Market"),
			tx("2025-06-01", 2000, "Income", "Employer"),
		},
		Budget: &domain.Budget{Months: map[string]domain.MonthlyBudget{
			"2025-06": {Categories: map[string]domain.BudgetCategory{
				"Food": {Budgeted: 400, Spent: 500},
			}},
		}},
	}
}

func holdings() []domain.Holding {
	hs := []domain.Holding{
		{Symbol: "AAPL", MarketValue: 1200, CostBasis: 1000},
		{Symbol: "MSFT", MarketValue: 900, CostBasis: 1000},
		{Symbol: "SPY", MarketValue: 1500, CostBasis: 1000},
		{Symbol: "TSLA", MarketValue: 700, CostBasis: 1000},
	}
	for i := range hs {
		hs[i].Recompute()
	}
	return hs
}

func run(t *testing.T, m Module, query string, snap *domain.Snapshot) *state.State {
	t.Helper()
	st := state.New(query)
	st.Context = snap
	require.NoError(t, m.Run(context.Background(), st))
	return st
}

func TestBudgetModule_OverspentCategory(t *testing.T) {
	st := run(t, NewBudgetModule(testOptions()), "What's my budget status?", overspentFoodMonth())

	res, ok := st.Result(BudgetManager)
	require.True(t, ok)
	report, ok := res.(StatusReport)
	require.True(t, ok, "got %T", res)

	require.Len(t, report.Categories, 1)
	food := report.Categories[0]
	assert.Equal(t, "Food", food.Category)
	assert.Equal(t, 125.0, food.PercentageUsed)
	assert.True(t, food.OverBudget)
	assert.Equal(t, 1, report.CategoryStatus.OverBudget)
	assert.Equal(t, []string{BudgetManager}, st.ToolsUsed)
}

func TestBudgetModule_Overspending(t *testing.T) {
	st := run(t, NewBudgetModule(testOptions()), "Where have I exceeded my budget?", overspentFoodMonth())

	res, _ := st.Result(BudgetManager)
	report, ok := res.(OverspendingReport)
	require.True(t, ok, "got %T", res)
	assert.Equal(t, 1, report.CategoriesOverBudget)
	assert.Equal(t, 100.0, report.TotalOverspent)
	require.NotNil(t, report.WorstCategory)
	assert.Equal(t, "Food", report.WorstCategory.Category)
}

func TestBudgetModule_MissingData(t *testing.T) {
	tests := []struct {
		name string
		snap *domain.Snapshot
		want string
	}{
		{"no budget", &domain.Snapshot{}, "No budget data available"},
		{
			"other month only",
			&domain.Snapshot{Budget: &domain.Budget{Months: map[string]domain.MonthlyBudget{
				"2024-01": {Categories: map[string]domain.BudgetCategory{"Food": {Budgeted: 1}}},
			}}},
			"No budget data for current month",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := run(t, NewBudgetModule(testOptions()), "budget", tt.snap)
			res, _ := st.Result(BudgetManager)
			assert.Equal(t, ErrorResult{Error: tt.want}, res)
			assert.Equal(t, []string{BudgetManager}, st.ToolsUsed)
		})
	}
}

func TestRiskModule_OverspentBudgetWithoutHoldings(t *testing.T) {
	st := run(t, NewRiskModule(testOptions()), "anything at all", overspentFoodMonth())

	res, ok := st.Result(RiskAssessment)
	require.True(t, ok)
	report, ok := res.(RiskReport)
	require.True(t, ok, "got %T", res)

	assert.Equal(t, 1.0, report.BudgetOverrunRatio)
	assert.Equal(t, 25.0, report.Score.BudgetOverrun)
	assert.Nil(t, report.Diversification)
	assert.NotNil(t, report.StressTests.IncomeLoss)
	assert.Nil(t, report.StressTests.MarketCrash)
}

func TestRiskModule_QueryIndependent(t *testing.T) {
	snap := overspentFoodMonth()
	snap.Holdings = holdings()

	a := run(t, NewRiskModule(testOptions()), "am I safe?", snap)
	b := run(t, NewRiskModule(testOptions()), "show me insurance", snap)

	ra, _ := a.Result(RiskAssessment)
	rb, _ := b.Result(RiskAssessment)
	assert.Equal(t, ra, rb)
}

func TestAssessRisk_NoData(t *testing.T) {
	r := AssessRisk(&domain.Snapshot{}, fixedNow)

	assert.Equal(t, 0.0, r.EmergencyFundMonths)
	assert.Equal(t, 25.0, r.Score.Liquidity)
	assert.Equal(t, "Low", r.RiskLevel)
	assert.Empty(t, r.Insurance)
	require.Len(t, r.Vulnerabilities.Vulnerabilities, 1)
	assert.Equal(t, "insufficient_emergency_fund", r.Vulnerabilities.Vulnerabilities[0].Type)
	assert.Equal(t, "high", r.Vulnerabilities.Vulnerabilities[0].Severity)
}

func TestAssessRisk_Insurance(t *testing.T) {
	snap := &domain.Snapshot{
		Transactions: []domain.Transaction{tx("2025-06-01", 5000, "Income", "Employer")},
		Holdings:     []domain.Holding{{Symbol: "SPY", MarketValue: 250000}},
	}
	r := AssessRisk(snap, fixedNow)

	byType := map[string]float64{}
	for _, ins := range r.Insurance {
		byType[ins.Type] = ins.Amount
	}
	assert.Equal(t, 600000.0, byType["life_insurance"])
	assert.Equal(t, 3000.0, byType["disability_insurance"])
	assert.Equal(t, 250000.0, byType["umbrella_insurance"])
}

func TestAssetClass(t *testing.T) {
	assert.Equal(t, "bonds", assetClass("US-TREASURY-10Y"))
	assert.Equal(t, "stocks", assetClass("VTI-ETF"))
	assert.Equal(t, "other", assetClass("AAPL"))
}

func TestInvestmentModule_NoHoldings(t *testing.T) {
	st := run(t, NewInvestmentModule(), "How are my investments performing?", &domain.Snapshot{})

	res, ok := st.Result(InvestmentAnalyzer)
	require.True(t, ok)
	assert.Equal(t, ErrorResult{Error: "No investment data available"}, res)
	assert.Equal(t, []string{InvestmentAnalyzer}, st.ToolsUsed)
}

func TestInvestmentModule_BestWorstOverlap(t *testing.T) {
	st := run(t, NewInvestmentModule(), "best and worst holdings", &domain.Snapshot{Holdings: holdings()})

	res, _ := st.Result(InvestmentAnalyzer)
	report, ok := res.(BestWorstAnalysis)
	require.True(t, ok, "got %T", res)

	require.Len(t, report.BestPerformers, 3)
	require.Len(t, report.WorstPerformers, 3)
	assert.Equal(t, "SPY", report.BestPerformers[0].Symbol)
	assert.Equal(t, "TSLA", report.WorstPerformers[2].Symbol)

	best := map[string]bool{}
	for _, p := range report.BestPerformers {
		best[p.Symbol] = true
	}
	overlap := 0
	for _, p := range report.WorstPerformers {
		if best[p.Symbol] {
			overlap++
		}
	}
	assert.Equal(t, 2, overlap)
}

func TestInvestmentModule_Branches(t *testing.T) {
	tests := []struct {
		query string
		want  any
	}{
		{"How is my portfolio doing?", PerformanceAnalysis{}},
		{"Show gains", GainsLossesAnalysis{}},
		{"What is my allocation?", AllocationAnalysis{}},
		{"worst holdings", BestWorstAnalysis{}},
		{"portfolio please", PortfolioOverview{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			st := run(t, NewInvestmentModule(), tt.query, &domain.Snapshot{Holdings: holdings()})
			res, _ := st.Result(InvestmentAnalyzer)
			assert.IsType(t, tt.want, res)
		})
	}
}

func TestTransactionModule_Branches(t *testing.T) {
	snap := overspentFoodMonth()
	tests := []struct {
		query string
		want  any
	}{
		{"How much did I spend on food?", FoodSpending{}},
		{"What did I spend this month?", MonthlySpending{}},
		{"Break it down by category", CategorySpending{}},
		{"total spent", TotalSpending{}},
		{"hello", RecentSpending{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			st := run(t, NewTransactionModule(testOptions()), tt.query, snap)
			res, _ := st.Result(TransactionAnalyzer)
			assert.IsType(t, tt.want, res)
		})
	}
}

func TestTransactionModule_MissingData(t *testing.T) {
	st := run(t, NewTransactionModule(testOptions()), "spending", nil)
	res, _ := st.Result(TransactionAnalyzer)
	assert.Equal(t, ErrorResult{Error: "No transaction data available"}, res)
}

func TestGoalModule(t *testing.T) {
	snap := &domain.Snapshot{Goals: []domain.Goal{{
		ID:                  GoalEmergencyFund,
		Name:                "Emergency Fund",
		TargetAmount:        10000,
		CurrentAmount:       5000,
		MonthlyContribution: 500,
		Deadline:            "2026-06-15",
		Status:              domain.GoalStatusActive,
	}}}

	t.Run("specific goal", func(t *testing.T) {
		st := run(t, NewGoalModule(testOptions()), "How is my emergency fund?", snap)
		res, _ := st.Result(GoalTracker)
		assert.IsType(t, GoalAnalysis{}, res)
	})

	t.Run("unknown goal id", func(t *testing.T) {
		st := run(t, NewGoalModule(testOptions()), "When can I buy a car?", snap)
		res, _ := st.Result(GoalTracker)
		assert.Equal(t, ErrorResult{Error: "Goal with ID 'car_replacement' not found"}, res)
	})

	t.Run("no goals", func(t *testing.T) {
		st := run(t, NewGoalModule(testOptions()), "goals", &domain.Snapshot{})
		res, _ := st.Result(GoalTracker)
		assert.Equal(t, ErrorResult{Error: "No financial goals data available"}, res)
	})
}

func TestModule_RunTwiceRecordsOnce(t *testing.T) {
	reg := DefaultRegistry(testOptions())
	snap := overspentFoodMonth()
	snap.Holdings = holdings()

	for _, name := range reg.Names() {
		t.Run(name, func(t *testing.T) {
			m, ok := reg.Get(name)
			require.True(t, ok)

			st := state.New("tell me everything")
			st.Context = snap
			require.NoError(t, m.Run(context.Background(), st))
			require.NoError(t, m.Run(context.Background(), st))
			assert.Equal(t, []string{name}, st.ToolsUsed)
		})
	}
}

func TestInsights_EmptySnapshot(t *testing.T) {
	r := BuildInsights(&domain.Snapshot{}, fixedNow)
	assert.Nil(t, r.Spending)
	assert.Nil(t, r.Investments)
	assert.Equal(t, 5.0, r.HealthScore.Total)
	assert.Equal(t, "Critical", r.HealthScore.Rating)
}

func TestBuildPlan_Retirement(t *testing.T) {
	snap := &domain.Snapshot{
		Transactions: []domain.Transaction{
			tx("2025-06-01", 5000, "Income", "Employer"),
			tx("2025-06-03", -2000, "Rent", "Landlord"),
		},
	}
	plan := BuildPlan(snap, fixedNow)

	assert.Equal(t, 600000.0, plan.Retirement.RequiredCorpus)
	assert.Equal(t, 30, plan.Retirement.YearsToRetirement)
	assert.False(t, plan.Retirement.OnTrack)
	require.NotNil(t, plan.CashFlow)
	assert.Equal(t, "positive", plan.CashFlow.Trend)
}

func TestMarketModule_Deterministic(t *testing.T) {
	a := BuildMarketReport(rand.New(rand.NewSource(7)))
	b := BuildMarketReport(rand.New(rand.NewSource(7)))
	assert.Equal(t, a, b)

	require.Len(t, a.Sectors, 8)
	for _, s := range a.Sectors {
		assert.GreaterOrEqual(t, s.Day, -3.0)
		assert.LessOrEqual(t, s.Day, 4.0)
		if s.Day != 0 {
			assert.Equal(t, s.Day > 0, s.Outlook == "positive", s.Sector)
		}
	}
	assert.Equal(t, 58, a.Sentiment.FearGreedIndex)

	var total float64
	for _, sc := range a.Forecast.Scenarios {
		total += sc.Probability
	}
	assert.Equal(t, 100.0, total)
}

func TestMarketModule_Focus(t *testing.T) {
	m := NewMarketModule(testOptions())
	st := run(t, m, "What is the economic outlook?", nil)

	res, _ := st.Result(MarketIntelligence)
	report, ok := res.(MarketReport)
	require.True(t, ok)
	assert.Equal(t, "economic", report.Focus)
	assert.NotEmpty(t, report.Sectors)
}

func TestRegistry(t *testing.T) {
	reg := DefaultRegistry(testOptions())

	cat := reg.Catalogue()
	require.Len(t, cat, 8)
	assert.Equal(t, AdvancedFinancialPlanner, cat[0].Name)
	assert.Equal(t, TransactionAnalyzer, cat[7].Name)

	_, ok := reg.Get("nope")
	assert.False(t, ok)

	_, err := NewRegistry(NewInvestmentModule(), NewInvestmentModule())
	assert.Error(t, err)
}

func TestSelectBranch(t *testing.T) {
	assert.Equal(t, "food", selectBranch("Total FOOD spending", transactionBranches, "recent"))
	assert.Equal(t, "recent", selectBranch("", transactionBranches, "recent"))
}

func TestAssessRiskAndBuildPlan_NilSnapshot(t *testing.T) {
	require.NotPanics(t, func() {
		assert.Equal(t, AssessRisk(&domain.Snapshot{}, fixedNow), AssessRisk(nil, fixedNow))
		assert.Equal(t, BuildPlan(&domain.Snapshot{}, fixedNow), BuildPlan(nil, fixedNow))
	})
}
