package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dvloznov/finance-agent/internal/domain"
)

func day(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func tx(date string, amount float64, category string) domain.Transaction {
	return domain.Transaction{Date: day(date), Amount: amount, Category: category, Description: category}
}

func TestSavingsRate(t *testing.T) {
	tests := []struct {
		name string
		txs  []domain.Transaction
		want float64
	}{
		{"empty", nil, 0},
		{"no income", []domain.Transaction{tx("2024-01-02", -50, "Food")}, 0},
		{"twenty percent", []domain.Transaction{
			tx("2024-01-01", 1000, "Income"),
			tx("2024-01-02", -800, "Rent"),
		}, 0.2},
		{"overspent clamps to zero", []domain.Transaction{
			tx("2024-01-01", 1000, "Income"),
			tx("2024-01-02", -1500, "Rent"),
		}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, SavingsRate(tt.txs), 1e-9)
		})
	}
}

func TestSavingsRate_ZeroIncomeNeverDivides(t *testing.T) {
	sets := [][]domain.Transaction{
		{},
		{tx("2024-01-01", -1, "A")},
		{tx("2024-01-01", -1, "A"), tx("2024-02-01", -99999, "B")},
		{{Date: day("2024-01-01"), Amount: 0}},
	}
	for _, txs := range sets {
		assert.Equal(t, 0.0, SavingsRate(txs))
	}
}

func TestEmergencyFundMonths(t *testing.T) {
	txs := []domain.Transaction{
		tx("2024-01-05", -1000, "Rent"),
		tx("2024-02-05", -1000, "Rent"),
	}
	holdings := []domain.Holding{{Symbol: "AAA", MarketValue: 10000}}

	assert.InDelta(t, 3.0, EmergencyFundMonths(txs, holdings, RiskLiquidFraction), 1e-9)
	assert.InDelta(t, 5.0, EmergencyFundMonths(txs, holdings, PlannerLiquidFraction), 1e-9)
	assert.Equal(t, 0.0, EmergencyFundMonths(nil, holdings, RiskLiquidFraction))
	assert.Equal(t, 0.0, EmergencyFundMonths(nil, nil, RiskLiquidFraction))
}

func TestIncomeVolatility(t *testing.T) {
	assert.Equal(t, 0.0, IncomeVolatility(nil))
	assert.Equal(t, 0.0, IncomeVolatility([]domain.Transaction{tx("2024-01-01", 1000, "Salary")}))

	steady := []domain.Transaction{
		tx("2024-01-01", 1000, "Salary"),
		tx("2024-02-01", 1000, "Salary"),
	}
	assert.Equal(t, 0.0, IncomeVolatility(steady))

	varying := []domain.Transaction{
		tx("2024-01-01", 1000, "Salary"),
		tx("2024-02-01", 3000, "Salary"),
	}
	// mean 2000, sample stddev sqrt(2e6)
	assert.InDelta(t, 0.7071, IncomeVolatility(varying), 1e-4)
}

func TestConcentrationRisk(t *testing.T) {
	holdings := []domain.Holding{
		{Symbol: "AAA", MarketValue: 9000},
		{Symbol: "BBB", MarketValue: 1000},
	}
	assert.InDelta(t, 0.9, ConcentrationRisk(holdings), 1e-9)
	assert.Equal(t, 0.0, ConcentrationRisk(nil))
	assert.Equal(t, 0.0, ConcentrationRisk([]domain.Holding{{Symbol: "Z"}}))
}

func TestBudgetOverrunRatio(t *testing.T) {
	within := domain.MonthlyBudget{Categories: map[string]domain.BudgetCategory{
		"Food":      {PercentageUsed: 100},
		"Transport": {PercentageUsed: 20},
	}}
	assert.Equal(t, 0.0, BudgetOverrunRatio(within))

	mixed := domain.MonthlyBudget{Categories: map[string]domain.BudgetCategory{
		"Food":      {PercentageUsed: 125},
		"Transport": {PercentageUsed: 20},
	}}
	assert.Equal(t, 0.5, BudgetOverrunRatio(mixed))
	assert.Equal(t, 0.0, BudgetOverrunRatio(domain.MonthlyBudget{}))
}

func TestAggregations(t *testing.T) {
	txs := []domain.Transaction{
		{Date: day("2024-01-01"), Amount: -10, Category: "Food", Merchant: "Cafe"},
		{Date: day("2024-01-01"), Amount: -30, Category: "Food", Merchant: "Market"},
		{Date: day("2024-01-02"), Amount: -20, Category: "Transport"},
		{Date: day("2024-01-03"), Amount: 500, Category: "Income"},
	}

	assert.Equal(t, 60.0, Expenses(txs))
	assert.Equal(t, 500.0, Income(txs))
	assert.Equal(t, 1, MonthCount(txs))
	assert.Equal(t, map[string]float64{"2024-01-01": 40, "2024-01-02": 20}, DailyExpenses(txs))

	ranked := Ranked(ExpensesBy(txs, ByCategory), 1)
	assert.Equal(t, []Amount{{Name: "Food", Amount: 40}}, ranked)

	merchants := Ranked(ExpensesBy(txs, ByMerchant), 0)
	assert.Len(t, merchants, 2)
	assert.Equal(t, "Market", merchants[0].Name)
}

func TestStdDev(t *testing.T) {
	assert.Equal(t, 0.0, StdDev([]float64{5}))
	assert.InDelta(t, 1.0, StdDev([]float64{1, 2, 3}), 1e-9)
	assert.Equal(t, 0.0, CoefficientOfVariation([]float64{0, 0}))
}
