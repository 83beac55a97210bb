package scoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dvloznov/finance-agent/internal/domain"
)

func TestFinancialHealth_Components(t *testing.T) {
	score := FinancialHealth(HealthInputs{
		EmergencyFundMonths: 6,
		SavingsRate:         0.25,
		BudgetCategories:    []domain.BudgetCategory{{PercentageUsed: 10}},
		HoldingCount:        12,
	})

	assert.Equal(t, 25.0, score.EmergencyFund)
	assert.Equal(t, 25.0, score.Savings)
	assert.Equal(t, 25.0, score.BudgetAdherence)
	assert.Equal(t, 25.0, score.Diversification)
	assert.Equal(t, 100.0, score.Total)
	assert.Equal(t, "Excellent", score.Rating)
}

func TestFinancialHealth_NoData(t *testing.T) {
	score := HealthFromSnapshot(&domain.Snapshot{}, "2024-01", 0.5)

	assert.Equal(t, 0.0, score.EmergencyFund)
	assert.Equal(t, 0.0, score.Savings)
	assert.Equal(t, 0.0, score.BudgetAdherence)
	assert.Equal(t, 5.0, score.Diversification)
	assert.Equal(t, 5.0, score.Total)
	assert.Equal(t, "Critical", score.Rating)
}

func TestHealthFromSnapshot_BudgetAdherenceNeedsTransactions(t *testing.T) {
	budget := &domain.Budget{Months: map[string]domain.MonthlyBudget{
		"2024-01": {Categories: map[string]domain.BudgetCategory{
			"Food": {Budgeted: 400, Spent: 40},
		}},
	}}

	budgetOnly := HealthFromSnapshot(&domain.Snapshot{Budget: budget}, "2024-01", 0.5)
	assert.Equal(t, 0.0, budgetOnly.BudgetAdherence)

	withSpending := HealthFromSnapshot(&domain.Snapshot{
		Budget:       budget,
		Transactions: []domain.Transaction{{Amount: -40, Category: "Food"}},
	}, "2024-01", 0.5)
	assert.Equal(t, 25.0, withSpending.BudgetAdherence)
}

func TestFinancialHealth_MonotonicInEmergencyFund(t *testing.T) {
	base := HealthInputs{
		SavingsRate:      0.12,
		BudgetCategories: []domain.BudgetCategory{{PercentageUsed: 90}, {PercentageUsed: 130}},
		HoldingCount:     4,
	}

	prev := -1.0
	for months := 0.0; months <= 12; months += 0.25 {
		in := base
		in.EmergencyFundMonths = months
		total := FinancialHealth(in).Total
		assert.GreaterOrEqual(t, total, prev, "months=%v", months)
		prev = total
	}
}

func TestCategoryAdherence(t *testing.T) {
	tests := []struct {
		pct  float64
		want float64
	}{
		{0, 100},
		{10, 100},
		{60, 50},
		{100, 10},
		{125, 25},
		{200, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.pct), func(t *testing.T) {
			assert.Equal(t, tt.want, CategoryAdherence(tt.pct))
		})
	}
}

func TestSavingsAndEmergencyTiers(t *testing.T) {
	assert.Equal(t, 0.0, SavingsPoints(0.04))
	assert.Equal(t, 10.0, SavingsPoints(0.05))
	assert.Equal(t, 15.0, SavingsPoints(0.10))
	assert.Equal(t, 20.0, SavingsPoints(0.15))
	assert.Equal(t, 25.0, SavingsPoints(0.2))

	assert.Equal(t, 0.0, EmergencyFundPoints(0.9))
	assert.Equal(t, 10.0, EmergencyFundPoints(1))
	assert.Equal(t, 15.0, EmergencyFundPoints(3))
	assert.Equal(t, 25.0, EmergencyFundPoints(6))
}

func TestOverallRisk(t *testing.T) {
	worst := OverallRisk(RiskInputs{
		IncomeVolatility:    3,
		EmergencyFundMonths: 0,
		ConcentrationRisk:   1,
		BudgetOverrunRatio:  1,
	})
	assert.Equal(t, 100.0, worst.Total)
	assert.Equal(t, "High", worst.Level)

	calm := OverallRisk(RiskInputs{EmergencyFundMonths: 12})
	assert.Equal(t, 2.5, calm.Total)
	assert.Equal(t, "Low", calm.Level)
}

func TestLiquidityRisk(t *testing.T) {
	assert.Equal(t, 1.0, LiquidityRisk(0.5))
	assert.Equal(t, 0.6, LiquidityRisk(1))
	assert.Equal(t, 0.3, LiquidityRisk(3))
	assert.Equal(t, 0.1, LiquidityRisk(6))
}

func TestDiversification(t *testing.T) {
	tests := []struct {
		name     string
		holdings []domain.Holding
		want     float64
	}{
		{"empty", nil, 0},
		{"two holdings concentrated", []domain.Holding{
			{Symbol: "AAA", MarketValue: 9000},
			{Symbol: "BBB", MarketValue: 1000},
		}, 50},
		{"five equal", equalHoldings(5), 90},
		{"ten equal", equalHoldings(10), 100},
		{"four equal", equalHoldings(4), 80},
		{"three equal", equalHoldings(3), 65},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diversification(tt.holdings)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 100.0)
		})
	}
}

func equalHoldings(n int) []domain.Holding {
	out := make([]domain.Holding, n)
	for i := range out {
		out[i] = domain.Holding{Symbol: fmt.Sprintf("H%d", i), MarketValue: 100}
	}
	return out
}
