package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBudgetCategory_Recompute(t *testing.T) {
	tests := []struct {
		name        string
		cat         BudgetCategory
		wantPct     float64
		wantRemain  float64
		wantOverrun bool
	}{
		{"overspent", BudgetCategory{Budgeted: 400, Spent: 500}, 125, -100, true},
		{"within", BudgetCategory{Budgeted: 200, Spent: 50}, 25, 150, false},
		{"exactly at budget", BudgetCategory{Budgeted: 100, Spent: 100}, 100, 0, false},
		{"no budget", BudgetCategory{Budgeted: 0, Spent: 30}, 0, -30, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.cat
			c.Recompute()
			assert.Equal(t, tt.wantPct, c.PercentageUsed)
			assert.Equal(t, tt.wantRemain, c.Remaining)
			assert.Equal(t, tt.wantOverrun, c.OverBudget())
		})
	}
}

func TestMonthlyBudget_RecomputeAndSorted(t *testing.T) {
	m := MonthlyBudget{Categories: map[string]BudgetCategory{
		"Transport": {Budgeted: 100, Spent: 20},
		"Food":      {Budgeted: 400, Spent: 500},
	}}
	m.Recompute()

	assert.Equal(t, 500.0, m.TotalBudgeted)
	assert.Equal(t, 520.0, m.TotalSpent)

	sorted := m.Sorted()
	assert.Equal(t, "Food", sorted[0].Category)
	assert.Equal(t, 125.0, sorted[0].PercentageUsed)
	assert.Equal(t, "Transport", sorted[1].Category)
}

func TestBudget_RecentMonths(t *testing.T) {
	b := &Budget{Months: map[string]MonthlyBudget{
		"2024-01": {}, "2024-03": {}, "2024-02": {}, "2023-12": {},
	}}
	assert.Equal(t, []string{"2024-03", "2024-02", "2024-01"}, b.RecentMonths(3))

	raw := &Budget{Months: map[string]MonthlyBudget{
		"2024-01": {Categories: map[string]BudgetCategory{"Food": {Budgeted: 400, Spent: 500}}},
	}}
	jan, ok := raw.Month("2024-01")
	assert.True(t, ok)
	assert.Equal(t, 125.0, jan.Categories["Food"].PercentageUsed)
	assert.Equal(t, 0.0, raw.Months["2024-01"].Categories["Food"].PercentageUsed)

	var nilBudget *Budget
	assert.Nil(t, nilBudget.RecentMonths(3))
	assert.True(t, nilBudget.Empty())
	_, ok = nilBudget.Month("2024-01")
	assert.False(t, ok)
}

func TestHolding_Recompute(t *testing.T) {
	h := Holding{CostBasis: 1000, MarketValue: 1250}
	h.Recompute()
	assert.Equal(t, 250.0, h.UnrealizedGainLoss)
	assert.Equal(t, 25.0, h.PercentageChange)

	free := Holding{MarketValue: 10}
	free.Recompute()
	assert.Equal(t, 0.0, free.PercentageChange)
}

func TestGoal_ProgressPercentage(t *testing.T) {
	assert.Equal(t, 50.0, Goal{TargetAmount: 1000, CurrentAmount: 500}.ProgressPercentage())
	assert.Equal(t, 150.0, Goal{TargetAmount: 1000, CurrentAmount: 1500}.ProgressPercentage())
	assert.Equal(t, 0.0, Goal{CurrentAmount: 500}.ProgressPercentage())

	_, ok := Goal{Deadline: "soon"}.DeadlineTime()
	assert.False(t, ok)
	d, ok := Goal{Deadline: "2025-06-30"}.DeadlineTime()
	assert.True(t, ok)
	assert.Equal(t, 2025, d.Year())
}

func TestParseIntent(t *testing.T) {
	tests := []struct {
		raw  string
		want Intent
		ok   bool
	}{
		{"BUDGET_ANALYSIS", IntentBudgetAnalysis, true},
		{" budget analysis. ", IntentBudgetAnalysis, true},
		{"\"risk-assessment\"", IntentRiskAssessment, true},
		{"weather", Intent("WEATHER"), false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseIntent(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestSnapshot_Merge(t *testing.T) {
	s := &Snapshot{Holdings: []Holding{{Symbol: "AAA"}}}
	s.Merge(&Snapshot{
		Holdings: []Holding{{Symbol: "ZZZ"}},
		Goals:    []Goal{{ID: "g"}},
	})

	assert.Equal(t, "AAA", s.Holdings[0].Symbol)
	assert.True(t, s.HasGoals())
	assert.False(t, s.HasTransactions())
	assert.False(t, s.HasBudget())
}
