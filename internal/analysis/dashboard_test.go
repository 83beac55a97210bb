package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-agent/internal/domain"
)

func dashboardSnapshot() *domain.Snapshot {
	snap := overspentFoodMonth()
	snap.Transactions = append(snap.Transactions,
		tx("2025-06-10", -30, "Transport", "Metro"),
		tx("2025-01-10", -100, "Food", "Market"),
	)
	snap.Goals = []domain.Goal{
		{ID: "g1", Name: "Car", Deadline: "2026-01-01"},
		{ID: "g2", Name: "Someday"},
		{ID: "g3", Name: "Holiday", Deadline: "2025-12-01"},
	}
	return snap
}

func TestBuildDashboard(t *testing.T) {
	d, err := BuildDashboard(dashboardSnapshot(), "", fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "30d", d.Timeframe)
	assert.Equal(t, "2025-05-16", d.From)
	assert.Equal(t, "2025-06-15", d.To)
	assert.Equal(t, 1370.0, d.AccountBalance)
	assert.Equal(t, 2000.0, d.Income)
	assert.Equal(t, 530.0, d.Expenses)
	assert.Equal(t, 73.5, d.SavingsRate)

	require.Len(t, d.BudgetCategories, 1)
	assert.Equal(t, DashboardCategory{Name: "Food", Budgeted: 400, Spent: 500, Percentage: 125}, d.BudgetCategories[0])

	require.Len(t, d.RecentTransactions, 5)
	assert.Equal(t, "Transport", d.RecentTransactions[0].Category)
	assert.Equal(t, "2025-01-10", d.RecentTransactions[4].Day())

	var goalIDs []string
	for _, g := range d.Goals {
		goalIDs = append(goalIDs, g.ID)
	}
	assert.Equal(t, []string{"g3", "g1", "g2"}, goalIDs)

	require.Len(t, d.Insights, 2)
	assert.Equal(t, "warning", d.Insights[0].Type)
	assert.Equal(t, "Food over budget", d.Insights[0].Title)
	assert.Equal(t, "No budget for Transport", d.Insights[1].Title)

	require.Len(t, d.Suggestions, 2)
	assert.Equal(t, "update_budget", d.Suggestions[0].Action)
	assert.Equal(t, 440.0, d.Suggestions[0].Params["amount"])
	assert.Equal(t, "add_budget", d.Suggestions[1].Action)
	assert.Equal(t, 50.0, d.Suggestions[1].Params["amount"])
}

func TestBuildDashboard_Timeframe(t *testing.T) {
	d, err := BuildDashboard(dashboardSnapshot(), "7d", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-08", d.From)
	assert.Zero(t, d.Income)
	assert.Equal(t, 30.0, d.Expenses)
	assert.Zero(t, d.SavingsRate)
	assert.Equal(t, 1370.0, d.AccountBalance, "balance covers every transaction")

	_, err = BuildDashboard(dashboardSnapshot(), "2w", fixedNow)
	assert.ErrorContains(t, err, `unknown timeframe "2w"`)
}

func TestBuildDashboard_LowSavingsRate(t *testing.T) {
	snap := &domain.Snapshot{Transactions: []domain.Transaction{
		tx("2025-06-01", 1000, "Income", "Employer"),
		tx("2025-06-02", -900, "Rent", "Landlord"),
	}}

	d, err := BuildDashboard(snap, "30d", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 10.0, d.SavingsRate)
	assert.Empty(t, d.BudgetCategories)

	require.Len(t, d.Suggestions, 2)
	assert.Equal(t, "add_budget", d.Suggestions[0].Action)
	assert.Equal(t, 990.0, d.Suggestions[0].Params["amount"])
	assert.Equal(t, "add_recurring", d.Suggestions[1].Action)
	assert.Equal(t, 50.0, d.Suggestions[1].Params["amount"])
	assert.Equal(t, "Improve savings rate", d.Insights[1].Title)
}

func TestBuildDashboard_EmptySnapshot(t *testing.T) {
	for _, snap := range []*domain.Snapshot{nil, {}} {
		d, err := BuildDashboard(snap, "1y", fixedNow)
		require.NoError(t, err)
		assert.Zero(t, d.AccountBalance)
		assert.NotNil(t, d.BudgetCategories)
		assert.Empty(t, d.Insights)
		assert.Empty(t, d.Suggestions)
		assert.Empty(t, d.RecentTransactions)
	}
}

func TestTimeframeDays(t *testing.T) {
	tests := map[string]int{"": 30, "7d": 7, "30d": 30, "90d": 90, "1y": 365}
	for in, want := range tests {
		days, ok := TimeframeDays(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, days, in)
	}
	_, ok := TimeframeDays("forever")
	assert.False(t, ok)
}
