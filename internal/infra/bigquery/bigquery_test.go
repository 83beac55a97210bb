package bigquery

import (
	"testing"
	"testing/fstest"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-agent/internal/domain"
)

func TestTransactionRow_RoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	in := domain.Transaction{
		ID:       "t1",
		Date:     time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Amount:   -50.456,
		Category: "Food",
		Merchant: "Cafe",
	}

	row := NewTransactionRow("u1", in, now)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.June, Day: 2}, row.TransactionDate)
	assert.False(t, row.Description.Valid)
	assert.True(t, row.Merchant.Valid)

	out := row.ToDomain()
	assert.Equal(t, "t1", out.ID)
	assert.Equal(t, "2025-06-02", out.Day())
	assert.Equal(t, -50.46, out.Amount)
	assert.Equal(t, "Cafe", out.Merchant)
	assert.Equal(t, "", out.Description)
}

func TestBudgetFromRows(t *testing.T) {
	assert.Nil(t, BudgetFromRows(nil))

	b := BudgetFromRows([]BudgetRow{
		{Month: "2025-06", Category: "Food", Budgeted: floatRat(400), Spent: floatRat(500)},
		{Month: "2025-06", Category: "Transport", Budgeted: floatRat(100), Spent: floatRat(20)},
		{Month: "2025-05", Category: "Food", Budgeted: floatRat(400)},
	})
	require.NotNil(t, b)
	require.Len(t, b.Months, 2)

	june := b.Months["2025-06"]
	assert.Equal(t, 125.0, june.Categories["Food"].PercentageUsed)
	assert.Equal(t, 500.0, june.TotalBudgeted)
	assert.Equal(t, 0.0, b.Months["2025-05"].Categories["Food"].Spent)

	rows := BudgetRows("u1", b)
	require.Len(t, rows, 3)
	assert.Equal(t, "2025-05", rows[0].Month)
	assert.Equal(t, "Food", rows[1].Category)
	assert.Equal(t, "Transport", rows[2].Category)
}

func TestHoldingRow_ToDomain(t *testing.T) {
	h := NewHoldingRow("u1", domain.Holding{Symbol: "AAPL", Shares: 10, CostBasis: 1000, MarketValue: 1500})
	assert.False(t, h.CurrentPrice.Valid)

	got := h.ToDomain()
	assert.Equal(t, 500.0, got.UnrealizedGainLoss)
	assert.Equal(t, 50.0, got.PercentageChange)
}

func TestGoalRow_Deadline(t *testing.T) {
	g := domain.Goal{ID: "g1", Name: "House", TargetAmount: 50000, CurrentAmount: 1000, Deadline: "2027-01-31", Status: "active"}
	row := NewGoalRow("u1", g)
	require.True(t, row.Deadline.Valid)
	assert.Equal(t, g, row.ToDomain())

	g.Deadline = "soon"
	assert.False(t, NewGoalRow("u1", g).Deadline.Valid)
}

func TestMigrations_Embedded(t *testing.T) {
	migs, err := Migrations("proj", "ds")
	require.NoError(t, err)
	require.Len(t, migs, 2)

	assert.Equal(t, 1, migs[0].Version)
	assert.Equal(t, "snapshot_tables", migs[0].Name)
	assert.Contains(t, migs[0].SQL, "`proj.ds.transactions`")
	assert.NotContains(t, migs[0].SQL, "{{")
	assert.Equal(t, 2, migs[1].Version)
}

func TestReadMigrations_FilenamePattern(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_second.sql":       {Data: []byte("SELECT 2")},
		"m/0001_init.sql":         {Data: []byte("SELECT 1")},
		"m/001_invalid.sql":       {Data: []byte("x")},
		"m/0003_missing_ext":      {Data: []byte("x")},
		"m/invalid_0004_test.sql": {Data: []byte("x")},
		"m/0005.sql":              {Data: []byte("x")},
	}

	migs, err := readMigrations(fsys, "m", "p", "d")
	require.NoError(t, err)
	require.Len(t, migs, 2)
	assert.Equal(t, "init", migs[0].Name)
	assert.Equal(t, "second", migs[1].Name)

	again, err := readMigrations(fsys, "m", "other", "other")
	require.NoError(t, err)
	assert.Equal(t, migs[0].Checksum, again[0].Checksum)
}
