package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-agent/internal/domain"
)

// MockSource is a mock implementation of Source for testing.
type MockSource struct {
	LoadFunc func(ctx context.Context) (*domain.Snapshot, error)
	Calls    int
}

func (m *MockSource) Load(ctx context.Context) (*domain.Snapshot, error) {
	m.Calls++
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	return &domain.Snapshot{}, nil
}

const transactionsCSV = `date,amount,category,description,merchant,account_type,payment_method
2025-06-05,-450.00,Food & Dining,Weekly shop,Market,checking,debit_card
2025-06-01,2000,Income,Salary,Employer,checking,transfer
2025-06-02,-50.5,Food & Dining,Lunch,Cafe,credit,credit_card
`

const budgetJSON = `{"monthly_budgets": {"2025-06": {"categories": {
  "Food & Dining": {"budgeted": 400, "spent": 500},
  "Transport": {"budgeted": 100, "spent": 20}
}}}}`

const investmentsJSON = `[
  {"symbol": "AAPL", "company": "Apple", "shares": 10, "total_cost": 1000, "market_value": 1500},
  {"symbol": "SPY", "company": "SPDR", "shares": 2, "total_cost": 800, "market_value": 600}
]`

const goalsJSON = `{"goals": [
  {"goal_id": "emergency_fund", "name": "Emergency Fund", "target_amount": 10000, "current_amount": 2500, "status": "active"}
]}`

func writeLayout(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestDecodeTransactionsCSV(t *testing.T) {
	txs, err := DecodeTransactionsCSV(strings.NewReader(transactionsCSV))
	require.NoError(t, err)
	require.Len(t, txs, 3)

	assert.Equal(t, "2025-06-01", txs[0].Day())
	assert.Equal(t, 2000.0, txs[0].Amount)
	assert.Equal(t, -50.5, txs[1].Amount)
	assert.Equal(t, "Cafe", txs[1].Merchant)
	assert.Equal(t, "credit_card", txs[1].PaymentMethod)
}

func TestDecodeTransactionsCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing column", "date,amount\n2025-01-01,1\n"},
		{"bad date", "date,amount,category\nyesterday,1,Food\n"},
		{"bad amount", "date,amount,category\n2025-01-01,abc,Food\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTransactionsCSV(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}

	txs, err := DecodeTransactionsCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestDecodeBudget_Recomputes(t *testing.T) {
	b, err := DecodeBudget([]byte(budgetJSON))
	require.NoError(t, err)

	m, ok := b.Month("2025-06")
	require.True(t, ok)
	food := m.Categories["Food & Dining"]
	assert.Equal(t, 125.0, food.PercentageUsed)
	assert.Equal(t, -100.0, food.Remaining)
	assert.Equal(t, 500.0, m.TotalBudgeted)
	assert.Equal(t, 520.0, m.TotalSpent)
}

func TestDecodeHoldings(t *testing.T) {
	hs, err := DecodeHoldings([]byte(investmentsJSON))
	require.NoError(t, err)
	require.Len(t, hs, 2)
	assert.Equal(t, 500.0, hs[0].UnrealizedGainLoss)
	assert.Equal(t, 50.0, hs[0].PercentageChange)
	assert.Equal(t, -25.0, hs[1].PercentageChange)

	wrapped, err := DecodeHoldings([]byte(`{"holdings": ` + investmentsJSON + `}`))
	require.NoError(t, err)
	assert.Len(t, wrapped, 2)

	_, err = DecodeHoldings([]byte(`{"other": []}`))
	assert.Error(t, err)
}

func TestDecodeGoals(t *testing.T) {
	gs, err := DecodeGoals([]byte(goalsJSON))
	require.NoError(t, err)
	require.Len(t, gs, 1)
	assert.Equal(t, "emergency_fund", gs[0].ID)
	assert.Equal(t, 25.0, gs[0].ProgressPercentage())
}

func TestFileSource_Load(t *testing.T) {
	dir := writeLayout(t, map[string]string{
		TransactionsFile: transactionsCSV,
		BudgetFile:       budgetJSON,
		InvestmentsFile:  investmentsJSON,
		GoalsFile:        goalsJSON,
	})

	snap, err := NewFileSource(dir).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Transactions, 3)
	assert.True(t, snap.HasBudget())
	assert.Len(t, snap.Holdings, 2)
	assert.Len(t, snap.Goals, 1)
}

func TestFileSource_PartialLayout(t *testing.T) {
	dir := writeLayout(t, map[string]string{InvestmentsFile: investmentsJSON})

	snap, err := NewFileSource(dir).Load(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.HasTransactions())
	assert.False(t, snap.HasBudget())
	assert.True(t, snap.HasHoldings())
}

func TestFileSource_Errors(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "absent")).Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)

	dir := writeLayout(t, map[string]string{BudgetFile: "{not json"})
	_, err = NewFileSource(dir).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), BudgetFile)
}

func TestMultiSource(t *testing.T) {
	first := StaticSource{Snapshot: &domain.Snapshot{Holdings: []domain.Holding{{Symbol: "A"}}}}
	missing := &MockSource{LoadFunc: func(context.Context) (*domain.Snapshot, error) {
		return nil, ErrNotFound
	}}
	second := StaticSource{Snapshot: &domain.Snapshot{
		Holdings: []domain.Holding{{Symbol: "B"}},
		Goals:    []domain.Goal{{ID: "g"}},
	}}

	snap, err := MultiSource{first, missing, second}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A", snap.Holdings[0].Symbol)
	assert.Len(t, snap.Goals, 1)

	broken := &MockSource{LoadFunc: func(context.Context) (*domain.Snapshot, error) {
		return nil, errors.New("boom")
	}}
	_, err = MultiSource{first, broken}.Load(context.Background())
	assert.Error(t, err)
}

func TestCachedSource(t *testing.T) {
	mock := &MockSource{LoadFunc: func(context.Context) (*domain.Snapshot, error) {
		return &domain.Snapshot{Goals: []domain.Goal{{ID: "g"}}}, nil
	}}
	cached, err := NewCachedSource(mock, time.Minute)
	require.NoError(t, err)
	defer cached.Close()

	for i := 0; i < 3; i++ {
		snap, err := cached.Load(context.Background())
		require.NoError(t, err)
		assert.Len(t, snap.Goals, 1)
	}
	assert.Equal(t, 1, mock.Calls)

	cached.Invalidate()
	_, err = cached.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, mock.Calls)
}

func TestCachedSource_ErrorsNotCached(t *testing.T) {
	mock := &MockSource{LoadFunc: func(context.Context) (*domain.Snapshot, error) {
		return nil, errors.New("unavailable")
	}}
	cached, err := NewCachedSource(mock, time.Minute)
	require.NoError(t, err)
	defer cached.Close()

	_, err = cached.Load(context.Background())
	assert.Error(t, err)
	_, err = cached.Load(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, mock.Calls)
}
