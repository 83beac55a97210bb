package snapshot

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-agent/internal/domain"
)

// Object names of the snapshot layout, shared by every object-backed source.
const (
	TransactionsFile = "transactions.csv"
	BudgetFile       = "budget.json"
	InvestmentsFile  = "investments.json"
	GoalsFile        = "goals.json"
)

// DecodeTransactionsCSV reads transactions from a CSV file with a header row.
// The date, amount and category columns are required; description, merchant,
// account_type, payment_method and transaction_id (or id) are optional. Rows
// are returned ordered by date.
func DecodeTransactionsCSV(r io.Reader) ([]domain.Transaction, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("DecodeTransactionsCSV: reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"date", "amount", "category"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("DecodeTransactionsCSV: missing column %q", required)
		}
	}
	get := func(rec []string, name string) string {
		if i, ok := cols[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	var txs []domain.Transaction
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("DecodeTransactionsCSV: line %d: %w", line, err)
		}

		date, err := parseDate(get(rec, "date"))
		if err != nil {
			return nil, fmt.Errorf("DecodeTransactionsCSV: line %d: %w", line, err)
		}
		amount, err := decimal.NewFromString(get(rec, "amount"))
		if err != nil {
			return nil, fmt.Errorf("DecodeTransactionsCSV: line %d: amount: %w", line, err)
		}

		id := get(rec, "transaction_id")
		if id == "" {
			id = get(rec, "id")
		}
		txs = append(txs, domain.Transaction{
			ID:            id,
			Date:          date,
			Amount:        amount.InexactFloat64(),
			Category:      get(rec, "category"),
			Description:   get(rec, "description"),
			Merchant:      get(rec, "merchant"),
			AccountType:   get(rec, "account_type"),
			PaymentMethod: get(rec, "payment_method"),
		})
	}

	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.Before(txs[j].Date) })
	return txs, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{domain.DateLayout, "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// DecodeBudget reads the {"monthly_budgets": {...}} document and recomputes
// every derived field.
func DecodeBudget(data []byte) (*domain.Budget, error) {
	var b domain.Budget
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("DecodeBudget: %w", err)
	}
	for k, m := range b.Months {
		if m.Categories == nil {
			m.Categories = map[string]domain.BudgetCategory{}
		}
		m.Recompute()
		b.Months[k] = m
	}
	return &b, nil
}

// DecodeHoldings reads a JSON array of holdings, or an object wrapping it
// under "holdings" or "investments".
func DecodeHoldings(data []byte) ([]domain.Holding, error) {
	var hs []domain.Holding
	if err := decodeList(data, &hs, "holdings", "investments"); err != nil {
		return nil, fmt.Errorf("DecodeHoldings: %w", err)
	}
	for i := range hs {
		hs[i].Recompute()
	}
	return hs, nil
}

// DecodeGoals reads a JSON array of goals, or an object wrapping it under
// "goals" or "financial_goals".
func DecodeGoals(data []byte) ([]domain.Goal, error) {
	var gs []domain.Goal
	if err := decodeList(data, &gs, "goals", "financial_goals"); err != nil {
		return nil, fmt.Errorf("DecodeGoals: %w", err)
	}
	return gs, nil
}

func decodeList(data []byte, out any, keys ...string) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return err
	}
	for _, k := range keys {
		if raw, ok := wrapper[k]; ok {
			return json.Unmarshal(raw, out)
		}
	}
	return fmt.Errorf("expected an array or an object with one of %v", keys)
}
