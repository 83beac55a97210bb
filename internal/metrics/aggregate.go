package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/dvloznov/finance-agent/internal/domain"
)

// Amount is a labelled total, used for ranked breakdowns.
type Amount struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// MonthlyIncome sums income per YYYY-MM.
func MonthlyIncome(txs []domain.Transaction) map[string]float64 {
	out := make(map[string]float64)
	for _, t := range txs {
		if t.IsIncome() {
			out[t.Month()] += t.Amount
		}
	}
	return out
}

// MonthlyExpenses sums absolute expenses per YYYY-MM.
func MonthlyExpenses(txs []domain.Transaction) map[string]float64 {
	out := make(map[string]float64)
	for _, t := range txs {
		if t.IsExpense() {
			out[t.Month()] -= t.Amount
		}
	}
	return out
}

// DailyExpenses sums absolute expenses per YYYY-MM-DD.
func DailyExpenses(txs []domain.Transaction) map[string]float64 {
	out := make(map[string]float64)
	for _, t := range txs {
		if t.IsExpense() {
			out[t.Day()] -= t.Amount
		}
	}
	return out
}

// ExpensesBy sums absolute expenses grouped by key. Empty keys are skipped.
func ExpensesBy(txs []domain.Transaction, key func(domain.Transaction) string) map[string]float64 {
	out := make(map[string]float64)
	for _, t := range txs {
		if !t.IsExpense() {
			continue
		}
		k := key(t)
		if k == "" {
			continue
		}
		out[k] -= t.Amount
	}
	return out
}

// ByCategory groups by transaction category.
func ByCategory(t domain.Transaction) string { return t.Category }

// ByMerchant groups by merchant.
func ByMerchant(t domain.Transaction) string { return t.Merchant }

// Ranked orders a breakdown by amount descending, then name, and keeps at most
// n entries when n > 0.
func Ranked(totals map[string]float64, n int) []Amount {
	out := make([]Amount, 0, len(totals))
	for name, amount := range totals {
		out = append(out, Amount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// SortedKeys returns map keys in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Filter keeps the transactions for which keep returns true.
func Filter(txs []domain.Transaction, keep func(domain.Transaction) bool) []domain.Transaction {
	var out []domain.Transaction
	for _, t := range txs {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// InMonth keeps transactions in the YYYY-MM month.
func InMonth(txs []domain.Transaction, month string) []domain.Transaction {
	return Filter(txs, func(t domain.Transaction) bool { return t.Month() == month })
}

// Since keeps transactions dated on or after from.
func Since(txs []domain.Transaction, from time.Time) []domain.Transaction {
	return Filter(txs, func(t domain.Transaction) bool { return !t.Date.Before(from) })
}

// Mean of values, 0 when empty.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev is the sample standard deviation, 0 with fewer than two values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(values)-1))
}

// CoefficientOfVariation is stddev/mean, 0 when the mean is not positive.
func CoefficientOfVariation(values []float64) float64 {
	mean := Mean(values)
	if mean <= 0 {
		return 0
	}
	return StdDev(values) / mean
}

// Values returns map values ordered by key.
func Values(m map[string]float64) []float64 {
	keys := SortedKeys(m)
	out := make([]float64, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}
