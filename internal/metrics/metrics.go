// Package metrics holds the pure metric primitives computed from raw record
// collections. Every function returns its "no data" value (0) on empty or
// degenerate input instead of failing.
package metrics

import (
	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/money"
)

// Liquid fractions of total investment value treated as available cash.
const (
	// RiskLiquidFraction is used by risk assessment.
	RiskLiquidFraction = 0.3

	// PlannerLiquidFraction is used by the advanced planner and the health score.
	PlannerLiquidFraction = 0.5
)

// SavingsRate returns max(0, (income-expenses)/income), or 0 when income <= 0.
func SavingsRate(txs []domain.Transaction) float64 {
	income := Income(txs)
	if income <= 0 {
		return 0
	}
	rate := (income - Expenses(txs)) / income
	if rate < 0 {
		return 0
	}
	return rate
}

// EmergencyFundMonths returns liquid assets (liquidFraction of total holding
// value) divided by average monthly expenses. It is 0 when there are no
// expenses.
func EmergencyFundMonths(txs []domain.Transaction, holdings []domain.Holding, liquidFraction float64) float64 {
	monthly := AverageMonthlyExpenses(txs)
	if monthly <= 0 {
		return 0
	}
	return LiquidAssets(holdings, liquidFraction) / monthly
}

// LiquidAssets is the liquid share of total holding value.
func LiquidAssets(holdings []domain.Holding, liquidFraction float64) float64 {
	return domain.TotalMarketValue(holdings) * liquidFraction
}

// IncomeVolatility is the coefficient of variation of monthly income totals.
// It is 0 with fewer than two months of income or a non-positive mean.
func IncomeVolatility(txs []domain.Transaction) float64 {
	monthly := MonthlyIncome(txs)
	if len(monthly) < 2 {
		return 0
	}
	return CoefficientOfVariation(Values(monthly))
}

// ConcentrationRisk is the largest holding's share of total portfolio value.
func ConcentrationRisk(holdings []domain.Holding) float64 {
	total := domain.TotalMarketValue(holdings)
	if total <= 0 {
		return 0
	}
	var largest float64
	for _, h := range holdings {
		if h.MarketValue > largest {
			largest = h.MarketValue
		}
	}
	return largest / total
}

// BudgetOverrunRatio is the fraction of categories whose percentage used exceeds 100.
func BudgetOverrunRatio(month domain.MonthlyBudget) float64 {
	if len(month.Categories) == 0 {
		return 0
	}
	over := 0
	for _, c := range month.Categories {
		if c.OverBudget() {
			over++
		}
	}
	return float64(over) / float64(len(month.Categories))
}

// Income sums positive amounts.
func Income(txs []domain.Transaction) float64 {
	values := make([]float64, 0, len(txs))
	for _, t := range txs {
		if t.IsIncome() {
			values = append(values, t.Amount)
		}
	}
	return money.Sum(values...)
}

// Expenses sums the absolute value of negative amounts.
func Expenses(txs []domain.Transaction) float64 {
	values := make([]float64, 0, len(txs))
	for _, t := range txs {
		if t.IsExpense() {
			values = append(values, -t.Amount)
		}
	}
	return money.Sum(values...)
}

// MonthCount is the number of distinct YYYY-MM buckets, at least 1.
func MonthCount(txs []domain.Transaction) int {
	months := make(map[string]struct{})
	for _, t := range txs {
		months[t.Month()] = struct{}{}
	}
	if len(months) == 0 {
		return 1
	}
	return len(months)
}

// AverageMonthlyExpenses divides total expenses by the number of months seen.
func AverageMonthlyExpenses(txs []domain.Transaction) float64 {
	return Expenses(txs) / float64(MonthCount(txs))
}

// AverageMonthlyIncome divides total income by the number of months seen.
func AverageMonthlyIncome(txs []domain.Transaction) float64 {
	return Income(txs) / float64(MonthCount(txs))
}

// IncomeSourceCount counts distinct descriptions of income transactions.
func IncomeSourceCount(txs []domain.Transaction) int {
	sources := make(map[string]struct{})
	for _, t := range txs {
		if t.IsIncome() {
			sources[t.Description] = struct{}{}
		}
	}
	return len(sources)
}
