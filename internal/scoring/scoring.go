// Package scoring combines metric primitives into the composite 0-100 scores
// reported by the analysis modules. Every score is a pure function of its
// inputs.
package scoring

import (
	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/metrics"
	"github.com/dvloznov/finance-agent/internal/money"
)

// componentCap is the maximum contribution of a single sub-score.
const componentCap = 25.0

// HealthInputs are the metric values the Financial Health Score is built from.
type HealthInputs struct {
	EmergencyFundMonths float64
	SavingsRate         float64
	BudgetCategories    []domain.BudgetCategory
	HoldingCount        int
}

// HealthScore is the Financial Health Score with its four components.
type HealthScore struct {
	Total           float64 `json:"overall_score"`
	EmergencyFund   float64 `json:"emergency_fund"`
	Savings         float64 `json:"savings_rate"`
	BudgetAdherence float64 `json:"budget_adherence"`
	Diversification float64 `json:"investment_diversification"`
	Rating          string  `json:"rating"`
}

// FinancialHealth scores emergency fund, savings rate, budget adherence and
// diversification at up to 25 points each.
func FinancialHealth(in HealthInputs) HealthScore {
	s := HealthScore{
		EmergencyFund:   EmergencyFundPoints(in.EmergencyFundMonths),
		Savings:         SavingsPoints(in.SavingsRate),
		BudgetAdherence: BudgetAdherencePoints(in.BudgetCategories),
		Diversification: HoldingCountPoints(in.HoldingCount),
	}
	s.Total = money.Round1(clamp(s.EmergencyFund+s.Savings+s.BudgetAdherence+s.Diversification, 0, 100))
	s.Rating = HealthRating(s.Total)
	return s
}

// EmergencyFundPoints: >=6 months 25, >=3 15, >=1 10, else 0.
func EmergencyFundPoints(months float64) float64 {
	switch {
	case months >= 6:
		return 25
	case months >= 3:
		return 15
	case months >= 1:
		return 10
	default:
		return 0
	}
}

// SavingsPoints: >=20% 25, >=15% 20, >=10% 15, >=5% 10, else 0.
func SavingsPoints(rate float64) float64 {
	switch {
	case rate >= 0.20:
		return 25
	case rate >= 0.15:
		return 20
	case rate >= 0.10:
		return 15
	case rate >= 0.05:
		return 10
	default:
		return 0
	}
}

// BudgetAdherencePoints averages a per-category 0-100 score and scales it to 25.
// A category within budget scores min(100, 110-pct); an overspent one scores
// max(0, 50-(pct-100)).
func BudgetAdherencePoints(categories []domain.BudgetCategory) float64 {
	if len(categories) == 0 {
		return 0
	}
	var total float64
	for _, c := range categories {
		total += CategoryAdherence(c.PercentageUsed)
	}
	return min(componentCap, total/float64(len(categories))/4)
}

// CategoryAdherence is the 0-100 adherence score for one category.
func CategoryAdherence(pctUsed float64) float64 {
	if pctUsed <= 100 {
		return min(100, 110-pctUsed)
	}
	return max(0, 50-(pctUsed-100))
}

// HoldingCountPoints: >=10 holdings 25, >=5 20, >=3 15, any 10, none 5.
func HoldingCountPoints(n int) float64 {
	switch {
	case n >= 10:
		return 25
	case n >= 5:
		return 20
	case n >= 3:
		return 15
	case n > 0:
		return 10
	default:
		return 5
	}
}

// HealthRating maps a 0-100 health score to a label.
func HealthRating(score float64) string {
	switch {
	case score >= 90:
		return "Excellent"
	case score >= 80:
		return "Very Good"
	case score >= 70:
		return "Good"
	case score >= 60:
		return "Fair"
	case score >= 50:
		return "Poor"
	default:
		return "Critical"
	}
}

// HealthFromSnapshot derives the inputs from raw records. month selects the
// budget month used for adherence. Adherence scores only when transactions
// are present.
func HealthFromSnapshot(snap *domain.Snapshot, month string, liquidFraction float64) HealthScore {
	var in HealthInputs
	if snap != nil {
		in.EmergencyFundMonths = metrics.EmergencyFundMonths(snap.Transactions, snap.Holdings, liquidFraction)
		in.SavingsRate = metrics.SavingsRate(snap.Transactions)
		in.HoldingCount = len(snap.Holdings)
		if m, ok := snap.Budget.Month(month); ok && snap.HasTransactions() {
			in.BudgetCategories = m.Sorted()
		}
	}
	return FinancialHealth(in)
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
