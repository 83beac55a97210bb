package scoring

import (
	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/metrics"
	"github.com/dvloznov/finance-agent/internal/money"
)

// RiskInputs are the metric values the Overall Risk Score is built from.
type RiskInputs struct {
	IncomeVolatility    float64
	EmergencyFundMonths float64
	ConcentrationRisk   float64
	BudgetOverrunRatio  float64
}

// RiskScore is the Overall Risk Score (higher is riskier) with its components.
type RiskScore struct {
	Total            float64 `json:"overall_risk_score"`
	IncomeVolatility float64 `json:"income_volatility"`
	Liquidity        float64 `json:"liquidity"`
	Concentration    float64 `json:"concentration"`
	BudgetOverrun    float64 `json:"budget_overrun"`
	Level            string  `json:"risk_level"`
}

// OverallRisk sums four contributions capped at 25 each.
func OverallRisk(in RiskInputs) RiskScore {
	s := RiskScore{
		IncomeVolatility: min(componentCap, in.IncomeVolatility*100),
		Liquidity:        min(componentCap, LiquidityRisk(in.EmergencyFundMonths)*25),
		Concentration:    min(componentCap, in.ConcentrationRisk*25),
		BudgetOverrun:    min(componentCap, in.BudgetOverrunRatio*25),
	}
	s.Total = money.Round1(clamp(s.IncomeVolatility+s.Liquidity+s.Concentration+s.BudgetOverrun, 0, 100))
	s.Level = RiskLevel(s.Total)
	return s
}

// LiquidityRisk maps emergency fund coverage to a 0-1 risk tier.
func LiquidityRisk(months float64) float64 {
	switch {
	case months >= 6:
		return 0.1
	case months >= 3:
		return 0.3
	case months >= 1:
		return 0.6
	default:
		return 1.0
	}
}

// RiskLevel labels a 0-100 risk score.
func RiskLevel(score float64) string {
	switch {
	case score >= 70:
		return "High"
	case score >= 40:
		return "Medium"
	default:
		return "Low"
	}
}

// RiskFromSnapshot derives the inputs from raw records.
func RiskFromSnapshot(snap *domain.Snapshot, month string, liquidFraction float64) RiskScore {
	var in RiskInputs
	if snap != nil {
		in.IncomeVolatility = metrics.IncomeVolatility(snap.Transactions)
		in.EmergencyFundMonths = metrics.EmergencyFundMonths(snap.Transactions, snap.Holdings, liquidFraction)
		in.ConcentrationRisk = metrics.ConcentrationRisk(snap.Holdings)
		if m, ok := snap.Budget.Month(month); ok {
			in.BudgetOverrunRatio = metrics.BudgetOverrunRatio(m)
		}
	}
	return OverallRisk(in)
}

// Diversification starts at 100, subtracts 30 when the largest position is over
// 40% of the portfolio (15 when over 25%), subtracts 20 with fewer than 5
// holdings (10 with fewer than 10) and floors at 0. An empty portfolio scores 0.
func Diversification(holdings []domain.Holding) float64 {
	if len(holdings) == 0 {
		return 0
	}
	score := 100.0

	largest := metrics.ConcentrationRisk(holdings) * 100
	switch {
	case largest > 40:
		score -= 30
	case largest > 25:
		score -= 15
	}

	switch n := len(holdings); {
	case n < 5:
		score -= 20
	case n < 10:
		score -= 10
	}
	return max(0, score)
}
