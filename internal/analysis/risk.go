package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/metrics"
	"github.com/dvloznov/finance-agent/internal/money"
	"github.com/dvloznov/finance-agent/internal/scoring"
	"github.com/dvloznov/finance-agent/internal/state"
)

// Stress test parameters.
const (
	MarketCrashDecline = 0.30
	InflationShock     = 0.10
	UmbrellaThreshold  = 100_000.0
	UmbrellaCap        = 1_000_000.0
)

// RiskCategory is one scored risk dimension.
type RiskCategory struct {
	Score       float64 `json:"score"`
	Description string  `json:"description"`
}

// RiskCategories scores each risk dimension from 0 to 100.
type RiskCategories struct {
	Market    RiskCategory `json:"market_risk"`
	Liquidity RiskCategory `json:"liquidity_risk"`
	Credit    RiskCategory `json:"credit_risk"`
	Inflation RiskCategory `json:"inflation_risk"`
	Income    RiskCategory `json:"income_risk"`
}

// Vulnerability is a specific weakness found in the data.
type Vulnerability struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// VulnerabilityAssessment lists every vulnerability found.
type VulnerabilityAssessment struct {
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	TotalCount      int             `json:"total_count"`
}

// IncomeLossTest models a complete loss of income.
type IncomeLossTest struct {
	Scenario        string  `json:"scenario"`
	SurvivalMonths  float64 `json:"survival_months"`
	MonthlyBurnRate float64 `json:"monthly_burn_rate"`
	Assessment      string  `json:"assessment"`
}

// MarketCrashTest models a broad market decline.
type MarketCrashTest struct {
	Scenario       string  `json:"scenario"`
	CurrentValue   float64 `json:"current_value"`
	StressedValue  float64 `json:"stressed_value"`
	LossAmount     float64 `json:"loss_amount"`
	LossPercentage float64 `json:"loss_percentage"`
}

// InflationTest models a jump in prices.
type InflationTest struct {
	Scenario         string  `json:"scenario"`
	CurrentExpenses  float64 `json:"current_expenses"`
	InflatedExpenses float64 `json:"inflated_expenses"`
	AdditionalCost   float64 `json:"additional_cost"`
}

// StressTests holds the scenarios that apply to the available data.
type StressTests struct {
	IncomeLoss    *IncomeLossTest  `json:"income_loss,omitempty"`
	MarketCrash   *MarketCrashTest `json:"market_crash,omitempty"`
	HighInflation *InflationTest   `json:"high_inflation,omitempty"`
}

// MitigationStrategy is a recommended risk reduction.
type MitigationStrategy struct {
	Category    string   `json:"category"`
	Priority    string   `json:"priority"`
	Strategy    string   `json:"strategy"`
	Description string   `json:"description"`
	ActionItems []string `json:"action_items"`
}

// InsuranceEstimate is a rough coverage need.
type InsuranceEstimate struct {
	Type        string  `json:"type"`
	Amount      float64 `json:"estimated_need"`
	Description string  `json:"description"`
}

// DiversificationAnalysis breaks the portfolio down by asset class.
type DiversificationAnalysis struct {
	AssetAllocation      map[string]float64 `json:"asset_allocation"`
	TotalHoldings        int                `json:"total_holdings"`
	LargestPositionPct   float64            `json:"largest_position_pct"`
	DiversificationScore float64            `json:"diversification_score"`
	Recommendations      []string           `json:"recommendations"`
}

// RiskReport is the risk assessment result.
type RiskReport struct {
	Score                scoring.RiskScore        `json:"overall_risk"`
	OverallRiskScore     float64                  `json:"overall_risk_score"`
	RiskLevel            string                   `json:"risk_level"`
	BudgetOverrunRatio   float64                  `json:"budget_overrun_ratio"`
	EmergencyFundMonths  float64                  `json:"emergency_fund_months"`
	Categories           RiskCategories           `json:"risk_categories"`
	Vulnerabilities      VulnerabilityAssessment  `json:"vulnerability_assessment"`
	StressTests          StressTests              `json:"stress_test_results"`
	MitigationStrategies []MitigationStrategy     `json:"risk_mitigation_strategies"`
	Insurance            []InsuranceEstimate      `json:"insurance_recommendations"`
	Diversification      *DiversificationAnalysis `json:"diversification_analysis,omitempty"`
}

// RiskModule runs every risk sub-analysis regardless of the query.
type RiskModule struct {
	clock func() time.Time
}

// NewRiskModule creates the risk_assessment module.
func NewRiskModule(opts Options) *RiskModule {
	return &RiskModule{clock: opts.withDefaults().Clock}
}

func (m *RiskModule) Name() string { return RiskAssessment }

func (m *RiskModule) Description() string {
	return "Risk score, vulnerabilities, stress tests, mitigation and insurance estimates"
}

func (m *RiskModule) Run(_ context.Context, st *state.State) error {
	store(st, m.Name(), AssessRisk(st.Snapshot(), m.clock()))
	return nil
}

// AssessRisk produces the risk report for snap as of now. Absent inputs
// contribute their "no data" value; a nil snap is treated as empty.
func AssessRisk(snap *domain.Snapshot, now time.Time) RiskReport {
	if snap == nil {
		snap = &domain.Snapshot{}
	}
	txs, holdings := snap.Transactions, snap.Holdings
	emergency := metrics.EmergencyFundMonths(txs, holdings, metrics.RiskLiquidFraction)

	var overrun float64
	if mb, ok := snap.Budget.Month(currentMonth(now)); ok {
		overrun = metrics.BudgetOverrunRatio(mb)
	}

	score := scoring.OverallRisk(scoring.RiskInputs{
		IncomeVolatility:    metrics.IncomeVolatility(txs),
		EmergencyFundMonths: emergency,
		ConcentrationRisk:   metrics.ConcentrationRisk(holdings),
		BudgetOverrunRatio:  overrun,
	})

	r := RiskReport{
		Score:                score,
		OverallRiskScore:     score.Total,
		RiskLevel:            score.Level,
		BudgetOverrunRatio:   money.Round(overrun, 3),
		EmergencyFundMonths:  money.Round1(emergency),
		Categories:           riskCategories(txs, holdings, emergency),
		Vulnerabilities:      vulnerabilities(txs, holdings, emergency),
		StressTests:          stressTests(txs, holdings, emergency),
		MitigationStrategies: mitigationStrategies(snap, emergency, overrun),
		Insurance:            insuranceNeeds(txs, holdings),
	}
	if len(holdings) > 0 {
		d := diversificationAnalysis(holdings)
		r.Diversification = &d
	}
	return r
}

func riskCategories(txs []domain.Transaction, holdings []domain.Holding, emergency float64) RiskCategories {
	var c RiskCategories

	var market float64
	for _, h := range holdings {
		switch pct := math.Abs(h.PercentageChange); {
		case pct > 20:
			market += 20
		case pct > 10:
			market += 10
		}
	}
	c.Market = RiskCategory{Score: min(100, market), Description: "Risk from market price fluctuations"}

	c.Liquidity = RiskCategory{
		Score:       money.Round1(scoring.LiquidityRisk(emergency) * 100),
		Description: "Risk of not having enough cash for emergencies",
	}

	c.Credit.Description = "Risk from spending close to or above income"
	if income := metrics.Income(txs); income > 0 {
		switch ratio := metrics.Expenses(txs) / income; {
		case ratio > 0.9:
			c.Credit.Score = 80
		case ratio > 0.8:
			c.Credit.Score = 60
		default:
			c.Credit.Score = 20
		}
	}

	c.Inflation = RiskCategory{Score: 70, Description: "Risk of purchasing power erosion"}
	if !cashHeavy(holdings) {
		c.Inflation.Score = 30
	}

	c.Income = RiskCategory{
		Score:       money.Round1(min(100, metrics.IncomeVolatility(txs)*100)),
		Description: "Risk from irregular monthly income",
	}
	return c
}

// cashHeavy reports whether at most 40% of holdings are equity by symbol.
func cashHeavy(holdings []domain.Holding) bool {
	if len(holdings) == 0 {
		return true
	}
	equity := 0
	for _, h := range holdings {
		if strings.Contains(strings.ToLower(h.Symbol), "stock") {
			equity++
		}
	}
	return float64(equity) <= float64(len(holdings))*0.4
}

func vulnerabilities(txs []domain.Transaction, holdings []domain.Holding, emergency float64) VulnerabilityAssessment {
	vs := []Vulnerability{}
	if len(txs) > 0 && metrics.IncomeSourceCount(txs) <= 1 {
		vs = append(vs, Vulnerability{
			Type:        "single_income_source",
			Severity:    "high",
			Description: "Dependence on single income source increases financial risk",
		})
	}
	if emergency < 3 {
		severity := "medium"
		if emergency < 1 {
			severity = "high"
		}
		vs = append(vs, Vulnerability{
			Type:        "insufficient_emergency_fund",
			Severity:    severity,
			Description: fmt.Sprintf("Only %.1f months of expenses in emergency fund", emergency),
		})
	}
	if metrics.ConcentrationRisk(holdings) > 0.4 {
		vs = append(vs, Vulnerability{
			Type:        "investment_concentration",
			Severity:    "medium",
			Description: "High concentration in single investment increases risk",
		})
	}
	return VulnerabilityAssessment{Vulnerabilities: vs, TotalCount: len(vs)}
}

func stressTests(txs []domain.Transaction, holdings []domain.Holding, emergency float64) StressTests {
	var s StressTests
	if len(txs) > 0 {
		assessment := "manageable"
		if emergency < 3 {
			assessment = "critical"
		}
		s.IncomeLoss = &IncomeLossTest{
			Scenario:        "Complete income loss",
			SurvivalMonths:  money.Round1(emergency),
			MonthlyBurnRate: money.Round2(metrics.AverageMonthlyExpenses(txs)),
			Assessment:      assessment,
		}

		expenses := metrics.Expenses(txs)
		inflated := expenses * (1 + InflationShock)
		s.HighInflation = &InflationTest{
			Scenario:         "10% inflation increase",
			CurrentExpenses:  money.Round2(expenses),
			InflatedExpenses: money.Round2(inflated),
			AdditionalCost:   money.Round2(inflated - expenses),
		}
	}
	if len(holdings) > 0 {
		value := domain.TotalMarketValue(holdings)
		stressed := value * (1 - MarketCrashDecline)
		s.MarketCrash = &MarketCrashTest{
			Scenario:       "30% market decline",
			CurrentValue:   money.Round2(value),
			StressedValue:  money.Round2(stressed),
			LossAmount:     money.Round2(value - stressed),
			LossPercentage: MarketCrashDecline * 100,
		}
	}
	return s
}

func mitigationStrategies(snap *domain.Snapshot, emergency, overrun float64) []MitigationStrategy {
	out := []MitigationStrategy{}
	if emergency < 6 {
		out = append(out, MitigationStrategy{
			Category:    "liquidity",
			Priority:    "high",
			Strategy:    "Build Emergency Fund",
			Description: fmt.Sprintf("Increase emergency fund from %.1f to 6 months of expenses", emergency),
			ActionItems: []string{
				"Set up automatic savings for emergency fund",
				"Consider high-yield savings account",
				"Target $500-1000 monthly contributions",
			},
		})
	}
	if snap.HasHoldings() && len(snap.Holdings) < 5 {
		out = append(out, MitigationStrategy{
			Category:    "diversification",
			Priority:    "medium",
			Strategy:    "Increase Portfolio Diversification",
			Description: "Add more asset classes to reduce concentration risk",
			ActionItems: []string{
				"Consider index funds for broad market exposure",
				"Add international investments",
				"Include bonds for stability",
			},
		})
	}
	if snap.HasTransactions() && metrics.IncomeSourceCount(snap.Transactions) <= 1 {
		out = append(out, MitigationStrategy{
			Category:    "income",
			Priority:    "medium",
			Strategy:    "Diversify Income Sources",
			Description: "Reduce dependence on single income source",
			ActionItems: []string{
				"Develop side income streams",
				"Build marketable skills",
				"Consider passive income investments",
			},
		})
	}
	if overrun > 0.3 {
		out = append(out, MitigationStrategy{
			Category:    "budgeting",
			Priority:    "medium",
			Strategy:    "Improve Budget Control",
			Description: "Better manage spending to reduce financial stress",
			ActionItems: []string{
				"Review and adjust budget categories",
				"Set up spending alerts",
				"Track expenses weekly",
			},
		})
	}
	return out
}

func insuranceNeeds(txs []domain.Transaction, holdings []domain.Holding) []InsuranceEstimate {
	out := []InsuranceEstimate{}
	if len(txs) > 0 {
		annual := metrics.Income(txs) * 12 / float64(metrics.MonthCount(txs))
		life := annual * 10
		disability := annual / 12 * 0.6
		out = append(out,
			InsuranceEstimate{
				Type:        "life_insurance",
				Amount:      money.Round2(life),
				Description: fmt.Sprintf("Consider %s in life insurance coverage", money.Format(math.Round(life))),
			},
			InsuranceEstimate{
				Type:        "disability_insurance",
				Amount:      money.Round2(disability),
				Description: fmt.Sprintf("Consider %s/month disability insurance", money.Format(math.Round(disability))),
			},
		)
	}
	if assets := domain.TotalMarketValue(holdings); assets > UmbrellaThreshold {
		out = append(out, InsuranceEstimate{
			Type:        "umbrella_insurance",
			Amount:      money.Round2(min(assets, UmbrellaCap)),
			Description: "Consider umbrella insurance for asset protection",
		})
	}
	return out
}

// assetClass buckets a holding by its symbol.
func assetClass(symbol string) string {
	s := strings.ToLower(symbol)
	switch {
	case containsAny(s, "bond", "treasury"):
		return "bonds"
	case containsAny(s, "stock", "equity", "etf"):
		return "stocks"
	default:
		return "other"
	}
}

func diversificationAnalysis(holdings []domain.Holding) DiversificationAnalysis {
	total := domain.TotalMarketValue(holdings)
	classes := make(map[string]float64)
	for _, h := range holdings {
		classes[assetClass(h.Symbol)] += h.MarketValue
	}
	allocation := make(map[string]float64, len(classes))
	for k, v := range classes {
		allocation[k] = money.Round2(money.Percent(v, total))
	}

	var recs []string
	if allocation["stocks"] > 80 {
		recs = append(recs, "Consider adding bonds for stability (target 10-30%)")
	}
	if allocation["bonds"] > 50 {
		recs = append(recs, "Consider reducing bond allocation for growth (target 20-40%)")
	}
	if len(holdings) < 5 {
		recs = append(recs, "Increase number of holdings for better diversification")
	}
	if allocation["other"] == 0 {
		recs = append(recs, "Consider alternative investments (REITs, commodities)")
	}

	return DiversificationAnalysis{
		AssetAllocation:      allocation,
		TotalHoldings:        len(holdings),
		LargestPositionPct:   money.Round2(metrics.ConcentrationRisk(holdings) * 100),
		DiversificationScore: scoring.Diversification(holdings),
		Recommendations:      recs,
	}
}
