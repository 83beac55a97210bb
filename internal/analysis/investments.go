package analysis

import (
	"context"
	"fmt"
	"sort"

	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/metrics"
	"github.com/dvloznov/finance-agent/internal/money"
	"github.com/dvloznov/finance-agent/internal/scoring"
	"github.com/dvloznov/finance-agent/internal/state"
)

var investmentBranches = []branch{
	{"performance", []string{"performance", "how are", "doing", "perform"}},
	{"gains_losses", []string{"gain", "loss", "profit"}},
	{"allocation", []string{"diversification", "allocation", "breakdown", "diversif"}},
	{"best_worst", []string{"best", "worst", "top", "bottom"}},
}

var sectors = map[string]string{
	"AAPL":  "Technology",
	"GOOGL": "Technology",
	"MSFT":  "Technology",
	"TSLA":  "Automotive/Technology",
	"SPY":   "Diversified ETF",
}

var techSymbols = map[string]bool{"AAPL": true, "GOOGL": true, "MSFT": true}

// Position is one holding as reported by the investment module.
type Position struct {
	Symbol           string  `json:"symbol"`
	Company          string  `json:"company"`
	Shares           float64 `json:"shares,omitempty"`
	CurrentPrice     float64 `json:"current_price,omitempty"`
	MarketValue      float64 `json:"market_value"`
	CostBasis        float64 `json:"cost_basis,omitempty"`
	GainLoss         float64 `json:"gain_loss"`
	ReturnPercentage float64 `json:"return_percentage"`
}

func newPosition(h domain.Holding) Position {
	return Position{
		Symbol:           h.Symbol,
		Company:          h.Company,
		Shares:           h.Shares,
		CurrentPrice:     money.Round2(h.CurrentPrice),
		MarketValue:      money.Round2(h.MarketValue),
		CostBasis:        money.Round2(h.CostBasis),
		GainLoss:         money.Round2(h.UnrealizedGainLoss),
		ReturnPercentage: money.Round2(h.PercentageChange),
	}
}

// PortfolioTotals are the aggregate portfolio figures.
type PortfolioTotals struct {
	TotalMarketValue        float64 `json:"total_market_value"`
	TotalCostBasis          float64 `json:"total_cost_basis"`
	TotalGainLoss           float64 `json:"total_gain_loss"`
	OverallReturnPercentage float64 `json:"overall_return_percentage"`
	NumberOfHoldings        int     `json:"number_of_holdings"`
}

func portfolioTotals(holdings []domain.Holding) PortfolioTotals {
	value := domain.TotalMarketValue(holdings)
	cost := domain.TotalCostBasis(holdings)
	gain := value - cost
	t := PortfolioTotals{
		TotalMarketValue: money.Round2(value),
		TotalCostBasis:   money.Round2(cost),
		TotalGainLoss:    money.Round2(gain),
		NumberOfHoldings: len(holdings),
	}
	if cost > 0 {
		t.OverallReturnPercentage = money.Round2(gain / cost * 100)
	}
	return t
}

// PerformanceAnalysis ranks every holding by return.
type PerformanceAnalysis struct {
	Type                  string          `json:"analysis_type"`
	Summary               PortfolioTotals `json:"portfolio_summary"`
	IndividualPerformance []Position      `json:"individual_performance"`
	BestPerformer         *Position       `json:"best_performer"`
	WorstPerformer        *Position       `json:"worst_performer"`
}

// GainsLossesSummary totals winners and losers.
type GainsLossesSummary struct {
	TotalUnrealizedGains  float64 `json:"total_unrealized_gains"`
	TotalUnrealizedLosses float64 `json:"total_unrealized_losses"`
	NetUnrealized         float64 `json:"net_unrealized"`
	WinningPositions      int     `json:"winning_positions"`
	LosingPositions       int     `json:"losing_positions"`
	WinRate               float64 `json:"win_rate"`
}

// GainsLossesAnalysis splits holdings into winners and losers.
type GainsLossesAnalysis struct {
	Type          string             `json:"analysis_type"`
	Summary       GainsLossesSummary `json:"summary"`
	Winners       []Position         `json:"winners"`
	Losers        []Position         `json:"losers"`
	BiggestWinner *Position          `json:"biggest_winner"`
	BiggestLoser  *Position          `json:"biggest_loser"`
}

// Allocation is one holding's share of the portfolio.
type Allocation struct {
	Symbol               string  `json:"symbol"`
	Company              string  `json:"company"`
	MarketValue          float64 `json:"market_value"`
	AllocationPercentage float64 `json:"allocation_percentage"`
	Shares               float64 `json:"shares"`
}

// SectorShare is a sector's share of the portfolio.
type SectorShare struct {
	Sector     string  `json:"sector"`
	Percentage float64 `json:"percentage"`
}

// DiversificationMetrics describe how concentrated the portfolio is.
type DiversificationMetrics struct {
	NumberOfPositions         int     `json:"number_of_positions"`
	LargestPositionPercentage float64 `json:"largest_position_percentage"`
	ConcentrationRisk         string  `json:"concentration_risk"`
	Top3Concentration         float64 `json:"top_3_concentration"`
	DiversificationScore      float64 `json:"diversification_score"`
}

// AllocationAnalysis reports allocation, sectors and diversification.
type AllocationAnalysis struct {
	Type                string                 `json:"analysis_type"`
	TotalPortfolioValue float64                `json:"total_portfolio_value"`
	Allocations         []Allocation           `json:"individual_allocations"`
	SectorBreakdown     []SectorShare          `json:"sector_breakdown"`
	Diversification     DiversificationMetrics `json:"diversification_metrics"`
	Recommendations     []string               `json:"recommendations"`
}

// BestWorstAnalysis holds the top and bottom three performers. The two lists
// overlap when there are fewer than six holdings.
type BestWorstAnalysis struct {
	Type              string     `json:"analysis_type"`
	BestPerformers    []Position `json:"best_performers"`
	WorstPerformers   []Position `json:"worst_performers"`
	PerformanceSpread float64    `json:"performance_spread"`
}

// HoldingShare is a top holding with its portfolio share.
type HoldingShare struct {
	Symbol                string  `json:"symbol"`
	Company               string  `json:"company"`
	MarketValue           float64 `json:"market_value"`
	PercentageOfPortfolio float64 `json:"percentage_of_portfolio"`
}

// PortfolioOverview is the summary fallback.
type PortfolioOverview struct {
	Type             string          `json:"analysis_type"`
	Totals           PortfolioTotals `json:"portfolio_overview"`
	WinningPositions int             `json:"winning_positions"`
	LosingPositions  int             `json:"losing_positions"`
	TopHoldings      []HoldingShare  `json:"top_holdings"`
}

// InvestmentModule analyses the holdings list.
type InvestmentModule struct{}

// NewInvestmentModule creates the investment_analyzer module.
func NewInvestmentModule() *InvestmentModule {
	return &InvestmentModule{}
}

func (m *InvestmentModule) Name() string { return InvestmentAnalyzer }

func (m *InvestmentModule) Description() string {
	return "Portfolio performance, gains and losses, allocation and best or worst performers"
}

func (m *InvestmentModule) Run(_ context.Context, st *state.State) error {
	snap := st.Snapshot()
	if !snap.HasHoldings() {
		missing(st, m.Name(), "No investment data available")
		return nil
	}

	holdings := snap.Holdings
	var result any
	switch selectBranch(st.UserQuery, investmentBranches, "summary") {
	case "performance":
		result = portfolioPerformance(holdings)
	case "gains_losses":
		result = gainsLosses(holdings)
	case "allocation":
		result = portfolioAllocation(holdings)
	case "best_worst":
		result = bestWorst(holdings)
	default:
		result = portfolioOverview(holdings)
	}
	store(st, m.Name(), result)
	return nil
}

// byReturn returns the holdings sorted by percentage change, highest first.
func byReturn(holdings []domain.Holding) []domain.Holding {
	sorted := make([]domain.Holding, len(holdings))
	copy(sorted, holdings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PercentageChange > sorted[j].PercentageChange
	})
	return sorted
}

func positions(holdings []domain.Holding) []Position {
	out := make([]Position, len(holdings))
	for i, h := range holdings {
		out[i] = newPosition(h)
	}
	return out
}

func portfolioPerformance(holdings []domain.Holding) PerformanceAnalysis {
	ranked := positions(byReturn(holdings))
	res := PerformanceAnalysis{
		Type:                  "Portfolio Performance",
		Summary:               portfolioTotals(holdings),
		IndividualPerformance: ranked,
	}
	if len(ranked) > 0 {
		best, worst := ranked[0], ranked[len(ranked)-1]
		res.BestPerformer, res.WorstPerformer = &best, &worst
	}
	return res
}

func gainsLosses(holdings []domain.Holding) GainsLossesAnalysis {
	var winners, losers []Position
	var gains, losses float64
	for _, h := range holdings {
		p := newPosition(h)
		if h.UnrealizedGainLoss >= 0 {
			winners = append(winners, p)
			gains += h.UnrealizedGainLoss
		} else {
			losers = append(losers, p)
			losses -= h.UnrealizedGainLoss
		}
	}
	sort.SliceStable(winners, func(i, j int) bool { return winners[i].GainLoss > winners[j].GainLoss })
	sort.SliceStable(losers, func(i, j int) bool { return losers[i].GainLoss < losers[j].GainLoss })

	res := GainsLossesAnalysis{
		Type: "Gains & Losses",
		Summary: GainsLossesSummary{
			TotalUnrealizedGains:  money.Round2(gains),
			TotalUnrealizedLosses: money.Round2(losses),
			NetUnrealized:         money.Round2(gains - losses),
			WinningPositions:      len(winners),
			LosingPositions:       len(losers),
			WinRate:               money.Round1(money.Percent(float64(len(winners)), float64(len(holdings)))),
		},
		Winners: winners,
		Losers:  losers,
	}
	if len(winners) > 0 {
		w := winners[0]
		res.BiggestWinner = &w
	}
	if len(losers) > 0 {
		l := losers[0]
		res.BiggestLoser = &l
	}
	return res
}

func portfolioAllocation(holdings []domain.Holding) AllocationAnalysis {
	total := domain.TotalMarketValue(holdings)

	allocs := make([]Allocation, 0, len(holdings))
	for _, h := range holdings {
		allocs = append(allocs, Allocation{
			Symbol:               h.Symbol,
			Company:              h.Company,
			MarketValue:          money.Round2(h.MarketValue),
			AllocationPercentage: money.Round2(money.Percent(h.MarketValue, total)),
			Shares:               h.Shares,
		})
	}
	sort.SliceStable(allocs, func(i, j int) bool {
		return allocs[i].AllocationPercentage > allocs[j].AllocationPercentage
	})

	sectorTotals := make(map[string]float64)
	var largest, top3, tech float64
	for i, a := range allocs {
		sector, ok := sectors[a.Symbol]
		if !ok {
			sector = "Other"
		}
		sectorTotals[sector] += a.AllocationPercentage
		if i < 3 {
			top3 += a.AllocationPercentage
		}
		if techSymbols[a.Symbol] {
			tech += a.AllocationPercentage
		}
		largest = max(largest, a.AllocationPercentage)
	}

	var sectorShares []SectorShare
	for _, name := range metrics.SortedKeys(sectorTotals) {
		sectorShares = append(sectorShares, SectorShare{Sector: name, Percentage: money.Round2(sectorTotals[name])})
	}

	return AllocationAnalysis{
		Type:                "Portfolio Allocation",
		TotalPortfolioValue: money.Round2(total),
		Allocations:         allocs,
		SectorBreakdown:     sectorShares,
		Diversification: DiversificationMetrics{
			NumberOfPositions:         len(allocs),
			LargestPositionPercentage: money.Round2(largest),
			ConcentrationRisk:         concentrationLabel(largest),
			Top3Concentration:         money.Round2(top3),
			DiversificationScore:      scoring.Diversification(holdings),
		},
		Recommendations: allocationRecommendations(len(allocs), largest, tech),
	}
}

func concentrationLabel(largestPct float64) string {
	switch {
	case largestPct > 25:
		return "High"
	case largestPct > 15:
		return "Medium"
	default:
		return "Low"
	}
}

func allocationRecommendations(positions int, largestPct, techPct float64) []string {
	var recs []string
	if largestPct > 25 {
		recs = append(recs, fmt.Sprintf("Your largest position represents %.1f%% of your portfolio. Consider reducing concentration risk by diversifying.", largestPct))
	}
	if positions < 5 {
		recs = append(recs, "Consider adding more positions to improve diversification.")
	}
	if techPct > 50 {
		recs = append(recs, fmt.Sprintf("You have %.1f%% in technology stocks. Consider diversifying across other sectors.", techPct))
	}
	if len(recs) == 0 {
		recs = append(recs, "Your portfolio allocation looks well balanced.")
	}
	return recs
}

func bestWorst(holdings []domain.Holding) BestWorstAnalysis {
	ranked := byReturn(holdings)
	n := min(3, len(ranked))

	res := BestWorstAnalysis{
		Type:            "Best & Worst Performers",
		BestPerformers:  positions(ranked[:n]),
		WorstPerformers: positions(ranked[len(ranked)-n:]),
	}
	if len(ranked) > 0 {
		res.PerformanceSpread = money.Round2(ranked[0].PercentageChange - ranked[len(ranked)-1].PercentageChange)
	}
	return res
}

func portfolioOverview(holdings []domain.Holding) PortfolioOverview {
	total := domain.TotalMarketValue(holdings)
	winning := 0
	for _, h := range holdings {
		if h.UnrealizedGainLoss >= 0 {
			winning++
		}
	}

	byValue := make([]domain.Holding, len(holdings))
	copy(byValue, holdings)
	sort.SliceStable(byValue, func(i, j int) bool { return byValue[i].MarketValue > byValue[j].MarketValue })
	if len(byValue) > 3 {
		byValue = byValue[:3]
	}
	top := make([]HoldingShare, 0, len(byValue))
	for _, h := range byValue {
		top = append(top, HoldingShare{
			Symbol:                h.Symbol,
			Company:               h.Company,
			MarketValue:           money.Round2(h.MarketValue),
			PercentageOfPortfolio: money.Round2(money.Percent(h.MarketValue, total)),
		})
	}

	return PortfolioOverview{
		Type:             "Portfolio Summary",
		Totals:           portfolioTotals(holdings),
		WinningPositions: winning,
		LosingPositions:  len(holdings) - winning,
		TopHoldings:      top,
	}
}
