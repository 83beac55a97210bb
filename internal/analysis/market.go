package analysis

import (
	"context"
	"math/rand"
	"sync"

	"github.com/dvloznov/finance-agent/internal/money"
	"github.com/dvloznov/finance-agent/internal/state"
)

// Index is a quoted market index.
type Index struct {
	Name          string  `json:"name"`
	Current       float64 `json:"current"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Trend         string  `json:"trend"`
}

// MarketOverview is the headline market state.
type MarketOverview struct {
	MajorIndices    []Index `json:"major_indices"`
	MarketStatus    string  `json:"market_status"`
	VolatilityIndex float64 `json:"volatility_index"`
	MarketMood      string  `json:"market_mood"`
}

// SectorPerformance is one sector's simulated returns.
type SectorPerformance struct {
	Sector     string   `json:"sector"`
	Day        float64  `json:"performance_1d"`
	Week       float64  `json:"performance_1w"`
	Month      float64  `json:"performance_1m"`
	Outlook    string   `json:"outlook"`
	KeyDrivers []string `json:"key_drivers"`
}

// Indicator is one economic indicator reading.
type Indicator struct {
	Name    string  `json:"name"`
	Current float64 `json:"current"`
	Target  float64 `json:"target,omitempty"`
	Change  float64 `json:"change,omitempty"`
	Trend   string  `json:"trend,omitempty"`
	Note    string  `json:"note,omitempty"`
}

// Sentiment summarises investor mood.
type Sentiment struct {
	Overall         string         `json:"overall_sentiment"`
	FearGreedIndex  int            `json:"fear_greed_index"`
	VolatilityTrend string         `json:"volatility_trend"`
	Positioning     map[string]int `json:"investor_positioning"`
	Drivers         []string       `json:"sentiment_drivers"`
	Themes          []string       `json:"market_themes"`
}

// Opportunity is an investment theme.
type Opportunity struct {
	Category         string   `json:"category"`
	Theme            string   `json:"theme"`
	Description      string   `json:"description"`
	RiskLevel        string   `json:"risk_level"`
	TimeHorizon      string   `json:"time_horizon"`
	KeyBeneficiaries []string `json:"key_beneficiaries"`
}

// MarketAlert is a market-wide risk warning.
type MarketAlert struct {
	Type            string   `json:"type"`
	Severity        string   `json:"severity"`
	Description     string   `json:"description"`
	AffectedSectors []string `json:"affected_sectors"`
	Timeframe       string   `json:"timeframe"`
}

// Outlook is a forecast for one horizon.
type Outlook struct {
	Timeframe          string   `json:"timeframe"`
	Direction          string   `json:"direction"`
	KeyFactors         []string `json:"key_factors"`
	ExpectedVolatility string   `json:"expected_volatility"`
}

// Scenario is a weighted forecast case.
type Scenario struct {
	Name         string  `json:"name"`
	Probability  float64 `json:"probability"`
	Description  string  `json:"description"`
	MarketImpact string  `json:"market_impact"`
}

// Forecast is the market forecast section.
type Forecast struct {
	ShortTerm   Outlook           `json:"short_term_outlook"`
	MediumTerm  Outlook           `json:"medium_term_outlook"`
	Scenarios   []Scenario        `json:"key_scenarios"`
	Preferences map[string]string `json:"asset_class_preferences"`
}

// MarketReport is the market intelligence result.
type MarketReport struct {
	Focus         string              `json:"focus"`
	Overview      MarketOverview      `json:"market_overview"`
	Sectors       []SectorPerformance `json:"sector_analysis"`
	Indicators    []Indicator         `json:"economic_indicators"`
	Sentiment     Sentiment           `json:"market_sentiment"`
	Opportunities []Opportunity       `json:"investment_opportunities"`
	RiskAlerts    []MarketAlert       `json:"risk_alerts"`
	Forecast      Forecast            `json:"market_forecast"`
}

var marketFocus = []branch{
	{"sectors", []string{"sector", "industry", "industries"}},
	{"indices", []string{"index", "indices", "s&p", "nasdaq", "dow"}},
	{"economic", []string{"economic", "economy", "inflation", "gdp", "fed", "rate"}},
	{"sentiment", []string{"sentiment", "mood", "fear", "greed"}},
	{"forecast", []string{"forecast", "outlook", "predict", "future"}},
}

var sectorDrivers = []struct {
	name    string
	drivers []string
}{
	{"Technology", []string{"AI adoption", "Cloud migration", "Semiconductor demand"}},
	{"Healthcare", []string{"Aging population", "Drug approvals", "Healthcare spending"}},
	{"Financial Services", []string{"Interest rates", "Credit demand", "Regulation"}},
	{"Energy", []string{"Oil prices", "Renewable transition", "Geopolitical events"}},
	{"Consumer Discretionary", []string{"Consumer confidence", "Employment", "Inflation"}},
	{"Industrials", []string{"Manufacturing activity", "Infrastructure spending", "Trade"}},
	{"Real Estate", []string{"Interest rates", "Housing demand", "Commercial occupancy"}},
	{"Utilities", []string{"Energy transition", "Interest rates", "Regulatory environment"}},
}

// MarketModule produces simulated market intelligence.
type MarketModule struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewMarketModule creates the market_intelligence module. The module draws
// sector moves from opts.Rand.
func NewMarketModule(opts Options) *MarketModule {
	return &MarketModule{rng: opts.withDefaults().Rand}
}

func (m *MarketModule) Name() string { return MarketIntelligence }

func (m *MarketModule) Description() string {
	return "Simulated market overview, sectors, indicators, sentiment and forecast"
}

func (m *MarketModule) Run(_ context.Context, st *state.State) error {
	r := m.Report()
	r.Focus = selectBranch(st.UserQuery, marketFocus, "overview")
	store(st, m.Name(), r)
	return nil
}

// Report builds a full report with the overview focus. Safe for concurrent use.
func (m *MarketModule) Report() MarketReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return BuildMarketReport(m.rng)
}

// BuildMarketReport assembles the synthetic report, drawing each sector's
// daily move from rng.
func BuildMarketReport(rng *rand.Rand) MarketReport {
	return MarketReport{
		Focus:         "overview",
		Overview:      marketOverview(),
		Sectors:       sectorAnalysis(rng),
		Indicators:    economicIndicators(),
		Sentiment:     marketSentiment(),
		Opportunities: opportunities(),
		RiskAlerts:    marketAlerts(),
		Forecast:      marketForecast(),
	}
}

func marketOverview() MarketOverview {
	return MarketOverview{
		MajorIndices: []Index{
			{Name: "S&P 500", Current: 4521.30, Change: 25.40, ChangePercent: 0.56, Trend: "bullish"},
			{Name: "NASDAQ", Current: 14823.12, Change: -12.85, ChangePercent: -0.09, Trend: "neutral"},
			{Name: "DOW", Current: 35467.89, Change: 156.23, ChangePercent: 0.44, Trend: "bullish"},
			{Name: "VIX", Current: 18.45, Change: -0.62, ChangePercent: -3.25, Trend: "declining"},
		},
		MarketStatus:    "OPEN",
		VolatilityIndex: 18.45,
		MarketMood:      "cautiously optimistic",
	}
}

func sectorAnalysis(rng *rand.Rand) []SectorPerformance {
	out := make([]SectorPerformance, 0, len(sectorDrivers))
	for _, s := range sectorDrivers {
		change := -3 + rng.Float64()*7
		outlook := "negative"
		if change > 0 {
			outlook = "positive"
		}
		out = append(out, SectorPerformance{
			Sector:     s.name,
			Day:        money.Round2(change),
			Week:       money.Round2(change * 3.2),
			Month:      money.Round2(change * 8.5),
			Outlook:    outlook,
			KeyDrivers: s.drivers,
		})
	}
	return out
}

func economicIndicators() []Indicator {
	return []Indicator{
		{Name: "gdp_growth", Current: 2.4, Trend: "stable", Note: "forecast 2.1"},
		{Name: "inflation_rate", Current: 3.2, Target: 2.0, Trend: "declining"},
		{Name: "unemployment", Current: 3.8, Change: -0.1, Trend: "improving"},
		{Name: "fed_funds_rate", Current: 5.25, Note: "no change expected at next meeting"},
		{Name: "consumer_confidence", Current: 102.3, Change: 2.1, Trend: "improving"},
	}
}

func marketSentiment() Sentiment {
	return Sentiment{
		Overall:         "Neutral to Positive",
		FearGreedIndex:  58,
		VolatilityTrend: "decreasing",
		Positioning:     map[string]int{"bullish": 42, "neutral": 38, "bearish": 20},
		Drivers: []string{
			"Economic resilience",
			"Corporate earnings stability",
			"Geopolitical uncertainty",
			"Monetary policy expectations",
		},
		Themes: []string{
			"AI and Technology Innovation",
			"Energy Transition",
			"Infrastructure Investment",
			"Healthcare Innovation",
		},
	}
}

func opportunities() []Opportunity {
	return []Opportunity{
		{
			Category:         "Technology",
			Theme:            "Artificial Intelligence",
			Description:      "AI adoption accelerating across industries",
			RiskLevel:        "Medium-High",
			TimeHorizon:      "1-3 years",
			KeyBeneficiaries: []string{"Cloud providers", "Semiconductor companies", "AI software"},
		},
		{
			Category:         "Healthcare",
			Theme:            "Aging Demographics",
			Description:      "Growing healthcare needs from aging population",
			RiskLevel:        "Medium",
			TimeHorizon:      "3-5 years",
			KeyBeneficiaries: []string{"Medical devices", "Pharmaceuticals", "Healthcare services"},
		},
		{
			Category:         "Energy",
			Theme:            "Renewable Transition",
			Description:      "Shift toward clean energy accelerating",
			RiskLevel:        "Medium-High",
			TimeHorizon:      "2-5 years",
			KeyBeneficiaries: []string{"Solar/wind", "Battery storage", "Grid infrastructure"},
		},
		{
			Category:         "Infrastructure",
			Theme:            "Digital Infrastructure",
			Description:      "5G, data centers and connectivity expansion",
			RiskLevel:        "Medium",
			TimeHorizon:      "2-4 years",
			KeyBeneficiaries: []string{"Data centers", "Telecom", "Infrastructure REITs"},
		},
	}
}

func marketAlerts() []MarketAlert {
	return []MarketAlert{
		{
			Type:            "Geopolitical Risk",
			Severity:        "Medium",
			Description:     "Ongoing geopolitical tensions may impact global trade",
			AffectedSectors: []string{"Energy", "Technology", "Materials"},
			Timeframe:       "Near-term",
		},
		{
			Type:            "Interest Rate Risk",
			Severity:        "Low-Medium",
			Description:     "Potential policy changes could affect rate-sensitive sectors",
			AffectedSectors: []string{"Real Estate", "Utilities", "Financial Services"},
			Timeframe:       "3-6 months",
		},
		{
			Type:            "Inflation Risk",
			Severity:        "Low",
			Description:     "Inflation trending down but remains above target",
			AffectedSectors: []string{"Consumer goods", "Energy", "Materials"},
			Timeframe:       "6-12 months",
		},
	}
}

func marketForecast() Forecast {
	return Forecast{
		ShortTerm: Outlook{
			Timeframe:          "1-3 months",
			Direction:          "Neutral to Positive",
			KeyFactors:         []string{"Corporate earnings season", "Economic data releases", "Central bank communications"},
			ExpectedVolatility: "Moderate",
		},
		MediumTerm: Outlook{
			Timeframe:          "3-12 months",
			Direction:          "Cautiously Optimistic",
			KeyFactors:         []string{"Economic resilience", "Technology innovation", "Policy normalization"},
			ExpectedVolatility: "Moderate to Low",
		},
		Scenarios: []Scenario{
			{Name: "Base Case", Probability: 60, Description: "Continued economic growth with manageable inflation", MarketImpact: "Positive for risk assets"},
			{Name: "Bull Case", Probability: 25, Description: "Stronger growth and rapid productivity gains from AI", MarketImpact: "Strong performance, led by technology"},
			{Name: "Bear Case", Probability: 15, Description: "Economic slowdown or geopolitical shock", MarketImpact: "Flight to quality, defensive sectors outperform"},
		},
		Preferences: map[string]string{
			"equities":     "Overweight",
			"bonds":        "Neutral",
			"commodities":  "Underweight",
			"cash":         "Underweight",
			"alternatives": "Neutral",
		},
	}
}
