package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/metrics"
	"github.com/dvloznov/finance-agent/internal/money"
	"github.com/dvloznov/finance-agent/internal/scoring"
	"github.com/dvloznov/finance-agent/internal/state"
)

// CategoryTrend compares a category's spend with the previous month.
type CategoryTrend struct {
	Category      string  `json:"category"`
	CurrentMonth  float64 `json:"current_month"`
	LastMonth     float64 `json:"last_month"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
}

// SpendingInsights describe spending patterns across the transaction history.
type SpendingInsights struct {
	MonthlyTrend         []metrics.Amount `json:"monthly_trend"`
	CategoryTrends       []CategoryTrend  `json:"category_trends"`
	TopMerchants         []metrics.Amount `json:"top_merchants"`
	UnusualSpendingDays  []DayAmount      `json:"unusual_spending_days"`
	AverageDailySpending float64          `json:"average_daily_spending"`
	SpendingVolatility   float64          `json:"spending_volatility"`
}

// PerformanceBuckets count holdings by return band.
type PerformanceBuckets struct {
	StrongGains   int `json:"strong_gains"`
	ModerateGains int `json:"moderate_gains"`
	SmallGains    int `json:"small_gains"`
	Losses        int `json:"losses"`
}

// PortfolioRisk labels portfolio volatility and diversification.
type PortfolioRisk struct {
	Volatility         string  `json:"volatility_score"`
	Diversification    string  `json:"diversification_score"`
	LargestPositionPct float64 `json:"largest_position_pct"`
}

// InvestmentInsights summarise the portfolio.
type InvestmentInsights struct {
	PortfolioValue          float64            `json:"portfolio_value"`
	TotalReturn             float64            `json:"total_return"`
	ReturnPercentage        float64            `json:"return_percentage"`
	PerformanceDistribution PerformanceBuckets `json:"performance_distribution"`
	RiskMetrics             PortfolioRisk      `json:"risk_metrics"`
}

// GoalInsights summarise active goals.
type GoalInsights struct {
	TotalGoals           int     `json:"total_goals"`
	OverallProgressPct   float64 `json:"overall_progress_pct"`
	AmountSaved          float64 `json:"amount_saved"`
	AmountRemaining      float64 `json:"amount_remaining"`
	GoalsOnTrack         int     `json:"goals_on_track"`
	GoalsWithDeadlines   int     `json:"goals_with_deadlines"`
	HighPriorityProgress float64 `json:"high_priority_progress"`
	MonthlySavingsRate   float64 `json:"monthly_savings_rate"`
}

// MonthTrend is one month of the budget trend.
type MonthTrend struct {
	Month                string  `json:"month"`
	TotalSpent           float64 `json:"total_spent"`
	TotalBudgeted        float64 `json:"total_budgeted"`
	SavingsRate          float64 `json:"savings_rate"`
	CategoriesOverBudget int     `json:"categories_over_budget"`
}

// BudgetInsights compare the most recent budget months.
type BudgetInsights struct {
	MonthlyTrends  []MonthTrend `json:"monthly_trends"`
	SpendingTrend  float64      `json:"spending_trend"`
	SavingsTrend   float64      `json:"savings_trend"`
	TrendDirection string       `json:"trend_direction"`
}

// ExecutiveSummary highlights the strongest signals.
type ExecutiveSummary struct {
	HealthRating string             `json:"financial_health_rating"`
	KeyMetrics   map[string]float64 `json:"key_metrics"`
	Highlights   []string           `json:"highlights"`
	Concerns     []string           `json:"concerns"`
}

// Alert is a notable condition worth surfacing.
type Alert struct {
	Type     string `json:"type"`
	Category string `json:"category"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// InsightsReport is the comprehensive insights result. Sections for absent
// data are nil.
type InsightsReport struct {
	Type            string              `json:"analysis_type"`
	GeneratedAt     string              `json:"generated_at"`
	Summary         ExecutiveSummary    `json:"summary"`
	Spending        *SpendingInsights   `json:"spending_insights,omitempty"`
	Investments     *InvestmentInsights `json:"investment_insights,omitempty"`
	Goals           *GoalInsights       `json:"goal_insights,omitempty"`
	Budget          *BudgetInsights     `json:"budget_insights,omitempty"`
	HealthScore     scoring.HealthScore `json:"financial_health_score"`
	Recommendations []string            `json:"recommendations"`
	Alerts          []Alert             `json:"alerts"`
}

// InsightsModule combines every data source into one report.
type InsightsModule struct {
	clock func() time.Time
}

// NewInsightsModule creates the financial_insights module.
func NewInsightsModule(opts Options) *InsightsModule {
	return &InsightsModule{clock: opts.withDefaults().Clock}
}

func (m *InsightsModule) Name() string { return FinancialInsights }

func (m *InsightsModule) Description() string {
	return "Comprehensive insights, health score, recommendations and alerts across all data"
}

func (m *InsightsModule) Run(_ context.Context, st *state.State) error {
	store(st, m.Name(), BuildInsights(st.Snapshot(), m.clock()))
	return nil
}

// BuildInsights produces the insights report for snap as of now.
func BuildInsights(snap *domain.Snapshot, now time.Time) InsightsReport {
	r := InsightsReport{
		Type:        "Comprehensive Financial Insights",
		GeneratedAt: now.Format(time.RFC3339),
		HealthScore: scoring.HealthFromSnapshot(snap, currentMonth(now), metrics.PlannerLiquidFraction),
		Alerts:      []Alert{},
	}
	if snap.HasTransactions() {
		s := spendingInsights(snap.Transactions, now)
		r.Spending = &s
	}
	if snap.HasHoldings() {
		i := investmentInsights(snap.Holdings)
		r.Investments = &i
	}
	if snap.HasGoals() {
		g := goalInsights(snap.Goals, now)
		r.Goals = &g
	}
	if snap.HasBudget() {
		b := budgetInsights(snap.Budget)
		r.Budget = &b
	}

	r.Summary = executiveSummary(r)
	r.Recommendations = insightRecommendations(r)
	r.Alerts = append(r.Alerts, alerts(snap, now)...)
	return r
}

func spendingInsights(txs []domain.Transaction, now time.Time) SpendingInsights {
	monthly := metrics.MonthlyExpenses(txs)
	months := metrics.SortedKeys(monthly)
	if len(months) > 6 {
		months = months[len(months)-6:]
	}
	trend := make([]metrics.Amount, 0, len(months))
	for _, mo := range months {
		trend = append(trend, metrics.Amount{Name: mo, Amount: money.Round2(monthly[mo])})
	}

	current := metrics.InMonth(txs, currentMonth(now))
	last := metrics.InMonth(txs, previousMonth(now))
	currentByCat := metrics.ExpensesBy(current, metrics.ByCategory)
	lastByCat := metrics.ExpensesBy(last, metrics.ByCategory)

	var trends []CategoryTrend
	for _, cat := range metrics.SortedKeys(currentByCat) {
		cur, prev := currentByCat[cat], lastByCat[cat]
		change := cur - prev
		ct := CategoryTrend{
			Category:     cat,
			CurrentMonth: money.Round2(cur),
			LastMonth:    money.Round2(prev),
			Change:       money.Round2(change),
		}
		if prev > 0 {
			ct.ChangePercent = money.Round1(change / prev * 100)
		}
		trends = append(trends, ct)
	}

	daily := metrics.DailyExpenses(txs)
	values := metrics.Values(daily)
	mean := metrics.Mean(values)
	std := metrics.StdDev(values)
	threshold := mean + 2*std

	unusual := []DayAmount{}
	for _, day := range metrics.SortedKeys(daily) {
		if daily[day] > threshold {
			unusual = append(unusual, DayAmount{Date: day, Amount: money.Round2(daily[day])})
		}
	}

	return SpendingInsights{
		MonthlyTrend:         trend,
		CategoryTrends:       trends,
		TopMerchants:         rounded(metrics.Ranked(metrics.ExpensesBy(current, metrics.ByMerchant), 5)),
		UnusualSpendingDays:  unusual,
		AverageDailySpending: money.Round2(mean),
		SpendingVolatility:   money.Round2(std),
	}
}

func investmentInsights(holdings []domain.Holding) InvestmentInsights {
	value := domain.TotalMarketValue(holdings)
	cost := domain.TotalCostBasis(holdings)
	var gain float64
	var buckets PerformanceBuckets
	lo, hi := holdings[0].PercentageChange, holdings[0].PercentageChange
	for _, h := range holdings {
		gain += h.UnrealizedGainLoss
		switch pct := h.PercentageChange; {
		case pct > 10:
			buckets.StrongGains++
		case pct > 5:
			buckets.ModerateGains++
		case pct > 0:
			buckets.SmallGains++
		default:
			buckets.Losses++
		}
		lo = min(lo, h.PercentageChange)
		hi = max(hi, h.PercentageChange)
	}

	res := InvestmentInsights{
		PortfolioValue:          money.Round2(value),
		TotalReturn:             money.Round2(gain),
		PerformanceDistribution: buckets,
		RiskMetrics: PortfolioRisk{
			Volatility:         volatilityLabel(hi - lo),
			Diversification:    diversificationLabel(len(holdings)),
			LargestPositionPct: money.Round2(metrics.ConcentrationRisk(holdings) * 100),
		},
	}
	if cost > 0 {
		res.ReturnPercentage = money.Round2(gain / cost * 100)
	}
	return res
}

func volatilityLabel(returnRange float64) string {
	switch {
	case returnRange < 5:
		return "Low"
	case returnRange < 15:
		return "Medium"
	default:
		return "High"
	}
}

func diversificationLabel(n int) string {
	switch {
	case n < 3:
		return "Poor"
	case n < 6:
		return "Fair"
	case n < 10:
		return "Good"
	default:
		return "Excellent"
	}
}

func goalInsights(goals []domain.Goal, now time.Time) GoalInsights {
	var res GoalInsights
	var target, saved, hpTarget, hpSaved float64
	for _, g := range goals {
		if !g.IsActive() {
			continue
		}
		res.TotalGoals++
		target += g.TargetAmount
		saved += g.CurrentAmount
		res.MonthlySavingsRate += g.MonthlyContribution
		if g.Priority == "high" {
			hpTarget += g.TargetAmount
			hpSaved += g.CurrentAmount
		}

		deadline, ok := g.DeadlineTime()
		if !ok {
			continue
		}
		res.GoalsWithDeadlines++
		months := float64(daysUntil(deadline, now)) / 30
		if months > 0 && g.MonthlyContribution >= g.Remaining()/months {
			res.GoalsOnTrack++
		}
	}
	res.OverallProgressPct = money.Round1(money.Percent(saved, target))
	res.AmountSaved = money.Round2(saved)
	res.AmountRemaining = money.Round2(target - saved)
	res.HighPriorityProgress = money.Round1(money.Percent(hpSaved, hpTarget))
	res.MonthlySavingsRate = money.Round2(res.MonthlySavingsRate)
	return res
}

func budgetInsights(b *domain.Budget) BudgetInsights {
	recent := b.RecentMonths(3)
	res := BudgetInsights{MonthlyTrends: make([]MonthTrend, 0, len(recent))}
	for _, key := range recent {
		mb, _ := b.Month(key)
		over := 0
		for _, c := range mb.Categories {
			if c.Remaining < 0 {
				over++
			}
		}
		res.MonthlyTrends = append(res.MonthlyTrends, MonthTrend{
			Month:                key,
			TotalSpent:           money.Round2(mb.TotalSpent),
			TotalBudgeted:        money.Round2(mb.TotalBudgeted),
			SavingsRate:          mb.SavingsRate,
			CategoriesOverBudget: over,
		})
	}

	if len(res.MonthlyTrends) >= 2 {
		cur, prev := res.MonthlyTrends[0], res.MonthlyTrends[1]
		res.SpendingTrend = money.Round2(cur.TotalSpent - prev.TotalSpent)
		res.SavingsTrend = money.Round2(cur.SavingsRate - prev.SavingsRate)
	}
	switch {
	case res.SavingsTrend > 0:
		res.TrendDirection = "improving"
	case res.SavingsTrend < 0:
		res.TrendDirection = "declining"
	default:
		res.TrendDirection = "stable"
	}
	return res
}

func executiveSummary(r InsightsReport) ExecutiveSummary {
	s := ExecutiveSummary{
		HealthRating: r.HealthScore.Rating,
		KeyMetrics:   map[string]float64{},
		Highlights:   []string{},
		Concerns:     []string{},
	}
	if r.Spending != nil {
		s.KeyMetrics["average_daily_spending"] = r.Spending.AverageDailySpending
	}
	if r.Goals != nil {
		s.KeyMetrics["goal_progress"] = r.Goals.OverallProgressPct
	}
	if r.HealthScore.Total >= 80 {
		s.Highlights = append(s.Highlights, "Strong overall financial health")
	}
	if r.Investments != nil {
		ret := r.Investments.ReturnPercentage
		s.KeyMetrics["portfolio_return"] = ret
		switch {
		case ret > 5:
			s.Highlights = append(s.Highlights, fmt.Sprintf("Portfolio performing well with %.1f%% returns", ret))
		case ret < -5:
			s.Concerns = append(s.Concerns, fmt.Sprintf("Portfolio showing negative returns of %.1f%%", ret))
		}
	}
	return s
}

func insightRecommendations(r InsightsReport) []string {
	var recs []string
	if r.Budget != nil && r.Budget.TrendDirection == "declining" {
		recs = append(recs, "Consider reviewing your budget, spending has been increasing recently")
	}
	if r.Investments != nil {
		if d := r.Investments.RiskMetrics.Diversification; d == "Poor" || d == "Fair" {
			recs = append(recs, "Consider diversifying your investment portfolio across more assets")
		}
	}
	if r.Goals != nil && r.Goals.OverallProgressPct < 50 {
		recs = append(recs, "Focus on increasing contributions to your financial goals")
	}
	if r.HealthScore.Total < 70 {
		recs = append(recs, "Consider meeting with a financial advisor to improve your financial health")
	}
	if len(recs) == 0 {
		recs = []string{"Keep up the good work with your financial management!"}
	}
	return recs
}

func alerts(snap *domain.Snapshot, now time.Time) []Alert {
	var out []Alert
	if month, ok := snap.Budget.Month(currentMonth(now)); ok {
		for _, c := range month.Sorted() {
			if c.Remaining < 0 {
				out = append(out, Alert{
					Type:     "warning",
					Category: "budget",
					Message:  fmt.Sprintf("Over budget in %s by %s", c.Category, money.Format(-c.Remaining)),
					Severity: "medium",
				})
			}
		}
	}
	for _, g := range snap.Goals {
		deadline, ok := g.DeadlineTime()
		if !ok {
			continue
		}
		if days := daysUntil(deadline, now); days > 0 && days < 30 {
			out = append(out, Alert{
				Type:     "info",
				Category: "goals",
				Message:  fmt.Sprintf("Goal '%s' deadline approaching in %d days", g.Name, days),
				Severity: "low",
			})
		}
	}
	for _, h := range snap.Holdings {
		if h.PercentageChange < -10 {
			out = append(out, Alert{
				Type:     "warning",
				Category: "investments",
				Message:  fmt.Sprintf("%s is down %.1f%%", h.Symbol, -h.PercentageChange),
				Severity: "medium",
			})
		}
	}
	return out
}
