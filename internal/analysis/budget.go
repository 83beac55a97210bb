package analysis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/money"
	"github.com/dvloznov/finance-agent/internal/state"
)

const warningThreshold = 80.0

var budgetBranches = []branch{
	{"overspending", []string{"over", "overspending", "exceeded"}},
	{"remaining", []string{"remaining", "left"}},
	{"performance", []string{"performance", "how am i doing"}},
}

// CategoryStatus is one category line of a budget report.
type CategoryStatus struct {
	Category       string  `json:"category"`
	Budgeted       float64 `json:"budgeted"`
	Spent          float64 `json:"spent"`
	Remaining      float64 `json:"remaining"`
	PercentageUsed float64 `json:"percentage_used"`
	OverBudget     bool    `json:"over_budget"`
}

func newCategoryStatus(c domain.BudgetCategory) CategoryStatus {
	return CategoryStatus{
		Category:       c.Category,
		Budgeted:       money.Round2(c.Budgeted),
		Spent:          money.Round2(c.Spent),
		Remaining:      money.Round2(c.Remaining),
		PercentageUsed: money.Round1(c.PercentageUsed),
		OverBudget:     c.OverBudget(),
	}
}

// Overspend is a category that went over its budget.
type Overspend struct {
	Category        string  `json:"category"`
	Budgeted        float64 `json:"budgeted"`
	Spent           float64 `json:"spent"`
	OverspentAmount float64 `json:"overspent_amount"`
	PercentageOver  float64 `json:"percentage_over"`
}

// OverspendingReport lists overspent categories, worst first.
type OverspendingReport struct {
	Type                 string      `json:"analysis_type"`
	Period               string      `json:"period"`
	OverspentCategories  []Overspend `json:"overspent_categories"`
	TotalOverspent       float64     `json:"total_overspent"`
	CategoriesOverBudget int         `json:"categories_over_budget"`
	WorstCategory        *Overspend  `json:"worst_category"`
	Recommendations      []string    `json:"recommendations"`
}

// RemainingCategory is a category with budget left.
type RemainingCategory struct {
	CategoryStatus
	PercentageRemaining float64 `json:"percentage_remaining"`
}

// RemainingReport lists remaining budget and the daily allowance.
type RemainingReport struct {
	Type                   string              `json:"analysis_type"`
	Period                 string              `json:"period"`
	Categories             []RemainingCategory `json:"categories_with_budget_left"`
	TotalRemaining         float64             `json:"total_remaining"`
	CategoriesCount        int                 `json:"categories_count"`
	HighestRemaining       *RemainingCategory  `json:"highest_remaining"`
	DaysLeftInMonth        int                 `json:"days_left_in_month"`
	DailySpendingAllowance float64             `json:"daily_spending_allowance"`
}

// BudgetTotals are the month-level figures.
type BudgetTotals struct {
	TotalBudgeted  float64 `json:"total_budgeted"`
	TotalSpent     float64 `json:"total_spent"`
	Remaining      float64 `json:"remaining"`
	PercentageUsed float64 `json:"percentage_used"`
}

// PerformanceGroups buckets categories by percentage used.
type PerformanceGroups struct {
	OnTrack    []CategoryStatus `json:"on_track"`
	Warning    []CategoryStatus `json:"warning"`
	OverBudget []CategoryStatus `json:"over_budget"`
}

func (g PerformanceGroups) total() int {
	return len(g.OnTrack) + len(g.Warning) + len(g.OverBudget)
}

// PerformanceReport grades the month.
type PerformanceReport struct {
	Type               string            `json:"analysis_type"`
	Period             string            `json:"period"`
	OverallPerformance BudgetTotals      `json:"overall_performance"`
	Groups             PerformanceGroups `json:"performance_summary"`
	CategoriesOnTrack  int               `json:"categories_on_track"`
	CategoriesWarning  int               `json:"categories_warning"`
	CategoriesOver     int               `json:"categories_over"`
	Score              string            `json:"score"`
	Recommendations    []string          `json:"recommendations"`
}

// StatusCounts counts categories per zone.
type StatusCounts struct {
	TotalCategories int `json:"total_categories"`
	OverBudget      int `json:"over_budget"`
	WarningZone     int `json:"warning_zone"`
	OnTrack         int `json:"on_track"`
}

// StatusReport is the default budget overview.
type StatusReport struct {
	Type                  string           `json:"analysis_type"`
	Period                string           `json:"period"`
	Summary               BudgetTotals     `json:"summary"`
	Categories            []CategoryStatus `json:"categories"`
	CategoryStatus        StatusCounts     `json:"category_status"`
	TopSpendingCategories []CategoryStatus `json:"top_spending_categories"`
	DaysLeftInMonth       int              `json:"days_left_in_month"`
	SavingsRate           float64          `json:"savings_rate"`
}

// BudgetModule reports on the current month's budget.
type BudgetModule struct {
	clock func() time.Time
}

// NewBudgetModule creates the budget_manager module.
func NewBudgetModule(opts Options) *BudgetModule {
	return &BudgetModule{clock: opts.withDefaults().Clock}
}

func (m *BudgetModule) Name() string { return BudgetManager }

func (m *BudgetModule) Description() string {
	return "Budget status, overspending, remaining budget and budget performance"
}

func (m *BudgetModule) Run(_ context.Context, st *state.State) error {
	snap := st.Snapshot()
	if !snap.HasBudget() {
		missing(st, m.Name(), "No budget data available")
		return nil
	}

	now := m.clock()
	period := currentMonth(now)
	month, ok := snap.Budget.Month(period)
	if !ok {
		missing(st, m.Name(), "No budget data for current month")
		return nil
	}

	var result any
	switch selectBranch(st.UserQuery, budgetBranches, "status") {
	case "overspending":
		result = overspending(period, month)
	case "remaining":
		result = remainingBudget(period, month, now)
	case "performance":
		result = budgetPerformance(period, month)
	default:
		result = budgetStatus(period, month, now)
	}
	store(st, m.Name(), result)
	return nil
}

func overspending(period string, month domain.MonthlyBudget) OverspendingReport {
	var over []Overspend
	for _, c := range month.Sorted() {
		if c.Remaining >= 0 {
			continue
		}
		over = append(over, Overspend{
			Category:        c.Category,
			Budgeted:        money.Round2(c.Budgeted),
			Spent:           money.Round2(c.Spent),
			OverspentAmount: money.Round2(-c.Remaining),
			PercentageOver:  money.Round1(c.PercentageUsed - 100),
		})
	}
	sort.SliceStable(over, func(i, j int) bool { return over[i].OverspentAmount > over[j].OverspentAmount })

	var total float64
	for _, o := range over {
		total += o.OverspentAmount
	}

	res := OverspendingReport{
		Type:                 "overspending",
		Period:               period,
		OverspentCategories:  over,
		TotalOverspent:       money.Round2(total),
		CategoriesOverBudget: len(over),
		Recommendations:      []string{"Great job staying within budget!"},
	}
	if len(over) > 0 {
		worst := over[0]
		res.WorstCategory = &worst
		res.Recommendations = []string{
			fmt.Sprintf("Consider reducing %s spending by %s next month", worst.Category, money.Format(worst.OverspentAmount)),
		}
		if len(over) > 1 {
			res.Recommendations = append(res.Recommendations,
				fmt.Sprintf("You're over budget in %d categories. Focus on the top 2 overspenders first.", len(over)))
		}
	}
	return res
}

func remainingBudget(period string, month domain.MonthlyBudget, now time.Time) RemainingReport {
	var left []RemainingCategory
	var total float64
	for _, c := range month.Sorted() {
		if c.Remaining <= 0 {
			continue
		}
		left = append(left, RemainingCategory{
			CategoryStatus:      newCategoryStatus(c),
			PercentageRemaining: money.Round1(money.Percent(c.Remaining, c.Budgeted)),
		})
		total += c.Remaining
	}
	sort.SliceStable(left, func(i, j int) bool { return left[i].Remaining > left[j].Remaining })

	days := daysLeftInMonth(now)
	res := RemainingReport{
		Type:                   "remaining",
		Period:                 period,
		Categories:             left,
		TotalRemaining:         money.Round2(total),
		CategoriesCount:        len(left),
		DaysLeftInMonth:        days,
		DailySpendingAllowance: money.Round2(total / float64(max(days, 1))),
	}
	if len(left) > 0 {
		top := left[0]
		res.HighestRemaining = &top
	}
	return res
}

func budgetPerformance(period string, month domain.MonthlyBudget) PerformanceReport {
	var g PerformanceGroups
	for _, c := range month.Sorted() {
		cs := newCategoryStatus(c)
		switch {
		case c.PercentageUsed > 100:
			g.OverBudget = append(g.OverBudget, cs)
		case c.PercentageUsed >= warningThreshold:
			g.Warning = append(g.Warning, cs)
		default:
			g.OnTrack = append(g.OnTrack, cs)
		}
	}

	return PerformanceReport{
		Type:               "performance",
		Period:             period,
		OverallPerformance: budgetTotals(month),
		Groups:             g,
		CategoriesOnTrack:  len(g.OnTrack),
		CategoriesWarning:  len(g.Warning),
		CategoriesOver:     len(g.OverBudget),
		Score:              budgetGrade(g),
		Recommendations:    performanceRecommendations(g),
	}
}

func budgetStatus(period string, month domain.MonthlyBudget, now time.Time) StatusReport {
	cats := month.Sorted()
	statuses := make([]CategoryStatus, 0, len(cats))
	counts := StatusCounts{TotalCategories: len(cats)}
	for _, c := range cats {
		statuses = append(statuses, newCategoryStatus(c))
		switch {
		case c.Remaining < 0:
			counts.OverBudget++
		case c.PercentageUsed >= warningThreshold && c.PercentageUsed <= 100:
			counts.WarningZone++
		}
	}
	counts.OnTrack = counts.TotalCategories - counts.OverBudget - counts.WarningZone

	top := make([]CategoryStatus, len(statuses))
	copy(top, statuses)
	sort.SliceStable(top, func(i, j int) bool { return top[i].Spent > top[j].Spent })
	if len(top) > 3 {
		top = top[:3]
	}

	return StatusReport{
		Type:                  "status",
		Period:                period,
		Summary:               budgetTotals(month),
		Categories:            statuses,
		CategoryStatus:        counts,
		TopSpendingCategories: top,
		DaysLeftInMonth:       daysLeftInMonth(now),
		SavingsRate:           month.SavingsRate,
	}
}

func budgetTotals(month domain.MonthlyBudget) BudgetTotals {
	return BudgetTotals{
		TotalBudgeted:  money.Round2(month.TotalBudgeted),
		TotalSpent:     money.Round2(month.TotalSpent),
		Remaining:      money.Round2(month.TotalBudgeted - month.TotalSpent),
		PercentageUsed: money.Round1(money.Percent(month.TotalSpent, month.TotalBudgeted)),
	}
}

func budgetGrade(g PerformanceGroups) string {
	total := g.total()
	if total == 0 {
		return "No Data"
	}
	onTrack := float64(len(g.OnTrack)) / float64(total)
	over := float64(len(g.OverBudget)) / float64(total)
	switch {
	case over > 0.3:
		return "Needs Improvement"
	case over > 0.1:
		return "Fair"
	case onTrack > 0.7:
		return "Excellent"
	default:
		return "Good"
	}
}

func performanceRecommendations(g PerformanceGroups) []string {
	var recs []string
	if n := len(g.OverBudget); n > 0 {
		recs = append(recs, fmt.Sprintf("You have %d categories over budget. Consider adjusting spending or reallocating budget.", n))
	}
	if n := len(g.Warning); n > 0 {
		recs = append(recs, fmt.Sprintf("%d categories are in the warning zone. Monitor these closely for the rest of the month.", n))
	}
	if g.total() > 0 && len(g.OnTrack) == g.total() {
		recs = append(recs, "Excellent budget management! Keep up the great work.")
	}
	if len(recs) == 0 {
		recs = []string{"Keep monitoring your spending patterns."}
	}
	return recs
}

// daysLeftInMonth counts whole days from now to the first of next month.
func daysLeftInMonth(now time.Time) int {
	next := time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, now.Location())
	return int(next.Sub(now).Hours() / 24)
}
