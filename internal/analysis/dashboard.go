package analysis

import (
	"fmt"
	"sort"
	"time"

	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/metrics"
	"github.com/dvloznov/finance-agent/internal/money"
	"github.com/dvloznov/finance-agent/internal/scoring"
)

// DefaultTimeframe is used when no timeframe is requested.
const DefaultTimeframe = "30d"

// timeframes maps a dashboard timeframe to its length in days.
var timeframes = map[string]int{
	"7d":  7,
	"30d": 30,
	"90d": 90,
	"1y":  365,
}

const (
	recentTransactionCount  = 5
	unbudgetedCategoryLimit = 3
	targetSavingsRate       = 20.0
)

// TimeframeDays returns the window length for timeframe. An empty timeframe
// means DefaultTimeframe.
func TimeframeDays(timeframe string) (int, bool) {
	if timeframe == "" {
		timeframe = DefaultTimeframe
	}
	days, ok := timeframes[timeframe]
	return days, ok
}

// DashboardCategory is one budget line for the current month.
type DashboardCategory struct {
	Name       string  `json:"name"`
	Budgeted   float64 `json:"budgeted"`
	Spent      float64 `json:"spent"`
	Percentage float64 `json:"percentage"`
}

// DashboardInsight is a short observation shown on the dashboard.
type DashboardInsight struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Suggestion is an action the user can take from the dashboard.
type Suggestion struct {
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Action      string                 `json:"action"`
	Params      map[string]interface{} `json:"params"`
}

// Dashboard is the summary view over a timeframe.
type Dashboard struct {
	Timeframe          string               `json:"timeframe"`
	From               string               `json:"from"`
	To                 string               `json:"to"`
	AccountBalance     float64              `json:"accountBalance"`
	Income             float64              `json:"monthlyIncome"`
	Expenses           float64              `json:"monthlyExpenses"`
	SavingsRate        float64              `json:"savingsRate"`
	BudgetCategories   []DashboardCategory  `json:"budgetCategories"`
	RecentTransactions []domain.Transaction `json:"recentTransactions"`
	Goals              []domain.Goal        `json:"goals"`
	HealthScore        scoring.HealthScore  `json:"healthScore"`
	Insights           []DashboardInsight   `json:"insights"`
	Suggestions        []Suggestion         `json:"suggestions"`
}

// BuildDashboard summarises snap over the timeframe ending on now's date.
// Budget lines use the current month's transactions regardless of timeframe.
func BuildDashboard(snap *domain.Snapshot, timeframe string, now time.Time) (Dashboard, error) {
	days, ok := TimeframeDays(timeframe)
	if !ok {
		return Dashboard{}, fmt.Errorf("BuildDashboard: unknown timeframe %q", timeframe)
	}
	if timeframe == "" {
		timeframe = DefaultTimeframe
	}
	if snap == nil {
		snap = &domain.Snapshot{}
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	from := today.AddDate(0, 0, -days)
	until := today.AddDate(0, 0, 1)
	window := metrics.Filter(snap.Transactions, func(t domain.Transaction) bool {
		return !t.Date.Before(from) && t.Date.Before(until)
	})

	income := metrics.Income(window)
	expenses := metrics.Expenses(window)
	var rate float64
	if income > 0 {
		rate = money.Round2((income - expenses) / income * 100)
	}

	amounts := make([]float64, len(snap.Transactions))
	for i, t := range snap.Transactions {
		amounts[i] = t.Amount
	}

	d := Dashboard{
		Timeframe:          timeframe,
		From:               from.Format(domain.DateLayout),
		To:                 today.Format(domain.DateLayout),
		AccountBalance:     money.Round2(money.Sum(amounts...)),
		Income:             money.Round2(income),
		Expenses:           money.Round2(expenses),
		SavingsRate:        rate,
		BudgetCategories:   []DashboardCategory{},
		RecentTransactions: recentTransactions(snap.Transactions, recentTransactionCount),
		Goals:              goalsByDeadline(snap.Goals),
		HealthScore:        scoring.HealthFromSnapshot(snap, currentMonth(now), metrics.PlannerLiquidFraction),
		Insights:           []DashboardInsight{},
		Suggestions:        []Suggestion{},
	}

	month := currentMonth(now)
	spent := metrics.ExpensesBy(metrics.InMonth(snap.Transactions, month), metrics.ByCategory)
	budget, hasBudget := snap.Budget.Month(month)
	if hasBudget {
		for _, c := range budget.Sorted() {
			s := spent[c.Category]
			d.BudgetCategories = append(d.BudgetCategories, DashboardCategory{
				Name:       c.Category,
				Budgeted:   money.Round2(c.Budgeted),
				Spent:      money.Round2(s),
				Percentage: money.Round1(money.Percent(s, c.Budgeted)),
			})
			if c.Budgeted > 0 && s > c.Budgeted {
				d.Insights = append(d.Insights, DashboardInsight{
					Type:        "warning",
					Title:       c.Category + " over budget",
					Description: fmt.Sprintf("You have spent %s of your %s %s budget.", money.Format(s), money.Format(c.Budgeted), c.Category),
				})
				d.Suggestions = append(d.Suggestions, Suggestion{
					Title:       "Increase " + c.Category + " budget",
					Description: fmt.Sprintf("Increase %s budget by 10%% for %s", c.Category, month),
					Action:      "update_budget",
					Params: map[string]interface{}{
						"category": c.Category,
						"month":    month,
						"amount":   money.Round2(c.Budgeted * 1.1),
					},
				})
			}
		}
	}

	var unbudgeted int
	for _, cat := range metrics.SortedKeys(spent) {
		if unbudgeted == unbudgetedCategoryLimit {
			break
		}
		if _, ok := budget.Categories[cat]; ok {
			continue
		}
		unbudgeted++
		amt := spent[cat]
		d.Insights = append(d.Insights, DashboardInsight{
			Type:        "tip",
			Title:       "No budget for " + cat,
			Description: fmt.Sprintf("You spent %s on %s this month without a budget.", money.Format(amt), cat),
		})
		d.Suggestions = append(d.Suggestions, Suggestion{
			Title:       "Add a " + cat + " budget",
			Description: fmt.Sprintf("Set a %s budget for %s", cat, month),
			Action:      "add_budget",
			Params: map[string]interface{}{
				"category": cat,
				"month":    month,
				"amount":   money.Round2(max(50, amt*1.1)),
			},
		})
	}

	if income > 0 && rate < targetSavingsRate {
		d.Insights = append(d.Insights, DashboardInsight{
			Type:        "tip",
			Title:       "Improve savings rate",
			Description: fmt.Sprintf("Your savings rate is %.1f%%. Aim for at least %.0f%%.", rate, targetSavingsRate),
		})
		d.Suggestions = append(d.Suggestions, Suggestion{
			Title:       "Automate savings",
			Description: "Transfer 5% of income to savings every month",
			Action:      "add_recurring",
			Params: map[string]interface{}{
				"category":  "Savings",
				"amount":    money.Round2(income * 0.05),
				"frequency": "monthly",
			},
		})
	}

	return d, nil
}

// recentTransactions returns the n latest transactions, newest first.
func recentTransactions(txs []domain.Transaction, n int) []domain.Transaction {
	out := make([]domain.Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// goalsByDeadline orders goals by deadline. Goals without one come last.
func goalsByDeadline(goals []domain.Goal) []domain.Goal {
	out := make([]domain.Goal, len(goals))
	copy(out, goals)
	sort.SliceStable(out, func(i, j int) bool {
		di, iok := out[i].DeadlineTime()
		dj, jok := out[j].DeadlineTime()
		if iok != jok {
			return iok
		}
		return iok && di.Before(dj)
	})
	return out
}
