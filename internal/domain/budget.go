package domain

import "sort"

// BudgetCategory is the planned and actual spend for one category in one month.
type BudgetCategory struct {
	Category       string  `json:"category,omitempty"`
	Budgeted       float64 `json:"budgeted"`
	Spent          float64 `json:"spent"`
	Remaining      float64 `json:"remaining"`
	PercentageUsed float64 `json:"percentage_used"`
}

// Recompute derives Remaining and PercentageUsed from Budgeted and Spent.
func (c *BudgetCategory) Recompute() {
	c.Remaining = c.Budgeted - c.Spent
	if c.Budgeted > 0 {
		c.PercentageUsed = c.Spent / c.Budgeted * 100
	} else {
		c.PercentageUsed = 0
	}
}

// OverBudget reports whether more than the budgeted amount was spent.
func (c BudgetCategory) OverBudget() bool {
	return c.PercentageUsed > 100
}

// MonthlyBudget is the budget set for a single month.
type MonthlyBudget struct {
	Categories    map[string]BudgetCategory `json:"categories"`
	TotalBudgeted float64                   `json:"total_budgeted"`
	TotalSpent    float64                   `json:"total_spent"`
	SavingsRate   float64                   `json:"savings_rate"`
}

// Recompute refreshes every category's derived fields and the month totals.
// Category names are copied from the map keys.
func (m *MonthlyBudget) Recompute() {
	var budgeted, spent float64
	for name, c := range m.Categories {
		c.Category = name
		c.Recompute()
		m.Categories[name] = c
		budgeted += c.Budgeted
		spent += c.Spent
	}
	m.TotalBudgeted = budgeted
	m.TotalSpent = spent
}

// Sorted returns the categories ordered by name.
func (m MonthlyBudget) Sorted() []BudgetCategory {
	names := make([]string, 0, len(m.Categories))
	for name := range m.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]BudgetCategory, 0, len(names))
	for _, name := range names {
		c := m.Categories[name]
		c.Category = name
		out = append(out, c)
	}
	return out
}

// Budget holds one MonthlyBudget per YYYY-MM key.
type Budget struct {
	Months map[string]MonthlyBudget `json:"monthly_budgets"`
}

// Month returns a copy of the budget for the given YYYY-MM key with every
// derived field recomputed.
func (b *Budget) Month(month string) (MonthlyBudget, bool) {
	if b == nil || b.Months == nil {
		return MonthlyBudget{}, false
	}
	m, ok := b.Months[month]
	if !ok {
		return MonthlyBudget{}, false
	}
	cats := make(map[string]BudgetCategory, len(m.Categories))
	for name, c := range m.Categories {
		cats[name] = c
	}
	m.Categories = cats
	m.Recompute()
	return m, true
}

// RecentMonths returns up to n month keys, newest first.
func (b *Budget) RecentMonths(n int) []string {
	if b == nil {
		return nil
	}
	keys := make([]string, 0, len(b.Months))
	for k := range b.Months {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	if n > 0 && len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

// Empty reports whether no month carries any data.
func (b *Budget) Empty() bool {
	return b == nil || len(b.Months) == 0
}
