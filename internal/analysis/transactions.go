package analysis

import (
	"context"
	"time"

	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/metrics"
	"github.com/dvloznov/finance-agent/internal/money"
	"github.com/dvloznov/finance-agent/internal/state"
)

var foodCategories = map[string]bool{"Food & Dining": true, "Groceries": true}

var transactionBranches = []branch{
	{"food", []string{"food", "dining", "restaurant", "eat"}},
	{"monthly", []string{"this month", "monthly", "current month"}},
	{"category", []string{"category", "categories"}},
	{"total", []string{"total", "spent", "spending"}},
}

// FoodSpending compares food spending this month with last month.
type FoodSpending struct {
	Type                 string           `json:"analysis_type"`
	Category             string           `json:"category"`
	CurrentMonthTotal    float64          `json:"current_month_total"`
	TransactionCount     int              `json:"transaction_count"`
	AverageTransaction   float64          `json:"average_transaction"`
	PreviousMonthTotal   float64          `json:"previous_month_total"`
	MonthOverMonthChange float64          `json:"month_over_month_change"`
	ChangePercentage     float64          `json:"change_percentage"`
	TopMerchants         []metrics.Amount `json:"top_merchants"`
}

// MonthlySpending summarises the current month.
type MonthlySpending struct {
	Type              string           `json:"analysis_type"`
	Period            string           `json:"period"`
	TotalExpenses     float64          `json:"total_expenses"`
	TotalIncome       float64          `json:"total_income"`
	NetCashFlow       float64          `json:"net_cash_flow"`
	TransactionCount  int              `json:"transaction_count"`
	ExpenseCount      int              `json:"expense_count"`
	CategoryBreakdown []metrics.Amount `json:"category_breakdown"`
	TopCategory       string           `json:"top_category,omitempty"`
	TopCategoryAmount float64          `json:"top_category_amount"`
}

// CategorySpend is one category of a CategorySpending breakdown.
type CategorySpend struct {
	Category           string  `json:"category"`
	TotalSpent         float64 `json:"total_spent"`
	TransactionCount   int     `json:"transaction_count"`
	AverageTransaction float64 `json:"average_transaction"`
	PercentageOfTotal  float64 `json:"percentage_of_total"`
}

// CategorySpending breaks the current month's expenses down by category.
type CategorySpending struct {
	Type          string          `json:"analysis_type"`
	Period        string          `json:"period"`
	TotalExpenses float64         `json:"total_expenses"`
	Categories    []CategorySpend `json:"category_breakdown"`
	CategoryCount int             `json:"category_count"`
}

// LargestExpense identifies the biggest single outflow of a period.
type LargestExpense struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Merchant    string  `json:"merchant"`
}

// TotalSpending reports totals for the current month or the last week.
type TotalSpending struct {
	Type                string         `json:"analysis_type"`
	Period              string         `json:"period"`
	TotalExpenses       float64        `json:"total_expenses"`
	TotalIncome         float64        `json:"total_income"`
	NetAmount           float64        `json:"net_amount"`
	ExpenseTransactions int            `json:"expense_transactions"`
	IncomeTransactions  int            `json:"income_transactions"`
	LargestExpense      LargestExpense `json:"largest_expense"`
}

// DayAmount is a spending total for one calendar day.
type DayAmount struct {
	Date   string  `json:"date,omitempty"`
	Amount float64 `json:"amount"`
}

// RecentSpending is the default 30-day spending pattern.
type RecentSpending struct {
	Type               string           `json:"analysis_type"`
	Period             string           `json:"period"`
	TotalExpenses      float64          `json:"total_expenses"`
	DailyAverage       float64          `json:"daily_average"`
	HighestSpendingDay DayAmount        `json:"highest_spending_day"`
	TransactionCount   int              `json:"transaction_count"`
	TopCategories      []metrics.Amount `json:"top_categories"`
}

// TransactionModule answers spending questions.
type TransactionModule struct {
	clock func() time.Time
}

// NewTransactionModule creates the transaction_analyzer module.
func NewTransactionModule(opts Options) *TransactionModule {
	return &TransactionModule{clock: opts.withDefaults().Clock}
}

func (m *TransactionModule) Name() string { return TransactionAnalyzer }

func (m *TransactionModule) Description() string {
	return "Spending patterns, category breakdowns and merchant trends from transactions"
}

func (m *TransactionModule) Run(_ context.Context, st *state.State) error {
	snap := st.Snapshot()
	if !snap.HasTransactions() {
		missing(st, m.Name(), "No transaction data available")
		return nil
	}

	now := m.clock()
	txs := snap.Transactions

	var result any
	switch selectBranch(st.UserQuery, transactionBranches, "recent") {
	case "food":
		result = foodSpending(txs, now)
	case "monthly":
		result = monthlySpending(txs, now)
	case "category":
		result = categorySpending(txs, now)
	case "total":
		result = totalSpending(txs, now, containsAny(lower(st.UserQuery), "week"))
	default:
		result = recentSpending(txs, now)
	}
	store(st, m.Name(), result)
	return nil
}

func foodSpending(txs []domain.Transaction, now time.Time) FoodSpending {
	food := metrics.Filter(txs, func(t domain.Transaction) bool { return foodCategories[t.Category] })
	current := metrics.InMonth(food, currentMonth(now))
	previous := metrics.InMonth(food, previousMonth(now))

	total := absSum(current)
	prevTotal := absSum(previous)
	change := total - prevTotal

	res := FoodSpending{
		Type:                 "food",
		Category:             "Food & Dining Analysis",
		CurrentMonthTotal:    money.Round2(total),
		TransactionCount:     len(current),
		PreviousMonthTotal:   money.Round2(prevTotal),
		MonthOverMonthChange: money.Round2(change),
		TopMerchants:         rounded(metrics.Ranked(metrics.ExpensesBy(current, metrics.ByMerchant), 3)),
	}
	if len(current) > 0 {
		res.AverageTransaction = money.Round2(total / float64(len(current)))
	}
	if prevTotal > 0 {
		res.ChangePercentage = money.Round1(change / prevTotal * 100)
	}
	return res
}

func monthlySpending(txs []domain.Transaction, now time.Time) MonthlySpending {
	month := metrics.InMonth(txs, currentMonth(now))
	expenses := metrics.Expenses(month)
	income := metrics.Income(month)
	breakdown := rounded(metrics.Ranked(metrics.ExpensesBy(month, metrics.ByCategory), 0))

	res := MonthlySpending{
		Type:              "monthly",
		Period:            now.Format("January 2006"),
		TotalExpenses:     money.Round2(expenses),
		TotalIncome:       money.Round2(income),
		NetCashFlow:       money.Round2(income - expenses),
		TransactionCount:  len(month),
		ExpenseCount:      countExpenses(month),
		CategoryBreakdown: breakdown,
	}
	if len(breakdown) > 0 {
		res.TopCategory = breakdown[0].Name
		res.TopCategoryAmount = breakdown[0].Amount
	}
	return res
}

func categorySpending(txs []domain.Transaction, now time.Time) CategorySpending {
	month := metrics.InMonth(txs, currentMonth(now))

	totals := metrics.ExpensesBy(month, metrics.ByCategory)
	counts := make(map[string]int)
	for _, t := range month {
		if t.IsExpense() && t.Category != "" {
			counts[t.Category]++
		}
	}

	var total float64
	for _, v := range totals {
		total += v
	}

	ranked := metrics.Ranked(totals, 0)
	cats := make([]CategorySpend, 0, len(ranked))
	for _, a := range ranked {
		cats = append(cats, CategorySpend{
			Category:           a.Name,
			TotalSpent:         money.Round2(a.Amount),
			TransactionCount:   counts[a.Name],
			AverageTransaction: money.Round2(a.Amount / float64(counts[a.Name])),
			PercentageOfTotal:  money.Round1(money.Percent(a.Amount, total)),
		})
	}

	return CategorySpending{
		Type:          "category",
		Period:        now.Format("January 2006"),
		TotalExpenses: money.Round2(total),
		Categories:    cats,
		CategoryCount: len(cats),
	}
}

func totalSpending(txs []domain.Transaction, now time.Time, lastWeek bool) TotalSpending {
	var period []domain.Transaction
	name := now.Format("January 2006")
	if lastWeek {
		period = within(txs, now.AddDate(0, 0, -7), now)
		name = "Last 7 days"
	} else {
		period = metrics.InMonth(txs, currentMonth(now))
	}

	expenses := metrics.Expenses(period)
	income := metrics.Income(period)
	res := TotalSpending{
		Type:                "total",
		Period:              name,
		TotalExpenses:       money.Round2(expenses),
		TotalIncome:         money.Round2(income),
		NetAmount:           money.Round2(income - expenses),
		ExpenseTransactions: countExpenses(period),
		IncomeTransactions:  len(period) - countExpenses(period) - countZero(period),
	}
	if largest, ok := largestExpense(period); ok {
		res.LargestExpense = LargestExpense{
			Amount:      money.Round2(-largest.Amount),
			Description: largest.Description,
			Merchant:    largest.Merchant,
		}
	}
	return res
}

func recentSpending(txs []domain.Transaction, now time.Time) RecentSpending {
	recent := within(txs, now.AddDate(0, 0, -30), now)
	daily := metrics.DailyExpenses(recent)

	res := RecentSpending{
		Type:             "recent",
		Period:           "Last 30 days",
		TotalExpenses:    money.Round2(metrics.Expenses(recent)),
		DailyAverage:     money.Round2(metrics.Mean(metrics.Values(daily))),
		TransactionCount: countExpenses(recent),
		TopCategories:    rounded(metrics.Ranked(metrics.ExpensesBy(recent, metrics.ByCategory), 3)),
	}
	if top := metrics.Ranked(daily, 1); len(top) > 0 {
		res.HighestSpendingDay = DayAmount{Date: top[0].Name, Amount: money.Round2(top[0].Amount)}
	}
	return res
}

// within keeps transactions dated in [from, to].
func within(txs []domain.Transaction, from, to time.Time) []domain.Transaction {
	return metrics.Filter(txs, func(t domain.Transaction) bool {
		return !t.Date.Before(from) && !t.Date.After(to)
	})
}

func largestExpense(txs []domain.Transaction) (domain.Transaction, bool) {
	var (
		best  domain.Transaction
		found bool
	)
	for _, t := range txs {
		if t.IsExpense() && (!found || t.Amount < best.Amount) {
			best, found = t, true
		}
	}
	return best, found
}

func absSum(txs []domain.Transaction) float64 {
	values := make([]float64, 0, len(txs))
	for _, t := range txs {
		values = append(values, t.Amount)
	}
	s := money.Sum(values...)
	if s < 0 {
		return -s
	}
	return s
}

func countExpenses(txs []domain.Transaction) int {
	n := 0
	for _, t := range txs {
		if t.IsExpense() {
			n++
		}
	}
	return n
}

func countZero(txs []domain.Transaction) int {
	n := 0
	for _, t := range txs {
		if t.Amount == 0 {
			n++
		}
	}
	return n
}

func rounded(in []metrics.Amount) []metrics.Amount {
	out := make([]metrics.Amount, len(in))
	for i, a := range in {
		out[i] = metrics.Amount{Name: a.Name, Amount: money.Round2(a.Amount)}
	}
	return out
}
