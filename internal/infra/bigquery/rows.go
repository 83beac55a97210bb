package bigquery

import (
	"math/big"
	"sort"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/money"
)

// TransactionRow represents a transaction record in BigQuery.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"`
	UserID        string `bigquery:"user_id"`

	TransactionDate civil.Date `bigquery:"transaction_date"`

	Amount   *big.Rat `bigquery:"amount"`
	Category string   `bigquery:"category_name"`

	Description   bigquery.NullString `bigquery:"raw_description"`
	Merchant      bigquery.NullString `bigquery:"merchant_name"`
	AccountType   bigquery.NullString `bigquery:"account_type"`
	PaymentMethod bigquery.NullString `bigquery:"payment_method"`

	CreatedTS time.Time `bigquery:"created_ts"`
}

// BudgetRow is one category of one month's budget.
type BudgetRow struct {
	UserID   string   `bigquery:"user_id"`
	Month    string   `bigquery:"budget_month"`
	Category string   `bigquery:"category_name"`
	Budgeted *big.Rat `bigquery:"budgeted"`
	Spent    *big.Rat `bigquery:"spent"`
}

// HoldingRow represents an investment position.
type HoldingRow struct {
	UserID       string               `bigquery:"user_id"`
	Symbol       string               `bigquery:"symbol"`
	Company      bigquery.NullString  `bigquery:"company"`
	Shares       float64              `bigquery:"shares"`
	CostBasis    *big.Rat             `bigquery:"total_cost"`
	MarketValue  *big.Rat             `bigquery:"market_value"`
	CurrentPrice bigquery.NullFloat64 `bigquery:"current_price"`
}

// GoalRow represents a savings goal.
type GoalRow struct {
	GoalID              string              `bigquery:"goal_id"`
	UserID              string              `bigquery:"user_id"`
	Name                string              `bigquery:"name"`
	Description         bigquery.NullString `bigquery:"description"`
	Category            bigquery.NullString `bigquery:"category"`
	Priority            bigquery.NullString `bigquery:"priority"`
	TargetAmount        *big.Rat            `bigquery:"target_amount"`
	CurrentAmount       *big.Rat            `bigquery:"current_amount"`
	MonthlyContribution *big.Rat            `bigquery:"monthly_contribution"`
	Deadline            bigquery.NullDate   `bigquery:"deadline"`
	Status              string              `bigquery:"status"`
}

func ratFloat(r *big.Rat) float64 {
	if r == nil {
		return 0
	}
	f, _ := r.Float64()
	return money.Round2(f)
}

func floatRat(f float64) *big.Rat {
	return decimal.NewFromFloat(f).Round(2).Rat()
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func stringVal(n bigquery.NullString) string {
	if !n.Valid {
		return ""
	}
	return n.StringVal
}

// ToDomain converts the row to a domain transaction.
func (r *TransactionRow) ToDomain() domain.Transaction {
	return domain.Transaction{
		ID:            r.TransactionID,
		Date:          r.TransactionDate.In(time.UTC),
		Amount:        ratFloat(r.Amount),
		Category:      r.Category,
		Description:   stringVal(r.Description),
		Merchant:      stringVal(r.Merchant),
		AccountType:   stringVal(r.AccountType),
		PaymentMethod: stringVal(r.PaymentMethod),
	}
}

// NewTransactionRow builds the row stored for t.
func NewTransactionRow(userID string, t domain.Transaction, now time.Time) *TransactionRow {
	return &TransactionRow{
		TransactionID:   t.ID,
		UserID:          userID,
		TransactionDate: civil.DateOf(t.Date),
		Amount:          floatRat(t.Amount),
		Category:        t.Category,
		Description:     nullString(t.Description),
		Merchant:        nullString(t.Merchant),
		AccountType:     nullString(t.AccountType),
		PaymentMethod:   nullString(t.PaymentMethod),
		CreatedTS:       now,
	}
}

// BudgetFromRows folds category rows into a budget with derived fields
// recomputed. No rows yields nil.
func BudgetFromRows(rows []BudgetRow) *domain.Budget {
	if len(rows) == 0 {
		return nil
	}
	b := &domain.Budget{Months: make(map[string]domain.MonthlyBudget)}
	for _, r := range rows {
		m := b.Months[r.Month]
		if m.Categories == nil {
			m.Categories = make(map[string]domain.BudgetCategory)
		}
		m.Categories[r.Category] = domain.BudgetCategory{
			Category: r.Category,
			Budgeted: ratFloat(r.Budgeted),
			Spent:    ratFloat(r.Spent),
		}
		b.Months[r.Month] = m
	}
	for k, m := range b.Months {
		m.Recompute()
		b.Months[k] = m
	}
	return b
}

// BudgetRows flattens a budget into rows ordered by month then category.
func BudgetRows(userID string, b *domain.Budget) []*BudgetRow {
	if b == nil {
		return nil
	}
	months := make([]string, 0, len(b.Months))
	for k := range b.Months {
		months = append(months, k)
	}
	sort.Strings(months)

	var rows []*BudgetRow
	for _, month := range months {
		for _, c := range b.Months[month].Sorted() {
			rows = append(rows, &BudgetRow{
				UserID:   userID,
				Month:    month,
				Category: c.Category,
				Budgeted: floatRat(c.Budgeted),
				Spent:    floatRat(c.Spent),
			})
		}
	}
	return rows
}

// ToDomain converts the row to a holding with gain/loss derived.
func (r *HoldingRow) ToDomain() domain.Holding {
	h := domain.Holding{
		Symbol:      r.Symbol,
		Company:     stringVal(r.Company),
		Shares:      r.Shares,
		CostBasis:   ratFloat(r.CostBasis),
		MarketValue: ratFloat(r.MarketValue),
	}
	if r.CurrentPrice.Valid {
		h.CurrentPrice = r.CurrentPrice.Float64
	}
	h.Recompute()
	return h
}

// NewHoldingRow builds the row stored for h.
func NewHoldingRow(userID string, h domain.Holding) *HoldingRow {
	return &HoldingRow{
		UserID:       userID,
		Symbol:       h.Symbol,
		Company:      nullString(h.Company),
		Shares:       h.Shares,
		CostBasis:    floatRat(h.CostBasis),
		MarketValue:  floatRat(h.MarketValue),
		CurrentPrice: bigquery.NullFloat64{Float64: h.CurrentPrice, Valid: h.CurrentPrice != 0},
	}
}

// ToDomain converts the row to a goal.
func (r *GoalRow) ToDomain() domain.Goal {
	g := domain.Goal{
		ID:                  r.GoalID,
		Name:                r.Name,
		Description:         stringVal(r.Description),
		Category:            stringVal(r.Category),
		Priority:            stringVal(r.Priority),
		TargetAmount:        ratFloat(r.TargetAmount),
		CurrentAmount:       ratFloat(r.CurrentAmount),
		MonthlyContribution: ratFloat(r.MonthlyContribution),
		Status:              r.Status,
	}
	if r.Deadline.Valid {
		g.Deadline = r.Deadline.Date.String()
	}
	return g
}

// NewGoalRow builds the row stored for g. An unparseable deadline is stored
// as NULL.
func NewGoalRow(userID string, g domain.Goal) *GoalRow {
	row := &GoalRow{
		GoalID:              g.ID,
		UserID:              userID,
		Name:                g.Name,
		Description:         nullString(g.Description),
		Category:            nullString(g.Category),
		Priority:            nullString(g.Priority),
		TargetAmount:        floatRat(g.TargetAmount),
		CurrentAmount:       floatRat(g.CurrentAmount),
		MonthlyContribution: floatRat(g.MonthlyContribution),
		Status:              g.Status,
	}
	if t, ok := g.DeadlineTime(); ok {
		row.Deadline = bigquery.NullDate{Date: civil.DateOf(t), Valid: true}
	}
	return row
}
