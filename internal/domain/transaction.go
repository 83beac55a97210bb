package domain

import (
	"time"
)

// Transaction is one signed money movement. Negative amounts are expenses,
// positive amounts are income. Transactions are read-only once loaded into a
// workflow run.
type Transaction struct {
	ID            string    `json:"id"`
	Date          time.Time `json:"date"`
	Amount        float64   `json:"amount"`
	Category      string    `json:"category"`
	Description   string    `json:"description"`
	Merchant      string    `json:"merchant,omitempty"`
	AccountType   string    `json:"account_type,omitempty"`
	PaymentMethod string    `json:"payment_method,omitempty"`
}

// IsExpense reports whether the transaction moves money out.
func (t Transaction) IsExpense() bool {
	return t.Amount < 0
}

// IsIncome reports whether the transaction moves money in.
func (t Transaction) IsIncome() bool {
	return t.Amount > 0
}

// Month returns the YYYY-MM bucket the transaction belongs to.
func (t Transaction) Month() string {
	return t.Date.Format(MonthLayout)
}

// Day returns the YYYY-MM-DD bucket the transaction belongs to.
func (t Transaction) Day() string {
	return t.Date.Format(DateLayout)
}

const (
	// DateLayout is the calendar date format used by every data source.
	DateLayout = "2006-01-02"

	// MonthLayout is the budget month key format.
	MonthLayout = "2006-01"
)
