// Package bigquery stores the records a workflow run reads in BigQuery
// tables and loads them back as a snapshot.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/logger"
)

const (
	// DefaultDatasetID is the dataset holding the snapshot tables.
	DefaultDatasetID = "finance"

	transactionsTable = "transactions"
	budgetsTable      = "budgets"
	holdingsTable     = "holdings"
	goalsTable        = "goals"
)

// SnapshotRepository reads and writes one user's records. It holds a shared
// BigQuery client for all operations.
type SnapshotRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	userID    string
	clock     func() time.Time
}

// NewSnapshotRepository creates a repository over projectID.datasetID scoped
// to userID.
func NewSnapshotRepository(ctx context.Context, projectID, datasetID, userID string) (*SnapshotRepository, error) {
	if datasetID == "" {
		datasetID = DefaultDatasetID
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewSnapshotRepository: creating client: %w", err)
	}
	return &SnapshotRepository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
		userID:    userID,
		clock:     time.Now,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *SnapshotRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *SnapshotRepository) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", r.projectID, r.datasetID, name)
}

// Load reads every table for the user. Empty tables leave their part empty.
func (r *SnapshotRepository) Load(ctx context.Context) (*domain.Snapshot, error) {
	txs, err := r.ListTransactions(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	budget, err := r.LoadBudget(ctx)
	if err != nil {
		return nil, err
	}
	holdings, err := r.ListHoldings(ctx)
	if err != nil {
		return nil, err
	}
	goals, err := r.ListGoals(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("user_id", r.userID).
		Int("transactions", len(txs)).
		Int("holdings", len(holdings)).
		Int("goals", len(goals)).
		Msg("snapshot loaded from bigquery")

	return &domain.Snapshot{Transactions: txs, Budget: budget, Holdings: holdings, Goals: goals}, nil
}

// ListTransactions returns the user's transactions dated on or after since,
// ordered by date. A zero since returns all of them.
func (r *SnapshotRepository) ListTransactions(ctx context.Context, since time.Time) ([]domain.Transaction, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			user_id,
			transaction_date,
			amount,
			category_name,
			raw_description,
			merchant_name,
			account_type,
			payment_method,
			created_ts
		FROM %s
		WHERE user_id = @user_id
		  AND transaction_date >= @since
		ORDER BY transaction_date, created_ts
	`, r.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: r.userID},
		{Name: "since", Value: civil.DateOf(since)},
	}

	rows, err := readAll[TransactionRow](ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	out := make([]domain.Transaction, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// LoadBudget returns every month of the user's budget, or nil when none is set.
func (r *SnapshotRepository) LoadBudget(ctx context.Context) (*domain.Budget, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT user_id, budget_month, category_name, budgeted, spent
		FROM %s
		WHERE user_id = @user_id
		ORDER BY budget_month, category_name
	`, r.table(budgetsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "user_id", Value: r.userID}}

	rows, err := readAll[BudgetRow](ctx, q)
	if err != nil {
		return nil, fmt.Errorf("LoadBudget: %w", err)
	}
	return BudgetFromRows(rows), nil
}

// ListHoldings returns the user's positions ordered by symbol.
func (r *SnapshotRepository) ListHoldings(ctx context.Context) ([]domain.Holding, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT user_id, symbol, company, shares, total_cost, market_value, current_price
		FROM %s
		WHERE user_id = @user_id
		ORDER BY symbol
	`, r.table(holdingsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "user_id", Value: r.userID}}

	rows, err := readAll[HoldingRow](ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListHoldings: %w", err)
	}
	out := make([]domain.Holding, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// ListGoals returns the user's goals ordered by id.
func (r *SnapshotRepository) ListGoals(ctx context.Context) ([]domain.Goal, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
			goal_id, user_id, name, description, category, priority,
			target_amount, current_amount, monthly_contribution, deadline, status
		FROM %s
		WHERE user_id = @user_id
		ORDER BY goal_id
	`, r.table(goalsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "user_id", Value: r.userID}}

	rows, err := readAll[GoalRow](ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListGoals: %w", err)
	}
	out := make([]domain.Goal, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// Import appends every part of snap to the user's tables.
func (r *SnapshotRepository) Import(ctx context.Context, snap *domain.Snapshot) error {
	now := r.clock()

	txRows := make([]*TransactionRow, 0, len(snap.Transactions))
	for _, t := range snap.Transactions {
		txRows = append(txRows, NewTransactionRow(r.userID, t, now))
	}
	holdingRows := make([]*HoldingRow, 0, len(snap.Holdings))
	for _, h := range snap.Holdings {
		holdingRows = append(holdingRows, NewHoldingRow(r.userID, h))
	}
	goalRows := make([]*GoalRow, 0, len(snap.Goals))
	for _, g := range snap.Goals {
		goalRows = append(goalRows, NewGoalRow(r.userID, g))
	}

	if err := r.put(ctx, transactionsTable, txRows, len(txRows)); err != nil {
		return fmt.Errorf("Import: %w", err)
	}
	budgetRows := BudgetRows(r.userID, snap.Budget)
	if err := r.put(ctx, budgetsTable, budgetRows, len(budgetRows)); err != nil {
		return fmt.Errorf("Import: %w", err)
	}
	if err := r.put(ctx, holdingsTable, holdingRows, len(holdingRows)); err != nil {
		return fmt.Errorf("Import: %w", err)
	}
	if err := r.put(ctx, goalsTable, goalRows, len(goalRows)); err != nil {
		return fmt.Errorf("Import: %w", err)
	}
	return nil
}

// UpdateGoalAmount sets a goal's current amount.
func (r *SnapshotRepository) UpdateGoalAmount(ctx context.Context, goalID string, amount float64) error {
	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET current_amount = @amount
		WHERE user_id = @user_id AND goal_id = @goal_id
	`, r.table(goalsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "amount", Value: floatRat(amount)},
		{Name: "user_id", Value: r.userID},
		{Name: "goal_id", Value: goalID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("UpdateGoalAmount: running update query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("UpdateGoalAmount: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("UpdateGoalAmount: job error: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) put(ctx context.Context, table string, rows any, n int) error {
	if n == 0 {
		return nil
	}
	inserter := r.client.DatasetInProject(r.projectID, r.datasetID).Table(table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("inserting into %s: %w", table, err)
	}
	return nil
}

// readAll drains the results of q into a slice of T.
func readAll[T any](ctx context.Context, q *bigquery.Query) ([]T, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var rows []T
	for {
		var row T
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
