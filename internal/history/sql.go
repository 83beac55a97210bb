package history

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	seq BIGINT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, seq);
CREATE INDEX IF NOT EXISTS idx_chat_messages_created_at ON chat_messages(created_at);
`

// SQLStore is a Store on database/sql. It supports SQLite and Postgres.
type SQLStore struct {
	db     *sql.DB
	driver string
	locks  sessionLocks
	clock  func() time.Time
}

// OpenSQLStore opens dsn with driver and creates the schema if needed.
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("OpenSQLStore: unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("OpenSQLStore: opening database: %w", err)
	}
	if driver == DriverSQLite {
		// ":memory:" databases exist per connection.
		db.SetMaxOpenConns(1)
	}

	s := &SQLStore{db: db, driver: driver, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("OpenSQLStore: initializing schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders as $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Append(ctx context.Context, sessionID, role, content string) (Message, error) {
	msgs, err := s.insert(ctx, sessionID, []turn{{role, content}})
	if err != nil {
		return Message{}, fmt.Errorf("Append: %w", err)
	}
	return msgs[0], nil
}

func (s *SQLStore) AppendExchange(ctx context.Context, sessionID, user, assistant string) ([]Message, error) {
	msgs, err := s.insert(ctx, sessionID, exchange(user, assistant))
	if err != nil {
		return nil, fmt.Errorf("AppendExchange: %w", err)
	}
	return msgs, nil
}

// insert stores turns at the end of the session in one transaction.
func (s *SQLStore) insert(ctx context.Context, sessionID string, turns []turn) ([]Message, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var last sql.NullInt64
	err = tx.QueryRowContext(ctx,
		s.rebind(`SELECT MAX(seq) FROM chat_messages WHERE session_id = ?`), sessionID).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("reading sequence: %w", err)
	}

	now := s.clock().UTC()
	msgs := make([]Message, 0, len(turns))
	for i, t := range turns {
		msg := Message{
			ID:        uuid.New().String(),
			SessionID: sessionID,
			Seq:       last.Int64 + int64(i) + 1,
			Role:      t.role,
			Content:   t.content,
			CreatedAt: now,
		}
		_, err = tx.ExecContext(ctx, s.rebind(`
			INSERT INTO chat_messages (id, session_id, seq, role, content, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`),
			msg.ID, msg.SessionID, msg.Seq, msg.Role, msg.Content, msg.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("inserting message: %w", err)
		}
		msgs = append(msgs, msg)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing: %w", err)
	}
	return msgs, nil
}

func (s *SQLStore) List(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	query := `SELECT id, session_id, seq, role, content, created_at FROM chat_messages
		WHERE session_id = ? ORDER BY seq DESC`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("List: querying messages: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Seq, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("List: scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *SQLStore) Clear(ctx context.Context, sessionID string) error {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM chat_messages WHERE session_id = ?`), sessionID)
	if err != nil {
		return fmt.Errorf("Clear: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Clear: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *SQLStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM chat_messages WHERE created_at < ?`), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("Prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("Prune: %w", err)
	}
	return n, nil
}

var _ Store = (*SQLStore)(nil)
