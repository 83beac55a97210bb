// Package history persists chat messages per session.
package history

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/dvloznov/finance-agent/internal/state"
)

// ErrSessionNotFound is returned when a session has no stored messages.
var ErrSessionNotFound = errors.New("session not found")

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one stored chat turn.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Seq       int64     `json:"seq"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store keeps chat messages keyed by session id.
type Store interface {
	// Append stores a message at the end of the session.
	Append(ctx context.Context, sessionID, role, content string) (Message, error)

	// AppendExchange stores a user turn followed by the assistant reply.
	// Either both messages are stored or neither is.
	AppendExchange(ctx context.Context, sessionID, user, assistant string) ([]Message, error)

	// List returns the last limit messages of a session in order. limit <= 0
	// returns every message. An unknown session yields an empty slice.
	List(ctx context.Context, sessionID string, limit int) ([]Message, error)

	// Clear deletes a session. It returns ErrSessionNotFound when the session
	// holds no messages.
	Clear(ctx context.Context, sessionID string) error

	// Prune deletes messages created before cutoff and reports how many.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}

// ToState converts stored messages into synthesizer history.
func ToState(msgs []Message) []state.Message {
	out := make([]state.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, state.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// lockStripes bounds the number of session mutexes.
const lockStripes = 64

// sessionLocks serialises mutations per session key. Sessions share a fixed
// set of stripes, so the lock set does not grow with the number of sessions.
type sessionLocks struct {
	stripes [lockStripes]sync.Mutex
}

func stripeFor(sessionID string) int {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return int(h.Sum32() % lockStripes)
}

func (l *sessionLocks) lock(sessionID string) func() {
	m := &l.stripes[stripeFor(sessionID)]
	m.Lock()
	return m.Unlock
}

// turn is a message waiting to be stored.
type turn struct {
	role    string
	content string
}

func exchange(user, assistant string) []turn {
	return []turn{{RoleUser, user}, {RoleAssistant, assistant}}
}

// DriverMemory selects the in-process store.
const DriverMemory = "memory"

// Open returns the store for driver. dsn is ignored for the memory driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	if driver == DriverMemory {
		return NewMemoryStore(), nil
	}
	return OpenSQLStore(ctx, driver, dsn)
}
