package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a Store held in process memory. Data is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Message
	clock    func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]Message), clock: time.Now}
}

func (s *MemoryStore) Append(ctx context.Context, sessionID, role, content string) (Message, error) {
	return s.insert(sessionID, []turn{{role, content}})[0], nil
}

func (s *MemoryStore) AppendExchange(ctx context.Context, sessionID, user, assistant string) ([]Message, error) {
	return s.insert(sessionID, exchange(user, assistant)), nil
}

func (s *MemoryStore) insert(sessionID string, turns []turn) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.sessions[sessionID]
	var last int64
	if len(msgs) > 0 {
		last = msgs[len(msgs)-1].Seq
	}
	now := s.clock().UTC()
	added := make([]Message, 0, len(turns))
	for i, t := range turns {
		added = append(added, Message{
			ID:        uuid.New().String(),
			SessionID: sessionID,
			Seq:       last + int64(i) + 1,
			Role:      t.role,
			Content:   t.content,
			CreatedAt: now,
		})
	}
	s.sessions[sessionID] = append(msgs, added...)

	out := make([]Message, len(added))
	copy(out, added)
	return out
}

func (s *MemoryStore) List(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.sessions[sessionID]
	if limit > 0 && limit < len(msgs) {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions[sessionID]) == 0 {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, msgs := range s.sessions {
		kept := msgs[:0]
		for _, m := range msgs {
			if m.CreatedAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, m)
		}
		if len(kept) == 0 {
			delete(s.sessions, id)
		} else {
			s.sessions[id] = kept
		}
	}
	return removed, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
