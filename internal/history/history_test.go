package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-agent/internal/state"
)

func newSQLite(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQLStore(context.Background(), DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// stores returns each implementation with a controllable clock.
func stores(t *testing.T, now *time.Time) map[string]Store {
	clock := func() time.Time { return *now }

	sqlStore := newSQLite(t)
	sqlStore.clock = clock
	mem := NewMemoryStore()
	mem.clock = clock

	return map[string]Store{"sqlite": sqlStore, "memory": mem}
}

func TestStore_AppendAndList(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for name, s := range stores(t, &now) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 4; i++ {
				role := RoleUser
				if i%2 == 1 {
					role = RoleAssistant
				}
				_, err := s.Append(ctx, "s1", role, fmt.Sprintf("m%d", i))
				require.NoError(t, err)
			}
			_, err := s.Append(ctx, "s2", RoleUser, "other")
			require.NoError(t, err)

			all, err := s.List(ctx, "s1", 0)
			require.NoError(t, err)
			require.Len(t, all, 4)
			assert.Equal(t, "m0", all[0].Content)
			assert.Equal(t, int64(1), all[0].Seq)
			assert.Equal(t, "m3", all[3].Content)
			assert.Equal(t, RoleAssistant, all[3].Role)

			last, err := s.List(ctx, "s1", 2)
			require.NoError(t, err)
			require.Len(t, last, 2)
			assert.Equal(t, "m2", last[0].Content)
			assert.Equal(t, "m3", last[1].Content)

			empty, err := s.List(ctx, "unknown", 10)
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestStore_Clear(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for name, s := range stores(t, &now) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Append(ctx, "s1", RoleUser, "hello")
			require.NoError(t, err)

			require.NoError(t, s.Clear(ctx, "s1"))
			msgs, err := s.List(ctx, "s1", 0)
			require.NoError(t, err)
			assert.Empty(t, msgs)

			err = s.Clear(ctx, "s1")
			assert.True(t, errors.Is(err, ErrSessionNotFound))
		})
	}
}

func TestStore_Prune(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for name, s := range stores(t, &now) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			_, err := s.Append(ctx, "old", RoleUser, "stale")
			require.NoError(t, err)
			_, err = s.Append(ctx, "mixed", RoleUser, "stale")
			require.NoError(t, err)

			now = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
			_, err = s.Append(ctx, "mixed", RoleAssistant, "fresh")
			require.NoError(t, err)

			n, err := s.Prune(ctx, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)

			mixed, err := s.List(ctx, "mixed", 0)
			require.NoError(t, err)
			require.Len(t, mixed, 1)
			assert.Equal(t, "fresh", mixed[0].Content)

			assert.ErrorIs(t, s.Clear(ctx, "old"), ErrSessionNotFound)
		})
	}
}

func TestStore_AppendExchange(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for name, s := range stores(t, &now) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Append(ctx, "s1", RoleUser, "first")
			require.NoError(t, err)

			added, err := s.AppendExchange(ctx, "s1", "how much did I spend?", "About 1200.")
			require.NoError(t, err)
			require.Len(t, added, 2)
			assert.Equal(t, int64(2), added[0].Seq)
			assert.Equal(t, int64(3), added[1].Seq)

			msgs, err := s.List(ctx, "s1", 0)
			require.NoError(t, err)
			require.Len(t, msgs, 3)
			assert.Equal(t, RoleUser, msgs[1].Role)
			assert.Equal(t, "how much did I spend?", msgs[1].Content)
			assert.Equal(t, RoleAssistant, msgs[2].Role)
			assert.Equal(t, "About 1200.", msgs[2].Content)
		})
	}
}

func TestSQLStore_AppendExchangeRollsBack(t *testing.T) {
	s := newSQLite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.AppendExchange(ctx, "s1", "q", "a")
	require.Error(t, err)

	msgs, err := s.List(context.Background(), "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSessionLocks_BoundedStripes(t *testing.T) {
	var l sessionLocks
	for i := 0; i < 1000; i++ {
		id := fmt.Sprintf("session-%d", i)
		stripe := stripeFor(id)
		assert.GreaterOrEqual(t, stripe, 0)
		assert.Less(t, stripe, lockStripes)
		assert.Equal(t, stripe, stripeFor(id))

		unlock := l.lock(id)
		unlock()
	}
}

func TestSQLStore_ConcurrentAppendKeepsSequence(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Append(ctx, "busy", RoleUser, fmt.Sprintf("m%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	msgs, err := s.List(ctx, "busy", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 20)
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.Seq)
	}
}

func TestOpenSQLStore_UnsupportedDriver(t *testing.T) {
	_, err := OpenSQLStore(context.Background(), "mysql", "dsn")
	assert.Error(t, err)
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), DriverMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
}

func TestSQLStore_RebindPostgres(t *testing.T) {
	s := &SQLStore{driver: DriverPostgres}
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", s.rebind("SELECT 1 WHERE a = ? AND b = ?"))

	s.driver = DriverSQLite
	assert.Equal(t, "a = ?", s.rebind("a = ?"))
}

func TestToState(t *testing.T) {
	got := ToState([]Message{{Role: RoleUser, Content: "hi"}, {Role: RoleAssistant, Content: "hello"}})
	assert.Equal(t, []state.Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}}, got)
}
