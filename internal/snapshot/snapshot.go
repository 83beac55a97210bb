// Package snapshot supplies the raw record context a workflow run reads:
// transactions, budget, holdings and goals.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/logger"
)

// ErrNotFound is returned when a source or one of its objects does not exist.
var ErrNotFound = errors.New("snapshot: not found")

// Source loads a snapshot. A part that is absent in the backing store is left
// empty rather than reported as an error.
type Source interface {
	Load(ctx context.Context) (*domain.Snapshot, error)
}

// ObjectReader reads a named object of the snapshot layout. It returns
// ErrNotFound for objects that do not exist.
type ObjectReader interface {
	ReadObject(ctx context.Context, name string) ([]byte, error)
}

// LoadObjects builds a snapshot from the four layout objects of r. Missing
// objects leave their part empty; malformed ones are errors.
func LoadObjects(ctx context.Context, r ObjectReader) (*domain.Snapshot, error) {
	log := logger.FromContext(ctx)
	snap := &domain.Snapshot{}
	found := 0

	read := func(name string, decode func([]byte) error) error {
		data, err := r.ReadObject(ctx, name)
		if errors.Is(err, ErrNotFound) {
			log.Debug().Str("object", name).Msg("snapshot object missing")
			return nil
		}
		if err != nil {
			return fmt.Errorf("LoadObjects: reading %s: %w", name, err)
		}
		found++
		if err := decode(data); err != nil {
			return fmt.Errorf("LoadObjects: decoding %s: %w", name, err)
		}
		return nil
	}

	steps := []struct {
		name   string
		decode func([]byte) error
	}{
		{TransactionsFile, func(b []byte) (err error) {
			snap.Transactions, err = DecodeTransactionsCSV(bytes.NewReader(b))
			return err
		}},
		{BudgetFile, func(b []byte) (err error) {
			snap.Budget, err = DecodeBudget(b)
			return err
		}},
		{InvestmentsFile, func(b []byte) (err error) {
			snap.Holdings, err = DecodeHoldings(b)
			return err
		}},
		{GoalsFile, func(b []byte) (err error) {
			snap.Goals, err = DecodeGoals(b)
			return err
		}},
	}
	for _, s := range steps {
		if err := read(s.name, s.decode); err != nil {
			return nil, err
		}
	}

	log.Debug().
		Int("objects", found).
		Int("transactions", len(snap.Transactions)).
		Int("holdings", len(snap.Holdings)).
		Int("goals", len(snap.Goals)).
		Msg("snapshot loaded")
	return snap, nil
}

// FileSource reads the snapshot layout from a local directory.
type FileSource struct {
	Dir string
}

// NewFileSource returns a source over dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{Dir: dir}
}

// ReadObject reads dir/name.
func (s *FileSource) ReadObject(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Load reads every layout file present in the directory. A missing directory
// is ErrNotFound.
func (s *FileSource) Load(ctx context.Context) (*domain.Snapshot, error) {
	if _, err := os.Stat(s.Dir); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("FileSource.Load: %s: %w", s.Dir, ErrNotFound)
	}
	return LoadObjects(ctx, s)
}

// StaticSource always returns the same snapshot.
type StaticSource struct {
	Snapshot *domain.Snapshot
}

func (s StaticSource) Load(context.Context) (*domain.Snapshot, error) {
	if s.Snapshot == nil {
		return &domain.Snapshot{}, nil
	}
	cp := *s.Snapshot
	return &cp, nil
}

// MultiSource merges several sources. Earlier sources win for each part;
// sources that report ErrNotFound are skipped.
type MultiSource []Source

func (m MultiSource) Load(ctx context.Context) (*domain.Snapshot, error) {
	out := &domain.Snapshot{}
	for i, src := range m {
		snap, err := src.Load(ctx)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("MultiSource.Load: source %d: %w", i, err)
		}
		out.Merge(snap)
	}
	return out, nil
}
