package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"capscan/internal/domain"

	"go.uber.org/zap"
)

// ErrTxDone is returned by any operation on a committed or rolled back Tx
var ErrTxDone = errors.New("transaction has already been committed or rolled back")

// Store is the run-scoped record index. Records are keyed by ObjectID and
// listed per type in first-insertion order.
type Store struct {
	mu      sync.RWMutex
	records map[domain.ObjectID]domain.Record
	order   map[domain.ResourceType][]domain.ObjectID
	logger  *zap.Logger
}

// NewStore creates an empty store
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		records: make(map[domain.ObjectID]domain.Record),
		order:   make(map[domain.ResourceType][]domain.ObjectID),
		logger:  logger,
	}
}

// Begin starts a transaction against the store
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{
		store:  s,
		staged: make(map[domain.ObjectID]domain.Record),
		order:  make(map[domain.ResourceType][]domain.ObjectID),
	}, nil
}

// WithTransaction runs fn inside a transaction.
// It commits when fn returns nil and rolls back on error or panic; a panic
// is re-raised after the rollback.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(WithContext(ctx, tx), tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

// Import stores previously persisted records in a single transaction
func (s *Store) Import(ctx context.Context, records []domain.Record) error {
	return s.WithTransaction(ctx, func(_ context.Context, tx *Tx) error {
		for _, rec := range records {
			if err := tx.Store(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Clouds returns the sorted names of every cloud with committed records
func (s *Store) Clouds() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for id := range s.records {
		seen[id.Cloud] = struct{}{}
	}
	clouds := make([]string, 0, len(seen))
	for c := range seen {
		clouds = append(clouds, c)
	}
	slices.Sort(clouds)
	return clouds
}

// Len returns the number of committed records of a type from a cloud
func (s *Store) Len(t domain.ResourceType, cloud string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, id := range s.order[t] {
		if id.Cloud == cloud {
			n++
		}
	}
	return n
}

func (s *Store) get(id domain.ObjectID) (domain.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

func (s *Store) ids(t domain.ResourceType) []domain.ObjectID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order[t])
}

// apply makes a transaction's staged writes visible under one lock
func (s *Store) apply(staged map[domain.ObjectID]domain.Record, order map[domain.ResourceType][]domain.ObjectID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for t, ids := range order {
		for _, id := range ids {
			if _, exists := s.records[id]; !exists {
				s.order[t] = append(s.order[t], id)
				added++
			}
		}
	}
	for id, rec := range staged {
		s.records[id] = rec
	}
	return added
}
