package repository

import (
	"fmt"
	"iter"
	"sync"

	"capscan/internal/domain"

	"go.uber.org/zap"
)

// Tx is a unit of work against a Store. Writes are staged until Commit and
// are visible to reads through the same Tx only. A Tx is safe for concurrent
// use by the discoverers of one pass.
type Tx struct {
	store *Store

	mu     sync.RWMutex
	staged map[domain.ObjectID]domain.Record
	order  map[domain.ResourceType][]domain.ObjectID
	done   bool
}

// Store upserts a record. Replacing an existing record keeps its original
// list position.
func (t *Tx) Store(rec domain.Record) error {
	if rec == nil {
		return fmt.Errorf("store: nil record")
	}
	id := rec.ObjectID()
	if id.IsZero() {
		return fmt.Errorf("store: record without object id")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return ErrTxDone
	}
	if _, staged := t.staged[id]; !staged {
		if _, committed := t.store.get(id); !committed {
			t.order[id.Type] = append(t.order[id.Type], id)
		}
	}
	t.staged[id] = rec
	return nil
}

// Get returns the record with the given id, or a *domain.NotFoundError.
// It never contacts the cloud.
func (t *Tx) Get(id domain.ObjectID) (domain.Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.done {
		return nil, ErrTxDone
	}
	if rec, ok := t.lookup(id); ok {
		return rec, nil
	}
	return nil, &domain.NotFoundError{ID: id}
}

// lookup reads staged writes first, then committed state. Callers hold t.mu.
func (t *Tx) lookup(id domain.ObjectID) (domain.Record, bool) {
	if rec, ok := t.staged[id]; ok {
		return rec, true
	}
	return t.store.get(id)
}

// List returns the records of one type from one cloud in insertion order.
// The set of ids is fixed when List is called; records stored afterwards are
// not yielded. The sequence may be ranged over more than once.
func (t *Tx) List(rt domain.ResourceType, cloud string) iter.Seq[domain.Record] {
	ids := t.snapshot(rt, cloud)

	return func(yield func(domain.Record) bool) {
		for _, id := range ids {
			t.mu.RLock()
			rec, ok := t.lookup(id)
			t.mu.RUnlock()
			if !ok {
				continue
			}
			if !yield(rec) {
				return
			}
		}
	}
}

// Len returns how many records List would yield
func (t *Tx) Len(rt domain.ResourceType, cloud string) int {
	return len(t.snapshot(rt, cloud))
}

func (t *Tx) snapshot(rt domain.ResourceType, cloud string) []domain.ObjectID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.done {
		return nil
	}

	committed := t.store.ids(rt)
	ids := make([]domain.ObjectID, 0, len(committed)+len(t.order[rt]))
	seen := make(map[domain.ObjectID]struct{}, len(committed))
	for _, id := range committed {
		seen[id] = struct{}{}
		if id.Cloud == cloud {
			ids = append(ids, id)
		}
	}
	for _, id := range t.order[rt] {
		if _, dup := seen[id]; dup {
			continue
		}
		if id.Cloud == cloud {
			ids = append(ids, id)
		}
	}
	return ids
}

// Commit publishes all staged writes at once
func (t *Tx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return ErrTxDone
	}
	t.done = true

	added := t.store.apply(t.staged, t.order)
	t.store.logger.Debug("transaction committed",
		zap.Int("written", len(t.staged)),
		zap.Int("added", added))
	t.staged, t.order = nil, nil
	return nil
}

// Rollback discards staged writes. It is a no-op on a finished Tx, so it is
// always safe to defer.
func (t *Tx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return nil
	}
	t.done = true

	if len(t.staged) > 0 {
		t.store.logger.Debug("transaction rolled back", zap.Int("discarded", len(t.staged)))
	}
	t.staged, t.order = nil, nil
	return nil
}

// Done reports whether the Tx has been committed or rolled back
func (t *Tx) Done() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.done
}
