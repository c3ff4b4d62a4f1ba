package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"capscan/internal/domain"
	"capscan/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Resolver dereferences ObjectIDs against a transaction, fetching missing
// records from the cloud through the owning discoverer.
//
// A fetched record is stored in the transaction, so every later resolution
// of the same id is a store hit. Concurrent misses on one id share a single
// point lookup.
type Resolver struct {
	tx          *repository.Tx
	cloud       Cloud
	discoverers map[domain.ResourceType]Discoverer
	group       singleflight.Group
	fetched     atomic.Int64
	logger      *zap.Logger
}

// NewResolver creates a resolver that can fetch the types of discoverers
func NewResolver(tx *repository.Tx, cloud Cloud, discoverers []Discoverer, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		tx:          tx,
		cloud:       cloud,
		discoverers: make(map[domain.ResourceType]Discoverer, len(discoverers)),
		logger:      logger.Named("resolver"),
	}
	for _, d := range discoverers {
		r.discoverers[d.Type()] = d
	}
	return r
}

// Offline creates a resolver that only consults tx. Every miss is a
// dangling reference.
func Offline(tx *repository.Tx) *Resolver {
	return NewResolver(tx, Cloud{}, nil, nil)
}

// Fetched returns how many records were loaded by point lookup
func (r *Resolver) Fetched() int {
	return int(r.fetched.Load())
}

// Resolve implements domain.RefResolver
func (r *Resolver) Resolve(ctx context.Context, id domain.ObjectID) (domain.Record, error) {
	rec, err := r.tx.Get(id)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	d, ok := r.discoverers[id.Type]
	if !ok || id.Cloud != r.cloud.Name {
		return nil, &domain.DanglingReferenceError{Ref: id, Err: err}
	}

	v, err, shared := r.group.Do(id.String(), func() (any, error) {
		return r.load(ctx, d, id)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.DanglingReferenceError{Ref: id, Err: err}
		}
		return nil, err
	}
	if shared {
		r.logger.Debug("shared point lookup", zap.Stringer("object_id", id))
	}
	return v.(domain.Record), nil
}

func (r *Resolver) load(ctx context.Context, d Discoverer, id domain.ObjectID) (domain.Record, error) {
	// a concurrent caller may have stored it since our miss
	if rec, err := r.tx.Get(id); err == nil {
		return rec, nil
	}

	r.logger.Debug("resolving by point lookup", zap.Stringer("object_id", id))
	rec, err := d.LoadMissing(ctx, r.cloud, id)
	if err != nil {
		return nil, err
	}
	if got := rec.ObjectID(); got != id {
		return nil, fmt.Errorf("resolve %s: point lookup returned %s", id, got)
	}

	if err := resolveAll(ctx, rec, r); err != nil {
		return nil, fmt.Errorf("resolve %s: %w", id, err)
	}
	if err := r.tx.Store(rec); err != nil {
		return nil, fmt.Errorf("resolve %s: %w", id, err)
	}
	r.fetched.Add(1)
	return rec, nil
}
