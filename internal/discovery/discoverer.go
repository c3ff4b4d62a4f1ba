package discovery

import (
	"context"
	"errors"
	"fmt"

	"capscan/internal/cloudapi"
	"capscan/internal/domain"
	"capscan/internal/repository"
	"capscan/internal/schema"

	"go.uber.org/zap"
)

// Cloud is a named cloud API endpoint. The name namespaces every ObjectID
// discovered through it.
type Cloud struct {
	Name   string
	Client cloudapi.Client
}

// Stats counts the outcome of one bulk discovery
type Stats struct {
	Listed   int `json:"listed"`
	Stored   int `json:"stored"`
	Invalid  int `json:"invalid"`
	Dangling int `json:"dangling"`
}

// Add accumulates another Stats
func (s *Stats) Add(o Stats) {
	s.Listed += o.Listed
	s.Stored += o.Stored
	s.Invalid += o.Invalid
	s.Dangling += o.Dangling
}

// Skipped returns how many listed records were not stored
func (s Stats) Skipped() int {
	return s.Invalid + s.Dangling
}

// Discoverer pulls one stored record type from a cloud
type Discoverer interface {
	// Type returns the record type this discoverer produces
	Type() domain.ResourceType

	// Discover lists every record of the type, validates it, attaches nested
	// sub-records, resolves its dependencies and stores it in tx.
	// Records failing validation or holding dangling references are skipped
	// and counted; API failures abort with an *domain.UpstreamError.
	Discover(ctx context.Context, cloud Cloud, tx *repository.Tx, resolver domain.RefResolver) (Stats, error)

	// LoadMissing fetches and validates a single record without storing it.
	// Validation failures are returned, not skipped.
	LoadMissing(ctx context.Context, cloud Cloud, id domain.ObjectID) (domain.Record, error)
}

// loader builds a record from a raw payload, including nested sub-records
type loader func(ctx context.Context, cloud Cloud, raw cloudapi.Raw) (domain.Record, error)

// bulk is the list/validate/resolve/store loop shared by all discoverers
func bulk(ctx context.Context, cloud Cloud, tx *repository.Tx, resolver domain.RefResolver,
	rt domain.ResourceType, filter cloudapi.Filter, load loader, logger *zap.Logger) (Stats, error) {

	var stats Stats

	raws, err := cloud.Client.List(ctx, rt, filter)
	if err != nil {
		return stats, domain.Upstream(fmt.Sprintf("list %s", rt), err)
	}
	stats.Listed = len(raws)

	for _, raw := range raws {
		rec, err := load(ctx, cloud, raw)
		if err != nil {
			if errors.Is(err, schema.ErrValidation) {
				logger.Warn("skipping invalid record",
					zap.String("type", string(rt)),
					zap.Any("raw_id", raw["id"]),
					zap.Error(err))
				stats.Invalid++
				continue
			}
			return stats, err
		}

		if err := resolveAll(ctx, rec, resolver); err != nil {
			switch {
			case errors.Is(err, domain.ErrDanglingReference):
				logger.Warn("dropping record with dangling reference",
					zap.Stringer("object_id", rec.ObjectID()),
					zap.Error(err))
				stats.Dangling++
				continue
			case errors.Is(err, schema.ErrValidation):
				logger.Warn("dropping record with invalid dependency",
					zap.Stringer("object_id", rec.ObjectID()),
					zap.Error(err))
				stats.Invalid++
				continue
			}
			return stats, err
		}

		if err := tx.Store(rec); err != nil {
			return stats, fmt.Errorf("store %s: %w", rec.ObjectID(), err)
		}
		stats.Stored++
	}

	return stats, nil
}

// resolveAll resolves every dependency of rec so the stored graph is closed
func resolveAll(ctx context.Context, rec domain.Record, resolver domain.RefResolver) error {
	for _, dep := range rec.Dependencies() {
		if _, err := dep.Resolve(ctx, resolver); err != nil {
			return err
		}
	}
	return nil
}

// fetch performs the point lookup behind LoadMissing
func fetch(ctx context.Context, cloud Cloud, id domain.ObjectID, want domain.ResourceType) (cloudapi.Raw, error) {
	if id.Type != want {
		return nil, fmt.Errorf("load %s: wrong discoverer for %s", id, want)
	}
	if id.Cloud != cloud.Name {
		return nil, fmt.Errorf("load %s: not from cloud %q", id, cloud.Name)
	}
	raw, err := cloud.Client.Get(ctx, id.Type, id.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("load %s: %w", id, err)
		}
		return nil, domain.Upstream(fmt.Sprintf("get %s", id), err)
	}
	return raw, nil
}
