package repository

import (
	"context"
	"fmt"

	"capscan/internal/domain"
)

// Repository persists committed records between runs
type Repository interface {
	// SaveSnapshot replaces every stored record of a cloud with records.
	// It returns the id of the recorded run.
	SaveSnapshot(ctx context.Context, cloud string, records []domain.Record) (string, error)

	// LoadSnapshot returns the stored records of a cloud in discovery order
	LoadSnapshot(ctx context.Context, cloud string) ([]domain.Record, error)

	// Close releases resources
	Close() error
}

// Snapshot collects every committed record of a cloud in per-type
// insertion order, tenants first.
func Snapshot(ctx context.Context, s *Store, cloud string) ([]domain.Record, error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var records []domain.Record
	for _, rt := range StoredTypes {
		for rec := range tx.List(rt, cloud) {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Restore loads the saved snapshot of cloud from repo into s and returns how
// many records it held
func Restore(ctx context.Context, s *Store, repo Repository, cloud string) (int, error) {
	records, err := repo.LoadSnapshot(ctx, cloud)
	if err != nil {
		return 0, fmt.Errorf("load snapshot %s: %w", cloud, err)
	}
	if err := s.Import(ctx, records); err != nil {
		return 0, fmt.Errorf("restore %s: %w", cloud, err)
	}
	return len(records), nil
}

// StoredTypes lists the record types a Store holds, dependencies first
var StoredTypes = []domain.ResourceType{
	domain.ResourceTenant,
	domain.ResourceImage,
	domain.ResourceVolume,
	domain.ResourceServer,
}
