// Package repository holds discovered records for the duration of a run.
//
// # Store and Tx
//
// Store is an in-memory index of committed records keyed by ObjectID. All
// writes go through a Tx obtained from Begin: staged records are visible to
// the Tx that wrote them and become visible to everyone else only on Commit.
// Rollback discards them. WithTransaction wraps the commit-or-rollback
// protocol around a function.
//
//	err := store.WithTransaction(ctx, func(ctx context.Context, tx *repository.Tx) error {
//		return tx.Store(tenant)
//	})
//
// Tx.List yields records of one type and cloud in first-insertion order;
// upserting an existing record keeps its position.
//
// # Persistence
//
// The Repository interface saves and restores a cloud's committed records
// between runs. The sqlite subpackage implements it.
package repository
