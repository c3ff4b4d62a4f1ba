// Package discovery pulls records from a cloud API into a transaction.
//
// # Discoverers
//
// There is one Discoverer per stored record type (tenant, image, volume,
// server). Discover lists every raw record, validates it through the type's
// schema, attaches nested sub-records fetched by a per-parent sub-listing
// (image members, ephemeral disks), resolves its dependencies and stores it.
// A record that fails validation or references something that does not exist
// is logged, counted in Stats and skipped. Any API failure aborts the pass.
//
// LoadMissing is the single-record path used by the Resolver. It performs
// one point lookup and returns validation failures to the caller.
//
// # Resolver
//
// Resolver implements domain.RefResolver over a transaction. Misses are
// fetched once through the owning discoverer, stored, and served from the
// transaction afterwards. Offline returns a resolver that never fetches,
// for reporting over a committed store.
//
// # Registry
//
// Registry runs all registered discoverers concurrently inside a single
// transaction and commits only when all of them succeed. Progress is
// published to an optional EventPublisher.
package discovery
