// Package service implements the operations behind the capscan commands.
//
// # Aggregation
//
// EstimateCopy, LargestServers and LargestUnusedResources are pure functions
// over a Source of committed records and a resolver. They never mutate the
// store and may run concurrently. A Filter scopes them to one cloud and
// optionally one tenant, compared on the owning tenant's primary key.
//
// # Services
//
// DiscoveryService runs a discovery pass and persists the committed records
// to a Repository. Restore loads a saved snapshot back into the store so
// reports can run without the cloud API.
//
// ReportService runs the aggregations over a read transaction with an
// offline resolver. A reference that is not in the store surfaces as a
// domain.DanglingReferenceError.
//
// # Event System
//
// Services publish progress via EventBus. Subscribers that fall behind miss
// events rather than block the publisher.
package service
