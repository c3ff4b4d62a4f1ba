// Package domain defines the typed records discovered from a cloud and the
// errors shared by the discovery and reporting layers.
//
// # Identity
//
// ObjectID is the composite identity (cloud, resource type, primary key) of a
// discovered resource. It is a comparable value and is used directly as a map
// key for stores and dedup sets.
//
// # Records
//
// Tenant, Image, Volume and Server are stored records; each implements Record.
// ImageMember and EphemeralDisk are nested sub-records owned by an Image or a
// Server. They have no ObjectID and are never stored on their own.
//
// Each record type has a static schema table (TenantSchema, ImageSchema, ...)
// and a Load function that validates a raw API payload through it.
//
// # Dependencies
//
// Ref is an unresolved reference to another record. Resolve dereferences it
// through a RefResolver, which may fetch the record from the cloud when it has
// not been discovered yet.
//
// # Errors
//
// NotFoundError, DanglingReferenceError and UpstreamError carry the failure
// taxonomy; match them with errors.Is against ErrNotFound,
// ErrDanglingReference and ErrUpstreamUnavailable. Schema failures are
// schema.ValidationError.
//
// # Units
//
// Every record Size is in bytes. Volume sizes arrive in GiB and are converted
// by LoadVolume.
package domain
