package domain

import (
	"context"
	"fmt"
)

// RefResolver dereferences ObjectIDs to records.
// Implementations may fetch missing records from the cloud on demand.
type RefResolver interface {
	Resolve(ctx context.Context, id ObjectID) (Record, error)
}

// Ref is an unresolved dependency on another record
type Ref struct {
	Target ObjectID `json:"target" yaml:"target"`
}

// NewRef creates a reference to the resource with the given foreign key
func NewRef(cloud string, target ResourceType, key string) Ref {
	return Ref{Target: NewObjectID(cloud, target, key)}
}

// IsZero reports whether the reference is unset
func (r Ref) IsZero() bool {
	return r.Target.IsZero()
}

// Resolve returns the referenced record.
// The returned record always carries the ObjectID the reference declares.
func (r Ref) Resolve(ctx context.Context, resolver RefResolver) (Record, error) {
	if r.IsZero() {
		return nil, fmt.Errorf("resolve: empty reference")
	}

	rec, err := resolver.Resolve(ctx, r.Target)
	if err != nil {
		return nil, err
	}
	if got := rec.ObjectID(); got != r.Target {
		return nil, fmt.Errorf("resolve %s: resolver returned %s", r.Target, got)
	}
	return rec, nil
}

// ResolveAs resolves a reference and asserts the record's concrete type
func ResolveAs[T Record](ctx context.Context, r Ref, resolver RefResolver) (T, error) {
	var zero T

	rec, err := r.Resolve(ctx, resolver)
	if err != nil {
		return zero, err
	}
	typed, ok := rec.(T)
	if !ok {
		return zero, fmt.Errorf("resolve %s: unexpected record type %T", r.Target, rec)
	}
	return typed, nil
}
