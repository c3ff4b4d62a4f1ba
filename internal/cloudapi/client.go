// Package cloudapi defines the cloud management API the discoverers read
// from and a YAML inventory-backed implementation of it.
package cloudapi

import (
	"context"
	"fmt"
	"maps"

	"capscan/internal/domain"
)

// Raw is an untyped API payload
type Raw = map[string]any

// Any disables a listing filter parameter. Image listings pass
// is_public=Any to see both public and private images.
const Any = "none"

// Filter narrows a bulk listing
type Filter struct {
	// Parent scopes sub-listings (image members, ephemeral disks) to one owner
	Parent string
	// Params are matched by equality against the raw payload
	Params map[string]string
}

// Matches reports whether raw satisfies every filter parameter
func (f Filter) Matches(raw Raw) bool {
	for k, want := range f.Params {
		if want == Any {
			continue
		}
		v, ok := raw[k]
		if !ok || fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}

// Client is a cloud management API.
// Both calls may block on the network; failures other than a missing
// resource are reported as-is and classified by the caller.
type Client interface {
	// List returns every raw record of a type matching the filter
	List(ctx context.Context, rt domain.ResourceType, filter Filter) ([]Raw, error)

	// Get fetches one record by primary key. A missing resource yields an
	// error matching domain.ErrNotFound.
	Get(ctx context.Context, rt domain.ResourceType, id string) (Raw, error)
}

// NotFound builds the error Client.Get returns for a missing resource
func NotFound(rt domain.ResourceType, id string) error {
	return fmt.Errorf("get %s %q: %w", rt, id, domain.ErrNotFound)
}

// cloneRaw copies a payload so callers cannot alias client state
func cloneRaw(raw Raw) Raw {
	return maps.Clone(raw)
}
