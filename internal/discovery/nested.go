package discovery

import (
	"context"
	"fmt"

	"capscan/internal/cloudapi"
	"capscan/internal/domain"
)

// NestedDiscoverer lists the sub-records owned by one parent record.
// Nested records are never stored on their own; they are attached to the
// parent before the parent is stored.
type NestedDiscoverer[T any] struct {
	rt   domain.ResourceType
	load func(raw map[string]any) (T, error)
}

// NewImageMemberDiscoverer lists the members of an image
func NewImageMemberDiscoverer() *NestedDiscoverer[domain.ImageMember] {
	return &NestedDiscoverer[domain.ImageMember]{rt: domain.ResourceImageMember, load: domain.LoadImageMember}
}

// NewEphemeralDiskDiscoverer lists the local disks of a server
func NewEphemeralDiskDiscoverer() *NestedDiscoverer[domain.EphemeralDisk] {
	return &NestedDiscoverer[domain.EphemeralDisk]{rt: domain.ResourceEphemeralDisk, load: domain.LoadEphemeralDisk}
}

// Type returns the nested record type
func (d *NestedDiscoverer[T]) Type() domain.ResourceType { return d.rt }

// Discover lists and validates the sub-records of parent. The first invalid
// entry fails the whole listing, and with it the parent.
func (d *NestedDiscoverer[T]) Discover(ctx context.Context, cloud Cloud, parent domain.ObjectID) ([]T, error) {
	raws, err := cloud.Client.List(ctx, d.rt, cloudapi.Filter{Parent: parent.ID})
	if err != nil {
		return nil, domain.Upstream(fmt.Sprintf("list %s of %s", d.rt, parent), err)
	}

	out := make([]T, 0, len(raws))
	for i, raw := range raws {
		v, err := d.load(raw)
		if err != nil {
			return nil, fmt.Errorf("%s of %s, entry %d: %w", d.rt, parent, i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
