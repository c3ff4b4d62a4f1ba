package service

import (
	"context"
	"iter"

	"capscan/internal/domain"
)

// Source lists committed records. *repository.Tx implements it.
type Source interface {
	List(rt domain.ResourceType, cloud string) iter.Seq[domain.Record]
}

// Filter scopes an aggregation to one cloud and optionally one tenant
type Filter struct {
	Cloud string `json:"cloud" yaml:"cloud"`
	// Tenant is a tenant primary key; empty means every tenant
	Tenant string `json:"tenant,omitempty" yaml:"tenant,omitempty"`
}

func (f Filter) matches(rec domain.Record) bool {
	return f.Tenant == "" || rec.Owner().Target.ID == f.Tenant
}

// filtered yields the records of type rt in f's scope as T
func filtered[T domain.Record](src Source, rt domain.ResourceType, f Filter) iter.Seq[T] {
	return func(yield func(T) bool) {
		for rec := range src.List(rt, f.Cloud) {
			typed, ok := rec.(T)
			if !ok || !f.matches(rec) {
				continue
			}
			if !yield(typed) {
				return
			}
		}
	}
}

// CopyEstimate is the storage a migration of the scope would copy. Sizes
// are in bytes.
type CopyEstimate struct {
	Filter         Filter `json:"filter" yaml:"filter"`
	Servers        int    `json:"servers" yaml:"servers"`
	Images         int    `json:"images" yaml:"images"`
	ImageBytes     int64  `json:"image_bytes" yaml:"image_bytes"`
	EphemeralDisks int    `json:"ephemeral_disks" yaml:"ephemeral_disks"`
	EphemeralBytes int64  `json:"ephemeral_bytes" yaml:"ephemeral_bytes"`
	Volumes        int    `json:"volumes" yaml:"volumes"`
	VolumeBytes    int64  `json:"volume_bytes" yaml:"volume_bytes"`
}

// TotalBytes sums every category
func (e *CopyEstimate) TotalBytes() int64 {
	return e.ImageBytes + e.EphemeralBytes + e.VolumeBytes
}

// EstimateCopy totals the images, volumes and ephemeral disks reachable from
// the servers in scope, plus the volumes and images in scope no server
// references. Each image and volume is counted once however many servers
// share it.
func EstimateCopy(ctx context.Context, src Source, resolver domain.RefResolver, f Filter) (*CopyEstimate, error) {
	est := &CopyEstimate{Filter: f}
	images := make(map[domain.ObjectID]struct{})
	volumes := make(map[domain.ObjectID]struct{})

	for srv := range filtered[*domain.Server](src, domain.ResourceServer, f) {
		est.Servers++
		for _, disk := range srv.EphemeralDisks {
			est.EphemeralDisks++
			est.EphemeralBytes += disk.Size
		}

		if srv.Image != nil {
			if _, seen := images[srv.Image.Target]; !seen {
				img, err := domain.ResolveAs[*domain.Image](ctx, *srv.Image, resolver)
				if err != nil {
					return nil, err
				}
				images[img.ID] = struct{}{}
				est.Images++
				est.ImageBytes += img.Size
			}
		}

		for _, ref := range srv.AttachedVolumes {
			if _, seen := volumes[ref.Target]; seen {
				continue
			}
			vol, err := domain.ResolveAs[*domain.Volume](ctx, ref, resolver)
			if err != nil {
				return nil, err
			}
			volumes[vol.ID] = struct{}{}
			est.Volumes++
			est.VolumeBytes += vol.Size
		}
	}

	for vol := range filtered[*domain.Volume](src, domain.ResourceVolume, f) {
		if _, seen := volumes[vol.ID]; !seen {
			volumes[vol.ID] = struct{}{}
			est.Volumes++
			est.VolumeBytes += vol.Size
		}
	}
	for img := range filtered[*domain.Image](src, domain.ResourceImage, f) {
		if _, seen := images[img.ID]; !seen {
			images[img.ID] = struct{}{}
			est.Images++
			est.ImageBytes += img.Size
		}
	}

	return est, nil
}

// ServerUsage is the storage held by one server, in bytes
type ServerUsage struct {
	ID            domain.ObjectID `json:"id" yaml:"id"`
	Name          string          `json:"name" yaml:"name"`
	Size          int64           `json:"size" yaml:"size"`
	ImageSize     int64           `json:"image_size" yaml:"image_size"`
	EphemeralSize int64           `json:"ephemeral_size" yaml:"ephemeral_size"`
	VolumeSize    int64           `json:"volume_size" yaml:"volume_size"`
}

// MeasureServer sums a server's image, ephemeral disks and attached volumes.
// Nothing is deduplicated within the server.
func MeasureServer(ctx context.Context, srv *domain.Server, resolver domain.RefResolver) (ServerUsage, error) {
	u := ServerUsage{ID: srv.ID, Name: srv.Name}

	if srv.Image != nil {
		img, err := domain.ResolveAs[*domain.Image](ctx, *srv.Image, resolver)
		if err != nil {
			return u, err
		}
		u.ImageSize = img.Size
	}
	for _, disk := range srv.EphemeralDisks {
		u.EphemeralSize += disk.Size
	}
	for _, ref := range srv.AttachedVolumes {
		vol, err := domain.ResolveAs[*domain.Volume](ctx, ref, resolver)
		if err != nil {
			return u, err
		}
		u.VolumeSize += vol.Size
	}

	u.Size = u.ImageSize + u.EphemeralSize + u.VolumeSize
	return u, nil
}

// LargestServers returns up to k servers in scope, largest first. Servers
// of equal size keep discovery order.
func LargestServers(ctx context.Context, src Source, resolver domain.RefResolver, f Filter, k int) ([]ServerUsage, error) {
	top := NewTopK[ServerUsage](k)
	for srv := range filtered[*domain.Server](src, domain.ResourceServer, f) {
		u, err := MeasureServer(ctx, srv, resolver)
		if err != nil {
			return nil, err
		}
		top.Offer(u, u.Size)
	}
	return top.Result(), nil
}

// ResourceUsage is one volume or image, sized in bytes
type ResourceUsage struct {
	ID   domain.ObjectID `json:"id" yaml:"id"`
	Name string          `json:"name" yaml:"name"`
	Size int64           `json:"size" yaml:"size"`
}

// UnusedResources lists the largest volumes and images no server in scope
// references. The totals and counts cover every unused resource, not only
// the listed ones.
type UnusedResources struct {
	Filter       Filter          `json:"filter" yaml:"filter"`
	Volumes      []ResourceUsage `json:"volumes" yaml:"volumes"`
	VolumesCount int             `json:"volumes_count" yaml:"volumes_count"`
	VolumesTotal int64           `json:"volumes_total" yaml:"volumes_total"`
	Images       []ResourceUsage `json:"images" yaml:"images"`
	ImagesCount  int             `json:"images_count" yaml:"images_count"`
	ImagesTotal  int64           `json:"images_total" yaml:"images_total"`
}

// LargestUnusedResources partitions volumes and images in scope into used
// and unused and selects the k largest unused of each
func LargestUnusedResources(_ context.Context, src Source, f Filter, k int) (*UnusedResources, error) {
	usedVolumes := make(map[domain.ObjectID]struct{})
	usedImages := make(map[domain.ObjectID]struct{})
	for srv := range filtered[*domain.Server](src, domain.ResourceServer, f) {
		if srv.Image != nil {
			usedImages[srv.Image.Target] = struct{}{}
		}
		for _, ref := range srv.AttachedVolumes {
			usedVolumes[ref.Target] = struct{}{}
		}
	}

	out := &UnusedResources{Filter: f}

	topVolumes := NewTopK[ResourceUsage](k)
	for vol := range filtered[*domain.Volume](src, domain.ResourceVolume, f) {
		if _, used := usedVolumes[vol.ID]; used {
			continue
		}
		out.VolumesCount++
		out.VolumesTotal += vol.Size
		topVolumes.Offer(ResourceUsage{ID: vol.ID, Name: vol.Name, Size: vol.Size}, vol.Size)
	}
	out.Volumes = topVolumes.Result()

	topImages := NewTopK[ResourceUsage](k)
	for img := range filtered[*domain.Image](src, domain.ResourceImage, f) {
		if _, used := usedImages[img.ID]; used {
			continue
		}
		out.ImagesCount++
		out.ImagesTotal += img.Size
		topImages.Offer(ResourceUsage{ID: img.ID, Name: img.Name, Size: img.Size}, img.Size)
	}
	out.Images = topImages.Result()

	return out, nil
}
