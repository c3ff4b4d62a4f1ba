package discovery

import (
	"context"

	"capscan/internal/cloudapi"
	"capscan/internal/domain"
	"capscan/internal/repository"

	"go.uber.org/zap"
)

// VolumeDiscoverer discovers block storage volumes
type VolumeDiscoverer struct {
	logger *zap.Logger
}

// NewVolumeDiscoverer creates a volume discoverer
func NewVolumeDiscoverer(logger *zap.Logger) *VolumeDiscoverer {
	return &VolumeDiscoverer{logger: named(logger, domain.ResourceVolume)}
}

func (d *VolumeDiscoverer) Type() domain.ResourceType { return domain.ResourceVolume }

func (d *VolumeDiscoverer) Discover(ctx context.Context, cloud Cloud, tx *repository.Tx, resolver domain.RefResolver) (Stats, error) {
	return bulk(ctx, cloud, tx, resolver, domain.ResourceVolume, cloudapi.Filter{}, d.load, d.logger)
}

func (d *VolumeDiscoverer) LoadMissing(ctx context.Context, cloud Cloud, id domain.ObjectID) (domain.Record, error) {
	raw, err := fetch(ctx, cloud, id, domain.ResourceVolume)
	if err != nil {
		return nil, err
	}
	return d.load(ctx, cloud, raw)
}

func (d *VolumeDiscoverer) load(_ context.Context, cloud Cloud, raw cloudapi.Raw) (domain.Record, error) {
	return domain.LoadVolume(cloud.Name, raw)
}
