package discovery

import (
	"context"

	"capscan/internal/cloudapi"
	"capscan/internal/domain"
	"capscan/internal/repository"

	"go.uber.org/zap"
)

// ServerDiscoverer discovers servers together with their ephemeral disks
type ServerDiscoverer struct {
	disks  *NestedDiscoverer[domain.EphemeralDisk]
	logger *zap.Logger
}

// NewServerDiscoverer creates a server discoverer
func NewServerDiscoverer(logger *zap.Logger) *ServerDiscoverer {
	return &ServerDiscoverer{
		disks:  NewEphemeralDiskDiscoverer(),
		logger: named(logger, domain.ResourceServer),
	}
}

func (d *ServerDiscoverer) Type() domain.ResourceType { return domain.ResourceServer }

func (d *ServerDiscoverer) Discover(ctx context.Context, cloud Cloud, tx *repository.Tx, resolver domain.RefResolver) (Stats, error) {
	return bulk(ctx, cloud, tx, resolver, domain.ResourceServer, cloudapi.Filter{}, d.load, d.logger)
}

func (d *ServerDiscoverer) LoadMissing(ctx context.Context, cloud Cloud, id domain.ObjectID) (domain.Record, error) {
	raw, err := fetch(ctx, cloud, id, domain.ResourceServer)
	if err != nil {
		return nil, err
	}
	return d.load(ctx, cloud, raw)
}

func (d *ServerDiscoverer) load(ctx context.Context, cloud Cloud, raw cloudapi.Raw) (domain.Record, error) {
	srv, err := domain.LoadServer(cloud.Name, raw)
	if err != nil {
		return nil, err
	}

	disks, err := d.disks.Discover(ctx, cloud, srv.ID)
	if err != nil {
		return nil, err
	}
	srv.EphemeralDisks = append(srv.EphemeralDisks, disks...)
	return srv, nil
}
