package discovery

import (
	"context"

	"capscan/internal/cloudapi"
	"capscan/internal/domain"
	"capscan/internal/repository"

	"go.uber.org/zap"
)

// TenantDiscoverer discovers identity tenants
type TenantDiscoverer struct {
	logger *zap.Logger
}

// NewTenantDiscoverer creates a tenant discoverer
func NewTenantDiscoverer(logger *zap.Logger) *TenantDiscoverer {
	return &TenantDiscoverer{logger: named(logger, domain.ResourceTenant)}
}

func (d *TenantDiscoverer) Type() domain.ResourceType { return domain.ResourceTenant }

func (d *TenantDiscoverer) Discover(ctx context.Context, cloud Cloud, tx *repository.Tx, resolver domain.RefResolver) (Stats, error) {
	return bulk(ctx, cloud, tx, resolver, domain.ResourceTenant, cloudapi.Filter{}, d.load, d.logger)
}

func (d *TenantDiscoverer) LoadMissing(ctx context.Context, cloud Cloud, id domain.ObjectID) (domain.Record, error) {
	raw, err := fetch(ctx, cloud, id, domain.ResourceTenant)
	if err != nil {
		return nil, err
	}
	return d.load(ctx, cloud, raw)
}

func (d *TenantDiscoverer) load(_ context.Context, cloud Cloud, raw cloudapi.Raw) (domain.Record, error) {
	return domain.LoadTenant(cloud.Name, raw)
}

func named(logger *zap.Logger, rt domain.ResourceType) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger.Named(string(rt))
}
