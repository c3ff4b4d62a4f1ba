package discovery

import (
	"context"

	"capscan/internal/cloudapi"
	"capscan/internal/domain"
	"capscan/internal/repository"

	"go.uber.org/zap"
)

// ImageDiscoverer discovers images together with their members
type ImageDiscoverer struct {
	members *NestedDiscoverer[domain.ImageMember]
	logger  *zap.Logger
}

// NewImageDiscoverer creates an image discoverer
func NewImageDiscoverer(logger *zap.Logger) *ImageDiscoverer {
	return &ImageDiscoverer{
		members: NewImageMemberDiscoverer(),
		logger:  named(logger, domain.ResourceImage),
	}
}

func (d *ImageDiscoverer) Type() domain.ResourceType { return domain.ResourceImage }

// Discover lists public and private images alike
func (d *ImageDiscoverer) Discover(ctx context.Context, cloud Cloud, tx *repository.Tx, resolver domain.RefResolver) (Stats, error) {
	filter := cloudapi.Filter{Params: map[string]string{"is_public": cloudapi.Any}}
	return bulk(ctx, cloud, tx, resolver, domain.ResourceImage, filter, d.load, d.logger)
}

func (d *ImageDiscoverer) LoadMissing(ctx context.Context, cloud Cloud, id domain.ObjectID) (domain.Record, error) {
	raw, err := fetch(ctx, cloud, id, domain.ResourceImage)
	if err != nil {
		return nil, err
	}
	return d.load(ctx, cloud, raw)
}

func (d *ImageDiscoverer) load(ctx context.Context, cloud Cloud, raw cloudapi.Raw) (domain.Record, error) {
	img, err := domain.LoadImage(cloud.Name, raw)
	if err != nil {
		return nil, err
	}

	members, err := d.members.Discover(ctx, cloud, img.ID)
	if err != nil {
		return nil, err
	}
	img.Members = append(img.Members, members...)
	return img, nil
}
