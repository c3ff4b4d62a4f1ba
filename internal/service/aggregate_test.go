package service

import (
	"context"
	"errors"
	"testing"

	"capscan/internal/discovery"
	"capscan/internal/domain"
	"capscan/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cloudName = "src"

func tenant(id string) *domain.Tenant {
	return &domain.Tenant{ID: domain.NewObjectID(cloudName, domain.ResourceTenant, id), Name: id, Enabled: true}
}

func image(id, owner string, size int64) *domain.Image {
	return &domain.Image{
		ID:     domain.NewObjectID(cloudName, domain.ResourceImage, id),
		Name:   id,
		Tenant: domain.NewRef(cloudName, domain.ResourceTenant, owner),
		Size:   size,
	}
}

func volume(id, owner string, size int64) *domain.Volume {
	return &domain.Volume{
		ID:     domain.NewObjectID(cloudName, domain.ResourceVolume, id),
		Name:   id,
		Tenant: domain.NewRef(cloudName, domain.ResourceTenant, owner),
		Size:   size,
	}
}

type disk int64

func server(id, owner, imageID string, disks []disk, volumes ...string) *domain.Server {
	s := &domain.Server{
		ID:     domain.NewObjectID(cloudName, domain.ResourceServer, id),
		Name:   id,
		Tenant: domain.NewRef(cloudName, domain.ResourceTenant, owner),
	}
	if imageID != "" {
		ref := domain.NewRef(cloudName, domain.ResourceImage, imageID)
		s.Image = &ref
	}
	for _, v := range volumes {
		s.AttachedVolumes = append(s.AttachedVolumes, domain.NewRef(cloudName, domain.ResourceVolume, v))
	}
	for _, size := range disks {
		s.EphemeralDisks = append(s.EphemeralDisks, domain.EphemeralDisk{Path: "/dev/vdb", Size: int64(size)})
	}
	return s
}

// withTx imports records into a fresh store and hands fn a read transaction
func withTx(t *testing.T, records []domain.Record, fn func(tx *repository.Tx, resolver domain.RefResolver)) {
	t.Helper()
	store := repository.NewStore(nil)
	require.NoError(t, store.Import(context.Background(), records))

	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()
	fn(tx, discovery.Offline(tx))
}

// sharedImage is two servers booted from one image, each with its own volume
func sharedImage() []domain.Record {
	return []domain.Record{
		tenant("t1"),
		image("i1", "t1", 100),
		volume("v1", "t1", 20),
		volume("v2", "t1", 30),
		server("s1", "t1", "i1", nil, "v1"),
		server("s2", "t1", "i1", nil, "v2"),
	}
}

// mixedTenants adds a second tenant booting from t1's image and unused
// resources on t1
func mixedTenants() []domain.Record {
	return append(sharedImage(),
		tenant("t2"),
		image("i3", "t1", 40),
		volume("v3", "t2", 3),
		volume("v4", "t1", 5),
		server("s3", "t2", "i1", []disk{10}, "v3"),
	)
}

func TestEstimateCopySharedImage(t *testing.T) {
	withTx(t, sharedImage(), func(tx *repository.Tx, resolver domain.RefResolver) {
		est, err := EstimateCopy(context.Background(), tx, resolver, Filter{Cloud: cloudName})
		require.NoError(t, err)

		assert.Equal(t, 2, est.Servers)
		assert.Equal(t, 1, est.Images)
		assert.Equal(t, int64(100), est.ImageBytes)
		assert.Equal(t, 2, est.Volumes)
		assert.Equal(t, int64(50), est.VolumeBytes)
		assert.Equal(t, int64(0), est.EphemeralBytes)
		assert.Equal(t, int64(150), est.TotalBytes())
	})
}

func TestEstimateCopyTenantScope(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   CopyEstimate
	}{
		{
			name:   "all tenants",
			filter: Filter{Cloud: cloudName},
			want: CopyEstimate{
				Servers: 3, Images: 2, ImageBytes: 140,
				EphemeralDisks: 1, EphemeralBytes: 10,
				Volumes: 4, VolumeBytes: 58,
			},
		},
		{
			name:   "owner of the shared image",
			filter: Filter{Cloud: cloudName, Tenant: "t1"},
			want: CopyEstimate{
				Servers: 2, Images: 2, ImageBytes: 140,
				Volumes: 3, VolumeBytes: 55,
			},
		},
		{
			name:   "tenant booting a foreign image",
			filter: Filter{Cloud: cloudName, Tenant: "t2"},
			want: CopyEstimate{
				Servers: 1, Images: 1, ImageBytes: 100,
				EphemeralDisks: 1, EphemeralBytes: 10,
				Volumes: 1, VolumeBytes: 3,
			},
		},
		{
			name:   "unknown tenant",
			filter: Filter{Cloud: cloudName, Tenant: "nobody"},
		},
		{
			name:   "other cloud",
			filter: Filter{Cloud: "dst"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withTx(t, mixedTenants(), func(tx *repository.Tx, resolver domain.RefResolver) {
				est, err := EstimateCopy(context.Background(), tx, resolver, tt.filter)
				require.NoError(t, err)

				tt.want.Filter = tt.filter
				assert.Equal(t, tt.want, *est)
			})
		})
	}
}

func TestEstimateCopyCountsSharedVolumeOnce(t *testing.T) {
	records := []domain.Record{
		tenant("t1"),
		volume("v1", "t1", 20),
		server("s1", "t1", "", []disk{1, 2}, "v1"),
		server("s2", "t1", "", []disk{4}, "v1", "v1"),
	}
	withTx(t, records, func(tx *repository.Tx, resolver domain.RefResolver) {
		est, err := EstimateCopy(context.Background(), tx, resolver, Filter{Cloud: cloudName})
		require.NoError(t, err)

		assert.Equal(t, 1, est.Volumes)
		assert.Equal(t, int64(20), est.VolumeBytes)
		assert.Equal(t, 3, est.EphemeralDisks)
		assert.Equal(t, int64(7), est.EphemeralBytes)
		assert.Equal(t, 0, est.Images)
	})
}

func TestLargestServers(t *testing.T) {
	withTx(t, sharedImage(), func(tx *repository.Tx, resolver domain.RefResolver) {
		servers, err := LargestServers(context.Background(), tx, resolver, Filter{Cloud: cloudName}, 5)
		require.NoError(t, err)
		require.Len(t, servers, 2)

		assert.Equal(t, "s2", servers[0].ID.ID)
		assert.Equal(t, int64(130), servers[0].Size)
		assert.Equal(t, "s1", servers[1].ID.ID)
		assert.Equal(t, ServerUsage{
			ID:         domain.NewObjectID(cloudName, domain.ResourceServer, "s1"),
			Name:       "s1",
			Size:       120,
			ImageSize:  100,
			VolumeSize: 20,
		}, servers[1])
	})
}

func TestLargestServersDoesNotDeduplicateWithinServer(t *testing.T) {
	records := []domain.Record{
		tenant("t1"),
		volume("v1", "t1", 20),
		server("s1", "t1", "", []disk{5}, "v1", "v1"),
	}
	withTx(t, records, func(tx *repository.Tx, resolver domain.RefResolver) {
		servers, err := LargestServers(context.Background(), tx, resolver, Filter{Cloud: cloudName}, 1)
		require.NoError(t, err)
		require.Len(t, servers, 1)
		assert.Equal(t, int64(45), servers[0].Size)
		assert.Equal(t, int64(40), servers[0].VolumeSize)
	})
}

func TestLargestServersTenantScope(t *testing.T) {
	withTx(t, mixedTenants(), func(tx *repository.Tx, resolver domain.RefResolver) {
		servers, err := LargestServers(context.Background(), tx, resolver, Filter{Cloud: cloudName, Tenant: "t2"}, 5)
		require.NoError(t, err)
		require.Len(t, servers, 1)
		assert.Equal(t, "s3", servers[0].Name)
		assert.Equal(t, int64(113), servers[0].Size)
	})
}

func TestLargestUnusedResources(t *testing.T) {
	records := []domain.Record{
		tenant("t1"),
		volume("a", "t1", 10),
		volume("b", "t1", 50),
		volume("c", "t1", 5),
		volume("d", "t1", 30),
	}

	tests := []struct {
		name string
		k    int
		want []string
	}{
		{name: "top two", k: 2, want: []string{"b", "d"}},
		{name: "k larger than set", k: 10, want: []string{"b", "d", "a", "c"}},
		{name: "k zero", k: 0, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withTx(t, records, func(tx *repository.Tx, _ domain.RefResolver) {
				unused, err := LargestUnusedResources(context.Background(), tx, Filter{Cloud: cloudName}, tt.k)
				require.NoError(t, err)

				got := make([]string, 0, len(unused.Volumes))
				for _, v := range unused.Volumes {
					got = append(got, v.Name)
				}
				assert.Equal(t, tt.want, got)
				assert.Equal(t, 4, unused.VolumesCount)
				assert.Equal(t, int64(95), unused.VolumesTotal)
				assert.Empty(t, unused.Images)
			})
		})
	}
}

func TestLargestUnusedResourcesPartition(t *testing.T) {
	t.Run("shared image scenario has nothing unused", func(t *testing.T) {
		withTx(t, sharedImage(), func(tx *repository.Tx, _ domain.RefResolver) {
			unused, err := LargestUnusedResources(context.Background(), tx, Filter{Cloud: cloudName}, 5)
			require.NoError(t, err)
			assert.Empty(t, unused.Volumes)
			assert.Empty(t, unused.Images)
			assert.Zero(t, unused.VolumesTotal)
			assert.Zero(t, unused.ImagesTotal)
		})
	})

	t.Run("tenant owning unused resources", func(t *testing.T) {
		withTx(t, mixedTenants(), func(tx *repository.Tx, _ domain.RefResolver) {
			unused, err := LargestUnusedResources(context.Background(), tx, Filter{Cloud: cloudName, Tenant: "t1"}, 5)
			require.NoError(t, err)

			require.Len(t, unused.Volumes, 1)
			assert.Equal(t, "v4", unused.Volumes[0].Name)
			require.Len(t, unused.Images, 1)
			assert.Equal(t, "i3", unused.Images[0].Name)
			assert.Equal(t, int64(40), unused.ImagesTotal)
		})
	})

	t.Run("image used only by another tenant counts as unused", func(t *testing.T) {
		records := []domain.Record{
			tenant("t1"), tenant("t2"),
			image("i1", "t1", 100),
			server("s1", "t2", "i1", nil),
		}
		withTx(t, records, func(tx *repository.Tx, _ domain.RefResolver) {
			unused, err := LargestUnusedResources(context.Background(), tx, Filter{Cloud: cloudName, Tenant: "t1"}, 5)
			require.NoError(t, err)
			require.Len(t, unused.Images, 1)
			assert.Equal(t, "i1", unused.Images[0].Name)

			unused, err = LargestUnusedResources(context.Background(), tx, Filter{Cloud: cloudName}, 5)
			require.NoError(t, err)
			assert.Empty(t, unused.Images)
		})
	})
}

func TestAggregationSurfacesDanglingReference(t *testing.T) {
	records := []domain.Record{
		tenant("t1"),
		server("s1", "t1", "", nil, "missing"),
	}
	missing := domain.NewObjectID(cloudName, domain.ResourceVolume, "missing")

	withTx(t, records, func(tx *repository.Tx, resolver domain.RefResolver) {
		_, err := EstimateCopy(context.Background(), tx, resolver, Filter{Cloud: cloudName})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrDanglingReference)

		var dangling *domain.DanglingReferenceError
		require.True(t, errors.As(err, &dangling))
		assert.Equal(t, missing, dangling.Ref)

		_, err = LargestServers(context.Background(), tx, resolver, Filter{Cloud: cloudName}, 3)
		assert.ErrorIs(t, err, domain.ErrDanglingReference)

		// the partition needs ids only
		_, err = LargestUnusedResources(context.Background(), tx, Filter{Cloud: cloudName}, 3)
		assert.NoError(t, err)
	})
}

func TestTopK(t *testing.T) {
	t.Run("ties keep offer order", func(t *testing.T) {
		top := NewTopK[string](2)
		top.Offer("a", 5)
		top.Offer("b", 5)
		top.Offer("c", 5)
		assert.Equal(t, []string{"a", "b"}, top.Result())
	})

	t.Run("larger late value evicts", func(t *testing.T) {
		top := NewTopK[string](2)
		for i, size := range []int64{1, 2, 3, 9, 4} {
			top.Offer(string(rune('a'+i)), size)
		}
		assert.Equal(t, []string{"d", "e"}, top.Result())
	})

	t.Run("negative k", func(t *testing.T) {
		top := NewTopK[int](-1)
		top.Offer(1, 1)
		assert.Empty(t, top.Result())
	})
}
