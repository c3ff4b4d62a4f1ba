package service

import (
	"context"
	"testing"
	"time"

	"capscan/internal/cloudapi"
	"capscan/internal/discovery"
	"capscan/internal/domain"
	"capscan/internal/repository"
	"capscan/internal/repository/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const inventory = `
tenants:
  - {id: t1, name: admin}
images:
  - {id: i1, name: base, owner: t1, checksum: null, size: 100, is_public: true,
     protected: false, container_format: bare, disk_format: raw, min_disk: 0, min_ram: 0}
  - {id: i2, name: spare, owner: t1, checksum: null, size: 7, is_public: false,
     protected: false, container_format: bare, disk_format: qcow2, min_disk: 0, min_ram: 0}
volumes:
  - {id: v1, name: data1, tenant_id: t1, size: 2, status: in-use}
  - {id: v2, name: data2, tenant_id: t1, size: 3, status: in-use}
servers:
  - {id: s1, name: web, tenant_id: t1, status: ACTIVE, image_id: i1, volume_ids: [v1]}
  - {id: s2, name: db, tenant_id: t1, status: ACTIVE, image_id: i1, volume_ids: [v2]}
ephemeral_disks:
  s1:
    - {path: /disk, size: 10}
`

const gib = int64(1) << 30

func newCloud(t *testing.T) discovery.Cloud {
	t.Helper()
	fixture, err := cloudapi.ParseYAML([]byte(inventory))
	require.NoError(t, err)
	return discovery.Cloud{Name: cloudName, Client: fixture}
}

func newTestRepo(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newDiscoveryService(t *testing.T, store *repository.Store, repo repository.Repository, bus *EventBus) *DiscoveryService {
	t.Helper()
	logger := zaptest.NewLogger(t)
	registry := discovery.NewDefaultRegistry(store, discovery.Config{Concurrency: 2}, logger)
	return NewDiscoveryService(store, registry, repo, bus, logger)
}

func drain(ch <-chan Event) []EventType {
	var types []EventType
	for {
		select {
		case e := <-ch:
			types = append(types, e.Type)
		default:
			return types
		}
	}
}

func TestDiscoverSavesSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	bus := NewEventBus()
	events := make(chan Event, 32)
	bus.Subscribe(events)

	svc := newDiscoveryService(t, repository.NewStore(nil), repo, bus)
	result, err := svc.Discover(ctx, newCloud(t))
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 7, result.Total().Stored)

	run, err := repo.LastRun(ctx, cloudName)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, result.RunID, run.ID)
	assert.Equal(t, 7, run.Total())
	assert.Equal(t, 2, run.Counts[domain.ResourceServer])

	got := drain(events)
	require.NotEmpty(t, got)
	assert.Equal(t, EventDiscoveryStarted, got[0])
	assert.Equal(t, EventSnapshotSaved, got[len(got)-1])
	assert.Contains(t, got, EventDiscoveryCompleted)
}

func TestDiscoverWithoutRepository(t *testing.T) {
	store := repository.NewStore(nil)
	svc := newDiscoveryService(t, store, nil, nil)

	result, err := svc.Discover(context.Background(), newCloud(t))
	require.NoError(t, err)
	assert.Empty(t, result.RunID)
	assert.Equal(t, 2, store.Len(domain.ResourceServer, cloudName))

	_, err = svc.Restore(context.Background(), cloudName)
	assert.Error(t, err)
}

func TestDiscoverFailureSavesNothing(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	cloud := newCloud(t)
	cloud.Client.(*cloudapi.Fixture).FailList[domain.ResourceVolume] = assert.AnError

	svc := newDiscoveryService(t, repository.NewStore(nil), repo, nil)
	_, err := svc.Discover(ctx, cloud)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)

	run, err := repo.LastRun(ctx, cloudName)
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestRestoreMatchesLiveReport(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	filter := Filter{Cloud: cloudName}

	live := repository.NewStore(nil)
	_, err := newDiscoveryService(t, live, repo, nil).Discover(ctx, newCloud(t))
	require.NoError(t, err)

	restored := repository.NewStore(nil)
	n, err := newDiscoveryService(t, restored, repo, nil).Restore(ctx, cloudName)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	want, err := NewReportService(live, nil).Estimate(ctx, filter)
	require.NoError(t, err)
	got, err := NewReportService(restored, nil).Estimate(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Equal(t, int64(107), got.ImageBytes)
	assert.Equal(t, 5*gib, got.VolumeBytes)
	assert.Equal(t, int64(10), got.EphemeralBytes)
}

func TestReportServiceFull(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(nil)
	_, err := newDiscoveryService(t, store, nil, nil).Discover(ctx, newCloud(t))
	require.NoError(t, err)

	bus := NewEventBus()
	events := make(chan Event, 1)
	bus.Subscribe(events)
	svc := NewReportService(store, bus)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 7200)) }

	report, err := svc.Full(ctx, Filter{Cloud: cloudName, Tenant: "t1"}, 1)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), report.GeneratedAt)
	assert.Equal(t, 1, report.Limit)
	assert.Equal(t, 2, report.Estimate.Servers)

	require.Len(t, report.LargestServers, 1)
	assert.Equal(t, "db", report.LargestServers[0].Name)
	assert.Equal(t, 100+3*gib, report.LargestServers[0].Size)

	assert.Empty(t, report.Unused.Volumes)
	require.Len(t, report.Unused.Images, 1)
	assert.Equal(t, "spare", report.Unused.Images[0].Name)

	assert.Equal(t, []EventType{EventReportGenerated}, drain(events))
}

func TestReportServiceSingleQueries(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(nil)
	_, err := newDiscoveryService(t, store, nil, nil).Discover(ctx, newCloud(t))
	require.NoError(t, err)
	svc := NewReportService(store, nil)
	filter := Filter{Cloud: cloudName}

	servers, err := svc.LargestServers(ctx, filter, 10)
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, "db", servers[0].Name)
	assert.Equal(t, "web", servers[1].Name)
	assert.Equal(t, int64(110)+2*gib, servers[1].Size)

	unused, err := svc.LargestUnused(ctx, filter, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, unused.ImagesCount)
	assert.Equal(t, int64(7), unused.ImagesTotal)
	assert.Zero(t, unused.VolumesCount)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = svc.Estimate(cancelled, filter)
	assert.ErrorIs(t, err, context.Canceled)
}
