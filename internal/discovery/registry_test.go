package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"

	"capscan/internal/domain"
	"capscan/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishDiscoveryEvent(eventType string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *recordingPublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func TestRegistryRun(t *testing.T) {
	store := repository.NewStore(nil)
	registry := NewDefaultRegistry(store, Config{Concurrency: 4}, zaptest.NewLogger(t))
	pub := &recordingPublisher{}
	registry.SetEventPublisher(pub)

	assert.Equal(t, []domain.ResourceType{
		domain.ResourceTenant, domain.ResourceImage, domain.ResourceVolume, domain.ResourceServer,
	}, registry.Types())

	result, err := registry.Run(context.Background(), Cloud{Name: cloudName, Client: newFixture()})
	require.NoError(t, err)

	assert.Equal(t, cloudName, result.Cloud)
	assert.Equal(t, 6, result.Total().Stored)
	assert.Equal(t, 0, result.Total().Skipped())
	assert.Equal(t, 1, store.Len(domain.ResourceTenant, cloudName))
	assert.Equal(t, 1, store.Len(domain.ResourceImage, cloudName))
	assert.Equal(t, 2, store.Len(domain.ResourceVolume, cloudName))
	assert.Equal(t, 2, store.Len(domain.ResourceServer, cloudName))

	events := pub.Events()
	require.Len(t, events, 6)
	assert.Equal(t, EventDiscoveryStarted, events[0])
	assert.Equal(t, EventDiscoveryCompleted, events[5])
	for _, e := range events[1:5] {
		assert.Equal(t, EventTypeDiscovered, e)
	}
}

func TestRegistryRunRollsBackOnFailure(t *testing.T) {
	store := repository.NewStore(nil)
	registry := NewDefaultRegistry(store, Config{Concurrency: 1}, nil)
	pub := &recordingPublisher{}
	registry.SetEventPublisher(pub)

	fixture := newFixture()
	fixture.FailList[domain.ResourceServer] = errors.New("gateway timeout")

	_, err := registry.Run(context.Background(), Cloud{Name: cloudName, Client: fixture})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)

	for _, rt := range repository.StoredTypes {
		assert.Equal(t, 0, store.Len(rt, cloudName), "nothing from %s may be visible", rt)
	}
	assert.Contains(t, pub.Events(), EventDiscoveryFailed)
	assert.NotContains(t, pub.Events(), EventDiscoveryCompleted)
}

func TestRegistryRegisterDuplicate(t *testing.T) {
	registry := NewRegistry(repository.NewStore(nil), Config{}, nil)
	require.NoError(t, registry.Register(NewVolumeDiscoverer(nil)))
	assert.Error(t, registry.Register(NewVolumeDiscoverer(nil)))
}

func TestRegistryRerunIsIdempotent(t *testing.T) {
	store := repository.NewStore(nil)
	registry := NewDefaultRegistry(store, Config{Concurrency: 2}, nil)
	cloud := Cloud{Name: cloudName, Client: newFixture()}

	_, err := registry.Run(context.Background(), cloud)
	require.NoError(t, err)
	_, err = registry.Run(context.Background(), cloud)
	require.NoError(t, err)

	assert.Equal(t, 2, store.Len(domain.ResourceServer, cloudName))
	assert.Equal(t, 2, store.Len(domain.ResourceVolume, cloudName))
}
