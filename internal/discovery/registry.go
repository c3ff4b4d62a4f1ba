package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"capscan/internal/domain"
	"capscan/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Discovery event types
const (
	EventDiscoveryStarted   = "discovery_started"
	EventTypeDiscovered     = "type_discovered"
	EventDiscoveryCompleted = "discovery_completed"
	EventDiscoveryFailed    = "discovery_failed"
)

// EventPublisher receives discovery progress events
type EventPublisher interface {
	PublishDiscoveryEvent(eventType string, payload any)
}

// TypeEvent is the payload of EventTypeDiscovered
type TypeEvent struct {
	Cloud string              `json:"cloud"`
	Type  domain.ResourceType `json:"type"`
	Stats Stats               `json:"stats"`
}

// RunResult summarises a committed discovery pass
type RunResult struct {
	Cloud    string                        `json:"cloud"`
	Stats    map[domain.ResourceType]Stats `json:"stats"`
	Fetched  int                           `json:"fetched"`
	Duration time.Duration                 `json:"duration"`
}

// Total sums the stats of every type
func (r *RunResult) Total() Stats {
	var total Stats
	for _, s := range r.Stats {
		total.Add(s)
	}
	return total
}

// Config holds registry settings
type Config struct {
	// Concurrency bounds how many discoverers run at once
	Concurrency int
}

// Registry runs the registered discoverers as one transactional pass
type Registry struct {
	mu          sync.RWMutex
	store       *repository.Store
	discoverers []Discoverer
	config      Config
	publisher   EventPublisher
	logger      *zap.Logger
}

// NewRegistry creates an empty registry writing into store
func NewRegistry(store *repository.Store, config Config, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &Registry{
		store:  store,
		config: config,
		logger: logger,
	}
}

// NewDefaultRegistry creates a registry with every stored record type
func NewDefaultRegistry(store *repository.Store, config Config, logger *zap.Logger) *Registry {
	r := NewRegistry(store, config, logger)
	for _, d := range []Discoverer{
		NewTenantDiscoverer(logger),
		NewImageDiscoverer(logger),
		NewVolumeDiscoverer(logger),
		NewServerDiscoverer(logger),
	} {
		// types are distinct, so registration cannot fail
		_ = r.Register(d)
	}
	return r
}

// SetEventPublisher sets the receiver of progress events
func (r *Registry) SetEventPublisher(pub EventPublisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publisher = pub
}

func (r *Registry) publish(eventType string, payload any) {
	r.mu.RLock()
	pub := r.publisher
	r.mu.RUnlock()

	if pub != nil {
		pub.PublishDiscoveryEvent(eventType, payload)
	}
}

// Register adds a discoverer
func (r *Registry) Register(d Discoverer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.discoverers {
		if existing.Type() == d.Type() {
			return fmt.Errorf("discoverer for %s already registered", d.Type())
		}
	}
	r.discoverers = append(r.discoverers, d)
	r.logger.Debug("registered discoverer", zap.String("type", string(d.Type())))
	return nil
}

// Types returns the registered record types in registration order
func (r *Registry) Types() []domain.ResourceType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.ResourceType, len(r.discoverers))
	for i, d := range r.discoverers {
		types[i] = d.Type()
	}
	return types
}

// Run discovers every registered type from cloud in one transaction.
// The transaction commits only if every discoverer succeeds.
func (r *Registry) Run(ctx context.Context, cloud Cloud) (*RunResult, error) {
	r.mu.RLock()
	discoverers := append([]Discoverer(nil), r.discoverers...)
	r.mu.RUnlock()

	start := time.Now()
	log := r.logger.With(zap.String("cloud", cloud.Name))
	log.Info("discovery started", zap.Int("discoverers", len(discoverers)))
	r.publish(EventDiscoveryStarted, map[string]any{"cloud": cloud.Name})

	tx, err := r.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	resolver := NewResolver(tx, cloud, discoverers, r.logger)
	result := &RunResult{
		Cloud: cloud.Name,
		Stats: make(map[domain.ResourceType]Stats, len(discoverers)),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Concurrency)
	for _, d := range discoverers {
		g.Go(func() error {
			stats, err := d.Discover(gctx, cloud, tx, resolver)
			if err != nil {
				return fmt.Errorf("discover %s: %w", d.Type(), err)
			}

			mu.Lock()
			result.Stats[d.Type()] = stats
			mu.Unlock()

			log.Info("type discovered",
				zap.String("type", string(d.Type())),
				zap.Int("stored", stats.Stored),
				zap.Int("invalid", stats.Invalid),
				zap.Int("dangling", stats.Dangling))
			r.publish(EventTypeDiscovered, TypeEvent{Cloud: cloud.Name, Type: d.Type(), Stats: stats})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("discovery failed", zap.Error(err))
		r.publish(EventDiscoveryFailed, map[string]any{"cloud": cloud.Name, "error": err.Error()})
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit discovery: %w", err)
	}

	result.Fetched = resolver.Fetched()
	result.Duration = time.Since(start)
	total := result.Total()
	log.Info("discovery completed",
		zap.Int("stored", total.Stored),
		zap.Int("skipped", total.Skipped()),
		zap.Int("fetched", result.Fetched),
		zap.Duration("duration", result.Duration))
	r.publish(EventDiscoveryCompleted, result)
	return result, nil
}
