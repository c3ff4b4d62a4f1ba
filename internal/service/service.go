package service

import (
	"context"
	"fmt"
	"time"

	"capscan/internal/discovery"
	"capscan/internal/domain"
	"capscan/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DiscoveryService runs discovery passes and persists their results
type DiscoveryService struct {
	store    *repository.Store
	registry *discovery.Registry
	repo     repository.Repository
	eventBus *EventBus
	logger   *zap.Logger
}

// NewDiscoveryService creates a discovery service. repo may be nil, in which
// case results live only in the store.
func NewDiscoveryService(store *repository.Store, registry *discovery.Registry, repo repository.Repository, eventBus *EventBus, logger *zap.Logger) *DiscoveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if eventBus == nil {
		eventBus = NewEventBus()
	}
	registry.SetEventPublisher(eventBus)
	return &DiscoveryService{
		store:    store,
		registry: registry,
		repo:     repo,
		eventBus: eventBus,
		logger:   logger.Named("discovery-service"),
	}
}

// DiscoverResult is the outcome of Discover
type DiscoverResult struct {
	*discovery.RunResult
	// RunID is the id of the saved snapshot, empty without a repository
	RunID string `json:"run_id,omitempty"`
}

// Discover runs a discovery pass against cloud and saves the committed
// records of that cloud
func (s *DiscoveryService) Discover(ctx context.Context, cloud discovery.Cloud) (*DiscoverResult, error) {
	run, err := s.registry.Run(ctx, cloud)
	if err != nil {
		return nil, err
	}
	result := &DiscoverResult{RunResult: run}
	if s.repo == nil {
		return result, nil
	}

	records, err := repository.Snapshot(ctx, s.store, cloud.Name)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", cloud.Name, err)
	}
	runID, err := s.repo.SaveSnapshot(ctx, cloud.Name, records)
	if err != nil {
		return nil, fmt.Errorf("save snapshot %s: %w", cloud.Name, err)
	}
	result.RunID = runID

	s.logger.Info("snapshot saved",
		zap.String("cloud", cloud.Name),
		zap.String("run_id", runID),
		zap.Int("records", len(records)))
	s.eventBus.Publish(Event{
		Type:    EventSnapshotSaved,
		Payload: map[string]any{"cloud": cloud.Name, "run_id": runID, "records": len(records)},
	})
	return result, nil
}

// Restore loads the saved snapshot of cloud into the store and returns how
// many records it held
func (s *DiscoveryService) Restore(ctx context.Context, cloud string) (int, error) {
	if s.repo == nil {
		return 0, fmt.Errorf("restore %s: no repository configured", cloud)
	}
	n, err := repository.Restore(ctx, s.store, s.repo, cloud)
	if err != nil {
		return 0, err
	}

	s.logger.Info("snapshot restored", zap.String("cloud", cloud), zap.Int("records", n))
	s.eventBus.Publish(Event{
		Type:    EventSnapshotRestored,
		Payload: map[string]any{"cloud": cloud, "records": n},
	})
	return n, nil
}

// ReportService answers capacity questions over committed records
type ReportService struct {
	store    *repository.Store
	eventBus *EventBus
	now      func() time.Time
}

// NewReportService creates a report service over store
func NewReportService(store *repository.Store, eventBus *EventBus) *ReportService {
	if eventBus == nil {
		eventBus = NewEventBus()
	}
	return &ReportService{store: store, eventBus: eventBus, now: time.Now}
}

// view runs fn inside a read transaction that is always rolled back
func (s *ReportService) view(ctx context.Context, fn func(tx *repository.Tx, resolver domain.RefResolver) error) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return fn(tx, discovery.Offline(tx))
}

// Estimate returns the copy estimate for f
func (s *ReportService) Estimate(ctx context.Context, f Filter) (*CopyEstimate, error) {
	var est *CopyEstimate
	err := s.view(ctx, func(tx *repository.Tx, resolver domain.RefResolver) error {
		var err error
		est, err = EstimateCopy(ctx, tx, resolver, f)
		return err
	})
	return est, err
}

// LargestServers returns the k largest servers in f
func (s *ReportService) LargestServers(ctx context.Context, f Filter, k int) ([]ServerUsage, error) {
	var servers []ServerUsage
	err := s.view(ctx, func(tx *repository.Tx, resolver domain.RefResolver) error {
		var err error
		servers, err = LargestServers(ctx, tx, resolver, f, k)
		return err
	})
	return servers, err
}

// LargestUnused returns the k largest unused volumes and images in f
func (s *ReportService) LargestUnused(ctx context.Context, f Filter, k int) (*UnusedResources, error) {
	var unused *UnusedResources
	err := s.view(ctx, func(tx *repository.Tx, _ domain.RefResolver) error {
		var err error
		unused, err = LargestUnusedResources(ctx, tx, f, k)
		return err
	})
	return unused, err
}

// Report combines the aggregations for one scope. Sections that were not
// requested are nil.
type Report struct {
	Filter         Filter           `json:"filter" yaml:"filter"`
	GeneratedAt    time.Time        `json:"generated_at" yaml:"generated_at"`
	Limit          int              `json:"limit,omitempty" yaml:"limit,omitempty"`
	Estimate       *CopyEstimate    `json:"estimate,omitempty" yaml:"estimate,omitempty"`
	LargestServers []ServerUsage    `json:"largest_servers,omitempty" yaml:"largest_servers,omitempty"`
	Unused         *UnusedResources `json:"unused,omitempty" yaml:"unused,omitempty"`
}

// Full runs all three aggregations concurrently over one read transaction
func (s *ReportService) Full(ctx context.Context, f Filter, k int) (*Report, error) {
	report := &Report{Filter: f, GeneratedAt: s.now().UTC(), Limit: k}

	err := s.view(ctx, func(tx *repository.Tx, resolver domain.RefResolver) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			est, err := EstimateCopy(gctx, tx, resolver, f)
			report.Estimate = est
			return err
		})
		g.Go(func() error {
			servers, err := LargestServers(gctx, tx, resolver, f, k)
			report.LargestServers = servers
			return err
		})
		g.Go(func() error {
			unused, err := LargestUnusedResources(gctx, tx, f, k)
			report.Unused = unused
			return err
		})
		return g.Wait()
	})
	if err != nil {
		return nil, err
	}

	s.eventBus.Publish(Event{Type: EventReportGenerated, Payload: f})
	return report, nil
}
