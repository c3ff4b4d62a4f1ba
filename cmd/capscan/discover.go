package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"capscan/internal/cloudapi"
	"capscan/internal/cloudapi/rediscache"
	"capscan/internal/discovery"
	"capscan/internal/repository"
	"capscan/internal/service"
	"capscan/internal/watcher"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newDiscoverCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Discover resources from an inventory and save a snapshot",
		Long: `Discover every tenant, image, volume and server of a cloud in one transaction.

Records that fail validation or reference something that does not exist are
skipped and counted. Any API failure aborts the run and nothing is saved.
On success the snapshot of the cloud in the database is replaced.`,
		Example: `  # Discover the default cloud from an inventory file
  capscan discover --inventory inventory.yaml

  # Cache point lookups in Redis
  capscan discover --inventory inventory.yaml --redis localhost:6379

  # Discover again whenever the inventory changes
  capscan discover --inventory inventory.yaml --watch`,
		Args: cobra.NoArgs,
		RunE: a.runDiscover,
	}

	cmd.Flags().String("inventory", "", "inventory YAML file to discover from")
	cmd.Flags().String("redis", "", "Redis address for caching point lookups")
	cmd.Flags().Int("concurrency", 0, "discoverers run at once")
	cmd.Flags().Bool("watch", false, "discover again whenever the inventory file changes")

	return cmd
}

func (a *app) runDiscover(cmd *cobra.Command, _ []string) error {
	if a.cfg.Inventory == "" {
		return errors.New("no inventory: pass --inventory or set inventory in the config")
	}
	if err := a.discoverOnce(cmd.Context(), cmd.OutOrStdout()); err != nil {
		return err
	}

	watch, err := cmd.Flags().GetBool("watch")
	if err != nil || !watch {
		return err
	}

	w := watcher.New(a.cfg.Inventory, func(ctx context.Context) {
		fmt.Fprintln(cmd.OutOrStdout())
		if err := a.discoverOnce(ctx, cmd.OutOrStdout()); err != nil {
			color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "Discovery failed: %v\n", err)
		}
	}, a.logger)
	err = w.Watch(cmd.Context())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// discoverOnce runs one discovery pass and replaces the saved snapshot
func (a *app) discoverOnce(ctx context.Context, out io.Writer) error {
	cfg := a.cfg

	fixture, err := cloudapi.LoadYAML(cfg.Inventory)
	if err != nil {
		return err
	}

	var client cloudapi.Client = fixture
	if cfg.Redis.Addr != "" {
		cached, err := rediscache.Dial(ctx, fixture, cfg.Cloud, rediscache.Config{
			Addr:   cfg.Redis.Addr,
			Prefix: cfg.Redis.Prefix,
			TTL:    cfg.Redis.TTL,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("connect to redis %s: %w", cfg.Redis.Addr, err)
		}
		defer cached.Close()
		client = cached
	}

	repo, err := a.openRepository()
	if err != nil {
		return err
	}
	defer repo.Close()

	store := repository.NewStore(a.logger)
	registry := discovery.NewDefaultRegistry(store, discovery.Config{Concurrency: cfg.Discovery.Concurrency}, a.logger)
	svc := service.NewDiscoveryService(store, registry, repo, nil, a.logger)

	result, err := svc.Discover(ctx, discovery.Cloud{Name: cfg.Cloud, Client: client})
	if err != nil {
		return err
	}
	a.logger.Debug("discover finished", zap.String("run_id", result.RunID))

	color.New(color.FgGreen, color.Bold).Fprintf(out, "Discovered cloud %s\n", result.Cloud)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TYPE\tLISTED\tSTORED\tINVALID\tDANGLING")
	for _, rt := range registry.Types() {
		s := result.Stats[rt]
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", rt, s.Listed, s.Stored, s.Invalid, s.Dangling)
	}
	w.Flush()

	total := result.Total()
	fmt.Fprintf(out, "\nStored %d records, skipped %d, fetched %d by point lookup in %s\n",
		total.Stored, total.Skipped(), result.Fetched, result.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "Snapshot %s saved to %s\n", result.RunID, cfg.Database.Path)
	if total.Skipped() > 0 {
		color.New(color.FgYellow).Fprintln(out, "Some records were skipped; the warnings above name each one")
	}
	return nil
}
