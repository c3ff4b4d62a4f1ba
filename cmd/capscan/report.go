package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"capscan/internal/codec"
	"capscan/internal/repository"
	"capscan/internal/service"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// reportFlags adds the flags shared by every report command
func reportFlags(cmd *cobra.Command, withCount bool) *cobra.Command {
	cmd.Flags().String("tenant", "", "only resources owned by this tenant id")
	cmd.Flags().StringP("format", "o", "", "output format (text, json, yaml)")
	if withCount {
		cmd.Flags().IntP("count", "n", 0, "how many entries to list")
	}
	cmd.Args = cobra.NoArgs
	return cmd
}

func newEstimateCommand(a *app) *cobra.Command {
	return reportFlags(&cobra.Command{
		Use:   "estimate",
		Short: "Estimate the storage a migration would copy",
		Long: `Sum the images, volumes and ephemeral disks of every server in scope, plus
the volumes and images in scope that no server uses. Images and volumes shared
by several servers are counted once.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runReport(cmd, func(ctx context.Context, svc *service.ReportService, r *service.Report) error {
				est, err := svc.Estimate(ctx, r.Filter)
				r.Estimate = est
				return err
			})
		},
	}, false)
}

func newLargestServersCommand(a *app) *cobra.Command {
	return reportFlags(&cobra.Command{
		Use:   "largest-servers",
		Short: "List the servers holding the most storage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runReport(cmd, func(ctx context.Context, svc *service.ReportService, r *service.Report) error {
				servers, err := svc.LargestServers(ctx, r.Filter, r.Limit)
				r.LargestServers = servers
				return err
			})
		},
	}, true)
}

func newLargestUnusedCommand(a *app) *cobra.Command {
	return reportFlags(&cobra.Command{
		Use:   "largest-unused",
		Short: "List the largest volumes and images no server uses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runReport(cmd, func(ctx context.Context, svc *service.ReportService, r *service.Report) error {
				unused, err := svc.LargestUnused(ctx, r.Filter, r.Limit)
				r.Unused = unused
				return err
			})
		},
	}, true)
}

func newReportCommand(a *app) *cobra.Command {
	return reportFlags(&cobra.Command{
		Use:   "report",
		Short: "Run every capacity report at once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runReport(cmd, func(ctx context.Context, svc *service.ReportService, r *service.Report) error {
				full, err := svc.Full(ctx, r.Filter, r.Limit)
				if err != nil {
					return err
				}
				*r = *full
				return nil
			})
		},
	}, true)
}

// runReport restores the saved snapshot of the configured cloud, fills a
// report with fill and prints it
func (a *app) runReport(cmd *cobra.Command, fill func(context.Context, *service.ReportService, *service.Report) error) error {
	ctx := cmd.Context()
	cfg := a.cfg

	repo, err := a.openRepository()
	if err != nil {
		return err
	}
	defer repo.Close()

	store := repository.NewStore(a.logger)
	n, err := repository.Restore(ctx, store, repo, cfg.Cloud)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no snapshot of cloud %s in %s; run capscan discover first", cfg.Cloud, cfg.Database.Path)
	}

	report := &service.Report{
		Filter:      service.Filter{Cloud: cfg.Cloud, Tenant: cfg.Tenant},
		GeneratedAt: time.Now().UTC(),
		Limit:       cfg.Report.Count,
	}
	if err := fill(ctx, service.NewReportService(store, nil), report); err != nil {
		return err
	}

	if cfg.Report.Format == "text" {
		return renderText(cmd.OutOrStdout(), report)
	}
	exporter, err := codec.ForFormat(cfg.Report.Format)
	if err != nil {
		return err
	}
	return exporter.Export(report, cmd.OutOrStdout())
}

func newSnapshotsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "List the clouds saved in the database and their last run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			repo, err := a.openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			clouds, err := repo.Clouds(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(clouds) == 0 {
				color.New(color.FgYellow).Fprintf(out, "No snapshots in %s\n", a.cfg.Database.Path)
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "CLOUD\tRUN\tSAVED\tRECORDS")
			for _, cloud := range clouds {
				run, err := repo.LastRun(ctx, cloud)
				if err != nil {
					return err
				}
				if run == nil {
					fmt.Fprintf(w, "%s\t-\t-\t-\n", cloud)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", cloud, run.ID, run.CreatedAt.Format(time.RFC3339), run.Total())
			}
			return w.Flush()
		},
	}
}
