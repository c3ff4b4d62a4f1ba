package main

import (
	"fmt"
	"runtime"

	"capscan/internal/config"
	"capscan/internal/logging"
	"capscan/internal/repository/sqlite"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// app carries the state shared by every command after flag parsing
type app struct {
	configPath string
	cfg        *config.Config
	cfgFile    string
	logger     *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "capscan",
		Short: "Cloud capacity discovery and migration sizing",
		Long: `capscan discovers tenants, images, volumes and servers from a cloud inventory,
keeps a snapshot of them in SQLite and answers capacity questions over it:
how much storage a migration would copy, which servers are largest and which
volumes and images no server uses.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default: search "+config.EnvConfigPath+", ./"+config.ConfigFileName+", XDG and /etc)")
	flags.String("cloud", "", "cloud name records are discovered into")
	flags.String("db", "", "SQLite snapshot database path")
	flags.String("log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(newDiscoverCommand(a))
	root.AddCommand(newEstimateCommand(a))
	root.AddCommand(newLargestServersCommand(a))
	root.AddCommand(newLargestUnusedCommand(a))
	root.AddCommand(newReportCommand(a))
	root.AddCommand(newSnapshotsCommand(a))
	root.AddCommand(newConfigCommand(a))
	root.AddCommand(newVersionCommand())

	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, path, err := config.Load(a.configPath, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.cfgFile = path
	a.logger = logger
	if path != "" {
		logger.Debug("config loaded", zap.String("path", path))
	}
	return nil
}

func (a *app) openRepository() (*sqlite.Repository, error) {
	repo, err := sqlite.New(a.cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", a.cfg.Database.Path, err)
	}
	a.logger.Debug("database opened", zap.String("path", a.cfg.Database.Path))
	return repo, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			title := color.New(color.FgCyan, color.Bold)
			out := cmd.OutOrStdout()

			title.Fprint(out, "capscan version: ")
			fmt.Fprintln(out, Version)
			title.Fprint(out, "Git commit: ")
			fmt.Fprintln(out, GitCommit)
			title.Fprint(out, "Build date: ")
			fmt.Fprintln(out, BuildDate)
			title.Fprint(out, "Go version: ")
			fmt.Fprintln(out, runtime.Version())
		},
	}
}
