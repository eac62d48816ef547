package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/birdhouse-core/internal/infrastructure/config"
	"github.com/nerrad567/birdhouse-core/internal/infrastructure/database"
	_ "github.com/nerrad567/birdhouse-core/migrations"
)

// cliOptions holds the persistent flags shared by every sub-command.
type cliOptions struct {
	configPath string
}

// newRootCmd builds the command tree. The root command runs the daemon.
func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "birdhouse",
		Short:         "Birdhouse outlet scheduler and weather logger",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithSignals(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"configuration file (default: $"+config.EnvConfigPath+", then ./birdhouse.yaml, ~/birdhouse.yaml, /etc/birdhouse)")

	root.AddCommand(
		newRunCmd(opts),
		newOutletsCmd(opts),
		newMigrateCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newRunCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithSignals(cmd.Context(), opts)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "birdhouse %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// runWithSignals runs the daemon until SIGINT or SIGTERM.
func runWithSignals(parent context.Context, opts *cliOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, opts.configPath)
}

// loadConfig resolves and loads the configuration file.
func loadConfig(explicit string) (*config.Config, string, error) {
	path, err := config.Locate(explicit)
	if err != nil {
		return nil, "", fmt.Errorf("locating config: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

// openDatabase opens the store and applies pending migrations.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
		Synchronous: cfg.Synchronous,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}
