package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmaddaus/sprintboard/internal/config"
	"github.com/jmaddaus/sprintboard/internal/daemon"
	"github.com/jmaddaus/sprintboard/internal/store"
	"github.com/jmaddaus/sprintboard/internal/sync"
	"github.com/jmaddaus/sprintboard/internal/vault"
)

func newServeCmd(gf *globalFlags) *cobra.Command {
	var (
		interval  time.Duration
		logFormat string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon with the settings page and refresh API",
		Long: `Run the daemon in the foreground.

The settings page is served at the listen address from config.json.
With --interval the boards are also refreshed periodically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(logFormat)
			return runServe(cmd.Context(), gf, interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "refresh periodically at this interval (0 disables)")
	cmd.Flags().StringVar(&logFormat, "log-format", "json", "log format: json or text")
	return cmd
}

func setupLogging(format string) {
	var h slog.Handler
	if format == "text" {
		h = slog.NewTextHandler(os.Stderr, nil)
	} else {
		h = slog.NewJSONHandler(os.Stderr, nil)
	}
	slog.SetDefault(slog.New(h))
}

func runServe(ctx context.Context, gf *globalFlags, interval time.Duration) error {
	cfg, err := gf.loadConfig()
	if err != nil {
		return err
	}
	if err := config.EnsureDataDir(cfg); err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	ss := config.NewSettingsStore(config.SettingsPath(cfg))
	mgr := sync.NewManager(sync.NewFactory(ss, gf.vault, gf.region, vault.LogNotifier{}), st)
	mgr.Start(interval)

	// The daemon closes the store and stops the manager on shutdown.
	d := daemon.New(cfg, st, ss, mgr)
	return d.Run(ctx)
}
