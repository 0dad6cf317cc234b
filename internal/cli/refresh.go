package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmaddaus/sprintboard/internal/config"
	"github.com/jmaddaus/sprintboard/internal/model"
	"github.com/jmaddaus/sprintboard/internal/store"
	"github.com/jmaddaus/sprintboard/internal/sync"
	"github.com/jmaddaus/sprintboard/internal/vault"
)

func newRefreshCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "refresh",
		Aliases: []string{"update-boards"},
		Short:   "Update task notes and the board for the current iteration",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				report *model.RunReport
				err    error
			)
			if gf.host != "" {
				report, err = NewClient(gf.host).Refresh()
			} else {
				report, err = refreshLocal(cmd.Context(), gf)
			}
			if report != nil {
				printReport(cmd.OutOrStdout(), report, gf.pretty)
			}
			return err
		},
	}
}

// refreshLocal runs one refresh in this process and records it in the run
// history of the data dir.
func refreshLocal(ctx context.Context, gf *globalFlags) (*model.RunReport, error) {
	cfg, err := gf.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := config.EnsureDataDir(cfg); err != nil {
		return nil, err
	}

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ss := config.NewSettingsStore(config.SettingsPath(cfg))
	mgr := sync.NewManager(sync.NewFactory(ss, gf.vault, gf.region, vault.LogNotifier{}), st)
	return mgr.Refresh(ctx)
}
