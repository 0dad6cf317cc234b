package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmaddaus/sprintboard/internal/config"
	"github.com/jmaddaus/sprintboard/internal/model"
	"github.com/jmaddaus/sprintboard/internal/store"
)

func newHistoryCmd(gf *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recent refresh runs, or show one run in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				run, err := getRun(cmd, gf, args[0])
				if err != nil {
					return err
				}
				printReport(out, run, gf.pretty)
				return nil
			}
			runs, err := listRuns(cmd, gf, limit)
			if err != nil {
				return err
			}
			printRuns(out, runs, gf.pretty)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show (0 for all)")
	return cmd
}

// openHistory opens the run history of the data dir.
func openHistory(gf *globalFlags) (*store.SQLiteStore, error) {
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
	return st, nil
}

func listRuns(cmd *cobra.Command, gf *globalFlags, limit int) ([]*model.RunReport, error) {
	if gf.host != "" {
		return NewClient(gf.host).Runs(limit)
	}
	st, err := openHistory(gf)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.ListRuns(cmd.Context(), limit)
}

func getRun(cmd *cobra.Command, gf *globalFlags, id string) (*model.RunReport, error) {
	if gf.host != "" {
		return NewClient(gf.host).Run(id)
	}
	st, err := openHistory(gf)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.GetRun(cmd.Context(), id)
}
