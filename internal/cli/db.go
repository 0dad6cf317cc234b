package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jmaddaus/sprintboard/internal/store"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Run history database tools (version, check, downgrade)",
		RunE:  groupRunE,
		Example: `  sprintboard db version ~/.sprintboard/sprintboard.db
  sprintboard db check ~/.sprintboard/sprintboard.db
  sprintboard db downgrade ~/.sprintboard/sprintboard.db 0`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "version <db-path>",
			Short: "Show current DB schema version",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDBVersion(cmd, args[0])
			},
		},
		&cobra.Command{
			Use:   "check <db-path>",
			Short: "Check if DB is compatible with this binary",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDBCheck(cmd, args[0])
			},
		},
		&cobra.Command{
			Use:   "downgrade <db-path> <version>",
			Short: "Downgrade DB to target version",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				target, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid version number: %s", args[1])
				}
				return runDBDowngrade(cmd, args[0], target)
			},
		},
	)
	return cmd
}

func readVersion(cmd *cobra.Command, dbPath string) (int, error) {
	db, err := store.OpenRawDB(dbPath)
	if err != nil {
		return 0, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	version, err := store.ReadDBVersion(db)
	if err != nil {
		return 0, fmt.Errorf("read version: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "database: %s\n", dbPath)
	fmt.Fprintf(out, "schema version: %d\n", version)
	fmt.Fprintf(out, "binary supports: %d\n", store.DBSchemaVersion)
	return version, nil
}

func runDBVersion(cmd *cobra.Command, dbPath string) error {
	_, err := readVersion(cmd, dbPath)
	return err
}

func runDBCheck(cmd *cobra.Command, dbPath string) error {
	version, err := readVersion(cmd, dbPath)
	if err != nil {
		return err
	}
	if version > store.DBSchemaVersion {
		return fmt.Errorf("INCOMPATIBLE: database is newer than this binary.\nRun: sprintboard db downgrade %s %d", dbPath, store.DBSchemaVersion)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nOK: database is compatible.\n")
	return nil
}

func runDBDowngrade(cmd *cobra.Command, dbPath string, target int) error {
	db, err := store.OpenRawDB(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	current, err := store.ReadDBVersion(db)
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "database: %s\n", dbPath)
	fmt.Fprintf(out, "current version: %d\n", current)
	fmt.Fprintf(out, "target version: %d\n", target)

	if err := store.DowngradeDB(db, current, target); err != nil {
		return fmt.Errorf("downgrade: %w", err)
	}

	fmt.Fprintf(out, "downgraded: %d -> %d\n", current, target)
	return nil
}
