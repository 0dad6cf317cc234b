// Package cli implements the sprintboard command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmaddaus/sprintboard/internal/config"
)

// globalFlags holds flags that are available to all subcommands.
type globalFlags struct {
	dataDir string
	host    string
	vault   string
	region  string
	pretty  bool
}

// loadConfig loads the app configuration for the selected data dir.
func (gf *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(gf.dataDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// settingsStore returns the settings store inside the data dir.
func (gf *globalFlags) settingsStore() (*config.SettingsStore, error) {
	cfg, err := gf.loadConfig()
	if err != nil {
		return nil, err
	}
	return config.NewSettingsStore(config.SettingsPath(cfg)), nil
}

// daemonHost returns --host, or the configured listen address.
func (gf *globalFlags) daemonHost() (string, error) {
	if gf.host != "" {
		return gf.host, nil
	}
	cfg, err := gf.loadConfig()
	if err != nil {
		return "", err
	}
	return "http://" + cfg.ListenAddr, nil
}

// newClient creates a daemon HTTP client from the global flags.
func (gf *globalFlags) newClient() (*Client, error) {
	host, err := gf.daemonHost()
	if err != nil {
		return nil, err
	}
	return NewClient(host), nil
}

// newRootCmd builds the command tree. out receives command output.
func newRootCmd(version string, out io.Writer) *cobra.Command {
	gf := &globalFlags{}

	root := &cobra.Command{
		Use:   "sprintboard",
		Short: "Sync assigned Azure DevOps work items into a markdown vault",
		Long: `sprintboard writes one task note per assigned work item of the current
iteration and regenerates a Kanban board note for that iteration.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv()
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&gf.dataDir, "data-dir", "", "data directory (default ~/.sprintboard)")
	pf.StringVar(&gf.host, "host", os.Getenv("SPRINTBOARD_HOST"), "daemon URL; when set, commands go through the daemon")
	pf.StringVar(&gf.vault, "vault", ".", "local vault root")
	pf.StringVar(&gf.region, "region", "", "AWS region for s3:// target folders")
	pf.BoolVar(&gf.pretty, "pretty", false, "use pretty-printed output instead of JSON")

	root.AddCommand(
		newRefreshCmd(gf),
		newConfigCmd(gf),
		newServeCmd(gf),
		newDaemonCmd(gf),
		newHistoryCmd(gf),
		newDBCmd(),
		newVersionCmd(version),
	)
	return root
}

// groupRunE makes a parent command print its help when called bare and
// fail on an unknown subcommand.
func groupRunE(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	return fmt.Errorf("unknown %s subcommand: %s\nRun '%s --help' for usage", cmd.Name(), args[0], cmd.CommandPath())
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sprintboard version %s\n", version)
		},
	}
}

// Execute runs the command line with os.Args and reports any error on stderr.
func Execute(version string) error {
	if err := newRootCmd(version, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
