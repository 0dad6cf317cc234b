package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmaddaus/sprintboard/internal/config"
	"github.com/jmaddaus/sprintboard/internal/daemon"
)

func newDaemonCmd(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the background daemon (start, status)",
		RunE:  groupRunE,
	}

	var interval time.Duration
	start := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonStart(cmd, gf, interval)
		},
	}
	start.Flags().DurationVar(&interval, "interval", 0, "refresh periodically at this interval (0 disables)")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show daemon health and the last refresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonStatus(cmd, gf)
		},
	}

	cmd.AddCommand(start, status)
	return cmd
}

func runDaemonStart(cmd *cobra.Command, gf *globalFlags, interval time.Duration) error {
	cfg, err := gf.loadConfig()
	if err != nil {
		return err
	}
	if err := config.EnsureDataDir(cfg); err != nil {
		return err
	}

	client, err := gf.newClient()
	if err != nil {
		return err
	}
	if _, err := client.Health(); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "daemon already running at %s\n", client.baseURL)
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	logFile, err := os.OpenFile(daemon.LogFilePath(cfg), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	vaultRoot, err := filepath.Abs(gf.vault)
	if err != nil {
		return fmt.Errorf("resolve vault: %w", err)
	}
	serveArgs := []string{"serve", "--data-dir", cfg.DataDir, "--vault", vaultRoot, "--interval", interval.String()}
	if gf.region != "" {
		serveArgs = append(serveArgs, "--region", gf.region)
	}
	child := exec.Command(exe, serveArgs...)
	child.Stdout = logFile
	child.Stderr = logFile
	setSysProcAttr(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	child.Process.Release()

	if err := waitForDaemon(client, 10*time.Second); err != nil {
		return fmt.Errorf("%w; see %s", err, daemon.LogFilePath(cfg))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "daemon started at %s\n", client.baseURL)
	return nil
}

// waitForDaemon polls the health endpoint until it answers or timeout passes.
func waitForDaemon(client *Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if _, err := client.Health(); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("daemon did not become healthy within %s", timeout)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func runDaemonStatus(cmd *cobra.Command, gf *globalFlags) error {
	client, err := gf.newClient()
	if err != nil {
		return err
	}
	health, err := client.Health()
	if err != nil {
		return fmt.Errorf("daemon not running at %s; start with: sprintboard daemon start", client.baseURL)
	}

	out := cmd.OutOrStdout()
	if !gf.pretty {
		printJSON(out, health)
		return nil
	}

	status, _ := health["status"].(string)
	fmt.Fprintf(out, "Daemon status: %s\n", status)
	if uptime, ok := health["uptime"].(string); ok {
		fmt.Fprintf(out, "Uptime:        %s\n", uptime)
	}
	if r, ok := health["refresh"].(map[string]interface{}); ok {
		if running, _ := r["running"].(bool); running {
			fmt.Fprintln(out, "Refresh:       running")
		}
		if last, ok := r["last_run_at"].(string); ok {
			fmt.Fprintf(out, "Last refresh:  %s\n", last)
		}
		if lastErr, ok := r["last_error"].(string); ok && lastErr != "" {
			fmt.Fprintf(out, "Last error:    %s\n", lastErr)
		}
	}
	return nil
}
