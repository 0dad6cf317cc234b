// Package daemon serves the settings form and the refresh API over HTTP.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jmaddaus/sprintboard/internal/config"
	"github.com/jmaddaus/sprintboard/internal/store"
	"github.com/jmaddaus/sprintboard/internal/sync"
)

// Daemon owns the HTTP server, the run manager and the run history store.
type Daemon struct {
	cfg       *config.Config
	store     store.Store
	settings  *config.SettingsStore
	mgr       *sync.Manager
	router    *gin.Engine
	server    *http.Server
	startedAt time.Time
}

// New creates a Daemon. The daemon takes ownership of s and closes it on
// shutdown.
func New(cfg *config.Config, s store.Store, ss *config.SettingsStore, mgr *sync.Manager) *Daemon {
	d := &Daemon{
		cfg:      cfg,
		store:    s,
		settings: ss,
		mgr:      mgr,
	}

	d.router = d.registerRoutes()
	d.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      d.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return d
}

// Handler returns the HTTP handler (used for testing with httptest).
func (d *Daemon) Handler() http.Handler {
	return d.router
}

// StartedAt returns the time when the daemon was started via Run().
func (d *Daemon) StartedAt() time.Time {
	return d.startedAt
}

// PIDFilePath returns the path to the daemon PID file.
func PIDFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "daemon.pid")
}

// LogFilePath returns the path to the daemon log file.
func LogFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "daemon.log")
}

// ReadPIDFile reads the PID from the daemon PID file. Returns 0 if not found.
func ReadPIDFile(cfg *config.Config) (int, error) {
	data, err := os.ReadFile(PIDFilePath(cfg))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file content: %w", err)
	}
	return pid, nil
}

func writePIDFile(cfg *config.Config) error {
	return os.WriteFile(PIDFilePath(cfg), []byte(strconv.Itoa(os.Getpid())+"\n"), 0644)
}

func removePIDFile(cfg *config.Config) {
	os.Remove(PIDFilePath(cfg))
}

// Run binds the listen address, writes the PID file and serves until a
// SIGINT or SIGTERM arrives or ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	d.startedAt = time.Now()

	ln, err := net.Listen("tcp", d.cfg.ListenAddr)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.EADDRINUSE) {
			return fmt.Errorf("port %s already in use; is another daemon running?", d.cfg.ListenAddr)
		}
		return fmt.Errorf("listen: %w", err)
	}

	if err := writePIDFile(d.cfg); err != nil {
		ln.Close()
		return fmt.Errorf("write PID file: %w", err)
	}
	defer removePIDFile(d.cfg)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("sprintboard daemon listening", "addr", ln.Addr().String())
		if err := d.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down...")
	case sig := <-sigCh:
		slog.Info("received signal, shutting down...", "signal", sig)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	return d.Shutdown(context.Background())
}

// Shutdown stops the server, waits for a background refresh to return and
// closes the store.
func (d *Daemon) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var firstErr error

	if err := d.server.Shutdown(shutdownCtx); err != nil {
		firstErr = fmt.Errorf("server shutdown: %w", err)
	}

	if d.mgr != nil {
		d.mgr.Stop()
	}

	if d.store != nil {
		if err := d.store.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("store close: %w", err)
		}
	}

	return firstErr
}
