package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmaddaus/sprintboard/internal/azdo"
	"github.com/jmaddaus/sprintboard/internal/config"
	"github.com/jmaddaus/sprintboard/internal/model"
	"github.com/jmaddaus/sprintboard/internal/store"
	"github.com/jmaddaus/sprintboard/internal/vault"
)

// ErrRunInProgress is returned by Refresh while another run is in flight.
var ErrRunInProgress = errors.New("refresh already in progress")

// Factory builds the pipeline for one run from the current settings.
type Factory func(ctx context.Context) (*Pipeline, error)

// NewFactory returns a Factory that loads settings from ss on every run,
// applies the environment overlay and opens the target vault. vaultRoot is
// the local vault directory; region is only used for s3:// targets.
func NewFactory(ss *config.SettingsStore, vaultRoot, region string, n vault.Notifier) Factory {
	return func(ctx context.Context) (*Pipeline, error) {
		persisted, err := ss.Load()
		if err != nil {
			return nil, err
		}
		settings := config.ApplyEnv(persisted)
		v, folder, err := vault.Open(ctx, vaultRoot, settings.TargetFolder, region)
		if err != nil {
			return nil, err
		}
		return NewPipeline(settings, azdo.NewClient(settings), v, folder, n), nil
	}
}

// Status describes the manager's run state.
type Status struct {
	Running   bool       `json:"running"`
	LastRunAt *time.Time `json:"last_run_at"`
	LastRunID string     `json:"last_run_id,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// Manager serializes refresh runs and records their reports.
type Manager struct {
	factory Factory
	store   store.Store

	mu      sync.Mutex
	running bool
	status  Status

	forceCh chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewManager creates a Manager. s may be nil, in which case reports are not
// persisted.
func NewManager(f Factory, s store.Store) *Manager {
	return &Manager{
		factory: f,
		store:   s,
		forceCh: make(chan struct{}, 1),
	}
}

// Refresh runs the pipeline once and waits for it. It returns
// ErrRunInProgress without running if a run is already in flight.
func (m *Manager) Refresh(ctx context.Context) (*model.RunReport, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil, ErrRunInProgress
	}
	m.running = true
	m.status.Running = true
	m.mu.Unlock()

	report, err := m.run(ctx)

	m.mu.Lock()
	m.running = false
	m.status.Running = false
	at := report.FinishedAt
	m.status.LastRunAt = &at
	m.status.LastRunID = report.ID
	m.status.LastError = report.Error
	m.mu.Unlock()

	return report, err
}

func (m *Manager) run(ctx context.Context) (*model.RunReport, error) {
	var (
		report *model.RunReport
		err    error
	)
	p, ferr := m.factory(ctx)
	if ferr != nil {
		slog.Error("prepare refresh", "error", ferr)
		now := time.Now()
		report = &model.RunReport{
			ID:         uuid.NewString(),
			StartedAt:  now,
			FinishedAt: now,
			Items:      []*model.ItemReport{},
			Error:      ferr.Error(),
		}
		err = ferr
	} else {
		report, err = p.Run(ctx)
	}

	if m.store != nil {
		// Recording outlives a cancelled request.
		if rerr := m.store.RecordRun(context.WithoutCancel(ctx), report); rerr != nil {
			slog.Warn("record run", "run", report.ID, "error", rerr)
		}
	}
	return report, err
}

// Status returns a snapshot of the run state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.status
	if st.LastRunAt != nil {
		at := *st.LastRunAt
		st.LastRunAt = &at
	}
	return st
}

// Trigger asks a started loop to refresh as soon as possible. It does not
// block; a trigger while one is pending is dropped.
func (m *Manager) Trigger() {
	select {
	case m.forceCh <- struct{}{}:
	default:
	}
}

// Start runs a background loop that refreshes on Trigger and, when interval
// is positive, on every tick.
func (m *Manager) Start(interval time.Duration) {
	m.mu.Lock()
	if m.stopCh != nil {
		m.mu.Unlock()
		return
	}
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	stopCh, doneCh := m.stopCh, m.doneCh
	m.mu.Unlock()

	go m.loop(interval, stopCh, doneCh)
}

func (m *Manager) loop(interval time.Duration, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stopCh
		cancel()
	}()

	for {
		select {
		case <-stopCh:
			return
		case <-tick:
		case <-m.forceCh:
		}
		if _, err := m.Refresh(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
			slog.Warn("background refresh failed", "error", err)
		}
	}
}

// Stop ends the background loop and waits for an in-flight run to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	stopCh, doneCh := m.stopCh, m.doneCh
	m.stopCh, m.doneCh = nil, nil
	m.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
}
