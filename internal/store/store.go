package store

import (
	"context"
	"errors"

	"github.com/jmaddaus/sprintboard/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for run history.
type Store interface {
	// RecordRun stores a finished run and its per-item outcomes.
	RecordRun(ctx context.Context, report *model.RunReport) error
	GetRun(ctx context.Context, id string) (*model.RunReport, error)
	// ListRuns returns the most recent runs first. limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]*model.RunReport, error)

	Close() error
}
