package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmaddaus/sprintboard/internal/model"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and runs
// migrations. Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode and foreign keys for better concurrency and integrity.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %s: %w", pragma, err)
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func (s *SQLiteStore) RecordRun(ctx context.Context, report *model.RunReport) error {
	if report.ID == "" {
		return fmt.Errorf("record run: empty id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, iteration, board_path, error)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		report.ID, formatTime(report.StartedAt), formatTime(report.FinishedAt),
		report.Iteration, report.BoardPath, report.Error)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("run %s already recorded", report.ID)
		}
		return fmt.Errorf("insert run: %w", err)
	}

	for i, it := range report.Items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_items (run_id, seq, work_item_id, title, state, note_path, outcome, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			report.ID, i, it.WorkItemID, it.Title, it.State, it.NotePath, string(it.Outcome), it.Error)
		if err != nil {
			return fmt.Errorf("insert run item %d: %w", it.WorkItemID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.RunReport, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, iteration, board_path, error
		 FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*model.RunReport, error) {
	query := `SELECT id, started_at, finished_at, iteration, board_path, error
		 FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	runs := []*model.RunReport{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, r := range runs {
		if err := s.loadItems(ctx, r); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *SQLiteStore) loadItems(ctx context.Context, r *model.RunReport) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT work_item_id, title, state, note_path, outcome, error
		 FROM run_items WHERE run_id = ? ORDER BY seq`, r.ID)
	if err != nil {
		return fmt.Errorf("list run items: %w", err)
	}
	defer rows.Close()

	r.Items = []*model.ItemReport{}
	for rows.Next() {
		var it model.ItemReport
		var outcome string
		if err := rows.Scan(&it.WorkItemID, &it.Title, &it.State, &it.NotePath, &outcome, &it.Error); err != nil {
			return err
		}
		it.Outcome = model.Outcome(outcome)
		r.Items = append(r.Items, &it)
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*model.RunReport, error) {
	var r model.RunReport
	var startedAt, finishedAt string
	if err := row.Scan(&r.ID, &startedAt, &finishedAt, &r.Iteration, &r.BoardPath, &r.Error); err != nil {
		return nil, err
	}
	r.StartedAt, _ = time.Parse(timeLayout, startedAt)
	r.FinishedAt, _ = time.Parse(timeLayout, finishedAt)
	return &r, nil
}
