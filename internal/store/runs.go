package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses. A run moves pending -> running -> complete or error.
const (
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusError    = "error"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("store: run not found")

// Run is one solve invocation's ledger entry.
type Run struct {
	ID        string
	Scenario  string
	Mode      string
	Status    string
	Config    string // config snapshot, as given on the command line
	Objective sql.NullFloat64
	Error     sql.NullString
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RunStore tracks run lifecycles in the runs table.
type RunStore struct {
	db *sql.DB
}

// Create inserts a new pending run and returns its id.
func (rs *RunStore) Create(ctx context.Context, scenario, mode, config string) (*Run, error) {
	run := &Run{
		ID:       uuid.NewString(),
		Scenario: scenario,
		Mode:     mode,
		Status:   StatusPending,
		Config:   config,
	}
	_, err := rs.db.ExecContext(ctx,
		`INSERT INTO runs (id, scenario, mode, status, config) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Scenario, run.Mode, run.Status, run.Config)
	if err != nil {
		return nil, fmt.Errorf("store: create run: %w", err)
	}
	return run, nil
}

// Start marks the run as running.
func (rs *RunStore) Start(ctx context.Context, id string) error {
	return rs.setStatus(ctx, id, StatusRunning, nil, nil)
}

// Complete marks the run as complete and records its objective value.
func (rs *RunStore) Complete(ctx context.Context, id string, objective float64) error {
	return rs.setStatus(ctx, id, StatusComplete, &objective, nil)
}

// Fail marks the run as errored with the cause.
func (rs *RunStore) Fail(ctx context.Context, id string, cause error) error {
	msg := cause.Error()
	return rs.setStatus(ctx, id, StatusError, nil, &msg)
}

func (rs *RunStore) setStatus(ctx context.Context, id, status string, objective *float64, cause *string) error {
	res, err := rs.db.ExecContext(ctx,
		`UPDATE runs SET status = ?,
			objective = COALESCE(?, objective),
			error = COALESCE(?, error),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		status, objective, cause, id)
	if err != nil {
		return fmt.Errorf("store: update run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// Get returns the run with the given id.
func (rs *RunStore) Get(ctx context.Context, id string) (*Run, error) {
	row := rs.db.QueryRowContext(ctx,
		`SELECT id, scenario, mode, status, config, objective, error, created_at, updated_at
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// List returns all runs, most recent first.
func (rs *RunStore) List(ctx context.Context) ([]Run, error) {
	rows, err := rs.db.QueryContext(ctx,
		`SELECT id, scenario, mode, status, config, objective, error, created_at, updated_at
		FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var created, updated string
	err := row.Scan(&run.ID, &run.Scenario, &run.Mode, &run.Status, &run.Config,
		&run.Objective, &run.Error, &created, &updated)
	if err != nil {
		return nil, err
	}
	run.CreatedAt = parseTimestamp(created)
	run.UpdatedAt = parseTimestamp(updated)
	return &run, nil
}

// parseTimestamp reads the formats sqlite emits for CURRENT_TIMESTAMP.
// Unparseable values come back as the zero time rather than an error.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
