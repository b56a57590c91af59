package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eddiedunn/moltest/internal/api"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when no stored run matches an id.
var ErrRunNotFound = errors.New("run not found")

var newRunID = uuid.NewString

// Record is one orchestrated run to be stored.
type Record struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Root       string
	ExitCode   int
	Outcomes   []api.Outcome
}

// Run is a stored run with its counts.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Root       string
	Summary    api.Summary
	ExitCode   int
}

// Duration is the wall-clock length of the run.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RecordRun stores rec in a single transaction and returns its new id.
func (s *Store) RecordRun(ctx context.Context, rec Record) (string, error) {
	id := newRunID()
	sum := api.Summarize(rec.Outcomes)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, started_at, finished_at, root, total, passed, failed, skipped, errored, exit_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		formatTime(rec.StartedAt),
		formatTime(rec.FinishedAt),
		rec.Root,
		sum.Total,
		sum.Passed,
		sum.Failed,
		sum.Skipped,
		sum.Errored,
		rec.ExitCode,
	)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO outcomes
		(run_id, position, scenario_id, role, scenario, status, duration_ms, exit_code, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	defer stmt.Close()

	for i, o := range rec.Outcomes {
		var exitCode sql.NullInt64
		if o.ExitCode != nil {
			exitCode = sql.NullInt64{Int64: int64(*o.ExitCode), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, id, i, o.ID, o.Role, o.Scenario, string(o.Status), o.Duration.Milliseconds(), exitCode, o.Reason); err != nil {
			return "", fmt.Errorf("record outcome %s: %w", o.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	return id, nil
}

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, started_at, finished_at, root, total, passed, failed, skipped, errored, exit_code
		FROM runs
		ORDER BY started_at DESC, id
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the run whose id is or starts with idPrefix, and its
// outcomes in selection order. A prefix matching several runs is an error.
func (s *Store) GetRun(ctx context.Context, idPrefix string) (*Run, []api.Outcome, error) {
	if idPrefix == "" {
		return nil, nil, ErrRunNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, root, total, passed, failed, skipped, errored, exit_code
		FROM runs
		WHERE id = ? OR substr(id, 1, ?) = ?
		ORDER BY id
		LIMIT 2
	`, idPrefix, len(idPrefix), idPrefix)
	if err != nil {
		return nil, nil, fmt.Errorf("get run: %w", err)
	}
	var matches []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("get run: %w", err)
		}
		matches = append(matches, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("get run: %w", err)
	}

	switch len(matches) {
	case 0:
		return nil, nil, fmt.Errorf("%w: %s", ErrRunNotFound, idPrefix)
	case 1:
	default:
		return nil, nil, fmt.Errorf("run id prefix %q is ambiguous", idPrefix)
	}

	run := matches[0]
	outcomes, err := s.outcomes(ctx, run.ID)
	if err != nil {
		return nil, nil, err
	}
	return &run, outcomes, nil
}

func (s *Store) outcomes(ctx context.Context, runID string) ([]api.Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scenario_id, role, scenario, status, duration_ms, exit_code, reason
		FROM outcomes
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []api.Outcome
	for rows.Next() {
		var (
			o        api.Outcome
			status   string
			ms       int64
			exitCode sql.NullInt64
		)
		if err := rows.Scan(&o.ID, &o.Role, &o.Scenario, &status, &ms, &exitCode, &o.Reason); err != nil {
			return nil, fmt.Errorf("get outcomes: %w", err)
		}
		o.Status = api.Status(status)
		o.Duration = time.Duration(ms) * time.Millisecond
		if exitCode.Valid {
			o.ExitCode = api.IntPtr(int(exitCode.Int64))
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get outcomes: %w", err)
	}
	return outcomes, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r                 Run
		started, finished string
	)
	err := row.Scan(&r.ID, &started, &finished, &r.Root,
		&r.Summary.Total, &r.Summary.Passed, &r.Summary.Failed, &r.Summary.Skipped, &r.Summary.Errored,
		&r.ExitCode)
	if err != nil {
		return Run{}, err
	}
	if r.StartedAt, err = parseTime(started); err != nil {
		return Run{}, err
	}
	if r.FinishedAt, err = parseTime(finished); err != nil {
		return Run{}, err
	}
	return r, nil
}

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
