package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run is one recorded scenario invocation.
type Run struct {
	ID        string
	Scenario  string
	Mode      string
	StartedAt time.Time
	Duration  time.Duration
	Status    string
	OutPath   string
}

// NewRunID returns a UUIDv7 run id. UUIDv7 is time-ordered, so ids sort
// in creation order. Falls back to UUIDv4 if v7 generation fails
// (entropy exhaustion).
func NewRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// RecordRun inserts a run row. The caller supplies the id so a run can
// be referenced before it is recorded.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	if run.Status != StatusOK && run.Status != StatusFailed {
		return fmt.Errorf("invalid run status %q", run.Status)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, mode, started_at, duration_ms, status, out_path)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Scenario,
		run.Mode,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Duration.Milliseconds(),
		run.Status,
		run.OutPath,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first, up to limit.
// A non-positive limit returns everything.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, scenario, mode, started_at, duration_ms, status, out_path
		FROM runs
		ORDER BY started_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			startedAt  string
			durationMS int64
		)
		if err := rows.Scan(&run.ID, &run.Scenario, &run.Mode, &startedAt, &durationMS, &run.Status, &run.OutPath); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("malformed started_at %q: %w", startedAt, err)
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}
