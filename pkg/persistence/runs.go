package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"autogippity/pkg/agent"
	"autogippity/pkg/factsheet"
	"autogippity/pkg/proto"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Run statuses.
const (
	RunStatusRunning  = "running"
	RunStatusFinished = "finished"
	RunStatusFailed   = "failed"
)

// Run is one pipeline execution.
type Run struct {
	StartedAt   time.Time
	FinishedAt  *time.Time
	FactSheet   *factsheet.FactSheet
	ID          string
	Description string
	Model       string
	Status      string
	FinalState  proto.State
	Error       string
}

// NewRun creates a running record with a fresh ID.
func NewRun(fs *factsheet.FactSheet, model string) *Run {
	return &Run{
		ID:          uuid.NewString(),
		Description: fs.ProjectDescription,
		Model:       model,
		Status:      RunStatusRunning,
		FactSheet:   fs,
		StartedAt:   time.Now().UTC(),
	}
}

// Finish marks the run complete with the agent's final state and error.
func (r *Run) Finish(state proto.State, err error) {
	now := time.Now().UTC()
	r.FinishedAt = &now
	r.FinalState = state
	r.Status = RunStatusFinished
	r.Error = ""
	if err != nil {
		r.Status = RunStatusFailed
		r.Error = err.Error()
	}
}

// Duration returns how long the run took, or has taken so far.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts the stored layout as well as the RFC 3339 form the driver
// hands back for DATETIME columns, which drops trailing fractional zeros.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}

// SaveRun inserts or updates a run.
func (s *Store) SaveRun(ctx context.Context, r *Run) error {
	fs := r.FactSheet
	if fs == nil {
		fs = factsheet.New(r.Description)
	}
	sheet, err := json.Marshal(fs)
	if err != nil {
		return fmt.Errorf("failed to encode fact sheet: %w", err)
	}

	var finished sql.NullString
	if r.FinishedAt != nil {
		finished = sql.NullString{String: formatTime(*r.FinishedAt), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, description, model, status, final_state, error, fact_sheet, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			final_state = excluded.final_state,
			error = excluded.error,
			fact_sheet = excluded.fact_sheet,
			finished_at = excluded.finished_at`,
		r.ID, r.Description, r.Model, r.Status, string(r.FinalState), r.Error, string(sheet),
		formatTime(r.StartedAt), finished)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", r.ID, err)
	}
	return nil
}

// SaveTransitions replaces the recorded transitions of a run.
func (s *Store) SaveTransitions(ctx context.Context, runID string, transitions []agent.StateTransition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_transitions WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear transitions: %w", err)
	}
	for i, t := range transitions {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_transitions (run_id, seq, from_state, to_state, at) VALUES (?, ?, ?, ?, ?)`,
			runID, i, string(t.FromState), string(t.ToState), formatTime(t.Timestamp))
		if err != nil {
			return fmt.Errorf("failed to insert transition %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transitions: %w", err)
	}
	return nil
}

const runColumns = `id, description, model, status, final_state, error, fact_sheet, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		r        Run
		state    string
		sheet    string
		started  string
		finished sql.NullString
	)
	if err := row.Scan(&r.ID, &r.Description, &r.Model, &r.Status, &state, &r.Error, &sheet, &started, &finished); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}
	r.FinalState = proto.State(state)

	var err error
	if r.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if finished.Valid {
		t, err := parseTime(finished.String)
		if err != nil {
			return nil, err
		}
		r.FinishedAt = &t
	}

	r.FactSheet = &factsheet.FactSheet{}
	if err := json.Unmarshal([]byte(sheet), r.FactSheet); err != nil {
		return nil, fmt.Errorf("failed to decode fact sheet of run %s: %w", r.ID, err)
	}
	return &r, nil
}

// GetRun returns the run with the given ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns up to limit runs, newest first. A non-positive limit returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// Transitions returns a run's recorded transitions in order.
func (s *Store) Transitions(ctx context.Context, runID string) ([]agent.StateTransition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT from_state, to_state, at FROM run_transitions WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []agent.StateTransition
	for rows.Next() {
		var from, to, at string
		if err := rows.Scan(&from, &to, &at); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		ts, err := parseTime(at)
		if err != nil {
			return nil, err
		}
		out = append(out, agent.StateTransition{FromState: proto.State(from), ToState: proto.State(to), Timestamp: ts})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transitions: %w", err)
	}
	return out, nil
}
