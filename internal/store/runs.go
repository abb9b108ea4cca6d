package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/nodegraph/internal/ir"
)

// ErrRunNotFound is returned by ReadRun for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one ExecutePlan invocation.
type RunRecord struct {
	ID       string       `json:"id"`
	Seq      int64        `json:"seq,omitempty"`
	PlanHash string       `json:"plan_hash"`
	Mode     string       `json:"mode"`
	Policy   string       `json:"policy"`
	Status   string       `json:"status"`
	Tasks    int          `json:"tasks"`
	Failed   int          `json:"failed"`
	Skipped  int          `json:"skipped"`
	Results  []TaskRecord `json:"results,omitempty"`
}

// TaskRecord is the outcome of one plan task within a run.
type TaskRecord struct {
	Position int         `json:"position"`
	Kind     string      `json:"kind"`
	Label    string      `json:"label"`
	Layer    int         `json:"layer"`
	Status   string      `json:"status"`
	Outputs  ir.IRObject `json:"outputs"`
	Error    string      `json:"error,omitempty"`
}

// RecordRun writes a run and its task results in one transaction and returns
// the assigned seq. run.Seq is ignored.
func (s *Store) RecordRun(ctx context.Context, run RunRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("record run: begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM plan_runs
	`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("record run: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO plan_runs
		(id, seq, plan_hash, mode, policy, status, tasks, failed, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		seq,
		run.PlanHash,
		run.Mode,
		run.Policy,
		run.Status,
		run.Tasks,
		run.Failed,
		run.Skipped,
	)
	if err != nil {
		return 0, fmt.Errorf("record run: insert run: %w", err)
	}

	for _, r := range run.Results {
		outputs, err := marshalOutputs(r.Outputs)
		if err != nil {
			return 0, fmt.Errorf("record run: task %d: %w", r.Position, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_results
			(run_id, position, kind, label, layer, status, outputs, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, r.Position, r.Kind, r.Label, r.Layer, r.Status, outputs, r.Error)
		if err != nil {
			return 0, fmt.Errorf("record run: task %d: %w", r.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("record run: commit: %w", err)
	}
	return seq, nil
}

// ListRuns returns every run without task results, ordered by seq ASC.
func (s *Store) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, plan_hash, mode, policy, status, tasks, failed, skipped
		FROM plan_runs
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns one run with its task results ordered by position.
// Returns ErrRunNotFound if id is unknown.
func (s *Store) ReadRun(ctx context.Context, id string) (RunRecord, error) {
	return s.readRun(ctx, id, `
		SELECT position, kind, label, layer, status, outputs, error
		FROM task_results
		WHERE run_id = ?
		ORDER BY position ASC
	`, id)
}

// ReadRunFailures is ReadRun with only the failed task results.
func (s *Store) ReadRunFailures(ctx context.Context, id string) (RunRecord, error) {
	return s.readRun(ctx, id, `
		SELECT position, kind, label, layer, status, outputs, error
		FROM task_results
		WHERE run_id = ? AND status = 'failed'
		ORDER BY position ASC
	`, id)
}

func (s *Store) readRun(ctx context.Context, id, tasksQuery string, args ...any) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, plan_hash, mode, policy, status, tasks, failed, skipped
		FROM plan_runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("read run %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, tasksQuery, args...)
	if err != nil {
		return RunRecord{}, fmt.Errorf("read run %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var r TaskRecord
		var outputs string
		if err := rows.Scan(&r.Position, &r.Kind, &r.Label, &r.Layer, &r.Status, &outputs, &r.Error); err != nil {
			return RunRecord{}, fmt.Errorf("read run %s: scan task: %w", id, err)
		}
		if r.Outputs, err = unmarshalOutputs(outputs); err != nil {
			return RunRecord{}, fmt.Errorf("read run %s: task %d: %w", id, r.Position, err)
		}
		run.Results = append(run.Results, r)
	}
	if err := rows.Err(); err != nil {
		return RunRecord{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var r RunRecord
	err := row.Scan(&r.ID, &r.Seq, &r.PlanHash, &r.Mode, &r.Policy, &r.Status, &r.Tasks, &r.Failed, &r.Skipped)
	return r, err
}
