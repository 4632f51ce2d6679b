package store

import (
	"context"
	"fmt"

	"github.com/roach88/doubles/internal/canon"
	"github.com/roach88/doubles/internal/harness"
)

// WriteRun archives a scenario result and returns its run ID. The ID is
// result.RunID when set, otherwise a generated one. Writing a run ID
// again replaces the earlier run.
//
// Arguments and outcomes are stored as canonical JSON. Runs with equal
// traces share a trace hash.
func (s *Store) WriteRun(ctx context.Context, result *harness.Result) (string, error) {
	id := result.RunID
	if id == "" {
		id = s.idGen.Generate()
	}

	errorsJSON, err := canon.Marshal(nonNil(result.Errors))
	if err != nil {
		return "", fmt.Errorf("write run: marshal errors: %w", err)
	}

	traceHash, err := canon.Hash(canon.DomainTrace, result.Trace)
	if err != nil {
		return "", fmt.Errorf("write run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return "", fmt.Errorf("write run: replace: %w", err)
	}

	var createdSeq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(created_seq), 0) + 1 FROM runs`).Scan(&createdSeq); err != nil {
		return "", fmt.Errorf("write run: next seq: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, pass, errors, trace_hash, created_seq)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, result.Scenario, result.Pass, string(errorsJSON), traceHash, createdSeq); err != nil {
		return "", fmt.Errorf("write run: %w", err)
	}

	for _, event := range result.Trace {
		argsJSON, outcomeJSON, err := marshalEvent(event)
		if err != nil {
			return "", fmt.Errorf("write run: seq %d: %w", event.Seq, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO invocations (run_id, seq, double_name, method, args, outcome)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, event.Seq, event.Double, event.Method, argsJSON, outcomeJSON); err != nil {
			return "", fmt.Errorf("write run: seq %d: %w", event.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("write run: commit: %w", err)
	}
	return id, nil
}

// DeleteRun removes a run and its invocations.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// outcome is the stored form of a call's outcome.
type outcome struct {
	Return []any  `json:"return,omitempty"`
	Fail   string `json:"fail,omitempty"`
}

func marshalEvent(event harness.TraceEvent) (args, out string, err error) {
	argsJSON, err := canon.Marshal(nonNil(event.Args))
	if err != nil {
		return "", "", fmt.Errorf("marshal args: %w", err)
	}
	outJSON, err := canon.Marshal(outcome{Return: event.Return, Fail: event.Fail})
	if err != nil {
		return "", "", fmt.Errorf("marshal outcome: %w", err)
	}
	return string(argsJSON), string(outJSON), nil
}

func unmarshalOutcome(data string) (outcome, error) {
	var out outcome
	if err := decodeJSON(data, &out); err != nil {
		return outcome{}, fmt.Errorf("unmarshal outcome: %w", err)
	}
	return out, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
