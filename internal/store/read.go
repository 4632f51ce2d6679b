package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/doubles/internal/harness"
)

// ErrRunNotFound is returned for unknown run IDs.
var ErrRunNotFound = errors.New("run not found")

// Run is an archived scenario run.
type Run struct {
	ID         string   `json:"id"`
	Scenario   string   `json:"scenario"`
	Pass       bool     `json:"pass"`
	Errors     []string `json:"errors"`
	TraceHash  string   `json:"trace_hash"`
	CreatedSeq int64    `json:"created_seq"`
	Calls      int      `json:"calls"`
}

// Invocation is an archived call. Args and Outcome hold canonical JSON.
type Invocation struct {
	RunID   string `json:"run_id"`
	Seq     int64  `json:"seq"`
	Double  string `json:"double"`
	Method  string `json:"method"`
	Args    string `json:"args"`
	Outcome string `json:"outcome"`
}

// ListRuns returns archived runs in insertion order. A non-empty scenario
// restricts the list to that scenario.
//
// Returns an empty slice (not nil) if there are no runs.
func (s *Store) ListRuns(ctx context.Context, scenario string) ([]Run, error) {
	query := `
		SELECT r.id, r.scenario, r.pass, r.errors, r.trace_hash, r.created_seq,
		       (SELECT COUNT(*) FROM invocations i WHERE i.run_id = r.id)
		FROM runs r`
	var args []any
	if scenario != "" {
		query += ` WHERE r.scenario = ?`
		args = append(args, scenario)
	}
	query += ` ORDER BY r.created_seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run, or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.scenario, r.pass, r.errors, r.trace_hash, r.created_seq,
		       (SELECT COUNT(*) FROM invocations i WHERE i.run_id = r.id)
		FROM runs r
		WHERE r.id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	return run, err
}

// LatestRun returns the most recently written run, or ErrRunNotFound.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY created_seq DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("latest run: %w", ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("latest run: %w", err)
	}
	return s.GetRun(ctx, id)
}

// ReadInvocations returns the calls of a run ordered by seq.
//
// Returns an empty slice (not nil) if the run has no calls.
func (s *Store) ReadInvocations(ctx context.Context, runID string) ([]Invocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, double_name, method, args, outcome
		FROM invocations
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	invs := []Invocation{}
	for rows.Next() {
		var inv Invocation
		if err := rows.Scan(&inv.RunID, &inv.Seq, &inv.Double, &inv.Method, &inv.Args, &inv.Outcome); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		invs = append(invs, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	return invs, nil
}

// ReadTrace rebuilds the harness trace of a run. Numbers decode as
// json.Number, so the trace marshals back to the archived bytes.
func (s *Store) ReadTrace(ctx context.Context, runID string) ([]harness.TraceEvent, error) {
	invs, err := s.ReadInvocations(ctx, runID)
	if err != nil {
		return nil, err
	}

	trace := make([]harness.TraceEvent, 0, len(invs))
	for _, inv := range invs {
		var args []any
		if err := decodeJSON(inv.Args, &args); err != nil {
			return nil, fmt.Errorf("seq %d: unmarshal args: %w", inv.Seq, err)
		}
		out, err := unmarshalOutcome(inv.Outcome)
		if err != nil {
			return nil, fmt.Errorf("seq %d: %w", inv.Seq, err)
		}
		trace = append(trace, harness.TraceEvent{
			Seq:    inv.Seq,
			Double: inv.Double,
			Method: inv.Method,
			Args:   args,
			Return: out.Return,
			Fail:   out.Fail,
		})
	}
	return trace, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run        Run
		errorsJSON string
	)
	if err := row.Scan(&run.ID, &run.Scenario, &run.Pass, &errorsJSON, &run.TraceHash, &run.CreatedSeq, &run.Calls); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if err := decodeJSON(errorsJSON, &run.Errors); err != nil {
		return Run{}, fmt.Errorf("unmarshal errors: %w", err)
	}
	return run, nil
}

// decodeJSON decodes with json.Number so large integers survive.
func decodeJSON(data string, v any) error {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
