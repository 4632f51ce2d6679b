package harness

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sebdah/goldie/v2"

	"github.com/roach88/doubles/internal/canon"
)

// DefaultGoldenDir is where golden traces live, relative to the package
// under test.
const DefaultGoldenDir = "testdata/golden"

// TraceSnapshot captures the trace of a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	RunID        string       `json:"run_id,omitempty"`
	Trace        []TraceEvent `json:"trace"`
}

// Snapshot builds the snapshot for a result.
func Snapshot(result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: result.Scenario,
		RunID:        result.RunID,
		Trace:        result.Trace,
	}
}

// Marshal encodes the snapshot as canonical JSON, so identical traces
// produce identical bytes.
func (s TraceSnapshot) Marshal() ([]byte, error) {
	return canon.Marshal(s)
}

// RunWithGolden executes a scenario and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the trace of an existing result against its
// golden file.
func AssertGolden(t *testing.T, result *Result) error {
	t.Helper()

	traceJSON, err := Snapshot(result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(DefaultGoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, result.Scenario, traceJSON)
	return nil
}

// ErrGoldenMismatch is wrapped by CheckGolden when the trace differs.
var ErrGoldenMismatch = errors.New("trace differs from golden file")

// CheckGolden compares a result with dir/{scenario}.golden outside of
// go test. With update set, the file is written instead. A missing golden
// file is an error unless update is set.
func CheckGolden(dir string, result *Result, update bool) error {
	traceJSON, err := Snapshot(result).Marshal()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, result.Scenario+".golden")

	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create golden dir: %w", err)
		}
		if err := os.WriteFile(path, traceJSON, 0o644); err != nil {
			return fmt.Errorf("write golden file: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}
	if bytes.Equal(want, traceJSON) {
		return nil
	}

	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(indent(want)),
		B:        difflib.SplitLines(indent(traceJSON)),
		FromFile: path,
		ToFile:   "actual",
		Context:  3,
	})
	return fmt.Errorf("%w: %s\n%s", ErrGoldenMismatch, path, diff)
}

// indent pretty-prints a golden trace for diffing. Invalid JSON is
// returned unchanged.
func indent(data []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return string(data)
	}
	return buf.String() + "\n"
}
