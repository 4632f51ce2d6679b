package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ResolvesSpecPaths(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/create_user_happy_path.yaml")
	require.NoError(t, err)

	assert.Equal(t, "create_user_happy_path", s.Name)
	assert.True(t, s.Strict)
	assert.Equal(t, "golden-run-001", s.RunID)
	assert.Equal(t, []string{filepath.Join("testdata", "specs", "users.cue")}, s.Specs)
	require.Len(t, s.Stubs, 3)
	require.NotNil(t, s.Stubs[1].Echo)
	assert.Equal(t, 0, *s.Stubs[1].Echo)
	assert.Equal(t, []any{map[string]any{"any": true}}, s.Stubs[1].Args)
	require.Len(t, s.Flow, 3)
	assert.Equal(t, []any{false}, s.Flow[0].Expect.Return)
}

func TestLoadScenario_CallRefForms(t *testing.T) {
	data := []byte(`
name: refs
description: both forms of call references
flow:
  - call: A.run
    args: []
assertions:
  - type: verify_order
    calls:
      - A.run
      - call: B.stop
        args: [1]
`)
	s, err := ParseScenario(data)
	require.NoError(t, err)
	assert.Equal(t, []CallRef{
		{Call: "A.run"},
		{Call: "B.stop", Args: []any{1}},
	}, s.Assertions[0].Calls)
}

func TestLoadScenario_Missing(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadScenario_MissingSpecFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: s
description: d
specs: [missing.cue]
flow:
  - call: A.run
assertions:
  - type: verify
    call: A.run
    args: []
`), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spec file not found")
}

func TestParseScenario_Invalid(t *testing.T) {
	const flow = "flow:\n  - call: A.run\n"
	const verify = "assertions:\n  - type: verify\n    call: A.run\n"

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown field", "name: n\ndescription: d\nasertions: []\n" + flow + verify, "field asertions not found"},
		{"missing name", "description: d\n" + flow + verify, "name is required"},
		{"missing description", "name: n\n" + flow + verify, "description is required"},
		{"missing flow", "name: n\ndescription: d\n" + verify, "flow list is required"},
		{"missing assertions", "name: n\ndescription: d\n" + flow, "assertions list is required"},
		{"bad call", "name: n\ndescription: d\nflow:\n  - call: run\n" + verify, `call "run" must have the form Double.method`},
		{"two responses", "name: n\ndescription: d\nstubs:\n  - {double: A, method: run, return: [1], fail: boom}\n" + flow + verify, "exactly one of return, fail or echo"},
		{"no response", "name: n\ndescription: d\nstubs:\n  - {double: A, method: run}\n" + flow + verify, "exactly one of return, fail or echo"},
		{"echo out of range", "name: n\ndescription: d\nstubs:\n  - {double: A, method: run, args: [1], echo: 1}\n" + flow + verify, "echo position 1 out of range"},
		{"stub without double", "name: n\ndescription: d\nstubs:\n  - {method: run, return: []}\n" + flow + verify, "double and method are required"},
		{"expect both", "name: n\ndescription: d\nflow:\n  - call: A.run\n    expect: {return: [1], fail: x}\n" + verify, "return and fail are exclusive"},
		{"unknown assertion", "name: n\ndescription: d\n" + flow + "assertions:\n  - type: trace_contains\n", `unknown assertion type "trace_contains"`},
		{"missing type", "name: n\ndescription: d\n" + flow + "assertions:\n  - call: A.run\n", "type is required"},
		{"exclusive counts", "name: n\ndescription: d\n" + flow + "assertions:\n  - {type: verify, call: A.run, never: true, times: 2}\n", "exclusive"},
		{"negative times", "name: n\ndescription: d\n" + flow + "assertions:\n  - {type: verify, call: A.run, times: -1}\n", "times must be non-negative"},
		{"short order", "name: n\ndescription: d\n" + flow + "assertions:\n  - {type: verify_order, calls: [A.run]}\n", "at least two calls"},
		{"bad order entry", "name: n\ndescription: d\n" + flow + "assertions:\n  - {type: verify_order, calls: [A.run, B]}\n", "calls[1]"},
		{"negative position", "name: n\ndescription: d\n" + flow + "assertions:\n  - {type: capture, call: A.run, position: -1}\n", "position must be non-negative"},
		{"no doubles", "name: n\ndescription: d\n" + flow + "assertions:\n  - {type: no_more_interactions}\n", "doubles list is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFindScenarios(t *testing.T) {
	files, err := FindScenarios("testdata/scenarios")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "scenarios", "capture_without_calls.yaml"),
		filepath.Join("testdata", "scenarios", "create_user_happy_path.yaml"),
		filepath.Join("testdata", "scenarios", "create_user_save_failure.yaml"),
	}, files)
}

func TestSplitCall(t *testing.T) {
	d, m, err := splitCall("UserRepository.Save")
	require.NoError(t, err)
	assert.Equal(t, "UserRepository", d)
	assert.Equal(t, "Save", m)

	for _, bad := range []string{"", "Save", ".Save", "Repo.", "a.b.c"} {
		_, _, err := splitCall(bad)
		assert.Error(t, err, bad)
	}
}
