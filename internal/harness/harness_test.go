package harness

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadAndRun(t *testing.T, path string, opts ...Option) *Result {
	t.Helper()
	s, err := LoadScenario(path)
	require.NoError(t, err)
	result, err := Run(s, opts...)
	require.NoError(t, err)
	return result
}

func mustParse(t *testing.T, yaml string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(yaml))
	require.NoError(t, err)
	return s
}

func TestRun_HappyPath(t *testing.T) {
	result := loadAndRun(t, "testdata/scenarios/create_user_happy_path.yaml")

	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
	assert.Empty(t, result.Errors)
	require.Len(t, result.Trace, 3)
	assert.Equal(t, "UserRepository.ExistsByEmail", result.Trace[0].Call())
	assert.Equal(t, []int64{1, 2, 3}, []int64{result.Trace[0].Seq, result.Trace[1].Seq, result.Trace[2].Seq})
	assert.Equal(t, []any{false}, result.Trace[0].Return)
}

func TestRun_SaveFailure(t *testing.T) {
	result := loadAndRun(t, "testdata/scenarios/create_user_save_failure.yaml")

	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
	require.Len(t, result.Trace, 2)
	assert.Equal(t, "disk full", result.Trace[1].Fail)
	assert.Nil(t, result.Trace[1].Return)
}

func TestRun_CaptureWithoutCalls(t *testing.T) {
	result := loadAndRun(t, "testdata/scenarios/capture_without_calls.yaml")
	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
}

func TestRun_WrongOrderFails(t *testing.T) {
	s := mustParse(t, `
name: wrong_order
description: save happens before the lookup
flow:
  - call: Repo.Save
    args: [u]
  - call: Repo.ExistsByEmail
    args: [e]
assertions:
  - type: verify_order
    calls:
      - {call: Repo.ExistsByEmail, args: [{any: true}]}
      - {call: Repo.Save, args: [{any: true}]}
`)
	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "assertions[0]: Verification failed: verify_order")
	assert.Contains(t, result.Errors[0], "(last seq 2) should be before Repo.Save(any) (first seq 1)")
}

func TestRun_VerifyCountMismatch(t *testing.T) {
	s := mustParse(t, `
name: count
description: two saves where one was expected
flow:
  - call: Repo.Save
    args: [a]
  - call: Repo.Save
    args: [b]
assertions:
  - type: verify
    call: Repo.Save
    args: [{any: true}]
  - type: verify
    call: Repo.Save
    args: [{any: true}]
    times: 2
`)
	result, err := Run(s)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.True(t, strings.HasPrefix(result.Errors[0], "assertions[0]: Verification failed: verify"))
	assert.Contains(t, result.Errors[0], "2 matching calls")
}

func TestRun_ExpectMismatch(t *testing.T) {
	s := mustParse(t, `
name: expect
description: stub answers differ from expectations
stubs:
  - {double: Repo, method: Find, args: [1], return: [found]}
flow:
  - call: Repo.Find
    args: [1]
    expect: {return: [missing]}
  - call: Repo.Find
    args: [2]
    expect: {fail: boom}
assertions:
  - type: verify
    call: Repo.Find
    args: [{kind: int}]
    times: 2
`)
	result, err := Run(s)
	require.NoError(t, err)

	require.Len(t, result.Errors, 2)
	assert.Equal(t, "flow[0] Repo.Find: expected return [missing], got [found]", result.Errors[0])
	assert.Equal(t, `flow[1] Repo.Find: expected failure containing "boom", got values []`, result.Errors[1])
}

func TestRun_StrictUnstubbedCall(t *testing.T) {
	const scenario = `
name: strict
description: unstubbed calls fail in strict mode
strict: true
flow:
  - call: Repo.Find
    args: [1]
assertions:
  - type: verify
    call: Repo.Find
    args: [1]
`
	result, err := Run(mustParse(t, scenario))
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "flow[0] Repo.Find: UNSTUBBED_CALL")
	assert.Contains(t, result.Trace[0].Fail, "UNSTUBBED_CALL")

	expected := strings.Replace(scenario, "    args: [1]\nassertions", "    args: [1]\n    expect: {fail: UNSTUBBED_CALL}\nassertions", 1)
	result, err = Run(mustParse(t, expected))
	require.NoError(t, err)
	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
}

func TestRun_WithStrictOption(t *testing.T) {
	s := mustParse(t, `
name: lenient
description: lenient scenario forced strict
flow:
  - call: Repo.Find
    args: [1]
assertions:
  - type: verify
    call: Repo.Find
    args: [1]
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass)

	result, err = Run(s, WithStrict())
	require.NoError(t, err)
	assert.False(t, result.Pass)
}

func TestRun_DescriptorViolations(t *testing.T) {
	s := mustParse(t, `
name: arity
description: calls and stubs that disagree with the descriptor
specs: [testdata/specs/users.cue]
stubs:
  - {double: UserRepository, method: Save, args: [a, b], return: [x]}
flow:
  - call: UserRepository.Purge
    args: []
assertions:
  - type: verify
    call: UserRepository.Save
    never: true
`)
	result, err := Run(s)
	require.NoError(t, err)

	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "stubs[0]: ARITY_MISMATCH")
	assert.Contains(t, result.Errors[1], "flow[0] UserRepository.Purge: UNKNOWN_METHOD")
}

func TestRun_EchoAndExprMatchers(t *testing.T) {
	s := mustParse(t, `
name: echo
description: computed answers
stubs:
  - {double: Svc, method: Greet, args: [{expr: "arg.startsWith('A')"}, {any: true}], echo: 1}
  - {double: Svc, method: Greet, args: [{any: true}, {any: true}], return: [nobody]}
flow:
  - call: Svc.Greet
    args: [Ada, hello]
    expect: {return: [hello]}
  - call: Svc.Greet
    args: [Bob, hello]
    expect: {return: [nobody]}
assertions:
  - type: verify
    call: Svc.Greet
    args: [{any: true}, hello]
    times: 2
  - type: capture
    call: Svc.Greet
    position: 0
    expect: Bob
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
}

func TestRun_NoMoreInteractions(t *testing.T) {
	s := mustParse(t, `
name: interactions
description: one call is never verified
flow:
  - call: Repo.Find
    args: [1]
  - call: Mailer.Send
    args: [x]
assertions:
  - type: verify
    call: Repo.Find
    args: [1]
  - type: no_more_interactions
    doubles: [Repo, Mailer]
`)
	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `+#2 Mailer.Send("x")`)
}

func TestRun_UnknownDoubleInAssertion(t *testing.T) {
	s := mustParse(t, `
name: unknown
description: assertions never create doubles
flow:
  - call: Repo.Find
    args: [1]
assertions:
  - type: no_more_interactions
    doubles: [Ghost]
  - type: no_more_interactions
    doubles: [Repo, Repo]
`)
	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, `assertions[0]: unknown double "Ghost"`, result.Errors[0])
	assert.Contains(t, result.Errors[1], "duplicate doubles")
}

func TestRun_ArgsRequiredForOpenDescriptor(t *testing.T) {
	s := mustParse(t, `
name: open
description: omitted args need a declared arity
flow:
  - call: Repo.Find
    args: [1]
assertions:
  - type: verify
    call: Repo.Find
`)
	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "args are required")
}

func TestRun_InvalidMatcherIsRunError(t *testing.T) {
	s := mustParse(t, `
name: bad_matcher
description: malformed matcher specs abort the run
stubs:
  - {double: Repo, method: Find, args: [{kind: complex}], return: [x]}
flow:
  - call: Repo.Find
    args: [1]
assertions:
  - type: verify
    call: Repo.Find
    args: [1]
`)
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind complex")
}

func TestRun_MissingSpecIsRunError(t *testing.T) {
	s := mustParse(t, `
name: spec
description: spec files must load
specs: [testdata/specs/nope.cue]
flow:
  - call: Repo.Find
assertions:
  - {type: verify, call: Repo.Find, args: []}
`)
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load specs")
}

func TestRun_LogsThroughLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	loadAndRun(t, "testdata/scenarios/create_user_happy_path.yaml", WithLogger(logger))

	assert.Contains(t, buf.String(), "flow step completed")
	assert.Contains(t, buf.String(), "scenario=create_user_happy_path")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertCapture,
		Expected: "a",
		Actual:   "b",
		Trace:    []TraceEvent{{Seq: 1, Double: "Repo", Method: "Find", Args: []any{1}, Return: []any{"x"}}},
	}
	assert.Equal(t, "Assertion failed: capture\n  Expected: a\n  Actual: b\n\nFull trace:\n  #1 Repo.Find[1] -> [x]", err.Error())
}

func TestCaptureMismatch(t *testing.T) {
	s := mustParse(t, `
name: capture
description: captured value differs
flow:
  - call: Repo.Save
    args: [a]
assertions:
  - {type: capture, call: Repo.Save, position: 0, expect: b}
  - {type: capture, call: Repo.Save, position: 0, error: NO_INVOCATION_RECORDED}
  - {type: capture, call: Repo.Save, position: 3, error: NO_INVOCATION_RECORDED}
`)
	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "Expected: Repo.Save argument 0 = b")
	assert.Contains(t, result.Errors[1], "Actual: captured a")
	assert.Contains(t, result.Errors[2], "ARITY_MISMATCH")
}
