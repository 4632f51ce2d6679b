package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/doubles/internal/canon"
	"github.com/roach88/doubles/internal/harness"
)

func sampleResult() *harness.Result {
	r := harness.NewResult("create_user")
	r.Trace = []harness.TraceEvent{
		{Seq: 1, Double: "UserRepository", Method: "ExistsByEmail", Args: []any{"x@y.com"}, Return: []any{false}},
		{Seq: 2, Double: "UserRepository", Method: "Save", Args: []any{map[string]any{"name": "Ada", "email": "x@y.com"}}, Fail: "disk full"},
		{Seq: 3, Double: "Clock", Method: "Now", Args: []any{}},
	}
	return r
}

func TestWriteRun_GeneratesID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.WriteRun(ctx, sampleResult())
	require.NoError(t, err)
	assert.Equal(t, "run-0001", id)

	id, err = s.WriteRun(ctx, sampleResult())
	require.NoError(t, err)
	assert.Equal(t, "run-0002", id)
}

func TestWriteRun_CanonicalColumns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.WriteRun(ctx, sampleResult())
	require.NoError(t, err)

	invs, err := s.ReadInvocations(ctx, id)
	require.NoError(t, err)
	require.Len(t, invs, 3)

	assert.Equal(t, `["x@y.com"]`, invs[0].Args)
	assert.Equal(t, `{"return":[false]}`, invs[0].Outcome)
	assert.Equal(t, `[{"email":"x@y.com","name":"Ada"}]`, invs[1].Args)
	assert.Equal(t, `{"fail":"disk full"}`, invs[1].Outcome)
	assert.Equal(t, `[]`, invs[2].Args)
	assert.Equal(t, `{}`, invs[2].Outcome)
}

func TestWriteRun_FixedIDReplaces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := sampleResult()
	first.RunID = "fixed"
	_, err := s.WriteRun(ctx, first)
	require.NoError(t, err)

	second := harness.NewResult("create_user")
	second.RunID = "fixed"
	second.AddError("boom")
	second.Trace = first.Trace[:1]
	id, err := s.WriteRun(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "fixed", id)

	runs, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.False(t, runs[0].Pass)
	assert.Equal(t, []string{"boom"}, runs[0].Errors)
	assert.Equal(t, 1, runs[0].Calls)
	assert.Equal(t, int64(1), runs[0].CreatedSeq)
}

func TestWriteRun_DuplicateSeqRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	r := sampleResult()
	r.Trace = append(r.Trace, r.Trace[0])
	_, err := s.WriteRun(ctx, r)
	require.Error(t, err)

	runs, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestWriteRun_UnmarshalableArgs(t *testing.T) {
	s := createTestStore(t)

	r := harness.NewResult("bad")
	r.Trace = []harness.TraceEvent{{Seq: 1, Double: "D", Method: "m", Args: []any{make(chan int)}}}
	_, err := s.WriteRun(context.Background(), r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write run:")
}

func TestWriteRun_TraceHash(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := s.WriteRun(ctx, sampleResult())
	require.NoError(t, err)
	second, err := s.WriteRun(ctx, sampleResult())
	require.NoError(t, err)
	changed := sampleResult()
	changed.Trace[0].Return = []any{true}
	third, err := s.WriteRun(ctx, changed)
	require.NoError(t, err)

	get := func(id string) string {
		run, err := s.GetRun(ctx, id)
		require.NoError(t, err)
		return run.TraceHash
	}

	want, err := canon.Hash(canon.DomainTrace, sampleResult().Trace)
	require.NoError(t, err)
	assert.Equal(t, want, get(first))
	assert.Equal(t, get(first), get(second))
	assert.NotEqual(t, get(first), get(third))
}

func TestDeleteRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.WriteRun(ctx, sampleResult())
	require.NoError(t, err)

	require.NoError(t, s.DeleteRun(ctx, id))

	invs, err := s.ReadInvocations(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, invs)

	assert.ErrorIs(t, s.DeleteRun(ctx, id), ErrRunNotFound)
}
