package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_Deterministic(t *testing.T) {
	a, err := Hash(DomainTrace, map[string]any{"b": 1, "a": []any{"x"}})
	require.NoError(t, err)
	b, err := Hash(DomainTrace, map[string]any{"a": []any{"x"}, "b": 1})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestHash_Format(t *testing.T) {
	got, err := Hash("d", []int{1})
	require.NoError(t, err)

	sum := sha256.Sum256([]byte("d\x00[1]"))
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
}

func TestHash_DomainSeparation(t *testing.T) {
	a, err := Hash("doubles/a/v1", "x")
	require.NoError(t, err)
	b, err := Hash("doubles/b/v1", "x")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestHash_Unmarshalable(t *testing.T) {
	_, err := Hash(DomainTrace, make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash doubles/trace/v1")
}
