package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_MatchesDomainSeparatedDigest(t *testing.T) {
	got, err := Hash(DomainSchema, map[string]any{"b": 1, "a": []any{true}})
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(DomainSchema + "\x00" + `{"a":[true],"b":1}`))
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
}

func TestHash_DomainSeparates(t *testing.T) {
	a, err := Hash(DomainSchema, "x")
	require.NoError(t, err)
	b, err := Hash("catom/other/v1", "x")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 64)
}

func TestHash_OrderIndependent(t *testing.T) {
	a, err := Hash(DomainSchema, map[string]int{"x": 1, "y": 2})
	require.NoError(t, err)
	b, err := Hash(DomainSchema, map[string]any{"y": 2, "x": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHash_UnencodableValue(t *testing.T) {
	_, err := Hash(DomainSchema, math.NaN())
	require.Error(t, err)
	assert.Contains(t, err.Error(), DomainSchema)
}
