package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFormat(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		tok, err := Generate("ctr", now)
		require.NoError(t, err)
		assert.True(t, Valid(tok), tok)
		assert.Contains(t, tok, "MR3X-CTR-2025-")
		seen[tok] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)

	_, err := Generate("c1", now)
	assert.Error(t, err)
}

func TestContentHashCanonicalOrder(t *testing.T) {
	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	a, err := ContentHash(map[string]any{"rent": 1000, "tenant": "Ana"}, "10.0.0.1", at)
	require.NoError(t, err)
	b, err := ContentHash(struct {
		Tenant string `json:"tenant"`
		Rent   int    `json:"rent"`
	}{"Ana", 1000}, "10.0.0.1", at)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestContentHashDependsOnGenerationEvent(t *testing.T) {
	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	data := map[string]any{"rent": 1000}

	base, err := ContentHash(data, "10.0.0.1", at)
	require.NoError(t, err)
	otherIP, err := ContentHash(data, "10.0.0.2", at)
	require.NoError(t, err)
	later, err := ContentHash(data, "10.0.0.1", at.Add(time.Second))
	require.NoError(t, err)

	assert.NotEqual(t, base, otherIP)
	assert.NotEqual(t, base, later)

	ok, err := VerifyContentHash(base, data, "10.0.0.1", at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyContentHash(base, map[string]any{"rent": 1001}, "10.0.0.1", at)
	require.NoError(t, err)
	assert.False(t, ok)
}
