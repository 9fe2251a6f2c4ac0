package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/resilience"
)

func TestHashImage_Deterministic(t *testing.T) {
	data := []byte("not really a jpeg")
	a := HashImage(data)
	b := HashImage(data)
	assert.Equal(t, a, b)
	assert.Len(t, string(a), 64)

	c := HashImage([]byte("different bytes"))
	assert.NotEqual(t, a, c)
}

func TestHashParams_KeyOrderIndependent(t *testing.T) {
	a, err := HashParams(map[string]any{
		"provider": "anthropic",
		"model":    "claude-sonnet-4-5-20250929",
		"prompt":   "v2",
	})
	require.NoError(t, err)

	b, err := HashParams(map[string]any{
		"prompt":   "v2",
		"model":    "claude-sonnet-4-5-20250929",
		"provider": "anthropic",
	})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestHashParams_StructAndMapAgree(t *testing.T) {
	type params struct {
		Provider string `json:"provider"`
		Model    string `json:"model"`
	}
	// Struct field order differs from sorted key order; the canonical form
	// must not care.
	a, err := HashParams(params{Provider: "anthropic", Model: "m1"})
	require.NoError(t, err)
	b, err := HashParams(map[string]string{"model": "m1", "provider": "anthropic"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHashParams_VersionBumpChangesKey(t *testing.T) {
	a, err := HashParams(map[string]string{"provider": "anthropic", "prompt": "v1"})
	require.NoError(t, err)
	b, err := HashParams(map[string]string{"provider": "anthropic", "prompt": "v2"})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashParams_Unserializable(t *testing.T) {
	_, err := HashParams(map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.True(t, resilience.IsConfiguration(err))
}
