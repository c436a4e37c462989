package openai

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv("RAGCORE_TEST_KEY", "")
	_, err := New(Config{APIKeyEnv: "RAGCORE_TEST_KEY"})
	require.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	t.Setenv("RAGCORE_TEST_KEY", "sk-test")
	e, err := New(Config{APIKeyEnv: "RAGCORE_TEST_KEY"})
	require.NoError(t, err)
	assert.Equal(t, "openai-text-embedding-3-small", e.Name())
	assert.Equal(t, 1536, e.Dimension())
}

func TestNewDimensionOverride(t *testing.T) {
	t.Setenv("RAGCORE_TEST_KEY", "sk-test")
	e, err := New(Config{APIKeyEnv: "RAGCORE_TEST_KEY", Dimension: 384})
	require.NoError(t, err)
	assert.Equal(t, 384, e.Dimension())
}

func TestL2Normalize(t *testing.T) {
	v := []float32{3, 4}
	l2normalize(v)
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)

	zero := []float32{0, 0}
	l2normalize(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}
