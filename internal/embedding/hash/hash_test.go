package hash

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDimensionDefault(t *testing.T) {
	assert.Equal(t, DefaultDimension, New(0).Dimension())
	assert.Equal(t, 64, New(64).Dimension())
}

func TestEmbedDeterministic(t *testing.T) {
	e := New(64)
	first, err := e.Embed(context.Background(), []string{"the quick brown fox"})
	require.NoError(t, err)
	second, err := e.Embed(context.Background(), []string{"the quick brown fox"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEmbedUnitLength(t *testing.T) {
	e := New(64)
	vectors, err := e.Embed(context.Background(), []string{"alpha beta gamma", "delta"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	for _, v := range vectors {
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
	}
}

func TestEmbedEmptyTextIsZeroVector(t *testing.T) {
	e := New(16)
	vectors, err := e.Embed(context.Background(), []string{""})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	for _, x := range vectors[0] {
		assert.Zero(t, x)
	}
}

func TestSharedWordsIncreaseSimilarity(t *testing.T) {
	e := New(128)
	vectors, err := e.Embed(context.Background(), []string{
		"free standard shipping takes five days",
		"standard shipping is free",
		"payments accepted by credit card",
	})
	require.NoError(t, err)

	related := dot(vectors[0], vectors[1])
	unrelated := dot(vectors[0], vectors[2])
	assert.Greater(t, related, unrelated)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
