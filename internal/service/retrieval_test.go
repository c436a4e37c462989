package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/domain"
	"ragcore/internal/vectorstore"
	"ragcore/internal/vectorstore/flat"
)

// stubEmbedder returns canned vectors per exact text, and a zero vector
// for anything unknown.
type stubEmbedder struct {
	dim  int
	vecs map[string][]float32
	err  error
}

func (s *stubEmbedder) Name() string   { return "stub" }
func (s *stubEmbedder) Dimension() int { return s.dim }

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := s.vecs[t]; ok {
			out[i] = v
		} else {
			out[i] = make([]float32, s.dim)
		}
	}
	return out, nil
}

func seededIndex(t *testing.T) *flat.Index {
	t.Helper()
	idx := flat.New(3, nil)
	require.NoError(t, idx.Add(
		[][]float32{
			{1, 0, 0},
			{0, 1, 0},
			{0.9, 0.1, 0},
		},
		[]domain.Metadata{
			{"source": "shipping.txt", "text": "Standard shipping is free."},
			{"source": "payments.txt", "text": "We accept credit cards."},
			{"source": "shipping.txt", "text": "Express shipping costs $10."},
		},
	))
	return idx
}

func TestRetrieveAttachesTextAndRanks(t *testing.T) {
	emb := &stubEmbedder{dim: 3, vecs: map[string][]float32{"shipping": {1, 0, 0}}}
	svc := NewRetrieval(emb, seededIndex(t), 0, nil)

	results, err := svc.Retrieve(context.Background(), "shipping", 2, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Position)
	assert.Equal(t, "Standard shipping is free.", results[0].Text)
	assert.Equal(t, "shipping.txt", results[0].Metadata.Source())
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
}

func TestRetrieveMinSimilarityConversion(t *testing.T) {
	// A stored vector at squared distance 0.2 must be excluded when
	// min_similarity 0.9 converts to max_distance ~0.111.
	idx := flat.New(3, nil)
	require.NoError(t, idx.Add(
		[][]float32{
			{1, 0, 0},
			{1, 0.4472136, 0},
		},
		[]domain.Metadata{
			{"source": "exact.txt", "text": "exact"},
			{"source": "near.txt", "text": "near"},
		},
	))
	emb := &stubEmbedder{dim: 3, vecs: map[string][]float32{"q": {1, 0, 0}}}
	svc := NewRetrieval(emb, idx, 0, nil)

	results, err := svc.Retrieve(context.Background(), "q", 5, 0.9)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "exact.txt", results[0].Metadata.Source())
}

func TestPrepareContextFormatsSources(t *testing.T) {
	emb := &stubEmbedder{dim: 3, vecs: map[string][]float32{"shipping": {1, 0, 0}}}
	svc := NewRetrieval(emb, seededIndex(t), 0, nil)

	ctx, err := svc.PrepareContext(context.Background(), "shipping", 2, true)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ctx, "[Source: shipping.txt]\n"))
	assert.Contains(t, ctx, "\n\n---\n\n")
	assert.Contains(t, ctx, "Standard shipping is free.")
}

func TestPrepareContextWithoutSources(t *testing.T) {
	emb := &stubEmbedder{dim: 3, vecs: map[string][]float32{"shipping": {1, 0, 0}}}
	svc := NewRetrieval(emb, seededIndex(t), 0, nil)

	ctx, err := svc.PrepareContext(context.Background(), "shipping", 1, false)
	require.NoError(t, err)
	assert.NotContains(t, ctx, "[Source:")
	assert.Equal(t, "Standard shipping is free.", ctx)
}

func TestPrepareContextSentinelOnEmptyIndex(t *testing.T) {
	emb := &stubEmbedder{dim: 3}
	svc := NewRetrieval(emb, flat.New(3, nil), 0, nil)

	ctx, err := svc.PrepareContext(context.Background(), "anything", 5, true)
	require.NoError(t, err)
	assert.Equal(t, NoRelevantInformation, ctx)
}

func TestRelevantSourcesDeduplicates(t *testing.T) {
	emb := &stubEmbedder{dim: 3, vecs: map[string][]float32{"shipping": {1, 0, 0}}}
	svc := NewRetrieval(emb, seededIndex(t), 0, nil)

	sources, err := svc.RelevantSources(context.Background(), "shipping", 3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"shipping.txt", "payments.txt"}, sources)
}

func TestRetrieveEmbeddingFailure(t *testing.T) {
	emb := &stubEmbedder{dim: 3, err: errors.New("provider down")}
	svc := NewRetrieval(emb, seededIndex(t), 0, nil)

	_, err := svc.Retrieve(context.Background(), "anything", 3, 0)
	require.ErrorIs(t, err, ErrEmbeddingFailure)
	assert.Contains(t, err.Error(), "provider down")
}

func TestRetrieveIndexFailure(t *testing.T) {
	// Wrong embedder dimension surfaces as an index failure with the
	// underlying cause preserved.
	emb := &stubEmbedder{dim: 2}
	svc := NewRetrieval(emb, seededIndex(t), 0, nil)

	_, err := svc.Retrieve(context.Background(), "anything", 3, 0)
	require.ErrorIs(t, err, ErrIndexFailure)
	require.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
}
