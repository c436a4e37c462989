package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcore/internal/chunker"
	"ragcore/internal/domain"
	"ragcore/internal/embedding"
	"ragcore/internal/embedding/hash"
	"ragcore/internal/parser"
	"ragcore/internal/summarizer"
	"ragcore/internal/vectorstore/flat"
)

func newIngestion(t *testing.T, emb embedding.Embedder) (*Ingestion, *flat.Index) {
	t.Helper()
	split, err := chunker.New(100, 20)
	require.NoError(t, err)
	idx := flat.New(emb.Dimension(), nil)
	dir := t.TempDir()
	ing := NewIngestion(
		parser.New(), split, emb, idx, summarizer.NewFrequency(),
		filepath.Join(dir, "index.bin"), filepath.Join(dir, "metadata.json"), nil,
	)
	return ing, idx
}

func TestIngestTextAddsChunks(t *testing.T) {
	ing, idx := newIngestion(t, hash.New(64))

	count, err := ing.IngestText(context.Background(), "Shipping is free. Delivery takes five days.", map[string]string{"source": "shipping.txt"})
	require.NoError(t, err)
	require.Greater(t, count, 0)
	assert.Equal(t, count, idx.Stats().Count)
}

func TestIngestTextWritesRequiredMetadata(t *testing.T) {
	emb := hash.New(64)
	ing, idx := newIngestion(t, emb)

	text := "The discount code SAVE15 provides a 15% discount."
	_, err := ing.IngestText(context.Background(), text, map[string]string{"source": "discounts.txt"})
	require.NoError(t, err)

	query, err := emb.Embed(context.Background(), []string{text})
	require.NoError(t, err)
	results, err := idx.Search(query[0], 1)
	require.NoError(t, err)
	require.Len(t, results, 1)

	m := results[0].Metadata
	assert.Equal(t, "discounts.txt", m.Source())
	assert.Equal(t, text, m.Text())
	ordinal, ok := m.Int(domain.MetaChunk)
	require.True(t, ok)
	assert.Equal(t, 0, ordinal)
	total, ok := m.Int(domain.MetaTotalChunks)
	require.True(t, ok)
	assert.Equal(t, 1, total)
}

func TestIngestTextEmptyAddsNothing(t *testing.T) {
	ing, idx := newIngestion(t, hash.New(64))

	count, err := ing.IngestText(context.Background(), "   \n ", map[string]string{"source": "empty.txt"})
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, idx.Stats().Count)
}

func TestIngestTextFailedEmbedLeavesIndexUntouched(t *testing.T) {
	emb := &stubEmbedder{dim: 64, err: assert.AnError}
	ing, idx := newIngestion(t, emb)

	_, err := ing.IngestText(context.Background(), "Some text.", nil)
	require.ErrorIs(t, err, ErrEmbeddingFailure)
	assert.Zero(t, idx.Stats().Count)
}

func TestIngestFilesSummary(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("Alpha document content."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("# Beta\n\nBeta document content."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.pdf"), []byte("binary"), 0o644))

	ing, idx := newIngestion(t, hash.New(64))
	summary, err := ing.IngestFiles(context.Background(), []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "b.md"),
		filepath.Join(dir, "c.pdf"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalFiles)
	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, summary.TotalChunks, idx.Stats().Count)
	require.Len(t, summary.Results, 3)
	assert.False(t, summary.Results[2].Success)
	assert.NotEmpty(t, summary.Results[2].Error)
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("Top level doc."), 0o644))
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.txt"), []byte("Nested doc."), 0o644))

	ing, _ := newIngestion(t, hash.New(64))
	summary, err := ing.IngestDirectory(context.Background(), dir, false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalFiles)

	summary, err = ing.IngestDirectory(context.Background(), dir, true)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalFiles)
}

// cancelAfterFirstEmbed cancels the surrounding context once the first
// embed call has gone through, simulating a shutdown mid-batch.
type cancelAfterFirstEmbed struct {
	embedding.Embedder
	cancel context.CancelFunc
	calls  int
}

func (c *cancelAfterFirstEmbed) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	if c.calls == 1 {
		defer c.cancel()
	}
	return c.Embedder.Embed(ctx, texts)
}

func TestIngestFilesCancelledBetweenFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("First document."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("Second document."), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	emb := &cancelAfterFirstEmbed{Embedder: hash.New(64), cancel: cancel}
	ing, idx := newIngestion(t, emb)

	summary, err := ing.IngestFiles(ctx, []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "b.txt"),
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Successful, "the first file must be fully committed")
	assert.Equal(t, summary.TotalChunks, idx.Stats().Count, "no half-applied chunk batch may remain")
}

func TestClearResetsStatsAndDigest(t *testing.T) {
	ing, idx := newIngestion(t, hash.New(64))
	_, err := ing.IngestText(context.Background(), "Some content to digest. More content here.", map[string]string{"source": "a.txt"})
	require.NoError(t, err)
	require.NotEmpty(t, ing.DigestText(3))

	ing.Clear()
	assert.Zero(t, idx.Stats().Count)
	assert.Empty(t, ing.DigestText(3))
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	emb := hash.New(64)
	ing, idx := newIngestion(t, emb)
	_, err := ing.IngestText(context.Background(), "Persisted content.", map[string]string{"source": "p.txt"})
	require.NoError(t, err)
	require.NoError(t, ing.Save())

	loaded, err := flat.Load(ing.indexPath, ing.metadataPath, nil)
	require.NoError(t, err)
	assert.Equal(t, idx.Stats(), loaded.Stats())
}
