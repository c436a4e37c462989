package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"ragcore/internal/domain"
	"ragcore/internal/embedding"
	"ragcore/internal/vectorstore"
)

// Failure classes for the retrieval path. Both are recoverable at the
// caller but never silently swallowed here.
var (
	ErrEmbeddingFailure = errors.New("service: embedding failed")
	ErrIndexFailure     = errors.New("service: index operation failed")
)

// NoRelevantInformation is returned by PrepareContext when retrieval yields
// nothing, so downstream prompt construction never breaks on an empty
// knowledge base.
const NoRelevantInformation = "No relevant information found in the knowledge base."

// DefaultTopK is the number of chunks retrieved when the caller does not
// ask for a specific count.
const DefaultTopK = 5

const contextSeparator = "\n\n---\n\n"

// Retrieval turns free-text queries into ranked, source-attributed context
// blocks backed by the vector index.
type Retrieval struct {
	embedder embedding.Embedder
	store    vectorstore.Storage
	topK     int
	logger   *log.Logger
}

// NewRetrieval wires the retrieval service. topK <= 0 falls back to
// DefaultTopK.
func NewRetrieval(embedder embedding.Embedder, store vectorstore.Storage, topK int, logger *log.Logger) *Retrieval {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Retrieval{embedder: embedder, store: store, topK: topK, logger: logger}
}

// Retrieve embeds the query and returns the nearest chunks with their text
// attached. A minSimilarity > 0 is converted to the equivalent L2 distance
// cutoff (distance = 1/similarity - 1) and applied via the thresholded
// search.
func (s *Retrieval) Retrieve(ctx context.Context, query string, topK int, minSimilarity float64) ([]domain.RetrievalResult, error) {
	if topK <= 0 {
		topK = s.topK
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailure, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected one query vector, got %d", ErrEmbeddingFailure, len(vectors))
	}

	var results []domain.RetrievalResult
	if minSimilarity > 0 {
		maxDistance := 1/minSimilarity - 1
		results, err = s.store.SearchWithThreshold(vectors[0], topK, &maxDistance, nil)
	} else {
		results, err = s.store.Search(vectors[0], topK)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexFailure, err)
	}

	for i := range results {
		results[i].Text = results[i].Metadata.Text()
	}
	s.logger.Debug("retrieved chunks", "query", truncate(query, 50), "results", len(results))
	return results, nil
}

// PrepareContext formats retrieved chunks into a single block ready for an
// LLM prompt, each entry optionally prefixed with its source. Zero results
// return the NoRelevantInformation sentinel, not an error.
func (s *Retrieval) PrepareContext(ctx context.Context, query string, topK int, includeSources bool) (string, error) {
	results, err := s.Retrieve(ctx, query, topK, 0)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		s.logger.Warn("no relevant chunks found", "query", truncate(query, 50))
		return NoRelevantInformation, nil
	}

	parts := make([]string, 0, len(results))
	for _, r := range results {
		var b strings.Builder
		if includeSources {
			source := r.Metadata.Source()
			if source == "" {
				source = "Unknown"
			}
			b.WriteString("[Source: ")
			b.WriteString(source)
			b.WriteString("]\n")
		}
		if r.Text != "" {
			b.WriteString(r.Text)
		} else {
			b.WriteString("No text available")
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, contextSeparator), nil
}

// RelevantSources returns the unique source identifiers among the retrieved
// chunks. Order is not specified.
func (s *Retrieval) RelevantSources(ctx context.Context, query string, topK int) ([]string, error) {
	results, err := s.Retrieve(ctx, query, topK, 0)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(results))
	sources := make([]string, 0, len(results))
	for _, r := range results {
		source := r.Metadata.Source()
		if source == "" {
			continue
		}
		if _, ok := seen[source]; ok {
			continue
		}
		seen[source] = struct{}{}
		sources = append(sources, source)
	}
	return sources, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
