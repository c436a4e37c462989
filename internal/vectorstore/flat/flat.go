// Package flat implements a brute-force exact-L2 vector index.
//
// Exact search is a deliberate trade-off: for the corpus sizes this engine
// targets, correctness and reproducibility (exact nearest neighbors with a
// deterministic tie-break) matter more than sub-linear query time. A caller
// targeting much larger corpora can substitute an approximate index behind
// the vectorstore.Storage contract without touching any call site.
package flat

import (
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"ragcore/internal/domain"
	"ragcore/internal/vectorstore"
)

// Index is an append-only in-memory vector index with parallel metadata
// records. A single-writer/multiple-reader lock keeps the two slices
// consistent: Add and Clear take the write lock, Search and Save the read
// lock, so readers never observe a half-applied mutation and no writer can
// run while a snapshot is being written.
type Index struct {
	mu       sync.RWMutex
	dim      int
	vectors  [][]float32
	metadata []domain.Metadata
	logger   *log.Logger
}

var _ vectorstore.Storage = (*Index)(nil)

// New creates an empty index for vectors of the given dimension. The
// dimension is fixed for the lifetime of the index.
func New(dimension int, logger *log.Logger) *Index {
	if logger == nil {
		logger = log.Default()
	}
	return &Index{dim: dimension, logger: logger}
}

// Dimension returns the fixed vector dimension of the index.
func (x *Index) Dimension() int { return x.dim }

// Add appends all rows or none. Every row is validated against the index
// dimension before the write lock is taken, so a failed Add leaves the
// index untouched.
func (x *Index) Add(vectors [][]float32, metadata []domain.Metadata) error {
	if len(vectors) != len(metadata) {
		return fmt.Errorf("%w: %d vectors, %d metadata records",
			vectorstore.ErrLengthMismatch, len(vectors), len(metadata))
	}
	for i, v := range vectors {
		if len(v) != x.dim {
			return fmt.Errorf("%w: row %d has dimension %d, index expects %d",
				vectorstore.ErrDimensionMismatch, i, len(v), x.dim)
		}
	}

	// The index owns its storage exclusively; copy rows and maps so later
	// caller mutations cannot reach in.
	rows := make([][]float32, len(vectors))
	metas := make([]domain.Metadata, len(metadata))
	for i := range vectors {
		rows[i] = append([]float32(nil), vectors[i]...)
		metas[i] = maps.Clone(metadata[i])
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.vectors = append(x.vectors, rows...)
	x.metadata = append(x.metadata, metas...)
	return nil
}

// Search computes the squared Euclidean distance from query to every stored
// vector and returns the k smallest in ascending order, ties broken by
// lowest position so that re-running a query is byte-for-byte reproducible.
func (x *Index) Search(query []float32, k int) ([]domain.RetrievalResult, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index expects %d",
			vectorstore.ErrDimensionMismatch, len(query), x.dim)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	n := len(x.vectors)
	if n == 0 || k <= 0 {
		return nil, nil
	}

	type candidate struct {
		pos  int
		dist float64
	}
	candidates := make([]candidate, n)
	for i, v := range x.vectors {
		candidates[i] = candidate{pos: i, dist: squaredL2(query, v)}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].pos < candidates[j].pos
	})

	if k > n {
		k = n
	}
	results := make([]domain.RetrievalResult, k)
	for i := 0; i < k; i++ {
		c := candidates[i]
		results[i] = domain.RetrievalResult{
			Position:   c.pos,
			Distance:   c.dist,
			Similarity: 1 / (1 + c.dist),
		}
		// A loaded index may carry fewer metadata records than vectors.
		if c.pos < len(x.metadata) {
			results[i].Metadata = maps.Clone(x.metadata[c.pos])
		}
	}
	return results, nil
}

// SearchWithThreshold runs Search with a candidate pool of size k and drops
// results violating either threshold. The pool is capped at k before
// filtering, so raising thresholds can return fewer results than the true
// threshold-satisfying set; callers wanting exhaustive filtering must
// request a larger k.
func (x *Index) SearchWithThreshold(query []float32, k int, maxDistance, minSimilarity *float64) ([]domain.RetrievalResult, error) {
	results, err := x.Search(query, k)
	if err != nil {
		return nil, err
	}
	filtered := make([]domain.RetrievalResult, 0, len(results))
	for _, r := range results {
		if maxDistance != nil && r.Distance > *maxDistance {
			continue
		}
		if minSimilarity != nil && r.Similarity < *minSimilarity {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered, nil
}

// Clear discards all records and resets the index to the empty state with
// the same dimension. Persisted files are not touched.
func (x *Index) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.vectors = nil
	x.metadata = nil
}

// Stats reports the current record count and dimension.
func (x *Index) Stats() vectorstore.Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return vectorstore.Stats{Count: len(x.vectors), Dimension: x.dim}
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
