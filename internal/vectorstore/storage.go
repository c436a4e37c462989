package vectorstore

import (
	"errors"

	"ragcore/internal/domain"
)

// Sentinel errors returned by index implementations.
var (
	ErrDimensionMismatch = errors.New("vectorstore: vector dimension mismatch")
	ErrLengthMismatch    = errors.New("vectorstore: vectors and metadata length mismatch")
	ErrNotFound          = errors.New("vectorstore: persisted index not found")
	ErrCorrupt           = errors.New("vectorstore: persisted index corrupted")
)

// Stats describes the current contents of an index.
type Stats struct {
	Count     int `json:"count"`
	Dimension int `json:"dimension"`
}

// Storage stores embedding vectors with parallel metadata records and serves
// exact nearest-neighbor queries. Positions are stable integer handles:
// once assigned, a record's position never moves or is reused for the
// lifetime of the current sequence.
type Storage interface {
	// Add appends records atomically: either all rows are added or none.
	Add(vectors [][]float32, metadata []domain.Metadata) error

	// Search returns the min(k, size) nearest records by squared L2
	// distance, ascending, ties broken by lowest position. An empty index
	// returns an empty result, not an error.
	Search(query []float32, k int) ([]domain.RetrievalResult, error)

	// SearchWithThreshold filters a Search(k) candidate pool by the given
	// thresholds (nil disables a threshold). The filtering is
	// candidate-limited: when more than k records satisfy the thresholds,
	// only those inside the first k candidates are returned. Callers
	// needing an exhaustive threshold search must raise k.
	SearchWithThreshold(query []float32, k int, maxDistance, minSimilarity *float64) ([]domain.RetrievalResult, error)

	// Save writes the vector file and the metadata file as a pair. No
	// writer may mutate the index while a save is in flight.
	Save(indexPath, metadataPath string) error

	// Clear discards all records, keeping the dimension. Persisted files
	// are untouched.
	Clear()

	Stats() Stats
}
