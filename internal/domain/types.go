package domain

// Chunk is one overlapping segment of a source document, produced by the
// splitter and consumed exactly once by the embedding step.
type Chunk struct {
	Text            string
	Ordinal         int
	TotalInDocument int
	ByteLength      int
	Metadata        map[string]string
}

// Metadata is the schema-flexible payload stored next to each vector.
// Values must be JSON-compatible (string, float64, bool, nested map/slice).
type Metadata map[string]any

// String returns the value under key if it is a string, or "".
func (m Metadata) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Int returns the value under key as an int. Numbers that arrive through a
// JSON round trip decode as float64, so both forms are accepted.
func (m Metadata) Int(key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

// Source returns the source identifier the record was ingested under.
func (m Metadata) Source() string { return m.String(MetaSource) }

// Text returns the chunk text stored with the record.
func (m Metadata) Text() string { return m.String(MetaText) }

// Metadata keys written by the ingestion pipeline.
const (
	MetaSource      = "source"
	MetaText        = "text"
	MetaChunk       = "chunk"
	MetaTotalChunks = "total_chunks"
	MetaChunkBytes  = "chunk_bytes"
	MetaDocumentID  = "document_id"
)

// RetrievalResult is a single ranked match from the vector index.
// Similarity is always derived from Distance as 1/(1+distance) and is never
// stored independently.
type RetrievalResult struct {
	Position   int      `json:"position"`
	Distance   float64  `json:"distance"`
	Similarity float64  `json:"similarity"`
	Metadata   Metadata `json:"metadata"`
	Text       string   `json:"text"`
}

// Document is the output of the parser boundary: extracted text plus the
// base metadata every chunk of the document inherits.
type Document struct {
	Text     string
	Metadata map[string]string
}
