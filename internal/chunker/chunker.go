package chunker

import (
	"errors"
	"fmt"
	"strings"

	"ragcore/internal/domain"
)

// Default splitting parameters, in characters.
const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// ErrInvalidConfig reports an unusable chunk size / overlap combination.
var ErrInvalidConfig = errors.New("chunker: invalid configuration")

// Boundary classes tried in priority order when cutting a chunk. Within a
// class the latest boundary that fits the size budget wins.
var boundaryClasses = [][]string{
	{"\n\n"},           // paragraph break
	{"\n"},             // line break
	{". ", "! ", "? "}, // sentence end
	{"; ", ", "},       // clause / phrase
	{" "},              // word break
}

// Splitter cuts text into overlapping chunks of at most chunkSize
// characters, preferring natural boundaries over raw character cuts.
// It is stateless and safe for concurrent use.
type Splitter struct {
	chunkSize int
	overlap   int
}

// New validates the configuration and returns a Splitter. The overlap must
// be non-negative and strictly smaller than the chunk size.
func New(chunkSize, overlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d must be positive", ErrInvalidConfig, chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap %d must be non-negative", ErrInvalidConfig, overlap)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidConfig, overlap, chunkSize)
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}, nil
}

// ChunkSize returns the configured maximum chunk length in characters.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the configured overlap length in characters.
func (s *Splitter) Overlap() int { return s.overlap }

// Split cuts text into ordered chunks. Each chunk after the first repeats
// the trailing overlap characters of its predecessor. Empty or
// whitespace-only text yields no chunks. TotalInDocument is only known once
// the whole text is split, so the full result is buffered and backfilled
// before it is returned.
func (s *Splitter) Split(text string, base map[string]string) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	var pieces []string
	start := 0
	for start < len(runes) {
		if len(runes)-start <= s.chunkSize {
			pieces = append(pieces, string(runes[start:]))
			break
		}
		cut := cutPoint(runes[start : start+s.chunkSize])
		pieces = append(pieces, string(runes[start:start+cut]))
		next := start + cut - s.overlap
		if next <= start {
			// Overlap would swallow the whole chunk; skip it to guarantee progress.
			next = start + cut
		}
		start = next
	}

	chunks := make([]domain.Chunk, len(pieces))
	for i, piece := range pieces {
		meta := make(map[string]string, len(base))
		for k, v := range base {
			meta[k] = v
		}
		chunks[i] = domain.Chunk{
			Text:            piece,
			Ordinal:         i,
			TotalInDocument: len(pieces),
			ByteLength:      len(piece),
			Metadata:        meta,
		}
	}
	return chunks
}

// cutPoint returns the rune offset to cut a full-budget window at: the end
// of the latest boundary of the highest-priority class present, or the full
// window length when no boundary exists.
func cutPoint(window []rune) int {
	for _, class := range boundaryClasses {
		best := -1
		for _, sep := range class {
			if i := lastIndexRunes(window, []rune(sep)); i >= 0 {
				if end := i + len([]rune(sep)); end > best {
					best = end
				}
			}
		}
		if best > 0 {
			return best
		}
	}
	return len(window)
}

func lastIndexRunes(window, sep []rune) int {
	for i := len(window) - len(sep); i >= 0; i-- {
		match := true
		for j := range sep {
			if window[i+j] != sep[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
