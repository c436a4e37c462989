// Package hash implements a deterministic, dependency-free embedder that
// maps text to a unit vector by hashing word tokens into buckets. It exists
// for offline use and tests: texts sharing words land near each other, and
// identical text always produces the identical vector. It is not a
// semantic model.
package hash

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// DefaultDimension matches the small sentence-transformer models commonly
// used for retrieval.
const DefaultDimension = 384

// Embedder is a stateless bag-of-hashed-words embedder.
type Embedder struct {
	dim int
}

// New creates an embedder for the given dimension, or DefaultDimension
// when non-positive.
func New(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dim: dimension}
}

// Name identifies the provider and dimension.
func (e *Embedder) Name() string { return fmt.Sprintf("hash-%d", e.dim) }

// Dimension returns the dimensionality of produced vectors.
func (e *Embedder) Dimension() int { return e.dim }

// Embed encodes each text independently. It never fails and ignores the
// context; it exists to satisfy the embedder port.
func (e *Embedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *Embedder) embedOne(text string) []float32 {
	v := make([]float32, e.dim)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(token))
		sum := h.Sum32()
		bucket := int(sum % uint32(e.dim))
		sign := float32(1)
		if sum&0x80000000 != 0 {
			sign = -1
		}
		v[bucket] += sign
	}
	l2normalize(v)
	return v
}

func l2normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
