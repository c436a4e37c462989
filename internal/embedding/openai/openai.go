package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultModel       = "text-embedding-3-small"
	defaultAPIKeyEnv   = "OPENAI_API_KEY"
	defaultBatchSize   = 32
	defaultConcurrency = 4
)

// Config configures the OpenAI-compatible embeddings provider.
type Config struct {
	APIKeyEnv string // env var holding the key, default OPENAI_API_KEY
	BaseURL   string // override for OpenAI-compatible servers
	Model     string
	Dimension int // requested output dimension; 0 uses the model default
	BatchSize int // texts per API request
	Parallel  int // concurrent in-flight requests
}

// Embedder generates embeddings through an OpenAI-compatible API. Batches
// are embedded concurrently with bounded parallelism; every returned vector
// is L2-normalized so L2 distance and cosine similarity stay monotonically
// related.
type Embedder struct {
	client    *openai.Client
	model     string
	dim       int
	batchSize int
	parallel  int
}

// New validates the configuration and builds the client. A missing API key
// is a construction-time failure, not a first-call surprise.
func New(cfg Config) (*Embedder, error) {
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = defaultAPIKeyEnv
	}
	key := os.Getenv(keyEnv)
	if key == "" {
		return nil, fmt.Errorf("openai: missing API key in env %s", keyEnv)
	}

	clientCfg := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	dim := cfg.Dimension
	if dim == 0 {
		dim = modelDimension(model)
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	parallel := cfg.Parallel
	if parallel <= 0 {
		parallel = defaultConcurrency
	}

	return &Embedder{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		dim:       dim,
		batchSize: batchSize,
		parallel:  parallel,
	}, nil
}

func modelDimension(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	default:
		return 1536
	}
}

// Name identifies the provider and model.
func (e *Embedder) Name() string { return "openai-" + e.model }

// Dimension returns the dimensionality of produced vectors.
func (e *Embedder) Dimension() int { return e.dim }

// Embed encodes all texts, splitting them into batches that run with
// bounded concurrency. Any batch failure fails the whole call; partial
// output is never returned.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	sem := make(chan struct{}, e.parallel)
	// Buffered so a finished batch never blocks behind the spawn loop.
	errCh := make(chan error, (len(texts)+e.batchSize-1)/e.batchSize)
	batches := 0

	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches++
		sem <- struct{}{}
		go func(offset int, batch []string) {
			defer func() { <-sem }()
			errCh <- e.embedBatch(ctx, offset, batch, out)
		}(start, texts[start:end])
	}

	var firstErr error
	for i := 0; i < batches; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (e *Embedder) embedBatch(ctx context.Context, offset int, batch []string, out [][]float32) error {
	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: batch,
	}
	if e.dim != modelDimension(e.model) {
		// Only the v3 embedding models accept a dimension override.
		req.Dimensions = e.dim
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return fmt.Errorf("openai: create embeddings: %w", err)
	}
	if len(resp.Data) != len(batch) {
		return fmt.Errorf("openai: got %d embeddings for %d inputs", len(resp.Data), len(batch))
	}

	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(batch) {
			return errors.New("openai: embedding index out of range")
		}
		v := append([]float32(nil), d.Embedding...)
		if len(v) != e.dim {
			return fmt.Errorf("openai: got dimension %d, expected %d", len(v), e.dim)
		}
		l2normalize(v)
		out[offset+d.Index] = v
	}
	return nil
}

// l2normalize scales v to unit length in place. Zero vectors are left
// untouched.
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
