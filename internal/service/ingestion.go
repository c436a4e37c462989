package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"ragcore/internal/domain"
	"ragcore/internal/embedding"
	"ragcore/internal/vectorstore"
)

// digestSampleCap bounds how many chunk texts are retained for the corpus
// digest shown in the UI.
const digestSampleCap = 256

// DocumentParser is the parser collaborator boundary: one file in,
// extracted text plus base metadata out.
type DocumentParser interface {
	Supported(path string) bool
	Parse(path string) (domain.Document, error)
}

// Digester builds a short summary of ingested text.
type Digester interface {
	Digest(texts []string, maxSentences int) string
}

// FileResult reports the outcome of ingesting one file.
type FileResult struct {
	File        string `json:"file"`
	Success     bool   `json:"success"`
	ChunksAdded int    `json:"chunks_added"`
	Error       string `json:"error,omitempty"`
}

// Summary aggregates the outcome of a multi-file ingestion.
type Summary struct {
	TotalFiles  int          `json:"total_files"`
	Successful  int          `json:"successful"`
	Failed      int          `json:"failed"`
	TotalChunks int          `json:"total_chunks"`
	Results     []FileResult `json:"results"`
}

// Ingestion runs the write path: parse, chunk, embed, index. Each file is
// committed atomically; a batch cancelled between files leaves everything
// ingested so far fully committed.
type Ingestion struct {
	parser       DocumentParser
	splitter     domain.Splitter
	embedder     embedding.Embedder
	store        vectorstore.Storage
	digester     Digester
	indexPath    string
	metadataPath string
	logger       *log.Logger

	mu     sync.Mutex
	sample []string
}

// NewIngestion wires the ingestion service. The index and metadata paths
// are where Save persists the knowledge base.
func NewIngestion(parser DocumentParser, splitter domain.Splitter, embedder embedding.Embedder, store vectorstore.Storage, digester Digester, indexPath, metadataPath string, logger *log.Logger) *Ingestion {
	if logger == nil {
		logger = log.Default()
	}
	return &Ingestion{
		parser:       parser,
		splitter:     splitter,
		embedder:     embedder,
		store:        store,
		digester:     digester,
		indexPath:    indexPath,
		metadataPath: metadataPath,
		logger:       logger,
	}
}

// IngestText chunks and indexes raw text under the given base metadata,
// returning the number of chunks added. A failed embed or add leaves the
// index untouched; whitespace-only text adds nothing and is not an error.
func (s *Ingestion) IngestText(ctx context.Context, text string, base map[string]string) (int, error) {
	chunks := s.splitter.Split(text, base)
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEmbeddingFailure, err)
	}

	metadata := make([]domain.Metadata, len(chunks))
	for i, ch := range chunks {
		m := make(domain.Metadata, len(ch.Metadata)+4)
		for k, v := range ch.Metadata {
			m[k] = v
		}
		m[domain.MetaText] = ch.Text
		m[domain.MetaChunk] = ch.Ordinal
		m[domain.MetaTotalChunks] = ch.TotalInDocument
		m[domain.MetaChunkBytes] = ch.ByteLength
		metadata[i] = m
	}

	if err := s.store.Add(vectors, metadata); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIndexFailure, err)
	}
	s.remember(texts)
	s.logger.Info("ingested text", "chunks", len(chunks), "source", base[domain.MetaSource])
	return len(chunks), nil
}

// IngestFile parses and indexes a single file. Failures are reported in
// the result rather than as an error so a batch can continue past bad
// files.
func (s *Ingestion) IngestFile(ctx context.Context, path string) FileResult {
	name := filepath.Base(path)

	doc, err := s.parser.Parse(path)
	if err != nil {
		s.logger.Error("parse failed", "file", name, "err", err)
		return FileResult{File: name, Error: err.Error()}
	}
	doc.Metadata[domain.MetaDocumentID] = uuid.NewString()

	count, err := s.IngestText(ctx, doc.Text, doc.Metadata)
	if err != nil {
		s.logger.Error("ingest failed", "file", name, "err", err)
		return FileResult{File: name, Error: err.Error()}
	}
	if count == 0 {
		return FileResult{File: name, Error: "no text content found"}
	}
	return FileResult{File: name, Success: true, ChunksAdded: count}
}

// IngestFiles ingests the given paths in order. Cancellation is honored
// between files only: the summary reflects everything committed before the
// cancellation, and no file is left half-applied.
func (s *Ingestion) IngestFiles(ctx context.Context, paths []string) (Summary, error) {
	summary := Summary{TotalFiles: len(paths)}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		result := s.IngestFile(ctx, path)
		summary.Results = append(summary.Results, result)
		if result.Success {
			summary.Successful++
			summary.TotalChunks += result.ChunksAdded
		} else {
			summary.Failed++
		}
	}
	s.logger.Info("ingestion complete",
		"files", summary.TotalFiles, "successful", summary.Successful, "chunks", summary.TotalChunks)
	return summary, nil
}

// IngestDirectory ingests every supported file under dir. With recursive
// set, subdirectories are walked as well.
func (s *Ingestion) IngestDirectory(ctx context.Context, dir string, recursive bool) (Summary, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return Summary{}, fmt.Errorf("ingest directory: not a directory: %s", dir)
	}

	var paths []string
	if recursive {
		err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && s.parser.Supported(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return Summary{}, fmt.Errorf("ingest directory: %w", err)
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return Summary{}, fmt.Errorf("ingest directory: %w", err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && s.parser.Supported(entry.Name()) {
				paths = append(paths, filepath.Join(dir, entry.Name()))
			}
		}
	}

	return s.IngestFiles(ctx, paths)
}

// DigestText summarizes a sample of the ingested chunk texts.
func (s *Ingestion) DigestText(maxSentences int) string {
	if s.digester == nil {
		return ""
	}
	s.mu.Lock()
	sample := append([]string(nil), s.sample...)
	s.mu.Unlock()
	return s.digester.Digest(sample, maxSentences)
}

// Stats reports the current contents of the index.
func (s *Ingestion) Stats() vectorstore.Stats { return s.store.Stats() }

// Clear discards all indexed records. Persisted files are untouched.
func (s *Ingestion) Clear() {
	s.logger.Warn("clearing knowledge base")
	s.store.Clear()
	s.mu.Lock()
	s.sample = nil
	s.mu.Unlock()
}

// Save snapshots the index to the configured file pair.
func (s *Ingestion) Save() error {
	return s.store.Save(s.indexPath, s.metadataPath)
}

func (s *Ingestion) remember(texts []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range texts {
		if len(s.sample) >= digestSampleCap {
			return
		}
		s.sample = append(s.sample, t)
	}
}
