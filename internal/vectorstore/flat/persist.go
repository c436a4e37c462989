package flat

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"ragcore/internal/domain"
	"ragcore/internal/vectorstore"
)

// On-disk vector file layout: a fixed header followed by count*dimension
// little-endian float32 values, row-major. Round-trips to full float32
// precision. The metadata file is a UTF-8 JSON array ordered to match
// vector positions; the two files are always read and written as a pair.
const (
	fileMagic   uint32 = 0x52414731 // "RAG1"
	fileVersion uint32 = 1
)

// Save snapshots the index to the vector and metadata files. It holds the
// read lock for the whole write, so concurrent searches proceed but no
// writer can mutate the index mid-save and the two files cannot diverge.
// Both files are written to a temp file and renamed into place.
func (x *Index) Save(indexPath, metadataPath string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if err := writeVectorFile(indexPath, x.dim, x.vectors); err != nil {
		return fmt.Errorf("save vectors: %w", err)
	}
	if err := writeMetadataFile(metadataPath, x.metadata); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	x.logger.Info("index saved", "vectors", len(x.vectors), "index_path", indexPath, "metadata_path", metadataPath)
	return nil
}

// Load reads a persisted index pair. It fails with vectorstore.ErrNotFound
// when either file is absent. A vector/metadata count mismatch is logged as
// a warning but does not fail the load: the index stays usable and serves
// potentially misaligned results rather than refusing to start.
func Load(indexPath, metadataPath string, logger *log.Logger) (*Index, error) {
	if logger == nil {
		logger = log.Default()
	}
	for _, path := range []string{indexPath, metadataPath} {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", vectorstore.ErrNotFound, path)
			}
			return nil, err
		}
	}

	dim, vectors, err := readVectorFile(indexPath)
	if err != nil {
		return nil, fmt.Errorf("load vectors: %w", err)
	}
	metadata, err := readMetadataFile(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}

	if len(vectors) != len(metadata) {
		logger.Warn("index and metadata counts diverge after load",
			"vectors", len(vectors), "metadata", len(metadata))
	}
	return &Index{dim: dim, vectors: vectors, metadata: metadata, logger: logger}, nil
}

func writeVectorFile(path string, dim int, vectors [][]float32) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	header := []any{fileMagic, fileVersion, uint32(dim), uint64(len(vectors))}
	for _, field := range header {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			tmp.Close()
			return err
		}
	}
	for _, row := range vectors {
		if err := binary.Write(w, binary.LittleEndian, row); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readVectorFile(path string) (int, [][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var (
		magic, version, dim uint32
		count               uint64
	)
	for _, field := range []any{&magic, &version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return 0, nil, fmt.Errorf("%w: short header: %v", vectorstore.ErrCorrupt, err)
		}
	}
	if magic != fileMagic {
		return 0, nil, fmt.Errorf("%w: bad magic %#x", vectorstore.ErrCorrupt, magic)
	}
	if version != fileVersion {
		return 0, nil, fmt.Errorf("%w: unsupported version %d", vectorstore.ErrCorrupt, version)
	}

	vectors := make([][]float32, count)
	for i := range vectors {
		row := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, row); err != nil {
			return 0, nil, fmt.Errorf("%w: truncated at row %d: %v", vectorstore.ErrCorrupt, i, err)
		}
		vectors[i] = row
	}
	if _, err := r.ReadByte(); err != io.EOF {
		return 0, nil, fmt.Errorf("%w: trailing data after %d rows", vectorstore.ErrCorrupt, count)
	}
	return int(dim), vectors, nil
}

func writeMetadataFile(path string, metadata []domain.Metadata) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".metadata-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if metadata == nil {
		metadata = []domain.Metadata{}
	}
	if err := enc.Encode(metadata); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readMetadataFile(path string) ([]domain.Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var metadata []domain.Metadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("%w: %v", vectorstore.ErrCorrupt, err)
	}
	return metadata, nil
}
