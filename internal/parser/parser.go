// Package parser extracts plain text from supported document files. It is
// a deliberately thin collaborator of the ingestion pipeline: one file in,
// extracted text plus base metadata out.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"ragcore/internal/domain"
)

// ErrUnsupported reports a file extension the parser cannot handle.
var ErrUnsupported = errors.New("parser: unsupported file type")

var supportedExtensions = map[string]struct{}{
	".txt":      {},
	".md":       {},
	".markdown": {},
	".json":     {},
}

// Parser reads supported document formats into text + metadata pairs.
type Parser struct{}

// New returns a Parser.
func New() *Parser { return &Parser{} }

// Supported reports whether the file extension is handled.
func (p *Parser) Supported(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Parse reads the file and returns extracted text with base metadata
// (source file name, file type, path). Markdown is ingested as-is; JSON is
// flattened to its scalar values in deterministic key order.
func (p *Parser) Parse(path string) (domain.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := supportedExtensions[ext]; !ok {
		return domain.Document{}, fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("parser: read %s: %w", path, err)
	}

	text := string(data)
	if ext == ".json" {
		text, err = flattenJSON(data)
		if err != nil {
			return domain.Document{}, fmt.Errorf("parser: %s: %w", path, err)
		}
	}

	return domain.Document{
		Text: text,
		Metadata: map[string]string{
			domain.MetaSource: filepath.Base(path),
			"file_type":       strings.TrimPrefix(ext, "."),
			"path":            path,
		},
	}, nil
}

// flattenJSON renders every scalar in the document as "key path: value"
// lines, walking maps in sorted key order so re-parsing a file is
// deterministic.
func flattenJSON(data []byte) (string, error) {
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return "", err
	}
	var lines []string
	walkJSON("", root, &lines)
	return strings.Join(lines, "\n"), nil
}

func walkJSON(prefix string, node any, lines *[]string) {
	switch v := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkJSON(joinPath(prefix, k), v[k], lines)
		}
	case []any:
		for i, item := range v {
			walkJSON(joinPath(prefix, strconv.Itoa(i)), item, lines)
		}
	case string:
		*lines = append(*lines, scalarLine(prefix, v))
	case float64:
		*lines = append(*lines, scalarLine(prefix, strconv.FormatFloat(v, 'f', -1, 64)))
	case bool:
		*lines = append(*lines, scalarLine(prefix, strconv.FormatBool(v)))
	case nil:
		// Nulls carry no retrievable text.
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func scalarLine(prefix, value string) string {
	if prefix == "" {
		return value
	}
	return prefix + ": " + value
}
