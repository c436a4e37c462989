package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseText(t *testing.T) {
	path := writeFile(t, "notes.txt", "Plain text content.")
	p := New()

	doc, err := p.Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "Plain text content.", doc.Text)
	assert.Equal(t, "notes.txt", doc.Metadata["source"])
	assert.Equal(t, "txt", doc.Metadata["file_type"])
}

func TestParseMarkdown(t *testing.T) {
	path := writeFile(t, "guide.md", "# Heading\n\nBody text.")
	doc, err := New().Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "# Heading\n\nBody text.", doc.Text)
	assert.Equal(t, "md", doc.Metadata["file_type"])
}

func TestParseJSONFlattensScalars(t *testing.T) {
	path := writeFile(t, "faq.json", `{"topic":"shipping","details":{"days":5,"free":true},"tags":["a","b"]}`)
	doc, err := New().Parse(path)
	require.NoError(t, err)

	want := "details.days: 5\ndetails.free: true\ntags.0: a\ntags.1: b\ntopic: shipping"
	assert.Equal(t, want, doc.Text)
}

func TestParseJSONDeterministic(t *testing.T) {
	path := writeFile(t, "data.json", `{"b":"two","a":"one","c":{"y":2,"x":1}}`)
	p := New()
	first, err := p.Parse(path)
	require.NoError(t, err)
	second, err := p.Parse(path)
	require.NoError(t, err)
	assert.Equal(t, first.Text, second.Text)
}

func TestParseUnsupportedExtension(t *testing.T) {
	path := writeFile(t, "image.png", "binary")
	_, err := New().Parse(path)
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestSupported(t *testing.T) {
	p := New()
	assert.True(t, p.Supported("a.txt"))
	assert.True(t, p.Supported("b.MD"))
	assert.True(t, p.Supported("c.json"))
	assert.False(t, p.Supported("d.pdf"))
	assert.False(t, p.Supported("noext"))
}

func TestParseInvalidJSON(t *testing.T) {
	path := writeFile(t, "broken.json", "{not json")
	_, err := New().Parse(path)
	require.Error(t, err)
}
