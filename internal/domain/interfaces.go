package domain

// Splitter cuts document text into overlapping chunks along natural
// boundaries. Implementations are stateless and safe for concurrent use.
type Splitter interface {
	Split(text string, base map[string]string) []Chunk
}
