// Package summarizer produces a short extractive digest of ingested text,
// used to give the interactive UI a one-glance view of what the knowledge
// base contains.
package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var (
	sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
	tokenRe    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// Frequency ranks sentences by normalized word frequency with stopwords
// filtered, then emits the top sentences in their original order.
type Frequency struct {
	stopwords map[string]struct{}
}

// NewFrequency creates a frequency-based digest builder.
func NewFrequency() *Frequency {
	return &Frequency{stopwords: defaultStopwords()}
}

// Digest summarizes the given texts into at most maxSentences sentences.
// Selection is deterministic: equal scores resolve to the earlier sentence.
func (f *Frequency) Digest(texts []string, maxSentences int) string {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	joined := strings.Join(texts, " ")
	sentences := sentenceRe.FindAllString(joined, -1)
	if len(sentences) == 0 {
		return strings.TrimSpace(joined)
	}

	freq := map[string]float64{}
	for _, sentence := range sentences {
		for _, token := range f.tokens(sentence) {
			if _, ok := f.stopwords[token]; ok {
				continue
			}
			freq[token]++
		}
	}
	var maxFreq float64
	for _, n := range freq {
		if n > maxFreq {
			maxFreq = n
		}
	}
	if maxFreq > 0 {
		for token, n := range freq {
			freq[token] = n / maxFreq
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(sentences))
	for i, sentence := range sentences {
		tokens := f.tokens(sentence)
		var s float64
		for _, token := range tokens {
			s += freq[token]
		}
		if len(tokens) > 0 {
			s /= math.Sqrt(float64(len(tokens)))
		}
		scores[i] = scored{idx: i, score: s}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if maxSentences > len(scores) {
		maxSentences = len(scores)
	}
	selected := make([]int, maxSentences)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)

	parts := make([]string, len(selected))
	for i, idx := range selected {
		parts[i] = strings.TrimSpace(sentences[idx])
	}
	return strings.Join(parts, " ")
}

func (f *Frequency) tokens(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for",
		"to", "of", "in", "on", "at", "by", "with", "as", "is", "are",
		"was", "were", "be", "been", "being", "it", "this", "that",
		"these", "those", "from", "up", "down", "over", "under", "again",
		"further", "than", "so", "such", "into", "about", "between",
		"through", "during", "before", "after", "above", "below", "out",
		"off", "own", "same", "too", "very", "can", "will", "just",
		"should", "now", "we", "you", "they", "our", "your",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
