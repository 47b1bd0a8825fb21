package text

import (
	"iter"
	"strings"
)

// Window defaults tuned for embedding models: large enough to carry a
// paragraph of context, with enough overlap that a sentence cut at a
// boundary still appears whole in the next chunk.
const (
	DefaultMaxChars = 1200
	DefaultOverlap  = 150
)

// Chunk is one window of a page's cleaned text. Index is the position in
// emission order, starting at zero; dropped all-whitespace windows do not
// consume an index.
type Chunk struct {
	Index int
	Text  string
}

// Chunks walks a fixed-size window across s in steps of maxChars-overlap
// and yields each trimmed, non-empty window lazily. The sequence is finite
// and restartable: ranging over it twice yields the same chunks. maxChars
// values below 1 fall back to DefaultMaxChars, and an overlap that is
// negative or >= maxChars disables overlapping rather than stalling the walk.
func Chunks(s string, maxChars, overlap int) iter.Seq[Chunk] {
	if maxChars < 1 {
		maxChars = DefaultMaxChars
	}
	if overlap < 0 || overlap >= maxChars {
		overlap = 0
	}
	step := maxChars - overlap
	return func(yield func(Chunk) bool) {
		index := 0
		for start := 0; start < len(s); start += step {
			end := start + maxChars
			if end > len(s) {
				end = len(s)
			}
			window := strings.TrimSpace(s[start:end])
			if window == "" {
				continue
			}
			if !yield(Chunk{Index: index, Text: window}) {
				return
			}
			index++
		}
	}
}

// Split collects Chunks into a slice. Empty input yields a nil slice.
func Split(s string, maxChars, overlap int) []Chunk {
	var chunks []Chunk
	for c := range Chunks(s, maxChars, overlap) {
		chunks = append(chunks, c)
	}
	return chunks
}
