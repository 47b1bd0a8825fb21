package vector

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

const (
	// ClassPageChunk is the single Weaviate class all page chunks live in.
	// Crawl namespaces map to tenants of this class, not to separate classes.
	ClassPageChunk = "PageChunk"

	// SnippetLen caps the stored preview of each chunk's text.
	SnippetLen = 500

	DefaultTopK = 8
	MaxTopK     = 200
)

// Metadata is the queryable payload stored alongside each vector.
type Metadata struct {
	Address    string
	Title      string
	ChunkIndex int
	Snippet    string
}

// Record is one chunk ready for upsert: a deterministic ID, the embedding,
// and the metadata stored with it.
type Record struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// Match is a single query hit, highest-similarity matches first.
type Match struct {
	ID       string
	Score    float64
	Metadata Metadata
}

// RecordID derives a stable UUID from the page address and chunk index.
// Re-crawling a page overwrites its chunks in place instead of accumulating
// duplicates.
func RecordID(address string, chunkIndex int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(address+"#"+strconv.Itoa(chunkIndex))).String()
}

// Snippet returns the first SnippetLen characters of text, never splitting
// a multi-byte character.
func Snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= SnippetLen {
		return text
	}
	return string(runes[:SnippetLen])
}

// ClampTopK resolves an optional requested result count into the allowed
// range. nil means DefaultTopK.
func ClampTopK(k *int) int {
	switch {
	case k == nil:
		return DefaultTopK
	case *k < 1:
		return 1
	case *k > MaxTopK:
		return MaxTopK
	}
	return *k
}

// InvalidVectorError rejects malformed input before any remote call is made.
// Index is the offending record's position, or -1 when the error is not tied
// to a batch position (e.g. an empty query vector).
type InvalidVectorError struct {
	Index  int
	Reason string
}

func (e *InvalidVectorError) Error() string {
	if e.Index < 0 {
		return "invalid vector: " + e.Reason
	}
	return fmt.Sprintf("invalid record at index %d: %s", e.Index, e.Reason)
}

// StoreError wraps a vector store failure that survived retries.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("vector store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ValidateRecords checks the whole batch up front so a malformed record
// fails the call before anything is written. Every record needs a non-empty
// ID and vector, and all vectors must share one dimensionality.
func ValidateRecords(records []Record) error {
	dim := 0
	for i, r := range records {
		if r.ID == "" {
			return &InvalidVectorError{Index: i, Reason: "empty id"}
		}
		if len(r.Vector) == 0 {
			return &InvalidVectorError{Index: i, Reason: "empty vector"}
		}
		if dim == 0 {
			dim = len(r.Vector)
		} else if len(r.Vector) != dim {
			return &InvalidVectorError{Index: i, Reason: fmt.Sprintf("dimension %d, want %d", len(r.Vector), dim)}
		}
	}
	return nil
}
