package worker

import (
	"errors"

	"sitedex/internal/adapter/gemini"
	"sitedex/internal/crawler"
	"sitedex/internal/fetch"
	"sitedex/internal/vector"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// CrawlTaskEvent asks the worker to ingest a site. Pointer fields are
// optional; absent means the crawler default applies.
type CrawlTaskEvent struct {
	Address       string `json:"address"`
	Namespace     string `json:"namespace,omitempty"`
	PathPrefix    string `json:"path_prefix,omitempty"`
	Title         string `json:"title,omitempty"`
	MaxDepth      *int   `json:"max_depth,omitempty"`
	MaxPages      *int   `json:"max_pages,omitempty"`
	DelayMs       *int   `json:"delay_ms,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// CrawlResultEvent reports how an ingestion run ended, echoing the
// effective limits so consumers need not re-derive them.
type CrawlResultEvent struct {
	Status        string `json:"status"`
	Address       string `json:"address,omitempty"`
	Crawled       int    `json:"crawled"`
	Upserted      int    `json:"upserted"`
	Namespace     string `json:"namespace,omitempty"`
	PathPrefix    string `json:"path_prefix,omitempty"`
	MaxDepth      int    `json:"max_depth,omitempty"`
	MaxPages      int    `json:"max_pages,omitempty"`
	ElapsedMs     int64  `json:"elapsed_ms"`
	Error         string `json:"error,omitempty"`
	Code          string `json:"code,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Stable error codes carried on failed result events.
const (
	CodeValidation    = "validation_error"
	CodeFetch         = "fetch_error"
	CodeNoContent     = "no_content"
	CodeEmbedding     = "embedding_error"
	CodeVectorStore   = "vector_store_error"
	CodeInvalidVector = "invalid_vector"
	CodeInternal      = "internal_error"
)

// ErrorCode maps a pipeline failure onto its stable code.
func ErrorCode(err error) string {
	var (
		validationErr *crawler.ValidationError
		fetchErr      *fetch.FetchError
		embeddingErr  *gemini.EmbeddingError
		storeErr      *vector.StoreError
		invalidVecErr *vector.InvalidVectorError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return CodeValidation
	case errors.As(err, &invalidVecErr):
		return CodeInvalidVector
	case errors.Is(err, fetch.ErrNoContent):
		return CodeNoContent
	case errors.As(err, &fetchErr):
		return CodeFetch
	case errors.As(err, &embeddingErr):
		return CodeEmbedding
	case errors.As(err, &storeErr):
		return CodeVectorStore
	default:
		return CodeInternal
	}
}
