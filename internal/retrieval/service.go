package retrieval

import (
	"context"
	"log/slog"
	"time"

	"sitedex/internal/vector"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	Query(ctx context.Context, queryVector []float32, topK *int, namespace string, filter map[string]string) ([]vector.Match, error)
}

// SearchOptions narrows a search. TopK nil takes the store default; Filter
// keys are metadata property names matched exactly.
type SearchOptions struct {
	Namespace string
	TopK      *int
	Filter    map[string]string
}

type Service struct {
	embedder Embedder
	store    VectorStore
	logger   *QueryLogger
}

func NewService(e Embedder, s VectorStore, l *QueryLogger) *Service {
	return &Service{embedder: e, store: s, logger: l}
}

// Search embeds the query and returns the nearest stored chunks, best match
// first. Successful searches are recorded by the query logger.
func (s *Service) Search(ctx context.Context, query string, opts SearchOptions) ([]vector.Match, error) {
	start := time.Now()
	var matches []vector.Match
	var err error

	defer func() {
		if s.logger != nil && err == nil {
			s.logger.Log(ctx, QueryLogEntry{
				Query:      query,
				Namespace:  opts.Namespace,
				NumResults: len(matches),
				Duration:   time.Since(start),
			})
		}
	}()

	// 1. Embed Query
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		slog.ErrorContext(ctx, "query embedding failed", "error", err)
		return nil, err
	}

	// 2. Nearest Neighbours
	matches, err = s.store.Query(ctx, vec, opts.TopK, opts.Namespace, opts.Filter)
	if err != nil {
		return nil, err
	}

	return matches, nil
}
