// Package crawler runs bounded-depth ingestion sessions: crawl, scrape,
// chunk, embed, and persist one site into a vector store namespace.
package crawler

import (
	"context"
	"log/slog"
	"time"

	"sitedex/internal/fetch"
	"sitedex/internal/metrics"
	"sitedex/internal/retry"
	"sitedex/internal/text"
	"sitedex/internal/vector"
)

// embedTimeout bounds one batch embedding call.
const embedTimeout = 60 * time.Second

// PageFetcher retrieves raw markup for link discovery and cleaned text for
// embedding. The two are independent fetches against the same address.
type PageFetcher interface {
	FetchHTML(ctx context.Context, address string) (string, error)
	ScrapeText(ctx context.Context, address string) (string, error)
}

// Embedder turns an ordered batch of texts into vectors, one per input.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorWriter persists embedded chunks into a namespace and reports how
// many the store accepted, which can be non-zero even on error.
type VectorWriter interface {
	Upsert(ctx context.Context, records []vector.Record, namespace string) (int, error)
}

type Service struct {
	fetcher  PageFetcher
	embedder Embedder
	writer   VectorWriter
	policy   retry.Policy
}

func NewService(f PageFetcher, e Embedder, w VectorWriter) *Service {
	return NewServiceWithPolicy(f, e, w, retry.DefaultPolicy)
}

func NewServiceWithPolicy(f PageFetcher, e Embedder, w VectorWriter, policy retry.Policy) *Service {
	return &Service{fetcher: f, embedder: e, writer: w, policy: policy}
}

// Result summarizes one ingestion run with the effective limits applied.
type Result struct {
	Crawled    int    `json:"crawled"`
	Upserted   int    `json:"upserted"`
	Namespace  string `json:"namespace"`
	PathPrefix string `json:"pathPrefix,omitempty"`
	MaxDepth   int    `json:"maxDepth"`
	MaxPages   int    `json:"maxPages"`
	ElapsedMs  int64  `json:"elapsedMs"`
}

type task struct {
	address string
	depth   int
}

// session owns the frontier, the seen-set, and the counters for one Crawl
// invocation. Only the single crawl loop mutates it, and nothing here
// outlives the call.
type session struct {
	svc      *Service
	p        params
	scope    fetch.Scope
	frontier []task
	seen     map[string]bool
	crawled  int
	upserted int
}

// Crawl walks the site breadth-first from the seed, ingesting every
// in-scope page until the frontier empties or the page cap is reached.
// Page-level failures are logged and skipped; only an invalid request or a
// cancelled context aborts the session.
func (s *Service) Crawl(ctx context.Context, req Request) (Result, error) {
	started := time.Now()

	p, err := req.normalized()
	if err != nil {
		return Result{}, err
	}
	scope, err := fetch.NewScope(p.startAddress, p.pathPrefix)
	if err != nil {
		return Result{}, &ValidationError{Field: "startAddress", Reason: err.Error()}
	}

	sess := &session{
		svc:      s,
		p:        p,
		scope:    scope,
		frontier: []task{{address: p.startAddress, depth: 0}},
		seen:     make(map[string]bool),
	}

	slog.InfoContext(ctx, "crawl started",
		"address", p.startAddress, "namespace", p.namespace,
		"max_depth", p.maxDepth, "max_pages", p.maxPages)

	runErr := sess.run(ctx)

	elapsed := time.Since(started)
	status := "completed"
	if runErr != nil {
		status = "failed"
	}
	metrics.Crawls.WithLabelValues(status).Inc()
	metrics.CrawlDuration.Observe(elapsed.Seconds())

	result := sess.result(elapsed)
	if runErr != nil {
		return result, runErr
	}

	slog.InfoContext(ctx, "crawl finished",
		"crawled", result.Crawled, "upserted", result.Upserted, "elapsed_ms", result.ElapsedMs)
	return result, nil
}

// IngestPage runs the pipeline for exactly one address, with no link
// expansion. Unlike Crawl, a pipeline failure is terminal and returned.
func (s *Service) IngestPage(ctx context.Context, req Request) (Result, error) {
	started := time.Now()

	p, err := req.normalized()
	if err != nil {
		return Result{}, err
	}

	title := p.title
	if title == "" {
		if html, fetchErr := s.fetcher.FetchHTML(ctx, p.startAddress); fetchErr == nil {
			title = fetch.ExtractTitle(html)
		}
	}

	metrics.PagesCrawled.Inc()
	upserted, err := s.ingest(ctx, p.startAddress, title, p.namespace)
	result := Result{
		Crawled:    1,
		Upserted:   upserted,
		Namespace:  p.namespace,
		PathPrefix: p.pathPrefix,
		MaxDepth:   p.maxDepth,
		MaxPages:   p.maxPages,
		ElapsedMs:  time.Since(started).Milliseconds(),
	}
	if err != nil {
		metrics.PagesFailed.Inc()
		return result, err
	}
	return result, nil
}

func (s *session) run(ctx context.Context) error {
	for len(s.frontier) > 0 && s.crawled < s.p.maxPages {
		if err := ctx.Err(); err != nil {
			return err
		}

		t := s.frontier[0]
		s.frontier = s.frontier[1:]
		if s.seen[t.address] || t.depth > s.p.maxDepth {
			continue
		}
		s.seen[t.address] = true

		s.processPage(ctx, t)
		s.crawled++

		if s.p.delay > 0 {
			if err := sleepCtx(ctx, s.p.delay); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *session) processPage(ctx context.Context, t task) {
	metrics.PagesCrawled.Inc()

	// 1. Raw fetch for links and title. Its failure only disables link
	// expansion; the text scrape below has its own fallback.
	var title string
	html, err := s.svc.fetcher.FetchHTML(ctx, t.address)
	if err != nil {
		slog.WarnContext(ctx, "raw fetch failed", "address", t.address, "error", err)
	} else {
		title = fetch.ExtractTitle(html)
		if t.depth < s.p.maxDepth {
			s.expandLinks(html, t)
		}
	}
	if s.p.title != "" {
		title = s.p.title
	}

	// 2. Scrape, chunk, embed, upsert. Any failure skips this page only.
	upserted, err := s.svc.ingest(ctx, t.address, title, s.p.namespace)
	s.upserted += upserted
	if err != nil {
		metrics.PagesFailed.Inc()
		slog.ErrorContext(ctx, "page ingestion failed", "address", t.address, "depth", t.depth, "error", err)
		return
	}

	slog.DebugContext(ctx, "page ingested", "address", t.address, "depth", t.depth, "upserted", upserted)
}

func (s *session) expandLinks(html string, t task) {
	for _, link := range fetch.ExtractLinks(html, t.address, s.scope) {
		if s.seen[link] {
			continue
		}
		s.frontier = append(s.frontier, task{address: link, depth: t.depth + 1})
	}
}

func (s *session) result(elapsed time.Duration) Result {
	return Result{
		Crawled:    s.crawled,
		Upserted:   s.upserted,
		Namespace:  s.p.namespace,
		PathPrefix: s.p.pathPrefix,
		MaxDepth:   s.p.maxDepth,
		MaxPages:   s.p.maxPages,
		ElapsedMs:  elapsed.Milliseconds(),
	}
}

// ingest scrapes one address, chunks and embeds the text, and upserts the
// records. Returns the accepted vector count, which can be non-zero even
// when the upsert ultimately failed.
func (s *Service) ingest(ctx context.Context, address, title, namespace string) (int, error) {
	content, err := s.fetcher.ScrapeText(ctx, address)
	if err != nil {
		return 0, err
	}

	chunks := text.Split(content, text.DefaultMaxChars, text.DefaultOverlap)
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := retry.DoValue(ctx, s.policy, func(ctx context.Context) ([][]float32, error) {
		embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
		defer cancel()
		return s.embedder.EmbedBatch(embedCtx, texts)
	})
	if err != nil {
		return 0, err
	}

	records := make([]vector.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vector.Record{
			ID:     vector.RecordID(address, c.Index),
			Vector: vectors[i],
			Metadata: vector.Metadata{
				Address:    address,
				Title:      title,
				ChunkIndex: c.Index,
				Snippet:    vector.Snippet(c.Text),
			},
		}
	}

	upserted, err := s.writer.Upsert(ctx, records, namespace)
	if upserted > 0 {
		metrics.VectorsUpserted.Add(float64(upserted))
	}
	return upserted, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
