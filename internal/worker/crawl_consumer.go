package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"sitedex/internal/config"
	"sitedex/internal/correlation"
	"sitedex/internal/crawler"
)

// touchInterval keeps in-flight messages alive; crawl sessions routinely
// outlive the NSQ message timeout.
const touchInterval = 30 * time.Second

type CrawlConsumer struct {
	crawler   Crawler
	publisher Publisher
}

func NewCrawlConsumer(c Crawler, p Publisher) *CrawlConsumer {
	return &CrawlConsumer{crawler: c, publisher: p}
}

func (h *CrawlConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var event CrawlTaskEvent
	if err := json.Unmarshal(m.Body, &event); err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	correlationID := event.CorrelationID
	if correlationID == "" {
		correlationID = correlation.NewID()
	}
	ctx := correlation.WithID(context.Background(), correlationID)

	if event.Address == "" {
		slog.ErrorContext(ctx, "missing address, dropping", "topic", config.TopicCrawlTask)
		h.publishResult(ctx, CrawlResultEvent{
			Status:        StatusFailed,
			Error:         "address is required",
			Code:          CodeValidation,
			CorrelationID: correlationID,
		})
		return nil
	}

	done := make(chan struct{})
	defer close(done)
	go touchLoop(m, done)

	slog.InfoContext(ctx, "crawl task received", "address", event.Address, "namespace", event.Namespace)

	result, err := h.crawler.Crawl(ctx, crawler.Request{
		StartAddress: event.Address,
		Namespace:    event.Namespace,
		PathPrefix:   event.PathPrefix,
		Title:        event.Title,
		MaxDepth:     event.MaxDepth,
		MaxPages:     event.MaxPages,
		DelayMs:      event.DelayMs,
	})

	out := resultEvent(event, result, correlationID)
	if err != nil {
		out.Status = StatusFailed
		out.Error = err.Error()
		out.Code = ErrorCode(err)
		slog.ErrorContext(ctx, "crawl failed", "address", event.Address, "code", out.Code, "error", err)
		h.publishResult(ctx, out)
		// Crawl errors are validation or cancellation; neither is
		// recoverable by NSQ-level redelivery.
		return nil
	}

	slog.InfoContext(ctx, "crawl completed",
		"address", event.Address, "crawled", result.Crawled, "upserted", result.Upserted)
	h.publishResult(ctx, out)
	return nil
}

func resultEvent(event CrawlTaskEvent, result crawler.Result, correlationID string) CrawlResultEvent {
	return CrawlResultEvent{
		Status:        StatusCompleted,
		Address:       event.Address,
		Crawled:       result.Crawled,
		Upserted:      result.Upserted,
		Namespace:     result.Namespace,
		PathPrefix:    result.PathPrefix,
		MaxDepth:      result.MaxDepth,
		MaxPages:      result.MaxPages,
		ElapsedMs:     result.ElapsedMs,
		CorrelationID: correlationID,
	}
}

func (h *CrawlConsumer) publishResult(ctx context.Context, event CrawlResultEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal result event", "error", err)
		return
	}
	if err := h.publisher.Publish(config.TopicCrawlResult, body); err != nil {
		slog.ErrorContext(ctx, "failed to publish result event", "error", err)
	}
}

func touchLoop(m *nsq.Message, done <-chan struct{}) {
	t := time.NewTicker(touchInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			m.Touch()
		}
	}
}
