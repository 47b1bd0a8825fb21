package worker

import (
	"context"

	"sitedex/internal/crawler"
)

type Crawler interface {
	Crawl(ctx context.Context, req crawler.Request) (crawler.Result, error)
}

type Publisher interface {
	Publish(topic string, body []byte) error
}
