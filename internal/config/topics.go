package config

const (
	// TopicCrawlTask is the NSQ topic for crawl and single-page ingestion tasks.
	TopicCrawlTask = "ingest.crawl"

	// TopicCrawlResult is the NSQ topic for crawl results (completed/failed).
	TopicCrawlResult = "ingest.crawl.result"
)
