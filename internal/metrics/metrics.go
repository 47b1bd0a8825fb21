package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PagesCrawled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sitedex",
		Name:      "pages_crawled_total",
		Help:      "Pages processed by crawl sessions, successful or not.",
	})
	PagesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sitedex",
		Name:      "pages_failed_total",
		Help:      "Pages whose processing failed and were skipped.",
	})
	VectorsUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sitedex",
		Name:      "vectors_upserted_total",
		Help:      "Chunk vectors accepted by the vector store.",
	})
	RenderFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sitedex",
		Name:      "render_fallbacks_total",
		Help:      "Scrapes that fell back to the headless browser.",
	})
	Crawls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitedex",
		Name:      "crawls_total",
		Help:      "Finished crawl sessions by outcome.",
	}, []string{"status"})
	CrawlDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sitedex",
		Name:      "crawl_duration_seconds",
		Help:      "Wall-clock duration of crawl sessions.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
	})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
