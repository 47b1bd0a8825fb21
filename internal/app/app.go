package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/nsqio/go-nsq"

	"sitedex/internal/config"
	"sitedex/internal/crawler"
	"sitedex/internal/fetch"
	"sitedex/internal/metrics"
	"sitedex/internal/retrieval"
	"sitedex/internal/worker"
)

type App struct {
	Config    *config.Config
	Crawler   *crawler.Service
	Retrieval *retrieval.Service
	Consumer  *worker.CrawlConsumer
}

// New wires the services on top of the bootstrapped dependencies. The
// consumer is only built when the queue was bootstrapped; the one-shot
// commands run without it.
func New(cfg *config.Config, deps *Dependencies) *App {
	var renderer fetch.Renderer
	if cfg.RenderEnabled {
		renderer = fetch.NewChromeRenderer(cfg.UserAgent, cfg.RenderTimeout())
	}
	fetcher := fetch.NewFetcher(fetch.Options{
		UserAgent:  cfg.UserAgent,
		Timeout:    cfg.FetchTimeout(),
		MinContent: cfg.MinContentChars,
		Renderer:   renderer,
	})

	crawlerService := crawler.NewService(fetcher, deps.Embedder, deps.Store)

	queryLogger, err := retrieval.NewFileQueryLogger("data/logs/query.log")
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}
	retrievalService := retrieval.NewService(deps.Embedder, deps.Store, queryLogger)

	var consumer *worker.CrawlConsumer
	if deps.Producer != nil {
		consumer = worker.NewCrawlConsumer(crawlerService, deps.Producer)
	}

	return &App{
		Config:    cfg,
		Crawler:   crawlerService,
		Retrieval: retrievalService,
		Consumer:  consumer,
	}
}

// RunWorker consumes crawl tasks until the context is cancelled.
func (a *App) RunWorker(ctx context.Context) error {
	if a.Consumer == nil {
		return errors.New("queue dependencies not bootstrapped")
	}

	nsqCfg := nsq.NewConfig()
	consumer, err := nsq.NewConsumer(config.TopicCrawlTask, "worker", nsqCfg)
	if err != nil {
		return fmt.Errorf("nsq consumer error: %w", err)
	}
	consumer.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
		return a.Consumer.HandleMessage(m)
	}))
	// Discovery via lookupd when configured, direct nsqd connection otherwise.
	if a.Config.NSQLookupd != "" {
		if err := consumer.ConnectToNSQLookupd(a.Config.NSQLookupd); err != nil {
			return fmt.Errorf("nsq lookupd connect error: %w", err)
		}
	} else if err := consumer.ConnectToNSQD(a.Config.NSQDHost); err != nil {
		return fmt.Errorf("nsqd connect error: %w", err)
	}

	metricsSrv := a.serveMetrics()
	slog.Info("worker started", "topic", config.TopicCrawlTask, "channel", "worker")

	<-ctx.Done()
	slog.Info("shutting down worker...")
	consumer.Stop()
	<-consumer.StopChan
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(context.Background()); err != nil {
			slog.Error("metrics server shutdown failed", "error", err)
		}
	}
	return nil
}

func (a *App) serveMetrics() *http.Server {
	if a.Config.MetricsAddr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	srv := &http.Server{
		Addr:    a.Config.MetricsAddr,
		Handler: mux,
	}
	go func() {
		slog.Info("metrics server starting", "addr", a.Config.MetricsAddr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}
