package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"sitedex/internal/adapter/gemini"
	wstore "sitedex/internal/adapter/weaviate"
	"sitedex/internal/config"
)

// VectorStore is the slice of the store the bootstrap sequence needs.
type VectorStore interface {
	EnsureSchema(ctx context.Context) error
}

type Dependencies struct {
	Store    *wstore.Store
	Embedder *gemini.Embedder
	Producer *nsq.Producer
}

// Bootstrap connects the core dependencies: the Weaviate store and the
// Gemini embedder. The schema check retries because Weaviate is usually
// still starting when the worker comes up.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	wCfg := weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme}
	wClient, err := weaviate.NewClient(wCfg)
	if err != nil {
		return nil, fmt.Errorf("weaviate client error: %w", err)
	}
	store := wstore.NewStore(wClient)

	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second
	if err := EnsureSchemaWithRetry(ctx, store, cfg.BootstrapRetryAttempts, retryDelay); err != nil {
		return nil, fmt.Errorf("weaviate schema error: %w", err)
	}

	embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("gemini client error: %w", err)
	}

	return &Dependencies{Store: store, Embedder: embedder}, nil
}

// BootstrapQueue adds the NSQ producer to an already bootstrapped set of
// dependencies. Only the worker needs it; the one-shot commands skip it.
func BootstrapQueue(deps *Dependencies, cfg *config.Config) error {
	producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
	if err != nil {
		return fmt.Errorf("nsq producer error: %w", err)
	}

	// Topic pre-creation so the first publish does not race topic discovery.
	createTopics(cfg.NSQDHTTP)

	deps.Producer = producer
	return nil
}

func createTopics(nsqdHTTP string) {
	create := func(topic string) {
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, topic)
		resp, err := http.Post(url, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}

	go func() {
		time.Sleep(2 * time.Second)
		create(config.TopicCrawlTask)
		create(config.TopicCrawlResult)
	}()
}

// EnsureSchemaWithRetry delegates schema check to a helper with retry logic.
func EnsureSchemaWithRetry(ctx context.Context, store VectorStore, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = store.EnsureSchema(ctx); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}
