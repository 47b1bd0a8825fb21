package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"sitedex/internal/app"
	"sitedex/internal/config"
	"sitedex/internal/crawler"
	"sitedex/internal/logger"
	"sitedex/internal/retrieval"
	"sitedex/internal/worker"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "sitedex"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// Structured logger with correlation IDs pulled from the context
	handler := logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(slog.New(handler))

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Crawl sites into a semantic search index",
		Long: `Sitedex crawls documentation sites, embeds the page text with Gemini
and stores the chunks in Weaviate for semantic search.

The serve command runs a worker that consumes crawl tasks from NSQ.
The crawl and search commands run one-shot against the same stores.`,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(crawlCmd())
	cmd.AddCommand(searchCmd())

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the crawl worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			// 1. Load Config
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			// 2. Core Dependencies
			deps, err := app.Bootstrap(ctx, cfg)
			if err != nil {
				return err
			}
			defer deps.Embedder.Close()

			// 3. Queue
			if err := app.BootstrapQueue(deps, cfg); err != nil {
				return err
			}
			defer deps.Producer.Stop()

			// 4. Consume until signalled
			return app.New(cfg, deps).RunWorker(ctx)
		},
	}
}

func crawlCmd() *cobra.Command {
	var (
		namespace  string
		pathPrefix string
		title      string
		maxDepth   int
		maxPages   int
		delayMs    int
	)

	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a site and index its pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			deps, err := app.Bootstrap(ctx, cfg)
			if err != nil {
				return err
			}
			defer deps.Embedder.Close()

			req := crawler.Request{
				StartAddress: args[0],
				Namespace:    namespace,
				PathPrefix:   pathPrefix,
				Title:        title,
			}
			// Only explicit flags override the session defaults.
			if cmd.Flags().Changed("max-depth") {
				req.MaxDepth = &maxDepth
			}
			if cmd.Flags().Changed("max-pages") {
				req.MaxPages = &maxPages
			}
			if cmd.Flags().Changed("delay-ms") {
				req.DelayMs = &delayMs
			}

			result, err := app.New(cfg, deps).Crawler.Crawl(ctx, req)
			if err != nil {
				_ = printJSON(cmd.OutOrStdout(), worker.CrawlResultEvent{
					Status:  worker.StatusFailed,
					Address: args[0],
					Error:   err.Error(),
					Code:    worker.ErrorCode(err),
				})
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "", "Tenant namespace (defaults to one derived from the host)")
	cmd.Flags().StringVar(&pathPrefix, "path-prefix", "", "Restrict the crawl to addresses under this path")
	cmd.Flags().StringVar(&title, "title", "", "Title override for every indexed page")
	cmd.Flags().IntVar(&maxDepth, "max-depth", crawler.DefaultMaxDepth, "Link depth to follow from the start address")
	cmd.Flags().IntVar(&maxPages, "max-pages", crawler.DefaultMaxPages, "Page budget for the session")
	cmd.Flags().IntVar(&delayMs, "delay-ms", crawler.DefaultDelayMs, "Politeness delay between pages in milliseconds")

	return cmd
}

func searchCmd() *cobra.Command {
	var (
		namespace string
		topK      int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			deps, err := app.Bootstrap(ctx, cfg)
			if err != nil {
				return err
			}
			defer deps.Embedder.Close()

			opts := retrieval.SearchOptions{Namespace: namespace}
			if cmd.Flags().Changed("top-k") {
				opts.TopK = &topK
			}

			matches, err := app.New(cfg, deps).Retrieval.Search(ctx, args[0], opts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), matches)
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "", "Tenant namespace to search")
	cmd.Flags().IntVar(&topK, "top-k", 8, "Number of matches to return")

	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
