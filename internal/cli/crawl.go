package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"alsrag/internal/adapter/crawler"
)

var (
	crawlDryRun bool
	crawlLimit  int
)

var crawlCmd = &cobra.Command{
	Use:   "crawl [seed]",
	Short: "Discover, filter and ingest site pages",
	Long: `Discover candidate pages from the seed URL (sitemaps, robots.txt, link
crawling, then a static list), keep the essential ones, and ingest them.

Examples:
  alsrag crawl                              # Crawl the configured seed
  alsrag crawl https://alsworldwide.org/    # Crawl a specific site
  alsrag crawl --dry-run                    # Show what would be ingested`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)
	crawlCmd.Flags().BoolVar(&crawlDryRun, "dry-run", false, "list kept and dropped URLs without ingesting")
	crawlCmd.Flags().IntVarP(&crawlLimit, "concurrency", "c", 0, "documents processed at once (default from config)")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seed := cfg.Crawl.Seed
	if len(args) > 0 {
		seed = args[0]
	}
	if seed == "" {
		return fmt.Errorf("no seed URL given and crawl.seed is empty")
	}

	frontier, err := buildFrontier()
	if err != nil {
		return err
	}

	fmt.Printf("Discovering pages from %s...\n", seed)
	discovered := frontier.Discover(ctx, seed)
	fc := filterConfig(seed)

	if crawlDryRun {
		kept := 0
		for _, t := range crawler.Classify(discovered, fc) {
			mark := "-"
			if t.Kept {
				mark = "+"
				kept++
			}
			fmt.Printf("%s %s (%s)\n", mark, t.URL, t.Rule)
		}
		urls := crawler.FilterEssential(discovered, fc)
		fmt.Printf("\nDiscovered %d URLs, %d matched, %d would be ingested\n", len(discovered), kept, len(urls))
		return nil
	}

	urls := crawler.FilterEssential(discovered, fc)
	fmt.Printf("Discovered %d URLs, ingesting %d\n", len(discovered), len(urls))
	if len(urls) == 0 {
		return nil
	}

	return ingestURLs(ctx, urls)
}

func ingestURLs(ctx context.Context, urls []string) error {
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	limit := cfg.Ingest.Concurrency
	if crawlLimit > 0 {
		limit = crawlLimit
	}

	report := a.ingester(newProgress("Ingesting")).IngestAll(ctx, urls, limit)
	printReport(report)
	return nil
}
