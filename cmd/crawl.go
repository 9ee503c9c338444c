package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DorusKeijzer/Woonitor/internal/backoff"
	"github.com/DorusKeijzer/Woonitor/internal/browser"
	"github.com/DorusKeijzer/Woonitor/internal/dedup"
	"github.com/DorusKeijzer/Woonitor/internal/frontier"
	"github.com/DorusKeijzer/Woonitor/internal/queue"
	redisclient "github.com/DorusKeijzer/Woonitor/internal/redis"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Discover listing URLs and enqueue them for scraping",
	Long: `Crawl pages through the configured area's search results, extracts
listing links, deduplicates them against the seen set, and pushes new work
items onto the listing queue. The run ends when the site reports no more
results, the page limit is reached, or several consecutive pages yield
nothing new.`,
	RunE: runCrawl,
}

var crawlArea string

func init() {
	crawlCmd.Flags().StringVar(&crawlArea, "area", "", "area to crawl (overrides configuration)")
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	if crawlArea != "" {
		cfg.Crawler.Area = crawlArea
	}
	if cfg.Crawler.Area == "" {
		return errors.New("crawler: area is required (set crawler.area or CRAWLER_AREA)")
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer client.Close()

	renderer := browser.NewChrome(browser.Config{PageTimeout: cfg.Crawler.PageTimeout})
	defer renderer.Close()

	f := frontier.New(
		cfg.Crawler,
		renderer,
		dedup.NewTracker(client, log),
		queue.New(client, queue.ListingQueue),
		collector(cfg.Metrics),
		log,
	)

	switch err := f.Run(ctx); {
	case err == nil, errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, backoff.ErrHalted):
		return fmt.Errorf("crawl halted by hostile-response policy: %w", err)
	default:
		return fmt.Errorf("crawl: %w", err)
	}
}
