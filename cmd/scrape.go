package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DorusKeijzer/Woonitor/internal/backoff"
	"github.com/DorusKeijzer/Woonitor/internal/browser"
	"github.com/DorusKeijzer/Woonitor/internal/queue"
	redisclient "github.com/DorusKeijzer/Woonitor/internal/redis"
	"github.com/DorusKeijzer/Woonitor/internal/scraper"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Render queued listing pages and extract their fields",
	Long: `Scrape runs a pool of workers that pop listing URLs from the listing
queue, render each page in headless Chrome, extract the advertised fields,
and push the raw records onto the data queue for the writer.`,
	RunE: runScrape,
}

var scrapeWorkers int

func init() {
	scrapeCmd.Flags().IntVar(&scrapeWorkers, "workers", 0, "number of scrape workers (overrides configuration)")
}

func runScrape(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	if scrapeWorkers > 0 {
		cfg.Scraper.Workers = scrapeWorkers
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer client.Close()

	renderer := browser.NewChrome(browser.Config{
		UserAgent:   cfg.Scraper.UserAgent,
		PageTimeout: cfg.Scraper.PageTimeout,
	})
	defer renderer.Close()

	pool := scraper.NewPool(
		cfg.Scraper,
		queue.New(client, queue.ListingQueue),
		queue.New(client, queue.DataQueue),
		renderer,
		collector(cfg.Metrics),
		log,
	)

	switch err := pool.Start(ctx); {
	case err == nil, errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, backoff.ErrHalted):
		return fmt.Errorf("scrape halted by hostile-response policy: %w", err)
	default:
		return fmt.Errorf("scrape: %w", err)
	}
}
