package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DorusKeijzer/Woonitor/internal/dedup"
	"github.com/DorusKeijzer/Woonitor/internal/logger"
	redisclient "github.com/DorusKeijzer/Woonitor/internal/redis"
)

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Clear the URL deduplication set",
	Long: `Flush empties the set of seen listing URLs so the next crawl re-enqueues
everything it finds. Queued work items and stored listings are untouched.`,
	RunE: runFlush,
}

func runFlush(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer client.Close()

	tracker := dedup.NewTracker(client, log)

	size, err := tracker.Size(cmd.Context())
	if err != nil {
		return fmt.Errorf("read dedup set size: %w", err)
	}

	if err := tracker.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("clear dedup set: %w", err)
	}

	log.Info("flushed seen URLs", logger.Int64("removed", size))
	return nil
}
