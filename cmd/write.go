package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DorusKeijzer/Woonitor/internal/database"
	"github.com/DorusKeijzer/Woonitor/internal/queue"
	redisclient "github.com/DorusKeijzer/Woonitor/internal/redis"
	"github.com/DorusKeijzer/Woonitor/internal/writer"
)

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Normalize raw records and persist them to PostgreSQL",
	Long: `Write drains the data queue, validates and transforms each raw record
into a canonical listing, and writes listings to PostgreSQL in batches.
A batch flushes when it reaches the configured size or when the flush
interval elapses, whichever comes first. Batches that fail twice are
dead-lettered in raw form.`,
	RunE: runWrite,
}

func runWrite(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer client.Close()

	db, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	repo := database.NewListingRepository(db, log)
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	w := writer.New(
		cfg.Writer,
		queue.New(client, queue.DataQueue),
		queue.New(client, queue.DeadLetterQueue),
		repo,
		collector(cfg.Metrics),
		log,
	)

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
