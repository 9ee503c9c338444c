// Package writer drains the data queue, normalizes raw records into listings
// and persists them to PostgreSQL in batches.
package writer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/DorusKeijzer/Woonitor/internal/config"
	"github.com/DorusKeijzer/Woonitor/internal/domain"
	"github.com/DorusKeijzer/Woonitor/internal/logger"
	"github.com/DorusKeijzer/Woonitor/internal/metrics"
	"github.com/DorusKeijzer/Woonitor/internal/queue"
	"github.com/DorusKeijzer/Woonitor/internal/transform"
)

// Inserter persists a batch of listings in one transaction.
type Inserter interface {
	InsertBatch(ctx context.Context, listings []*domain.Listing) (int, error)
}

// entry pairs a transformed listing with the raw record it came from, so a
// failed batch can dead-letter the originals instead of the derived rows.
type entry struct {
	raw     domain.RawRecord
	listing *domain.Listing
}

// batch accumulates entries until the size limit is reached. Time-based
// flushing is the writer's concern; the batch only knows about size.
type batch struct {
	limit   int
	entries []entry
}

func newBatch(limit int) *batch {
	return &batch{limit: limit, entries: make([]entry, 0, limit)}
}

func (b *batch) add(e entry) { b.entries = append(b.entries, e) }
func (b *batch) len() int    { return len(b.entries) }
func (b *batch) full() bool  { return len(b.entries) >= b.limit }

func (b *batch) listings() []*domain.Listing {
	out := make([]*domain.Listing, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.listing
	}
	return out
}

func (b *batch) reset() { b.entries = b.entries[:0] }

// Writer is the transform/persist stage of the pipeline.
type Writer struct {
	name    string
	cfg     config.WriterConfig
	in      *queue.Queue
	dead    *queue.Queue
	repo    Inserter
	metrics metrics.Collector
	logger  logger.Logger
}

// New creates a writer consuming from in. Records whose batch fails twice
// are pushed to dead in their raw form.
func New(
	cfg config.WriterConfig,
	in, dead *queue.Queue,
	repo Inserter,
	collector metrics.Collector,
	log logger.Logger,
) *Writer {
	name := "writer-" + uuid.NewString()[:6]
	return &Writer{
		name:    name,
		cfg:     cfg,
		in:      in,
		dead:    dead,
		repo:    repo,
		metrics: collector,
		logger:  log.With(logger.String("worker", name)),
	}
}

// Run consumes raw records until ctx is canceled. A batch is flushed when it
// reaches the configured size or when the flush interval has elapsed since
// the last flush, whichever comes first. Whatever is buffered at shutdown is
// flushed before returning.
func (w *Writer) Run(ctx context.Context) error {
	w.logger.Info("writer started",
		logger.Int("batch_size", w.cfg.BatchSize),
		logger.Duration("flush_interval", w.cfg.FlushInterval))

	b := newBatch(w.cfg.BatchSize)
	lastFlush := time.Now()

	for {
		if ctx.Err() != nil {
			break
		}

		var rec domain.RawRecord
		err := w.in.Pop(ctx, w.cfg.PopTimeout, &rec)
		switch {
		case err == nil:
			if e, ok := w.prepare(rec); ok {
				b.add(e)
			}
		case errors.Is(err, queue.ErrEmpty):
			// Idle; fall through to the flush check.
		case ctx.Err() != nil:
			// Canceled mid pop.
		default:
			w.logger.Warn("pop failed", logger.Error(err))
		}

		if b.len() > 0 && (b.full() || time.Since(lastFlush) >= w.cfg.FlushInterval) {
			w.flush(context.WithoutCancel(ctx), b)
			lastFlush = time.Now()
		}
	}

	if b.len() > 0 {
		w.flush(context.WithoutCancel(ctx), b)
	}
	w.logger.Info("writer stopped")
	return ctx.Err()
}

// prepare runs the validate-transform-validate pipeline on one raw record.
// Records that fail any step are dropped with a log line; a single bad
// record must never stall the queue.
func (w *Writer) prepare(rec domain.RawRecord) (entry, bool) {
	if err := transform.ValidateInput(rec); err != nil {
		w.logger.Warn("dropping invalid record",
			logger.String("url", rec.URL()),
			logger.Error(err))
		return entry{}, false
	}

	listing, err := transform.Transform(rec)
	if err != nil {
		w.logger.Warn("dropping untransformable record",
			logger.String("funda_id", rec.ExternalID()),
			logger.String("url", rec.URL()),
			logger.Error(err))
		return entry{}, false
	}

	if err := transform.ValidateOutput(listing); err != nil {
		w.logger.Warn("dropping incomplete listing",
			logger.String("funda_id", listing.FundaID),
			logger.Error(err))
		return entry{}, false
	}

	return entry{raw: rec, listing: listing}, true
}

// flush writes the batch, retrying once. A batch that fails both attempts is
// dead-lettered record by record so nothing is silently lost.
func (w *Writer) flush(ctx context.Context, b *batch) {
	listings := b.listings()

	inserted, err := w.repo.InsertBatch(ctx, listings)
	if err != nil {
		w.logger.Warn("batch insert failed, retrying once",
			logger.Int("size", b.len()),
			logger.Error(err))
		inserted, err = w.repo.InsertBatch(ctx, listings)
	}

	if err != nil {
		w.logger.Error("batch insert failed twice, dead-lettering",
			logger.Int("size", b.len()),
			logger.Error(err))
		w.metrics.WriteFailure()
		for _, e := range b.entries {
			if pushErr := w.dead.Push(ctx, e.raw); pushErr != nil {
				w.logger.Error("dead-letter push failed",
					logger.String("funda_id", e.raw.ExternalID()),
					logger.Error(pushErr))
			}
		}
	} else {
		w.metrics.WriteSuccess()
		w.logger.Info("flushed batch",
			logger.Int("size", b.len()),
			logger.Int("inserted", inserted))
	}

	if pushErr := w.metrics.Push(ctx); pushErr != nil {
		w.logger.Warn("metrics push failed", logger.Error(pushErr))
	}
	b.reset()
}
