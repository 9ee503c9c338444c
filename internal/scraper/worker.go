package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DorusKeijzer/Woonitor/internal/backoff"
	"github.com/DorusKeijzer/Woonitor/internal/browser"
	"github.com/DorusKeijzer/Woonitor/internal/config"
	"github.com/DorusKeijzer/Woonitor/internal/domain"
	"github.com/DorusKeijzer/Woonitor/internal/logger"
	"github.com/DorusKeijzer/Woonitor/internal/metrics"
	"github.com/DorusKeijzer/Woonitor/internal/queue"
)

// siteOrigin resolves the relative paths discovery may have enqueued before
// URL normalization was in place.
const siteOrigin = "https://www.funda.nl"

// Pool runs the configured number of scrape workers against the work queue.
// Queue pop is atomic per message, so any number of workers (here or in other
// processes) can share the queue safely.
type Pool struct {
	cfg      config.ScraperConfig
	in       *queue.Queue
	out      *queue.Queue
	renderer browser.Renderer
	metrics  metrics.Collector
	logger   logger.Logger
}

// NewPool builds the scraper worker pool.
func NewPool(
	cfg config.ScraperConfig,
	in, out *queue.Queue,
	renderer browser.Renderer,
	collector metrics.Collector,
	log logger.Logger,
) *Pool {
	return &Pool{
		cfg:      cfg,
		in:       in,
		out:      out,
		renderer: renderer,
		metrics:  collector,
		logger:   log,
	}
}

// Start launches the workers and blocks until they stop. The first fatal
// error (a policy halt) cancels the remaining workers and is returned so the
// process can exit nonzero.
func (p *Pool) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.logger.Info("scraper pool starting", logger.Int("workers", p.cfg.Workers))

	var (
		wg       sync.WaitGroup
		once     sync.Once
		fatalErr error
	)

	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.runWorker(ctx); err != nil && !errors.Is(err, context.Canceled) {
				once.Do(func() {
					fatalErr = err
					cancel()
				})
			}
		}()
	}

	wg.Wait()
	p.logger.Info("scraper pool stopped")

	return fatalErr
}

// runWorker is one worker's loop: pop, scrape, publish, throttle.
func (p *Pool) runWorker(ctx context.Context) error {
	name := fmt.Sprintf("scraper-%s", uuid.NewString()[:6])
	log := p.logger.With(logger.String("worker", name))
	throttle := backoff.NewThrottle(p.cfg.ThrottleMin, p.cfg.ThrottleMax)
	machine := backoff.NewMachine(p.cfg.HostilePolicy, throttle)

	log.Info("worker started")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var item domain.WorkItem
		err := p.in.Pop(ctx, p.cfg.PopTimeout, &item)
		if errors.Is(err, queue.ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("queue pop failed", logger.Error(err))
			continue
		}

		if scrapeErr := p.scrapeOne(ctx, log, machine, &item); scrapeErr != nil {
			return scrapeErr
		}

		if pushErr := p.metrics.Push(ctx); pushErr != nil {
			log.Warn("metrics push failed", logger.Error(pushErr))
		}

		if waitErr := throttle.Wait(ctx); waitErr != nil {
			return waitErr
		}
	}
}

// scrapeOne processes a single work item. Extraction failures drop the item;
// only a policy halt (or cancellation) is returned as an error.
func (p *Pool) scrapeOne(
	ctx context.Context,
	log logger.Logger,
	machine *backoff.Machine,
	item *domain.WorkItem,
) error {
	pageURL := absoluteURL(item.URL)

	externalID, err := ExternalIDFromURL(pageURL)
	if err != nil {
		log.Error("dropping work item", logger.String("url", pageURL), logger.Error(err))
		return nil
	}

	rendered, err := p.renderer.Render(ctx, pageURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// A malformed or unreachable page is unlikely to improve on a
		// retry; log and move on.
		log.Error("render failed, dropping work item",
			logger.String("url", pageURL), logger.Error(err))
		return nil
	}

	p.metrics.HTTPStatus(rendered.Status)

	hostile := browser.IsHostileStatus(rendered.Status)
	captcha := browser.IsVerificationPage(rendered.Title)
	if captcha {
		p.metrics.CaptchaEncountered()
	}

	if hostile || captcha {
		state := machine.Hostile()
		log.Warn("hostile response, requeueing item",
			logger.String("url", pageURL),
			logger.Int("status", rendered.Status),
			logger.String("state", state.String()),
		)
		// The item goes back on the queue first so it survives the backoff
		// sleep and a policy halt alike.
		if pushErr := p.in.Push(ctx, item); pushErr != nil {
			return fmt.Errorf("requeue work item: %w", pushErr)
		}
		return machine.Wait(ctx)
	}
	machine.Calm()

	record, err := ExtractRecord(rendered.HTML, pageURL, externalID, time.Now().UTC())
	if err != nil {
		log.Error("extraction failed, dropping work item",
			logger.String("url", pageURL), logger.Error(err))
		return nil
	}

	if pushErr := p.out.Push(ctx, record); pushErr != nil {
		return fmt.Errorf("publish raw record: %w", pushErr)
	}

	log.Info("listing scraped",
		logger.String("external_id", externalID),
		logger.String("url", pageURL),
		logger.Int("fields", len(record)),
	)

	return nil
}

// absoluteURL prefixes relative work-item URLs with the site origin.
func absoluteURL(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return siteOrigin + u
}
