// Package frontier implements the discovery stage: it pages through the
// search results for one geographic area, extracts detail-page links, filters
// them through the shared dedup set and enqueues the survivors as work items.
package frontier

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/DorusKeijzer/Woonitor/internal/backoff"
	"github.com/DorusKeijzer/Woonitor/internal/browser"
	"github.com/DorusKeijzer/Woonitor/internal/config"
	"github.com/DorusKeijzer/Woonitor/internal/domain"
	"github.com/DorusKeijzer/Woonitor/internal/logger"
	"github.com/DorusKeijzer/Woonitor/internal/metrics"
	"github.com/DorusKeijzer/Woonitor/internal/queue"
)

// detailPathPrefix marks links that point at listing detail pages.
const detailPathPrefix = "/detail/"

// noResultsMarker appears on the search page once paging runs past the last
// result.
const noResultsMarker = "Geen resultaten"

// Deduper is the shared check-and-insert set.
type Deduper interface {
	Add(ctx context.Context, url string) (bool, error)
}

// Frontier discovers listing URLs for one area.
type Frontier struct {
	name     string
	cfg      config.CrawlerConfig
	renderer browser.Renderer
	dedup    Deduper
	out      *queue.Queue
	machine  *backoff.Machine
	throttle backoff.Throttle
	metrics  metrics.Collector
	logger   logger.Logger
}

// New builds a Frontier. The worker name carries a random suffix so log lines
// from concurrently running instances stay distinguishable.
func New(
	cfg config.CrawlerConfig,
	renderer browser.Renderer,
	dedup Deduper,
	out *queue.Queue,
	collector metrics.Collector,
	log logger.Logger,
) *Frontier {
	name := fmt.Sprintf("crawler-%s", uuid.NewString()[:6])
	throttle := backoff.NewThrottle(cfg.ThrottleMin, cfg.ThrottleMax)

	return &Frontier{
		name:     name,
		cfg:      cfg,
		renderer: renderer,
		dedup:    dedup,
		out:      out,
		machine:  backoff.NewMachine(cfg.HostilePolicy, throttle),
		throttle: throttle,
		metrics:  collector,
		logger:   log.With(logger.String("worker", name), logger.String("area", cfg.Area)),
	}
}

// Run pages through the area's search results until one of the terminal
// conditions holds: the site reports no more results, the configured maximum
// page count is reached, several consecutive pages yield nothing new, or the
// hostile-response policy halts the run.
func (f *Frontier) Run(ctx context.Context) error {
	f.logger.Info("discovery started",
		logger.Int("max_pages", f.cfg.MaxPages),
		logger.String("hostile_policy", f.cfg.HostilePolicy),
	)

	emptyStreak := 0

	for page := 1; page <= f.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		newCount, done, err := f.crawlPage(ctx, page)
		if err != nil {
			return err
		}
		if done {
			f.logger.Info("no more results", logger.Int("page", page))
			return nil
		}

		if newCount == 0 {
			emptyStreak++
			if emptyStreak >= f.cfg.EmptyPageWindow {
				f.logger.Info("stopping: consecutive pages without new listings",
					logger.Int("pages", emptyStreak))
				return nil
			}
		} else {
			emptyStreak = 0
		}

		if pushErr := f.metrics.Push(ctx); pushErr != nil {
			f.logger.Warn("metrics push failed", logger.Error(pushErr))
		}

		if waitErr := f.throttle.Wait(ctx); waitErr != nil {
			return waitErr
		}
	}

	f.logger.Info("discovery finished", logger.Int("pages", f.cfg.MaxPages))
	return nil
}

// crawlPage fetches one search-results page and enqueues its new links.
// done reports the site's "no results" terminal state.
func (f *Frontier) crawlPage(ctx context.Context, page int) (newCount int, done bool, err error) {
	pageURL := f.searchURL(page)

	rendered, err := f.fetchCooperative(ctx, pageURL)
	if err != nil {
		return 0, false, err
	}
	if rendered == nil {
		// Transient fetch failure; move on at the next loop iteration.
		return 0, false, nil
	}

	if strings.Contains(rendered.HTML, noResultsMarker) {
		return 0, true, nil
	}

	links, err := ExtractListingLinks(rendered.HTML)
	if err != nil {
		f.logger.Error("link extraction failed", logger.String("url", pageURL), logger.Error(err))
		return 0, false, nil
	}

	f.logger.Info("page crawled",
		logger.Int("page", page),
		logger.Int("links", len(links)),
	)

	for _, link := range links {
		absolute, resolveErr := f.absoluteURL(link)
		if resolveErr != nil {
			f.logger.Warn("skipping malformed link", logger.String("href", link), logger.Error(resolveErr))
			continue
		}

		isNew, addErr := f.dedup.Add(ctx, absolute)
		if addErr != nil {
			return newCount, false, fmt.Errorf("dedup: %w", addErr)
		}
		if !isNew {
			continue
		}

		item := domain.WorkItem{
			ProducerID: f.name,
			URL:        absolute,
			Area:       f.cleanedArea(),
			EnqueuedAt: time.Now().UTC(),
		}
		if pushErr := f.out.Push(ctx, item); pushErr != nil {
			return newCount, false, fmt.Errorf("enqueue work item: %w", pushErr)
		}
		newCount++
	}

	f.metrics.NewURLs(newCount)
	return newCount, false, nil
}

// fetchCooperative renders a page and runs hostile responses through the
// backoff machine until the site cooperates or the policy halts the run.
// A nil page with nil error means a transient failure the caller may retry.
func (f *Frontier) fetchCooperative(ctx context.Context, pageURL string) (*browser.Page, error) {
	for {
		rendered, err := f.renderer.Render(ctx, pageURL)
		f.metrics.PageCrawled()

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			f.logger.Error("fetch failed", logger.String("url", pageURL), logger.Error(err))
			return nil, nil
		}

		f.metrics.HTTPStatus(rendered.Status)

		hostile := browser.IsHostileStatus(rendered.Status)
		captcha := browser.IsVerificationPage(rendered.Title)
		if captcha {
			f.metrics.CaptchaEncountered()
		}

		if !hostile && !captcha {
			f.machine.Calm()
			return rendered, nil
		}

		state := f.machine.Hostile()
		f.logger.Warn("hostile response",
			logger.String("url", pageURL),
			logger.Int("status", rendered.Status),
			logger.String("state", state.String()),
			logger.Int("strikes", f.machine.Strikes()),
		)

		if waitErr := f.machine.Wait(ctx); waitErr != nil {
			if errors.Is(waitErr, backoff.ErrHalted) {
				f.logger.Error("halting per hostile-response policy")
			}
			return nil, waitErr
		}
	}
}

// searchURL builds the results URL for a page number, matching the source
// site's query format.
func (f *Frontier) searchURL(page int) string {
	return fmt.Sprintf(
		`%s?selected_area=["%s"]&availability=["unavailable"]&search_result=%d`,
		f.cfg.BaseURL, f.cleanedArea(), page,
	)
}

func (f *Frontier) cleanedArea() string {
	return strings.ReplaceAll(strings.ToLower(f.cfg.Area), " ", "-")
}

// absoluteURL resolves a (possibly relative) link against the configured base
// and normalizes it: lowercase host, no fragment.
func (f *Frontier) absoluteURL(link string) (string, error) {
	base, err := url.Parse(f.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	ref, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse link: %w", err)
	}

	resolved := base.ResolveReference(ref)
	resolved.Host = strings.ToLower(resolved.Host)
	resolved.Fragment = ""

	return resolved.String(), nil
}

// ExtractListingLinks pulls all detail-page hrefs out of a rendered
// search-results page, locally deduplicated and sorted for determinism.
func ExtractListingLinks(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		if !strings.HasPrefix(href, detailPathPrefix) {
			return
		}
		seen[href] = struct{}{}
	})

	links := make([]string, 0, len(seen))
	for href := range seen {
		links = append(links, href)
	}
	sort.Strings(links)

	return links, nil
}
