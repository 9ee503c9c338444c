// Package browser wraps the headless Chrome collaborator used to fetch
// rendered pages from the source site. The site serves its listings through
// client-side rendering and blocks plain HTTP clients, so every fetch goes
// through a real browser tab.
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// Page is one rendered page: final URL, HTTP status of the main document,
// the document title and the rendered HTML.
type Page struct {
	URL    string
	Status int
	Title  string
	HTML   string
}

// Renderer fetches rendered pages.
type Renderer interface {
	Render(ctx context.Context, url string) (*Page, error)
	Close()
}

// Config controls the Chrome renderer.
type Config struct {
	UserAgent   string
	PageTimeout time.Duration
}

const defaultPageTimeout = 60 * time.Second

// Chrome is a Renderer backed by a shared headless Chrome allocator.
// Each Render opens a fresh tab so page state never leaks between fetches.
type Chrome struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	timeout     time.Duration
}

// NewChrome starts the Chrome allocator.
func NewChrome(cfg Config) *Chrome {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	timeout := cfg.PageTimeout
	if timeout <= 0 {
		timeout = defaultPageTimeout
	}

	return &Chrome{
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		timeout:     timeout,
	}
}

// Render navigates a new tab to url, waits for the document to load and
// returns the rendered page. The page-load wait is bounded by the configured
// timeout; ctx cancellation aborts the tab early.
func (c *Chrome) Render(ctx context.Context, url string) (*Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(c.allocCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, c.timeout)
	defer cancelTimeout()

	// Tie the tab's lifetime to the caller's context.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	resp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(url))
	if err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}

	page := &Page{URL: url}
	if resp != nil {
		page.Status = int(resp.Status)
	}

	err = chromedp.Run(tabCtx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Title(&page.Title),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("read page %s: %w", url, err)
	}

	return page, nil
}

// Close shuts down the allocator and every Chrome process it spawned.
func (c *Chrome) Close() {
	c.cancelAlloc()
}

// verificationPhrases are title fragments of the source site's bot-check
// interstitials. Matching is case-insensitive.
var verificationPhrases = []string{
	"even geduld",
	"verifieer",
	"verify you are human",
	"access denied",
	"je bent bijna op de pagina",
}

// IsVerificationPage reports whether a page title belongs to a bot-check
// interstitial rather than real content.
func IsVerificationPage(title string) bool {
	lower := strings.ToLower(title)
	for _, phrase := range verificationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// IsHostileStatus reports whether an HTTP status signals the site is
// blocking or rate-limiting the client.
func IsHostileStatus(status int) bool {
	return status == 403 || status == 429
}
