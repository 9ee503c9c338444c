package scraper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DorusKeijzer/Woonitor/internal/backoff"
	"github.com/DorusKeijzer/Woonitor/internal/browser"
	"github.com/DorusKeijzer/Woonitor/internal/config"
	"github.com/DorusKeijzer/Woonitor/internal/domain"
	"github.com/DorusKeijzer/Woonitor/internal/logger"
	"github.com/DorusKeijzer/Woonitor/internal/metrics"
	"github.com/DorusKeijzer/Woonitor/internal/queue"
)

// stubRenderer serves the same page for every URL.
type stubRenderer struct {
	page browser.Page
}

func (r *stubRenderer) Render(_ context.Context, pageURL string) (*browser.Page, error) {
	page := r.page
	page.URL = pageURL
	return &page, nil
}

func (r *stubRenderer) Close() {}

// seqRenderer serves a fixed sequence of pages, repeating the last one.
// Safe for concurrent workers.
type seqRenderer struct {
	mu    sync.Mutex
	pages []browser.Page
	calls int
}

func (r *seqRenderer) Render(_ context.Context, pageURL string) (*browser.Page, error) {
	r.mu.Lock()
	i := r.calls
	if i >= len(r.pages) {
		i = len(r.pages) - 1
	}
	r.calls++
	r.mu.Unlock()

	page := r.pages[i]
	page.URL = pageURL
	return &page, nil
}

func (r *seqRenderer) Close() {}

func poolFixture(t *testing.T, cfg config.ScraperConfig, renderer browser.Renderer) (*Pool, *queue.Queue, *queue.Queue) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	// miniredis only times out blocked BRPOPs when its clock moves.
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				mr.FastForward(100 * time.Millisecond)
			}
		}
	}()
	t.Cleanup(func() { close(stop) })

	in := queue.New(client, queue.ListingQueue)
	out := queue.New(client, queue.DataQueue)

	return NewPool(cfg, in, out, renderer, metrics.Nop{}, logger.NewNop()), in, out
}

func TestPoolScrapesQueuedItem(t *testing.T) {
	renderer := &stubRenderer{page: browser.Page{
		Status: 200,
		Title:  "Voorbeeldstraat 1 te koop",
		HTML:   detailPage,
	}}

	pool, in, out := poolFixture(t, config.ScraperConfig{
		Workers:       2,
		PopTimeout:    100 * time.Millisecond,
		HostilePolicy: config.PolicyBackoff,
	}, renderer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, in.Push(ctx, domain.WorkItem{
		URL:  "https://www.funda.nl/detail/koop/tilburg/huis-voorbeeldstraat/42352883/",
		Area: "tilburg",
	}))

	done := make(chan error, 1)
	go func() { done <- pool.Start(ctx) }()

	var record domain.RawRecord
	require.NoError(t, out.Pop(ctx, 5*time.Second, &record))

	assert.Equal(t, "42352883", record.ExternalID())
	assert.Equal(t, "Voorbeeldstraat 1", record["Titel"])
	assert.Equal(t, "5035 DD Tilburg", record["Postcode"])

	cancel()
	require.NoError(t, <-done)
}

func TestPoolDropsItemWithoutExternalID(t *testing.T) {
	renderer := &stubRenderer{page: browser.Page{Status: 200, HTML: detailPage}}

	pool, in, out := poolFixture(t, config.ScraperConfig{
		Workers:       1,
		PopTimeout:    50 * time.Millisecond,
		HostilePolicy: config.PolicyBackoff,
	}, renderer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, in.Push(ctx, domain.WorkItem{
		URL: "https://www.funda.nl/koop/assen/huis-zonder-nummer/",
	}))
	require.NoError(t, in.Push(ctx, domain.WorkItem{
		URL: "https://www.funda.nl/detail/koop/tilburg/huis-voorbeeldstraat/42352883/",
	}))

	done := make(chan error, 1)
	go func() { done <- pool.Start(ctx) }()

	// The malformed item is skipped; only one record comes out.
	var record domain.RawRecord
	require.NoError(t, out.Pop(ctx, 5*time.Second, &record))
	assert.Equal(t, "42352883", record.ExternalID())

	n, err := out.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	cancel()
	require.NoError(t, <-done)
}

func TestPoolRetriesItemAfterHostileResponse(t *testing.T) {
	renderer := &seqRenderer{pages: []browser.Page{
		{Status: 429, Title: "Even geduld"},
		{Status: 200, Title: "Voorbeeldstraat 1 te koop", HTML: detailPage},
	}}

	pool, in, out := poolFixture(t, config.ScraperConfig{
		Workers:       1,
		PopTimeout:    50 * time.Millisecond,
		HostilePolicy: config.PolicyBackoff,
	}, renderer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, in.Push(ctx, domain.WorkItem{
		URL: "https://www.funda.nl/detail/koop/tilburg/huis-voorbeeldstraat/42352883/",
	}))

	done := make(chan error, 1)
	go func() { done <- pool.Start(ctx) }()

	// The rate-limited item must come back around and get scraped once the
	// site cooperates again.
	var record domain.RawRecord
	require.NoError(t, out.Pop(ctx, 5*time.Second, &record))
	assert.Equal(t, "42352883", record.ExternalID())

	cancel()
	require.NoError(t, <-done)
}

func TestPoolHaltsOnHostileAbortPolicy(t *testing.T) {
	renderer := &stubRenderer{page: browser.Page{Status: 429, Title: "Even geduld"}}

	pool, in, _ := poolFixture(t, config.ScraperConfig{
		Workers:       1,
		PopTimeout:    50 * time.Millisecond,
		HostilePolicy: config.PolicyAbort,
	}, renderer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, in.Push(ctx, domain.WorkItem{
		URL: "https://www.funda.nl/detail/koop/tilburg/huis-voorbeeldstraat/42352883/",
	}))

	done := make(chan error, 1)
	go func() { done <- pool.Start(ctx) }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, backoff.ErrHalted)
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not halt on hostile response")
	}

	// The item survives the halt and is waiting for the next run.
	n, err := in.Len(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
