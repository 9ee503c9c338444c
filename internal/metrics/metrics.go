// Package metrics exposes the pipeline counters and pushes them to a
// Prometheus Pushgateway once per worker cycle. Workers depend on the
// Collector interface so tests can drop in the no-op implementation.
package metrics

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Collector is the metrics surface shared by the three pipeline stages.
type Collector interface {
	// PageCrawled counts one search-results page fetched by discovery.
	PageCrawled()
	// NewURLs counts listing URLs that passed the dedup set.
	NewURLs(n int)
	// HTTPStatus records a response status (200/403/429 tracked, rest "other").
	HTTPStatus(code int)
	// CaptchaEncountered counts verification pages served by the source.
	CaptchaEncountered()
	// WriteSuccess counts one committed batch.
	WriteSuccess()
	// WriteFailure counts one rolled-back batch.
	WriteFailure()
	// Push ships the current counters to the Pushgateway.
	Push(ctx context.Context) error
}

// trackedStatuses are status codes reported under their own label value.
var trackedStatuses = map[int]struct{}{200: {}, 403: {}, 429: {}}

// Prometheus is the Pushgateway-backed Collector.
type Prometheus struct {
	registry *prometheus.Registry
	pusher   *push.Pusher

	pagesCrawled prometheus.Counter
	newURLs      prometheus.Counter
	httpStatus   *prometheus.CounterVec
	captchas     prometheus.Counter
	writes       *prometheus.CounterVec
}

// New builds a Collector pushing to gatewayURL under the given job name.
func New(gatewayURL, job string) *Prometheus {
	registry := prometheus.NewRegistry()

	p := &Prometheus{
		registry: registry,
		pusher:   push.New(gatewayURL, job).Gatherer(registry),
		pagesCrawled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "woonitor_pages_crawled_total",
			Help: "Search-result pages fetched by discovery.",
		}),
		newURLs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "woonitor_new_urls_total",
			Help: "Listing URLs enqueued after passing deduplication.",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "woonitor_http_responses_total",
			Help: "HTTP responses from the source site by status code.",
		}, []string{"code"}),
		captchas: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "woonitor_captcha_encounters_total",
			Help: "Verification pages served instead of content.",
		}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "woonitor_writes_total",
			Help: "Batch writes to the listings table by result.",
		}, []string{"result"}),
	}

	registry.MustRegister(p.pagesCrawled, p.newURLs, p.httpStatus, p.captchas, p.writes)

	return p
}

func (p *Prometheus) PageCrawled() { p.pagesCrawled.Inc() }

func (p *Prometheus) NewURLs(n int) { p.newURLs.Add(float64(n)) }

func (p *Prometheus) HTTPStatus(code int) {
	label := "other"
	if _, ok := trackedStatuses[code]; ok {
		label = strconv.Itoa(code)
	}
	p.httpStatus.WithLabelValues(label).Inc()
}

func (p *Prometheus) CaptchaEncountered() { p.captchas.Inc() }

func (p *Prometheus) WriteSuccess() { p.writes.WithLabelValues("success").Inc() }

func (p *Prometheus) WriteFailure() { p.writes.WithLabelValues("failure").Inc() }

// Push ships all registered counters to the gateway.
func (p *Prometheus) Push(ctx context.Context) error {
	if err := p.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// Nop is a Collector that records nothing. Used in tests and when no
// Pushgateway is configured.
type Nop struct{}

func (Nop) PageCrawled()               {}
func (Nop) NewURLs(int)                {}
func (Nop) HTTPStatus(int)             {}
func (Nop) CaptchaEncountered()        {}
func (Nop) WriteSuccess()              {}
func (Nop) WriteFailure()              {}
func (Nop) Push(context.Context) error { return nil }
