// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/local-job-scraper/internal/crawler"
)

// DefaultUserAgent mimics a desktop browser; many small-business sites reject
// obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// HostWaiter throttles requests per host before they are sent.
type HostWaiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	// Limiter is optional.
	Limiter HostWaiter
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newRobotsTransport(newHTTPTransport()))
	// Probing the same career URL for different profiles is legitimate.
	c.AllowURLRevisit = true
	// Non-2xx pages still come back as responses; the caller judges status.
	c.ParseHTTPErrorResponse = true
	// Clones share the backend http.Client, so the timeout is set once here.
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET using Colly.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.Page, error) {
	if f.cfg.Limiter != nil {
		if err := f.cfg.Limiter.Wait(ctx, rawURL); err != nil {
			return crawler.Page{}, fmt.Errorf("throttle %s: %w", rawURL, err)
		}
	}

	var (
		result   crawler.Page
		fetchErr error
	)
	collector := f.buildCollector()
	f.configureCollectorHooks(collector, rawURL, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return crawler.Page{}, err
	}
	return result, nil
}

func (f *Fetcher) buildCollector() *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	rawURL string,
	result *crawler.Page,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.8")
	})

	hooks.OnResponse(func(r *colly.Response) {
		headers := http.Header{}
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		finalURL := rawURL
		if r.Request != nil && r.Request.URL != nil {
			finalURL = r.Request.URL.String()
		}
		*result = crawler.Page{
			URL:        rawURL,
			FinalURL:   finalURL,
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       append([]byte(nil), r.Body...),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return crawler.TransportError("colly visit "+rawURL, err)
		}
		if *fetchErr != nil {
			return crawler.TransportError("colly response "+rawURL, *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
