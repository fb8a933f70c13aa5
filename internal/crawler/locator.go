package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/local-job-scraper/internal/metrics"
)

// DefaultLinkHints are href substrings that mark a link as a careers link.
var DefaultLinkHints = []string{"career", "job", "hiring", "employment", "join", "apply", "work-with"}

// DefaultCareerPaths are probed in order when the homepage has no careers link.
var DefaultCareerPaths = []string{
	"/careers", "/careers/", "/jobs", "/jobs/",
	"/join-us", "/join-our-team", "/work-with-us",
	"/employment", "/opportunities", "/hiring",
	"/open-positions", "/apply", "/now-hiring",
	"/career-opportunities", "/join", "/work-here",
	"/positions", "/openings",
}

// DefaultMinCareerPageBytes rejects soft-404 pages that answer 200 with
// almost no content. A probe hit needs strictly more bytes than this.
const DefaultMinCareerPageBytes = 500

// LocatorConfig tunes the career page heuristics.
type LocatorConfig struct {
	LinkHints    []string
	CareerPaths  []string
	MinPageBytes int
}

// CareerPageLocator finds a careers page with a two-tier heuristic: scan the
// homepage anchors, then probe well-known paths.
type CareerPageLocator struct {
	fetcher  Fetcher
	hints    []string
	paths    []string
	minBytes int
	logger   *zap.Logger
}

// NewCareerPageLocator builds a locator; empty config fields take defaults.
func NewCareerPageLocator(fetcher Fetcher, cfg LocatorConfig, logger *zap.Logger) *CareerPageLocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	hints := normalizeKeywords(cfg.LinkHints)
	if len(hints) == 0 {
		hints = DefaultLinkHints
	}
	paths := cfg.CareerPaths
	if len(paths) == 0 {
		paths = DefaultCareerPaths
	}
	minBytes := cfg.MinPageBytes
	if minBytes <= 0 {
		minBytes = DefaultMinCareerPageBytes
	}
	return &CareerPageLocator{
		fetcher:  fetcher,
		hints:    hints,
		paths:    paths,
		minBytes: minBytes,
		logger:   logger,
	}
}

// Locate implements CareerLocator. Exhausting both tiers yields an
// ErrNotFound outcome, which is a normal result rather than a failure.
func (l *CareerPageLocator) Locate(ctx context.Context, websiteURL string) Outcome[CareerPage] {
	if found, ok := l.scanHomepage(ctx, websiteURL); ok {
		return Succeeded(CareerPage{URL: found, Via: ViaLinkScan})
	}
	if err := ctx.Err(); err != nil {
		return Failed[CareerPage](TransportError("locate", err))
	}
	if found, ok := l.probePaths(ctx, websiteURL); ok {
		return Succeeded(CareerPage{URL: found, Via: ViaProbe})
	}
	return Failed[CareerPage](fmt.Errorf("career page for %s: %w", websiteURL, ErrNotFound))
}

func (l *CareerPageLocator) scanHomepage(ctx context.Context, websiteURL string) (string, bool) {
	page, err := l.fetcher.Fetch(ctx, websiteURL)
	if err != nil {
		metrics.ObserveSiteFetch("homepage", "error", 0)
		l.logger.Debug("homepage fetch failed", zap.String("url", websiteURL), zap.Error(err))
		return "", false
	}
	metrics.ObserveSiteFetch("homepage", statusOutcome(page.StatusCode), page.ContentLength())
	return l.findCareerLink(page)
}

// findCareerLink returns the first anchor, in document order, whose href
// contains a hint.
func (l *CareerPageLocator) findCareerLink(page Page) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return "", false
	}
	base := page.BaseURL()
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if !containsAny(strings.ToLower(href), l.hints) {
			return true
		}
		resolved, err := ResolveReference(base, href)
		if err != nil {
			l.logger.Debug("skipping career link", zap.String("href", href), zap.Error(err))
			return true
		}
		found = resolved
		return false
	})
	return found, found != ""
}

func (l *CareerPageLocator) probePaths(ctx context.Context, websiteURL string) (string, bool) {
	root, err := SiteRoot(websiteURL)
	if err != nil {
		l.logger.Debug("cannot derive site root", zap.String("url", websiteURL), zap.Error(err))
		return "", false
	}
	for _, p := range l.paths {
		if ctx.Err() != nil {
			return "", false
		}
		candidate := root + p
		page, err := l.fetcher.Fetch(ctx, candidate)
		if err != nil {
			metrics.ObserveSiteFetch("probe", "error", 0)
			continue
		}
		metrics.ObserveSiteFetch("probe", statusOutcome(page.StatusCode), page.ContentLength())
		if l.acceptProbe(page) {
			return candidate, true
		}
	}
	return "", false
}

func (l *CareerPageLocator) acceptProbe(page Page) bool {
	return page.StatusCode == http.StatusOK && page.ContentLength() > l.minBytes
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func statusOutcome(code int) string {
	if code >= 200 && code < 300 {
		return "ok"
	}
	return "http_error"
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{})
	for _, kw := range in {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
