package crawler

import (
	"context"
	"io"
	"time"

	"github.com/JakeFAU/local-job-scraper/internal/geo"
)

// PlaceFinder issues one text search per (term, zone) pair.
type PlaceFinder interface {
	Search(ctx context.Context, term string, zone geo.SearchZone) Outcome[[]Candidate]
}

// SiteResolver looks up a candidate's website and phone number.
type SiteResolver interface {
	Resolve(ctx context.Context, placeID string) Outcome[SiteInfo]
}

// CareerLocator finds the careers page for a website root.
type CareerLocator interface {
	Locate(ctx context.Context, websiteURL string) Outcome[CareerPage]
}

// KeywordMatcher reports which keywords appear on a careers page.
type KeywordMatcher interface {
	Match(ctx context.Context, careerURL string, keywords []string) Outcome[[]string]
}

// Fetcher fetches a URL and returns the body plus metadata. Non-2xx
// responses are returned as pages; only transport failures are errors.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Pauser sleeps between remote calls.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// RetryPolicy decides whether and when to retry a failed call.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}
