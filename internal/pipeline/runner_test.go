package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/local-job-scraper/internal/crawler"
	"github.com/JakeFAU/local-job-scraper/internal/geo"
	"github.com/JakeFAU/local-job-scraper/internal/storage/memory"
)

type searchCall struct {
	zone string
	term string
}

type fakeFinder struct {
	mu      sync.Mutex
	calls   []searchCall
	results func(term string, zone geo.SearchZone) crawler.Outcome[[]crawler.Candidate]
}

func (f *fakeFinder) Search(_ context.Context, term string, zone geo.SearchZone) crawler.Outcome[[]crawler.Candidate] {
	f.mu.Lock()
	f.calls = append(f.calls, searchCall{zone: zone.Label, term: term})
	f.mu.Unlock()
	return f.results(term, zone)
}

type fakeResolver struct {
	mu    sync.Mutex
	sites map[string]crawler.Outcome[crawler.SiteInfo]
	calls []string
}

func (f *fakeResolver) Resolve(_ context.Context, id string) crawler.Outcome[crawler.SiteInfo] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if out, ok := f.sites[id]; ok {
		return out
	}
	return crawler.Succeeded(crawler.SiteInfo{})
}

// siteFetcher serves canned HTML per URL.
type siteFetcher struct {
	pages map[string]string
}

func (f siteFetcher) Fetch(_ context.Context, rawURL string) (crawler.Page, error) {
	body, ok := f.pages[rawURL]
	if !ok {
		return crawler.Page{URL: rawURL, StatusCode: http.StatusNotFound}, nil
	}
	return crawler.Page{URL: rawURL, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

type recordingPauser struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (p *recordingPauser) Pause(_ context.Context, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delays = append(p.delays, d)
}

func (p *recordingPauser) count(d time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, got := range p.delays {
		if got == d {
			n++
		}
	}
	return n
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("run-%d", s.n), nil
}

var testDelays = Delays{
	Search:    1 * time.Millisecond,
	Details:   2 * time.Millisecond,
	NoCareers: 3 * time.Millisecond,
	Crawl:     4 * time.Millisecond,
}

type fixture struct {
	finder   *fakeFinder
	resolver *fakeResolver
	pauser   *recordingPauser
	store    *memory.BlobStore
	console  *bytes.Buffer
	runner   *Runner
}

func newFixture(t *testing.T, cfg Config, finder *fakeFinder, resolver *fakeResolver, pages map[string]string) *fixture {
	t.Helper()
	fetcher := siteFetcher{pages: pages}
	fx := &fixture{
		finder:   finder,
		resolver: resolver,
		pauser:   &recordingPauser{},
		store:    memory.NewBlobStore(),
		console:  &bytes.Buffer{},
	}
	if cfg.Tiler.ZoneCap == 0 {
		cfg.Tiler = geo.NewTiler(50000, "")
	}
	if cfg.TotalRadiusMeters == 0 {
		cfg.TotalRadiusMeters = 40000
	}
	if cfg.LocationLabel == "" {
		cfg.LocationLabel = "Testville"
	}
	cfg.Delays = testDelays
	runner, err := NewRunner(cfg, Deps{
		Finder:   finder,
		Resolver: resolver,
		Locator:  crawler.NewCareerPageLocator(fetcher, crawler.LocatorConfig{}, nil),
		Matcher:  crawler.NewKeywordClassifier(fetcher, nil),
		Store:    fx.store,
		Clock:    fixedClock{now: time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)},
		IDs:      &seqIDs{},
		Pauser:   fx.pauser,
		Console:  fx.console,
	})
	require.NoError(t, err)
	fx.runner = runner
	return fx
}

func fenceProfile() crawler.Profile {
	return crawler.Profile{
		Key:           "1",
		Name:          "Fence",
		PlaceSearches: []string{"fence company"},
		JobKeywords:   []string{"estimator"},
		OutputFile:    "results_fence.json",
	}
}

func TestRunEndToEndCareersOnly(t *testing.T) {
	t.Parallel()

	finder := &fakeFinder{results: func(string, geo.SearchZone) crawler.Outcome[[]crawler.Candidate] {
		return crawler.Succeeded([]crawler.Candidate{{ID: "abc", Name: "Acme Fence"}})
	}}
	resolver := &fakeResolver{sites: map[string]crawler.Outcome[crawler.SiteInfo]{
		"abc": crawler.Succeeded(crawler.SiteInfo{Website: "http://acme.test", Phone: "555-1111"}),
	}}
	fx := newFixture(t, Config{}, finder, resolver, map[string]string{
		"http://acme.test":         `<html><body><a href="/careers">Careers</a></body></html>`,
		"http://acme.test/careers": `<html><body><h1>Join us</h1><p>Fence installer wanted</p></body></html>`,
	})

	result, err := fx.runner.Run(context.Background(), fenceProfile())
	require.NoError(t, err)

	assert.Equal(t, crawler.Summary{Total: 1, WithWebsite: 1, KeywordMatches: 0, CareersOnly: 1, NoCareers: 0}, result.Summary)
	require.Len(t, result.CareersOnly, 1)
	got := result.CareersOnly[0]
	assert.Equal(t, "abc", got.ID)
	assert.Equal(t, "http://acme.test/careers", got.CareerURL)
	assert.Equal(t, "555-1111", got.Phone)
	assert.Empty(t, result.KeywordMatches)
	assert.Empty(t, result.NoCareers)
	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, "Testville", result.LocationLabel)
	assert.Len(t, result.Zones, 1)

	assert.Equal(t, 1, fx.pauser.count(testDelays.Search))
	assert.Equal(t, 1, fx.pauser.count(testDelays.Details))
	assert.Equal(t, 1, fx.pauser.count(testDelays.Crawl))
	assert.Equal(t, 0, fx.pauser.count(testDelays.NoCareers))

	body, contentType, ok := fx.store.Get("results_fence.json")
	require.True(t, ok)
	assert.Equal(t, "application/json", contentType)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, "Fence", doc["profile"])
	assert.Equal(t, "Testville", doc["location"])
	assert.Contains(t, doc, "run_date")
	assert.Equal(t, map[string]any{
		"total_companies":  1.0,
		"with_websites":    1.0,
		"keyword_matches":  0.0,
		"has_careers_page": 1.0,
		"no_careers_page":  0.0,
	}, doc["summary"])
	assert.Equal(t, []any{}, doc["keyword_matches"])

	assert.Contains(t, fx.console.String(), "PROFILE: Fence")
	assert.Contains(t, fx.console.String(), "Saved to memory://results_fence.json")
}

func TestRunBucketsAndFailureIsolation(t *testing.T) {
	t.Parallel()

	finder := &fakeFinder{results: func(term string, _ geo.SearchZone) crawler.Outcome[[]crawler.Candidate] {
		switch term {
		case "fence company":
			return crawler.Succeeded([]crawler.Candidate{
				{ID: "match", Name: "Match Co"},
				{ID: "careers", Name: "Careers Co"},
				{ID: "none", Name: "None Co"},
			})
		case "gate company":
			return crawler.Failed[[]crawler.Candidate](fmt.Errorf("search: %w", crawler.ErrRemoteAPI))
		default:
			return crawler.Succeeded([]crawler.Candidate{
				{ID: "nosite", Name: "No Site Co"},
				{ID: "broken", Name: "Broken Co"},
			})
		}
	}}
	resolver := &fakeResolver{sites: map[string]crawler.Outcome[crawler.SiteInfo]{
		"match":   crawler.Succeeded(crawler.SiteInfo{Website: "http://match.test"}),
		"careers": crawler.Succeeded(crawler.SiteInfo{Website: "http://careers.test"}),
		"none":    crawler.Succeeded(crawler.SiteInfo{Website: "http://none.test"}),
		"broken":  crawler.Failed[crawler.SiteInfo](crawler.TransportError("details", errors.New("timeout"))),
	}}
	pages := map[string]string{
		"http://match.test":           `<a href="/jobs">Jobs</a>`,
		"http://match.test/jobs":      `<p>Senior Estimator and Outside Sales</p>`,
		"http://careers.test":         `<p>Welcome</p>`,
		"http://careers.test/careers": strings.Repeat("careers page ", 60),
		"http://none.test":            `<a href="/about">About</a>`,
	}
	fx := newFixture(t, Config{}, finder, resolver, pages)

	profile := fenceProfile()
	profile.PlaceSearches = []string{"fence company", "gate company", "vinyl fence"}
	profile.JobKeywords = []string{"sales", "estimator", "installer"}

	result, err := fx.runner.Run(context.Background(), profile)
	require.NoError(t, err)

	assert.Equal(t, crawler.Summary{Total: 5, WithWebsite: 3, KeywordMatches: 1, CareersOnly: 1, NoCareers: 1}, result.Summary)
	require.Len(t, result.KeywordMatches, 1)
	assert.Equal(t, []string{"sales", "estimator"}, result.KeywordMatches[0].KeywordsFound)
	assert.Equal(t, "http://match.test/jobs", result.KeywordMatches[0].CareerURL)
	require.Len(t, result.CareersOnly, 1)
	assert.Equal(t, "http://careers.test/careers", result.CareersOnly[0].CareerURL)
	require.Len(t, result.NoCareers, 1)
	assert.Equal(t, "none", result.NoCareers[0].ID)

	assert.Equal(t, 3, fx.pauser.count(testDelays.Search), "failed searches still pause")
	assert.Equal(t, 5, fx.pauser.count(testDelays.Details))
	assert.Equal(t, 1, fx.pauser.count(testDelays.NoCareers))
	assert.Equal(t, 2, fx.pauser.count(testDelays.Crawl))
}

func TestRunDedupFirstOccurrenceWinsAcrossZones(t *testing.T) {
	t.Parallel()

	finder := &fakeFinder{results: func(term string, zone geo.SearchZone) crawler.Outcome[[]crawler.Candidate] {
		return crawler.Succeeded([]crawler.Candidate{
			{ID: "dup", Name: zone.Label + "/" + term},
			{ID: "only-" + zone.Label, Name: "zone local"},
		})
	}}
	resolver := &fakeResolver{}
	fx := newFixture(t, Config{
		LocationLabel:     "Town",
		TotalRadiusMeters: 80000,
		Tiler:             geo.NewTiler(50000, ""),
	}, finder, resolver, nil)

	profile := fenceProfile()
	profile.PlaceSearches = []string{"fence company", "gate company"}

	result, err := fx.runner.Run(context.Background(), profile)
	require.NoError(t, err)

	assert.Len(t, fx.runner.Zones(), 5)
	assert.Equal(t, 6, result.Summary.Total, "one shared place plus one per zone")
	assert.Equal(t, 0, result.Summary.WithWebsite)

	require.Len(t, fx.finder.calls, 10)
	assert.Equal(t, searchCall{zone: "Town (center)", term: "fence company"}, fx.finder.calls[0])
	assert.Equal(t, searchCall{zone: "Town (center)", term: "gate company"}, fx.finder.calls[1])
	assert.Equal(t, searchCall{zone: "Town (north)", term: "fence company"}, fx.finder.calls[2])

	assert.Equal(t, "dup", resolver.calls[0])
	assert.Len(t, resolver.calls, 6, "one details call per unique place")
}

func TestRunWithoutWebsitesExcludesEverything(t *testing.T) {
	t.Parallel()

	finder := &fakeFinder{results: func(string, geo.SearchZone) crawler.Outcome[[]crawler.Candidate] {
		return crawler.Succeeded([]crawler.Candidate{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}})
	}}
	fx := newFixture(t, Config{}, finder, &fakeResolver{}, nil)

	result, err := fx.runner.Run(context.Background(), fenceProfile())
	require.NoError(t, err)
	assert.Equal(t, crawler.Summary{Total: 2}, result.Summary)
	assert.Empty(t, result.KeywordMatches)
	assert.Empty(t, result.CareersOnly)
	assert.Empty(t, result.NoCareers)
}

func TestRunConcurrentClassificationMatchesSequential(t *testing.T) {
	t.Parallel()

	candidates := make([]crawler.Candidate, 0, 12)
	sites := map[string]crawler.Outcome[crawler.SiteInfo]{}
	pages := map[string]string{}
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("c%02d", i)
		site := fmt.Sprintf("http://%s.test", id)
		candidates = append(candidates, crawler.Candidate{ID: id, Name: id})
		sites[id] = crawler.Succeeded(crawler.SiteInfo{Website: site})
		switch i % 3 {
		case 0:
			pages[site] = `<a href="/careers">Careers</a>`
			pages[site+"/careers"] = `<p>Estimator</p>`
		case 1:
			pages[site] = `<a href="/jobs">Jobs</a>`
			pages[site+"/jobs"] = `<p>Driver</p>`
		}
	}
	finder := &fakeFinder{results: func(string, geo.SearchZone) crawler.Outcome[[]crawler.Candidate] {
		return crawler.Succeeded(candidates)
	}}

	var summaries []crawler.Summary
	for _, concurrency := range []int{1, 4} {
		fx := newFixture(t, Config{Concurrency: concurrency}, finder, &fakeResolver{sites: sites}, pages)
		result, err := fx.runner.Run(context.Background(), fenceProfile())
		require.NoError(t, err)
		summaries = append(summaries, result.Summary)
		assert.Equal(t, "c00", result.KeywordMatches[0].ID, "bucket order follows discovery order")
	}
	assert.Equal(t, crawler.Summary{Total: 12, WithWebsite: 12, KeywordMatches: 4, CareersOnly: 4, NoCareers: 4}, summaries[0])
	assert.Equal(t, summaries[0], summaries[1])
}

func TestRunCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	finder := &fakeFinder{results: func(string, geo.SearchZone) crawler.Outcome[[]crawler.Candidate] {
		cancel()
		return crawler.Succeeded([]crawler.Candidate{{ID: "a"}})
	}}
	fx := newFixture(t, Config{}, finder, &fakeResolver{}, nil)

	profile := fenceProfile()
	profile.PlaceSearches = []string{"one", "two"}
	_, err := fx.runner.Run(ctx, profile)
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, finder.calls, 1)
	assert.Empty(t, fx.store.Paths())
}

type failingStore struct{}

func (failingStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("disk full")
}

func TestRunAllContinuesAfterPersistFailure(t *testing.T) {
	t.Parallel()

	finder := &fakeFinder{results: func(string, geo.SearchZone) crawler.Outcome[[]crawler.Candidate] {
		return crawler.Succeeded([]crawler.Candidate{{ID: "a", Name: "A"}})
	}}
	runner, err := NewRunner(Config{
		LocationLabel:     "Town",
		TotalRadiusMeters: 1000,
		Tiler:             geo.NewTiler(50000, ""),
	}, Deps{
		Finder:   finder,
		Resolver: &fakeResolver{},
		Locator:  crawler.NewCareerPageLocator(siteFetcher{}, crawler.LocatorConfig{}, nil),
		Matcher:  crawler.NewKeywordClassifier(siteFetcher{}, nil),
		Store:    failingStore{},
		Clock:    fixedClock{now: time.Now()},
		IDs:      &seqIDs{},
		Pauser:   &recordingPauser{},
	})
	require.NoError(t, err)

	second := fenceProfile()
	second.Key, second.Name, second.OutputFile = "2", "Gates", "results_gates.json"
	results, err := runner.RunAll(context.Background(), []crawler.Profile{fenceProfile(), second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.Len(t, results, 2)
	assert.Equal(t, "Fence", results[0].ProfileName)
	assert.Equal(t, "Gates", results[1].ProfileName)
	assert.NotEqual(t, results[0].RunID, results[1].RunID)
}

func TestNewRunnerRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := NewRunner(Config{}, Deps{})
	require.Error(t, err)
}
