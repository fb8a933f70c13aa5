package crawler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mapFetcher serves canned pages; unknown URLs fail with a transport error.
type mapFetcher struct {
	mu    sync.Mutex
	pages map[string]Page
	calls []string
}

func (f *mapFetcher) Fetch(_ context.Context, rawURL string) (Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)
	page, ok := f.pages[rawURL]
	if !ok {
		return Page{}, TransportError("fetch "+rawURL, errors.New("connection refused"))
	}
	if page.URL == "" {
		page.URL = rawURL
	}
	return page, nil
}

func htmlPage(status int, body string) Page {
	return Page{StatusCode: status, Body: []byte(body)}
}

func TestLocateLinkScanFirstMatchInDocumentOrder(t *testing.T) {
	t.Parallel()

	fetcher := &mapFetcher{pages: map[string]Page{
		"http://acme.test": htmlPage(http.StatusOK, `<html><body>
			<a href="/about">About</a>
			<a href="/Join-Our-Team">Team</a>
			<a href="/careers">Careers</a>
		</body></html>`),
	}}
	locator := NewCareerPageLocator(fetcher, LocatorConfig{}, zap.NewNop())

	out := locator.Locate(context.Background(), "http://acme.test")
	require.True(t, out.OK())
	assert.Equal(t, "http://acme.test/Join-Our-Team", out.Value.URL)
	assert.Equal(t, ViaLinkScan, out.Value.Via)
	assert.Equal(t, []string{"http://acme.test"}, fetcher.calls, "link hit must not probe")
}

func TestLocateLinkScanUsesFinalURL(t *testing.T) {
	t.Parallel()

	home := htmlPage(http.StatusOK, `<a href="jobs.html">Work here</a>`)
	home.FinalURL = "https://www.acme.test/en/"
	fetcher := &mapFetcher{pages: map[string]Page{"http://acme.test": home}}
	locator := NewCareerPageLocator(fetcher, LocatorConfig{}, nil)

	out := locator.Locate(context.Background(), "http://acme.test")
	require.True(t, out.OK())
	assert.Equal(t, "https://www.acme.test/en/jobs.html", out.Value.URL)
}

func TestLocateSkipsNonHTTPLinks(t *testing.T) {
	t.Parallel()

	fetcher := &mapFetcher{pages: map[string]Page{
		"http://acme.test": htmlPage(http.StatusOK, `
			<a href="mailto:jobs@acme.test">Email us</a>
			<a href="https://acme.applytojob.com/">Openings</a>`),
	}}
	locator := NewCareerPageLocator(fetcher, LocatorConfig{}, nil)

	out := locator.Locate(context.Background(), "http://acme.test")
	require.True(t, out.OK())
	assert.Equal(t, "https://acme.applytojob.com/", out.Value.URL)
}

func TestLocateFallsBackToProbe(t *testing.T) {
	t.Parallel()

	big := strings.Repeat("x", 800)
	fetcher := &mapFetcher{pages: map[string]Page{
		"http://acme.test/home": htmlPage(http.StatusOK, `<a href="/about">About</a>`),
		"http://acme.test/careers": htmlPage(http.StatusNotFound, big),
		"http://acme.test/jobs":    htmlPage(http.StatusOK, big),
	}}
	locator := NewCareerPageLocator(fetcher, LocatorConfig{}, nil)

	out := locator.Locate(context.Background(), "http://acme.test/home")
	require.True(t, out.OK())
	assert.Equal(t, "http://acme.test/jobs", out.Value.URL)
	assert.Equal(t, ViaProbe, out.Value.Via)
	assert.Equal(t, []string{
		"http://acme.test/home",
		"http://acme.test/careers",
		"http://acme.test/careers/",
		"http://acme.test/jobs",
	}, fetcher.calls)
}

func TestLocateHomepageFailureStillProbes(t *testing.T) {
	t.Parallel()

	fetcher := &mapFetcher{pages: map[string]Page{
		"https://acme.test/employment": htmlPage(http.StatusOK, strings.Repeat("y", 501)),
	}}
	locator := NewCareerPageLocator(fetcher, LocatorConfig{
		CareerPaths: []string{"/careers", "/employment"},
	}, nil)

	out := locator.Locate(context.Background(), "https://acme.test")
	require.True(t, out.OK())
	assert.Equal(t, "https://acme.test/employment", out.Value.URL)
}

func TestLocateProbeThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		size   int
		want   bool
	}{
		{name: "499 bytes rejected", status: http.StatusOK, size: 499, want: false},
		{name: "500 bytes rejected", status: http.StatusOK, size: 500, want: false},
		{name: "501 bytes accepted", status: http.StatusOK, size: 501, want: true},
		{name: "non-200 rejected", status: http.StatusCreated, size: 2000, want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fetcher := &mapFetcher{pages: map[string]Page{
				"http://acme.test/careers": htmlPage(tt.status, strings.Repeat("z", tt.size)),
			}}
			locator := NewCareerPageLocator(fetcher, LocatorConfig{CareerPaths: []string{"/careers"}}, nil)
			out := locator.Locate(context.Background(), "http://acme.test")
			assert.Equal(t, tt.want, out.OK())
			if !tt.want {
				assert.Equal(t, FaultNotFound, out.Fault)
			}
		})
	}
}

func TestLocateNothingFound(t *testing.T) {
	t.Parallel()

	fetcher := &mapFetcher{pages: map[string]Page{
		"http://acme.test": htmlPage(http.StatusOK, `<a href="/contact">Contact</a>`),
	}}
	locator := NewCareerPageLocator(fetcher, LocatorConfig{}, nil)

	out := locator.Locate(context.Background(), "http://acme.test")
	require.False(t, out.OK())
	assert.Equal(t, FaultNotFound, out.Fault)
	assert.ErrorIs(t, out.Err, ErrNotFound)
	assert.Len(t, fetcher.calls, 1+len(DefaultCareerPaths))
}

func TestLocateCustomHints(t *testing.T) {
	t.Parallel()

	fetcher := &mapFetcher{pages: map[string]Page{
		"http://acme.test": htmlPage(http.StatusOK, `<a href="/careers">Careers</a><a href="/stellen">Stellen</a>`),
	}}
	locator := NewCareerPageLocator(fetcher, LocatorConfig{LinkHints: []string{" STELLEN "}}, nil)

	out := locator.Locate(context.Background(), "http://acme.test")
	require.True(t, out.OK())
	assert.Equal(t, "http://acme.test/stellen", out.Value.URL)
}
