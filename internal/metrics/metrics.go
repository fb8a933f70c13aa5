// Package metrics exposes Prometheus collectors for the job scout.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	placesRequestsTotal           *prometheus.CounterVec
	siteFetchesTotal              *prometheus.CounterVec
	siteBytesTotal                *prometheus.CounterVec
	candidatesTotal               *prometheus.CounterVec
	runsTotal                     *prometheus.CounterVec
	runDurationSeconds            *prometheus.HistogramVec
	crawlerRateLimitDelaysSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		placesRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_places_requests_total",
				Help: "Total number of places API calls, labeled by kind (search, details) and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		siteFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_site_fetches_total",
				Help: "Total number of business website fetches, labeled by stage and outcome.",
			},
			[]string{"stage", "outcome"},
		)

		siteBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_site_bytes_total",
				Help: "Total number of bytes fetched from business websites, labeled by stage.",
			},
			[]string{"stage"},
		)

		candidatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_candidates_total",
				Help: "Candidates placed into a terminal bucket, labeled by profile and bucket.",
			},
			[]string{"profile", "bucket"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_runs_total",
				Help: "Total number of profile runs, labeled by status.",
			},
			[]string{"status"},
		)

		runDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobscout_run_duration_seconds",
				Help:    "Histogram of profile run durations.",
				Buckets: []float64{10, 30, 60, 300, 900, 1800, 3600},
			},
			[]string{"profile"},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobscout_rate_limit_delays_seconds",
				Help:    "Histogram of per-host rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePlacesRequest counts one places API call.
func ObservePlacesRequest(kind, outcome string) {
	Init()
	placesRequestsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveSiteFetch counts one website fetch and the bytes it returned.
func ObserveSiteFetch(stage, outcome string, bytesFetched int) {
	Init()
	siteFetchesTotal.WithLabelValues(stage, outcome).Inc()
	if bytesFetched > 0 {
		siteBytesTotal.WithLabelValues(stage).Add(float64(bytesFetched))
	}
}

// ObserveCandidate counts one candidate placed into bucket.
func ObserveCandidate(profile, bucket string) {
	Init()
	candidatesTotal.WithLabelValues(profile, bucket).Inc()
}

// ObserveRun records a finished profile run.
func ObserveRun(profile, status string, duration time.Duration) {
	Init()
	runsTotal.WithLabelValues(status).Inc()
	runDurationSeconds.WithLabelValues(profile).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	crawlerRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
