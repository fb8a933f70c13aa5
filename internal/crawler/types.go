// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/http"
	"time"

	"github.com/JakeFAU/local-job-scraper/internal/geo"
)

// UnknownName is used when the places API omits a display name.
const UnknownName = "Unknown"

// Candidate is a business discovered via search and progressively enriched
// through the pipeline. Identity is ID.
type Candidate struct {
	ID            string   `json:"place_id"`
	Name          string   `json:"name"`
	Address       string   `json:"address"`
	Website       string   `json:"website,omitempty"`
	Phone         string   `json:"phone,omitempty"`
	CareerURL     string   `json:"career_url,omitempty"`
	KeywordsFound []string `json:"keywords_found,omitempty"`
}

// HasWebsite reports whether the candidate resolved to a public website.
func (c Candidate) HasWebsite() bool {
	return c.Website != ""
}

// Profile bundles search terms and job keywords for one job-hunting persona.
type Profile struct {
	Key           string   `json:"key" yaml:"-"`
	Name          string   `json:"name" yaml:"name"`
	PlaceSearches []string `json:"place_searches" yaml:"place_searches"`
	JobKeywords   []string `json:"job_keywords" yaml:"job_keywords"`
	OutputFile    string   `json:"output_file" yaml:"output_file"`
}

// SiteInfo is what a details lookup contributes to a candidate.
type SiteInfo struct {
	Website string
	Phone   string
}

// CareerPage is a located careers/jobs page.
type CareerPage struct {
	URL string
	// Via records which heuristic tier found the page ("link" or "probe").
	Via string
}

// Career page discovery tiers.
const (
	ViaLinkScan = "link"
	ViaProbe    = "probe"
)

// Summary holds the per-run counters.
type Summary struct {
	Total          int `json:"total_companies"`
	WithWebsite    int `json:"with_websites"`
	KeywordMatches int `json:"keyword_matches"`
	CareersOnly    int `json:"has_careers_page"`
	NoCareers      int `json:"no_careers_page"`
}

// RunResult is the terminal artifact of one profile run.
type RunResult struct {
	RunID          string           `json:"run_id"`
	ProfileKey     string           `json:"profile_key"`
	ProfileName    string           `json:"profile"`
	LocationLabel  string           `json:"location"`
	RadiusMeters   float64          `json:"radius_meters"`
	Zones          []geo.SearchZone `json:"zones"`
	RunDate        time.Time        `json:"run_date"`
	Summary        Summary          `json:"summary"`
	KeywordMatches []Candidate      `json:"keyword_matches"`
	CareersOnly    []Candidate      `json:"has_careers_page"`
	NoCareers      []Candidate      `json:"no_careers_page"`
}

// Page is the result returned by a Fetcher implementation.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// ContentLength returns the body size in bytes.
func (p Page) ContentLength() int {
	return len(p.Body)
}

// BaseURL returns the URL relative links on the page resolve against.
func (p Page) BaseURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}
