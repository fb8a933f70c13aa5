// Package report renders run results for the terminal.
package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/JakeFAU/local-job-scraper/internal/crawler"
)

const ruleWidth = 65

// MetersPerMile is the rounding divisor used for the mile figure.
const MetersPerMile = 1609

var (
	heavyRule = strings.Repeat("═", ruleWidth)
	lightRule = strings.Repeat("─", ruleWidth-5)
)

// Header describes a run before it starts.
type Header struct {
	ProfileName   string
	LocationLabel string
	RadiusMeters  float64
	Zones         int
}

// Miles converts meters to whole miles the way the header prints them.
func Miles(meters float64) int {
	return int(math.Round(meters / MetersPerMile))
}

// WriteHeader prints the profile banner with radius in km and miles.
func WriteHeader(w io.Writer, h Header) error {
	ew := &errWriter{w: w}
	ew.printf("\n%s\n", heavyRule)
	ew.printf("  PROFILE: %s\n", h.ProfileName)
	ew.printf("  Location: %s | Radius: %dkm (%dmi)\n",
		h.LocationLabel, int(h.RadiusMeters)/1000, Miles(h.RadiusMeters))
	ew.printf("  Search zones: %d\n", h.Zones)
	ew.printf("%s\n", heavyRule)
	return ew.err
}

// WriteProfile prints the bucket details of one finished run.
func WriteProfile(w io.Writer, r crawler.RunResult) error {
	ew := &errWriter{w: w}
	ew.printf("\n%s\n  RESULTS: %s\n%s\n", heavyRule, r.ProfileName, heavyRule)

	if len(r.KeywordMatches) == 0 {
		ew.printf("\n  No keyword matches found at this time.\n")
	} else {
		ew.printf("\n  JOB KEYWORD MATCHES (%d)\n\n", len(r.KeywordMatches))
		for _, c := range r.KeywordMatches {
			ew.printf("  Company  : %s\n", c.Name)
			ew.printf("  Address  : %s\n", orNA(c.Address))
			ew.printf("  Phone    : %s\n", orNA(c.Phone))
			ew.printf("  Website  : %s\n", c.Website)
			ew.printf("  Jobs URL : %s\n", c.CareerURL)
			ew.printf("  Keywords : %s\n\n", strings.Join(c.KeywordsFound, ", "))
		}
	}

	if len(r.CareersOnly) > 0 {
		ew.printf("\n  HAS CAREER PAGE, worth bookmarking (%d)\n\n", len(r.CareersOnly))
		tw := tabwriter.NewWriter(ew, 0, 0, 2, ' ', 0)
		for _, c := range r.CareersOnly {
			fmt.Fprintf(tw, "  %s\t%s\n", c.Name, c.CareerURL)
		}
		ew.flush(tw)
	}

	ew.printf("\n  No career page: %d companies\n", len(r.NoCareers))
	ew.printf("     (Still worth a cold call or visit)\n\n")
	if len(r.NoCareers) > 0 {
		tw := tabwriter.NewWriter(ew, 0, 0, 2, ' ', 0)
		for _, c := range r.NoCareers {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", c.Name, c.Phone, c.Website)
		}
		ew.flush(tw)
	}
	return ew.err
}

// WriteDiscovery prints the phase boundary lines of a run.
func WriteDiscovery(w io.Writer, unique, withWebsite int) error {
	ew := &errWriter{w: w}
	ew.printf("\n  %d unique companies found, %d have websites listed.\n", unique, withWebsite)
	ew.printf("  %s\n", lightRule)
	return ew.err
}

// WriteCombined prints the per-profile counts after running every profile,
// followed by the total keyword matches.
func WriteCombined(w io.Writer, results []crawler.RunResult) error {
	ew := &errWriter{w: w}
	ew.printf("\n%s\n  ALL PROFILES COMPLETE: COMBINED SUMMARY\n%s\n\n", heavyRule, heavyRule)
	total := 0
	for _, r := range results {
		total += r.Summary.KeywordMatches
		ew.printf("  %s\n", r.ProfileName)
		ew.printf("    Companies found : %d\n", r.Summary.Total)
		ew.printf("    With websites   : %d\n", r.Summary.WithWebsite)
		ew.printf("    Keyword matches : %d\n", r.Summary.KeywordMatches)
		ew.printf("    Career pages    : %d\n\n", r.Summary.CareersOnly)
	}
	ew.printf("  Total keyword matches across all profiles: %d\n\n", total)
	return ew.err
}

// MenuEntry is one selectable line of the interactive menu.
type MenuEntry struct {
	Key  string
	Name string
}

// WriteMenu prints the interactive profile menu. The run-all entry is keyed
// by allKey.
func WriteMenu(w io.Writer, locationLabel string, radiusMeters float64, entries []MenuEntry, allKey string) error {
	ew := &errWriter{w: w}
	ew.printf("\n%s\n  LOCAL JOB SCRAPER\n", heavyRule)
	ew.printf("  Location: %s | ~%d mile radius\n%s\n\n", locationLabel, Miles(radiusMeters), heavyRule)
	ew.printf("  Select a profile to run:\n\n")
	for _, e := range entries {
		ew.printf("  [%s] %s\n", e.Key, e.Name)
	}
	ew.printf("\n  [%s] Run ALL profiles\n\n  Enter choice: ", allKey)
	return ew.err
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// errWriter keeps the first write error so callers check once.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func (e *errWriter) flush(tw *tabwriter.Writer) {
	if err := tw.Flush(); err != nil && e.err == nil {
		e.err = err
	}
}
