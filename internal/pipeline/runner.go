// Package pipeline runs a profile through discovery, enrichment, and
// classification, and assembles the run result.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/local-job-scraper/internal/crawler"
	"github.com/JakeFAU/local-job-scraper/internal/geo"
	"github.com/JakeFAU/local-job-scraper/internal/metrics"
	"github.com/JakeFAU/local-job-scraper/internal/report"
)

// Delays are the fixed pauses applied after each remote call.
type Delays struct {
	Search    time.Duration
	Details   time.Duration
	NoCareers time.Duration
	Crawl     time.Duration
}

// Config is the static run configuration shared by every profile.
type Config struct {
	LocationLabel     string
	Center            geo.GeoPoint
	TotalRadiusMeters float64
	Tiler             geo.Tiler
	Delays            Delays
	// Concurrency bounds parallel classification; 1 keeps the run sequential.
	Concurrency int
}

// Deps are the collaborators a Runner drives.
type Deps struct {
	Finder   crawler.PlaceFinder
	Resolver crawler.SiteResolver
	Locator  crawler.CareerLocator
	Matcher  crawler.KeywordMatcher
	// Store persists results; nil skips persistence.
	Store  crawler.BlobStore
	Clock  crawler.Clock
	IDs    crawler.IDGenerator
	Pauser crawler.Pauser
	Logger *zap.Logger
	// Console receives the human-readable run log; nil discards it.
	Console io.Writer
}

// Runner executes profile runs. A Runner holds no per-run state and may be
// reused for any number of sequential or concurrent runs.
type Runner struct {
	cfg   Config
	deps  Deps
	zones []geo.SearchZone

	consoleMu sync.Mutex
}

// NewRunner validates deps and precomputes the search zones.
func NewRunner(cfg Config, deps Deps) (*Runner, error) {
	switch {
	case deps.Finder == nil:
		return nil, errors.New("pipeline: place finder is required")
	case deps.Resolver == nil:
		return nil, errors.New("pipeline: site resolver is required")
	case deps.Locator == nil:
		return nil, errors.New("pipeline: career locator is required")
	case deps.Matcher == nil:
		return nil, errors.New("pipeline: keyword matcher is required")
	case deps.Clock == nil:
		return nil, errors.New("pipeline: clock is required")
	case deps.IDs == nil:
		return nil, errors.New("pipeline: id generator is required")
	}
	if deps.Pauser == nil {
		deps.Pauser = crawler.TimerPauser{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Console == nil {
		deps.Console = io.Discard
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Tiler.Label == "" {
		cfg.Tiler.Label = cfg.LocationLabel
	}
	return &Runner{
		cfg:   cfg,
		deps:  deps,
		zones: cfg.Tiler.Tile(cfg.Center, cfg.TotalRadiusMeters),
	}, nil
}

// Zones returns a copy of the search zones, in tiling order.
func (r *Runner) Zones() []geo.SearchZone {
	return append([]geo.SearchZone(nil), r.zones...)
}

// Run executes one profile to completion. Unit failures only affect the
// candidate involved; Run fails on cancellation or when persisting the
// result fails, in which case the assembled result is still returned.
func (r *Runner) Run(ctx context.Context, profile crawler.Profile) (crawler.RunResult, error) {
	start := r.deps.Clock.Now()
	runID, err := r.deps.IDs.NewID()
	if err != nil {
		return crawler.RunResult{}, fmt.Errorf("run %s: %w", profile.Key, err)
	}
	logger := r.deps.Logger.With(zap.String("run_id", runID), zap.String("profile", profile.Key))
	st := &runState{logger: logger}

	r.printHeader(profile)
	result, err := r.execute(ctx, st, profile)
	status := "completed"
	if err != nil {
		status = "canceled"
		metrics.ObserveRun(profile.Key, status, time.Since(start))
		return crawler.RunResult{}, fmt.Errorf("run %s: %w", profile.Key, err)
	}
	result.RunID = runID
	result.RunDate = start

	r.report(result)
	if err := r.persist(ctx, profile, result, logger); err != nil {
		status = "persist_failed"
		metrics.ObserveRun(profile.Key, status, time.Since(start))
		return result, err
	}
	metrics.ObserveRun(profile.Key, status, time.Since(start))
	logger.Info("run complete",
		zap.Int("total", result.Summary.Total),
		zap.Int("keyword_matches", result.Summary.KeywordMatches),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// RunAll runs profiles one after another. A profile whose result could not
// be persisted does not stop the others; cancellation does.
func (r *Runner) RunAll(ctx context.Context, profiles []crawler.Profile) ([]crawler.RunResult, error) {
	results := make([]crawler.RunResult, 0, len(profiles))
	var errs []error
	for _, p := range profiles {
		res, err := r.Run(ctx, p)
		if err != nil {
			errs = append(errs, err)
			if ctx.Err() != nil {
				return results, errors.Join(errs...)
			}
		}
		if res.RunID != "" {
			results = append(results, res)
		}
	}
	return results, errors.Join(errs...)
}

func (r *Runner) execute(ctx context.Context, st *runState, profile crawler.Profile) (crawler.RunResult, error) {
	if err := st.advance(StateDiscovering); err != nil {
		return crawler.RunResult{}, err
	}
	working, err := r.discover(ctx, st, profile)
	if err != nil {
		return crawler.RunResult{}, err
	}

	if err := st.advance(StateEnriching); err != nil {
		return crawler.RunResult{}, err
	}
	candidates, withSite, err := r.enrich(ctx, st, working)
	if err != nil {
		return crawler.RunResult{}, err
	}
	r.printDiscovery(len(candidates), len(withSite))

	if err := st.advance(StateClassifying); err != nil {
		return crawler.RunResult{}, err
	}
	if err := r.classifyAll(ctx, st, profile, candidates, withSite); err != nil {
		return crawler.RunResult{}, err
	}

	if err := st.advance(StateDone); err != nil {
		return crawler.RunResult{}, err
	}
	summary, buckets := crawler.Summarize(candidates)
	for bucket, list := range buckets {
		for range list {
			metrics.ObserveCandidate(profile.Key, string(bucket))
		}
	}
	return crawler.RunResult{
		ProfileKey:     profile.Key,
		ProfileName:    profile.Name,
		LocationLabel:  r.cfg.LocationLabel,
		RadiusMeters:   r.cfg.TotalRadiusMeters,
		Zones:          r.Zones(),
		Summary:        summary,
		KeywordMatches: buckets[crawler.BucketKeywordMatch],
		CareersOnly:    buckets[crawler.BucketCareersOnly],
		NoCareers:      buckets[crawler.BucketNoCareers],
	}, nil
}

// discover queries every zone and term, zone-major, and keeps the first
// occurrence of each place.
func (r *Runner) discover(ctx context.Context, st *runState, profile crawler.Profile) (*crawler.DedupStore, error) {
	working := crawler.NewDedupStore()
	for _, zone := range r.zones {
		r.say("\n  Zone: %s\n", zone.Label)
		for _, term := range profile.PlaceSearches {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out := r.deps.Finder.Search(ctx, term, zone)
			if !out.OK() {
				st.logger.Warn("search failed; continuing",
					zap.String("term", term),
					zap.String("zone", zone.Label),
					zap.String("fault", string(out.Fault)),
					zap.Error(out.Err))
			}
			added := 0
			for _, c := range out.Value {
				if working.InsertIfAbsent(c) {
					added++
				}
			}
			if len(out.Value) > 0 {
				r.say("     '%s' -> %d results, %d new\n", term, len(out.Value), added)
			}
			st.logger.Debug("zone search",
				zap.String("zone", zone.Label),
				zap.String("term", term),
				zap.Int("results", len(out.Value)),
				zap.Int("new", added))
			r.deps.Pauser.Pause(ctx, r.cfg.Delays.Search)
		}
	}
	st.logger.Info("discovery complete", zap.Int("unique", working.Len()))
	return working, nil
}

// enrich resolves websites. It returns every candidate, in discovery order,
// plus the indexes of those with a website.
func (r *Runner) enrich(
	ctx context.Context,
	st *runState,
	working *crawler.DedupStore,
) ([]crawler.Candidate, []int, error) {
	candidates := working.Candidates()
	withSite := make([]int, 0, len(candidates))
	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		c := &candidates[i]
		out := r.deps.Resolver.Resolve(ctx, c.ID)
		switch {
		case !out.OK():
			st.logger.Warn("details lookup failed; treating as no website",
				zap.String("place_id", c.ID),
				zap.String("fault", string(out.Fault)),
				zap.Error(out.Err))
		case out.Value.Website != "":
			c.Website = out.Value.Website
			c.Phone = out.Value.Phone
			withSite = append(withSite, i)
		}
		r.deps.Pauser.Pause(ctx, r.cfg.Delays.Details)
	}
	st.logger.Info("enrichment complete", zap.Int("with_website", len(withSite)))
	return candidates, withSite, nil
}

// classifyAll locates and scans career pages. Each worker writes only its
// own candidate slot.
func (r *Runner) classifyAll(
	ctx context.Context,
	st *runState,
	profile crawler.Profile,
	candidates []crawler.Candidate,
	withSite []int,
) error {
	if r.cfg.Concurrency == 1 {
		for _, i := range withSite {
			if err := ctx.Err(); err != nil {
				return err
			}
			r.classifyOne(ctx, st, profile, &candidates[i])
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for _, i := range withSite {
		c := &candidates[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.classifyOne(gctx, st, profile, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (r *Runner) classifyOne(ctx context.Context, st *runState, profile crawler.Profile, c *crawler.Candidate) {
	loc := r.deps.Locator.Locate(ctx, c.Website)
	if !loc.OK() {
		if loc.Fault != crawler.FaultNotFound {
			st.logger.Warn("career page lookup failed",
				zap.String("url", c.Website),
				zap.String("fault", string(loc.Fault)),
				zap.Error(loc.Err))
		}
		r.say("  Checking: %s\n    No career page\n", c.Name)
		r.deps.Pauser.Pause(ctx, r.cfg.Delays.NoCareers)
		return
	}
	c.CareerURL = loc.Value.URL

	if len(profile.JobKeywords) > 0 {
		hits := r.deps.Matcher.Match(ctx, c.CareerURL, profile.JobKeywords)
		if hits.OK() {
			c.KeywordsFound = hits.Value
		} else {
			st.logger.Warn("keyword scan failed; treating as no match",
				zap.String("url", c.CareerURL),
				zap.Error(hits.Err))
		}
	}

	if len(c.KeywordsFound) > 0 {
		r.say("  Checking: %s\n    MATCH: %s\n       -> %s\n", c.Name, strings.Join(c.KeywordsFound, ", "), c.CareerURL)
	} else {
		r.say("  Checking: %s\n    Has careers page (no keyword match)\n", c.Name)
	}
	r.deps.Pauser.Pause(ctx, r.cfg.Delays.Crawl)
}

func (r *Runner) persist(ctx context.Context, profile crawler.Profile, result crawler.RunResult, logger *zap.Logger) error {
	if r.deps.Store == nil {
		return nil
	}
	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result for %s: %w", profile.Key, err)
	}
	uri, err := r.deps.Store.PutObject(ctx, profile.OutputFile, "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Error("persist result failed", zap.String("path", profile.OutputFile), zap.Error(err))
		return fmt.Errorf("persist result for %s: %w", profile.Key, err)
	}
	logger.Info("result saved", zap.String("uri", uri))
	r.say("\n  Saved to %s\n", uri)
	return nil
}

func (r *Runner) printHeader(profile crawler.Profile) {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	_ = report.WriteHeader(r.deps.Console, report.Header{
		ProfileName:   profile.Name,
		LocationLabel: r.cfg.LocationLabel,
		RadiusMeters:  r.cfg.TotalRadiusMeters,
		Zones:         len(r.zones),
	})
}

func (r *Runner) printDiscovery(unique, withWebsite int) {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	_ = report.WriteDiscovery(r.deps.Console, unique, withWebsite)
}

func (r *Runner) report(result crawler.RunResult) {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	if err := report.WriteProfile(r.deps.Console, result); err != nil {
		r.deps.Logger.Warn("console report failed", zap.Error(err))
	}
}

func (r *Runner) say(format string, args ...any) {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	_, _ = fmt.Fprintf(r.deps.Console, format, args...)
}
