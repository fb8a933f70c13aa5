// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/local-job-scraper/internal/clock/system"
	"github.com/JakeFAU/local-job-scraper/internal/config"
	"github.com/JakeFAU/local-job-scraper/internal/crawler"
	collyfetcher "github.com/JakeFAU/local-job-scraper/internal/fetcher/colly"
	"github.com/JakeFAU/local-job-scraper/internal/geo"
	"github.com/JakeFAU/local-job-scraper/internal/id/uuid"
	"github.com/JakeFAU/local-job-scraper/internal/logging"
	"github.com/JakeFAU/local-job-scraper/internal/metrics"
	"github.com/JakeFAU/local-job-scraper/internal/pipeline"
	"github.com/JakeFAU/local-job-scraper/internal/places"
	"github.com/JakeFAU/local-job-scraper/internal/policy/ratelimit"
	"github.com/JakeFAU/local-job-scraper/internal/storage/gcs"
	"github.com/JakeFAU/local-job-scraper/internal/storage/local"
	"github.com/JakeFAU/local-job-scraper/internal/storage/memory"
)

// Storage provider names accepted by storage.provider.
const (
	ProviderLocal  = "local"
	ProviderGCS    = "gcs"
	ProviderMemory = "memory"
	ProviderNone   = "none"
)

const shutdownTimeout = 5 * time.Second

// App holds the shared services for one CLI invocation.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	store  crawler.BlobStore
	runner *pipeline.Runner

	metricsServer *http.Server
	metricsAddr   string
	closers       []func() error
}

// New wires every service from cfg. Console receives the human-readable run
// log; nil discards it. New fails fast if any service cannot be built.
func New(ctx context.Context, cfg config.Config, console io.Writer) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	metrics.Init()

	a.store, err = a.buildStore(ctx)
	if err != nil {
		return nil, err
	}

	retry := crawler.NewExponentialRetryPolicy(
		cfg.HTTP.MaxRetries,
		time.Duration(cfg.HTTP.BackoffInitialMs)*time.Millisecond,
		time.Duration(cfg.HTTP.BackoffMaxMs)*time.Millisecond,
	)
	placesClient, err := places.New(places.Config{
		APIKey:           cfg.Places.APIKey,
		BaseURL:          cfg.Places.BaseURL,
		ZoneRadiusMeters: cfg.Places.ZoneRadiusMeters,
		MaxResults:       cfg.Places.MaxResults,
		Timeout:          cfg.APITimeout(),
	}, retry, logger.Named("places"))
	if err != nil {
		return nil, fmt.Errorf("init places client: %w", err)
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Crawler.UserAgent,
		RespectRobots: cfg.Crawler.RespectRobots,
		Timeout:       cfg.PageTimeout(),
		Limiter: ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.Crawler.RateLimitPerHost,
			DefaultBurst: 1,
		}),
	})
	locator := crawler.NewCareerPageLocator(fetcher, crawler.LocatorConfig{
		LinkHints:    cfg.Crawler.LinkHints,
		CareerPaths:  cfg.Crawler.CareerPaths,
		MinPageBytes: cfg.Crawler.MinCareerPageBytes,
	}, logger.Named("locator"))

	tiler := geo.NewTiler(cfg.Places.ZoneRadiusMeters, cfg.Location.Label)
	if cfg.Tiling.CardinalFactor > 0 {
		tiler.CardinalFactor = cfg.Tiling.CardinalFactor
	}
	if cfg.Tiling.DiagonalFactor > 0 {
		tiler.DiagonalFactor = cfg.Tiling.DiagonalFactor
	}

	a.runner, err = pipeline.NewRunner(pipeline.Config{
		LocationLabel:     cfg.Location.Label,
		Center:            cfg.Location.Center(),
		TotalRadiusMeters: cfg.Location.TotalRadiusMeters,
		Tiler:             tiler,
		Delays: pipeline.Delays{
			Search:    cfg.Delays.Search,
			Details:   cfg.Delays.Details,
			NoCareers: cfg.Delays.NoCareers,
			Crawl:     cfg.Delays.Crawl,
		},
		Concurrency: cfg.Crawler.Concurrency,
	}, pipeline.Deps{
		Finder:   placesClient,
		Resolver: placesClient,
		Locator:  locator,
		Matcher:  crawler.NewKeywordClassifier(fetcher, logger.Named("classifier")),
		Store:    a.store,
		Clock:    system.New(),
		IDs:      uuid.New(),
		Pauser:   crawler.TimerPauser{},
		Logger:   logger.Named("pipeline"),
		Console:  console,
	})
	if err != nil {
		return nil, fmt.Errorf("init pipeline: %w", err)
	}

	if cfg.Metrics.ListenAddr != "" {
		if err := a.startMetrics(cfg.Metrics.ListenAddr); err != nil {
			return nil, err
		}
	}

	logger.Debug("application services initialized",
		zap.String("storage", cfg.Storage.Provider),
		zap.Int("zones", len(a.runner.Zones())),
	)
	ok = true
	return a, nil
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the validated configuration the app was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Runner returns the pipeline runner.
func (a *App) Runner() *pipeline.Runner {
	return a.runner
}

// Store returns the result store, or nil when persistence is disabled.
func (a *App) Store() crawler.BlobStore {
	return a.store
}

// MetricsAddr is the bound address of the metrics listener, empty when disabled.
func (a *App) MetricsAddr() string {
	return a.metricsAddr
}

func (a *App) buildStore(ctx context.Context) (crawler.BlobStore, error) {
	sc := a.cfg.Storage
	switch sc.Provider {
	case ProviderLocal, "":
		store, err := local.New(local.Config{BaseDir: sc.ResultsDir})
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		return store, nil
	case ProviderGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		if _, err := client.Bucket(sc.GCSBucket).Attrs(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("check bucket %q: %w", sc.GCSBucket, err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := gcs.New(client, gcs.Config{Bucket: sc.GCSBucket, Prefix: sc.Prefix})
		if err != nil {
			return nil, fmt.Errorf("init gcs storage: %w", err)
		}
		return store, nil
	case ProviderMemory:
		return memory.NewBlobStore(), nil
	case ProviderNone:
		a.logger.Info("result persistence disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage provider %q", config.ErrConfiguration, sc.Provider)
	}
}

func (a *App) startMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen metrics %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.metricsServer = srv
	a.metricsAddr = ln.Addr().String()
	a.logger.Info("metrics server listening", zap.String("addr", a.metricsAddr))
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return nil
}

// Close shuts down the metrics listener, releases clients, and flushes the
// logger. It is safe to call more than once.
func (a *App) Close() {
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Warn("metrics server shutdown", zap.Error(err))
		}
		cancel()
		a.metricsServer = nil
	}
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Warn("close client", zap.Error(err))
		}
	}
	a.closers = nil
	// Sync on a terminal stderr returns EINVAL on some platforms.
	_ = a.logger.Sync()
}
