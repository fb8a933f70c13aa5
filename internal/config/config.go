// Package config loads and validates jobscout configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/local-job-scraper/internal/crawler"
	"github.com/JakeFAU/local-job-scraper/internal/geo"
)

// ErrConfiguration marks configuration that cannot start a run. It is
// reported before any network work happens.
var ErrConfiguration = errors.New("configuration error")

// AllProfiles selects every configured profile.
const AllProfiles = "all"

// APIKeyEnv is the variable the API key is read from when places.api_key is
// not set.
const APIKeyEnv = "GOOGLE_PLACES_API_KEY"

// Config captures all knobs loaded via Viper.
type Config struct {
	Places   PlacesConfig             `mapstructure:"places"`
	Location LocationConfig           `mapstructure:"location"`
	Tiling   TilingConfig             `mapstructure:"tiling"`
	Crawler  CrawlerConfig            `mapstructure:"crawler"`
	HTTP     HTTPConfig               `mapstructure:"http"`
	Delays   DelayConfig              `mapstructure:"delays"`
	Storage  StorageConfig            `mapstructure:"storage"`
	Logging  LoggingConfig            `mapstructure:"logging"`
	Metrics  MetricsConfig            `mapstructure:"metrics"`
	Profiles map[string]ProfileConfig `mapstructure:"profiles"`
}

// PlacesConfig configures the Places API client.
type PlacesConfig struct {
	APIKey           string  `mapstructure:"api_key"`
	BaseURL          string  `mapstructure:"base_url"`
	ZoneRadiusMeters float64 `mapstructure:"zone_radius_meters"`
	MaxResults       int     `mapstructure:"max_results"`
}

// LocationConfig is the center and total radius to cover.
type LocationConfig struct {
	Label             string  `mapstructure:"label"`
	Latitude          float64 `mapstructure:"latitude"`
	Longitude         float64 `mapstructure:"longitude"`
	TotalRadiusMeters float64 `mapstructure:"total_radius_meters"`
}

// Center returns the location as a GeoPoint.
func (l LocationConfig) Center() geo.GeoPoint {
	return geo.GeoPoint{Latitude: l.Latitude, Longitude: l.Longitude}
}

// TilingConfig holds the empirical zone offset factors.
type TilingConfig struct {
	CardinalFactor float64 `mapstructure:"cardinal_factor"`
	DiagonalFactor float64 `mapstructure:"diagonal_factor"`
}

// CrawlerConfig governs third-party site fetching.
type CrawlerConfig struct {
	UserAgent          string   `mapstructure:"user_agent"`
	RespectRobots      bool     `mapstructure:"respect_robots"`
	Concurrency        int      `mapstructure:"concurrency"`
	CareerPaths        []string `mapstructure:"career_paths"`
	LinkHints          []string `mapstructure:"link_hints"`
	MinCareerPageBytes int      `mapstructure:"min_career_page_bytes"`
	RateLimitPerHost   float64  `mapstructure:"rate_limit_per_host"`
}

// HTTPConfig configures timeouts and API retry behavior.
type HTTPConfig struct {
	TimeoutSeconds     int `mapstructure:"timeout_seconds"`
	PageTimeoutSeconds int `mapstructure:"page_timeout_seconds"`
	MaxRetries         int `mapstructure:"max_retries"`
	BackoffInitialMs   int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs       int `mapstructure:"backoff_max_ms"`
}

// DelayConfig holds the fixed pauses between remote calls.
type DelayConfig struct {
	Search    time.Duration `mapstructure:"search"`
	Details   time.Duration `mapstructure:"details"`
	NoCareers time.Duration `mapstructure:"no_careers"`
	Crawl     time.Duration `mapstructure:"crawl"`
}

// StorageConfig selects where run results are written.
type StorageConfig struct {
	Provider   string `mapstructure:"provider"`
	ResultsDir string `mapstructure:"results_dir"`
	GCSBucket  string `mapstructure:"gcs_bucket"`
	Prefix     string `mapstructure:"prefix"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig enables the Prometheus listener when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// ProfileConfig is one entry of the profile registry.
type ProfileConfig struct {
	Name          string   `mapstructure:"name"`
	PlaceSearches []string `mapstructure:"place_searches"`
	JobKeywords   []string `mapstructure:"job_keywords"`
	OutputFile    string   `mapstructure:"output_file"`
}

// Load builds a Config from an optional .env file, the environment, and a
// config file. An empty path falls back to ./config.yaml when it exists.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("JOBSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("places.api_key", "JOBSCOUT_PLACES_API_KEY", APIKeyEnv); err != nil {
		return Config{}, fmt.Errorf("bind api key env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("places.zone_radius_meters", 50000)
	v.SetDefault("places.max_results", 20)
	v.SetDefault("location.label", "Your City, ST")
	v.SetDefault("location.total_radius_meters", 96000)
	v.SetDefault("tiling.cardinal_factor", geo.DefaultCardinalFactor)
	v.SetDefault("tiling.diagonal_factor", geo.DefaultDiagonalFactor)
	v.SetDefault("crawler.respect_robots", false)
	v.SetDefault("crawler.concurrency", 1)
	v.SetDefault("crawler.min_career_page_bytes", crawler.DefaultMinCareerPageBytes)
	v.SetDefault("crawler.rate_limit_per_host", 0)
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.page_timeout_seconds", 8)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 2000)
	v.SetDefault("delays.search", 400*time.Millisecond)
	v.SetDefault("delays.details", 150*time.Millisecond)
	v.SetDefault("delays.no_careers", 400*time.Millisecond)
	v.SetDefault("delays.crawl", 800*time.Millisecond)
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.results_dir", "results")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. Every failure
// wraps ErrConfiguration.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Places.APIKey) == "":
		return configErr("places.api_key must be set (or %s)", APIKeyEnv)
	case c.Places.ZoneRadiusMeters <= 0 || c.Places.ZoneRadiusMeters > 50000:
		return configErr("places.zone_radius_meters must be in (0, 50000]")
	case c.Places.MaxResults <= 0 || c.Places.MaxResults > 20:
		return configErr("places.max_results must be in [1, 20]")
	case c.Location.Latitude < -90 || c.Location.Latitude > 90:
		return configErr("location.latitude must be within [-90, 90]")
	case c.Location.Longitude < -180 || c.Location.Longitude > 180:
		return configErr("location.longitude must be within [-180, 180]")
	case c.Location.TotalRadiusMeters <= 0:
		return configErr("location.total_radius_meters must be > 0")
	case c.Tiling.CardinalFactor <= 0 || c.Tiling.DiagonalFactor <= 0:
		return configErr("tiling factors must be > 0")
	case c.Crawler.Concurrency <= 0:
		return configErr("crawler.concurrency must be > 0")
	case c.HTTP.TimeoutSeconds <= 0 || c.HTTP.PageTimeoutSeconds <= 0:
		return configErr("http.timeout_seconds and http.page_timeout_seconds must be > 0")
	case c.HTTP.MaxRetries < 0:
		return configErr("http.max_retries must be >= 0")
	case c.Delays.Search < 0 || c.Delays.Details < 0 || c.Delays.NoCareers < 0 || c.Delays.Crawl < 0:
		return configErr("delays must not be negative")
	case len(c.Profiles) == 0:
		return configErr("at least one profile must be configured")
	}
	if strings.EqualFold(c.Storage.Provider, "gcs") && c.Storage.GCSBucket == "" {
		return configErr("storage.gcs_bucket must be set when storage.provider is gcs")
	}
	for key, p := range c.Profiles {
		if key == AllProfiles {
			return configErr("profile key %q is reserved", AllProfiles)
		}
		if strings.TrimSpace(p.Name) == "" {
			return configErr("profiles.%s.name must be set", key)
		}
		if len(p.PlaceSearches) == 0 {
			return configErr("profiles.%s.place_searches must not be empty", key)
		}
		if strings.TrimSpace(p.OutputFile) == "" {
			return configErr("profiles.%s.output_file must be set", key)
		}
	}
	return nil
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// PageTimeout is the budget for one third-party site fetch.
func (c Config) PageTimeout() time.Duration {
	return time.Duration(c.HTTP.PageTimeoutSeconds) * time.Second
}

// APITimeout is the budget for one Places API call.
func (c Config) APITimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// ProfileKeys returns the registry keys in display order. Numeric keys sort
// numerically and come before other keys.
func (c Config) ProfileKeys() []string {
	keys := make([]string, 0, len(c.Profiles))
	for k := range c.Profiles {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ni, errI := strconv.Atoi(keys[i])
		nj, errJ := strconv.Atoi(keys[j])
		switch {
		case errI == nil && errJ == nil:
			return ni < nj
		case errI == nil:
			return true
		case errJ == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

// Profile returns the profile stored under key, matched case-insensitively.
func (c Config) Profile(key string) (crawler.Profile, bool) {
	p, ok := c.Profiles[key]
	if !ok {
		// Viper lowercases map keys read from files and the environment.
		for _, k := range c.ProfileKeys() {
			if strings.EqualFold(k, key) {
				key, p, ok = k, c.Profiles[k], true
				break
			}
		}
	}
	if !ok {
		return crawler.Profile{}, false
	}
	return crawler.Profile{
		Key:           key,
		Name:          p.Name,
		PlaceSearches: append([]string(nil), p.PlaceSearches...),
		JobKeywords:   append([]string(nil), p.JobKeywords...),
		OutputFile:    p.OutputFile,
	}, true
}

// SelectProfiles resolves a profile key, or AllProfiles, into the profiles
// to run in order.
func (c Config) SelectProfiles(key string) ([]crawler.Profile, error) {
	key = strings.TrimSpace(key)
	if strings.EqualFold(key, AllProfiles) {
		keys := c.ProfileKeys()
		out := make([]crawler.Profile, 0, len(keys))
		for _, k := range keys {
			p, _ := c.Profile(k)
			out = append(out, p)
		}
		return out, nil
	}
	p, ok := c.Profile(key)
	if !ok {
		return nil, configErr("unknown profile %q (valid: %s, %s)", key, strings.Join(c.ProfileKeys(), ", "), AllProfiles)
	}
	return []crawler.Profile{p}, nil
}
