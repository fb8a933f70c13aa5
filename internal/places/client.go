// Package places is a client for the Places API (New) text search and place
// details endpoints.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/local-job-scraper/internal/crawler"
	"github.com/JakeFAU/local-job-scraper/internal/geo"
	"github.com/JakeFAU/local-job-scraper/internal/metrics"
)

const (
	// DefaultBaseURL is the production Places API (New) endpoint.
	DefaultBaseURL = "https://places.googleapis.com/v1"
	// MaxZoneRadiusMeters is the largest location bias the API accepts.
	MaxZoneRadiusMeters = 50000
	// DefaultMaxResults is the per-call page size.
	DefaultMaxResults = 20

	searchFieldMask  = "places.id,places.displayName,places.formattedAddress"
	detailsFieldMask = "websiteUri,nationalPhoneNumber"
	maxResponseBytes = 4 << 20
)

// Config holds the Places client settings.
type Config struct {
	APIKey           string
	BaseURL          string
	ZoneRadiusMeters float64
	MaxResults       int
	Timeout          time.Duration
}

// APIError is the error object returned by the API.
type APIError struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("places api error %d (%s): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("places api error %d: %s", e.Code, e.Message)
}

// Unwrap lets errors.Is match crawler.ErrRemoteAPI.
func (e *APIError) Unwrap() error {
	return crawler.ErrRemoteAPI
}

// Client implements crawler.PlaceFinder and crawler.SiteResolver.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retry      crawler.RetryPolicy
	pauser     crawler.Pauser
	logger     *zap.Logger
}

// New validates cfg and builds a client. A nil retry policy means a single
// attempt per call.
func New(cfg Config, retry crawler.RetryPolicy, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("places: api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ZoneRadiusMeters <= 0 || cfg.ZoneRadiusMeters > MaxZoneRadiusMeters {
		cfg.ZoneRadiusMeters = MaxZoneRadiusMeters
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if retry == nil {
		retry = crawler.NoRetry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retry:      retry,
		pauser:     crawler.TimerPauser{},
		logger:     logger,
	}, nil
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type searchRequest struct {
	TextQuery    string `json:"textQuery"`
	LocationBias struct {
		Circle struct {
			Center latLng  `json:"center"`
			Radius float64 `json:"radius"`
		} `json:"circle"`
	} `json:"locationBias"`
	MaxResultCount int `json:"maxResultCount"`
}

type searchResponse struct {
	Places []struct {
		ID          string `json:"id"`
		DisplayName *struct {
			Text string `json:"text"`
		} `json:"displayName"`
		FormattedAddress string `json:"formattedAddress"`
	} `json:"places"`
	Error *APIError `json:"error"`
}

type detailsResponse struct {
	WebsiteURI          string    `json:"websiteUri"`
	NationalPhoneNumber string    `json:"nationalPhoneNumber"`
	Error               *APIError `json:"error"`
}

// Search runs one text search biased to the zone. Places without an ID are
// dropped; a missing display name becomes crawler.UnknownName.
func (c *Client) Search(ctx context.Context, term string, zone geo.SearchZone) crawler.Outcome[[]crawler.Candidate] {
	var reqBody searchRequest
	reqBody.TextQuery = term
	reqBody.LocationBias.Circle.Center = latLng(zone.Center)
	reqBody.LocationBias.Circle.Radius = c.cfg.ZoneRadiusMeters
	reqBody.MaxResultCount = c.cfg.MaxResults
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return crawler.Failed[[]crawler.Candidate](fmt.Errorf("encode search request: %w", err))
	}

	resp, err := call[searchResponse](ctx, c, "search", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/places:searchText", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Goog-FieldMask", searchFieldMask)
		return req, nil
	})
	if err != nil {
		c.logger.Debug("place search failed",
			zap.String("term", term),
			zap.String("zone", zone.Label),
			zap.Error(err))
		return crawler.Failed[[]crawler.Candidate](err)
	}

	out := make([]crawler.Candidate, 0, len(resp.Places))
	for _, p := range resp.Places {
		if p.ID == "" {
			continue
		}
		name := crawler.UnknownName
		if p.DisplayName != nil && p.DisplayName.Text != "" {
			name = p.DisplayName.Text
		}
		out = append(out, crawler.Candidate{ID: p.ID, Name: name, Address: p.FormattedAddress})
	}
	return crawler.Succeeded(out)
}

// Resolve fetches the website and phone for a place. A place without a
// website succeeds with an empty SiteInfo.Website.
func (c *Client) Resolve(ctx context.Context, placeID string) crawler.Outcome[crawler.SiteInfo] {
	if placeID == "" {
		return crawler.Failed[crawler.SiteInfo](fmt.Errorf("resolve: empty place id: %w", crawler.ErrNotFound))
	}
	resp, err := call[detailsResponse](ctx, c, "details", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/places/"+url.PathEscape(placeID), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Goog-FieldMask", detailsFieldMask)
		return req, nil
	})
	if err != nil {
		c.logger.Debug("place details failed", zap.String("place_id", placeID), zap.Error(err))
		return crawler.Failed[crawler.SiteInfo](err)
	}
	return crawler.Succeeded(crawler.SiteInfo{
		Website: strings.TrimSpace(resp.WebsiteURI),
		Phone:   strings.TrimSpace(resp.NationalPhoneNumber),
	})
}

// apiEnvelope is a decoded response that may carry an error object.
type apiEnvelope interface {
	apiError() *APIError
}

func (r searchResponse) apiError() *APIError  { return r.Error }
func (r detailsResponse) apiError() *APIError { return r.Error }

// call sends the request built by build, retrying transport faults per the
// client's retry policy, and decodes a fresh T for every attempt.
func call[T apiEnvelope](ctx context.Context, c *Client, kind string, build func() (*http.Request, error)) (T, error) {
	for attempt := 1; ; attempt++ {
		out, err := once[T](c, build)
		outcome := "ok"
		if err != nil {
			outcome = string(crawler.FaultOf(err))
		}
		metrics.ObservePlacesRequest(kind, outcome)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil || !c.retry.ShouldRetry(err, attempt) {
			return out, err
		}
		backoff := c.retry.Backoff(attempt - 1)
		c.logger.Debug("retrying places request",
			zap.String("kind", kind),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		c.pauser.Pause(ctx, backoff)
	}
}

func once[T apiEnvelope](c *Client, build func() (*http.Request, error)) (T, error) {
	var out T
	req, err := build()
	if err != nil {
		return out, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Goog-Api-Key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, crawler.TransportError(req.Method+" "+req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return out, crawler.TransportError("read places response", err)
	}
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return out, &APIError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return out, crawler.TransportError("decode places response", err)
	}
	if e := out.apiError(); e != nil {
		if e.Code == 0 {
			e.Code = resp.StatusCode
		}
		return out, e
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return out, &APIError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return out, nil
}
