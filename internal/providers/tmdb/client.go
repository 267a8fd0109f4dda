package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"moviescout/internal/domain"
	"moviescout/internal/metrics"
)

const (
	DefaultBaseURL   = "https://api.themoviedb.org/3"
	defaultUserAgent = "moviescout/1.0"
	maxBodyBytes     = 2 << 20

	endpointSearch   = "search"
	endpointDiscover = "discover"
)

type Client struct {
	apiKey    string
	baseURL   string
	userAgent string
	http      *http.Client
}

type Config struct {
	APIKey    string
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// Client overrides the default otelhttp-instrumented client.
	Client *http.Client
}

// MoviesResponse is the page envelope shared by the search and discover
// endpoints. Response and Error are set by catalog proxies that report
// failures inside a 2xx body.
type MoviesResponse struct {
	Page         int                   `json:"page"`
	Results      []domain.MovieSummary `json:"results"`
	TotalResults int                   `json:"total_results"`
	Response     string                `json:"Response,omitempty"`
	Error        string                `json:"Error,omitempty"`
}

// Failed reports whether the payload carries an application-level failure.
func (r MoviesResponse) Failed() bool {
	return r.Response == "False"
}

// StatusError is returned for any non-2xx reply.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("tmdb HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("tmdb HTTP %d: %s", e.StatusCode, e.Body)
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		apiKey:    strings.TrimSpace(cfg.APIKey),
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		http:      httpClient,
	}
}

// SearchMovies runs a free-text title search.
func (c *Client) SearchMovies(ctx context.Context, query string) (MoviesResponse, error) {
	return c.get(ctx, endpointSearch, "/search/movie?query="+escapeQuery(query))
}

// DiscoverPopular lists movies ordered by popularity.
func (c *Client) DiscoverPopular(ctx context.Context) (MoviesResponse, error) {
	return c.get(ctx, endpointDiscover, "/discover/movie?sort_by=popularity.desc")
}

func (c *Client) get(ctx context.Context, endpoint, pathAndQuery string) (MoviesResponse, error) {
	start := time.Now()
	resp, err := c.do(ctx, pathAndQuery)
	metrics.CatalogRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	metrics.CatalogRequestsTotal.WithLabelValues(endpoint, outcome(resp, err)).Inc()
	return resp, err
}

func (c *Client) do(ctx context.Context, pathAndQuery string) (MoviesResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return MoviesResponse{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return MoviesResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return MoviesResponse{}, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload MoviesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		return MoviesResponse{}, fmt.Errorf("decode tmdb response: %w", err)
	}
	return payload, nil
}

// escapeQuery percent-encodes spaces as %20 rather than '+'.
func escapeQuery(q string) string {
	return strings.ReplaceAll(url.QueryEscape(q), "+", "%20")
}

func outcome(resp MoviesResponse, err error) string {
	switch {
	case err != nil:
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return "http_error"
		}
		return "error"
	case resp.Failed():
		return "rejected"
	default:
		return "ok"
	}
}
