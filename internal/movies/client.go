// Package movies serves movie metadata from the TMDB v3 API behind a
// response cache.
package movies

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public TMDB v3 endpoint.
const DefaultBaseURL = "https://api.themoviedb.org/3"

// maxResponseBytes caps upstream bodies read into memory.
const maxResponseBytes = 4 << 20

var (
	// ErrNotFound is returned when TMDB has no such movie.
	ErrNotFound = errors.New("movie not found")
	// ErrUpstream wraps non-404 failures from TMDB.
	ErrUpstream = errors.New("movie database request failed")
)

// Fetcher retrieves a raw JSON document for a TMDB path.
type Fetcher interface {
	Fetch(ctx context.Context, path string, query url.Values) ([]byte, error)
}

// ClientConfig configures a TMDB client.
type ClientConfig struct {
	BaseURL  string
	APIKey   string // v3 api_key query parameter
	Token    string // v4 read access token, sent as a bearer
	Language string
	Timeout  time.Duration
}

// Client is a Fetcher backed by the TMDB HTTP API.
type Client struct {
	base     string
	apiKey   string
	token    string
	language string
	http     *http.Client
}

// NewClient creates a TMDB client.
func NewClient(cfg ClientConfig) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:     strings.TrimRight(base, "/"),
		apiKey:   cfg.APIKey,
		token:    cfg.Token,
		language: cfg.Language,
		http:     &http.Client{Timeout: timeout},
	}
}

// Fetch performs GET {base}/{path}?{query}.
func (c *Client) Fetch(ctx context.Context, path string, query url.Values) ([]byte, error) {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	if c.language != "" && q.Get("language") == "" {
		q.Set("language", c.language)
	}
	endpoint := c.base + "/" + strings.TrimLeft(path, "/")
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		upstreamRequests.WithLabelValues(endpointLabel(path), "error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()
	upstreamDuration.WithLabelValues(endpointLabel(path)).Observe(time.Since(start).Seconds())
	upstreamRequests.WithLabelValues(endpointLabel(path), strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrUpstream, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: %s: status %d", ErrUpstream, path, resp.StatusCode)
	}
	return body, nil
}

// endpointLabel strips movie ids so metric cardinality stays bounded.
func endpointLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if _, err := strconv.Atoi(p); err == nil {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
