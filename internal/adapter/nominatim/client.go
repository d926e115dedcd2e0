package nominatim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/member-locator/internal/domain"
	"github.com/couchcryptid/member-locator/internal/observability"
	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	gobreaker "github.com/sony/gobreaker/v2"
)

// DefaultBaseURL is the public Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Options configures a Client.
type Options struct {
	BaseURL   string
	Email     string        // operator address required by the usage policy
	UserAgent string        // identifies the application
	Timeout   time.Duration // per request
	Cooldown  time.Duration // pause after every issued request

	// The breaker opens after BreakerFailures consecutive failures and lets a
	// trial request through after BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Client implements domain.Searcher using the Nominatim search API. It never
// has more than one request in flight and pauses after each one.
type Client struct {
	opts       Options
	httpClient *http.Client
	clock      clockwork.Clock
	breaker    *gobreaker.CircuitBreaker[[]domain.Candidate]
	metrics    *observability.Metrics
	logger     *slog.Logger

	mu sync.Mutex // serialises requests and their cooldown
}

// NewClient creates a Nominatim client. clock drives the cooldown.
func NewClient(opts Options, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = time.Minute
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	c := &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
		clock:      clock,
		metrics:    metrics,
		logger:     logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]domain.Candidate](gobreaker.Settings{
		Name:    "nominatim",
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return c
}

// Search runs one query against /search. A breaker-rejected call returns an
// error without touching the network and without a cooldown.
func (c *Client) Search(ctx context.Context, req domain.SearchRequest) ([]domain.Candidate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	issued := false
	results, err := c.breaker.Execute(func() ([]domain.Candidate, error) {
		issued = true
		return c.doRequest(ctx, req)
	})
	if issued {
		c.cooldown(ctx)
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.metrics.GeocodeRequests.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("nominatim search %q: %w", req.Query, err)
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, err
	case len(results) == 0:
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
	default:
		c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	}
	return results, nil
}

func (c *Client) cooldown(ctx context.Context) {
	if c.opts.Cooldown <= 0 {
		return
	}
	select {
	case <-c.clock.After(c.opts.Cooldown):
	case <-ctx.Done():
	}
}

// URL returns the request URL for req.
func (c *Client) URL(req domain.SearchRequest) string {
	params := url.Values{
		"q":              {strings.Trim(req.Query, ", ")},
		"format":         {"json"},
		"addressdetails": {"1"},
		"email":          {c.opts.Email},
	}
	if req.Scope != "" {
		params.Set("countrycodes", req.Scope)
	}
	if len(req.ExcludePlaceIDs) > 0 {
		ids := make([]string, len(req.ExcludePlaceIDs))
		for i, id := range req.ExcludePlaceIDs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		params.Set("exclude_place_ids", strings.Join(ids, ","))
	}
	return c.opts.BaseURL + "/search?" + params.Encode()
}

func (c *Client) doRequest(ctx context.Context, req domain.SearchRequest) ([]domain.Candidate, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(req), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.opts.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.opts.UserAgent)
	}
	httpReq.Header.Set("Accept", "application/json")

	start := c.clock.Now()
	resp, err := c.httpClient.Do(httpReq)
	c.metrics.GeocodeAPIDuration.Observe(c.clock.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("nominatim search %q (scope %q): %w", req.Query, req.Scope, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c.logger.Debug("nominatim search",
		"query", req.Query,
		"scope", req.Scope,
		"results", len(places),
	)

	candidates := make([]domain.Candidate, 0, len(places))
	for _, p := range places {
		candidates = append(candidates, p.candidate())
	}
	return candidates, nil
}

// Nominatim API response types.

type place struct {
	PlaceID     int64             `json:"place_id"`
	Type        string            `json:"type"`
	Class       string            `json:"class"`
	Lat         string            `json:"lat"`
	Lon         string            `json:"lon"`
	DisplayName string            `json:"display_name"`
	BoundingBox []string          `json:"boundingbox"` // south, north, west, east
	Address     map[string]string `json:"address"`
}

func (p place) candidate() domain.Candidate {
	return domain.Candidate{
		PlaceID:     p.PlaceID,
		Type:        p.Type,
		Class:       p.Class,
		Lat:         p.Lat,
		Lon:         p.Lon,
		DisplayName: p.DisplayName,
		BoundingBox: p.BoundingBox,
		Address:     p.Address,
	}
}
