package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"hoopstats/ingestion/internal/metrics"
	"hoopstats/ingestion/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Options configures the BallDontLie client
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// MinRequestInterval is the minimum spacing between outbound requests
	MinRequestInterval time.Duration

	// MaxAttempts is the total number of attempts per request, including the first
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	PageSize    int

	// BreakerFailures consecutive failed requests open the circuit for BreakerTimeout
	BreakerFailures int
	BreakerTimeout  time.Duration

	HTTPClient *http.Client
}

// Client is the BallDontLie API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker

	// mu serializes requests so the limiter spacing holds across goroutines
	mu sync.Mutex

	maxAttempts int
	backoffBase time.Duration
	backoffMax  time.Duration
	pageSize    int
}

// NewClient creates a new BallDontLie API client
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 4
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = 30 * time.Second
	}
	if opts.PageSize <= 0 || opts.PageSize > 100 {
		opts.PageSize = 100
	}
	if opts.BreakerFailures <= 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 60 * time.Second
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	limit := rate.Inf
	if opts.MinRequestInterval > 0 {
		limit = rate.Every(opts.MinRequestInterval)
	}

	failures := uint32(opts.BreakerFailures)
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "balldontlie",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isClientError(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Provider circuit breaker changed state")
			metrics.SetCircuitState(int(to))
		},
	})

	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(limit, 1),
		breaker:     breaker,
		maxAttempts: opts.MaxAttempts,
		backoffBase: opts.BackoffBase,
		backoffMax:  opts.BackoffMax,
		pageSize:    opts.PageSize,
	}
}

// page is the BallDontLie list envelope
type page[T any] struct {
	Data []T `json:"data"`
	Meta struct {
		NextCursor *int64 `json:"next_cursor"`
		PerPage    int    `json:"per_page"`
	} `json:"meta"`
}

// FetchGames streams every game in dateRange to fn, following pagination.
// A non-nil season restricts results to that season. Returning an error
// from fn stops the iteration and is returned unchanged.
func (c *Client) FetchGames(ctx context.Context, dateRange models.DateRange, season *int, fn func(models.GameInput) error) error {
	params := url.Values{}
	if dateRange.Start.Equal(dateRange.End) {
		params.Add("dates[]", dateRange.Start.Format(models.DateLayout))
	} else {
		params.Set("start_date", dateRange.Start.Format(models.DateLayout))
		params.Set("end_date", dateRange.End.Format(models.DateLayout))
	}
	if season != nil {
		params.Add("seasons[]", strconv.Itoa(*season))
	}

	return paginate(ctx, c, "games", params, fn)
}

// FetchStatsForGame returns every player stat line the provider has for gameID
func (c *Client) FetchStatsForGame(ctx context.Context, gameID int64) ([]models.StatInput, error) {
	params := url.Values{}
	params.Add("game_ids[]", strconv.FormatInt(gameID, 10))

	var stats []models.StatInput
	err := paginate(ctx, c, "stats", params, func(s models.StatInput) error {
		stats = append(stats, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stats for game %d: %w", gameID, err)
	}

	log.Debug().
		Int64("game_id", gameID).
		Int("stat_lines", len(stats)).
		Msg("Fetched stats for game")

	return stats, nil
}

// FetchTeams fetches all teams
func (c *Client) FetchTeams(ctx context.Context) ([]models.TeamInput, error) {
	var teams []models.TeamInput
	err := paginate(ctx, c, "teams", url.Values{}, func(t models.TeamInput) error {
		teams = append(teams, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch teams: %w", err)
	}

	log.Info().Int("count", len(teams)).Msg("Fetched teams")
	return teams, nil
}

// paginate walks the cursor chain of a list endpoint, handing each record to fn
func paginate[T any](ctx context.Context, c *Client, path string, params url.Values, fn func(T) error) error {
	params.Set("per_page", strconv.Itoa(c.pageSize))
	params.Del("cursor")

	for pages := 1; ; pages++ {
		body, err := c.get(ctx, path, params)
		if err != nil {
			return err
		}

		var resp page[T]
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("failed to parse %s response: %w", path, err)
		}

		for _, record := range resp.Data {
			if err := fn(record); err != nil {
				return err
			}
		}

		if resp.Meta.NextCursor == nil || len(resp.Data) == 0 {
			log.Debug().Str("endpoint", path).Int("pages", pages).Msg("Pagination complete")
			return nil
		}
		params.Set("cursor", strconv.FormatInt(*resp.Meta.NextCursor, 10))
	}
}

// get performs one logical GET, retries included, behind the circuit breaker
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.getWithRetry(ctx, path, params)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, path, err)
	}
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// getWithRetry performs a GET request with rate limiting and retry logic
func (c *Client) getWithRetry(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, path)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		body, status, retryAfter, err := c.do(ctx, path, endpoint, attempt)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		switch {
		case status == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("%w: %w: %s returned 429", ErrRateLimited, ErrProviderUnavailable, path)
		case status >= 500 || status == 0:
			lastErr = fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		default:
			// Other 4xx: don't retry
			return nil, err
		}

		if attempt == c.maxAttempts {
			break
		}

		backoff := c.backoff(attempt, retryAfter)
		reason := "server_error"
		if status == http.StatusTooManyRequests {
			reason = "rate_limited"
		} else if status == 0 {
			reason = "network"
		}
		metrics.RecordAPIRetry(path, reason)

		log.Info().
			Str("endpoint", path).
			Int("attempt", attempt).
			Int("status", status).
			Dur("backoff", backoff).
			Msg("Retrying API request after backoff")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	log.Warn().
		Err(lastErr).
		Str("endpoint", path).
		Int("attempts", c.maxAttempts).
		Msg("API request failed after all attempts")

	return nil, fmt.Errorf("%s failed after %d attempts: %w", path, c.maxAttempts, lastErr)
}

// do sends a single request. status is 0 when no response was received.
func (c *Client) do(ctx context.Context, path, endpoint string, attempt int) ([]byte, int, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, 0, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "hoopstats-ingestion/1.0")

	log.Debug().
		Str("endpoint", path).
		Int("attempt", attempt).
		Msg("Making API request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordAPICall(path, "error", time.Since(start).Seconds())
		return nil, 0, 0, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	metrics.RecordAPICall(path, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		log.Debug().
			Str("endpoint", path).
			Int("size", len(body)).
			Msg("API request successful")
		return body, resp.StatusCode, 0, nil
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, resp.StatusCode, parseRetryAfter(resp.Header.Get("Retry-After")),
			fmt.Errorf("API returned retryable status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	return nil, resp.StatusCode, 0, &RequestError{
		Endpoint:   path,
		StatusCode: resp.StatusCode,
		Body:       truncate(body, 200),
	}
}

// backoff returns the wait before the next attempt: base * 2^(attempt-1),
// or the server's Retry-After, capped at backoffMax
func (c *Client) backoff(attempt int, retryAfter time.Duration) time.Duration {
	delay := c.backoffBase * time.Duration(1<<uint(attempt-1))
	if retryAfter > 0 {
		delay = retryAfter
	}
	if delay > c.backoffMax || delay <= 0 {
		delay = c.backoffMax
	}
	return delay
}

// parseRetryAfter accepts delta-seconds or an HTTP date
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return time.Until(at)
	}
	return 0
}

func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
