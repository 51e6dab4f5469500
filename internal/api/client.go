package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client interface for testability
type Client interface {
	BadgeRecipients(ctx context.Context, site string, badgeID int, fromDate int64, page int) (*RecipientsPage, error)
}

type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	pageSize   int
	limiter    *rate.Limiter
	retryCount int
	retryDelay time.Duration
	logger     *zap.Logger
}

// RecipientsPage is one page of badge awards from the API's common wrapper.
// A non-zero Backoff means the caller is being throttled and must wait that
// many seconds before retrying the same page.
type RecipientsPage struct {
	Items          []Item `json:"items"`
	HasMore        bool   `json:"has_more"`
	Backoff        int    `json:"backoff,omitempty"`
	QuotaRemaining int    `json:"quota_remaining"`
	QuotaMax       int    `json:"quota_max"`
}

type Item struct {
	BadgeID   int    `json:"badge_id"`
	User      User   `json:"user"`
	AwardedAt int64  `json:"awarded_at"`
	Reason    string `json:"reason,omitempty"`
}

type User struct {
	UserID int `json:"user_id"`
}

func NewClient(baseURL, apiKey string, pageSize, ratePerSec int, timeout, retryDelay time.Duration, retryCount int, logger *zap.Logger) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:       100,
		MaxConnsPerHost:    10,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: false,
	}

	return &HTTPClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL:    baseURL,
		apiKey:     apiKey,
		pageSize:   pageSize,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec*2),
		retryCount: retryCount,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// BadgeRecipients fetches one page of awards for a badge, oldest first,
// limited to awards at or after fromDate when fromDate is non-zero.
// Transport and server errors are retried with exponential backoff up to the
// configured count; throttle signals are not retried here, they are returned
// in the page for the caller to honor.
func (c *HTTPClient) BadgeRecipients(ctx context.Context, site string, badgeID int, fromDate int64, page int) (*RecipientsPage, error) {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	q := url.Values{}
	q.Set("site", site)
	q.Set("page", strconv.Itoa(page))
	q.Set("pagesize", strconv.Itoa(c.pageSize))
	q.Set("sort", "awarded")
	q.Set("order", "asc")
	if fromDate > 0 {
		q.Set("fromdate", strconv.FormatInt(fromDate, 10))
	}
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}

	reqURL := fmt.Sprintf("%s/2.3/badges/%d/recipients?%s", c.baseURL, badgeID, q.Encode())
	c.logger.Debug("requesting", zap.String("url", reqURL))

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // Exponential backoff
			c.logger.Debug("retrying request", zap.Int("attempt", attempt), zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		// Read body before closing for error messages
		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			// The API pairs 429s with a Retry-After style backoff body;
			// surface it as a throttle page so the caller's backoff
			// handling stays in one place.
			p := &RecipientsPage{Backoff: parseBackoff(body)}
			return p, nil
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}

		var p RecipientsPage
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}

		return &p, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// parseBackoff pulls the backoff seconds out of a throttle error body,
// defaulting to a small pause when the body is unreadable.
func parseBackoff(body []byte) int {
	var p struct {
		Backoff int `json:"backoff"`
	}
	if err := json.Unmarshal(body, &p); err == nil && p.Backoff > 0 {
		return p.Backoff
	}
	return 5
}
