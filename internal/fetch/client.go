// Package fetch is the shared outbound HTTP layer: pooled connections, a
// hard per-request timeout, bounded retries with backoff, and a per-host
// rate limiter for vendor politeness.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/sharpline/cardline/internal/guard"
)

const (
	defaultTimeout = 15 * time.Second
	maxRetries     = 3
	maxBodyBytes   = 4 << 20
	userAgent      = "cardline-pipeline/1.0"
)

// Client wraps http.Client with retries and politeness. One Client is
// shared across providers; the cookie jar carries rankings-site sessions.
type Client struct {
	http    *http.Client
	limiter *guard.RateLimiter
	logger  *slog.Logger
}

// NewClient builds the shared fetch client.
func NewClient(logger *slog.Logger) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		http: &http.Client{
			Timeout: defaultTimeout,
			Jar:     jar,
		},
		limiter: guard.NewRateLimiter(30, time.Minute),
		logger:  logger,
	}
}

// Get fetches rawURL and returns the body. Retries transient failures
// (network errors, 429, 5xx) with linear backoff.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, rawURL, "", nil, headers)
}

// PostForm submits a URL-encoded form, used by the rankings-site login.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) ([]byte, error) {
	headers := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	return c.do(ctx, http.MethodPost, rawURL, form.Encode(), nil, headers)
}

// PostJSON submits a JSON body, used by the LLM providers.
func (c *Client) PostJSON(ctx context.Context, rawURL string, body []byte, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, rawURL, "", body, headers)
}

func (c *Client) do(ctx context.Context, method, rawURL, form string, body []byte, headers map[string]string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if err := c.limiter.Wait(ctx, u.Host); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 2 * time.Second):
			}
		}

		var reader io.Reader
		if form != "" {
			reader = strings.NewReader(form)
		} else if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Debug("fetch retry", "url", u.Host+u.Path, "attempt", attempt+1, "error", err)
			continue
		}

		data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("status %d from %s", resp.StatusCode, u.Host)
			c.logger.Debug("fetch retry", "url", u.Host+u.Path, "attempt", attempt+1, "status", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("status %d from %s: %s", resp.StatusCode, u.Host, truncate(string(data), 200))
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}
		return data, nil
	}
	return nil, fmt.Errorf("request to %s failed after %d attempts: %w", u.Host, maxRetries, lastErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
