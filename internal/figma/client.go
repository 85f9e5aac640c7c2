package figma

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pixelproof/design-diff-tool/internal/platform/errs"
)

const (
	tokenHeader  = "X-Figma-Token"
	maxRedirects = 5
	userAgent    = "DesignDiffBot/1.0"

	// Limit response bodies to 10 MB to prevent memory exhaustion from
	// extremely large or malformed responses.
	maxResponseBody = 10 << 20
)

var (
	errTooManyRedirects = errors.New("too many redirects")
	errBlockedRedirect  = errors.New("redirect to non-http(s) scheme blocked")
)

// Client talks to the design API. Responses are cached by request identity;
// a cache hit bypasses the network entirely. HTTP 429 is retried with
// exponential backoff, every other failure is terminal.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *Cache
	maxRetries int
	retryBase  time.Duration
	logger     *slog.Logger
}

// NewClient returns a Client for the given API base URL. cache may be nil to
// disable response caching (every call hits the network).
func NewClient(baseURL string, cache *Cache, maxRetries int, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxConnsPerHost:     10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			CheckRedirect: safeRedirectPolicy,
		},
		cache:      cache,
		maxRetries: maxRetries,
		retryBase:  time.Second,
		logger:     logger,
	}
}

// InvalidateFile drops every cached response for the given file key.
func (c *Client) InvalidateFile(fileKey string) {
	if c.cache == nil {
		return
	}
	c.cache.PurgeFile(fileKey)
	c.logger.Info("design cache purged", "file_key", fileKey)
}

// safeRedirectPolicy validates redirect targets and limits the redirect chain
// length. Image exports redirect to a storage CDN, so redirects are allowed
// but only within http(s).
func safeRedirectPolicy(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("%w: stopped after %d", errTooManyRedirects, maxRedirects)
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("%w: %s", errBlockedRedirect, req.URL.Scheme)
	}
	return nil
}

// get fetches path with the bearer token, consulting the cache first.
func (c *Client) get(ctx context.Context, token, path string, query url.Values, cacheKey string) ([]byte, error) {
	if c.cache != nil {
		if payload, ok := c.cache.Get(cacheKey); ok {
			c.logger.Debug("design API cache hit", "key", cacheKey)
			return payload, nil
		}
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	for attempt := 0; ; attempt++ {
		payload, status, err := c.doRequest(ctx, token, target)
		if err != nil {
			return nil, &errs.AppError{
				Kind:    errs.UpstreamError,
				Message: "The design API could not be reached.",
				Cause:   err,
			}
		}

		if status == http.StatusTooManyRequests {
			if attempt >= c.maxRetries {
				return nil, &errs.AppError{
					Kind:           errs.RateLimited,
					UpstreamStatus: status,
					Message:        "Design API rate limit reached. Please retry in a few minutes; repeated requests are served from cache.",
				}
			}
			delay := c.retryBase * (1 << attempt)
			c.logger.Warn("design API rate limited, backing off",
				"attempt", attempt+1, "delay", delay.String())
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}

		if status >= 400 {
			return nil, &errs.AppError{
				Kind:           errs.UpstreamError,
				UpstreamStatus: status,
				Message:        "The design API returned an error status.",
			}
		}

		if c.cache != nil {
			c.cache.Add(cacheKey, payload)
		}
		return payload, nil
	}
}

func (c *Client) doRequest(ctx context.Context, token, target string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(tokenHeader, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return payload, resp.StatusCode, nil
}

// Download fetches an exported image by its (unauthenticated, pre-signed) URL.
func (c *Client) Download(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &errs.AppError{
			Kind:    errs.UpstreamError,
			Message: "Exported image could not be downloaded.",
			Cause:   err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, &errs.AppError{
			Kind:           errs.UpstreamError,
			UpstreamStatus: resp.StatusCode,
			Message:        "Exported image could not be downloaded.",
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
}
