package gateway

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client is the fetch interface consumed by the cache and lookup layers.
type Client interface {
	Fetch(ctx context.Context) ([]byte, error)
	GetJSON(ctx context.Context, url string) ([]byte, error)
}

// HTTPClient performs throttled, retrying GETs against the upstream.
// Throttle state is process-wide: all callers share one limiter and one
// last-request timestamp.
type HTTPClient struct {
	httpClient *http.Client
	url        string
	limiter    *rate.Limiter
	retryCount int
	retryDelay time.Duration
	maxDelay   time.Duration

	mu          sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
	jitter      time.Duration

	logger *zap.Logger
}

type Options struct {
	URL           string
	Timeout       time.Duration
	MinInterval   time.Duration
	Jitter        time.Duration
	RatePerMinute int
	RetryCount    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

func NewClient(opts Options, logger *zap.Logger) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:       100,
		MaxConnsPerHost:    10,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: false,
	}

	perMinute := opts.RatePerMinute
	if perMinute < 1 {
		perMinute = 60
	}

	return &HTTPClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		url:         opts.URL,
		limiter:     rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 2),
		retryCount:  opts.RetryCount,
		retryDelay:  opts.RetryDelay,
		maxDelay:    opts.MaxRetryDelay,
		minInterval: opts.MinInterval,
		jitter:      opts.Jitter,
		logger:      logger,
	}
}

// Fetch performs one logical GET against the configured world-state URL.
func (c *HTTPClient) Fetch(ctx context.Context) ([]byte, error) {
	return c.GetJSON(ctx, c.url)
}

// GetJSON performs a throttled GET and returns the raw body. The upstream
// mislabels its Content-Type, so no content negotiation happens here;
// callers parse the bytes as JSON themselves.
func (c *HTTPClient) GetJSON(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			delay := c.backoffDelay(attempt, lastErr)
			c.logger.Warn("retrying upstream request",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := c.doRequest(ctx, url)
		if err == nil {
			return body, nil
		}
		if err != ErrRateLimited && err != ErrOverloaded {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *HTTPClient) doRequest(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", "worldstate-watcher/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == 509:
		return nil, ErrOverloaded
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	case readErr != nil:
		return nil, fmt.Errorf("reading body: %w", readErr)
	case len(body) == 0:
		return nil, ErrNoData
	}

	return body, nil
}

// throttle enforces the minimum inter-request interval plus random jitter.
// The jitter keeps periodic callers from synchronizing into bursts.
func (c *HTTPClient) throttle(ctx context.Context) error {
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	var wait time.Duration
	if elapsed < c.minInterval {
		wait = c.minInterval - elapsed
		if c.jitter > 0 {
			wait += time.Duration(rand.Int63n(int64(c.jitter)))
		}
	}
	c.lastRequest = time.Now().Add(wait)
	c.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// backoffDelay grows exponentially from the base delay up to the ceiling.
// Overload responses start from a doubled base, mirroring the upstream's
// longer advertised cooldown.
func (c *HTTPClient) backoffDelay(attempt int, cause error) time.Duration {
	base := c.retryDelay
	if cause == ErrOverloaded {
		base *= 2
	}
	delay := base * time.Duration(1<<(attempt-1))
	if c.maxDelay > 0 && delay > c.maxDelay {
		delay = c.maxDelay
	}
	return delay
}
