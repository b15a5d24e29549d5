// internal/scraper/client.go
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

// maxBackoff caps a single retry wait.
const maxBackoff = 30 * time.Second

// RequestObserver is told about every request attempt.
type RequestObserver interface {
	ObserveRequest(method, host string, statusCode int, duration time.Duration)
}

// DocumentFetcher returns a parsed HTML page. HTTPClient fetches it directly,
// browser.Renderer renders it in headless Chrome first.
type DocumentFetcher interface {
	GetDocument(ctx context.Context, targetURL string) (*goquery.Document, error)
}

// HTTPClient is the HTTP client shared by all spiders: rate limited, retrying,
// rotating user agents.
type HTTPClient struct {
	httpClient    *http.Client
	userAgents    []string
	currentUA     int
	uaMutex       sync.Mutex
	rateLimiter   *rate.Limiter
	retryAttempts int
	retryDelay    time.Duration
	headers       map[string]string
	cookies       map[string]string
	observer      RequestObserver
	proxies       *ProxyPool
}

// ClientConfig defines configuration options for the HTTP client
type ClientConfig struct {
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	UserAgents    []string
	Headers       map[string]string
	Cookies       map[string]string
	RateLimit     float64 // requests per second
	RateBurst     int
	Observer      RequestObserver
	// Proxies are used round-robin; invalid entries are dropped.
	Proxies []string
}

// NewHTTPClient creates a new HTTP client with the specified configuration
func NewHTTPClient(config ClientConfig) *HTTPClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryAttempts < 0 {
		config.RetryAttempts = 0
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 1.0
	}
	if config.RateBurst == 0 {
		config.RateBurst = 5
	}
	if len(config.UserAgents) == 0 {
		config.UserAgents = DefaultUserAgents()
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			Proxy:               proxyFromContext,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	var proxies *ProxyPool
	if len(config.Proxies) > 0 {
		valid := make([]string, 0, len(config.Proxies))
		for _, raw := range config.Proxies {
			if _, err := ParseProxy(raw); err == nil {
				valid = append(valid, raw)
			}
		}
		proxies, _ = NewProxyPool(valid)
	}

	return &HTTPClient{
		httpClient:    httpClient,
		proxies:       proxies,
		userAgents:    config.UserAgents,
		rateLimiter:   rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
		retryAttempts: config.RetryAttempts,
		retryDelay:    config.RetryDelay,
		headers:       config.Headers,
		cookies:       config.Cookies,
		observer:      config.Observer,
	}
}

// Get performs an HTTP GET request with retry logic. The caller closes the body.
func (c *HTTPClient) Get(ctx context.Context, targetURL string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, targetURL, "", nil)
}

// Post performs an HTTP POST request with retry logic. The caller closes the body.
func (c *HTTPClient) Post(ctx context.Context, targetURL, contentType string, body []byte) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, targetURL, contentType, body)
}

// GetJSON fetches targetURL and decodes the JSON body into v.
func (c *HTTPClient) GetJSON(ctx context.Context, targetURL string, v interface{}) error {
	resp, err := c.Get(ctx, targetURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, v)
}

// PostJSON posts payload as JSON and decodes the JSON reply into v.
func (c *HTTPClient) PostJSON(ctx context.Context, targetURL string, payload, v interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	resp, err := c.Post(ctx, targetURL, "application/json", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, v)
}

// GetDocument fetches targetURL and parses it as HTML.
func (c *HTTPClient) GetDocument(ctx context.Context, targetURL string) (*goquery.Document, error) {
	resp, err := c.Get(ctx, targetURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", targetURL, err)
	}
	doc.Url = resp.Request.URL
	return doc, nil
}

func decodeJSON(resp *http.Response, v interface{}) error {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to parse JSON from %s: %w", resp.Request.URL, err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, targetURL, contentType string, body []byte) (*http.Response, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		reqCtx := ctx
		var proxyURL *url.URL
		if c.proxies != nil {
			if proxyURL, err = c.proxies.Next(); err != nil {
				return nil, err
			}
			reqCtx = withProxy(ctx, proxyURL)
		}
		req, err := http.NewRequestWithContext(reqCtx, method, targetURL, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		c.setRequestHeaders(req)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.observe(method, parsed.Host, 0, time.Since(start))
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.reportProxy(proxyURL, false)
			lastErr = fmt.Errorf("request failed (attempt %d/%d): %w", attempt+1, c.retryAttempts+1, err)
			if attempt < c.retryAttempts {
				if err := c.waitForRetry(ctx, attempt); err != nil {
					return nil, err
				}
			}
			continue
		}
		c.observe(method, parsed.Host, resp.StatusCode, time.Since(start))
		c.reportProxy(proxyURL, !proxyFailed(resp.StatusCode))

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		lastErr = &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        targetURL,
			Attempt:    attempt + 1,
		}

		if !ShouldRetryStatusCode(resp.StatusCode) {
			break
		}
		if attempt < c.retryAttempts {
			if err := c.waitForRetry(ctx, attempt); err != nil {
				return nil, err
			}
		}
	}

	return nil, lastErr
}

func (c *HTTPClient) reportProxy(u *url.URL, ok bool) {
	if c.proxies == nil || u == nil {
		return
	}
	if ok {
		c.proxies.ReportSuccess(u)
		return
	}
	c.proxies.ReportFailure(u)
}

func (c *HTTPClient) observe(method, host string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(method, host, status, d)
	}
}

// setRequestHeaders configures request headers including user agent rotation
func (c *HTTPClient) setRequestHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.getNextUserAgent())

	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("DNT", "1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	for name, value := range c.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
}

// getNextUserAgent returns the next user agent in rotation
func (c *HTTPClient) getNextUserAgent() string {
	c.uaMutex.Lock()
	defer c.uaMutex.Unlock()

	if len(c.userAgents) == 0 {
		return "StoreScrapexter/1.0"
	}
	userAgent := c.userAgents[c.currentUA]
	c.currentUA = (c.currentUA + 1) % len(c.userAgents)
	return userAgent
}

// waitForRetry sleeps with exponential backoff and jitter, or until ctx ends.
func (c *HTTPClient) waitForRetry(ctx context.Context, attempt int) error {
	backoff := backoffDelay(c.retryDelay, attempt)
	var jitter time.Duration
	if half := int64(backoff / 2); half > 0 {
		jitter = time.Duration(rand.Int63n(half))
	}
	delay := backoff + jitter
	if delay > maxBackoff {
		delay = maxBackoff
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoffDelay doubles base once per attempt, stopping at maxBackoff so large
// attempt numbers cannot overflow.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	backoff := base
	for i := 0; i < attempt && backoff < maxBackoff; i++ {
		backoff *= 2
	}
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}

// ShouldRetryStatusCode determines if a status code warrants a retry
func ShouldRetryStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		520, 521, 522, 523, 524: // Cloudflare
		return true
	}
	return false
}

// DefaultUserAgents returns a set of realistic desktop user agent strings
func DefaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:128.0) Gecko/20100101 Firefox/128.0",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36",
	}
}

// HTTPError represents a non-2xx response
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
	Attempt    int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s (URL: %s, attempt: %d)", e.StatusCode, e.Status, e.URL, e.Attempt)
}

// IsRetryableError checks if an error indicates the request should be retried
func IsRetryableError(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return ShouldRetryStatusCode(httpErr.StatusCode)
	}
	return false
}

// IsNotFound reports whether err is an HTTP 404.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}
