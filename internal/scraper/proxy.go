// internal/scraper/proxy.go
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// ErrNoProxies is returned when every configured proxy is cooling down.
var ErrNoProxies = errors.New("no healthy proxies available")

// Proxy pool defaults.
const (
	DefaultProxyFailureThreshold = 3
	DefaultProxyCooldown         = 5 * time.Minute
)

type proxyKey struct{}

type proxyEntry struct {
	url         *url.URL
	failures    int
	lastFailure time.Time
}

// ProxyPool hands out proxies round-robin. A proxy that fails
// failureThreshold times in a row sits out for the cooldown.
type ProxyPool struct {
	mu               sync.Mutex
	proxies          []*proxyEntry
	next             int
	failureThreshold int
	cooldown         time.Duration
	now              func() time.Time
}

// ParseProxy checks that raw is an http, https or socks5 proxy URL.
func ParseProxy(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return nil, fmt.Errorf("invalid proxy URL %q: scheme must be http, https or socks5", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid proxy URL %q: missing host", raw)
	}
	return u, nil
}

// NewProxyPool parses every proxy URL.
func NewProxyPool(proxies []string) (*ProxyPool, error) {
	if len(proxies) == 0 {
		return nil, ErrNoProxies
	}
	pool := &ProxyPool{
		failureThreshold: DefaultProxyFailureThreshold,
		cooldown:         DefaultProxyCooldown,
		now:              time.Now,
	}
	for _, raw := range proxies {
		u, err := ParseProxy(raw)
		if err != nil {
			return nil, err
		}
		pool.proxies = append(pool.proxies, &proxyEntry{url: u})
	}
	return pool, nil
}

// Next returns the next proxy whose cooldown has passed.
func (p *ProxyPool) Next() (*url.URL, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for i := 0; i < len(p.proxies); i++ {
		index := (p.next + i) % len(p.proxies)
		entry := p.proxies[index]
		if entry.failures >= p.failureThreshold && now.Sub(entry.lastFailure) < p.cooldown {
			continue
		}
		p.next = (index + 1) % len(p.proxies)
		return entry.url, nil
	}
	return nil, ErrNoProxies
}

// ReportSuccess resets the failure count of u.
func (p *ProxyPool) ReportSuccess(u *url.URL) {
	p.update(u, func(e *proxyEntry) { e.failures = 0 })
}

// ReportFailure counts a failed request through u.
func (p *ProxyPool) ReportFailure(u *url.URL) {
	p.update(u, func(e *proxyEntry) {
		e.failures++
		e.lastFailure = p.now()
	})
}

func (p *ProxyPool) update(u *url.URL, fn func(*proxyEntry)) {
	if u == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.proxies {
		if e.url.String() == u.String() {
			fn(e)
			return
		}
	}
}

// proxyFromContext routes a request through the proxy chosen for it, falling
// back to the environment.
func proxyFromContext(req *http.Request) (*url.URL, error) {
	if u, ok := req.Context().Value(proxyKey{}).(*url.URL); ok {
		return u, nil
	}
	return http.ProxyFromEnvironment(req)
}

func withProxy(ctx context.Context, u *url.URL) context.Context {
	return context.WithValue(ctx, proxyKey{}, u)
}

// proxyFailed reports whether a response status points at the proxy rather
// than the target.
func proxyFailed(statusCode int) bool {
	switch statusCode {
	case http.StatusForbidden, http.StatusProxyAuthRequired, http.StatusTooManyRequests:
		return true
	}
	return false
}
