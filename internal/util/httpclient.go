// Package util provides logging, prompting, HTTP sessions and small caches
// shared by the crawler packages.
package util

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// DefaultUserAgent mimics a desktop browser; several sources reject bare Go clients
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// httpClientConfig holds configuration for creating HTTP clients
type httpClientConfig struct {
	timeout             time.Duration
	maxIdleConns        int
	maxIdleConnsPerHost int
	idleConnTimeout     time.Duration
	tlsHandshakeTimeout time.Duration
	keepAlive           time.Duration
	dialTimeout         time.Duration
}

// sessionConfig is tuned for a handful of sequential requests per host
func sessionConfig(timeout time.Duration) httpClientConfig {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return httpClientConfig{
		timeout:             timeout,
		maxIdleConns:        20,
		maxIdleConnsPerHost: 4,
		idleConnTimeout:     60 * time.Second,
		tlsHandshakeTimeout: 5 * time.Second,
		keepAlive:           30 * time.Second,
		dialTimeout:         5 * time.Second,
	}
}

func createTransport(cfg httpClientConfig) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.dialTimeout,
			KeepAlive: cfg.keepAlive,
		}).DialContext,
		MaxIdleConns:        cfg.maxIdleConns,
		MaxIdleConnsPerHost: cfg.maxIdleConnsPerHost,
		IdleConnTimeout:     cfg.idleConnTimeout,
		TLSHandshakeTimeout: cfg.tlsHandshakeTimeout,
		ForceAttemptHTTP2:   true,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
}

// NewSession returns an HTTP client with its own cookie jar. Every source
// adapter owns one session so cookies picked up during a warm-up request are
// replayed on later requests to the same site and never leak across sites.
func NewSession(timeout time.Duration) *http.Client {
	cfg := sessionConfig(timeout)
	// cookiejar.New never returns an error
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &http.Client{
		Transport: createTransport(cfg),
		Timeout:   cfg.timeout,
		Jar:       jar,
	}
}

// CloseSession releases idle connections held by a session
func CloseSession(c *http.Client) {
	if c == nil {
		return
	}
	c.CloseIdleConnections()
}

// TTLCache is a small in-memory cache whose entries expire after maxAge.
// When full, the oldest entry is evicted.
type TTLCache[V any] struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry[V]
	maxAge  time.Duration
	maxSize int
	now     func() time.Time
}

type cacheEntry[V any] struct {
	value     V
	timestamp time.Time
}

// NewTTLCache creates a cache with the given max age and size
func NewTTLCache[V any](maxAge time.Duration, maxSize int) *TTLCache[V] {
	if maxSize <= 0 {
		maxSize = 256
	}
	return &TTLCache[V]{
		entries: make(map[string]cacheEntry[V], maxSize),
		maxAge:  maxAge,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get retrieves a value if it exists and has not expired
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero V
	entry, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.maxAge > 0 && c.now().Sub(entry.timestamp) > c.maxAge {
		return zero, false
	}
	return entry.value, true
}

// Set stores a value, evicting expired entries first and then the oldest one
// if the cache is still full.
func (c *TTLCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictLocked(now)
	}
	c.entries[key] = cacheEntry[V]{value: value, timestamp: now}
}

// Len returns the number of stored entries, expired or not
func (c *TTLCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *TTLCache[V]) evictLocked(now time.Time) {
	if c.maxAge > 0 {
		for k, v := range c.entries {
			if now.Sub(v.timestamp) > c.maxAge {
				delete(c.entries, k)
			}
		}
		if len(c.entries) < c.maxSize {
			return
		}
	}

	var oldestKey string
	var oldestTime time.Time
	first := true
	for k, v := range c.entries {
		if first || v.timestamp.Before(oldestTime) {
			oldestKey = k
			oldestTime = v.timestamp
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// RefererFor returns the Referer to send when fetching rawURL. Bilibili's
// image CDN refuses hotlinks without a bilibili.com referer.
func RefererFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if strings.HasSuffix(host, "hdslb.com") || strings.HasSuffix(host, "bilibili.com") {
		return "https://www.bilibili.com/"
	}
	return u.Scheme + "://" + u.Host + "/"
}

// SleepContext pauses for d or until ctx is done, whichever comes first
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
