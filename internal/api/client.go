// Package api provides the shared HTTP client for outbound calls
// (Telegram, translation).
//
// All callers share one connection pool so keep-alive connections are
// reused across digests and alerts.
package api

import (
	"net/http"
	"sync"
	"time"
)

// Defaults used until Configure is called.
const (
	defaultTimeout  = 30 * time.Second
	defaultMaxConns = 10
)

var (
	mu           sync.RWMutex
	sharedClient = NewHTTPClient(defaultTimeout, defaultMaxConns)
)

// GetHTTPClient returns the shared HTTP client instance.
//
// Usage:
//
//	client := api.GetHTTPClient()
//	resp, err := client.Do(req)
func GetHTTPClient() *http.Client {
	mu.RLock()
	defer mu.RUnlock()
	return sharedClient
}

// Configure replaces the shared client with one using the given request
// timeout and per-host idle connection limit. Non-positive values keep
// the defaults.
func Configure(timeout time.Duration, maxConnsPerHost int) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxConnsPerHost <= 0 {
		maxConnsPerHost = defaultMaxConns
	}
	SetHTTPClient(NewHTTPClient(timeout, maxConnsPerHost))
}

// NewHTTPClient creates a new HTTP client with connection pooling.
//
// Parameters:
//   - timeout: Maximum time for a complete request (including reading response)
//   - maxConnsPerHost: Idle connections kept per host
//
// Returns:
//   - *http.Client: Configured HTTP client
func NewHTTPClient(timeout time.Duration, maxConnsPerHost int) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        10 * maxConnsPerHost, // Total idle connections
			MaxIdleConnsPerHost: maxConnsPerHost,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
}

// SetHTTPClient overrides the shared client. Tests use it to point calls
// at an httptest server.
func SetHTTPClient(client *http.Client) {
	mu.Lock()
	defer mu.Unlock()
	sharedClient = client
}
