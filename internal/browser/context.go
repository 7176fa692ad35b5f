// Package browser manages the headless Chrome session used by the portal
// complaint source.
//
// The municipal portal only serves its complaint API to a logged-in
// browser session, so API pages are requested from inside the page with
// fetch(): session cookies and CSRF headers come along for free.
//
// Key features:
//   - Thread-safe context holder shared by the page workers
//   - Browser restart for error recovery
//   - In-page JSON fetch that awaits the returned Promise
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"civicmon/internal/errors"
)

// ContextHolder provides thread-safe access to a browser context.
//
// Page workers read the context concurrently; a restart after a dead
// browser swaps it under the write lock.
type ContextHolder struct {
	mu     sync.RWMutex       // Protects ctx and cancel
	parent context.Context    // Parent of every browser context created
	ctx    context.Context    // Current browser context
	cancel context.CancelFunc // Function to cancel current context
}

// NewContextHolder creates a holder with a fresh browser context derived
// from parent. Cancelling parent shuts the browser down.
func NewContextHolder(parent context.Context) *ContextHolder {
	ctx, cancel := NewContext(parent)
	return &ContextHolder{
		parent: parent,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Get returns the current browser context.
func (h *ContextHolder) Get() context.Context {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ctx
}

// Restart cancels the current browser and starts a new one.
//
// Used when:
//   - The browser becomes unresponsive
//   - Login keeps failing on the current session
func (h *ContextHolder) Restart() context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()

	log.Println("  ⚠️  Restarting browser context...")
	if h.cancel != nil {
		h.cancel()
		log.Println("  ✓ Old browser context cancelled")
	}
	h.ctx, h.cancel = NewContext(h.parent)
	return h.ctx
}

// Cancel cancels the current browser context and cleans up resources.
//
// This should be called on application shutdown.
func (h *ContextHolder) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// NewContext creates a new Chrome browser context.
//
// Returns:
//   - context.Context: Browser context for automation
//   - context.CancelFunc: Function to cancel and cleanup
func NewContext(parent context.Context) (context.Context, context.CancelFunc) {
	log.Println("  → Creating new browser context...")

	ctx, cancel := chromedp.NewContext(parent, chromedp.WithLogf(log.Printf))

	log.Println("  ✓ Browser context created successfully")
	return ctx, cancel
}

// FetchResponse is what the in-page fetch() reports back.
type FetchResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        string `json:"body"`
}

// fetchScript requests url with the page's cookies. It never throws on an
// HTTP error status: the caller decides what a 401 or an HTML body means.
const fetchScript = `
(async function() {
	const response = await fetch(%q, {
		credentials: 'include',
		headers: { 'X-Requested-With': 'XMLHttpRequest', 'Accept': 'application/json' }
	});
	return JSON.stringify({
		status: response.status,
		contentType: response.headers.get('content-type') || '',
		body: await response.text()
	});
})()
`

// FetchJSON performs a GET from inside the logged-in page.
//
// The async/await pattern is crucial:
//   - fetch() returns a Promise
//   - WithAwaitPromise(true) makes ChromeDP wait for its resolution
//
// Returns:
//   - []byte: Response body
//   - error: *errors.SessionExpiredError when the portal answers 401/403
//     or serves HTML instead of JSON; a plain error otherwise
func FetchJSON(ctx context.Context, url string) ([]byte, error) {
	var raw string
	err := chromedp.Run(ctx,
		chromedp.Evaluate(fmt.Sprintf(fetchScript, url), &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("in-page fetch failed: %w", err)
	}

	var resp FetchResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("unexpected fetch envelope: %w", err)
	}
	return CheckResponse(resp)
}

// CheckResponse classifies a portal response.
func CheckResponse(resp FetchResponse) ([]byte, error) {
	switch {
	case resp.Status == 401 || resp.Status == 403 || resp.Status == 419:
		return nil, errors.NewSessionExpiredError(fmt.Sprintf("portal answered HTTP %d", resp.Status))
	case resp.Status >= 400:
		return nil, fmt.Errorf("portal answered HTTP %d", resp.Status)
	case looksLikeHTML(resp):
		// Expired sessions are redirected to the login form with 200 OK.
		return nil, errors.NewSessionExpiredError("portal served an HTML page instead of JSON")
	}
	return []byte(resp.Body), nil
}

func looksLikeHTML(resp FetchResponse) bool {
	if strings.HasPrefix(strings.ToLower(resp.ContentType), "text/html") {
		return true
	}
	return strings.HasPrefix(strings.TrimSpace(resp.Body), "<")
}
