package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"sync"

	"golang.org/x/time/rate"

	"civicmon/internal/auth"
	"civicmon/internal/browser"
	"civicmon/internal/complaint"
	"civicmon/internal/config"
	"civicmon/internal/errors"
)

// PortalSource reads complaints from the municipal web portal.
//
// The portal only answers its paged JSON API for a logged-in browser
// session, so requests are issued from inside a headless Chrome page.
//
// Flow:
//  1. Log in (once, then again whenever the session expires)
//  2. Fetch page 1 and read the page count from its metadata
//  3. Fetch the remaining pages through the worker pool, rate limited
//  4. Merge pages in order, dropping duplicate complaint ids
type PortalSource struct {
	apiURL   string
	maxPages int
	workers  int
	limiter  *rate.Limiter

	holder *browser.ContextHolder
	fetch  func(ctx context.Context, url string) ([]byte, error)
	login  func(ctx context.Context) error

	mu       sync.Mutex // Serializes fetches; guards loggedIn
	loggedIn bool
}

// NewPortalSource creates a portal source with its own browser. The
// browser is shut down by Close or when ctx is cancelled.
func NewPortalSource(ctx context.Context, cfg *config.Config) *PortalSource {
	holder := browser.NewContextHolder(ctx)
	creds := auth.Credentials{
		LoginURL: cfg.PortalLoginURL,
		Username: cfg.PortalUsername,
		Password: cfg.PortalPassword,
	}

	fetch := func(ctx context.Context, url string) ([]byte, error) {
		bctx, cancel := context.WithTimeout(holder.Get(), cfg.NavigationTimeout)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
		return browser.FetchJSON(bctx, url)
	}
	login := func(ctx context.Context) error {
		return auth.LoginWithRetry(ctx, holder, creds, auth.DefaultForm, cfg.MaxLoginRetries, cfg.LoginRetryDelay)
	}

	p := newPortalSource(cfg.PortalAPIURL, cfg.PortalMaxPages, cfg.WorkerPoolSize, cfg.PortalRateLimit, fetch, login)
	p.holder = holder
	return p
}

func newPortalSource(apiURL string, maxPages, workers int, perSecond float64, fetch func(context.Context, string) ([]byte, error), login func(context.Context) error) *PortalSource {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if maxPages < 1 {
		maxPages = 1
	}
	return &PortalSource{
		apiURL:   apiURL,
		maxPages: maxPages,
		workers:  workers,
		limiter:  rate.NewLimiter(limit, 1),
		fetch:    fetch,
		login:    login,
	}
}

func (p *PortalSource) Name() string { return config.SourcePortal }

// Close shuts the browser down.
func (p *PortalSource) Close() error {
	if p.holder != nil {
		p.holder.Cancel()
	}
	return nil
}

// Fetch returns every complaint listed by the portal, up to maxPages pages.
//
// A SessionExpiredError from any page triggers one fresh login and one
// full retry; a second expiry is returned to the caller.
func (p *PortalSource) Fetch(ctx context.Context) ([]complaint.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureLogin(ctx); err != nil {
		return nil, err
	}

	records, err := p.fetchAll(ctx)
	if errors.IsSessionExpired(err) {
		log.Println("  ⚠️  Portal session expired, logging in again...")
		p.loggedIn = false
		if err := p.ensureLogin(ctx); err != nil {
			return nil, err
		}
		records, err = p.fetchAll(ctx)
	}
	if err != nil {
		return nil, errors.NewFetchError(p.Name(), "failed to fetch complaint pages", err)
	}
	return records, nil
}

func (p *PortalSource) ensureLogin(ctx context.Context) error {
	if p.loggedIn {
		return nil
	}
	if err := p.login(ctx); err != nil {
		return errors.NewFetchError(p.Name(), "login failed", err)
	}
	p.loggedIn = true
	return nil
}

func (p *PortalSource) fetchAll(ctx context.Context) ([]complaint.Record, error) {
	log.Println("📄 Fetching portal page 1...")
	first := p.fetchPage(ctx, 1)
	if first.err != nil {
		return nil, first.err
	}

	pages := first.lastPage
	if pages > p.maxPages {
		log.Printf("🛑 Portal lists %d pages, limiting to %d", pages, p.maxPages)
		pages = p.maxPages
	}

	byPage := map[int][]complaint.Record{1: first.records}
	if pages > 1 {
		pool := newPagePool(ctx, p.workers, pages-1, p.fetchPage)
		for page := 2; page <= pages; page++ {
			pool.Submit(page)
		}
		pool.Close()

		var firstErr error
		for result := range pool.Results() {
			if result.err != nil {
				// Session expiry wins so the caller can re-login.
				if firstErr == nil || errors.IsSessionExpired(result.err) {
					firstErr = result.err
				}
				continue
			}
			byPage[result.page] = result.records
		}
		if firstErr != nil {
			return nil, firstErr
		}
	}

	seen := make(map[string]bool)
	records := []complaint.Record{}
	for page := 1; page <= pages; page++ {
		for _, r := range byPage[page] {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			records = append(records, r)
		}
	}
	log.Printf("🎉 Total complaints found across %d pages: %d", pages, len(records))
	return records, nil
}

// fetchPage waits for the rate limiter, then fetches and decodes one page.
func (p *PortalSource) fetchPage(ctx context.Context, page int) pageResult {
	if err := p.limiter.Wait(ctx); err != nil {
		return pageResult{page: page, err: err}
	}

	pageURL, err := PageURL(p.apiURL, page)
	if err != nil {
		return pageResult{page: page, err: err}
	}
	body, err := p.fetch(ctx, pageURL)
	if err != nil {
		return pageResult{page: page, err: err}
	}

	records, rowErrs := complaint.DecodeJSON(body)
	for _, rowErr := range rowErrs {
		log.Printf("  ⚠️  Page %d: skipping row: %v", page, rowErr)
	}
	return pageResult{page: page, records: records, lastPage: lastPage(body)}
}

// PageURL sets the page query parameter on the portal API URL.
func PageURL(apiURL string, page int) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("invalid portal api url: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// lastPage reads the page count from a paged response. Both the flat
// {"last_page": n} shape and the nested {"meta": {"last_page": n}} shape
// are understood; total_pages is accepted as a synonym. Anything else
// counts as a single page.
func lastPage(body []byte) int {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return 1
	}

	type pageMeta struct {
		LastPage   int `json:"last_page"`
		TotalPages int `json:"total_pages"`
	}
	var envelope struct {
		pageMeta
		Meta *pageMeta `json:"meta"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return 1
	}

	n := max(envelope.LastPage, envelope.TotalPages)
	if envelope.Meta != nil {
		n = max(n, envelope.Meta.LastPage, envelope.Meta.TotalPages)
	}
	return max(n, 1)
}
