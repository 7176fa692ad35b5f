// Package app runs the refresh loop: fetch complaints, rebuild the
// dashboard, publish it and notify.
//
// Refresh flow:
//  1. Fetch from the configured source, retrying up to MAX_FETCH_RETRIES
//  2. Cache the records in the SQLite snapshot (unless SQLite is the source)
//  3. Build the dashboard at the injected clock's now
//  4. Localize delay reasons (optional)
//  5. Publish to the health monitor / API
//  6. Write the PNG report and send the Telegram digest (optional)
//
// A refresh that still fails after its retries updates the monitor and
// sends a critical alert; the previous snapshot keeps being served.
package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"civicmon/internal/analytics"
	"civicmon/internal/complaint"
	"civicmon/internal/config"
	"civicmon/internal/dashboard"
	"civicmon/internal/health"
	"civicmon/internal/source"
	"civicmon/internal/storage"
	"civicmon/internal/summary"
	"civicmon/internal/telegram"
	"civicmon/internal/translate"
	"civicmon/internal/watch"
)

const separator = "═══════════════════════════════════════════════════════════"

// Deps are the collaborators of an App. Only Source and Monitor are
// required; nil Store, Telegram or Localizer disable their step.
type Deps struct {
	Source    source.Source
	Store     *storage.Store
	Monitor   *health.Monitor
	Telegram  *telegram.Client
	Localizer *translate.Localizer
	// Clock supplies "now" for every computation; defaults to UTC wall time.
	Clock func() time.Time
}

// App owns the refresh loop.
type App struct {
	cfg       *config.Config
	source    source.Source
	store     *storage.Store
	monitor   *health.Monitor
	tg        *telegram.Client
	localizer *translate.Localizer
	clock     func() time.Time

	retryDelay time.Duration
	refreshNow chan struct{}

	mu         sync.RWMutex
	thresholds analytics.Config
}

// New creates an App using thresholds as the initial analytics config.
func New(cfg *config.Config, thresholds analytics.Config, deps Deps) *App {
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &App{
		cfg:        cfg,
		source:     deps.Source,
		store:      deps.Store,
		monitor:    deps.Monitor,
		tg:         deps.Telegram,
		localizer:  deps.Localizer,
		clock:      clock,
		retryDelay: 5 * time.Second,
		refreshNow: make(chan struct{}, 1),
		thresholds: thresholds.Clone(),
	}
}

// Thresholds returns a copy of the analytics config in use.
func (a *App) Thresholds() analytics.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.thresholds.Clone()
}

// SetThresholds swaps the analytics config and schedules a refresh. A
// refresh already running keeps the config it started with.
func (a *App) SetThresholds(cfg analytics.Config) {
	a.mu.Lock()
	a.thresholds = cfg.Clone()
	a.mu.Unlock()

	select {
	case a.refreshNow <- struct{}{}:
	default:
	}
}

// Run serves the API and refreshes until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	health.StartServer(ctx, a.monitor, a.cfg.HealthCheckPort)

	if a.cfg.ThresholdsFile != "" && a.cfg.WatchThresholds {
		w := watch.New(a.cfg.ThresholdsFile, analytics.DefaultConfig(), a.SetThresholds)
		if err := w.Start(ctx); err != nil {
			log.Printf("⚠️  Threshold hot reload disabled: %v", err)
		}
	}

	a.refreshLogged(ctx)

	log.Printf("⏰ Starting refresh loop - will refresh every %v...", a.cfg.RefreshInterval)
	log.Println(separator)

	ticker := time.NewTicker(a.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("🛑 Shutting down refresh loop")
			return nil
		case <-ticker.C:
			a.refreshLogged(ctx)
		case <-a.refreshNow:
			log.Println("🔄 Thresholds changed, refreshing now")
			a.refreshLogged(ctx)
		}
	}
}

func (a *App) refreshLogged(ctx context.Context) {
	if _, err := a.Refresh(ctx); err != nil {
		log.Println("⚠️  Refresh failed:", err)
	}
	log.Println(separator)
}

// Refresh performs one complete refresh and returns the published
// dashboard.
func (a *App) Refresh(ctx context.Context) (*dashboard.Dashboard, error) {
	runID := uuid.NewString()
	now := a.clock()
	log.Printf("📬 Refresh %s from %s source", runID, a.source.Name())
	log.Println("⏰ Time:", now.Format("2006-01-02 15:04:05"))

	records, err := a.fetchWithRetry(ctx)
	if err != nil {
		a.monitor.RecordFailure(runID, err)
		if ctx.Err() == nil {
			if alertErr := a.tg.SendCriticalAlert(ctx, "Fetch Failure", err.Error(), a.cfg.MaxFetchRetries+1, now); alertErr != nil {
				log.Println("⚠️  Failed to send Telegram alert:", alertErr)
			}
		}
		return nil, err
	}
	log.Printf("  ✓ Fetched %d complaints", len(records))

	a.cache(ctx, records)

	d, err := dashboard.Build(ctx, records, now, a.Thresholds())
	if err != nil {
		a.monitor.RecordFailure(runID, err)
		return nil, err
	}

	if a.localizer != nil {
		localized, err := a.localizer.LocalizeReasons(ctx, d.DelayRisks)
		if err != nil {
			log.Printf("  ⚠️  Keeping English reasons: %v", err)
		}
		d.DelayRisks = localized
	}

	a.monitor.Publish(runID, d)
	log.Printf("📊 Dashboard published: %d pending, %d high-risk, %d hotspots",
		d.Headline.Pending, d.Summary.HighRiskComplaints, len(d.Hotspots))

	a.notify(ctx, runID, d)
	return d, nil
}

// fetchWithRetry tries the source MaxFetchRetries+1 times, each attempt
// bounded by FetchTimeout, backing off linearly between attempts.
func (a *App) fetchWithRetry(ctx context.Context) ([]complaint.Record, error) {
	attempts := a.cfg.MaxFetchRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		records, err := a.fetchOnce(ctx)
		if err == nil {
			return records, nil
		}

		lastErr = err
		log.Printf("  ⚠️  Fetch attempt %d/%d failed: %v", attempt, attempts, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < attempts {
			delay := time.Duration(attempt) * a.retryDelay
			log.Printf("  ⏳ Retrying in %v...", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil, fmt.Errorf("fetch failed after %d attempts: %w", attempts, lastErr)
}

func (a *App) fetchOnce(ctx context.Context) ([]complaint.Record, error) {
	if a.cfg.FetchTimeout <= 0 {
		return a.source.Fetch(ctx)
	}
	fetchCtx, cancel := context.WithTimeout(ctx, a.cfg.FetchTimeout)
	defer cancel()
	return a.source.Fetch(fetchCtx)
}

// cache stores a remote snapshot locally. Failures are logged only: the
// dashboard is built from the fetched records either way.
func (a *App) cache(ctx context.Context, records []complaint.Record) {
	if a.store == nil || a.source.Name() == config.SourceSQLite || len(records) == 0 {
		return
	}
	n, err := a.store.UpsertComplaints(ctx, records)
	if err != nil {
		log.Printf("  ⚠️  Snapshot not cached: %v", err)
		return
	}
	log.Printf("  ✓ Cached %d complaints in %s", n, a.cfg.SQLitePath)
}

// notify writes the PNG report and sends the Telegram digest. Failures are
// logged only.
func (a *App) notify(ctx context.Context, runID string, d *dashboard.Dashboard) {
	var report []byte
	if a.cfg.ReportImagePath != "" && len(d.DelayRisks) > 0 {
		data, err := summary.WriteDelayReport(a.cfg.ReportImagePath, d)
		if err != nil {
			log.Printf("  ⚠️  Report image not written: %v", err)
		} else {
			log.Printf("  ✓ Report image written to %s", a.cfg.ReportImagePath)
			report = data
		}
	}

	if !a.cfg.DigestEnabled {
		return
	}
	if err := a.tg.SendDigest(ctx, d, runID); err != nil {
		log.Printf("  ⚠️  %v", err)
	}
	if report != nil {
		caption := "Delay risk · " + d.GeneratedAt.Format("02 Jan 2006 15:04")
		if err := a.tg.SendReport(ctx, report, caption); err != nil {
			log.Printf("  ⚠️  %v", err)
		}
	}
}
