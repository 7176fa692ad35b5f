// Package health provides the health check endpoint and the read-only
// dashboard API.
//
// This package implements:
//   - Refresh status tracking (last run, result, run id)
//   - The published dashboard snapshot
//   - HTTP endpoints serving both as JSON
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"civicmon/internal/analytics"
	"civicmon/internal/dashboard"
)

// Health states reported by /health.
const (
	StatusStarting  = "starting"
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"  // Last refresh failed, an older snapshot is served
	StatusUnhealthy = "unhealthy" // Last refresh failed and nothing was ever published
)

// Status represents the application health status.
//
// Fields:
//   - Status: One of starting, healthy, degraded, unhealthy
//   - Uptime: How long the application has been running
//   - LastRefreshTime: When the last refresh finished
//   - LastRefreshStatus: "success" or the error message
//   - LastRunID: Id of the last refresh, for log correlation
//   - ConsecutiveFailures: Failed refreshes since the last success
//   - SnapshotTime: GeneratedAt of the published dashboard
type Status struct {
	Status              string `json:"status"`
	Uptime              string `json:"uptime"`
	LastRefreshTime     string `json:"last_refresh_time,omitempty"`
	LastRefreshStatus   string `json:"last_refresh_status"`
	LastRunID           string `json:"last_run_id,omitempty"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	SnapshotTime        string `json:"snapshot_time,omitempty"`
}

// Monitor tracks refresh results and holds the published snapshot.
//
// Thread-safety:
//   - All fields are protected by RWMutex
//   - The refresh loop writes; HTTP handlers read
type Monitor struct {
	mu                  sync.RWMutex
	startTime           time.Time
	lastRefreshTime     time.Time
	lastRefreshStatus   string
	lastRunID           string
	consecutiveFailures int
	snapshot            *dashboard.Dashboard
}

// NewMonitor creates a new health monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		startTime:         time.Now(),
		lastRefreshStatus: "not started",
	}
}

// Publish records a successful refresh and swaps in its snapshot.
func (m *Monitor) Publish(runID string, d *dashboard.Dashboard) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRefreshTime = time.Now()
	m.lastRefreshStatus = "success"
	m.lastRunID = runID
	m.consecutiveFailures = 0
	m.snapshot = d
}

// RecordFailure records a failed refresh. The previous snapshot stays
// published.
func (m *Monitor) RecordFailure(runID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRefreshTime = time.Now()
	m.lastRefreshStatus = "error: " + err.Error()
	m.lastRunID = runID
	m.consecutiveFailures++
}

// Snapshot returns the published dashboard, or nil before the first
// successful refresh.
func (m *Monitor) Snapshot() *dashboard.Dashboard {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// GetStatus returns the current health status.
func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Status{
		Uptime:              time.Since(m.startTime).Round(time.Second).String(),
		LastRefreshStatus:   m.lastRefreshStatus,
		LastRunID:           m.lastRunID,
		ConsecutiveFailures: m.consecutiveFailures,
	}
	if !m.lastRefreshTime.IsZero() {
		s.LastRefreshTime = m.lastRefreshTime.Format("2006-01-02 15:04:05")
	}
	if m.snapshot != nil {
		s.SnapshotTime = m.snapshot.GeneratedAt.Format(time.RFC3339)
	}

	switch {
	case m.lastRefreshTime.IsZero():
		s.Status = StatusStarting
	case m.consecutiveFailures == 0:
		s.Status = StatusHealthy
	case m.snapshot != nil:
		s.Status = StatusDegraded
	default:
		s.Status = StatusUnhealthy
	}
	return s
}

// Handler returns the HTTP routes.
//
// Endpoints:
//   - GET /health: Refresh status; 503 while unhealthy
//   - GET /api/dashboard: The whole snapshot
//   - GET /api/hotspots: Hotspot zones (?limit=N)
//   - GET /api/forecasts: Forecasts and seasonal outlook
//   - GET /api/delay-risks: Scored pending complaints (?level=high&limit=N)
//   - GET /api/departments: Department load
//
// Every /api endpoint answers 503 until the first snapshot is published.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status := m.GetStatus()
		code := http.StatusOK
		if status.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	})

	mux.HandleFunc("GET /api/dashboard", m.withSnapshot(func(d *dashboard.Dashboard, r *http.Request) any {
		return d
	}))
	mux.HandleFunc("GET /api/hotspots", m.withSnapshot(func(d *dashboard.Dashboard, r *http.Request) any {
		return limit(d.Hotspots, r)
	}))
	mux.HandleFunc("GET /api/forecasts", m.withSnapshot(func(d *dashboard.Dashboard, r *http.Request) any {
		return struct {
			InsufficientData bool                           `json:"insufficientData"`
			Forecasts        []analytics.CategoryForecast   `json:"forecasts"`
			Seasonal         []analytics.SeasonalPrediction `json:"seasonal"`
		}{d.InsufficientForecastData, d.Forecasts, d.Seasonal}
	}))
	mux.HandleFunc("GET /api/delay-risks", m.withSnapshot(func(d *dashboard.Dashboard, r *http.Request) any {
		risks := d.DelayRisks
		if level := r.URL.Query().Get("level"); level != "" {
			filtered := make([]analytics.DelayRisk, 0, len(risks))
			for _, dr := range risks {
				if string(dr.RiskLevel) == level {
					filtered = append(filtered, dr)
				}
			}
			risks = filtered
		}
		return struct {
			Summary analytics.DelayPredictionSummary `json:"summary"`
			Risks   []analytics.DelayRisk            `json:"risks"`
		}{d.Summary, limit(risks, r)}
	}))
	mux.HandleFunc("GET /api/departments", m.withSnapshot(func(d *dashboard.Dashboard, r *http.Request) any {
		return d.Departments
	}))

	return mux
}

// withSnapshot serves the projection of the published snapshot, or 503
// before there is one.
func (m *Monitor) withSnapshot(project func(d *dashboard.Dashboard, r *http.Request) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d := m.Snapshot()
		if d == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "dashboard not ready"})
			return
		}
		writeJSON(w, http.StatusOK, project(d, r))
	}
}

// limit applies a positive ?limit=N query parameter.
func limit[T any](items []T, r *http.Request) []T {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 || n >= len(items) {
		return items
	}
	return items[:n]
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("  ⚠️  Failed to encode response: %v", err)
	}
}

// StartServer starts the health and API server in a background goroutine.
// The server shuts down gracefully when ctx is cancelled.
//
// Parameters:
//   - ctx: Controls the server lifetime
//   - monitor: Health monitor to serve
//   - port: Port to listen on (e.g., "8080")
func StartServer(ctx context.Context, monitor *Monitor, port string) *http.Server {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           monitor.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("✓ Health check server started on :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("⚠️  Health check server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️  Health check server shutdown error: %v", err)
		}
	}()
	return srv
}
