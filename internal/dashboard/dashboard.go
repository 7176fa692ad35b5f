// Package dashboard assembles every analytics model into one snapshot.
package dashboard

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"civicmon/internal/analytics"
	"civicmon/internal/complaint"
)

// Dashboard is the complete snapshot served by the API and rendered by the
// report writers.
type Dashboard struct {
	GeneratedAt time.Time                        `json:"generatedAt"`
	Headline    analytics.HeadlineStats          `json:"headline"`
	Hotspots    []analytics.HotspotPrediction    `json:"hotspots"`
	Forecasts   []analytics.CategoryForecast     `json:"forecasts"`
	Seasonal    []analytics.SeasonalPrediction   `json:"seasonal"`
	Departments []analytics.DepartmentLoad       `json:"departments"`
	DelayRisks  []analytics.DelayRisk            `json:"delayRisks"`
	Summary     analytics.DelayPredictionSummary `json:"delaySummary"`
	Weekly      analytics.TrendSeries            `json:"weekly"`
	Categories  []analytics.CategoryTrend        `json:"categoryTrends"`

	// InsufficientForecastData is set instead of running the forecaster
	// when there are fewer records than Config.MinForecastRecords.
	InsufficientForecastData bool `json:"insufficientForecastData"`
	// Warnings lists data-quality defects found in the input.
	Warnings []string `json:"warnings"`
}

// Build runs the models over records at the injected instant now.
//
// The models are independent pure functions over the same immutable slice,
// so they run concurrently. Delay risk depends on the department snapshot
// and runs in the same goroutine after it.
//
// Returns:
//   - *Dashboard: The assembled snapshot
//   - error: Invalid configuration or a cancelled context
func Build(ctx context.Context, records []complaint.Record, now time.Time, cfg analytics.Config) (*Dashboard, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analytics config: %w", err)
	}

	d := &Dashboard{
		GeneratedAt:              now,
		InsufficientForecastData: len(records) < cfg.MinForecastRecords,
		Warnings:                 Inspect(records),
	}
	for _, w := range d.Warnings {
		log.Printf("  ⚠️  Data quality: %s", w)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		hotspots := analytics.PredictHotspots(records, now, cfg)
		if cfg.TopHotspots > 0 && len(hotspots) > cfg.TopHotspots {
			hotspots = hotspots[:cfg.TopHotspots]
		}
		d.Hotspots = hotspots
		return nil
	})

	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.InsufficientForecastData {
			d.Forecasts = []analytics.CategoryForecast{}
			d.Seasonal = []analytics.SeasonalPrediction{}
			return nil
		}
		d.Forecasts = analytics.ForecastCategories(records, now, cfg)
		d.Seasonal = analytics.SeasonalOutlook(records, now, cfg)
		return nil
	})

	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.Departments = analytics.AggregateDepartmentLoad(records, cfg)
		d.DelayRisks = analytics.ScoreDelayRisk(records, d.Departments, now, cfg)
		d.Summary = analytics.SummarizeDelays(d.DelayRisks, cfg)
		return nil
	})

	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.Headline = analytics.Headline(records, now, cfg)
		d.Weekly = analytics.WeeklyTrend(records, now)
		d.Categories = analytics.CategoryTrends(records, now)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

// Inspect reports records that violate the lifecycle's timestamp rules.
// The models tolerate all of them; the caller is expected to surface them.
func Inspect(records []complaint.Record) []string {
	warnings := make([]string, 0)
	for _, r := range records {
		switch {
		case r.Status.HasResolution() && r.ResolvedAt == nil:
			warnings = append(warnings, fmt.Sprintf("complaint %s is %s but has no resolved date", r.ID, r.Status))
		case r.Status == complaint.StatusPending && r.ResolvedAt != nil:
			warnings = append(warnings, fmt.Sprintf("complaint %s is pending but has a resolved date", r.ID))
		}
		if r.ResolvedAt != nil && r.ResolvedAt.Before(r.SubmittedAt) {
			warnings = append(warnings, fmt.Sprintf("complaint %s was resolved before it was submitted", r.ID))
		}
	}
	return warnings
}
