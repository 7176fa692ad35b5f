package analytics

import (
	"time"

	"civicmon/internal/complaint"
)

const week = 7 * day

// DelayPredictionSummary is the counter strip above the delay-risk table.
type DelayPredictionSummary struct {
	LikelyToDelayToday      int `json:"likelyToDelayToday"`
	ThisWeekPredictedDelays int `json:"thisWeekPredictedDelays"`
	HighRiskComplaints      int `json:"highRiskComplaints"`
}

// SummarizeDelays counts scored complaints by how soon they cross their
// category baseline. "Today" and "this week" are age buckets: a complaint
// counts when its age one or seven days from now reaches the baseline.
func SummarizeDelays(risks []DelayRisk, cfg Config) DelayPredictionSummary {
	var s DelayPredictionSummary
	for _, r := range risks {
		baseline := cfg.baseline(r.Category)
		if r.RiskOfDelay >= cfg.RiskHighCutoff {
			s.HighRiskComplaints++
			if float64(r.DaysPending+1) >= baseline {
				s.LikelyToDelayToday++
			}
		}
		if r.RiskOfDelay >= cfg.RiskMediumCutoff && float64(r.DaysPending+7) >= baseline {
			s.ThisWeekPredictedDelays++
		}
	}
	return s
}

// Trend compares the last seven days with the seven days before them.
type Trend struct {
	Last7Days     int     `json:"last7Days"`
	Prior7Days    int     `json:"prior7Days"`
	Delta         int     `json:"delta"`
	ChangePercent float64 `json:"changePercent"`
	Direction     string  `json:"direction"`
}

// TrendSeries holds the week-over-week trends of the dashboard cards.
type TrendSeries struct {
	Submitted Trend `json:"submitted"`
	Resolved  Trend `json:"resolved"`
}

// CategoryTrend is the submitted trend of one category.
type CategoryTrend struct {
	Category complaint.Category `json:"category"`
	Trend
}

func newTrend(last, prior int) Trend {
	delta := last - prior
	return Trend{
		Last7Days:     last,
		Prior7Days:    prior,
		Delta:         delta,
		ChangePercent: percentChange(last, prior),
		Direction:     direction(float64(delta)),
	}
}

// weekBucket returns 0 for (now-7d, now], 1 for (now-14d, now-7d] and -1
// for anything else, including future instants.
func weekBucket(t, now time.Time) int {
	if t.After(now) {
		return -1
	}
	switch {
	case t.After(now.Add(-week)):
		return 0
	case t.After(now.Add(-2 * week)):
		return 1
	default:
		return -1
	}
}

// WeeklyTrend builds the submitted and resolved week-over-week series.
// Resolutions are dated by ResolvedAt; records without one are never
// reported as recently resolved.
func WeeklyTrend(records []complaint.Record, now time.Time) TrendSeries {
	var submitted, resolved [2]int
	for _, r := range records {
		if b := weekBucket(r.SubmittedAt, now); b >= 0 {
			submitted[b]++
		}
		if r.Status.HasResolution() && r.ResolvedAt != nil {
			if b := weekBucket(*r.ResolvedAt, now); b >= 0 {
				resolved[b]++
			}
		}
	}
	return TrendSeries{
		Submitted: newTrend(submitted[0], submitted[1]),
		Resolved:  newTrend(resolved[0], resolved[1]),
	}
}

// CategoryTrends returns the submitted week-over-week trend for every
// category that has at least one complaint, in canonical order.
func CategoryTrends(records []complaint.Record, now time.Time) []CategoryTrend {
	seen := make(map[complaint.Category]bool)
	buckets := make(map[complaint.Category]*[2]int)
	for _, r := range records {
		seen[r.Category] = true
		b := weekBucket(r.SubmittedAt, now)
		if b < 0 {
			continue
		}
		counts, ok := buckets[r.Category]
		if !ok {
			counts = &[2]int{}
			buckets[r.Category] = counts
		}
		counts[b]++
	}

	out := make([]CategoryTrend, 0, len(seen))
	for _, cat := range complaint.Categories() {
		if !seen[cat] {
			continue
		}
		var last, prior int
		if counts, ok := buckets[cat]; ok {
			last, prior = counts[0], counts[1]
		}
		out = append(out, CategoryTrend{Category: cat, Trend: newTrend(last, prior)})
	}
	return out
}

// HeadlineStats are the top-of-page counters.
type HeadlineStats struct {
	Total             int     `json:"total"`
	Pending           int     `json:"pending"`
	Resolved          int     `json:"resolved"`
	Verified          int     `json:"verified"`
	Active            int     `json:"active"`
	Overdue           int     `json:"overdue"`
	ResolutionRate    float64 `json:"resolutionRate"`
	AvgResolutionDays float64 `json:"avgResolutionDays"`
	VerificationRate  float64 `json:"verificationRate"`
}

// Headline computes the headline counters.
//
// ResolutionRate is (resolved + verified) / total and VerificationRate is
// verified / (resolved + verified), both in percent. AvgResolutionDays
// averages over records with a usable resolution timestamp only.
func Headline(records []complaint.Record, now time.Time, cfg Config) HeadlineStats {
	var h HeadlineStats
	var days []float64
	for _, r := range records {
		h.Total++
		switch r.Status {
		case complaint.StatusPending:
			h.Pending++
		case complaint.StatusResolved:
			h.Resolved++
		case complaint.StatusVerified:
			h.Verified++
		}
		if IsOpen(r) {
			h.Active++
		}
		if IsOverdue(r, now, cfg.baseline(r.Category)) {
			h.Overdue++
		}
		if d, ok := resolutionDays(r); ok {
			days = append(days, d)
		}
	}
	closed := h.Resolved + h.Verified
	h.ResolutionRate = percent(closed, h.Total)
	h.VerificationRate = percent(h.Verified, closed)
	h.AvgResolutionDays = round(average(days), 1)
	return h
}
