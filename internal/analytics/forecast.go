package analytics

import (
	"fmt"
	"math"
	"time"

	"civicmon/internal/complaint"
)

// CategoryForecast is the projected complaint volume of one category for
// the month containing now, based on the two most recent complete months.
type CategoryForecast struct {
	Category complaint.Category `json:"category"`
	// Period is the projected month, "YYYY-MM".
	// Current and Previous are the last two complete months before it.
	Period       string  `json:"period"`
	Current      int     `json:"current"`
	Previous     int     `json:"previous"`
	TrendPercent float64 `json:"trendPercent"`
	Projected    int     `json:"projected"`
	Confidence   int     `json:"confidence"`
	Direction    string  `json:"direction"`
}

// SeasonalPrediction relates the projected month to the category's
// historical seasonality.
type SeasonalPrediction struct {
	Category complaint.Category `json:"category"`
	Period   string             `json:"period"`
	Index    float64            `json:"seasonalIndex"`
	Label    string             `json:"label"`
	Expected int                `json:"expected"`
}

// monthIndex numbers UTC calendar months consecutively.
func monthIndex(t time.Time) int {
	t = t.UTC()
	return t.Year()*12 + int(t.Month()) - 1
}

func monthLabel(idx int) string {
	return fmt.Sprintf("%04d-%02d", idx/12, idx%12+1)
}

// monthlyCounts groups complaints by category and submission month.
func monthlyCounts(records []complaint.Record) map[complaint.Category]map[int]int {
	counts := make(map[complaint.Category]map[int]int)
	for _, r := range records {
		byMonth, ok := counts[r.Category]
		if !ok {
			byMonth = make(map[int]int)
			counts[r.Category] = byMonth
		}
		byMonth[monthIndex(r.SubmittedAt)]++
	}
	return counts
}

// ForecastCategories projects the complaint count of the month containing
// now for each category.
//
// Assumes the caller has already checked that enough history exists
// (Config.MinForecastRecords); the model itself does not validate volume.
//
// Algorithm:
//  1. Count complaints per category per UTC calendar month
//  2. Month-over-month trend between the last complete month ("current")
//     and the month before it; an empty previous month yields trend 0.
//     The month in progress is never compared, so the result does not
//     depend on the day of the month
//  3. Damp the trend by the category's DampingFactors entry and clamp it
//     to ±TrendClamp
//  4. Projected = max(0, round(current × (1 + trend)))
//  5. Confidence falls with the coefficient of variation of the last
//     ConfidenceMonths complete monthly counts, clamped to the configured
//     range
//
// Categories without any historical complaint never appear. Output follows
// canonical category order.
func ForecastCategories(records []complaint.Record, now time.Time, cfg Config) []CategoryForecast {
	counts := monthlyCounts(records)
	target := monthIndex(now)
	last := target - 1

	out := make([]CategoryForecast, 0, len(counts))
	for _, cat := range complaint.Categories() {
		byMonth, ok := counts[cat]
		if !ok {
			continue
		}
		current := byMonth[last]
		previous := byMonth[last-1]

		rawTrend := 0.0
		if previous > 0 {
			rawTrend = float64(current-previous) / float64(previous)
		}
		trend := clamp(rawTrend*cfg.damping(cat), -cfg.TrendClamp, cfg.TrendClamp)
		projected := int(math.Max(0, math.Round(float64(current)*(1+trend))))

		out = append(out, CategoryForecast{
			Category:     cat,
			Period:       monthLabel(target),
			Current:      current,
			Previous:     previous,
			TrendPercent: round(trend*100, 1),
			Projected:    projected,
			Confidence:   forecastConfidence(byMonth, last, cfg),
			Direction:    direction(trend),
		})
	}
	return out
}

// forecastConfidence uses the ConfidenceMonths months ending at last.
func forecastConfidence(byMonth map[int]int, last int, cfg Config) int {
	values := make([]float64, 0, cfg.ConfidenceMonths)
	for i := cfg.ConfidenceMonths - 1; i >= 0; i-- {
		values = append(values, float64(byMonth[last-i]))
	}
	cv, ok := coefficientOfVariation(values)
	if !ok {
		return int(cfg.ConfidenceMin)
	}
	c := clamp(cfg.ConfidenceMax-cfg.ConfidenceCVPenalty*cv, cfg.ConfidenceMin, cfg.ConfidenceMax)
	return int(math.Round(c))
}

// SeasonalOutlook compares the projected month with the category's history
// for the same calendar month.
//
// index = mean count in that calendar month (over the observed span) /
// mean monthly count over the observed span. The span runs from the
// category's first complaint month to the last complete month; the month
// in progress is excluded like in ForecastCategories. A calendar month
// never covered by the span yields index 0.
func SeasonalOutlook(records []complaint.Record, now time.Time, cfg Config) []SeasonalPrediction {
	counts := monthlyCounts(records)
	target := monthIndex(now)
	last := target - 1
	targetMonth := target % 12

	projected := make(map[complaint.Category]int)
	for _, f := range ForecastCategories(records, now, cfg) {
		projected[f.Category] = f.Projected
	}

	out := make([]SeasonalPrediction, 0, len(counts))
	for _, cat := range complaint.Categories() {
		byMonth, ok := counts[cat]
		if !ok {
			continue
		}

		first := last
		for idx := range byMonth {
			if idx < first {
				first = idx
			}
		}

		var total, sameTotal, sameMonths int
		for idx := first; idx <= last; idx++ {
			total += byMonth[idx]
			if idx%12 == targetMonth {
				sameTotal += byMonth[idx]
				sameMonths++
			}
		}
		spanMonths := last - first + 1

		index := 0.0
		if sameMonths > 0 && total > 0 {
			overall := float64(total) / float64(spanMonths)
			index = round((float64(sameTotal)/float64(sameMonths))/overall, 2)
		}

		label := "normal"
		switch {
		case sameMonths == 0:
			label = "unobserved"
		case index >= cfg.SeasonalPeakIndex:
			label = "peak"
		case index <= cfg.SeasonalLowIndex:
			label = "low"
		}

		out = append(out, SeasonalPrediction{
			Category: cat,
			Period:   monthLabel(target),
			Index:    index,
			Label:    label,
			Expected: int(math.Round(float64(projected[cat]) * index)),
		})
	}
	return out
}
