// Package analytics implements the predictive layer of the complaint
// dashboard: hotspot prediction, category forecasting, delay-risk scoring,
// department load aggregation and the dashboard rollups built on them.
//
// Every exported model is a pure function of (records, now, Config). None of
// them read the clock, touch the network or disk, or keep state between
// calls, so callers may run them concurrently over the same slice and get
// identical output for identical input.
package analytics

import (
	"fmt"
	"math"

	"civicmon/internal/complaint"
)

// DelayWeights are the factor weights of the delay-risk score. They must
// sum to 1 so the score stays within [0, 100].
type DelayWeights struct {
	Age        float64 `yaml:"age"`
	Load       float64 `yaml:"load"`
	Engagement float64 `yaml:"engagement"`
}

// HotspotCutoffs are the weighted-score thresholds for hotspot levels.
// A zone scoring below Medium is "low".
type HotspotCutoffs struct {
	Critical float64 `yaml:"critical"`
	High     float64 `yaml:"high"`
	Medium   float64 `yaml:"medium"`
}

// Config holds every tunable of the analytics engine.
//
// The defaults were chosen empirically; they are tuning parameters, not
// business rules. Tests assert against DefaultConfig rather than literals.
type Config struct {
	// Expected resolution time per category, in days.
	BaselineDays map[complaint.Category]float64

	// Hotspot grid cell edge in decimal degrees (0.01 ≈ 1.1 km).
	GridCellDegrees float64
	// Only complaints submitted within this many days score in a zone.
	HotspotWindowDays int
	HotspotCutoffs    HotspotCutoffs

	// Multiplier applied to the raw month-over-month trend per category.
	// Volatile categories get smaller factors.
	DampingFactors map[complaint.Category]float64
	// The damped trend is clamped to [-TrendClamp, +TrendClamp].
	TrendClamp float64
	// Forecast confidence = ConfidenceMax - ConfidenceCVPenalty*CV, clamped.
	ConfidenceMin       float64
	ConfidenceMax       float64
	ConfidenceCVPenalty float64
	ConfidenceMonths    int

	SeasonalPeakIndex float64
	SeasonalLowIndex  float64

	DelayWeights DelayWeights
	// Open complaints a department can absorb before the load factor saturates.
	DepartmentCapacity int
	// Votes at which the low-engagement factor reaches zero.
	EngagementVotes int
	// Normalized factor value at or above which a reason string is emitted.
	ReasonThreshold  float64
	RiskMediumCutoff int
	RiskHighCutoff   int

	// A department with more open complaints than this is overloaded.
	OverloadOpenThreshold int

	// Minimum record count before the dashboard invokes the forecaster.
	MinForecastRecords int
	// Number of hotspots the dashboard keeps.
	TopHotspots int
}

// DefaultConfig returns the documented default tuning.
func DefaultConfig() Config {
	return Config{
		BaselineDays: map[complaint.Category]float64{
			complaint.CategoryRoads:        7,
			complaint.CategoryWaste:        3,
			complaint.CategoryWater:        5,
			complaint.CategoryStreetlights: 4,
			complaint.CategorySewage:       6,
			complaint.CategoryOther:        7,
		},
		GridCellDegrees:   0.01,
		HotspotWindowDays: 90,
		HotspotCutoffs:    HotspotCutoffs{Critical: 15, High: 8, Medium: 4},
		DampingFactors: map[complaint.Category]float64{
			complaint.CategoryRoads:        0.8,
			complaint.CategoryWaste:        0.9,
			complaint.CategoryWater:        0.7,
			complaint.CategoryStreetlights: 0.85,
			complaint.CategorySewage:       0.75,
			complaint.CategoryOther:        0.7,
		},
		TrendClamp:            1.0,
		ConfidenceMin:         60,
		ConfidenceMax:         95,
		ConfidenceCVPenalty:   50,
		ConfidenceMonths:      3,
		SeasonalPeakIndex:     1.25,
		SeasonalLowIndex:      0.75,
		DelayWeights:          DelayWeights{Age: 0.60, Load: 0.25, Engagement: 0.15},
		DepartmentCapacity:    15,
		EngagementVotes:       10,
		ReasonThreshold:       0.5,
		RiskMediumCutoff:      40,
		RiskHighCutoff:        70,
		OverloadOpenThreshold: 10,
		MinForecastRecords:    5,
		TopHotspots:           10,
	}
}

// Clone returns a deep copy so callers can override fields without
// mutating a shared configuration.
func (c Config) Clone() Config {
	out := c
	out.BaselineDays = make(map[complaint.Category]float64, len(c.BaselineDays))
	for k, v := range c.BaselineDays {
		out.BaselineDays[k] = v
	}
	out.DampingFactors = make(map[complaint.Category]float64, len(c.DampingFactors))
	for k, v := range c.DampingFactors {
		out.DampingFactors[k] = v
	}
	return out
}

// Validate checks that the configuration is internally consistent.
//
// Returns:
//   - error: Description of the first violated rule, nil if valid
func (c Config) Validate() error {
	for _, cat := range complaint.Categories() {
		if c.baseline(cat) <= 0 {
			return fmt.Errorf("baseline days for %s must be positive", cat)
		}
	}
	if c.GridCellDegrees <= 0 {
		return fmt.Errorf("grid cell size must be positive, got %v", c.GridCellDegrees)
	}
	if c.HotspotWindowDays <= 0 {
		return fmt.Errorf("hotspot window must be positive, got %d", c.HotspotWindowDays)
	}
	hc := c.HotspotCutoffs
	if !(hc.Medium > 0 && hc.Medium <= hc.High && hc.High <= hc.Critical) {
		return fmt.Errorf("hotspot cutoffs must satisfy 0 < medium <= high <= critical, got %+v", hc)
	}
	w := c.DelayWeights
	if w.Age < 0 || w.Load < 0 || w.Engagement < 0 {
		return fmt.Errorf("delay weights must be non-negative, got %+v", w)
	}
	if sum := w.Age + w.Load + w.Engagement; math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("delay weights must sum to 1, got %v", sum)
	}
	if c.DepartmentCapacity <= 0 {
		return fmt.Errorf("department capacity must be positive, got %d", c.DepartmentCapacity)
	}
	if c.EngagementVotes <= 0 {
		return fmt.Errorf("engagement votes must be positive, got %d", c.EngagementVotes)
	}
	if !(c.RiskMediumCutoff > 0 && c.RiskMediumCutoff < c.RiskHighCutoff && c.RiskHighCutoff <= 100) {
		return fmt.Errorf("risk cutoffs must satisfy 0 < medium < high <= 100, got %d/%d", c.RiskMediumCutoff, c.RiskHighCutoff)
	}
	if c.TrendClamp <= 0 {
		return fmt.Errorf("trend clamp must be positive, got %v", c.TrendClamp)
	}
	if c.ConfidenceMin > c.ConfidenceMax {
		return fmt.Errorf("confidence range inverted: %v > %v", c.ConfidenceMin, c.ConfidenceMax)
	}
	if c.ConfidenceMonths < 2 {
		return fmt.Errorf("confidence months must be at least 2, got %d", c.ConfidenceMonths)
	}
	if c.SeasonalLowIndex >= c.SeasonalPeakIndex {
		return fmt.Errorf("seasonal low index must be below peak index")
	}
	if c.OverloadOpenThreshold < 0 {
		return fmt.Errorf("overload threshold must not be negative")
	}
	return nil
}

func (c Config) baseline(cat complaint.Category) float64 {
	if v, ok := c.BaselineDays[cat]; ok {
		return v
	}
	return c.BaselineDays[complaint.CategoryOther]
}

func (c Config) damping(cat complaint.Category) float64 {
	if v, ok := c.DampingFactors[cat]; ok {
		return v
	}
	return 1
}
