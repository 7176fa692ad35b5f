package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"civicmon/internal/analytics"
	"civicmon/internal/complaint"
	"civicmon/internal/errors"
)

// thresholdsFile mirrors analytics.Config. Pointer fields distinguish an
// absent key from an explicit zero so only keys present in the file
// override the base configuration.
type thresholdsFile struct {
	BaselineDays   map[string]float64 `yaml:"baseline_days"`
	DampingFactors map[string]float64 `yaml:"damping_factors"`

	GridCellDegrees   *float64                  `yaml:"grid_cell_degrees"`
	HotspotWindowDays *int                      `yaml:"hotspot_window_days"`
	HotspotCutoffs    *analytics.HotspotCutoffs `yaml:"hotspot_cutoffs"`

	TrendClamp          *float64 `yaml:"trend_clamp"`
	ConfidenceMin       *float64 `yaml:"confidence_min"`
	ConfidenceMax       *float64 `yaml:"confidence_max"`
	ConfidenceCVPenalty *float64 `yaml:"confidence_cv_penalty"`
	ConfidenceMonths    *int     `yaml:"confidence_months"`
	SeasonalPeakIndex   *float64 `yaml:"seasonal_peak_index"`
	SeasonalLowIndex    *float64 `yaml:"seasonal_low_index"`

	DelayWeights       *analytics.DelayWeights `yaml:"delay_weights"`
	DepartmentCapacity *int                    `yaml:"department_capacity"`
	EngagementVotes    *int                    `yaml:"engagement_votes"`
	ReasonThreshold    *float64                `yaml:"reason_threshold"`
	RiskMediumCutoff   *int                    `yaml:"risk_medium_cutoff"`
	RiskHighCutoff     *int                    `yaml:"risk_high_cutoff"`

	OverloadOpenThreshold *int `yaml:"overload_open_threshold"`
	MinForecastRecords    *int `yaml:"min_forecast_records"`
	TopHotspots           *int `yaml:"top_hotspots"`
}

// LoadThresholds reads a YAML thresholds file and applies it on top of base.
//
// Unknown keys are rejected so a typo cannot silently leave a default in
// place. Category keys accept the same synonyms as complaint data
// ("road", "garbage", ...). The merged configuration is validated.
//
// Returns:
//   - analytics.Config: base with the file's keys applied
//   - error: *errors.ConfigError on read, parse or validation failure
func LoadThresholds(path string, base analytics.Config) (analytics.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, errors.NewConfigError("THRESHOLDS_FILE", "failed to read "+path, err)
	}
	return ParseThresholds(data, base)
}

// ParseThresholds is LoadThresholds over an in-memory document.
func ParseThresholds(data []byte, base analytics.Config) (analytics.Config, error) {
	var file thresholdsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return base, errors.NewConfigError("THRESHOLDS_FILE", "invalid YAML", err)
	}

	cfg := base.Clone()
	if err := mergeCategoryMap(cfg.BaselineDays, file.BaselineDays); err != nil {
		return base, errors.NewConfigError("THRESHOLDS_FILE", "baseline_days", err)
	}
	if err := mergeCategoryMap(cfg.DampingFactors, file.DampingFactors); err != nil {
		return base, errors.NewConfigError("THRESHOLDS_FILE", "damping_factors", err)
	}

	setFloat(&cfg.GridCellDegrees, file.GridCellDegrees)
	setInt(&cfg.HotspotWindowDays, file.HotspotWindowDays)
	if file.HotspotCutoffs != nil {
		cfg.HotspotCutoffs = *file.HotspotCutoffs
	}
	setFloat(&cfg.TrendClamp, file.TrendClamp)
	setFloat(&cfg.ConfidenceMin, file.ConfidenceMin)
	setFloat(&cfg.ConfidenceMax, file.ConfidenceMax)
	setFloat(&cfg.ConfidenceCVPenalty, file.ConfidenceCVPenalty)
	setInt(&cfg.ConfidenceMonths, file.ConfidenceMonths)
	setFloat(&cfg.SeasonalPeakIndex, file.SeasonalPeakIndex)
	setFloat(&cfg.SeasonalLowIndex, file.SeasonalLowIndex)
	if file.DelayWeights != nil {
		cfg.DelayWeights = *file.DelayWeights
	}
	setInt(&cfg.DepartmentCapacity, file.DepartmentCapacity)
	setInt(&cfg.EngagementVotes, file.EngagementVotes)
	setFloat(&cfg.ReasonThreshold, file.ReasonThreshold)
	setInt(&cfg.RiskMediumCutoff, file.RiskMediumCutoff)
	setInt(&cfg.RiskHighCutoff, file.RiskHighCutoff)
	setInt(&cfg.OverloadOpenThreshold, file.OverloadOpenThreshold)
	setInt(&cfg.MinForecastRecords, file.MinForecastRecords)
	setInt(&cfg.TopHotspots, file.TopHotspots)

	if err := cfg.Validate(); err != nil {
		return base, errors.NewConfigError("THRESHOLDS_FILE", "rejected", err)
	}
	return cfg, nil
}

func mergeCategoryMap(dst map[complaint.Category]float64, src map[string]float64) error {
	for key, v := range src {
		cat := complaint.ParseCategory(key)
		if cat == complaint.CategoryOther && strings.ToLower(strings.TrimSpace(key)) != "other" {
			return fmt.Errorf("unknown category %q", key)
		}
		dst[cat] = v
	}
	return nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
