package analytics

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"time"

	"civicmon/internal/complaint"
)

// RiskLevel is the hotspot severity bucket.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// latLngPattern matches a strict "lat,lng" decimal-degree literal.
var latLngPattern = regexp.MustCompile(`^\s*(-?\d{1,3}(?:\.\d+)?)\s*,\s*(-?\d{1,3}(?:\.\d+)?)\s*$`)

// CategoryCount is one entry of a zone's category mix.
type CategoryCount struct {
	Category complaint.Category `json:"category"`
	Count    int                `json:"count"`
}

// HotspotPrediction describes one grid zone.
type HotspotPrediction struct {
	ZoneID           string                `json:"zoneId"`
	Centroid         complaint.Coordinates `json:"centroid"`
	Count            int                   `json:"count"`
	Score            float64               `json:"score"`
	Level            RiskLevel             `json:"riskLevel"`
	CategoryMix      []CategoryCount       `json:"categoryMix"`
	DominantCategory complaint.Category    `json:"dominantCategory"`
}

// ResolveCoordinates picks a coordinate for a complaint.
//
// Fallback chain:
//  1. A strict "lat,lng" literal in Location that is within range
//  2. The explicit Position when it is within range
//  3. None: the complaint is left out of spatial clustering only
func ResolveCoordinates(r complaint.Record) (complaint.Coordinates, bool) {
	if m := latLngPattern.FindStringSubmatch(r.Location); m != nil {
		lat, errLat := strconv.ParseFloat(m[1], 64)
		lng, errLng := strconv.ParseFloat(m[2], 64)
		if errLat == nil && errLng == nil {
			pt := complaint.Coordinates{Lat: lat, Lng: lng}
			if pt.Valid() {
				return pt, true
			}
		}
	}
	if r.Position != nil && r.Position.Valid() {
		return *r.Position, true
	}
	return complaint.Coordinates{}, false
}

// gridEpsilon absorbs representation error so 21.17/0.01 lands in cell
// 2117 rather than 2116.
const gridEpsilon = 1e-9

// zoneID buckets a point into a fixed-size grid cell "Z{row}_{col}".
func zoneID(pt complaint.Coordinates, cell float64) string {
	row := int64(math.Floor(pt.Lat/cell + gridEpsilon))
	col := int64(math.Floor(pt.Lng/cell + gridEpsilon))
	return fmt.Sprintf("Z%d_%d", row, col)
}

// voteWeight is log-damped so zero-vote complaints still count while
// heavily voted ones dominate without scaling linearly.
func voteWeight(votes int) float64 {
	if votes < 0 {
		votes = 0
	}
	return math.Log(float64(votes)+1) + 1
}

// ClassifyHotspot maps a weighted score onto a level using the cutoffs.
func ClassifyHotspot(score float64, cutoffs HotspotCutoffs) RiskLevel {
	switch {
	case score >= cutoffs.Critical:
		return RiskCritical
	case score >= cutoffs.High:
		return RiskHigh
	case score >= cutoffs.Medium:
		return RiskMedium
	default:
		return RiskLow
	}
}

type zoneAccumulator struct {
	id         string
	count      int
	score      float64
	sumLat     float64
	sumLng     float64
	categories map[complaint.Category]int
}

// PredictHotspots clusters complaints into grid zones and scores them.
//
// Only complaints submitted within the trailing HotspotWindowDays before now
// score. Zones are ordered by score, then raw count, then zone id. When no
// complaint has usable coordinates the result is an empty slice; deciding
// whether that means "not enough data" is up to the caller.
func PredictHotspots(records []complaint.Record, now time.Time, cfg Config) []HotspotPrediction {
	windowStart := now.Add(-time.Duration(cfg.HotspotWindowDays) * day)
	zones := make(map[string]*zoneAccumulator)

	for _, r := range records {
		if !r.SubmittedAt.After(windowStart) || r.SubmittedAt.After(now) {
			continue
		}
		pt, ok := ResolveCoordinates(r)
		if !ok {
			continue
		}
		id := zoneID(pt, cfg.GridCellDegrees)
		z, exists := zones[id]
		if !exists {
			z = &zoneAccumulator{id: id, categories: make(map[complaint.Category]int)}
			zones[id] = z
		}
		z.count++
		z.score += voteWeight(r.Votes)
		z.sumLat += pt.Lat
		z.sumLng += pt.Lng
		z.categories[r.Category]++
	}

	out := make([]HotspotPrediction, 0, len(zones))
	for _, z := range zones {
		mix := categoryMix(z.categories)
		score := round(z.score, 4)
		out = append(out, HotspotPrediction{
			ZoneID: z.id,
			Centroid: complaint.Coordinates{
				Lat: round(z.sumLat/float64(z.count), 6),
				Lng: round(z.sumLng/float64(z.count), 6),
			},
			Count:            z.count,
			Score:            score,
			Level:            ClassifyHotspot(score, cfg.HotspotCutoffs),
			CategoryMix:      mix,
			DominantCategory: mix[0].Category,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ZoneID < out[j].ZoneID
	})
	return out
}

func categoryMix(counts map[complaint.Category]int) []CategoryCount {
	mix := make([]CategoryCount, 0, len(counts))
	for _, cat := range complaint.Categories() {
		if n := counts[cat]; n > 0 {
			mix = append(mix, CategoryCount{Category: cat, Count: n})
		}
	}
	// Stable keeps canonical category order among equal counts.
	sort.SliceStable(mix, func(i, j int) bool {
		return mix[i].Count > mix[j].Count
	})
	return mix
}
