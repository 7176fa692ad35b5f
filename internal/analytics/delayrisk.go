package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"civicmon/internal/complaint"
)

// DelayLevel is the delay-risk bucket of a single complaint.
type DelayLevel string

const (
	DelayLow    DelayLevel = "low"
	DelayMedium DelayLevel = "medium"
	DelayHigh   DelayLevel = "high"
)

// maxReasons caps the explanation list shown in the detail view.
const maxReasons = 3

// withinWindowReason is emitted when no factor reaches ReasonThreshold.
const withinWindowReason = "Within expected resolution window"

// DelayRisk is the scored delay prediction for one pending complaint.
type DelayRisk struct {
	ComplaintID  string             `json:"complaintId"`
	Category     complaint.Category `json:"category"`
	AssignedTeam string             `json:"assignedTeam"`
	RiskOfDelay  int                `json:"riskOfDelay"`
	RiskLevel    DelayLevel         `json:"riskLevel"`
	Reasons      []string           `json:"reasons"`
	Status       complaint.Status   `json:"status"`
	DaysPending  int                `json:"daysPending"`
}

// ClassifyDelay buckets a score: low < medium cutoff ≤ medium < high cutoff ≤ high.
func ClassifyDelay(score int, cfg Config) DelayLevel {
	switch {
	case score >= cfg.RiskHighCutoff:
		return DelayHigh
	case score >= cfg.RiskMediumCutoff:
		return DelayMedium
	default:
		return DelayLow
	}
}

// factor is one normalized signal with its weighted contribution.
type factor struct {
	order  int
	value  float64
	weight float64
	reason string
}

func (f factor) contribution() float64 { return f.value * f.weight }

// ScoreDelayRisk scores every pending complaint.
//
// Only pending complaints are candidates: verified complaints already carry
// a resolution. loads is the department snapshot from
// AggregateDepartmentLoad; a category missing from it counts as zero open.
//
// riskOfDelay = round(100 × (wAge·age + wLoad·load + wEng·engagement)) with
//   - age        = min(ageDays / baselineDays, 1)
//   - load       = min(openInDepartment / DepartmentCapacity, 1)
//   - engagement = 1 − min(votes / EngagementVotes, 1)
//
// The result is ordered by riskOfDelay desc, then days pending desc, then
// complaint id asc, so the same input always lists identically.
func ScoreDelayRisk(records []complaint.Record, loads []DepartmentLoad, now time.Time, cfg Config) []DelayRisk {
	open := make(map[complaint.Category]int, len(loads))
	for _, l := range loads {
		open[l.Category] = l.CurrentOpenComplaints
	}

	out := make([]DelayRisk, 0)
	for _, r := range records {
		if r.Status != complaint.StatusPending {
			continue
		}
		out = append(out, scoreOne(r, open[r.Category], now, cfg))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].RiskOfDelay != out[j].RiskOfDelay {
			return out[i].RiskOfDelay > out[j].RiskOfDelay
		}
		if out[i].DaysPending != out[j].DaysPending {
			return out[i].DaysPending > out[j].DaysPending
		}
		return out[i].ComplaintID < out[j].ComplaintID
	})
	return out
}

func scoreOne(r complaint.Record, deptOpen int, now time.Time, cfg Config) DelayRisk {
	age := AgeDays(r, now)
	baseline := cfg.baseline(r.Category)
	votes := r.Votes
	if votes < 0 {
		votes = 0
	}

	factors := []factor{
		{
			order:  0,
			value:  math.Min(float64(age)/baseline, 1),
			weight: cfg.DelayWeights.Age,
			reason: fmt.Sprintf("Pending %d days, %.1fx category average", age, float64(age)/baseline),
		},
		{
			order:  1,
			value:  math.Min(float64(deptOpen)/float64(cfg.DepartmentCapacity), 1),
			weight: cfg.DelayWeights.Load,
			reason: fmt.Sprintf("%s has %d open complaints (capacity %d)", r.Category.Department(), deptOpen, cfg.DepartmentCapacity),
		},
		{
			order:  2,
			value:  1 - math.Min(float64(votes)/float64(cfg.EngagementVotes), 1),
			weight: cfg.DelayWeights.Engagement,
			reason: fmt.Sprintf("Low citizen engagement (%d votes)", votes),
		},
	}

	var total float64
	for _, f := range factors {
		total += f.contribution()
	}
	score := int(math.Round(clamp(total*100, 0, 100)))

	return DelayRisk{
		ComplaintID:  r.ID,
		Category:     r.Category,
		AssignedTeam: r.Category.Team(),
		RiskOfDelay:  score,
		RiskLevel:    ClassifyDelay(score, cfg),
		Reasons:      buildReasons(factors, cfg.ReasonThreshold),
		Status:       r.Status,
		DaysPending:  age,
	}
}

// buildReasons explains which factors dominated, strongest first.
func buildReasons(factors []factor, threshold float64) []string {
	fired := make([]factor, 0, len(factors))
	for _, f := range factors {
		if f.weight > 0 && f.value >= threshold {
			fired = append(fired, f)
		}
	}
	if len(fired) == 0 {
		return []string{withinWindowReason}
	}

	sort.SliceStable(fired, func(i, j int) bool {
		ci, cj := fired[i].contribution(), fired[j].contribution()
		if ci != cj {
			return ci > cj
		}
		return fired[i].order < fired[j].order
	})

	if len(fired) > maxReasons {
		fired = fired[:maxReasons]
	}
	reasons := make([]string, len(fired))
	for i, f := range fired {
		reasons[i] = f.reason
	}
	return reasons
}
