package analytics

import "civicmon/internal/complaint"

// LoadLevel is the delay-risk classification of a department.
type LoadLevel string

const (
	LoadLow    LoadLevel = "low"
	LoadMedium LoadLevel = "medium"
	LoadHigh   LoadLevel = "high"
)

// DepartmentLoad summarizes open work and throughput of one department.
type DepartmentLoad struct {
	Category              complaint.Category `json:"category"`
	Department            string             `json:"department"`
	CurrentOpenComplaints int                `json:"currentOpenComplaints"`
	// ResolvedCount is the averaging denominator: resolved or verified
	// complaints that carry a resolution timestamp.
	ResolvedCount    int       `json:"resolvedCount"`
	AvgTimeToResolve float64   `json:"avgTimeToResolve"`
	DelayRisk        LoadLevel `json:"delayRisk"`
}

// ClassifyLoad evaluates both the backlog and the throughput conditions:
// high when both hold, medium when exactly one does, low otherwise. A small
// but chronically slow department therefore never reads as fine.
func ClassifyLoad(open int, avgDays float64, cat complaint.Category, cfg Config) LoadLevel {
	overloaded := open > cfg.OverloadOpenThreshold
	slow := avgDays > cfg.baseline(cat)
	switch {
	case overloaded && slow:
		return LoadHigh
	case overloaded || slow:
		return LoadMedium
	default:
		return LoadLow
	}
}

// AggregateDepartmentLoad returns one entry per category that has at least
// one complaint, in canonical category order.
//
// CurrentOpenComplaints counts pending complaints only; verified ones carry
// a resolution and are not backlog. Resolved or verified records missing a
// resolution timestamp are upstream defects and are left out of the
// average and of ResolvedCount.
func AggregateDepartmentLoad(records []complaint.Record, cfg Config) []DepartmentLoad {
	type acc struct {
		seen     bool
		open     int
		resolved int
		sumDays  float64
	}
	accs := make(map[complaint.Category]*acc)

	for _, r := range records {
		a, ok := accs[r.Category]
		if !ok {
			a = &acc{}
			accs[r.Category] = a
		}
		a.seen = true
		if r.Status == complaint.StatusPending {
			a.open++
			continue
		}
		if days, ok := resolutionDays(r); ok {
			a.resolved++
			a.sumDays += days
		}
	}

	out := make([]DepartmentLoad, 0, len(accs))
	for _, cat := range complaint.Categories() {
		a, ok := accs[cat]
		if !ok || !a.seen {
			continue
		}
		avg := 0.0
		if a.resolved > 0 {
			avg = round(a.sumDays/float64(a.resolved), 1)
		}
		out = append(out, DepartmentLoad{
			Category:              cat,
			Department:            cat.Department(),
			CurrentOpenComplaints: a.open,
			ResolvedCount:         a.resolved,
			AvgTimeToResolve:      avg,
			DelayRisk:             ClassifyLoad(a.open, avg, cat, cfg),
		})
	}
	return out
}
