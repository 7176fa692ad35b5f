package analytics

import (
	"time"

	"civicmon/internal/complaint"
)

const day = 24 * time.Hour

// Features are the per-complaint scalars every model derives from a record.
type Features struct {
	ID       string
	Category complaint.Category
	AgeDays  int
	// IsOpen is the "active" notion used by headline counters: pending or
	// verified. It is NOT the delay-risk population.
	IsOpen bool
	// IsDelayCandidate is true only for pending complaints; these alone
	// feed the delay-risk scorer.
	IsDelayCandidate bool
	// Overdue is IsDelayCandidate with an age past the category baseline.
	Overdue bool
	Zone    string
	HasZone bool
}

// Normalize derives Features for one record at the given instant.
func Normalize(r complaint.Record, now time.Time, cfg Config) Features {
	f := Features{
		ID:               r.ID,
		Category:         r.Category,
		AgeDays:          AgeDays(r, now),
		IsOpen:           IsOpen(r),
		IsDelayCandidate: r.Status == complaint.StatusPending,
	}
	f.Overdue = f.IsDelayCandidate && float64(f.AgeDays) > cfg.baseline(r.Category)
	if pt, ok := ResolveCoordinates(r); ok {
		f.Zone = zoneID(pt, cfg.GridCellDegrees)
		f.HasZone = true
	}
	return f
}

// AgeDays returns whole days from submission to resolution, or to now for
// unresolved complaints. Age stops ticking once a complaint is resolved or
// verified; a pending complaint keeps ageing even if it carries a stray
// resolution timestamp. A resolution recorded before submission clamps to
// zero.
func AgeDays(r complaint.Record, now time.Time) int {
	end := now
	if r.Status.HasResolution() && r.ResolvedAt != nil {
		end = *r.ResolvedAt
	}
	return wholeDays(end.Sub(r.SubmittedAt))
}

// IsOpen reports whether a complaint counts as active (pending or verified).
func IsOpen(r complaint.Record) bool {
	return r.Status == complaint.StatusPending || r.Status == complaint.StatusVerified
}

// IsOverdue reports whether a pending complaint is older than thresholdDays.
// Verified complaints already carry a resolution and are never overdue.
func IsOverdue(r complaint.Record, now time.Time, thresholdDays float64) bool {
	if r.Status != complaint.StatusPending {
		return false
	}
	return float64(AgeDays(r, now)) > thresholdDays
}

// resolutionDays returns the fractional resolution time of a record, or
// false when the record has no usable resolution timestamp.
func resolutionDays(r complaint.Record) (float64, bool) {
	if !r.Status.HasResolution() || r.ResolvedAt == nil {
		return 0, false
	}
	d := r.ResolvedAt.Sub(r.SubmittedAt)
	if d < 0 {
		return 0, true
	}
	return d.Hours() / 24, true
}

func wholeDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / day)
}
