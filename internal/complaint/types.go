// Package complaint provides types and structures for citizen complaint data.
//
// A complaint moves through a forward-only lifecycle:
//
//	pending → resolved → verified
//
// Records are treated as immutable once handed to the analytics engine.
package complaint

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Category is the department tag a complaint is filed under.
//
// The declaration order is the canonical ordering used for tie-breaks and
// for listing categories in reports.
type Category uint8

const (
	CategoryRoads Category = iota
	CategoryWaste
	CategoryWater
	CategoryStreetlights
	CategorySewage
	CategoryOther
)

// Categories returns every category in canonical order.
func Categories() []Category {
	return []Category{
		CategoryRoads,
		CategoryWaste,
		CategoryWater,
		CategoryStreetlights,
		CategorySewage,
		CategoryOther,
	}
}

var categoryTags = [...]string{"roads", "waste", "water", "streetlights", "sewage", "other"}

var categoryDepartments = [...]string{
	"Roads Department",
	"Sanitation Department",
	"Water Supply Department",
	"Electrical Department",
	"Drainage Department",
	"General Administration",
}

var categoryTeams = [...]string{
	"Roads Maintenance Team",
	"Waste Collection Team",
	"Water Works Team",
	"Streetlight Repair Team",
	"Sewage Maintenance Team",
	"Ward Office Team",
}

// categorySynonyms maps loosely-typed upstream tags to a category.
var categorySynonyms = map[string]Category{
	"road":          CategoryRoads,
	"roads":         CategoryRoads,
	"pothole":       CategoryRoads,
	"potholes":      CategoryRoads,
	"waste":         CategoryWaste,
	"garbage":       CategoryWaste,
	"trash":         CategoryWaste,
	"sanitation":    CategoryWaste,
	"water":         CategoryWater,
	"water supply":  CategoryWater,
	"water_supply":  CategoryWater,
	"leakage":       CategoryWater,
	"streetlight":   CategoryStreetlights,
	"streetlights":  CategoryStreetlights,
	"street_lights": CategoryStreetlights,
	"street lights": CategoryStreetlights,
	"lighting":      CategoryStreetlights,
	"sewage":        CategorySewage,
	"sewer":         CategorySewage,
	"drainage":      CategorySewage,
	"other":         CategoryOther,
}

// ParseCategory maps a free-form tag onto a Category.
// Unknown tags fall back to CategoryOther; it never fails.
func ParseCategory(s string) Category {
	key := strings.ToLower(strings.TrimSpace(s))
	if c, ok := categorySynonyms[key]; ok {
		return c
	}
	return CategoryOther
}

func (c Category) String() string {
	if int(c) < len(categoryTags) {
		return categoryTags[c]
	}
	return "other"
}

// Department returns the department label responsible for the category.
func (c Category) Department() string {
	if int(c) < len(categoryDepartments) {
		return categoryDepartments[c]
	}
	return categoryDepartments[CategoryOther]
}

// Team returns the assigned-team label shown next to delay-risk entries.
func (c Category) Team() string {
	if int(c) < len(categoryTeams) {
		return categoryTeams[c]
	}
	return categoryTeams[CategoryOther]
}

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	*c = ParseCategory(string(b))
	return nil
}

// Status is the lifecycle position of a complaint.
type Status uint8

const (
	StatusPending Status = iota
	StatusResolved
	StatusVerified
)

var statusTags = [...]string{"pending", "resolved", "verified"}

// ParseStatus parses a lifecycle tag. Unknown tags are an error: guessing
// a lifecycle position would silently corrupt open/closed counts.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "open", "in_progress", "in progress":
		return StatusPending, nil
	case "resolved", "closed":
		return StatusResolved, nil
	case "verified":
		return StatusVerified, nil
	default:
		return StatusPending, fmt.Errorf("unknown complaint status %q", s)
	}
}

func (s Status) String() string {
	if int(s) < len(statusTags) {
		return statusTags[s]
	}
	return "unknown"
}

// CanTransition reports whether moving from s to next follows the
// forward-only lifecycle. Staying in place is allowed.
func (s Status) CanTransition(next Status) bool {
	return next >= s
}

// HasResolution reports whether the status implies a resolution happened.
func (s Status) HasResolution() bool {
	return s == StatusResolved || s == StatusVerified
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Coordinates is a WGS84 point in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point lies inside the valid degree ranges.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Record represents a single citizen complaint.
//
// Fields:
//   - ID: Unique identifier; numeric upstream ids are stored as decimal strings
//   - Location: Free-text address, a "lat,lng" literal, or empty
//   - Position: Explicit coordinates, nil when the source has none
//   - ResolvedAt: Set once the complaint is resolved (upstream data may violate this)
type Record struct {
	ID                string       `json:"id"`
	Municipality      string       `json:"municipality,omitempty"`
	Title             string       `json:"title,omitempty"`
	Category          Category     `json:"category"`
	Location          string       `json:"location,omitempty"`
	Position          *Coordinates `json:"position,omitempty"`
	Votes             int          `json:"votes"`
	SubmittedAt       time.Time    `json:"submittedDate"`
	Status            Status       `json:"status"`
	ResolvedAt        *time.Time   `json:"resolvedDate,omitempty"`
	VerificationCount int          `json:"verificationCount"`
}
