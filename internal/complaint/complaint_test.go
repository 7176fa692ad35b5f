package complaint

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input    string
		expected Category
	}{
		{"roads", CategoryRoads},
		{" Pothole ", CategoryRoads},
		{"GARBAGE", CategoryWaste},
		{"water supply", CategoryWater},
		{"street_lights", CategoryStreetlights},
		{"drainage", CategorySewage},
		{"parks", CategoryOther},
		{"", CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseCategory(tt.input); got != tt.expected {
				t.Errorf("ParseCategory(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCategoryLabels(t *testing.T) {
	for _, c := range Categories() {
		if c.Department() == "" || c.Team() == "" {
			t.Errorf("category %v missing labels", c)
		}
	}
	if CategoryRoads.Team() != "Roads Maintenance Team" {
		t.Errorf("unexpected roads team %q", CategoryRoads.Team())
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus("Verified"); err != nil || s != StatusVerified {
		t.Errorf("expected verified, got %v (%v)", s, err)
	}
	if _, err := ParseStatus("revoked"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestStatusCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusPending, StatusResolved, true},
		{StatusResolved, StatusVerified, true},
		{StatusPending, StatusVerified, true},
		{StatusVerified, StatusVerified, true},
		{StatusVerified, StatusPending, false},
		{StatusResolved, StatusPending, false},
		{StatusVerified, StatusResolved, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.allowed {
			t.Errorf("%v -> %v: expected %v, got %v", tt.from, tt.to, tt.allowed, got)
		}
	}
}

func TestCoordinatesValid(t *testing.T) {
	if !(Coordinates{Lat: 21.17, Lng: 72.83}).Valid() {
		t.Error("expected valid coordinates")
	}
	if (Coordinates{Lat: 91, Lng: 0}).Valid() {
		t.Error("latitude 91 should be invalid")
	}
	if (Coordinates{Lat: 0, Lng: -180.5}).Valid() {
		t.Error("longitude -180.5 should be invalid")
	}
}

func TestDecodeJSON(t *testing.T) {
	payload := []byte(`{"data": [
		{"id": 101, "category": "roads", "location": "21.1702,72.8311", "votes": 4,
		 "submitted_date": "2026-03-01T10:00:00Z", "status": "pending"},
		{"id": "C-7", "category": "garbage", "latitude": 21.2, "longitude": 72.9,
		 "created_at": "2026-02-10 08:30:00", "status": "resolved",
		 "resolved_date": "2026-02-12", "verification_count": 2},
		{"id": 103, "category": "water", "status": "reopened", "submittedDate": "2026-03-02"},
		{"category": "water", "status": "pending", "submittedDate": "2026-03-02"},
		{"id": 105, "category": "sewage", "status": "pending"}
	]}`)

	records, errs := DecodeJSON(payload)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if len(errs) != 3 {
		t.Fatalf("expected 3 row errors, got %d: %v", len(errs), errs)
	}

	first := records[0]
	if first.ID != "101" || first.Category != CategoryRoads || first.Votes != 4 {
		t.Errorf("unexpected first record: %+v", first)
	}
	if first.Position != nil {
		t.Error("expected no explicit position on first record")
	}

	second := records[1]
	if second.ID != "C-7" || second.Category != CategoryWaste || second.Status != StatusResolved {
		t.Errorf("unexpected second record: %+v", second)
	}
	if second.Position == nil || second.Position.Lat != 21.2 {
		t.Errorf("expected explicit position, got %+v", second.Position)
	}
	if second.ResolvedAt == nil || !second.ResolvedAt.Equal(time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected resolved date: %v", second.ResolvedAt)
	}
	if second.VerificationCount != 2 {
		t.Errorf("expected verification count 2, got %d", second.VerificationCount)
	}
}

func TestDecodeJSONArrayAndGarbage(t *testing.T) {
	records, errs := DecodeJSON([]byte(`[{"id": 1, "category": "roads", "status": "pending", "submittedDate": "2026-01-01"}]`))
	if len(records) != 1 || len(errs) != 0 {
		t.Fatalf("expected 1 record and no errors, got %d/%v", len(records), errs)
	}

	records, errs = DecodeJSON([]byte(`not json`))
	if len(records) != 0 || len(errs) != 1 {
		t.Fatalf("expected payload error, got %d/%v", len(records), errs)
	}

	records, errs = DecodeJSON(nil)
	if len(records) != 0 || len(errs) != 0 {
		t.Fatalf("expected empty result for empty payload, got %d/%v", len(records), errs)
	}
}

func TestRecordJSONUsesTags(t *testing.T) {
	r := Record{ID: "1", Category: CategoryStreetlights, Status: StatusVerified}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out["category"] != "streetlights" || out["status"] != "verified" {
		t.Errorf("unexpected tags: %v", out)
	}
}
