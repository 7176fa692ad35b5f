package complaint

import (
	"strings"
	"testing"
	"time"
)

func TestDecodeCSV(t *testing.T) {
	input := strings.Join([]string{
		"Title,ID,Category,Status,Submitted_Date,Resolved_Date,Latitude,Longitude,Votes,Extra",
		"Pothole on Ring Road,101,road,pending,2026-01-05,,21.17,72.83,7,x",
		"Overflowing bin,102,garbage,resolved,2026-01-02 09:30:00,2026-01-04,,,oops,y",
		"No status,103,water,,2026-01-03,,,,,",
		"Bad date,104,water,pending,yesterday,,,,,",
	}, "\n")

	records, rowErrs, err := DecodeCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeCSV failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if len(rowErrs) != 2 {
		t.Errorf("expected 2 row errors, got %d: %v", len(rowErrs), rowErrs)
	}

	first := records[0]
	if first.ID != "101" || first.Category != CategoryRoads || first.Votes != 7 {
		t.Errorf("unexpected first record: %+v", first)
	}
	if first.Position == nil || first.Position.Lng != 72.83 {
		t.Errorf("expected position from lat/lng columns, got %+v", first.Position)
	}

	second := records[1]
	if second.Status != StatusResolved || second.Votes != 0 {
		t.Errorf("unexpected second record: %+v", second)
	}
	wantSubmitted := time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)
	if !second.SubmittedAt.Equal(wantSubmitted) {
		t.Errorf("submitted = %v, want %v", second.SubmittedAt, wantSubmitted)
	}
	if second.ResolvedAt == nil {
		t.Error("expected resolved date")
	}
}

func TestDecodeCSVHeaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing status column", "id,category,submitted_date\n1,roads,2026-01-01\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := DecodeCSV(strings.NewReader(tt.input)); err == nil {
				t.Error("expected header error")
			}
		})
	}
}
