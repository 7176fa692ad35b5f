package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"civicmon/internal/complaint"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "civicmon.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func record(id string, status complaint.Status) complaint.Record {
	submitted := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	r := complaint.Record{
		ID:           id,
		Municipality: "Surat",
		Title:        "Complaint " + id,
		Category:     complaint.CategoryWater,
		Location:     "Ward 3",
		Votes:        3,
		SubmittedAt:  submitted,
		Status:       status,
	}
	if status.HasResolution() {
		resolved := submitted.Add(48 * time.Hour)
		r.ResolvedAt = &resolved
	}
	return r
}

func TestUpsertAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	withPos := record("C2", complaint.StatusResolved)
	withPos.Position = &complaint.Coordinates{Lat: 21.17, Lng: 72.83}
	other := record("C3", complaint.StatusPending)
	other.Municipality = "Vadodara"

	n, err := s.UpsertComplaints(ctx, []complaint.Record{withPos, record("C1", complaint.StatusPending), other})
	if err != nil {
		t.Fatalf("UpsertComplaints failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 rows written, got %d", n)
	}

	got, err := s.ListComplaints(ctx, "Surat")
	if err != nil {
		t.Fatalf("ListComplaints failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 Surat complaints, got %d", len(got))
	}
	if got[0].ID != "C1" || got[1].ID != "C2" {
		t.Errorf("expected id order C1, C2; got %s, %s", got[0].ID, got[1].ID)
	}

	c2 := got[1]
	if c2.Status != complaint.StatusResolved || c2.ResolvedAt == nil || !c2.ResolvedAt.Equal(*withPos.ResolvedAt) {
		t.Errorf("resolution not round-tripped: %+v", c2)
	}
	if c2.Position == nil || c2.Position.Lat != 21.17 {
		t.Errorf("position not round-tripped: %+v", c2.Position)
	}
	if !c2.SubmittedAt.Equal(withPos.SubmittedAt) || c2.Category != complaint.CategoryWater || c2.Votes != 3 {
		t.Errorf("fields not round-tripped: %+v", c2)
	}

	all, err := s.ListComplaints(ctx, "")
	if err != nil {
		t.Fatalf("ListComplaints failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 complaints across municipalities, got %d", len(all))
	}
}

func TestUpsertForwardTransition(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertComplaints(ctx, []complaint.Record{record("C1", complaint.StatusPending)}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpsertComplaints(ctx, []complaint.Record{record("C1", complaint.StatusVerified)}); err != nil {
		t.Fatalf("forward move should be accepted: %v", err)
	}

	got, err := s.ListComplaints(ctx, "Surat")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Status != complaint.StatusVerified {
		t.Errorf("expected single verified complaint, got %+v", got)
	}
}

func TestUpsertRejectsLifecycleReversal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertComplaints(ctx, []complaint.Record{record("C1", complaint.StatusVerified)}); err != nil {
		t.Fatal(err)
	}

	batch := []complaint.Record{record("C9", complaint.StatusPending), record("C1", complaint.StatusPending)}
	_, err := s.UpsertComplaints(ctx, batch)
	if !errors.Is(err, ErrLifecycleReversal) {
		t.Fatalf("expected ErrLifecycleReversal, got %v", err)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected the whole batch to roll back, found %d rows", n)
	}
}

func TestImportCSV(t *testing.T) {
	s := openTestStore(t)
	path := filepath.Join(t.TempDir(), "export.csv")
	data := "id,municipality,category,status,submitted_date,resolved_date\n" +
		"1,Surat,roads,pending,2026-01-02,\n" +
		"2,Surat,garbage,resolved,2026-01-01,2026-01-03\n" +
		"3,Surat,water,unknown,2026-01-01,\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := s.ImportCSV(context.Background(), path)
	if err != nil {
		t.Fatalf("ImportCSV failed: %v", err)
	}
	if res.Imported != 2 || res.Skipped != 1 {
		t.Errorf("expected 2 imported and 1 skipped, got %+v", res)
	}

	got, err := s.ListComplaints(context.Background(), "Surat")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].Category != complaint.CategoryWaste {
		t.Errorf("unexpected imported records: %+v", got)
	}
}

func TestImportCSVMissingFile(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.ImportCSV(context.Background(), filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}
