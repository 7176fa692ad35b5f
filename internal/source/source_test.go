package source

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"civicmon/internal/complaint"
	"civicmon/internal/config"
	"civicmon/internal/errors"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func ids(records []complaint.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestFileSourceJSON(t *testing.T) {
	path := writeFile(t, "complaints.json", `[
		{"id": 1, "category": "roads", "status": "pending", "submittedDate": "2025-03-01"},
		{"id": "C-2", "category": "water", "status": "bogus", "submittedDate": "2025-03-01"},
		{"id": 3, "category": "garbage", "status": "resolved", "submittedDate": "2025-03-01", "resolvedDate": "2025-03-04"}
	]`)

	records, err := NewFileSource(path).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got := ids(records); !reflect.DeepEqual(got, []string{"1", "3"}) {
		t.Errorf("expected ids [1 3] but got %v", got)
	}
}

func TestFileSourceCSV(t *testing.T) {
	path := writeFile(t, "export.CSV", "id,category,status,submitted_date\n7,sewage,pending,2025-03-02\n")

	records, err := NewFileSource(path).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records) != 1 || records[0].Category != complaint.CategorySewage {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestFileSourceErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "none.json") }},
		{"not json", func(t *testing.T) string { return writeFile(t, "bad.json", "<html>") }},
		{"every row bad", func(t *testing.T) string {
			return writeFile(t, "bad.json", `[{"id": 1, "status": "bogus", "submittedDate": "2025-03-01"}]`)
		}},
		{"csv without header columns", func(t *testing.T) string { return writeFile(t, "bad.csv", "name,age\nx,1\n") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFileSource(tt.path(t)).Fetch(context.Background())
			if !errors.IsFetchError(err) {
				t.Errorf("expected FetchError but got %v", err)
			}
		})
	}
}

func TestFileSourceEmptyArray(t *testing.T) {
	records, err := NewFileSource(writeFile(t, "empty.json", "[]")).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("expected empty non-nil slice but got %#v", records)
	}
}

type fakeLister struct {
	municipality string
	records      []complaint.Record
	err          error
}

func (f *fakeLister) ListComplaints(_ context.Context, municipality string) ([]complaint.Record, error) {
	f.municipality = municipality
	return f.records, f.err
}

func TestStoreSource(t *testing.T) {
	lister := &fakeLister{records: []complaint.Record{{ID: "A"}}}
	records, err := NewStoreSource(lister, "Surat").Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if lister.municipality != "Surat" || len(records) != 1 {
		t.Errorf("unexpected call: municipality %q, records %v", lister.municipality, records)
	}

	lister.err = fmt.Errorf("disk I/O error")
	if _, err := NewStoreSource(lister, "").Fetch(context.Background()); !errors.IsFetchError(err) {
		t.Errorf("expected FetchError but got %v", err)
	}
}

func TestNewUnknownSource(t *testing.T) {
	_, err := New(context.Background(), &config.Config{Source: "ftp"}, nil)
	if !errors.IsConfigError(err) {
		t.Errorf("expected ConfigError but got %v", err)
	}
}

func TestPgRowToRecord(t *testing.T) {
	submitted := time.Date(2025, 3, 1, 9, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))
	resolved := submitted.Add(72 * time.Hour)

	row := pgRow{
		ID:                " 42 ",
		Municipality:      sql.NullString{String: "Surat", Valid: true},
		Category:          sql.NullString{String: "potholes", Valid: true},
		Latitude:          sql.NullFloat64{Float64: 21.17, Valid: true},
		Longitude:         sql.NullFloat64{Float64: 72.83, Valid: true},
		Votes:             sql.NullInt64{Int64: -3, Valid: true},
		Status:            "closed",
		SubmittedAt:       submitted,
		ResolvedAt:        sql.NullTime{Time: resolved, Valid: true},
		VerificationCount: sql.NullInt64{Int64: 2, Valid: true},
	}
	r, err := row.toRecord()
	if err != nil {
		t.Fatalf("toRecord failed: %v", err)
	}
	if r.ID != "42" || r.Category != complaint.CategoryRoads || r.Status != complaint.StatusResolved {
		t.Errorf("unexpected record: %+v", r)
	}
	if r.Votes != 0 || r.VerificationCount != 2 {
		t.Errorf("expected votes 0 and verification 2, got %d and %d", r.Votes, r.VerificationCount)
	}
	if r.SubmittedAt.Location() != time.UTC || !r.SubmittedAt.Equal(submitted) {
		t.Errorf("submitted time not normalized to UTC: %v", r.SubmittedAt)
	}
	if r.ResolvedAt == nil || !r.ResolvedAt.Equal(resolved) || r.Position == nil {
		t.Errorf("optional fields lost: %+v", r)
	}

	if _, err := (pgRow{ID: "1", Status: "lost"}).toRecord(); err == nil {
		t.Error("expected error for unknown status")
	}
	if _, err := (pgRow{ID: " ", Status: "pending"}).toRecord(); err == nil {
		t.Error("expected error for empty id")
	}
}

func TestPageURL(t *testing.T) {
	got, err := PageURL("https://portal.example/api/complaints?status=all", 3)
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://portal.example/api/complaints?page=3&status=all" {
		t.Errorf("unexpected url %q", got)
	}
}

func TestLastPage(t *testing.T) {
	tests := []struct {
		body string
		want int
	}{
		{`{"data": [], "last_page": 4}`, 4},
		{`{"data": [], "meta": {"last_page": 6}}`, 6},
		{`{"complaints": [], "total_pages": 2}`, 2},
		{`[{"id": 1}]`, 1},
		{`{"data": []}`, 1},
		{`not json`, 1},
	}
	for _, tt := range tests {
		if got := lastPage([]byte(tt.body)); got != tt.want {
			t.Errorf("lastPage(%s): expected %d but got %d", tt.body, tt.want, got)
		}
	}
}

// fakePortal serves pages keyed by page number.
type fakePortal struct {
	mu        sync.Mutex
	pages     map[int]string
	fetched   []int
	logins    int
	loginErr  error
	expireOn  int // page answering SessionExpiredError
	expireFor int // number of times it does so
}

func (f *fakePortal) fetch(_ context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	var page int
	fmt.Sscanf(u.Query().Get("page"), "%d", &page)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, page)
	if page == f.expireOn && f.expireFor > 0 {
		f.expireFor--
		return nil, errors.NewSessionExpiredError("portal served an HTML page instead of JSON")
	}
	body, ok := f.pages[page]
	if !ok {
		return nil, fmt.Errorf("portal answered HTTP 404")
	}
	return []byte(body), nil
}

func (f *fakePortal) login(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	return f.loginErr
}

func page(lastPage int, ids ...string) string {
	rows := make([]string, len(ids))
	for i, id := range ids {
		rows[i] = fmt.Sprintf(`{"id": %q, "category": "roads", "status": "pending", "submittedDate": "2025-03-01"}`, id)
	}
	return fmt.Sprintf(`{"data": [%s], "meta": {"last_page": %d}}`, strings.Join(rows, ","), lastPage)
}

func (f *fakePortal) source(maxPages int) *PortalSource {
	return newPortalSource("https://portal.example/api/complaints", maxPages, 2, 0, f.fetch, f.login)
}

func TestPortalFetchAllPages(t *testing.T) {
	portal := &fakePortal{pages: map[int]string{
		1: page(3, "A", "B"),
		2: page(3, "C", "D"),
		3: page(3, "D", "E"),
	}}

	records, err := portal.source(5).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got := ids(records); !reflect.DeepEqual(got, []string{"A", "B", "C", "D", "E"}) {
		t.Errorf("expected page-ordered unique ids but got %v", got)
	}
	if portal.logins != 1 {
		t.Errorf("expected 1 login but got %d", portal.logins)
	}
}

func TestPortalRespectsMaxPages(t *testing.T) {
	portal := &fakePortal{pages: map[int]string{
		1: page(4, "A"),
		2: page(4, "B"),
		3: page(4, "C"),
		4: page(4, "D"),
	}}

	records, err := portal.source(2).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got := ids(records); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("expected only the first two pages but got %v", got)
	}
	if len(portal.fetched) != 2 {
		t.Errorf("expected 2 page requests but got %v", portal.fetched)
	}
}

func TestPortalReloginOnSessionExpiry(t *testing.T) {
	portal := &fakePortal{
		pages:     map[int]string{1: page(2, "A"), 2: page(2, "B")},
		expireOn:  2,
		expireFor: 1,
	}

	src := portal.source(5)
	records, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got := ids(records); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("unexpected ids %v", got)
	}
	if portal.logins != 2 {
		t.Errorf("expected a second login after expiry but got %d logins", portal.logins)
	}

	// The session is reused on the next refresh.
	if _, err := src.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if portal.logins != 2 {
		t.Errorf("expected session reuse but got %d logins", portal.logins)
	}
}

func TestPortalPersistentExpiry(t *testing.T) {
	portal := &fakePortal{
		pages:     map[int]string{1: page(1, "A")},
		expireOn:  1,
		expireFor: 2,
	}

	_, err := portal.source(5).Fetch(context.Background())
	if !errors.IsFetchError(err) || !errors.IsSessionExpired(err) {
		t.Errorf("expected wrapped SessionExpiredError but got %v", err)
	}
	if portal.logins != 2 {
		t.Errorf("expected exactly one re-login but got %d logins", portal.logins)
	}
}

func TestPortalLoginFailure(t *testing.T) {
	portal := &fakePortal{loginErr: errors.NewLoginFailedError("credentials rejected", nil)}

	_, err := portal.source(5).Fetch(context.Background())
	if !errors.IsFetchError(err) || !errors.IsLoginFailed(err) {
		t.Errorf("expected wrapped LoginFailedError but got %v", err)
	}
	if len(portal.fetched) != 0 {
		t.Errorf("expected no page requests but got %v", portal.fetched)
	}
}

func TestPortalPageFailure(t *testing.T) {
	portal := &fakePortal{pages: map[int]string{1: page(3, "A"), 3: page(3, "C")}}

	if _, err := portal.source(5).Fetch(context.Background()); !errors.IsFetchError(err) {
		t.Errorf("expected FetchError for a missing page but got %v", err)
	}
}

func TestPagePoolCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := newPagePool(ctx, 2, 3, func(ctx context.Context, page int) pageResult {
		return pageResult{page: page}
	})
	for p := 1; p <= 3; p++ {
		pool.Submit(p)
	}
	pool.Close()

	n := 0
	for result := range pool.Results() {
		n++
		if result.err == nil {
			t.Errorf("page %d: expected context error", result.page)
		}
	}
	if n != 3 {
		t.Errorf("expected 3 results but got %d", n)
	}
}
