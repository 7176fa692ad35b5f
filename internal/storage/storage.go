// Package storage keeps a local SQLite snapshot of complaint records.
//
// The snapshot serves two purposes:
//  1. A cache of the last successful fetch from a remote source, so the
//     dashboard survives a portal or database outage
//  2. The backing store for the sqlite source and for CSV imports
//
// Thread-safety:
//   - Writes are serialized by a mutex (SQLite allows one writer)
//   - Reads go straight to the connection pool
//
// The store enforces the forward-only complaint lifecycle: a batch that
// would move a stored complaint backwards (e.g. verified → pending) is
// rejected as a whole with ErrLifecycleReversal.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"civicmon/internal/complaint"
)

// ErrLifecycleReversal is returned when an upsert would move a complaint
// backwards through pending → resolved → verified.
var ErrLifecycleReversal = errors.New("complaint lifecycle reversal")

const schema = `CREATE TABLE IF NOT EXISTS complaints (
	id                 TEXT NOT NULL,
	municipality       TEXT NOT NULL DEFAULT '',
	title              TEXT NOT NULL DEFAULT '',
	category           TEXT NOT NULL,
	location           TEXT NOT NULL DEFAULT '',
	latitude           REAL,
	longitude          REAL,
	votes              INTEGER NOT NULL DEFAULT 0,
	status             TEXT NOT NULL,
	submitted_at       TEXT NOT NULL,
	resolved_at        TEXT,
	verification_count INTEGER NOT NULL DEFAULT 0,
	updated_at         TEXT NOT NULL,
	PRIMARY KEY (municipality, id)
);
CREATE INDEX IF NOT EXISTS idx_complaints_status ON complaints(status);`

const upsertSQL = `INSERT INTO complaints (
	id, municipality, title, category, location, latitude, longitude,
	votes, status, submitted_at, resolved_at, verification_count, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(municipality, id) DO UPDATE SET
	title = excluded.title,
	category = excluded.category,
	location = excluded.location,
	latitude = excluded.latitude,
	longitude = excluded.longitude,
	votes = excluded.votes,
	status = excluded.status,
	submitted_at = excluded.submitted_at,
	resolved_at = excluded.resolved_at,
	verification_count = excluded.verification_count,
	updated_at = excluded.updated_at`

// Store is a SQLite-backed complaint snapshot.
type Store struct {
	mu  sync.Mutex // Serializes write transactions
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and applies the schema.
//
// Returns:
//   - *Store: Ready-to-use store
//   - error: The database could not be opened or migrated
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("📋 No snapshot database at %s. Creating new one...", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection keeps in-memory databases coherent and matches
	// SQLite's single-writer model.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		log.Println("⚠️  Could not enable WAL mode:", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertComplaints writes a batch of records in one transaction.
//
// Flow:
//  1. Begin transaction
//  2. For each record, compare the stored status with the incoming one
//  3. Abort the whole batch on a backward lifecycle move
//  4. Insert or update the row
//  5. Commit
//
// Returns:
//   - int: Number of rows written
//   - error: ErrLifecycleReversal (wrapped) or a database error
func (s *Store) UpsertComplaints(ctx context.Context, records []complaint.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	lookup, err := tx.PrepareContext(ctx, `SELECT status FROM complaints WHERE municipality = ? AND id = ?`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare lookup: %w", err)
	}
	defer lookup.Close()

	upsert, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer upsert.Close()

	updatedAt := formatTime(s.now())
	for _, r := range records {
		var stored string
		err := lookup.QueryRowContext(ctx, r.Municipality, r.ID).Scan(&stored)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return 0, fmt.Errorf("failed to look up complaint %s: %w", r.ID, err)
		default:
			prev, perr := complaint.ParseStatus(stored)
			if perr != nil {
				return 0, fmt.Errorf("complaint %s has corrupt stored status: %w", r.ID, perr)
			}
			if !prev.CanTransition(r.Status) {
				return 0, fmt.Errorf("%w: complaint %s cannot move from %s to %s", ErrLifecycleReversal, r.ID, prev, r.Status)
			}
		}

		var lat, lng sql.NullFloat64
		if r.Position != nil {
			lat = sql.NullFloat64{Float64: r.Position.Lat, Valid: true}
			lng = sql.NullFloat64{Float64: r.Position.Lng, Valid: true}
		}
		var resolved sql.NullString
		if r.ResolvedAt != nil {
			resolved = sql.NullString{String: formatTime(*r.ResolvedAt), Valid: true}
		}

		if _, err := upsert.ExecContext(ctx,
			r.ID, r.Municipality, r.Title, r.Category.String(), r.Location, lat, lng,
			r.Votes, r.Status.String(), formatTime(r.SubmittedAt), resolved, r.VerificationCount, updatedAt,
		); err != nil {
			return 0, fmt.Errorf("failed to upsert complaint %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}
	return len(records), nil
}

// ListComplaints returns the stored records of one municipality ordered by
// id. An empty municipality lists every record.
func (s *Store) ListComplaints(ctx context.Context, municipality string) ([]complaint.Record, error) {
	query := `SELECT id, municipality, title, category, location, latitude, longitude,
		votes, status, submitted_at, resolved_at, verification_count
		FROM complaints`
	var args []any
	if municipality != "" {
		query += ` WHERE municipality = ?`
		args = append(args, municipality)
	}
	query += ` ORDER BY id, municipality`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query complaints: %w", err)
	}
	defer rows.Close()

	out := make([]complaint.Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read complaints: %w", err)
	}
	return out, nil
}

// Count returns the number of stored complaints.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM complaints`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count complaints: %w", err)
	}
	return n, nil
}

func scanRecord(rows *sql.Rows) (complaint.Record, error) {
	var (
		r                complaint.Record
		category, status string
		submitted        string
		lat, lng         sql.NullFloat64
		resolved         sql.NullString
	)
	if err := rows.Scan(&r.ID, &r.Municipality, &r.Title, &category, &r.Location, &lat, &lng,
		&r.Votes, &status, &submitted, &resolved, &r.VerificationCount); err != nil {
		return r, fmt.Errorf("failed to scan complaint: %w", err)
	}

	r.Category = complaint.ParseCategory(category)
	st, err := complaint.ParseStatus(status)
	if err != nil {
		return r, fmt.Errorf("complaint %s: %w", r.ID, err)
	}
	r.Status = st

	if r.SubmittedAt, err = complaint.ParseTime(submitted); err != nil {
		return r, fmt.Errorf("complaint %s: %w", r.ID, err)
	}
	if resolved.Valid {
		t, err := complaint.ParseTime(resolved.String)
		if err != nil {
			return r, fmt.Errorf("complaint %s: %w", r.ID, err)
		}
		r.ResolvedAt = &t
	}
	if lat.Valid && lng.Valid {
		r.Position = &complaint.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	}
	return r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
