package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"civicmon/internal/complaint"
	"civicmon/internal/config"
	"civicmon/internal/errors"
)

const postgresQuery = `SELECT
	id::text, municipality, title, category, location, latitude, longitude,
	votes, status, submitted_at, resolved_at, verification_count
FROM complaints
WHERE $1 = '' OR municipality = $1
ORDER BY id`

// PostgresSource reads the managed complaint backend.
type PostgresSource struct {
	db           *sql.DB
	municipality string
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn, municipality string) (*PostgresSource, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.NewFetchError(config.SourcePostgres, "failed to open database", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.NewFetchError(config.SourcePostgres, "database unreachable", err)
	}
	return &PostgresSource{db: db, municipality: municipality}, nil
}

func (s *PostgresSource) Name() string { return config.SourcePostgres }

// Close releases the connection pool.
func (s *PostgresSource) Close() error {
	return s.db.Close()
}

// Fetch loads every complaint for the configured municipality.
//
// Rows with an unknown status are skipped, matching the other sources.
func (s *PostgresSource) Fetch(ctx context.Context) ([]complaint.Record, error) {
	rows, err := s.db.QueryContext(ctx, postgresQuery, s.municipality)
	if err != nil {
		return nil, errors.NewFetchError(s.Name(), "query failed", err)
	}
	defer rows.Close()

	records := []complaint.Record{}
	var rowErrs []error
	for rows.Next() {
		var row pgRow
		if err := rows.Scan(
			&row.ID, &row.Municipality, &row.Title, &row.Category, &row.Location,
			&row.Latitude, &row.Longitude, &row.Votes, &row.Status,
			&row.SubmittedAt, &row.ResolvedAt, &row.VerificationCount,
		); err != nil {
			return nil, errors.NewFetchError(s.Name(), "failed to scan complaint", err)
		}
		rec, err := row.toRecord()
		if err != nil {
			rowErrs = append(rowErrs, err)
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewFetchError(s.Name(), "failed to read complaints", err)
	}
	return keepDecoded(s.Name(), records, rowErrs)
}

// pgRow is one complaints row as the backend stores it. Everything but the
// id, status and submission time may be NULL.
type pgRow struct {
	ID                string
	Municipality      sql.NullString
	Title             sql.NullString
	Category          sql.NullString
	Location          sql.NullString
	Latitude          sql.NullFloat64
	Longitude         sql.NullFloat64
	Votes             sql.NullInt64
	Status            string
	SubmittedAt       time.Time
	ResolvedAt        sql.NullTime
	VerificationCount sql.NullInt64
}

func (row pgRow) toRecord() (complaint.Record, error) {
	id := strings.TrimSpace(row.ID)
	if id == "" {
		return complaint.Record{}, fmt.Errorf("missing complaint id")
	}
	status, err := complaint.ParseStatus(row.Status)
	if err != nil {
		return complaint.Record{}, fmt.Errorf("complaint %s: %w", id, err)
	}

	r := complaint.Record{
		ID:           id,
		Municipality: strings.TrimSpace(row.Municipality.String),
		Title:        strings.TrimSpace(row.Title.String),
		Category:     complaint.ParseCategory(row.Category.String),
		Location:     strings.TrimSpace(row.Location.String),
		SubmittedAt:  row.SubmittedAt.UTC(),
		Status:       status,
	}
	if row.Latitude.Valid && row.Longitude.Valid {
		r.Position = &complaint.Coordinates{Lat: row.Latitude.Float64, Lng: row.Longitude.Float64}
	}
	if row.Votes.Valid && row.Votes.Int64 > 0 {
		r.Votes = int(row.Votes.Int64)
	}
	if row.VerificationCount.Valid && row.VerificationCount.Int64 > 0 {
		r.VerificationCount = int(row.VerificationCount.Int64)
	}
	if row.ResolvedAt.Valid {
		resolved := row.ResolvedAt.Time.UTC()
		r.ResolvedAt = &resolved
	}
	return r, nil
}
