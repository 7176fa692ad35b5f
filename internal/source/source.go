// Package source loads complaint records from wherever the municipality
// keeps them.
//
// Every source performs its own I/O and returns plain records; the
// analytics packages never touch files, databases or the network.
//
// Available sources:
//   - file: JSON or CSV export on disk
//   - sqlite: the local snapshot kept by internal/storage
//   - postgres: the managed complaint backend
//   - portal: the authenticated municipal web portal (headless browser)
package source

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"civicmon/internal/complaint"
	"civicmon/internal/config"
	"civicmon/internal/errors"
)

// Source produces a snapshot of complaint records.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]complaint.Record, error)
}

// Lister reads stored complaints, optionally restricted to a municipality.
type Lister interface {
	ListComplaints(ctx context.Context, municipality string) ([]complaint.Record, error)
}

// New builds the source selected by cfg.Source.
//
// Sources holding resources (database handles, browser sessions) also
// implement io.Closer; the caller closes them on shutdown.
//
// Parameters:
//   - ctx: Parent context; the portal browser lives as long as it does
//   - cfg: Application configuration
//   - store: Local snapshot, used by the sqlite source
func New(ctx context.Context, cfg *config.Config, store Lister) (Source, error) {
	switch cfg.Source {
	case config.SourceFile:
		return NewFileSource(cfg.ComplaintFile), nil
	case config.SourceSQLite:
		return NewStoreSource(store, cfg.Municipality), nil
	case config.SourcePostgres:
		return OpenPostgres(ctx, cfg.DatabaseURL, cfg.Municipality)
	case config.SourcePortal:
		return NewPortalSource(ctx, cfg), nil
	default:
		return nil, errors.NewConfigError("COMPLAINT_SOURCE", fmt.Sprintf("unknown source %q", cfg.Source), nil)
	}
}

// FileSource reads a JSON or CSV export. The format is chosen by file
// extension; anything other than .csv is parsed as JSON.
type FileSource struct {
	path string
}

// NewFileSource creates a source reading path on every fetch.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return config.SourceFile }

// Fetch re-reads the export. Malformed rows are logged and skipped; a file
// with rows but no decodable record is a fetch error.
func (s *FileSource) Fetch(ctx context.Context) ([]complaint.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(s.path), ".csv") {
		file, err := os.Open(s.path)
		if err != nil {
			return nil, errors.NewFetchError(s.Name(), "failed to open export", err)
		}
		defer file.Close()

		records, rowErrs, err := complaint.DecodeCSV(file)
		if err != nil {
			return nil, errors.NewFetchError(s.Name(), "failed to decode csv export", err)
		}
		return keepDecoded(s.Name(), records, rowErrs)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.NewFetchError(s.Name(), "failed to read export", err)
	}
	records, rowErrs := complaint.DecodeJSON(data)
	return keepDecoded(s.Name(), records, rowErrs)
}

// keepDecoded logs skipped rows and fails only when nothing survived.
func keepDecoded(name string, records []complaint.Record, rowErrs []error) ([]complaint.Record, error) {
	for _, rowErr := range rowErrs {
		log.Printf("  ⚠️  Skipping row: %v", rowErr)
	}
	if len(records) == 0 && len(rowErrs) > 0 {
		return nil, errors.NewFetchError(name, "no decodable complaints", rowErrs[0])
	}
	if records == nil {
		records = []complaint.Record{}
	}
	return records, nil
}

// StoreSource serves complaints from the local SQLite snapshot.
type StoreSource struct {
	store        Lister
	municipality string
}

// NewStoreSource creates a source over store. An empty municipality
// returns every stored complaint.
func NewStoreSource(store Lister, municipality string) *StoreSource {
	return &StoreSource{store: store, municipality: municipality}
}

func (s *StoreSource) Name() string { return config.SourceSQLite }

func (s *StoreSource) Fetch(ctx context.Context) ([]complaint.Record, error) {
	records, err := s.store.ListComplaints(ctx, s.municipality)
	if err != nil {
		return nil, errors.NewFetchError(s.Name(), "failed to list stored complaints", err)
	}
	return records, nil
}
