package storage

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"

	"civicmon/internal/complaint"
)

// bufferSize for buffered CSV reads (64KB)
const bufferSize = 64 * 1024

// ImportResult summarizes a CSV import.
type ImportResult struct {
	Imported int
	Skipped  int
}

// ImportCSV loads a CSV export into the store.
//
// Malformed rows are logged and skipped; the remaining rows are written in
// one batch, so a lifecycle reversal anywhere rejects the whole file.
func (s *Store) ImportCSV(ctx context.Context, path string) (ImportResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to open csv export: %w", err)
	}
	defer file.Close()

	records, rowErrs, err := complaint.DecodeCSV(bufio.NewReaderSize(file, bufferSize))
	if err != nil {
		return ImportResult{}, err
	}
	for _, rowErr := range rowErrs {
		log.Printf("  ⚠️  Skipping row: %v", rowErr)
	}

	n, err := s.UpsertComplaints(ctx, records)
	if err != nil {
		return ImportResult{Skipped: len(rowErrs)}, err
	}
	return ImportResult{Imported: n, Skipped: len(rowErrs)}, nil
}
