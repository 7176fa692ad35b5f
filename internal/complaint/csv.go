package complaint

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// csvColumns maps accepted header names onto the wire field they fill.
var csvColumns = map[string]string{
	"id":                 "id",
	"complaint_id":       "id",
	"municipality":       "municipality",
	"title":              "title",
	"category":           "category",
	"location":           "location",
	"latitude":           "latitude",
	"lat":                "latitude",
	"longitude":          "longitude",
	"lng":                "longitude",
	"votes":              "votes",
	"status":             "status",
	"submitteddate":      "submitted",
	"submitted_date":     "submitted",
	"created_at":         "submitted",
	"resolveddate":       "resolved",
	"resolved_date":      "resolved",
	"verificationcount":  "verification",
	"verification_count": "verification",
}

// DecodeCSV decodes a CSV export with a header row. Columns are matched by
// name, case-insensitively, so exports with extra or reordered columns
// still load.
//
// Returns:
//   - []Record: Successfully decoded records, in file order
//   - []error: One entry per skipped row
//   - error: The header is missing or lacks the id/status/submitted columns
func DecodeCSV(r io.Reader) ([]Record, []error, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, fmt.Errorf("csv export is empty")
		}
		return nil, nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	index := make(map[string]int)
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if field, ok := csvColumns[key]; ok {
			if _, dup := index[field]; !dup {
				index[field] = i
			}
		}
	}
	for _, required := range []string{"id", "status", "submitted"} {
		if _, ok := index[required]; !ok {
			return nil, nil, fmt.Errorf("csv header lacks a %s column", required)
		}
	}

	var records []Record
	var errs []error
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		rec, err := csvRow(row, index).toRecord()
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		records = append(records, rec)
	}
	return records, errs, nil
}

func csvRow(row []string, index map[string]int) wireRecord {
	get := func(field string) (string, bool) {
		i, ok := index[field]
		if !ok || i >= len(row) {
			return "", false
		}
		v := strings.TrimSpace(row[i])
		return v, v != ""
	}

	var w wireRecord
	if id, ok := get("id"); ok {
		w.ID, _ = json.Marshal(id)
	}
	w.Municipality, _ = get("municipality")
	w.Title, _ = get("title")
	w.Category, _ = get("category")
	w.Status, _ = get("status")
	if v, ok := get("location"); ok {
		w.Location = &v
	}
	if v, ok := get("submitted"); ok {
		w.SubmittedDate = &v
	}
	if v, ok := get("resolved"); ok {
		w.ResolvedDate = &v
	}

	lat, latOK := get("latitude")
	lng, lngOK := get("longitude")
	if latOK && lngOK {
		la, errLat := strconv.ParseFloat(lat, 64)
		ln, errLng := strconv.ParseFloat(lng, 64)
		if errLat == nil && errLng == nil {
			w.Latitude, w.Longitude = &la, &ln
		}
	}
	if v, ok := get("votes"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			w.Votes = &n
		}
	}
	if v, ok := get("verification"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			w.VerificationCount = &n
		}
	}
	return w
}
