package complaint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// wireRecord mirrors the row shape returned by the complaint backend.
//
// The backend is loosely typed: ids arrive as numbers or strings, field
// names differ between the REST API and CSV/SQL exports, and optional
// values are often null. Every field is decoded leniently here and
// converted into a strongly typed Record by toRecord.
type wireRecord struct {
	ID           json.RawMessage `json:"id"`
	Municipality string          `json:"municipality"`
	Title        string          `json:"title"`
	Category     string          `json:"category"`
	Location     *string         `json:"location"`
	Latitude     *float64        `json:"latitude"`
	Longitude    *float64        `json:"longitude"`
	Votes        *int            `json:"votes"`
	Status       string          `json:"status"`

	SubmittedDate      *string `json:"submittedDate"`
	SubmittedDateSnake *string `json:"submitted_date"`
	CreatedAt          *string `json:"created_at"`

	ResolvedDate      *string `json:"resolvedDate"`
	ResolvedDateSnake *string `json:"resolved_date"`

	VerificationCount      *int `json:"verificationCount"`
	VerificationCountSnake *int `json:"verification_count"`
}

// timeLayouts lists accepted timestamp formats, most specific first.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02",
}

// ParseTime parses a backend timestamp. Values without a zone are UTC.
func ParseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", value)
}

// DecodeJSON decodes a backend payload into complaint records.
//
// Accepted shapes:
//   - A top-level JSON array of rows
//   - An object wrapping the rows in "data" or "complaints"
//
// Malformed rows are skipped and reported in the returned error slice, so a
// single bad row never hides the rest of the batch. A payload that is not
// JSON at all yields no records and one error.
//
// Returns:
//   - []Record: Successfully decoded records, in payload order
//   - []error: One entry per skipped row (or for an undecodable payload)
func DecodeJSON(payload []byte) ([]Record, []error) {
	rows, err := splitRows(payload)
	if err != nil {
		return nil, []error{err}
	}

	records := make([]Record, 0, len(rows))
	var errs []error
	for i, raw := range rows {
		var w wireRecord
		if err := json.Unmarshal(raw, &w); err != nil {
			errs = append(errs, fmt.Errorf("row %d: %w", i, err))
			continue
		}
		r, err := w.toRecord()
		if err != nil {
			errs = append(errs, fmt.Errorf("row %d: %w", i, err))
			continue
		}
		records = append(records, r)
	}
	return records, errs
}

func splitRows(payload []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var rows []json.RawMessage
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("failed to parse complaint array: %w", err)
		}
		return rows, nil
	}

	var envelope struct {
		Data       []json.RawMessage `json:"data"`
		Complaints []json.RawMessage `json:"complaints"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse complaint payload: %w", err)
	}
	if envelope.Data != nil {
		return envelope.Data, nil
	}
	return envelope.Complaints, nil
}

func (w wireRecord) toRecord() (Record, error) {
	id, err := decodeID(w.ID)
	if err != nil {
		return Record{}, err
	}

	status, err := ParseStatus(w.Status)
	if err != nil {
		return Record{}, fmt.Errorf("complaint %s: %w", id, err)
	}

	submittedRaw := firstNonNil(w.SubmittedDate, w.SubmittedDateSnake, w.CreatedAt)
	if submittedRaw == "" {
		return Record{}, fmt.Errorf("complaint %s: missing submitted date", id)
	}
	submitted, err := ParseTime(submittedRaw)
	if err != nil {
		return Record{}, fmt.Errorf("complaint %s: %w", id, err)
	}

	r := Record{
		ID:           id,
		Municipality: strings.TrimSpace(w.Municipality),
		Title:        strings.TrimSpace(w.Title),
		Category:     ParseCategory(w.Category),
		SubmittedAt:  submitted,
		Status:       status,
	}
	if w.Location != nil {
		r.Location = strings.TrimSpace(*w.Location)
	}
	if w.Latitude != nil && w.Longitude != nil {
		r.Position = &Coordinates{Lat: *w.Latitude, Lng: *w.Longitude}
	}
	if w.Votes != nil && *w.Votes > 0 {
		r.Votes = *w.Votes
	}
	if v := firstInt(w.VerificationCount, w.VerificationCountSnake); v > 0 {
		r.VerificationCount = v
	}

	// An unparseable resolved date is a data defect, not a reason to drop
	// the complaint: it is kept without a resolution timestamp.
	if resolvedRaw := firstNonNil(w.ResolvedDate, w.ResolvedDateSnake); resolvedRaw != "" {
		if resolved, err := ParseTime(resolvedRaw); err == nil {
			r.ResolvedAt = &resolved
		}
	}

	return r, nil
}

// decodeID accepts a JSON number or string id and normalizes it to a string.
func decodeID(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", fmt.Errorf("missing complaint id")
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("invalid complaint id: %w", err)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return "", fmt.Errorf("missing complaint id")
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return "", fmt.Errorf("invalid complaint id %s", string(trimmed))
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}

func firstNonNil(values ...*string) string {
	for _, v := range values {
		if v != nil && strings.TrimSpace(*v) != "" {
			return *v
		}
	}
	return ""
}

func firstInt(values ...*int) int {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}
