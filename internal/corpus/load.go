package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrLoad is wrapped by every error returned from the loaders. Callers treat
// it as "store unavailable" and degrade rather than exit.
var ErrLoad = errors.New("corpus: load failed")

// Column names recognised in the CSV header. Only ColumnTitle is required.
const (
	ColumnTitle           = "title"
	ColumnID              = "patent_id"
	ColumnCategory        = "technology_category"
	ColumnAssignee        = "assignee"
	ColumnPublicationDate = "publication_date"
	ColumnFilingDate      = "filing_date"
)

// LoadCSV reads the corpus file at path. When limit is positive only the first
// limit data rows are kept. Loading is all-or-nothing: any read or parse error
// returns a nil store.
func LoadCSV(path string, limit int) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrLoad, path, err)
	}
	defer f.Close()

	s, err := ReadCSV(f, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ReadCSV parses CSV data from r. See LoadCSV for the limit semantics.
// Rows whose title is blank are skipped; every other field falls back to its
// documented default.
func ReadCSV(r io.Reader, limit int) (*Store, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrLoad)
		}
		return nil, fmt.Errorf("%w: read header: %w", ErrLoad, err)
	}

	cols := indexColumns(header)
	titleCol, ok := cols[ColumnTitle]
	if !ok {
		return nil, fmt.Errorf("%w: missing required %q column", ErrLoad, ColumnTitle)
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var records []Record
	for {
		if limit > 0 && len(records) >= limit {
			break
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoad, err)
		}
		if titleCol >= len(row) || strings.TrimSpace(row[titleCol]) == "" {
			continue
		}
		records = append(records, Record{
			ID:              field(row, ColumnID),
			Title:           row[titleCol],
			Category:        field(row, ColumnCategory),
			Assignee:        field(row, ColumnAssignee),
			PublicationDate: field(row, ColumnPublicationDate),
			FilingDate:      field(row, ColumnFilingDate),
		})
	}

	return NewStore(records), nil
}

// indexColumns maps lowercased header names to their position.
func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}
