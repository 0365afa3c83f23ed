// Package corpus holds the read-only collection of prior-art records that the
// retrieval layer searches. Records are loaded once at startup from a tabular
// source and never mutated afterwards, so a *Store is safe for unsynchronised
// concurrent reads.
package corpus

import (
	"fmt"
	"strings"
)

// Unknown is the sentinel value assigned to every optional Record field that
// is absent or blank in the source data.
const Unknown = "unknown"

// Record is a single prior-art entry. All fields are populated after loading:
// optional fields carry Unknown rather than an empty string.
type Record struct {
	// ID is the source identifier (e.g. a patent number). When the source row
	// has none it is a positional placeholder of the form "ID_<n>".
	ID string `json:"patent_id"`
	// Title is the only required field; it is what gets embedded and matched.
	Title string `json:"title"`
	// Category is the technology category or classification.
	Category string `json:"technology_category"`
	// Assignee is the owner of the record.
	Assignee string `json:"assignee"`
	// PublicationDate is the publication date as written in the source.
	PublicationDate string `json:"publication_date"`
	// FilingDate is the filing date as written in the source.
	FilingDate string `json:"filing_date"`
}

// Summary returns the one-line description handed to the generative model.
func (r Record) Summary() string {
	return fmt.Sprintf("Title: %s, Category: %s, Assignee: %s", r.Title, r.Category, r.Assignee)
}

// placeholderID returns the positional identifier used for row i (0-based).
func placeholderID(i int) string {
	return fmt.Sprintf("ID_%d", i+1)
}

// orUnknown trims v and substitutes Unknown when nothing is left.
func orUnknown(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return Unknown
	}
	return v
}

// normalise resolves defaults for a record read from row i.
func normalise(r Record, i int) Record {
	r.Title = strings.TrimSpace(r.Title)
	r.ID = strings.TrimSpace(r.ID)
	if r.ID == "" {
		r.ID = placeholderID(i)
	}
	r.Category = orUnknown(r.Category)
	r.Assignee = orUnknown(r.Assignee)
	r.PublicationDate = orUnknown(r.PublicationDate)
	r.FilingDate = orUnknown(r.FilingDate)
	return r
}
