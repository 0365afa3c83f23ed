// Package lexical implements the keyword-overlap matcher used when vector
// search is unavailable or fails. It needs nothing but the record store, so
// it is always available.
package lexical

import (
	"strings"

	"github.com/54b3r/priorart-go/internal/corpus"
)

const (
	// TitleWeight is added when any query keyword occurs in the record title.
	TitleWeight = 0.6
	// CategoryWeight is added when any query keyword occurs in the category.
	CategoryWeight = 0.4
	// Threshold is the exclusive lower bound a score must clear to be admitted.
	Threshold = 0.3
	// DefaultScanLimit bounds how many records a search inspects.
	DefaultScanLimit = 500
)

// Keywords splits query on whitespace and lowercases each token.
func Keywords(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// Score returns the keyword-overlap score of rec for the given keywords:
// TitleWeight if any keyword is a substring of the lowercased title, plus
// CategoryWeight if any keyword is a substring of the lowercased category.
// The corpus.Unknown placeholder is not a category and never matches.
func Score(keywords []string, rec corpus.Record) float64 {
	var score float64
	if containsAny(strings.ToLower(rec.Title), keywords) {
		score += TitleWeight
	}
	if rec.Category != corpus.Unknown && containsAny(strings.ToLower(rec.Category), keywords) {
		score += CategoryWeight
	}
	return score
}

// Matcher scans a record store for keyword overlap.
type Matcher struct {
	// store is the read-only corpus; a nil store yields no matches.
	store *corpus.Store
}

// New returns a Matcher over store.
func New(store *corpus.Store) *Matcher {
	return &Matcher{store: store}
}

// Search scans the store in index order, inspecting at most scanLimit records
// (DefaultScanLimit when scanLimit <= 0), and admits records scoring strictly
// above Threshold. It stops as soon as topK matches are admitted. Ranks follow
// collection order, so among equal scores the earlier record wins. The result
// is empty when nothing clears the threshold.
func (m *Matcher) Search(query string, topK, scanLimit int) []corpus.Match {
	if topK <= 0 {
		return nil
	}
	if scanLimit <= 0 {
		scanLimit = DefaultScanLimit
	}
	keywords := Keywords(query)
	if len(keywords) == 0 {
		return nil
	}

	var out []corpus.Match
	for i, rec := range m.store.All() {
		if i >= scanLimit || len(out) >= topK {
			break
		}
		score := Score(keywords, rec)
		if score <= Threshold {
			continue
		}
		out = append(out, corpus.Match{Record: rec, Score: corpus.RoundScore(score, 2)})
	}
	return corpus.Rerank(out)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
