package corpus

import (
	"errors"
	"fmt"
	"iter"
)

// ErrIndexOutOfRange is returned by Get when the index does not address a record.
var ErrIndexOutOfRange = errors.New("corpus: index out of range")

// Store is an ordered, index-addressable, immutable collection of records.
// The zero value is an empty store.
type Store struct {
	// records is the backing slice; never modified after construction.
	records []Record
}

// NewStore builds a Store from records, resolving defaults for every entry.
// The input slice is copied so later changes by the caller are not observed.
func NewStore(records []Record) *Store {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = normalise(r, i)
	}
	return &Store{records: out}
}

// Len returns the number of records. A nil *Store has length zero.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Get returns the record at index i.
func (s *Store) Get(i int) (Record, error) {
	if i < 0 || i >= s.Len() {
		return Record{}, fmt.Errorf("%w: %d (size %d)", ErrIndexOutOfRange, i, s.Len())
	}
	return s.records[i], nil
}

// All yields every record with its index in store order.
func (s *Store) All() iter.Seq2[int, Record] {
	return func(yield func(int, Record) bool) {
		for i := range s.Len() {
			if !yield(i, s.records[i]) {
				return
			}
		}
	}
}

// Titles returns the record titles in store order. The result is a fresh
// slice and may be modified by the caller.
func (s *Store) Titles() []string {
	titles := make([]string, 0, s.Len())
	for _, r := range s.All() {
		titles = append(titles, r.Title)
	}
	return titles
}
