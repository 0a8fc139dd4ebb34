package ballot

import (
	"fmt"
	"slices"
)

// Store is a ballot multiset keyed by canonical ranking. Entries keep the
// order in which they were first added, which keeps every randomized pass
// reproducible under a seeded source.
type Store struct {
	entries []Entry
	index   map[Key]int
}

func NewStore() *Store {
	return &Store{index: make(map[Key]int)}
}

// Add records count voters casting b. Identical rankings accumulate into one
// entry.
func (s *Store) Add(b Ballot, count int) error {
	return s.add(b, NoRow, count)
}

func (s *Store) add(b Ballot, row, count int) error {
	if count < 0 {
		return fmt.Errorf("ballot %s: %w", b, ErrNegativeCount)
	}
	if err := b.check(0); err != nil {
		return fmt.Errorf("ballot %s: %w", b, err)
	}

	key := Key{Ranking: b.String(), Row: row}
	if i, ok := s.index[key]; ok {
		s.entries[i].Count += count
		return nil
	}
	s.index[key] = len(s.entries)
	s.entries = append(s.entries, Entry{Key: key, Ballot: b.Clone(), Count: count})
	return nil
}

// Len is the number of distinct keys.
func (s *Store) Len() int {
	return len(s.entries)
}

// Entries returns a copy of the entries in insertion order.
func (s *Store) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = Entry{Key: e.Key, Ballot: e.Ballot.Clone(), Count: e.Count}
	}
	return out
}

// Each calls fn for every entry in insertion order without copying. fn must
// not modify the ballot.
func (s *Store) Each(fn func(e Entry)) {
	for _, e := range s.entries {
		fn(e)
	}
}

// Count returns the multiplicity recorded under key.
func (s *Store) Count(key Key) (int, bool) {
	i, ok := s.index[key]
	if !ok {
		return 0, false
	}
	return s.entries[i].Count, true
}

// Total is the number of voters represented.
func (s *Store) Total() int {
	total := 0
	for _, e := range s.entries {
		total += e.Count
	}
	return total
}

// MaxAlternative is the largest alternative id appearing in any ballot.
func (s *Store) MaxAlternative() int {
	m := 0
	for _, e := range s.entries {
		for _, g := range e.Ballot {
			if len(g) > 0 {
				m = max(m, int(slices.Max(g)))
			}
		}
	}
	return m
}

// IsStrict reports whether no ballot contains a tie.
func (s *Store) IsStrict() bool {
	for _, e := range s.entries {
		if !e.Ballot.IsStrict() {
			return false
		}
	}
	return true
}

// IsComplete reports whether every ballot ranks all m alternatives.
func (s *Store) IsComplete(m int) bool {
	for _, e := range s.entries {
		if e.Ballot.Size() != m {
			return false
		}
	}
	return true
}

// Validate checks every ballot against m alternatives.
func (s *Store) Validate(m int) error {
	for _, e := range s.entries {
		if err := e.Ballot.Validate(m); err != nil {
			return fmt.Errorf("ballot %s: %w", e.Key, err)
		}
	}
	return nil
}
