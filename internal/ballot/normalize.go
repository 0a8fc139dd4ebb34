package ballot

import (
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog/log"
)

// MissingMap records, per key of a completed store, which alternatives were
// appended by Complete rather than ranked by the voters.
type MissingMap map[Key][]Alternative

// SourceMap records, per key of a normalized store, the ballot as the voters
// cast it, ties and omissions included.
type SourceMap map[Key]Ballot

// Normalized is the strict, complete form of a store together with the
// alternatives Complete had to synthesize and the source ballot of each row.
type Normalized struct {
	Store        *Store
	Missing      MissingMap
	Source       SourceMap
	Alternatives int
}

// SourceOf returns the ballot the row under key was derived from, or nil.
func (n *Normalized) SourceOf(key Key) Ballot {
	return n.Source[key]
}

// IsMissing reports whether a was synthesized for the ballot under key.
func (n *Normalized) IsMissing(key Key, a Alternative) bool {
	for _, m := range n.Missing[key] {
		if m == a {
			return true
		}
	}
	return false
}

// rowOf keeps the source row of an already row-qualified entry and otherwise
// uses its position in the store.
func rowOf(e Entry, i int) int {
	if e.Key.Row != NoRow {
		return e.Key.Row
	}
	return i
}

// MakeStrict resolves every tie into one uniformly random order. Each result
// is keyed by (resolved ranking, source row) so that different source rows
// are never merged.
func MakeStrict(s *Store, rng *rand.Rand) *Store {
	out := NewStore()
	for i, e := range s.entries {
		strict := make(Ballot, 0, e.Ballot.Size())
		for _, g := range e.Ballot {
			if len(g) == 1 {
				strict = append(strict, RankGroup{g[0]})
				continue
			}
			resolved := make([]Alternative, len(g))
			copy(resolved, g)
			rng.Shuffle(len(resolved), func(a, b int) {
				resolved[a], resolved[b] = resolved[b], resolved[a]
			})
			for _, a := range resolved {
				strict = append(strict, RankGroup{a})
			}
		}
		// the source ballot was already checked on insertion
		_ = out.add(strict, rowOf(e, i), e.Count)
	}

	log.Trace().Int("rows", out.Len()).Int("voters", out.Total()).Msg("resolved ties")
	return out
}

// Complete appends to every ballot the alternatives it omits, in uniformly
// random order, and reports which alternatives were appended per key.
func Complete(s *Store, m int, rng *rand.Rand) (*Store, MissingMap, error) {
	if m <= 0 {
		return nil, nil, ErrMissingAlternativeCount
	}

	out := NewStore()
	missing := make(MissingMap)
	for i, e := range s.entries {
		if err := e.Ballot.check(m); err != nil {
			return nil, nil, fmt.Errorf("ballot %s: %w", e.Key, err)
		}

		absent := MissingSet(e.Ballot, m)
		completed := e.Ballot.Clone()
		if len(absent) > 0 {
			order := make([]Alternative, len(absent))
			copy(order, absent)
			rng.Shuffle(len(order), func(a, b int) {
				order[a], order[b] = order[b], order[a]
			})
			for _, a := range order {
				completed = append(completed, RankGroup{a})
			}
		}

		row := rowOf(e, i)
		if err := out.add(completed, row, e.Count); err != nil {
			return nil, nil, err
		}
		if len(absent) > 0 {
			missing[Key{Ranking: completed.String(), Row: row}] = absent
		}
	}

	log.Trace().Int("rows", out.Len()).Int("completed", len(missing)).Msg("filled missing alternatives")
	return out, missing, nil
}

// Normalize resolves ties and then fills missing alternatives. The input
// store is left untouched.
func Normalize(s *Store, m int, rng *rand.Rand) (*Normalized, error) {
	strict := MakeStrict(s, rng)
	complete, missing, err := Complete(strict, m, rng)
	if err != nil {
		return nil, fmt.Errorf("complete ballots: %w", err)
	}

	rows := make(map[int]Ballot, len(s.entries))
	for i, e := range s.entries {
		rows[rowOf(e, i)] = e.Ballot
	}
	source := make(SourceMap, complete.Len())
	for _, e := range complete.entries {
		source[e.Key] = rows[e.Key.Row].Clone()
	}

	log.Debug().
		Int("alternatives", m).
		Int("rows", complete.Len()).
		Int("voters", complete.Total()).
		Msg("ballots normalized")

	return &Normalized{Store: complete, Missing: missing, Source: source, Alternatives: m}, nil
}
