// Package ballot holds the in-memory ballot multiset and the passes that turn
// tied or partial rankings into strict, complete ones.
package ballot

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

var (
	ErrInvalidAlternative      = errors.New("alternative out of range")
	ErrEmptyRankGroup          = errors.New("empty rank group")
	ErrDuplicateAlternative    = errors.New("alternative ranked more than once")
	ErrNegativeCount           = errors.New("negative vote count")
	ErrMalformedLine           = errors.New("malformed ballot line")
	ErrMissingAlternativeCount = errors.New("number of alternatives is unknown")
)

// NoRow marks a key that is not qualified by a source row.
const NoRow = -1

// Alternative is a candidate identifier in [1, m].
type Alternative int

// RankGroup is a set of alternatives tied at one rank position.
type RankGroup []Alternative

// Ballot is an ordered sequence of rank groups, best first. It may omit
// alternatives.
type Ballot []RankGroup

// Strict builds a ballot with one alternative per rank.
func Strict(alts ...Alternative) Ballot {
	b := make(Ballot, len(alts))
	for i, a := range alts {
		b[i] = RankGroup{a}
	}
	return b
}

// String renders the ballot the way it appears in a ballot file, e.g. "1,{2,3},4".
func (b Ballot) String() string {
	var sb strings.Builder
	for i, g := range b {
		if i > 0 {
			sb.WriteByte(',')
		}
		if len(g) == 1 {
			sb.WriteString(strconv.Itoa(int(g[0])))
			continue
		}
		sb.WriteByte('{')
		for j, a := range g {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Itoa(int(a)))
		}
		sb.WriteByte('}')
	}
	return sb.String()
}

// IsStrict reports whether every rank group holds exactly one alternative.
func (b Ballot) IsStrict() bool {
	for _, g := range b {
		if len(g) != 1 {
			return false
		}
	}
	return true
}

// Size is the number of alternatives ranked, counting every member of a tie.
func (b Ballot) Size() int {
	n := 0
	for _, g := range b {
		n += len(g)
	}
	return n
}

// Alternatives flattens the ballot in rank order.
func (b Ballot) Alternatives() []Alternative {
	out := make([]Alternative, 0, b.Size())
	for _, g := range b {
		out = append(out, g...)
	}
	return out
}

// Clone returns a deep copy.
func (b Ballot) Clone() Ballot {
	out := make(Ballot, len(b))
	for i, g := range b {
		out[i] = slices.Clone(g)
	}
	return out
}

// check verifies the ballot structure. With m > 0 every alternative must also
// lie in [1, m].
func (b Ballot) check(m int) error {
	seen := make(map[Alternative]struct{}, b.Size())
	for i, g := range b {
		if len(g) == 0 {
			return fmt.Errorf("rank %d: %w", i, ErrEmptyRankGroup)
		}
		for _, a := range g {
			if a < 1 || (m > 0 && int(a) > m) {
				return fmt.Errorf("alternative %d with m=%d: %w", a, m, ErrInvalidAlternative)
			}
			if _, dup := seen[a]; dup {
				return fmt.Errorf("alternative %d: %w", a, ErrDuplicateAlternative)
			}
			seen[a] = struct{}{}
		}
	}
	return nil
}

// Validate checks the ballot against m alternatives.
func (b Ballot) Validate(m int) error {
	return b.check(m)
}

// MissingSet returns the alternatives in [1, m] absent from b, ascending.
func MissingSet(b Ballot, m int) []Alternative {
	present := make(map[Alternative]struct{}, b.Size())
	for _, g := range b {
		for _, a := range g {
			present[a] = struct{}{}
		}
	}
	var missing []Alternative
	for a := Alternative(1); int(a) <= m; a++ {
		if _, ok := present[a]; !ok {
			missing = append(missing, a)
		}
	}
	return missing
}

// Key identifies one entry of a Store. Derived stores qualify the ranking with
// the row it came from so resolutions of different source rows never merge.
type Key struct {
	Ranking string
	Row     int
}

func (k Key) String() string {
	if k.Row == NoRow {
		return k.Ranking
	}
	return k.Ranking + "#" + strconv.Itoa(k.Row)
}

// Entry is one ballot of the multiset together with its multiplicity.
type Entry struct {
	Key    Key
	Ballot Ballot
	Count  int
}
