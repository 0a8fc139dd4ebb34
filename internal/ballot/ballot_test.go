package ballot

import (
	"bytes"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func mustParse(t *testing.T, s string) Ballot {
	t.Helper()
	b, err := ParseBallot(s)
	require.NoError(t, err)
	return b
}

func TestParseBallot(t *testing.T) {
	b := mustParse(t, " 1, {2,3} ,4")
	assert.Equal(t, Ballot{{1}, {2, 3}, {4}}, b)
	assert.Equal(t, "1,{2,3},4", b.String())
	assert.False(t, b.IsStrict())
	assert.Equal(t, 4, b.Size())

	for _, bad := range []string{"", "1,,2", "{1,2", "1,2}", "{{1}}", "{}", "a,b", "{1,x}", "1{2}"} {
		_, err := ParseBallot(bad)
		assert.ErrorIs(t, err, ErrMalformedLine, "input %q", bad)
	}
}

func TestStoreAddMergesIdenticalRankings(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(Strict(1, 2, 3), 2))
	require.NoError(t, s.Add(Strict(2, 1, 3), 1))
	require.NoError(t, s.Add(Strict(1, 2, 3), 4))

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 7, s.Total())
	count, ok := s.Count(Key{Ranking: "1,2,3", Row: NoRow})
	require.True(t, ok)
	assert.Equal(t, 6, count)

	assert.ErrorIs(t, s.Add(Strict(1), -1), ErrNegativeCount)
	assert.ErrorIs(t, s.Add(Strict(1, 1), 1), ErrDuplicateAlternative)
	assert.ErrorIs(t, s.Add(Ballot{{1}, {}}, 1), ErrEmptyRankGroup)
	assert.ErrorIs(t, s.Add(Strict(0), 1), ErrInvalidAlternative)
}

func TestBallotValidate(t *testing.T) {
	assert.NoError(t, mustParse(t, "1,{2,3}").Validate(3))
	assert.ErrorIs(t, mustParse(t, "1,{2,4}").Validate(3), ErrInvalidAlternative)
	assert.ErrorIs(t, mustParse(t, "1,{2,1}").Validate(3), ErrDuplicateAlternative)
	assert.ErrorIs(t, Ballot{RankGroup{1}, RankGroup{}}.Validate(3), ErrEmptyRankGroup)
	assert.NoError(t, mustParse(t, "9").Validate(0))
}

func TestMissingSet(t *testing.T) {
	assert.Equal(t, []Alternative{2, 5}, MissingSet(mustParse(t, "4,{1,3}"), 5))
	assert.Empty(t, MissingSet(Strict(3, 1, 2), 3))
}

func TestMakeStrictKeepsRowsApart(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(mustParse(t, "{1,2},3"), 3))
	require.NoError(t, s.Add(mustParse(t, "{2,1},3"), 2))
	require.NoError(t, s.Add(Strict(1, 2, 3), 1))

	strict := MakeStrict(s, seeded(7))

	assert.True(t, strict.IsStrict())
	assert.Equal(t, 3, strict.Len(), "rows must never merge")
	assert.Equal(t, s.Total(), strict.Total())
	for i, e := range strict.Entries() {
		assert.Equal(t, i, e.Key.Row)
	}
	// the source store is not modified
	assert.False(t, s.IsStrict())
}

func TestCompleteAppendsMissing(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(Strict(2), 4))
	require.NoError(t, s.Add(Strict(3, 1, 2), 1))

	out, missing, err := Complete(s, 3, seeded(1))
	require.NoError(t, err)

	entries := out.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, Alternative(2), entries[0].Ballot[0][0])
	assert.ElementsMatch(t, []Alternative{1, 2, 3}, entries[0].Ballot.Alternatives())
	assert.Equal(t, []Alternative{1, 3}, missing[entries[0].Key])
	_, ok := missing[entries[1].Key]
	assert.False(t, ok, "complete ballots have no missing entry")

	_, _, err = Complete(s, 0, seeded(1))
	assert.ErrorIs(t, err, ErrMissingAlternativeCount)

	_, _, err = Complete(s, 2, seeded(1))
	assert.ErrorIs(t, err, ErrInvalidAlternative)
}

func TestNormalizeConservesMassAndShape(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(mustParse(t, "{1,2,3}"), 5))
	require.NoError(t, s.Add(mustParse(t, "4,{2,1}"), 2))
	require.NoError(t, s.Add(mustParse(t, "3"), 7))
	require.NoError(t, s.Add(Strict(1, 2, 3, 4), 1))
	const m = 4

	for seed := range uint64(20) {
		n, err := Normalize(s, m, seeded(seed))
		require.NoError(t, err)

		assert.True(t, n.Store.IsStrict())
		assert.True(t, n.Store.IsComplete(m))
		assert.Equal(t, s.Total(), n.Store.Total())
		assert.Equal(t, s.Len(), n.Store.Len())

		n.Store.Each(func(e Entry) {
			assert.Len(t, e.Ballot, m)
			for _, a := range n.Missing[e.Key] {
				assert.True(t, n.IsMissing(e.Key, a))
			}
		})
	}
}

func TestNormalizeKeepsSourceBallots(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(mustParse(t, "{1,2},3"), 5))
	require.NoError(t, s.Add(mustParse(t, "4"), 1))

	n, err := Normalize(s, 4, seeded(3))
	require.NoError(t, err)
	require.Len(t, n.Source, 2)

	entries := n.Store.Entries()
	assert.Equal(t, "{1,2},3", n.SourceOf(entries[0].Key).String())
	assert.Equal(t, "4", n.SourceOf(entries[1].Key).String())
	assert.Nil(t, n.SourceOf(Key{Ranking: "1,2,3,4", Row: 7}))
}

func TestNormalizeIsReproducible(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(mustParse(t, "{1,2,3,4,5}"), 1))
	require.NoError(t, s.Add(mustParse(t, "2"), 1))

	a, err := Normalize(s, 5, seeded(42))
	require.NoError(t, err)
	b, err := Normalize(s, 5, seeded(42))
	require.NoError(t, err)
	assert.Equal(t, a.Store.Entries(), b.Store.Entries())
	assert.Equal(t, a.Missing, b.Missing)
}

func TestParseFile(t *testing.T) {
	text := `# FILE NAME: 00004-00000001.soc
# NUMBER ALTERNATIVES: 4
# ALTERNATIVE NAME 1: Alice
3: 1,{2,3},4
this line has no colon
2: 2,1
1: 1,{2,3},4
`
	f, err := Parse(strings.NewReader(text))
	require.NoError(t, err)

	assert.Equal(t, 4, f.Alternatives)
	assert.Equal(t, "Alice", f.Metadata["ALTERNATIVE NAME 1"])
	assert.Equal(t, 2, f.Store.Len())
	assert.Equal(t, 6, f.Store.Total())
}

func TestParseFileErrors(t *testing.T) {
	_, err := Parse(strings.NewReader("x: 1,2\n"))
	assert.ErrorIs(t, err, ErrMalformedLine)

	_, err = Parse(strings.NewReader("# NUMBER ALTERNATIVES: 2\n1: 1,{2,\n"))
	assert.ErrorIs(t, err, ErrMalformedLine)

	_, err = Parse(strings.NewReader("# NUMBER ALTERNATIVES: 2\n1: 1,3\n"))
	assert.ErrorIs(t, err, ErrInvalidAlternative)

	_, err = Parse(strings.NewReader("# NUMBER ALTERNATIVES: many\n"))
	assert.ErrorIs(t, err, ErrMissingAlternativeCount)
}

func TestParseFileInfersAlternatives(t *testing.T) {
	f, err := Parse(strings.NewReader("2: 3,1\n1: {5,2}\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, f.Alternatives)
}

func TestWriteRoundTrip(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(mustParse(t, "{1,2},3"), 3))
	require.NoError(t, s.Add(Strict(3), 2))
	n, err := Normalize(s, 3, seeded(3))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, &File{Alternatives: 3, Store: n.Store}))
	assert.Contains(t, buf.String(), "# NUMBER ALTERNATIVES: 3\n")

	back, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, 3, back.Alternatives)
	assert.Equal(t, n.Store.Total(), back.Store.Total())
	assert.True(t, back.Store.IsStrict())
	assert.True(t, back.Store.IsComplete(3))
}
