package report

import (
	"bytes"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplex-labs/socialchoice/internal/ballot"
	"github.com/tensorplex-labs/socialchoice/internal/utility"
)

func TestWriteValues(t *testing.T) {
	inst := utility.Instance{
		{
			Key:     ballot.Key{Ranking: "2,1,3", Row: 0},
			Ballot:  ballot.Strict(2, 1, 3),
			Vectors: []utility.Vector{{2: 0.75, 1: 0.5, 3: 0}, {2: 1, 1: 0.25, 3: 0.125}},
		},
		{
			Key:     ballot.Key{Ranking: "3,1,2", Row: 1},
			Ballot:  ballot.Strict(3, 1, 2),
			Vectors: []utility.Vector{{3: 0.5, 1: 0.25, 2: 0}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteValues(&buf, inst))
	assert.Equal(t,
		"2: {1: 0.5, 2: 0.75, 3: 0}\n"+
			"2: {1: 0.25, 2: 1, 3: 0.125}\n"+
			"3: {1: 0.25, 2: 0, 3: 0.5}\n",
		buf.String())
}

func TestWriteTable(t *testing.T) {
	table := &Table{
		Distributions: []string{"uniform", "power(2)"},
		Rows: []Row{
			{Rule: "plurality", Cells: []Cell{{Average: 1.25, Deterministic: 1}, {Average: 1.5, Deterministic: 1.1}}},
			{Rule: "borda", Cells: []Cell{{Average: 1.125, Deterministic: 1}, {Error: "winner has zero total utility"}}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, table, MetricAverage))
	assert.Equal(t, "rule,uniform,power(2)\nplurality,1.25,1.5\nborda,1.125,\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteTable(&buf, table, MetricDeterministic))
	assert.Equal(t, "rule,uniform,power(2)\nplurality,1,1.1\nborda,1,\n", buf.String())
}

func TestWriteJSONAndSnapshot(t *testing.T) {
	s := ballot.NewStore()
	b, err := ballot.ParseBallot("{1,2}")
	require.NoError(t, err)
	require.NoError(t, s.Add(b, 3))
	n, err := ballot.Normalize(s, 3, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)

	snap := Snapshot(n)
	require.Len(t, snap, 1)
	assert.Equal(t, 3, snap[0].Count)
	assert.Len(t, snap[0].Ballot, 3)
	assert.Equal(t, []int{3}, snap[0].Missing)
	assert.Equal(t, 3, snap[0].Ballot[2])

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, snap))
	var back []SnapshotEntry
	require.NoError(t, sonic.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, snap, back)
}

func TestCreateOpenCompressed(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"plain/out.txt", "packed/out.txt.zst"} {
		path := filepath.Join(dir, name)
		payload := strings.Repeat("1: {1: 0.5, 2: 0.25}\n", 200)

		require.NoError(t, WriteFile(path, func(w io.Writer) error {
			_, err := io.WriteString(w, payload)
			return err
		}))

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		if IsCompressed(path) {
			assert.Less(t, len(raw), len(payload))
		} else {
			assert.Equal(t, payload, string(raw))
		}

		r, err := Open(path)
		require.NoError(t, err)
		got, err := io.ReadAll(r)
		require.NoError(t, err)
		require.NoError(t, r.Close())
		assert.Equal(t, payload, string(got))
	}
}
