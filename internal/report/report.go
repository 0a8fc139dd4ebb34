package report

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/tensorplex-labs/socialchoice/internal/ballot"
	"github.com/tensorplex-labs/socialchoice/internal/utility"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteValues writes one line per voter, "first: {alt: value, ...}", where
// first is the voter's top-ranked alternative.
func WriteValues(w io.Writer, inst utility.Instance) error {
	bw := bufio.NewWriter(w)
	for _, bu := range inst {
		first := 0
		if len(bu.Ballot) > 0 {
			first = int(bu.Ballot[0][0])
		}
		for _, v := range bu.Vectors {
			parts := make([]string, 0, len(v))
			for _, a := range v.Alternatives() {
				parts = append(parts, fmt.Sprintf("%d: %s", a, formatFloat(v[a])))
			}
			if _, err := fmt.Fprintf(bw, "%d: {%s}\n", first, strings.Join(parts, ", ")); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// Cell is the outcome of one rule under one distribution.
type Cell struct {
	Winner        int     `json:"winner"`
	Optimal       int     `json:"optimal"`
	Deterministic float64 `json:"deterministic"`
	Average       float64 `json:"average"`
	Error         string  `json:"error,omitempty"`
}

// Row holds one rule's cells, aligned with Table.Distributions.
type Row struct {
	Rule  string `json:"rule"`
	Cells []Cell `json:"cells"`
}

type Table struct {
	Distributions []string `json:"distributions"`
	Rows          []Row    `json:"rows"`
}

// Metric selects which distortion a table column shows.
type Metric string

const (
	MetricAverage       Metric = "average"
	MetricDeterministic Metric = "deterministic"
)

// WriteTable writes a CSV with a header of distribution labels and one row
// per rule. Cells that failed are left empty.
func WriteTable(w io.Writer, t *Table, metric Metric) error {
	cw := csv.NewWriter(w)
	header := append([]string{"rule"}, t.Distributions...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range t.Rows {
		record := make([]string, 0, len(row.Cells)+1)
		record = append(record, row.Rule)
		for _, c := range row.Cells {
			switch {
			case c.Error != "":
				record = append(record, "")
			case metric == MetricDeterministic:
				record = append(record, formatFloat(c.Deterministic))
			default:
				record = append(record, formatFloat(c.Average))
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON marshals v with sonic and writes it followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

// SnapshotEntry is the JSON form of one normalized ballot.
type SnapshotEntry struct {
	Key     string `json:"key"`
	Ballot  []int  `json:"ballot"`
	Count   int    `json:"count"`
	Missing []int  `json:"missing,omitempty"`
}

// Snapshot lists the normalized store in order with its synthesized
// alternatives.
func Snapshot(n *ballot.Normalized) []SnapshotEntry {
	out := make([]SnapshotEntry, 0, n.Store.Len())
	n.Store.Each(func(e ballot.Entry) {
		entry := SnapshotEntry{Key: e.Key.String(), Count: e.Count}
		for _, a := range e.Ballot.Alternatives() {
			entry.Ballot = append(entry.Ballot, int(a))
		}
		for _, a := range n.Missing[e.Key] {
			entry.Missing = append(entry.Missing, int(a))
		}
		out = append(out, entry)
	})
	return out
}
