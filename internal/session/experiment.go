package session

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/tensorplex-labs/socialchoice/internal/ballot"
	"github.com/tensorplex-labs/socialchoice/internal/config"
	"github.com/tensorplex-labs/socialchoice/internal/distortion"
	"github.com/tensorplex-labs/socialchoice/internal/report"
	"github.com/tensorplex-labs/socialchoice/internal/rules"
	"github.com/tensorplex-labs/socialchoice/internal/utility"
)

// Summary describes one experiment run.
type Summary struct {
	SessionID     string        `json:"session_id"`
	Input         string        `json:"input"`
	Seed          uint64        `json:"seed"`
	Alternatives  int           `json:"alternatives"`
	Rows          int           `json:"rows"`
	Voters        int           `json:"voters"`
	MissingZero   bool          `json:"missing_zero"`
	Normalization string        `json:"normalization"`
	Trials        int           `json:"trials"`
	Table         *report.Table `json:"table"`
	StartedAt     time.Time     `json:"started_at"`
	Elapsed       string        `json:"elapsed"`
}

// RunExperiment loads the experiment's ballots, generates utilities for every
// distribution once, and evaluates every rule against each of them. A rule
// that cannot be evaluated under a distribution gets an error cell rather
// than failing the run.
func (s *Session) RunExperiment(ctx context.Context, exp *config.Experiment) (*Summary, error) {
	startTime := time.Now()
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	if err := s.Load(ctx, exp.Input, exp.Alternatives); err != nil {
		return nil, err
	}
	n, err := s.Normalize()
	if err != nil {
		return nil, err
	}

	if _, err := s.GenerateValues(exp.Distributions, exp.MissingIsZero()); err != nil {
		return nil, err
	}
	method, err := utility.ParseNormalization(exp.Normalization)
	if err != nil {
		return nil, err
	}
	if _, err := s.NormalizeValues(method); err != nil {
		return nil, err
	}

	table := &report.Table{}
	totals := make(map[string]distortion.TotalUtility)
	for _, d := range exp.Distributions {
		label := d.Label()
		if _, seen := totals[label]; seen {
			continue
		}
		total, err := s.TotalUtility(label)
		if err != nil {
			return nil, err
		}
		totals[label] = total
		table.Distributions = append(table.Distributions, label)
	}

	for _, rule := range exp.Rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := report.Row{Rule: rule.Label()}
		scores, scoreErr := s.Score(rule)
		for _, label := range table.Distributions {
			var cell report.Cell
			if scoreErr != nil {
				cell.Error = scoreErr.Error()
			} else {
				cell = s.evaluate(scores, totals[label], exp.Trials)
			}
			if cell.Error != "" {
				s.logger.Warn().Str("rule", row.Rule).Str("distribution", label).Str("error", cell.Error).Msg("cell not evaluated")
			}
			row.Cells = append(row.Cells, cell)
		}
		table.Rows = append(table.Rows, row)
	}

	summary := &Summary{
		SessionID:     s.ID.String(),
		Input:         exp.Input,
		Seed:          s.seed,
		Alternatives:  n.Alternatives,
		Rows:          n.Store.Len(),
		Voters:        n.Store.Total(),
		MissingZero:   exp.MissingIsZero(),
		Normalization: string(method),
		Trials:        exp.Trials,
		Table:         table,
		StartedAt:     startTime,
		Elapsed:       time.Since(startTime).String(),
	}
	s.logger.Info().
		Int("rules", len(table.Rows)).
		Int("distributions", len(table.Distributions)).
		Str("elapsed", summary.Elapsed).
		Msg("experiment finished")
	return summary, nil
}

func (s *Session) evaluate(scores rules.Scores, total distortion.TotalUtility, trials int) report.Cell {
	var cell report.Cell

	winner, err := rules.DeterministicWinner(scores)
	if err != nil {
		cell.Error = err.Error()
		return cell
	}
	res, err := distortion.Evaluate(total, distortion.Single(winner))
	if err != nil {
		cell.Error = err.Error()
		return cell
	}
	cell.Winner = int(winner)
	cell.Optimal = int(res.Optimal)
	cell.Deterministic = res.Distortion

	probs, err := rules.WinnerProbabilities(scores)
	if err != nil {
		cell.Error = err.Error()
		return cell
	}
	avg, err := distortion.AverageDistortion(total, trials, probs, s.rng)
	if err != nil {
		cell.Error = err.Error()
		return cell
	}
	cell.Average = avg
	return cell
}

// WriteOutputs writes whichever outputs are configured.
func (s *Session) WriteOutputs(out config.OutputConfig, summary *Summary) error {
	if out.Table != "" {
		if err := report.WriteFile(out.Table, func(w io.Writer) error {
			return report.WriteTable(w, summary.Table, report.MetricAverage)
		}); err != nil {
			return fmt.Errorf("write table: %w", err)
		}
	}
	if out.Summary != "" {
		if err := report.WriteFile(out.Summary, func(w io.Writer) error {
			return report.WriteJSON(w, summary)
		}); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	if out.Values != "" {
		if err := report.WriteFile(out.Values, s.WriteValues); err != nil {
			return fmt.Errorf("write values: %w", err)
		}
	}
	if out.Ballots != "" {
		if err := report.WriteFile(out.Ballots, s.WriteBallots(out.Ballots)); err != nil {
			return fmt.Errorf("write ballots: %w", err)
		}
	}
	s.logger.Debug().Interface("outputs", out).Msg("outputs written")
	return nil
}

// WriteValues writes every generated instance, each preceded by a comment
// line naming its distribution and pass.
func (s *Session) WriteValues(w io.Writer) error {
	if s.values == nil {
		return ErrNoValues
	}
	n, err := s.Normalize()
	if err != nil {
		return err
	}
	labels := make([]string, 0, len(s.values))
	for label := range s.values {
		labels = append(labels, label)
	}
	slices.Sort(labels)
	for _, label := range labels {
		for i, inst := range s.values[label] {
			if _, err := fmt.Fprintf(w, "# %s pass %d, %d alternatives\n", label, i, n.Alternatives); err != nil {
				return err
			}
			if err := report.WriteValues(w, inst); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteBallots returns a writer of the normalized ballots: JSON when path
// ends in .json (optionally .json.zst), the ballot text format otherwise.
func (s *Session) WriteBallots(path string) func(io.Writer) error {
	return func(w io.Writer) error {
		n, err := s.Normalize()
		if err != nil {
			return err
		}
		if strings.HasSuffix(strings.TrimSuffix(strings.ToLower(path), ".zst"), ".json") {
			return report.WriteJSON(w, report.Snapshot(n))
		}
		return ballot.Write(w, &ballot.File{
			Metadata:     s.file.Metadata,
			Alternatives: n.Alternatives,
			Store:        n.Store,
		})
	}
}
