package main

import (
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tensorplex-labs/socialchoice/internal/ballot"
	"github.com/tensorplex-labs/socialchoice/internal/report"
	"github.com/tensorplex-labs/socialchoice/internal/rules"
)

func runNormalize(cmd *cobra.Command, args []string) error {
	sess, err := newSession(cmd.Context(), inputPath)
	if err != nil {
		return err
	}
	return writeOutput(outputPath, sess.WriteBallots(outputPath))
}

type scoreReport struct {
	Rule          string                         `json:"rule"`
	Alternatives  int                            `json:"alternatives"`
	Voters        int                            `json:"voters"`
	Scores        map[ballot.Alternative]float64 `json:"scores"`
	Winner        ballot.Alternative             `json:"winner"`
	Probabilities rules.Distribution             `json:"probabilities,omitempty"`
}

func runScore(cmd *cobra.Command, args []string) error {
	spec, err := ruleFromFlags()
	if err != nil {
		return err
	}
	sess, err := newSession(cmd.Context(), inputPath)
	if err != nil {
		return err
	}
	scores, err := sess.Score(spec)
	if err != nil {
		return err
	}
	winner, err := rules.DeterministicWinner(scores)
	if err != nil {
		return err
	}

	out := scoreReport{
		Rule:         spec.Label(),
		Alternatives: sess.Alternatives(),
		Voters:       sess.File().Store.Total(),
		Scores:       scores,
		Winner:       winner,
	}
	if probs, err := rules.WinnerProbabilities(scores); err != nil {
		log.Warn().Err(err).Str("rule", out.Rule).Msg("scores do not define a randomized winner")
	} else {
		out.Probabilities = probs
	}

	log.Info().Str("rule", out.Rule).Int("winner", int(winner)).Float64("score", scores[winner]).Msg("scored ballots")
	return writeOutput(outputPath, func(w io.Writer) error {
		return report.WriteJSON(w, out)
	})
}
