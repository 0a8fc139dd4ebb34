package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tensorplex-labs/socialchoice/internal/config"
	"github.com/tensorplex-labs/socialchoice/internal/distortion"
	"github.com/tensorplex-labs/socialchoice/internal/report"
	"github.com/tensorplex-labs/socialchoice/internal/session"
	"github.com/tensorplex-labs/socialchoice/internal/utility"
)

// generateValues fills the session with utilities per the distribution flags.
func generateValues(sess *session.Session) (string, error) {
	method, err := utility.ParseNormalization(normalization)
	if err != nil {
		return "", err
	}
	spec := distributionFromFlags()
	if _, err := sess.GenerateValues([]utility.DistributionSpec{spec}, missingZero); err != nil {
		return "", err
	}
	if _, err := sess.NormalizeValues(method); err != nil {
		return "", err
	}
	return spec.Label(), nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	sess, err := newSession(cmd.Context(), inputPath)
	if err != nil {
		return err
	}
	label, err := generateValues(sess)
	if err != nil {
		return err
	}
	log.Info().Str("distribution", label).Int("repeat", distRepeat).Msg("generated utilities")
	return writeOutput(outputPath, sess.WriteValues)
}

type distortionReport struct {
	Rule              string            `json:"rule"`
	Distribution      string            `json:"distribution"`
	Deterministic     distortion.Result `json:"deterministic"`
	AverageDistortion float64           `json:"average_distortion"`
	Trials            int               `json:"trials"`
}

func runDistortion(cmd *cobra.Command, args []string) error {
	spec, err := ruleFromFlags()
	if err != nil {
		return err
	}
	sess, err := newSession(cmd.Context(), inputPath)
	if err != nil {
		return err
	}
	if _, err := sess.Score(spec); err != nil {
		return err
	}
	label, err := generateValues(sess)
	if err != nil {
		return err
	}

	res, err := sess.Distortion(label)
	if err != nil {
		return err
	}
	avg, err := sess.AverageDistortion(label, trials)
	if err != nil {
		return err
	}

	out := distortionReport{
		Rule:              spec.Label(),
		Distribution:      label,
		Deterministic:     res,
		AverageDistortion: avg,
		Trials:            trials,
	}
	log.Info().
		Str("rule", out.Rule).
		Str("distribution", label).
		Float64("distortion", res.Distortion).
		Float64("average_distortion", avg).
		Msg("evaluated distortion")
	return writeOutput(outputPath, func(w io.Writer) error {
		return report.WriteJSON(w, out)
	})
}

func runExperiment(cmd *cobra.Command, args []string) error {
	exp, err := config.LoadExperiment(args[0])
	if err != nil {
		return err
	}
	sess, err := newSession(cmd.Context(), "")
	if err != nil {
		return err
	}

	summary, err := sess.RunExperiment(cmd.Context(), exp)
	if err != nil {
		return fmt.Errorf("run experiment %s: %w", args[0], err)
	}
	if err := sess.WriteOutputs(exp.Output, summary); err != nil {
		return err
	}
	if exp.Output.Table == "" {
		return report.WriteTable(os.Stdout, summary.Table, report.MetricAverage)
	}
	return nil
}
