package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tensorplex-labs/socialchoice/internal/config"
	"github.com/tensorplex-labs/socialchoice/internal/fetch"
	"github.com/tensorplex-labs/socialchoice/internal/report"
	"github.com/tensorplex-labs/socialchoice/internal/rules"
	"github.com/tensorplex-labs/socialchoice/internal/session"
	"github.com/tensorplex-labs/socialchoice/internal/utility"
	"github.com/tensorplex-labs/socialchoice/internal/utils/logger"
	"github.com/tensorplex-labs/socialchoice/internal/utils/redis"
)

// --- Global Command Variables ---
var (
	appConfig *config.AppConfig
	cache     *redis.Redis

	logLevel      string
	seed          uint64
	inputPath     string
	alternatives  int
	outputPath    string
	ruleName      string
	approvalK     int
	weightsText   string
	distName      string
	distRepeat    int
	distShape     float64
	missingZero   bool
	normalization string
	trials        int

	rootCmd = &cobra.Command{
		Use:   "socialchoice",
		Short: "Score ballots with positional voting rules and measure their distortion",
		Long: `socialchoice reads ranked ballots, applies positional scoring rules,
synthesizes cardinal utilities consistent with the rankings and reports how far
each rule's winner falls short of the welfare-optimal alternative.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cmd.Context())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = seed
			}
			logger.Init(cfg.Environment, cfg.LogLevel)
			appConfig = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if cache != nil {
				cache.Close()
				cache = nil
			}
		},
	}

	normalizeCmd = &cobra.Command{
		Use:   "normalize",
		Short: "Resolve ties and fill missing alternatives, writing the strict complete ballots",
		RunE:  runNormalize, // Defined in cmd_ballots.go
	}

	scoreCmd = &cobra.Command{
		Use:   "score",
		Short: "Apply a voting rule and report scores, winner and winning probabilities",
		RunE:  runScore, // Defined in cmd_ballots.go
	}

	generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Generate utilities consistent with the ballots",
		RunE:  runGenerate, // Defined in cmd_evaluation.go
	}

	distortionCmd = &cobra.Command{
		Use:   "distortion",
		Short: "Measure the distortion of a rule under one utility distribution",
		RunE:  runDistortion, // Defined in cmd_evaluation.go
	}

	experimentCmd = &cobra.Command{
		Use:   "experiment [experiment.yaml]",
		Short: "Evaluate every configured rule under every configured distribution",
		Args:  cobra.ExactArgs(1),
		RunE:  runExperiment, // Defined in cmd_evaluation.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error); defaults from ENVIRONMENT")
	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", 0, "random seed; 0 seeds from the clock (overrides SOCIALCHOICE_SEED)")

	for _, cmd := range []*cobra.Command{normalizeCmd, scoreCmd, generateCmd, distortionCmd} {
		cmd.Flags().StringVarP(&inputPath, "input", "i", "", "ballot file, local path or http(s) URL; .zst is decompressed")
		cmd.Flags().IntVarP(&alternatives, "alternatives", "m", 0, "number of alternatives, overriding the file's metadata")
		cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file; stdout when empty")
		_ = cmd.MarkFlagRequired("input")
	}
	for _, cmd := range []*cobra.Command{scoreCmd, distortionCmd} {
		cmd.Flags().StringVarP(&ruleName, "rule", "r", rules.RuleBorda, "voting rule: plurality, borda, harmonic, k_approval, veto or scoring")
		cmd.Flags().IntVar(&approvalK, "k", 1, "approved positions for k_approval")
		cmd.Flags().StringVarP(&weightsText, "weights", "w", "", "weight vector for the scoring rule, e.g. \"[3, 2, 0.5, 0]\"")
	}
	for _, cmd := range []*cobra.Command{generateCmd, distortionCmd} {
		cmd.Flags().StringVarP(&distName, "distribution", "d", string(utility.Uniform), "utility distribution: uniform, exponential, normal, power, gamma or geometric")
		cmd.Flags().IntVar(&distRepeat, "repeat", 1, "independent passes over the electorate")
		cmd.Flags().Float64Var(&distShape, "shape", 1, "shape parameter for power, gamma and geometric")
		cmd.Flags().BoolVar(&missingZero, "missing-zero", true, "give alternatives a voter never ranked zero utility")
		cmd.Flags().StringVar(&normalization, "normalization", string(utility.NoNormalization), "utility normalization: none, unit_sum, unit_range or min_max")
	}
	distortionCmd.Flags().IntVarP(&trials, "trials", "t", config.DefaultTrials, "draws of the randomized winner when averaging distortion")

	rootCmd.AddCommand(normalizeCmd, scoreCmd, generateCmd, distortionCmd, experimentCmd)
}

// newSession builds a session wired to the environment configuration and
// loads input into it when set.
func newSession(ctx context.Context, input string) (*session.Session, error) {
	client, err := fetch.NewClient(&appConfig.FetchEnvConfig)
	if err != nil {
		return nil, err
	}
	var fetcher session.Fetcher = client
	if appConfig.CacheEnabled {
		r, err := redis.NewRedis(&appConfig.CacheEnvConfig)
		if err != nil {
			log.Error().Err(err).Msg("failed to init redis client, continuing without ballot cache")
		} else {
			cache = r
			fetcher = fetch.NewCachedClient(client, r, appConfig.CacheTTL)
		}
	}
	sess := session.New(
		session.WithSeed(appConfig.Seed),
		session.WithMaxResample(appConfig.MaxResampleAttempts),
		session.WithFetcher(fetcher),
	)
	log.Info().Str("session", sess.ID.String()).Uint64("seed", sess.Seed()).Msg("starting session")

	if input == "" {
		return sess, nil
	}
	if err := sess.Load(ctx, input, alternatives); err != nil {
		return nil, fmt.Errorf("load %s: %w", input, err)
	}
	return sess, nil
}

// ruleFromFlags builds the rule named by --rule. A --weights vector implies
// the scoring rule.
func ruleFromFlags() (rules.Spec, error) {
	spec := rules.Spec{Name: ruleName, K: approvalK}
	if weightsText != "" {
		w, err := rules.ParseWeights(weightsText, 0)
		if err != nil {
			return rules.Spec{}, err
		}
		spec.Name, spec.Weights = rules.RuleScoring, w
	}
	return spec, nil
}

func distributionFromFlags() utility.DistributionSpec {
	return utility.DistributionSpec{Name: distName, Repeat: distRepeat, Shape: distShape}
}

// writeOutput hands fn the --output file, or stdout when none is set.
func writeOutput(path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(os.Stdout)
	}
	if err := report.WriteFile(path, fn); err != nil {
		return err
	}
	log.Info().Str("path", path).Msg("output written")
	return nil
}
