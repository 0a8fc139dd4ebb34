package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tensorplex-labs/socialchoice/internal/rules"
	"github.com/tensorplex-labs/socialchoice/internal/utility"
)

var ErrInvalidExperiment = errors.New("invalid experiment")

// Experiment describes one rules x distributions evaluation.
type Experiment struct {
	Input         string                     `yaml:"input"`
	Alternatives  int                        `yaml:"alternatives,omitempty"`
	MissingZero   *bool                      `yaml:"missing_zero,omitempty"`
	Normalization string                     `yaml:"normalization,omitempty"`
	Trials        int                        `yaml:"trials,omitempty"`
	Distributions []utility.DistributionSpec `yaml:"distributions"`
	Rules         []rules.Spec               `yaml:"rules"`
	Output        OutputConfig               `yaml:"output,omitempty"`
}

// OutputConfig names the files an experiment writes. Empty paths are skipped;
// a ".zst" suffix compresses the file.
type OutputConfig struct {
	Table   string `yaml:"table,omitempty"`
	Summary string `yaml:"summary,omitempty"`
	Values  string `yaml:"values,omitempty"`
	Ballots string `yaml:"ballots,omitempty"`
}

// DefaultTrials is the Monte-Carlo trial count when an experiment sets none.
const DefaultTrials = 1000

// LoadExperiment reads and validates a YAML experiment file.
func LoadExperiment(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read experiment: %w", err)
	}
	return ParseExperiment(data)
}

func ParseExperiment(data []byte) (*Experiment, error) {
	var exp Experiment
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("parse experiment: %w", err)
	}
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return &exp, nil
}

// MissingIsZero defaults to true when unset.
func (e *Experiment) MissingIsZero() bool {
	return e.MissingZero == nil || *e.MissingZero
}

// Validate fills defaults and rejects experiments that cannot run.
func (e *Experiment) Validate() error {
	if e.Input == "" {
		return fmt.Errorf("input is required: %w", ErrInvalidExperiment)
	}
	if len(e.Distributions) == 0 {
		return fmt.Errorf("at least one distribution is required: %w", ErrInvalidExperiment)
	}
	if len(e.Rules) == 0 {
		return fmt.Errorf("at least one rule is required: %w", ErrInvalidExperiment)
	}
	if e.Trials < 0 {
		return fmt.Errorf("trials %d: %w", e.Trials, ErrInvalidExperiment)
	}
	if e.Trials == 0 {
		e.Trials = DefaultTrials
	}
	for i := range e.Distributions {
		d := &e.Distributions[i]
		if _, err := utility.ParseFamily(d.Name); err != nil {
			return fmt.Errorf("distribution %d: %w", i, err)
		}
		if d.Repeat == 0 {
			d.Repeat = 1
		}
	}
	if _, err := utility.ParseNormalization(e.Normalization); err != nil {
		return err
	}
	return nil
}
