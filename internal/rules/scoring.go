// Package rules contains positional scoring rules and winner selection over
// the resulting score maps.
package rules

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/socialchoice/internal/ballot"
)

var (
	ErrLengthMismatch  = errors.New("ballot length differs from weight vector length")
	ErrInvalidApproval = errors.New("k must lie in [0, m]")
	ErrUnknownRule     = errors.New("unknown voting rule")
	ErrInvalidWeights  = errors.New("invalid weight vector")
)

// Scores maps each alternative to its accumulated score.
type Scores map[ballot.Alternative]float64

// Alternatives returns the scored alternatives in ascending id order.
func (s Scores) Alternatives() []ballot.Alternative {
	return slices.Sorted(maps.Keys(s))
}

// ScoringRule awards weights[i]*count to the alternative at rank i of every
// ballot. Ballots must be strict and exactly len(weights) long.
func ScoringRule(store *ballot.Store, weights []float64) (Scores, error) {
	scores := make(Scores)
	var err error
	store.Each(func(e ballot.Entry) {
		if err != nil {
			return
		}
		if len(e.Ballot) != len(weights) || !e.Ballot.IsStrict() {
			err = fmt.Errorf("ballot %s has %d ranks, weights have %d: %w",
				e.Key, len(e.Ballot), len(weights), ErrLengthMismatch)
			return
		}
		for i, g := range e.Ballot {
			scores[g[0]] += weights[i] * float64(e.Count)
		}
	})
	if err != nil {
		return nil, err
	}

	log.Trace().Interface("weights", weights).Interface("scores", scores).Msg("scored ballots")
	return scores, nil
}

// KApprovalWeights gives 1 to the first k ranks and 0 to the rest.
func KApprovalWeights(m, k int) ([]float64, error) {
	if k < 0 || k > m {
		return nil, fmt.Errorf("k=%d, m=%d: %w", k, m, ErrInvalidApproval)
	}
	w := make([]float64, m)
	for i := range k {
		w[i] = 1
	}
	return w, nil
}

// BordaWeights is m-1, m-2, ..., 0.
func BordaWeights(m int) []float64 {
	w := make([]float64, m)
	for i := range m {
		w[i] = float64(m - 1 - i)
	}
	return w
}

// HarmonicWeights is 1, 1/2, ..., 1/m.
func HarmonicWeights(m int) []float64 {
	w := make([]float64, m)
	for i := range m {
		w[i] = 1 / float64(i+1)
	}
	return w
}

func KApproval(store *ballot.Store, m, k int) (Scores, error) {
	w, err := KApprovalWeights(m, k)
	if err != nil {
		return nil, err
	}
	return ScoringRule(store, w)
}

func Plurality(store *ballot.Store, m int) (Scores, error) {
	return KApproval(store, m, 1)
}

func Veto(store *ballot.Store, m int) (Scores, error) {
	return KApproval(store, m, m-1)
}

func Borda(store *ballot.Store, m int) (Scores, error) {
	return ScoringRule(store, BordaWeights(m))
}

func Harmonic(store *ballot.Store, m int) (Scores, error) {
	return ScoringRule(store, HarmonicWeights(m))
}

// Rule names accepted by Spec.
const (
	RulePlurality = "plurality"
	RuleBorda     = "borda"
	RuleHarmonic  = "harmonic"
	RuleKApproval = "k_approval"
	RuleVeto      = "veto"
	RuleScoring   = "scoring"
)

// Spec names a rule together with its parameters. K is read by k_approval,
// Weights by scoring.
type Spec struct {
	Name    string    `yaml:"name" json:"name"`
	K       int       `yaml:"k,omitempty" json:"k,omitempty"`
	Weights []float64 `yaml:"weights,omitempty" json:"weights,omitempty"`
}

// Label is a display name for the rule, e.g. "k_approval(2)".
func (s Spec) Label() string {
	switch strings.ToLower(s.Name) {
	case RuleKApproval:
		return fmt.Sprintf("%s(%d)", RuleKApproval, s.K)
	case RuleScoring:
		parts := make([]string, len(s.Weights))
		for i, w := range s.Weights {
			parts[i] = fmt.Sprintf("%g", w)
		}
		return fmt.Sprintf("%s[%s]", RuleScoring, strings.Join(parts, ","))
	}
	return strings.ToLower(s.Name)
}

// WeightsFor derives the weight vector of the rule for m alternatives.
func (s Spec) WeightsFor(m int) ([]float64, error) {
	switch strings.ToLower(s.Name) {
	case RulePlurality:
		return KApprovalWeights(m, 1)
	case RuleBorda:
		return BordaWeights(m), nil
	case RuleHarmonic:
		return HarmonicWeights(m), nil
	case RuleKApproval:
		return KApprovalWeights(m, s.K)
	case RuleVeto:
		return KApprovalWeights(m, m-1)
	case RuleScoring:
		if len(s.Weights) == 0 {
			return nil, fmt.Errorf("scoring rule without weights: %w", ErrInvalidWeights)
		}
		return slices.Clone(s.Weights), nil
	}
	return nil, fmt.Errorf("%q: %w", s.Name, ErrUnknownRule)
}

// Apply scores store under the rule for m alternatives.
func (s Spec) Apply(store *ballot.Store, m int) (Scores, error) {
	w, err := s.WeightsFor(m)
	if err != nil {
		return nil, err
	}
	scores, err := ScoringRule(store, w)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Label(), err)
	}
	log.Debug().Str("rule", s.Label()).Int("alternatives", len(scores)).Msg("applied voting rule")
	return scores, nil
}
