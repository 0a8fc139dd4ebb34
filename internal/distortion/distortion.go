// Package distortion measures how much social welfare a voting rule gives up
// against the best alternative under synthesized utilities.
package distortion

import (
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"github.com/tensorplex-labs/socialchoice/internal/ballot"
	"github.com/tensorplex-labs/socialchoice/internal/rules"
	"github.com/tensorplex-labs/socialchoice/internal/utility"
)

var (
	ErrZeroWinnerUtility = errors.New("winner has zero total utility")
	ErrEmptyUtility      = errors.New("no utilities to evaluate")
	ErrInvalidTrials     = errors.New("number of trials must be positive")
	ErrInvalidLottery    = errors.New("lottery probabilities must be non-negative")
)

// TotalUtility is the social welfare of every alternative: the sum of each
// voter's utility over every ballot and every pass.
type TotalUtility map[ballot.Alternative]float64

// Alternatives returns the alternatives in ascending order.
func (t TotalUtility) Alternatives() []ballot.Alternative {
	return slices.Sorted(maps.Keys(t))
}

// Optimal returns the alternative with the largest welfare, lowest id on ties.
func (t TotalUtility) Optimal() (ballot.Alternative, error) {
	if len(t) == 0 {
		return 0, ErrEmptyUtility
	}
	return rules.Argmax(t), nil
}

// Total sums every voter vector of the given instances.
func Total(instances ...utility.Instance) TotalUtility {
	total := make(TotalUtility)
	for _, inst := range instances {
		for _, bu := range inst {
			for _, v := range bu.Vectors {
				for a, u := range v {
					total[a] += u
				}
			}
		}
	}
	return total
}

// Winner is the outcome of a voting rule: one alternative or a lottery.
type Winner interface {
	Welfare(t TotalUtility) (float64, error)
	String() string
}

// Single is a deterministic winner.
type Single ballot.Alternative

func (s Single) Welfare(t TotalUtility) (float64, error) {
	return t[ballot.Alternative(s)], nil
}

func (s Single) String() string {
	return fmt.Sprintf("%d", int(s))
}

// Lottery is a randomized winner; its welfare is the expectation over the
// lottery.
type Lottery rules.Distribution

func (l Lottery) Welfare(t TotalUtility) (float64, error) {
	welfare := 0.0
	for _, a := range slices.Sorted(maps.Keys(l)) {
		if l[a] < 0 {
			return 0, fmt.Errorf("alternative %d: %w", a, ErrInvalidLottery)
		}
		welfare += l[a] * t[a]
	}
	return welfare, nil
}

func (l Lottery) String() string {
	return fmt.Sprintf("%v", map[ballot.Alternative]float64(l))
}

// Result is one distortion evaluation.
type Result struct {
	Winner         string             `json:"winner"`
	Optimal        ballot.Alternative `json:"optimal"`
	OptimalWelfare float64            `json:"optimal_welfare"`
	WinnerWelfare  float64            `json:"winner_welfare"`
	Distortion     float64            `json:"distortion"`
}

// Evaluate compares the winner's welfare with the optimal alternative's.
func Evaluate(t TotalUtility, w Winner) (Result, error) {
	optimal, err := t.Optimal()
	if err != nil {
		return Result{}, err
	}
	welfare, err := w.Welfare(t)
	if err != nil {
		return Result{}, err
	}
	if welfare == 0 {
		return Result{}, fmt.Errorf("winner %s: %w", w, ErrZeroWinnerUtility)
	}

	r := Result{
		Winner:         w.String(),
		Optimal:        optimal,
		OptimalWelfare: t[optimal],
		WinnerWelfare:  welfare,
		Distortion:     t[optimal] / welfare,
	}
	log.Trace().
		Str("winner", r.Winner).
		Float64("winner_welfare", r.WinnerWelfare).
		Int("optimal", int(r.Optimal)).
		Float64("optimal_welfare", r.OptimalWelfare).
		Float64("distortion", r.Distortion).
		Msg("evaluated distortion")
	return r, nil
}

// Distortion is optimal welfare divided by the winner's welfare.
func Distortion(t TotalUtility, w Winner) (float64, error) {
	r, err := Evaluate(t, w)
	if err != nil {
		return 0, err
	}
	return r.Distortion, nil
}

// AverageDistortion estimates the expected distortion of a randomized rule:
// k times it draws a winner from dist and evaluates it as a single winner,
// then averages the k results.
func AverageDistortion(t TotalUtility, k int, dist rules.Distribution, rng *rand.Rand) (float64, error) {
	if k <= 0 {
		return 0, fmt.Errorf("k=%d: %w", k, ErrInvalidTrials)
	}

	trials := make([]float64, k)
	for i := range trials {
		winner, err := dist.Draw(rng)
		if err != nil {
			return 0, fmt.Errorf("trial %d: %w", i, err)
		}
		d, err := Distortion(t, Single(winner))
		if err != nil {
			return 0, fmt.Errorf("trial %d: %w", i, err)
		}
		trials[i] = d
	}

	mean := stat.Mean(trials, nil)
	log.Debug().Int("trials", k).Float64("average_distortion", mean).Msg("monte-carlo distortion")
	return mean, nil
}
