package rules

import (
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tensorplex-labs/socialchoice/internal/ballot"
)

var (
	ErrEmptyScores    = errors.New("no alternatives scored")
	ErrZeroTotalScore = errors.New("scores sum to zero or less")
	ErrNegativeScore  = errors.New("negative score cannot be a winning probability")
)

// Distribution maps each alternative to its probability of winning.
type Distribution map[ballot.Alternative]float64

// DeterministicWinner returns the highest-scoring alternative. Ties go to the
// lowest alternative id.
func DeterministicWinner(scores Scores) (ballot.Alternative, error) {
	if len(scores) == 0 {
		return 0, ErrEmptyScores
	}
	return Argmax(scores), nil
}

// Argmax returns the key with the largest value, lowest key on ties. It
// returns 0 for an empty map.
func Argmax[M ~map[ballot.Alternative]float64](values M) ballot.Alternative {
	var (
		best  ballot.Alternative
		found bool
	)
	for _, a := range slices.Sorted(maps.Keys(values)) {
		if !found || values[a] > values[best] {
			best, found = a, true
		}
	}
	return best
}

// WinnerProbabilities turns scores into score/total for every alternative.
func WinnerProbabilities(scores Scores) (Distribution, error) {
	alts := scores.Alternatives()
	values := make([]float64, len(alts))
	for i, a := range alts {
		if scores[a] < 0 {
			return nil, fmt.Errorf("alternative %d scored %g: %w", a, scores[a], ErrNegativeScore)
		}
		values[i] = scores[a]
	}

	total := floats.Sum(values)
	if total <= 0 {
		return nil, fmt.Errorf("total %g: %w", total, ErrZeroTotalScore)
	}

	dist := make(Distribution, len(alts))
	for i, a := range alts {
		dist[a] = values[i] / total
	}
	return dist, nil
}

// RandomizedWinner draws one alternative with probability proportional to its
// score.
func RandomizedWinner(scores Scores, rng *rand.Rand) (ballot.Alternative, error) {
	dist, err := WinnerProbabilities(scores)
	if err != nil {
		return 0, err
	}
	return dist.Draw(rng)
}

// Draw samples one alternative from the distribution. Probabilities need not
// sum to one; they are used as relative weights.
func (d Distribution) Draw(rng *rand.Rand) (ballot.Alternative, error) {
	alts := slices.Sorted(maps.Keys(d))
	weights := make([]float64, len(alts))
	for i, a := range alts {
		if d[a] < 0 {
			return 0, fmt.Errorf("alternative %d has probability %g: %w", a, d[a], ErrNegativeScore)
		}
		weights[i] = d[a]
	}
	if len(alts) == 0 || floats.Sum(weights) <= 0 {
		return 0, ErrZeroTotalScore
	}

	idx := int(distuv.NewCategorical(weights, rng).Rand())
	log.Trace().Int("winner", int(alts[idx])).Float64("probability", weights[idx]).Msg("drew randomized winner")
	return alts[idx], nil
}
