package utility

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Normalization selects how vectors are rescaled before evaluation.
type Normalization string

const (
	NoNormalization Normalization = "none"
	UnitSum         Normalization = "unit_sum"
	UnitRange       Normalization = "unit_range"
	MinMax          Normalization = "min_max"
)

// ParseNormalization accepts "", "none", "unit_sum", "unit_range" and
// "min_max".
func ParseNormalization(s string) (Normalization, error) {
	switch Normalization(s) {
	case "", NoNormalization:
		return NoNormalization, nil
	case UnitSum, UnitRange, MinMax:
		return Normalization(s), nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownNormalization)
}

// Apply rescales every vector of inst. The input is not modified.
func (n Normalization) Apply(inst Instance) (Instance, error) {
	switch n {
	case "", NoNormalization:
		return inst, nil
	case UnitSum:
		return UnitSumNormalize(inst), nil
	case UnitRange:
		return UnitRangeNormalize(inst), nil
	case MinMax:
		return MinMaxNormalize(inst), nil
	}
	return nil, fmt.Errorf("%q: %w", n, ErrUnknownNormalization)
}

// UnitSumNormalize divides each vector by its total. Vectors summing to zero
// are copied unchanged.
func UnitSumNormalize(inst Instance) Instance {
	return rescale(inst, floats.Sum)
}

// UnitRangeNormalize divides each vector by its largest entry. Vectors whose
// largest entry is zero are copied unchanged.
func UnitRangeNormalize(inst Instance) Instance {
	return rescale(inst, func(values []float64) float64 {
		if len(values) == 0 {
			return 0
		}
		return floats.Max(values)
	})
}

func rescale(inst Instance, divisor func([]float64) float64) Instance {
	out := make(Instance, len(inst))
	for i, bu := range inst {
		vectors := make([]Vector, len(bu.Vectors))
		for j, v := range bu.Vectors {
			d := divisor(v.values())
			scaled := make(Vector, len(v))
			for a, u := range v {
				if d == 0 {
					scaled[a] = u
				} else {
					scaled[a] = u / d
				}
			}
			vectors[j] = scaled
		}
		out[i] = BallotUtilities{Key: bu.Key, Ballot: bu.Ballot, Vectors: vectors}
	}
	return out
}
