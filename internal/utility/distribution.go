// Package utility synthesizes cardinal utilities that are consistent with
// ordinal ballots and rescales them.
package utility

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrInvalidDistribution  = errors.New("unknown distribution")
	ErrInvalidShape         = errors.New("shape parameter out of range")
	ErrInvalidRepeat        = errors.New("repeat count must be positive")
	ErrResampleExhausted    = errors.New("no sample below the utility cap within the retry limit")
	ErrUnknownNormalization = errors.New("unknown normalization")
)

// Family is a distribution family utilities are drawn from.
type Family string

const (
	Uniform     Family = "uniform"
	Exponential Family = "exponential"
	Normal      Family = "normal"
	Power       Family = "power"
	Gamma       Family = "gamma"
	Geometric   Family = "geometric"
)

// ParseFamily resolves a family name, ignoring case.
func ParseFamily(name string) (Family, error) {
	f := Family(strings.ToLower(strings.TrimSpace(name)))
	switch f {
	case Uniform, Exponential, Normal, Power, Gamma, Geometric:
		return f, nil
	}
	return "", fmt.Errorf("%q: %w", name, ErrInvalidDistribution)
}

// usesShape reports whether the shape parameter changes the family.
func (f Family) usesShape() bool {
	return f == Power || f == Gamma || f == Geometric
}

// DistributionSpec asks for Repeat independent passes over the electorate
// with utilities drawn from the named family.
type DistributionSpec struct {
	Name   string  `yaml:"name" json:"name"`
	Repeat int     `yaml:"repeat" json:"repeat"`
	Shape  float64 `yaml:"shape,omitempty" json:"shape,omitempty"`
}

// Label names the spec in reports, e.g. "uniform" or "power(2)".
func (d DistributionSpec) Label() string {
	f, err := ParseFamily(d.Name)
	if err != nil {
		return d.Name
	}
	if f.usesShape() {
		return fmt.Sprintf("%s(%g)", f, d.Shape)
	}
	return string(f)
}

// Sampler draws one utility value.
type Sampler interface {
	Rand() float64
}

// NewSampler builds a sampler for the family.
//
//	uniform      U(0, 1)
//	exponential  rate 1
//	normal       |N(0, 1)|, folded so utilities stay non-negative
//	power        density shape*x^(shape-1) on [0, 1], i.e. Beta(shape, 1)
//	gamma        Gamma(shape, 1)
//	geometric    trials until first success with p = shape/10
func NewSampler(name string, shape float64, rng *rand.Rand) (Sampler, error) {
	f, err := ParseFamily(name)
	if err != nil {
		return nil, err
	}

	switch f {
	case Uniform:
		return distuv.Uniform{Min: 0, Max: 1, Src: rng}, nil
	case Exponential:
		return distuv.Exponential{Rate: 1, Src: rng}, nil
	case Normal:
		return foldedNormal{distuv.Normal{Mu: 0, Sigma: 1, Src: rng}}, nil
	case Power:
		if !(shape > 0) || math.IsInf(shape, 0) {
			return nil, fmt.Errorf("power shape %g: %w", shape, ErrInvalidShape)
		}
		return distuv.Beta{Alpha: shape, Beta: 1, Src: rng}, nil
	case Gamma:
		if !(shape > 0) || math.IsInf(shape, 0) {
			return nil, fmt.Errorf("gamma shape %g: %w", shape, ErrInvalidShape)
		}
		return distuv.Gamma{Alpha: shape, Beta: 1, Src: rng}, nil
	case Geometric:
		p := shape / 10
		if !(p > 0 && p <= 1) {
			return nil, fmt.Errorf("geometric shape %g gives p=%g: %w", shape, p, ErrInvalidShape)
		}
		return geometric{p: p, u: distuv.Uniform{Min: 0, Max: 1, Src: rng}}, nil
	}
	return nil, fmt.Errorf("%q: %w", name, ErrInvalidDistribution)
}

type foldedNormal struct {
	n distuv.Normal
}

func (f foldedNormal) Rand() float64 {
	return math.Abs(f.n.Rand())
}

// geometric samples by inversion; gonum has no geometric distribution.
type geometric struct {
	p float64
	u distuv.Uniform
}

func (g geometric) Rand() float64 {
	if g.p == 1 {
		return 1
	}
	return math.Floor(math.Log1p(-g.u.Rand())/math.Log1p(-g.p)) + 1
}
