package utility

import (
	"fmt"
	"maps"
	"math"
	"math/rand/v2"
	"slices"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/socialchoice/internal/ballot"
)

// DefaultMaxResample bounds the draws spent on one missing alternative.
const DefaultMaxResample = 1000

// Vector is one voter's utility for every alternative.
type Vector map[ballot.Alternative]float64

// Alternatives returns the vector's alternatives in ascending order.
func (v Vector) Alternatives() []ballot.Alternative {
	return slices.Sorted(maps.Keys(v))
}

func (v Vector) values() []float64 {
	alts := v.Alternatives()
	out := make([]float64, len(alts))
	for i, a := range alts {
		out[i] = v[a]
	}
	return out
}

// BallotUtilities holds one vector per voter who cast Ballot.
type BallotUtilities struct {
	Key     ballot.Key
	Ballot  ballot.Ballot
	Vectors []Vector
}

// Instance is one full pass over the electorate.
type Instance []BallotUtilities

// Voters counts the vectors in the instance.
func (inst Instance) Voters() int {
	n := 0
	for _, bu := range inst {
		n += len(bu.Vectors)
	}
	return n
}

// Instances holds every generated instance keyed by distribution label.
type Instances map[string][]Instance

type Generator struct {
	rng         *rand.Rand
	missingZero bool
	maxResample int
}

type GeneratorOption func(*Generator)

// WithMissingZero gives alternatives the voter did not rank utility 0. When
// false they are resampled below the voter's lowest ranked utility.
func WithMissingZero(zero bool) GeneratorOption {
	return func(g *Generator) {
		g.missingZero = zero
	}
}

func WithMaxResample(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.maxResample = n
		}
	}
}

func NewGenerator(rng *rand.Rand, opts ...GeneratorOption) *Generator {
	g := &Generator{
		rng:         rng,
		missingZero: true,
		maxResample: DefaultMaxResample,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AssignValues draws m+1 values, sorts them descending and hands the i-th
// largest to rank group i. Tied alternatives share a value.
func (g *Generator) AssignValues(b ballot.Ballot, m int, spec DistributionSpec) (Vector, error) {
	sampler, err := NewSampler(spec.Name, spec.Shape, g.rng)
	if err != nil {
		return nil, err
	}
	return g.assign(b, m, sampler), nil
}

func (g *Generator) assign(b ballot.Ballot, m int, sampler Sampler) Vector {
	draws := make([]float64, max(m, len(b))+1)
	for i := range draws {
		draws[i] = sampler.Rand()
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(draws)))

	v := make(Vector, b.Size())
	for i, group := range b {
		for _, a := range group {
			v[a] = draws[i]
		}
	}
	return v
}

// voterVector builds one voter's utilities for a completed ballot whose
// alternatives in missing were appended rather than ranked. When source is
// set, ranked alternatives take their values from it so that alternatives the
// voter tied share one value.
func (g *Generator) voterVector(b, source ballot.Ballot, missing []ballot.Alternative, m int, sampler Sampler) (Vector, error) {
	isMissing := make(map[ballot.Alternative]bool, len(missing))
	for _, a := range missing {
		isMissing[a] = true
	}

	var (
		ranked   ballot.Ballot
		appended []ballot.Alternative
	)
	for _, group := range b {
		var kept ballot.RankGroup
		for _, a := range group {
			if isMissing[a] {
				appended = append(appended, a)
			} else {
				kept = append(kept, a)
			}
		}
		if len(kept) > 0 {
			ranked = append(ranked, kept)
		}
	}
	if source != nil {
		ranked = nil
		for _, group := range source {
			var kept ballot.RankGroup
			for _, a := range group {
				if !isMissing[a] {
					kept = append(kept, a)
				}
			}
			if len(kept) > 0 {
				ranked = append(ranked, kept)
			}
		}
	}

	v := g.assign(ranked, m, sampler)
	if len(appended) == 0 {
		return v, nil
	}
	if g.missingZero {
		for _, a := range appended {
			v[a] = 0
		}
		return v, nil
	}

	limit := math.Inf(1)
	for _, u := range v {
		limit = min(limit, u)
	}

	fill := make([]float64, len(appended))
	for i := range fill {
		u, err := g.below(sampler, limit)
		if err != nil {
			return nil, err
		}
		fill[i] = u
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(fill)))
	for i, a := range appended {
		v[a] = fill[i]
	}
	return v, nil
}

// below redraws until a sample falls strictly under limit.
func (g *Generator) below(sampler Sampler, limit float64) (float64, error) {
	for range g.maxResample {
		if u := sampler.Rand(); u < limit {
			return u, nil
		}
	}
	return 0, fmt.Errorf("limit %g after %d draws: %w", limit, g.maxResample, ErrResampleExhausted)
}

// GenerateKInstances runs spec.Repeat independent passes over every voter of
// the normalized electorate for each spec.
func (g *Generator) GenerateKInstances(n *ballot.Normalized, specs []DistributionSpec) (Instances, error) {
	startTime := time.Now()
	out := make(Instances, len(specs))

	for _, spec := range specs {
		if spec.Repeat <= 0 {
			return nil, fmt.Errorf("%s repeat %d: %w", spec.Label(), spec.Repeat, ErrInvalidRepeat)
		}
		sampler, err := NewSampler(spec.Name, spec.Shape, g.rng)
		if err != nil {
			return nil, err
		}

		label := spec.Label()
		for r := range spec.Repeat {
			inst, err := g.instance(n, sampler)
			if err != nil {
				return nil, fmt.Errorf("%s pass %d: %w", label, r, err)
			}
			out[label] = append(out[label], inst)
		}
		log.Debug().
			Str("distribution", label).
			Int("repeat", spec.Repeat).
			Bool("missing_zero", g.missingZero).
			Msg("generated utility instances")
	}

	log.Debug().Msgf("generated utilities for %d distributions in %v", len(specs), time.Since(startTime))
	return out, nil
}

func (g *Generator) instance(n *ballot.Normalized, sampler Sampler) (Instance, error) {
	inst := make(Instance, 0, n.Store.Len())
	var err error
	n.Store.Each(func(e ballot.Entry) {
		if err != nil {
			return
		}
		bu := BallotUtilities{Key: e.Key, Ballot: e.Ballot, Vectors: make([]Vector, 0, e.Count)}
		for range e.Count {
			var v Vector
			v, err = g.voterVector(e.Ballot, n.SourceOf(e.Key), n.Missing[e.Key], n.Alternatives, sampler)
			if err != nil {
				err = fmt.Errorf("ballot %s: %w", e.Key, err)
				return
			}
			bu.Vectors = append(bu.Vectors, v)
		}
		inst = append(inst, bu)
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}
