// Package session runs the evaluation pipeline for one caller. A Session
// owns its ballots, scores, utilities and random source; it is not safe for
// concurrent use and must not be shared between callers.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/socialchoice/internal/ballot"
	"github.com/tensorplex-labs/socialchoice/internal/distortion"
	"github.com/tensorplex-labs/socialchoice/internal/fetch"
	"github.com/tensorplex-labs/socialchoice/internal/report"
	"github.com/tensorplex-labs/socialchoice/internal/rules"
	"github.com/tensorplex-labs/socialchoice/internal/utility"
)

var (
	ErrNoBallots = errors.New("no ballots loaded")
	ErrNoScores  = errors.New("no voting rule applied")
	ErrNoValues  = errors.New("no utilities generated for distribution")
)

// Fetcher downloads remote ballot files.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// evicter is a Fetcher that keeps downloads and can forget one.
type evicter interface {
	Evict(ctx context.Context, url string) error
}

type Session struct {
	ID          uuid.UUID
	seed        uint64
	rng         *rand.Rand
	maxResample int
	fetcher     Fetcher
	logger      zerolog.Logger

	file       *ballot.File
	normalized *ballot.Normalized
	rule       rules.Spec
	scores     rules.Scores
	values     utility.Instances
}

type Option func(*Session)

// WithSeed fixes the random source. Zero keeps the clock-derived seed.
func WithSeed(seed uint64) Option {
	return func(s *Session) {
		if seed != 0 {
			s.seed = seed
		}
	}
}

func WithMaxResample(n int) Option {
	return func(s *Session) {
		s.maxResample = n
	}
}

func WithFetcher(f Fetcher) Option {
	return func(s *Session) {
		s.fetcher = f
	}
}

func New(opts ...Option) *Session {
	s := &Session{
		ID:          uuid.New(),
		seed:        uint64(time.Now().UnixNano()),
		maxResample: utility.DefaultMaxResample,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rng = rand.New(rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15))
	s.logger = log.With().Str("session", s.ID.String()).Logger()
	s.logger.Debug().Uint64("seed", s.seed).Msg("session created")
	return s
}

// Seed returns the seed of the session's random source.
func (s *Session) Seed() uint64 {
	return s.seed
}

// Load reads a ballot file from a local path or an http(s) URL. A positive
// alternatives overrides the count declared in the file.
func (s *Session) Load(ctx context.Context, path string, alternatives int) error {
	if fetch.IsRemote(path) {
		if s.fetcher == nil {
			return fmt.Errorf("load %s: no fetcher configured", path)
		}
		data, err := s.fetcher.Get(ctx, path)
		if err != nil {
			return err
		}
		if err := s.LoadReader(bytes.NewReader(data), alternatives); err != nil {
			if e, ok := s.fetcher.(evicter); ok {
				if evictErr := e.Evict(ctx, path); evictErr != nil {
					s.logger.Warn().Err(evictErr).Str("url", path).Msg("failed to evict unreadable ballot file")
				}
			}
			return err
		}
		return nil
	}

	r, err := report.Open(path)
	if err != nil {
		return fmt.Errorf("open ballots: %w", err)
	}
	defer r.Close()
	return s.LoadReader(r, alternatives)
}

// LoadReader parses ballots and discards every result derived from earlier
// ballots.
func (s *Session) LoadReader(r io.Reader, alternatives int) error {
	f, err := ballot.Parse(r)
	if err != nil {
		return err
	}
	if alternatives > 0 {
		if err := f.Store.Validate(alternatives); err != nil {
			return err
		}
		f.Alternatives = alternatives
	}
	if f.Alternatives <= 0 {
		return ballot.ErrMissingAlternativeCount
	}

	s.file = f
	s.normalized = nil
	s.scores = nil
	s.values = nil
	s.logger.Info().
		Int("alternatives", f.Alternatives).
		Int("rows", f.Store.Len()).
		Int("voters", f.Store.Total()).
		Msg("ballots loaded")
	return nil
}

// Alternatives is the number of alternatives of the loaded file.
func (s *Session) Alternatives() int {
	if s.file == nil {
		return 0
	}
	return s.file.Alternatives
}

// File returns the ballots as loaded.
func (s *Session) File() *ballot.File {
	return s.file
}

// Normalize makes the loaded ballots strict and complete. It runs once; later
// calls return the same result until new ballots are loaded.
func (s *Session) Normalize() (*ballot.Normalized, error) {
	if s.file == nil {
		return nil, ErrNoBallots
	}
	if s.normalized != nil {
		return s.normalized, nil
	}
	n, err := ballot.Normalize(s.file.Store, s.file.Alternatives, s.rng)
	if err != nil {
		return nil, err
	}
	s.normalized = n
	s.logger.Info().Int("completed_rows", len(n.Missing)).Msg("ballots made strict and complete")
	return n, nil
}

// Score applies rule to the normalized ballots and keeps the scores as the
// session's current result.
func (s *Session) Score(rule rules.Spec) (rules.Scores, error) {
	n, err := s.Normalize()
	if err != nil {
		return nil, err
	}
	scores, err := rule.Apply(n.Store, n.Alternatives)
	if err != nil {
		return nil, err
	}
	s.rule, s.scores = rule, scores
	return scores, nil
}

// Scores returns the scores of the last applied rule.
func (s *Session) Scores() (rules.Spec, rules.Scores, error) {
	if s.scores == nil {
		return rules.Spec{}, nil, ErrNoScores
	}
	return s.rule, s.scores, nil
}

// GenerateValues synthesizes utilities for every spec and keeps them as the
// session's current values.
func (s *Session) GenerateValues(specs []utility.DistributionSpec, missingZero bool) (utility.Instances, error) {
	n, err := s.Normalize()
	if err != nil {
		return nil, err
	}
	g := utility.NewGenerator(s.rng,
		utility.WithMissingZero(missingZero),
		utility.WithMaxResample(s.maxResample),
	)
	values, err := g.GenerateKInstances(n, specs)
	if err != nil {
		return nil, err
	}
	s.values = values
	return values, nil
}

// NormalizeValues rescales the current values in place of the originals.
func (s *Session) NormalizeValues(method utility.Normalization) (utility.Instances, error) {
	if s.values == nil {
		return nil, ErrNoValues
	}
	out := make(utility.Instances, len(s.values))
	for label, instances := range s.values {
		scaled := make([]utility.Instance, len(instances))
		for i, inst := range instances {
			var err error
			if scaled[i], err = method.Apply(inst); err != nil {
				return nil, err
			}
		}
		out[label] = scaled
	}
	s.values = out
	return out, nil
}

// Values returns the instances generated for a distribution label.
func (s *Session) Values(label string) ([]utility.Instance, error) {
	instances, ok := s.values[label]
	if !ok {
		return nil, fmt.Errorf("%q: %w", label, ErrNoValues)
	}
	return instances, nil
}

// TotalUtility sums the utilities generated for a distribution label.
func (s *Session) TotalUtility(label string) (distortion.TotalUtility, error) {
	instances, err := s.Values(label)
	if err != nil {
		return nil, err
	}
	return distortion.Total(instances...), nil
}

// Distortion evaluates the deterministic winner of the current scores.
func (s *Session) Distortion(label string) (distortion.Result, error) {
	_, scores, err := s.Scores()
	if err != nil {
		return distortion.Result{}, err
	}
	total, err := s.TotalUtility(label)
	if err != nil {
		return distortion.Result{}, err
	}
	winner, err := rules.DeterministicWinner(scores)
	if err != nil {
		return distortion.Result{}, err
	}
	return distortion.Evaluate(total, distortion.Single(winner))
}

// AverageDistortion estimates over k draws the distortion of the randomized
// rule that picks alternatives in proportion to the current scores.
func (s *Session) AverageDistortion(label string, k int) (float64, error) {
	_, scores, err := s.Scores()
	if err != nil {
		return 0, err
	}
	total, err := s.TotalUtility(label)
	if err != nil {
		return 0, err
	}
	probs, err := rules.WinnerProbabilities(scores)
	if err != nil {
		return 0, err
	}
	return distortion.AverageDistortion(total, k, probs, s.rng)
}
