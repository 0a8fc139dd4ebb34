package rules

import (
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxWeightsInput bounds the text accepted by ParseWeights.
const MaxWeightsInput = 4096

// ParseWeights reads a weight vector written as a flat numeric list, with or
// without brackets: "[2, 1, 0]" or "2,1,0". Anything other than finite
// numbers is rejected. When m > 0 the vector must hold exactly m weights.
func ParseWeights(text string, m int) ([]float64, error) {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > MaxWeightsInput {
		return nil, fmt.Errorf("weights must be 1..%d characters: %w", MaxWeightsInput, ErrInvalidWeights)
	}
	if !strings.HasPrefix(text, "[") {
		text = "[" + text + "]"
	}

	var weights []float64
	if err := yaml.Unmarshal([]byte(text), &weights); err != nil {
		return nil, fmt.Errorf("%q: %w", text, ErrInvalidWeights)
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("empty vector: %w", ErrInvalidWeights)
	}
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("weight %d is %v: %w", i, w, ErrInvalidWeights)
		}
	}
	if m > 0 && len(weights) != m {
		return nil, fmt.Errorf("got %d weights for %d alternatives: %w", len(weights), m, ErrLengthMismatch)
	}
	return weights, nil
}
