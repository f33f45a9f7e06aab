// Package selector picks designs and modifiers from ranked candidate lists
// with a probabilistic acceptance threshold.
package selector

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
)

// ErrNoCandidates is returned when a selector is given nothing to choose from.
var ErrNoCandidates = errors.New("no candidates to select from")

// ThresholdError reports a threshold outside [0, 1].
type ThresholdError struct {
	Selector string
	Rank     int
	Value    float64
}

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("selector %q: threshold %v at rank %d is outside [0, 1]", e.Selector, e.Value, e.Rank)
}

// Threshold returns the probability of accepting the candidate at a rank.
type Threshold[T any] func(rank int, candidate T) float64

// Always accepts the first candidate.
func Always[T any]() Threshold[T] {
	return func(int, T) float64 { return 1 }
}

// Constant accepts every candidate with the same probability.
func Constant[T any](p float64) Threshold[T] {
	return func(int, T) float64 { return p }
}

// Decay accepts the candidate at rank r with probability p * rate^r.
func Decay[T any](p, rate float64) Threshold[T] {
	return func(rank int, _ T) float64 { return p * math.Pow(rate, float64(rank)) }
}

// Selector walks a ranked list and accepts each candidate with its threshold
// probability. If nothing is accepted the last candidate visited is returned.
type Selector[T any] struct {
	Name      string
	Threshold Threshold[T]
	// Reverse walks the list from its end, so ascending sorts yield best first.
	Reverse bool
}

// Select picks one candidate from ranked.
func (s Selector[T]) Select(rng *rand.Rand, ranked []T) (T, error) {
	var zero T
	n := len(ranked)
	if n == 0 {
		return zero, fmt.Errorf("selector %q: %w", s.Name, ErrNoCandidates)
	}

	var last T
	for rank := 0; rank < n; rank++ {
		candidate := ranked[rank]
		if s.Reverse {
			candidate = ranked[n-1-rank]
		}
		p := 1.0
		if s.Threshold != nil {
			p = s.Threshold(rank, candidate)
		}
		if math.IsNaN(p) || p < 0 || p > 1 {
			return zero, &ThresholdError{Selector: s.Name, Rank: rank, Value: p}
		}
		if rng.Float64() <= p {
			return candidate, nil
		}
		last = candidate
	}

	slog.Warn("No candidate met selection threshold", "selector", s.Name, "candidates", n)
	return last, nil
}
