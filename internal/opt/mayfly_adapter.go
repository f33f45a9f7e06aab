package opt

import (
	"log/slog"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MayflyAdapter runs the Mayfly algorithm as a Minimizer.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a Mayfly minimizer. popSize must be at least 20.
func NewMayfly(maxIters, popSize int, seed int64) Minimizer {
	if popSize < 20 {
		popSize = 20
	}
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Run executes the search. Mayfly only supports one scalar bound, so the
// search runs in the unit cube and positions are mapped onto each
// dimension's own [lower, upper] range before evaluation.
func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	scale := func(unit []float64) []float64 {
		x := make([]float64, dim)
		for i := 0; i < dim; i++ {
			u := unit[i]
			if u < 0 {
				u = 0
			} else if u > 1 {
				u = 1
			}
			x[i] = lower[i] + u*(upper[i]-lower[i])
		}
		return x
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(unit []float64) float64 { return eval(scale(unit)) }
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		slog.Warn("Mayfly search failed, returning lower bounds", "error", err)
		x := make([]float64, dim)
		copy(x, lower)
		return x, eval(x)
	}

	return scale(result.GlobalBest.Position), result.GlobalBest.Cost
}
