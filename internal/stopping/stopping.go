// Package stopping provides the predicates that end a search.
package stopping

import (
	"context"

	"github.com/cwbudde/optimism/internal/population"
)

// Criterion reports whether the search should stop after it was added to pop.
type Criterion func(it *population.Iteration, pop *population.Population) bool

// AtIterations stops once n designs have been added to the population.
func AtIterations(n int64) Criterion {
	return func(_ *population.Iteration, pop *population.Population) bool {
		return pop.IterationCount() >= n
	}
}

// AtThreshold stops once the latest iteration reaches a portion of the perfect score.
func AtThreshold(portion float64) Criterion {
	return func(it *population.Iteration, pop *population.Population) bool {
		return pop.PortionPerfectScore(it) >= portion
	}
}

// OnContextDone stops once ctx is cancelled or times out.
func OnContextDone(ctx context.Context) Criterion {
	return func(*population.Iteration, *population.Population) bool {
		return ctx.Err() != nil
	}
}

// Any stops when at least one criterion is met. Nil criteria are skipped.
func Any(criteria ...Criterion) Criterion {
	return func(it *population.Iteration, pop *population.Population) bool {
		for _, c := range criteria {
			if c != nil && c(it, pop) {
				return true
			}
		}
		return false
	}
}

// All stops when every criterion is met. Nil criteria are skipped.
func All(criteria ...Criterion) Criterion {
	return func(it *population.Iteration, pop *population.Population) bool {
		met := false
		for _, c := range criteria {
			if c == nil {
				continue
			}
			if !c(it, pop) {
				return false
			}
			met = true
		}
		return met
	}
}
