// Package opt drives heuristic design searches and wraps the continuous
// minimizers used to tune them.
package opt

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/cwbudde/optimism/internal/heuristic"
	"github.com/cwbudde/optimism/internal/population"
	"github.com/cwbudde/optimism/internal/stopping"
)

var (
	// ErrNoSeeds is returned when a search is started without any seed design.
	ErrNoSeeds = errors.New("at least one seed design is required")
	// ErrInvalidCap is returned for a population cap below 1.
	ErrInvalidCap = errors.New("population cap must be at least 1")
)

// DesignSelector picks the iteration a modifier is applied to.
type DesignSelector interface {
	SelectDesign(rng *rand.Rand, pop *population.Population) (*population.Iteration, error)
}

// ModifierSelector picks the modifier applied to an iteration.
type ModifierSelector interface {
	SelectModifier(rng *rand.Rand, it *population.Iteration, hm *heuristic.HeuristicMap) (*heuristic.Modifier, error)
}

// Step describes one design added to the population.
type Step struct {
	// Index counts additions from 0, seeds included.
	Index      int
	Seed       bool
	Prior      *population.Iteration
	Modifier   *heuristic.Modifier
	Iteration  *population.Iteration
	Population *population.Population
}

// Result summarizes how a search ended.
type Result struct {
	Converged bool
	// Steps counts modifier applications, seeds excluded.
	Steps  int
	Reason string
	Best   *population.Iteration
}

const (
	ReasonSeeded    = "stopping criterion met while seeding"
	ReasonConverged = "stopping criterion met"
	ReasonExhausted = "iteration limit reached"
)

// Optimizer runs the select, modify, evaluate loop.
type Optimizer struct {
	DesignSelector   DesignSelector
	ModifierSelector ModifierSelector
	// Stop may be nil, in which case the search runs until maxIterations.
	Stop stopping.Criterion
	// Rand drives every random choice. A nil Rand is seeded randomly.
	Rand *rand.Rand
	// OnStep, when set, is called after every addition.
	OnStep func(Step)
	// PopulationOptions are passed to the population the search creates.
	PopulationOptions []population.Option
}

// New creates an optimizer.
func New(ds DesignSelector, ms ModifierSelector, stop stopping.Criterion) *Optimizer {
	return &Optimizer{DesignSelector: ds, ModifierSelector: ms, Stop: stop}
}

// Optimize seeds a population, then repeatedly selects an iteration and a
// modifier, applies the modifier to one of the iteration's designs, and adds
// the result until the stopping criterion is met or maxIterations modifier
// applications have been made.
func (o *Optimizer) Optimize(of *heuristic.ObjectiveFunction, hm *heuristic.HeuristicMap, seeds []heuristic.Design, maxIterations, populationCap int) (*population.Population, Result, error) {
	if len(seeds) == 0 {
		return nil, Result{}, ErrNoSeeds
	}
	if populationCap < 1 {
		return nil, Result{}, fmt.Errorf("%w: got %d", ErrInvalidCap, populationCap)
	}

	rng := o.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	opts := append([]population.Option{population.WithRecorder(hm)}, o.PopulationOptions...)
	pop := population.New(of, populationCap, opts...)

	index := 0
	for _, seed := range seeds {
		it, err := pop.Add(seed, nil, nil)
		if err != nil {
			return pop, Result{}, fmt.Errorf("failed to add seed design: %w", err)
		}
		o.notify(Step{Index: index, Seed: true, Iteration: it, Population: pop})
		index++
		if o.stop(it, pop) {
			return pop, o.result(pop, true, 0, ReasonSeeded), nil
		}
	}

	for step := 1; step <= maxIterations; step++ {
		prior, err := o.DesignSelector.SelectDesign(rng, pop)
		if err != nil {
			return pop, o.result(pop, false, step-1, ""), fmt.Errorf("failed to select design: %w", err)
		}
		modifier, err := o.ModifierSelector.SelectModifier(rng, prior, hm)
		if err != nil {
			return pop, o.result(pop, false, step-1, ""), fmt.Errorf("failed to select modifier: %w", err)
		}

		design := modifier.Apply(prior.RandomDesign(rng))
		it, err := pop.Add(design, prior, modifier)
		if err != nil {
			return pop, o.result(pop, false, step-1, ""), fmt.Errorf("failed to add design from %s: %w", modifier.Name, err)
		}

		o.notify(Step{Index: index, Prior: prior, Modifier: modifier, Iteration: it, Population: pop})
		index++
		if o.stop(it, pop) {
			return pop, o.result(pop, true, step, ReasonConverged), nil
		}
	}

	slog.Warn("Optimizer did not converge", "max_iterations", maxIterations, "population", pop.Len())
	return pop, o.result(pop, false, maxIterations, ReasonExhausted), nil
}

func (o *Optimizer) stop(it *population.Iteration, pop *population.Population) bool {
	return o.Stop != nil && o.Stop(it, pop)
}

func (o *Optimizer) notify(s Step) {
	if o.OnStep != nil {
		o.OnStep(s)
	}
}

func (o *Optimizer) result(pop *population.Population, converged bool, steps int, reason string) Result {
	best, _ := pop.Best()
	return Result{Converged: converged, Steps: steps, Reason: reason, Best: best}
}
