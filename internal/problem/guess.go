package problem

import (
	"math/rand/v2"

	"github.com/cwbudde/optimism/internal/heuristic"
	"github.com/cwbudde/optimism/internal/selector"
	"github.com/cwbudde/optimism/internal/stopping"
)

const (
	guessLow  = 0
	guessHigh = 100
	guesses   = 10
)

func init() {
	Register(Problem{
		Name:        "guess",
		Description: "Find a hidden integer in [0, 100] by stepping up or down",
		Build: func(rng *rand.Rand) *Instance {
			target := rng.IntN(guessHigh - guessLow + 1)
			seeds := make([]int, guesses)
			for i := range seeds {
				seeds[i] = rng.IntN(guessHigh - guessLow + 1)
			}
			return NewGuess(target, seeds)
		},
	})
}

// NewGuess builds the number guessing problem for a known target.
func NewGuess(target int, seeds []int) *Instance {
	atLeast := heuristic.NewObjective("at_least_target", func(d heuristic.Design) float64 {
		n := d.(int)
		if n >= target {
			return 1
		}
		return 1 - float64(target-n)/100
	})
	atMost := heuristic.NewObjective("at_most_target", func(d heuristic.Design) float64 {
		n := d.(int)
		if n <= target {
			return 1
		}
		return 1 - float64(n-target)/100
	})

	increment := heuristic.NewModifier("increment", func(d heuristic.Design) heuristic.Design {
		return min(d.(int)+1, guessHigh)
	})
	decrement := heuristic.NewModifier("decrement", func(d heuristic.Design) heuristic.Design {
		return max(d.(int)-1, guessLow)
	})

	designs := make([]heuristic.Design, len(seeds))
	for i, s := range seeds {
		designs[i] = s
	}

	return &Instance{
		Name:       "guess",
		Objectives: heuristic.UniformObjectiveFunction(atLeast, atMost),
		Heuristics: heuristic.NewHeuristicMap([]heuristic.Weight{
			{Modifier: increment, Objective: atLeast.Name, Value: 1},
			{Modifier: decrement, Objective: atMost.Name, Value: 1},
		}),
		Seeds:            designs,
		DesignSelector:   selector.HighestScoringDesign(nil),
		ModifierSelector: selector.BestForLowestObjective(nil),
		Stop:             stopping.AtThreshold(1),
	}
}
