package selector

import (
	"math/rand/v2"

	"github.com/cwbudde/optimism/internal/population"
)

// DesignSort ranks a population's iterations, worst first.
type DesignSort func(pop *population.Population) []*population.Iteration

// DesignSelector chooses the iteration the next modifier is applied to.
type DesignSelector struct {
	Selector[*population.Iteration]
	Sort DesignSort
}

// NewDesignSelector creates a design selector.
func NewDesignSelector(name string, sort DesignSort, threshold Threshold[*population.Iteration], reverse bool) *DesignSelector {
	return &DesignSelector{
		Selector: Selector[*population.Iteration]{Name: name, Threshold: threshold, Reverse: reverse},
		Sort:     sort,
	}
}

// SelectDesign picks an iteration from pop.
func (s *DesignSelector) SelectDesign(rng *rand.Rand, pop *population.Population) (*population.Iteration, error) {
	return s.Select(rng, s.Sort(pop))
}

// HighestScoringDesign walks iterations from the best weighted score down.
func HighestScoringDesign(threshold Threshold[*population.Iteration]) *DesignSelector {
	if threshold == nil {
		threshold = Always[*population.Iteration]()
	}
	return NewDesignSelector("highest_scoring_design", ByScore, threshold, true)
}

func byKey(key population.IterationKey) DesignSort {
	return func(pop *population.Population) []*population.Iteration {
		items, _ := pop.View(key)
		return items
	}
}

func byObjectiveKey(objective string, key population.ObjectiveIterationKey) DesignSort {
	return func(pop *population.Population) []*population.Iteration {
		items, _ := pop.ObjectiveView(objective, key)
		return items
	}
}

var (
	// ByScore ranks by weighted score.
	ByScore = byKey(population.Scores)
	// ByVisits ranks by how often the score vector was rediscovered.
	ByVisits = byKey(population.Visits)
	// ByCreation ranks by discovery order.
	ByCreation = byKey(population.FirstIteration)
	// ByScoreChanges ranks by summed incoming score change.
	ByScoreChanges = byKey(population.ScoreChanges)
	// ByScoreIncreases ranks by incoming transitions that raised the score.
	ByScoreIncreases = byKey(population.ScoreIncreases)
	// ByScoreDecreases ranks by incoming transitions that lowered the score.
	ByScoreDecreases = byKey(population.ScoreDecreases)
)

// ByIterationKey ranks by any whole-iteration key, custom keys included.
func ByIterationKey(key population.IterationKey) DesignSort { return byKey(key) }

// ByObjectiveScore ranks by one objective's raw score.
func ByObjectiveScore(objective string) DesignSort {
	return byObjectiveKey(objective, population.ObjectiveScores)
}

// ByObjectiveChanges ranks by summed incoming change of one objective.
func ByObjectiveChanges(objective string) DesignSort {
	return byObjectiveKey(objective, population.ObjectiveChanges)
}

// ByObjectiveIncreases ranks by incoming transitions that raised one objective.
func ByObjectiveIncreases(objective string) DesignSort {
	return byObjectiveKey(objective, population.ObjectiveIncreases)
}

// ByObjectiveDecreases ranks by incoming transitions that lowered one objective.
func ByObjectiveDecreases(objective string) DesignSort {
	return byObjectiveKey(objective, population.ObjectiveDecreases)
}
