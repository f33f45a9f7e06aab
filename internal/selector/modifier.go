package selector

import (
	"math/rand/v2"

	"github.com/cwbudde/optimism/internal/heuristic"
	"github.com/cwbudde/optimism/internal/population"
)

// ModifierSort ranks a heuristic map's modifiers for an iteration, worst first.
type ModifierSort func(hm *heuristic.HeuristicMap, it *population.Iteration) []*heuristic.Modifier

// ModifierSelector chooses the modifier applied to the selected iteration.
type ModifierSelector struct {
	Selector[*heuristic.Modifier]
	Sort ModifierSort
}

// NewModifierSelector creates a modifier selector.
func NewModifierSelector(name string, sort ModifierSort, threshold Threshold[*heuristic.Modifier], reverse bool) *ModifierSelector {
	return &ModifierSelector{
		Selector: Selector[*heuristic.Modifier]{Name: name, Threshold: threshold, Reverse: reverse},
		Sort:     sort,
	}
}

// SelectModifier picks a modifier for it.
func (s *ModifierSelector) SelectModifier(rng *rand.Rand, it *population.Iteration, hm *heuristic.HeuristicMap) (*heuristic.Modifier, error) {
	return s.Select(rng, s.Sort(hm, it))
}

// BestForLowestObjective prefers the modifier weighted most heavily toward the
// iteration's lowest scoring objective.
func BestForLowestObjective(threshold Threshold[*heuristic.Modifier]) *ModifierSelector {
	return NewModifierSelector("best_modifier_for_low_objective", ByValueToLowestObjective, orAlways(threshold), true)
}

// HistoricallyBestForLowestObjective prefers the modifier that has raised the
// iteration's lowest scoring objective the most so far.
func HistoricallyBestForLowestObjective(threshold Threshold[*heuristic.Modifier]) *ModifierSelector {
	return NewModifierSelector("historically_best_for_lowest_objective", ByChangesOnLowestObjective, orAlways(threshold), true)
}

// HistoricallyBestForImportantObjective prefers the modifier that has raised
// the iteration's most important objective the most so far.
func HistoricallyBestForImportantObjective(threshold Threshold[*heuristic.Modifier]) *ModifierSelector {
	return NewModifierSelector("historically_best_for_important_objective", ByChangesOnMostImportantObjective, orAlways(threshold), true)
}

func orAlways(t Threshold[*heuristic.Modifier]) Threshold[*heuristic.Modifier] {
	if t == nil {
		return Always[*heuristic.Modifier]()
	}
	return t
}

// ByModifierKey ranks by a whole-modifier key.
func ByModifierKey(key heuristic.ModifierKey) ModifierSort {
	return func(hm *heuristic.HeuristicMap, _ *population.Iteration) []*heuristic.Modifier {
		mods, ok := hm.ByModifierKey(key)
		if !ok {
			return hm.Modifiers()
		}
		return mods
	}
}

// ByKeyOnObjective ranks by a per-objective key for a fixed objective.
func ByKeyOnObjective(objective string, key heuristic.ObjectiveModifierKey) ModifierSort {
	return func(hm *heuristic.HeuristicMap, _ *population.Iteration) []*heuristic.Modifier {
		return objectiveSorted(hm, objective, key)
	}
}

// ByKeyOnLowestObjective ranks by a per-objective key on the iteration's lowest scoring objective.
func ByKeyOnLowestObjective(key heuristic.ObjectiveModifierKey) ModifierSort {
	return func(hm *heuristic.HeuristicMap, it *population.Iteration) []*heuristic.Modifier {
		return objectiveSorted(hm, it.LowestObjective(), key)
	}
}

// ByKeyOnMostImportantObjective ranks by a per-objective key on the iteration's most important objective.
func ByKeyOnMostImportantObjective(key heuristic.ObjectiveModifierKey) ModifierSort {
	return func(hm *heuristic.HeuristicMap, it *population.Iteration) []*heuristic.Modifier {
		return objectiveSorted(hm, it.MostImportantObjective(), key)
	}
}

// objectiveSorted falls back to insertion order for objectives no modifier is linked to.
func objectiveSorted(hm *heuristic.HeuristicMap, objective string, key heuristic.ObjectiveModifierKey) []*heuristic.Modifier {
	mods, ok := hm.ByObjectiveKey(objective, key)
	if !ok {
		return hm.Modifiers()
	}
	return mods
}

var (
	ByApplications       = ByModifierKey(heuristic.Applications)
	ByUniqueApplications = ByModifierKey(heuristic.UniqueApplications)
	ByModifierChanges    = ByModifierKey(heuristic.ScoreChanges)
	ByModifierIncreases  = ByModifierKey(heuristic.ScoreIncreases)
	ByModifierDecreases  = ByModifierKey(heuristic.ScoreDecreases)

	ByValueToLowestObjective          = ByKeyOnLowestObjective(heuristic.Value)
	ByChangesOnLowestObjective        = ByKeyOnLowestObjective(heuristic.ObjectiveChanges)
	ByChangesOnMostImportantObjective = ByKeyOnMostImportantObjective(heuristic.ObjectiveChanges)
)
