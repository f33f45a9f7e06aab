package heuristic

import (
	"log/slog"
	"sort"

	"github.com/cwbudde/optimism/internal/index"
)

// ModifierKey names a whole-modifier statistic used to sort modifiers.
type ModifierKey string

const (
	Applications       ModifierKey = "applications"
	UniqueApplications ModifierKey = "unique_applications"
	ScoreChanges       ModifierKey = "score_changes"
	ScoreIncreases     ModifierKey = "score_increases"
	ScoreDecreases     ModifierKey = "score_decreases"
)

// ObjectiveModifierKey names a per-objective modifier statistic.
type ObjectiveModifierKey string

const (
	ObjectiveChanges   ObjectiveModifierKey = "score_changes"
	ObjectiveIncreases ObjectiveModifierKey = "score_increases"
	ObjectiveDecreases ObjectiveModifierKey = "score_decreases"
	Value              ObjectiveModifierKey = "value"
)

// ModifierKeyFunc computes a sort key for a modifier.
type ModifierKeyFunc func(hm *HeuristicMap, m *Modifier) float64

// ObjectiveModifierKeyFunc computes a sort key for a modifier relative to one objective.
type ObjectiveModifierKeyFunc func(hm *HeuristicMap, m *Modifier, objective string) float64

// Weight links a modifier to an objective it is expected to improve.
type Weight struct {
	Modifier  *Modifier
	Objective string
	Value     float64
}

// ModifierWeights is the modifier-major orientation of a weight table.
type ModifierWeights map[*Modifier]map[string]float64

// Weights flattens the table, ordered by modifier name then objective name.
func (mw ModifierWeights) Weights() []Weight {
	var out []Weight
	for m, objectives := range mw {
		for o, w := range objectives {
			out = append(out, Weight{Modifier: m, Objective: o, Value: w})
		}
	}
	sortWeights(out)
	return out
}

// ObjectiveWeights is the objective-major orientation of a weight table.
type ObjectiveWeights map[string]map[*Modifier]float64

// Weights flattens the table, ordered by modifier name then objective name.
func (ow ObjectiveWeights) Weights() []Weight {
	var out []Weight
	for o, modifiers := range ow {
		for m, w := range modifiers {
			out = append(out, Weight{Modifier: m, Objective: o, Value: w})
		}
	}
	sortWeights(out)
	return out
}

func sortWeights(ws []Weight) {
	sort.Slice(ws, func(i, j int) bool {
		if ws[i].Modifier.Name != ws[j].Modifier.Name {
			return ws[i].Modifier.Name < ws[j].Modifier.Name
		}
		return ws[i].Objective < ws[j].Objective
	})
}

// Option configures a HeuristicMap.
type Option func(*HeuristicMap)

// WithModifierKey adds a custom whole-modifier sort key.
func WithModifierKey(name ModifierKey, fn ModifierKeyFunc) Option {
	return func(hm *HeuristicMap) { hm.addModifierKey(name, fn) }
}

// WithObjectiveModifierKey adds a custom per-objective sort key.
func WithObjectiveModifierKey(name ObjectiveModifierKey, fn ObjectiveModifierKeyFunc) Option {
	return func(hm *HeuristicMap) { hm.addObjectiveKey(name, fn) }
}

// HeuristicMap records which modifiers are expected to improve which
// objectives, owns the application statistics of every modifier, and keeps
// sorted views of modifiers under every key.
type HeuristicMap struct {
	weights    map[string]map[string]float64
	totals     map[string]float64
	modifiers  map[string]*Modifier
	order      []string
	seq        map[string]int64
	objectives []string
	known      map[string]bool
	stats      map[string]*ModifierStats

	modifierKeys     map[ModifierKey]ModifierKeyFunc
	modifierKeyOrder []ModifierKey
	objectiveKeys    map[ObjectiveModifierKey]ObjectiveModifierKeyFunc
	objectiveKeyList []ObjectiveModifierKey

	views *index.Set[*Modifier]
}

// NewHeuristicMap builds a map from a weight table.
func NewHeuristicMap(weights []Weight, opts ...Option) *HeuristicMap {
	hm := &HeuristicMap{
		weights:       make(map[string]map[string]float64),
		totals:        make(map[string]float64),
		modifiers:     make(map[string]*Modifier),
		seq:           make(map[string]int64),
		known:         make(map[string]bool),
		stats:         make(map[string]*ModifierStats),
		modifierKeys:  make(map[ModifierKey]ModifierKeyFunc),
		objectiveKeys: make(map[ObjectiveModifierKey]ObjectiveModifierKeyFunc),
	}
	hm.addModifierKey(Applications, func(hm *HeuristicMap, m *Modifier) float64 {
		return float64(hm.stats[m.Name].Applications)
	})
	hm.addModifierKey(UniqueApplications, func(hm *HeuristicMap, m *Modifier) float64 {
		return float64(hm.stats[m.Name].UniqueApplications)
	})
	hm.addModifierKey(ScoreChanges, func(hm *HeuristicMap, m *Modifier) float64 {
		return hm.stats[m.Name].ScoreChanges
	})
	hm.addModifierKey(ScoreIncreases, func(hm *HeuristicMap, m *Modifier) float64 {
		return float64(hm.stats[m.Name].ScoreIncreases)
	})
	hm.addModifierKey(ScoreDecreases, func(hm *HeuristicMap, m *Modifier) float64 {
		return float64(hm.stats[m.Name].ScoreDecreases)
	})
	hm.addObjectiveKey(ObjectiveChanges, func(hm *HeuristicMap, m *Modifier, o string) float64 {
		return hm.stats[m.Name].ObjectiveChanges[o]
	})
	hm.addObjectiveKey(ObjectiveIncreases, func(hm *HeuristicMap, m *Modifier, o string) float64 {
		return float64(hm.stats[m.Name].ObjectiveIncreases[o])
	})
	hm.addObjectiveKey(ObjectiveDecreases, func(hm *HeuristicMap, m *Modifier, o string) float64 {
		return float64(hm.stats[m.Name].ObjectiveDecreases[o])
	})
	hm.addObjectiveKey(Value, func(hm *HeuristicMap, m *Modifier, o string) float64 {
		return hm.ModifierValue(m.Name, o)
	})
	for _, opt := range opts {
		opt(hm)
	}
	hm.AddWeights(weights)
	return hm
}

// NewHeuristicMapFromObjectives builds a map from an objective-major table.
func NewHeuristicMapFromObjectives(weights ObjectiveWeights, opts ...Option) *HeuristicMap {
	return NewHeuristicMap(weights.Weights(), opts...)
}

func (hm *HeuristicMap) addModifierKey(name ModifierKey, fn ModifierKeyFunc) {
	if _, ok := hm.modifierKeys[name]; !ok {
		hm.modifierKeyOrder = append(hm.modifierKeyOrder, name)
	}
	hm.modifierKeys[name] = fn
}

func (hm *HeuristicMap) addObjectiveKey(name ObjectiveModifierKey, fn ObjectiveModifierKeyFunc) {
	if _, ok := hm.objectiveKeys[name]; !ok {
		hm.objectiveKeyList = append(hm.objectiveKeyList, name)
	}
	hm.objectiveKeys[name] = fn
}

// AddWeights merges weights into the map, overwriting existing pairs, and
// rebuilds every sorted view.
func (hm *HeuristicMap) AddWeights(weights []Weight) {
	for _, w := range weights {
		name := w.Modifier.Name
		if _, ok := hm.modifiers[name]; !ok {
			hm.seq[name] = int64(len(hm.order))
			hm.order = append(hm.order, name)
			hm.weights[name] = make(map[string]float64)
			hm.stats[name] = newModifierStats()
		}
		hm.modifiers[name] = w.Modifier
		if !hm.known[w.Objective] {
			hm.known[w.Objective] = true
			hm.objectives = append(hm.objectives, w.Objective)
		}
		hm.weights[name][w.Objective] = w.Value
	}
	hm.rebuild()
}

// AddHeuristic sets a single modifier/objective weight.
func (hm *HeuristicMap) AddHeuristic(objective string, m *Modifier, weight float64) {
	hm.AddWeights([]Weight{{Modifier: m, Objective: objective, Value: weight}})
}

func (hm *HeuristicMap) rebuild() {
	hm.totals = make(map[string]float64, len(hm.order))
	for _, name := range hm.order {
		for _, w := range hm.weights[name] {
			hm.totals[name] += w
		}
		for _, o := range hm.objectives {
			hm.stats[name].ensureObjective(o)
		}
	}

	views := index.NewSet(func(m *Modifier) int64 { return hm.seq[m.Name] })
	for _, key := range hm.modifierKeyOrder {
		fn := hm.modifierKeys[key]
		views.AddView(string(key), func(m *Modifier) float64 { return fn(hm, m) })
	}
	for _, o := range hm.objectives {
		for _, key := range hm.objectiveKeyList {
			fn := hm.objectiveKeys[key]
			views.AddView(objectiveView(o, key), func(m *Modifier) float64 { return fn(hm, m, o) })
		}
	}
	for _, name := range hm.order {
		views.Add(hm.modifiers[name])
	}
	hm.views = views
}

func objectiveView(objective string, key ObjectiveModifierKey) string {
	return "objective/" + objective + "/" + string(key)
}

// Weight returns the weight linking a modifier to an objective, 0 if absent.
func (hm *HeuristicMap) Weight(modifier, objective string) float64 {
	return hm.weights[modifier][objective]
}

// TotalWeight returns the sum of a modifier's weights over all objectives.
func (hm *HeuristicMap) TotalWeight(modifier string) float64 {
	return hm.totals[modifier]
}

// ModifierValue is the share of the modifier's total weight that goes to the
// objective. It is 0 when the pair is absent or the total is 0.
func (hm *HeuristicMap) ModifierValue(modifier, objective string) float64 {
	total := hm.totals[modifier]
	if total == 0 {
		return 0
	}
	return hm.weights[modifier][objective] / total
}

// Modifier returns a modifier by name.
func (hm *HeuristicMap) Modifier(name string) (*Modifier, bool) {
	m, ok := hm.modifiers[name]
	return m, ok
}

// Modifiers returns every modifier in insertion order.
func (hm *HeuristicMap) Modifiers() []*Modifier {
	out := make([]*Modifier, len(hm.order))
	for i, name := range hm.order {
		out[i] = hm.modifiers[name]
	}
	return out
}

// Objectives returns every objective named in the map, in insertion order.
func (hm *HeuristicMap) Objectives() []string {
	out := make([]string, len(hm.objectives))
	copy(out, hm.objectives)
	return out
}

// HasObjective reports whether any modifier is linked to the objective.
func (hm *HeuristicMap) HasObjective(objective string) bool {
	return hm.known[objective]
}

// Stats returns a copy of a modifier's accumulated statistics.
func (hm *HeuristicMap) Stats(modifier string) (ModifierStats, bool) {
	s, ok := hm.stats[modifier]
	if !ok {
		return ModifierStats{}, false
	}
	return s.Copy(), true
}

// RecordApplication folds one application of a modifier into its statistics
// and repositions it in every view. Unknown modifiers are ignored.
func (hm *HeuristicMap) RecordApplication(modifier string, d Delta, unique bool) {
	m, ok := hm.modifiers[modifier]
	if !ok {
		slog.Debug("Ignoring application of unmapped modifier", "modifier", modifier)
		return
	}
	stats := hm.stats[modifier]
	hm.views.Reindex(m, func() { stats.record(d, unique) })
}

// ByModifierKey returns modifiers sorted ascending by a whole-modifier key.
func (hm *HeuristicMap) ByModifierKey(key ModifierKey) ([]*Modifier, bool) {
	v := hm.views.View(string(key))
	if v == nil {
		return nil, false
	}
	return v.Slice(), true
}

// ByObjectiveKey returns modifiers sorted ascending by a per-objective key.
func (hm *HeuristicMap) ByObjectiveKey(objective string, key ObjectiveModifierKey) ([]*Modifier, bool) {
	v := hm.views.View(objectiveView(objective, key))
	if v == nil {
		return nil, false
	}
	return v.Slice(), true
}

// Len returns the number of modifiers.
func (hm *HeuristicMap) Len() int { return len(hm.order) }
