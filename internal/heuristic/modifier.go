package heuristic

// Modifier produces a new design from an existing one.
type Modifier struct {
	Name string
	Fn   func(Design) Design
	// Clone, when set, copies the design before Fn runs so the source design
	// is never mutated.
	Clone func(Design) Design
}

// NewModifier creates a modifier that applies fn directly to its input.
func NewModifier(name string, fn func(Design) Design) *Modifier {
	return &Modifier{Name: name, Fn: fn}
}

// NewCopyingModifier creates a modifier that clones its input before applying fn.
func NewCopyingModifier(name string, fn func(Design) Design, clone func(Design) Design) *Modifier {
	return &Modifier{Name: name, Fn: fn, Clone: clone}
}

// Apply runs the modifier on d.
func (m *Modifier) Apply(d Design) Design {
	if m.Clone != nil {
		d = m.Clone(d)
	}
	return m.Fn(d)
}

func (m *Modifier) String() string { return m.Name }

// Delta is the score difference between two evaluated designs.
type Delta struct {
	ScoreChange      float64
	ObjectiveChanges map[string]float64
}

// NewDelta computes the change going from prior to current.
func NewDelta(prior, current Evaluation) Delta {
	d := Delta{
		ScoreChange:      current.Score - prior.Score,
		ObjectiveChanges: make(map[string]float64, len(current.Scores)),
	}
	for o, v := range current.Scores {
		d.ObjectiveChanges[o] = v - prior.Scores[o]
	}
	return d
}

// Increased reports whether the weighted score went up.
func (d Delta) Increased() bool { return d.ScoreChange > 0 }

// Decreased reports whether the weighted score went down.
func (d Delta) Decreased() bool { return d.ScoreChange < 0 }

// ModifierStats accumulates the observed effect of applying one modifier.
type ModifierStats struct {
	Applications       int
	UniqueApplications int
	ScoreChanges       float64
	ScoreIncreases     int
	ScoreDecreases     int
	ObjectiveChanges   map[string]float64
	ObjectiveIncreases map[string]int
	ObjectiveDecreases map[string]int
}

func newModifierStats() *ModifierStats {
	return &ModifierStats{
		ObjectiveChanges:   make(map[string]float64),
		ObjectiveIncreases: make(map[string]int),
		ObjectiveDecreases: make(map[string]int),
	}
}

func (s *ModifierStats) ensureObjective(o string) {
	if _, ok := s.ObjectiveChanges[o]; ok {
		return
	}
	s.ObjectiveChanges[o] = 0
	s.ObjectiveIncreases[o] = 0
	s.ObjectiveDecreases[o] = 0
}

func (s *ModifierStats) record(d Delta, unique bool) {
	s.Applications++
	if unique {
		s.UniqueApplications++
	}
	s.ScoreChanges += d.ScoreChange
	if d.Increased() {
		s.ScoreIncreases++
	}
	if d.Decreased() {
		s.ScoreDecreases++
	}
	for o, change := range d.ObjectiveChanges {
		s.ensureObjective(o)
		s.ObjectiveChanges[o] += change
		if change > 0 {
			s.ObjectiveIncreases[o]++
		}
		if change < 0 {
			s.ObjectiveDecreases[o]++
		}
	}
}

// Copy returns a deep copy of the stats.
func (s *ModifierStats) Copy() ModifierStats {
	out := *s
	out.ObjectiveChanges = make(map[string]float64, len(s.ObjectiveChanges))
	out.ObjectiveIncreases = make(map[string]int, len(s.ObjectiveIncreases))
	out.ObjectiveDecreases = make(map[string]int, len(s.ObjectiveDecreases))
	for o, v := range s.ObjectiveChanges {
		out.ObjectiveChanges[o] = v
		out.ObjectiveIncreases[o] = s.ObjectiveIncreases[o]
		out.ObjectiveDecreases[o] = s.ObjectiveDecreases[o]
	}
	return out
}
