package heuristic

import (
	"fmt"
	"log/slog"
)

// Kind distinguishes the two things a registry holds.
type Kind int

const (
	KindObjective Kind = iota
	KindModifier
)

func (k Kind) String() string {
	switch k {
	case KindObjective:
		return "objective"
	case KindModifier:
		return "modifier"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// RegisterOptions tune how a function is registered.
type RegisterOptions struct {
	// Clone makes a registered modifier copy its input before applying.
	Clone func(Design) Design
	// Transform wraps a registered objective, e.g. Inverse or TargetValue.
	Transform func(func(Design) float64) func(Design) float64
}

// Registry collects named objectives and modifiers for one problem domain.
type Registry struct {
	name           string
	objectives     map[string]*Objective
	objectiveOrder []string
	modifiers      map[string]*Modifier
	modifierOrder  []string
}

// NewRegistry creates an empty registry.
func NewRegistry(name string) *Registry {
	return &Registry{
		name:       name,
		objectives: make(map[string]*Objective),
		modifiers:  make(map[string]*Modifier),
	}
}

// Name returns the registry's name.
func (r *Registry) Name() string { return r.name }

// Register adds an objective (fn of type func(Design) float64) or a modifier
// (fn of type func(Design) Design). Re-registering a name overwrites it.
func (r *Registry) Register(kind Kind, name string, fn any, opts RegisterOptions) error {
	if name == "" {
		return fmt.Errorf("failed to register %s: name is empty", kind)
	}
	switch kind {
	case KindObjective:
		f, ok := fn.(func(Design) float64)
		if !ok {
			return fmt.Errorf("failed to register objective %q: expected func(Design) float64, got %T", name, fn)
		}
		if opts.Transform != nil {
			f = opts.Transform(f)
		}
		if _, exists := r.objectives[name]; exists {
			slog.Warn("Overwriting objective", "registry", r.name, "objective", name)
		} else {
			r.objectiveOrder = append(r.objectiveOrder, name)
		}
		r.objectives[name] = NewObjective(name, f)
	case KindModifier:
		f, ok := fn.(func(Design) Design)
		if !ok {
			return fmt.Errorf("failed to register modifier %q: expected func(Design) Design, got %T", name, fn)
		}
		if _, exists := r.modifiers[name]; exists {
			slog.Warn("Overwriting modifier", "registry", r.name, "modifier", name)
		} else {
			r.modifierOrder = append(r.modifierOrder, name)
		}
		r.modifiers[name] = &Modifier{Name: name, Fn: f, Clone: opts.Clone}
	default:
		return fmt.Errorf("failed to register %q: unknown kind %s", name, kind)
	}
	return nil
}

// RegisterObjective is a typed shorthand for Register(KindObjective, ...).
// It returns nil, and logs the error, when the name is empty.
func (r *Registry) RegisterObjective(name string, fn func(Design) float64, opts RegisterOptions) *Objective {
	if err := r.Register(KindObjective, name, fn, opts); err != nil {
		slog.Error("Objective not registered", "registry", r.name, "error", err)
		return nil
	}
	return r.objectives[name]
}

// RegisterModifier is a typed shorthand for Register(KindModifier, ...).
// It returns nil, and logs the error, when the name is empty.
func (r *Registry) RegisterModifier(name string, fn func(Design) Design, opts RegisterOptions) *Modifier {
	if err := r.Register(KindModifier, name, fn, opts); err != nil {
		slog.Error("Modifier not registered", "registry", r.name, "error", err)
		return nil
	}
	return r.modifiers[name]
}

// Objective looks up a registered objective.
func (r *Registry) Objective(name string) (*Objective, bool) {
	o, ok := r.objectives[name]
	return o, ok
}

// Modifier looks up a registered modifier.
func (r *Registry) Modifier(name string) (*Modifier, bool) {
	m, ok := r.modifiers[name]
	return m, ok
}

// Objectives returns the registered objectives in registration order.
func (r *Registry) Objectives() []*Objective {
	out := make([]*Objective, len(r.objectiveOrder))
	for i, name := range r.objectiveOrder {
		out[i] = r.objectives[name]
	}
	return out
}

// Modifiers returns the registered modifiers in registration order.
func (r *Registry) Modifiers() []*Modifier {
	out := make([]*Modifier, len(r.modifierOrder))
	for i, name := range r.modifierOrder {
		out[i] = r.modifiers[name]
	}
	return out
}

// UniformObjectiveFunction weights every registered objective with 1.
func (r *Registry) UniformObjectiveFunction() *ObjectiveFunction {
	return UniformObjectiveFunction(r.Objectives()...)
}

// UniformHeuristicMap links every registered modifier to every registered
// objective with weight 1.
func (r *Registry) UniformHeuristicMap(opts ...Option) *HeuristicMap {
	var weights []Weight
	for _, m := range r.Modifiers() {
		for _, o := range r.objectiveOrder {
			weights = append(weights, Weight{Modifier: m, Objective: o, Value: 1})
		}
	}
	return NewHeuristicMap(weights, opts...)
}

// Inverse turns a score s into 1-s.
func Inverse(fn func(Design) float64) func(Design) float64 {
	return func(d Design) float64 { return 1 - fn(d) }
}

// TargetValue scores how close fn's result is to target. The score is 1 at the
// target and drops linearly to 0 at the lower and upper bounds.
func TargetValue(target, lower, upper float64) func(func(Design) float64) func(Design) float64 {
	return func(fn func(Design) float64) func(Design) float64 {
		return func(d Design) float64 {
			v := fn(d)
			switch {
			case v == target:
				return 1
			case v < target:
				if target == lower {
					return 0
				}
				return clamp01(1 - (target-v)/(target-lower))
			default:
				if upper == target {
					return 0
				}
				return clamp01(1 - (v-target)/(upper-target))
			}
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
