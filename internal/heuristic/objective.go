// Package heuristic defines the scoring and mutation vocabulary of a search:
// objectives, weighted objective functions, modifiers, and the heuristic map
// that links modifiers to the objectives they are expected to improve.
package heuristic

import (
	"fmt"
	"math"
)

// Design is an opaque candidate solution. Objectives read it and modifiers
// produce new ones from it.
type Design = any

// Objective scores one aspect of a design in [0, 1], where 1 is best.
type Objective struct {
	Name string
	Fn   func(Design) float64
}

// NewObjective creates a named objective.
func NewObjective(name string, fn func(Design) float64) *Objective {
	return &Objective{Name: name, Fn: fn}
}

// Score evaluates the objective and rejects values outside [0, 1].
func (o *Objective) Score(d Design) (float64, error) {
	v := o.Fn(d)
	if math.IsNaN(v) || v < 0 || v > 1 {
		return 0, &RangeError{Objective: o.Name, Value: v}
	}
	return v, nil
}

func (o *Objective) String() string { return o.Name }

// RangeError reports an objective returning a score outside [0, 1].
type RangeError struct {
	Objective string
	Value     float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("objective %q returned %v, expected a score in [0, 1]", e.Objective, e.Value)
}

// Is allows errors.Is to match any RangeError.
func (e *RangeError) Is(target error) bool {
	_, ok := target.(*RangeError)
	return ok
}

// ErrScoreRange can be used with errors.Is to detect out-of-range scores.
var ErrScoreRange = &RangeError{}

// Evaluation is the result of scoring one design.
type Evaluation struct {
	// Score is the weighted sum of the objective scores.
	Score float64
	// Scores holds the raw score of every objective.
	Scores map[string]float64
}

// ObjectiveFunction is a weighted collection of objectives.
// Objectives keep the order in which they were first added.
type ObjectiveFunction struct {
	objectives []*Objective
	position   map[string]int
	weights    map[string]float64
}

// NewObjectiveFunction creates an empty objective function.
func NewObjectiveFunction() *ObjectiveFunction {
	return &ObjectiveFunction{
		position: make(map[string]int),
		weights:  make(map[string]float64),
	}
}

// UniformObjectiveFunction weights every objective with 1.
func UniformObjectiveFunction(objectives ...*Objective) *ObjectiveFunction {
	of := NewObjectiveFunction()
	for _, o := range objectives {
		of.Add(o, 1)
	}
	return of
}

// Add registers an objective with a weight. Adding an existing name replaces
// its function and weight but keeps its position.
func (of *ObjectiveFunction) Add(o *Objective, weight float64) {
	if i, ok := of.position[o.Name]; ok {
		of.objectives[i] = o
		of.weights[o.Name] = weight
		return
	}
	of.position[o.Name] = len(of.objectives)
	of.objectives = append(of.objectives, o)
	of.weights[o.Name] = weight
}

// Weight returns the weight of the named objective, 0 if unknown.
func (of *ObjectiveFunction) Weight(name string) float64 {
	return of.weights[name]
}

// Has reports whether the named objective is part of the function.
func (of *ObjectiveFunction) Has(name string) bool {
	_, ok := of.position[name]
	return ok
}

// PerfectScore is the sum of all weights, reached when every objective scores 1.
func (of *ObjectiveFunction) PerfectScore() float64 {
	total := 0.0
	for _, o := range of.objectives {
		total += of.weights[o.Name]
	}
	return total
}

// Objectives returns the objectives in insertion order.
func (of *ObjectiveFunction) Objectives() []*Objective {
	out := make([]*Objective, len(of.objectives))
	copy(out, of.objectives)
	return out
}

// Names returns the objective names in insertion order.
func (of *ObjectiveFunction) Names() []string {
	out := make([]string, len(of.objectives))
	for i, o := range of.objectives {
		out[i] = o.Name
	}
	return out
}

// Len returns the number of objectives.
func (of *ObjectiveFunction) Len() int { return len(of.objectives) }

// Evaluate scores a design against every objective.
func (of *ObjectiveFunction) Evaluate(d Design) (Evaluation, error) {
	eval := Evaluation{Scores: make(map[string]float64, len(of.objectives))}
	for _, o := range of.objectives {
		v, err := o.Score(d)
		if err != nil {
			return Evaluation{}, err
		}
		eval.Scores[o.Name] = v
		eval.Score += of.weights[o.Name] * v
	}
	return eval, nil
}
