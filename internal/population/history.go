package population

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/cwbudde/optimism/internal/heuristic"
)

// Change is the transition from one iteration to another, shared by every
// modifier that has produced it.
type Change struct {
	heuristic.Delta
	prior     *Iteration
	current   *Iteration
	modifiers map[string]struct{}
}

func newChange(prior, current *Iteration) *Change {
	return &Change{
		Delta:     heuristic.NewDelta(prior.evaluation(), current.evaluation()),
		prior:     prior,
		current:   current,
		modifiers: make(map[string]struct{}),
	}
}

// Prior returns the source iteration.
func (c *Change) Prior() *Iteration { return c.prior }

// Current returns the destination iteration.
func (c *Change) Current() *Iteration { return c.current }

// HasModifier reports whether a modifier has produced this transition.
func (c *Change) HasModifier(name string) bool {
	_, ok := c.modifiers[name]
	return ok
}

// Modifiers returns the names of the modifiers that produced the transition.
func (c *Change) Modifiers() []string {
	out := make([]string, 0, len(c.modifiers))
	for m := range c.modifiers {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// transition is the graph edge carrying a Change.
type transition struct {
	change *Change
}

func (e transition) From() graph.Node { return e.change.prior }
func (e transition) To() graph.Node   { return e.change.current }
func (e transition) ReversedEdge() graph.Edge {
	return reversed{e.change}
}

type reversed struct {
	change *Change
}

func (e reversed) From() graph.Node         { return e.change.current }
func (e reversed) To() graph.Node           { return e.change.prior }
func (e reversed) ReversedEdge() graph.Edge { return transition{e.change} }

// Recorder receives every modifier application recorded by a History.
type Recorder interface {
	RecordApplication(modifier string, d heuristic.Delta, unique bool)
}

// History is the directed graph of transitions between iterations.
// Transitions from an iteration to itself are kept apart from the graph.
type History struct {
	graph    *simple.DirectedGraph
	loops    map[int64]*Change
	recorder Recorder
}

// NewHistory creates an empty history. recorder may be nil.
func NewHistory(recorder Recorder) *History {
	return &History{
		graph:    simple.NewDirectedGraph(),
		loops:    make(map[int64]*Change),
		recorder: recorder,
	}
}

// AddEdge records that modifier turned prior into current. The transition is
// created on first use and reused afterwards. It returns the transition and
// whether this was the modifier's first time producing it.
func (h *History) AddEdge(prior, current *Iteration, modifier string) (*Change, bool) {
	h.ensureNode(prior)
	h.ensureNode(current)

	change := h.Edge(prior, current)
	if change == nil {
		change = newChange(prior, current)
		if prior.ID() == current.ID() {
			h.loops[prior.ID()] = change
		} else {
			h.graph.SetEdge(transition{change})
		}
	}

	unique := !change.HasModifier(modifier)
	if unique {
		change.modifiers[modifier] = struct{}{}
	}
	if h.recorder != nil {
		h.recorder.RecordApplication(modifier, change.Delta, unique)
	}
	return change, unique
}

func (h *History) ensureNode(it *Iteration) {
	if h.graph.Node(it.ID()) == nil {
		h.graph.AddNode(it)
	}
}

// Edge returns the transition from prior to current, or nil.
func (h *History) Edge(prior, current *Iteration) *Change {
	if prior.ID() == current.ID() {
		return h.loops[prior.ID()]
	}
	e := h.graph.Edge(prior.ID(), current.ID())
	if e == nil {
		return nil
	}
	return e.(transition).change
}

// HasNode reports whether the iteration is part of the graph.
func (h *History) HasNode(it *Iteration) bool {
	return h.graph.Node(it.ID()) != nil
}

// Remove deletes an iteration and every transition touching it.
func (h *History) Remove(it *Iteration) {
	delete(h.loops, it.ID())
	if h.graph.Node(it.ID()) != nil {
		h.graph.RemoveNode(it.ID())
	}
}

// NodeCount returns the number of iterations in the graph.
func (h *History) NodeCount() int {
	return h.graph.Nodes().Len()
}

// EdgeCount returns the number of transitions, self transitions included.
func (h *History) EdgeCount() int {
	return h.graph.Edges().Len() + len(h.loops)
}

// Degree returns the number of transitions touching an iteration.
func (h *History) Degree(it *Iteration) int {
	if h.graph.Node(it.ID()) == nil {
		return 0
	}
	n := h.graph.From(it.ID()).Len() + h.graph.To(it.ID()).Len()
	if _, ok := h.loops[it.ID()]; ok {
		n++
	}
	return n
}

// EdgesFrom returns the transitions leaving an iteration, ordered by destination id.
func (h *History) EdgesFrom(it *Iteration) []*Change {
	var out []*Change
	if c, ok := h.loops[it.ID()]; ok {
		out = append(out, c)
	}
	if h.graph.Node(it.ID()) == nil {
		return out
	}
	to := h.graph.From(it.ID())
	for to.Next() {
		out = append(out, h.Edge(it, to.Node().(*Iteration)))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].current.ID() < out[j].current.ID() })
	return out
}
