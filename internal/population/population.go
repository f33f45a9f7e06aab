// Package population holds the capped set of iterations discovered during a
// search, keeps them sorted under every statistic, and records the
// transitions between them.
package population

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/cwbudde/optimism/internal/heuristic"
	"github.com/cwbudde/optimism/internal/index"
)

// IterationKey names a whole-iteration statistic used to sort iterations.
type IterationKey string

const (
	Visits         IterationKey = "visits"
	Scores         IterationKey = "scores"
	FirstIteration IterationKey = "first_iteration"
	ScoreChanges   IterationKey = "score_changes"
	ScoreIncreases IterationKey = "score_increases"
	ScoreDecreases IterationKey = "score_decreases"
)

// ObjectiveIterationKey names a per-objective iteration statistic.
type ObjectiveIterationKey string

const (
	ObjectiveScores    ObjectiveIterationKey = "scores"
	ObjectiveChanges   ObjectiveIterationKey = "score_changes"
	ObjectiveIncreases ObjectiveIterationKey = "score_increases"
	ObjectiveDecreases ObjectiveIterationKey = "score_decreases"
	Importance         ObjectiveIterationKey = "importance"
)

// IterationKeyFunc computes a sort key for an iteration.
type IterationKeyFunc func(it *Iteration) float64

// ObjectiveIterationKeyFunc computes a sort key for an iteration relative to one objective.
type ObjectiveIterationKeyFunc func(it *Iteration, objective string) float64

// ErrMissingPrior is returned when a modifier is given without the iteration it was applied to.
var ErrMissingPrior = errors.New("modifier given without a prior iteration")

// Option configures a Population.
type Option func(*Population)

// WithRecorder forwards every recorded modifier application to r.
func WithRecorder(r Recorder) Option {
	return func(p *Population) { p.history.recorder = r }
}

// WithIterationKey adds a custom whole-iteration sort key.
func WithIterationKey(name IterationKey, fn IterationKeyFunc) Option {
	return func(p *Population) {
		p.iterations.AddView(string(name), index.KeyFunc[*Iteration](fn))
	}
}

// WithObjectiveIterationKey adds a custom per-objective sort key.
func WithObjectiveIterationKey(name ObjectiveIterationKey, fn ObjectiveIterationKeyFunc) Option {
	return func(p *Population) {
		for _, o := range p.objectives {
			p.iterations.AddView(objectiveView(o, name), func(it *Iteration) float64 { return fn(it, o) })
		}
	}
}

// Population is a capped collection of unique iterations.
type Population struct {
	of         *heuristic.ObjectiveFunction
	objectives []string
	cap        int

	iterations  *index.Set[*Iteration]
	byScore     *index.Buckets[*Iteration]
	byObjective map[string]*index.Buckets[*Iteration]
	history     *History

	count int64
	last  *Iteration
}

func iterationID(it *Iteration) int64 { return it.id }

// New creates an empty population. A cap below 1 is raised to 1.
func New(of *heuristic.ObjectiveFunction, capacity int, opts ...Option) *Population {
	if capacity < 1 {
		capacity = 1
	}
	p := &Population{
		of:          of,
		objectives:  of.Names(),
		cap:         capacity,
		iterations:  index.NewSet(iterationID),
		byScore:     index.NewBuckets(iterationID),
		byObjective: make(map[string]*index.Buckets[*Iteration]),
		history:     NewHistory(nil),
	}

	p.iterations.AddView(string(Visits), func(it *Iteration) float64 { return float64(it.visits) })
	p.iterations.AddView(string(Scores), func(it *Iteration) float64 { return it.score })
	p.iterations.AddView(string(FirstIteration), func(it *Iteration) float64 { return float64(it.id) })
	p.iterations.AddView(string(ScoreChanges), func(it *Iteration) float64 { return it.scoreChanges })
	p.iterations.AddView(string(ScoreIncreases), func(it *Iteration) float64 { return float64(it.scoreIncreases) })
	p.iterations.AddView(string(ScoreDecreases), func(it *Iteration) float64 { return float64(it.scoreDecreases) })

	for _, o := range p.objectives {
		p.byObjective[o] = index.NewBuckets(iterationID)
		p.iterations.AddView(objectiveView(o, ObjectiveScores), func(it *Iteration) float64 { return it.scores[o] })
		p.iterations.AddView(objectiveView(o, ObjectiveChanges), func(it *Iteration) float64 { return it.objChanges[o] })
		p.iterations.AddView(objectiveView(o, ObjectiveIncreases), func(it *Iteration) float64 { return float64(it.objIncreases[o]) })
		p.iterations.AddView(objectiveView(o, ObjectiveDecreases), func(it *Iteration) float64 { return float64(it.objDecreases[o]) })
		p.iterations.AddView(objectiveView(o, Importance), func(it *Iteration) float64 { return it.importance[o] })
	}

	for _, opt := range opts {
		opt(p)
	}
	return p
}

func objectiveView(objective string, key ObjectiveIterationKey) string {
	return "objective/" + objective + "/" + string(key)
}

// Add evaluates a design and inserts it into the population. When the design
// reproduces the score vector of an existing iteration the two are merged.
// For non-seed designs, prior is the iteration modifier was applied to and the
// transition is recorded in the history.
//
// A new iteration only enters a full population if it scores at least as high
// as the lowest bucket, whose oldest member is then evicted. Otherwise the
// returned iteration is not a member (see Contains): the modifier application
// still counts toward its statistics but leaves no node or edge behind.
func (p *Population) Add(design heuristic.Design, prior *Iteration, modifier *heuristic.Modifier) (*Iteration, error) {
	if modifier != nil && prior == nil {
		return nil, fmt.Errorf("failed to add design from %s: %w", modifier.Name, ErrMissingPrior)
	}

	eval, err := p.of.Evaluate(design)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate design: %w", err)
	}

	candidate := newIteration(p.count, design, eval, p.of)
	p.count++

	it := p.match(candidate)
	switch {
	case it != nil:
		p.iterations.Reindex(it, func() { it.merge(candidate) })
	case !p.admits(candidate):
		if modifier != nil {
			p.history.AddEdge(prior, candidate, modifier.Name)
			p.history.Remove(candidate)
		}
		slog.Debug("Rejected iteration below full population", "iteration", candidate.id, "score", candidate.score)
		return candidate, nil
	default:
		for p.iterations.Len() >= p.cap {
			p.evictWorst()
		}
		it = candidate
		p.insert(it)
	}

	if modifier != nil {
		change, _ := p.history.AddEdge(prior, it, modifier.Name)
		p.iterations.Reindex(it, func() { it.addIncoming(change) })
		if !p.iterations.Has(prior) {
			p.history.Remove(prior)
		}
	}

	p.last = it
	return it, nil
}

// admits reports whether a new iteration may join: there is room, or it
// scores at least as high as the lowest bucket.
func (p *Population) admits(candidate *Iteration) bool {
	if p.iterations.Len() < p.cap {
		return true
	}
	lowest, _, ok := p.byScore.Min()
	return !ok || candidate.score >= lowest
}

func (p *Population) match(candidate *Iteration) *Iteration {
	for _, existing := range p.byScore.Get(candidate.score) {
		if existing.Equal(candidate) {
			return existing
		}
	}
	return nil
}

func (p *Population) insert(it *Iteration) {
	p.iterations.Add(it)
	p.byScore.Put(it.score, it)
	for o, b := range p.byObjective {
		b.Put(it.scores[o], it)
	}
}

func (p *Population) remove(it *Iteration) {
	p.iterations.Remove(it)
	p.byScore.Delete(it.score, it)
	for o, b := range p.byObjective {
		b.Delete(it.scores[o], it)
	}
	p.history.Remove(it)
}

// evictWorst removes the oldest member of the lowest scoring bucket.
func (p *Population) evictWorst() {
	_, worst, ok := p.byScore.Min()
	if !ok {
		return
	}
	victim := worst[0]
	p.remove(victim)
	slog.Debug("Evicted iteration", "iteration", victim.id, "score", victim.score)
}

// TopN returns at least n of the best iterations, best first. Iterations that
// tie with the n-th are all included. An empty objective ranks by the weighted
// score, otherwise by the raw score of that objective.
func (p *Population) TopN(n int, objective string) []*Iteration {
	buckets := p.byScore
	if objective != "" {
		b, ok := p.byObjective[objective]
		if !ok {
			return nil
		}
		buckets = b
	}
	var out []*Iteration
	if n <= 0 {
		return out
	}
	buckets.Descend(func(_ float64, items []*Iteration) bool {
		out = append(out, items...)
		return len(out) < n
	})
	return out
}

// Best returns the highest scoring iteration.
func (p *Population) Best() (*Iteration, bool) {
	_, items, ok := p.byScore.Max()
	if !ok {
		return nil, false
	}
	return items[0], true
}

// PortionPerfectScore is the iteration's score as a fraction of the perfect score.
func (p *Population) PortionPerfectScore(it *Iteration) float64 {
	perfect := p.of.PerfectScore()
	if perfect == 0 {
		return 0
	}
	return it.score / perfect
}

// LookupScore returns the iterations at exactly score, or at the nearest
// stored score when none match.
func (p *Population) LookupScore(score float64) []*Iteration {
	_, items, _ := p.byScore.Nearest(score)
	return items
}

// LookupObjectiveScore is LookupScore for one objective's raw score.
func (p *Population) LookupObjectiveScore(objective string, score float64) []*Iteration {
	b, ok := p.byObjective[objective]
	if !ok {
		return nil
	}
	_, items, _ := b.Nearest(score)
	return items
}

// View returns the iterations sorted ascending by key.
func (p *Population) View(key IterationKey) ([]*Iteration, bool) {
	v := p.iterations.View(string(key))
	if v == nil {
		return nil, false
	}
	return v.Slice(), true
}

// ObjectiveView returns the iterations sorted ascending by a per-objective key.
func (p *Population) ObjectiveView(objective string, key ObjectiveIterationKey) ([]*Iteration, bool) {
	v := p.iterations.View(objectiveView(objective, key))
	if v == nil {
		return nil, false
	}
	return v.Slice(), true
}

// Iterations returns every member in discovery order.
func (p *Population) Iterations() []*Iteration {
	items, _ := p.View(FirstIteration)
	return items
}

// Contains reports whether it is a current member.
func (p *Population) Contains(it *Iteration) bool {
	member, ok := p.iterations.Get(it.id)
	return ok && member == it
}

// Len returns the number of unique iterations held.
func (p *Population) Len() int { return p.iterations.Len() }

// Cap returns the maximum number of iterations held.
func (p *Population) Cap() int { return p.cap }

// IterationCount returns the number of designs added so far, merges included.
func (p *Population) IterationCount() int64 { return p.count }

// Last returns the iteration kept by the most recent Add that was not rejected.
func (p *Population) Last() *Iteration { return p.last }

// History returns the transition graph.
func (p *Population) History() *History { return p.history }

// ObjectiveFunction returns the function designs are scored with.
func (p *Population) ObjectiveFunction() *heuristic.ObjectiveFunction { return p.of }

// Objectives returns the objective names in objective function order.
func (p *Population) Objectives() []string {
	out := make([]string, len(p.objectives))
	copy(out, p.objectives)
	return out
}

// ScoreRange returns the lowest and highest weighted scores held.
func (p *Population) ScoreRange() (lo, hi float64) {
	if p.Len() == 0 {
		return math.NaN(), math.NaN()
	}
	lo, _, _ = p.byScore.Min()
	hi, _, _ = p.byScore.Max()
	return lo, hi
}
