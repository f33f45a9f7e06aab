package population

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/optimism/internal/heuristic"
)

type pair [2]float64

func pairFunction() *heuristic.ObjectiveFunction {
	return heuristic.UniformObjectiveFunction(
		heuristic.NewObjective("first", func(d heuristic.Design) float64 { return d.(pair)[0] }),
		heuristic.NewObjective("second", func(d heuristic.Design) float64 { return d.(pair)[1] }),
	)
}

func noop() *heuristic.Modifier {
	return heuristic.NewModifier("noop", func(d heuristic.Design) heuristic.Design { return d })
}

// consistent checks that every index agrees on membership.
func consistent(t *testing.T, p *Population) {
	t.Helper()
	n := p.Len()
	for _, name := range p.iterations.Views() {
		assert.Equal(t, n, p.iterations.View(name).Len(), "view %s", name)
	}
	assert.Equal(t, n, p.byScore.Len(), "score buckets")
	for o, b := range p.byObjective {
		assert.Equal(t, n, b.Len(), "objective buckets %s", o)
	}
	assert.LessOrEqual(t, n, p.Cap())
	for _, it := range p.Iterations() {
		assert.True(t, p.Contains(it))
	}
	assert.LessOrEqual(t, p.history.NodeCount(), n, "history holds only members")
}

func TestAddMergesEqualScoreVectors(t *testing.T) {
	p := New(pairFunction(), 10)

	a, err := p.Add(pair{0.5, 0.5}, nil, nil)
	require.NoError(t, err)
	b, err := p.Add(pair{0.5, 0.5}, nil, nil)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, 2, a.Visits())
	assert.Equal(t, []int64{0, 1}, a.CreationIndices())
	assert.Len(t, a.Designs(), 1, "identical designs are stored once")
	assert.Equal(t, int64(2), p.IterationCount())
	consistent(t, p)
}

func TestAddBoundsStoredDesigns(t *testing.T) {
	flat := heuristic.UniformObjectiveFunction(
		heuristic.NewObjective("flat", func(heuristic.Design) float64 { return 0.5 }),
	)
	p := New(flat, 4)

	visits := MaxDesigns * 3
	var it *Iteration
	for i := range visits {
		var err error
		it, err = p.Add(i, nil, nil)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, p.Len())
	assert.Equal(t, visits, it.Visits())
	assert.Len(t, it.CreationIndices(), visits)
	assert.Len(t, it.Designs(), MaxDesigns, "designs beyond the bound are dropped")
	assert.Equal(t, 0, it.Design(), "first design is kept")
	consistent(t, p)
}

func TestAddKeepsSameScalarDifferentVectorsApart(t *testing.T) {
	p := New(pairFunction(), 10)

	a, _ := p.Add(pair{0.25, 0.75}, nil, nil)
	b, _ := p.Add(pair{0.75, 0.25}, nil, nil)

	assert.NotSame(t, a, b)
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, a.Score(), b.Score())
	assert.Len(t, p.LookupScore(1.0), 2)
	consistent(t, p)
}

func TestAddEvictsLowestScore(t *testing.T) {
	p := New(pairFunction(), 3)

	low, _ := p.Add(pair{0.1, 0.1}, nil, nil)
	mid, _ := p.Add(pair{0.5, 0.5}, nil, nil)
	next, err := p.Add(mid.Design(), low, noop())
	require.NoError(t, err)
	assert.Same(t, mid, next)
	require.Equal(t, 1, p.history.EdgeCount())

	high, _ := p.Add(pair{0.9, 0.9}, nil, nil)
	assert.True(t, p.Contains(low))

	p.Add(pair{0.7, 0.7}, nil, nil)

	assert.Equal(t, 3, p.Len())
	assert.False(t, p.Contains(low))
	assert.True(t, p.Contains(mid))
	assert.True(t, p.Contains(high))
	assert.False(t, p.history.HasNode(low))
	assert.Equal(t, 0, p.history.EdgeCount(), "edges of evicted iterations are dropped")
	consistent(t, p)
}

func TestCapOfOne(t *testing.T) {
	p := New(pairFunction(), 1)

	best, err := p.Add(pair{0.9, 0.9}, nil, nil)
	require.NoError(t, err)
	worse, err := p.Add(pair{0.1, 0.1}, nil, nil)
	require.NoError(t, err)

	// Exactly one survivor, the better scoring one, and the other is absent
	// from every index.
	assert.Equal(t, 1, p.Len())
	assert.True(t, p.Contains(best))
	assert.False(t, p.Contains(worse))
	for _, it := range p.LookupScore(worse.Score()) {
		assert.NotSame(t, worse, it)
	}
	top, ok := p.Best()
	require.True(t, ok)
	assert.Same(t, best, top)
	assert.InDelta(t, 1.8, top.Score(), 1e-12)
	assert.Same(t, best, p.Last())
	assert.Equal(t, int64(2), p.IterationCount())
	consistent(t, p)

	better, err := p.Add(pair{1, 1}, nil, nil)
	require.NoError(t, err)
	assert.True(t, p.Contains(better))
	assert.False(t, p.Contains(best))
	consistent(t, p)
}

func TestAddRejectedStepLeavesNoTrace(t *testing.T) {
	hm := heuristic.NewHeuristicMap([]heuristic.Weight{{Modifier: noop(), Objective: "first", Value: 1}})
	p := New(pairFunction(), 2, WithRecorder(hm))

	high, _ := p.Add(pair{0.8, 0.8}, nil, nil)
	mid, _ := p.Add(pair{0.5, 0.5}, nil, nil)
	low, err := p.Add(pair{0.2, 0.2}, high, noop())
	require.NoError(t, err)

	assert.False(t, p.Contains(low))
	assert.True(t, p.Contains(high))
	assert.True(t, p.Contains(mid))
	assert.False(t, p.history.HasNode(low))
	assert.Equal(t, 0, p.history.EdgeCount())
	assert.Same(t, mid, p.Last())

	stats, ok := hm.Stats("noop")
	require.True(t, ok)
	assert.Equal(t, 1, stats.Applications, "the application is still counted")
	assert.Equal(t, 1, stats.ScoreDecreases)

	tie, err := p.Add(pair{0.5, 0.5}, high, noop())
	require.NoError(t, err)
	assert.Same(t, mid, tie, "equal score vectors merge instead of competing for a slot")
	assert.Equal(t, 2, p.Len())

	same, err := p.Add(pair{0.25, 0.75}, high, noop())
	require.NoError(t, err)
	assert.True(t, p.Contains(same), "a score equal to the lowest bucket is admitted")
	assert.False(t, p.Contains(mid))
	consistent(t, p)
}

func TestAddWithPriorEvictedLeavesNoGhost(t *testing.T) {
	p := New(pairFunction(), 1)

	prior, _ := p.Add(pair{0.1, 0.1}, nil, nil)
	next, err := p.Add(pair{0.2, 0.2}, prior, noop())
	require.NoError(t, err)

	assert.False(t, p.history.HasNode(prior))
	assert.Equal(t, 0, p.history.EdgeCount())
	assert.InDelta(t, 0.2, next.ScoreChanges(), 1e-12, "incoming statistics are still recorded")
	consistent(t, p)
}

func TestAddRequiresPriorForModifier(t *testing.T) {
	p := New(pairFunction(), 4)
	_, err := p.Add(pair{0.5, 0.5}, nil, noop())
	assert.True(t, errors.Is(err, ErrMissingPrior))
	assert.Equal(t, 0, p.Len())
}

func TestAddRejectsOutOfRangeScores(t *testing.T) {
	p := New(pairFunction(), 4)
	_, err := p.Add(pair{1.5, 0}, nil, nil)
	assert.True(t, errors.Is(err, heuristic.ErrScoreRange))
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, int64(0), p.IterationCount())
}

func TestTopNIncludesTies(t *testing.T) {
	p := New(pairFunction(), 10)
	p.Add(pair{0.9, 0.9}, nil, nil)
	p.Add(pair{0.25, 0.75}, nil, nil)
	p.Add(pair{0.75, 0.25}, nil, nil)
	p.Add(pair{0.1, 0.1}, nil, nil)

	assert.Len(t, p.TopN(1, ""), 1)
	assert.Len(t, p.TopN(2, ""), 3, "the tie for second place is included whole")
	assert.Len(t, p.TopN(10, ""), 4)
	assert.Empty(t, p.TopN(0, ""))

	top := p.TopN(1, "first")
	require.Len(t, top, 1)
	assert.Equal(t, 0.9, top[0].ObjectiveScore("first"))
	assert.Nil(t, p.TopN(1, "missing"))
}

func TestModifierApplicationStatistics(t *testing.T) {
	of := pairFunction()
	step := heuristic.NewModifier("step", func(d heuristic.Design) heuristic.Design {
		return pair{0.5, 0.5}
	})
	hm := heuristic.NewHeuristicMap([]heuristic.Weight{{Modifier: step, Objective: "first", Value: 1}})
	p := New(of, 10, WithRecorder(hm))

	a, _ := p.Add(pair{0.1, 0.1}, nil, nil)
	b, _ := p.Add(step.Apply(a.Design()), a, step)
	_, _ = p.Add(step.Apply(a.Design()), a, step)

	stats, ok := hm.Stats("step")
	require.True(t, ok)
	assert.Equal(t, 2, stats.Applications)
	assert.Equal(t, 1, stats.UniqueApplications)
	assert.InDelta(t, 1.6, stats.ScoreChanges, 1e-9)
	assert.Equal(t, 2, stats.ScoreIncreases)

	change := p.History().Edge(a, b)
	require.NotNil(t, change)
	assert.Equal(t, []string{"step"}, change.Modifiers())
	assert.InDelta(t, 0.8, change.ScoreChange, 1e-9)
	assert.Equal(t, 2, b.ScoreIncreases())
	assert.Equal(t, 2, b.Visits())
	consistent(t, p)
}

func TestSelfTransition(t *testing.T) {
	p := New(pairFunction(), 4)
	a, _ := p.Add(pair{0.5, 0.5}, nil, nil)
	b, err := p.Add(pair{0.5, 0.5}, a, noop())
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, p.History().EdgeCount())
	assert.Equal(t, 1, p.History().Degree(a))
	require.Len(t, p.History().EdgesFrom(a), 1)
	assert.Equal(t, 0.0, p.History().EdgesFrom(a)[0].ScoreChange)
}

func TestImportanceAndLowestObjective(t *testing.T) {
	p := New(pairFunction(), 4)
	it, _ := p.Add(pair{0.2, 0.6}, nil, nil)

	assert.Equal(t, "first", it.LowestObjective())
	assert.Equal(t, "first", it.MostImportantObjective())
	assert.InDelta(t, 1.0, it.Importance("first")+it.Importance("second"), 1e-12)
	assert.InDelta(t, 2.0/3.0, it.Importance("first"), 1e-12)

	perfect, _ := p.Add(pair{1, 1}, nil, nil)
	assert.Equal(t, 0.0, perfect.Importance("first"))
	assert.Equal(t, 1.0, p.PortionPerfectScore(perfect))
}

func TestViewsFollowStatistics(t *testing.T) {
	p := New(pairFunction(), 10)
	a, _ := p.Add(pair{0.1, 0.1}, nil, nil)
	b, _ := p.Add(pair{0.3, 0.3}, a, noop())
	p.Add(pair{0.3, 0.3}, a, noop())

	byVisits, ok := p.View(Visits)
	require.True(t, ok)
	assert.Equal(t, []*Iteration{a, b}, byVisits)

	byChanges, ok := p.ObjectiveView("first", ObjectiveChanges)
	require.True(t, ok)
	assert.Same(t, b, byChanges[len(byChanges)-1])

	_, ok = p.View("missing")
	assert.False(t, ok)
}

func TestCustomIterationKey(t *testing.T) {
	spread := func(it *Iteration) float64 {
		return it.ObjectiveScore("first") - it.ObjectiveScore("second")
	}
	p := New(pairFunction(), 10, WithIterationKey("spread", spread))
	a, _ := p.Add(pair{0.9, 0.1}, nil, nil)
	b, _ := p.Add(pair{0.1, 0.9}, nil, nil)

	sorted, ok := p.View("spread")
	require.True(t, ok)
	assert.Equal(t, []*Iteration{b, a}, sorted)
}

func TestRandomizedInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	hm := heuristic.NewHeuristicMap([]heuristic.Weight{{Modifier: noop(), Objective: "first", Value: 1}})
	p := New(pairFunction(), 8, WithRecorder(hm))

	var prior *Iteration
	for i := 0; i < 500; i++ {
		d := pair{float64(rng.IntN(6)) / 5, float64(rng.IntN(6)) / 5}
		var (
			it  *Iteration
			err error
		)
		if prior == nil || rng.IntN(4) == 0 {
			it, err = p.Add(d, nil, nil)
		} else {
			it, err = p.Add(d, prior, noop())
		}
		require.NoError(t, err)
		prior = it
		if !p.Contains(prior) {
			prior = nil
		}
	}

	consistent(t, p)
	assert.Equal(t, int64(500), p.IterationCount())
	for _, it := range p.Iterations() {
		for _, c := range p.History().EdgesFrom(it) {
			assert.True(t, p.Contains(c.Current()))
		}
	}
}
