package selector

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/optimism/internal/heuristic"
	"github.com/cwbudde/optimism/internal/population"
)

func newRand() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) }

func TestSelectEmpty(t *testing.T) {
	s := Selector[int]{Name: "empty", Threshold: Always[int]()}
	_, err := s.Select(newRand(), nil)
	assert.True(t, errors.Is(err, ErrNoCandidates))
}

func TestSelectAlways(t *testing.T) {
	ranked := []int{1, 2, 3}

	got, err := Selector[int]{Name: "first"}.Select(newRand(), ranked)
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	got, err = Selector[int]{Name: "last", Threshold: Always[int](), Reverse: true}.Select(newRand(), ranked)
	require.NoError(t, err)
	assert.Equal(t, 3, got)
}

func TestSelectFallsBackToLastVisited(t *testing.T) {
	ranked := []int{1, 2, 3}

	got, err := Selector[int]{Name: "never", Threshold: Constant[int](0)}.Select(newRand(), ranked)
	require.NoError(t, err)
	assert.Equal(t, 3, got)

	got, err = Selector[int]{Name: "never", Threshold: Constant[int](0), Reverse: true}.Select(newRand(), ranked)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestSelectRejectsBadThreshold(t *testing.T) {
	tests := []struct {
		name  string
		value float64
	}{
		{"negative", -0.5},
		{"above one", 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Selector[int]{Name: "bad", Threshold: Constant[int](tt.value)}
			_, err := s.Select(newRand(), []int{1})
			var thresholdErr *ThresholdError
			require.True(t, errors.As(err, &thresholdErr))
			assert.Equal(t, tt.value, thresholdErr.Value)
		})
	}
}

func TestSelectFrequency(t *testing.T) {
	rng := newRand()
	s := Selector[string]{Name: "coin", Threshold: Constant[string](0.5)}

	const draws = 10000
	first := 0
	for i := 0; i < draws; i++ {
		got, err := s.Select(rng, []string{"a", "b"})
		require.NoError(t, err)
		if got == "a" {
			first++
		}
	}
	assert.InDelta(t, 0.5, float64(first)/draws, 0.03)
}

func TestDecay(t *testing.T) {
	d := Decay[int](0.8, 0.5)
	assert.Equal(t, 0.8, d(0, 0))
	assert.Equal(t, 0.4, d(1, 0))
	assert.Equal(t, 0.2, d(2, 0))
}

type pair [2]float64

func fixture(t *testing.T) (*population.Population, *heuristic.HeuristicMap, *heuristic.Modifier, *heuristic.Modifier) {
	t.Helper()
	of := heuristic.UniformObjectiveFunction(
		heuristic.NewObjective("left", func(d heuristic.Design) float64 { return d.(pair)[0] }),
		heuristic.NewObjective("right", func(d heuristic.Design) float64 { return d.(pair)[1] }),
	)
	pushLeft := heuristic.NewModifier("push_left", func(d heuristic.Design) heuristic.Design {
		p := d.(pair)
		return pair{p[0] + 0.25, p[1]}
	})
	pushRight := heuristic.NewModifier("push_right", func(d heuristic.Design) heuristic.Design {
		p := d.(pair)
		return pair{p[0], p[1] + 0.25}
	})
	hm := heuristic.NewHeuristicMap([]heuristic.Weight{
		{Modifier: pushLeft, Objective: "left", Value: 1},
		{Modifier: pushRight, Objective: "right", Value: 1},
	})
	return population.New(of, 10, population.WithRecorder(hm)), hm, pushLeft, pushRight
}

func TestHighestScoringDesign(t *testing.T) {
	pop, _, _, _ := fixture(t)
	pop.Add(pair{0.25, 0.25}, nil, nil)
	best, _ := pop.Add(pair{0.5, 0.75}, nil, nil)
	pop.Add(pair{0, 0.5}, nil, nil)

	got, err := HighestScoringDesign(nil).SelectDesign(newRand(), pop)
	require.NoError(t, err)
	assert.Same(t, best, got)
}

func TestDesignSelectorOnEmptyPopulation(t *testing.T) {
	pop, _, _, _ := fixture(t)
	_, err := HighestScoringDesign(nil).SelectDesign(newRand(), pop)
	assert.True(t, errors.Is(err, ErrNoCandidates))
}

func TestBestForLowestObjective(t *testing.T) {
	pop, hm, pushLeft, pushRight := fixture(t)
	rng := newRand()

	leftWeak, _ := pop.Add(pair{0.25, 0.75}, nil, nil)
	got, err := BestForLowestObjective(nil).SelectModifier(rng, leftWeak, hm)
	require.NoError(t, err)
	assert.Same(t, pushLeft, got)

	rightWeak, _ := pop.Add(pair{0.75, 0}, nil, nil)
	got, err = BestForLowestObjective(nil).SelectModifier(rng, rightWeak, hm)
	require.NoError(t, err)
	assert.Same(t, pushRight, got)
}

func TestHistoricallyBestForLowestObjective(t *testing.T) {
	pop, hm, pushLeft, pushRight := fixture(t)
	rng := newRand()

	start, _ := pop.Add(pair{0, 0.5}, nil, nil)
	pop.Add(pushLeft.Apply(start.Design()), start, pushLeft)
	pop.Add(pushRight.Apply(start.Design()), start, pushRight)

	got, err := HistoricallyBestForLowestObjective(nil).SelectModifier(rng, start, hm)
	require.NoError(t, err)
	assert.Same(t, pushLeft, got, "only push_left has raised the left objective")

	got, err = HistoricallyBestForImportantObjective(nil).SelectModifier(rng, start, hm)
	require.NoError(t, err)
	assert.Same(t, pushLeft, got)
}

func TestByKeyFallsBackForUnmappedObjective(t *testing.T) {
	_, hm, pushLeft, pushRight := fixture(t)
	mods := ByKeyOnObjective("unmapped", heuristic.Value)(hm, nil)
	assert.Equal(t, []*heuristic.Modifier{pushLeft, pushRight}, mods)
}
