package tune

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/optimism/internal/problem"
)

func smallOptions() Options {
	return Options{
		Trials:          3,
		MaxIterations:   200,
		PopulationCap:   50,
		TunerIterations: 2,
		TunerPopulation: 20,
		Seed:            7,
		Concurrency:     2,
	}
}

func TestTuneGuess(t *testing.T) {
	res, err := Tune(context.Background(), "guess", smallOptions())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, res.DesignThreshold, minThreshold)
	assert.LessOrEqual(t, res.DesignThreshold, maxThreshold)
	assert.GreaterOrEqual(t, res.ModifierThreshold, minThreshold)
	assert.LessOrEqual(t, res.ModifierThreshold, maxThreshold)
	assert.Positive(t, res.Evaluations)
	assert.Positive(t, res.Baseline)
	assert.LessOrEqual(t, res.Cost, 400.0)
}

func TestTuneIsDeterministic(t *testing.T) {
	o := smallOptions()
	a, err := Tune(context.Background(), "guess", o)
	require.NoError(t, err)

	o.Concurrency = 1
	b, err := Tune(context.Background(), "guess", o)
	require.NoError(t, err)

	assert.Equal(t, a.DesignThreshold, b.DesignThreshold)
	assert.Equal(t, a.ModifierThreshold, b.ModifierThreshold)
	assert.Equal(t, a.Cost, b.Cost)
	assert.Equal(t, a.Baseline, b.Baseline)
}

func TestTrialCostIsRepeatable(t *testing.T) {
	o := smallOptions()
	guess, err := problem.Get("guess")
	require.NoError(t, err)
	p := &tuner{problem: guess, opts: o}

	d, m := 1.0, 1.0
	first, err := p.cost(context.Background(), &d, &m)
	require.NoError(t, err)
	second, err := p.cost(context.Background(), &d, &m)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.LessOrEqual(t, first, float64(2*o.MaxIterations))
}

func TestTuneErrors(t *testing.T) {
	_, err := Tune(context.Background(), "missing", smallOptions())
	assert.Error(t, err)

	o := smallOptions()
	o.Trials = 0
	_, err = Tune(context.Background(), "guess", o)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Tune(ctx, "guess", smallOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImprovement(t *testing.T) {
	assert.Equal(t, 0.5, Result{Cost: 50, Baseline: 100}.Improvement())
	assert.Equal(t, 0.0, Result{Cost: 50}.Improvement())
}
