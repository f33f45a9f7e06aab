// Package tune searches for the design and modifier selection thresholds
// that make a problem converge in the fewest steps.
package tune

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/cwbudde/optimism/internal/opt"
	"github.com/cwbudde/optimism/internal/problem"
)

const (
	minThreshold = 0.05
	maxThreshold = 1.0
)

// Options configures a tuning run.
type Options struct {
	// Trials is the number of searches averaged per threshold pair.
	Trials        int
	MaxIterations int
	PopulationCap int
	// TunerIterations and TunerPopulation size the outer Mayfly search.
	TunerIterations int
	TunerPopulation int
	Seed            uint64
	// Concurrency bounds the trials run at once. Defaults to the CPU count.
	Concurrency int
}

// DefaultOptions returns settings suitable for the built-in problems.
func DefaultOptions() Options {
	return Options{
		Trials:          8,
		MaxIterations:   1000,
		PopulationCap:   100,
		TunerIterations: 10,
		TunerPopulation: 20,
		Seed:            1,
		Concurrency:     runtime.NumCPU(),
	}
}

// Result is the best threshold pair found.
type Result struct {
	DesignThreshold   float64 `json:"designThreshold"`
	ModifierThreshold float64 `json:"modifierThreshold"`
	// Cost is the mean number of steps to converge, with unconverged
	// trials counted as twice MaxIterations.
	Cost float64 `json:"cost"`
	// Baseline is the cost of the problem's own thresholds.
	Baseline    float64       `json:"baseline"`
	Evaluations int64         `json:"evaluations"`
	Duration    time.Duration `json:"duration"`
}

// Improvement is the relative cost reduction over the baseline.
func (r Result) Improvement() float64 {
	if r.Baseline == 0 {
		return 0
	}
	return (r.Baseline - r.Cost) / r.Baseline
}

// Tune runs the outer search for problemName.
func Tune(ctx context.Context, problemName string, o Options) (Result, error) {
	p, err := problem.Get(problemName)
	if err != nil {
		return Result{}, err
	}
	if o.Trials < 1 || o.MaxIterations < 1 || o.PopulationCap < 1 {
		return Result{}, fmt.Errorf("trials, max iterations and population cap must be positive")
	}
	if o.Concurrency < 1 {
		o.Concurrency = runtime.NumCPU()
	}

	start := time.Now()
	t := &tuner{problem: p, opts: o}

	baseline, err := t.cost(ctx, nil, nil)
	if err != nil {
		return Result{}, err
	}
	slog.Info("Baseline measured", "problem", p.Name, "cost", baseline)

	var evals atomic.Int64
	eval := func(x []float64) float64 {
		evals.Add(1)
		c, err := t.cost(ctx, &x[0], &x[1])
		if err != nil {
			return t.penalty()
		}
		return c
	}

	minimizer := opt.NewMayfly(o.TunerIterations, o.TunerPopulation, int64(o.Seed))
	lower := []float64{minThreshold, minThreshold}
	upper := []float64{maxThreshold, maxThreshold}
	best, cost := minimizer.Run(eval, lower, upper, 2)

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("tuning interrupted: %w", err)
	}

	res := Result{
		DesignThreshold:   best[0],
		ModifierThreshold: best[1],
		Cost:              cost,
		Baseline:          baseline,
		Evaluations:       evals.Load(),
		Duration:          time.Since(start),
	}
	slog.Info("Tuning complete",
		"problem", p.Name,
		"design_threshold", res.DesignThreshold,
		"modifier_threshold", res.ModifierThreshold,
		"cost", res.Cost,
		"baseline", res.Baseline,
		"evaluations", res.Evaluations)
	return res, nil
}

type tuner struct {
	problem problem.Problem
	opts    Options
}

func (t *tuner) penalty() float64 {
	return float64(2 * t.opts.MaxIterations)
}

// cost runs every trial with the given thresholds. Trial i always solves the
// same problem instance with the same random stream, so the cost is a
// deterministic function of the thresholds.
func (t *tuner) cost(ctx context.Context, design, modifier *float64) (float64, error) {
	p := pool.NewWithResults[int]().WithContext(ctx).WithMaxGoroutines(t.opts.Concurrency)
	for i := 0; i < t.opts.Trials; i++ {
		trial := uint64(i)
		p.Go(func(ctx context.Context) (int, error) {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			return t.trial(trial, design, modifier)
		})
	}

	steps, err := p.Wait()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, s := range steps {
		total += s
	}
	return float64(total) / float64(len(steps)), nil
}

func (t *tuner) trial(trial uint64, design, modifier *float64) (int, error) {
	seed := t.opts.Seed
	inst := t.problem.Build(rand.New(rand.NewPCG(seed, trial)))
	inst.SetThresholds(design, modifier)

	o := opt.New(inst.DesignSelector, inst.ModifierSelector, inst.Stop)
	o.Rand = rand.New(rand.NewPCG(seed+trial, trial))
	_, res, err := o.Optimize(inst.Objectives, inst.Heuristics, inst.Seeds, t.opts.MaxIterations, t.opts.PopulationCap)
	if err != nil {
		return 0, fmt.Errorf("trial %d: %w", trial, err)
	}
	if !res.Converged {
		return 2 * t.opts.MaxIterations, nil
	}
	return res.Steps, nil
}
