// Package runner executes one configured search end to end: it builds the
// problem, runs the optimizer, records the trace and persists the report.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/optimism/internal/config"
	"github.com/cwbudde/optimism/internal/opt"
	"github.com/cwbudde/optimism/internal/population"
	"github.com/cwbudde/optimism/internal/problem"
	"github.com/cwbudde/optimism/internal/report"
	"github.com/cwbudde/optimism/internal/stopping"
	"github.com/cwbudde/optimism/internal/store"
)

// ReasonCancelled is reported when the context ends a search early.
const ReasonCancelled = "cancelled"

// Options controls what a run records besides its result.
type Options struct {
	// RunID names the report. A random UUID is used when empty.
	RunID string
	// Store receives the report and trace. Nothing is persisted when nil.
	Store store.Store
	// OnStep is called after every addition, on the optimizer's goroutine.
	OnStep func(inst *problem.Instance, s opt.Step)
}

// Outcome is everything a finished run produced.
type Outcome struct {
	RunID      string
	Instance   *problem.Instance
	Population *population.Population
	Result     opt.Result
	Report     *store.Report
	Trace      []store.TraceEntry
	Elapsed    time.Duration
	Cancelled  bool
}

// Prepare builds the problem instance for cfg and applies the config's
// overrides. The returned generator continues the instance's random stream
// and should drive the optimizer.
func Prepare(cfg config.RunConfig) (*problem.Instance, *rand.Rand, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	p, err := problem.Get(cfg.Problem)
	if err != nil {
		return nil, nil, err
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1))
	inst := p.Build(rng)
	inst.SetThresholds(cfg.DesignThreshold, cfg.ModifierThreshold)
	if cfg.StopAt != nil {
		inst.Stop = stopping.AtThreshold(*cfg.StopAt)
	}
	return inst, rng, nil
}

// Run executes the search described by cfg. Cancelling ctx stops the search
// after the current step; the partial outcome is still returned and saved.
func Run(ctx context.Context, cfg config.RunConfig, o Options) (*Outcome, error) {
	inst, rng, err := Prepare(cfg)
	if err != nil {
		return nil, err
	}

	out := &Outcome{RunID: o.RunID, Instance: inst}
	if out.RunID == "" {
		out.RunID = uuid.NewString()
	}

	var trace *store.TraceWriter
	if o.Store != nil {
		trace, err = o.Store.OpenTrace(out.RunID)
		if err != nil {
			return nil, err
		}
		defer func() {
			if trace == nil {
				return
			}
			if err := trace.Close(); err != nil {
				slog.Warn("Failed to close trace", "run_id", out.RunID, "error", err)
			}
		}()
	}

	optimizer := opt.New(inst.DesignSelector, inst.ModifierSelector,
		stopping.Any(inst.Stop, stopping.OnContextDone(ctx)))
	optimizer.Rand = rng
	optimizer.OnStep = func(s opt.Step) {
		entry := report.NewTraceEntry(s)
		out.Trace = append(out.Trace, entry)
		if trace != nil {
			if err := trace.Write(entry); err != nil {
				slog.Warn("Trace write failed, disabling trace", "run_id", out.RunID, "error", err)
				trace.Close()
				trace = nil
			}
		}
		if o.OnStep != nil {
			o.OnStep(inst, s)
		}
	}

	slog.Info("Starting run",
		"run_id", out.RunID,
		"problem", cfg.Problem,
		"seeds", len(inst.Seeds),
		"max_iterations", cfg.MaxIterations,
		"population_cap", cfg.PopulationCap)

	start := time.Now()
	pop, res, err := optimizer.Optimize(inst.Objectives, inst.Heuristics, inst.Seeds, cfg.MaxIterations, cfg.PopulationCap)
	out.Elapsed = time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("run %s failed: %w", out.RunID, err)
	}

	if ctx.Err() != nil {
		out.Cancelled = true
		res.Converged = false
		res.Reason = ReasonCancelled
	}
	out.Population = pop
	out.Result = res
	out.Report = report.NewRunReport(out.RunID, cfg, inst, pop, res, out.Elapsed)

	if o.Store != nil {
		if err := o.Store.SaveReport(out.Report); err != nil {
			return out, fmt.Errorf("failed to save report: %w", err)
		}
	}

	slog.Info("Run finished",
		"run_id", out.RunID,
		"converged", res.Converged,
		"reason", res.Reason,
		"steps", res.Steps,
		"best_score", out.Report.BestScore,
		"perfect_score", out.Report.PerfectScore,
		"elapsed", out.Elapsed)
	return out, nil
}
