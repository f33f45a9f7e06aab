// Package report summarizes finished searches and renders their charts.
package report

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/cwbudde/optimism/internal/config"
	"github.com/cwbudde/optimism/internal/opt"
	"github.com/cwbudde/optimism/internal/population"
	"github.com/cwbudde/optimism/internal/problem"
	"github.com/cwbudde/optimism/internal/store"
)

// Summarize describes the score distribution of a population.
func Summarize(pop *population.Population) store.Summary {
	its := pop.Iterations()
	sum := store.Summary{
		Count:       len(its),
		Transitions: pop.History().EdgeCount(),
	}
	if len(its) == 0 {
		return sum
	}

	scores := make([]float64, len(its))
	for i, it := range its {
		scores[i] = it.Score()
	}
	sort.Float64s(scores)

	sum.Best = scores[len(scores)-1]
	sum.Mean = stat.Mean(scores, nil)
	sum.Median = stat.Quantile(0.5, stat.Empirical, scores, nil)
	if len(scores) > 1 {
		sum.StdDev = stat.StdDev(scores, nil)
	}

	objectives := pop.Objectives()
	if len(objectives) > 0 {
		sum.ObjectiveMeans = make(map[string]float64, len(objectives))
		raw := make([]float64, len(its))
		for _, o := range objectives {
			for i, it := range its {
				raw[i] = it.ObjectiveScore(o)
			}
			sum.ObjectiveMeans[o] = stat.Mean(raw, nil)
		}
	}
	return sum
}

// Top returns the n best iterations as report entries. Ties beyond n are cut.
func Top(pop *population.Population, inst *problem.Instance, n int) []store.ReportEntry {
	its := pop.TopN(n, "")
	if len(its) > n {
		its = its[:n]
	}
	out := make([]store.ReportEntry, len(its))
	for i, it := range its {
		out[i] = store.ReportEntry{
			IterationID: it.ID(),
			Score:       it.Score(),
			Portion:     pop.PortionPerfectScore(it),
			Visits:      it.Visits(),
			Scores:      it.Scores(),
			Design:      inst.FormatDesign(it.Design()),
		}
	}
	return out
}

// NewRunReport builds the persisted report of a finished search.
func NewRunReport(id string, cfg config.RunConfig, inst *problem.Instance, pop *population.Population, res opt.Result, elapsed time.Duration) *store.Report {
	r := &store.Report{
		ID:             id,
		Problem:        cfg.Problem,
		Converged:      res.Converged,
		Reason:         res.Reason,
		Steps:          res.Steps,
		IterationCount: pop.IterationCount(),
		PerfectScore:   pop.ObjectiveFunction().PerfectScore(),
		Top:            Top(pop, inst, cfg.Top),
		Summary:        Summarize(pop),
		Config:         cfg,
		Duration:       elapsed,
		Timestamp:      time.Now().UTC(),
	}
	if res.Best != nil {
		r.BestScore = res.Best.Score()
	}
	return r
}

// NewTraceEntry converts an optimizer step into a trace line.
func NewTraceEntry(s opt.Step) store.TraceEntry {
	e := store.TraceEntry{
		Step:        s.Index,
		IterationID: s.Iteration.ID(),
		Score:       s.Iteration.Score(),
		Timestamp:   time.Now().UTC(),
	}
	if best, ok := s.Population.Best(); ok {
		e.BestScore = best.Score()
	}
	if s.Modifier != nil {
		e.Modifier = s.Modifier.Name
	}
	if s.Prior != nil {
		e.ScoreChange = s.Iteration.Score() - s.Prior.Score()
	}
	return e
}
