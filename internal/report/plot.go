package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/cwbudde/optimism/internal/population"
	"github.com/cwbudde/optimism/internal/store"
)

// PlotTrace renders the score and best score of every step as an HTML line chart.
func PlotTrace(w io.Writer, title string, entries []store.TraceEntry) error {
	if len(entries) == 0 {
		return fmt.Errorf("trace is empty for %s", title)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
		charts.WithXAxisOpts(opts.XAxis{Name: "step"}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:      "score",
			SplitLine: &opts.SplitLine{Show: opts.Bool(true)},
		}),
	)

	steps := make([]int, len(entries))
	scores := make([]opts.LineData, len(entries))
	best := make([]opts.LineData, len(entries))
	for i, e := range entries {
		steps[i] = e.Step
		scores[i] = opts.LineData{Value: e.Score}
		best[i] = opts.LineData{Value: e.BestScore}
	}

	line.SetXAxis(steps).
		AddSeries("Score", scores).
		AddSeries("Best", best).
		SetSeriesOptions(
			charts.WithLineChartOpts(opts.LineChart{Step: "end"}),
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}),
		)

	return line.Render(w)
}

// PlotObjectives renders every iteration of the population as a point in the
// plane of two objectives' raw scores.
func PlotObjectives(w io.Writer, title string, pop *population.Population, x, y string) error {
	if pop.Len() == 0 {
		return fmt.Errorf("population is empty for %s", title)
	}
	of := pop.ObjectiveFunction()
	for _, o := range []string{x, y} {
		if !of.Has(o) {
			return fmt.Errorf("unknown objective %q", o)
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
		charts.WithXAxisOpts(opts.XAxis{
			Name:      x,
			Min:       0,
			Max:       1,
			SplitLine: &opts.SplitLine{Show: opts.Bool(true)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:      y,
			Min:       0,
			Max:       1,
			SplitLine: &opts.SplitLine{Show: opts.Bool(true)},
		}),
	)

	best, _ := pop.Best()
	var points, top []opts.ScatterData
	for _, it := range pop.Iterations() {
		d := opts.ScatterData{
			Value:      []float64{it.ObjectiveScore(x), it.ObjectiveScore(y)},
			Symbol:     "circle",
			SymbolSize: 8,
		}
		if it.Score() == best.Score() {
			d.Symbol = "triangle"
			d.SymbolSize = 12
			top = append(top, d)
			continue
		}
		points = append(points, d)
	}

	scatter.AddSeries("Iterations", points).
		AddSeries("Best", top).
		SetSeriesOptions(charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}))

	return scatter.Render(w)
}
