package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cwbudde/optimism/internal/config"
	"github.com/cwbudde/optimism/internal/problem"
	"github.com/cwbudde/optimism/internal/report"
	"github.com/cwbudde/optimism/internal/runner"
	"github.com/cwbudde/optimism/internal/store"
)

var (
	configPath        string
	writeConfigPath   string
	problemName       string
	maxIterations     int
	populationCap     int
	seed              uint64
	top               int
	designThreshold   float64
	modifierThreshold float64
	stopAt            float64
	saveReport        bool
	dataDir           string
	plotDir           string
	plotAxes          string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single search",
	Long: `Runs one search and prints its best designs. Settings come from the
defaults, then --config, then any flag given explicitly.`,
	RunE: runSearchCmd,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML run config")
	f.StringVar(&writeConfigPath, "write-config", "", "Write the effective config to this YAML file")
	f.StringVar(&problemName, "problem", "guess", "Problem to solve ("+strings.Join(problem.Names(), ", ")+")")
	f.IntVar(&maxIterations, "max-iterations", 10000, "Maximum modifier applications")
	f.IntVar(&populationCap, "population-cap", 1000, "Maximum iterations kept")
	f.Uint64Var(&seed, "seed", 0, "Random seed")
	f.IntVar(&top, "top", 5, "Number of best iterations to print")
	f.Float64Var(&designThreshold, "design-threshold", 1, "Constant design selection probability")
	f.Float64Var(&modifierThreshold, "modifier-threshold", 1, "Constant modifier selection probability")
	f.Float64Var(&stopAt, "stop-at", 1, "Stop once a design reaches this portion of the perfect score")
	f.BoolVar(&saveReport, "save", false, "Save the report and trace under --data-dir")
	f.StringVar(&dataDir, "data-dir", "./data", "Base directory for saved runs")
	f.StringVar(&plotDir, "plot", "", "Write HTML charts to this directory")
	f.StringVar(&plotAxes, "axes", "", "Objectives for the scatter chart as x,y (defaults to the first two)")

	rootCmd.AddCommand(runCmd)
}

// effectiveConfig layers explicitly set flags over the config file or defaults.
func effectiveConfig(cmd *cobra.Command) (config.RunConfig, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("problem") {
		cfg.Problem = problemName
	}
	if flags.Changed("max-iterations") {
		cfg.MaxIterations = maxIterations
	}
	if flags.Changed("population-cap") {
		cfg.PopulationCap = populationCap
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("top") {
		cfg.Top = top
	}
	if flags.Changed("design-threshold") {
		cfg.DesignThreshold = config.Float(designThreshold)
	}
	if flags.Changed("modifier-threshold") {
		cfg.ModifierThreshold = config.Float(modifierThreshold)
	}
	if flags.Changed("stop-at") {
		cfg.StopAt = config.Float(stopAt)
	}
	return cfg, cfg.Validate()
}

func runSearchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := effectiveConfig(cmd)
	if err != nil {
		return err
	}
	if writeConfigPath != "" {
		if err := cfg.Save(writeConfigPath); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store
	if saveReport {
		fs, err := store.NewFSStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to create report store: %w", err)
		}
		st = fs
	}
	return runSearch(ctx, cmd.OutOrStdout(), cfg, st, plotDir, plotAxes)
}

// runSearch executes cfg and prints the outcome to w.
func runSearch(ctx context.Context, w io.Writer, cfg config.RunConfig, st store.Store, plotDir, axes string) error {
	out, err := runner.Run(ctx, cfg, runner.Options{Store: st})
	if err != nil {
		return err
	}

	printOutcome(w, out)

	if st != nil {
		fmt.Fprintf(w, "\nSaved run %s\n", out.RunID)
	}
	if plotDir != "" {
		if err := writeCharts(out, plotDir, axes); err != nil {
			return err
		}
		fmt.Fprintf(w, "Wrote charts to %s\n", plotDir)
	}
	return nil
}

func printOutcome(w io.Writer, out *runner.Outcome) {
	printReport(w, out.Report)
}

func printReport(w io.Writer, rep *store.Report) {
	status := "Converged"
	if !rep.Converged {
		status = "Stopped"
	}
	fmt.Fprintf(w, "%s after %s steps (%s designs evaluated, %s)\n",
		status,
		humanize.Comma(int64(rep.Steps)),
		humanize.Comma(rep.IterationCount),
		rep.Duration.Round(time.Microsecond))
	if rep.Reason != "" {
		fmt.Fprintf(w, "Reason: %s\n", rep.Reason)
	}
	portion := 0.0
	if rep.PerfectScore > 0 {
		portion = rep.BestScore / rep.PerfectScore
	}
	fmt.Fprintf(w, "Best score: %.4f of %.4f (%.1f%%)\n\n", rep.BestScore, rep.PerfectScore, 100*portion)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tPORTION\tVISITS\tDESIGN")
	for i, e := range rep.Top {
		fmt.Fprintf(tw, "%d\t%.4f\t%.3f\t%d\t%s\n", i+1, e.Score, e.Portion, e.Visits, e.Design)
	}
	tw.Flush()

	s := rep.Summary
	fmt.Fprintf(w, "\nPopulation: %d iterations, mean %.4f, median %.4f, stddev %.4f, %s transitions\n",
		s.Count, s.Mean, s.Median, s.StdDev, humanize.Comma(int64(s.Transitions)))
}

func writeCharts(out *runner.Outcome, dir, axes string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create plot directory: %w", err)
	}

	title := fmt.Sprintf("%s run %s", out.Report.Problem, out.RunID)
	if err := writeFile(filepath.Join(dir, "trace.html"), func(w io.Writer) error {
		return report.PlotTrace(w, title, out.Trace)
	}); err != nil {
		return err
	}

	objectives := out.Population.Objectives()
	x, y := "", ""
	if axes != "" {
		parts := strings.Split(axes, ",")
		if len(parts) != 2 {
			return fmt.Errorf("--axes must name two objectives as x,y")
		}
		x, y = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	} else if len(objectives) >= 2 {
		x, y = objectives[0], objectives[1]
	}
	if x == "" {
		return nil
	}
	return writeFile(filepath.Join(dir, "objectives.html"), func(w io.Writer) error {
		return report.PlotObjectives(w, title, out.Population, x, y)
	})
}

func writeFile(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to render %s: %w", path, err)
	}
	return f.Close()
}
