package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cwbudde/optimism/internal/config"
	"github.com/cwbudde/optimism/internal/tune"
)

var (
	tuneProblem   string
	tuneOpts      = tune.DefaultOptions()
	tuneWritePath string
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Search for the selection thresholds that converge fastest",
	Long: `Runs a Mayfly search over the design and modifier selection thresholds.
Each candidate pair is scored by the mean number of steps several
independent searches need to converge.`,
	RunE: runTune,
}

func init() {
	f := tuneCmd.Flags()
	f.StringVar(&tuneProblem, "problem", "guess", "Problem to tune")
	f.IntVar(&tuneOpts.Trials, "trials", tuneOpts.Trials, "Searches averaged per threshold pair")
	f.IntVar(&tuneOpts.MaxIterations, "max-iterations", tuneOpts.MaxIterations, "Maximum steps per search")
	f.IntVar(&tuneOpts.PopulationCap, "population-cap", tuneOpts.PopulationCap, "Population cap per search")
	f.IntVar(&tuneOpts.TunerIterations, "tuner-iterations", tuneOpts.TunerIterations, "Mayfly iterations")
	f.IntVar(&tuneOpts.TunerPopulation, "tuner-population", tuneOpts.TunerPopulation, "Mayfly population size (min 20)")
	f.Uint64Var(&tuneOpts.Seed, "seed", tuneOpts.Seed, "Random seed")
	f.IntVar(&tuneOpts.Concurrency, "concurrency", tuneOpts.Concurrency, "Searches run in parallel")
	f.StringVar(&tuneWritePath, "write-config", "", "Write a run config using the tuned thresholds")

	rootCmd.AddCommand(tuneCmd)
}

func runTune(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := tune.Tune(ctx, tuneProblem, tuneOpts)
	if err != nil {
		return err
	}
	printTune(cmd.OutOrStdout(), tuneProblem, res)

	if tuneWritePath != "" {
		cfg := config.Default()
		cfg.Problem = tuneProblem
		cfg.MaxIterations = tuneOpts.MaxIterations
		cfg.PopulationCap = tuneOpts.PopulationCap
		cfg.DesignThreshold = config.Float(res.DesignThreshold)
		cfg.ModifierThreshold = config.Float(res.ModifierThreshold)
		if err := cfg.Save(tuneWritePath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", tuneWritePath)
	}
	return nil
}

func printTune(w io.Writer, problemName string, res tune.Result) {
	fmt.Fprintf(w, "Tuned %s in %s (%s evaluations)\n", problemName, res.Duration.Round(time.Millisecond), humanize.Comma(res.Evaluations))
	fmt.Fprintf(w, "  Design threshold:   %.3f\n", res.DesignThreshold)
	fmt.Fprintf(w, "  Modifier threshold: %.3f\n", res.ModifierThreshold)
	fmt.Fprintf(w, "  Mean steps:         %.1f (baseline %.1f, %.1f%% better)\n",
		res.Cost, res.Baseline, 100*res.Improvement())
}
