package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cwbudde/optimism/internal/report"
	"github.com/cwbudde/optimism/internal/store"
)

var (
	reportsDataDir string
	reportsPlotDir string
	keepLast       int
	olderThanDays  int
	forceClean     bool
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Manage saved run reports",
	Long: `Manage the reports written by "run --save" and by the job server.
Each report lives in its own directory together with the run's trace.`,
}

var listReportsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.NewFSStore(reportsDataDir)
		if err != nil {
			return fmt.Errorf("failed to create report store: %w", err)
		}
		return listReports(cmd.OutOrStdout(), st)
	},
}

var showReportCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a saved report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.NewFSStore(reportsDataDir)
		if err != nil {
			return fmt.Errorf("failed to create report store: %w", err)
		}
		return showReport(cmd.OutOrStdout(), st, args[0], reportsPlotDir)
	},
}

var cleanReportsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete old reports",
	Long: `Delete old reports based on retention policy.
You can keep only the N most recent reports or delete reports older than N days.`,
	RunE: runCleanReports,
}

func init() {
	rootCmd.AddCommand(reportsCmd)
	reportsCmd.AddCommand(listReportsCmd, showReportCmd, cleanReportsCmd)

	reportsCmd.PersistentFlags().StringVar(&reportsDataDir, "data-dir", "./data", "Base directory for saved runs")

	showReportCmd.Flags().StringVar(&reportsPlotDir, "plot", "", "Write the trace chart to this directory")

	cleanReportsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the last N reports (0 = keep all)")
	cleanReportsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete reports older than N days (0 = no age limit)")
	cleanReportsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func listReports(w io.Writer, st *store.FSStore) error {
	infos, err := st.ListReports()
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}
	if len(infos) == 0 {
		fmt.Fprintln(w, "No reports found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tPROBLEM\tCONVERGED\tSTEPS\tBEST\tSAVED\tSIZE")
	for _, info := range infos {
		sizeStr := "unknown"
		if size, err := getDirSize(st.RunDir(info.ID)); err == nil {
			sizeStr = humanize.Bytes(uint64(size))
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%.4f / %.4f\t%s\t%s\n",
			info.ID,
			info.Problem,
			info.Converged,
			humanize.Comma(int64(info.Steps)),
			info.BestScore,
			info.PerfectScore,
			humanize.Time(info.Timestamp),
			sizeStr)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nTotal reports: %d\n", len(infos))
	return nil
}

func showReport(w io.Writer, st *store.FSStore, runID, plotDir string) error {
	rep, err := st.LoadReport(runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Run %s (%s), saved %s\n\n", rep.ID, rep.Problem, rep.Timestamp.Format(time.DateTime))
	printReport(w, rep)

	if plotDir == "" {
		return nil
	}
	entries, err := st.ReadTrace(runID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(plotDir, 0755); err != nil {
		return fmt.Errorf("failed to create plot directory: %w", err)
	}
	path := filepath.Join(plotDir, "trace.html")
	if err := writeFile(path, func(out io.Writer) error {
		return report.PlotTrace(out, fmt.Sprintf("%s run %s", rep.Problem, rep.ID), entries)
	}); err != nil {
		return err
	}
	fmt.Fprintf(w, "Wrote %s\n", path)
	return nil
}

func runCleanReports(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	st, err := store.NewFSStore(reportsDataDir)
	if err != nil {
		return fmt.Errorf("failed to create report store: %w", err)
	}
	infos, err := st.ListReports()
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	w := cmd.OutOrStdout()
	toDelete := selectReportsForDeletion(infos, keepLast, olderThanDays, time.Now())
	if len(toDelete) == 0 {
		fmt.Fprintln(w, "No reports match deletion criteria.")
		return nil
	}

	fmt.Fprintf(w, "Found %d report(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Fprintf(w, "  - %s (%s, %s)\n", info.ID, info.Problem, humanize.Time(info.Timestamp))
	}

	if !forceClean {
		fmt.Fprint(w, "\nProceed with deletion? [y/N]: ")
		var response string
		fmt.Fscanln(cmd.InOrStdin(), &response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(w, "Aborted.")
			return nil
		}
	}

	deleted, failed := deleteReports(st, toDelete)
	fmt.Fprintf(w, "\nDeleted %d report(s), %d failed.\n", deleted, failed)
	return nil
}

func deleteReports(st store.Store, infos []store.ReportInfo) (deleted, failed int) {
	for _, info := range infos {
		if err := st.DeleteReport(info.ID); err != nil {
			slog.Error("Failed to delete report", "run_id", info.ID, "error", err)
			failed++
			continue
		}
		slog.Info("Deleted report", "run_id", info.ID)
		deleted++
	}
	return deleted, failed
}

// selectReportsForDeletion applies the retention policy. Reports older than
// olderThanDays go, and beyond that only the keepLast newest survive.
func selectReportsForDeletion(infos []store.ReportInfo, keepLast, olderThanDays int, now time.Time) []store.ReportInfo {
	selected := make(map[string]bool)
	var toDelete []store.ReportInfo
	add := func(info store.ReportInfo) {
		if !selected[info.ID] {
			selected[info.ID] = true
			toDelete = append(toDelete, info)
		}
	}

	if olderThanDays > 0 {
		cutoff := now.AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.Timestamp.Before(cutoff) {
				add(info)
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		sorted := make([]store.ReportInfo, len(infos))
		copy(sorted, infos)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		})
		for _, info := range sorted[:len(sorted)-keepLast] {
			add(info)
		}
	}

	return toDelete
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
