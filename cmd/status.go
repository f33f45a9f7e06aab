package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cwbudde/optimism/internal/server"
	"github.com/cwbudde/optimism/internal/store"
)

var (
	serverURL string
	statusTop int
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cancelJob(cmd.OutOrStdout(), serverURL, args[0])
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusTop, "top", 0, "Also show the N best designs of the job")
	for _, c := range []*cobra.Command{statusCmd, cancelCmd} {
		c.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
		rootCmd.AddCommand(c)
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	if len(args) == 0 {
		return listJobs(w, serverURL)
	}
	if err := getJobStatus(w, serverURL, args[0]); err != nil {
		return err
	}
	if statusTop > 0 {
		return getJobTop(w, serverURL, args[0], statusTop)
	}
	return nil
}

func getJSON(url string, v any) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, v)
}

func decodeResponse(resp *http.Response, v any) error {
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func listJobs(w io.Writer, baseURL string) error {
	var jobs []server.Job
	if err := getJSON(baseURL+"/api/v1/jobs", &jobs); err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB ID\tPROBLEM\tSTATE\tSTEPS\tBEST\tSTARTED")
	for _, job := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.1f%%\t%s\n",
			job.ID,
			job.Config.Problem,
			job.State,
			humanize.Comma(int64(job.Steps)),
			100*job.Portion(),
			humanize.Time(job.StartTime))
	}
	tw.Flush()
	fmt.Fprintf(w, "\nFound %d job(s)\n", len(jobs))
	return nil
}

func getJobStatus(w io.Writer, baseURL, jobID string) error {
	var status server.StatusResponse
	if err := getJSON(fmt.Sprintf("%s/api/v1/jobs/%s/status", baseURL, jobID), &status); err != nil {
		return err
	}

	fmt.Fprintf(w, "Job: %s\n", status.ID)
	fmt.Fprintf(w, "Problem: %s\n", status.Problem)
	fmt.Fprintf(w, "State: %s\n\n", status.State)

	fmt.Fprintln(w, "Progress:")
	fmt.Fprintf(w, "  Steps: %s (%s designs)\n", humanize.Comma(int64(status.Steps)), humanize.Comma(status.IterationCount))
	fmt.Fprintf(w, "  Best Score: %.4f of %.4f (%.1f%%)\n", status.BestScore, status.PerfectScore, 100*status.Portion)
	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Fprintf(w, "  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	if status.StepsPerSecond > 0 {
		fmt.Fprintf(w, "  Throughput: %s steps/sec\n", humanize.Commaf(float64(int64(status.StepsPerSecond))))
	}
	if status.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", status.Reason)
	}
	if status.Error != "" {
		fmt.Fprintf(w, "\nError: %s\n", status.Error)
	}
	return nil
}

func getJobTop(w io.Writer, baseURL, jobID string, n int) error {
	var top []store.ReportEntry
	if err := getJSON(fmt.Sprintf("%s/api/v1/jobs/%s/top?n=%d", baseURL, jobID, n), &top); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tPORTION\tDESIGN")
	for i, e := range top {
		fmt.Fprintf(tw, "%d\t%.4f\t%.3f\t%s\n", i+1, e.Score, e.Portion, e.Design)
	}
	return tw.Flush()
}

func cancelJob(w io.Writer, baseURL, jobID string) error {
	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/v1/jobs/%s", baseURL, jobID), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	var job server.Job
	if err := decodeResponse(resp, &job); err != nil {
		return err
	}
	fmt.Fprintf(w, "Cancellation requested for %s\n", job.ID)
	return nil
}
