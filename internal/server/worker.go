package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/optimism/internal/opt"
	"github.com/cwbudde/optimism/internal/population"
	"github.com/cwbudde/optimism/internal/problem"
	"github.com/cwbudde/optimism/internal/report"
	"github.com/cwbudde/optimism/internal/runner"
	"github.com/cwbudde/optimism/internal/store"
)

// DefaultProgressInterval throttles progress events to two per second.
const DefaultProgressInterval = 500 * time.Millisecond

// liveTop is how many of the best iterations a running job keeps visible.
const liveTop = 50

// runJob executes a search job. Progress is published at most once per
// interval; the final state is always published. A nil reportStore skips
// persistence.
func runJob(ctx context.Context, jm *JobManager, reportStore store.Store, jobID string, interval time.Duration) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}
	defer jm.release(jobID)

	if ctx.Err() != nil {
		markJobCancelled(jm, jobID)
		return ctx.Err()
	}

	if err := jm.UpdateJob(jobID, func(j *Job) { j.State = StateRunning }); err != nil {
		return err
	}
	slog.Info("Starting job", "job_id", jobID, "problem", job.Config.Problem)

	var last time.Time
	steps := 0
	onStep := func(inst *problem.Instance, s opt.Step) {
		if !s.Seed {
			steps++
		}
		if time.Since(last) < interval {
			return
		}
		last = time.Now()
		publishProgress(jm, jobID, inst, s.Population, steps)
	}

	out, err := runner.Run(ctx, job.Config, runner.Options{
		RunID:  jobID,
		Store:  reportStore,
		OnStep: onStep,
	})
	if err != nil && out == nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	state := StateCompleted
	if out.Cancelled {
		state = StateCancelled
	}
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = state
		j.Steps = out.Result.Steps
		j.IterationCount = out.Population.IterationCount()
		j.BestScore = out.Report.BestScore
		j.PerfectScore = out.Report.PerfectScore
		j.Converged = out.Result.Converged
		j.Reason = out.Result.Reason
		j.Top = report.Top(out.Population, out.Instance, liveTop)
		j.EndTime = &endTime
		if err != nil {
			j.Error = err.Error()
		}
	})

	final, _ := jm.GetJob(jobID)
	jm.broadcaster.Broadcast(newProgressEvent(final))

	slog.Info("Job finished",
		"job_id", jobID,
		"state", state,
		"steps", final.Steps,
		"best_score", final.BestScore,
		"elapsed", final.Elapsed())

	if err != nil {
		slog.Warn("Job finished with errors", "job_id", jobID, "error", err)
	}
	if out.Cancelled {
		return context.Canceled
	}
	return nil
}

// publishProgress copies the optimizer's state into the job and broadcasts it.
func publishProgress(jm *JobManager, jobID string, inst *problem.Instance, pop *population.Population, steps int) {
	best, _ := pop.Best()
	top := report.Top(pop, inst, liveTop)

	jm.UpdateJob(jobID, func(j *Job) {
		j.Steps = steps
		j.IterationCount = pop.IterationCount()
		j.BestScore = best.Score()
		j.PerfectScore = pop.ObjectiveFunction().PerfectScore()
		j.Top = top
	})
	if job, ok := jm.GetJob(jobID); ok {
		jm.broadcaster.Broadcast(newProgressEvent(job))
	}
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	if job, ok := jm.GetJob(jobID); ok {
		jm.broadcaster.Broadcast(newProgressEvent(job))
	}
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.Reason = runner.ReasonCancelled
		j.EndTime = &endTime
	})
	if job, ok := jm.GetJob(jobID); ok {
		jm.broadcaster.Broadcast(newProgressEvent(job))
	}
	slog.Info("Job cancelled", "job_id", jobID)
}
