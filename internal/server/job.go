package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/cwbudde/optimism/internal/config"
	"github.com/cwbudde/optimism/internal/store"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Finished reports whether the job can no longer change.
func (s JobState) Finished() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// DefaultRetention is how long finished jobs stay queryable.
const DefaultRetention = time.Hour

// Job represents one search submitted to the server
type Job struct {
	ID             string              `json:"id"`
	State          JobState            `json:"state"`
	Config         config.RunConfig    `json:"config"`
	Steps          int                 `json:"steps"`
	IterationCount int64               `json:"iterationCount"`
	BestScore      float64             `json:"bestScore"`
	PerfectScore   float64             `json:"perfectScore"`
	Converged      bool                `json:"converged"`
	Reason         string              `json:"reason,omitempty"`
	Top            []store.ReportEntry `json:"top,omitempty"`
	StartTime      time.Time           `json:"startTime"`
	EndTime        *time.Time          `json:"endTime,omitempty"`
	Error          string              `json:"error,omitempty"`
}

// Portion is the best score as a fraction of the perfect score.
func (j Job) Portion() float64 {
	if j.PerfectScore == 0 {
		return 0
	}
	return j.BestScore / j.PerfectScore
}

// Elapsed is the running time so far, or the total once finished.
func (j Job) Elapsed() time.Duration {
	if j.EndTime != nil {
		return j.EndTime.Sub(j.StartTime)
	}
	return time.Since(j.StartTime)
}

// JobManager manages the lifecycle of jobs. Running jobs never expire;
// finished ones are dropped after the retention period.
type JobManager struct {
	mu          sync.Mutex
	jobs        *cache.Cache
	cancels     map[string]context.CancelFunc
	retention   time.Duration
	broadcaster *EventBroadcaster
}

// NewJobManager creates a JobManager keeping finished jobs for retention.
func NewJobManager(retention time.Duration) *JobManager {
	if retention <= 0 {
		retention = DefaultRetention
	}
	jm := &JobManager{
		jobs:        cache.New(cache.NoExpiration, retention/2),
		cancels:     make(map[string]context.CancelFunc),
		retention:   retention,
		broadcaster: NewEventBroadcaster(),
	}
	jm.jobs.OnEvicted(func(id string, _ interface{}) {
		jm.broadcaster.CleanupJob(id)
	})
	return jm
}

// CreateJob registers a pending job for cfg.
func (jm *JobManager) CreateJob(cfg config.RunConfig) Job {
	job := &Job{
		ID:        uuid.NewString(),
		State:     StatePending,
		Config:    cfg,
		StartTime: time.Now(),
	}
	jm.jobs.Set(job.ID, job, cache.NoExpiration)
	return *job
}

// GetJob returns a snapshot of a job.
func (jm *JobManager) GetJob(id string) (Job, bool) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, ok := jm.get(id)
	if !ok {
		return Job{}, false
	}
	return *job, true
}

func (jm *JobManager) get(id string) (*Job, bool) {
	v, ok := jm.jobs.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*Job), true
}

// ListJobs returns snapshots of all jobs, oldest first.
func (jm *JobManager) ListJobs() []Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	items := jm.jobs.Items()
	jobs := make([]Job, 0, len(items))
	for _, item := range items {
		jobs = append(jobs, *item.Object.(*Job))
	}
	sort.Slice(jobs, func(i, k int) bool {
		if !jobs[i].StartTime.Equal(jobs[k].StartTime) {
			return jobs[i].StartTime.Before(jobs[k].StartTime)
		}
		return jobs[i].ID < jobs[k].ID
	})
	return jobs
}

// UpdateJob atomically updates a job using the provided function. Once the
// job reaches a finished state its retention timer starts.
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, ok := jm.get(id)
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	wasFinished := job.State.Finished()
	updateFn(job)
	if job.State.Finished() && !wasFinished {
		jm.jobs.Set(id, job, jm.retention)
		delete(jm.cancels, id)
	}
	return nil
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []Job {
	var running []Job
	for _, job := range jm.ListJobs() {
		if job.State == StateRunning {
			running = append(running, job)
		}
	}
	return running
}

// attach derives the context a job runs under and remembers how to cancel it.
func (jm *JobManager) attach(parent context.Context, id string) context.Context {
	ctx, cancel := context.WithCancel(parent)
	jm.mu.Lock()
	jm.cancels[id] = cancel
	jm.mu.Unlock()
	return ctx
}

// release drops the cancel func of a job that has finished running.
func (jm *JobManager) release(id string) {
	jm.mu.Lock()
	cancel, ok := jm.cancels[id]
	delete(jm.cancels, id)
	jm.mu.Unlock()
	if ok {
		cancel()
	}
}

// CancelJob asks a pending or running job to stop. It returns false if the
// job is unknown or already finished.
func (jm *JobManager) CancelJob(id string) bool {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, ok := jm.get(id)
	if !ok || job.State.Finished() {
		return false
	}
	if cancel, ok := jm.cancels[id]; ok {
		cancel()
	}
	return true
}

// CancelAll stops every job that is still running.
func (jm *JobManager) CancelAll() {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	for _, cancel := range jm.cancels {
		cancel()
	}
}
