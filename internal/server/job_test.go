package server

import (
	"context"
	"testing"
	"time"

	"github.com/cwbudde/optimism/internal/config"
)

func TestJobManager_CreateJob(t *testing.T) {
	jm := NewJobManager(time.Minute)

	cfg := config.Default()
	cfg.Problem = "cookie"
	job := jm.CreateJob(cfg)

	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}
	if job.State != StatePending {
		t.Errorf("Initial state should be pending, got %s", job.State)
	}
	if job.Config.Problem != "cookie" {
		t.Errorf("Config not set correctly")
	}
}

func TestJobManager_GetJob(t *testing.T) {
	jm := NewJobManager(time.Minute)
	job := jm.CreateJob(config.Default())

	retrieved, exists := jm.GetJob(job.ID)
	if !exists {
		t.Fatal("Job should exist")
	}
	if retrieved.ID != job.ID {
		t.Error("Retrieved wrong job")
	}

	if _, exists := jm.GetJob("nonexistent"); exists {
		t.Error("Should not find nonexistent job")
	}
}

func TestJobManager_GetJobReturnsSnapshot(t *testing.T) {
	jm := NewJobManager(time.Minute)
	job := jm.CreateJob(config.Default())

	snapshot, _ := jm.GetJob(job.ID)
	snapshot.State = StateFailed

	current, _ := jm.GetJob(job.ID)
	if current.State != StatePending {
		t.Errorf("Mutating a snapshot changed the job: %s", current.State)
	}
}

func TestJobManager_ListJobs(t *testing.T) {
	jm := NewJobManager(time.Minute)
	if len(jm.ListJobs()) != 0 {
		t.Error("Should start with no jobs")
	}

	first := jm.CreateJob(config.Default())
	time.Sleep(time.Millisecond)
	second := jm.CreateJob(config.Default())

	jobs := jm.ListJobs()
	if len(jobs) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != first.ID || jobs[1].ID != second.ID {
		t.Error("Jobs should be listed oldest first")
	}
}

func TestJobManager_UpdateJob(t *testing.T) {
	jm := NewJobManager(time.Minute)
	job := jm.CreateJob(config.Default())

	err := jm.UpdateJob(job.ID, func(j *Job) {
		j.State = StateRunning
		j.Steps = 12
	})
	if err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateRunning || updated.Steps != 12 {
		t.Errorf("Update not applied: %+v", updated)
	}
	if len(jm.GetRunningJobs()) != 1 {
		t.Error("Expected one running job")
	}

	if err := jm.UpdateJob("nonexistent", func(*Job) {}); err == nil {
		t.Error("Expected error for nonexistent job")
	}
}

func TestJobManager_FinishedJobsExpire(t *testing.T) {
	jm := NewJobManager(50 * time.Millisecond)
	job := jm.CreateJob(config.Default())

	time.Sleep(100 * time.Millisecond)
	if _, ok := jm.GetJob(job.ID); !ok {
		t.Fatal("Unfinished job should never expire")
	}

	jm.UpdateJob(job.ID, func(j *Job) { j.State = StateCompleted })
	time.Sleep(100 * time.Millisecond)
	if _, ok := jm.GetJob(job.ID); ok {
		t.Error("Finished job should expire after retention")
	}
}

func TestJobManager_CancelJob(t *testing.T) {
	jm := NewJobManager(time.Minute)
	job := jm.CreateJob(config.Default())
	ctx := jm.attach(context.Background(), job.ID)

	if !jm.CancelJob(job.ID) {
		t.Fatal("Pending job should be cancellable")
	}
	select {
	case <-ctx.Done():
	default:
		t.Error("Job context should be cancelled")
	}

	jm.UpdateJob(job.ID, func(j *Job) { j.State = StateCancelled })
	if jm.CancelJob(job.ID) {
		t.Error("Finished job should not be cancellable")
	}
	if jm.CancelJob("nonexistent") {
		t.Error("Unknown job should not be cancellable")
	}
}

func TestJobState_Finished(t *testing.T) {
	for state, want := range map[JobState]bool{
		StatePending:   false,
		StateRunning:   false,
		StateCompleted: true,
		StateFailed:    true,
		StateCancelled: true,
	} {
		if state.Finished() != want {
			t.Errorf("%s.Finished() = %v, want %v", state, !want, want)
		}
	}
}

func TestEventBroadcaster(t *testing.T) {
	eb := NewEventBroadcaster()

	eb.Broadcast(ProgressEvent{JobID: "a", Steps: 1})
	ch := eb.Subscribe("a")

	select {
	case ev := <-ch:
		if ev.Steps != 1 {
			t.Errorf("Expected replay of last event, got %+v", ev)
		}
	default:
		t.Fatal("New subscriber should receive the last event")
	}

	eb.Broadcast(ProgressEvent{JobID: "a", Steps: 2})
	eb.Broadcast(ProgressEvent{JobID: "b", Steps: 3})
	if ev := <-ch; ev.Steps != 2 {
		t.Errorf("Expected step 2, got %d", ev.Steps)
	}
	if eb.Clients("a") != 1 {
		t.Errorf("Expected one client")
	}

	eb.Unsubscribe("a", ch)
	if _, ok := <-ch; ok {
		t.Error("Channel should be closed after unsubscribe")
	}
	eb.CleanupJob("a")
	if eb.Clients("a") != 0 {
		t.Error("Expected no clients after cleanup")
	}
}
