package main

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// JobRegistry owns every Job record for the lifetime of the process. All
// reads and writes go through the mutex so that concurrent pipeline workers
// and status requests never observe a torn update.
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewJobRegistry() *JobRegistry {
	return &JobRegistry{jobs: make(map[string]*Job)}
}

// Add registers a freshly submitted job.
func (r *JobRegistry) Add(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := job
	r.jobs[job.JobID] = &stored
}

// Get returns a copy of the job, so callers can never mutate registry state.
func (r *JobRegistry) Get(jobID string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns copies of all known jobs, newest first.
func (r *JobRegistry) List() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Apply merges a patch into one job as a single atomic mutation and returns
// the updated record. Status transitions only move forward through the state
// machine, the progress percentage never regresses, and updated_at strictly
// increases on every call.
func (r *JobRegistry) Apply(jobID string, patch JobPatch) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return Job{}, fmt.Errorf("unknown job: %s", jobID)
	}

	if patch.Status != nil {
		next := *patch.Status
		if statusRank[next] < statusRank[job.Status] {
			return Job{}, fmt.Errorf("job %s: refusing backward transition %s -> %s", jobID, job.Status, next)
		}
		if job.Status.Terminal() && next != job.Status {
			return Job{}, fmt.Errorf("job %s: already terminal (%s)", jobID, job.Status)
		}
		job.Status = next
	}
	if patch.Progress != nil {
		snapshot := *patch.Progress
		if job.Progress != nil && snapshot.Percent < job.Progress.Percent {
			snapshot.Percent = job.Progress.Percent
		}
		job.Progress = &snapshot
	}
	if patch.Artifacts != nil {
		job.Artifacts = append([]string(nil), patch.Artifacts...)
	}
	if patch.PosterKey != nil {
		job.PosterKey = *patch.PosterKey
	}
	if patch.ThumbIndexKey != nil {
		job.ThumbIndexKey = *patch.ThumbIndexKey
	}
	if patch.Error != nil {
		job.Error = *patch.Error
	}

	now := time.Now()
	if !now.After(job.UpdatedAt) {
		now = job.UpdatedAt.Add(time.Nanosecond)
	}
	job.UpdatedAt = now

	return *job, nil
}
