package main

import "log"

// JobTracker is the single writer for job state. Every pipeline stage
// boundary funnels through here so registry, Redis mirror, and Kafka events
// always agree on what happened.
type JobTracker struct {
	registry *JobRegistry
	mirror   *ProgressMirror  // optional, nil when REDIS_ADDR is unset
	events   *StatusPublisher // optional, nil when KAFKA_BROKERS is unset
}

func NewJobTracker(registry *JobRegistry, mirror *ProgressMirror, events *StatusPublisher) *JobTracker {
	return &JobTracker{registry: registry, mirror: mirror, events: events}
}

// SinkFor binds the tracker to one job as a ProgressSink.
func (jt *JobTracker) SinkFor(jobID string) ProgressSink {
	return jobSink{tracker: jt, jobID: jobID}
}

type jobSink struct {
	tracker *JobTracker
	jobID   string
}

func (s jobSink) Report(p ProgressSnapshot) {
	s.tracker.ReportProgress(s.jobID, p)
}

// MarkJobProcessing records the pending → processing transition.
func (jt *JobTracker) MarkJobProcessing(jobID string) {
	status := StatusProcessing
	snapshot := downloadingSnapshot()
	job, err := jt.registry.Apply(jobID, JobPatch{Status: &status, Progress: &snapshot})
	if err != nil {
		log.Printf("❌ Failed to mark job processing (job_id=%s): %v", jobID, err)
		return
	}
	if jt.mirror != nil {
		jt.mirror.UpdateProgress(job.JobID, job.Status, snapshot)
	}
	if jt.events != nil {
		jt.events.Publish(StatusEvent{JobID: jobID, Stage: string(StageDownloading), Status: "started"})
	}
}

// ReportProgress replaces the job's progress snapshot.
func (jt *JobTracker) ReportProgress(jobID string, p ProgressSnapshot) {
	job, err := jt.registry.Apply(jobID, JobPatch{Progress: &p})
	if err != nil {
		log.Printf("❌ Failed to update progress (job_id=%s): %v", jobID, err)
		return
	}
	if jt.mirror != nil {
		jt.mirror.UpdateProgress(job.JobID, job.Status, p)
	}
}

// MarkRenditionDone records one finished rendition.
func (jt *JobTracker) MarkRenditionDone(jobID, quality string) {
	if jt.mirror != nil {
		jt.mirror.MarkRenditionDone(jobID, quality)
	}
	if jt.events != nil {
		jt.events.Publish(StatusEvent{JobID: jobID, Stage: string(StageTranscoding), Quality: quality, Status: "done"})
	}
}

// MarkJobDone records the single processing → done transition and returns
// the final job record.
func (jt *JobTracker) MarkJobDone(jobID string, artifacts []string, posterKey, thumbIndexKey string) Job {
	status := StatusDone
	snapshot := doneSnapshot()
	job, err := jt.registry.Apply(jobID, JobPatch{
		Status:        &status,
		Progress:      &snapshot,
		Artifacts:     artifacts,
		PosterKey:     &posterKey,
		ThumbIndexKey: &thumbIndexKey,
	})
	if err != nil {
		log.Printf("❌ Failed to mark job done (job_id=%s): %v", jobID, err)
		job, _ = jt.registry.Get(jobID)
		return job
	}
	if jt.mirror != nil {
		jt.mirror.Finalize(job.JobID, job.Status)
	}
	if jt.events != nil {
		jt.events.Publish(StatusEvent{JobID: jobID, Stage: string(StageDone), Status: "done"})
	}
	log.Printf("✅ Job completed: job_id=%s, artifacts=%d", jobID, len(artifacts))
	return job
}

// MarkJobFailed records the single transition to error and returns the final
// job record. The cause surfaces verbatim in the job's error field.
func (jt *JobTracker) MarkJobFailed(jobID string, cause error) Job {
	status := StatusError
	message := cause.Error()
	job, err := jt.registry.Apply(jobID, JobPatch{Status: &status, Error: &message})
	if err != nil {
		log.Printf("❌ Failed to mark job failed (job_id=%s): %v", jobID, err)
		job, _ = jt.registry.Get(jobID)
		return job
	}
	if jt.mirror != nil {
		jt.mirror.Finalize(job.JobID, job.Status)
	}
	if jt.events != nil {
		jt.events.Publish(StatusEvent{JobID: jobID, Stage: string(StageDone), Status: "failed"})
	}
	log.Printf("❌ Job failed: job_id=%s, error=%s", jobID, message)
	return job
}
