package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProgressMirror mirrors live job progress into a Redis hash per job so
// other services can poll status without hitting this process. Purely a
// side channel: the in-memory registry stays the source of truth.
type ProgressMirror struct {
	client *redis.Client
	ctx    context.Context
}

func NewProgressMirror(redisAddr string) (*ProgressMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Println("✅ Connected to Redis")
	return &ProgressMirror{client: client, ctx: ctx}, nil
}

func jobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

// JobSubmitted seeds the hash when a job enters the registry.
func (m *ProgressMirror) JobSubmitted(job Job) {
	err := m.client.HSet(m.ctx, jobKey(job.JobID),
		"status", string(job.Status),
		"input_url", job.InputURL,
		"output_prefix", job.OutputPrefix,
		"created_at", job.CreatedAt.Format(time.RFC3339),
	).Err()
	if err != nil {
		log.Printf("⚠️ Redis HSET failed (job_id=%s): %v", job.JobID, err)
	}
}

// UpdateProgress writes the latest stage/percent fields.
func (m *ProgressMirror) UpdateProgress(jobID string, status JobStatus, p ProgressSnapshot) {
	err := m.client.HSet(m.ctx, jobKey(jobID),
		"status", string(status),
		"stage", string(p.Stage),
		"percent", strconv.Itoa(p.Percent),
		"message", p.Message,
		"updated_at", time.Now().Format(time.RFC3339),
	).Err()
	if err != nil {
		log.Printf("⚠️ Redis HSET failed (job_id=%s): %v", jobID, err)
	}
}

// MarkRenditionDone records one finished rendition as its own hash field.
func (m *ProgressMirror) MarkRenditionDone(jobID, quality string) {
	if err := m.client.HSet(m.ctx, jobKey(jobID), quality, "done").Err(); err != nil {
		log.Printf("⚠️ Redis HSET failed (job_id=%s): %v", jobID, err)
	}
}

// Finalize stamps the terminal status and lets the hash expire.
func (m *ProgressMirror) Finalize(jobID string, status JobStatus) {
	key := jobKey(jobID)
	err := m.client.HSet(m.ctx, key,
		"status", string(status),
		"completed_at", time.Now().Format(time.RFC3339),
	).Err()
	if err != nil {
		log.Printf("⚠️ Redis HSET failed (job_id=%s): %v", jobID, err)
		return
	}
	m.client.Expire(m.ctx, key, 24*time.Hour)
}
