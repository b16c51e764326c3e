package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// server owns the HTTP surface: job submission, status queries, and the
// history listing. Submission only enqueues; the worker pool does the rest,
// so handlers never block on pipeline work.
type server struct {
	registry *JobRegistry
	archive  *JobArchive     // optional
	mirror   *ProgressMirror // optional
	queue    chan Job
}

func newServer(registry *JobRegistry, archive *JobArchive, mirror *ProgressMirror, queue chan Job) *server {
	return &server{registry: registry, archive: archive, mirror: mirror, queue: queue}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/transcode", s.handleTranscodeRequest)
	mux.HandleFunc("/jobs", s.handleListJobs)
	mux.HandleFunc("/jobs/", s.handleJobByID)
	return mux
}

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/healthz" {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OpenMediaTranscoder is up")
}

func (s *server) handleTranscodeRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST allowed", http.StatusMethodNotAllowed)
		return
	}

	var req TranscodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ JSON decode error: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.InputURL == "" {
		http.Error(w, "Missing required field: input_url", http.StatusBadRequest)
		return
	}

	jobID := uuid.New().String()
	prefix := req.OutputPrefix
	if prefix == "" {
		prefix = fmt.Sprintf("output/%s/", jobID)
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	now := time.Now()
	job := Job{
		JobID:        jobID,
		InputURL:     req.InputURL,
		OutputPrefix: prefix,
		CallbackURL:  req.CallbackURL,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.registry.Add(job)
	if s.mirror != nil {
		s.mirror.JobSubmitted(job)
	}
	if s.archive != nil {
		_ = s.archive.Record(job)
	}

	select {
	case s.queue <- job:
	default:
		http.Error(w, "Job queue is full", http.StatusServiceUnavailable)
		return
	}

	log.Printf("🆕 New transcode job: %s", jobID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(job)
}

func (s *server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Only GET allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if r.URL.Query().Get("history") == "1" && s.archive != nil {
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}
		jobs, err := s.archive.ListRecent(limit)
		if err != nil {
			log.Printf("❌ Failed to fetch job history: %v", err)
			http.Error(w, "Failed to fetch jobs", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(jobs)
		return
	}

	json.NewEncoder(w).Encode(s.registry.List())
}

func (s *server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Only GET allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if jobID == "" || strings.Contains(jobID, "/") {
		http.NotFound(w, r)
		return
	}

	job, ok := s.registry.Get(jobID)
	if !ok {
		http.Error(w, "Unknown job", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}
