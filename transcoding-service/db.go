package main

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// JobArchive keeps a durable history of jobs in SQLite, surviving process
// restarts. The live registry is still authoritative for in-flight jobs;
// the archive is upserted at submission and again at the terminal state.
type JobArchive struct {
	db *sql.DB
}

// ArchivedJob is the flattened row shape served by the history listing.
type ArchivedJob struct {
	JobID        string `json:"job_id"`
	InputURL     string `json:"input_url"`
	OutputPrefix string `json:"output_prefix"`
	Status       string `json:"status"`
	Artifacts    string `json:"artifacts"`
	Error        string `json:"error"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

func OpenJobArchive(dbPath string) (*JobArchive, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("connect sqlite db: %w", err)
	}

	createTable := `
	CREATE TABLE IF NOT EXISTS transcoding_jobs (
		job_id TEXT PRIMARY KEY,
		input_url TEXT,
		output_prefix TEXT,
		status TEXT,
		artifacts TEXT,
		error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP
	);
	`
	if _, err := db.Exec(createTable); err != nil {
		return nil, fmt.Errorf("create transcoding_jobs table: %w", err)
	}

	log.Printf("✅ Connected to DB: %s", dbPath)
	return &JobArchive{db: db}, nil
}

// Record upserts the current state of a job.
func (a *JobArchive) Record(job Job) error {
	stmt := `
	INSERT INTO transcoding_jobs
	(job_id, input_url, output_prefix, status, artifacts, error, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(job_id) DO UPDATE SET
		status=excluded.status,
		artifacts=excluded.artifacts,
		error=excluded.error,
		updated_at=CURRENT_TIMESTAMP;
	`
	_, err := a.db.Exec(stmt,
		job.JobID,
		job.InputURL,
		job.OutputPrefix,
		string(job.Status),
		strings.Join(job.Artifacts, ","),
		job.Error,
		job.CreatedAt,
	)
	if err != nil {
		log.Printf("⚠️ Failed to archive job (job_id=%s): %v", job.JobID, err)
	}
	return err
}

// ListRecent returns up to limit archived jobs, newest first.
func (a *JobArchive) ListRecent(limit int) ([]ArchivedJob, error) {
	rows, err := a.db.Query(`
		SELECT job_id, input_url, output_prefix, status, artifacts, error, created_at, updated_at
		FROM transcoding_jobs
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []ArchivedJob
	for rows.Next() {
		var job ArchivedJob
		var updatedAt sql.NullString
		err := rows.Scan(
			&job.JobID,
			&job.InputURL,
			&job.OutputPrefix,
			&job.Status,
			&job.Artifacts,
			&job.Error,
			&job.CreatedAt,
			&updatedAt,
		)
		if err != nil {
			log.Printf("⚠️ Scan error: %v", err)
			continue
		}
		job.UpdatedAt = updatedAt.String
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (a *JobArchive) Close() error {
	return a.db.Close()
}
