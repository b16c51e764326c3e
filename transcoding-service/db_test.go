package main

import (
	"testing"
	"time"
)

func TestJobArchiveRoundTrip(t *testing.T) {
	archive, err := OpenJobArchive(":memory:")
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer archive.Close()

	job := newTestJob("arch-1")
	if err := archive.Record(job); err != nil {
		t.Fatalf("record submission: %v", err)
	}

	// Terminal upsert overwrites the earlier row.
	job.Status = StatusDone
	job.Artifacts = []string{"output/arch-1/master.m3u8", "output/arch-1/poster.jpg"}
	job.UpdatedAt = time.Now()
	if err := archive.Record(job); err != nil {
		t.Fatalf("record terminal: %v", err)
	}

	rows, err := archive.ListRecent(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	got := rows[0]
	if got.JobID != "arch-1" || got.Status != string(StatusDone) {
		t.Errorf("row = %+v", got)
	}
	if got.Artifacts != "output/arch-1/master.m3u8,output/arch-1/poster.jpg" {
		t.Errorf("artifacts = %q", got.Artifacts)
	}
}

func TestJobArchiveListLimit(t *testing.T) {
	archive, err := OpenJobArchive(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer archive.Close()

	for _, id := range []string{"a", "b", "c"} {
		if err := archive.Record(newTestJob(id)); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := archive.ListRecent(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("limit ignored: got %d rows", len(rows))
	}
}
