package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
)

// Pipeline sequences one job through download → transcode → thumbnails →
// upload. Renditions run strictly one at a time: ffmpeg does not share CPU
// and memory gracefully, so per-job parallelism is deliberately off the
// table. Jobs themselves run concurrently on the worker pool.
type Pipeline struct {
	Engine            Engine
	Store             BlobStore
	Notifier          Notifier
	Tracker           *JobTracker
	Archive           *JobArchive // optional
	Ladder            []QualityProfile
	SegmentDuration   int
	ThumbnailInterval int
	Client            *http.Client
	ScratchRoot       string // "" means the system temp dir
}

// Run drives the job to exactly one terminal state and fires the notifier
// exactly once. Any stage error lands the job in StatusError with the cause
// recorded; nothing escapes to crash the worker.
func (p *Pipeline) Run(ctx context.Context, job Job) {
	final, err := p.process(ctx, job)
	if err != nil {
		final = p.Tracker.MarkJobFailed(job.JobID, err)
	}
	if p.Archive != nil {
		_ = p.Archive.Record(final)
	}
	if p.Notifier != nil {
		p.Notifier.Notify(final)
	}
}

// process runs every stage and returns the done-marked job on success.
func (p *Pipeline) process(ctx context.Context, job Job) (Job, error) {
	p.Tracker.MarkJobProcessing(job.JobID)
	sink := p.Tracker.SinkFor(job.JobID)

	// Job-private scratch area, removed on every exit path.
	scratch, err := os.MkdirTemp(p.ScratchRoot, "transcode-"+job.JobID+"-")
	if err != nil {
		return Job{}, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	inputPath, err := p.fetchSource(ctx, job.InputURL, scratch)
	if err != nil {
		return Job{}, fmt.Errorf("fetch source: %w", err)
	}
	sink.Report(downloadedSnapshot())

	meta, err := p.Engine.Probe(ctx, inputPath)
	if err != nil {
		return Job{}, fmt.Errorf("probe source: %w", err)
	}
	log.Printf("🔎 Probed source: job_id=%s, %dx%d, %.2fs", job.JobID, meta.Width, meta.Height, meta.Duration)

	profiles := SelectProfiles(meta.Height, p.Ladder)

	var artifacts []RenditionArtifact
	var completed []string
	for _, profile := range profiles {
		sink.Report(transcodingSnapshot(profile.Name, completed, len(profiles)))

		outputDir := filepath.Join(scratch, profile.Name)
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return Job{}, fmt.Errorf("prepare rendition dir %s: %w", profile.Name, err)
		}
		spec := EncodeSpec{
			InputPath:       inputPath,
			Profile:         profile,
			SegmentDuration: p.SegmentDuration,
			OutputDir:       outputDir,
		}
		if err := p.Engine.Transcode(ctx, spec); err != nil {
			return Job{}, fmt.Errorf("transcode %s: %w", profile.Name, err)
		}

		rendition, err := collectRendition(outputDir, job.OutputPrefix, profile.Name)
		if err != nil {
			return Job{}, fmt.Errorf("collect %s artifacts: %w", profile.Name, err)
		}
		artifacts = append(artifacts, rendition...)

		completed = append(completed, profile.Name)
		p.Tracker.MarkRenditionDone(job.JobID, profile.Name)
	}

	artifacts = append(artifacts, RenditionArtifact{
		Key:         job.OutputPrefix + "master.m3u8",
		Data:        BuildMasterPlaylist(profiles),
		ContentType: contentTypeForKey("master.m3u8"),
	})

	sink.Report(thumbnailsSnapshot(completed, len(profiles)))
	thumbs := GenerateThumbnails(ctx, p.Engine, inputPath, scratch, meta, p.ThumbnailInterval)

	var posterKey, thumbIndexKey string
	if thumbs.Poster != nil {
		posterKey = job.OutputPrefix + "poster.jpg"
		artifacts = append(artifacts, RenditionArtifact{Key: posterKey, Data: thumbs.Poster, ContentType: "image/jpeg"})
	}
	if thumbs.Sprite != nil {
		artifacts = append(artifacts, RenditionArtifact{Key: job.OutputPrefix + "sprites.jpg", Data: thumbs.Sprite, ContentType: "image/jpeg"})
	}
	if thumbs.Index != nil {
		thumbIndexKey = job.OutputPrefix + "thumbnails.vtt"
		artifacts = append(artifacts, RenditionArtifact{Key: thumbIndexKey, Data: thumbs.Index, ContentType: "text/vtt"})
	}

	sink.Report(uploadingSnapshot())
	keys := make([]string, 0, len(artifacts))
	for _, artifact := range artifacts {
		if err := p.Store.Put(ctx, artifact.Key, artifact.Data, artifact.ContentType); err != nil {
			return Job{}, fmt.Errorf("upload %s: %w", artifact.Key, err)
		}
		keys = append(keys, artifact.Key)
	}

	return p.Tracker.MarkJobDone(job.JobID, keys, posterKey, thumbIndexKey), nil
}

// fetchSource downloads the input into the scratch area and returns its
// local path.
func (p *Pipeline) fetchSource(ctx context.Context, inputURL, scratch string) (string, error) {
	log.Printf("🌐 Downloading input from: %s", inputURL)
	localPath := filepath.Join(scratch, "source_input.mp4")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, inputURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch input: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	outFile, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, resp.Body); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	log.Printf("📥 Downloaded to: %s", localPath)
	return localPath, nil
}

// collectRendition reads the per-rendition playlist and segments from the
// scratch area into in-memory artifacts, keyed under the job prefix.
func collectRendition(outputDir, prefix, name string) ([]RenditionArtifact, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	hasPlaylist := false
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if entry.Name() == "playlist.m3u8" {
			hasPlaylist = true
		}
		names = append(names, entry.Name())
	}
	if !hasPlaylist {
		return nil, fmt.Errorf("engine produced no playlist in %s", outputDir)
	}
	sort.Strings(names)

	artifacts := make([]RenditionArtifact, 0, len(names))
	for _, fileName := range names {
		data, err := os.ReadFile(filepath.Join(outputDir, fileName))
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, RenditionArtifact{
			Key:         prefix + name + "/" + fileName,
			Data:        data,
			ContentType: contentTypeForKey(fileName),
		})
	}
	return artifacts, nil
}
