package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// fakeEngine stands in for ffmpeg/ffprobe. Transcode writes a plausible
// rendition layout into the scratch area; failQuality simulates a non-zero
// engine exit for one rung.
type fakeEngine struct {
	meta        SourceMeta
	probeErr    error
	failQuality string
	posterErr   error
	spriteErr   error

	mu         sync.Mutex
	transcoded []string
}

func (e *fakeEngine) Probe(ctx context.Context, inputPath string) (SourceMeta, error) {
	if e.probeErr != nil {
		return SourceMeta{}, e.probeErr
	}
	return e.meta, nil
}

func (e *fakeEngine) Transcode(ctx context.Context, spec EncodeSpec) error {
	if spec.Profile.Name == e.failQuality {
		return fmt.Errorf("ffmpeg %s failed: exit status 1: Conversion failed! broken input stream", spec.Profile.Name)
	}
	e.mu.Lock()
	e.transcoded = append(e.transcoded, spec.Profile.Name)
	e.mu.Unlock()

	files := map[string]string{
		"playlist.m3u8":  "#EXTM3U\nsegment_000.ts\nsegment_001.ts\n",
		"segment_000.ts": "ts-data-0",
		"segment_001.ts": "ts-data-1",
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(spec.OutputDir, name), []byte(data), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (e *fakeEngine) ExtractFrame(ctx context.Context, inputPath string, at float64, width int, outputPath string) error {
	if e.posterErr != nil {
		return e.posterErr
	}
	return os.WriteFile(outputPath, []byte("jpeg-poster"), 0o644)
}

func (e *fakeEngine) SpriteSheet(ctx context.Context, inputPath string, interval, count, columns, tileWidth, tileHeight int, outputPath string) error {
	if e.spriteErr != nil {
		return e.spriteErr
	}
	return os.WriteFile(outputPath, []byte("jpeg-sprites"), 0o644)
}

// memStore records uploads in memory.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (s *memStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	s.types[key] = contentType
	return nil
}

func (s *memStore) get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return data, ok
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// countingNotifier records every terminal notification.
type countingNotifier struct {
	mu   sync.Mutex
	jobs []Job
}

func (n *countingNotifier) Notify(job Job) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, job)
}

func (n *countingNotifier) all() []Job {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Job(nil), n.jobs...)
}

func newSourceServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake-video-bytes"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestPipeline(t *testing.T, engine Engine, store BlobStore, notifier Notifier) (*Pipeline, *JobRegistry) {
	t.Helper()
	registry := NewJobRegistry()
	return &Pipeline{
		Engine:            engine,
		Store:             store,
		Notifier:          notifier,
		Tracker:           NewJobTracker(registry, nil, nil),
		Ladder:            defaultLadder,
		SegmentDuration:   4,
		ThumbnailInterval: 10,
		ScratchRoot:       t.TempDir(),
	}, registry
}

func TestPipeline1080pSourceSelectsFourRenditions(t *testing.T) {
	source := newSourceServer(t)
	engine := &fakeEngine{meta: SourceMeta{Width: 1920, Height: 1080, Duration: 60}}
	store := newMemStore()
	notifier := &countingNotifier{}
	pipeline, registry := newTestPipeline(t, engine, store, notifier)

	job := newTestJob("job-a")
	job.InputURL = source.URL
	registry.Add(job)

	pipeline.Run(context.Background(), job)

	final, _ := registry.Get("job-a")
	if final.Status != StatusDone {
		t.Fatalf("status = %s (error=%q), want done", final.Status, final.Error)
	}
	if final.Error != "" {
		t.Errorf("done job must not carry an error message, got %q", final.Error)
	}
	if final.Progress == nil || final.Progress.Percent != 100 {
		t.Errorf("final progress should be exactly 100, got %+v", final.Progress)
	}

	wantRenditions := []string{"360p", "480p", "720p", "1080p"}
	if strings.Join(engine.transcoded, ",") != strings.Join(wantRenditions, ",") {
		t.Errorf("transcoded %v, want %v", engine.transcoded, wantRenditions)
	}

	master, ok := store.get("output/job-a/master.m3u8")
	if !ok {
		t.Fatal("master playlist not uploaded")
	}
	if n := strings.Count(string(master), "#EXT-X-STREAM-INF"); n != 4 {
		t.Errorf("master lists %d stream-info entries, want 4:\n%s", n, master)
	}
	if idx1080 := strings.Index(string(master), "1080p/"); idx1080 < strings.Index(string(master), "360p/") {
		t.Errorf("master entries not in ascending order:\n%s", master)
	}

	for _, key := range []string{
		"output/job-a/360p/playlist.m3u8",
		"output/job-a/1080p/segment_001.ts",
		"output/job-a/poster.jpg",
		"output/job-a/sprites.jpg",
		"output/job-a/thumbnails.vtt",
	} {
		if _, ok := store.get(key); !ok {
			t.Errorf("missing uploaded artifact %s", key)
		}
	}

	if final.PosterKey != "output/job-a/poster.jpg" {
		t.Errorf("poster key = %q", final.PosterKey)
	}
	if final.ThumbIndexKey != "output/job-a/thumbnails.vtt" {
		t.Errorf("thumbnail index key = %q", final.ThumbIndexKey)
	}
	if len(final.Artifacts) != store.count() {
		t.Errorf("job lists %d artifacts, store has %d", len(final.Artifacts), store.count())
	}
}

func TestPipelineShortSourceSkipsScrubThumbnails(t *testing.T) {
	source := newSourceServer(t)
	engine := &fakeEngine{meta: SourceMeta{Width: 640, Height: 360, Duration: 3}}
	store := newMemStore()
	pipeline, registry := newTestPipeline(t, engine, store, &countingNotifier{})

	job := newTestJob("job-b")
	job.InputURL = source.URL
	registry.Add(job)

	pipeline.Run(context.Background(), job)

	final, _ := registry.Get("job-b")
	if final.Status != StatusDone {
		t.Fatalf("status = %s (error=%q), want done", final.Status, final.Error)
	}
	if _, ok := store.get("output/job-b/poster.jpg"); !ok {
		t.Error("poster should still be produced for short sources")
	}
	if _, ok := store.get("output/job-b/sprites.jpg"); ok {
		t.Error("sprite sheet should be absent when duration < interval")
	}
	if _, ok := store.get("output/job-b/thumbnails.vtt"); ok {
		t.Error("cue sidecar should be absent when duration < interval")
	}
	if final.ThumbIndexKey != "" {
		t.Errorf("thumbnail index key should be empty, got %q", final.ThumbIndexKey)
	}
}

func TestPipelineEncodeFailureFailsWholeJob(t *testing.T) {
	source := newSourceServer(t)
	engine := &fakeEngine{
		meta:        SourceMeta{Width: 1920, Height: 1080, Duration: 60},
		failQuality: "720p",
	}
	store := newMemStore()
	notifier := &countingNotifier{}
	pipeline, registry := newTestPipeline(t, engine, store, notifier)

	job := newTestJob("job-c")
	job.InputURL = source.URL
	registry.Add(job)

	pipeline.Run(context.Background(), job)

	final, _ := registry.Get("job-c")
	if final.Status != StatusError {
		t.Fatalf("status = %s, want error", final.Status)
	}
	if !strings.Contains(final.Error, "broken input stream") {
		t.Errorf("error should carry the engine diagnostic, got %q", final.Error)
	}
	if store.count() != 0 {
		t.Errorf("no artifacts may be uploaded on encode failure, store has %d", store.count())
	}
	if got := notifier.all(); len(got) != 1 || got[0].Status != StatusError {
		t.Errorf("expected exactly one failure notification, got %d", len(got))
	}
}

func TestPipelineNotifiesExactlyOnceOnSuccess(t *testing.T) {
	source := newSourceServer(t)
	engine := &fakeEngine{meta: SourceMeta{Width: 1280, Height: 720, Duration: 30}}
	notifier := &countingNotifier{}
	pipeline, registry := newTestPipeline(t, engine, newMemStore(), notifier)

	job := newTestJob("job-d")
	job.InputURL = source.URL
	job.CallbackURL = "http://callback.example.com/hook"
	registry.Add(job)

	pipeline.Run(context.Background(), job)

	got := notifier.all()
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", len(got))
	}
	if got[0].Status != StatusDone {
		t.Errorf("notified status = %s, want done", got[0].Status)
	}
	if got[0].CallbackURL != job.CallbackURL {
		t.Errorf("notification lost the callback target")
	}
}

func TestPipelineDeliversSignedWebhook(t *testing.T) {
	source := newSourceServer(t)
	receiver, received := newWebhookReceiver(t)

	engine := &fakeEngine{meta: SourceMeta{Width: 1280, Height: 720, Duration: 30}}
	notifier := NewWebhookNotifier("topsecret")
	pipeline, registry := newTestPipeline(t, engine, newMemStore(), notifier)

	job := newTestJob("job-wh")
	job.InputURL = source.URL
	job.CallbackURL = receiver.URL
	registry.Add(job)

	pipeline.Run(context.Background(), job)

	got := received()
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 webhook, got %d", len(got))
	}
	if !verifySignature("topsecret", got[0].body, got[0].signature) {
		t.Error("delivered payload does not verify")
	}
	var payload webhookPayload
	if err := json.Unmarshal(got[0].body, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Event != EventJobCompleted {
		t.Errorf("event = %q, want %q", payload.Event, EventJobCompleted)
	}
	if payload.Timestamp == "" {
		t.Error("timestamp field missing")
	}
	if len(payload.Job.Artifacts) == 0 {
		t.Error("payload should carry produced artifact keys")
	}
}

func TestPipelineFetchFailureFailsJob(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(source.Close)

	engine := &fakeEngine{meta: SourceMeta{Width: 1280, Height: 720, Duration: 30}}
	store := newMemStore()
	pipeline, registry := newTestPipeline(t, engine, store, &countingNotifier{})

	job := newTestJob("job-e")
	job.InputURL = source.URL
	registry.Add(job)

	pipeline.Run(context.Background(), job)

	final, _ := registry.Get("job-e")
	if final.Status != StatusError {
		t.Fatalf("status = %s, want error", final.Status)
	}
	if !strings.Contains(final.Error, "unexpected status code: 404") {
		t.Errorf("error = %q", final.Error)
	}
	if store.count() != 0 {
		t.Error("nothing may be uploaded after a fetch failure")
	}
}

func TestPipelinePosterFailureIsNonFatal(t *testing.T) {
	source := newSourceServer(t)
	engine := &fakeEngine{
		meta:      SourceMeta{Width: 1280, Height: 720, Duration: 45},
		posterErr: fmt.Errorf("ffmpeg poster frame failed: exit status 1"),
	}
	store := newMemStore()
	pipeline, registry := newTestPipeline(t, engine, store, &countingNotifier{})

	job := newTestJob("job-f")
	job.InputURL = source.URL
	registry.Add(job)

	pipeline.Run(context.Background(), job)

	final, _ := registry.Get("job-f")
	if final.Status != StatusDone {
		t.Fatalf("poster failure must not fail the job, status = %s (error=%q)", final.Status, final.Error)
	}
	if final.PosterKey != "" {
		t.Errorf("poster key should be empty, got %q", final.PosterKey)
	}
	if _, ok := store.get("output/job-f/sprites.jpg"); !ok {
		t.Error("sprite sheet should still be produced")
	}
}

func TestPipelineRemovesScratchArea(t *testing.T) {
	source := newSourceServer(t)
	engine := &fakeEngine{
		meta:        SourceMeta{Width: 1920, Height: 1080, Duration: 60},
		failQuality: "480p",
	}
	scratchRoot := t.TempDir()
	registry := NewJobRegistry()
	pipeline := &Pipeline{
		Engine:            engine,
		Store:             newMemStore(),
		Tracker:           NewJobTracker(registry, nil, nil),
		Ladder:            defaultLadder,
		SegmentDuration:   4,
		ThumbnailInterval: 10,
		ScratchRoot:       scratchRoot,
	}

	job := newTestJob("job-g")
	job.InputURL = source.URL
	registry.Add(job)

	pipeline.Run(context.Background(), job)

	entries, err := os.ReadDir(scratchRoot)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch area not cleaned up after failure: %d entries left", len(entries))
	}
}
