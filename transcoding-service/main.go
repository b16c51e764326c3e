package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
)

func main() {
	log.Println("🚀 Starting OpenMediaTranscoder service...")

	addr := envOrDefault("HTTP_ADDR", ":8080")
	storageDir := envOrDefault("STORAGE_DIR", "/segments")
	segmentDuration := envIntOrDefault("SEGMENT_DURATION", 4)
	thumbnailInterval := envIntOrDefault("THUMBNAIL_INTERVAL", 10)
	workerCount := envIntOrDefault("WORKER_COUNT", 2)

	registry := NewJobRegistry()

	var mirror *ProgressMirror
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		var err error
		mirror, err = NewProgressMirror(redisAddr)
		if err != nil {
			log.Fatalf("❌ Failed to connect to Redis: %v", err)
		}
	}

	var events *StatusPublisher
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		events = NewStatusPublisher(brokers)
		defer events.Close()
	}

	var archive *JobArchive
	if dbPath := os.Getenv("SQLITE_DB_PATH"); dbPath != "" {
		var err error
		archive, err = OpenJobArchive(dbPath)
		if err != nil {
			log.Fatalf("❌ Failed to open DB: %v", err)
		}
		defer archive.Close()
	}

	tracker := NewJobTracker(registry, mirror, events)
	engine := NewFFmpegEngine(os.Getenv("FFMPEG_BIN"), os.Getenv("FFPROBE_BIN"))
	store := &DiskStore{Root: storageDir}
	notifier := NewWebhookNotifier(os.Getenv("WEBHOOK_SECRET"))

	pipeline := &Pipeline{
		Engine:            engine,
		Store:             store,
		Notifier:          notifier,
		Tracker:           tracker,
		Archive:           archive,
		Ladder:            defaultLadder,
		SegmentDuration:   segmentDuration,
		ThumbnailInterval: thumbnailInterval,
		Client:            &http.Client{Timeout: 10 * time.Minute},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue := make(chan Job, 64)
	for i := 0; i < workerCount; i++ {
		go func(workerID int) {
			for job := range queue {
				log.Printf("👷 Worker %d picked up job %s", workerID, job.JobID)
				pipeline.Run(ctx, job)
			}
		}(i)
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: newServer(registry, archive, mirror, queue).routes(),
	}

	go func() {
		log.Printf("🚀 Transcoder API running on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("🛑 Graceful shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
