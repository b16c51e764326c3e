package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Sprite sheet geometry. Frames tile into a 10-column grid at a fixed
// preview size; the poster gets a larger fixed display width.
const (
	spriteColumns = 10
	tileWidth     = 160
	tileHeight    = 90
	posterWidth   = 640
)

// ThumbnailSet holds whichever thumbnail artifacts were produced. Any field
// may be nil; poster and sprite/cue failures degrade independently.
type ThumbnailSet struct {
	Poster []byte
	Sprite []byte
	Index  []byte
}

// GenerateThumbnails derives a poster frame and a scrub sprite sheet plus
// its cue index from the source. Poster or sprite failures are logged and
// skipped, never fatal: the job can still complete with partial thumbnails.
// Sources shorter than one interval get a poster only.
func GenerateThumbnails(ctx context.Context, engine Engine, inputPath, scratchDir string, meta SourceMeta, interval int) ThumbnailSet {
	var set ThumbnailSet

	// Sample at 10% of duration, at least one second in, so the poster is a
	// representative frame even for very short media.
	posterAt := math.Max(1, meta.Duration*0.1)
	posterPath := filepath.Join(scratchDir, "poster.jpg")
	if err := engine.ExtractFrame(ctx, inputPath, posterAt, posterWidth, posterPath); err != nil {
		log.Printf("⚠️ Poster generation failed, continuing without poster: %v", err)
	} else if data, err := os.ReadFile(posterPath); err != nil {
		log.Printf("⚠️ Poster read failed, continuing without poster: %v", err)
	} else {
		set.Poster = data
	}

	count := int(math.Floor(meta.Duration / float64(interval)))
	if count == 0 {
		log.Printf("ℹ️ Source shorter than thumbnail interval (%ds), skipping scrub thumbnails", interval)
		return set
	}

	spritePath := filepath.Join(scratchDir, "sprites.jpg")
	if err := engine.SpriteSheet(ctx, inputPath, interval, count, spriteColumns, tileWidth, tileHeight, spritePath); err != nil {
		log.Printf("⚠️ Sprite sheet generation failed, continuing without scrub thumbnails: %v", err)
		return set
	}
	data, err := os.ReadFile(spritePath)
	if err != nil {
		log.Printf("⚠️ Sprite sheet read failed, continuing without scrub thumbnails: %v", err)
		return set
	}
	set.Sprite = data
	set.Index = buildThumbnailIndex(count, interval)
	return set
}

// buildThumbnailIndex writes the WebVTT cue sidecar: one cue per sampled
// frame, mapping [i*interval, (i+1)*interval) to its sprite sub-region.
func buildThumbnailIndex(count, interval int) []byte {
	var b strings.Builder
	b.WriteString("WEBVTT\n")
	for i := 0; i < count; i++ {
		col := i % spriteColumns
		row := i / spriteColumns
		fmt.Fprintf(&b, "\n%s --> %s\n", formatCueTime(i*interval), formatCueTime((i+1)*interval))
		fmt.Fprintf(&b, "sprites.jpg#xywh=%d,%d,%d,%d\n", col*tileWidth, row*tileHeight, tileWidth, tileHeight)
	}
	return []byte(b.String())
}

// formatCueTime renders seconds as zero-padded HH:MM:SS.mmm.
func formatCueTime(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d.000", h, m, s)
}
