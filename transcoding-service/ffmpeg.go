package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// EncodeSpec describes one rendition encode. The engine writes
// playlist.m3u8 plus numbered segments into OutputDir.
type EncodeSpec struct {
	InputPath       string
	Profile         QualityProfile
	SegmentDuration int
	OutputDir       string
}

// Engine is the subprocess transcoding engine the pipeline drives. The
// production implementation shells out to ffmpeg/ffprobe; tests swap in a
// fake.
type Engine interface {
	Probe(ctx context.Context, inputPath string) (SourceMeta, error)
	Transcode(ctx context.Context, spec EncodeSpec) error
	ExtractFrame(ctx context.Context, inputPath string, at float64, width int, outputPath string) error
	SpriteSheet(ctx context.Context, inputPath string, interval, count, columns, tileWidth, tileHeight int, outputPath string) error
}

// FFmpegEngine invokes ffmpeg and ffprobe binaries.
type FFmpegEngine struct {
	FFmpegBin  string
	FFprobeBin string
}

func NewFFmpegEngine(ffmpegBin, ffprobeBin string) *FFmpegEngine {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	return &FFmpegEngine{FFmpegBin: ffmpegBin, FFprobeBin: ffprobeBin}
}

// Probe returns the source dimensions and duration via a single ffprobe
// JSON call.
func (e *FFmpegEngine) Probe(ctx context.Context, inputPath string) (SourceMeta, error) {
	cmd := exec.CommandContext(ctx, e.FFprobeBin,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-show_entries", "format=duration",
		"-print_format", "json",
		inputPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return SourceMeta{}, fmt.Errorf("ffprobe %q: %w", inputPath, err)
	}
	return parseProbeOutput(out)
}

// ffprobe JSON wire types. ffprobe reports duration as a string.
type probeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbeOutput(data []byte) (SourceMeta, error) {
	var raw probeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return SourceMeta{}, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	if len(raw.Streams) == 0 || raw.Streams[0].Width <= 0 || raw.Streams[0].Height <= 0 {
		return SourceMeta{}, fmt.Errorf("no usable video stream in probe output")
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(raw.Format.Duration), 64)
	if err != nil || duration <= 0 {
		return SourceMeta{}, fmt.Errorf("source duration undeterminable (%q)", raw.Format.Duration)
	}
	return SourceMeta{
		Width:    raw.Streams[0].Width,
		Height:   raw.Streams[0].Height,
		Duration: duration,
	}, nil
}

// Transcode encodes one rendition into fixed-duration HLS segments.
func (e *FFmpegEngine) Transcode(ctx context.Context, spec EncodeSpec) error {
	args := buildTranscodeArgs(spec)
	cmd := exec.CommandContext(ctx, e.FFmpegBin, args...)

	log.Printf("⚙️ Running FFmpeg: %s", cmd.String())

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg %s failed: %w: %s", spec.Profile.Name, err, diagnosticTail(out))
	}
	return nil
}

// buildTranscodeArgs constructs the full ffmpeg argument list for one
// rendition. Height is forced to the profile target; scale=-2 derives an
// even width preserving the source aspect ratio. Preset, profile, and level
// are fixed so output size and decoder compatibility stay predictable.
func buildTranscodeArgs(spec EncodeSpec) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", spec.InputPath,
		"-vf", fmt.Sprintf("scale=-2:%d", spec.Profile.Height),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-profile:v", "main",
		"-level", "4.0",
		"-b:v", spec.Profile.VideoBitrate,
		"-c:a", "aac",
		"-b:a", spec.Profile.AudioBitrate,
		"-ac", "2",
		"-f", "hls",
		"-hls_time", strconv.Itoa(spec.SegmentDuration),
		"-hls_list_size", "0",
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(spec.OutputDir, "segment_%03d.ts"),
		filepath.Join(spec.OutputDir, "playlist.m3u8"),
	}
}

// ExtractFrame grabs one frame at the given offset, scaled to width.
func (e *FFmpegEngine) ExtractFrame(ctx context.Context, inputPath string, at float64, width int, outputPath string) error {
	args := buildFrameArgs(inputPath, at, width, outputPath)
	cmd := exec.CommandContext(ctx, e.FFmpegBin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg poster frame failed: %w: %s", err, diagnosticTail(out))
	}
	return nil
}

func buildFrameArgs(inputPath string, at float64, width int, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-ss", strconv.FormatFloat(at, 'f', 3, 64),
		"-i", inputPath,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-2", width),
		"-q:v", "2",
		outputPath,
	}
}

// SpriteSheet samples one frame per interval and tiles them into a
// columns-wide grid, chronological order left to right, top to bottom.
func (e *FFmpegEngine) SpriteSheet(ctx context.Context, inputPath string, interval, count, columns, tileWidth, tileHeight int, outputPath string) error {
	args := buildSpriteArgs(inputPath, interval, count, columns, tileWidth, tileHeight, outputPath)
	cmd := exec.CommandContext(ctx, e.FFmpegBin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg sprite sheet failed: %w: %s", err, diagnosticTail(out))
	}
	return nil
}

func buildSpriteArgs(inputPath string, interval, count, columns, tileWidth, tileHeight int, outputPath string) []string {
	rows := (count + columns - 1) / columns
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", inputPath,
		"-vf", fmt.Sprintf("fps=1/%d,scale=%d:%d,tile=%dx%d", interval, tileWidth, tileHeight, columns, rows),
		"-frames:v", "1",
		"-q:v", "3",
		outputPath,
	}
}

// diagnosticTail keeps the last chunk of engine stderr so job error
// messages stay readable.
func diagnosticTail(out []byte) string {
	const max = 512
	s := strings.TrimSpace(string(out))
	if len(s) > max {
		s = "..." + s[len(s)-max:]
	}
	if s == "" {
		s = "(no diagnostic output)"
	}
	return s
}
