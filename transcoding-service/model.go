package main

import "time"

// JobStatus is the externally visible lifecycle state of a transcode job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusDone       JobStatus = "done"
	StatusError      JobStatus = "error"
)

// statusRank orders the state machine. Transitions never move backward.
var statusRank = map[JobStatus]int{
	StatusPending:    0,
	StatusProcessing: 1,
	StatusDone:       2,
	StatusError:      2,
}

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Stage names the pipeline step a processing job is currently in.
type Stage string

const (
	StageDownloading Stage = "downloading"
	StageTranscoding Stage = "transcoding"
	StageThumbnails  Stage = "thumbnails"
	StageUploading   Stage = "uploading"
	StageDone        Stage = "done"
)

// ProgressSnapshot is replaced wholesale on every update; the registry keeps
// the percentage from regressing between snapshots.
type ProgressSnapshot struct {
	Stage              Stage    `json:"stage"`
	CurrentQuality     string   `json:"current_quality,omitempty"`
	CompletedQualities []string `json:"completed_qualities,omitempty"`
	TotalQualities     int      `json:"total_qualities,omitempty"`
	Percent            int      `json:"percent"`
	Message            string   `json:"message"`
}

// Job is the full record returned by the API.
type Job struct {
	JobID         string            `json:"job_id"`
	InputURL      string            `json:"input_url"`
	OutputPrefix  string            `json:"output_prefix"`
	CallbackURL   string            `json:"callback_url,omitempty"`
	Status        JobStatus         `json:"status"`
	Progress      *ProgressSnapshot `json:"progress,omitempty"`
	Artifacts     []string          `json:"artifacts,omitempty"`
	PosterKey     string            `json:"poster_key,omitempty"`
	ThumbIndexKey string            `json:"thumbnail_index_key,omitempty"`
	Error         string            `json:"error,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// JobPatch enumerates the mutable Job fields. A nil field is left unchanged;
// the registry applies the whole patch as one atomic merge.
type JobPatch struct {
	Status        *JobStatus
	Progress      *ProgressSnapshot
	Artifacts     []string
	PosterKey     *string
	ThumbIndexKey *string
	Error         *string
}

// QualityProfile is one static rung of the rendition ladder.
type QualityProfile struct {
	Name         string `json:"name"`
	Height       int    `json:"height"`
	VideoBitrate string `json:"video_bitrate"`
	AudioBitrate string `json:"audio_bitrate"`
}

// defaultLadder lists candidate renditions from lowest to highest height.
var defaultLadder = []QualityProfile{
	{Name: "360p", Height: 360, VideoBitrate: "800k", AudioBitrate: "96k"},
	{Name: "480p", Height: 480, VideoBitrate: "1400k", AudioBitrate: "128k"},
	{Name: "720p", Height: 720, VideoBitrate: "2800k", AudioBitrate: "128k"},
	{Name: "1080p", Height: 1080, VideoBitrate: "5000k", AudioBitrate: "192k"},
	{Name: "1440p", Height: 1440, VideoBitrate: "10000k", AudioBitrate: "192k"},
	{Name: "2160p", Height: 2160, VideoBitrate: "20000k", AudioBitrate: "192k"},
}

// TranscodeRequest is the submission payload accepted by the API.
type TranscodeRequest struct {
	InputURL     string `json:"input_url"`
	OutputPrefix string `json:"output_prefix,omitempty"`
	CallbackURL  string `json:"callback_url,omitempty"`
}

// SourceMeta is what probing the input yields.
type SourceMeta struct {
	Width    int
	Height   int
	Duration float64 // seconds
}

// RenditionArtifact is one produced file, held in memory between the encode
// and upload stages.
type RenditionArtifact struct {
	Key         string
	Data        []byte
	ContentType string
}
