package main

import "fmt"

// Stage breakpoints for the job progress bar. Fetch fills 0-10, the
// renditions linearly fill 10-70, thumbnails report at the 70 boundary,
// upload at 80, done at 100.
const (
	percentFetched     = 10
	percentTranscoded  = 70
	percentUploading   = 80
	percentDone        = 100
	transcodeSpanStart = percentFetched
	transcodeSpan      = percentTranscoded - percentFetched
)

// ProgressSink receives stage-boundary progress reports. Pipeline stages
// only ever talk to a sink; they never touch the registry directly.
type ProgressSink interface {
	Report(p ProgressSnapshot)
}

// transcodePercent maps completed-rendition count onto the 10-70 span.
func transcodePercent(completed, total int) int {
	if total <= 0 {
		return percentTranscoded
	}
	return transcodeSpanStart + transcodeSpan*completed/total
}

func downloadingSnapshot() ProgressSnapshot {
	return ProgressSnapshot{
		Stage:   StageDownloading,
		Percent: 0,
		Message: "downloading source",
	}
}

func downloadedSnapshot() ProgressSnapshot {
	return ProgressSnapshot{
		Stage:   StageDownloading,
		Percent: percentFetched,
		Message: "source downloaded",
	}
}

func transcodingSnapshot(current string, completed []string, total int) ProgressSnapshot {
	return ProgressSnapshot{
		Stage:              StageTranscoding,
		CurrentQuality:     current,
		CompletedQualities: append([]string(nil), completed...),
		TotalQualities:     total,
		Percent:            transcodePercent(len(completed), total),
		Message:            fmt.Sprintf("transcoding %s (%d/%d)", current, len(completed)+1, total),
	}
}

func thumbnailsSnapshot(completed []string, total int) ProgressSnapshot {
	return ProgressSnapshot{
		Stage:              StageThumbnails,
		CompletedQualities: append([]string(nil), completed...),
		TotalQualities:     total,
		Percent:            percentTranscoded,
		Message:            "generating thumbnails",
	}
}

func uploadingSnapshot() ProgressSnapshot {
	return ProgressSnapshot{
		Stage:   StageUploading,
		Percent: percentUploading,
		Message: "uploading artifacts",
	}
}

func doneSnapshot() ProgressSnapshot {
	return ProgressSnapshot{
		Stage:   StageDone,
		Percent: percentDone,
		Message: "completed",
	}
}
