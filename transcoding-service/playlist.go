package main

import (
	"fmt"
	"strconv"
	"strings"
)

// parseBitrate converts a compact bitrate string to bits per second:
// "800k" → 800000, "2M" → 2000000, case-insensitive. Anything malformed
// parses as 0 rather than failing the job.
func parseBitrate(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	multiplier := 1
	switch s[len(s)-1] {
	case 'k', 'K':
		multiplier = 1000
		s = s[:len(s)-1]
	case 'm', 'M':
		multiplier = 1000000
		s = s[:len(s)-1]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n * multiplier
}

// resolutionForHeight approximates the rendition resolution from its target
// height assuming a 16:9 source, rounded to an even width.
func resolutionForHeight(height int) string {
	width := height * 16 / 9
	if width%2 != 0 {
		width++
	}
	return fmt.Sprintf("%dx%d", width, height)
}

// BuildMasterPlaylist assembles the adaptive master playlist. One stream-info
// record per profile, ascending height order, each referencing the
// rendition's own playlist relative to the master.
func BuildMasterPlaylist(profiles []QualityProfile) []byte {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	for _, p := range profiles {
		bandwidth := parseBitrate(p.VideoBitrate) + parseBitrate(p.AudioBitrate)
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%s\n", bandwidth, resolutionForHeight(p.Height))
		fmt.Fprintf(&b, "%s/playlist.m3u8\n", p.Name)
	}
	return []byte(b.String())
}
