package main

// SelectProfiles filters the ladder to renditions whose target height does
// not exceed the source height, preserving ascending order. A source smaller
// than every rung still gets the single lowest rung; upscaling one rendition
// beats failing the job.
func SelectProfiles(sourceHeight int, ladder []QualityProfile) []QualityProfile {
	selected := make([]QualityProfile, 0, len(ladder))
	for _, p := range ladder {
		if p.Height <= sourceHeight {
			selected = append(selected, p)
		}
	}
	if len(selected) == 0 && len(ladder) > 0 {
		selected = append(selected, ladder[0])
	}
	return selected
}
