package images

import (
	"sort"

	"listing-publisher/models"
)

// Scoring constants. Tune against real listing photos, not derived values.
const (
	referencePixels = 1080 * 1080
	maxResolution   = 2.0
	minAspect       = 0.75
	maxAspect       = 2.0
	offAspectFactor = 0.5
)

// Score rates an image by resolution and aspect ratio. It is deterministic
// and depends on nothing but the dimensions.
func Score(width, height int) float64 {
	if width <= 0 || height <= 0 {
		return 0
	}
	resolution := float64(width*height) / referencePixels
	if resolution > maxResolution {
		resolution = maxResolution
	}
	aspect := float64(width) / float64(height)
	aspectScore := 1.0
	if aspect < minAspect || aspect > maxAspect {
		aspectScore = offAspectFactor
	}
	return resolution * aspectScore
}

// Select returns the n best images by score. Ties keep gallery order, so
// Select(xs, n) is always a prefix of Select(xs, n+1).
func Select(candidates []models.ScoredImage, n int) []models.ScoredImage {
	ranked := make([]models.ScoredImage, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Position < ranked[j].Position
	})
	if n >= 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}
