package images

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"listing-publisher/models"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		want float64
	}{
		{"reference square", 1080, 1080, 1.0},
		{"capped at two", 4000, 3000, 2.0},
		{"small landscape", 540, 540, 0.25},
		{"window lower edge", 750, 1000, 750.0 * 1000 / (1080 * 1080)},
		{"window upper edge", 2000, 1000, 2000.0 * 1000 / (1080 * 1080)},
		{"too tall", 600, 2000, 600.0 * 2000 / (1080 * 1080) * 0.5},
		{"too wide", 3000, 1000, 2.0 * 0.5},
		{"degenerate", 0, 100, 0},
	}
	for _, tt := range tests {
		got := Score(tt.w, tt.h)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: Score(%d, %d) = %.6f; want %.6f", tt.name, tt.w, tt.h, got, tt.want)
		}
	}
}

func TestScoreOrientationSwapInsideWindow(t *testing.T) {
	// 1200x900 and 900x1200 both sit inside the aspect window with the same area.
	assert.Equal(t, Score(1200, 900), Score(900, 1200))
	// 1200x500 (2.4) is outside, 500x1200 (0.42) too; equal penalty, equal area.
	assert.Equal(t, Score(1200, 500), Score(500, 1200))
	// 1800x1000 (1.8) is inside but 1000x1800 (0.56) is not.
	assert.NotEqual(t, Score(1800, 1000), Score(1000, 1800))
}

func TestScoreHighResBeatsLowRes(t *testing.T) {
	assert.Greater(t, Score(2000, 2000), Score(500, 500))
	assert.Greater(t, Score(1200, 800), Score(1200, 200))
}

func candidates(scores ...float64) []models.ScoredImage {
	out := make([]models.ScoredImage, len(scores))
	for i, s := range scores {
		out[i] = models.ScoredImage{SourceURL: string(rune('a' + i)), Score: s, Position: i}
	}
	return out
}

func TestSelectOrdersByScoreThenGallery(t *testing.T) {
	got := Select(candidates(1.0, 2.0, 1.0, 0.5, 2.0), 4)
	var order []int
	for _, img := range got {
		order = append(order, img.Position)
	}
	assert.Equal(t, []int{1, 4, 0, 2}, order)
}

func TestSelectPrefixStable(t *testing.T) {
	pool := candidates(0.7, 1.2, 1.2, 0.3, 2.0, 1.2, 0.7, 0.9)
	for n := 0; n < len(pool); n++ {
		small := Select(pool, n)
		large := Select(pool, n+1)
		assert.Equal(t, small, large[:n], "Select(%d) must prefix Select(%d)", n, n+1)
	}
}

func TestSelectDoesNotMutateInput(t *testing.T) {
	pool := candidates(0.1, 0.9)
	_ = Select(pool, 1)
	assert.Equal(t, 0, pool[0].Position)
	assert.Equal(t, 0.1, pool[0].Score)
}

func TestSelectMoreThanAvailable(t *testing.T) {
	assert.Len(t, Select(candidates(1, 2), 10), 2)
}
