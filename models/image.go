package models

// Platform names a publish target.
type Platform string

const (
	// Facebook is the direct-upload, square-feed platform.
	Facebook Platform = "facebook"
	// Instagram is the async-container, vertical-feed platform.
	Instagram Platform = "instagram"
)

// Platforms lists every supported target in a fixed order.
var Platforms = []Platform{Facebook, Instagram}

// Canvas returns the exact output size for the platform's feed.
func (p Platform) Canvas() (width, height int) {
	if p == Instagram {
		return 1080, 1350
	}
	return 1080, 1080
}

// Rendition is one platform-fitted, hosted copy of a candidate image.
type Rendition struct {
	URL    string `json:"url"`
	Key    string `json:"key"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ScoredImage is a downloaded candidate with its desirability score.
type ScoredImage struct {
	SourceURL  string                 `json:"source_url"`
	Width      int                    `json:"width"`
	Height     int                    `json:"height"`
	Score      float64                `json:"score"`
	Selected   bool                   `json:"selected"`
	Position   int                    `json:"position"`
	Renditions map[Platform]Rendition `json:"renditions,omitempty"`
}

// SelectedURLs returns the hosted URLs for platform of every selected image,
// in slice order.
func SelectedURLs(images []ScoredImage, platform Platform) []string {
	var urls []string
	for _, img := range images {
		if !img.Selected {
			continue
		}
		if r, ok := img.Renditions[platform]; ok && r.URL != "" {
			urls = append(urls, r.URL)
		}
	}
	return urls
}
