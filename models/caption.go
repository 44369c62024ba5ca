package models

// CaptionPair holds the generated post text for both platforms.
type CaptionPair struct {
	Facebook  string `json:"facebook"`
	Instagram string `json:"instagram"`
}

// For returns the caption for platform.
func (c CaptionPair) For(p Platform) string {
	if p == Instagram {
		return c.Instagram
	}
	return c.Facebook
}

// CaptionCheck is one constraint evaluated against a caption.
type CaptionCheck struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Detail string `json:"detail"`
}

// PlatformReport summarises one platform's caption against its constraints.
type PlatformReport struct {
	Platform Platform       `json:"platform"`
	Words    int            `json:"words"`
	Hashtags int            `json:"hashtags"`
	HasURL   bool           `json:"has_url"`
	Hook     string         `json:"hook,omitempty"`
	Checks   []CaptionCheck `json:"checks"`
}

// Passed reports whether every check passed.
func (r PlatformReport) Passed() bool {
	for _, c := range r.Checks {
		if !c.Pass {
			return false
		}
	}
	return true
}

// CaptionReport holds one PlatformReport per platform, in Platforms order.
type CaptionReport struct {
	Platforms []PlatformReport `json:"platforms"`
}
