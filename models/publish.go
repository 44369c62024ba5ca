package models

import "time"

// Outcome is one platform's publish result.
type Outcome struct {
	Success bool   `json:"success"`
	PostID  string `json:"post_id,omitempty"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

// PublishResult maps each attempted platform to its outcome. A mix of
// successes and failures is a valid end state.
type PublishResult map[Platform]Outcome

// Succeeded lists the platforms that published.
func (r PublishResult) Succeeded() []Platform {
	var out []Platform
	for _, p := range Platforms {
		if o, ok := r[p]; ok && o.Success {
			out = append(out, p)
		}
	}
	return out
}

// AllFailed reports whether at least one platform was attempted and none succeeded.
func (r PublishResult) AllFailed() bool {
	return len(r) > 0 && len(r.Succeeded()) == 0
}

// Receipt is the ledger row written after a platform flow finishes.
type Receipt struct {
	ID          int64     `json:"id,omitempty"`
	RunID       string    `json:"run_id"`
	ListingID   string    `json:"listing_id"`
	Platform    Platform  `json:"platform"`
	Success     bool      `json:"success"`
	PostID      string    `json:"post_id,omitempty"`
	Error       string    `json:"error,omitempty"`
	ImageCount  int       `json:"image_count"`
	PublishedAt time.Time `json:"published_at"`
}
