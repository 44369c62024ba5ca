package pipeline

import (
	"listing-publisher/models"
)

// Stage is a pipeline state.
type Stage string

const (
	StageIdle             Stage = "idle"
	StageScraping         Stage = "scraping"
	StageProcessingImages Stage = "processing_images"
	StageGeneratingCopy   Stage = "generating_copy"
	StageReview           Stage = "review"
	StagePublishing       Stage = "publishing"
	StageDone             Stage = "done"
	StageFailed           Stage = "failed"
)

// State is one run's owned pipeline state. Stage functions take a State and
// return the next one; nothing else holds it.
type State struct {
	RunID      string                `json:"run_id"`
	URL        string                `json:"url"`
	Stage      Stage                 `json:"stage"`
	Listing    *models.Listing       `json:"listing,omitempty"`
	Images     []models.ScoredImage  `json:"images,omitempty"`
	Captions   models.CaptionPair    `json:"captions"`
	Report     *models.CaptionReport `json:"report,omitempty"`
	Result     models.PublishResult  `json:"result,omitempty"`
	HostedKeys []string              `json:"-"`

	// Set when a stage failed and the run returned to idle.
	FailedAt Stage  `json:"failed_at,omitempty"`
	Error    string `json:"error,omitempty"`
	Err      error  `json:"-"`
}

// SelectedCount is how many images will be published.
func (s State) SelectedCount() int {
	n := 0
	for _, img := range s.Images {
		if img.Selected {
			n++
		}
	}
	return n
}

// EventKind distinguishes progress events.
type EventKind string

const (
	EventProgress EventKind = "progress"
	EventComplete EventKind = "complete"
	EventError    EventKind = "error"
)

// Event is one entry in a run's progress stream.
type Event struct {
	Kind    EventKind `json:"event"`
	Stage   Stage     `json:"stage"`
	Message string    `json:"message,omitempty"`
	Payload any       `json:"payload,omitempty"`
}

// Sink receives progress events. It is called from the stage's goroutine.
type Sink func(Event)

func (s Sink) emit(e Event) {
	if s != nil {
		s(e)
	}
}

// Edits are the user's review-time changes.
type Edits struct {
	// Selection lists image indexes to publish, in publish order. Nil
	// leaves the selection unchanged.
	Selection []int `json:"selection"`
	// Captions replaces the generated copy when non-nil.
	Captions *models.CaptionPair `json:"captions"`
}
