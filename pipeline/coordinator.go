package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"listing-publisher/config"
	"listing-publisher/copygen"
	"listing-publisher/images"
	"listing-publisher/models"
	"listing-publisher/services"
	"listing-publisher/storage"
	"listing-publisher/utils"
)

var (
	// ErrWrongStage is returned when an operation is invoked out of order.
	ErrWrongStage = errors.New("operation not allowed in current stage")
	// ErrInvalidEdit is returned for a review edit that cannot be applied.
	ErrInvalidEdit = errors.New("invalid review edit")
)

// Scraper extracts a listing from its URL.
type Scraper interface {
	Scrape(ctx context.Context, rawURL string, progress func(string)) (*models.Listing, error)
}

// ImagePreparer turns gallery URLs into hosted platform renditions.
type ImagePreparer interface {
	Prepare(ctx context.Context, urls []string, keyPrefix string, max int, progress func(string)) (*images.Prepared, error)
}

// Publisher posts the reviewed images and captions.
type Publisher interface {
	Publish(ctx context.Context, imgs []models.ScoredImage, captions models.CaptionPair, targets []models.Platform) models.PublishResult
}

// Deps are the stage collaborators. Receipts may be nil.
type Deps struct {
	Scraper   Scraper
	Images    ImagePreparer
	Copy      copygen.Generator
	Captions  *services.CaptionService
	Publisher Publisher
	Host      storage.ImageHost
	Receipts  storage.ReceiptWriter
}

// Coordinator sequences the stages of a run. It holds no run state, so
// one Coordinator serves any number of concurrent runs.
type Coordinator struct {
	deps      Deps
	maxImages int
	cleanup   *utils.RetryConfig
	now       func() time.Time
	logger    *utils.Logger
}

func New(deps Deps, cfg *config.Config, logger *utils.Logger) *Coordinator {
	maxImages := cfg.MaxImages
	if maxImages < 1 || maxImages > config.CarouselCeiling {
		maxImages = config.CarouselCeiling
	}
	return &Coordinator{
		deps:      deps,
		maxImages: maxImages,
		cleanup:   &utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: 500 * time.Millisecond, Logger: logger},
		now:       time.Now,
		logger:    logger,
	}
}

// Start returns a fresh idle run for url.
func (c *Coordinator) Start(url string) State {
	return State{RunID: uuid.NewString(), URL: strings.TrimSpace(url), Stage: StageIdle}
}

// Prepare chains scraping, image processing and copy generation, stopping
// at review.
func (c *Coordinator) Prepare(ctx context.Context, url string, sink Sink) (State, error) {
	s := c.Start(url)
	var err error
	if s, err = c.Scrape(ctx, s, sink); err != nil {
		return s, err
	}
	if s, err = c.ProcessImages(ctx, s, sink); err != nil {
		return s, err
	}
	return c.GenerateCopy(ctx, s, sink)
}

// Scrape extracts the listing. Valid only on a fresh idle run.
func (c *Coordinator) Scrape(ctx context.Context, s State, sink Sink) (State, error) {
	if s.Stage != StageIdle || s.Listing != nil {
		return s, c.wrongStage("scrape", s)
	}
	s.Stage = StageScraping
	s.Err, s.Error, s.FailedAt = nil, "", ""
	log := c.logger.With("run_id", s.RunID)
	log.Info("[pipeline] Scraping %s", s.URL)

	listing, err := c.deps.Scraper.Scrape(ctx, s.URL, c.progress(sink, StageScraping))
	if err != nil {
		return c.fail(ctx, s, err, sink), err
	}
	s.Listing = listing
	return s, nil
}

// ProcessImages downloads, scores, crops and hosts the listing's images.
func (c *Coordinator) ProcessImages(ctx context.Context, s State, sink Sink) (State, error) {
	if s.Stage != StageScraping || s.Listing == nil {
		return s, c.wrongStage("process images", s)
	}
	s.Stage = StageProcessingImages

	keyPrefix := fmt.Sprintf("tm-%s/%s", s.Listing.ListingID, s.RunID)
	prepared, err := c.deps.Images.Prepare(ctx, s.Listing.Images, keyPrefix, c.maxImages, c.progress(sink, StageProcessingImages))
	if prepared != nil {
		s.HostedKeys = append(s.HostedKeys, prepared.Keys...)
	}
	if err != nil {
		return c.fail(ctx, s, err, sink), err
	}
	s.Images = prepared.Images
	return s, nil
}

// GenerateCopy produces the captions and moves the run to review.
func (c *Coordinator) GenerateCopy(ctx context.Context, s State, sink Sink) (State, error) {
	if s.Stage != StageProcessingImages || len(s.Images) == 0 {
		return s, c.wrongStage("generate copy", s)
	}
	s.Stage = StageGeneratingCopy
	sink.emit(Event{Kind: EventProgress, Stage: StageGeneratingCopy, Message: "Generating copy..."})

	pair, err := c.deps.Copy.Generate(ctx, s.Listing)
	if err != nil {
		return c.fail(ctx, s, err, sink), err
	}
	s.Captions = pair
	s.Report = c.deps.Captions.Check(pair, s.Listing.URL)
	s.Stage = StageReview
	sink.emit(Event{Kind: EventComplete, Stage: StageReview, Payload: s})
	return s, nil
}

// Review applies user edits. The input State is not modified.
func (c *Coordinator) Review(s State, edits Edits) (State, error) {
	if s.Stage != StageReview {
		return s, c.wrongStage("review", s)
	}

	if edits.Selection != nil {
		imgs, err := reorder(s.Images, edits.Selection)
		if err != nil {
			return s, err
		}
		s.Images = imgs
	}
	if edits.Captions != nil {
		s.Captions = *edits.Captions
		s.Report = c.deps.Captions.Check(s.Captions, s.Listing.URL)
	}
	return s, nil
}

// reorder puts the images named by selection first, in that order and
// marked selected, followed by the rest unselected in their previous order.
func reorder(imgs []models.ScoredImage, selection []int) ([]models.ScoredImage, error) {
	if len(selection) > config.CarouselCeiling {
		return nil, fmt.Errorf("%w: %d images selected, at most %d allowed", ErrInvalidEdit, len(selection), config.CarouselCeiling)
	}
	picked := make(map[int]bool, len(selection))
	out := make([]models.ScoredImage, 0, len(imgs))
	for _, i := range selection {
		if i < 0 || i >= len(imgs) {
			return nil, fmt.Errorf("%w: image index %d out of range", ErrInvalidEdit, i)
		}
		if picked[i] {
			return nil, fmt.Errorf("%w: image index %d selected twice", ErrInvalidEdit, i)
		}
		picked[i] = true
		img := imgs[i]
		img.Selected = true
		out = append(out, img)
	}
	for i, img := range imgs {
		if !picked[i] {
			img.Selected = false
			out = append(out, img)
		}
	}
	return out, nil
}

// Publish posts to targets and finishes the run. Platform failures are
// recorded in the result; the run still reaches done. Hosted copies are
// deleted before returning.
func (c *Coordinator) Publish(ctx context.Context, s State, targets []models.Platform, sink Sink) (State, error) {
	if s.Stage != StageReview {
		return s, c.wrongStage("publish", s)
	}
	s.Stage = StagePublishing
	log := c.logger.With("run_id", s.RunID)
	sink.emit(Event{Kind: EventProgress, Stage: StagePublishing, Message: fmt.Sprintf("Publishing %d image(s) to %s...", s.SelectedCount(), platformList(targets))})

	result := c.deps.Publisher.Publish(ctx, s.Images, s.Captions, targets)
	s.Result = result
	c.writeReceipts(s)

	c.release(ctx, &s)
	s.Stage = StageDone
	log.Info("[pipeline] Done: %d/%d platform(s) published", len(result.Succeeded()), len(result))
	sink.emit(Event{Kind: EventComplete, Stage: StageDone, Payload: result})
	return s, nil
}

// Abandon discards the run, deleting anything it hosted.
func (c *Coordinator) Abandon(ctx context.Context, s State) State {
	c.release(ctx, &s)
	c.logger.With("run_id", s.RunID).Info("[pipeline] Run abandoned at %s", s.Stage)
	return State{RunID: s.RunID, URL: s.URL, Stage: StageIdle}
}

// fail emits the error, cleans up and returns the run to idle. Partial
// stage output is discarded.
func (c *Coordinator) fail(ctx context.Context, s State, err error, sink Sink) State {
	failedAt := s.Stage
	c.logger.With("run_id", s.RunID).Error("[pipeline] %s failed: %v", failedAt, err)
	sink.emit(Event{Kind: EventError, Stage: StageFailed, Message: err.Error()})
	c.release(ctx, &s)
	return State{
		RunID:    s.RunID,
		URL:      s.URL,
		Stage:    StageIdle,
		FailedAt: failedAt,
		Error:    err.Error(),
		Err:      err,
	}
}

// release deletes every hosted copy the run created. It runs even when ctx
// is already cancelled.
func (c *Coordinator) release(ctx context.Context, s *State) {
	if len(s.HostedKeys) == 0 || c.deps.Host == nil {
		s.HostedKeys = nil
		return
	}
	ctx = context.WithoutCancel(ctx)
	log := c.logger.With("run_id", s.RunID)
	deleted := 0
	for _, key := range s.HostedKeys {
		err := c.cleanup.Do(ctx, "delete "+key, func() error {
			return c.deps.Host.Delete(ctx, key)
		})
		if err != nil {
			log.Warn("[pipeline] Could not delete hosted copy: %v", err)
			continue
		}
		deleted++
	}
	log.Info("[pipeline] Deleted %d/%d hosted copies", deleted, len(s.HostedKeys))
	s.HostedKeys = nil
}

func (c *Coordinator) writeReceipts(s State) {
	if c.deps.Receipts == nil || len(s.Result) == 0 {
		return
	}
	at := c.now()
	listingID := ""
	if s.Listing != nil {
		listingID = s.Listing.ListingID
	}
	receipts := make([]*models.Receipt, 0, len(s.Result))
	for _, p := range models.Platforms {
		o, ok := s.Result[p]
		if !ok {
			continue
		}
		receipts = append(receipts, &models.Receipt{
			RunID:       s.RunID,
			ListingID:   listingID,
			Platform:    p,
			Success:     o.Success,
			PostID:      o.PostID,
			Error:       o.Error,
			ImageCount:  len(models.SelectedURLs(s.Images, p)),
			PublishedAt: at,
		})
	}
	if err := c.deps.Receipts.WriteReceipts(receipts); err != nil {
		c.logger.With("run_id", s.RunID).Warn("[pipeline] Receipts not written: %v", err)
	}
}

func (c *Coordinator) progress(sink Sink, stage Stage) func(string) {
	return func(msg string) {
		sink.emit(Event{Kind: EventProgress, Stage: stage, Message: msg})
	}
}

func (c *Coordinator) wrongStage(op string, s State) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrWrongStage, op, s.Stage)
}

func platformList(targets []models.Platform) string {
	if len(targets) == 0 {
		return "no platforms"
	}
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
