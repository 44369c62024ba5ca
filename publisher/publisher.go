package publisher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"listing-publisher/config"
	"listing-publisher/models"
	"listing-publisher/utils"
)

// Publisher drives the per-platform publish flows.
type Publisher struct {
	graph        *Graph
	pageID       string
	igUserID     string
	clock        Clock
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *utils.Logger
}

// Options configures a Publisher. Zero poll values fall back to 1s/30s.
type Options struct {
	PageID       string
	IGUserID     string
	PollInterval time.Duration
	PollTimeout  time.Duration
	Clock        Clock
}

func New(cfg *config.Config, logger *utils.Logger) *Publisher {
	graph := NewGraph(cfg.MetaGraphBase, cfg.MetaPageToken, 30*time.Second, logger)
	return NewWithGraph(graph, Options{
		PageID:       cfg.FBPageID,
		IGUserID:     cfg.IGUserID,
		PollInterval: cfg.PollInterval,
		PollTimeout:  cfg.PollTimeout,
	}, logger)
}

func NewWithGraph(graph *Graph, opts Options, logger *utils.Logger) *Publisher {
	p := &Publisher{
		graph:        graph,
		pageID:       opts.PageID,
		igUserID:     opts.IGUserID,
		clock:        opts.Clock,
		pollInterval: opts.PollInterval,
		pollTimeout:  opts.PollTimeout,
		logger:       logger,
	}
	if p.clock == nil {
		p.clock = realClock{}
	}
	if p.pollInterval <= 0 {
		p.pollInterval = time.Second
	}
	if p.pollTimeout <= 0 {
		p.pollTimeout = 30 * time.Second
	}
	return p
}

// Publish runs each targeted platform's flow concurrently. A failure on one
// platform never cancels or fails another; every target gets an Outcome.
func (p *Publisher) Publish(ctx context.Context, images []models.ScoredImage, captions models.CaptionPair, targets []models.Platform) models.PublishResult {
	result := make(models.PublishResult, len(targets))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, platform := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome := p.publishOne(ctx, platform, models.SelectedURLs(images, platform), captions.For(platform))
			mu.Lock()
			result[platform] = outcome
			mu.Unlock()
		}()
	}
	wg.Wait()
	return result
}

func (p *Publisher) publishOne(ctx context.Context, platform models.Platform, imageURLs []string, caption string) models.Outcome {
	if len(imageURLs) > config.CarouselCeiling {
		imageURLs = imageURLs[:config.CarouselCeiling]
	}
	if len(imageURLs) == 0 {
		err := fmt.Errorf("%w: nothing selected for %s", models.ErrNoImages, platform)
		return models.Outcome{Error: err.Error(), Err: err}
	}

	p.logger.Info("[%s] Publishing %d image(s)", platform, len(imageURLs))
	var postID string
	var err error
	switch platform {
	case models.Facebook:
		postID, err = p.publishFacebook(ctx, imageURLs, caption)
	case models.Instagram:
		postID, err = p.publishInstagram(ctx, imageURLs, caption)
	default:
		err = fmt.Errorf("unsupported platform %q", platform)
	}

	if err != nil {
		p.logger.Error("[%s] Publish failed: %v", platform, err)
		return models.Outcome{Error: err.Error(), Err: err}
	}
	p.logger.Info("[%s] Published post %s", platform, postID)
	return models.Outcome{Success: true, PostID: postID}
}
