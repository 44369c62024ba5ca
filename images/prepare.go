package images

import (
	"context"
	"fmt"
	"path"

	"golang.org/x/sync/errgroup"

	"listing-publisher/models"
	"listing-publisher/storage"
	"listing-publisher/utils"
)

// Prepared is the outcome of the image stage.
type Prepared struct {
	Images []models.ScoredImage
	// Keys lists every hosted object created, for cleanup.
	Keys []string
}

// Preparer downloads, scores, selects, transforms and hosts listing images.
type Preparer struct {
	fetcher     *Fetcher
	host        storage.ImageHost
	platforms   []models.Platform
	concurrency int
	logger      *utils.Logger
}

// NewPreparer wires a Preparer; renditions are produced for every platform.
func NewPreparer(fetcher *Fetcher, host storage.ImageHost, concurrency int, logger *utils.Logger) *Preparer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Preparer{
		fetcher:     fetcher,
		host:        host,
		platforms:   models.Platforms,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Prepare turns raw gallery URLs into up to max hosted, platform-fitted
// images. keyPrefix scopes hosted objects to one run. On error, any objects
// already hosted are still listed in the returned Prepared.Keys.
func (p *Preparer) Prepare(ctx context.Context, urls []string, keyPrefix string, max int, progress func(string)) (*Prepared, error) {
	if progress == nil {
		progress = func(string) {}
	}

	progress(fmt.Sprintf("Downloading %d images...", len(urls)))
	candidates := p.fetcher.FetchAll(ctx, urls)
	if len(candidates) == 0 {
		return &Prepared{}, fmt.Errorf("%w: none of %d images could be downloaded", models.ErrNoImages, len(urls))
	}

	scored := make([]models.ScoredImage, len(candidates))
	byURL := make(map[string]Candidate, len(candidates))
	for i, c := range candidates {
		b := c.Image.Bounds()
		scored[i] = models.ScoredImage{
			SourceURL: c.URL,
			Width:     b.Dx(),
			Height:    b.Dy(),
			Score:     Score(b.Dx(), b.Dy()),
			Position:  c.Position,
		}
		byURL[c.URL] = c
	}
	selected := Select(scored, max)
	progress(fmt.Sprintf("Scored %d of %d images, keeping %d", len(candidates), len(urls), len(selected)))

	progress("Uploading images...")
	keys := make([][]string, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := range selected {
		g.Go(func() error {
			img := &selected[i]
			img.Selected = true
			img.Renditions = make(map[models.Platform]models.Rendition, len(p.platforms))
			for _, platform := range p.platforms {
				r, err := p.render(gctx, byURL[img.SourceURL], platform, keyPrefix, i+1)
				if r.Key != "" {
					keys[i] = append(keys[i], r.Key)
				}
				if err != nil {
					return err
				}
				img.Renditions[platform] = r
			}
			return nil
		})
	}
	err := g.Wait()

	out := &Prepared{Images: selected}
	for _, ks := range keys {
		out.Keys = append(out.Keys, ks...)
	}
	if err != nil {
		return out, err
	}

	p.logger.Info("[images] Prepared %d images (hero score %.2f)", len(selected), selected[0].Score)
	progress(fmt.Sprintf("Prepared %d images", len(selected)))
	return out, nil
}

func (p *Preparer) render(ctx context.Context, c Candidate, platform models.Platform, keyPrefix string, n int) (models.Rendition, error) {
	fitted, err := Transform(c.Image, platform)
	if err != nil {
		return models.Rendition{}, fmt.Errorf("transform %s: %w", c.URL, err)
	}
	data, err := EncodeJPEG(fitted)
	if err != nil {
		return models.Rendition{}, fmt.Errorf("encode %s: %w", c.URL, err)
	}

	key := path.Join(keyPrefix, fmt.Sprintf("%s_%d.jpg", platform, n))
	url, err := p.host.Put(ctx, key, data, "image/jpeg")
	if err != nil {
		return models.Rendition{}, fmt.Errorf("host %s: %w", key, err)
	}
	w, h := platform.Canvas()
	return models.Rendition{URL: url, Key: key, Width: w, Height: h}, nil
}
