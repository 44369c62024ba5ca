package publisher

import (
	"context"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"
)

// publishInstagram runs the create/poll/publish protocol, as a carousel
// when more than one image is given.
func (p *Publisher) publishInstagram(ctx context.Context, imageURLs []string, caption string) (string, error) {
	var containerID string
	var err error
	if len(imageURLs) == 1 {
		containerID, err = p.createContainer(ctx, url.Values{
			"image_url": {imageURLs[0]},
			"caption":   {caption},
		})
	} else {
		containerID, err = p.createCarousel(ctx, imageURLs, caption)
	}
	if err != nil {
		return "", err
	}

	var reply idResponse
	if err := p.graph.post(ctx, p.igUserID+"/media_publish", url.Values{"creation_id": {containerID}}, &reply); err != nil {
		return "", err
	}
	return reply.ID, nil
}

// createCarousel creates and waits on every child container, then creates
// and waits on the parent. The parent is never created unless every child
// finished; the first child failure cancels the rest.
func (p *Publisher) createCarousel(ctx context.Context, imageURLs []string, caption string) (string, error) {
	children := make([]string, len(imageURLs))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range imageURLs {
		g.Go(func() error {
			id, err := p.createContainer(gctx, url.Values{
				"image_url":        {u},
				"is_carousel_item": {"true"},
			})
			if err != nil {
				return err
			}
			children[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	p.logger.Info("[instagram] %d carousel children ready", len(children))

	return p.createContainer(ctx, url.Values{
		"media_type": {"CAROUSEL"},
		"children":   {strings.Join(children, ",")},
		"caption":    {caption},
	})
}

// createContainer creates a media container and blocks until it finishes.
func (p *Publisher) createContainer(ctx context.Context, form url.Values) (string, error) {
	var reply idResponse
	if err := p.graph.post(ctx, p.igUserID+"/media", form, &reply); err != nil {
		return "", err
	}
	if err := p.waitForContainer(ctx, reply.ID); err != nil {
		return "", err
	}
	return reply.ID, nil
}
