package publisher

import (
	"context"
	"fmt"
	"net/url"

	"golang.org/x/sync/errgroup"
)

// publishFacebook posts one photo directly, or uploads several unpublished
// photos and attaches them to a single feed post.
func (p *Publisher) publishFacebook(ctx context.Context, imageURLs []string, caption string) (string, error) {
	photos := p.pageID + "/photos"

	if len(imageURLs) == 1 {
		var reply idResponse
		err := p.graph.post(ctx, photos, url.Values{
			"url":     {imageURLs[0]},
			"message": {caption},
		}, &reply)
		if err != nil {
			return "", err
		}
		if reply.PostID != "" {
			return reply.PostID, nil
		}
		return reply.ID, nil
	}

	photoIDs := make([]string, len(imageURLs))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range imageURLs {
		g.Go(func() error {
			var reply idResponse
			err := p.graph.post(gctx, photos, url.Values{
				"url":       {u},
				"published": {"false"},
			}, &reply)
			if err != nil {
				return err
			}
			photoIDs[i] = reply.ID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	p.logger.Debug("[facebook] Uploaded %d unpublished photos", len(photoIDs))

	form := url.Values{"message": {caption}}
	for i, id := range photoIDs {
		form.Set(fmt.Sprintf("attached_media[%d]", i), fmt.Sprintf(`{"media_fbid":"%s"}`, id))
	}
	var reply idResponse
	if err := p.graph.post(ctx, p.pageID+"/feed", form, &reply); err != nil {
		return "", err
	}
	return reply.ID, nil
}
