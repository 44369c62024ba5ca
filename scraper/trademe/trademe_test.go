package trademe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-publisher/models"
	"listing-publisher/utils"
)

type fakeRenderer struct {
	html  string
	err   error
	calls int
}

func (f *fakeRenderer) Render(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.html, f.err
}

const listingURL = "https://www.trademe.co.nz/a/property/residential/rent/auckland/listing/5012345678"

func TestScrapeBuildsListing(t *testing.T) {
	r := &fakeRenderer{html: `<html><body>
<h1>Sunny unit, Mt Eden, Auckland</h1>
<span>$650 per week</span>
<img src="https://trademe.tmcdn.co.nz/photoserver/thumb/1.jpg">
<img src="https://trademe.tmcdn.co.nz/photoserver/thumb/2.jpg">
</body></html>`}
	s := NewWithRenderer(r, utils.NewDiscardLogger())

	var messages []string
	listing, err := s.Scrape(context.Background(), listingURL, func(m string) { messages = append(messages, m) })
	require.NoError(t, err)

	assert.Equal(t, "5012345678", listing.ListingID)
	assert.Equal(t, listingURL, listing.URL)
	assert.Equal(t, "Sunny unit, Mt Eden, Auckland", *listing.Title)
	assert.Equal(t, "Mt Eden, Auckland", *listing.Address)
	assert.Equal(t, "$650 per week", *listing.Price)
	assert.Nil(t, listing.Description)
	assert.Len(t, listing.Images, 2)
	assert.NotNil(t, listing.Attributes)
	assert.Equal(t, "Found 2 images", messages[len(messages)-1])
}

func TestScrapeRejectsForeignURLWithoutRendering(t *testing.T) {
	r := &fakeRenderer{}
	s := NewWithRenderer(r, utils.NewDiscardLogger())

	_, err := s.Scrape(context.Background(), "https://example.com/listing/1", nil)
	assert.ErrorIs(t, err, models.ErrInvalidURL)
	assert.Equal(t, 0, r.calls)
}

func TestScrapeRenderFailureIsExtractionFailure(t *testing.T) {
	r := &fakeRenderer{err: errors.New("context deadline exceeded")}
	s := NewWithRenderer(r, utils.NewDiscardLogger())

	_, err := s.Scrape(context.Background(), listingURL, nil)
	assert.ErrorIs(t, err, models.ErrExtraction)
}

func TestParseListingEmptyPage(t *testing.T) {
	_, err := ParseListing(listingURL, "5012345678", `<html><body><p>Listing not found</p></body></html>`)
	assert.ErrorIs(t, err, models.ErrExtraction)
}
