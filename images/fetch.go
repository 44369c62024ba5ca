package images

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/webp"

	"listing-publisher/models"
	"listing-publisher/utils"
)

// Download validation thresholds. Anything smaller is a placeholder or icon.
const (
	DefaultMinBytes  = 5000
	DefaultMinWidth  = 400
	DefaultMinHeight = 300
	maxImageBytes    = 32 << 20
)

// Candidate is a downloaded, decoded gallery image.
type Candidate struct {
	URL      string
	Position int
	Image    image.Image
}

// Fetcher downloads candidate images concurrently.
type Fetcher struct {
	Client      *http.Client
	Concurrency int
	RateLimitMs int
	MinBytes    int
	MinWidth    int
	MinHeight   int
	Logger      *utils.Logger
}

// NewFetcher creates a Fetcher with the default validation thresholds.
func NewFetcher(concurrency, rateLimitMs int, timeout time.Duration, logger *utils.Logger) *Fetcher {
	return &Fetcher{
		Client:      &http.Client{Timeout: timeout},
		Concurrency: concurrency,
		RateLimitMs: rateLimitMs,
		MinBytes:    DefaultMinBytes,
		MinWidth:    DefaultMinWidth,
		MinHeight:   DefaultMinHeight,
		Logger:      logger,
	}
}

// FetchAll downloads every URL and returns the decodable ones in gallery
// order. Individual failures are logged and dropped.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []Candidate {
	results := make([]*Candidate, len(urls))
	pool := utils.NewWorkerPool(f.Concurrency, f.RateLimitMs)

	for i, u := range urls {
		pool.Submit(func() {
			img, err := f.fetch(ctx, u)
			if err != nil {
				f.Logger.Warn("[images] Dropping %s: %v", u, err)
				return
			}
			results[i] = &Candidate{URL: u, Position: i, Image: img}
		})
	}
	pool.Wait()

	out := make([]Candidate, 0, len(urls))
	for _, c := range results {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out
}

func (f *Fetcher) fetch(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrImageFetch, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrImageFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", models.ErrImageFetch, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", models.ErrImageFetch, err)
	}
	if len(data) < f.MinBytes {
		return nil, fmt.Errorf("%w: only %d bytes", models.ErrImageFetch, len(data))
	}

	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", models.ErrImageFetch, err)
	}
	b := img.Bounds()
	if b.Dx() < f.MinWidth || b.Dy() < f.MinHeight {
		return nil, fmt.Errorf("%w: %dx%d is below %dx%d", models.ErrImageFetch, b.Dx(), b.Dy(), f.MinWidth, f.MinHeight)
	}
	return img, nil
}

// Decode handles WebP alongside the stdlib-registered formats.
func Decode(data []byte) (image.Image, error) {
	if isWEBP(data) {
		return webp.Decode(bytes.NewReader(data), &decoder.Options{})
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

func isWEBP(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	return string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}
