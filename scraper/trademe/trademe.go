package trademe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"listing-publisher/config"
	"listing-publisher/models"
	"listing-publisher/utils"
)

// Renderer returns the fully rendered HTML of a page.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Scraper extracts a single TradeMe listing.
type Scraper struct {
	renderer Renderer
	logger   *utils.Logger
}

// New creates a Scraper that renders pages in headless Chrome.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	return NewWithRenderer(&ChromeRenderer{
		ChromeBin: cfg.ChromeBin,
		Timeout:   cfg.PageTimeout,
		Logger:    logger,
	}, logger)
}

// NewWithRenderer creates a Scraper around any Renderer.
func NewWithRenderer(r Renderer, logger *utils.Logger) *Scraper {
	return &Scraper{renderer: r, logger: logger}
}

// Scrape validates rawURL, renders the page and extracts the listing.
// progress receives human-readable status lines and may be nil.
func (s *Scraper) Scrape(ctx context.Context, rawURL string, progress func(string)) (*models.Listing, error) {
	if progress == nil {
		progress = func(string) {}
	}

	url, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}
	listingID, err := ListingID(url)
	if err != nil {
		return nil, err
	}

	progress("Connecting to TradeMe...")
	s.logger.Info("[trademe] Rendering listing %s", listingID)

	html, err := s.renderer.Render(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: render %s: %v", models.ErrExtraction, url, err)
	}

	progress("Page loaded, reading listing details...")
	listing, err := ParseListing(url, listingID, html)
	if err != nil {
		return nil, err
	}

	s.logger.Info("[trademe] Listing %s: title=%q price=%q images=%d",
		listingID,
		models.StringValue(listing.Title, "-"),
		models.StringValue(listing.Price, "-"),
		len(listing.Images))
	progress(fmt.Sprintf("Found %d images", len(listing.Images)))
	return listing, nil
}

// ParseListing runs the extraction chain over already-rendered HTML.
func ParseListing(url, listingID, html string) (*models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", models.ErrExtraction, err)
	}

	fields, _ := Extract(doc)
	images := CollectImages(doc)

	if fields.Title == nil && fields.Price == nil && fields.Address == nil &&
		fields.Description == nil && len(images) == 0 {
		return nil, fmt.Errorf("%w: no listing content found at %s", models.ErrExtraction, url)
	}

	attrs := fields.Attributes
	if attrs == nil {
		attrs = make(map[string]bool)
	}
	return &models.Listing{
		URL:         url,
		ListingID:   listingID,
		Title:       fields.Title,
		Price:       fields.Price,
		Address:     fields.Address,
		Description: fields.Description,
		Images:      images,
		Attributes:  attrs,
	}, nil
}

// ChromeRenderer loads pages in a fresh headless Chrome and waits for the
// network to go idle before reading the DOM.
type ChromeRenderer struct {
	ChromeBin string
	Timeout   time.Duration
	Logger    *utils.Logger
}

// Render implements Renderer.
func (r *ChromeRenderer) Render(ctx context.Context, url string) (string, error) {
	chromeBin := r.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	if r.Logger != nil {
		r.Logger.Debug("[trademe] Using browser binary: %s", chromeBin)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelTab()

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(tabCtx,
		navigateAndWaitIdle(url),
		softWaitReady("h1", 10*time.Second),

		// Scroll to trigger lazy-loaded gallery images
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(`window.scrollTo(0, 0)`, nil),

		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp render: %w", err)
	}
	return html, nil
}

// navigateAndWaitIdle navigates and blocks until Chrome reports the
// networkIdle lifecycle event for the new document.
func navigateAndWaitIdle(url string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		idle := make(chan struct{})
		var once sync.Once
		var started bool
		var mu sync.Mutex

		lctx, cancel := context.WithCancel(ctx)
		defer cancel()
		chromedp.ListenTarget(lctx, func(ev interface{}) {
			e, ok := ev.(*page.EventLifecycleEvent)
			if !ok {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch e.Name {
			case "init":
				started = true
			case "networkIdle":
				if started {
					once.Do(func() { close(idle) })
				}
			}
		})

		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return fmt.Errorf("enable lifecycle events: %w", err)
		}
		if err := chromedp.Navigate(url).Do(ctx); err != nil {
			return fmt.Errorf("navigate: %w", err)
		}

		select {
		case <-idle:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("waiting for network idle: %w", ctx.Err())
		}
	})
}

// softWaitReady waits for sel up to d but never fails; some layouts lack it.
func softWaitReady(sel string, d time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		wctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		_ = chromedp.WaitReady(sel, chromedp.ByQuery).Do(wctx)
		return nil
	})
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
