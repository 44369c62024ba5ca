package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-publisher/config"
	"listing-publisher/images"
	"listing-publisher/models"
	"listing-publisher/pipeline"
	"listing-publisher/services"
	"listing-publisher/utils"
)

type stubScraper struct{ err error }

func (s stubScraper) Scrape(_ context.Context, rawURL string, progress func(string)) (*models.Listing, error) {
	progress("Rendering page...")
	if s.err != nil {
		return nil, s.err
	}
	return &models.Listing{URL: rawURL, ListingID: "4567", Images: []string{"a", "b"}}, nil
}

type stubPreparer struct{}

func (stubPreparer) Prepare(_ context.Context, _ []string, keyPrefix string, _ int, progress func(string)) (*images.Prepared, error) {
	progress("Downloading 2 images...")
	imgs := make([]models.ScoredImage, 2)
	for i := range imgs {
		imgs[i] = models.ScoredImage{Selected: true, Position: i, Renditions: map[models.Platform]models.Rendition{
			models.Facebook:  {URL: fmt.Sprintf("https://cdn.test/fb_%d.jpg", i)},
			models.Instagram: {URL: fmt.Sprintf("https://cdn.test/ig_%d.jpg", i)},
		}}
	}
	return &images.Prepared{Images: imgs, Keys: []string{keyPrefix + "/facebook_1.jpg"}}, nil
}

type stubCopy struct{}

func (stubCopy) Generate(context.Context, *models.Listing) (models.CaptionPair, error) {
	return models.CaptionPair{Facebook: "fb", Instagram: "ig"}, nil
}

type stubPublisher struct{}

func (stubPublisher) Publish(_ context.Context, _ []models.ScoredImage, _ models.CaptionPair, targets []models.Platform) models.PublishResult {
	out := models.PublishResult{}
	for _, p := range targets {
		out[p] = models.Outcome{Success: true, PostID: string(p) + "_post"}
	}
	return out
}

type stubHost struct {
	mu      sync.Mutex
	deleted []string
}

func (h *stubHost) Put(context.Context, string, []byte, string) (string, error) { return "", nil }

func (h *stubHost) Delete(_ context.Context, key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted = append(h.deleted, key)
	return nil
}

type stubReceipts struct{}

func (stubReceipts) FetchByListing(id string) ([]*models.Receipt, error) {
	return []*models.Receipt{{ListingID: id, Platform: models.Facebook, Success: true}}, nil
}

func newTestServer(t *testing.T, scraperErr error, listingsDir string) (*httptest.Server, *Server, *stubHost) {
	t.Helper()
	logger := utils.NewDiscardLogger()
	host := &stubHost{}
	coord := pipeline.New(pipeline.Deps{
		Scraper:   stubScraper{err: scraperErr},
		Images:    stubPreparer{},
		Copy:      stubCopy{},
		Captions:  services.NewCaptionService(logger),
		Publisher: stubPublisher{},
		Host:      host,
	}, &config.Config{MaxImages: 10, MaxRetries: 1}, logger)

	s := New(coord, Options{CORSOrigin: "http://localhost:5173", ListingsDir: listingsDir, Receipts: stubReceipts{}}, logger)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, s, host
}

type sseEvent struct {
	name string
	data pipeline.Event
	raw  string
}

func readEvents(t *testing.T, resp *http.Response) []sseEvent {
	t.Helper()
	var events []sseEvent
	var cur sseEvent
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.raw = strings.TrimPrefix(line, "data: ")
			require.NoError(t, json.Unmarshal([]byte(cur.raw), &cur.data))
		case line == "":
			if cur.name != "" {
				events = append(events, cur)
			}
			cur = sseEvent{}
		}
	}
	return events
}

func startRun(t *testing.T, srv *httptest.Server) []sseEvent {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/runs", "application/json",
		strings.NewReader(`{"url": "https://www.trademe.co.nz/a/property/residential/rent/listing/4567"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return readEvents(t, resp)
}

func runIDFrom(t *testing.T, e sseEvent) string {
	t.Helper()
	var payload struct {
		Event   string         `json:"event"`
		Payload pipeline.State `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(e.raw), &payload))
	require.NotEmpty(t, payload.Payload.RunID)
	return payload.Payload.RunID
}

func doJSON(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRunLifecycle(t *testing.T) {
	srv, s, host := newTestServer(t, nil, "")

	events := startRun(t, srv)
	require.NotEmpty(t, events)
	assert.Equal(t, "progress", events[0].name)
	assert.Equal(t, "Rendering page...", events[0].data.Message)
	last := events[len(events)-1]
	require.Equal(t, "complete", last.name)
	assert.Equal(t, pipeline.StageReview, last.data.Stage)

	id := runIDFrom(t, last)
	assert.Equal(t, 1, s.runs.Len())

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/runs/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st pipeline.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, pipeline.StageReview, st.Stage)
	assert.Equal(t, "fb", st.Captions.Facebook)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/runs/"+id+"/review",
		`{"selection": [1], "captions": {"facebook": "edited fb", "instagram": "edited ig"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, "edited fb", st.Captions.Facebook)
	assert.Equal(t, 1, st.SelectedCount())

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/runs/"+id+"/publish", `{"platforms": ["facebook", "instagram"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pub publishResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pub))
	assert.Equal(t, pipeline.StageDone, pub.Stage)
	assert.True(t, pub.Result[models.Instagram].Success)
	assert.Equal(t, "facebook_post", pub.Result[models.Facebook].PostID)
	assert.Equal(t, []string{"tm-4567/" + id + "/facebook_1.jpg"}, host.deleted)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/runs/"+id+"/publish", `{"platforms": ["facebook"]}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "publishing twice is rejected")
}

func TestStartRunStreamsError(t *testing.T) {
	srv, s, _ := newTestServer(t, fmt.Errorf("%w: not a trademe url", models.ErrInvalidURL), "")

	events := startRun(t, srv)
	last := events[len(events)-1]
	assert.Equal(t, "error", last.name)
	assert.Contains(t, last.data.Message, "not a trademe url")
	assert.Zero(t, s.runs.Len())
}

func TestStartRunRejectsBadBody(t *testing.T) {
	srv, _, _ := newTestServer(t, nil, "")
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/runs", `{"link": "x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReviewAndPublishValidation(t *testing.T) {
	srv, _, _ := newTestServer(t, nil, "")
	events := startRun(t, srv)
	id := runIDFrom(t, events[len(events)-1])

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/runs/"+id+"/review", `{"selection": [5]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	for _, body := range []string{`{"platforms": []}`, `{"platforms": ["myspace"]}`, `{"platforms": ["facebook", "facebook"]}`} {
		resp = doJSON(t, http.MethodPost, srv.URL+"/api/runs/"+id+"/publish", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/runs/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/runs/does-not-exist/publish", `{"platforms": ["facebook"]}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAbandonRun(t *testing.T) {
	srv, s, host := newTestServer(t, nil, "")
	events := startRun(t, srv)
	id := runIDFrom(t, events[len(events)-1])

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/runs/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Zero(t, s.runs.Len())
	assert.Len(t, host.deleted, 1)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/runs/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStopAbandonsOpenRuns(t *testing.T) {
	srv, s, host := newTestServer(t, nil, "")
	startRun(t, srv)
	startRun(t, srv)
	require.Equal(t, 2, s.runs.Len())

	require.NoError(t, s.Stop(context.Background()))
	assert.Zero(t, s.runs.Len())
	assert.Len(t, host.deleted, 2)
}

func TestHealthAndListingsAndReceipts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tm-1"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tm-1", "facebook_1.jpg"), []byte("jpeg-bytes"), 0644))
	srv, _, _ := newTestServer(t, nil, dir)

	resp := doJSON(t, http.MethodGet, srv.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/listings/tm-1/facebook_1.jpg?v=123", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	buf := new(strings.Builder)
	_, _ = bufio.NewReader(resp.Body).WriteTo(buf)
	assert.Equal(t, "jpeg-bytes", buf.String())

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/listings/4567/receipts", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var receipts []models.Receipt
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&receipts))
	require.Len(t, receipts, 1)
	assert.Equal(t, "4567", receipts[0].ListingID)
}

func TestCORSPreflight(t *testing.T) {
	srv, _, _ := newTestServer(t, nil, "")
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/runs", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}
