package images

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-publisher/models"
	"listing-publisher/utils"
)

type memoryHost struct {
	mu     sync.Mutex
	puts   map[string][]byte
	failOn string
}

func newMemoryHost() *memoryHost {
	return &memoryHost{puts: make(map[string][]byte)}
}

func (h *memoryHost) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if h.failOn != "" && strings.Contains(key, h.failOn) {
		return "", errors.New("bucket unavailable")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.puts[key] = data
	return "https://cdn.test/" + key, nil
}

func (h *memoryHost) Delete(_ context.Context, key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.puts, key)
	return nil
}

func TestPrepareSelectsAndHostsEveryPlatform(t *testing.T) {
	srv := galleryServer(t, map[string][]byte{
		"/small.png":  pngBytes(t, 600, 600),
		"/wide.png":   pngBytes(t, 1200, 900),
		"/square.png": pngBytes(t, 1000, 1000),
	})
	host := newMemoryHost()
	p := NewPreparer(testFetcher(), host, 2, utils.NewDiscardLogger())

	var messages []string
	prepared, err := p.Prepare(context.Background(),
		[]string{srv.URL + "/small.png", srv.URL + "/wide.png", srv.URL + "/square.png"},
		"tm-123", 2, func(m string) { messages = append(messages, m) })
	require.NoError(t, err)

	require.Len(t, prepared.Images, 2)
	assert.Equal(t, srv.URL+"/wide.png", prepared.Images[0].SourceURL)
	assert.Equal(t, srv.URL+"/square.png", prepared.Images[1].SourceURL)

	for i, img := range prepared.Images {
		assert.True(t, img.Selected)
		for _, platform := range models.Platforms {
			r, ok := img.Renditions[platform]
			require.True(t, ok, "image %d missing %s rendition", i, platform)
			w, h := platform.Canvas()
			assert.Equal(t, w, r.Width)
			assert.Equal(t, h, r.Height)
			assert.Equal(t, "https://cdn.test/"+r.Key, r.URL)
			assert.True(t, strings.HasPrefix(r.Key, "tm-123/"))
		}
	}

	assert.Len(t, prepared.Keys, 4)
	assert.Len(t, host.puts, 4)
	assert.Contains(t, host.puts, "tm-123/facebook_1.jpg")
	assert.Contains(t, host.puts, "tm-123/instagram_2.jpg")
	assert.Equal(t, "Downloading 3 images...", messages[0])
	assert.Equal(t, "Prepared 2 images", messages[len(messages)-1])
}

func TestPrepareNoUsableImages(t *testing.T) {
	srv := galleryServer(t, nil)
	p := NewPreparer(testFetcher(), newMemoryHost(), 2, utils.NewDiscardLogger())

	prepared, err := p.Prepare(context.Background(), []string{srv.URL + "/gone.png"}, "tm-1", 5, nil)
	assert.ErrorIs(t, err, models.ErrNoImages)
	assert.Empty(t, prepared.Keys)
}

func TestPrepareReportsHostedKeysOnFailure(t *testing.T) {
	srv := galleryServer(t, map[string][]byte{
		"/one.png": pngBytes(t, 1200, 1200),
		"/two.png": pngBytes(t, 800, 800),
	})
	host := newMemoryHost()
	host.failOn = "instagram_2"
	p := NewPreparer(testFetcher(), host, 1, utils.NewDiscardLogger())

	prepared, err := p.Prepare(context.Background(),
		[]string{srv.URL + "/one.png", srv.URL + "/two.png"}, "tm-9", 2, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unavailable")
	assert.Contains(t, prepared.Keys, "tm-9/facebook_2.jpg")
	for _, key := range prepared.Keys {
		assert.Contains(t, host.puts, key)
	}
}
