package copygen

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-publisher/models"
	"listing-publisher/utils"
)

func strPtr(s string) *string { return &s }

func sampleListing() *models.Listing {
	return &models.Listing{
		URL:         "https://www.trademe.co.nz/a/property/residential/rent/listing/4567",
		ListingID:   "4567",
		Title:       strPtr("Sunny villa in Grey Lynn"),
		Price:       strPtr("$850 per week"),
		Description: strPtr("Three bedrooms close to Ponsonby Rd."),
		Attributes:  map[string]bool{"3 bedrooms": true, "Pets OK": true, "Pool": false},
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(sampleListing())

	assert.Contains(t, prompt, "Title: Sunny villa in Grey Lynn")
	assert.Contains(t, prompt, "Price: $850 per week")
	assert.Contains(t, prompt, "Address: N/A")
	assert.Contains(t, prompt, "Features: 3 bedrooms, Pets OK")
	assert.NotContains(t, prompt, "Pool")
	assert.Contains(t, prompt, "Include the listing link at the end: https://www.trademe.co.nz/a/property/residential/rent/listing/4567")
	assert.Contains(t, prompt, `{"facebook": "post text here", "instagram": "caption text here"}`)
}

func TestBuildPromptEmptyListing(t *testing.T) {
	prompt := BuildPrompt(&models.Listing{URL: "https://www.trademe.co.nz/listing/1"})
	assert.Contains(t, prompt, "Title: N/A")
	assert.Contains(t, prompt, "Features: N/A")
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    models.CaptionPair
		wantErr bool
	}{
		{
			name: "bare object",
			text: `{"facebook": "fb text", "instagram": "ig text"}`,
			want: models.CaptionPair{Facebook: "fb text", Instagram: "ig text"},
		},
		{
			name: "fenced with prose",
			text: "Here you go:\n```json\n{\"facebook\": \"a {braced} post\", \"instagram\": \"b\"}\n```\nEnjoy!",
			want: models.CaptionPair{Facebook: "a {braced} post", Instagram: "b"},
		},
		{name: "no object", text: "Sorry, I can't help with that.", wantErr: true},
		{name: "missing instagram", text: `{"facebook": "only one"}`, wantErr: true},
		{name: "empty facebook", text: `{"facebook": "  ", "instagram": "b"}`, wantErr: true},
		{name: "wrong type", text: `{"facebook": 3, "instagram": "b"}`, wantErr: true},
		{name: "broken json", text: `{"facebook": "a", "instagram": }`, wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseResponse(tt.text)
		if tt.wantErr {
			assert.ErrorIs(t, err, models.ErrCopyGeneration, tt.name)
			continue
		}
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func messagesServer(t *testing.T, status int, reply string) (*httptest.Server, *string) {
	t.Helper()
	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Messages []struct {
				Content []struct {
					Text string `json:"text"`
				} `json:"content"`
			} `json:"messages"`
		}
		_ = json.Unmarshal(body, &req)
		if len(req.Messages) > 0 && len(req.Messages[0].Content) > 0 {
			prompt = req.Messages[0].Content[0].Text
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &prompt
}

func messageJSON(text string) string {
	b, _ := json.Marshal(map[string]any{
		"id":            "msg_test",
		"type":          "message",
		"role":          "assistant",
		"model":         "claude-test",
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"content":       []map[string]any{{"type": "text", "text": text}},
		"usage":         map[string]any{"input_tokens": 10, "output_tokens": 20},
	})
	return string(b)
}

func newTestClaude(srv *httptest.Server) *Claude {
	return NewClaude("test-key", "claude-test", 1000, utils.NewDiscardLogger(),
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
}

func TestClaudeGenerate(t *testing.T) {
	srv, prompt := messagesServer(t, http.StatusOK,
		messageJSON(`{"facebook": "Big sunny villa. https://www.trademe.co.nz/listing/4567", "instagram": "Picture this #ForRent"}`))

	pair, err := newTestClaude(srv).Generate(context.Background(), sampleListing())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pair.Facebook, "Big sunny villa."))
	assert.Equal(t, "Picture this #ForRent", pair.Instagram)
	assert.Contains(t, *prompt, "Sunny villa in Grey Lynn")
}

func TestClaudeGenerateMalformedReply(t *testing.T) {
	srv, _ := messagesServer(t, http.StatusOK, messageJSON(`{"facebook": "just one"}`))

	_, err := newTestClaude(srv).Generate(context.Background(), sampleListing())
	assert.ErrorIs(t, err, models.ErrCopyGeneration)
}

func TestClaudeGenerateAPIError(t *testing.T) {
	srv, _ := messagesServer(t, http.StatusBadRequest,
		`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)

	_, err := newTestClaude(srv).Generate(context.Background(), sampleListing())
	assert.ErrorIs(t, err, models.ErrCopyGeneration)
}
