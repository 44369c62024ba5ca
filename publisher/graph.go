package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"listing-publisher/models"
	"listing-publisher/utils"
)

// APIError is a non-2xx reply from the Graph API.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Body    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("graph %s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("graph %s %s: %d %s", e.Method, e.Path, e.Status, e.Body)
}

func (e *APIError) Unwrap() error {
	return models.ErrPublishUpload
}

// Graph is a minimal client for the versioned Graph HTTP API. Every call is
// authenticated with the page token as a bearer credential.
type Graph struct {
	base       string
	token      string
	httpClient *http.Client
	logger     *utils.Logger
}

func NewGraph(base, token string, timeout time.Duration, logger *utils.Logger) *Graph {
	return &Graph{
		base:       strings.TrimRight(base, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type idResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

type statusResponse struct {
	StatusCode string `json:"status_code"`
	Status     string `json:"status"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// post sends form as application/x-www-form-urlencoded and decodes the reply into out.
func (g *Graph) post(ctx context.Context, path string, form url.Values, out any) error {
	return g.do(ctx, http.MethodPost, path, strings.NewReader(form.Encode()), out)
}

func (g *Graph) get(ctx context.Context, path string, query url.Values, out any) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return g.do(ctx, http.MethodGet, path, nil, out)
}

func (g *Graph) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, g.base+"/"+strings.TrimLeft(path, "/"), body)
	if err != nil {
		return fmt.Errorf("graph: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("graph %s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Method: method, Path: stripQuery(path), Status: resp.StatusCode, Body: string(data)}
		var env errorEnvelope
		if json.Unmarshal(data, &env) == nil {
			apiErr.Message = env.Error.Message
		}
		g.logger.Error("[graph] %s %s -> %d: %s", method, apiErr.Path, resp.StatusCode, string(data))
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("graph %s %s: decode reply: %w", method, stripQuery(path), err)
	}
	return nil
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
