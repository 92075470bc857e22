// Package bookmark mirrors created items into a linkding-compatible
// bookmark service.
package bookmark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hkfcheung/regintel-sub001/internal/pipeline"
)

// Config locates the bookmark service.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the bookmark service REST API. Failures are reported to
// the caller as-is; the ingestion pipeline treats them as degraded.
type Client struct {
	cfg  Config
	http *http.Client
}

// New builds a Client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type createRequest struct {
	URL      string   `json:"url"`
	Title    string   `json:"title,omitempty"`
	TagNames []string `json:"tag_names,omitempty"`
}

type createResponse struct {
	ID json.Number `json:"id"`
}

// Create stores one bookmark and returns the service-assigned id.
func (c *Client) Create(ctx context.Context, b pipeline.Bookmark) (string, error) {
	payload, err := json.Marshal(createRequest{
		URL:      b.URL,
		Title:    b.Title,
		TagNames: b.Tags,
	})
	if err != nil {
		return "", fmt.Errorf("encode bookmark: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/bookmarks/"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build bookmark request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.cfg.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("bookmark request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("bookmark service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var created createResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode bookmark response: %w", err)
	}
	return created.ID.String(), nil
}
