package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"Encyclopedia/internal/ports"
)

// Client talks to an external ML service that assigns article categories.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.Classifier = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Classify sends the article text and returns the predicted categories.
func (c *Client) Classify(ctx context.Context, title, content string) ([]string, error) {
	if c.http == nil || c.endpoint == "" {
		return nil, nil
	}

	payload := map[string]any{
		"title":   title,
		"content": content,
	}

	var resp struct {
		Categories []string `json:"categories"`
	}

	if err := c.post(ctx, "/classify", payload, &resp); err != nil {
		return nil, err
	}

	return resp.Categories, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
