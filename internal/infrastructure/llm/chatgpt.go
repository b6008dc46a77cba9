package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"Encyclopedia/internal/config"
	"Encyclopedia/internal/domain"
	"Encyclopedia/internal/ports"
)

// ChatGPTClient implements ports.ContentGenerator backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.ContentGenerator = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.ChatGPTConfig) *ChatGPTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChatGPTClient{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *ChatGPTClient) Name() string { return "chatgpt" }

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate sends the topic prompt as a user message and parses the reply.
func (c *ChatGPTClient) Generate(ctx context.Context, prompt domain.GenerationPrompt) (domain.GeneratedContent, error) {
	if c == nil {
		return domain.GeneratedContent{}, fmt.Errorf("chatgpt client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return domain.GeneratedContent{}, fmt.Errorf("chatgpt client misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": safePrompt(c.systemPrompt)},
			{"role": "user", "content": buildPrompt(prompt)},
		},
		"response_format": map[string]string{"type": "json_object"},
	})
	if err != nil {
		return domain.GeneratedContent{}, fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.GeneratedContent{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeneratedContent{}, fmt.Errorf("send prompt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.GeneratedContent{}, fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.GeneratedContent{}, fmt.Errorf("decode chatgpt response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return domain.GeneratedContent{}, fmt.Errorf("chatgpt returned no choices")
	}

	return parseGenerated(decoded.Choices[0].Message.Content), nil
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return defaultSystemPrompt
	}
	return prompt
}
