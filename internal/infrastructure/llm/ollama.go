package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	ollama "github.com/ollama/ollama/api"

	"Encyclopedia/internal/config"
	"Encyclopedia/internal/domain"
	"Encyclopedia/internal/ports"
)

// OllamaClient generates articles with a locally served model.
type OllamaClient struct {
	model  string
	client *ollama.Client
}

var _ ports.ContentGenerator = (*OllamaClient)(nil)

// NewOllamaClient connects to cfg.Host, or to OLLAMA_HOST when Host is empty.
func NewOllamaClient(cfg config.OllamaConfig, httpClient *http.Client) (*OllamaClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model is required")
	}

	if cfg.Host == "" {
		client, err := ollama.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama client: %w", err)
		}
		return &OllamaClient{model: cfg.Model, client: client}, nil
	}

	base, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OllamaClient{model: cfg.Model, client: ollama.NewClient(base, httpClient)}, nil
}

func (c *OllamaClient) Name() string { return "ollama" }

// Generate streams the reply and parses it once complete.
func (c *OllamaClient) Generate(ctx context.Context, prompt domain.GenerationPrompt) (domain.GeneratedContent, error) {
	var response strings.Builder
	err := c.client.Generate(ctx, &ollama.GenerateRequest{
		Model:  c.model,
		System: defaultSystemPrompt,
		Prompt: buildPrompt(prompt),
		Format: []byte(`"json"`),
		Options: map[string]any{
			"temperature": 0.4,
		},
	}, func(res ollama.GenerateResponse) error {
		response.WriteString(res.Response)
		return nil
	})
	if err != nil {
		return domain.GeneratedContent{}, fmt.Errorf("ollama generate: %w", err)
	}

	return parseGenerated(response.String()), nil
}
