package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"Encyclopedia/internal/config"
	"Encyclopedia/internal/domain"
)

func TestParseGenerated(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		raw     string
		title   string
		content string
		cats    int
	}{
		{"plain json", `{"title":"Mars","content":"Red planet.","categories":["Astronomy"]}`, "Mars", "Red planet.", 1},
		{"fenced", "```json\n{\"title\":\"Mars\",\"content\":\"Red.\"}\n```", "Mars", "Red.", 0},
		{"think block", "<think>plan</think>{\"title\":\"T\",\"content\":\"C\"}", "T", "C", 0},
		{"prose", "Mars is the fourth planet.", "", "Mars is the fourth planet.", 0},
		{"json without content", `{"title":"Empty"}`, "", `{"title":"Empty"}`, 0},
	}

	for _, tc := range cases {
		got := parseGenerated(tc.raw)
		if got.Title != tc.title || got.Content != tc.content || len(got.Categories) != tc.cats {
			t.Fatalf("%s: unexpected %+v", tc.name, got)
		}
	}
}

func TestBuildPromptCarriesBounds(t *testing.T) {
	t.Parallel()

	p := buildPrompt(domain.GenerationPrompt{Topic: "Volcanoes", MinWords: 300, MaxWords: 600})
	if !strings.Contains(p, `"Volcanoes"`) || !strings.Contains(p, "between 300 and 600 words") {
		t.Fatalf("unexpected prompt %q", p)
	}
}

func TestChatGPTGenerate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Model != "gpt-test" || len(body.Messages) != 2 || !strings.Contains(body.Messages[1].Content, "Comets") {
			t.Errorf("unexpected request %+v", body)
		}
		reply := `{"title":"Comets","content":"Icy bodies.","tags":["space"]}`
		fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q}}]}`, reply)
	}))
	defer srv.Close()

	client := NewChatGPTClient(config.ChatGPTConfig{Endpoint: srv.URL, Model: "gpt-test", APIKey: "secret"})
	got, err := client.Generate(context.Background(), domain.GenerationPrompt{Topic: "Comets"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got.Title != "Comets" || got.Content != "Icy bodies." || len(got.Tags) != 1 {
		t.Fatalf("unexpected content %+v", got)
	}
}

func TestChatGPTErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewChatGPTClient(config.ChatGPTConfig{Endpoint: srv.URL, Model: "m", APIKey: "k"})
	if _, err := client.Generate(context.Background(), domain.GenerationPrompt{Topic: "x"}); err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}

	misconfigured := NewChatGPTClient(config.ChatGPTConfig{Endpoint: srv.URL})
	if _, err := misconfigured.Generate(context.Background(), domain.GenerationPrompt{Topic: "x"}); err == nil {
		t.Fatal("expected misconfiguration error")
	}
}

func TestOllamaGenerateStreams(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		chunks := []string{`{"title":"Tides",`, `"content":"Sea levels rise and fall."}`}
		for _, chunk := range chunks {
			line, _ := json.Marshal(map[string]any{"model": "m", "response": chunk, "done": false})
			fmt.Fprintf(w, "%s\n", line)
		}
		fmt.Fprintln(w, `{"model":"m","response":"","done":true}`)
	}))
	defer srv.Close()

	client, err := NewOllamaClient(config.OllamaConfig{Host: srv.URL, Model: "m"}, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	got, err := client.Generate(context.Background(), domain.GenerationPrompt{Topic: "Tides"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got.Title != "Tides" || got.Content != "Sea levels rise and fall." {
		t.Fatalf("unexpected content %+v", got)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(NewChatGPTClient(config.ChatGPTConfig{}))

	if g, err := r.Resolve("chatgpt"); err != nil || g.Name() != "chatgpt" {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := r.Resolve("ollama"); err == nil {
		t.Fatal("expected error for missing backend")
	}
}
