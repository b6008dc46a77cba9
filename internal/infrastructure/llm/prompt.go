package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"Encyclopedia/internal/domain"
)

const defaultSystemPrompt = "You write neutral, well-sourced encyclopedia articles."

// buildPrompt asks for a single JSON object so both backends parse the same way.
func buildPrompt(p domain.GenerationPrompt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write an encyclopedia article about %q.\n", p.Topic)
	switch {
	case p.MinWords > 0 && p.MaxWords > 0:
		fmt.Fprintf(&b, "Length: between %d and %d words.\n", p.MinWords, p.MaxWords)
	case p.MinWords > 0:
		fmt.Fprintf(&b, "Length: at least %d words.\n", p.MinWords)
	case p.MaxWords > 0:
		fmt.Fprintf(&b, "Length: at most %d words.\n", p.MaxWords)
	}
	b.WriteString("Format the body as Markdown. Start with an infobox block {{Infobox ...}} when the subject has key facts.\n")
	b.WriteString(`Reply with one JSON object only: {"title": string, "content": string, "categories": [string], "tags": [string]}`)
	return b.String()
}

var (
	thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)
	codeFence  = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

type generatedPayload struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Categories []string `json:"categories"`
	Tags       []string `json:"tags"`
}

// parseGenerated extracts the JSON object from a model reply. Replies that are
// not JSON are taken as the article body.
func parseGenerated(raw string) domain.GeneratedContent {
	text := strings.TrimSpace(thinkBlock.ReplaceAllString(raw, ""))
	if m := codeFence.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		var payload generatedPayload
		if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err == nil && strings.TrimSpace(payload.Content) != "" {
			return domain.GeneratedContent{
				Title:      strings.TrimSpace(payload.Title),
				Content:    strings.TrimSpace(payload.Content),
				Categories: payload.Categories,
				Tags:       payload.Tags,
			}
		}
	}

	return domain.GeneratedContent{Content: text}
}
