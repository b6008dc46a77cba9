package domain

import "fmt"

// GenerationPrompt is one request to the text-generation backend.
type GenerationPrompt struct {
	Topic    string
	MinWords int
	MaxWords int
}

// GeneratedContent is what a backend returns for a single topic.
type GeneratedContent struct {
	Title      string
	Content    string
	Categories []string
	Tags       []string
}

// BatchOutcome summarises a generation batch.
type BatchOutcome string

const (
	OutcomeComplete BatchOutcome = "complete"
	OutcomePartial  BatchOutcome = "partial"
	OutcomeFailed   BatchOutcome = "failed"
)

// BatchResult is the structured partial-result summary of a generation batch.
type BatchResult struct {
	Requested  int
	Created    int
	ArticleIDs []string
	Failures   []string
	Attempted  []string
	Outcome    BatchOutcome
}

// Unmet is the number of requested items that were not created.
func (r BatchResult) Unmet() int {
	return r.Requested - r.Created
}

// Summary renders the short human-readable outcome.
func (r BatchResult) Summary() string {
	switch r.Outcome {
	case OutcomeComplete:
		return fmt.Sprintf("all %d articles generated", r.Created)
	case OutcomePartial:
		return fmt.Sprintf("%d of %d articles generated, %d not generated", r.Created, r.Requested, r.Unmet())
	default:
		return "no articles could be generated"
	}
}
