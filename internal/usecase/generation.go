package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"Encyclopedia/internal/apperr"
	"Encyclopedia/internal/backoff"
	"Encyclopedia/internal/domain"
	"Encyclopedia/internal/ports"
)

var errEmptyGeneration = errors.New("generation returned no content")

// BatchRequest is a transient generation job.
type BatchRequest struct {
	Topics            []string
	Count             int
	MinWords          int
	MaxWords          int
	MaxRetriesPerItem int
	Requester         domain.Actor
	// OnProgress is called with completed/total after every created article.
	OnProgress func(completed, total int)
}

// BatchProgress is the orchestrator's view of the running or last unfinished batch.
type BatchProgress struct {
	Running   bool
	Completed int
	Total     int
	Failures  []string
}

// Orchestrator drives AI-assisted draft creation, one generation per
// requested item, cycling through topics with bounded per-item retries.
type Orchestrator struct {
	deps      *Deps
	articles  *Articles
	generator ports.ContentGenerator
	policy    backoff.Policy

	mu    sync.Mutex
	state BatchProgress
}

// NewOrchestrator wires a generation backend with a retry policy.
func NewOrchestrator(deps Deps, articles *Articles, generator ports.ContentGenerator, policy backoff.Policy) *Orchestrator {
	return &Orchestrator{
		deps:      deps.withDefaults(),
		articles:  articles,
		generator: generator,
		policy:    policy,
	}
}

// Progress returns a snapshot of the orchestrator state.
func (o *Orchestrator) Progress() BatchProgress {
	o.mu.Lock()
	defer o.mu.Unlock()
	snapshot := o.state
	snapshot.Failures = append([]string(nil), o.state.Failures...)
	return snapshot
}

// GenerateBatch creates req.Count draft articles. A cancelled ctx stops the
// batch between attempts; the result then describes what was done.
func (o *Orchestrator) GenerateBatch(ctx context.Context, req BatchRequest) (domain.BatchResult, error) {
	const op = "generate batch"

	if err := o.deps.authorize(op, req.Requester, domain.ActionGenerate); err != nil {
		return domain.BatchResult{}, err
	}
	topics, err := validateBatch(op, &req)
	if err != nil {
		return domain.BatchResult{}, err
	}
	if o.generator == nil {
		return domain.BatchResult{}, apperr.New(apperr.CodeValidation, op, "no generation backend is configured")
	}
	if err := o.begin(req.Count); err != nil {
		return domain.BatchResult{}, err
	}

	logger := o.deps.Logger.With("op", op, "backend", o.generator.Name(), "count", req.Count)
	logger.Info("batch started", "topics", len(topics))

	policy := o.policy.WithAttempts(req.MaxRetriesPerItem)
	result := domain.BatchResult{Requested: req.Count}

	var stopErr error
	for i := 0; i < req.Count; i++ {
		topic := topics[i%len(topics)]
		result.Attempted = append(result.Attempted, topic)

		var generated domain.GeneratedContent
		attempts, genErr := policy.Retry(ctx, func(attempt int) error {
			content, err := o.generator.Generate(ctx, domain.GenerationPrompt{
				Topic:    topic,
				MinWords: req.MinWords,
				MaxWords: req.MaxWords,
			})
			if err == nil && strings.TrimSpace(content.Content) == "" {
				err = errEmptyGeneration
			}
			if err != nil {
				logger.Warn("generation attempt failed", "topic", topic, "item", i, "attempt", attempt, "error", err)
				return err
			}
			generated = content
			return nil
		})
		if ctxErr := ctx.Err(); ctxErr != nil {
			stopErr = ctxErr
			break
		}

		if genErr == nil {
			var article domain.Article
			article, genErr = o.persist(ctx, req.Requester, topic, generated)
			if genErr == nil {
				result.Created++
				result.ArticleIDs = append(result.ArticleIDs, article.ID)
				o.deps.Metrics.GenerationItem("created")
				o.advance(result.Created, nil)
				if req.OnProgress != nil {
					req.OnProgress(result.Created, req.Count)
				}
				logger.Info("article generated", "topic", topic, "article_id", article.ID, "attempts", attempts, "words", o.wordCount(article.Content))
				continue
			}
		}

		result.Failures = append(result.Failures, topic)
		o.deps.Metrics.GenerationItem("failed")
		o.advance(result.Created, &topic)
		logger.Error("item failed", "topic", topic, "item", i, "attempts", attempts, "error", genErr)

		if i < req.Count-1 {
			if err := policy.Wait(ctx, policy.FailureDelay); err != nil {
				stopErr = err
				break
			}
		}
	}

	result.Outcome = outcomeOf(result)
	o.finish(result)
	o.deps.Metrics.BatchFinished(result)
	logger.Info("batch finished", "created", result.Created, "failures", len(result.Failures), "outcome", result.Outcome)

	if stopErr != nil {
		return result, fmt.Errorf("%s: stopped: %w", op, stopErr)
	}
	return result, nil
}

func (o *Orchestrator) persist(ctx context.Context, requester domain.Actor, topic string, generated domain.GeneratedContent) (domain.Article, error) {
	title := strings.TrimSpace(generated.Title)
	if title == "" {
		title = topic
	}

	categories := normalizeTerms(generated.Categories)
	if len(categories) == 0 && o.deps.Classifier != nil {
		classified, err := o.deps.Classifier.Classify(ctx, title, generated.Content)
		if err != nil {
			o.deps.Logger.Warn("classification failed", "topic", topic, "error", err)
		}
		categories = normalizeTerms(classified)
	}

	article, _, err := o.articles.create(ctx, requester, domain.Article{
		Title:                title,
		Content:              generated.Content,
		Categories:           categories,
		Tags:                 normalizeTerms(generated.Tags),
		IsAIGenerated:        true,
		CategoriesLockedByAI: len(categories) > 0,
	}, fmt.Sprintf("Generated from topic %q", topic))
	return article, err
}

func (o *Orchestrator) wordCount(content string) int {
	if o.deps.Inspector == nil {
		return len(strings.Fields(content))
	}
	return o.deps.Inspector.WordCount(content)
}

func validateBatch(op string, req *BatchRequest) ([]string, error) {
	topics := make([]string, 0, len(req.Topics))
	for _, topic := range req.Topics {
		if t := strings.TrimSpace(topic); t != "" {
			topics = append(topics, t)
		}
	}
	switch {
	case len(topics) == 0:
		return nil, apperr.New(apperr.CodeValidation, op, "at least one topic is required")
	case req.Count < 1:
		return nil, apperr.New(apperr.CodeValidation, op, "count must be at least 1")
	case req.MinWords < 0 || req.MaxWords < 0:
		return nil, apperr.New(apperr.CodeValidation, op, "word bounds must not be negative")
	case req.MaxWords > 0 && req.MinWords > req.MaxWords:
		return nil, apperr.New(apperr.CodeValidation, op, "minimum length exceeds maximum length")
	}
	return topics, nil
}

func outcomeOf(result domain.BatchResult) domain.BatchOutcome {
	switch {
	case result.Created == 0:
		return domain.OutcomeFailed
	case result.Created < result.Requested:
		return domain.OutcomePartial
	default:
		return domain.OutcomeComplete
	}
}

func (o *Orchestrator) begin(total int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Running {
		return apperr.New(apperr.CodeConflict, "generate batch", "a generation batch is already running")
	}
	o.state = BatchProgress{Running: true, Total: total}
	return nil
}

func (o *Orchestrator) advance(completed int, failedTopic *string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Completed = completed
	if failedTopic != nil {
		o.state.Failures = append(o.state.Failures, *failedTopic)
	}
}

func (o *Orchestrator) finish(result domain.BatchResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if result.Outcome == domain.OutcomeComplete {
		o.state = BatchProgress{}
		return
	}
	o.state.Running = false
}
