package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"Encyclopedia/internal/apperr"
	"Encyclopedia/internal/backoff"
	"Encyclopedia/internal/domain"
)

type scriptedGenerator struct {
	mu      sync.Mutex
	calls   []string
	failing map[string]bool
	empty   map[string]bool
	cats    []string
}

func (g *scriptedGenerator) Name() string { return "scripted" }

func (g *scriptedGenerator) Generate(_ context.Context, prompt domain.GenerationPrompt) (domain.GeneratedContent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, prompt.Topic)
	if g.failing[prompt.Topic] {
		return domain.GeneratedContent{}, errors.New("backend unavailable")
	}
	if g.empty[prompt.Topic] {
		return domain.GeneratedContent{Title: prompt.Topic}, nil
	}
	return domain.GeneratedContent{
		Title:      "About " + prompt.Topic,
		Content:    "Generated text on " + prompt.Topic,
		Categories: g.cats,
	}, nil
}

type sleepLog struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func newOrchestrator(e *env, gen *scriptedGenerator, sleeps *sleepLog) *Orchestrator {
	policy := backoff.Default()
	policy.Sleep = sleeps.sleep
	return NewOrchestrator(e.deps, e.articles, gen, policy)
}

func TestBatchCyclesTopics(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	gen := &scriptedGenerator{}
	o := newOrchestrator(e, gen, &sleepLog{})

	var progress []int
	result, err := o.GenerateBatch(context.Background(), BatchRequest{
		Topics:     []string{"a", " b "},
		Count:      5,
		Requester:  author,
		OnProgress: func(done, total int) { progress = append(progress, done) },
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if got := strings.Join(result.Attempted, ","); got != "a,b,a,b,a" {
		t.Fatalf("unexpected topic order %s", got)
	}
	if result.Created != 5 || result.Outcome != domain.OutcomeComplete || len(result.ArticleIDs) != 5 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(progress) != 5 || progress[4] != 5 {
		t.Fatalf("unexpected progress callbacks %v", progress)
	}

	article, err := e.articles.Get(context.Background(), result.ArticleIDs[0])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !article.IsAIGenerated || article.Status != domain.StatusDraft || article.Title != "About a" {
		t.Fatalf("unexpected generated article: %+v", article)
	}
	if p := o.Progress(); p.Running {
		t.Fatalf("finished batch still running: %+v", p)
	}
}

func TestFailingTopicDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	gen := &scriptedGenerator{failing: map[string]bool{"x": true}}
	sleeps := &sleepLog{}
	o := newOrchestrator(e, gen, sleeps)

	result, err := o.GenerateBatch(context.Background(), BatchRequest{
		Topics:            []string{"x", "y"},
		Count:             3,
		MaxRetriesPerItem: 3,
		Requester:         author,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if result.Created != 1 || result.Outcome != domain.OutcomePartial {
		t.Fatalf("unexpected result: %+v", result)
	}
	if strings.Join(result.Failures, ",") != "x,x" {
		t.Fatalf("unexpected failures %v", result.Failures)
	}
	if got := strings.Join(gen.calls, ","); got != "x,x,x,y,x,x,x" {
		t.Fatalf("unexpected generator calls %s", got)
	}

	// Two retry delays per failed item plus one failure pause before y.
	var pauses int
	for _, d := range sleeps.delays {
		if d == backoff.Default().FailureDelay {
			pauses++
		}
	}
	if len(sleeps.delays) != 5 || pauses != 1 {
		t.Fatalf("unexpected sleeps %v", sleeps.delays)
	}

	p := o.Progress()
	if p.Running || p.Completed != 1 || len(p.Failures) != 2 {
		t.Fatalf("unexpected progress %+v", p)
	}
	if result.Summary() == "" {
		t.Fatal("empty summary")
	}
}

func TestEmptyGenerationCountsAsFailure(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	gen := &scriptedGenerator{empty: map[string]bool{"void": true}}
	o := newOrchestrator(e, gen, &sleepLog{})

	result, err := o.GenerateBatch(context.Background(), BatchRequest{Topics: []string{"void"}, Count: 1, MaxRetriesPerItem: 2, Requester: author})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Created != 0 || result.Outcome != domain.OutcomeFailed || len(gen.calls) != 2 {
		t.Fatalf("unexpected result %+v calls=%v", result, gen.calls)
	}
}

func TestGeneratedCategoriesAreLocked(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t)
	e.deps.Classifier = staticClassifier{"Astronomy"}
	o := newOrchestrator(e, &scriptedGenerator{}, &sleepLog{})

	result, err := o.GenerateBatch(ctx, BatchRequest{Topics: []string{"stars"}, Count: 1, Requester: author})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	article, err := e.articles.Get(ctx, result.ArticleIDs[0])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !article.CategoriesLockedByAI || len(article.Categories) != 1 || article.Categories[0] != "Astronomy" {
		t.Fatalf("classifier categories not applied: %+v", article)
	}

	unlocked := newOrchestrator(newEnv(t), &scriptedGenerator{}, &sleepLog{})
	res, err := unlocked.GenerateBatch(ctx, BatchRequest{Topics: []string{"stars"}, Count: 1, Requester: author})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Created != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestCancelledBatchStops(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	gen := &scriptedGenerator{}
	o := newOrchestrator(e, gen, &sleepLog{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result, err := o.GenerateBatch(ctx, BatchRequest{
		Topics:     []string{"a"},
		Count:      4,
		Requester:  author,
		OnProgress: func(done, _ int) { cancel() },
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if result.Created != 1 || result.Outcome != domain.OutcomePartial || len(gen.calls) != 1 {
		t.Fatalf("unexpected result %+v calls=%v", result, gen.calls)
	}
}

func TestBatchValidation(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	o := newOrchestrator(e, &scriptedGenerator{}, &sleepLog{})
	ctx := context.Background()

	cases := []struct {
		name string
		req  BatchRequest
		code apperr.Code
	}{
		{"no topics", BatchRequest{Topics: []string{" "}, Count: 1, Requester: author}, apperr.CodeValidation},
		{"zero count", BatchRequest{Topics: []string{"a"}, Requester: author}, apperr.CodeValidation},
		{"inverted bounds", BatchRequest{Topics: []string{"a"}, Count: 1, MinWords: 500, MaxWords: 100, Requester: author}, apperr.CodeValidation},
		{"anonymous", BatchRequest{Topics: []string{"a"}, Count: 1}, apperr.CodeForbidden},
	}
	for _, tc := range cases {
		_, err := o.GenerateBatch(ctx, tc.req)
		if apperr.CodeOf(err) != tc.code {
			t.Fatalf("%s: expected %s, got %v", tc.name, tc.code, err)
		}
	}

	missing := NewOrchestrator(e.deps, e.articles, nil, backoff.Default())
	_, err := missing.GenerateBatch(ctx, BatchRequest{Topics: []string{"a"}, Count: 1, Requester: author})
	wantCode(t, err, apperr.CodeValidation)
}

func TestOnlyOneBatchRuns(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	o := newOrchestrator(e, &scriptedGenerator{}, &sleepLog{})
	ctx := context.Background()

	var inner error
	_, err := o.GenerateBatch(ctx, BatchRequest{
		Topics:    []string{"a"},
		Count:     1,
		Requester: author,
		OnProgress: func(int, int) {
			_, inner = o.GenerateBatch(ctx, BatchRequest{Topics: []string{"b"}, Count: 1, Requester: author})
		},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	wantCode(t, inner, apperr.CodeConflict)
}
