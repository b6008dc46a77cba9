package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"Encyclopedia/internal/apperr"
	"Encyclopedia/internal/domain"
	"Encyclopedia/internal/infrastructure/storage"
	"Encyclopedia/internal/ports"
)

var (
	author    = domain.Actor{ID: "u-ann", Name: "Ann", Role: domain.RoleAuthor}
	otherUser = domain.Actor{ID: "u-bo", Name: "Bo", Role: domain.RoleAuthor}
	moderator = domain.Actor{ID: "u-mod", Name: "Mia", Role: domain.RoleModerator}
	admin     = domain.Actor{ID: "u-root", Name: "Root", Role: domain.RoleAdmin}
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// stepClock advances by one second on every read.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%04d", s.n)
}

type templateInspector struct{}

func (templateInspector) HasInfobox(content string) bool { return strings.Contains(content, "{{Infobox") }
func (templateInspector) WordCount(content string) int   { return len(strings.Fields(content)) }

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) NotifyModerators(_ context.Context, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

type fakeImages struct {
	keys []string
	err  error
}

func (f *fakeImages) Put(_ context.Context, key, _ string, _ []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return "https://cdn.test/" + key, nil
}

type staticClassifier []string

func (c staticClassifier) Classify(context.Context, string, string) ([]string, error) {
	return c, nil
}

type env struct {
	store      *storage.Memory
	deps       Deps
	notifier   *recordingNotifier
	images     *fakeImages
	versions   *VersionStore
	slugs      *SlugResolver
	articles   *Articles
	moderation *Moderation
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWith(t, storage.NewMemory())
}

func newEnvWith(t *testing.T, repo ports.Repository) *env {
	t.Helper()

	ids := &seqIDs{}
	e := &env{notifier: &recordingNotifier{}, images: &fakeImages{}}
	if mem, ok := repo.(*storage.Memory); ok {
		e.store = mem
	}
	e.deps = Deps{
		Repository: repo,
		Clock:      &stepClock{now: epoch},
		Inspector:  templateInspector{},
		Notifier:   e.notifier,
		Images:     e.images,
		NewID:      ids.next,
	}
	e.versions = NewVersionStore(e.deps)
	e.slugs = NewSlugResolver(e.deps)
	e.articles = NewArticles(e.deps, e.versions, e.slugs)
	e.moderation = NewModeration(e.deps, e.versions)
	return e
}

func (e *env) draft(t *testing.T, title, content string) domain.Article {
	t.Helper()
	res, err := e.articles.Save(context.Background(), author, SaveRequest{Title: title, Content: content})
	if err != nil {
		t.Fatalf("create %q: %v", title, err)
	}
	return res.Article
}

// published creates an article and walks it through its first review.
func (e *env) published(t *testing.T, title, content string) domain.Article {
	t.Helper()
	ctx := context.Background()
	a := e.draft(t, title, content)
	if _, err := e.articles.Submit(ctx, author, a.ID, true); err != nil {
		t.Fatalf("submit: %v", err)
	}
	out, err := e.moderation.ApproveSubmission(ctx, moderator, a.ID)
	if err != nil {
		t.Fatalf("approve submission: %v", err)
	}
	return out
}

func (e *env) history(t *testing.T, articleID string) []domain.Version {
	t.Helper()
	vs, err := e.versions.History(context.Background(), articleID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	return vs
}

func wantCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := apperr.CodeOf(err); got != code {
		t.Fatalf("expected %s, got %s (%v)", code, got, err)
	}
}

// noTx hides the memory store's Transactor so writes run one by one.
type noTx struct {
	ports.Repository
	failUpdate bool
}

func (n *noTx) UpdateArticle(ctx context.Context, a domain.Article, expected string) error {
	if n.failUpdate {
		return errors.New("connection reset")
	}
	return n.Repository.UpdateArticle(ctx, a, expected)
}
