package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"Encyclopedia/internal/backoff"
	"Encyclopedia/internal/domain"
	"Encyclopedia/internal/infrastructure/authz"
	"Encyclopedia/internal/infrastructure/markup"
	"Encyclopedia/internal/infrastructure/storage"
	"Encyclopedia/internal/usecase"
)

var (
	author    = domain.Actor{ID: "u-1", Name: "Ada", Role: domain.RoleAuthor}
	moderator = domain.Actor{ID: "u-2", Name: "Mod", Role: domain.RoleModerator}
)

type echoGenerator struct{}

func (echoGenerator) Name() string { return "echo" }

func (echoGenerator) Generate(_ context.Context, p domain.GenerationPrompt) (domain.GeneratedContent, error) {
	return domain.GeneratedContent{Title: "On " + p.Topic, Content: "Text about " + p.Topic}, nil
}

type memImages struct{ keys []string }

func (m *memImages) Put(_ context.Context, key, _ string, _ []byte) (string, error) {
	m.keys = append(m.keys, key)
	return "https://cdn.test/" + key, nil
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testServer struct {
	router   *gin.Engine
	verifier TokenVerifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	authorizer, err := authz.NewCasbinAuthorizer(domain.Permissions, nil)
	if err != nil {
		t.Fatalf("authorizer: %v", err)
	}
	inspector := markup.NewInspector()

	deps := usecase.Deps{
		Repository: storage.NewMemory(),
		Inspector:  inspector,
		Authorizer: authorizer,
		Images:     &memImages{},
	}
	versions := usecase.NewVersionStore(deps)
	slugs := usecase.NewSlugResolver(deps)
	articles := usecase.NewArticles(deps, versions, slugs)

	policy := backoff.Default()
	policy.Sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	verifier := TokenVerifier{Secret: []byte("test-secret"), Issuer: "encyclopedia"}
	router := NewRouter(Handlers{
		Articles:   articles,
		Versions:   versions,
		Moderation: usecase.NewModeration(deps, versions),
		Generation: usecase.NewOrchestrator(deps, articles, echoGenerator{}, policy),
		Renderer:   inspector,
		Auth:       verifier,
	})
	return &testServer{router: router, verifier: verifier}
}

func (s *testServer) do(t *testing.T, actor *domain.Actor, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(t, *actor))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) token(t *testing.T, actor domain.Actor) string {
	t.Helper()
	token, err := s.verifier.Issue(actor, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d: %s", rec.Code, want, rec.Body.String())
	}
}

func TestRequiresBearerToken(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	expectStatus(t, s.do(t, nil, http.MethodGet, "/api/moderation/pending", nil), http.StatusUnauthorized)

	forged := TokenVerifier{Secret: []byte("other"), Issuer: "encyclopedia"}
	token, _ := forged.Issue(author, time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/api/moderation/pending", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()

	v := TokenVerifier{Secret: []byte("k"), Issuer: "iss"}
	token, err := v.Issue(moderator, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	got, err := v.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != moderator {
		t.Fatalf("actor = %+v", got)
	}

	if _, err := (TokenVerifier{Secret: []byte("k"), Issuer: "other"}).Parse(token); err == nil {
		t.Fatal("expected issuer mismatch")
	}
}

func TestArticleLifecycle(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := s.do(t, &author, http.MethodPost, "/api/articles", saveRequest{Title: "Rust Language", Content: "Systems language."})
	expectStatus(t, rec, http.StatusCreated)
	created := decode[saveResponse](t, rec)
	id := created.Article.ID
	if created.Article.Slug != "rust-language" || created.Version == nil || created.Version.Label != "Version 1" {
		t.Fatalf("unexpected create response %+v", created)
	}

	expectStatus(t, s.do(t, &author, http.MethodPost, "/api/articles/"+id+"/submit", nil), http.StatusBadRequest)
	expectStatus(t, s.do(t, &author, http.MethodPost, "/api/articles/"+id+"/submit", submitRequest{ConfirmOverride: true}), http.StatusOK)

	expectStatus(t, s.do(t, &author, http.MethodPost, "/api/moderation/submissions/"+id+"/approve", nil), http.StatusForbidden)
	expectStatus(t, s.do(t, &moderator, http.MethodPost, "/api/moderation/submissions/"+id+"/approve", nil), http.StatusOK)

	rec = s.do(t, nil, http.MethodGet, "/wiki/rust-language", nil)
	expectStatus(t, rec, http.StatusOK)
	public := decode[articleResponse](t, rec)
	if public.Status != "published" || public.HTML == "" {
		t.Fatalf("unexpected public article %+v", public)
	}

	rec = s.do(t, &author, http.MethodPut, "/api/articles/"+id, saveRequest{Title: "Rust Language", Content: "Memory safe systems language."})
	expectStatus(t, rec, http.StatusAccepted)
	edit := decode[saveResponse](t, rec)
	if edit.Revision == nil || edit.Article.Content != "Systems language." {
		t.Fatalf("edit should be pending, got %+v", edit)
	}

	rec = s.do(t, &moderator, http.MethodGet, "/api/moderation/pending?sort=oldest", nil)
	expectStatus(t, rec, http.StatusOK)
	pending := decode[[]revisionResponse](t, rec)
	if len(pending) != 1 || pending[0].ArticleTitle != "Rust Language" {
		t.Fatalf("unexpected queue %+v", pending)
	}

	rec = s.do(t, &moderator, http.MethodPost, "/api/moderation/revisions/"+pending[0].ID+"/approve", nil)
	expectStatus(t, rec, http.StatusOK)
	approved := decode[saveResponse](t, rec)
	if approved.Article.Content != "Memory safe systems language." || approved.Version.Number != 2 {
		t.Fatalf("unexpected approval %+v", approved)
	}

	expectStatus(t, s.do(t, &moderator, http.MethodPost, "/api/moderation/revisions/"+pending[0].ID+"/approve", nil), http.StatusConflict)

	rec = s.do(t, &author, http.MethodGet, "/api/articles/"+id+"/versions", nil)
	expectStatus(t, rec, http.StatusOK)
	if history := decode[[]versionResponse](t, rec); len(history) != 2 {
		t.Fatalf("history = %+v", history)
	}

	rec = s.do(t, &author, http.MethodGet, "/api/articles/"+id+"/versions/1", nil)
	expectStatus(t, rec, http.StatusOK)
	first := decode[versionResponse](t, rec)

	rec = s.do(t, &moderator, http.MethodPost, fmt.Sprintf("/api/articles/%s/versions/%s/restore", id, first.ID), nil)
	expectStatus(t, rec, http.StatusCreated)
	if restored := decode[versionResponse](t, rec); restored.Number != 3 || restored.Content != "Systems language." {
		t.Fatalf("unexpected restore %+v", restored)
	}

	expectStatus(t, s.do(t, &moderator, http.MethodPost, "/api/articles/"+id+"/archive", nil), http.StatusOK)
	expectStatus(t, s.do(t, nil, http.MethodGet, "/wiki/rust-language", nil), http.StatusNotFound)
	expectStatus(t, s.do(t, &moderator, http.MethodDelete, "/api/articles/"+id, nil), http.StatusNoContent)
	expectStatus(t, s.do(t, &author, http.MethodGet, "/api/articles/"+id, nil), http.StatusNotFound)
}

func TestRequestValidation(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"bad sort", http.MethodGet, "/api/moderation/published?sort=random", nil, http.StatusBadRequest},
		{"bad version number", http.MethodGet, "/api/articles/a/versions/zero", nil, http.StatusBadRequest},
		{"empty title", http.MethodPost, "/api/articles", saveRequest{Content: "x"}, http.StatusBadRequest},
		{"missing article", http.MethodGet, "/api/articles/missing", nil, http.StatusNotFound},
		{"missing revision", http.MethodPost, "/api/moderation/revisions/nope/reject", rejectRequest{Reason: "spam"}, http.StatusNotFound},
		{"bad batch", http.MethodPost, "/api/generation/batches", batchRequest{Count: 1}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, s.do(t, &moderator, tt.method, tt.path, tt.body), tt.want)
		})
	}
}

func TestGenerationBatch(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := s.do(t, &author, http.MethodPost, "/api/generation/batches", batchRequest{Topics: []string{"moons", "tides"}, Count: 3})
	expectStatus(t, rec, http.StatusOK)
	result := decode[batchResponse](t, rec)
	if result.Created != 3 || result.Outcome != string(domain.OutcomeComplete) || len(result.ArticleIDs) != 3 {
		t.Fatalf("unexpected batch %+v", result)
	}

	rec = s.do(t, &author, http.MethodGet, "/api/generation/progress", nil)
	expectStatus(t, rec, http.StatusOK)
	progress := decode[map[string]any](t, rec)
	if progress["running"] != false {
		t.Fatalf("unexpected progress %+v", progress)
	}

	rec = s.do(t, &author, http.MethodGet, "/api/articles/"+result.ArticleIDs[0], nil)
	expectStatus(t, rec, http.StatusOK)
	if a := decode[articleResponse](t, rec); !a.IsAIGenerated || a.Status != "draft" {
		t.Fatalf("generated article %+v", a)
	}
}

func TestAttachImage(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	created := decode[saveResponse](t, s.do(t, &author, http.MethodPost, "/api/articles", saveRequest{Title: "Saturn", Content: "Ringed planet."}))

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, _ := w.CreateFormFile("image", "rings.PNG")
	_, _ = part.Write([]byte("png-bytes"))
	_ = w.WriteField("description", "The rings")
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/articles/"+created.Article.ID+"/images", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token(t, author))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	expectStatus(t, rec, http.StatusOK)
	article := decode[articleResponse](t, rec)
	if len(article.Images) != 1 || article.Images[0].Description != "The rings" {
		t.Fatalf("unexpected images %+v", article.Images)
	}
}

func TestPublicPageOmitsRawHTML(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := s.do(t, &author, http.MethodPost, "/api/articles", saveRequest{Title: "Comet", Content: "<script>steal()</script>\n\nA *small* body."})
	expectStatus(t, rec, http.StatusCreated)
	id := decode[saveResponse](t, rec).Article.ID
	expectStatus(t, s.do(t, &author, http.MethodPost, "/api/articles/"+id+"/submit", submitRequest{ConfirmOverride: true}), http.StatusOK)
	expectStatus(t, s.do(t, &moderator, http.MethodPost, "/api/moderation/submissions/"+id+"/approve", nil), http.StatusOK)

	rec = s.do(t, nil, http.MethodGet, "/wiki/comet", nil)
	expectStatus(t, rec, http.StatusOK)
	page := decode[articleResponse](t, rec)
	if strings.Contains(page.HTML, "<script") || !strings.Contains(page.HTML, "<em>small</em>") {
		t.Fatalf("unexpected html %q", page.HTML)
	}
}
