package usecase

import (
	"context"
	"errors"
	"fmt"

	"Encyclopedia/internal/apperr"
	"Encyclopedia/internal/domain"
	"Encyclopedia/internal/ports"
	"Encyclopedia/internal/slug"
)

const maxSlugProbes = 50

// SlugResolver maps human-readable slugs to article ids.
type SlugResolver struct {
	deps *Deps
}

// NewSlugResolver builds a resolver; SlugCache is optional.
func NewSlugResolver(deps Deps) *SlugResolver {
	return &SlugResolver{deps: deps.withDefaults()}
}

// Resolve returns the id of the article owning s.
func (r *SlugResolver) Resolve(ctx context.Context, s string) (string, error) {
	const op = "resolve slug"

	if s == "" {
		return "", apperr.New(apperr.CodeValidation, op, "slug is required")
	}

	if r.deps.SlugCache != nil {
		id, ok, err := r.deps.SlugCache.Get(ctx, s)
		if err != nil {
			r.deps.Logger.Warn("slug cache get", "slug", s, "error", err)
		} else if ok {
			return id, nil
		}
	}

	article, err := r.deps.Repository.FindArticleBySlug(ctx, s)
	if err != nil {
		return "", storeErr(op, "article", err)
	}
	r.remember(ctx, s, article.ID)
	return article.ID, nil
}

// Unique derives a slug from title that no other article owns.
func (r *SlugResolver) Unique(ctx context.Context, repo ports.ArticleRepository, title, articleID string) (string, error) {
	base := slug.OrFallback(title)
	candidate := base
	for i := 2; i <= maxSlugProbes+1; i++ {
		owner, err := repo.FindArticleBySlug(ctx, candidate)
		if errors.Is(err, apperr.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", storeErr("assign slug", "article", err)
		}
		if owner.ID == articleID {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}

	suffix := articleID
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return base + "-" + suffix, nil
}

// Ensure back-fills a missing slug and writes it to the store.
func (r *SlugResolver) Ensure(ctx context.Context, article *domain.Article) error {
	if article.Slug != "" {
		return nil
	}

	s, err := r.Unique(ctx, r.deps.Repository, article.Title, article.ID)
	if err != nil {
		return err
	}
	if err := r.deps.Repository.SetSlug(ctx, article.ID, s); err != nil {
		return storeErr("assign slug", "article", err)
	}
	r.deps.Logger.Info("slug back-filled", "article_id", article.ID, "slug", s)

	article.Slug = s
	r.remember(ctx, s, article.ID)
	return nil
}

// Forget drops a slug from the cache.
func (r *SlugResolver) Forget(ctx context.Context, s string) {
	if r.deps.SlugCache == nil || s == "" {
		return
	}
	if err := r.deps.SlugCache.Delete(ctx, s); err != nil {
		r.deps.Logger.Warn("slug cache delete", "slug", s, "error", err)
	}
}

func (r *SlugResolver) remember(ctx context.Context, s, id string) {
	if r.deps.SlugCache == nil {
		return
	}
	if err := r.deps.SlugCache.Set(ctx, s, id); err != nil {
		r.deps.Logger.Warn("slug cache set", "slug", s, "error", err)
	}
}
