package usecase

import (
	"context"
	"fmt"
	"time"

	"Encyclopedia/internal/apperr"
	"Encyclopedia/internal/domain"
	"Encyclopedia/internal/ports"
)

// VersionStore appends immutable snapshots to an article and restores old ones
// by appending them again. History is never rewritten.
type VersionStore struct {
	deps *Deps
}

// NewVersionStore builds a VersionStore over the given adapters.
func NewVersionStore(deps Deps) *VersionStore {
	return &VersionStore{deps: deps.withDefaults()}
}

// Append records content as the article's new current version.
func (s *VersionStore) Append(ctx context.Context, article *domain.Article, title, content string, author domain.Actor, changes string) (domain.Version, error) {
	var version domain.Version
	err := s.deps.atomically(ctx, "append version", func(repo ports.Repository) error {
		var err error
		version, err = s.appendWith(ctx, repo, article, title, content, author, changes)
		return err
	})
	return version, err
}

func (s *VersionStore) appendWith(ctx context.Context, repo ports.Repository, article *domain.Article, title, content string, author domain.Actor, changes string) (domain.Version, error) {
	const op = "append version"

	latest, err := repo.LatestVersionNumber(ctx, article.ID)
	if err != nil {
		return domain.Version{}, storeErr(op, "article", err)
	}

	now := s.deps.now()
	version := domain.Version{
		ID:        s.deps.NewID(),
		ArticleID: article.ID,
		Number:    latest + 1,
		Title:     title,
		Content:   content,
		Author:    author.Name,
		AuthorID:  author.ID,
		Timestamp: now,
		Changes:   changes,
	}
	if err := repo.AppendVersion(ctx, version); err != nil {
		return domain.Version{}, storeErr(op, "article", err)
	}

	previous := article.CurrentVersionID
	updated := *article
	updated.Title = title
	updated.Content = content
	updated.CurrentVersionID = version.ID
	updated.UpdatedAt = now
	if err := repo.UpdateArticle(ctx, updated, previous); err != nil {
		return domain.Version{}, storeErr(op, "article", err)
	}

	*article = updated
	s.deps.Metrics.VersionAppended()
	return version, nil
}

// Restore re-applies versionID's content as a new version.
func (s *VersionStore) Restore(ctx context.Context, actor domain.Actor, articleID, versionID string) (domain.Version, error) {
	const op = "restore version"

	if err := s.deps.authorize(op, actor, domain.ActionRestore); err != nil {
		return domain.Version{}, err
	}

	var restored domain.Version
	err := s.deps.atomically(ctx, op, func(repo ports.Repository) error {
		article, err := repo.GetArticle(ctx, articleID)
		if err != nil {
			return storeErr(op, "article", err)
		}
		if article.Status == domain.StatusArchived {
			return apperr.New(apperr.CodeInvalidTransition, op, "archived articles cannot be restored")
		}

		source, err := repo.GetVersion(ctx, articleID, versionID)
		if err != nil {
			return storeErr(op, "version", err)
		}

		restored, err = s.appendWith(ctx, repo, &article, source.Title, source.Content, actor, RestoreSummary(source))
		return err
	})
	if err != nil {
		s.deps.Logger.Error("restore failed", "op", op, "article_id", articleID, "version_id", versionID, "error", err)
		return domain.Version{}, err
	}

	return restored, nil
}

// RestoreSummary is the change summary recorded for a restored version.
func RestoreSummary(source domain.Version) string {
	return fmt.Sprintf("Restored version from %s", source.Timestamp.UTC().Format(time.RFC3339))
}

// History lists every version of an article, oldest first.
func (s *VersionStore) History(ctx context.Context, articleID string) ([]domain.Version, error) {
	if _, err := s.deps.Repository.GetArticle(ctx, articleID); err != nil {
		return nil, storeErr("version history", "article", err)
	}
	versions, err := s.deps.Repository.ListVersions(ctx, articleID)
	if err != nil {
		return nil, storeErr("version history", "article", err)
	}
	return versions, nil
}

// ByNumber resolves "Version N" of an article.
func (s *VersionStore) ByNumber(ctx context.Context, articleID string, number int) (domain.Version, error) {
	if number < 1 {
		return domain.Version{}, apperr.New(apperr.CodeValidation, "version by number", "version numbers start at 1")
	}
	v, err := s.deps.Repository.GetVersionByNumber(ctx, articleID, number)
	if err != nil {
		return domain.Version{}, storeErr("version by number", "version", err)
	}
	return v, nil
}
