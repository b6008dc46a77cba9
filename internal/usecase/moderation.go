package usecase

import (
	"context"

	"Encyclopedia/internal/apperr"
	"Encyclopedia/internal/domain"
	"Encyclopedia/internal/ports"
)

// QueueItem is a revision joined with its parent article's title for display.
type QueueItem struct {
	Revision     domain.PendingRevision
	ArticleTitle string
	ArticleSlug  string
}

// Moderation applies reviewer decisions and serves the triage listings.
// Decisions go through the article state machine; it never edits fields directly.
type Moderation struct {
	deps     *Deps
	versions *VersionStore
}

// NewModeration wires the moderation queue.
func NewModeration(deps Deps, versions *VersionStore) *Moderation {
	return &Moderation{deps: deps.withDefaults(), versions: versions}
}

// ApproveRevision makes a pending revision the article's live content.
func (m *Moderation) ApproveRevision(ctx context.Context, actor domain.Actor, revisionID string) (domain.Article, domain.Version, error) {
	const op = "approve revision"

	if err := m.deps.authorize(op, actor, domain.ActionModerate); err != nil {
		return domain.Article{}, domain.Version{}, err
	}

	var (
		article domain.Article
		version domain.Version
	)
	err := m.deps.atomically(ctx, op, func(repo ports.Repository) error {
		revision, err := repo.GetRevision(ctx, revisionID)
		if err != nil {
			return storeErr(op, "revision", err)
		}
		now := m.deps.now()
		if err := revision.Approve(actor.ID, now); err != nil {
			return transitionErr(op, err)
		}

		article, err = repo.GetArticle(ctx, revision.ArticleID)
		if err != nil {
			return storeErr(op, "article", err)
		}
		if err := article.Apply(domain.EventPublish, now); err != nil {
			return transitionErr(op, err)
		}

		if err := repo.UpdateRevision(ctx, revision, domain.RevisionPending); err != nil {
			return storeErr(op, "revision", err)
		}

		author := domain.Actor{ID: revision.AuthorID, Name: revision.Author}
		version, err = m.versions.appendWith(ctx, repo, &article, revision.Title, revision.Content, author, revision.Changes)
		return err
	})
	if err != nil {
		m.deps.Logger.Error("moderation failed", "op", op, "revision_id", revisionID, "error", err)
		return domain.Article{}, domain.Version{}, err
	}

	m.deps.Metrics.RevisionDecided(domain.RevisionApproved)
	m.deps.Logger.Info("revision approved", "revision_id", revisionID, "article_id", article.ID, "version", version.Number, "by", actor.ID)
	return article, version, nil
}

// RejectRevision returns the article to published with its content untouched.
func (m *Moderation) RejectRevision(ctx context.Context, actor domain.Actor, revisionID, reason string) (domain.Article, error) {
	const op = "reject revision"

	if err := m.deps.authorize(op, actor, domain.ActionModerate); err != nil {
		return domain.Article{}, err
	}

	var article domain.Article
	err := m.deps.atomically(ctx, op, func(repo ports.Repository) error {
		revision, err := repo.GetRevision(ctx, revisionID)
		if err != nil {
			return storeErr(op, "revision", err)
		}
		now := m.deps.now()
		if err := revision.Reject(actor.ID, reason, now); err != nil {
			return transitionErr(op, err)
		}

		current, err := repo.GetArticle(ctx, revision.ArticleID)
		if err != nil {
			return storeErr(op, "article", err)
		}
		article = current
		if err := article.Apply(domain.EventPublish, now); err != nil {
			return transitionErr(op, err)
		}

		if err := repo.UpdateRevision(ctx, revision, domain.RevisionPending); err != nil {
			return storeErr(op, "revision", err)
		}
		return storeErr(op, "article", repo.UpdateArticle(ctx, article, current.CurrentVersionID))
	})
	if err != nil {
		m.deps.Logger.Error("moderation failed", "op", op, "revision_id", revisionID, "error", err)
		return domain.Article{}, err
	}

	m.deps.Metrics.RevisionDecided(domain.RevisionRejected)
	m.deps.Logger.Info("revision rejected", "revision_id", revisionID, "article_id", article.ID, "by", actor.ID)
	return article, nil
}

// DeleteRevision removes a revision record only; the article is not touched.
func (m *Moderation) DeleteRevision(ctx context.Context, actor domain.Actor, revisionID string) error {
	const op = "delete revision"

	if err := m.deps.authorize(op, actor, domain.ActionModerate); err != nil {
		return err
	}
	if err := m.deps.Repository.DeleteRevision(ctx, revisionID); err != nil {
		return storeErr(op, "revision", err)
	}
	m.deps.Logger.Info("revision deleted", "revision_id", revisionID, "by", actor.ID)
	return nil
}

// ApproveSubmission publishes a never-published article that is under review.
func (m *Moderation) ApproveSubmission(ctx context.Context, actor domain.Actor, articleID string) (domain.Article, error) {
	return m.decideSubmission(ctx, "approve submission", actor, articleID, domain.EventPublish)
}

// RejectSubmission sends a never-published article back to draft.
func (m *Moderation) RejectSubmission(ctx context.Context, actor domain.Actor, articleID string) (domain.Article, error) {
	return m.decideSubmission(ctx, "reject submission", actor, articleID, domain.EventReturnToDraft)
}

func (m *Moderation) decideSubmission(ctx context.Context, op string, actor domain.Actor, articleID string, ev domain.Event) (domain.Article, error) {
	if err := m.deps.authorize(op, actor, domain.ActionModerate); err != nil {
		return domain.Article{}, err
	}

	article, err := m.deps.Repository.GetArticle(ctx, articleID)
	if err != nil {
		return domain.Article{}, storeErr(op, "article", err)
	}
	if article.HasLiveContent() {
		return domain.Article{}, apperr.New(apperr.CodeInvalidTransition, op, "published articles change through revisions")
	}
	if article.Status != domain.StatusUnderReview {
		return domain.Article{}, apperr.New(apperr.CodeInvalidTransition, op, "the article is not under review")
	}

	updated := article
	if err := updated.Apply(ev, m.deps.now()); err != nil {
		return domain.Article{}, transitionErr(op, err)
	}
	if err := m.deps.Repository.UpdateArticle(ctx, updated, article.CurrentVersionID); err != nil {
		return domain.Article{}, storeErr(op, "article", err)
	}

	m.deps.Logger.Info("submission decided", "op", op, "article_id", articleID, "status", updated.Status, "by", actor.ID)
	return updated, nil
}

// ListPending returns revisions awaiting a decision.
func (m *Moderation) ListPending(ctx context.Context, order domain.SortOrder) ([]QueueItem, error) {
	return m.listRevisions(ctx, domain.RevisionPending, order)
}

// ListApproved returns revisions that were approved.
func (m *Moderation) ListApproved(ctx context.Context, order domain.SortOrder) ([]QueueItem, error) {
	return m.listRevisions(ctx, domain.RevisionApproved, order)
}

// listRevisions joins each revision with its article. An article that cannot
// be fetched is logged and its revision skipped.
func (m *Moderation) listRevisions(ctx context.Context, status domain.RevisionStatus, order domain.SortOrder) ([]QueueItem, error) {
	revisions, err := m.deps.Repository.ListRevisionsByStatus(ctx, status)
	if err != nil {
		return nil, storeErr("list revisions", "revision", err)
	}
	domain.SortRevisions(revisions, order)

	articles := map[string]domain.Article{}
	items := make([]QueueItem, 0, len(revisions))
	for _, revision := range revisions {
		article, ok := articles[revision.ArticleID]
		if !ok {
			article, err = m.deps.Repository.GetArticle(ctx, revision.ArticleID)
			if err != nil {
				m.deps.Logger.Warn("queue item skipped", "revision_id", revision.ID, "article_id", revision.ArticleID, "error", err)
				continue
			}
			articles[revision.ArticleID] = article
		}
		items = append(items, QueueItem{Revision: revision, ArticleTitle: article.Title, ArticleSlug: article.Slug})
	}
	return items, nil
}

// ListPublished returns published articles in the requested order.
func (m *Moderation) ListPublished(ctx context.Context, order domain.SortOrder) ([]domain.Article, error) {
	articles, err := m.deps.Repository.ListArticlesByStatus(ctx, domain.StatusPublished)
	if err != nil {
		return nil, storeErr("list published", "article", err)
	}
	domain.SortArticles(articles, order)
	return articles, nil
}

// ListSubmissions returns never-published articles awaiting review.
func (m *Moderation) ListSubmissions(ctx context.Context, order domain.SortOrder) ([]domain.Article, error) {
	articles, err := m.deps.Repository.ListArticlesByStatus(ctx, domain.StatusUnderReview)
	if err != nil {
		return nil, storeErr("list submissions", "article", err)
	}
	out := articles[:0]
	for _, article := range articles {
		if !article.HasLiveContent() {
			out = append(out, article)
		}
	}
	domain.SortArticles(out, order)
	return out, nil
}
