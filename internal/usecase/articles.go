package usecase

import (
	"context"
	"fmt"
	"path"
	"strings"

	"Encyclopedia/internal/apperr"
	"Encyclopedia/internal/domain"
	"Encyclopedia/internal/ports"
)

const initialChanges = "Initial version"

// SaveRequest creates an article (empty ArticleID) or edits an existing one.
type SaveRequest struct {
	ArticleID string
	Title     string
	Content   string
	Changes   string
	// ExpectedVersionID, when set, must equal the article's current version.
	ExpectedVersionID string
	Categories        []string
	Tags              []string
}

// SaveResult tells the caller whether the edit went live or awaits review.
type SaveResult struct {
	Article  domain.Article
	Version  *domain.Version
	Revision *domain.PendingRevision
}

// MetadataPatch changes non-versioned article fields; nil fields are kept.
type MetadataPatch struct {
	Categories   *[]string
	Tags         *[]string
	Infobox      *domain.Infobox
	ClearInfobox bool
}

// ImageUpload is an image to attach to an article.
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
	Description string
	Attribution string
}

// Articles drives the article state machine. It is the only writer of
// article content and status besides VersionStore.
type Articles struct {
	deps     *Deps
	versions *VersionStore
	slugs    *SlugResolver
}

// NewArticles wires the article lifecycle use case.
func NewArticles(deps Deps, versions *VersionStore, slugs *SlugResolver) *Articles {
	return &Articles{deps: deps.withDefaults(), versions: versions, slugs: slugs}
}

// Save is createOrUpdateArticle. Articles that were never published take the
// edit as a new version; articles with live content get a pending revision.
func (a *Articles) Save(ctx context.Context, actor domain.Actor, req SaveRequest) (SaveResult, error) {
	const op = "save article"

	if err := a.deps.authorize(op, actor, domain.ActionEdit); err != nil {
		return SaveResult{}, err
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return SaveResult{}, apperr.New(apperr.CodeValidation, op, "title is required")
	}

	if req.ArticleID == "" {
		article, version, err := a.create(ctx, actor, domain.Article{
			Title:      req.Title,
			Content:    req.Content,
			Categories: normalizeTerms(req.Categories),
			Tags:       normalizeTerms(req.Tags),
		}, req.Changes)
		if err != nil {
			return SaveResult{}, err
		}
		return SaveResult{Article: article, Version: &version}, nil
	}

	var result SaveResult
	err := a.deps.atomically(ctx, op, func(repo ports.Repository) error {
		article, err := repo.GetArticle(ctx, req.ArticleID)
		if err != nil {
			return storeErr(op, "article", err)
		}
		if article.Status == domain.StatusArchived {
			return apperr.New(apperr.CodeInvalidTransition, op, "archived articles cannot be edited")
		}
		if req.ExpectedVersionID != "" && req.ExpectedVersionID != article.CurrentVersionID {
			return apperr.New(apperr.CodeConflict, op, "article was changed by someone else; reload and retry")
		}

		if !article.HasLiveContent() {
			version, err := a.versions.appendWith(ctx, repo, &article, req.Title, req.Content, actor, changesOr(req.Changes, "Edited draft"))
			if err != nil {
				return err
			}
			result = SaveResult{Article: article, Version: &version}
			return nil
		}

		revision, err := a.openRevision(ctx, repo, &article, actor, req)
		if err != nil {
			return err
		}
		result = SaveResult{Article: article, Revision: &revision}
		return nil
	})
	if err != nil {
		a.deps.Logger.Error("save failed", "op", op, "article_id", req.ArticleID, "error", err)
		return SaveResult{}, err
	}

	if result.Revision != nil {
		a.deps.notify(ctx, fmt.Sprintf("New revision #%d of %q by %s awaits review", result.Revision.Sequence, result.Article.Title, actor.Name))
	}
	return result, nil
}

func (a *Articles) openRevision(ctx context.Context, repo ports.Repository, article *domain.Article, actor domain.Actor, req SaveRequest) (domain.PendingRevision, error) {
	const op = "open revision"

	seq, err := repo.NextRevisionSequence(ctx, article.ID)
	if err != nil {
		return domain.PendingRevision{}, storeErr(op, "article", err)
	}

	now := a.deps.now()
	revision := domain.PendingRevision{
		ID:        a.deps.NewID(),
		ArticleID: article.ID,
		Title:     req.Title,
		Content:   req.Content,
		Author:    actor.Name,
		AuthorID:  actor.ID,
		Timestamp: now,
		Changes:   changesOr(req.Changes, "Proposed edit"),
		Sequence:  seq,
		Status:    domain.RevisionPending,
	}

	updated := *article
	if err := updated.Apply(domain.EventOpenRevision, now); err != nil {
		return domain.PendingRevision{}, transitionErr(op, err)
	}
	if err := repo.CreateRevision(ctx, revision); err != nil {
		return domain.PendingRevision{}, storeErr(op, "revision", err)
	}
	if err := repo.UpdateArticle(ctx, updated, article.CurrentVersionID); err != nil {
		return domain.PendingRevision{}, storeErr(op, "article", err)
	}

	*article = updated
	return revision, nil
}

// create stores a new draft with its first version and a unique slug.
func (a *Articles) create(ctx context.Context, actor domain.Actor, draft domain.Article, changes string) (domain.Article, domain.Version, error) {
	const op = "create article"

	now := a.deps.now()
	article := draft
	article.ID = a.deps.NewID()
	article.Status = domain.StatusDraft
	article.Author = actor.Name
	article.AuthorID = actor.ID
	article.CreatedAt = now
	article.UpdatedAt = now

	version := domain.Version{
		ID:        a.deps.NewID(),
		ArticleID: article.ID,
		Number:    1,
		Title:     article.Title,
		Content:   article.Content,
		Author:    actor.Name,
		AuthorID:  actor.ID,
		Timestamp: now,
		Changes:   changesOr(changes, initialChanges),
	}
	article.CurrentVersionID = version.ID

	err := a.deps.atomically(ctx, op, func(repo ports.Repository) error {
		s, err := a.slugs.Unique(ctx, repo, article.Title, article.ID)
		if err != nil {
			return err
		}
		article.Slug = s
		return storeErr(op, "article", repo.CreateArticle(ctx, article, version))
	})
	if err != nil {
		a.deps.Logger.Error("create failed", "op", op, "title", article.Title, "error", err)
		return domain.Article{}, domain.Version{}, err
	}

	a.deps.Metrics.VersionAppended()
	a.slugs.remember(ctx, article.Slug, article.ID)
	a.deps.Logger.Info("article created", "article_id", article.ID, "slug", article.Slug, "ai", article.IsAIGenerated)
	return article, version, nil
}

// Submit moves a draft into review. Articles without an infobox are blocked
// unless the caller confirms the override; admins skip the check.
func (a *Articles) Submit(ctx context.Context, actor domain.Actor, articleID string, confirmOverride bool) (domain.Article, error) {
	const op = "submit article"

	if err := a.deps.authorize(op, actor, domain.ActionEdit); err != nil {
		return domain.Article{}, err
	}

	article, err := a.deps.Repository.GetArticle(ctx, articleID)
	if err != nil {
		return domain.Article{}, storeErr(op, "article", err)
	}

	if !a.deps.Authorizer.Allowed(actor, domain.ActionSkipInfobox) && !confirmOverride && !a.hasInfobox(article) {
		return domain.Article{}, apperr.New(apperr.CodeValidation, op,
			"the article has no infobox; insert an infobox template or confirm the override")
	}

	updated := article
	if err := updated.Apply(domain.EventSubmit, a.deps.now()); err != nil {
		return domain.Article{}, transitionErr(op, err)
	}
	if err := a.deps.Repository.UpdateArticle(ctx, updated, article.CurrentVersionID); err != nil {
		return domain.Article{}, storeErr(op, "article", err)
	}

	a.deps.Logger.Info("article submitted", "article_id", articleID, "override", confirmOverride)
	a.deps.notify(ctx, fmt.Sprintf("Article %q by %s was submitted for review", updated.Title, actor.Name))
	return updated, nil
}

func (a *Articles) hasInfobox(article domain.Article) bool {
	if article.Infobox != nil {
		return true
	}
	if a.deps.Inspector == nil {
		return false
	}
	return a.deps.Inspector.HasInfobox(article.Content)
}

// UpdateMetadata changes categories, tags or the infobox without a new version.
func (a *Articles) UpdateMetadata(ctx context.Context, actor domain.Actor, articleID string, patch MetadataPatch) (domain.Article, error) {
	const op = "update metadata"

	if err := a.deps.authorize(op, actor, domain.ActionEdit); err != nil {
		return domain.Article{}, err
	}

	article, err := a.deps.Repository.GetArticle(ctx, articleID)
	if err != nil {
		return domain.Article{}, storeErr(op, "article", err)
	}
	if article.Status == domain.StatusArchived {
		return domain.Article{}, apperr.New(apperr.CodeInvalidTransition, op, "archived articles cannot be edited")
	}

	updated := article
	if patch.Categories != nil {
		if article.CategoriesLockedByAI && !a.deps.Authorizer.Allowed(actor, domain.ActionEditAICategory) {
			return domain.Article{}, apperr.New(apperr.CodeForbidden, op, "categories were assigned automatically and are locked")
		}
		updated.Categories = normalizeTerms(*patch.Categories)
	}
	if patch.Tags != nil {
		updated.Tags = normalizeTerms(*patch.Tags)
	}
	switch {
	case patch.ClearInfobox:
		updated.Infobox = nil
	case patch.Infobox != nil:
		box := *patch.Infobox
		updated.Infobox = &box
	}
	if !updated.ValidImageIndex() {
		return domain.Article{}, apperr.New(apperr.CodeValidation, op, "infobox image index does not match an attached image")
	}

	updated.UpdatedAt = a.deps.now()
	if err := a.deps.Repository.UpdateArticle(ctx, updated, article.CurrentVersionID); err != nil {
		return domain.Article{}, storeErr(op, "article", err)
	}
	return updated, nil
}

// AttachImage uploads an image and appends it to the article's image list.
func (a *Articles) AttachImage(ctx context.Context, actor domain.Actor, articleID string, upload ImageUpload) (domain.Article, error) {
	const op = "attach image"

	if err := a.deps.authorize(op, actor, domain.ActionEdit); err != nil {
		return domain.Article{}, err
	}
	if a.deps.Images == nil {
		return domain.Article{}, apperr.New(apperr.CodeValidation, op, "image uploads are not configured")
	}
	if len(upload.Data) == 0 {
		return domain.Article{}, apperr.New(apperr.CodeValidation, op, "image is empty")
	}

	article, err := a.deps.Repository.GetArticle(ctx, articleID)
	if err != nil {
		return domain.Article{}, storeErr(op, "article", err)
	}
	if article.Status == domain.StatusArchived {
		return domain.Article{}, apperr.New(apperr.CodeInvalidTransition, op, "archived articles cannot be edited")
	}

	key := path.Join("articles", article.ID, a.deps.NewID()+strings.ToLower(path.Ext(upload.Filename)))
	url, err := a.deps.Images.Put(ctx, key, upload.ContentType, upload.Data)
	if err != nil {
		a.deps.Logger.Error("image upload failed", "op", op, "article_id", articleID, "error", err)
		return domain.Article{}, apperr.Wrap(apperr.CodeBackend, op, "image storage is unavailable", err)
	}

	updated := article
	updated.Images = append(append([]domain.Image(nil), article.Images...), domain.Image{
		URL:         url,
		Description: upload.Description,
		Attribution: upload.Attribution,
	})
	updated.UpdatedAt = a.deps.now()
	if err := a.deps.Repository.UpdateArticle(ctx, updated, article.CurrentVersionID); err != nil {
		return domain.Article{}, storeErr(op, "article", err)
	}
	return updated, nil
}

// Archive retires a published article and drops its revision records.
func (a *Articles) Archive(ctx context.Context, actor domain.Actor, articleID string) (domain.Article, error) {
	const op = "archive article"

	if err := a.deps.authorize(op, actor, domain.ActionArchive); err != nil {
		return domain.Article{}, err
	}

	var archived domain.Article
	err := a.deps.atomically(ctx, op, func(repo ports.Repository) error {
		article, err := repo.GetArticle(ctx, articleID)
		if err != nil {
			return storeErr(op, "article", err)
		}
		archived = article
		if err := archived.Apply(domain.EventArchive, a.deps.now()); err != nil {
			return transitionErr(op, err)
		}
		if err := repo.DeleteRevisionsForArticle(ctx, articleID); err != nil {
			return storeErr(op, "article", err)
		}
		return storeErr(op, "article", repo.UpdateArticle(ctx, archived, article.CurrentVersionID))
	})
	if err != nil {
		a.deps.Logger.Error("archive failed", "op", op, "article_id", articleID, "error", err)
		return domain.Article{}, err
	}
	return archived, nil
}

// Delete removes an article together with every version and revision of it.
func (a *Articles) Delete(ctx context.Context, actor domain.Actor, articleID string) error {
	const op = "delete article"

	if err := a.deps.authorize(op, actor, domain.ActionDelete); err != nil {
		return err
	}

	var removed domain.Article
	err := a.deps.atomically(ctx, op, func(repo ports.Repository) error {
		article, err := repo.GetArticle(ctx, articleID)
		if err != nil {
			return storeErr(op, "article", err)
		}
		removed = article
		return storeErr(op, "article", repo.DeleteArticle(ctx, articleID))
	})
	if err != nil {
		a.deps.Logger.Error("delete failed", "op", op, "article_id", articleID, "error", err)
		return err
	}

	a.slugs.Forget(ctx, removed.Slug)
	a.deps.Logger.Info("article deleted", "article_id", articleID, "by", actor.ID)
	return nil
}

// Get returns an article by id regardless of status.
func (a *Articles) Get(ctx context.Context, articleID string) (domain.Article, error) {
	article, err := a.deps.Repository.GetArticle(ctx, articleID)
	if err != nil {
		return domain.Article{}, storeErr("get article", "article", err)
	}
	return article, nil
}

// ReadPublic resolves a slug (or id) to an article with live content and
// back-fills its slug on first public read.
func (a *Articles) ReadPublic(ctx context.Context, ref string) (domain.Article, error) {
	const op = "read article"

	var article domain.Article
	id, err := a.slugs.Resolve(ctx, ref)
	switch {
	case err == nil:
		article, err = a.deps.Repository.GetArticle(ctx, id)
	case apperr.Is(err, apperr.CodeNotFound):
		article, err = a.deps.Repository.GetArticle(ctx, ref)
	}
	if err != nil {
		return domain.Article{}, storeErr(op, "article", err)
	}

	if !article.HasLiveContent() || article.Status == domain.StatusArchived {
		return domain.Article{}, apperr.New(apperr.CodeNotFound, op, "article not found")
	}
	if err := a.slugs.Ensure(ctx, &article); err != nil {
		a.deps.Logger.Warn("slug back-fill failed", "article_id", article.ID, "error", err)
	}
	return article, nil
}

func changesOr(changes, fallback string) string {
	if c := strings.TrimSpace(changes); c != "" {
		return c
	}
	return fallback
}

func normalizeTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		key := strings.ToLower(term)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, term)
	}
	return out
}
