package ports

import (
	"context"
	"time"

	"Encyclopedia/internal/domain"
)

// ArticleRepository persists articles. Stores return apperr.ErrNotFound for
// missing records and apperr.ErrStale when a compare-and-swap write loses.
type ArticleRepository interface {
	CreateArticle(ctx context.Context, article domain.Article, first domain.Version) error
	GetArticle(ctx context.Context, id string) (domain.Article, error)
	FindArticleBySlug(ctx context.Context, slug string) (domain.Article, error)
	ListArticlesByStatus(ctx context.Context, status domain.ArticleStatus) ([]domain.Article, error)
	// UpdateArticle writes article only if its stored current version is expectedVersionID.
	UpdateArticle(ctx context.Context, article domain.Article, expectedVersionID string) error
	SetSlug(ctx context.Context, articleID, slug string) error
	// DeleteArticle removes the article together with its versions and revisions.
	DeleteArticle(ctx context.Context, id string) error
}

// VersionRepository stores the append-only version history.
type VersionRepository interface {
	AppendVersion(ctx context.Context, version domain.Version) error
	GetVersion(ctx context.Context, articleID, versionID string) (domain.Version, error)
	GetVersionByNumber(ctx context.Context, articleID string, number int) (domain.Version, error)
	ListVersions(ctx context.Context, articleID string) ([]domain.Version, error)
	LatestVersionNumber(ctx context.Context, articleID string) (int, error)
}

// RevisionRepository stores pending revisions.
type RevisionRepository interface {
	CreateRevision(ctx context.Context, revision domain.PendingRevision) error
	GetRevision(ctx context.Context, id string) (domain.PendingRevision, error)
	ListRevisionsByStatus(ctx context.Context, status domain.RevisionStatus) ([]domain.PendingRevision, error)
	ListRevisionsForArticle(ctx context.Context, articleID string) ([]domain.PendingRevision, error)
	NextRevisionSequence(ctx context.Context, articleID string) (int, error)
	// UpdateRevision writes revision only if its stored status is expected.
	UpdateRevision(ctx context.Context, revision domain.PendingRevision, expected domain.RevisionStatus) error
	DeleteRevision(ctx context.Context, id string) error
	DeleteRevisionsForArticle(ctx context.Context, articleID string) error
}

// Repository is the full persistent store.
type Repository interface {
	ArticleRepository
	VersionRepository
	RevisionRepository
}

// Transactor is implemented by stores that can run several writes atomically.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(repo Repository) error) error
}

// Clock abstracts wall time.
type Clock interface {
	Now() time.Time
}

// ContentGenerator drafts article text for a topic.
type ContentGenerator interface {
	Name() string
	Generate(ctx context.Context, prompt domain.GenerationPrompt) (domain.GeneratedContent, error)
}

// Classifier assigns categories to content.
type Classifier interface {
	Classify(ctx context.Context, title, content string) ([]string, error)
}

// ContentInspector answers structural questions about article markup.
type ContentInspector interface {
	HasInfobox(content string) bool
	WordCount(content string) int
}

// Notifier tells moderators that something awaits review.
type Notifier interface {
	NotifyModerators(ctx context.Context, message string) error
}

// SlugCache keeps slug -> article id lookups hot.
type SlugCache interface {
	Get(ctx context.Context, slug string) (string, bool, error)
	Set(ctx context.Context, slug, articleID string) error
	Delete(ctx context.Context, slug string) error
}

// ImageStore uploads article images and returns their public URL.
type ImageStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Authorizer decides whether a role may perform an action.
type Authorizer interface {
	Allowed(actor domain.Actor, action domain.Action) bool
}

// Metrics records engine activity.
type Metrics interface {
	VersionAppended()
	RevisionDecided(outcome domain.RevisionStatus)
	GenerationItem(outcome string)
	BatchFinished(result domain.BatchResult)
}

// Scheduler controls when recurring jobs execute.
type Scheduler interface {
	Add(spec string, job func()) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
