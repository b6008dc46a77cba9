package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"Encyclopedia/internal/apperr"
	"Encyclopedia/internal/domain"
	"Encyclopedia/internal/ports"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore persists articles, versions and revisions in Postgres or SQLite.
type SQLStore struct {
	db     *sql.DB
	exec   execer
	sb     sq.StatementBuilderType
	driver string
	inTx   bool
}

var (
	_ ports.Repository = (*SQLStore)(nil)
	_ ports.Transactor = (*SQLStore)(nil)
)

// Open connects to the database named by driver and dsn.
func Open(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	return NewSQLStore(db, driver), nil
}

// NewSQLStore wraps an existing connection pool.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	var format sq.PlaceholderFormat = sq.Question
	if driver == DriverPostgres {
		format = sq.Dollar
	}
	return &SQLStore{
		db:     db,
		exec:   db,
		sb:     sq.StatementBuilder.PlaceholderFormat(format),
		driver: driver,
	}
}

// Close releases the pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping checks connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithinTx implements ports.Transactor. Nested calls join the outer transaction.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(repo ports.Repository) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	scoped := *s
	scoped.exec = tx
	scoped.inTx = true

	if err := fn(&scoped); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

var articleColumns = []string{
	"id", "slug", "title", "content", "status", "author", "author_id",
	"created_at", "updated_at", "published_at", "categories", "tags", "images",
	"infobox", "is_ai_generated", "categories_locked_by_ai", "current_version_id",
}

var versionColumns = []string{
	"id", "article_id", "version", "title", "content", "author", "author_id", "created_at", "changes",
}

var revisionColumns = []string{
	"id", "article_id", "title", "content", "author", "author_id", "created_at", "changes",
	"sequence", "status", "reviewed_by", "reviewed_at", "review_reason",
}

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateArticle inserts the article and its first version.
func (s *SQLStore) CreateArticle(ctx context.Context, a domain.Article, v domain.Version) error {
	if v.ArticleID != a.ID || a.CurrentVersionID != v.ID {
		return fmt.Errorf("first version must belong to and be current for article %s", a.ID)
	}

	values, err := articleValues(a)
	if err != nil {
		return err
	}

	query, args, err := s.sb.Insert("articles").Columns(articleColumns...).Values(values...).ToSql()
	if err != nil {
		return fmt.Errorf("build insert article: %w", err)
	}
	if _, err := s.exec.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert article: %w", s.classify(err))
	}

	return s.AppendVersion(ctx, v)
}

func (s *SQLStore) GetArticle(ctx context.Context, id string) (domain.Article, error) {
	return s.getArticle(ctx, sq.Eq{"id": id})
}

func (s *SQLStore) FindArticleBySlug(ctx context.Context, slug string) (domain.Article, error) {
	if slug == "" {
		return domain.Article{}, apperr.ErrNotFound
	}
	return s.getArticle(ctx, sq.Eq{"slug": slug})
}

func (s *SQLStore) getArticle(ctx context.Context, where sq.Eq) (domain.Article, error) {
	query, args, err := s.sb.Select(articleColumns...).From("articles").Where(where).ToSql()
	if err != nil {
		return domain.Article{}, fmt.Errorf("build select article: %w", err)
	}

	a, err := scanArticle(s.exec.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Article{}, apperr.ErrNotFound
	}
	if err != nil {
		return domain.Article{}, fmt.Errorf("select article: %w", err)
	}
	return a, nil
}

func (s *SQLStore) ListArticlesByStatus(ctx context.Context, status domain.ArticleStatus) ([]domain.Article, error) {
	query, args, err := s.sb.Select(articleColumns...).From("articles").
		Where(sq.Eq{"status": string(status)}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list articles: %w", err)
	}

	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var out []domain.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// UpdateArticle overwrites the article when its stored current version still
// equals expectedVersionID.
func (s *SQLStore) UpdateArticle(ctx context.Context, a domain.Article, expectedVersionID string) error {
	values, err := articleValues(a)
	if err != nil {
		return err
	}

	set := make(map[string]any, len(articleColumns)-1)
	for i, col := range articleColumns {
		if col == "id" || col == "created_at" {
			continue
		}
		set[col] = values[i]
	}

	query, args, err := s.sb.Update("articles").SetMap(set).
		Where(sq.Eq{"id": a.ID, "current_version_id": expectedVersionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update article: %w", err)
	}

	res, err := s.exec.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update article: %w", s.classify(err))
	}
	return s.expectOne(ctx, res, "articles", a.ID, apperr.ErrStale)
}

func (s *SQLStore) SetSlug(ctx context.Context, articleID, slug string) error {
	query, args, err := s.sb.Update("articles").Set("slug", nullString(slug)).
		Where(sq.Eq{"id": articleID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set slug: %w", err)
	}

	res, err := s.exec.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set slug: %w", s.classify(err))
	}
	return s.expectOne(ctx, res, "articles", articleID, apperr.ErrNotFound)
}

// DeleteArticle removes the article together with its versions and revisions.
func (s *SQLStore) DeleteArticle(ctx context.Context, articleID string) error {
	return s.WithinTx(ctx, func(repo ports.Repository) error {
		tx := repo.(*SQLStore)
		if err := tx.deleteWhere(ctx, "pending_revisions", sq.Eq{"article_id": articleID}); err != nil {
			return err
		}
		if err := tx.deleteWhere(ctx, "article_versions", sq.Eq{"article_id": articleID}); err != nil {
			return err
		}

		query, args, err := tx.sb.Delete("articles").Where(sq.Eq{"id": articleID}).ToSql()
		if err != nil {
			return fmt.Errorf("build delete article: %w", err)
		}
		res, err := tx.exec.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("delete article: %w", err)
		}
		return tx.expectOne(ctx, res, "articles", articleID, apperr.ErrNotFound)
	})
}

func (s *SQLStore) AppendVersion(ctx context.Context, v domain.Version) error {
	query, args, err := s.sb.Insert("article_versions").Columns(versionColumns...).
		Values(v.ID, v.ArticleID, v.Number, v.Title, v.Content, v.Author, v.AuthorID, toMillis(v.Timestamp), v.Changes).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert version: %w", err)
	}
	if _, err := s.exec.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert version: %w", s.classify(err))
	}
	return nil
}

func (s *SQLStore) GetVersion(ctx context.Context, articleID, versionID string) (domain.Version, error) {
	return s.getVersion(ctx, sq.Eq{"article_id": articleID, "id": versionID})
}

func (s *SQLStore) GetVersionByNumber(ctx context.Context, articleID string, number int) (domain.Version, error) {
	return s.getVersion(ctx, sq.Eq{"article_id": articleID, "version": number})
}

func (s *SQLStore) getVersion(ctx context.Context, where sq.Eq) (domain.Version, error) {
	query, args, err := s.sb.Select(versionColumns...).From("article_versions").Where(where).ToSql()
	if err != nil {
		return domain.Version{}, fmt.Errorf("build select version: %w", err)
	}

	v, err := scanVersion(s.exec.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Version{}, apperr.ErrNotFound
	}
	if err != nil {
		return domain.Version{}, fmt.Errorf("select version: %w", err)
	}
	return v, nil
}

func (s *SQLStore) ListVersions(ctx context.Context, articleID string) ([]domain.Version, error) {
	query, args, err := s.sb.Select(versionColumns...).From("article_versions").
		Where(sq.Eq{"article_id": articleID}).
		OrderBy("version").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list versions: %w", err)
	}

	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	var out []domain.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (s *SQLStore) LatestVersionNumber(ctx context.Context, articleID string) (int, error) {
	return s.maxOf(ctx, "article_versions", "version", articleID)
}

func (s *SQLStore) CreateRevision(ctx context.Context, r domain.PendingRevision) error {
	query, args, err := s.sb.Insert("pending_revisions").Columns(revisionColumns...).
		Values(revisionValues(r)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert revision: %w", err)
	}
	if _, err := s.exec.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert revision: %w", s.classify(err))
	}
	return nil
}

func (s *SQLStore) GetRevision(ctx context.Context, id string) (domain.PendingRevision, error) {
	query, args, err := s.sb.Select(revisionColumns...).From("pending_revisions").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.PendingRevision{}, fmt.Errorf("build select revision: %w", err)
	}

	r, err := scanRevision(s.exec.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PendingRevision{}, apperr.ErrNotFound
	}
	if err != nil {
		return domain.PendingRevision{}, fmt.Errorf("select revision: %w", err)
	}
	return r, nil
}

func (s *SQLStore) ListRevisionsByStatus(ctx context.Context, status domain.RevisionStatus) ([]domain.PendingRevision, error) {
	return s.listRevisions(ctx, sq.Eq{"status": string(status)})
}

func (s *SQLStore) ListRevisionsForArticle(ctx context.Context, articleID string) ([]domain.PendingRevision, error) {
	return s.listRevisions(ctx, sq.Eq{"article_id": articleID})
}

func (s *SQLStore) listRevisions(ctx context.Context, where sq.Eq) ([]domain.PendingRevision, error) {
	query, args, err := s.sb.Select(revisionColumns...).From("pending_revisions").
		Where(where).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list revisions: %w", err)
	}

	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	var out []domain.PendingRevision
	for rows.Next() {
		r, err := scanRevision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (s *SQLStore) NextRevisionSequence(ctx context.Context, articleID string) (int, error) {
	latest, err := s.maxOf(ctx, "pending_revisions", "sequence", articleID)
	if err != nil {
		return 0, err
	}
	return latest + 1, nil
}

// UpdateRevision overwrites the revision when its stored status still equals
// expected.
func (s *SQLStore) UpdateRevision(ctx context.Context, r domain.PendingRevision, expected domain.RevisionStatus) error {
	values := revisionValues(r)
	set := make(map[string]any, len(revisionColumns)-1)
	for i, col := range revisionColumns {
		if col == "id" {
			continue
		}
		set[col] = values[i]
	}

	query, args, err := s.sb.Update("pending_revisions").SetMap(set).
		Where(sq.Eq{"id": r.ID, "status": string(expected)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update revision: %w", err)
	}

	res, err := s.exec.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update revision: %w", err)
	}
	return s.expectOne(ctx, res, "pending_revisions", r.ID, apperr.ErrStale)
}

func (s *SQLStore) DeleteRevision(ctx context.Context, id string) error {
	query, args, err := s.sb.Delete("pending_revisions").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete revision: %w", err)
	}
	res, err := s.exec.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete revision: %w", err)
	}
	return s.expectOne(ctx, res, "pending_revisions", id, apperr.ErrNotFound)
}

func (s *SQLStore) DeleteRevisionsForArticle(ctx context.Context, articleID string) error {
	return s.deleteWhere(ctx, "pending_revisions", sq.Eq{"article_id": articleID})
}

func (s *SQLStore) deleteWhere(ctx context.Context, table string, where sq.Eq) error {
	query, args, err := s.sb.Delete(table).Where(where).ToSql()
	if err != nil {
		return fmt.Errorf("build delete %s: %w", table, err)
	}
	if _, err := s.exec.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

func (s *SQLStore) maxOf(ctx context.Context, table, column, articleID string) (int, error) {
	query, args, err := s.sb.Select(fmt.Sprintf("COALESCE(MAX(%s), 0)", column)).From(table).
		Where(sq.Eq{"article_id": articleID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build max %s: %w", column, err)
	}

	var n int64
	if err := s.exec.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("select max %s: %w", column, err)
	}
	return int(n), nil
}

// expectOne turns a zero-row write into ErrNotFound when the row is gone and
// into missed otherwise.
func (s *SQLStore) expectOne(ctx context.Context, res sql.Result, table, id string, missed error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	query, args, err := s.sb.Select("1").From(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build exists %s: %w", table, err)
	}
	var one int
	switch err := s.exec.QueryRowContext(ctx, query, args...).Scan(&one); {
	case errors.Is(err, sql.ErrNoRows):
		return apperr.ErrNotFound
	case err != nil:
		return fmt.Errorf("exists %s: %w", table, err)
	}
	return missed
}

// classify maps unique-constraint violations of either driver onto ErrDuplicate.
func (s *SQLStore) classify(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key") {
		return fmt.Errorf("%w: %v", apperr.ErrDuplicate, err)
	}
	return err
}

func articleValues(a domain.Article) ([]any, error) {
	categories, err := json.Marshal(nonNil(a.Categories))
	if err != nil {
		return nil, fmt.Errorf("encode categories: %w", err)
	}
	tags, err := json.Marshal(nonNil(a.Tags))
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	images, err := json.Marshal(a.Images)
	if err != nil {
		return nil, fmt.Errorf("encode images: %w", err)
	}

	var infobox sql.NullString
	if a.Infobox != nil {
		raw, err := json.Marshal(a.Infobox)
		if err != nil {
			return nil, fmt.Errorf("encode infobox: %w", err)
		}
		infobox = sql.NullString{String: string(raw), Valid: true}
	}

	var publishedAt sql.NullInt64
	if a.PublishedAt != nil {
		publishedAt = sql.NullInt64{Int64: toMillis(*a.PublishedAt), Valid: true}
	}

	return []any{
		a.ID, nullString(a.Slug), a.Title, a.Content, string(a.Status), a.Author, a.AuthorID,
		toMillis(a.CreatedAt), toMillis(a.UpdatedAt), publishedAt,
		string(categories), string(tags), string(images), infobox,
		a.IsAIGenerated, a.CategoriesLockedByAI, a.CurrentVersionID,
	}, nil
}

func scanArticle(row rowScanner) (domain.Article, error) {
	var (
		a                              domain.Article
		slug, infobox                  sql.NullString
		status                         string
		createdAt, updatedAt           int64
		publishedAt                    sql.NullInt64
		categories, tags, imagesColumn string
	)

	err := row.Scan(
		&a.ID, &slug, &a.Title, &a.Content, &status, &a.Author, &a.AuthorID,
		&createdAt, &updatedAt, &publishedAt,
		&categories, &tags, &imagesColumn, &infobox,
		&a.IsAIGenerated, &a.CategoriesLockedByAI, &a.CurrentVersionID,
	)
	if err != nil {
		return domain.Article{}, err
	}

	a.Slug = slug.String
	a.Status = domain.ArticleStatus(status)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	if publishedAt.Valid {
		at := fromMillis(publishedAt.Int64)
		a.PublishedAt = &at
	}

	if err := json.Unmarshal([]byte(categories), &a.Categories); err != nil {
		return domain.Article{}, fmt.Errorf("decode categories: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &a.Tags); err != nil {
		return domain.Article{}, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(imagesColumn), &a.Images); err != nil {
		return domain.Article{}, fmt.Errorf("decode images: %w", err)
	}
	if infobox.Valid {
		a.Infobox = &domain.Infobox{}
		if err := json.Unmarshal([]byte(infobox.String), a.Infobox); err != nil {
			return domain.Article{}, fmt.Errorf("decode infobox: %w", err)
		}
	}
	return a, nil
}

func scanVersion(row rowScanner) (domain.Version, error) {
	var (
		v  domain.Version
		at int64
	)
	if err := row.Scan(&v.ID, &v.ArticleID, &v.Number, &v.Title, &v.Content, &v.Author, &v.AuthorID, &at, &v.Changes); err != nil {
		return domain.Version{}, err
	}
	v.Timestamp = fromMillis(at)
	return v, nil
}

func revisionValues(r domain.PendingRevision) []any {
	var reviewedAt sql.NullInt64
	if r.ReviewedAt != nil {
		reviewedAt = sql.NullInt64{Int64: toMillis(*r.ReviewedAt), Valid: true}
	}
	return []any{
		r.ID, r.ArticleID, r.Title, r.Content, r.Author, r.AuthorID, toMillis(r.Timestamp), r.Changes,
		r.Sequence, string(r.Status), r.ReviewedBy, reviewedAt, r.ReviewReason,
	}
}

func scanRevision(row rowScanner) (domain.PendingRevision, error) {
	var (
		r          domain.PendingRevision
		at         int64
		status     string
		reviewedAt sql.NullInt64
	)
	err := row.Scan(
		&r.ID, &r.ArticleID, &r.Title, &r.Content, &r.Author, &r.AuthorID, &at, &r.Changes,
		&r.Sequence, &status, &r.ReviewedBy, &reviewedAt, &r.ReviewReason,
	)
	if err != nil {
		return domain.PendingRevision{}, err
	}
	r.Timestamp = fromMillis(at)
	r.Status = domain.RevisionStatus(status)
	if reviewedAt.Valid {
		t := fromMillis(reviewedAt.Int64)
		r.ReviewedAt = &t
	}
	return r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
