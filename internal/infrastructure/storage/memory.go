package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"Encyclopedia/internal/apperr"
	"Encyclopedia/internal/domain"
	"Encyclopedia/internal/ports"
)

// Memory is a process-local store. Transactions work on a copy that replaces
// the live data only when the callback succeeds.
type Memory struct {
	mu   sync.Mutex
	data *memData
}

var (
	_ ports.Repository = (*Memory)(nil)
	_ ports.Transactor = (*Memory)(nil)
)

// NewMemory builds an empty store.
func NewMemory() *Memory {
	return &Memory{data: newMemData()}
}

// WithinTx implements ports.Transactor.
func (m *Memory) WithinTx(ctx context.Context, fn func(repo ports.Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	working := m.data.clone()
	if err := fn(working); err != nil {
		return err
	}
	m.data = working
	return nil
}

func (m *Memory) locked(fn func(d *memData) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.data)
}

func (m *Memory) CreateArticle(ctx context.Context, a domain.Article, v domain.Version) error {
	return m.locked(func(d *memData) error { return d.CreateArticle(ctx, a, v) })
}

func (m *Memory) GetArticle(ctx context.Context, id string) (a domain.Article, err error) {
	err = m.locked(func(d *memData) error { a, err = d.GetArticle(ctx, id); return err })
	return a, err
}

func (m *Memory) FindArticleBySlug(ctx context.Context, s string) (a domain.Article, err error) {
	err = m.locked(func(d *memData) error { a, err = d.FindArticleBySlug(ctx, s); return err })
	return a, err
}

func (m *Memory) ListArticlesByStatus(ctx context.Context, st domain.ArticleStatus) (out []domain.Article, err error) {
	err = m.locked(func(d *memData) error { out, err = d.ListArticlesByStatus(ctx, st); return err })
	return out, err
}

func (m *Memory) UpdateArticle(ctx context.Context, a domain.Article, expected string) error {
	return m.locked(func(d *memData) error { return d.UpdateArticle(ctx, a, expected) })
}

func (m *Memory) SetSlug(ctx context.Context, id, s string) error {
	return m.locked(func(d *memData) error { return d.SetSlug(ctx, id, s) })
}

func (m *Memory) DeleteArticle(ctx context.Context, id string) error {
	return m.locked(func(d *memData) error { return d.DeleteArticle(ctx, id) })
}

func (m *Memory) AppendVersion(ctx context.Context, v domain.Version) error {
	return m.locked(func(d *memData) error { return d.AppendVersion(ctx, v) })
}

func (m *Memory) GetVersion(ctx context.Context, articleID, versionID string) (v domain.Version, err error) {
	err = m.locked(func(d *memData) error { v, err = d.GetVersion(ctx, articleID, versionID); return err })
	return v, err
}

func (m *Memory) GetVersionByNumber(ctx context.Context, articleID string, n int) (v domain.Version, err error) {
	err = m.locked(func(d *memData) error { v, err = d.GetVersionByNumber(ctx, articleID, n); return err })
	return v, err
}

func (m *Memory) ListVersions(ctx context.Context, articleID string) (out []domain.Version, err error) {
	err = m.locked(func(d *memData) error { out, err = d.ListVersions(ctx, articleID); return err })
	return out, err
}

func (m *Memory) LatestVersionNumber(ctx context.Context, articleID string) (n int, err error) {
	err = m.locked(func(d *memData) error { n, err = d.LatestVersionNumber(ctx, articleID); return err })
	return n, err
}

func (m *Memory) CreateRevision(ctx context.Context, r domain.PendingRevision) error {
	return m.locked(func(d *memData) error { return d.CreateRevision(ctx, r) })
}

func (m *Memory) GetRevision(ctx context.Context, id string) (r domain.PendingRevision, err error) {
	err = m.locked(func(d *memData) error { r, err = d.GetRevision(ctx, id); return err })
	return r, err
}

func (m *Memory) ListRevisionsByStatus(ctx context.Context, st domain.RevisionStatus) (out []domain.PendingRevision, err error) {
	err = m.locked(func(d *memData) error { out, err = d.ListRevisionsByStatus(ctx, st); return err })
	return out, err
}

func (m *Memory) ListRevisionsForArticle(ctx context.Context, articleID string) (out []domain.PendingRevision, err error) {
	err = m.locked(func(d *memData) error { out, err = d.ListRevisionsForArticle(ctx, articleID); return err })
	return out, err
}

func (m *Memory) NextRevisionSequence(ctx context.Context, articleID string) (n int, err error) {
	err = m.locked(func(d *memData) error { n, err = d.NextRevisionSequence(ctx, articleID); return err })
	return n, err
}

func (m *Memory) UpdateRevision(ctx context.Context, r domain.PendingRevision, expected domain.RevisionStatus) error {
	return m.locked(func(d *memData) error { return d.UpdateRevision(ctx, r, expected) })
}

func (m *Memory) DeleteRevision(ctx context.Context, id string) error {
	return m.locked(func(d *memData) error { return d.DeleteRevision(ctx, id) })
}

func (m *Memory) DeleteRevisionsForArticle(ctx context.Context, articleID string) error {
	return m.locked(func(d *memData) error { return d.DeleteRevisionsForArticle(ctx, articleID) })
}

// memData holds the records; it is not safe for concurrent use on its own.
type memData struct {
	articles  map[string]domain.Article
	versions  map[string][]domain.Version
	revisions map[string]domain.PendingRevision
}

var _ ports.Repository = (*memData)(nil)

func newMemData() *memData {
	return &memData{
		articles:  map[string]domain.Article{},
		versions:  map[string][]domain.Version{},
		revisions: map[string]domain.PendingRevision{},
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for id, a := range d.articles {
		c.articles[id] = cloneArticle(a)
	}
	for id, vs := range d.versions {
		c.versions[id] = append([]domain.Version(nil), vs...)
	}
	for id, r := range d.revisions {
		c.revisions[id] = r
	}
	return c
}

func (d *memData) slugOwner(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	for id, a := range d.articles {
		if a.Slug == s {
			return id, true
		}
	}
	return "", false
}

func (d *memData) CreateArticle(_ context.Context, a domain.Article, v domain.Version) error {
	if _, ok := d.articles[a.ID]; ok {
		return fmt.Errorf("article %s: %w", a.ID, apperr.ErrDuplicate)
	}
	if v.ArticleID != a.ID || a.CurrentVersionID != v.ID {
		return fmt.Errorf("first version must belong to and be current for article %s", a.ID)
	}
	if owner, ok := d.slugOwner(a.Slug); ok && owner != a.ID {
		return fmt.Errorf("slug %s: %w", a.Slug, apperr.ErrDuplicate)
	}
	d.articles[a.ID] = cloneArticle(a)
	d.versions[a.ID] = []domain.Version{v}
	return nil
}

func (d *memData) GetArticle(_ context.Context, id string) (domain.Article, error) {
	a, ok := d.articles[id]
	if !ok {
		return domain.Article{}, apperr.ErrNotFound
	}
	return cloneArticle(a), nil
}

func (d *memData) FindArticleBySlug(ctx context.Context, s string) (domain.Article, error) {
	id, ok := d.slugOwner(s)
	if !ok {
		return domain.Article{}, apperr.ErrNotFound
	}
	return d.GetArticle(ctx, id)
}

func (d *memData) ListArticlesByStatus(_ context.Context, st domain.ArticleStatus) ([]domain.Article, error) {
	var out []domain.Article
	for _, a := range d.articles {
		if a.Status == st {
			out = append(out, cloneArticle(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *memData) UpdateArticle(_ context.Context, a domain.Article, expected string) error {
	stored, ok := d.articles[a.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	if stored.CurrentVersionID != expected {
		return apperr.ErrStale
	}
	if !d.hasVersion(a.ID, a.CurrentVersionID) {
		return fmt.Errorf("article %s: current version %s is not in its history", a.ID, a.CurrentVersionID)
	}
	if owner, ok := d.slugOwner(a.Slug); ok && owner != a.ID {
		return fmt.Errorf("slug %s: %w", a.Slug, apperr.ErrDuplicate)
	}
	d.articles[a.ID] = cloneArticle(a)
	return nil
}

func (d *memData) SetSlug(_ context.Context, id, s string) error {
	a, ok := d.articles[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if owner, taken := d.slugOwner(s); taken && owner != id {
		return fmt.Errorf("slug %s: %w", s, apperr.ErrDuplicate)
	}
	a.Slug = s
	d.articles[id] = a
	return nil
}

func (d *memData) DeleteArticle(ctx context.Context, id string) error {
	if _, ok := d.articles[id]; !ok {
		return apperr.ErrNotFound
	}
	_ = d.DeleteRevisionsForArticle(ctx, id)
	delete(d.versions, id)
	delete(d.articles, id)
	return nil
}

func (d *memData) hasVersion(articleID, versionID string) bool {
	for _, v := range d.versions[articleID] {
		if v.ID == versionID {
			return true
		}
	}
	return false
}

func (d *memData) AppendVersion(_ context.Context, v domain.Version) error {
	if _, ok := d.articles[v.ArticleID]; !ok {
		return apperr.ErrNotFound
	}
	for _, existing := range d.versions[v.ArticleID] {
		if existing.Number == v.Number || existing.ID == v.ID {
			return fmt.Errorf("version %d of %s: %w", v.Number, v.ArticleID, apperr.ErrDuplicate)
		}
	}
	d.versions[v.ArticleID] = append(d.versions[v.ArticleID], v)
	return nil
}

func (d *memData) GetVersion(_ context.Context, articleID, versionID string) (domain.Version, error) {
	for _, v := range d.versions[articleID] {
		if v.ID == versionID {
			return v, nil
		}
	}
	return domain.Version{}, apperr.ErrNotFound
}

func (d *memData) GetVersionByNumber(_ context.Context, articleID string, n int) (domain.Version, error) {
	for _, v := range d.versions[articleID] {
		if v.Number == n {
			return v, nil
		}
	}
	return domain.Version{}, apperr.ErrNotFound
}

func (d *memData) ListVersions(_ context.Context, articleID string) ([]domain.Version, error) {
	out := append([]domain.Version(nil), d.versions[articleID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (d *memData) LatestVersionNumber(_ context.Context, articleID string) (int, error) {
	latest := 0
	for _, v := range d.versions[articleID] {
		if v.Number > latest {
			latest = v.Number
		}
	}
	return latest, nil
}

func (d *memData) CreateRevision(_ context.Context, r domain.PendingRevision) error {
	if _, ok := d.articles[r.ArticleID]; !ok {
		return apperr.ErrNotFound
	}
	if _, ok := d.revisions[r.ID]; ok {
		return fmt.Errorf("revision %s: %w", r.ID, apperr.ErrDuplicate)
	}
	d.revisions[r.ID] = r
	return nil
}

func (d *memData) GetRevision(_ context.Context, id string) (domain.PendingRevision, error) {
	r, ok := d.revisions[id]
	if !ok {
		return domain.PendingRevision{}, apperr.ErrNotFound
	}
	return r, nil
}

func (d *memData) filterRevisions(keep func(domain.PendingRevision) bool) []domain.PendingRevision {
	var out []domain.PendingRevision
	for _, r := range d.revisions {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (d *memData) ListRevisionsByStatus(_ context.Context, st domain.RevisionStatus) ([]domain.PendingRevision, error) {
	return d.filterRevisions(func(r domain.PendingRevision) bool { return r.Status == st }), nil
}

func (d *memData) ListRevisionsForArticle(_ context.Context, articleID string) ([]domain.PendingRevision, error) {
	return d.filterRevisions(func(r domain.PendingRevision) bool { return r.ArticleID == articleID }), nil
}

func (d *memData) NextRevisionSequence(_ context.Context, articleID string) (int, error) {
	next := 1
	for _, r := range d.revisions {
		if r.ArticleID == articleID && r.Sequence >= next {
			next = r.Sequence + 1
		}
	}
	return next, nil
}

func (d *memData) UpdateRevision(_ context.Context, r domain.PendingRevision, expected domain.RevisionStatus) error {
	stored, ok := d.revisions[r.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	if stored.Status != expected {
		return apperr.ErrStale
	}
	d.revisions[r.ID] = r
	return nil
}

func (d *memData) DeleteRevision(_ context.Context, id string) error {
	if _, ok := d.revisions[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(d.revisions, id)
	return nil
}

func (d *memData) DeleteRevisionsForArticle(_ context.Context, articleID string) error {
	for id, r := range d.revisions {
		if r.ArticleID == articleID {
			delete(d.revisions, id)
		}
	}
	return nil
}

func cloneArticle(a domain.Article) domain.Article {
	a.Categories = append([]string(nil), a.Categories...)
	a.Tags = append([]string(nil), a.Tags...)
	a.Images = append([]domain.Image(nil), a.Images...)
	if a.Infobox != nil {
		box := *a.Infobox
		box.Fields = append([]domain.InfoboxField(nil), a.Infobox.Fields...)
		if a.Infobox.ImageIndex != nil {
			idx := *a.Infobox.ImageIndex
			box.ImageIndex = &idx
		}
		a.Infobox = &box
	}
	if a.PublishedAt != nil {
		at := *a.PublishedAt
		a.PublishedAt = &at
	}
	return a
}
