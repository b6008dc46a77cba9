package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"Encyclopedia/internal/apperr"
	"Encyclopedia/internal/domain"
	"Encyclopedia/internal/ports"
)

// Deps wires all driven adapters into the use cases. Only Repository is required.
type Deps struct {
	Repository ports.Repository
	Clock      ports.Clock
	Inspector  ports.ContentInspector
	Authorizer ports.Authorizer
	Notifier   ports.Notifier
	SlugCache  ports.SlugCache
	Images     ports.ImageStore
	Classifier ports.Classifier
	Metrics    ports.Metrics
	Logger     *slog.Logger
	NewID      func() string
}

func (d Deps) withDefaults() *Deps {
	if d.Clock == nil {
		d.Clock = systemClock{}
	}
	if d.Authorizer == nil {
		d.Authorizer = RolePolicy(domain.Permissions)
	}
	if d.Metrics == nil {
		d.Metrics = noopMetrics{}
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return &d
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type noopMetrics struct{}

func (noopMetrics) VersionAppended()                      {}
func (noopMetrics) RevisionDecided(domain.RevisionStatus) {}
func (noopMetrics) GenerationItem(string)                 {}
func (noopMetrics) BatchFinished(domain.BatchResult)      {}

// RolePolicy is a static Authorizer built from a role -> actions table where
// each role also inherits every role listed before it in the hierarchy.
type RolePolicy map[domain.Role][]domain.Action

var roleHierarchy = []domain.Role{domain.RoleAuthor, domain.RoleModerator, domain.RoleAdmin}

// Allowed implements ports.Authorizer.
func (p RolePolicy) Allowed(actor domain.Actor, action domain.Action) bool {
	if !slices.Contains(roleHierarchy, actor.Role) {
		return false
	}
	for _, role := range roleHierarchy {
		for _, granted := range p[role] {
			if granted == action {
				return true
			}
		}
		if role == actor.Role {
			return false
		}
	}
	return false
}

func (d *Deps) now() time.Time {
	return d.Clock.Now().UTC()
}

func (d *Deps) authorize(op string, actor domain.Actor, action domain.Action) error {
	if d.Authorizer.Allowed(actor, action) {
		return nil
	}
	return apperr.New(apperr.CodeForbidden, op, "you are not allowed to do this")
}

func (d *Deps) notify(ctx context.Context, message string) {
	if d.Notifier == nil {
		return
	}
	if err := d.Notifier.NotifyModerators(ctx, message); err != nil {
		d.Logger.Warn("notify moderators", "error", err)
	}
}

// atomically runs fn inside a store transaction when available. Otherwise the
// writes run one after another and a failure after a successful write is
// reported as a partial commit.
func (d *Deps) atomically(ctx context.Context, op string, fn func(repo ports.Repository) error) error {
	if tx, ok := d.Repository.(ports.Transactor); ok {
		return tx.WithinTx(ctx, fn)
	}

	tracked := &writeTracker{Repository: d.Repository}
	err := fn(tracked)
	if err != nil && tracked.writes > 0 {
		d.Logger.Error("partial commit", "op", op, "writes", tracked.writes, "error", err)
		return apperr.Wrap(apperr.CodePartialCommit, op,
			"the change was only partially saved and needs manual reconciliation", err)
	}
	return err
}

// storeErr maps store sentinel errors onto the engine taxonomy.
func storeErr(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, apperr.ErrNotFound):
		return apperr.Wrap(apperr.CodeNotFound, op, entity+" not found", err)
	case errors.Is(err, apperr.ErrDuplicate):
		return apperr.Wrap(apperr.CodeConflict, op, entity+" already exists", err)
	case errors.Is(err, apperr.ErrStale):
		return apperr.Wrap(apperr.CodeConflict, op, entity+" was changed by someone else; reload and retry", err)
	default:
		return apperr.Wrap(apperr.CodeBackend, op, "storage is unavailable", err)
	}
}

func transitionErr(op string, err error) error {
	var tErr *domain.TransitionError
	if errors.As(err, &tErr) {
		return apperr.Wrap(apperr.CodeInvalidTransition, op, "this action is not allowed in the current state", err)
	}
	return err
}

type writeTracker struct {
	ports.Repository
	writes int
}

func (w *writeTracker) count(err error) error {
	if err == nil {
		w.writes++
	}
	return err
}

func (w *writeTracker) CreateArticle(ctx context.Context, a domain.Article, v domain.Version) error {
	return w.count(w.Repository.CreateArticle(ctx, a, v))
}

func (w *writeTracker) UpdateArticle(ctx context.Context, a domain.Article, expected string) error {
	return w.count(w.Repository.UpdateArticle(ctx, a, expected))
}

func (w *writeTracker) SetSlug(ctx context.Context, id, s string) error {
	return w.count(w.Repository.SetSlug(ctx, id, s))
}

func (w *writeTracker) DeleteArticle(ctx context.Context, id string) error {
	return w.count(w.Repository.DeleteArticle(ctx, id))
}

func (w *writeTracker) AppendVersion(ctx context.Context, v domain.Version) error {
	return w.count(w.Repository.AppendVersion(ctx, v))
}

func (w *writeTracker) CreateRevision(ctx context.Context, r domain.PendingRevision) error {
	return w.count(w.Repository.CreateRevision(ctx, r))
}

func (w *writeTracker) UpdateRevision(ctx context.Context, r domain.PendingRevision, expected domain.RevisionStatus) error {
	return w.count(w.Repository.UpdateRevision(ctx, r, expected))
}

func (w *writeTracker) DeleteRevision(ctx context.Context, id string) error {
	return w.count(w.Repository.DeleteRevision(ctx, id))
}

func (w *writeTracker) DeleteRevisionsForArticle(ctx context.Context, articleID string) error {
	return w.count(w.Repository.DeleteRevisionsForArticle(ctx, articleID))
}
