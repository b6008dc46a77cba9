package domain

import "fmt"

// ArticleStatus is the lifecycle state of an article.
type ArticleStatus string

const (
	StatusDraft       ArticleStatus = "draft"
	StatusUnderReview ArticleStatus = "under_review"
	StatusPublished   ArticleStatus = "published"
	StatusArchived    ArticleStatus = "archived"
)

// ParseArticleStatus accepts only the closed set of article states.
func ParseArticleStatus(raw string) (ArticleStatus, error) {
	switch s := ArticleStatus(raw); s {
	case StatusDraft, StatusUnderReview, StatusPublished, StatusArchived:
		return s, nil
	}
	return "", fmt.Errorf("unknown article status %q", raw)
}

// Event drives an article from one status to another.
type Event string

const (
	EventSubmit        Event = "submit"
	EventOpenRevision  Event = "open_revision"
	EventPublish       Event = "publish"
	EventReturnToDraft Event = "return_to_draft"
	EventArchive       Event = "archive"
)

var articleTransitions = map[Event]map[ArticleStatus]ArticleStatus{
	EventSubmit: {
		StatusDraft:       StatusUnderReview,
		StatusUnderReview: StatusUnderReview,
	},
	EventOpenRevision: {
		StatusPublished:   StatusUnderReview,
		StatusUnderReview: StatusUnderReview,
	},
	EventPublish: {
		StatusUnderReview: StatusPublished,
		StatusPublished:   StatusPublished,
	},
	EventReturnToDraft: {
		StatusUnderReview: StatusDraft,
	},
	EventArchive: {
		StatusPublished: StatusArchived,
	},
}

// TransitionError reports an event that is not allowed from the current status.
type TransitionError struct {
	From  string
	Event string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %s not allowed from %s", e.Event, e.From)
}

// Next returns the status reached by applying ev, or a *TransitionError.
func (s ArticleStatus) Next(ev Event) (ArticleStatus, error) {
	if to, ok := articleTransitions[ev][s]; ok {
		return to, nil
	}
	return s, &TransitionError{From: string(s), Event: string(ev)}
}

// RevisionStatus is the moderation state of a pending revision.
type RevisionStatus string

const (
	RevisionPending  RevisionStatus = "pending"
	RevisionApproved RevisionStatus = "approved"
	RevisionRejected RevisionStatus = "rejected"
)

// ParseRevisionStatus accepts only the closed set of revision states.
func ParseRevisionStatus(raw string) (RevisionStatus, error) {
	switch s := RevisionStatus(raw); s {
	case RevisionPending, RevisionApproved, RevisionRejected:
		return s, nil
	}
	return "", fmt.Errorf("unknown revision status %q", raw)
}

// Terminal reports whether no further decision may be applied.
func (s RevisionStatus) Terminal() bool {
	return s == RevisionApproved || s == RevisionRejected
}

func (s RevisionStatus) decide(to RevisionStatus) (RevisionStatus, error) {
	if s != RevisionPending {
		return s, &TransitionError{From: string(s), Event: string(to)}
	}
	return to, nil
}
