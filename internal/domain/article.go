package domain

import (
	"fmt"
	"time"
)

// Image is an illustration attached to an article, kept in display order.
type Image struct {
	URL         string `json:"url"`
	Description string `json:"description"`
	Attribution string `json:"attribution"`
}

// InfoboxField is a single key fact row.
type InfoboxField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Infobox is the structured key-fact block; ImageIndex points into Article.Images.
type Infobox struct {
	Title      string         `json:"title"`
	ImageIndex *int           `json:"imageIndex,omitempty"`
	Fields     []InfoboxField `json:"fields"`
}

// Article is the addressable unit of content. Content always mirrors the
// version referenced by CurrentVersionID.
type Article struct {
	ID                   string
	Slug                 string
	Title                string
	Content              string
	Status               ArticleStatus
	Author               string
	AuthorID             string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	PublishedAt          *time.Time // first publication
	Categories           []string
	Tags                 []string
	Images               []Image
	Infobox              *Infobox
	IsAIGenerated        bool
	CategoriesLockedByAI bool
	CurrentVersionID     string
}

// HasLiveContent reports whether the article has ever been published, in which
// case edits are routed through moderation instead of replacing content.
func (a Article) HasLiveContent() bool {
	return a.PublishedAt != nil
}

// Apply moves the article through ev.
func (a *Article) Apply(ev Event, at time.Time) error {
	next, err := a.Status.Next(ev)
	if err != nil {
		return err
	}
	a.Status = next
	a.UpdatedAt = at
	if next == StatusPublished && a.PublishedAt == nil {
		published := at
		a.PublishedAt = &published
	}
	return nil
}

// ValidImageIndex reports whether the infobox image reference, if any, resolves.
func (a Article) ValidImageIndex() bool {
	if a.Infobox == nil || a.Infobox.ImageIndex == nil {
		return true
	}
	idx := *a.Infobox.ImageIndex
	return idx >= 0 && idx < len(a.Images)
}

// Version is an immutable snapshot of an article's content.
type Version struct {
	ID        string
	ArticleID string
	Number    int
	Title     string
	Content   string
	Author    string
	AuthorID  string
	Timestamp time.Time
	Changes   string
}

// Label is the display name, "Version N".
func (v Version) Label() string {
	return fmt.Sprintf("Version %d", v.Number)
}

// PendingRevision is a proposed change to an article with live content.
type PendingRevision struct {
	ID           string
	ArticleID    string
	Title        string
	Content      string
	Author       string
	AuthorID     string
	Timestamp    time.Time
	Changes      string
	Sequence     int
	Status       RevisionStatus
	ReviewedBy   string
	ReviewedAt   *time.Time
	ReviewReason string
}

// Approve marks a pending revision approved; terminal revisions are refused.
func (r *PendingRevision) Approve(moderatorID string, at time.Time) error {
	return r.decide(RevisionApproved, moderatorID, "", at)
}

// Reject marks a pending revision rejected; terminal revisions are refused.
func (r *PendingRevision) Reject(moderatorID, reason string, at time.Time) error {
	return r.decide(RevisionRejected, moderatorID, reason, at)
}

func (r *PendingRevision) decide(to RevisionStatus, moderatorID, reason string, at time.Time) error {
	next, err := r.Status.decide(to)
	if err != nil {
		return err
	}
	r.Status = next
	r.ReviewedBy = moderatorID
	r.ReviewReason = reason
	reviewed := at
	r.ReviewedAt = &reviewed
	return nil
}
