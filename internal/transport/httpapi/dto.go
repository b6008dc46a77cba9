package httpapi

import (
	"time"

	"Encyclopedia/internal/domain"
	"Encyclopedia/internal/usecase"
)

type articleResponse struct {
	ID                   string          `json:"id"`
	Slug                 string          `json:"slug,omitempty"`
	Title                string          `json:"title"`
	Content              string          `json:"content"`
	HTML                 string          `json:"html,omitempty"`
	Status               string          `json:"status"`
	Author               string          `json:"author"`
	AuthorID             string          `json:"authorId"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
	PublishedAt          *time.Time      `json:"publishedAt,omitempty"`
	Categories           []string        `json:"categories"`
	Tags                 []string        `json:"tags"`
	Images               []domain.Image  `json:"images"`
	Infobox              *domain.Infobox `json:"infobox,omitempty"`
	IsAIGenerated        bool            `json:"isAiGenerated"`
	CategoriesLockedByAI bool            `json:"categoriesLockedByAi"`
	CurrentVersionID     string          `json:"currentVersionId"`
}

func toArticle(a domain.Article) articleResponse {
	return articleResponse{
		ID:                   a.ID,
		Slug:                 a.Slug,
		Title:                a.Title,
		Content:              a.Content,
		Status:               string(a.Status),
		Author:               a.Author,
		AuthorID:             a.AuthorID,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
		PublishedAt:          a.PublishedAt,
		Categories:           nonNil(a.Categories),
		Tags:                 nonNil(a.Tags),
		Images:               a.Images,
		Infobox:              a.Infobox,
		IsAIGenerated:        a.IsAIGenerated,
		CategoriesLockedByAI: a.CategoriesLockedByAI,
		CurrentVersionID:     a.CurrentVersionID,
	}
}

func toArticles(in []domain.Article) []articleResponse {
	out := make([]articleResponse, 0, len(in))
	for _, a := range in {
		out = append(out, toArticle(a))
	}
	return out
}

type versionResponse struct {
	ID        string    `json:"id"`
	ArticleID string    `json:"articleId"`
	Number    int       `json:"number"`
	Label     string    `json:"label"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	AuthorID  string    `json:"authorId"`
	Timestamp time.Time `json:"timestamp"`
	Changes   string    `json:"changes"`
}

func toVersion(v domain.Version) versionResponse {
	return versionResponse{
		ID:        v.ID,
		ArticleID: v.ArticleID,
		Number:    v.Number,
		Label:     v.Label(),
		Title:     v.Title,
		Content:   v.Content,
		Author:    v.Author,
		AuthorID:  v.AuthorID,
		Timestamp: v.Timestamp,
		Changes:   v.Changes,
	}
}

type revisionResponse struct {
	ID           string     `json:"id"`
	ArticleID    string     `json:"articleId"`
	ArticleTitle string     `json:"articleTitle,omitempty"`
	ArticleSlug  string     `json:"articleSlug,omitempty"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	Author       string     `json:"author"`
	AuthorID     string     `json:"authorId"`
	Timestamp    time.Time  `json:"timestamp"`
	Changes      string     `json:"changes"`
	Sequence     int        `json:"sequence"`
	Status       string     `json:"status"`
	ReviewedBy   string     `json:"reviewedBy,omitempty"`
	ReviewedAt   *time.Time `json:"reviewedAt,omitempty"`
	ReviewReason string     `json:"reviewReason,omitempty"`
}

func toRevision(r domain.PendingRevision) revisionResponse {
	return revisionResponse{
		ID:           r.ID,
		ArticleID:    r.ArticleID,
		Title:        r.Title,
		Content:      r.Content,
		Author:       r.Author,
		AuthorID:     r.AuthorID,
		Timestamp:    r.Timestamp,
		Changes:      r.Changes,
		Sequence:     r.Sequence,
		Status:       string(r.Status),
		ReviewedBy:   r.ReviewedBy,
		ReviewedAt:   r.ReviewedAt,
		ReviewReason: r.ReviewReason,
	}
}

func toQueue(items []usecase.QueueItem) []revisionResponse {
	out := make([]revisionResponse, 0, len(items))
	for _, item := range items {
		r := toRevision(item.Revision)
		r.ArticleTitle = item.ArticleTitle
		r.ArticleSlug = item.ArticleSlug
		out = append(out, r)
	}
	return out
}

type saveRequest struct {
	Title             string   `json:"title"`
	Content           string   `json:"content"`
	Changes           string   `json:"changes"`
	ExpectedVersionID string   `json:"expectedVersionId"`
	Categories        []string `json:"categories"`
	Tags              []string `json:"tags"`
}

type saveResponse struct {
	Article  articleResponse   `json:"article"`
	Version  *versionResponse  `json:"version,omitempty"`
	Revision *revisionResponse `json:"revision,omitempty"`
}

type submitRequest struct {
	ConfirmOverride bool `json:"confirmOverride"`
}

type metadataRequest struct {
	Categories   *[]string       `json:"categories"`
	Tags         *[]string       `json:"tags"`
	Infobox      *domain.Infobox `json:"infobox"`
	ClearInfobox bool            `json:"clearInfobox"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type batchRequest struct {
	Topics            []string `json:"topics"`
	Count             int      `json:"count"`
	MinWords          int      `json:"minWords"`
	MaxWords          int      `json:"maxWords"`
	MaxRetriesPerItem int      `json:"maxRetriesPerItem"`
}

type batchResponse struct {
	Requested  int      `json:"requested"`
	Created    int      `json:"created"`
	Unmet      int      `json:"unmet"`
	ArticleIDs []string `json:"articleIds"`
	Failures   []string `json:"failures"`
	Outcome    string   `json:"outcome"`
	Summary    string   `json:"summary"`
}

func toBatch(r domain.BatchResult) batchResponse {
	return batchResponse{
		Requested:  r.Requested,
		Created:    r.Created,
		Unmet:      r.Unmet(),
		ArticleIDs: nonNil(r.ArticleIDs),
		Failures:   nonNil(r.Failures),
		Outcome:    string(r.Outcome),
		Summary:    r.Summary(),
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
