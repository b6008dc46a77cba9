package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SortOrder selects how moderation listings are ordered.
type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortOldest    SortOrder = "oldest"
	SortTitleAsc  SortOrder = "title_asc"
	SortTitleDesc SortOrder = "title_desc"
)

// ParseSortOrder defaults to newest-first for an empty value.
func ParseSortOrder(raw string) (SortOrder, error) {
	switch s := SortOrder(strings.TrimSpace(raw)); s {
	case "":
		return SortNewest, nil
	case SortNewest, SortOldest, SortTitleAsc, SortTitleDesc:
		return s, nil
	}
	return "", fmt.Errorf("unknown sort order %q", raw)
}

// EpochSeconds normalises every timestamp to one comparable representation.
func EpochSeconds(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

type sortKey struct {
	id    string
	title string
	at    int64
}

func (o SortOrder) less(a, b sortKey) bool {
	switch o {
	case SortOldest:
		if a.at != b.at {
			return a.at < b.at
		}
	case SortTitleAsc, SortTitleDesc:
		ta, tb := strings.ToLower(a.title), strings.ToLower(b.title)
		if ta != tb {
			if o == SortTitleAsc {
				return ta < tb
			}
			return ta > tb
		}
	default:
		if a.at != b.at {
			return a.at > b.at
		}
	}
	return a.id < b.id
}

// SortArticles orders articles in place by the given order using UpdatedAt.
func SortArticles(articles []Article, order SortOrder) {
	sort.SliceStable(articles, func(i, j int) bool {
		return order.less(
			sortKey{id: articles[i].ID, title: articles[i].Title, at: EpochSeconds(articles[i].UpdatedAt)},
			sortKey{id: articles[j].ID, title: articles[j].Title, at: EpochSeconds(articles[j].UpdatedAt)},
		)
	})
}

// SortRevisions orders revisions in place by the given order using Timestamp.
func SortRevisions(revisions []PendingRevision, order SortOrder) {
	sort.SliceStable(revisions, func(i, j int) bool {
		return order.less(
			sortKey{id: revisions[i].ID, title: revisions[i].Title, at: EpochSeconds(revisions[i].Timestamp)},
			sortKey{id: revisions[j].ID, title: revisions[j].Title, at: EpochSeconds(revisions[j].Timestamp)},
		)
	})
}
