package domain

import (
	"errors"
	"testing"
	"time"
)

func TestArticleTransitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from ArticleStatus
		ev   Event
		to   ArticleStatus
		ok   bool
	}{
		{StatusDraft, EventSubmit, StatusUnderReview, true},
		{StatusUnderReview, EventSubmit, StatusUnderReview, true},
		{StatusPublished, EventSubmit, StatusPublished, false},
		{StatusPublished, EventOpenRevision, StatusUnderReview, true},
		{StatusDraft, EventOpenRevision, StatusDraft, false},
		{StatusUnderReview, EventPublish, StatusPublished, true},
		{StatusDraft, EventPublish, StatusDraft, false},
		{StatusUnderReview, EventReturnToDraft, StatusDraft, true},
		{StatusPublished, EventArchive, StatusArchived, true},
		{StatusUnderReview, EventArchive, StatusUnderReview, false},
		{StatusArchived, EventPublish, StatusArchived, false},
		{StatusArchived, EventOpenRevision, StatusArchived, false},
	}

	for _, tc := range cases {
		got, err := tc.from.Next(tc.ev)
		if tc.ok && err != nil {
			t.Fatalf("%s --%s--> unexpected error %v", tc.from, tc.ev, err)
		}
		if !tc.ok {
			var tErr *TransitionError
			if !errors.As(err, &tErr) {
				t.Fatalf("%s --%s--> expected TransitionError, got %v", tc.from, tc.ev, err)
			}
		}
		if got != tc.to {
			t.Fatalf("%s --%s--> expected %s, got %s", tc.from, tc.ev, tc.to, got)
		}
	}
}

func TestApplyKeepsFirstPublication(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Article{Status: StatusUnderReview}
	if err := a.Apply(EventPublish, t0); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if a.PublishedAt == nil || !a.PublishedAt.Equal(t0) || !a.HasLiveContent() {
		t.Fatalf("unexpected first publication %v", a.PublishedAt)
	}

	t1 := t0.Add(time.Hour)
	if err := a.Apply(EventOpenRevision, t1); err != nil {
		t.Fatalf("open revision: %v", err)
	}
	if err := a.Apply(EventPublish, t1); err != nil {
		t.Fatalf("republish: %v", err)
	}
	if !a.PublishedAt.Equal(t0) || !a.UpdatedAt.Equal(t1) {
		t.Fatalf("publication time moved: %v updated %v", a.PublishedAt, a.UpdatedAt)
	}

	before := a
	if err := a.Apply(EventReturnToDraft, t1); err == nil {
		t.Fatal("published article cannot return to draft")
	}
	if a.Status != before.Status {
		t.Fatal("failed transition mutated status")
	}
}

func TestRevisionDecisionIsTerminal(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := PendingRevision{Status: RevisionPending}
	if err := r.Reject("mod", "spam", at); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if !r.Status.Terminal() || r.ReviewReason != "spam" || r.ReviewedBy != "mod" {
		t.Fatalf("unexpected revision %+v", r)
	}
	if err := r.Approve("mod", at); err == nil {
		t.Fatal("decided revision was approved again")
	}
	if r.Status != RevisionRejected {
		t.Fatalf("status changed to %s", r.Status)
	}
}

func TestParseStatuses(t *testing.T) {
	t.Parallel()

	if _, err := ParseArticleStatus("published"); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := ParseArticleStatus("deleted"); err == nil {
		t.Fatal("unknown status accepted")
	}
	if _, err := ParseRevisionStatus("maybe"); err == nil {
		t.Fatal("unknown revision status accepted")
	}
}
