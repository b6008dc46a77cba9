package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsWalksWrappedChain(t *testing.T) {
	t.Parallel()

	base := New(CodeNotFound, "resolve", "article not found")
	wrapped := fmt.Errorf("read public: %w", base)

	if !Is(wrapped, CodeNotFound) {
		t.Fatalf("expected not_found in chain: %v", wrapped)
	}
	if Is(wrapped, CodeConflict) {
		t.Fatalf("unexpected conflict code")
	}
	if Message(wrapped) != "article not found" {
		t.Fatalf("unexpected message %q", Message(wrapped))
	}
}

func TestCodeOfPlainError(t *testing.T) {
	t.Parallel()

	err := errors.New("boom")
	if CodeOf(err) != CodeInternal {
		t.Fatalf("expected internal, got %s", CodeOf(err))
	}
	if Message(err) != "internal error" {
		t.Fatalf("raw fault leaked: %q", Message(err))
	}
}

func TestWrapKeepsCause(t *testing.T) {
	t.Parallel()

	err := Wrap(CodeBackend, "generate", "generation backend unavailable", ErrStale)
	if !errors.Is(err, ErrStale) {
		t.Fatalf("cause lost: %v", err)
	}
	if got := err.Error(); got != "generate: backend: generation backend unavailable: record changed concurrently" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestIsFindsInnerCode(t *testing.T) {
	t.Parallel()

	inner := New(CodeNotFound, "get article", "article not found")
	err := fmt.Errorf("approve: %w", Wrap(CodePartialCommit, "approve revision", "decision partially applied", inner))

	if CodeOf(err) != CodePartialCommit {
		t.Fatalf("outermost code = %s", CodeOf(err))
	}
	if !Is(err, CodePartialCommit) || !Is(err, CodeNotFound) {
		t.Fatalf("expected both codes in chain: %v", err)
	}
	if Is(err, CodeConflict) {
		t.Fatal("unexpected conflict code")
	}
}
