package ml

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify" || r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("unexpected request %s %q", r.URL.Path, r.Header.Get("Authorization"))
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["title"] != "Jupiter" {
			t.Errorf("unexpected body %v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"categories": []string{"Astronomy", "Planets"}})
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL+"/", "k").Classify(context.Background(), "Jupiter", "gas giant")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if len(got) != 2 || got[0] != "Astronomy" {
		t.Fatalf("unexpected categories %v", got)
	}
}

func TestClassifyErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, "").Classify(context.Background(), "t", "c"); err == nil {
		t.Fatal("expected error")
	}
}

func TestClassifyDisabled(t *testing.T) {
	t.Parallel()

	got, err := NewClient("", "").Classify(context.Background(), "t", "c")
	if err != nil || got != nil {
		t.Fatalf("disabled classifier should be a no-op: %v %v", got, err)
	}
}
