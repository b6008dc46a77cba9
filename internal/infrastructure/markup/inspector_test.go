package markup

import (
	"strings"
	"testing"
)

func TestHasInfobox(t *testing.T) {
	t.Parallel()

	in := NewInspector()
	cases := []struct {
		name    string
		content string
		want    bool
	}{
		{"template", "{{Infobox person\n| name = Ada\n}}\n\nText.", true},
		{"template lowercase", "{{ infobox planet }}", true},
		{"html table", "<table class=\"infobox\"><tr><td>x</td></tr></table>\n\nBody", true},
		{"data attribute", "<div data-infobox=\"1\">facts</div>", true},
		{"plain markdown", "# Title\n\nJust prose about infoboxes.", false},
		{"empty", "", false},
	}

	for _, tc := range cases {
		if got := in.HasInfobox(tc.content); got != tc.want {
			t.Fatalf("%s: HasInfobox = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestWordCountIgnoresMarkup(t *testing.T) {
	t.Parallel()

	in := NewInspector()
	got := in.WordCount("# Big **bold** title\n\nA [link](https://example.org) here.")
	if got != 6 {
		t.Fatalf("expected 6 words, got %d", got)
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	html, err := NewInspector().Render("Hello *world*")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "<em>world</em>") {
		t.Fatalf("unexpected html %q", html)
	}
}

func TestRenderOmitsRawHTML(t *testing.T) {
	t.Parallel()

	in := NewInspector()
	content := "<script>alert(1)</script>\n\n<table class=\"infobox\"><tr><td>x</td></tr></table>\n\n[click](javascript:alert(1))"

	html, err := in.Render(content)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(html, "<script") || strings.Contains(html, "javascript:") {
		t.Fatalf("unsafe markup served: %q", html)
	}
	if !in.HasInfobox(content) {
		t.Fatal("infobox table must still be detected")
	}
}
