package markup

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"

	"Encyclopedia/internal/ports"
)

var infoboxTemplate = regexp.MustCompile(`(?i)\{\{\s*infobox\b`)

const infoboxSelector = ".infobox, table.infobox, [data-infobox]"

// Inspector renders article Markdown and looks into the resulting HTML.
type Inspector struct {
	// raw keeps HTML blocks so pasted infobox tables can be detected.
	raw goldmark.Markdown
	// public drops raw HTML and dangerous links for pages served to readers.
	public goldmark.Markdown
}

var _ ports.ContentInspector = (*Inspector)(nil)

// NewInspector configures the GFM renderers.
func NewInspector() *Inspector {
	return &Inspector{
		raw:    newMarkdown(html.WithUnsafe()),
		public: newMarkdown(),
	}
}

func newMarkdown(opts ...renderer.Option) goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.DefinitionList),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(opts...),
	)
}

// Render converts Markdown to HTML safe to serve; raw HTML is omitted.
func (i *Inspector) Render(content string) (string, error) {
	return convert(i.public, content)
}

func convert(md goldmark.Markdown, content string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// HasInfobox reports whether content carries an infobox template or an
// infobox element.
func (i *Inspector) HasInfobox(content string) bool {
	if infoboxTemplate.MatchString(content) {
		return true
	}
	doc, ok := i.document(content)
	if !ok {
		return false
	}
	return doc.Find(infoboxSelector).Length() > 0
}

// WordCount counts words in the rendered text, ignoring markup.
func (i *Inspector) WordCount(content string) int {
	doc, ok := i.document(content)
	if !ok {
		return len(strings.Fields(content))
	}
	return len(strings.Fields(doc.Text()))
}

func (i *Inspector) document(content string) (*goquery.Document, bool) {
	rendered, err := convert(i.raw, content)
	if err != nil {
		return nil, false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return nil, false
	}
	return doc, true
}
