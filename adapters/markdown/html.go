package markdown

import (
	"impactsim/ports"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// HTMLRenderer implements ports.DocumentRenderer with gomarkdown
type HTMLRenderer struct{}

var _ ports.DocumentRenderer = (*HTMLRenderer)(nil)

// NewHTMLRenderer creates the renderer
func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{}
}

// RenderHTML renders md as a complete HTML page with tables and heading IDs
func (r *HTMLRenderer) RenderHTML(title string, md []byte) []byte {
	// Parsers are stateful and not reusable across documents
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse(md)

	renderer := html.NewRenderer(html.RendererOptions{
		Title: title,
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.Render(doc, renderer)
}
