package ingest

import (
	"fmt"
	"os"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// loadMarkdown reads a markdown chapter. The chapter text is the raw
// source so spans stay fixable in place; goldmark only supplies the
// title from the first heading.
func loadMarkdown(path string) (Chapter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Chapter{}, fmt.Errorf("read chapter %s: %w", path, err)
	}
	return Chapter{
		Text:     string(data),
		Title:    firstHeading(data),
		Writable: true,
	}, nil
}

// firstHeading walks the AST for the first heading's text.
func firstHeading(source []byte) string {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var title string
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			title = string(h.Text(source))
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return title
}
