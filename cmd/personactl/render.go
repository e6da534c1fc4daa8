package main

import (
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// renderMarkdown flattens a Markdown bot reply for terminal display:
// headings become underlined-style uppercase-free plain lines, lists keep
// their bullets and code blocks are indented.
func renderMarkdown(src string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := p.Parse([]byte(src))

	var b strings.Builder
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		switch n := node.(type) {
		case *ast.Text:
			if entering {
				b.Write(n.Literal)
			}
		case *ast.Code:
			if entering {
				b.WriteByte('`')
				b.Write(n.Literal)
				b.WriteByte('`')
			}
		case *ast.CodeBlock:
			if entering {
				for _, line := range strings.Split(strings.TrimRight(string(n.Literal), "\n"), "\n") {
					b.WriteString("    ")
					b.WriteString(line)
					b.WriteByte('\n')
				}
				b.WriteByte('\n')
			}
		case *ast.Heading:
			if !entering {
				b.WriteString("\n\n")
			}
		case *ast.Paragraph:
			if !entering {
				b.WriteString("\n\n")
			}
		case *ast.ListItem:
			if entering {
				b.WriteString("  - ")
			}
		case *ast.Softbreak, *ast.Hardbreak:
			b.WriteByte('\n')
		}
		return ast.GoToNext
	})
	return strings.TrimRight(b.String(), "\n")
}
