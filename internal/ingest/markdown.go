package ingest

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var (
	md         = goldmark.New(goldmark.WithExtensions(extension.GFM))
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// MarkdownToText strips Markdown syntax, keeping paragraphs separated by a
// blank line so the chunker can split on them. The first heading is
// returned as the title.
func MarkdownToText(src []byte) (body, title string) {
	doc := md.Parser().Parse(text.NewReader(src))

	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n.Kind() {
		case ast.KindHTMLBlock, ast.KindRawHTML:
			return ast.WalkSkipChildren, nil

		case ast.KindFencedCodeBlock, ast.KindCodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					sb.Write(seg.Value(src))
				}
				sb.WriteString("\n\n")
			}
			return ast.WalkSkipChildren, nil

		case ast.KindText:
			if entering {
				t := n.(*ast.Text)
				sb.Write(t.Segment.Value(src))
				switch {
				case t.HardLineBreak():
					sb.WriteString("\n")
				case t.SoftLineBreak():
					sb.WriteString(" ")
				}
			}

		case ast.KindString:
			if entering {
				sb.Write(n.(*ast.String).Value)
			}

		case ast.KindAutoLink:
			if entering {
				sb.Write(n.(*ast.AutoLink).Label(src))
			}
			return ast.WalkSkipChildren, nil

		case ast.KindHeading:
			if !entering {
				if title == "" {
					title = strings.TrimSpace(lastBlock(sb.String()))
				}
				sb.WriteString("\n\n")
			}

		case ast.KindListItem:
			if entering {
				sb.WriteString("- ")
			} else if !strings.HasSuffix(sb.String(), "\n") {
				sb.WriteString("\n")
			}

		case ast.KindParagraph, ast.KindList, ast.KindThematicBreak, ast.KindBlockquote, east.KindTable:
			if !entering {
				sb.WriteString("\n\n")
			}

		case ast.KindTextBlock, east.KindTableHeader, east.KindTableRow:
			if !entering {
				sb.WriteString("\n")
			}

		case east.KindTableCell:
			if !entering && n.NextSibling() != nil {
				sb.WriteString(" | ")
			}
		}
		return ast.WalkContinue, nil
	})

	body = blankLines.ReplaceAllString(sb.String(), "\n\n")
	return strings.TrimSpace(body), title
}

// lastBlock returns the text after the final blank line of s.
func lastBlock(s string) string {
	if i := strings.LastIndex(s, "\n\n"); i >= 0 {
		return s[i+2:]
	}
	return s
}
