package pipeline

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Section 是按标题切分的一段正文。
type Section struct {
	Heading string
	Text    string
}

var markdown = goldmark.New()

// MarkdownSections 解析 markdown，按标题把正文归到各自的小节，去掉标记符号只保留文字。
// 第一个标题之前的正文归入标题为空的小节。
func MarkdownSections(src []byte) []Section {
	doc := markdown.Parser().Parse(text.NewReader(src))

	var (
		sections []Section
		heading  string
		body     strings.Builder
	)
	flush := func() {
		if t := strings.TrimSpace(body.String()); t != "" {
			sections = append(sections, Section{Heading: heading, Text: t})
		}
		body.Reset()
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading:
			flush()
			heading = strings.TrimSpace(inlineText(n, src))
			return ast.WalkSkipChildren, nil
		case ast.KindParagraph, ast.KindTextBlock:
			body.WriteString(inlineText(n, src))
			body.WriteString("\n")
			return ast.WalkSkipChildren, nil
		case ast.KindFencedCodeBlock, ast.KindCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				body.Write(seg.Value(src))
			}
			body.WriteString("\n")
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	flush()
	return sections
}

// inlineText 拼接节点下的文字内容。
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := c.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteString("\n")
			}
		case *ast.String:
			b.Write(v.Value)
		case *ast.AutoLink:
			b.Write(v.URL(src))
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
