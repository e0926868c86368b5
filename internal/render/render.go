// Package render turns assistant replies into terminal output.
package render

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Renderer renders markdown with glamour. A disabled Renderer returns its
// input unchanged.
type Renderer struct {
	mu      sync.Mutex
	tr      *glamour.TermRenderer
	enabled bool
	style   string
	width   int
}

// New creates a Renderer wrapping at width. An empty style picks dark or
// light from the terminal background.
func New(width int, style string, enabled bool) (*Renderer, error) {
	r := &Renderer{enabled: enabled, style: style}
	if !enabled {
		return r, nil
	}
	if err := r.SetWidth(width); err != nil {
		return nil, err
	}
	return r, nil
}

// SetWidth rebuilds the renderer for a new wrap width.
func (r *Renderer) SetWidth(width int) error {
	if !r.enabled {
		return nil
	}
	if width < 20 {
		width = 20
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tr != nil && width == r.width {
		return nil
	}

	styleOpt := glamour.WithAutoStyle()
	if r.style != "" {
		styleOpt = glamour.WithStandardStyle(r.style)
	}
	tr, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return err
	}
	r.tr = tr
	r.width = width
	return nil
}

// Markdown renders text. Partial markdown, as seen mid-stream, is fine; on
// a render error the plain text is returned.
func (r *Renderer) Markdown(text string) string {
	if !r.enabled || strings.TrimSpace(text) == "" {
		return text
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out, err := r.tr.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// CodeBlock is one fenced code block of a reply.
type CodeBlock struct {
	Language string
	Code     string
}

// CodeBlocks extracts the fenced code blocks of markdown in document order.
func CodeBlocks(markdown string) []CodeBlock {
	src := []byte(markdown)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var blocks []CodeBlock
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		var b strings.Builder
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}
		blocks = append(blocks, CodeBlock{
			Language: string(fenced.Language(src)),
			Code:     b.String(),
		})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}
