// Package render turns a finished assistant message into HTML: thinking blocks become collapsed
// <details> elements and everything else is rendered as GitHub-flavoured markdown.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/MegaGrindStone/stream-chat-ui/internal/thinking"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// Renderer converts markdown to HTML. The zero value is not usable; use New.
type Renderer struct {
	md goldmark.Markdown
}

// New builds a Renderer with the GFM extensions, syntax highlighting and the per-node overrides.
func New() Renderer {
	return Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(
					highlighting.WithStyle("github"),
					highlighting.WithWrapperRenderer(codeBlockWrapper),
				),
			),
			goldmark.WithRendererOptions(
				renderer.WithNodeRenderers(util.Prioritized(newOverrides(), overridePriority)),
			),
		),
	}
}

// Markdown renders src as HTML. Raw HTML in src is dropped.
func (r Renderer) Markdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	return buf.String(), nil
}

// Message renders a whole assistant message. Each thinking segment is wrapped in a collapsed
// <details class="thinking"> block; normal segments are rendered in place.
func (r Renderer) Message(content string) (template.HTML, error) {
	var sb strings.Builder
	for _, seg := range thinking.Split(content) {
		if seg.Kind == thinking.KindNormal && strings.TrimSpace(seg.Text) == "" {
			continue
		}

		html, err := r.Markdown(seg.Text)
		if err != nil {
			return "", err
		}
		if seg.Kind == thinking.KindNormal {
			sb.WriteString(html)
			continue
		}

		sb.WriteString(`<details class="thinking"><summary>Thinking</summary><div class="thinking-body">`)
		sb.WriteString(html)
		sb.WriteString("</div></details>\n")
	}
	// Output is produced by goldmark with raw HTML disabled.
	return template.HTML(sb.String()), nil //nolint:gosec
}
