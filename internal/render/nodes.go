package render

import (
	"bytes"
	"html"

	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// Node renderers are registered in descending priority order and later registrations win, so a
// value below the html renderer (1000) and the table extension (500) takes precedence over both.
const overridePriority = 100

// overrides is a dispatch table from node kind to the function that renders it.
type overrides map[ast.NodeKind]renderer.NodeRendererFunc

// collect captures the functions a NodeRenderer registers, so they can be wrapped.
type collect map[ast.NodeKind]renderer.NodeRendererFunc

func (c collect) Register(kind ast.NodeKind, fn renderer.NodeRendererFunc) {
	c[kind] = fn
}

func newOverrides() overrides {
	table := collect{}
	extension.NewTableHTMLRenderer().RegisterFuncs(table)

	return overrides{
		ast.KindLink:     renderLink,
		ast.KindAutoLink: renderAutoLink,
		extast.KindTable: wrapTable(table[extast.KindTable]),
	}
}

func (o overrides) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	for kind, fn := range o {
		reg.Register(kind, fn)
	}
}

const linkAttrs = ` target="_blank" rel="noopener noreferrer"`

func renderLink(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.Link)
	if !entering {
		_, _ = w.WriteString("</a>")
		return ast.WalkContinue, nil
	}

	_, _ = w.WriteString(`<a href="`)
	if !gmhtml.IsDangerousURL(n.Destination) {
		_, _ = w.Write(util.EscapeHTML(util.URLEscape(n.Destination, true)))
	}
	_ = w.WriteByte('"')
	if n.Title != nil {
		_, _ = w.WriteString(` title="`)
		_, _ = w.Write(util.EscapeHTML(n.Title))
		_ = w.WriteByte('"')
	}
	_, _ = w.WriteString(linkAttrs + ">")
	return ast.WalkContinue, nil
}

func renderAutoLink(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.AutoLink)
	if !entering {
		return ast.WalkContinue, nil
	}

	url := n.URL(source)
	label := n.Label(source)
	if n.AutoLinkType == ast.AutoLinkEmail && !bytes.HasPrefix(bytes.ToLower(url), []byte("mailto:")) {
		url = append([]byte("mailto:"), url...)
	}

	_, _ = w.WriteString(`<a href="`)
	if !gmhtml.IsDangerousURL(url) {
		_, _ = w.Write(util.EscapeHTML(util.URLEscape(url, false)))
	}
	_, _ = w.WriteString(`"` + linkAttrs + ">")
	_, _ = w.Write(util.EscapeHTML(label))
	_, _ = w.WriteString("</a>")
	return ast.WalkContinue, nil
}

func wrapTable(base renderer.NodeRendererFunc) renderer.NodeRendererFunc {
	return func(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			_, _ = w.WriteString(`<div class="table-wrapper">`)
		}
		status, err := base(w, source, n, entering)
		if !entering {
			_, _ = w.WriteString("</div>\n")
		}
		return status, err
	}
}

// languageNames maps fence info strings to the name shown in a code block's header.
var languageNames = map[string]string{
	"bash":       "Bash",
	"c":          "C",
	"cpp":        "C++",
	"csharp":     "C#",
	"css":        "CSS",
	"go":         "Go",
	"html":       "HTML",
	"java":       "Java",
	"javascript": "JavaScript",
	"js":         "JavaScript",
	"json":       "JSON",
	"jsx":        "JSX",
	"kotlin":     "Kotlin",
	"markdown":   "Markdown",
	"md":         "Markdown",
	"php":        "PHP",
	"py":         "Python",
	"python":     "Python",
	"rb":         "Ruby",
	"ruby":       "Ruby",
	"rust":       "Rust",
	"sh":         "Shell",
	"shell":      "Shell",
	"sql":        "SQL",
	"swift":      "Swift",
	"ts":         "TypeScript",
	"tsx":        "TSX",
	"typescript": "TypeScript",
	"yaml":       "YAML",
	"yml":        "YAML",
}

// LanguageName returns the display name of a fence language, or lang itself when it is unknown.
func LanguageName(lang string) string {
	if name, ok := languageNames[lang]; ok {
		return name
	}
	return lang
}

func codeBlockWrapper(w util.BufWriter, c highlighting.CodeBlockContext, entering bool) {
	if !entering {
		_, _ = w.WriteString("</div>\n")
		return
	}

	name := "Code"
	if lang, ok := c.Language(); ok && len(lang) > 0 {
		name = LanguageName(string(lang))
	}
	_, _ = w.WriteString(`<div class="code-block"><div class="code-header"><span class="code-language">`)
	_, _ = w.WriteString(html.EscapeString(name))
	_, _ = w.WriteString(`</span><button type="button" class="copy-code">Copy</button></div>`)
}
