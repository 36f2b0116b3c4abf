// Package markdown renders kata content (Markdown with TeX math) to
// sanitized HTML.
package markdown

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var (
	emptyDisplayMath = regexp.MustCompile(`\$\$\s*\$\$`)
	displayMath      = regexp.MustCompile(`(?s)\$\$(.+?)\$\$`)
	inlineMath       = regexp.MustCompile(`\$([^\s$](?:[^$\n]*[^\s$])?)\$`)
	codeRegion       = regexp.MustCompile("(?s)```.*?```|`[^`\n]+`")
	placeholder      = regexp.MustCompile(`KATAMATH(\d+)X`)
	mathClass        = regexp.MustCompile(`^(language-[\w+-]+|math inline|math display)$`)
)

// Renderer converts Markdown to HTML. It is safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// New returns a renderer with GitHub-flavoured Markdown enabled.
func New() *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(mathClass).OnElements("code", "span")

	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
		policy: policy,
	}
}

type mathSegment struct {
	tex     string
	display bool
}

// Render turns src into sanitized HTML. Empty $$ $$ blocks are dropped;
// $...$ and $$...$$ outside code are emitted as \( \) and \[ \] spans for
// client-side typesetting.
func (r *Renderer) Render(src string) (template.HTML, error) {
	src = emptyDisplayMath.ReplaceAllString(src, "")

	protected, math := protectMath(src)

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(protected), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}

	out := r.policy.SanitizeBytes(buf.Bytes())
	restored := placeholder.ReplaceAllStringFunc(string(out), func(m string) string {
		i, err := strconv.Atoi(placeholder.FindStringSubmatch(m)[1])
		if err != nil || i >= len(math) {
			return m
		}
		seg := math[i]
		if seg.display {
			return `<span class="math display">\[` + html.EscapeString(seg.tex) + `\]</span>`
		}
		return `<span class="math inline">\(` + html.EscapeString(seg.tex) + `\)</span>`
	})

	return template.HTML(restored), nil
}

// protectMath swaps math outside code for placeholders Markdown leaves alone.
func protectMath(src string) (string, []mathSegment) {
	var math []mathSegment
	token := func(tex string, display bool) string {
		math = append(math, mathSegment{tex: strings.TrimSpace(tex), display: display})
		return fmt.Sprintf("KATAMATH%dX", len(math)-1)
	}

	replace := func(text string) string {
		text = displayMath.ReplaceAllStringFunc(text, func(m string) string {
			return token(displayMath.FindStringSubmatch(m)[1], true)
		})
		return inlineMath.ReplaceAllStringFunc(text, func(m string) string {
			return token(inlineMath.FindStringSubmatch(m)[1], false)
		})
	}

	var b strings.Builder
	last := 0
	for _, loc := range codeRegion.FindAllStringIndex(src, -1) {
		b.WriteString(replace(src[last:loc[0]]))
		b.WriteString(src[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(replace(src[last:]))

	return b.String(), math
}
