package extract

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/baxromumarov/searchhub/internal/normalize"
	"github.com/baxromumarov/searchhub/internal/urlutil"
)

type transformFunc func(value string, s *Schema) string

var transforms = map[string]transformFunc{
	"trim":     func(v string, _ *Schema) string { return strings.TrimSpace(v) },
	"collapse": func(v string, _ *Schema) string { return normalize.Collapse(v) },
	"lower":    func(v string, _ *Schema) string { return strings.ToLower(v) },
	"title": func(v string, _ *Schema) string {
		return cases.Title(language.Und).String(strings.ToLower(v))
	},
	"text":       func(v string, _ *Schema) string { return HTMLText(v) },
	"first_line": firstLine,
	"absurl": func(v string, s *Schema) string {
		return urlutil.Resolve(s.Base(), v)
	},
	"strip_query": func(v string, _ *Schema) string {
		if i := strings.IndexByte(v, '?'); i >= 0 {
			return v[:i]
		}
		return v
	},
}

func runTransforms(value string, names []string, s *Schema) string {
	for _, name := range names {
		if fn, ok := transforms[name]; ok {
			value = fn(value, s)
		}
	}
	return value
}

func firstLine(v string, _ *Schema) string {
	for _, line := range strings.Split(v, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// HTMLText strips markup from an HTML fragment and collapses whitespace.
func HTMLText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return normalize.Collapse(fragment)
	}
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return normalize.Collapse(fragment)
	}
	return normalize.Collapse(ExtractText(doc))
}

// ExtractText concatenates the text nodes under n, skipping script and
// style elements.
func ExtractText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return ""
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(ExtractText(c))
		if c.Type == html.ElementNode && isBlock(c.Data) {
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "br", "li", "ul", "ol", "h1", "h2", "h3", "h4", "tr", "td":
		return true
	}
	return false
}
