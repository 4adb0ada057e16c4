// Package extract turns listing pages into flat items using declarative
// per-source schemas.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/baxromumarov/searchhub/internal/content"
)

// Item is one listing as read from a page, before vertical-specific
// normalization.
type Item struct {
	Source string            `json:"source"`
	Fields map[string]string `json:"fields"`
}

func (i Item) Get(name string) string {
	return i.Fields[name]
}

// Apply reads every listing of doc according to s. Items missing a
// required field are dropped; at most s.Limit items are returned when a
// limit is set.
func Apply(doc *goquery.Document, s *Schema) []Item {
	if doc == nil || s == nil {
		return nil
	}
	switch s.Mode {
	case ModeJSONLD:
		return applyJSONLD(doc, s)
	default:
		return applyHTML(doc, s)
	}
}

func applyHTML(doc *goquery.Document, s *Schema) []Item {
	var items []Item
	doc.Find(s.Items).EachWithBreak(func(_ int, node *goquery.Selection) bool {
		if s.Limit > 0 && len(items) >= s.Limit {
			return false
		}
		fields := make(map[string]string, len(s.Fields))
		for name, f := range s.Fields {
			value := f.Const
			if value == "" {
				value = readNode(node, f)
			}
			value = runTransforms(value, f.Transforms, s)
			if value != "" {
				fields[name] = value
			}
		}
		if !hasRequired(fields, s.Fields) {
			return true
		}
		items = append(items, Item{Source: s.Name, Fields: fields})
		return true
	})
	return items
}

func readNode(node *goquery.Selection, f Field) string {
	sel := node
	if f.Selector != "" {
		sel = node.Find(f.Selector).First()
	}
	if sel.Length() == 0 {
		return ""
	}
	if f.Attr != "" {
		v, _ := sel.Attr(f.Attr)
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(sel.Text())
}

func applyJSONLD(doc *goquery.Document, s *Schema) []Item {
	var items []Item
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, node *goquery.Selection) bool {
		for _, obj := range content.Objects(node.Text(), s.JSONLDType) {
			if s.Limit > 0 && len(items) >= s.Limit {
				return false
			}
			flat := content.Flatten(obj)
			fields := make(map[string]string, len(flat))
			for k, v := range flat {
				fields[k] = v
			}
			for name, f := range s.Fields {
				value := f.Const
				if value == "" {
					key := f.Selector
					if key == "" {
						key = name
					}
					value = flat[key]
				}
				value = runTransforms(value, f.Transforms, s)
				if value == "" {
					delete(fields, name)
					continue
				}
				fields[name] = value
			}
			if !hasRequired(fields, s.Fields) {
				continue
			}
			items = append(items, Item{Source: s.Name, Fields: fields})
		}
		return true
	})
	return items
}

func hasRequired(values map[string]string, fields map[string]Field) bool {
	for name, f := range fields {
		if f.Required && values[name] == "" {
			return false
		}
	}
	return true
}
