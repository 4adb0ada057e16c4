// Package content decodes schema.org JSON-LD blocks embedded in listing pages.
package content

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Objects returns every JSON-LD object in raw whose @type is one of types,
// searching arrays, @graph containers and ItemList elements.
func Objects(raw string, types ...string) []map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	var out []map[string]any
	collect(payload, types, &out)
	return out
}

func collect(payload any, types []string, out *[]map[string]any) {
	switch t := payload.(type) {
	case map[string]any:
		if hasType(t["@type"], types) {
			*out = append(*out, t)
		}
		if graph, ok := t["@graph"].([]any); ok {
			for _, item := range graph {
				collect(item, types, out)
			}
		}
		if elements, ok := t["itemListElement"].([]any); ok {
			for _, el := range elements {
				if m, ok := el.(map[string]any); ok {
					if inner, ok := m["item"]; ok {
						collect(inner, types, out)
						continue
					}
				}
				collect(el, types, out)
			}
		}
	case []any:
		for _, item := range t {
			collect(item, types, out)
		}
	}
}

func hasType(t any, types []string) bool {
	switch v := t.(type) {
	case string:
		return matchesType(v, types)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && matchesType(s, types) {
				return true
			}
		}
	}
	return false
}

func matchesType(v string, types []string) bool {
	v = strings.TrimPrefix(v, "http://schema.org/")
	v = strings.TrimPrefix(v, "https://schema.org/")
	for _, want := range types {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

// Flatten maps the fields listing pages commonly carry onto flat string keys:
// title, url, description, company, location, country, date_posted, price,
// currency, rating, image.
func Flatten(obj map[string]any) map[string]string {
	out := map[string]string{}
	set := func(key, value string) {
		if value != "" {
			out[key] = value
		}
	}

	title := StringField(obj["title"])
	if title == "" {
		title = StringField(obj["name"])
	}
	set("title", title)
	set("url", StringField(obj["url"]))
	set("description", StringField(obj["description"]))
	set("company", orgName(obj["hiringOrganization"]))
	if out["company"] == "" {
		set("company", orgName(obj["brand"]))
	}
	set("location", Location(obj["jobLocation"]))
	if out["location"] == "" {
		set("location", Location(obj["address"]))
	}
	set("country", country(obj["jobLocation"]))
	if out["country"] == "" {
		set("country", country(obj["address"]))
	}
	set("date_posted", StringField(obj["datePosted"]))
	set("image", imageField(obj["image"]))

	if price, currency := offer(obj["offers"]); price != "" {
		set("price", price)
		set("currency", currency)
	}
	if rating, ok := obj["aggregateRating"].(map[string]any); ok {
		set("rating", StringField(rating["ratingValue"]))
	}
	return out
}

// StringField reads a JSON-LD scalar, which may be a string, a number or an
// {"@value": ...} wrapper.
func StringField(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		if val, ok := t["@value"]; ok {
			return StringField(val)
		}
	}
	return ""
}

func orgName(v any) string {
	if name := StringField(v); name != "" {
		return name
	}
	if org, ok := v.(map[string]any); ok {
		return StringField(org["name"])
	}
	return ""
}

// Location renders a Place/PostalAddress (or a list of them) as
// "locality, region, country".
func Location(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		for _, item := range t {
			if loc := Location(item); loc != "" {
				return loc
			}
		}
	case map[string]any:
		if addr, ok := t["address"]; ok {
			if loc := Location(addr); loc != "" {
				return loc
			}
		}
		if loc := joinParts(
			StringField(t["addressLocality"]),
			StringField(t["addressRegion"]),
			country(t),
		); loc != "" {
			return loc
		}
		return StringField(t["name"])
	}
	return ""
}

func country(v any) string {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if c := country(item); c != "" {
				return c
			}
		}
	case map[string]any:
		if addr, ok := t["address"]; ok {
			return country(addr)
		}
		switch c := t["addressCountry"].(type) {
		case map[string]any:
			return StringField(c["name"])
		default:
			return StringField(c)
		}
	}
	return ""
}

func offer(v any) (string, string) {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if price, currency := offer(item); price != "" {
				return price, currency
			}
		}
	case map[string]any:
		price := StringField(t["price"])
		if price == "" {
			price = StringField(t["lowPrice"])
		}
		return price, StringField(t["priceCurrency"])
	}
	return "", ""
}

func imageField(v any) string {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if img := imageField(item); img != "" {
				return img
			}
		}
	case map[string]any:
		return StringField(t["url"])
	}
	return StringField(v)
}

func joinParts(parts ...string) string {
	var out []string
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, strings.TrimSpace(p))
	}
	return strings.Join(out, ", ")
}
