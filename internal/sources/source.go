// Package sources holds the external sites each vertical searches.
package sources

import (
	"context"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/baxromumarov/searchhub/internal/extract"
	"github.com/baxromumarov/searchhub/internal/normalize"
)

const (
	VerticalJobs         = "jobs"
	VerticalProducts     = "products"
	VerticalUniversities = "universities"
	VerticalScholarships = "scholarships"
)

// Verticals lists every vertical in display order.
var Verticals = []string{VerticalJobs, VerticalProducts, VerticalUniversities, VerticalScholarships}

func IsVertical(v string) bool {
	for _, known := range Verticals {
		if v == known {
			return true
		}
	}
	return false
}

// ErrSkipped means the source cannot answer this query at all, e.g. it
// needs a country the query does not name. No request was made.
var ErrSkipped = errors.New("source skipped for query")

// Query is what a vertical search asks each source. Its methods are also
// available to schema URL templates.
type Query struct {
	Text       string `json:"query,omitempty"`
	Country    string `json:"country,omitempty"`
	City       string `json:"city,omitempty"`
	Field      string `json:"field,omitempty"`
	StudyLevel string `json:"studyLevel,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// Location joins city and country, e.g. "Berlin, Germany".
func (q Query) Location() string {
	var parts []string
	if c := strings.TrimSpace(q.City); c != "" {
		parts = append(parts, c)
	}
	if c := strings.TrimSpace(q.Country); c != "" {
		parts = append(parts, c)
	}
	return strings.Join(parts, ", ")
}

func (q Query) CountryCode() string {
	return normalize.CountryCode(q.Country)
}

// Keywords is the free-text part of the query, falling back to the field
// of study.
func (q Query) Keywords() string {
	if t := strings.TrimSpace(q.Text); t != "" {
		return t
	}
	return strings.TrimSpace(q.Field)
}

// Value returns the named query part; names match schema "requires" keys.
func (q Query) Value(name string) string {
	switch name {
	case "text", "query":
		return strings.TrimSpace(q.Text)
	case "country":
		return strings.TrimSpace(q.Country)
	case "country_code":
		return q.CountryCode()
	case "city":
		return strings.TrimSpace(q.City)
	case "field":
		return strings.TrimSpace(q.Field)
	case "keywords":
		return q.Keywords()
	case "study_level":
		return strings.TrimSpace(q.StudyLevel)
	}
	return ""
}

type Source interface {
	Name() string
	Vertical() string
	Search(ctx context.Context, q Query) ([]extract.Item, error)
}

// DocumentFetcher is satisfied by *httpx.CollyFetcher.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, rawURL string, headers map[string]string) (*goquery.Document, error)
}

// JSONFetcher is satisfied by *httpx.PoliteClient.
type JSONFetcher interface {
	GetJSON(ctx context.Context, rawURL string, headers map[string]string, dst any) error
}

func limitItems(items []extract.Item, limit int) []extract.Item {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
