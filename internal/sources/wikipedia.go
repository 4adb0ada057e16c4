package sources

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/baxromumarov/searchhub/internal/extract"
	"github.com/baxromumarov/searchhub/internal/normalize"
)

const wikipediaAPI = "https://en.wikipedia.org/w/api.php"

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			PageID  int    `json:"pageid"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

var institutionTitle = regexp.MustCompile(`(?i)(universit|universidad|college|institut|polytechnic|academy|school of)`)

// WikipediaSource finds universities through the MediaWiki search API.
type WikipediaSource struct {
	client JSONFetcher
	api    string
}

func NewWikipediaSource(client JSONFetcher, api string) *WikipediaSource {
	if api == "" {
		api = wikipediaAPI
	}
	return &WikipediaSource{client: client, api: api}
}

func (w *WikipediaSource) Name() string     { return "wikipedia" }
func (w *WikipediaSource) Vertical() string { return VerticalUniversities }

func (w *WikipediaSource) Search(ctx context.Context, q Query) ([]extract.Item, error) {
	country := normalize.CanonicalCountry(q.Country)
	if country == "" {
		return nil, fmt.Errorf("wikipedia needs a country: %w", ErrSkipped)
	}

	terms := []string{"university"}
	if f := strings.TrimSpace(q.Field); f != "" {
		terms = append(terms, f)
	}
	if c := strings.TrimSpace(q.City); c != "" {
		terms = append(terms, c)
	}
	terms = append(terms, country)

	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("format", "json")
	params.Set("srlimit", "50")
	params.Set("srsearch", strings.Join(terms, " "))

	var resp wikiSearchResponse
	if err := w.client.GetJSON(ctx, w.api+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("wikipedia search failed: %w", err)
	}

	var items []extract.Item
	for _, hit := range resp.Query.Search {
		title := strings.TrimSpace(hit.Title)
		if !isInstitution(title) {
			continue
		}
		description := extract.HTMLText(hit.Snippet)
		fields := map[string]string{
			"name":        title,
			"url":         "https://en.wikipedia.org/wiki/" + url.PathEscape(strings.ReplaceAll(title, " ", "_")),
			"description": description,
			"country":     country,
		}
		if city := strings.TrimSpace(q.City); city != "" && mentions(title+" "+description, city) {
			fields["city"] = city
		}
		items = append(items, extract.Item{Source: w.Name(), Fields: fields})
	}
	return limitItems(items, q.Limit), nil
}

// mentions reports whether text names city, ignoring case.
func mentions(text, city string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(city))
}

func isInstitution(title string) bool {
	if title == "" || strings.HasPrefix(strings.ToLower(title), "list of") {
		return false
	}
	return institutionTitle.MatchString(title)
}
