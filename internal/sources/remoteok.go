package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/baxromumarov/searchhub/internal/extract"
	"github.com/baxromumarov/searchhub/internal/normalize"
)

const remoteOKAPI = "https://remoteok.com/api"

// RemoteOK API returns a JSON array; the first element is metadata.
type remoteOKJob struct {
	Slug        string   `json:"slug"`
	Company     string   `json:"company"`
	Position    string   `json:"position"`
	URL         string   `json:"url"`
	Tags        []string `json:"tags"`
	Date        string   `json:"date"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	SalaryMin   int      `json:"salary_min"`
	SalaryMax   int      `json:"salary_max"`
}

// RemoteOKSource searches the public RemoteOK job feed.
type RemoteOKSource struct {
	client JSONFetcher
	api    string
}

func NewRemoteOKSource(client JSONFetcher, api string) *RemoteOKSource {
	if api == "" {
		api = remoteOKAPI
	}
	return &RemoteOKSource{client: client, api: api}
}

func (r *RemoteOKSource) Name() string     { return "remoteok" }
func (r *RemoteOKSource) Vertical() string { return VerticalJobs }

func (r *RemoteOKSource) Search(ctx context.Context, q Query) ([]extract.Item, error) {
	terms := strings.Fields(strings.ToLower(q.Text))
	if len(terms) == 0 {
		return nil, fmt.Errorf("remoteok needs a query: %w", ErrSkipped)
	}

	target := r.api
	if tag := remoteOKTag(terms); tag != "" {
		target += "?tag=" + url.QueryEscape(tag)
	}

	var data []remoteOKJob
	if err := r.client.GetJSON(ctx, target, nil, &data); err != nil {
		return nil, fmt.Errorf("remoteok fetch failed: %w", err)
	}

	var items []extract.Item
	for _, j := range data {
		// Skip metadata element
		if j.Slug == "" || j.URL == "" {
			continue
		}
		if !matchesTerms(j, terms) {
			continue
		}
		if q.Country != "" && !locationAllows(j.Location, q.Country) {
			continue
		}
		fields := map[string]string{
			"title":       normalize.Collapse(j.Position),
			"company":     normalize.Collapse(j.Company),
			"url":         j.URL,
			"location":    remoteLocation(j.Location),
			"description": extract.HTMLText(j.Description),
			"tags":        strings.Join(j.Tags, ", "),
			"remote":      "true",
		}
		if posted := parseRemoteOKDate(j.Date); !posted.IsZero() {
			fields["date_posted"] = posted.UTC().Format(time.RFC3339)
		}
		if s := salaryRange(j.SalaryMin, j.SalaryMax); s != "" {
			fields["salary"] = s
		}
		items = append(items, extract.Item{Source: r.Name(), Fields: fields})
	}
	return limitItems(items, q.Limit), nil
}

// remoteOKTag picks a single-word query as the API tag filter.
func remoteOKTag(terms []string) string {
	if len(terms) == 1 {
		return terms[0]
	}
	return ""
}

func matchesTerms(j remoteOKJob, terms []string) bool {
	haystack := strings.ToLower(j.Position + " " + strings.Join(j.Tags, " "))
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

// locationAllows keeps worldwide postings and postings naming the wanted
// country.
func locationAllows(location, country string) bool {
	location = strings.TrimSpace(location)
	if location == "" {
		return true
	}
	lower := strings.ToLower(location)
	if strings.Contains(lower, "worldwide") || strings.Contains(lower, "anywhere") {
		return true
	}
	want := normalize.CountryCode(country)
	if want == "" {
		return true
	}
	return normalize.CountryCode(normalize.Country(location)) == want
}

func remoteLocation(location string) string {
	if strings.TrimSpace(location) == "" {
		return "Remote"
	}
	return normalize.Collapse(location)
}

func salaryRange(lo, hi int) string {
	switch {
	case lo > 0 && hi > lo:
		return "$" + strconv.Itoa(lo) + " - $" + strconv.Itoa(hi)
	case lo > 0:
		return "$" + strconv.Itoa(lo)
	case hi > 0:
		return "$" + strconv.Itoa(hi)
	}
	return ""
}

func parseRemoteOKDate(val string) time.Time {
	if val == "" {
		return time.Time{}
	}
	// Example: "2023-12-20T04:02:19+00:00"
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}
	}
	return t
}
