package search

import (
	"strconv"
	"strings"

	"github.com/baxromumarov/searchhub/internal/extract"
	"github.com/baxromumarov/searchhub/internal/normalize"
	"github.com/baxromumarov/searchhub/internal/sources"
	"github.com/baxromumarov/searchhub/internal/urlutil"
)

type Job struct {
	Title       string `json:"title"`
	Company     string `json:"company,omitempty"`
	Location    string `json:"location,omitempty"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	DatePosted  string `json:"date_posted,omitempty"`
	Salary      string `json:"salary,omitempty"`
	Description string `json:"description,omitempty"`
	Remote      bool   `json:"remote"`
}

type Product struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Source    string  `json:"source"`
	Price     float64 `json:"price,omitempty"`
	Currency  string  `json:"currency,omitempty"`
	PriceText string  `json:"price_text,omitempty"`
	Rating    float64 `json:"rating,omitempty"`
	Reviews   int     `json:"reviews,omitempty"`
	Image     string  `json:"image,omitempty"`
	Brand     string  `json:"brand,omitempty"`
	Shipping  string  `json:"shipping,omitempty"`
}

type University struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	Country     string `json:"country,omitempty"`
	City        string `json:"city,omitempty"`
	Field       string `json:"field,omitempty"`
	Rank        int    `json:"rank,omitempty"`
	Description string `json:"description,omitempty"`
}

type Scholarship struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Source      string   `json:"source"`
	Provider    string   `json:"provider,omitempty"`
	Country     string   `json:"country,omitempty"`
	Field       string   `json:"field,omitempty"`
	StudyLevels []string `json:"study_levels,omitempty"`
	Deadline    string   `json:"deadline,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Placeholder cards some listing pages render before real results.
var placeholderTitles = map[string]struct{}{
	"shop on ebay": {},
	"results matching fewer words": {},
}

// buildJob drops listings without a title or whose URL is not a page,
// such as a logo image picked up by a loose selector.
func buildJob(it extract.Item, _ sources.Query) (Job, bool) {
	j := Job{
		Title:       normalize.Title(it.Get("title")),
		Company:     normalize.Collapse(it.Get("company")),
		Location:    normalize.Collapse(it.Get("location")),
		URL:         strings.TrimSpace(it.Get("url")),
		Source:      it.Source,
		DatePosted:  it.Get("date_posted"),
		Salary:      it.Get("salary"),
		Description: it.Get("description"),
	}
	j.Remote = it.Get("remote") == "true" || strings.Contains(strings.ToLower(j.Location), "remote")
	return j, j.Title != "" && urlutil.IsCrawlable(j.URL)
}

func buildProduct(it extract.Item, _ sources.Query) (Product, bool) {
	p := Product{
		Title:     normalize.Title(it.Get("title")),
		URL:       strings.TrimSpace(it.Get("url")),
		Source:    it.Source,
		PriceText: it.Get("price"),
		Image:     it.Get("image"),
		Brand:     it.Get("brand"),
		Shipping:  it.Get("shipping"),
	}
	if _, skip := placeholderTitles[strings.ToLower(p.Title)]; skip {
		return p, false
	}
	if amount, currency, ok := normalize.Price(p.PriceText); ok {
		p.Price = amount
		p.Currency = currency
	}
	if r, ok := normalize.Rating(it.Get("rating")); ok {
		p.Rating = r
	}
	p.Reviews = parseCount(it.Get("reviews"))
	return p, p.Title != "" && urlutil.IsCrawlable(p.URL)
}

func buildUniversity(it extract.Item, q sources.Query) (University, bool) {
	u := University{
		Name:        normalize.Collapse(it.Get("name")),
		URL:         strings.TrimSpace(it.Get("url")),
		Source:      it.Source,
		City:        normalize.Collapse(it.Get("city")),
		Description: it.Get("description"),
		Rank:        parseCount(it.Get("rank")),
	}
	u.Country = normalize.CanonicalCountry(it.Get("country"))
	if u.Country == "" {
		u.Country = normalize.CanonicalCountry(q.Country)
	}
	u.Field = normalize.Field(u.Name + " " + u.Description)
	return u, u.Name != "" && u.URL != ""
}

func buildScholarship(it extract.Item, _ sources.Query) (Scholarship, bool) {
	s := Scholarship{
		Title:       normalize.Title(it.Get("title")),
		URL:         strings.TrimSpace(it.Get("url")),
		Source:      it.Source,
		Provider:    normalize.Collapse(it.Get("provider")),
		Deadline:    normalize.Collapse(it.Get("deadline")),
		Description: it.Get("description"),
	}
	text := s.Title + " " + s.Description
	if c := it.Get("country"); c != "" {
		s.Country = normalize.CanonicalCountry(c)
	} else {
		s.Country = normalize.Country(text)
	}
	s.Field = normalize.Field(text)
	s.StudyLevels = normalize.StudyLevels(text)
	return s, s.Title != "" && urlutil.IsCrawlable(s.URL)
}

// parseCount reads the digits of "(1,234)" or "#12" style counters.
func parseCount(raw string) int {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}
