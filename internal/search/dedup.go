package search

import (
	"github.com/antzucaro/matchr"

	"github.com/baxromumarov/searchhub/internal/normalize"
	"github.com/baxromumarov/searchhub/internal/urlutil"
)

// DefaultJobSimilarity is the Jaro-Winkler score above which two postings
// of the same company count as one.
const DefaultJobSimilarity = 0.96

type admitter[T any] interface {
	admit(v T) bool
}

// keySet admits a value unless any of its keys was seen before.
type keySet[T any] struct {
	keys func(T) []string
	seen map[string]struct{}
}

func newKeySet[T any](keys func(T) []string) *keySet[T] {
	return &keySet[T]{keys: keys, seen: map[string]struct{}{}}
}

func (k *keySet[T]) admit(v T) bool {
	keys := k.keys(v)
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, dup := k.seen[key]; dup {
			return false
		}
	}
	for _, key := range keys {
		if key != "" {
			k.seen[key] = struct{}{}
		}
	}
	return true
}

// jobDeduper matches on the exact title+company key, then on title
// similarity within the same company.
type jobDeduper struct {
	threshold float64
	exact     map[string]struct{}
	byCompany map[string][]string
}

func newJobDeduper(threshold float64) *jobDeduper {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultJobSimilarity
	}
	return &jobDeduper{
		threshold: threshold,
		exact:     map[string]struct{}{},
		byCompany: map[string][]string{},
	}
}

func (d *jobDeduper) admit(j Job) bool {
	key := JobKey(j)
	if _, dup := d.exact[key]; dup {
		return false
	}
	company := normalize.Key(j.Company)
	title := normalize.Key(j.Title)
	if company != "" {
		for _, seen := range d.byCompany[company] {
			if matchr.JaroWinkler(seen, title, false) >= d.threshold {
				return false
			}
		}
		d.byCompany[company] = append(d.byCompany[company], title)
	}
	d.exact[key] = struct{}{}
	return true
}

func JobKey(j Job) string {
	return normalize.Key(j.Title, j.Company)
}

func ProductKey(p Product) string {
	return urlutil.Key(p.URL)
}

func ScholarshipKey(s Scholarship) string {
	return urlutil.Key(s.URL)
}

// UniversityKeys are the URL key and the name+country key; either one
// matching makes two universities the same.
func UniversityKeys(u University) []string {
	return []string{urlutil.Key(u.URL), normalize.Key(u.Name, u.Country)}
}
