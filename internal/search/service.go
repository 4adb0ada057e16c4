// Package search runs a vertical's sources, merges what they return into
// typed records and wraps them in the response envelope.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/baxromumarov/searchhub/internal/apperr"
	"github.com/baxromumarov/searchhub/internal/cache"
	"github.com/baxromumarov/searchhub/internal/core"
	"github.com/baxromumarov/searchhub/internal/extract"
	"github.com/baxromumarov/searchhub/internal/normalize"
	"github.com/baxromumarov/searchhub/internal/observability"
	"github.com/baxromumarov/searchhub/internal/sources"
	"github.com/baxromumarov/searchhub/internal/store"
)

// Limits caps the merged results per vertical.
var Limits = map[string]int{
	sources.VerticalJobs:         50,
	sources.VerticalProducts:     40,
	sources.VerticalUniversities: 50,
	sources.VerticalScholarships: 40,
}

type SourceProvider interface {
	Sources(vertical string) []sources.Source
}

type HistoryLogger interface {
	LogSearch(ctx context.Context, e store.HistoryEntry) (store.HistoryEntry, error)
}

type Options struct {
	CacheTTL      time.Duration
	SourceTimeout time.Duration
	SearchTimeout time.Duration
	JobSimilarity float64
}

type Timing struct {
	ElapsedMS int64     `json:"elapsed_ms"`
	StartedAt time.Time `json:"started_at"`
}

// Response is the envelope every search endpoint answers with.
type Response struct {
	Success  bool          `json:"success"`
	Vertical string        `json:"vertical"`
	Query    sources.Query `json:"query"`
	Results  any           `json:"results"`
	Count    int           `json:"count"`
	Sources  []Outcome     `json:"sources"`
	Cached   bool          `json:"cached"`
	Timing   Timing        `json:"timing"`
	Error    string        `json:"error,omitempty"`
	Code     string        `json:"code,omitempty"`

	first json.RawMessage
}

type cachedResult struct {
	Results json.RawMessage `json:"results"`
	First   json.RawMessage `json:"first"`
	Count   int             `json:"count"`
	Sources []Outcome       `json:"sources"`
}

type Service struct {
	sources SourceProvider
	cache   cache.Cache
	history HistoryLogger
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
	shuffle func(n int, swap func(i, j int))
}

func NewService(provider SourceProvider, c cache.Cache, history HistoryLogger, opts Options, logger *slog.Logger) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = 12 * time.Second
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 20 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 15 * time.Minute
	}
	return &Service{
		sources: provider,
		cache:   c,
		history: history,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
		shuffle: rand.Shuffle,
	}
}

// Validate normalizes q for vertical and rejects requests missing their
// required fields.
func Validate(vertical string, q sources.Query) (sources.Query, error) {
	q.Text = normalize.Collapse(q.Text)
	q.Country = normalize.Collapse(q.Country)
	q.City = normalize.Collapse(q.City)
	q.Field = normalize.Collapse(q.Field)
	q.StudyLevel = normalize.Collapse(q.StudyLevel)
	if q.Limit < 0 {
		return q, apperr.InvalidInput("limit must not be negative")
	}

	switch vertical {
	case sources.VerticalJobs, sources.VerticalProducts:
		if q.Text == "" {
			return q, apperr.InvalidInput("query is required")
		}
	case sources.VerticalUniversities:
		if q.Country == "" {
			return q, apperr.InvalidInput("country is required")
		}
	case sources.VerticalScholarships:
		if q.Text == "" && q.Field == "" && q.Country == "" {
			return q, apperr.InvalidInput("one of query, field or country is required")
		}
		if q.StudyLevel != "" {
			level := normalize.StudyLevel(q.StudyLevel)
			if level == "" {
				return q, apperr.InvalidInput("unknown study level: " + q.StudyLevel)
			}
			q.StudyLevel = level
		}
	default:
		return q, apperr.NotFound("unknown vertical: "+vertical, nil)
	}
	return q, nil
}

func cacheKey(vertical string, q sources.Query) string {
	return cache.SearchKey(vertical, q.Text, q.Country, q.City, q.Field, q.StudyLevel, strconv.Itoa(q.Limit))
}

// Purge drops the cached response of one search so the next request
// hits the sources again. It returns the purged key.
func (s *Service) Purge(ctx context.Context, vertical string, q sources.Query) (string, error) {
	q, err := Validate(vertical, q)
	if err != nil {
		return "", err
	}
	key := cacheKey(vertical, q)
	if err := s.cache.Delete(ctx, key); err != nil {
		observability.IncError(observability.ErrorCache, "admin")
		return key, apperr.Unavailable("failed to purge cache entry", err)
	}
	return key, nil
}

// Search runs one vertical search. userID may be empty; when set the first
// result is logged to the user's history. A search without results returns
// the envelope together with a NO_RESULTS error.
func (s *Service) Search(ctx context.Context, vertical string, q sources.Query, userID string) (*Response, error) {
	started := s.now()
	q, err := Validate(vertical, q)
	if err != nil {
		return nil, err
	}
	observability.IncSearch(vertical)

	key := cacheKey(vertical, q)
	var hit cachedResult
	switch err := s.cache.Get(ctx, key, &hit); {
	case err == nil:
		observability.IncCacheHit()
		resp := &Response{
			Success:  true,
			Vertical: vertical,
			Query:    q,
			Results:  hit.Results,
			Count:    hit.Count,
			Sources:  hit.Sources,
			Cached:   true,
			first:    hit.First,
		}
		s.finish(ctx, resp, started, userID)
		return resp, nil
	case errors.Is(err, cache.ErrNotFound):
		observability.IncCacheMiss()
	default:
		observability.IncCacheMiss()
		observability.IncError(observability.ErrorCache, "search")
		s.logger.Warn("cache get failed", "key", key, "error", err)
	}

	sctx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()
	batches, outcomes := Aggregate(sctx, s.logger, s.sources.Sources(vertical), q, s.opts.SourceTimeout)

	results, count := s.merge(vertical, batches, q)
	resp := &Response{
		Success:  count > 0,
		Vertical: vertical,
		Query:    q,
		Results:  results,
		Count:    count,
		Sources:  outcomes,
	}
	if count == 0 {
		s.finish(ctx, resp, started, "")
		resp.Results = []any{}
		resp.Error = "no results found"
		resp.Code = string(apperr.CodeNoResults)
		return resp, apperr.NoResults("no results found for " + vertical)
	}

	raw, err := json.Marshal(results)
	if err == nil {
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) == nil && len(items) > 0 {
			resp.first = items[0]
		}
		entry := cachedResult{Results: raw, First: resp.first, Count: count, Sources: outcomes}
		if err := s.cache.Set(ctx, key, entry, s.opts.CacheTTL); err != nil {
			observability.IncError(observability.ErrorCache, "search")
			s.logger.Warn("cache set failed", "key", key, "error", err)
		}
	}

	s.finish(ctx, resp, started, userID)
	return resp, nil
}

func (s *Service) finish(ctx context.Context, resp *Response, started time.Time, userID string) {
	resp.Timing = Timing{StartedAt: started.UTC(), ElapsedMS: s.now().Sub(started).Milliseconds()}
	s.logger.Info("search completed",
		"vertical", resp.Vertical,
		"results", resp.Count,
		"cached", resp.Cached,
		"elapsed_ms", resp.Timing.ElapsedMS,
	)
	if userID == "" || s.history == nil || resp.Count == 0 {
		return
	}
	query, _ := json.Marshal(resp.Query)
	_, err := s.history.LogSearch(ctx, store.HistoryEntry{
		UserID:      userID,
		Vertical:    resp.Vertical,
		Query:       query,
		FirstResult: resp.first,
		ResultCount: resp.Count,
	})
	if err != nil {
		observability.IncError(observability.ErrorStore, "history")
		s.logger.Error("failed to log search history", "vertical", resp.Vertical, "error", err)
	}
}

// merge builds the vertical's records in source order, filters and
// dedups them and truncates to the vertical limit.
func (s *Service) merge(vertical string, batches [][]extract.Item, q sources.Query) (any, int) {
	limit := Limits[vertical]
	if q.Limit > 0 && q.Limit < limit {
		limit = q.Limit
	}
	switch vertical {
	case sources.VerticalJobs:
		jobs := collect(batches, q, buildJob, nil, newJobDeduper(s.opts.JobSimilarity))
		jobs = truncate(jobs, limit)
		return jobs, len(jobs)
	case sources.VerticalProducts:
		products := collect(batches, q, buildProduct, nil, newKeySet(func(p Product) []string { return []string{ProductKey(p)} }))
		s.shuffle(len(products), func(i, j int) { products[i], products[j] = products[j], products[i] })
		products = truncate(products, limit)
		return products, len(products)
	case sources.VerticalUniversities:
		unis := collect(batches, q, buildUniversity, keepUniversity, newKeySet(UniversityKeys))
		unis = truncate(unis, limit)
		return unis, len(unis)
	case sources.VerticalScholarships:
		schols := collect(batches, q, buildScholarship, keepScholarship, newKeySet(func(sc Scholarship) []string { return []string{ScholarshipKey(sc)} }))
		schols = truncate(schols, limit)
		return schols, len(schols)
	}
	return []any{}, 0
}

func collect[T any](batches [][]extract.Item, q sources.Query, build func(extract.Item, sources.Query) (T, bool), keep func(T, sources.Query) bool, dedup admitter[T]) []T {
	out := []T{}
	for _, batch := range batches {
		for _, it := range batch {
			v, ok := build(it, q)
			if !ok {
				continue
			}
			if keep != nil && !keep(v, q) {
				continue
			}
			if !dedup.admit(v) {
				continue
			}
			out = append(out, v)
		}
	}
	return out
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// keepUniversity drops universities dedicated to a different field than
// the one asked for. Universities without a detectable field stay.
func keepUniversity(u University, q sources.Query) bool {
	if q.Field == "" || u.Field == "" {
		return true
	}
	want := normalize.Field(q.Field)
	if want == "" {
		return true
	}
	return u.Field == want
}

// keepScholarship applies the study level, field and country of q.
// Scholarships that do not state a level or country are kept.
func keepScholarship(s Scholarship, q sources.Query) bool {
	if q.StudyLevel != "" && len(s.StudyLevels) > 0 && !containsString(s.StudyLevels, q.StudyLevel) {
		return false
	}
	if q.Field != "" && s.Field != "" {
		text := s.Title + " " + s.Description
		if !core.MatchesKeywords(text, normalize.FieldKeywords(q.Field)) {
			return false
		}
	}
	if q.Country != "" && s.Country != "" {
		if want := normalize.CountryCode(q.Country); want != "" && normalize.CountryCode(s.Country) != want {
			return false
		}
	}
	return true
}

func containsString(list []string, want string) bool {
	for _, v := range list {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
