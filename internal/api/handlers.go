package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/baxromumarov/searchhub/internal/ai"
	"github.com/baxromumarov/searchhub/internal/apperr"
	"github.com/baxromumarov/searchhub/internal/auth"
	"github.com/baxromumarov/searchhub/internal/observability"
	"github.com/baxromumarov/searchhub/internal/sources"
	"github.com/baxromumarov/searchhub/internal/store"
)

const (
	maxBodyBytes     = 1 << 20
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// decodeBody reads a JSON request body into dst. An empty body leaves dst
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.InvalidInput("invalid request body")
	}
	return nil
}

func (s *Server) handleSearch(vertical string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q sources.Query
		if err := decodeBody(w, r, &q); err != nil {
			s.respondError(w, r, err)
			return
		}

		var userID string
		if user, ok := auth.UserFromContext(r.Context()); ok {
			userID = user.ID
		}

		resp, err := s.search.Search(r.Context(), vertical, q, userID)
		if err != nil {
			// The envelope still carries the per-source outcomes.
			if resp != nil && apperr.Is(err, apperr.CodeNoResults) {
				respondJSON(w, http.StatusNotFound, resp)
				return
			}
			s.respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleHistory(vertical string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := auth.UserFromContext(r.Context())
		limit, offset := parsePagination(r, defaultPageLimit)

		entries, err := s.history.ListHistory(r.Context(), user.ID, vertical, limit, offset)
		if err != nil {
			observability.IncError(observability.ErrorStore, "history")
			s.respondError(w, r, apperr.Internal("failed to fetch history", err))
			return
		}
		if entries == nil {
			entries = []store.HistoryEntry{}
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"vertical": vertical,
			"items":    entries,
			"limit":    limit,
			"offset":   offset,
		})
	}
}

type TrackVisitRequest struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Source string `json:"source"`
}

func (s *Server) handleTrackVisit(w http.ResponseWriter, r *http.Request) {
	var req TrackVisitRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		s.respondError(w, r, apperr.InvalidInput("url is required"))
		return
	}
	if u, err := url.Parse(req.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		s.respondError(w, r, apperr.InvalidInput("url must be an absolute http(s) URL"))
		return
	}

	user, _ := auth.UserFromContext(r.Context())
	visit, err := s.history.TrackVisit(r.Context(), store.Visit{
		UserID: user.ID,
		URL:    req.URL,
		Title:  strings.TrimSpace(req.Title),
		Source: strings.TrimSpace(req.Source),
	})
	if err != nil {
		observability.IncError(observability.ErrorStore, "visits")
		s.respondError(w, r, apperr.Internal("failed to track visit", err))
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"success": true, "visit": visit})
}

func (s *Server) handleListVisits(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	limit, offset := parsePagination(r, defaultPageLimit)

	visits, err := s.history.ListVisits(r.Context(), user.ID, limit, offset)
	if err != nil {
		observability.IncError(observability.ErrorStore, "visits")
		s.respondError(w, r, apperr.Internal("failed to fetch visits", err))
		return
	}
	if visits == nil {
		visits = []store.Visit{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"items":   visits,
		"limit":   limit,
		"offset":  offset,
	})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req ai.RecommendRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	req.Vertical = strings.ToLower(strings.TrimSpace(req.Vertical))

	recs, err := s.recommender.Recommend(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"vertical":        req.Vertical,
		"recommendations": recs,
	})
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.history.Stats(r.Context())
	if err != nil {
		observability.IncError(observability.ErrorStore, "admin")
		s.respondError(w, r, apperr.Unavailable("failed to read history stats", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"runtime": observability.Snapshot(),
		"history": stats,
		"cache":   s.cache.Health(r.Context()),
	})
}

func (s *Server) handleAdminSources(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"sources": s.sources.Describe(),
	})
}

// handleAdminPurge drops the cached response of the search described by
// the query parameters, e.g. DELETE /api/admin/cache/jobs?query=golang.
func (s *Server) handleAdminPurge(w http.ResponseWriter, r *http.Request) {
	vertical := chi.URLParam(r, "vertical")
	params := r.URL.Query()
	q := sources.Query{
		Text:       params.Get("query"),
		Country:    params.Get("country"),
		City:       params.Get("city"),
		Field:      params.Get("field"),
		StudyLevel: params.Get("studyLevel"),
	}
	if v := params.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, r, apperr.InvalidInput("limit must be a number"))
			return
		}
		q.Limit = limit
	}

	key, err := s.search.Purge(r.Context(), vertical, q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.logger.Info("search cache entry purged", "vertical", vertical, "key", key)
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "key": key})
}

func parsePagination(r *http.Request, defaultLimit int) (int, int) {
	q := r.URL.Query()
	limit := defaultLimit
	offset := 0

	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	if v := q.Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
