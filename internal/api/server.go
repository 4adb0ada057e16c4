package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/baxromumarov/searchhub/internal/ai"
	"github.com/baxromumarov/searchhub/internal/apperr"
	"github.com/baxromumarov/searchhub/internal/auth"
	"github.com/baxromumarov/searchhub/internal/cache"
	"github.com/baxromumarov/searchhub/internal/search"
	"github.com/baxromumarov/searchhub/internal/sources"
	"github.com/baxromumarov/searchhub/internal/store"
)

type Searcher interface {
	Search(ctx context.Context, vertical string, q sources.Query, userID string) (*search.Response, error)
	Purge(ctx context.Context, vertical string, q sources.Query) (string, error)
}

type HistoryStore interface {
	ListHistory(ctx context.Context, userID, vertical string, limit, offset int) ([]store.HistoryEntry, error)
	TrackVisit(ctx context.Context, v store.Visit) (store.Visit, error)
	ListVisits(ctx context.Context, userID string, limit, offset int) ([]store.Visit, error)
	Stats(ctx context.Context) (store.Stats, error)
	Ping(ctx context.Context) error
}

type Recommender interface {
	Recommend(ctx context.Context, req ai.RecommendRequest) ([]ai.Recommendation, error)
}

type SourceCatalog interface {
	Describe() []sources.Descriptor
}

type Deps struct {
	Search      Searcher
	History     HistoryStore
	Recommender Recommender
	Sources     SourceCatalog
	Cache       cache.Cache
	Verifier    auth.TokenVerifier
	IsAdmin     func(email string) bool
	CORSOrigins []string
	Version     string
	Logger      *slog.Logger
}

type Server struct {
	router      *chi.Mux
	search      Searcher
	history     HistoryStore
	recommender Recommender
	sources     SourceCatalog
	cache       cache.Cache
	auth        *auth.Middleware
	version     string
	logger      *slog.Logger
}

func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := deps.Cache
	if c == nil {
		c = cache.Nop{}
	}
	s := &Server{
		router:      chi.NewRouter(),
		search:      deps.Search,
		history:     deps.History,
		recommender: deps.Recommender,
		sources:     deps.Sources,
		cache:       c,
		version:     deps.Version,
		logger:      logger,
	}
	s.auth = auth.NewMiddleware(deps.Verifier, deps.IsAdmin, s.respondError, logger)

	s.setupRoutes(deps.CORSOrigins)
	return s
}

func (s *Server) setupRoutes(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/search", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.auth.OptionalUser)
			r.Post("/jobs", s.handleSearch(sources.VerticalJobs))
			r.Post("/products", s.handleSearch(sources.VerticalProducts))
			r.Post("/universities", s.handleSearch(sources.VerticalUniversities))
			r.Post("/scholarships", s.handleSearch(sources.VerticalScholarships))
		})
		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireUser)
			r.Get("/jobs/job_history", s.handleHistory(sources.VerticalJobs))
			r.Get("/products/product_history", s.handleHistory(sources.VerticalProducts))
			r.Get("/universities/university_history", s.handleHistory(sources.VerticalUniversities))
			r.Get("/scholarships/scholarships_history", s.handleHistory(sources.VerticalScholarships))
			r.Post("/products/track-visit", s.handleTrackVisit)
			r.Get("/products/visits", s.handleListVisits)
		})
	})

	s.router.Post("/api/recommendations", s.handleRecommend)

	s.router.Route("/api/admin", func(r chi.Router) {
		r.Use(s.auth.RequireUser)
		r.Use(s.auth.RequireAdmin)
		r.Get("/stats", s.handleAdminStats)
		r.Get("/sources", s.handleAdminSources)
		r.Delete("/cache/{vertical}", s.handleAdminPurge)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, r, apperr.NotFound("route not found", nil))
	})
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	database := "ok"
	if err := s.history.Ping(ctx); err != nil {
		s.logger.Warn("health: database ping failed", "error", err)
		database = "unavailable"
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, map[string]any{
		"success":  status == http.StatusOK,
		"version":  s.version,
		"database": database,
		"cache":    s.cache.Health(ctx),
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		response = []byte(`{"success":false,"error":"failed to encode response","code":"INTERNAL"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.As(err)
	status := appErr.Code.Status()
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"code", string(appErr.Code),
			"error", err,
			"stack", string(appErr.StackTrace()),
		)
	}
	respondJSON(w, status, errorBody{Error: appErr.Message, Code: string(appErr.Code)})
}
