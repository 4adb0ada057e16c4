package core

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/baxromumarov/searchhub/internal/ai"
	"github.com/baxromumarov/searchhub/internal/apperr"
	"github.com/baxromumarov/searchhub/internal/cache"
	"github.com/baxromumarov/searchhub/internal/observability"
	"github.com/baxromumarov/searchhub/internal/sources"
)

const recommendationTTL = 6 * time.Hour

type RecommenderService struct {
	aiClient ai.Client
	cache    cache.Cache
	logger   *slog.Logger
}

func NewRecommenderService(aiClient ai.Client, c cache.Cache, logger *slog.Logger) *RecommenderService {
	if c == nil {
		c = cache.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecommenderService{aiClient: aiClient, cache: c, logger: logger}
}

func (s *RecommenderService) Recommend(ctx context.Context, req ai.RecommendRequest) ([]ai.Recommendation, error) {
	if !sources.IsVertical(req.Vertical) {
		return nil, apperr.InvalidInput("unknown vertical: " + req.Vertical)
	}
	if req.Query == "" && req.Field == "" && req.Country == "" {
		return nil, apperr.InvalidInput("one of query, field or country is required")
	}

	key := cache.SearchKey("recommend:"+req.Vertical, req.Query, req.Field, req.Country, req.StudyLevel)
	var cached []ai.Recommendation
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrNotFound) {
		s.logger.Warn("recommendation cache get failed", "error", err)
	}

	observability.IncAICall("recommender")
	recs, err := s.aiClient.Recommend(ctx, req)
	if err != nil {
		observability.IncError(observability.ErrorAI, "recommender")
		return nil, apperr.Unavailable("recommendations are unavailable", err)
	}
	if recs == nil {
		recs = []ai.Recommendation{}
	}

	if err := s.cache.Set(ctx, key, recs, recommendationTTL); err != nil {
		s.logger.Warn("recommendation cache set failed", "error", err)
	}
	return recs, nil
}
