package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/searchhub/internal/ai"
	"github.com/baxromumarov/searchhub/internal/apperr"
	"github.com/baxromumarov/searchhub/internal/cache"
)

type countingAI struct {
	calls atomic.Int32
	err   error
}

func (c *countingAI) Recommend(ctx context.Context, req ai.RecommendRequest) ([]ai.Recommendation, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []ai.Recommendation{{Title: "t", SearchQuery: req.Query + " remote"}}, nil
}

func TestRecommenderCachesResults(t *testing.T) {
	client := &countingAI{}
	svc := NewRecommenderService(client, cache.NewMemory(), nil)
	req := ai.RecommendRequest{Vertical: "jobs", Query: "golang"}

	recs, err := svc.Recommend(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "golang remote", recs[0].SearchQuery)

	_, err = svc.Recommend(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(1), client.calls.Load())
}

func TestRecommenderErrors(t *testing.T) {
	svc := NewRecommenderService(&countingAI{err: errors.New("quota")}, nil, nil)

	_, err := svc.Recommend(context.Background(), ai.RecommendRequest{Vertical: "cars", Query: "x"})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))

	_, err = svc.Recommend(context.Background(), ai.RecommendRequest{Vertical: "jobs"})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))

	_, err = svc.Recommend(context.Background(), ai.RecommendRequest{Vertical: "jobs", Query: "go"})
	assert.True(t, apperr.Is(err, apperr.CodeUnavailable))
}

type fakePruner struct {
	got time.Duration
	n   int64
	err error
}

func (f *fakePruner) DeleteOldHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.got = olderThan
	return f.n, f.err
}

func TestRetentionRunOnce(t *testing.T) {
	p := &fakePruner{n: 4}
	svc := NewRetentionService(p, 90*24*time.Hour, nil)
	n, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, 90*24*time.Hour, p.got)

	disabled := NewRetentionService(p, 0, nil)
	n, err = disabled.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	failing := NewRetentionService(&fakePruner{err: errors.New("db down")}, time.Hour, nil)
	_, err = failing.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestMatchesKeywords(t *testing.T) {
	assert.True(t, MatchesKeywords("PhD in Machine Learning", []string{"physics", "machine learning"}))
	assert.False(t, MatchesKeywords("MBA scholarship", []string{"law"}))
	assert.False(t, MatchesKeywords("anything", []string{" ", ""}))

	assert.False(t, MatchesKeywords("Lawrence University Engineering Scholarship", []string{"law", "laws"}))
	assert.False(t, MatchesKeywords("Outlaws of the Marsh", []string{"law", "laws"}))
	assert.True(t, MatchesKeywords("Lawrence School of Law", []string{"law"}))
	assert.True(t, MatchesKeywords("International Law, LLM track", []string{"law"}))
	assert.True(t, MatchesKeywords("Data-Science fellowship", []string{"science"}))
	assert.True(t, MatchesKeywords("MÉDECINE & health", []string{"health"}))
}
