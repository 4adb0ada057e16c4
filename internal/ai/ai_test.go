package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientSelectsProvider(t *testing.T) {
	assert.IsType(t, &MockClient{}, NewClient("", "", nil))
	assert.IsType(t, &GeminiClient{}, NewClient("", "key", nil))
	assert.IsType(t, &MockClient{}, NewClient("gemini", "", nil))
	assert.IsType(t, &MockClient{}, NewClient("mock", "key", nil))
}

func TestMockRecommend(t *testing.T) {
	recs, err := NewMockClient().Recommend(context.Background(), RecommendRequest{Vertical: "jobs", Query: "go developer", Limit: 2})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "senior go developer", recs[0].SearchQuery)

	_, err = NewMockClient().Recommend(context.Background(), RecommendRequest{Vertical: "cars", Query: "x"})
	assert.Error(t, err)
	_, err = NewMockClient().Recommend(context.Background(), RecommendRequest{Vertical: "jobs"})
	assert.Error(t, err)
}

func TestGeminiRecommend(t *testing.T) {
	var gotPrompt, gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		gotPath = r.URL.Path
		var req geminiRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotPrompt = req.Contents[0].Parts[0].Text

		text := "```json\n[{\"title\":\"Remote Go\",\"reason\":\"More openings\",\"search_query\":\"remote golang\"}]\n```"
		resp := map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": text}}},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewGeminiClient("secret").WithBaseURL(srv.URL)
	recs, err := client.Recommend(context.Background(), RecommendRequest{
		Vertical: "jobs",
		Query:    "golang",
		Seen:     []string{"Go Developer at Acme"},
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "remote golang", recs[0].SearchQuery)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "/"+defaultModel+":generateContent", gotPath)
	assert.True(t, strings.Contains(gotPrompt, "Go Developer at Acme"))
}

func TestGeminiAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"API key not valid","code":400}}`))
	}))
	defer srv.Close()

	_, err := NewGeminiClient("bad").WithBaseURL(srv.URL).Recommend(context.Background(), RecommendRequest{Vertical: "jobs", Query: "go"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not valid")
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `[1]`, cleanJSON("```json\n[1]\n```"))
	assert.Equal(t, `{}`, cleanJSON("  {} "))
}
