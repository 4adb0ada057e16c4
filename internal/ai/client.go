// Package ai suggests follow-up searches for a vertical through a
// generative model.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

type Client interface {
	Recommend(ctx context.Context, req RecommendRequest) ([]Recommendation, error)
}

// NewClient picks the provider. Supported providers: "gemini" (default when
// a key is set) and "mock".
func NewClient(provider, geminiKey string, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	provider = strings.ToLower(strings.TrimSpace(provider))

	// Auto-detect provider if not specified
	if provider == "" {
		if geminiKey != "" {
			provider = "gemini"
		} else {
			provider = "mock"
		}
	}

	switch provider {
	case "gemini":
		if geminiKey == "" {
			logger.Warn("AI_PROVIDER=gemini but GEMINI_API_KEY not set, falling back to mock")
			return NewMockClient()
		}
		logger.Info("using gemini recommendations")
		return NewGeminiClient(geminiKey)
	default:
		logger.Info("using mock recommendations (set GEMINI_API_KEY for real AI)")
		return NewMockClient()
	}
}

type RecommendRequest struct {
	Vertical   string   `json:"vertical"`
	Query      string   `json:"query,omitempty"`
	Country    string   `json:"country,omitempty"`
	Field      string   `json:"field,omitempty"`
	StudyLevel string   `json:"studyLevel,omitempty"`
	Seen       []string `json:"seen,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// Recommendation is one suggested follow-up search.
type Recommendation struct {
	Title       string `json:"title"`
	Reason      string `json:"reason"`
	SearchQuery string `json:"search_query"`
}

func (r RecommendRequest) subject() string {
	parts := []string{}
	for _, p := range []string{r.Query, r.Field, r.StudyLevel, r.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

var mockAngles = map[string][]string{
	"jobs":         {"senior %s", "remote %s", "%s contract"},
	"products":     {"%s refurbished", "%s bundle", "best budget %s"},
	"universities": {"public universities %s", "%s scholarships for international students", "top ranked %s"},
	"scholarships": {"fully funded %s", "%s research grants", "%s for developing countries"},
}

func (m *MockClient) Recommend(_ context.Context, req RecommendRequest) ([]Recommendation, error) {
	subject := req.subject()
	if subject == "" {
		return nil, fmt.Errorf("nothing to recommend for")
	}
	angles, ok := mockAngles[req.Vertical]
	if !ok {
		return nil, fmt.Errorf("unknown vertical %q", req.Vertical)
	}
	out := make([]Recommendation, 0, len(angles))
	for _, a := range angles {
		q := fmt.Sprintf(a, subject)
		out = append(out, Recommendation{
			Title:       q,
			Reason:      "Mock suggestion related to " + subject,
			SearchQuery: q,
		})
	}
	return limit(out, req.Limit), nil
}

func limit(recs []Recommendation, n int) []Recommendation {
	if n > 0 && len(recs) > n {
		return recs[:n]
	}
	return recs
}
